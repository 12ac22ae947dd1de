package export

import (
	"testing"
	"time"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Monthly Report":           "monthly_report",
		"  Q1   Income\tStatement ": "q1_income_statement",
		"Café Résumé":              "cafe_resume",
		"Profit/Loss: 2024?":       "profitloss_2024",
		"***":                      "report",
		"":                         "report",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Fatalf("slugify %q: expected %q, got %q", in, want, got)
		}
	}
}

func TestBuildFilename(t *testing.T) {
	now := time.Date(2024, 7, 9, 22, 15, 0, 0, time.UTC)
	cases := map[Format]string{
		FormatPDFSingle:    "monthly_report_2024-07-09.pdf",
		FormatPDFPaginated: "monthly_report_2024-07-09.pdf",
		FormatCSV:          "monthly_report_2024-07-09.csv",
		FormatXLSX:         "monthly_report_2024-07-09.xlsx",
	}
	for format, want := range cases {
		if got := BuildFilename("Monthly Report", format, now); got != want {
			t.Fatalf("%s: expected %q, got %q", format, want, got)
		}
	}
}

func TestResolveFilename_KeepsExplicit(t *testing.T) {
	now := time.Date(2024, 7, 9, 0, 0, 0, 0, time.UTC)
	if got := resolveFilename("ledger", "ignored", FormatCSV, now); got != "ledger.csv" {
		t.Fatalf("expected extension appended, got %q", got)
	}
	if got := resolveFilename("ledger.XLSX", "ignored", FormatXLSX, now); got != "ledger.XLSX" {
		t.Fatalf("expected explicit name kept, got %q", got)
	}
	if got := resolveFilename(" ", "Cash Flow", FormatCSV, now); got != "cash_flow_2024-07-09.csv" {
		t.Fatalf("expected generated name, got %q", got)
	}
}
