package exportchromium

import (
	"strings"
	"testing"

	"github.com/goliatone/go-docexport/export"
)

func TestParseLengthInches(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{input: "1in", want: 1},
		{input: "25.4mm", want: 1},
		{input: "2.54cm", want: 1},
		{input: "72pt", want: 1},
		{input: "96px", want: 1},
		{input: "2", want: 2},
	}

	for _, tc := range tests {
		got, err := parseLengthInches(tc.input)
		if err != nil {
			t.Fatalf("parseLengthInches(%q): %v", tc.input, err)
		}
		if diff := got - tc.want; diff > 0.0001 || diff < -0.0001 {
			t.Fatalf("parseLengthInches(%q): expected %f, got %f", tc.input, tc.want, got)
		}
	}

	for _, input := range []string{"", "ten", "3furlongs"} {
		if _, err := parseLengthInches(input); export.KindFromError(err) != export.KindValidation {
			t.Fatalf("parseLengthInches(%q): expected validation error, got %v", input, err)
		}
	}
}

func TestBuildPrintToPDFParams_PageSize(t *testing.T) {
	params, err := buildPrintToPDFParams(PrintSettings{
		PageSize:        "a4",
		PrintBackground: boolPtr(true),
		MarginTop:       "10mm",
	}.withDefaults())
	if err != nil {
		t.Fatalf("buildPrintToPDFParams: %v", err)
	}
	if params.PaperWidth != 8.27 || params.PaperHeight != 11.69 {
		t.Fatalf("expected a4 paper, got width=%f height=%f", params.PaperWidth, params.PaperHeight)
	}
	if params.MarginTop == 0 {
		t.Fatalf("expected margin top to be set")
	}
	if !params.PrintBackground || params.PreferCSSPageSize {
		t.Fatalf("unexpected params %+v", params)
	}
}

func TestBuildPrintToPDFParams_PrefersCSSWithoutPageSize(t *testing.T) {
	params, err := buildPrintToPDFParams(PrintSettings{})
	if err != nil {
		t.Fatalf("buildPrintToPDFParams: %v", err)
	}
	if !params.PreferCSSPageSize || params.Scale != 1 {
		t.Fatalf("unexpected params %+v", params)
	}
}

func TestBuildPrintToPDFParams_Rejects(t *testing.T) {
	cases := []PrintSettings{
		{Scale: 3},
		{PageSize: "tabloid"},
		{MarginLeft: "wide"},
	}
	for _, settings := range cases {
		if _, err := buildPrintToPDFParams(settings); export.KindFromError(err) != export.KindValidation {
			t.Fatalf("%+v: expected validation error, got %v", settings, err)
		}
	}
}

func TestInjectBaseURL(t *testing.T) {
	out := injectBaseURL("<html><head><title>Test</title></head><body>ok</body></html>", "https://assets.local/")
	if !strings.HasPrefix(out, `<html><head><base href="https://assets.local/">`) {
		t.Fatalf("expected base tag after head, got %s", out)
	}

	out = injectBaseURL("<html><body>ok</body></html>", "https://assets.local/")
	if !strings.Contains(out, `<html><head><base href="https://assets.local/"></head>`) {
		t.Fatalf("expected synthesized head, got %s", out)
	}

	existing := `<html><head><base href="/x/"></head></html>`
	if injectBaseURL(existing, "https://assets.local/") != existing {
		t.Fatalf("expected existing base to be kept")
	}
	if injectBaseURL("<p>x</p>", " ") != "<p>x</p>" {
		t.Fatalf("expected blank base url to be ignored")
	}
}
