package journalbun

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/goliatone/go-docexport/export"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

var base = time.Date(2024, 4, 30, 9, 0, 0, 0, time.UTC)

func seed(t *testing.T, journal *Journal) {
	t.Helper()
	entries := []export.JournalEntry{
		{ID: "a", Format: export.FormatCSV, Filename: "report_2024-04-30.csv", Rows: 4, Bytes: 120, Succeeded: true, StartedAt: base, FinishedAt: base.Add(time.Second)},
		{ID: "b", Format: export.FormatPDFPaginated, Title: "Report", Pages: 3, Succeeded: true, StartedAt: base.Add(time.Hour)},
		{ID: "c", Format: export.FormatCSV, Succeeded: false, ErrorKind: export.KindSerialization, Error: "no columns", StartedAt: base.Add(2 * time.Hour)},
	}
	for _, entry := range entries {
		if err := journal.Record(context.Background(), entry); err != nil {
			t.Fatalf("record %s: %v", entry.ID, err)
		}
	}
}

func TestJournal_RecordGet(t *testing.T) {
	journal := newTestJournal(t)
	seed(t, journal)

	got, err := journal.Get(context.Background(), "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Filename != "report_2024-04-30.csv" || got.Rows != 4 || got.Bytes != 120 || !got.Succeeded {
		t.Fatalf("unexpected entry %+v", got)
	}
	if !got.StartedAt.Equal(base) || !got.FinishedAt.Equal(base.Add(time.Second)) {
		t.Fatalf("unexpected timestamps %v %v", got.StartedAt, got.FinishedAt)
	}

	failed, err := journal.Get(context.Background(), "c")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if failed.Succeeded || failed.ErrorKind != export.KindSerialization || failed.Error != "no columns" {
		t.Fatalf("unexpected failed entry %+v", failed)
	}

	if _, err := journal.Get(context.Background(), "missing"); export.KindFromError(err) != export.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestJournal_ListFilters(t *testing.T) {
	journal := newTestJournal(t)
	seed(t, journal)
	ctx := context.Background()

	all, err := journal.List(ctx, export.JournalFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].ID != "c" || all[2].ID != "a" {
		t.Fatalf("expected newest first, got %v", ids(all))
	}

	csv, _ := journal.List(ctx, export.JournalFilter{Format: export.FormatCSV})
	if len(csv) != 2 {
		t.Fatalf("expected 2 csv entries, got %v", ids(csv))
	}

	ok := true
	succeeded, _ := journal.List(ctx, export.JournalFilter{Succeeded: &ok})
	if len(succeeded) != 2 || succeeded[0].ID != "b" {
		t.Fatalf("unexpected succeeded entries %v", ids(succeeded))
	}

	window, _ := journal.List(ctx, export.JournalFilter{Since: base.Add(30 * time.Minute), Until: base.Add(2 * time.Hour)})
	if len(window) != 1 || window[0].ID != "b" {
		t.Fatalf("unexpected window entries %v", ids(window))
	}

	limited, _ := journal.List(ctx, export.JournalFilter{Limit: 1})
	if len(limited) != 1 || limited[0].ID != "c" {
		t.Fatalf("unexpected limited entries %v", ids(limited))
	}
}

func TestJournal_Prune(t *testing.T) {
	journal := newTestJournal(t)
	seed(t, journal)

	removed, err := journal.Prune(context.Background(), base.Add(90*time.Minute))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 pruned entries, got %d", removed)
	}
	left, _ := journal.List(context.Background(), export.JournalFilter{})
	if len(left) != 1 || left[0].ID != "c" {
		t.Fatalf("unexpected remaining entries %v", ids(left))
	}
}

func TestJournal_RejectsInvalidEntries(t *testing.T) {
	journal := newTestJournal(t)
	if err := journal.Record(context.Background(), export.JournalEntry{}); export.KindFromError(err) != export.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	seed(t, journal)
	if err := journal.Record(context.Background(), export.JournalEntry{ID: "a", Format: export.FormatCSV, StartedAt: base}); err == nil {
		t.Fatalf("expected duplicate id to fail")
	}

	var unset *Journal
	if _, err := unset.List(context.Background(), export.JournalFilter{}); export.KindFromError(err) != export.KindNotImpl {
		t.Fatalf("expected not implemented, got %v", err)
	}
}

func TestJournal_BacksFacadeHistory(t *testing.T) {
	journal := newTestJournal(t)
	facade := export.NewFacade(export.FacadeConfig{
		Journal:     journal,
		Now:         func() time.Time { return base },
		IDGenerator: func() string { return "export-1" },
	})

	columns := []export.ColumnDescriptor{{Field: "name"}}
	if _, err := facade.ExportDelimited(context.Background(), []export.Row{{"name": "Ada"}}, columns, "people.csv"); err != nil {
		t.Fatalf("export: %v", err)
	}
	history, err := facade.History(context.Background(), export.JournalFilter{})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].ID != "export-1" || history[0].Filename != "people.csv" || history[0].Rows != 1 {
		t.Fatalf("unexpected history %+v", history)
	}
}

func ids(entries []export.JournalEntry) []string {
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.ID)
	}
	return out
}

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// A single connection keeps every query on the same in-memory database.
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() {
		_ = db.Close()
	})

	journal := NewJournal(db)
	if err := journal.CreateSchema(context.Background()); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return journal
}
