package command

import (
	"context"
	stderrors "errors"
	"image"
	"image/color"
	"testing"
	"time"

	gcmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-docexport/export"
	"github.com/goliatone/go-errors"
)

var testNow = time.Date(2024, 4, 30, 10, 0, 0, 0, time.UTC)

func newFacade(store *export.MemoryStore) export.Facade {
	return export.NewFacade(export.FacadeConfig{
		Sink:        store,
		Now:         func() time.Time { return testNow },
		IDGenerator: func() string { return "exp-1" },
	})
}

func testColumns() []export.ColumnDescriptor {
	return []export.ColumnDescriptor{
		{Field: "name", Header: "Name"},
		{Field: "amount", Header: "Amount", Type: export.ValueCurrency},
	}
}

func testRows() []export.Row {
	return []export.Row{
		{"name": "rent", "amount": 1200},
		{"name": "coffee, and snacks", "amount": 8.5},
	}
}

func testRaster(t *testing.T) export.RasterImage {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 200, 600))
	for y := 0; y < 600; y++ {
		for x := 0; x < 200; x++ {
			img.Set(x, y, color.RGBA{R: uint8(y % 255), G: 80, B: 160, A: 255})
		}
	}
	raster, err := export.NewRasterImage(img)
	if err != nil {
		t.Fatalf("raster: %v", err)
	}
	return raster
}

func TestExportDelimitedHandler_StoresResults(t *testing.T) {
	store := export.NewMemoryStore()
	handler := NewExportDelimitedHandler(newFacade(store))

	var got export.ExportResult
	result := gcmd.NewResult[export.ExportResult]()
	ctx := gcmd.ContextWithResult(context.Background(), result)

	err := handler.Execute(ctx, ExportDelimited{
		Rows:     testRows(),
		Columns:  testColumns(),
		Filename: "ledger.csv",
		Result:   &got,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got.Filename != "ledger.csv" || got.Rows != 2 {
		t.Fatalf("unexpected result %+v", got)
	}
	stored, ok := result.Load()
	if !ok || stored.ID != "exp-1" {
		t.Fatalf("expected context result, got %+v (%v)", stored, ok)
	}

	data, _ := store.Bytes("ledger.csv")
	want := "\"Name\",\"Amount\"\n\"rent\",\"1200.00\"\n\"coffee, and snacks\",\"8.50\""
	if string(data) != want {
		t.Fatalf("unexpected csv:\n%s", data)
	}
}

func TestExportWorkbookHandler_DefaultsFilename(t *testing.T) {
	store := export.NewMemoryStore()
	handler := NewExportWorkbookHandler(newFacade(store))

	var got export.ExportResult
	if err := handler.Execute(context.Background(), ExportWorkbook{Rows: testRows(), Columns: testColumns(), SheetName: "Ledger", Result: &got}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got.Filename != "report_2024-04-30.xlsx" {
		t.Fatalf("unexpected filename %q", got.Filename)
	}
	if _, ok := store.Bytes(got.Filename); !ok {
		t.Fatalf("expected workbook stored")
	}
}

func TestExportHandlers_MapErrors(t *testing.T) {
	handler := NewExportDelimitedHandler(newFacade(export.NewMemoryStore()))
	err := handler.Execute(context.Background(), ExportDelimited{Rows: testRows()})

	var mapped *errors.Error
	if !stderrors.As(err, &mapped) {
		t.Fatalf("expected go-errors error, got %T", err)
	}
	if mapped.TextCode != string(export.KindSerialization) {
		t.Fatalf("expected serialization code, got %q", mapped.TextCode)
	}

	if err := (&ExportWorkbookHandler{}).Execute(context.Background(), ExportWorkbook{}); err == nil {
		t.Fatalf("expected missing facade error")
	}
}

func TestGenerateDocumentHandler_SavesPaginatedPDF(t *testing.T) {
	store := export.NewMemoryStore()
	handler := NewGenerateDocumentHandler(newFacade(store))

	var got export.ExportResult
	err := handler.Execute(context.Background(), GenerateDocument{
		Source:    export.StaticRaster{Raster: testRaster(t)},
		Paginated: true,
		Options:   export.Options{Title: "Monthly Report"},
		Result:    &got,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got.Format != export.FormatPDFPaginated || got.Filename != "monthly_report_2024-04-30.pdf" || got.Pages < 1 {
		t.Fatalf("unexpected result %+v", got)
	}
	data, _ := store.Bytes(got.Filename)
	if len(data) < 5 || string(data[:5]) != "%PDF-" {
		t.Fatalf("expected stored pdf")
	}
}

func TestGenerateDocumentHandler_CaptureFailure(t *testing.T) {
	handler := NewGenerateDocumentHandler(newFacade(export.NewMemoryStore()))
	source := export.RasterSourceFunc(func(context.Context) (export.RasterImage, error) {
		return export.RasterImage{}, stderrors.New("element detached")
	})
	err := handler.Execute(context.Background(), GenerateDocument{Source: source})

	var mapped *errors.Error
	if !stderrors.As(err, &mapped) || mapped.TextCode != string(export.KindRasterization) {
		t.Fatalf("expected rasterization error, got %v", err)
	}
}

type recordingSurface struct {
	printed bool
}

func (s *recordingSurface) Open(ctx context.Context, title string) (export.PresentationSession, error) {
	return s, nil
}
func (s *recordingSurface) Write(ctx context.Context, document string) error { return nil }
func (s *recordingSurface) Print(ctx context.Context) error {
	s.printed = true
	return nil
}
func (s *recordingSurface) Close(ctx context.Context) error { return nil }

func TestPrintViewHandler(t *testing.T) {
	surface := &recordingSurface{}
	facade := export.NewFacade(export.FacadeConfig{Surface: surface, IDGenerator: func() string { return "job-1" }})
	handler := NewPrintViewHandler(facade)

	toolbar := export.NewStyleElement("toolbar", "flex")
	source := export.SnapshotFunc(func(context.Context) (export.Snapshot, error) {
		return export.Snapshot{Markup: "<table></table>"}, nil
	})
	result := gcmd.NewResult[export.PrintResult]()
	ctx := gcmd.ContextWithResult(context.Background(), result)

	if err := handler.Execute(ctx, PrintView{Source: source, Options: export.PrintOptions{HideElements: []export.HostElement{toolbar}}}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	stored, ok := result.Load()
	if !ok || stored.JobID != "job-1" || stored.Hidden != 1 {
		t.Fatalf("unexpected print result %+v (%v)", stored, ok)
	}
	if !surface.printed || !toolbar.Visible() {
		t.Fatalf("expected printed surface and restored toolbar")
	}
}

func TestRunExportHandler_CurrentViewOnly(t *testing.T) {
	store := export.NewMemoryStore()
	handler := NewRunExportHandler(newFacade(store))

	var got export.ExportResult
	err := handler.Execute(context.Background(), RunExport{
		Request: export.ExportRequest{
			Format:          "delimited",
			Rows:            testRows(),
			VisibleRows:     testRows()[:1],
			CurrentViewOnly: true,
			Columns:         testColumns(),
			Filename:        "view.csv",
		},
		Result: &got,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got.Rows != 1 {
		t.Fatalf("expected only visible rows, got %d", got.Rows)
	}
}

func TestMessages_Validate(t *testing.T) {
	cases := []struct {
		name string
		msg  interface{ Validate() error }
		ok   bool
	}{
		{name: "delimited without columns", msg: ExportDelimited{}},
		{name: "delimited", msg: ExportDelimited{Columns: testColumns()}, ok: true},
		{name: "workbook without columns", msg: ExportWorkbook{}},
		{name: "document without source", msg: GenerateDocument{}},
		{name: "print without source", msg: PrintView{}},
		{name: "unknown format", msg: RunExport{Request: export.ExportRequest{Format: "docx"}}},
		{name: "aliased format", msg: RunExport{Request: export.ExportRequest{Format: "excel"}}, ok: true},
		{name: "prune", msg: PruneJournal{}, ok: true},
	}
	for _, tc := range cases {
		err := tc.msg.Validate()
		if (err == nil) != tc.ok {
			t.Fatalf("%s: unexpected validation result %v", tc.name, err)
		}
	}
}

func TestPruneJournalHandler_UsesRetention(t *testing.T) {
	journal := export.NewMemoryJournal()
	for i, started := range []time.Time{testNow.Add(-48 * time.Hour), testNow.Add(-time.Hour)} {
		_ = journal.Record(context.Background(), export.JournalEntry{ID: string(rune('a' + i)), StartedAt: started})
	}

	handler := NewPruneJournalHandler(journal, 24*time.Hour)
	handler.Clock = func() time.Time { return testNow }

	var removed int64
	if err := handler.Execute(context.Background(), PruneJournal{Result: &removed}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 pruned entry, got %d", removed)
	}
	left, _ := journal.List(context.Background(), export.JournalFilter{})
	if len(left) != 1 || left[0].ID != "b" {
		t.Fatalf("unexpected remaining entries %+v", left)
	}
	if handler.CronOptions().Expression == "" {
		t.Fatalf("expected cron expression")
	}
}
