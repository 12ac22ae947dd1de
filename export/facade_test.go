package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"testing"
	"time"
)

type failingSink struct{}

func (failingSink) Put(ctx context.Context, key string, r io.Reader, meta ArtifactMeta) (ArtifactRef, error) {
	return ArtifactRef{}, errors.New("disk full")
}

type failingJournal struct{}

func (failingJournal) Record(context.Context, JournalEntry) error { return errors.New("journal down") }

func (failingJournal) List(context.Context, JournalFilter) ([]JournalEntry, error) { return nil, nil }

type captureLogger struct {
	errors []string
}

func (l *captureLogger) Debugf(string, ...any) {}
func (l *captureLogger) Infof(string, ...any)  {}
func (l *captureLogger) Errorf(format string, args ...any) {
	l.errors = append(l.errors, fmt.Sprintf(format, args...))
}

func newTestFacade(t *testing.T) (Facade, *MemoryStore, *MemoryJournal) {
	t.Helper()
	store := NewMemoryStore()
	journal := NewMemoryJournal()
	counter := 0
	facade := NewFacade(FacadeConfig{
		Sink:    store,
		Journal: journal,
		Surface: &stubSurface{},
		Now:     func() time.Time { return time.Date(2024, 4, 30, 12, 0, 0, 0, time.UTC) },
		IDGenerator: func() string {
			counter++
			return fmt.Sprintf("exp-%d", counter)
		},
	})
	return facade, store, journal
}

func TestFacade_GenerateDocument(t *testing.T) {
	facade, _, journal := newTestFacade(t)
	raster := stripedRaster(t, 200, 1200)

	single, err := facade.GenerateDocument(context.Background(), raster, Options{Title: "Summary"})
	if err != nil {
		t.Fatalf("single: %v", err)
	}
	if single.PageCount() != 1 {
		t.Fatalf("expected one page, got %d", single.PageCount())
	}

	paged, err := facade.GeneratePaginatedDocument(context.Background(), raster, Options{Title: "Summary"})
	if err != nil {
		t.Fatalf("paginated: %v", err)
	}
	if paged.PageCount() < 2 {
		t.Fatalf("expected several pages, got %d", paged.PageCount())
	}
	if err := checkCoverage(paged.Pages, raster.Height); err != nil {
		t.Fatalf("coverage: %v", err)
	}

	entries, _ := journal.List(context.Background(), JournalFilter{})
	if len(entries) != 2 || !entries[0].Succeeded || !entries[1].Succeeded {
		t.Fatalf("unexpected journal %+v", entries)
	}
}

func TestFacade_GenerateDocumentErrors(t *testing.T) {
	facade, _, journal := newTestFacade(t)

	if _, err := facade.GenerateDocument(context.Background(), RasterImage{}, Options{}); KindFromError(err) != KindRasterization {
		t.Fatalf("expected rasterization error, got %v", err)
	}
	raster := stripedRaster(t, 10, 10)
	if _, err := facade.GeneratePaginatedDocument(context.Background(), raster, Options{HeaderHeightMm: 150, FooterHeightMm: 150}); KindFromError(err) != KindGeometry {
		t.Fatalf("expected geometry error, got %v", err)
	}
	if _, err := facade.GenerateDocument(context.Background(), raster, Options{PageFormat: "tabloid"}); KindFromError(err) != KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	failed := false
	entries, _ := journal.List(context.Background(), JournalFilter{Succeeded: &failed})
	if len(entries) != 3 {
		t.Fatalf("expected 3 failed entries, got %d", len(entries))
	}
	if entries[0].ErrorKind == "" || entries[0].Error == "" {
		t.Fatalf("expected error details in journal, got %+v", entries[0])
	}
}

func TestFacade_CaptureAndGenerateShortCircuits(t *testing.T) {
	facade, _, _ := newTestFacade(t)
	captured := false
	source := RasterSourceFunc(func(ctx context.Context) (RasterImage, error) {
		captured = true
		return RasterImage{}, errors.New("element detached")
	})
	_, err := facade.CaptureAndGenerate(context.Background(), source, FormatPDFPaginated, Options{})
	if !captured || KindFromError(err) != KindRasterization {
		t.Fatalf("expected rasterization failure, got %v", err)
	}

	raster := stripedRaster(t, 50, 50)
	doc, err := facade.CaptureAndGenerate(context.Background(), StaticRaster{Raster: raster}, "pdf", Options{})
	if err != nil || doc.PageCount() != 1 {
		t.Fatalf("expected single page document, got %v", err)
	}

	if _, err := facade.CaptureAndGenerate(context.Background(), StaticRaster{Raster: raster}, FormatCSV, Options{}); KindFromError(err) != KindValidation {
		t.Fatalf("expected validation error for csv, got %v", err)
	}
}

func TestFacade_ExportDelimitedWritesFile(t *testing.T) {
	facade, store, _ := newTestFacade(t)
	result, err := facade.ExportDelimited(context.Background(), transactionRows(), transactionColumns(), "")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if result.Filename != "report_2024-04-30.csv" {
		t.Fatalf("unexpected filename %q", result.Filename)
	}
	if result.Rows != 4 || result.Artifact == nil || result.Artifact.Meta.ContentType != "text/csv; charset=utf-8" {
		t.Fatalf("unexpected result %+v", result)
	}
	data, ok := store.Bytes(result.Filename)
	if !ok {
		t.Fatalf("expected stored file")
	}
	want, _ := ToDelimitedText(transactionRows(), transactionColumns())
	if string(data) != want || result.Bytes != int64(len(want)) {
		t.Fatalf("stored content mismatch")
	}
}

func TestFacade_ExportWorkbookWritesFile(t *testing.T) {
	facade, store, _ := newTestFacade(t)
	result, err := facade.ExportWorkbook(context.Background(), transactionRows(), transactionColumns(), "ledger", "Q1 [draft]")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if result.Filename != "ledger.xlsx" {
		t.Fatalf("unexpected filename %q", result.Filename)
	}
	data, ok := store.Bytes("ledger.xlsx")
	if !ok {
		t.Fatalf("expected stored workbook")
	}
	sheet, rows := readWorkbook(t, data)
	if sheet != "Q1 draft" || len(rows) != 5 {
		t.Fatalf("unexpected workbook %q with %d rows", sheet, len(rows))
	}
}

func TestFacade_ExportDispatch(t *testing.T) {
	facade, store, _ := newTestFacade(t)
	all := transactionRows()
	visible := all[:2]

	res, err := facade.Export(context.Background(), ExportRequest{
		Format:          FormatCSV,
		Options:         Options{Title: "March Transactions"},
		Rows:            all,
		VisibleRows:     visible,
		CurrentViewOnly: true,
		Columns:         transactionColumns(),
	})
	if err != nil {
		t.Fatalf("csv export: %v", err)
	}
	if res.Filename != "march_transactions_2024-04-30.csv" || res.Rows != 2 {
		t.Fatalf("unexpected current-view result %+v", res)
	}

	res, err = facade.Export(context.Background(), ExportRequest{
		Format:      FormatXLSX,
		Options:     Options{Title: "March Transactions"},
		Rows:        all,
		VisibleRows: visible,
		Columns:     transactionColumns(),
	})
	if err != nil || res.Rows != 4 {
		t.Fatalf("expected full dataset export, got %+v (%v)", res, err)
	}

	res, err = facade.Export(context.Background(), ExportRequest{
		Format:  FormatPDFPaginated,
		Options: Options{Title: "March Transactions"},
		Raster:  StaticRaster{Raster: stripedRaster(t, 100, 900)},
	})
	if err != nil {
		t.Fatalf("pdf export: %v", err)
	}
	data, ok := store.Bytes("march_transactions_2024-04-30.pdf")
	if !ok || !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Fatalf("expected stored pdf")
	}
	if res.Pages != res.Document.PageCount() || res.Artifact.Meta.ContentType != "application/pdf" {
		t.Fatalf("unexpected pdf result %+v", res)
	}

	res, err = facade.Export(context.Background(), ExportRequest{
		Format:   FormatPrint,
		Options:  Options{Title: "Printed"},
		Snapshot: staticSnapshot("<p>hi</p>"),
	})
	if err != nil || res.Print == nil || res.Print.Title != "Printed" {
		t.Fatalf("unexpected print result %+v (%v)", res, err)
	}
}

func TestFacade_ExportRejectsMixedSources(t *testing.T) {
	facade, _, _ := newTestFacade(t)
	raster := StaticRaster{Raster: stripedRaster(t, 10, 10)}
	cases := []ExportRequest{
		{Format: FormatPDFSingle, Raster: raster, Columns: transactionColumns()},
		{Format: FormatCSV, Raster: raster, Columns: transactionColumns()},
		{Format: FormatPrint, Snapshot: staticSnapshot("<p/>"), Rows: transactionRows()},
		{Format: "docx"},
	}
	for i, req := range cases {
		if _, err := facade.Export(context.Background(), req); KindFromError(err) != KindValidation {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
	if _, err := facade.Export(context.Background(), ExportRequest{Format: FormatPDFSingle}); KindFromError(err) != KindRasterization {
		t.Fatalf("expected rasterization error for missing raster, got %v", err)
	}
}

func TestFacade_SaveDocument(t *testing.T) {
	facade, store, _ := newTestFacade(t)
	doc, err := facade.GenerateDocument(context.Background(), stripedRaster(t, 20, 20), Options{Title: "Cash Flow"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	res, err := facade.SaveDocument(context.Background(), doc, "")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if res.Filename != "cash_flow_2024-04-30.pdf" || res.Bytes != doc.Size() {
		t.Fatalf("unexpected save result %+v", res)
	}
	if _, ok := store.Bytes(res.Filename); !ok {
		t.Fatalf("expected stored document")
	}
	if _, err := facade.SaveDocument(context.Background(), nil, "x.pdf"); KindFromError(err) != KindValidation {
		t.Fatalf("expected validation error for nil document, got %v", err)
	}
}

func TestFacade_SaveDocumentKeepsSourceFormat(t *testing.T) {
	facade, _, journal := newTestFacade(t)
	doc, err := facade.GenerateDocument(context.Background(), stripedRaster(t, 20, 20), Options{Title: "Cash Flow"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if doc.Meta.Format != FormatPDFSingle {
		t.Fatalf("expected single format on meta, got %q", doc.Meta.Format)
	}
	res, err := facade.SaveDocument(context.Background(), doc, "")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if res.Format != FormatPDFSingle || res.Artifact == nil || res.Artifact.Meta.ContentType != "application/pdf" {
		t.Fatalf("unexpected save result %+v", res)
	}

	entries, _ := journal.List(context.Background(), JournalFilter{Format: FormatPDFSingle})
	if len(entries) != 2 {
		t.Fatalf("expected generate and save journaled as single, got %+v", entries)
	}
	if paged, _ := journal.List(context.Background(), JournalFilter{Format: FormatPDFPaginated}); len(paged) != 0 {
		t.Fatalf("single document journaled as paginated: %+v", paged)
	}
}

func TestFacade_GenerateMultiPageDocument(t *testing.T) {
	facade, store, journal := newTestFacade(t)
	rasters := []RasterImage{
		stripedRaster(t, 200, 100),
		stripedRaster(t, 100, 2000),
		stripedRaster(t, 50, 50),
	}

	doc, err := facade.GenerateMultiPageDocument(context.Background(), rasters, Options{Title: "Statements"})
	if err != nil {
		t.Fatalf("multipage: %v", err)
	}
	if doc.PageCount() != 3 || doc.Meta.Format != FormatPDFMultiPage {
		t.Fatalf("unexpected document pages=%d format=%q", doc.PageCount(), doc.Meta.Format)
	}

	contentHeight := doc.Geometry.ContentHeight()
	for i, page := range doc.Pages {
		if page.Index != i || page.Source.Y != 0 || page.Source.Height != rasters[i].Height {
			t.Fatalf("page %d does not hold its whole raster: %+v", i, page)
		}
		if page.Dest.Y != DefaultHeaderHeightMm+defaultMarginMm {
			t.Fatalf("page %d placed at %.2f, expected below the default header", i, page.Dest.Y)
		}
		if page.Dest.Height > contentHeight+1e-9 {
			t.Fatalf("page %d height %.2f exceeds content height %.2f", i, page.Dest.Height, contentHeight)
		}
	}
	if math.Abs(doc.Pages[1].Dest.Height-contentHeight) > 1e-9 {
		t.Fatalf("tall raster should be clamped to %.2f, got %.2f", contentHeight, doc.Pages[1].Dest.Height)
	}
	if math.Abs(doc.Pages[0].Dest.Height-95) > 1e-9 {
		t.Fatalf("short raster should keep its aspect ratio, got %.2f", doc.Pages[0].Dest.Height)
	}

	entries, _ := journal.List(context.Background(), JournalFilter{Format: FormatPDFMultiPage})
	if len(entries) != 1 || entries[0].Pages != 3 || !entries[0].Succeeded {
		t.Fatalf("unexpected journal %+v", entries)
	}

	res, err := facade.SaveDocument(context.Background(), doc, "")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if res.Format != FormatPDFMultiPage || res.Filename != "statements_2024-04-30.pdf" {
		t.Fatalf("unexpected save result %+v", res)
	}
	if _, ok := store.Bytes(res.Filename); !ok {
		t.Fatalf("expected stored document")
	}
}

func TestFacade_GenerateMultiPageDocumentCustomDecorators(t *testing.T) {
	facade, _, _ := newTestFacade(t)
	var headers, footers []string
	opts := Options{
		RenderHeader: func(canvas PageCanvas, pageNum, totalPages int) {
			headers = append(headers, fmt.Sprintf("%d/%d", pageNum, totalPages))
		},
		RenderFooter: func(canvas PageCanvas, pageNum, totalPages int) {
			footers = append(footers, fmt.Sprintf("%d/%d", pageNum, totalPages))
		},
	}

	doc, err := facade.GenerateMultiPageDocument(context.Background(), []RasterImage{stripedRaster(t, 40, 40), stripedRaster(t, 40, 40)}, opts)
	if err != nil {
		t.Fatalf("multipage: %v", err)
	}
	if strings.Join(headers, ",") != "1/2,2/2" || strings.Join(footers, ",") != "1/2,2/2" {
		t.Fatalf("unexpected decorator calls headers=%v footers=%v", headers, footers)
	}
	if doc.Pages[0].Dest.Y != defaultMarginMm {
		t.Fatalf("custom header without height should not reserve space, got y=%.2f", doc.Pages[0].Dest.Y)
	}
}

func TestFacade_GenerateMultiPageDocumentErrors(t *testing.T) {
	facade, _, _ := newTestFacade(t)
	if _, err := facade.GenerateMultiPageDocument(context.Background(), nil, Options{}); KindFromError(err) != KindRasterization {
		t.Fatalf("expected rasterization error for no rasters, got %v", err)
	}
	rasters := []RasterImage{stripedRaster(t, 10, 10), {}}
	if _, err := facade.GenerateMultiPageDocument(context.Background(), rasters, Options{}); KindFromError(err) != KindRasterization {
		t.Fatalf("expected rasterization error for empty raster, got %v", err)
	}
}

func TestFacade_SinkAndJournalFailures(t *testing.T) {
	logger := &captureLogger{}
	facade := NewFacade(FacadeConfig{Sink: failingSink{}, Journal: failingJournal{}, Logger: logger})

	if _, err := facade.ExportDelimited(context.Background(), transactionRows(), transactionColumns(), "out.csv"); KindFromError(err) != KindInternal {
		t.Fatalf("expected internal error from sink, got %v", err)
	}

	doc, err := facade.GenerateDocument(context.Background(), stripedRaster(t, 20, 20), Options{})
	if err != nil || doc == nil {
		t.Fatalf("journal failure must not fail generation: %v", err)
	}
	found := false
	for _, line := range logger.errors {
		if strings.Contains(line, "journal record failed") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected journal failure to be logged, got %v", logger.errors)
	}
}

func TestFacade_PrintWithoutSurface(t *testing.T) {
	facade := NewFacade(FacadeConfig{})
	result, err := facade.Print(context.Background(), staticSnapshot("<p/>"), PrintOptions{})
	if KindFromError(err) != KindPresentation {
		t.Fatalf("expected presentation error, got %v", err)
	}
	if result.Transitions[len(result.Transitions)-1] != PrintSettled {
		t.Fatalf("expected settled print, got %v", result.Transitions)
	}
}

func TestRunWithExport(t *testing.T) {
	exportErr := NewError(KindSerialization, "bad rows", nil)
	outcome := RunWithExport(context.Background(),
		func(context.Context) error { return nil },
		func(context.Context) error { return exportErr },
	)
	if !outcome.Succeeded() || !errors.Is(outcome.ExportErr, exportErr) {
		t.Fatalf("expected primary success with export failure, got %+v", outcome)
	}

	ran := false
	primaryErr := errors.New("transfer rejected")
	outcome = RunWithExport(context.Background(),
		func(context.Context) error { return primaryErr },
		func(context.Context) error { ran = true; return nil },
	)
	if outcome.Succeeded() || ran {
		t.Fatalf("export must not run after primary failure")
	}
}
