package export

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Facade is the entry point for document, tabular and print exports.
type Facade interface {
	GenerateDocument(ctx context.Context, raster RasterImage, opts Options) (*Document, error)
	GeneratePaginatedDocument(ctx context.Context, raster RasterImage, opts Options) (*Document, error)
	GenerateMultiPageDocument(ctx context.Context, rasters []RasterImage, opts Options) (*Document, error)
	CaptureAndGenerate(ctx context.Context, source RasterSource, format Format, opts Options) (*Document, error)
	SaveDocument(ctx context.Context, doc *Document, filename string) (ExportResult, error)
	ExportDelimited(ctx context.Context, rows []Row, columns []ColumnDescriptor, filename string) (ExportResult, error)
	ExportWorkbook(ctx context.Context, rows []Row, columns []ColumnDescriptor, filename, sheetName string) (ExportResult, error)
	Print(ctx context.Context, source SnapshotSource, opts PrintOptions) (PrintResult, error)
	Export(ctx context.Context, req ExportRequest) (ExportResult, error)
	History(ctx context.Context, filter JournalFilter) ([]JournalEntry, error)
}

// FacadeConfig supplies dependencies for Facade.
type FacadeConfig struct {
	Sink        FileSink
	Journal     Journal
	Surface     PresentationSurface
	Templates   TemplateExecutor
	Logger      Logger
	Now         func() time.Time
	IDGenerator func() string
}

type facade struct {
	sink        FileSink
	journal     Journal
	printer     PrintComposer
	logger      Logger
	now         func() time.Time
	idGenerator func() string
}

// NewFacade creates a Facade. A nil Sink or Journal falls back to the
// in-memory implementations.
func NewFacade(cfg FacadeConfig) Facade {
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	idGen := cfg.IDGenerator
	if idGen == nil {
		idGen = uuid.NewString
	}
	logger := cfg.Logger
	if logger == nil {
		logger = NopLogger{}
	}
	sink := cfg.Sink
	if sink == nil {
		sink = NewMemoryStore()
	}
	journal := cfg.Journal
	if journal == nil {
		journal = NewMemoryJournal()
	}

	return &facade{
		sink:    sink,
		journal: journal,
		printer: PrintComposer{
			Surface:     cfg.Surface,
			Templates:   cfg.Templates,
			Logger:      logger,
			Now:         nowFn,
			IDGenerator: idGen,
		},
		logger:      logger,
		now:         nowFn,
		idGenerator: idGen,
	}
}

func (f *facade) GenerateDocument(ctx context.Context, raster RasterImage, opts Options) (*Document, error) {
	result, err := f.run(ctx, FormatPDFSingle, opts.Title, func(res *ExportResult) error {
		return f.generate(ctx, res, raster, opts, FormatPDFSingle)
	})
	return result.Document, err
}

func (f *facade) GeneratePaginatedDocument(ctx context.Context, raster RasterImage, opts Options) (*Document, error) {
	result, err := f.run(ctx, FormatPDFPaginated, opts.Title, func(res *ExportResult) error {
		return f.generate(ctx, res, raster, opts, FormatPDFPaginated)
	})
	return result.Document, err
}

// GenerateMultiPageDocument places each raster on its own page, clamped to the
// content area. Missing decorators fall back to DefaultHeader and DefaultFooter.
func (f *facade) GenerateMultiPageDocument(ctx context.Context, rasters []RasterImage, opts Options) (*Document, error) {
	result, err := f.run(ctx, FormatPDFMultiPage, opts.Title, func(res *ExportResult) error {
		return f.generateEach(ctx, res, rasters, opts)
	})
	return result.Document, err
}

// CaptureAndGenerate rasterizes source and feeds the snapshot into document
// generation. A capture failure stops the chain.
func (f *facade) CaptureAndGenerate(ctx context.Context, source RasterSource, format Format, opts Options) (*Document, error) {
	format = NormalizeFormat(format)
	result, err := f.run(ctx, format, opts.Title, func(res *ExportResult) error {
		if format != FormatPDFSingle && format != FormatPDFPaginated {
			return NewError(KindValidation, fmt.Sprintf("format %q does not produce a document", format), nil)
		}
		raster, err := f.capture(ctx, source)
		if err != nil {
			return err
		}
		return f.generate(ctx, res, raster, opts, format)
	})
	return result.Document, err
}

func (f *facade) SaveDocument(ctx context.Context, doc *Document, filename string) (ExportResult, error) {
	title := ""
	if doc != nil {
		title = doc.Meta.Title
	}
	return f.run(ctx, doc.SourceFormat(), title, func(res *ExportResult) error {
		return f.save(ctx, res, doc, filename)
	})
}

func (f *facade) ExportDelimited(ctx context.Context, rows []Row, columns []ColumnDescriptor, filename string) (ExportResult, error) {
	return f.run(ctx, FormatCSV, filename, func(res *ExportResult) error {
		return f.writeDelimited(ctx, res, rows, columns, resolveFilename(filename, defaultTitle, FormatCSV, f.now()))
	})
}

func (f *facade) ExportWorkbook(ctx context.Context, rows []Row, columns []ColumnDescriptor, filename, sheetName string) (ExportResult, error) {
	return f.run(ctx, FormatXLSX, filename, func(res *ExportResult) error {
		return f.writeWorkbook(ctx, res, rows, columns, resolveFilename(filename, defaultTitle, FormatXLSX, f.now()), sheetName)
	})
}

func (f *facade) Print(ctx context.Context, source SnapshotSource, opts PrintOptions) (PrintResult, error) {
	result, err := f.run(ctx, FormatPrint, opts.Title, func(res *ExportResult) error {
		return f.print(ctx, res, source, opts)
	})
	if result.Print == nil {
		return PrintResult{}, err
	}
	return *result.Print, err
}

// Export dispatches a request to the strategy selected by its format.
// Document formats are saved to the configured sink.
func (f *facade) Export(ctx context.Context, req ExportRequest) (ExportResult, error) {
	req.Format = NormalizeFormat(req.Format)
	return f.run(ctx, req.Format, req.Options.Title, func(res *ExportResult) error {
		if err := validateRequest(req); err != nil {
			return err
		}
		switch req.Format {
		case FormatPDFSingle, FormatPDFPaginated:
			raster, err := f.capture(ctx, req.Raster)
			if err != nil {
				return err
			}
			if err := f.generate(ctx, res, raster, req.Options, req.Format); err != nil {
				return err
			}
			return f.save(ctx, res, res.Document, req.Filename)
		case FormatCSV:
			filename := resolveFilename(req.Filename, req.Options.Title, FormatCSV, f.now())
			return f.writeDelimited(ctx, res, scopedRows(req), req.Columns, filename)
		case FormatXLSX:
			filename := resolveFilename(req.Filename, req.Options.Title, FormatXLSX, f.now())
			return f.writeWorkbook(ctx, res, scopedRows(req), req.Columns, filename, req.SheetName)
		case FormatPrint:
			opts := req.Print
			if opts.Title == "" {
				opts.Title = req.Options.Title
			}
			return f.print(ctx, res, req.Snapshot, opts)
		default:
			return NewError(KindValidation, fmt.Sprintf("unsupported format %q", req.Format), nil)
		}
	})
}

func (f *facade) History(ctx context.Context, filter JournalFilter) ([]JournalEntry, error) {
	return f.journal.List(ctx, filter)
}

// run executes one operation and journals its outcome. Journal failures are
// logged and never change the operation's result.
func (f *facade) run(ctx context.Context, format Format, title string, fn func(res *ExportResult) error) (ExportResult, error) {
	res := ExportResult{ID: f.idGenerator(), Format: format}
	started := f.now()
	err := fn(&res)

	entry := JournalEntry{
		ID:         res.ID,
		Format:     format,
		Filename:   res.Filename,
		Title:      title,
		Rows:       res.Rows,
		Bytes:      res.Bytes,
		Pages:      res.Pages,
		Succeeded:  err == nil,
		StartedAt:  started,
		FinishedAt: f.now(),
	}
	if err != nil {
		entry.ErrorKind = KindFromError(err)
		entry.Error = err.Error()
		f.logger.Errorf("export %s (%s) failed: %v", res.ID, format, err)
	} else {
		f.logger.Infof("export %s (%s) completed: %s rows=%d bytes=%d pages=%d", res.ID, format, res.Filename, res.Rows, res.Bytes, res.Pages)
	}
	if journalErr := f.journal.Record(context.WithoutCancel(ctx), entry); journalErr != nil {
		f.logger.Errorf("export %s: journal record failed: %v", res.ID, journalErr)
	}
	return res, err
}

func (f *facade) capture(ctx context.Context, source RasterSource) (RasterImage, error) {
	if source == nil {
		return RasterImage{}, NewError(KindRasterization, "raster source is missing", nil)
	}
	raster, err := source.Rasterize(ctx)
	if err != nil {
		return RasterImage{}, wrapKind(err, KindRasterization, "rasterize")
	}
	if raster.Empty() {
		return RasterImage{}, NewError(KindRasterization, "raster snapshot is empty", nil)
	}
	return raster, nil
}

func (f *facade) generate(ctx context.Context, res *ExportResult, raster RasterImage, opts Options, format Format) error {
	if raster.Empty() {
		return NewError(KindRasterization, "raster snapshot is missing", nil)
	}
	opts, err := ValidateOptions(opts)
	if err != nil {
		return err
	}
	geometry, err := GeometryFromOptions(opts)
	if err != nil {
		return err
	}

	var pages []Page
	if format == FormatPDFPaginated {
		pages, err = ComputePages(raster.Height, raster.Width, geometry)
		if err != nil {
			return err
		}
		if err := checkCoverage(pages, raster.Height); err != nil {
			return err
		}
	} else {
		page, err := FitSingle(raster.Height, raster.Width, geometry)
		if err != nil {
			return err
		}
		pages = []Page{page}
	}

	doc, err := f.assembler(res, format).Assemble(ctx, raster, geometry, pages, opts)
	if err != nil {
		return err
	}
	res.Document = doc
	res.Pages = doc.PageCount()
	res.Bytes = doc.Size()
	return nil
}

func (f *facade) generateEach(ctx context.Context, res *ExportResult, rasters []RasterImage, opts Options) error {
	if len(rasters) == 0 {
		return NewError(KindRasterization, "no raster snapshots to place", nil)
	}
	defaultHeader, defaultFooter := opts.RenderHeader == nil, opts.RenderFooter == nil
	if defaultHeader && opts.HeaderHeightMm == 0 {
		opts.HeaderHeightMm = DefaultHeaderHeightMm
	}
	if defaultFooter && opts.FooterHeightMm == 0 {
		opts.FooterHeightMm = DefaultFooterHeightMm
	}
	opts, err := ValidateOptions(opts)
	if err != nil {
		return err
	}
	if defaultHeader {
		opts.RenderHeader = DefaultHeader(HeaderInfo{Title: opts.Title})
	}
	if defaultFooter {
		opts.RenderFooter = DefaultFooter(FooterInfo{GeneratedAt: f.now()})
	}
	geometry, err := GeometryFromOptions(opts)
	if err != nil {
		return err
	}

	pages := make([]Page, len(rasters))
	for i, raster := range rasters {
		if raster.Empty() {
			return NewError(KindRasterization, fmt.Sprintf("raster snapshot %d is missing", i), nil)
		}
		if pages[i], err = FitClamped(i, raster.Height, raster.Width, geometry); err != nil {
			return err
		}
	}

	doc, err := f.assembler(res, FormatPDFMultiPage).AssembleEach(ctx, rasters, geometry, pages, opts)
	if err != nil {
		return err
	}
	res.Document = doc
	res.Pages = doc.PageCount()
	res.Bytes = doc.Size()
	return nil
}

func (f *facade) assembler(res *ExportResult, format Format) Assembler {
	id := res.ID
	return Assembler{Now: f.now, IDGenerator: func() string { return id }, Format: format}
}

func (f *facade) save(ctx context.Context, res *ExportResult, doc *Document, filename string) error {
	if doc == nil || !doc.Finalized() {
		return NewError(KindValidation, "a finalized document is required", nil)
	}
	data, err := doc.Bytes()
	if err != nil {
		return err
	}
	res.Document = doc
	res.Pages = doc.PageCount()
	format := doc.SourceFormat()
	return f.put(ctx, res, resolveFilename(filename, doc.Meta.Title, format, f.now()), format, data)
}

func (f *facade) writeDelimited(ctx context.Context, res *ExportResult, rows []Row, columns []ColumnDescriptor, filename string) error {
	var buf bytes.Buffer
	stats, err := DelimitedSerializer{}.Write(ctx, &buf, rows, columns)
	if err != nil {
		return err
	}
	res.Rows = stats.Rows
	return f.put(ctx, res, filename, FormatCSV, buf.Bytes())
}

func (f *facade) writeWorkbook(ctx context.Context, res *ExportResult, rows []Row, columns []ColumnDescriptor, filename, sheetName string) error {
	var buf bytes.Buffer
	stats, err := WorkbookSerializer{}.Write(ctx, &buf, rows, columns, sheetName)
	if err != nil {
		return err
	}
	res.Rows = stats.Rows
	return f.put(ctx, res, filename, FormatXLSX, buf.Bytes())
}

func (f *facade) print(ctx context.Context, res *ExportResult, source SnapshotSource, opts PrintOptions) error {
	result, err := f.printer.Print(ctx, source, opts)
	res.Print = &result
	return err
}

func (f *facade) put(ctx context.Context, res *ExportResult, filename string, format Format, data []byte) error {
	ref, err := f.sink.Put(ctx, filename, bytes.NewReader(data), ArtifactMeta{
		ContentType: contentTypeForFormat(format),
		Filename:    filename,
		CreatedAt:   f.now(),
	})
	if err != nil {
		return wrapKind(err, KindInternal, fmt.Sprintf("write %s", filename))
	}
	// The sink may store under a different name, e.g. to avoid a collision.
	res.Filename = filename
	if ref.Key != "" {
		res.Filename = ref.Key
	}
	res.Bytes = int64(len(data))
	res.Artifact = &ref
	return nil
}

func validateRequest(req ExportRequest) error {
	hasTabular := len(req.Rows) > 0 || len(req.VisibleRows) > 0 || len(req.Columns) > 0
	switch req.Format {
	case FormatPDFSingle, FormatPDFPaginated:
		if hasTabular || req.Snapshot != nil {
			return NewError(KindValidation, fmt.Sprintf("%s exports take a raster source only", req.Format), nil)
		}
	case FormatCSV, FormatXLSX:
		if req.Raster != nil || req.Snapshot != nil {
			return NewError(KindValidation, fmt.Sprintf("%s exports take rows and columns only", req.Format), nil)
		}
	case FormatPrint:
		if hasTabular || req.Raster != nil {
			return NewError(KindValidation, "print takes a snapshot source only", nil)
		}
	default:
		return NewError(KindValidation, fmt.Sprintf("unsupported format %q", req.Format), nil)
	}
	return nil
}

// scopedRows picks the rows of the current view or the whole dataset. A nil
// VisibleRows means the view shows every row.
func scopedRows(req ExportRequest) []Row {
	if req.CurrentViewOnly && req.VisibleRows != nil {
		return req.VisibleRows
	}
	return req.Rows
}

// ActionOutcome separates a primary action's result from its follow-up export.
type ActionOutcome struct {
	PrimaryErr error
	ExportErr  error
}

// Succeeded reports whether the primary action succeeded, regardless of the export.
func (o ActionOutcome) Succeeded() bool {
	return o.PrimaryErr == nil
}

// RunWithExport runs primary and, only if it succeeds, exportFn. An export
// failure is reported separately and never turns a successful primary action
// into a failure.
func RunWithExport(ctx context.Context, primary func(ctx context.Context) error, exportFn func(ctx context.Context) error) ActionOutcome {
	if err := primary(ctx); err != nil {
		return ActionOutcome{PrimaryErr: err}
	}
	if exportFn == nil {
		return ActionOutcome{}
	}
	return ActionOutcome{ExportErr: exportFn(ctx)}
}
