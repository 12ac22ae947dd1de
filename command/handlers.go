package command

import (
	"context"
	"time"

	gcmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-docexport/export"
	"github.com/goliatone/go-errors"
)

func facadeRequired() error {
	return errors.New("export facade is required", errors.CategoryInternal).
		WithTextCode("FACADE_REQUIRED")
}

func storeResult(ctx context.Context, target *export.ExportResult, result export.ExportResult) {
	if target != nil {
		*target = result
	}
	if res := gcmd.ResultFromContext[export.ExportResult](ctx); res != nil {
		res.Store(result)
	}
}

// ExportDelimitedHandler handles delimited text exports.
type ExportDelimitedHandler struct {
	Facade export.Facade
}

func NewExportDelimitedHandler(facade export.Facade) *ExportDelimitedHandler {
	return &ExportDelimitedHandler{Facade: facade}
}

func (h *ExportDelimitedHandler) Execute(ctx context.Context, msg ExportDelimited) error {
	if h == nil || h.Facade == nil {
		return facadeRequired()
	}
	result, err := h.Facade.ExportDelimited(ctx, msg.Rows, msg.Columns, msg.Filename)
	if err != nil {
		return export.AsGoError(err)
	}
	storeResult(ctx, msg.Result, result)
	return nil
}

// ExportWorkbookHandler handles workbook exports.
type ExportWorkbookHandler struct {
	Facade export.Facade
}

func NewExportWorkbookHandler(facade export.Facade) *ExportWorkbookHandler {
	return &ExportWorkbookHandler{Facade: facade}
}

func (h *ExportWorkbookHandler) Execute(ctx context.Context, msg ExportWorkbook) error {
	if h == nil || h.Facade == nil {
		return facadeRequired()
	}
	result, err := h.Facade.ExportWorkbook(ctx, msg.Rows, msg.Columns, msg.Filename, msg.SheetName)
	if err != nil {
		return export.AsGoError(err)
	}
	storeResult(ctx, msg.Result, result)
	return nil
}

// GenerateDocumentHandler captures, assembles and saves PDF documents.
type GenerateDocumentHandler struct {
	Facade export.Facade
}

func NewGenerateDocumentHandler(facade export.Facade) *GenerateDocumentHandler {
	return &GenerateDocumentHandler{Facade: facade}
}

func (h *GenerateDocumentHandler) Execute(ctx context.Context, msg GenerateDocument) error {
	if h == nil || h.Facade == nil {
		return facadeRequired()
	}
	result, err := h.Facade.Export(ctx, export.ExportRequest{
		Format:   msg.Format(),
		Options:  msg.Options,
		Raster:   msg.Source,
		Filename: msg.Filename,
	})
	if err != nil {
		return export.AsGoError(err)
	}
	storeResult(ctx, msg.Result, result)
	return nil
}

// PrintViewHandler runs print jobs.
type PrintViewHandler struct {
	Facade export.Facade
}

func NewPrintViewHandler(facade export.Facade) *PrintViewHandler {
	return &PrintViewHandler{Facade: facade}
}

func (h *PrintViewHandler) Execute(ctx context.Context, msg PrintView) error {
	if h == nil || h.Facade == nil {
		return facadeRequired()
	}
	result, err := h.Facade.Print(ctx, msg.Source, msg.Options)
	if msg.Result != nil {
		*msg.Result = result
	}
	if err != nil {
		return export.AsGoError(err)
	}
	if res := gcmd.ResultFromContext[export.PrintResult](ctx); res != nil {
		res.Store(result)
	}
	return nil
}

// RunExportHandler dispatches export requests through the facade.
type RunExportHandler struct {
	Facade export.Facade
}

func NewRunExportHandler(facade export.Facade) *RunExportHandler {
	return &RunExportHandler{Facade: facade}
}

func (h *RunExportHandler) Execute(ctx context.Context, msg RunExport) error {
	if h == nil || h.Facade == nil {
		return facadeRequired()
	}
	result, err := h.Facade.Export(ctx, msg.Request)
	if err != nil {
		return export.AsGoError(err)
	}
	storeResult(ctx, msg.Result, result)
	return nil
}

// JournalPruner deletes journal entries older than a cutoff.
type JournalPruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// DefaultJournalRetention is how long journal entries are kept when
// PruneJournalHandler.Retention is unset.
const DefaultJournalRetention = 30 * 24 * time.Hour

// PruneJournalHandler removes stale journal entries.
type PruneJournalHandler struct {
	Journal   JournalPruner
	Retention time.Duration
	Config    gcmd.HandlerConfig
	Clock     func() time.Time
}

func NewPruneJournalHandler(journal JournalPruner, retention time.Duration) *PruneJournalHandler {
	return &PruneJournalHandler{
		Journal:   journal,
		Retention: retention,
		Config:    gcmd.HandlerConfig{Expression: "0 3 * * *"},
	}
}

func (h *PruneJournalHandler) Execute(ctx context.Context, msg PruneJournal) error {
	if h == nil || h.Journal == nil {
		return errors.New("journal is required", errors.CategoryInternal).
			WithTextCode("JOURNAL_REQUIRED")
	}
	cutoff := msg.Before
	if cutoff.IsZero() {
		now := time.Now()
		if h.Clock != nil {
			now = h.Clock()
		}
		retention := h.Retention
		if retention <= 0 {
			retention = DefaultJournalRetention
		}
		cutoff = now.Add(-retention)
	}
	count, err := h.Journal.Prune(ctx, cutoff)
	if err != nil {
		return export.AsGoError(err)
	}
	if msg.Result != nil {
		*msg.Result = count
	}
	if res := gcmd.ResultFromContext[int64](ctx); res != nil {
		res.Store(count)
	}
	return nil
}

func (h *PruneJournalHandler) CronHandler() func() error {
	return func() error {
		return h.Execute(context.Background(), PruneJournal{})
	}
}

func (h *PruneJournalHandler) CronOptions() gcmd.HandlerConfig {
	return h.Config
}
