package command

import (
	"time"

	"github.com/goliatone/go-docexport/export"
	"github.com/goliatone/go-errors"
)

// ExportDelimited writes rows as a delimited text file.
type ExportDelimited struct {
	Rows     []export.Row
	Columns  []export.ColumnDescriptor
	Filename string
	Result   *export.ExportResult
}

func (ExportDelimited) Type() string { return "docexport:delimited" }

func (msg ExportDelimited) Validate() error {
	return validateColumns(msg.Columns)
}

// ExportWorkbook writes rows as a single-sheet workbook.
type ExportWorkbook struct {
	Rows      []export.Row
	Columns   []export.ColumnDescriptor
	Filename  string
	SheetName string
	Result    *export.ExportResult
}

func (ExportWorkbook) Type() string { return "docexport:workbook" }

func (msg ExportWorkbook) Validate() error {
	return validateColumns(msg.Columns)
}

// GenerateDocument captures a raster and saves it as a PDF.
type GenerateDocument struct {
	Source    export.RasterSource
	Paginated bool
	Options   export.Options
	Filename  string
	Result    *export.ExportResult
}

func (GenerateDocument) Type() string { return "docexport:document" }

func (msg GenerateDocument) Validate() error {
	if msg.Source == nil {
		return errors.New("raster source is required", errors.CategoryValidation).
			WithTextCode("RASTER_SOURCE_REQUIRED")
	}
	return nil
}

// Format returns the document format selected by Paginated.
func (msg GenerateDocument) Format() export.Format {
	if msg.Paginated {
		return export.FormatPDFPaginated
	}
	return export.FormatPDFSingle
}

// PrintView presents a snapshot on the print surface.
type PrintView struct {
	Source  export.SnapshotSource
	Options export.PrintOptions
	Result  *export.PrintResult
}

func (PrintView) Type() string { return "docexport:print" }

func (msg PrintView) Validate() error {
	if msg.Source == nil {
		return errors.New("snapshot source is required", errors.CategoryValidation).
			WithTextCode("SNAPSHOT_SOURCE_REQUIRED")
	}
	return nil
}

// RunExport dispatches a request on its format.
type RunExport struct {
	Request export.ExportRequest
	Result  *export.ExportResult
}

func (RunExport) Type() string { return "docexport:export" }

func (msg RunExport) Validate() error {
	if !export.NormalizeFormat(msg.Request.Format).Known() {
		return errors.New("unsupported export format", errors.CategoryValidation).
			WithTextCode("FORMAT_UNSUPPORTED")
	}
	return nil
}

// PruneJournal removes journal entries older than the retention window.
type PruneJournal struct {
	Before time.Time
	Result *int64
}

func (PruneJournal) Type() string { return "docexport:journal:prune" }

func (PruneJournal) Validate() error { return nil }

func validateColumns(columns []export.ColumnDescriptor) error {
	if len(columns) == 0 {
		return errors.New("at least one column is required", errors.CategoryValidation).
			WithTextCode("COLUMNS_REQUIRED")
	}
	return nil
}
