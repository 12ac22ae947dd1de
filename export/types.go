package export

import (
	"context"
	"io"
	"time"
)

// Format is the export output format.
type Format string

const (
	FormatPDFSingle    Format = "pdf-single"
	FormatPDFPaginated Format = "pdf-paginated"
	FormatPDFMultiPage Format = "pdf-multipage"
	FormatCSV          Format = "csv"
	FormatXLSX         Format = "xlsx"
	FormatPrint        Format = "print"
)

// Extension returns the file extension used for a format.
func (f Format) Extension() string {
	switch f {
	case FormatPDFSingle, FormatPDFPaginated, FormatPDFMultiPage:
		return "pdf"
	case FormatCSV:
		return "csv"
	case FormatXLSX:
		return "xlsx"
	default:
		return ""
	}
}

// PageDecorator draws onto a page before or after its content is placed.
// pageNum is 1-based.
type PageDecorator func(canvas PageCanvas, pageNum, totalPages int)

// Options configures document generation.
type Options struct {
	Title          string      `validate:"max=256"`
	Subject        string      `validate:"max=256"`
	Author         string      `validate:"max=256"`
	Keywords       string      `validate:"max=512"`
	Creator        string      `validate:"max=256"`
	Orientation    Orientation `validate:"oneof=portrait landscape"`
	PageFormat     PageFormat  `validate:"oneof=a4 letter legal"`
	MarginMm       float64     `validate:"gte=0"`
	MarginSet      bool
	Compress       *bool
	HeaderHeightMm float64 `validate:"gte=0"`
	FooterHeightMm float64 `validate:"gte=0"`
	RenderHeader   PageDecorator `validate:"-"`
	RenderFooter   PageDecorator `validate:"-"`
}

// CompressEnabled reports the effective compress flag.
func (o Options) CompressEnabled() bool {
	if o.Compress == nil {
		return defaultCompress
	}
	return *o.Compress
}

// Snapshot is captured markup plus the stylesheets needed to present it.
type Snapshot struct {
	Markup      string
	Stylesheets []Stylesheet
	BaseURL     string
}

// Stylesheet is either a linked (Href) or an inline (Content) stylesheet.
type Stylesheet struct {
	Href    string
	Content string
}

// SnapshotSource captures the markup of the view being printed.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// SnapshotFunc adapts a function to a SnapshotSource.
type SnapshotFunc func(ctx context.Context) (Snapshot, error)

func (f SnapshotFunc) Snapshot(ctx context.Context) (Snapshot, error) {
	if f == nil {
		return Snapshot{}, NewError(KindRasterization, "snapshot func is nil", nil)
	}
	return f(ctx)
}

// ExportRequest selects an export strategy and carries its source.
type ExportRequest struct {
	Format          Format
	Options         Options
	Raster          RasterSource
	Rows            []Row
	VisibleRows     []Row
	CurrentViewOnly bool
	Columns         []ColumnDescriptor
	Filename        string
	SheetName       string
	Snapshot        SnapshotSource
	Print           PrintOptions
}

// ExportResult captures a completed export.
type ExportResult struct {
	ID       string
	Format   Format
	Filename string
	Rows     int64
	Bytes    int64
	Pages    int
	Document *Document
	Artifact *ArtifactRef
	Print    *PrintResult
}

// RenderStats capture serializer output.
type RenderStats struct {
	Rows  int64
	Bytes int64
}

// ArtifactMeta captures stored file metadata.
type ArtifactMeta struct {
	ContentType string
	Size        int64
	Filename    string
	CreatedAt   time.Time
}

// ArtifactRef references a stored file.
type ArtifactRef struct {
	Key  string
	Meta ArtifactMeta
}

// FileSink receives exported files.
type FileSink interface {
	Put(ctx context.Context, key string, r io.Reader, meta ArtifactMeta) (ArtifactRef, error)
}

// JournalEntry records the outcome of one facade operation.
type JournalEntry struct {
	ID         string
	Format     Format
	Filename   string
	Title      string
	Rows       int64
	Bytes      int64
	Pages      int
	Succeeded  bool
	ErrorKind  ErrorKind
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// JournalFilter filters journal listings.
type JournalFilter struct {
	Format    Format
	Succeeded *bool
	Since     time.Time
	Until     time.Time
	Limit     int
}

// Journal records export outcomes.
type Journal interface {
	Record(ctx context.Context, entry JournalEntry) error
	List(ctx context.Context, filter JournalFilter) ([]JournalEntry, error)
}

// Logger provides logging hooks.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Errorf(format string, args ...any)
}

// NopLogger is a no-op logger.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any) {}
func (NopLogger) Infof(string, ...any)  {}
func (NopLogger) Errorf(string, ...any) {}
