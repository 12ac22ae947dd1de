package export

import (
	"bytes"
	"io"
	"time"

	"github.com/go-pdf/fpdf"
)

// DocumentMeta describes a generated document.
type DocumentMeta struct {
	Title       string
	Subject     string
	Author      string
	Keywords    string
	Creator     string
	Format      Format
	Orientation Orientation
	PageFormat  PageFormat
	Compress    bool
	CreatedAt   time.Time
}

// Document is an ordered sequence of pages. It is finalized when returned by
// the assembler and cannot receive further pages.
type Document struct {
	ID       string
	Meta     DocumentMeta
	Geometry PageGeometry
	Pages    []Page

	pdf       *fpdf.Fpdf
	output    []byte
	finalized bool
}

// PageCount returns the number of assembled pages.
func (d *Document) PageCount() int {
	if d == nil {
		return 0
	}
	return len(d.Pages)
}

// SourceFormat returns the format the document was generated as. Documents
// assembled without one report single or paginated by their page count.
func (d *Document) SourceFormat() Format {
	if d == nil {
		return FormatPDFSingle
	}
	if d.Meta.Format != "" {
		return d.Meta.Format
	}
	if len(d.Pages) > 1 {
		return FormatPDFPaginated
	}
	return FormatPDFSingle
}

// Finalized reports whether the document is closed for mutation.
func (d *Document) Finalized() bool {
	return d != nil && d.finalized
}

// Bytes returns the serialized PDF.
func (d *Document) Bytes() ([]byte, error) {
	if d == nil {
		return nil, NewError(KindInternal, "document is nil", nil)
	}
	if !d.finalized {
		return nil, NewError(KindInternal, "document is not finalized", nil)
	}
	out := make([]byte, len(d.output))
	copy(out, d.output)
	return out, nil
}

// Size returns the serialized PDF length in bytes.
func (d *Document) Size() int64 {
	if d == nil {
		return 0
	}
	return int64(len(d.output))
}

// WriteTo writes the serialized PDF.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	if d == nil {
		return 0, NewError(KindInternal, "document is nil", nil)
	}
	if !d.finalized {
		return 0, NewError(KindInternal, "document is not finalized", nil)
	}
	n, err := w.Write(d.output)
	return int64(n), err
}

// Reader returns a reader over the serialized PDF.
func (d *Document) Reader() (io.Reader, error) {
	data, err := d.Bytes()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

func (d *Document) finalize() error {
	if d.finalized {
		return nil
	}
	var buf bytes.Buffer
	if err := d.pdf.Output(&buf); err != nil {
		return NewError(KindInternal, "pdf output failed", err)
	}
	d.output = buf.Bytes()
	d.pdf = nil
	d.finalized = true
	return nil
}
