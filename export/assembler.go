package export

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/google/uuid"
)

// FontStyle selects a core font variant for decorators.
type FontStyle string

const (
	FontRegular FontStyle = ""
	FontBold    FontStyle = "B"
	FontItalic  FontStyle = "I"
)

// TextAlign anchors text relative to its x coordinate.
type TextAlign int

const (
	AlignLeft TextAlign = iota
	AlignRight
)

// PageCanvas is the drawing surface handed to header and footer decorators.
// Coordinates are millimetres from the top-left corner of the page.
type PageCanvas interface {
	PageSize() (width, height float64)
	SetFont(style FontStyle, size float64)
	SetTextGray(level int)
	SetDrawGray(level int)
	Text(x, y float64, text string, align TextAlign)
	Line(x1, y1, x2, y2 float64)
}

// Assembler places raster slices onto document pages. Format is recorded on
// the document metadata.
type Assembler struct {
	Now         func() time.Time
	IDGenerator func() string
	Format      Format
}

// NewAssembler creates an assembler with default clock and IDs.
func NewAssembler() Assembler {
	return Assembler{Now: time.Now, IDGenerator: uuid.NewString}
}

// Assemble writes pages in index order and returns the finalized document.
// opts must already be normalized.
func (a Assembler) Assemble(ctx context.Context, raster RasterImage, geometry PageGeometry, pages []Page, opts Options) (*Document, error) {
	if raster.Empty() {
		return nil, NewError(KindRasterization, "raster snapshot is missing", nil)
	}
	if err := geometry.Validate(); err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, NewError(KindPaginationConsistency, "no pages to assemble", nil)
	}

	doc := a.newDocument(geometry, opts)
	writer := newDocumentWriter(doc, opts, len(pages))
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := writer.place(raster, page); err != nil {
			return nil, err
		}
	}

	if err := doc.finalize(); err != nil {
		return nil, err
	}
	return doc, nil
}

// AssembleEach places rasters[i] on pages[i], one captured surface per page.
// opts must already be normalized.
func (a Assembler) AssembleEach(ctx context.Context, rasters []RasterImage, geometry PageGeometry, pages []Page, opts Options) (*Document, error) {
	if len(rasters) == 0 {
		return nil, NewError(KindRasterization, "no raster snapshots to assemble", nil)
	}
	if len(pages) != len(rasters) {
		return nil, NewError(KindPaginationConsistency, fmt.Sprintf("%d pages for %d rasters", len(pages), len(rasters)), nil)
	}
	if err := geometry.Validate(); err != nil {
		return nil, err
	}

	doc := a.newDocument(geometry, opts)
	writer := newDocumentWriter(doc, opts, len(pages))
	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if rasters[i].Empty() {
			return nil, NewError(KindRasterization, fmt.Sprintf("raster snapshot %d is missing", i), nil)
		}
		if err := writer.place(rasters[i], page); err != nil {
			return nil, err
		}
	}

	if err := doc.finalize(); err != nil {
		return nil, err
	}
	return doc, nil
}

func (a Assembler) newDocument(geometry PageGeometry, opts Options) *Document {
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	idGen := uuid.NewString
	if a.IDGenerator != nil {
		idGen = a.IDGenerator
	}

	meta := DocumentMeta{
		Title:       opts.Title,
		Subject:     opts.Subject,
		Author:      opts.Author,
		Keywords:    opts.Keywords,
		Creator:     opts.Creator,
		Format:      a.Format,
		Orientation: opts.Orientation,
		PageFormat:  opts.PageFormat,
		Compress:    opts.CompressEnabled(),
		CreatedAt:   now(),
	}

	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: geometry.PageWidth, Ht: geometry.PageHeight},
	})
	pdf.SetMargins(geometry.Margin, geometry.Margin, geometry.Margin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCompression(meta.Compress)
	pdf.SetTitle(meta.Title, true)
	if meta.Subject != "" {
		pdf.SetSubject(meta.Subject, true)
	}
	if meta.Author != "" {
		pdf.SetAuthor(meta.Author, true)
	}
	if meta.Keywords != "" {
		pdf.SetKeywords(meta.Keywords, true)
	}
	if meta.Creator != "" {
		pdf.SetCreator(meta.Creator, true)
	}
	pdf.SetCreationDate(meta.CreatedAt)

	return &Document{
		ID:       idGen(),
		Meta:     meta,
		Geometry: geometry,
		Pages:    make([]Page, 0),
		pdf:      pdf,
	}
}

// documentWriter is the accumulating cursor over a document's page stream.
type documentWriter struct {
	doc    *Document
	canvas *fpdfCanvas
	header PageDecorator
	footer PageDecorator
	total  int
	next   int
}

func newDocumentWriter(doc *Document, opts Options, total int) *documentWriter {
	return &documentWriter{
		doc:    doc,
		canvas: newFPDFCanvas(doc.pdf),
		header: opts.RenderHeader,
		footer: opts.RenderFooter,
		total:  total,
	}
}

func (w *documentWriter) place(raster RasterImage, page Page) error {
	if w.doc.finalized {
		return NewError(KindInternal, "document is finalized", nil)
	}
	if page.Index != w.next {
		return NewError(KindPaginationConsistency, fmt.Sprintf("page %d placed out of order, expected %d", page.Index, w.next), nil)
	}

	slice, err := raster.Slice(page.Source)
	if err != nil {
		return err
	}
	data, err := encodePNG(slice, w.doc.Meta.Compress)
	if err != nil {
		return NewError(KindInternal, "encode page slice", err)
	}

	pdf := w.doc.pdf
	pdf.AddPage()
	pageNum := page.Index + 1
	if w.header != nil {
		w.header(w.canvas, pageNum, w.total)
	}

	name := fmt.Sprintf("page-%d", page.Index)
	options := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(name, options, bytes.NewReader(data))
	pdf.ImageOptions(name, page.Dest.X, page.Dest.Y, page.Dest.Width, page.Dest.Height, false, options, 0, "")

	if w.footer != nil {
		w.footer(w.canvas, pageNum, w.total)
	}

	if pdf.Err() {
		return NewError(KindInternal, fmt.Sprintf("assemble page %d", pageNum), pdf.Error())
	}

	w.doc.Pages = append(w.doc.Pages, page)
	w.next++
	return nil
}

type fpdfCanvas struct {
	pdf       *fpdf.Fpdf
	translate func(string) string
	style     FontStyle
	size      float64
	fontSet   bool
}

func newFPDFCanvas(pdf *fpdf.Fpdf) *fpdfCanvas {
	return &fpdfCanvas{
		pdf:       pdf,
		translate: pdf.UnicodeTranslatorFromDescriptor(""),
		size:      10,
	}
}

func (c *fpdfCanvas) PageSize() (float64, float64) {
	return c.pdf.GetPageSize()
}

func (c *fpdfCanvas) SetFont(style FontStyle, size float64) {
	c.style = style
	c.size = size
	c.fontSet = true
	c.pdf.SetFont("Helvetica", string(style), size)
}

func (c *fpdfCanvas) SetTextGray(level int) {
	c.pdf.SetTextColor(level, level, level)
}

func (c *fpdfCanvas) SetDrawGray(level int) {
	c.pdf.SetDrawColor(level, level, level)
}

func (c *fpdfCanvas) Text(x, y float64, text string, align TextAlign) {
	if !c.fontSet {
		c.SetFont(c.style, c.size)
	}
	encoded := c.translate(text)
	if align == AlignRight {
		x -= c.pdf.GetStringWidth(encoded)
	}
	c.pdf.Text(x, y, encoded)
}

func (c *fpdfCanvas) Line(x1, y1, x2, y2 float64) {
	c.pdf.Line(x1, y1, x2, y2)
}
