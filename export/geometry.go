package export

import (
	"fmt"
	"strings"
)

// Orientation is the page orientation.
type Orientation string

const (
	OrientationPortrait  Orientation = "portrait"
	OrientationLandscape Orientation = "landscape"
)

// PageFormat names a paper size.
type PageFormat string

const (
	PageFormatA4     PageFormat = "a4"
	PageFormatLetter PageFormat = "letter"
	PageFormatLegal  PageFormat = "legal"
)

// pageSizesMM holds portrait dimensions in millimetres.
var pageSizesMM = map[PageFormat]struct {
	width  float64
	height float64
}{
	PageFormatA4:     {width: 210, height: 297},
	PageFormatLetter: {width: 215.9, height: 279.4},
	PageFormatLegal:  {width: 215.9, height: 355.6},
}

// PageSize returns the page dimensions in millimetres for a format and orientation.
func PageSize(format PageFormat, orientation Orientation) (float64, float64, error) {
	size, ok := pageSizesMM[PageFormat(strings.ToLower(string(format)))]
	if !ok {
		return 0, 0, NewError(KindGeometry, fmt.Sprintf("unsupported page format: %s", format), nil)
	}
	if orientation == OrientationLandscape {
		return size.height, size.width, nil
	}
	return size.width, size.height, nil
}

// PageGeometry describes a page and its reserved bands, in millimetres.
type PageGeometry struct {
	PageWidth    float64
	PageHeight   float64
	Margin       float64
	HeaderHeight float64
	FooterHeight float64
}

// GeometryFromOptions derives the page geometry for normalized options.
func GeometryFromOptions(opts Options) (PageGeometry, error) {
	width, height, err := PageSize(opts.PageFormat, opts.Orientation)
	if err != nil {
		return PageGeometry{}, err
	}
	geometry := PageGeometry{
		PageWidth:    width,
		PageHeight:   height,
		Margin:       opts.MarginMm,
		HeaderHeight: opts.HeaderHeightMm,
		FooterHeight: opts.FooterHeightMm,
	}
	if err := geometry.Validate(); err != nil {
		return PageGeometry{}, err
	}
	return geometry, nil
}

// ContentWidth is the page width minus both side margins.
func (g PageGeometry) ContentWidth() float64 {
	return g.PageWidth - 2*g.Margin
}

// ContentHeight is the page height minus margins and reserved bands.
func (g PageGeometry) ContentHeight() float64 {
	return g.PageHeight - 2*g.Margin - g.HeaderHeight - g.FooterHeight
}

// ContentTop is the y coordinate where placed content starts.
func (g PageGeometry) ContentTop() float64 {
	return g.Margin + g.HeaderHeight
}

// Validate reports a geometry error when the content area is empty.
func (g PageGeometry) Validate() error {
	if g.Margin < 0 || g.HeaderHeight < 0 || g.FooterHeight < 0 {
		return NewError(KindGeometry, "margins and reserved bands must not be negative", nil)
	}
	if g.ContentWidth() <= 0 {
		return NewError(KindGeometry, fmt.Sprintf("content width must be positive, got %.2f", g.ContentWidth()), nil)
	}
	if g.ContentHeight() <= 0 {
		return NewError(KindGeometry, fmt.Sprintf("content height must be positive, got %.2f", g.ContentHeight()), nil)
	}
	return nil
}
