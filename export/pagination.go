package export

import (
	"fmt"
	"math"
)

// SourceRegion is a vertical band of the raster, in pixels.
type SourceRegion struct {
	Y      int
	Height int
}

// End returns the first row after the region.
func (r SourceRegion) End() int {
	return r.Y + r.Height
}

// Rect is a placement on the output page, in millimetres.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Page is one output page and the raster slice placed on it.
type Page struct {
	Index  int
	Source SourceRegion
	Dest   Rect
}

// Paginate splits rasterHeight pixels into consecutive slices of at most
// sliceHeight pixels. The last slice keeps its natural height.
func Paginate(rasterHeight, sliceHeight int) ([]Page, error) {
	if rasterHeight <= 0 {
		return nil, NewError(KindGeometry, fmt.Sprintf("raster height must be positive, got %d", rasterHeight), nil)
	}
	if sliceHeight <= 0 {
		return nil, NewError(KindGeometry, fmt.Sprintf("content height must be positive, got %d", sliceHeight), nil)
	}

	count := (rasterHeight + sliceHeight - 1) / sliceHeight
	pages := make([]Page, 0, count)
	for i := 0; i < count; i++ {
		y := i * sliceHeight
		pages = append(pages, Page{
			Index: i,
			Source: SourceRegion{
				Y:      y,
				Height: min(sliceHeight, rasterHeight-y),
			},
		})
	}
	return pages, nil
}

// Scale is the shared horizontal factor mapping raster pixels to millimetres.
func Scale(rasterWidth int, geometry PageGeometry) (float64, error) {
	if rasterWidth <= 0 {
		return 0, NewError(KindGeometry, fmt.Sprintf("raster width must be positive, got %d", rasterWidth), nil)
	}
	if err := geometry.Validate(); err != nil {
		return 0, err
	}
	return geometry.ContentWidth() / float64(rasterWidth), nil
}

// SliceHeight converts the page content height into whole raster rows using
// the shared scale, so every slice boundary falls on a pixel row.
func SliceHeight(rasterWidth int, geometry PageGeometry) (int, error) {
	scale, err := Scale(rasterWidth, geometry)
	if err != nil {
		return 0, err
	}
	rows := int(math.Floor(geometry.ContentHeight()/scale + 1e-9))
	if rows < 1 {
		rows = 1
	}
	return rows, nil
}

// ComputePages paginates a raster across pages of the given geometry. All
// pages share one horizontal scale factor.
func ComputePages(rasterHeight, rasterWidth int, geometry PageGeometry) ([]Page, error) {
	scale, err := Scale(rasterWidth, geometry)
	if err != nil {
		return nil, err
	}
	sliceHeight, err := SliceHeight(rasterWidth, geometry)
	if err != nil {
		return nil, err
	}
	pages, err := Paginate(rasterHeight, sliceHeight)
	if err != nil {
		return nil, err
	}
	for i := range pages {
		pages[i].Dest = Rect{
			X:      geometry.Margin,
			Y:      geometry.ContentTop(),
			Width:  geometry.ContentWidth(),
			Height: float64(pages[i].Source.Height) * scale,
		}
	}
	return pages, nil
}

// FitSingle places the whole raster on one page, scaled to the content width
// with its aspect ratio preserved.
func FitSingle(rasterHeight, rasterWidth int, geometry PageGeometry) (Page, error) {
	if rasterHeight <= 0 {
		return Page{}, NewError(KindGeometry, fmt.Sprintf("raster height must be positive, got %d", rasterHeight), nil)
	}
	scale, err := Scale(rasterWidth, geometry)
	if err != nil {
		return Page{}, err
	}
	return Page{
		Index:  0,
		Source: SourceRegion{Y: 0, Height: rasterHeight},
		Dest: Rect{
			X:      geometry.Margin,
			Y:      geometry.ContentTop(),
			Width:  geometry.ContentWidth(),
			Height: float64(rasterHeight) * scale,
		},
	}, nil
}

// FitClamped places the whole raster on page index, scaled to the content
// width. A raster taller than the content area is squeezed to its height.
func FitClamped(index, rasterHeight, rasterWidth int, geometry PageGeometry) (Page, error) {
	page, err := FitSingle(rasterHeight, rasterWidth, geometry)
	if err != nil {
		return Page{}, err
	}
	page.Index = index
	page.Dest.Height = math.Min(page.Dest.Height, geometry.ContentHeight())
	return page, nil
}

// checkCoverage verifies that pages tile [0, rasterHeight) in index order.
func checkCoverage(pages []Page, rasterHeight int) error {
	next := 0
	for i, page := range pages {
		if page.Index != i {
			return NewError(KindPaginationConsistency, fmt.Sprintf("page %d has index %d", i, page.Index), nil)
		}
		if page.Source.Y != next || page.Source.Height <= 0 {
			return NewError(KindPaginationConsistency, fmt.Sprintf("page %d source region [%d,%d) does not continue at %d", i, page.Source.Y, page.Source.End(), next), nil)
		}
		next = page.Source.End()
	}
	if next != rasterHeight {
		return NewError(KindPaginationConsistency, fmt.Sprintf("pages cover %d of %d raster rows", next, rasterHeight), nil)
	}
	return nil
}
