package export

import (
	"fmt"
	"time"
)

// Space reserved by the default decorators.
const (
	DefaultHeaderHeightMm = 30.0
	DefaultFooterHeightMm = 20.0
)

const (
	decorationInset = 10.0
	mutedGray       = 100
	ruleGray        = 200
)

// HeaderInfo feeds DefaultHeader.
type HeaderInfo struct {
	Title       string
	DateRange   string
	CompanyName string
}

// FooterInfo feeds DefaultFooter. An empty Text is replaced by a generated-on line.
type FooterInfo struct {
	Text        string
	GeneratedAt time.Time
}

// DefaultHeader draws the title, optional period and company name, the page
// counter and a divider rule.
func DefaultHeader(info HeaderInfo) PageDecorator {
	return func(canvas PageCanvas, pageNum, totalPages int) {
		width, _ := canvas.PageSize()

		canvas.SetFont(FontBold, 16)
		canvas.SetTextGray(0)
		canvas.Text(decorationInset, 15, info.Title, AlignLeft)

		canvas.SetFont(FontRegular, 10)
		canvas.SetTextGray(mutedGray)
		if info.DateRange != "" {
			canvas.Text(decorationInset, 22, "Period: "+info.DateRange, AlignLeft)
		}
		if info.CompanyName != "" {
			canvas.Text(width-decorationInset, 15, info.CompanyName, AlignRight)
		}

		canvas.SetFont(FontItalic, 8)
		canvas.Text(width-decorationInset, 22, pageCounter(pageNum, totalPages), AlignRight)

		canvas.SetDrawGray(ruleGray)
		canvas.Line(decorationInset, 25, width-decorationInset, 25)
	}
}

// DefaultFooter draws a divider rule, the footer text and the page counter.
func DefaultFooter(info FooterInfo) PageDecorator {
	text := info.Text
	if text == "" {
		generated := info.GeneratedAt
		if generated.IsZero() {
			generated = time.Now()
		}
		text = "Generated on " + generated.Format("01/02/2006, 3:04 PM")
	}

	return func(canvas PageCanvas, pageNum, totalPages int) {
		width, height := canvas.PageSize()

		canvas.SetDrawGray(ruleGray)
		canvas.Line(decorationInset, height-15, width-decorationInset, height-15)

		canvas.SetFont(FontRegular, 8)
		canvas.SetTextGray(mutedGray)
		canvas.Text(decorationInset, height-10, text, AlignLeft)

		canvas.SetFont(FontItalic, 8)
		canvas.Text(width-decorationInset, height-10, pageCounter(pageNum, totalPages), AlignRight)
	}
}

func pageCounter(pageNum, totalPages int) string {
	return fmt.Sprintf("Page %d of %d", pageNum, totalPages)
}
