package exportchromium

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/chromedp/cdproto/page"
	"github.com/goliatone/go-docexport/export"
)

const defaultPrintScale = 1.0

var lengthPattern = regexp.MustCompile(`^\s*([0-9]+(?:\.[0-9]+)?)\s*([a-zA-Z]*)\s*$`)

var paperSizesInches = map[string]struct {
	width  float64
	height float64
}{
	"A3":     {width: 11.69, height: 16.54},
	"A4":     {width: 8.27, height: 11.69},
	"A5":     {width: 5.83, height: 8.27},
	"LETTER": {width: 8.5, height: 11},
	"LEGAL":  {width: 8.5, height: 14},
}

// PrintSettings controls how the print surface lays out the composed document.
type PrintSettings struct {
	PageSize          string
	Landscape         *bool
	PrintBackground   *bool
	PreferCSSPageSize *bool
	Scale             float64
	MarginTop         string
	MarginBottom      string
	MarginLeft        string
	MarginRight       string
	// BaseURL is injected as <base> when the document carries none.
	BaseURL string
	// BlockExternalAssets stops the print tab from fetching http(s) resources.
	BlockExternalAssets bool
}

func (s PrintSettings) withDefaults() PrintSettings {
	if s.Scale == 0 {
		s.Scale = defaultPrintScale
	}
	if s.PrintBackground == nil {
		s.PrintBackground = boolPtr(true)
	}
	return s
}

func buildPrintToPDFParams(opts PrintSettings) (*page.PrintToPDFParams, error) {
	params := page.PrintToPDF()

	scale := opts.Scale
	if scale == 0 {
		scale = defaultPrintScale
	}
	if scale < 0.1 || scale > 2.0 {
		return nil, export.NewError(export.KindValidation, "print scale must be between 0.1 and 2.0", nil)
	}
	params = params.WithScale(scale)

	if opts.Landscape != nil {
		params = params.WithLandscape(*opts.Landscape)
	}
	if opts.PrintBackground != nil {
		params = params.WithPrintBackground(*opts.PrintBackground)
	}

	preferCSS := opts.PageSize == ""
	if opts.PreferCSSPageSize != nil {
		preferCSS = *opts.PreferCSSPageSize
	}
	if preferCSS {
		params = params.WithPreferCSSPageSize(true)
	}

	if opts.PageSize != "" {
		size, ok := paperSizesInches[strings.ToUpper(opts.PageSize)]
		if !ok {
			return nil, export.NewError(export.KindValidation, fmt.Sprintf("unsupported paper size: %s", opts.PageSize), nil)
		}
		params = params.WithPaperWidth(size.width).WithPaperHeight(size.height)
	}

	margins := []struct {
		raw   string
		apply func(float64)
	}{
		{opts.MarginTop, func(v float64) { params = params.WithMarginTop(v) }},
		{opts.MarginBottom, func(v float64) { params = params.WithMarginBottom(v) }},
		{opts.MarginLeft, func(v float64) { params = params.WithMarginLeft(v) }},
		{opts.MarginRight, func(v float64) { params = params.WithMarginRight(v) }},
	}
	for _, margin := range margins {
		if margin.raw == "" {
			continue
		}
		value, err := parseLengthInches(margin.raw)
		if err != nil {
			return nil, err
		}
		margin.apply(value)
	}

	return params, nil
}

func parseLengthInches(value string) (float64, error) {
	matches := lengthPattern.FindStringSubmatch(value)
	if len(matches) != 3 {
		return 0, export.NewError(export.KindValidation, fmt.Sprintf("invalid length: %s", value), nil)
	}

	unit := strings.ToLower(matches[2])
	if unit == "" {
		unit = "in"
	}
	amount, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, export.NewError(export.KindValidation, fmt.Sprintf("invalid length: %s", value), err)
	}

	switch unit {
	case "in":
		return amount, nil
	case "cm":
		return amount / 2.54, nil
	case "mm":
		return amount / 25.4, nil
	case "pt":
		return amount / 72.0, nil
	case "px":
		return amount / 96.0, nil
	default:
		return 0, export.NewError(export.KindValidation, fmt.Sprintf("unsupported length unit: %s", unit), nil)
	}
}

func injectBaseURL(document, baseURL string) string {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return document
	}

	lower := strings.ToLower(document)
	if strings.Contains(lower, "<base") {
		return document
	}

	baseTag := fmt.Sprintf(`<base href="%s">`, html.EscapeString(baseURL))
	if headIdx := strings.Index(lower, "<head"); headIdx >= 0 {
		if end := strings.Index(lower[headIdx:], ">"); end >= 0 {
			pos := headIdx + end + 1
			return document[:pos] + baseTag + document[pos:]
		}
	}
	if htmlIdx := strings.Index(lower, "<html"); htmlIdx >= 0 {
		if end := strings.Index(lower[htmlIdx:], ">"); end >= 0 {
			pos := htmlIdx + end + 1
			return document[:pos] + "<head>" + baseTag + "</head>" + document[pos:]
		}
	}
	return baseTag + document
}

func boolPtr(value bool) *bool {
	return &value
}
