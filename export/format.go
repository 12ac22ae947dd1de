package export

import "strings"

// NormalizeFormat coerces format values into known aliases.
func NormalizeFormat(format Format) Format {
	normalized := strings.ToLower(strings.TrimSpace(string(format)))
	switch normalized {
	case "pdf", "single":
		return FormatPDFSingle
	case "paginated", "pdf-multi":
		return FormatPDFPaginated
	case "multipage", "pdf-pages":
		return FormatPDFMultiPage
	case "excel", "xls":
		return FormatXLSX
	case "text/csv", "delimited":
		return FormatCSV
	default:
		return Format(normalized)
	}
}

// Known reports whether format is one of the supported formats.
func (f Format) Known() bool {
	switch f {
	case FormatPDFSingle, FormatPDFPaginated, FormatPDFMultiPage, FormatCSV, FormatXLSX, FormatPrint:
		return true
	default:
		return false
	}
}

func contentTypeForFormat(format Format) string {
	switch format {
	case FormatPDFSingle, FormatPDFPaginated, FormatPDFMultiPage:
		return "application/pdf"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}
