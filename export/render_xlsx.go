package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	excelMaxRows       = 1048576
	excelMaxSheetName  = 31
	defaultSheetName   = "Sheet1"
	defaultDateFormat  = "yyyy-mm-dd"
	defaultCurrencyFmt = "0.00"
)

// WorkbookSerializer writes a single-sheet XLSX workbook keyed by display header.
type WorkbookSerializer struct{}

// Write renders rows into a workbook with a bold header row.
func (s WorkbookSerializer) Write(ctx context.Context, w io.Writer, rows []Row, columns []ColumnDescriptor, sheetName string) (RenderStats, error) {
	if err := validateColumns(columns); err != nil {
		return RenderStats{}, err
	}
	if err := checkUniqueHeaders(columns); err != nil {
		return RenderStats{}, err
	}
	if len(rows)+1 > excelMaxRows {
		return RenderStats{}, NewError(KindSerialization, "xlsx row limit exceeded", nil)
	}

	file := excelize.NewFile()
	defer func() {
		_ = file.Close()
	}()

	sheetName = SanitizeSheetName(sheetName)
	if current := file.GetSheetName(0); current != sheetName {
		if err := file.SetSheetName(current, sheetName); err != nil {
			return RenderStats{}, NewError(KindSerialization, "rename sheet", err)
		}
	}

	stream, err := file.NewStreamWriter(sheetName)
	if err != nil {
		return RenderStats{}, NewError(KindSerialization, "open sheet stream", err)
	}
	styles, err := buildWorkbookStyles(file)
	if err != nil {
		return RenderStats{}, NewError(KindSerialization, "build styles", err)
	}

	headers := make([]interface{}, len(columns))
	for i, col := range columns {
		headers[i] = excelize.Cell{StyleID: styles.headerID, Value: col.Label()}
	}
	if err := stream.SetRow("A1", headers); err != nil {
		return RenderStats{}, NewError(KindSerialization, "write header row", err)
	}

	stats := RenderStats{}
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		values, err := resolveCells(row, columns)
		if err != nil {
			return stats, err
		}
		cells := make([]interface{}, len(values))
		for j, value := range values {
			cells[j] = styles.cell(value)
		}
		if err := stream.SetRow(fmt.Sprintf("A%d", i+2), cells); err != nil {
			return stats, NewError(KindSerialization, fmt.Sprintf("write row %d", i+1), err)
		}
		stats.Rows++
	}

	if err := stream.Flush(); err != nil {
		return stats, NewError(KindSerialization, "flush sheet", err)
	}

	cw := &countingWriter{w: w}
	if _, err := file.WriteTo(cw); err != nil {
		return stats, err
	}
	stats.Bytes = cw.count
	return stats, nil
}

// ToWorkbook serializes rows into XLSX bytes.
func ToWorkbook(rows []Row, columns []ColumnDescriptor, sheetName string) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := (WorkbookSerializer{}).Write(context.Background(), &buf, rows, columns, sheetName); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SanitizeSheetName applies Excel's sheet naming rules.
func SanitizeSheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return -1
		}
		return r
	}, name)
	name = trimSheetEdges(name)
	if runes := []rune(name); len(runes) > excelMaxSheetName {
		name = trimSheetEdges(string(runes[:excelMaxSheetName]))
	}
	if name == "" {
		return defaultSheetName
	}
	return name
}

// trimSheetEdges strips spaces and apostrophes from both ends until neither
// remains, so "  'Q1" cannot surface a leading apostrophe.
func trimSheetEdges(name string) string {
	for {
		trimmed := strings.Trim(strings.TrimSpace(name), "'")
		if trimmed == name {
			return name
		}
		name = trimmed
	}
}

func checkUniqueHeaders(columns []ColumnDescriptor) error {
	seen := make(map[string]string, len(columns))
	for _, col := range columns {
		label := col.Label()
		if field, ok := seen[label]; ok {
			return NewError(KindSerialization, fmt.Sprintf("columns %q and %q share header %q", field, col.Field, label), nil)
		}
		seen[label] = col.Field
	}
	return nil
}

type workbookStyles struct {
	headerID   int
	dateID     int
	currencyID int
}

func buildWorkbookStyles(file *excelize.File) (workbookStyles, error) {
	headerID, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return workbookStyles{}, err
	}
	dateID, err := newCustomStyle(file, defaultDateFormat)
	if err != nil {
		return workbookStyles{}, err
	}
	currencyID, err := newCustomStyle(file, defaultCurrencyFmt)
	if err != nil {
		return workbookStyles{}, err
	}
	return workbookStyles{headerID: headerID, dateID: dateID, currencyID: currencyID}, nil
}

func newCustomStyle(file *excelize.File, format string) (int, error) {
	return file.NewStyle(&excelize.Style{CustomNumFmt: &format})
}

func (s workbookStyles) cell(value Value) excelize.Cell {
	if value.IsNull() {
		return excelize.Cell{Value: ""}
	}
	switch value.Kind() {
	case ValueNumber:
		f, _ := value.Float()
		return excelize.Cell{Value: f}
	case ValueCurrency:
		f, _ := value.Float()
		return excelize.Cell{Value: f, StyleID: s.currencyID}
	case ValueDate:
		d, _ := value.Date()
		return excelize.Cell{Value: d, StyleID: s.dateID}
	default:
		return excelize.Cell{Value: value.String()}
	}
}
