package export

import (
	"bufio"
	"context"
	"io"
	"strings"
)

const (
	csvSeparator = ","
	csvLineBreak = "\n"
)

// DelimitedSerializer writes comma separated text where every field is quoted.
// Lines are separated by "\n" with no trailing line break.
type DelimitedSerializer struct{}

// Write streams the header line followed by one line per row.
func (s DelimitedSerializer) Write(ctx context.Context, w io.Writer, rows []Row, columns []ColumnDescriptor) (RenderStats, error) {
	if err := validateColumns(columns); err != nil {
		return RenderStats{}, err
	}

	cw := &countingWriter{w: w}
	buf := bufio.NewWriter(cw)

	headers := make([]string, len(columns))
	for i, col := range columns {
		headers[i] = col.Label()
	}
	if _, err := buf.WriteString(joinQuoted(headers)); err != nil {
		return RenderStats{}, err
	}

	stats := RenderStats{}
	fields := make([]string, len(columns))
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		cells, err := resolveCells(row, columns)
		if err != nil {
			return stats, err
		}
		for i, cell := range cells {
			fields[i] = cell.String()
		}
		if _, err := buf.WriteString(csvLineBreak + joinQuoted(fields)); err != nil {
			return stats, err
		}
		stats.Rows++
	}

	if err := buf.Flush(); err != nil {
		return stats, err
	}
	stats.Bytes = cw.count
	return stats, nil
}

// ToDelimitedText serializes rows into a string.
func ToDelimitedText(rows []Row, columns []ColumnDescriptor) (string, error) {
	var sb strings.Builder
	if _, err := (DelimitedSerializer{}).Write(context.Background(), &sb, rows, columns); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func joinQuoted(fields []string) string {
	quoted := make([]string, len(fields))
	for i, field := range fields {
		quoted[i] = quoteField(field)
	}
	return strings.Join(quoted, csvSeparator)
}

func quoteField(field string) string {
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}
