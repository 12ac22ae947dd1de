package export

import (
	"fmt"
	"strings"
)

// Row maps field keys to raw values. Missing fields render as empty cells.
type Row map[string]any

// Formatter renders a cell as display text. row is the full source row.
type Formatter func(value Value, row Row) string

// ColumnDescriptor describes one output column. Column order drives header
// order and cell order in every tabular format.
type ColumnDescriptor struct {
	Field  string    `json:"field"`
	Header string    `json:"header,omitempty"`
	Type   ValueType `json:"type,omitempty"`
	Format Formatter `json:"-"`
}

// Label returns the display header, falling back to the field key.
func (c ColumnDescriptor) Label() string {
	if c.Header != "" {
		return c.Header
	}
	return c.Field
}

// Cell resolves the typed value of this column for row. A formatter always
// yields a string value.
func (c ColumnDescriptor) Cell(row Row) (Value, error) {
	value, err := CoerceValue(row[c.Field], c.Type)
	if err != nil {
		return Value{}, NewError(KindSerialization, fmt.Sprintf("column %q: %v", c.Field, err), err)
	}
	if c.Format != nil {
		return StringValue(c.Format(value, row)), nil
	}
	return value, nil
}

func validateColumns(columns []ColumnDescriptor) error {
	if len(columns) == 0 {
		return NewError(KindSerialization, "at least one column is required", nil)
	}
	for i, col := range columns {
		if strings.TrimSpace(col.Field) == "" {
			return NewError(KindSerialization, fmt.Sprintf("column %d has no field", i), nil)
		}
		switch col.Type {
		case "", ValueString, ValueNumber, ValueCurrency, ValueDate, ValueChip:
		default:
			return NewError(KindSerialization, fmt.Sprintf("column %q has unknown type %q", col.Field, col.Type), nil)
		}
	}
	return nil
}

func resolveCells(row Row, columns []ColumnDescriptor) ([]Value, error) {
	cells := make([]Value, len(columns))
	for i, col := range columns {
		value, err := col.Cell(row)
		if err != nil {
			return nil, err
		}
		cells[i] = value
	}
	return cells, nil
}
