package export

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ValueType tags how a column's values are interpreted and formatted.
type ValueType string

const (
	ValueString   ValueType = "string"
	ValueNumber   ValueType = "number"
	ValueCurrency ValueType = "currency"
	ValueDate     ValueType = "date"
	ValueChip     ValueType = "chip"
)

const (
	dateLayout     = "2006-01-02"
	currencyDigits = 2
)

// Value is a typed cell value. The zero Value is null.
type Value struct {
	kind  ValueType
	text  string
	num   float64
	date  time.Time
	valid bool
}

func StringValue(s string) Value { return Value{kind: ValueString, text: s, valid: true} }

func ChipValue(s string) Value { return Value{kind: ValueChip, text: s, valid: true} }

func NumberValue(f float64) Value { return Value{kind: ValueNumber, num: f, valid: true} }

func CurrencyValue(f float64) Value { return Value{kind: ValueCurrency, num: f, valid: true} }

// DateValue keeps only the calendar date of t, as seen in t's location.
func DateValue(t time.Time) Value {
	y, m, d := t.Date()
	return Value{kind: ValueDate, date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), valid: true}
}

// NullValue is an empty cell.
func NullValue() Value { return Value{} }

// Kind returns the value's type tag; null values report an empty tag.
func (v Value) Kind() ValueType { return v.kind }

func (v Value) IsNull() bool { return !v.valid }

// Float returns the numeric payload of number and currency values.
func (v Value) Float() (float64, bool) {
	if !v.valid || (v.kind != ValueNumber && v.kind != ValueCurrency) {
		return 0, false
	}
	return v.num, true
}

// Date returns the payload of date values at midnight UTC.
func (v Value) Date() (time.Time, bool) {
	if !v.valid || v.kind != ValueDate {
		return time.Time{}, false
	}
	return v.date, true
}

// String renders the canonical text shared by every tabular format.
func (v Value) String() string {
	if !v.valid {
		return ""
	}
	switch v.kind {
	case ValueNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case ValueCurrency:
		return strconv.FormatFloat(v.num, 'f', currencyDigits, 64)
	case ValueDate:
		return v.date.Format(dateLayout)
	default:
		return v.text
	}
}

// CoerceValue converts a raw row value into a Value of the requested type.
// An empty type infers the tag from the Go type of raw.
func CoerceValue(raw any, kind ValueType) (Value, error) {
	if raw == nil {
		return NullValue(), nil
	}
	if v, ok := raw.(Value); ok {
		return v, nil
	}

	switch kind {
	case "":
		return inferValue(raw), nil
	case ValueString:
		return StringValue(stringify(raw)), nil
	case ValueChip:
		return ChipValue(stringify(raw)), nil
	case ValueNumber, ValueCurrency:
		f, ok := coerceFloat(raw)
		if !ok {
			return Value{}, fmt.Errorf("%v is not a number", raw)
		}
		if kind == ValueCurrency {
			return CurrencyValue(f), nil
		}
		return NumberValue(f), nil
	case ValueDate:
		t, ok := coerceTime(raw)
		if !ok {
			return Value{}, fmt.Errorf("%v is not a date", raw)
		}
		return DateValue(t), nil
	default:
		return Value{}, fmt.Errorf("unknown value type %q", kind)
	}
}

func inferValue(raw any) Value {
	switch v := raw.(type) {
	case string:
		return StringValue(v)
	case time.Time:
		return DateValue(v)
	case *time.Time:
		if v == nil {
			return NullValue()
		}
		return DateValue(*v)
	case bool:
		return StringValue(strconv.FormatBool(v))
	}
	if f, ok := coerceNumeric(raw); ok {
		return NumberValue(f)
	}
	return StringValue(stringify(raw))
}

// coerceNumeric accepts only numeric Go types.
func coerceNumeric(value any) (float64, bool) {
	switch value.(type) {
	case string:
		return 0, false
	}
	return coerceFloat(value)
}

func coerceFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	dateLayout,
}

func coerceTime(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case *time.Time:
		if v == nil {
			return time.Time{}, false
		}
		return *v, true
	case string:
		raw := strings.TrimSpace(v)
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, raw); err == nil {
				return parsed, true
			}
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return fmt.Sprint(value)
}
