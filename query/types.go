package query

import (
	"time"

	"github.com/goliatone/go-docexport/export"
	"github.com/goliatone/go-errors"
)

// ExportHistory requests journal entries, newest first.
type ExportHistory struct {
	Filter export.JournalFilter
}

func (ExportHistory) Type() string { return "docexport:history" }

func (msg ExportHistory) Validate() error {
	if msg.Filter.Limit < 0 {
		return errors.New("limit must not be negative", errors.CategoryValidation).
			WithTextCode("LIMIT_INVALID")
	}
	if !msg.Filter.Since.IsZero() && !msg.Filter.Until.IsZero() && !msg.Filter.Since.Before(msg.Filter.Until) {
		return errors.New("since must be before until", errors.CategoryValidation).
			WithTextCode("RANGE_INVALID")
	}
	if msg.Filter.Format != "" && !export.NormalizeFormat(msg.Filter.Format).Known() {
		return errors.New("unsupported export format", errors.CategoryValidation).
			WithTextCode("FORMAT_UNSUPPORTED")
	}
	return nil
}

// ExportSummary requests per-format totals over a window.
type ExportSummary struct {
	Since time.Time
	Until time.Time
}

func (ExportSummary) Type() string { return "docexport:summary" }

func (ExportSummary) Validate() error { return nil }

// FormatTotals aggregates journal entries for one format.
type FormatTotals struct {
	Format    export.Format
	Succeeded int
	Failed    int
	Rows      int64
	Bytes     int64
	Pages     int
}
