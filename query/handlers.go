package query

import (
	"context"
	"sort"

	"github.com/goliatone/go-docexport/export"
	"github.com/goliatone/go-errors"
)

// HistorySource lists journal entries.
type HistorySource interface {
	History(ctx context.Context, filter export.JournalFilter) ([]export.JournalEntry, error)
}

func historyRequired() error {
	return errors.New("export history source is required", errors.CategoryInternal).
		WithTextCode("HISTORY_REQUIRED")
}

// ExportHistoryHandler returns export history.
type ExportHistoryHandler struct {
	Source HistorySource
}

func NewExportHistoryHandler(source HistorySource) *ExportHistoryHandler {
	return &ExportHistoryHandler{Source: source}
}

func (h *ExportHistoryHandler) Query(ctx context.Context, msg ExportHistory) ([]export.JournalEntry, error) {
	if h == nil || h.Source == nil {
		return nil, historyRequired()
	}
	filter := msg.Filter
	if filter.Format != "" {
		filter.Format = export.NormalizeFormat(filter.Format)
	}
	entries, err := h.Source.History(ctx, filter)
	if err != nil {
		return nil, export.AsGoError(err)
	}
	return entries, nil
}

// ExportSummaryHandler totals journal entries per format.
type ExportSummaryHandler struct {
	Source HistorySource
}

func NewExportSummaryHandler(source HistorySource) *ExportSummaryHandler {
	return &ExportSummaryHandler{Source: source}
}

func (h *ExportSummaryHandler) Query(ctx context.Context, msg ExportSummary) ([]FormatTotals, error) {
	if h == nil || h.Source == nil {
		return nil, historyRequired()
	}
	entries, err := h.Source.History(ctx, export.JournalFilter{Since: msg.Since, Until: msg.Until})
	if err != nil {
		return nil, export.AsGoError(err)
	}

	byFormat := make(map[export.Format]*FormatTotals)
	for _, entry := range entries {
		totals, ok := byFormat[entry.Format]
		if !ok {
			totals = &FormatTotals{Format: entry.Format}
			byFormat[entry.Format] = totals
		}
		if !entry.Succeeded {
			totals.Failed++
			continue
		}
		totals.Succeeded++
		totals.Rows += entry.Rows
		totals.Bytes += entry.Bytes
		totals.Pages += entry.Pages
	}

	out := make([]FormatTotals, 0, len(byFormat))
	for _, totals := range byFormat {
		out = append(out, *totals)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Format < out[j].Format })
	return out, nil
}
