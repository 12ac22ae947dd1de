package export

import (
	"context"
	"errors"
	"fmt"
	"testing"

	errorslib "github.com/goliatone/go-errors"
)

func TestAsGoErrorMapping(t *testing.T) {
	cases := []struct {
		err      error
		category errorslib.Category
		code     string
	}{
		{NewError(KindValidation, "bad input", nil), errorslib.CategoryValidation, "validation"},
		{NewError(KindGeometry, "no content area", nil), errorslib.CategoryValidation, "geometry"},
		{NewError(KindSerialization, "bad row", nil), errorslib.CategoryValidation, "serialization"},
		{NewError(KindRasterization, "no snapshot", nil), errorslib.CategoryOperation, "rasterization"},
		{NewError(KindPresentation, "blocked", nil), errorslib.CategoryOperation, "presentation"},
		{NewError(KindNotFound, "missing", nil), errorslib.CategoryNotFound, "not_found"},
		{context.DeadlineExceeded, errorslib.CategoryOperation, "timeout"},
		{context.Canceled, errorslib.CategoryOperation, "canceled"},
		{NewError(KindPaginationConsistency, "slice out of bounds", nil), errorslib.CategoryInternal, "pagination_consistency"},
		{errors.New("boom"), errorslib.CategoryInternal, "internal"},
	}

	for _, tc := range cases {
		mapped := AsGoError(tc.err)
		if mapped == nil {
			t.Fatalf("expected mapping for %v", tc.err)
		}
		if mapped.Category != tc.category {
			t.Fatalf("expected category %s, got %s", tc.category, mapped.Category)
		}
		if mapped.TextCode != tc.code {
			t.Fatalf("expected text code %s, got %s", tc.code, mapped.TextCode)
		}
	}
}

func TestKindFromError_Wrapped(t *testing.T) {
	err := fmt.Errorf("export failed: %w", NewError(KindGeometry, "content height must be positive", nil))
	if got := KindFromError(err); got != KindGeometry {
		t.Fatalf("expected geometry kind, got %q", got)
	}
	if got := KindFromError(nil); got != "" {
		t.Fatalf("expected empty kind for nil, got %q", got)
	}
}

func TestExportError_Message(t *testing.T) {
	err := NewError(KindPresentation, "print surface unavailable", errors.New("popup blocked"))
	if err.Error() != "print surface unavailable: popup blocked" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, err.Err) {
		t.Fatalf("expected unwrap to expose cause")
	}
}
