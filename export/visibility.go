package export

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// DisplayNone is the display value used to hide host elements.
const DisplayNone = "none"

// HostElement is a host UI element whose display style can be read and set.
type HostElement interface {
	Display(ctx context.Context) (string, error)
	SetDisplay(ctx context.Context, value string) error
}

type hiddenElement struct {
	element HostElement
	prior   string
}

// VisibilityScope owns temporarily hidden host elements until Release.
type VisibilityScope struct {
	mu       sync.Mutex
	hidden   []hiddenElement
	released bool
}

// HideElements records each element's display value and hides it. If any
// element fails, the ones already hidden are restored before returning.
func HideElements(ctx context.Context, elements []HostElement) (*VisibilityScope, error) {
	scope := &VisibilityScope{hidden: make([]hiddenElement, 0, len(elements))}
	for i, element := range elements {
		if element == nil {
			continue
		}
		prior, err := element.Display(ctx)
		if err == nil {
			err = element.SetDisplay(ctx, DisplayNone)
		}
		if err != nil {
			hideErr := fmt.Errorf("hide element %d: %w", i, err)
			if restoreErr := scope.Release(context.WithoutCancel(ctx)); restoreErr != nil {
				return nil, errors.Join(hideErr, restoreErr)
			}
			return nil, hideErr
		}
		scope.hidden = append(scope.hidden, hiddenElement{element: element, prior: prior})
	}
	return scope, nil
}

// Len returns the number of elements currently held hidden.
func (s *VisibilityScope) Len() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return 0
	}
	return len(s.hidden)
}

// Release restores every hidden element in reverse order. Every element is
// attempted even when some fail. Calling Release again is a no-op.
func (s *VisibilityScope) Release(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil
	}
	s.released = true

	var errs []error
	for i := len(s.hidden) - 1; i >= 0; i-- {
		entry := s.hidden[i]
		if err := entry.element.SetDisplay(ctx, entry.prior); err != nil {
			errs = append(errs, fmt.Errorf("restore element %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// WithHiddenElements runs fn while elements are hidden and restores them on
// every exit path, including panics.
func WithHiddenElements(ctx context.Context, elements []HostElement, fn func(ctx context.Context) error) (err error) {
	scope, err := HideElements(ctx, elements)
	if err != nil {
		return err
	}
	defer func() {
		if restoreErr := scope.Release(context.WithoutCancel(ctx)); restoreErr != nil && err == nil {
			err = restoreErr
		}
	}()
	return fn(ctx)
}

// StyleElement is an in-memory HostElement.
type StyleElement struct {
	mu      sync.Mutex
	Name    string
	display string
}

// NewStyleElement creates an element with an initial display value.
func NewStyleElement(name, display string) *StyleElement {
	return &StyleElement{Name: name, display: display}
}

func (e *StyleElement) Display(context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.display, nil
}

func (e *StyleElement) SetDisplay(_ context.Context, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.display = value
	return nil
}

// Visible reports whether the element is not hidden.
func (e *StyleElement) Visible() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.display != DisplayNone
}
