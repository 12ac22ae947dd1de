package exportjob

import (
	"context"
	"sync"

	"github.com/goliatone/go-docexport/export"
)

// CancelRegistry tracks running export jobs by payload ID.
type CancelRegistry struct {
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func NewCancelRegistry() *CancelRegistry {
	return &CancelRegistry{cancels: make(map[string]context.CancelFunc)}
}

// Register associates cancel with id. The returned func forgets it.
func (r *CancelRegistry) Register(id string, cancel context.CancelFunc) func() {
	if r == nil || id == "" || cancel == nil {
		return func() {}
	}
	r.mu.Lock()
	r.cancels[id] = cancel
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.cancels, id)
		r.mu.Unlock()
	}
}

// Cancel stops a running export job.
func (r *CancelRegistry) Cancel(ctx context.Context, id string) error {
	_ = ctx
	if r == nil {
		return export.NewError(export.KindInternal, "cancel registry is nil", nil)
	}
	if id == "" {
		return export.NewError(export.KindValidation, "job ID is required", nil)
	}

	r.mu.Lock()
	cancel, ok := r.cancels[id]
	r.mu.Unlock()
	if !ok {
		return export.NewError(export.KindNotFound, "export job not running", nil)
	}
	cancel()
	return nil
}

// Running reports whether id is registered.
func (r *CancelRegistry) Running(id string) bool {
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.cancels[id]
	return ok
}
