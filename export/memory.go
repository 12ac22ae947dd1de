package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps exported files in memory (test/dev only).
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data []byte
	meta ArtifactMeta
}

// NewMemoryStore creates an in-memory file sink.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject)}
}

// Put stores a file under key.
func (s *MemoryStore) Put(ctx context.Context, key string, r io.Reader, meta ArtifactMeta) (ArtifactRef, error) {
	if err := ctx.Err(); err != nil {
		return ArtifactRef{}, err
	}
	if key == "" {
		return ArtifactRef{}, NewError(KindValidation, "file key is required", nil)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return ArtifactRef{}, err
	}
	meta.Size = int64(len(data))
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now()
	}

	s.mu.Lock()
	s.objects[key] = memoryObject{data: data, meta: meta}
	s.mu.Unlock()

	return ArtifactRef{Key: key, Meta: meta}, nil
}

// Open reads a stored file.
func (s *MemoryStore) Open(ctx context.Context, key string) (io.ReadCloser, ArtifactMeta, error) {
	_ = ctx
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ArtifactMeta{}, NewError(KindNotFound, fmt.Sprintf("file %q not found", key), nil)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), obj.meta, nil
}

// Bytes returns a copy of a stored file.
func (s *MemoryStore) Bytes(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), obj.data...), true
}

// Delete removes a stored file.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	_ = ctx
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

// MemoryJournal records export outcomes in memory (test/dev only).
type MemoryJournal struct {
	mu      sync.RWMutex
	entries []JournalEntry
}

// NewMemoryJournal creates an in-memory journal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

// Record appends an entry.
func (j *MemoryJournal) Record(ctx context.Context, entry JournalEntry) error {
	_ = ctx
	if entry.ID == "" {
		return NewError(KindValidation, "journal entry id is required", nil)
	}
	j.mu.Lock()
	j.entries = append(j.entries, entry)
	j.mu.Unlock()
	return nil
}

// List returns matching entries, newest first.
func (j *MemoryJournal) List(ctx context.Context, filter JournalFilter) ([]JournalEntry, error) {
	_ = ctx
	j.mu.RLock()
	matched := make([]JournalEntry, 0, len(j.entries))
	for _, entry := range j.entries {
		if filter.Matches(entry) {
			matched = append(matched, entry)
		}
	}
	j.mu.RUnlock()

	sort.SliceStable(matched, func(a, b int) bool {
		return matched[a].StartedAt.After(matched[b].StartedAt)
	})
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

// Prune removes entries that started before cutoff.
func (j *MemoryJournal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	_ = ctx
	j.mu.Lock()
	defer j.mu.Unlock()
	kept := j.entries[:0]
	var removed int64
	for _, entry := range j.entries {
		if entry.StartedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, entry)
	}
	j.entries = kept
	return removed, nil
}

// Matches reports whether entry passes the filter, ignoring Limit.
func (f JournalFilter) Matches(entry JournalEntry) bool {
	if f.Format != "" && entry.Format != f.Format {
		return false
	}
	if f.Succeeded != nil && entry.Succeeded != *f.Succeeded {
		return false
	}
	if !f.Since.IsZero() && entry.StartedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !entry.StartedAt.Before(f.Until) {
		return false
	}
	return true
}
