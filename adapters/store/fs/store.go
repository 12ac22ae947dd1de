package storefs

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/goliatone/go-docexport/export"
)

// maxRenameAttempts bounds the "name (n).ext" search for a free filename.
const maxRenameAttempts = 1000

// Store writes exported files under Root. Files land atomically: content is
// written to a temp file in the target directory and renamed into place.
type Store struct {
	Root string
	// Overwrite replaces existing files. When false an existing name is
	// suffixed with " (n)" before the extension.
	Overwrite bool
	Now       func() time.Time
}

var _ export.FileSink = (*Store)(nil)

// NewStore creates a filesystem file sink rooted at root.
func NewStore(root string) *Store {
	return &Store{Root: root, Now: time.Now}
}

// Put writes r to key and returns the key actually used.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, meta export.ArtifactMeta) (export.ArtifactRef, error) {
	if err := s.check(key); err != nil {
		return export.ArtifactRef{}, err
	}
	if err := ctx.Err(); err != nil {
		return export.ArtifactRef{}, err
	}

	target, err := s.resolvePath(key)
	if err != nil {
		return export.ArtifactRef{}, err
	}
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return export.ArtifactRef{}, export.NewError(export.KindInternal, "create export directory", err)
	}

	tmp, err := os.CreateTemp(dir, ".docexport-*")
	if err != nil {
		return export.ArtifactRef{}, export.NewError(export.KindInternal, "create temp file", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	size, err := io.Copy(tmp, &contextReader{ctx: ctx, r: r})
	if err != nil {
		return export.ArtifactRef{}, err
	}
	if err := tmp.Sync(); err != nil {
		return export.ArtifactRef{}, export.NewError(export.KindInternal, "sync temp file", err)
	}
	if err := tmp.Close(); err != nil {
		return export.ArtifactRef{}, export.NewError(export.KindInternal, "close temp file", err)
	}

	if s.Overwrite {
		if err := os.Rename(tmp.Name(), target); err != nil {
			return export.ArtifactRef{}, export.NewError(export.KindInternal, "move export into place", err)
		}
	} else if target, err = claimPath(tmp.Name(), target); err != nil {
		return export.ArtifactRef{}, err
	}

	rel, err := filepath.Rel(s.root(), target)
	if err != nil {
		return export.ArtifactRef{}, export.NewError(export.KindInternal, "resolve stored key", err)
	}
	storedKey := filepath.ToSlash(rel)

	meta.Size = size
	meta.Filename = path.Base(storedKey)
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = s.now()
	}
	if meta.ContentType == "" {
		meta.ContentType = mime.TypeByExtension(filepath.Ext(target))
	}
	return export.ArtifactRef{Key: storedKey, Meta: meta}, nil
}

// Open reads a stored file.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, export.ArtifactMeta, error) {
	_ = ctx
	if err := s.check(key); err != nil {
		return nil, export.ArtifactMeta{}, err
	}
	target, err := s.resolvePath(key)
	if err != nil {
		return nil, export.ArtifactMeta{}, err
	}

	file, err := os.Open(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, export.ArtifactMeta{}, export.NewError(export.KindNotFound, fmt.Sprintf("file %q not found", key), err)
		}
		return nil, export.ArtifactMeta{}, err
	}
	meta := export.ArtifactMeta{
		Filename:    filepath.Base(target),
		ContentType: mime.TypeByExtension(filepath.Ext(target)),
	}
	if info, err := file.Stat(); err == nil {
		meta.Size = info.Size()
		meta.CreatedAt = info.ModTime()
	}
	return file, meta, nil
}

// Delete removes a stored file. Missing files are ignored.
func (s *Store) Delete(ctx context.Context, key string) error {
	_ = ctx
	if err := s.check(key); err != nil {
		return err
	}
	target, err := s.resolvePath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *Store) check(key string) error {
	if s == nil {
		return export.NewError(export.KindInternal, "store is nil", nil)
	}
	if s.Root == "" {
		return export.NewError(export.KindValidation, "store root is required", nil)
	}
	if strings.TrimSpace(key) == "" {
		return export.NewError(export.KindValidation, "file key is required", nil)
	}
	return nil
}

func (s *Store) root() string {
	root, err := filepath.Abs(s.Root)
	if err != nil {
		return filepath.Clean(s.Root)
	}
	return root
}

func (s *Store) resolvePath(key string) (string, error) {
	rel := strings.TrimPrefix(path.Clean("/"+key), "/")
	if rel == "" || rel == "." {
		return "", export.NewError(export.KindValidation, "invalid file key", nil)
	}
	root := s.root()
	target := filepath.Join(root, filepath.FromSlash(rel))
	if !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return "", export.NewError(export.KindValidation, "file key escapes root", nil)
	}
	return target, nil
}

func (s *Store) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// claimPath hard links tmp to target, or to the first "name (n).ext" sibling
// that does not exist yet. The link fails when the name is taken, so two
// concurrent puts never end up on the same path.
func claimPath(tmp, target string) (string, error) {
	ext := filepath.Ext(target)
	base := strings.TrimSuffix(target, ext)
	candidate := target
	for n := 0; n <= maxRenameAttempts; n++ {
		if n > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", base, n, ext)
		}
		err := os.Link(tmp, candidate)
		if err == nil {
			return candidate, nil
		}
		if !os.IsExist(err) {
			return "", export.NewError(export.KindInternal, "move export into place", err)
		}
	}
	return "", export.NewError(export.KindInternal, fmt.Sprintf("no free filename for %q", filepath.Base(target)), nil)
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
