// Package evidence stores photo blobs uploaded against tasks and hands out
// stable references to them.
package evidence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"siteline/internal/domain"
)

// DefaultMaxBytes bounds a single upload when the store has no limit set.
const DefaultMaxBytes int64 = 10 << 20

// Store keeps blobs on an afero filesystem under tasks/<taskID>/.
type Store struct {
	Fs       afero.Fs
	MaxBytes int64
	NewID    func() string
}

// NewOS returns a store rooted at dir on the OS filesystem.
func NewOS(dir string, maxBytes int64) (Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Store{}, err
	}
	return Store{Fs: afero.NewBasePathFs(afero.NewOsFs(), dir), MaxBytes: maxBytes}, nil
}

// NewMemory returns a store backed by an in-memory filesystem.
func NewMemory() Store {
	return Store{Fs: afero.NewMemMapFs()}
}

func (s Store) limit() int64 {
	if s.MaxBytes > 0 {
		return s.MaxBytes
	}
	return DefaultMaxBytes
}

// Prefix is the ref prefix every blob of taskID starts with.
func Prefix(taskID string) string {
	return path.Join("tasks", taskID) + "/"
}

// BelongsTo reports whether ref names a blob of taskID.
func BelongsTo(ref, taskID string) bool {
	return strings.HasPrefix(ref, Prefix(taskID)) && !strings.Contains(ref, "..")
}

// Put writes r as a new blob for taskID and returns its ref. Uploads larger
// than the limit fail with domain.ErrValidationFailed and leave nothing
// behind.
func (s Store) Put(ctx context.Context, taskID, filename string, r io.Reader) (string, int64, error) {
	if strings.TrimSpace(taskID) == "" {
		return "", 0, domain.Validation("task id required")
	}
	newID := s.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) > 10 || strings.ContainsAny(ext, `/\`) {
		ext = ""
	}
	ref := path.Join("tasks", taskID, newID()+ext)
	if err := s.Fs.MkdirAll(path.Dir(ref), 0o755); err != nil {
		return "", 0, fmt.Errorf("create evidence dir: %w", err)
	}
	f, err := s.Fs.Create(ref)
	if err != nil {
		return "", 0, fmt.Errorf("create evidence: %w", err)
	}
	limit := s.limit()
	n, err := io.Copy(f, io.LimitReader(&ctxReader{ctx: ctx, r: r}, limit+1))
	closeErr := f.Close()
	if err == nil && n > limit {
		err = domain.Validation("evidence exceeds %d bytes", limit)
	}
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = s.Fs.Remove(ref)
		return "", 0, err
	}
	return ref, n, nil
}

// Exists reports whether ref names a stored blob.
func (s Store) Exists(ref string) (bool, error) {
	if ref == "" || strings.Contains(ref, "..") {
		return false, nil
	}
	ok, err := afero.Exists(s.Fs, ref)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	dir, err := afero.IsDir(s.Fs, ref)
	return !dir, err
}

// Open returns the blob for ref.
func (s Store) Open(ref string) (afero.File, error) {
	ok, err := s.Exists(ref)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("evidence %s: %w", ref, domain.ErrNotFound)
	}
	return s.Fs.Open(ref)
}

// List returns the refs stored for taskID.
func (s Store) List(taskID string) ([]string, error) {
	dir := path.Join("tasks", taskID)
	infos, err := afero.ReadDir(s.Fs, dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var refs []string
	for _, fi := range infos {
		if !fi.IsDir() {
			refs = append(refs, path.Join(dir, fi.Name()))
		}
	}
	return refs, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
