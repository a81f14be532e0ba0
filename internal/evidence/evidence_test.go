package evidence

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siteline/internal/domain"
)

func TestPutAndOpen(t *testing.T) {
	s := NewMemory()
	s.NewID = func() string { return "blob-1" }
	ref, n, err := s.Put(context.Background(), "task-1", "Tiles.JPG", strings.NewReader("jpeg bytes"))
	require.NoError(t, err)
	assert.Equal(t, "tasks/task-1/blob-1.jpg", ref)
	assert.EqualValues(t, 10, n)
	assert.True(t, BelongsTo(ref, "task-1"))
	assert.False(t, BelongsTo(ref, "task-2"))

	ok, err := s.Exists(ref)
	require.NoError(t, err)
	assert.True(t, ok)

	f, err := s.Open(ref)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(data))

	refs, err := s.List("task-1")
	require.NoError(t, err)
	assert.Equal(t, []string{ref}, refs)
}

func TestPutRejectsOversize(t *testing.T) {
	s := NewMemory()
	s.MaxBytes = 4
	s.NewID = func() string { return "big" }
	_, _, err := s.Put(context.Background(), "task-1", "a.png", bytes.NewReader(make([]byte, 5)))
	require.ErrorIs(t, err, domain.ErrValidationFailed)
	ok, err := s.Exists("tasks/task-1/big.png")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPutHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := NewMemory().Put(ctx, "task-1", "a.png", strings.NewReader("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMissingRefs(t *testing.T) {
	s := NewMemory()
	ok, err := s.Exists("tasks/none/x.jpg")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = s.Exists("../etc/passwd")
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = s.Open("tasks/none/x.jpg")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	refs, err := s.List("none")
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestNewOS(t *testing.T) {
	s, err := NewOS(t.TempDir(), 0)
	require.NoError(t, err)
	ref, _, err := s.Put(context.Background(), "task-7", "photo.jpeg", strings.NewReader("ok"))
	require.NoError(t, err)
	ok, err := s.Exists(ref)
	require.NoError(t, err)
	assert.True(t, ok)
}
