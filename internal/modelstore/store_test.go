package modelstore

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exercise(t *testing.T, s BlobStore) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Load(ctx, "adforecast/model")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Save(ctx, "adforecast/model", []byte(`{"version":1}`)))
	got, err := s.Load(ctx, "adforecast/model")
	require.NoError(t, err)
	assert.Equal(t, `{"version":1}`, string(got))

	require.NoError(t, s.Save(ctx, "adforecast/model", []byte(`{"version":2}`)))
	got, err = s.Load(ctx, "adforecast/model")
	require.NoError(t, err)
	assert.Equal(t, `{"version":2}`, string(got))
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFile(dir)
	require.NoError(t, err)
	defer s.Close()
	exercise(t, s)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")
}

func TestBadgerInMemory(t *testing.T) {
	s, err := NewBadger("", nil)
	require.NoError(t, err)
	defer s.Close()
	exercise(t, s)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Options{Kind: "none"}, nil)
	require.NoError(t, err)
	_, err = s.Load(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)

	s, err = Open(ctx, Options{Kind: "file", Path: t.TempDir()}, nil)
	require.NoError(t, err)
	assert.IsType(t, &File{}, s)

	_, err = Open(ctx, Options{Kind: "s3"}, nil)
	assert.Error(t, err)
}
