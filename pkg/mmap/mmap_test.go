package mmap

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/roast/pkg/errors"
)

func TestReadAt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o600))

	r, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 10, r.Len())

	buf := make([]byte, 4)
	n, err := r.ReadAt(buf, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "3456", string(buf))

	n, err = r.ReadAt(buf, 8)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, "89", string(buf[:n]))

	_, err = r.ReadAt(buf, 10)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, int64(6), r.BytesRead())

	require.NoError(t, r.Close())
	_, err = r.ReadAt(buf, 0)
	assert.Error(t, err)
}

func TestOpenEmptyAndMissing(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))

	r, err := Open(empty)
	require.NoError(t, err)
	assert.Equal(t, 0, r.Len())
	_, err = r.ReadAt(make([]byte, 1), 0)
	assert.Equal(t, io.EOF, err)
	require.NoError(t, r.Close())

	_, err = Open(filepath.Join(dir, "missing"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}
