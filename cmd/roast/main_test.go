package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/roast/pkg/compression"
	"github.com/ajitpratap0/roast/pkg/config"
	"github.com/ajitpratap0/roast/pkg/errors"
)

func TestParseCount(t *testing.T) {
	n, err := parseCount("-1", "COUNT")
	require.NoError(t, err)
	assert.Equal(t, int64(-1), n)

	_, err = parseCount("ten", "COUNT")
	assert.True(t, errors.IsType(err, errors.ErrorTypeSpecSyntax))
}

func TestOpenOutputCompresses(t *testing.T) {
	a := &app{config: config.Default()}
	path := filepath.Join(t.TempDir(), "rows.tsv.gz")

	w, done, err := a.openOutput(path)
	require.NoError(t, err)
	_, err = io.WriteString(w, "1\t2\n")
	require.NoError(t, err)
	require.NoError(t, done())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r, err := compression.NewReader(f, compression.Gzip)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "1\t2\n", string(data))
}
