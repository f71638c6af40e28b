package compression

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromPath(t *testing.T) {
	tests := map[string]Algorithm{
		"rows.tsv":        None,
		"rows.tsv.gz":     Gzip,
		"rows.json.zst":   Zstd,
		"rows.tsv.LZ4":    LZ4,
		"entries.txt.sz":  Snappy,
		"entries.txt.s2":  S2,
		"noext":           None,
		"dir.gz/rows.tsv": None,
	}
	for path, want := range tests {
		assert.Equal(t, want, FromPath(path), path)
	}
	assert.Equal(t, "rows.tsv", TrimExtension("rows.tsv.gz"))
	assert.Equal(t, "rows.tsv", TrimExtension("rows.tsv"))
}

func TestParse(t *testing.T) {
	alg, err := Parse("ZSTD")
	require.NoError(t, err)
	assert.Equal(t, Zstd, alg)

	_, err = Parse("bzip9")
	assert.Error(t, err)
}

func TestStreamRoundTrip(t *testing.T) {
	original := []byte(strings.Repeat("1\t2.5\tevents.roast\n", 200))

	for _, alg := range []Algorithm{None, Gzip, Deflate, Snappy, S2, Zstd, LZ4} {
		for _, level := range []Level{Fastest, Default, Best} {
			var buf bytes.Buffer
			w, err := NewWriter(&buf, alg, level)
			require.NoError(t, err, alg)
			_, err = w.Write(original)
			require.NoError(t, err, alg)
			require.NoError(t, w.Close(), alg)

			r, err := NewReader(&buf, alg)
			require.NoError(t, err, alg)
			got, err := io.ReadAll(r)
			require.NoError(t, err, alg)
			require.NoError(t, r.Close())
			assert.Equal(t, original, got, "algorithm %s level %d", alg, level)
		}
	}
}

func TestUnsupportedAlgorithm(t *testing.T) {
	_, err := NewWriter(io.Discard, Algorithm("brotli"), Default)
	assert.Error(t, err)
	_, err = NewReader(strings.NewReader(""), Algorithm("brotli"))
	assert.Error(t, err)
}
