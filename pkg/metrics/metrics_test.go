package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/roast/pkg/errors"
)

func TestCounters(t *testing.T) {
	c := NewCollector()
	c.EntriesProcessed("tabulate", 10)
	c.EntriesProcessed("tabulate", 5)
	c.RowsWritten("copy", 3)
	c.FileProcessed("reduce")
	c.FileProcessed("reduce")
	c.Error("map-single", errors.New(errors.ErrorTypeBinding, "x"))

	assert.Equal(t, 15.0, testutil.ToFloat64(c.entriesProcessed.WithLabelValues("tabulate")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.rowsWritten.WithLabelValues("copy")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.filesProcessed.WithLabelValues("reduce")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.errorsTotal.WithLabelValues("map-single", "binding")))
}

func TestCollectorsAreIndependent(t *testing.T) {
	a, b := NewCollector(), NewCollector()
	a.RowsWritten("copy", 1)
	assert.Equal(t, 0.0, testutil.ToFloat64(b.rowsWritten.WithLabelValues("copy")))
}

func TestDurationHistogram(t *testing.T) {
	c := NewCollector()
	c.ObserveDuration("reduce", 20*time.Millisecond)
	assert.Equal(t, 1, testutil.CollectAndCount(c.duration, "roast_operation_duration_seconds"))
}

func TestWriteTextfile(t *testing.T) {
	c := NewCollector()
	c.RowsWritten("copy", 7)
	path := filepath.Join(t.TempDir(), "roast.prom")
	require.NoError(t, c.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `roast_rows_written_total{operation="copy"} 7`))
}

func TestTimer(t *testing.T) {
	timer := NewTimer("op")
	assert.Equal(t, "op", timer.Name())
	assert.GreaterOrEqual(t, timer.Stop(), time.Duration(0))
}
