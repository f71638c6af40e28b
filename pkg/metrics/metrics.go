// Package metrics tracks what a roast run did using Prometheus metrics.
//
// # Overview
//
// A Collector owns its own registry so several runs (and tests) never share
// counters. The pipeline and the tabulation engine record:
//   - entries visited and rows written per operation
//   - operation durations
//   - input files processed
//   - errors by kind
//   - the resident memory of the process, sampled through gopsutil
//
// # Basic Usage
//
//	c := metrics.NewCollector()
//	timer := metrics.NewTimer("copy")
//	rows := copyTree()
//	c.RowsWritten("copy", rows)
//	c.ObserveDuration("copy", timer.Stop())
//	_ = c.WriteTextfile("roast.prom")
//
// The text file follows the node exporter textfile collector format.
package metrics

import (
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/ajitpratap0/roast/pkg/errors"
)

// Collector groups the metrics of one roast invocation.
type Collector struct {
	registry         *prometheus.Registry
	entriesProcessed *prometheus.CounterVec // entries visited
	rowsWritten      *prometheus.CounterVec // rows or records emitted
	filesProcessed   *prometheus.CounterVec // physical input files
	errorsTotal      *prometheus.CounterVec // failures by kind
	duration         *prometheus.HistogramVec
	residentMemory   prometheus.Gauge
	proc             *process.Process
	startTime        time.Time
}

// NewCollector creates a collector with a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	c := &Collector{
		registry: reg,
		entriesProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roast_entries_processed_total",
				Help: "Total number of dataset entries visited",
			},
			[]string{"operation"},
		),
		rowsWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roast_rows_written_total",
				Help: "Total number of output rows or records written",
			},
			[]string{"operation"},
		),
		filesProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roast_files_processed_total",
				Help: "Total number of input files processed",
			},
			[]string{"operation"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roast_errors_total",
				Help: "Total number of failed operations by error kind",
			},
			[]string{"operation", "kind"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "roast_operation_duration_seconds",
				Help: "Duration of mapper, reduce and tabulation operations",
				Buckets: []float64{
					0.001, // 1ms - tiny trees
					0.01,  // 10ms
					0.1,   // 100ms
					1,     // 1s - typical single file
					10,    // 10s
					60,    // 1min - large reductions
					600,   // 10min
				},
			},
			[]string{"operation"},
		),
		residentMemory: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "roast_process_resident_memory_bytes",
				Help: "Resident memory of the roast process",
			},
		),
		startTime: time.Now(),
	}
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		c.proc = p
	}
	return c
}

// Registry returns the registry the metrics are registered in.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// StartTime returns when the collector was created.
func (c *Collector) StartTime() time.Time { return c.startTime }

// EntriesProcessed adds n visited entries for op.
func (c *Collector) EntriesProcessed(op string, n int64) {
	c.entriesProcessed.WithLabelValues(op).Add(float64(n))
}

// RowsWritten adds n written rows for op.
func (c *Collector) RowsWritten(op string, n int64) {
	c.rowsWritten.WithLabelValues(op).Add(float64(n))
}

// FileProcessed counts one input file for op.
func (c *Collector) FileProcessed(op string) {
	c.filesProcessed.WithLabelValues(op).Inc()
}

// Error counts a failure of op, labelled with the error kind.
func (c *Collector) Error(op string, err error) {
	c.errorsTotal.WithLabelValues(op, string(errors.TypeOf(err))).Inc()
}

// ObserveDuration records how long op took.
func (c *Collector) ObserveDuration(op string, d time.Duration) {
	c.duration.WithLabelValues(op).Observe(d.Seconds())
}

// SampleMemory updates the resident memory gauge. It returns the sampled
// value, or 0 when the process cannot be inspected.
func (c *Collector) SampleMemory() uint64 {
	if c.proc == nil {
		return 0
	}
	info, err := c.proc.MemoryInfo()
	if err != nil {
		return 0
	}
	c.residentMemory.Set(float64(info.RSS))
	return info.RSS
}

// WriteTextfile samples memory and writes every metric to path in the
// Prometheus text format.
func (c *Collector) WriteTextfile(path string) error {
	c.SampleMemory()
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeIO, "failed to write metrics to %s", path)
	}
	return nil
}

// Timer measures the duration of one operation.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a timer that starts immediately.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the operation the timer measures.
func (t *Timer) Name() string { return t.name }

// Stop returns the time elapsed since the timer was created. It may be
// called several times.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
