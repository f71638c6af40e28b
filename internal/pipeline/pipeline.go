// Package pipeline runs mapper operations over roast containers.
//
// # Overview
//
// A mapper string is a ';' separated list of operations, each applied to
// one object of the input:
//
//	copy(events, ^raw*:hits >> slim, energy > 10, 1000, 0)
//	draw(events, energy >> h_energy(100,0,50), hits > 2)
//	treemap(events, ^debug*)
//
// The pipeline offers four entry points:
//   - MapSingle: one input container, one output container
//   - MapMulti: every file matching a pattern, one output per input named
//     after it with a tag
//   - Reduce: a chain over all inputs per operation, one combined output
//   - FilterMulti: entry selection evaluated once and applied to many inputs
//
// Every output holds the artifacts of the operations plus a snapshot of the
// settings in effect, so a later step can pick the configuration up again.
//
// # Settings
//
// The settings store is shared by all operations and passed explicitly.
// Settings stored in an input are merged into it without replacing keys
// that are already defined. Reduce re-synchronizes the store at every file
// boundary of a selector run: the store is restored to its state before the
// run and the stored settings of the new file are merged in, so selectors
// always see the configuration of the file they are reading.
package pipeline

import (
	"go.uber.org/zap"

	"github.com/ajitpratap0/roast/pkg/config"
	"github.com/ajitpratap0/roast/pkg/mapper"
	"github.com/ajitpratap0/roast/pkg/metrics"
	"github.com/ajitpratap0/roast/pkg/settings"
	"github.com/ajitpratap0/roast/pkg/tree"
)

// Pipeline executes mapper operations with one settings store.
type Pipeline struct {
	settings  *settings.Settings
	logger    *zap.Logger
	metrics   *metrics.Collector
	registry  *mapper.Registry
	outputDir string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithMetrics records processed entries, written rows and durations in c.
func WithMetrics(c *metrics.Collector) Option {
	return func(p *Pipeline) { p.metrics = c }
}

// WithRegistry sets the registry selectors are created from. The global
// registry is used by default.
func WithRegistry(r *mapper.Registry) Option {
	return func(p *Pipeline) { p.registry = r }
}

// WithOutputDir sets the directory MapMulti and FilterMulti write to. By
// default outputs are written next to their input.
func WithOutputDir(dir string) Option {
	return func(p *Pipeline) { p.outputDir = dir }
}

// New creates a pipeline working on s.
func New(s *settings.Settings, opts ...Option) *Pipeline {
	p := &Pipeline{
		settings: s,
		logger:   zap.NewNop(),
		registry: mapper.GetRegistry(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(zap.String("component", "pipeline"))
	return p
}

// Settings returns the store the pipeline works on.
func (p *Pipeline) Settings() *settings.Settings { return p.settings }

// createOutput creates an output container with the codec configured in
// the settings. Defaults are read from a copy so stored settings of the
// inputs can still provide them.
func (p *Pipeline) createOutput(path string) (*tree.File, error) {
	cfg := config.FromSettings(p.settings.Snapshot())
	return tree.Create(path, cfg.FileOptions()...)
}

// mergeStored merges the settings stored in f into the store.
func (p *Pipeline) mergeStored(f *tree.File) error {
	stored, err := f.ReadSettings()
	if err != nil {
		return err
	}
	if n := p.settings.MergeMissing(stored); n > 0 {
		p.logger.Debug("merged stored settings", zap.String("file", f.Path()), zap.Int("keys", n))
	}
	return nil
}

func (p *Pipeline) countEntries(op string, n int64) {
	if p.metrics != nil {
		p.metrics.EntriesProcessed(op, n)
	}
}

func (p *Pipeline) countRows(op string, n int64) {
	if p.metrics != nil {
		p.metrics.RowsWritten(op, n)
	}
}

func (p *Pipeline) countFile(op string) {
	if p.metrics != nil {
		p.metrics.FileProcessed(op)
	}
}

func (p *Pipeline) observe(op string, timer *metrics.Timer, err error) {
	if p.metrics == nil {
		return
	}
	if err != nil {
		p.metrics.Error(op, err)
	}
	p.metrics.ObserveDuration(op, timer.Stop())
}
