// Package tabulate evaluates a list of expressions over the rows of a chain
// and streams the results as TSV, JSON or Avro.
//
// When an expression or the selection reads a sequence column, one row can
// yield several records, one per instance. Records are written in ascending
// (entry, instance) order as soon as they are computed.
package tabulate

import (
	"bufio"
	"context"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/roast/pkg/errors"
	"github.com/ajitpratap0/roast/pkg/formula"
	"github.com/ajitpratap0/roast/pkg/metrics"
	"github.com/ajitpratap0/roast/pkg/settings"
	"github.com/ajitpratap0/roast/pkg/tree"
)

// Settings keys read by the engine.
const (
	KeyLogEvery        = "selector.log.every"
	KeyAvroCompression = "tabulate.avro.compression"
	DefaultLogEvery    = 10000
)

// Result summarizes one tabulation.
type Result struct {
	Entries int64 // entries visited
	Records int64 // records written
}

// Engine runs tabulations.
type Engine struct {
	settings *settings.Settings
	logger   *zap.Logger
	metrics  *metrics.Collector
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger progress is reported to.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics records entries, records and duration in c.
func WithMetrics(c *metrics.Collector) Option {
	return func(e *Engine) { e.metrics = c }
}

// NewEngine creates an engine reading its settings from s.
func NewEngine(s *settings.Settings, opts ...Option) *Engine {
	e := &Engine{settings: s, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(zap.String("component", "tabulate"))
	return e
}

// Tabulate evaluates spec over the entries of c starting at startRow and
// writes the records to out. At most maxRows entries are visited; a
// negative maxRows visits every entry to the end of the chain. Entries for
// which selection is false are skipped.
func (e *Engine) Tabulate(ctx context.Context, c *tree.Chain, out io.Writer, spec, selection string, maxRows, startRow int64) (Result, error) {
	var res Result
	if err := ctx.Err(); err != nil {
		return res, errors.Wrap(err, errors.ErrorTypeInternal, "tabulation cancelled")
	}
	timer := metrics.NewTimer("tabulate")
	ts, err := ParseSpec(spec)
	if err != nil {
		return res, err
	}

	r := tree.NewReader(c)
	var sel *formula.Formula
	if strings.TrimSpace(selection) != "" {
		if sel, err = formula.Compile(selection, r); err != nil {
			return res, err
		}
	}
	cols := make([]*formula.Formula, len(ts.Expressions))
	colsArray := false
	for i, src := range ts.Expressions {
		if cols[i], err = formula.Compile(src, r); err != nil {
			return res, err
		}
		colsArray = colsArray || cols[i].IsArray()
	}
	e.logger.Info("tabulation expression",
		zap.Strings("expressions", ts.Expressions),
		zap.String("format", string(ts.Format)),
		zap.Strings("labels", ts.Labels),
		zap.String("selection", selection))

	bw := bufio.NewWriter(out)
	defer bw.Flush()
	sk, err := e.newSink(ts, bw)
	if err != nil {
		return res, err
	}

	logEvery := e.settings.Int64(KeyLogEvery, DefaultLogEvery)
	if logEvery <= 0 {
		logEvery = 1
	}
	r.OnFileChange(func(file string, treeNumber int) error {
		e.logger.Info("tabulating file", zap.String("file", file), zap.Int("tree_number", treeNumber))
		if e.metrics != nil {
			e.metrics.FileProcessed("tabulate")
		}
		return nil
	})

	if err := sk.begin(); err != nil {
		return res, errors.Wrap(err, errors.ErrorTypeIO, "failed to write tabulation header")
	}
	cells := make([]cell, len(cols))
	if total := c.Entries(); startRow < 0 || startRow > total {
		maxRows = 0
	} else if maxRows < 0 || maxRows > total-startRow {
		maxRows = total - startRow
	}
	for entry := startRow; entry < startRow+maxRows; entry++ {
		if entry%logEvery == 0 {
			e.logger.Info("tabulating entry", zap.Int64("entry", entry), zap.Int64("log_every", logEvery))
		}
		ok, err := r.Load(entry)
		if err != nil {
			return res, err
		}
		if !ok {
			break
		}
		res.Entries++

		n, err := e.emitEntry(sk, sel, cols, colsArray, cells)
		res.Records += n
		if err != nil {
			return res, err
		}
	}
	if err := sk.end(); err != nil {
		return res, errors.Wrap(err, errors.ErrorTypeIO, "failed to finish tabulation output")
	}
	if err := bw.Flush(); err != nil {
		return res, errors.Wrap(err, errors.ErrorTypeIO, "failed to write tabulation output")
	}

	if e.metrics != nil {
		e.metrics.EntriesProcessed("tabulate", res.Entries)
		e.metrics.RowsWritten("tabulate", res.Records)
		e.metrics.ObserveDuration("tabulate", timer.Stop())
	}
	e.logger.Info("tabulation finished",
		zap.Int64("entries", res.Entries),
		zap.Int64("records", res.Records),
		zap.Duration("duration", timer.Stop()))
	return res, nil
}

// emitEntry writes the records of the loaded entry.
func (e *Engine) emitEntry(sk sink, sel *formula.Formula, cols []*formula.Formula, colsArray bool, cells []cell) (int64, error) {
	ndata := instances(sel, cols, colsArray)
	if sel != nil && !sel.IsArray() && ndata > 0 {
		pass, err := sel.Bool(0)
		if err != nil {
			return 0, err
		}
		if !pass {
			return 0, nil
		}
	}

	var written int64
	loaded := false
	for inst := 0; inst < ndata; inst++ {
		if sel != nil && sel.IsArray() {
			pass, err := sel.Bool(inst)
			if err != nil {
				return written, err
			}
			if !pass {
				continue
			}
		}
		if inst > 0 && !loaded {
			for _, f := range cols {
				if _, _, err := f.EvalInstance(0); err != nil {
					return written, err
				}
			}
		}
		loaded = true
		for i, f := range cols {
			v, valid, err := f.EvalInstance(inst)
			if err != nil {
				return written, err
			}
			cells[i] = cell{value: v, valid: valid, isString: f.IsString()}
		}
		if err := sk.record(cells); err != nil {
			return written, errors.Wrap(err, errors.ErrorTypeIO, "failed to write tabulation record")
		}
		written++
	}
	return written, nil
}

// instances returns the number of instances to visit for the loaded entry:
// 1 without sequences, the largest column multiplicity otherwise, limited
// by the multiplicity of an array valued selection.
func instances(sel *formula.Formula, cols []*formula.Formula, colsArray bool) int {
	n := 1
	if colsArray {
		n = 0
		for _, f := range cols {
			if f.IsArray() && f.Ndata() > n {
				n = f.Ndata()
			}
		}
	}
	if sel != nil && sel.IsArray() {
		if s := sel.Ndata(); !colsArray || s < n {
			n = s
		}
	}
	return n
}

func (e *Engine) newSink(ts Spec, w *bufio.Writer) (sink, error) {
	switch ts.Format {
	case FormatJSON:
		return &jsonSink{w: w, labels: ts.Labels, ncols: len(ts.Expressions)}, nil
	case FormatAvro:
		labels := ts.Labels
		if !ts.HasLabels {
			labels = ts.Expressions
		}
		return newAvroSink(w, labels, e.settings.String(KeyAvroCompression, "deflate"))
	default:
		return &tsvSink{w: w, labels: ts.Labels}, nil
	}
}
