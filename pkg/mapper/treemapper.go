package mapper

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ajitpratap0/roast/pkg/binding"
	"github.com/ajitpratap0/roast/pkg/errors"
	"github.com/ajitpratap0/roast/pkg/tree"
)

// Settings keys read by TreeMapper.
const (
	KeyOutputName      = "treemap.output.name"
	KeyOutputLevel     = "treemap.output.level"
	KeyLogNormalLevel  = "selector.logging.normal.level"
	KeyLogRaisedLevel  = "selector.logging.increased.level"
	KeyLogRaisedEvery  = "selector.logging.increased.every"
	DefaultOutputName  = "events"
	DefaultRaisedEvery = 10000
)

// SetupFunc registers the input and output columns of a TreeMapper. It
// runs in Begin before anything is bound.
type SetupFunc func(tm *TreeMapper, r *tree.Reader) error

// EntryFunc processes the loaded entry. Returning false skips the output
// row for this entry.
type EntryFunc func(tm *TreeMapper, entry int64) (bool, error)

// TreeMapper is the base of selectors that map input rows to rows of one
// output tree through column bindings. Output columns are cleared before
// each entry is loaded and only columns with a level up to the configured
// output level are written.
type TreeMapper struct {
	Inputs  *binding.InputSet
	Outputs *binding.OutputSet

	setup   SetupFunc
	process EntryFunc

	env    *Env
	log    *zap.Logger
	reader *tree.Reader
	writer *tree.Writer

	outputName  string
	outputLevel int

	normalLevel zapcore.Level
	raisedLevel zapcore.Level
	raisedEvery int64
	logCounter  int64
	rowsWritten int64
}

// NewTreeMapper creates a TreeMapper. process may be nil, in which case
// every entry is written as loaded.
func NewTreeMapper(setup SetupFunc, process EntryFunc) *TreeMapper {
	return &TreeMapper{
		Inputs:  binding.NewInputSet(),
		Outputs: binding.NewOutputSet(),
		setup:   setup,
		process: process,
	}
}

// Begin reads the selector settings, runs the setup function and binds
// inputs to r and outputs to a new output tree.
func (tm *TreeMapper) Begin(env *Env, r *tree.Reader, option string) error {
	tm.env = env
	tm.reader = r
	tm.log = env.Logger
	if tm.log == nil {
		tm.log = zap.NewNop()
	}
	tm.log = tm.log.With(zap.String("component", "tree_mapper"), zap.String("input", r.Chain().Name()))

	s := env.Settings
	tm.outputName = s.String(KeyOutputName, DefaultOutputName)
	tm.outputLevel = s.Int(KeyOutputLevel, 0)

	var err error
	if tm.normalLevel, err = zapcore.ParseLevel(s.String(KeyLogNormalLevel, "debug")); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeConfig, "invalid %s", KeyLogNormalLevel)
	}
	if tm.raisedLevel, err = zapcore.ParseLevel(s.String(KeyLogRaisedLevel, "info")); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeConfig, "invalid %s", KeyLogRaisedLevel)
	}
	tm.raisedEvery = s.Int64(KeyLogRaisedEvery, DefaultRaisedEvery)
	if tm.raisedEvery <= 0 {
		tm.raisedEvery = 1
	}

	if tm.setup != nil {
		if err := tm.setup(tm, r); err != nil {
			return err
		}
	}
	if err := tm.Inputs.BindRead(r); err != nil {
		return err
	}
	tm.writer = tree.NewWriter(tm.outputName)
	n, err := tm.Outputs.BindWrite(tm.writer, tm.outputLevel)
	if err != nil {
		return err
	}
	tm.log.Info("created output tree",
		zap.String("tree", tm.outputName),
		zap.Int("columns", n),
		zap.Int("output_level", tm.outputLevel),
		zap.String("option", option))
	return nil
}

// FileChanged logs the transition and restarts the progress counter.
func (tm *TreeMapper) FileChanged(file string, treeNumber int) error {
	tm.log.Info("processing next file", zap.String("file", file), zap.Int("tree_number", treeNumber))
	tm.logCounter = 0
	return nil
}

// Process clears the outputs, loads entry and writes the output row.
func (tm *TreeMapper) Process(entry int64) error {
	level := tm.normalLevel
	if tm.logCounter%tm.raisedEvery == 0 {
		level = tm.raisedLevel
	}
	tm.logCounter++
	if ce := tm.log.Check(level, "processing entry"); ce != nil {
		ce.Write(zap.Int64("entry", entry))
	}

	tm.Outputs.Clear()
	ok, err := tm.reader.Load(entry)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Newf(errors.ErrorTypeData, "entry %d out of range for %s", entry, tm.reader.Chain().Name())
	}
	keep := true
	if tm.process != nil {
		if keep, err = tm.process(tm, entry); err != nil {
			return err
		}
	}
	if keep {
		tm.writer.Fill()
		tm.rowsWritten++
	}
	return nil
}

// Terminate stores the output tree.
func (tm *TreeMapper) Terminate() error {
	tm.log.Info("tree mapper finished", zap.String("tree", tm.outputName), zap.Int64("rows", tm.rowsWritten))
	if tm.env.Output == nil {
		return nil
	}
	return tm.env.Output.PutTree(tm.writer.Tree())
}

// Reader returns the input cursor.
func (tm *TreeMapper) Reader() *tree.Reader { return tm.reader }

// Output returns the tree being written.
func (tm *TreeMapper) Output() *tree.Tree { return tm.writer.Tree() }

// Logger returns the selector logger.
func (tm *TreeMapper) Logger() *zap.Logger { return tm.log }

// OutputLevel returns the maximum level of columns written.
func (tm *TreeMapper) OutputLevel() int { return tm.outputLevel }
