package pipeline

import (
	"context"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/roast/pkg/errors"
	"github.com/ajitpratap0/roast/pkg/mapper"
	"github.com/ajitpratap0/roast/pkg/metrics"
	"github.com/ajitpratap0/roast/pkg/observability"
	"github.com/ajitpratap0/roast/pkg/settings"
	"github.com/ajitpratap0/roast/pkg/tree"
)

// Operation names used for logging, spans and metrics.
const (
	OpMapSingle   = "map-single"
	OpMapMulti    = "map-multi"
	OpReduce      = "reduce"
	OpFilterMulti = "filter-multi"
)

// OutputName derives the output of input for a tag: the base name without
// its extension, the tag and the extension, in dir. An empty dir keeps the
// directory of input.
func OutputName(input, tag, dir string) string {
	base := filepath.Base(input)
	ext := filepath.Ext(base)
	label := strings.TrimSuffix(base, ext)
	if dir == "" {
		dir = filepath.Dir(input)
	}
	return filepath.Join(dir, label+tag+ext)
}

// MapSingle applies mappers to the objects of input and writes the results
// and a settings snapshot to output.
func (p *Pipeline) MapSingle(ctx context.Context, input, mappers, output string) (err error) {
	specs, err := mapper.Parse(mappers)
	if err != nil {
		return err
	}
	timer := metrics.NewTimer(OpMapSingle)
	defer func() { p.observe(OpMapSingle, timer, err) }()

	ctx, span := observability.NewOperationTracer(OpMapSingle).StartSpan(ctx, "run")
	span.SetAttribute("roast.input", input)
	span.SetAttribute("roast.output", output)
	defer func() { span.End(err) }()

	return p.mapFile(ctx, OpMapSingle, input, specs, output)
}

// mapFile runs specs over the single input file and writes output.
func (p *Pipeline) mapFile(ctx context.Context, op, input string, specs []mapper.Spec, output string) (err error) {
	log := p.logger.With(zap.String("operation", op), zap.String("input", input), zap.String("output", output))

	files := mapper.NewFiles()
	defer files.Close()

	in, err := files.Open(input)
	if err != nil {
		return err
	}
	if err := p.mergeStored(in); err != nil {
		return err
	}

	out, err := p.createOutput(output)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			out.Discard()
			return
		}
		err = out.Close()
	}()

	log.Info("mapping file", zap.Int("operations", len(specs)))
	for _, spec := range specs {
		c, err := targetChain(files, spec, []string{input})
		if err != nil {
			return err
		}
		ex := &execution{spec: spec, chain: c, files: files, output: out, log: log}
		if err := p.execute(ctx, op, ex); err != nil {
			return err
		}
	}
	p.countFile(op)
	return out.WriteSettings(p.settings, settings.LevelGlobal)
}

// MapMulti maps every file matching inputGlob to its own output named after
// it with tag. The settings are restored to their initial state before
// each file; the first failure aborts the batch. It returns the outputs
// written.
func (p *Pipeline) MapMulti(ctx context.Context, inputGlob, mappers, tag string, noRecompile bool) (outputs []string, err error) {
	specs, err := mapper.Parse(mappers)
	if err != nil {
		return nil, err
	}
	inputs, err := tree.ExpandInputs(inputGlob)
	if err != nil {
		return nil, err
	}
	timer := metrics.NewTimer(OpMapMulti)
	defer func() { p.observe(OpMapMulti, timer, err) }()

	tracer := observability.NewOperationTracer(OpMapMulti)
	ctx, span := tracer.StartSpan(ctx, "run")
	span.SetAttribute("roast.inputs", inputs)
	span.SetAttribute("roast.tag", tag)
	defer func() { span.End(err) }()

	snapshot := p.settings.Snapshot()
	for i, input := range inputs {
		if err := ctx.Err(); err != nil {
			return outputs, errors.Wrap(err, errors.ErrorTypeInternal, "mapping cancelled")
		}
		p.settings.Restore(snapshot)

		fileSpecs := specs
		if i > 0 && noRecompile {
			fileSpecs = withoutRecompile(specs)
		}
		output := OutputName(input, tag, p.outputDir)
		p.logger.Info("processing file",
			zap.String("input", input),
			zap.String("output", output),
			zap.Int("index", i+1),
			zap.Int("total", len(inputs)))

		err := tracer.TraceFile(ctx, input, func(ctx context.Context) error {
			return p.mapFile(ctx, OpMapMulti, input, fileSpecs, output)
		})
		if err != nil {
			return outputs, err
		}
		outputs = append(outputs, output)
	}
	return outputs, nil
}

func withoutRecompile(specs []mapper.Spec) []mapper.Spec {
	out := make([]mapper.Spec, len(specs))
	for i, s := range specs {
		s.Recompile = false
		out[i] = s
	}
	return out
}

// Reduce applies every operation to one chain of its target over all
// inputs and writes one combined output. Selectors see the stored settings
// of the file they are reading; after the last operation the settings of
// the last input are merged.
func (p *Pipeline) Reduce(ctx context.Context, inputs []string, mappers, output string) (err error) {
	specs, err := mapper.Parse(mappers)
	if err != nil {
		return err
	}
	paths, err := tree.ExpandInputs(inputs...)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return errors.New(errors.ErrorTypeConfig, "reduce needs at least one input")
	}
	timer := metrics.NewTimer(OpReduce)
	defer func() { p.observe(OpReduce, timer, err) }()

	ctx, span := observability.NewOperationTracer(OpReduce).StartSpan(ctx, "run")
	span.SetAttribute("roast.inputs", paths)
	span.SetAttribute("roast.output", output)
	defer func() { span.End(err) }()

	log := p.logger.With(zap.String("operation", OpReduce), zap.String("output", output))
	files := mapper.NewFiles()
	defer files.Close()
	for _, path := range paths {
		if _, err := files.Open(path); err != nil {
			return err
		}
	}

	out, err := p.createOutput(output)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			out.Discard()
			return
		}
		err = out.Close()
	}()

	log.Info("reducing files", zap.Int("inputs", len(paths)), zap.Int("operations", len(specs)))
	for _, spec := range specs {
		c, err := targetChain(files, spec, paths)
		if err != nil {
			return err
		}
		ex := &execution{spec: spec, chain: c, files: files, output: out, log: log}
		if spec.Op == mapper.OpSelector {
			resync := p.resync(files, log)
			file, treeNumber := paths[0], 0
			first, _ := spec.Range(c.Entries())
			if i, ok := c.TreeOf(first); ok {
				file, treeNumber = c.File(i), i
			}
			if err := resync(file, treeNumber); err != nil {
				return err
			}
			ex.onFile = resync
		}
		if err := p.execute(ctx, OpReduce, ex); err != nil {
			return err
		}
	}
	for range paths {
		p.countFile(OpReduce)
	}

	last, err := files.Open(paths[len(paths)-1])
	if err != nil {
		return err
	}
	if err := p.mergeStored(last); err != nil {
		return err
	}
	return out.WriteSettings(p.settings, settings.LevelGlobal)
}

// resync returns a file boundary callback that restores the settings to
// their state when it was created and merges the stored settings of the
// new file.
func (p *Pipeline) resync(files *mapper.Files, log *zap.Logger) tree.FileChangeFunc {
	snapshot := p.settings.Snapshot()
	return func(file string, treeNumber int) error {
		p.settings.Restore(snapshot)
		f, err := files.Open(file)
		if err != nil {
			return err
		}
		log.Debug("synchronizing settings", zap.String("file", file), zap.Int("tree_number", treeNumber))
		return p.mergeStored(f)
	}
}

// targetChain builds the chain of the target of spec over paths.
func targetChain(files *mapper.Files, spec mapper.Spec, paths []string) (*tree.Chain, error) {
	c, err := files.Chain(spec.Target(), paths)
	if err != nil {
		if errors.IsType(err, errors.ErrorTypeUnsupportedObject) {
			return nil, errors.Wrapf(err, errors.ErrorTypeUnsupportedObject,
				"operation %s needs a tree, %s is not one", spec.Name, spec.Target())
		}
		return nil, err
	}
	return c, nil
}
