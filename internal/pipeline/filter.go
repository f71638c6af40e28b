package pipeline

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/roast/pkg/errors"
	"github.com/ajitpratap0/roast/pkg/mapper"
	"github.com/ajitpratap0/roast/pkg/metrics"
	"github.com/ajitpratap0/roast/pkg/observability"
	"github.com/ajitpratap0/roast/pkg/settings"
	"github.com/ajitpratap0/roast/pkg/tree"
)

// EntryListName is the name FilterMulti stores its entry list under.
const EntryListName = "entrylist"

// splitTreeSpec splits "file.roast/tree" and requires both parts.
func splitTreeSpec(spec string) (string, string, error) {
	file, name := spec, ""
	if !strings.HasSuffix(spec, tree.Extension) {
		file, name = tree.SplitObjectPath(spec)
	}
	if name == "" || !strings.HasSuffix(file, tree.Extension) {
		return "", "", errors.Newf(errors.ErrorTypeSpecSyntax, "input %q must be FILE%s/TREE", spec, tree.Extension)
	}
	return file, name, nil
}

// SelectEntries evaluates selection over the entries [start, start+max) of
// the tree named by input ("file.roast/tree") and returns those that pass.
// max < 0 reads to the end.
func (p *Pipeline) SelectEntries(input, selection string, max, start int64) (*tree.EntryList, error) {
	file, name, err := splitTreeSpec(input)
	if err != nil {
		return nil, err
	}
	files := mapper.NewFiles()
	defer files.Close()

	c, err := files.Chain(name, []string{file})
	if err != nil {
		return nil, err
	}
	defer mapper.Detach(c)
	if _, err := mapper.NewFriendAttacher(files, p.logger).Attach(c, selection); err != nil {
		return nil, err
	}

	spec := mapper.Spec{Max: max, Start: start}
	first, last := spec.Range(c.Entries())
	entries, err := selectEntries(c, selection, first, last)
	if err != nil {
		return nil, err
	}
	list := tree.NewEntryList(EntryListName, name)
	for _, e := range entries {
		list.Add(e)
	}
	p.logger.Info("generated entry list",
		zap.String("input", input),
		zap.String("selection", selection),
		zap.Int("selected", list.Len()),
		zap.Int64("evaluated", last-first))
	return list, nil
}

// FilterMulti copies the tree of every input ("file.roast/tree") into its
// own output named after it with tag. With a selection the entries are
// chosen once on the first input and the same entries are copied from
// every input; without one the range [start, start+max) is copied.
func (p *Pipeline) FilterMulti(ctx context.Context, inputs []string, tag, selection string, max, start int64) (outputs []string, err error) {
	if len(inputs) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "no input to filter")
	}
	timer := metrics.NewTimer(OpFilterMulti)
	defer func() { p.observe(OpFilterMulti, timer, err) }()

	tracer := observability.NewOperationTracer(OpFilterMulti)
	ctx, span := tracer.StartSpan(ctx, "run")
	span.SetAttribute("roast.inputs", inputs)
	span.SetAttribute("roast.selection", selection)
	defer func() { span.End(err) }()

	var list *tree.EntryList
	if strings.TrimSpace(selection) != "" {
		if list, err = p.SelectEntries(inputs[0], selection, max, start); err != nil {
			return nil, err
		}
	}

	for _, input := range inputs {
		if err := ctx.Err(); err != nil {
			return outputs, errors.Wrap(err, errors.ErrorTypeInternal, "filtering cancelled")
		}
		var output string
		err := tracer.TraceFile(ctx, input, func(context.Context) error {
			var ferr error
			output, ferr = p.filterOne(input, tag, list, max, start)
			return ferr
		})
		if err != nil {
			return outputs, err
		}
		outputs = append(outputs, output)
	}
	return outputs, nil
}

func (p *Pipeline) filterOne(input, tag string, list *tree.EntryList, max, start int64) (output string, err error) {
	file, name, err := splitTreeSpec(input)
	if err != nil {
		return "", err
	}
	files := mapper.NewFiles()
	defer files.Close()

	c, err := files.Chain(name, []string{file})
	if err != nil {
		return "", err
	}
	var entries []int64
	if list != nil {
		for _, e := range list.Entries {
			if e >= c.Entries() {
				return "", errors.Newf(errors.ErrorTypeData, "entry %d of the list is out of range for %s (%d entries)",
					e, input, c.Entries())
			}
		}
		entries = list.Entries
	} else {
		spec := mapper.Spec{Max: max, Start: start}
		first, last := spec.Range(c.Entries())
		if entries, err = selectEntries(c, "", first, last); err != nil {
			return "", err
		}
	}

	t, err := c.CopyEntries(name, entries)
	if err != nil {
		return "", err
	}

	output = OutputName(file, tag, p.outputDir)
	out, err := p.createOutput(output)
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			out.Discard()
			return
		}
		err = out.Close()
	}()
	if err := out.PutTree(t); err != nil {
		return "", err
	}
	if list != nil {
		if err := out.PutEntryList(list); err != nil {
			return "", err
		}
	}
	if err := out.WriteSettings(p.settings, settings.LevelGlobal); err != nil {
		return "", err
	}

	p.countFile(OpFilterMulti)
	p.countEntries(OpFilterMulti, c.Entries())
	p.countRows(OpFilterMulti, t.Entries())
	p.logger.Info("filtered tree",
		zap.String("input", input),
		zap.String("output", output),
		zap.Int64("rows", t.Entries()))
	return output, nil
}
