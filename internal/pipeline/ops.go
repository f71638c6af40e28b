package pipeline

import (
	"context"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/roast/pkg/errors"
	"github.com/ajitpratap0/roast/pkg/formula"
	"github.com/ajitpratap0/roast/pkg/hist"
	"github.com/ajitpratap0/roast/pkg/mapper"
	"github.com/ajitpratap0/roast/pkg/observability"
	"github.com/ajitpratap0/roast/pkg/tree"
)

// defaultHistName names histograms of draw operations without a target.
const defaultHistName = "htemp"

// execution is the state one operation runs with.
type execution struct {
	spec   mapper.Spec
	chain  *tree.Chain
	files  *mapper.Files
	output *tree.File
	log    *zap.Logger
	// onFile runs at every file boundary of a selector run.
	onFile tree.FileChangeFunc
}

// execute runs one parsed operation against its target chain.
func (p *Pipeline) execute(ctx context.Context, op string, ex *execution) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "mapping cancelled")
	}
	tracer := observability.NewOperationTracer(op)
	_, span := tracer.StartSpan(ctx, ex.spec.Name)
	span.SetAttribute("roast.spec", ex.spec.String())
	span.SetAttribute("roast.tree", ex.chain.Name())
	span.SetAttribute("roast.entries", ex.chain.Entries())

	ex.log.Info("executing mapper",
		zap.String("spec", ex.spec.String()),
		zap.Int64("entries", ex.chain.Entries()))

	var err error
	switch ex.spec.Op {
	case mapper.OpCopy:
		err = p.copyTree(op, ex)
	case mapper.OpDraw:
		err = p.draw(op, ex)
	default:
		err = p.runSelector(ctx, op, ex)
	}
	span.End(err)
	return err
}

// copyTree clones the target or copies the selected entries of its active
// columns. Activation and friends are restored afterwards, also on error.
func (p *Pipeline) copyTree(op string, ex *execution) error {
	c := ex.chain
	if len(ex.spec.Args) <= 1 {
		t, err := c.Clone(c.Name())
		if err != nil {
			return err
		}
		p.countEntries(op, c.Entries())
		p.countRows(op, t.Entries())
		ex.log.Info("cloned tree", zap.String("tree", c.Name()), zap.Int64("rows", t.Entries()))
		return ex.output.PutTree(t)
	}

	args := ex.spec.Copy()
	defer func() {
		c.ResetActivation()
		mapper.Detach(c)
	}()

	if _, err := mapper.NewFriendAttacher(ex.files, ex.log).Attach(c, args.Selection); err != nil {
		return err
	}
	first, last := ex.spec.Range(c.Entries())
	entries, err := selectEntries(c, args.Selection, first, last)
	if err != nil {
		return err
	}
	// Binding the selection activates its columns, so the filter goes last.
	mapper.ApplyBranchFilter(c, args.Filter, ex.log)

	t, err := c.CopyEntries(args.OutName, entries)
	if err != nil {
		return err
	}
	p.countEntries(op, last-first)
	p.countRows(op, t.Entries())
	ex.log.Info("copied tree",
		zap.String("tree", c.Name()),
		zap.String("output", args.OutName),
		zap.Int("columns", len(t.Columns())),
		zap.Int64("rows", t.Entries()))
	return ex.output.PutTree(t)
}

// selectEntries returns the entries of [first, last) whose selection holds
// for at least one instance. An empty selection keeps every entry.
func selectEntries(c *tree.Chain, selection string, first, last int64) ([]int64, error) {
	if strings.TrimSpace(selection) == "" {
		out := make([]int64, 0, last-first)
		for e := first; e < last; e++ {
			out = append(out, e)
		}
		return out, nil
	}

	r := tree.NewReader(c)
	sel, err := formula.Compile(selection, r)
	if err != nil {
		return nil, err
	}
	var out []int64
	for e := first; e < last; e++ {
		ok, err := r.Load(e)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		for i, n := 0, sel.Ndata(); i < n; i++ {
			pass, err := sel.Bool(i)
			if err != nil {
				return nil, err
			}
			if pass {
				out = append(out, e)
				break
			}
		}
	}
	return out, nil
}

// draw fills a histogram with the expression of the operation. The
// selection is a weight: numbers weight the value, booleans count as 1 or 0.
func (p *Pipeline) draw(op string, ex *execution) error {
	c := ex.chain
	args := ex.spec.Draw()
	defer func() {
		c.ResetActivation()
		mapper.Detach(c)
	}()

	attacher := mapper.NewFriendAttacher(ex.files, ex.log)
	if _, err := attacher.Attach(c, args.Expression); err != nil {
		return err
	}
	if _, err := attacher.Attach(c, args.Selection); err != nil {
		return err
	}

	r := tree.NewReader(c)
	value, err := formula.Compile(args.Expression, r)
	if err != nil {
		return err
	}
	if value.IsString() {
		return errors.Newf(errors.ErrorTypeFormula, "cannot draw string expression %q", args.Expression)
	}
	var weight *formula.Formula
	if strings.TrimSpace(args.Selection) != "" {
		if weight, err = formula.Compile(args.Selection, r); err != nil {
			return err
		}
	}

	name := args.HistName
	if name == "" {
		name = defaultHistName
	}
	var h *hist.Hist1D
	if args.Binned {
		if h, err = hist.New(name, args.Expression, args.Bins, args.Low, args.High); err != nil {
			return err
		}
	} else {
		h = hist.NewAuto(name, args.Expression, args.Bins)
	}
	if args.Options != "" {
		ex.log.Debug("ignoring draw options", zap.String("options", args.Options))
	}

	first, last := ex.spec.Range(c.Entries())
	for e := first; e < last; e++ {
		ok, err := r.Load(e)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if err := fillEntry(h, value, weight); err != nil {
			return err
		}
	}
	h.Finalize()
	p.countEntries(op, last-first)

	ex.log.Info("filled histogram",
		zap.String("hist", name),
		zap.String("expression", args.Expression),
		zap.Int64("entries", h.Entries),
		zap.Float64("mean", h.Mean()),
		zap.Float64("std_dev", h.StdDev()))
	if args.HistName == "" {
		return nil
	}
	p.countRows(op, 1)
	return ex.output.PutObject(h.Name, tree.KindHist, h)
}

func fillEntry(h *hist.Hist1D, value, weight *formula.Formula) error {
	n := value.Ndata()
	scalarWeight := weight == nil || !weight.IsArray()
	if weight != nil && weight.IsArray() && !value.IsArray() {
		n = weight.Ndata()
	}
	w := 1.0
	if weight != nil && scalarWeight {
		v, ok, err := weight.EvalInstance(0)
		if err != nil {
			return err
		}
		if w = weightOf(v, ok); w == 0 {
			return nil
		}
	}
	for i := 0; i < n; i++ {
		if weight != nil && !scalarWeight {
			v, ok, err := weight.EvalInstance(i)
			if err != nil {
				return err
			}
			if w = weightOf(v, ok); w == 0 {
				continue
			}
		}
		v, ok, err := value.EvalInstance(i)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		x, isNum := number(v)
		if !isNum {
			return errors.Newf(errors.ErrorTypeFormula, "draw expression %q is not numeric", value.Source())
		}
		h.FillWeight(x, w)
	}
	return nil
}

func weightOf(v interface{}, ok bool) float64 {
	if !ok {
		return 0
	}
	switch x := v.(type) {
	case bool:
		if x {
			return 1
		}
		return 0
	case int64:
		return float64(x)
	case float64:
		if math.IsNaN(x) {
			return 0
		}
		return x
	}
	if formula.Truth(v) {
		return 1
	}
	return 0
}

func number(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case int64:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

// runSelector runs a fresh instance of the registered selector over the
// range of the operation.
func (p *Pipeline) runSelector(ctx context.Context, op string, ex *execution) error {
	c := ex.chain
	defer c.ResetActivation()

	sel, err := p.registry.Create(ex.spec.Name)
	if err != nil {
		return err
	}
	if ex.spec.Recompile {
		ex.log.Debug("selector recompilation requested", zap.String("selector", ex.spec.Name))
	}
	env := &mapper.Env{
		Settings: p.settings,
		Output:   ex.output,
		Logger:   ex.log,
	}
	first, last := ex.spec.Range(c.Entries())
	n, err := mapper.Run(ctx, sel, env, c, ex.spec.Option(), first, last, ex.onFile)
	p.countEntries(op, n)
	if err != nil {
		return err
	}
	ex.log.Info("selector finished", zap.String("selector", ex.spec.Name), zap.Int64("entries", n))
	return nil
}
