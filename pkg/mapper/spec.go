// Package mapper parses mapper specifications and provides the pieces the
// pipeline applies per operation: branch activation, friend attachment and
// the selector registry with its TreeMapper base.
//
// A mapper string holds one or more operations separated by ';':
//
//	copy(events, pt:eta:^raw* >> skim, pt > 20, 1000, 0)
//	draw(events, pt >> hpt(100,0,200), eta < 2.4)
//	treemap(events, , 5000)
//
// Argument 0 is always the target object. Arguments are separated by
// commas outside parentheses and quotes.
package mapper

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ajitpratap0/roast/pkg/errors"
)

// Op is the kind of a mapper operation.
type Op int

const (
	// OpSelector runs a registered selector.
	OpSelector Op = iota
	// OpCopy copies a tree, optionally projected and filtered.
	OpCopy
	// OpDraw fills a histogram from an expression.
	OpDraw
)

func (o Op) String() string {
	switch o {
	case OpCopy:
		return "copy"
	case OpDraw:
		return "draw"
	default:
		return "selector"
	}
}

var (
	specPattern = regexp.MustCompile(`^([^(]*)\((.*)\)$`)
	namePattern = regexp.MustCompile(`^\w+$`)
	drawPattern = regexp.MustCompile(`^(.*?)\s*>>\s*(\w+)\s*(?:\((.*)\))?$`)
	maxArgsByOp = map[Op]int{OpCopy: 5, OpDraw: 6, OpSelector: 4}
	boundsByOp  = map[Op][2]int{OpCopy: {3, 4}, OpDraw: {4, 5}, OpSelector: {2, 3}}
)

// Spec is one parsed mapper operation.
type Spec struct {
	Raw       string
	Name      string
	Op        Op
	Args      []string
	Recompile bool
	// Max is the maximum number of entries to process, -1 for all.
	Max int64
	// Start is the first entry to process.
	Start int64
}

// Target returns the name of the object the operation reads.
func (s Spec) Target() string { return s.Arg(0) }

// Arg returns argument i or "" when it was not given.
func (s Spec) Arg(i int) string {
	if i < len(s.Args) {
		return s.Args[i]
	}
	return ""
}

// String renders the operation as name(arg0,arg1,...).
func (s Spec) String() string {
	return s.Name + "(" + strings.Join(s.Args, ",") + ")"
}

// Range returns the half-open entry range [first, last) of a dataset with
// the given number of entries.
func (s Spec) Range(entries int64) (int64, int64) {
	first := s.Start
	if first > entries {
		first = entries
	}
	last := entries
	if s.Max >= 0 && s.Max < last-first {
		last = first + s.Max
	}
	return first, last
}

// CopyArgs are the arguments of a copy operation.
type CopyArgs struct {
	// Filter is the branch activation filter without the rename suffix.
	Filter string
	// OutName is the name of the output tree, the target name by default.
	OutName   string
	Selection string
}

// Copy returns the copy arguments. It is only meaningful when Op is OpCopy.
func (s Spec) Copy() CopyArgs {
	filter, out, _ := splitRename(s.Arg(1))
	if out == "" {
		out = s.Target()
	}
	return CopyArgs{Filter: filter, OutName: out, Selection: s.Arg(2)}
}

// DrawArgs are the arguments of a draw operation.
type DrawArgs struct {
	Expression string
	// HistName is empty when the histogram is not stored.
	HistName  string
	Binned    bool
	Bins      int
	Low       float64
	High      float64
	Selection string
	Options   string
}

// Draw returns the draw arguments. It is only meaningful when Op is OpDraw.
func (s Spec) Draw() DrawArgs {
	d, _ := parseDraw(s.Arg(1))
	d.Selection = s.Arg(2)
	d.Options = s.Arg(3)
	return d
}

// Option returns the option string of a selector operation.
func (s Spec) Option() string { return s.Arg(1) }

// Parse splits mappers on ';' and parses every operation. Nothing is
// opened or evaluated; the result is fully validated.
func Parse(mappers string) ([]Spec, error) {
	var specs []Spec
	for _, part := range strings.Split(mappers, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		s, err := parseOne(part)
		if err != nil {
			return nil, err
		}
		specs = append(specs, s)
	}
	if len(specs) == 0 {
		return nil, errors.Newf(errors.ErrorTypeSpecSyntax, "no mapper operations in %q", mappers)
	}
	return specs, nil
}

func parseOne(raw string) (Spec, error) {
	m := specPattern.FindStringSubmatch(raw)
	if m == nil {
		return Spec{}, errors.Newf(errors.ErrorTypeSpecSyntax, "invalid mapper specification: %q", raw).
			WithDetail("spec", raw)
	}
	name := strings.TrimSpace(m[1])
	s := Spec{Raw: raw, Max: -1}
	if strings.HasSuffix(name, "+") {
		s.Recompile = strings.HasSuffix(name, "++")
		name = strings.TrimRight(name, "+")
	}
	if name == "" {
		return Spec{}, errors.Newf(errors.ErrorTypeSpecSyntax, "missing operation name in %q", raw).WithDetail("spec", raw)
	}
	s.Name = name
	switch name {
	case "copy":
		s.Op = OpCopy
	case "draw":
		s.Op = OpDraw
	default:
		s.Op = OpSelector
	}

	s.Args = splitArgs(m[2])
	if len(s.Args) == 0 || s.Args[0] == "" {
		return Spec{}, errors.Newf(errors.ErrorTypeSpecSyntax,
			"Invalid number of parameters for operation %s, expecting at least one.", name).WithDetail("spec", raw)
	}
	if max := maxArgsByOp[s.Op]; len(s.Args) > max {
		return Spec{}, errors.Newf(errors.ErrorTypeSpecSyntax,
			"Invalid number of parameters for operation %s, expecting 1 to %d.", name, max).WithDetail("spec", raw)
	}

	bounds := boundsByOp[s.Op]
	var err error
	if s.Max, err = intArg(s, bounds[0], -1); err != nil {
		return Spec{}, err
	}
	if s.Start, err = intArg(s, bounds[1], 0); err != nil {
		return Spec{}, err
	}
	if s.Start < 0 {
		return Spec{}, errors.Newf(errors.ErrorTypeSpecSyntax, "negative start entry %d in %q", s.Start, raw)
	}

	switch s.Op {
	case OpCopy:
		if _, _, err := splitRename(s.Arg(1)); err != nil {
			return Spec{}, err.WithDetail("spec", raw)
		}
	case OpDraw:
		if s.Arg(1) == "" {
			return Spec{}, errors.Newf(errors.ErrorTypeSpecSyntax, "draw needs an expression in %q", raw)
		}
		if _, err := parseDraw(s.Arg(1)); err != nil {
			return Spec{}, err.WithDetail("spec", raw)
		}
	}
	return s, nil
}

func intArg(s Spec, i int, dflt int64) (int64, error) {
	v := s.Arg(i)
	if v == "" {
		return dflt, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, errors.Newf(errors.ErrorTypeSpecSyntax, "argument %d of %s must be an integer, got %q", i, s.Name, v).
			WithDetail("spec", s.Raw)
	}
	return n, nil
}

// splitArgs splits on commas that are not nested in parentheses, brackets
// or quotes, and trims every argument.
func splitArgs(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var (
		out   []string
		depth int
		quote rune
		start int
	)
	for i, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'' || r == '`':
			quote = r
		case r == '(' || r == '[' || r == '{':
			depth++
		case r == ')' || r == ']' || r == '}':
			depth--
		case r == ',' && depth == 0:
			out = append(out, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	return append(out, strings.TrimSpace(s[start:]))
}

// splitRename splits "filter >> name" into its parts.
func splitRename(arg string) (string, string, *errors.Error) {
	i := strings.LastIndex(arg, ">>")
	if i < 0 {
		return strings.TrimSpace(arg), "", nil
	}
	name := strings.TrimSpace(arg[i+2:])
	if !namePattern.MatchString(name) {
		return "", "", errors.Newf(errors.ErrorTypeSpecSyntax, "invalid output tree name %q", name)
	}
	return strings.TrimSpace(arg[:i]), name, nil
}

func parseDraw(arg string) (DrawArgs, *errors.Error) {
	m := drawPattern.FindStringSubmatch(arg)
	if m == nil {
		if strings.Contains(arg, ">>") {
			return DrawArgs{}, errors.Newf(errors.ErrorTypeSpecSyntax, "invalid draw target in %q", arg)
		}
		return DrawArgs{Expression: strings.TrimSpace(arg)}, nil
	}
	d := DrawArgs{Expression: strings.TrimSpace(m[1]), HistName: m[2]}
	if d.Expression == "" {
		return DrawArgs{}, errors.Newf(errors.ErrorTypeSpecSyntax, "draw needs an expression in %q", arg)
	}
	if strings.TrimSpace(m[3]) == "" {
		return d, nil
	}
	parts := splitArgs(m[3])
	if len(parts) != 3 {
		return DrawArgs{}, errors.Newf(errors.ErrorTypeSpecSyntax, "histogram binning must be (bins,low,high), got (%s)", m[3])
	}
	bins, err := strconv.Atoi(parts[0])
	if err != nil || bins <= 0 {
		return DrawArgs{}, errors.Newf(errors.ErrorTypeSpecSyntax, "invalid bin count %q", parts[0])
	}
	low, err1 := strconv.ParseFloat(parts[1], 64)
	high, err2 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil || !(high > low) {
		return DrawArgs{}, errors.Newf(errors.ErrorTypeSpecSyntax, "invalid histogram range (%s,%s)", parts[1], parts[2])
	}
	d.Binned, d.Bins, d.Low, d.High = true, bins, low, high
	return d, nil
}
