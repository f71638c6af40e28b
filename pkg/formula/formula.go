// Package formula compiles row expressions over the columns of a tree
// reader and evaluates them per row and instance.
//
// Expressions use the expr language (github.com/expr-lang/expr) with the
// columns of the reader as variables. Columns of an attached friend are
// written "alias.column". Sequence columns make a formula array valued: the
// number of instances in a row is the shortest length among its sequence
// columns, and instance i reads element i of each of them. Scalar columns
// repeat their value for every instance.
//
// Two pseudo columns are available: File$ is the physical file of the
// current entry and Entry$ its global entry number.
package formula

import (
	"math"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	"github.com/expr-lang/expr/vm"

	"github.com/ajitpratap0/roast/pkg/errors"
	"github.com/ajitpratap0/roast/pkg/tree"
)

const (
	fileVar  = "__file__"
	entryVar = "__entry__"
)

// Reader is the part of a tree cursor formulas depend on.
type Reader interface {
	HasColumn(name string) bool
	BindValue(name string) (*tree.Value, error)
	CurrentFile() string
	Entry() int64
	Serial() uint64
}

type ref struct {
	name   string // full column name, "alias.column" for friends
	alias  string // friend alias or ""
	member string // column name within the friend
	value  *tree.Value
}

// Formula is a compiled expression bound to a reader.
type Formula struct {
	source   string
	program  *vm.Program
	reader   Reader
	refs     []*ref
	isArray  bool
	isString bool

	serial uint64
	ndata  int
	env    map[string]interface{}
}

// Compile parses source and binds every column it references on r.
func Compile(source string, r Reader) (*Formula, error) {
	src := strings.TrimSpace(source)
	if src == "" {
		return nil, errors.New(errors.ErrorTypeFormula, "empty expression")
	}
	rewritten := strings.NewReplacer("File$", fileVar, "Entry$", entryVar).Replace(src)

	parsed, err := parser.Parse(rewritten)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeFormula, "cannot parse %q", source)
	}

	f := &Formula{source: src, reader: r, env: make(map[string]interface{})}
	collector := &refCollector{reader: r, seen: make(map[string]bool)}
	ast.Walk(&parsed.Node, collector)

	sample := map[string]interface{}{fileVar: "", entryVar: 0}
	for _, name := range collector.names {
		v, err := r.BindValue(name)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeFormula, "cannot bind column %s of %q", name, source)
		}
		rf := &ref{name: name, value: v}
		if dot := strings.IndexByte(name, '.'); dot > 0 && collector.friend[name] {
			rf.alias, rf.member = name[:dot], name[dot+1:]
		}
		f.refs = append(f.refs, rf)
		if v.Desc().Kind == tree.Sequence {
			f.isArray = true
		}
		put(sample, rf, zeroOf(v.Desc()))
	}

	opts := append([]expr.Option{expr.Env(sample)}, functions...)
	program, err := expr.Compile(rewritten, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeFormula, "cannot compile %q", source)
	}
	f.program = program
	f.isString = stringValued(parsed.Node, f)
	return f, nil
}

// Source returns the expression text.
func (f *Formula) Source() string { return f.source }

// IsArray reports whether the formula may yield several values per row.
func (f *Formula) IsArray() bool { return f.isArray }

// IsString reports whether the formula yields strings.
func (f *Formula) IsString() bool { return f.isString }

// Columns returns the referenced column names.
func (f *Formula) Columns() []string {
	out := make([]string, len(f.refs))
	for i, r := range f.refs {
		out[i] = r.name
	}
	return out
}

// Ndata returns the number of instances the current row yields.
func (f *Formula) Ndata() int {
	if !f.isArray {
		return 1
	}
	n := -1
	for _, r := range f.refs {
		if r.value.Desc().Kind != tree.Sequence {
			continue
		}
		if l := r.value.Len(); n < 0 || l < n {
			n = l
		}
	}
	if n < 0 {
		return 1
	}
	return n
}

// EvalInstance evaluates instance i of the current row. The result is a
// bool, int64, float64 or string; valid is false when i is outside the row.
// Instance 0 takes a snapshot of the row that later instances reuse.
func (f *Formula) EvalInstance(i int) (interface{}, bool, error) {
	if i == 0 || f.serial != f.reader.Serial() {
		f.serial = f.reader.Serial()
		f.ndata = f.Ndata()
	}
	if i < 0 || (f.isArray && i >= f.ndata) {
		return nil, false, nil
	}
	f.env[fileVar] = f.reader.CurrentFile()
	f.env[entryVar] = int(f.reader.Entry())
	for _, r := range f.refs {
		inst := 0
		if r.value.Desc().Kind == tree.Sequence {
			inst = i
		}
		put(f.env, r, envValue(r.value.At(inst)))
	}
	out, err := expr.Run(f.program, f.env)
	if err != nil {
		return nil, false, errors.Wrapf(err, errors.ErrorTypeFormula, "cannot evaluate %q at entry %d", f.source, f.reader.Entry())
	}
	return normalize(out)
}

// Bool evaluates instance i as a selection: true for true, non-zero
// numbers and non-empty strings.
func (f *Formula) Bool(i int) (bool, error) {
	v, ok, err := f.EvalInstance(i)
	if err != nil || !ok {
		return false, err
	}
	return Truth(v), nil
}

// Truth converts an evaluated value to a selection decision.
func Truth(v interface{}) bool {
	switch x := v.(type) {
	case bool:
		return x
	case int64:
		return x != 0
	case float64:
		return x != 0 && !math.IsNaN(x)
	case string:
		return x != ""
	}
	return false
}

func put(env map[string]interface{}, r *ref, v interface{}) {
	if r.alias == "" {
		env[r.name] = v
		return
	}
	m, ok := env[r.alias].(map[string]interface{})
	if !ok {
		m = make(map[string]interface{})
		env[r.alias] = m
	}
	m[r.member] = v
}

func zeroOf(d tree.ColumnDesc) interface{} {
	switch d.Elem {
	case tree.Bool:
		return false
	case tree.String:
		return ""
	case tree.Float32, tree.Float64:
		return 0.0
	default:
		return 0
	}
}

// envValue adapts stored values to the types expr operators expect.
func envValue(v interface{}) interface{} {
	if i, ok := v.(int64); ok {
		return int(i)
	}
	return v
}

func normalize(v interface{}) (interface{}, bool, error) {
	switch x := v.(type) {
	case nil:
		return nil, false, nil
	case bool, int64, float64, string:
		return x, true, nil
	case int:
		return int64(x), true, nil
	case int32:
		return int64(x), true, nil
	case float32:
		return float64(x), true, nil
	default:
		return nil, false, errors.Newf(errors.ErrorTypeFormula, "expression yields unsupported %T", v)
	}
}

// stringValued reports whether the top of the expression is a string column,
// a string literal or File$.
func stringValued(node ast.Node, f *Formula) bool {
	switch n := node.(type) {
	case *ast.StringNode:
		return true
	case *ast.IdentifierNode:
		if n.Value == fileVar {
			return true
		}
		return f.refKind(n.Value) == tree.String
	case *ast.MemberNode:
		if id, ok := n.Node.(*ast.IdentifierNode); ok {
			if prop, ok := n.Property.(*ast.StringNode); ok {
				return f.refKind(id.Value+"."+prop.Value) == tree.String
			}
		}
	case *ast.ConditionalNode:
		return stringValued(n.Exp1, f) && stringValued(n.Exp2, f)
	case *ast.BinaryNode:
		return n.Operator == "+" && stringValued(n.Left, f) && stringValued(n.Right, f)
	}
	return false
}

func (f *Formula) refKind(name string) tree.ElemType {
	for _, r := range f.refs {
		if r.name == name {
			return r.value.Desc().Elem
		}
	}
	return tree.Float64
}

type refCollector struct {
	reader Reader
	seen   map[string]bool
	friend map[string]bool
	names  []string
}

func (c *refCollector) add(name string, isFriend bool) {
	if c.seen[name] {
		return
	}
	c.seen[name] = true
	if isFriend {
		if c.friend == nil {
			c.friend = make(map[string]bool)
		}
		c.friend[name] = true
	}
	c.names = append(c.names, name)
}

// Visit collects identifiers naming columns and "alias.column" member
// accesses naming friend columns.
func (c *refCollector) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.IdentifierNode:
		if c.reader.HasColumn(n.Value) {
			c.add(n.Value, false)
		}
	case *ast.MemberNode:
		id, ok := n.Node.(*ast.IdentifierNode)
		if !ok {
			return
		}
		prop, ok := n.Property.(*ast.StringNode)
		if !ok {
			return
		}
		if name := id.Value + "." + prop.Value; !c.reader.HasColumn(id.Value) && c.reader.HasColumn(name) {
			c.add(name, true)
		}
	}
}
