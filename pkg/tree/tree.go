package tree

import (
	"github.com/ajitpratap0/roast/pkg/errors"
)

// Tree is a named table of typed columns sharing one row count.
type Tree struct {
	name    string
	title   string
	cols    []column
	index   map[string]int
	entries int64
}

// NewTree creates an empty tree with the given columns.
func NewTree(name string, cols ...ColumnDesc) (*Tree, error) {
	t := &Tree{name: name, index: make(map[string]int)}
	for _, d := range cols {
		if err := t.AddColumn(d); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *Tree) Name() string         { return t.name }
func (t *Tree) SetName(name string)  { t.name = name }
func (t *Tree) Title() string        { return t.title }
func (t *Tree) SetTitle(title string) { t.title = title }

// Entries returns the number of rows.
func (t *Tree) Entries() int64 { return t.entries }

// Columns returns the column descriptors in schema order.
func (t *Tree) Columns() []ColumnDesc {
	out := make([]ColumnDesc, len(t.cols))
	for i, c := range t.cols {
		out[i] = c.Desc()
	}
	return out
}

// Column returns the descriptor of the named column.
func (t *Tree) Column(name string) (ColumnDesc, bool) {
	i, ok := t.index[name]
	if !ok {
		return ColumnDesc{}, false
	}
	return t.cols[i].Desc(), true
}

// HasColumn reports whether the tree has a column called name.
func (t *Tree) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// AddColumn appends an empty column. Columns can only be added before the first row.
func (t *Tree) AddColumn(d ColumnDesc) error {
	if d.Name == "" {
		return errors.New(errors.ErrorTypeData, "column name must not be empty")
	}
	if _, ok := t.index[d.Name]; ok {
		return errors.Newf(errors.ErrorTypeData, "column %s already exists in tree %s", d.Name, t.name)
	}
	if t.entries > 0 {
		return errors.Newf(errors.ErrorTypeData, "cannot add column %s to non-empty tree %s", d.Name, t.name)
	}
	t.addColumn(newColumn(d))
	return nil
}

func (t *Tree) addColumn(c column) {
	t.index[c.Desc().Name] = len(t.cols)
	t.cols = append(t.cols, c)
}

func (t *Tree) column(name string) column {
	i, ok := t.index[name]
	if !ok {
		return nil
	}
	return t.cols[i]
}

// At returns value inst of the named column at row, normalized to bool,
// int64, float64 or string. Unsigned values beyond the int64 range come back
// as float64. It returns nil when out of range.
func (t *Tree) At(name string, row int64, inst int) interface{} {
	c := t.column(name)
	if c == nil || row < 0 || row >= t.entries || inst < 0 || inst >= c.rowLen(int(row)) {
		return nil
	}
	return c.at(int(row), inst)
}

// RowLen returns the number of values of the named column at row.
func (t *Tree) RowLen(name string, row int64) int {
	c := t.column(name)
	if c == nil || row < 0 || row >= t.entries {
		return 0
	}
	return c.rowLen(int(row))
}

// gather builds a new tree holding rows of the columns keep accepts.
func (t *Tree) gather(name string, rows []int64, keep func(string) bool) *Tree {
	out := &Tree{name: name, title: t.title, index: make(map[string]int), entries: int64(len(rows))}
	for _, c := range t.cols {
		if keep != nil && !keep(c.Desc().Name) {
			continue
		}
		out.addColumn(c.gather(rows))
	}
	return out
}

// Clone returns a deep copy of the tree under a new name.
func (t *Tree) Clone(name string) *Tree {
	rows := make([]int64, t.entries)
	for i := range rows {
		rows[i] = int64(i)
	}
	return t.gather(name, rows, nil)
}

func sameSchema(a, b []ColumnDesc) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
