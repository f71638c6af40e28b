package tree

import (
	"sort"
	"strings"

	"github.com/ajitpratap0/roast/pkg/errors"
)

// FileChangeFunc is called by Reader.Load before the first row of a new
// physical file is loaded. treeNumber is the index of the tree in the chain.
type FileChangeFunc func(file string, treeNumber int) error

// Value is a generic read-only view of one bound column at the current row.
type Value struct {
	desc ColumnDesc
	col  column
	row  int
	ok   bool
}

// Desc returns the descriptor of the underlying column.
func (v *Value) Desc() ColumnDesc { return v.desc }

// Len returns the number of values at the current row.
func (v *Value) Len() int {
	if !v.ok {
		return 0
	}
	return v.col.rowLen(v.row)
}

// At returns value i at the current row as bool, int64, float64 or string,
// or nil when i is out of range.
func (v *Value) At(i int) interface{} {
	if i < 0 || i >= v.Len() {
		return nil
	}
	return v.col.at(v.row, i)
}

type readSlot struct {
	chain  *Chain
	column string
	dst    interface{}
	value  *Value
	tree   int
	col    column
}

// Reader is a row cursor over a chain and its friends.
type Reader struct {
	chain        *Chain
	slots        []*readSlot
	cache        map[string]bool
	tree         int
	entry        int64
	serial       uint64
	onFileChange FileChangeFunc
}

// NewReader creates a cursor positioned before the first entry of c.
func NewReader(c *Chain) *Reader {
	return &Reader{chain: c, cache: make(map[string]bool), tree: -1, entry: -1}
}

// Chain returns the chain the reader walks.
func (r *Reader) Chain() *Chain { return r.chain }

func (r *Reader) resolve(name string) (*Chain, ColumnDesc, bool) {
	if d, ok := r.chain.Column(name); ok {
		return r.chain, d, true
	}
	if dot := strings.IndexByte(name, '.'); dot > 0 {
		if f := r.chain.Friend(name[:dot]); f != nil {
			if d, ok := f.Column(name[dot+1:]); ok {
				return f, d, true
			}
		}
	}
	return nil, ColumnDesc{}, false
}

// HasColumn reports whether name resolves to a column of the chain or,
// written "alias.column", of an attached friend.
func (r *Reader) HasColumn(name string) bool {
	_, _, ok := r.resolve(name)
	return ok
}

// Column returns the descriptor name resolves to.
func (r *Reader) Column(name string) (ColumnDesc, bool) {
	_, d, ok := r.resolve(name)
	return d, ok
}

// BindRead binds dst to the named column. dst must be *T for scalars,
// *string for strings and *[]T for sequences of the column's element type.
// Binding enables the column.
func (r *Reader) BindRead(name string, dst interface{}) error {
	ch, d, ok := r.resolve(name)
	if !ok {
		return errors.Newf(errors.ErrorTypeBinding, "column %s not found in tree %s", name, r.chain.Name())
	}
	want, err := DescribePointer(name, dst)
	if err != nil {
		return err
	}
	if want.Kind != d.Kind || want.Elem != d.Elem {
		return errors.Newf(errors.ErrorTypeBinding, "column %s is %s %s, cannot bind %T",
			name, d.Kind, d.Elem, dst)
	}
	ch.SetActive(d.Name, true)
	r.slots = append(r.slots, &readSlot{chain: ch, column: d.Name, dst: dst, tree: -1})
	return nil
}

// BindValue binds a generic view of the named column.
func (r *Reader) BindValue(name string) (*Value, error) {
	ch, d, ok := r.resolve(name)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeBinding, "column %s not found in tree %s", name, r.chain.Name())
	}
	ch.SetActive(d.Name, true)
	v := &Value{desc: d}
	r.slots = append(r.slots, &readSlot{chain: ch, column: d.Name, value: v, tree: -1})
	if r.entry >= 0 {
		if err := r.loadSlot(r.slots[len(r.slots)-1], r.entry); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// AddToCache records name as a column the caller will read on every entry.
func (r *Reader) AddToCache(name string) {
	r.cache[name] = true
}

// Cached returns the cached column names, sorted.
func (r *Reader) Cached() []string {
	out := make([]string, 0, len(r.cache))
	for k := range r.cache {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// OnFileChange registers fn to run at every physical file transition.
func (r *Reader) OnFileChange(fn FileChangeFunc) {
	r.onFileChange = fn
}

// Entry returns the global entry loaded last, or -1.
func (r *Reader) Entry() int64 { return r.entry }

// TreeNumber returns the chain index of the current tree, or -1.
func (r *Reader) TreeNumber() int { return r.tree }

// CurrentFile returns the physical file of the current entry.
func (r *Reader) CurrentFile() string { return r.chain.File(r.tree) }

// Serial increases by one with every successful Load.
func (r *Reader) Serial() uint64 { return r.serial }

// Load reads entry into every bound destination. It returns false without
// error when entry is outside the chain.
func (r *Reader) Load(entry int64) (bool, error) {
	ti, _, ok := r.chain.locate(entry)
	if !ok {
		return false, nil
	}
	if ti != r.tree {
		r.tree = ti
		if r.onFileChange != nil {
			if err := r.onFileChange(r.chain.elems[ti].file, ti); err != nil {
				return false, err
			}
		}
	}
	for _, s := range r.slots {
		if err := r.loadSlot(s, entry); err != nil {
			return false, err
		}
	}
	r.entry = entry
	r.serial++
	return true, nil
}

func (r *Reader) loadSlot(s *readSlot, entry int64) error {
	ti, row, ok := s.chain.locate(entry)
	if !ok {
		return errors.Newf(errors.ErrorTypeData, "entry %d out of range for %s", entry, s.chain.Name())
	}
	if s.tree != ti {
		s.col = s.chain.elems[ti].tree.column(s.column)
		s.tree = ti
		if s.col == nil {
			return errors.Newf(errors.ErrorTypeData, "column %s missing in %s", s.column, s.chain.elems[ti].file)
		}
	}
	if s.dst != nil {
		s.col.load(row, s.dst)
	}
	if s.value != nil {
		s.value.col = s.col
		s.value.row = row
		s.value.ok = true
	}
	return nil
}
