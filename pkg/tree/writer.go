package tree

import (
	"github.com/ajitpratap0/roast/pkg/errors"
)

type writeSlot struct {
	src interface{}
	col column
}

// Writer appends rows to a new tree from bound program variables.
type Writer struct {
	tree  *Tree
	slots []writeSlot
}

// NewWriter creates a writer producing a tree called name.
func NewWriter(name string) *Writer {
	t, _ := NewTree(name)
	return &Writer{tree: t}
}

// BindWrite creates a column called name whose values are taken from src
// at every Fill. src follows the same shape rules as Reader.BindRead.
func (w *Writer) BindWrite(name string, src interface{}) error {
	d, err := DescribePointer(name, src)
	if err != nil {
		return err
	}
	if w.tree.HasColumn(name) {
		return errors.Newf(errors.ErrorTypeBinding, "column %s already bound for writing in tree %s", name, w.tree.Name())
	}
	if err := w.tree.AddColumn(d); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeBinding, "cannot create column %s", name)
	}
	w.slots = append(w.slots, writeSlot{src: src, col: w.tree.column(name)})
	return nil
}

// Fill appends one row holding the current values of every bound variable.
func (w *Writer) Fill() {
	for _, s := range w.slots {
		s.col.store(s.src)
	}
	w.tree.entries++
}

// Entries returns the number of rows written.
func (w *Writer) Entries() int64 { return w.tree.entries }

// Tree returns the tree being written.
func (w *Writer) Tree() *Tree { return w.tree }
