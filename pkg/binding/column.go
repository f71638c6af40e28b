// Package binding connects typed program variables to tree columns.
//
// A Column is one logical field. It carries a list of candidate physical
// names: the first name added is its primary name, used when writing, and
// reading tries an explicit name first and then the candidates from the most
// recently added to the oldest. The variable a Column owns is reused for
// every row; the reader copies each row into it in place.
package binding

import (
	"fmt"

	"github.com/ajitpratap0/roast/pkg/errors"
	"github.com/ajitpratap0/roast/pkg/tree"
)

// ReadCursor is the reading side of a row cursor.
type ReadCursor interface {
	HasColumn(name string) bool
	BindRead(name string, dst interface{}) error
	AddToCache(name string)
}

// WriteCursor is the writing side of a row cursor.
type WriteCursor interface {
	BindWrite(name string, src interface{}) error
}

// Clearer is implemented by owned values that know how to reset themselves.
type Clearer interface {
	Clear()
}

// Column is a logical column bound to a variable of one shape.
type Column struct {
	names     []string
	desc      tree.ColumnDesc
	ptr       interface{}
	available bool
	written   bool
}

// NewColumn creates a column for desc with freshly allocated storage.
// desc.Name becomes the primary name.
func NewColumn(desc tree.ColumnDesc) *Column {
	return newColumn(desc.Name, desc, tree.NewSlot(desc))
}

func newColumn(name string, desc tree.ColumnDesc, ptr interface{}) *Column {
	c := &Column{desc: desc, ptr: ptr}
	if name != "" {
		c.names = append(c.names, name)
	}
	return c
}

// AddName appends a candidate physical name. Later names take precedence
// when reading.
func (c *Column) AddName(name string) *Column {
	c.names = append(c.names, name)
	return c
}

// Names returns the candidate names in insertion order.
func (c *Column) Names() []string {
	return append([]string(nil), c.names...)
}

// PrimaryName returns the first added name.
func (c *Column) PrimaryName() string {
	if len(c.names) == 0 {
		return ""
	}
	return c.names[0]
}

// Desc returns the column shape. Name is the primary name.
func (c *Column) Desc() tree.ColumnDesc {
	d := c.desc
	d.Name = c.PrimaryName()
	return d
}

// Available reports whether the last read bind succeeded.
func (c *Column) Available() bool { return c.available }

// Ptr returns the bound variable: *T, *string or *[]T.
func (c *Column) Ptr() interface{} { return c.ptr }

// BindRead binds the column to the first existing name among explicit and
// the candidates, most recent first. When nothing matches, optional columns
// become unavailable and required ones fail with a binding error.
func (c *Column) BindRead(r ReadCursor, explicit string, optional bool) error {
	c.available = false
	tried := make([]string, 0, len(c.names)+1)
	if explicit != "" {
		tried = append(tried, explicit)
	}
	for i := len(c.names) - 1; i >= 0; i-- {
		tried = append(tried, c.names[i])
	}

	for _, name := range tried {
		if !r.HasColumn(name) {
			continue
		}
		if err := r.BindRead(name, c.ptr); err != nil {
			return err
		}
		r.AddToCache(name)
		c.available = true
		return nil
	}

	if optional {
		return nil
	}
	key := explicit
	if key == "" {
		key = c.PrimaryName()
	}
	return errors.Newf(errors.ErrorTypeBinding, "could not load column %s", key).
		WithDetail("candidates", tried)
}

// BindWrite creates an output column called explicit, or the primary name
// when explicit is empty. Binding the same Column for writing twice panics.
func (c *Column) BindWrite(w WriteCursor, explicit string) error {
	if c.written {
		panic(fmt.Sprintf("binding: column %s bound for writing twice", c.PrimaryName()))
	}
	name := explicit
	if name == "" {
		name = c.PrimaryName()
	}
	if name == "" {
		return errors.New(errors.ErrorTypeBinding, "cannot write a column without a name")
	}
	if err := w.BindWrite(name, c.ptr); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeBinding, "could not create output column %s", name)
	}
	c.written = true
	return nil
}

// Clear resets the value: scalars to zero, sequences to empty. Owned values
// are left alone unless they implement Clearer.
func (c *Column) Clear() {
	switch c.desc.Kind {
	case tree.Owned:
		if cl, ok := c.ptr.(Clearer); ok {
			cl.Clear()
		}
	default:
		clearValue(c.ptr)
	}
}

func clearValue(ptr interface{}) {
	switch p := ptr.(type) {
	case *bool:
		*p = false
	case *int8:
		*p = 0
	case *int16:
		*p = 0
	case *int32:
		*p = 0
	case *int64:
		*p = 0
	case *uint8:
		*p = 0
	case *uint16:
		*p = 0
	case *uint32:
		*p = 0
	case *uint64:
		*p = 0
	case *float32:
		*p = 0
	case *float64:
		*p = 0
	case *string:
		*p = ""
	case *[]bool:
		*p = (*p)[:0]
	case *[]int8:
		*p = (*p)[:0]
	case *[]int16:
		*p = (*p)[:0]
	case *[]int32:
		*p = (*p)[:0]
	case *[]int64:
		*p = (*p)[:0]
	case *[]uint8:
		*p = (*p)[:0]
	case *[]uint16:
		*p = (*p)[:0]
	case *[]uint32:
		*p = (*p)[:0]
	case *[]uint64:
		*p = (*p)[:0]
	case *[]float32:
		*p = (*p)[:0]
	case *[]float64:
		*p = (*p)[:0]
	}
}
