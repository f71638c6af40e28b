package binding

import (
	"github.com/ajitpratap0/roast/pkg/tree"
)

// Scalar is a column holding one primitive value per row.
type Scalar[T tree.Primitive] struct {
	*Column
	v *T
}

// NewScalar creates a scalar column with primary name name.
func NewScalar[T tree.Primitive](name string) *Scalar[T] {
	v := new(T)
	desc := tree.ColumnDesc{Kind: tree.Scalar, Elem: tree.ElemOf[T]()}
	return &Scalar[T]{Column: newColumn(name, desc, v), v: v}
}

// Get returns the current value.
func (s *Scalar[T]) Get() T { return *s.v }

// Set replaces the current value.
func (s *Scalar[T]) Set(v T) { *s.v = v }

// Sequence is a column holding a variable length list per row.
type Sequence[T tree.Primitive] struct {
	*Column
	v *[]T
}

// NewSequence creates a sequence column with primary name name.
func NewSequence[T tree.Primitive](name string) *Sequence[T] {
	v := new([]T)
	desc := tree.ColumnDesc{Kind: tree.Sequence, Elem: tree.ElemOf[T]()}
	return &Sequence[T]{Column: newColumn(name, desc, v), v: v}
}

// Values returns the current list. It is overwritten by the next row.
func (s *Sequence[T]) Values() []T { return *s.v }

// Len returns the length of the current list.
func (s *Sequence[T]) Len() int { return len(*s.v) }

// Set replaces the current list.
func (s *Sequence[T]) Set(v []T) { *s.v = append((*s.v)[:0], v...) }

// Append adds values to the current list.
func (s *Sequence[T]) Append(v ...T) { *s.v = append(*s.v, v...) }

// Text is an owned string column. Clear leaves its value untouched.
type Text struct {
	*Column
	v *string
}

// NewText creates a string column with primary name name.
func NewText(name string) *Text {
	v := new(string)
	desc := tree.ColumnDesc{Kind: tree.Owned, Elem: tree.String}
	return &Text{Column: newColumn(name, desc, v), v: v}
}

// Get returns the current value.
func (s *Text) Get() string { return *s.v }

// Set replaces the current value.
func (s *Text) Set(v string) { *s.v = v }
