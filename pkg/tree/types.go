// Package tree is the storage backend for roast datasets.
//
// A Tree is an in-memory table of named, typed columns. Trees are persisted
// as Parquet members of a zip container file (see File) and read back as
// Arrow arrays. A Chain concatenates same-schema trees from several files
// into one logical row sequence; a Reader walks a chain and copies row
// values into bound program variables; a Writer does the reverse.
package tree

import (
	"fmt"
	"reflect"

	"github.com/ajitpratap0/roast/pkg/errors"
)

// Kind is the shape of a column value.
type Kind int

const (
	// Scalar is one primitive value per row.
	Scalar Kind = iota
	// Owned is one heap object per row. Strings are the only stored owned type.
	Owned
	// Sequence is a variable length list of primitives per row.
	Sequence
)

func (k Kind) String() string {
	switch k {
	case Scalar:
		return "scalar"
	case Owned:
		return "owned"
	case Sequence:
		return "sequence"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ElemType is the primitive element type of a column.
type ElemType int

const (
	Bool ElemType = iota
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float32
	Float64
	String
)

var elemNames = [...]string{
	Bool: "bool", Int8: "int8", Int16: "int16", Int32: "int32", Int64: "int64",
	Uint8: "uint8", Uint16: "uint16", Uint32: "uint32", Uint64: "uint64",
	Float32: "float32", Float64: "float64", String: "string",
}

func (e ElemType) String() string {
	if int(e) >= 0 && int(e) < len(elemNames) {
		return elemNames[e]
	}
	return fmt.Sprintf("elem(%d)", int(e))
}

// IsNumeric reports whether values of e evaluate as numbers.
func (e ElemType) IsNumeric() bool {
	return e != String
}

// Primitive is the set of Go types a scalar or sequence column can hold.
type Primitive interface {
	bool | int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 | float32 | float64
}

// ColumnDesc describes one column of a tree.
type ColumnDesc struct {
	Name string
	Kind Kind
	Elem ElemType
}

func (d ColumnDesc) String() string {
	switch d.Kind {
	case Sequence:
		return d.Name + " []" + d.Elem.String()
	default:
		return d.Name + " " + d.Elem.String()
	}
}

// ElemOf returns the element type of the primitive T.
func ElemOf[T Primitive]() ElemType {
	var zero T
	switch any(zero).(type) {
	case bool:
		return Bool
	case int8:
		return Int8
	case int16:
		return Int16
	case int32:
		return Int32
	case int64:
		return Int64
	case uint8:
		return Uint8
	case uint16:
		return Uint16
	case uint32:
		return Uint32
	case uint64:
		return Uint64
	case float32:
		return Float32
	default:
		return Float64
	}
}

var elemByType = map[reflect.Type]ElemType{
	reflect.TypeOf(false):      Bool,
	reflect.TypeOf(int8(0)):    Int8,
	reflect.TypeOf(int16(0)):   Int16,
	reflect.TypeOf(int32(0)):   Int32,
	reflect.TypeOf(int64(0)):   Int64,
	reflect.TypeOf(uint8(0)):   Uint8,
	reflect.TypeOf(uint16(0)):  Uint16,
	reflect.TypeOf(uint32(0)):  Uint32,
	reflect.TypeOf(uint64(0)):  Uint64,
	reflect.TypeOf(float32(0)): Float32,
	reflect.TypeOf(float64(0)): Float64,
	reflect.TypeOf(""):         String,
}

// DescribePointer derives the column shape of a bound variable: *T is a
// scalar, *string an owned string and *[]T a sequence.
func DescribePointer(name string, ptr interface{}) (ColumnDesc, error) {
	rt := reflect.TypeOf(ptr)
	if rt == nil || rt.Kind() != reflect.Ptr {
		return ColumnDesc{}, errors.Newf(errors.ErrorTypeBinding, "column %s: destination must be a pointer, got %T", name, ptr)
	}
	et := rt.Elem()
	if et.Kind() == reflect.Slice {
		elem, ok := elemByType[et.Elem()]
		if !ok || elem == String {
			return ColumnDesc{}, errors.Newf(errors.ErrorTypeBinding, "column %s: unsupported sequence type %s", name, et)
		}
		return ColumnDesc{Name: name, Kind: Sequence, Elem: elem}, nil
	}
	elem, ok := elemByType[et]
	if !ok {
		return ColumnDesc{}, errors.Newf(errors.ErrorTypeBinding, "column %s: unsupported type %s", name, et)
	}
	if elem == String {
		return ColumnDesc{Name: name, Kind: Owned, Elem: String}, nil
	}
	return ColumnDesc{Name: name, Kind: Scalar, Elem: elem}, nil
}

// NewSlot allocates a variable able to hold one value of the described column.
func NewSlot(d ColumnDesc) interface{} {
	if d.Kind == Owned {
		return new(string)
	}
	seq := d.Kind == Sequence
	switch d.Elem {
	case Bool:
		return slot[bool](seq)
	case Int8:
		return slot[int8](seq)
	case Int16:
		return slot[int16](seq)
	case Int32:
		return slot[int32](seq)
	case Int64:
		return slot[int64](seq)
	case Uint8:
		return slot[uint8](seq)
	case Uint16:
		return slot[uint16](seq)
	case Uint32:
		return slot[uint32](seq)
	case Uint64:
		return slot[uint64](seq)
	case Float32:
		return slot[float32](seq)
	case String:
		return new(string)
	default:
		return slot[float64](seq)
	}
}

func slot[T Primitive](seq bool) interface{} {
	if seq {
		return new([]T)
	}
	return new(T)
}
