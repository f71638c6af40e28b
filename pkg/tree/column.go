package tree

import "math"

// column is the typed storage of one tree column.
type column interface {
	Desc() ColumnDesc
	Len() int
	// rowLen is the number of values in row: 1 for scalars and owned values.
	rowLen(row int) int
	// at returns value inst of row as bool, int64, float64 or string.
	// Unsigned values beyond the int64 range are returned as float64.
	at(row, inst int) interface{}
	// load copies row into dst, which must match the column shape.
	load(row int, dst interface{})
	// store appends the value pointed to by src as a new row.
	store(src interface{})
	gather(rows []int64) column
	rename(name string) column
}

type scalarColumn[T Primitive] struct {
	desc ColumnDesc
	vals []T
}

func (c *scalarColumn[T]) Desc() ColumnDesc { return c.desc }

func (c *scalarColumn[T]) Len() int { return len(c.vals) }

func (c *scalarColumn[T]) rowLen(int) int { return 1 }

func (c *scalarColumn[T]) at(row, _ int) interface{} { return normalize(c.vals[row]) }

func (c *scalarColumn[T]) load(row int, dst interface{}) { *dst.(*T) = c.vals[row] }

func (c *scalarColumn[T]) store(src interface{}) { c.vals = append(c.vals, *src.(*T)) }

func (c *scalarColumn[T]) gather(rows []int64) column {
	out := &scalarColumn[T]{desc: c.desc, vals: make([]T, len(rows))}
	for i, r := range rows {
		out.vals[i] = c.vals[r]
	}
	return out
}

func (c *scalarColumn[T]) rename(name string) column {
	d := c.desc
	d.Name = name
	return &scalarColumn[T]{desc: d, vals: c.vals}
}

type seqColumn[T Primitive] struct {
	desc ColumnDesc
	vals [][]T
}

func (c *seqColumn[T]) Desc() ColumnDesc { return c.desc }

func (c *seqColumn[T]) Len() int { return len(c.vals) }

func (c *seqColumn[T]) rowLen(row int) int { return len(c.vals[row]) }

func (c *seqColumn[T]) at(row, inst int) interface{} { return normalize(c.vals[row][inst]) }

func (c *seqColumn[T]) load(row int, dst interface{}) {
	d := dst.(*[]T)
	*d = append((*d)[:0], c.vals[row]...)
}

func (c *seqColumn[T]) store(src interface{}) {
	c.vals = append(c.vals, append([]T(nil), *src.(*[]T)...))
}

func (c *seqColumn[T]) gather(rows []int64) column {
	out := &seqColumn[T]{desc: c.desc, vals: make([][]T, len(rows))}
	for i, r := range rows {
		out.vals[i] = c.vals[r]
	}
	return out
}

func (c *seqColumn[T]) rename(name string) column {
	d := c.desc
	d.Name = name
	return &seqColumn[T]{desc: d, vals: c.vals}
}

type stringColumn struct {
	desc ColumnDesc
	vals []string
}

func (c *stringColumn) Desc() ColumnDesc { return c.desc }

func (c *stringColumn) Len() int { return len(c.vals) }

func (c *stringColumn) rowLen(int) int { return 1 }

func (c *stringColumn) at(row, _ int) interface{} { return c.vals[row] }

func (c *stringColumn) load(row int, dst interface{}) { *dst.(*string) = c.vals[row] }

func (c *stringColumn) store(src interface{}) { c.vals = append(c.vals, *src.(*string)) }

func (c *stringColumn) gather(rows []int64) column {
	out := &stringColumn{desc: c.desc, vals: make([]string, len(rows))}
	for i, r := range rows {
		out.vals[i] = c.vals[r]
	}
	return out
}

func (c *stringColumn) rename(name string) column {
	d := c.desc
	d.Name = name
	return &stringColumn{desc: d, vals: c.vals}
}

func newColumn(d ColumnDesc) column {
	if d.Kind == Owned || d.Elem == String {
		d.Kind, d.Elem = Owned, String
		return &stringColumn{desc: d}
	}
	seq := d.Kind == Sequence
	switch d.Elem {
	case Bool:
		return makeColumn[bool](d, seq)
	case Int8:
		return makeColumn[int8](d, seq)
	case Int16:
		return makeColumn[int16](d, seq)
	case Int32:
		return makeColumn[int32](d, seq)
	case Int64:
		return makeColumn[int64](d, seq)
	case Uint8:
		return makeColumn[uint8](d, seq)
	case Uint16:
		return makeColumn[uint16](d, seq)
	case Uint32:
		return makeColumn[uint32](d, seq)
	case Uint64:
		return makeColumn[uint64](d, seq)
	case Float32:
		return makeColumn[float32](d, seq)
	default:
		d.Elem = Float64
		return makeColumn[float64](d, seq)
	}
}

func makeColumn[T Primitive](d ColumnDesc, seq bool) column {
	if seq {
		return &seqColumn[T]{desc: d}
	}
	return &scalarColumn[T]{desc: d}
}

func normalize[T Primitive](v T) interface{} {
	switch x := any(v).(type) {
	case bool:
		return x
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int64:
		return x
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		if x > math.MaxInt64 {
			return float64(x)
		}
		return int64(x)
	case float32:
		return float64(x)
	case float64:
		return x
	}
	return nil
}
