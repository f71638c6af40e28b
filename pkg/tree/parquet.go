package tree

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/ajitpratap0/roast/pkg/errors"
)

const titleKey = "roast.title"

// Codec names accepted by WithCompression.
const (
	CodecNone   = "none"
	CodecSnappy = "snappy"
	CodecGzip   = "gzip"
	CodecZstd   = "zstd"
	CodecBrotli = "brotli"
	CodecLz4    = "lz4"
)

// ValidateCodec reports whether name is a codec accepted by WithCompression.
func ValidateCodec(name string) error {
	_, err := parquetCodec(name)
	return err
}

func parquetCodec(name string) (compress.Compression, error) {
	switch strings.ToLower(name) {
	case "", CodecSnappy:
		return compress.Codecs.Snappy, nil
	case CodecNone, "uncompressed":
		return compress.Codecs.Uncompressed, nil
	case CodecGzip:
		return compress.Codecs.Gzip, nil
	case CodecZstd:
		return compress.Codecs.Zstd, nil
	case CodecBrotli:
		return compress.Codecs.Brotli, nil
	case CodecLz4:
		return compress.Codecs.Lz4Raw, nil
	default:
		return compress.Codecs.Uncompressed, errors.Newf(errors.ErrorTypeConfig, "unknown compression codec %q", name)
	}
}

func arrowElemType(e ElemType) arrow.DataType {
	switch e {
	case Bool:
		return arrow.FixedWidthTypes.Boolean
	case Int8:
		return arrow.PrimitiveTypes.Int8
	case Int16:
		return arrow.PrimitiveTypes.Int16
	case Int32:
		return arrow.PrimitiveTypes.Int32
	case Int64:
		return arrow.PrimitiveTypes.Int64
	case Uint8:
		return arrow.PrimitiveTypes.Uint8
	case Uint16:
		return arrow.PrimitiveTypes.Uint16
	case Uint32:
		return arrow.PrimitiveTypes.Uint32
	case Uint64:
		return arrow.PrimitiveTypes.Uint64
	case Float32:
		return arrow.PrimitiveTypes.Float32
	case String:
		return arrow.BinaryTypes.String
	default:
		return arrow.PrimitiveTypes.Float64
	}
}

func arrowType(d ColumnDesc) arrow.DataType {
	if d.Kind == Sequence {
		return arrow.ListOf(arrowElemType(d.Elem))
	}
	return arrowElemType(d.Elem)
}

func elemFromArrow(dt arrow.DataType) (ElemType, bool) {
	switch dt.ID() {
	case arrow.BOOL:
		return Bool, true
	case arrow.INT8:
		return Int8, true
	case arrow.INT16:
		return Int16, true
	case arrow.INT32:
		return Int32, true
	case arrow.INT64:
		return Int64, true
	case arrow.UINT8:
		return Uint8, true
	case arrow.UINT16:
		return Uint16, true
	case arrow.UINT32:
		return Uint32, true
	case arrow.UINT64:
		return Uint64, true
	case arrow.FLOAT32:
		return Float32, true
	case arrow.FLOAT64:
		return Float64, true
	case arrow.STRING:
		return String, true
	}
	return 0, false
}

func descFromField(f arrow.Field) (ColumnDesc, error) {
	if lt, ok := f.Type.(*arrow.ListType); ok {
		elem, ok := elemFromArrow(lt.Elem())
		if !ok || elem == String {
			return ColumnDesc{}, errors.Newf(errors.ErrorTypeData, "column %s: unsupported list element %s", f.Name, lt.Elem())
		}
		return ColumnDesc{Name: f.Name, Kind: Sequence, Elem: elem}, nil
	}
	elem, ok := elemFromArrow(f.Type)
	if !ok {
		return ColumnDesc{}, errors.Newf(errors.ErrorTypeData, "column %s: unsupported type %s", f.Name, f.Type)
	}
	if elem == String {
		return ColumnDesc{Name: f.Name, Kind: Owned, Elem: String}, nil
	}
	return ColumnDesc{Name: f.Name, Kind: Scalar, Elem: elem}, nil
}

// toRecord converts t into a single Arrow record.
func toRecord(mem memory.Allocator, t *Tree) arrow.Record {
	fields := make([]arrow.Field, len(t.cols))
	for i, c := range t.cols {
		d := c.Desc()
		fields[i] = arrow.Field{Name: d.Name, Type: arrowType(d)}
	}
	md := arrow.NewMetadata([]string{titleKey}, []string{t.title})
	schema := arrow.NewSchema(fields, &md)

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()
	for i, c := range t.cols {
		appendColumn(b.Field(i), c)
	}
	return b.NewRecord()
}

func appendColumn(b array.Builder, c column) {
	switch col := c.(type) {
	case *stringColumn:
		b.(*array.StringBuilder).AppendValues(col.vals, nil)
	case *scalarColumn[bool]:
		appendValues(b, col.vals)
	case *scalarColumn[int8]:
		appendValues(b, col.vals)
	case *scalarColumn[int16]:
		appendValues(b, col.vals)
	case *scalarColumn[int32]:
		appendValues(b, col.vals)
	case *scalarColumn[int64]:
		appendValues(b, col.vals)
	case *scalarColumn[uint8]:
		appendValues(b, col.vals)
	case *scalarColumn[uint16]:
		appendValues(b, col.vals)
	case *scalarColumn[uint32]:
		appendValues(b, col.vals)
	case *scalarColumn[uint64]:
		appendValues(b, col.vals)
	case *scalarColumn[float32]:
		appendValues(b, col.vals)
	case *scalarColumn[float64]:
		appendValues(b, col.vals)
	case *seqColumn[bool]:
		appendLists(b, col.vals)
	case *seqColumn[int8]:
		appendLists(b, col.vals)
	case *seqColumn[int16]:
		appendLists(b, col.vals)
	case *seqColumn[int32]:
		appendLists(b, col.vals)
	case *seqColumn[int64]:
		appendLists(b, col.vals)
	case *seqColumn[uint8]:
		appendLists(b, col.vals)
	case *seqColumn[uint16]:
		appendLists(b, col.vals)
	case *seqColumn[uint32]:
		appendLists(b, col.vals)
	case *seqColumn[uint64]:
		appendLists(b, col.vals)
	case *seqColumn[float32]:
		appendLists(b, col.vals)
	case *seqColumn[float64]:
		appendLists(b, col.vals)
	}
}

func appendLists[T Primitive](b array.Builder, rows [][]T) {
	lb := b.(*array.ListBuilder)
	vb := lb.ValueBuilder()
	for _, row := range rows {
		lb.Append(true)
		appendValues(vb, row)
	}
}

func appendValues[T Primitive](b array.Builder, vals []T) {
	switch bb := b.(type) {
	case *array.BooleanBuilder:
		bb.AppendValues(any(vals).([]bool), nil)
	case *array.Int8Builder:
		bb.AppendValues(any(vals).([]int8), nil)
	case *array.Int16Builder:
		bb.AppendValues(any(vals).([]int16), nil)
	case *array.Int32Builder:
		bb.AppendValues(any(vals).([]int32), nil)
	case *array.Int64Builder:
		bb.AppendValues(any(vals).([]int64), nil)
	case *array.Uint8Builder:
		bb.AppendValues(any(vals).([]uint8), nil)
	case *array.Uint16Builder:
		bb.AppendValues(any(vals).([]uint16), nil)
	case *array.Uint32Builder:
		bb.AppendValues(any(vals).([]uint32), nil)
	case *array.Uint64Builder:
		bb.AppendValues(any(vals).([]uint64), nil)
	case *array.Float32Builder:
		bb.AppendValues(any(vals).([]float32), nil)
	case *array.Float64Builder:
		bb.AppendValues(any(vals).([]float64), nil)
	}
}

// columnFromArrow copies arr into typed column storage.
func columnFromArrow(d ColumnDesc, arr arrow.Array) (column, error) {
	c := newColumn(d)
	if arr.Len() == 0 {
		return c, nil
	}
	switch a := arr.(type) {
	case *array.String:
		sc := c.(*stringColumn)
		sc.vals = make([]string, a.Len())
		for i := range sc.vals {
			sc.vals[i] = a.Value(i)
		}
		return sc, nil
	case *array.List:
		vals, err := primitiveValues(a.ListValues())
		if err != nil {
			return nil, err
		}
		return fillSequence(c, vals, a.Offsets()[:a.Len()+1])
	default:
		vals, err := primitiveValues(arr)
		if err != nil {
			return nil, err
		}
		return fillScalar(c, vals)
	}
}

func primitiveValues(arr arrow.Array) (interface{}, error) {
	switch a := arr.(type) {
	case *array.Boolean:
		out := make([]bool, a.Len())
		for i := range out {
			out[i] = a.Value(i)
		}
		return out, nil
	case *array.Int8:
		return append([]int8(nil), a.Int8Values()...), nil
	case *array.Int16:
		return append([]int16(nil), a.Int16Values()...), nil
	case *array.Int32:
		return append([]int32(nil), a.Int32Values()...), nil
	case *array.Int64:
		return append([]int64(nil), a.Int64Values()...), nil
	case *array.Uint8:
		return append([]uint8(nil), a.Uint8Values()...), nil
	case *array.Uint16:
		return append([]uint16(nil), a.Uint16Values()...), nil
	case *array.Uint32:
		return append([]uint32(nil), a.Uint32Values()...), nil
	case *array.Uint64:
		return append([]uint64(nil), a.Uint64Values()...), nil
	case *array.Float32:
		return append([]float32(nil), a.Float32Values()...), nil
	case *array.Float64:
		return append([]float64(nil), a.Float64Values()...), nil
	}
	return nil, errors.Newf(errors.ErrorTypeData, "unsupported arrow array %s", arr.DataType())
}

func fillScalar(c column, vals interface{}) (column, error) {
	ok := false
	switch col := c.(type) {
	case *scalarColumn[bool]:
		col.vals, ok = vals.([]bool)
	case *scalarColumn[int8]:
		col.vals, ok = vals.([]int8)
	case *scalarColumn[int16]:
		col.vals, ok = vals.([]int16)
	case *scalarColumn[int32]:
		col.vals, ok = vals.([]int32)
	case *scalarColumn[int64]:
		col.vals, ok = vals.([]int64)
	case *scalarColumn[uint8]:
		col.vals, ok = vals.([]uint8)
	case *scalarColumn[uint16]:
		col.vals, ok = vals.([]uint16)
	case *scalarColumn[uint32]:
		col.vals, ok = vals.([]uint32)
	case *scalarColumn[uint64]:
		col.vals, ok = vals.([]uint64)
	case *scalarColumn[float32]:
		col.vals, ok = vals.([]float32)
	case *scalarColumn[float64]:
		col.vals, ok = vals.([]float64)
	}
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeData, "column %s: stored values do not match %s", c.Desc().Name, c.Desc().Elem)
	}
	return c, nil
}

func fillSequence(c column, vals interface{}, offsets []int32) (column, error) {
	ok := false
	switch col := c.(type) {
	case *seqColumn[bool]:
		col.vals, ok = splitRows[bool](vals, offsets)
	case *seqColumn[int8]:
		col.vals, ok = splitRows[int8](vals, offsets)
	case *seqColumn[int16]:
		col.vals, ok = splitRows[int16](vals, offsets)
	case *seqColumn[int32]:
		col.vals, ok = splitRows[int32](vals, offsets)
	case *seqColumn[int64]:
		col.vals, ok = splitRows[int64](vals, offsets)
	case *seqColumn[uint8]:
		col.vals, ok = splitRows[uint8](vals, offsets)
	case *seqColumn[uint16]:
		col.vals, ok = splitRows[uint16](vals, offsets)
	case *seqColumn[uint32]:
		col.vals, ok = splitRows[uint32](vals, offsets)
	case *seqColumn[uint64]:
		col.vals, ok = splitRows[uint64](vals, offsets)
	case *seqColumn[float32]:
		col.vals, ok = splitRows[float32](vals, offsets)
	case *seqColumn[float64]:
		col.vals, ok = splitRows[float64](vals, offsets)
	}
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeData, "column %s: stored values do not match []%s", c.Desc().Name, c.Desc().Elem)
	}
	return c, nil
}

func splitRows[T Primitive](vals interface{}, offsets []int32) ([][]T, bool) {
	flat, ok := vals.([]T)
	if !ok {
		return nil, false
	}
	rows := make([][]T, len(offsets)-1)
	for i := range rows {
		rows[i] = flat[offsets[i]:offsets[i+1]:offsets[i+1]]
	}
	return rows, true
}

// writeParquet encodes t as a Parquet file.
func writeParquet(w io.Writer, t *Tree, codec string, level int) error {
	comp, err := parquetCodec(codec)
	if err != nil {
		return err
	}
	opts := []parquet.WriterProperty{parquet.WithCompression(comp)}
	switch comp {
	case compress.Codecs.Gzip, compress.Codecs.Zstd, compress.Codecs.Brotli:
		opts = append(opts, parquet.WithCompressionLevel(level))
	}
	props := parquet.NewWriterProperties(opts...)

	pool := memory.NewGoAllocator()
	rec := toRecord(pool, t)
	defer rec.Release()

	arrowProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithAllocator(pool),
		pqarrow.WithStoreSchema(),
	)
	fw, err := pqarrow.NewFileWriter(rec.Schema(), w, props, arrowProps)
	if err != nil {
		return errors.Wrapf(err, errors.ErrorTypeIO, "failed to create parquet writer for %s", t.name)
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return errors.Wrapf(err, errors.ErrorTypeIO, "failed to write tree %s", t.name)
	}
	if err := fw.Close(); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeIO, "failed to finish tree %s", t.name)
	}
	return nil
}

// readParquet decodes a Parquet file written by writeParquet.
func readParquet(name string, data []byte) (*Tree, error) {
	fr, err := file.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeIO, "failed to open tree %s", name)
	}
	defer fr.Close()

	pool := memory.NewGoAllocator()
	arrowReader, err := pqarrow.NewFileReader(fr, pqarrow.ArrowReadProperties{}, pool)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeIO, "failed to create arrow reader for %s", name)
	}
	tbl, err := arrowReader.ReadTable(context.Background())
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeIO, "failed to read tree %s", name)
	}
	defer tbl.Release()

	t := &Tree{name: name, index: make(map[string]int), entries: tbl.NumRows()}
	if md := tbl.Schema().Metadata(); md.Len() > 0 {
		if i := md.FindKey(titleKey); i >= 0 {
			t.title = md.Values()[i]
		}
	}
	for i := 0; i < int(tbl.NumCols()); i++ {
		col := tbl.Column(i)
		d, err := descFromField(col.Field())
		if err != nil {
			return nil, err
		}
		arr, err := concatChunks(pool, col.Data().Chunks(), arrowType(d))
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeIO, "failed to read column %s", d.Name)
		}
		c, err := columnFromArrow(d, arr)
		arr.Release()
		if err != nil {
			return nil, err
		}
		if c.Len() != int(t.entries) {
			return nil, errors.Newf(errors.ErrorTypeData, "column %s has %d rows, tree %s has %d", d.Name, c.Len(), name, t.entries)
		}
		t.addColumn(c)
	}
	return t, nil
}

func concatChunks(mem memory.Allocator, chunks []arrow.Array, dt arrow.DataType) (arrow.Array, error) {
	switch len(chunks) {
	case 0:
		b := array.NewBuilder(mem, dt)
		defer b.Release()
		return b.NewArray(), nil
	case 1:
		chunks[0].Retain()
		return chunks[0], nil
	default:
		return array.Concatenate(chunks, mem)
	}
}
