package testutil

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/roast/pkg/settings"
	"github.com/ajitpratap0/roast/pkg/tree"
)

// F64 describes a float64 scalar column.
func F64(name string) tree.ColumnDesc {
	return tree.ColumnDesc{Name: name, Kind: tree.Scalar, Elem: tree.Float64}
}

// I32 describes an int32 scalar column.
func I32(name string) tree.ColumnDesc {
	return tree.ColumnDesc{Name: name, Kind: tree.Scalar, Elem: tree.Int32}
}

// Str describes a string column.
func Str(name string) tree.ColumnDesc {
	return tree.ColumnDesc{Name: name, Kind: tree.Owned, Elem: tree.String}
}

// SeqF64 describes a float64 sequence column.
func SeqF64(name string) tree.ColumnDesc {
	return tree.ColumnDesc{Name: name, Kind: tree.Sequence, Elem: tree.Float64}
}

// BuildTree writes rows into a new tree. Each row holds one value per
// column; numbers are converted to the column type and sequences may be
// given as any slice of numbers.
func BuildTree(t *testing.T, name string, cols []tree.ColumnDesc, rows ...[]interface{}) *tree.Tree {
	t.Helper()
	w := tree.NewWriter(name)
	slots := make([]interface{}, len(cols))
	for i, d := range cols {
		slots[i] = tree.NewSlot(d)
		require.NoError(t, w.BindWrite(d.Name, slots[i]))
	}
	for r, row := range rows {
		require.Len(t, row, len(cols), "row %d", r)
		for i, v := range row {
			assign(t, slots[i], v)
		}
		w.Fill()
	}
	return w.Tree()
}

func assign(t *testing.T, slot, v interface{}) {
	t.Helper()
	dst := reflect.ValueOf(slot).Elem()
	src := reflect.ValueOf(v)
	if dst.Kind() != reflect.Slice {
		require.True(t, src.Type().ConvertibleTo(dst.Type()), "cannot store %T in %s", v, dst.Type())
		dst.Set(src.Convert(dst.Type()))
		return
	}
	require.Equal(t, reflect.Slice, src.Kind(), "sequence value must be a slice, got %T", v)
	out := reflect.MakeSlice(dst.Type(), src.Len(), src.Len())
	for i := 0; i < src.Len(); i++ {
		e := src.Index(i)
		if e.Kind() == reflect.Interface {
			e = e.Elem()
		}
		out.Index(i).Set(e.Convert(dst.Type().Elem()))
	}
	dst.Set(out)
}

// WriteContainer stores trees and, when s is not nil, a settings snapshot
// in dir/name and returns the file path.
func WriteContainer(t *testing.T, dir, name string, s *settings.Settings, trees ...*tree.Tree) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := tree.Create(path)
	require.NoError(t, err)
	for _, tr := range trees {
		require.NoError(t, f.PutTree(tr))
	}
	if s != nil {
		require.NoError(t, f.WriteSettings(s, settings.LevelGlobal))
	}
	require.NoError(t, f.Close())
	return path
}

// ReadTree opens path and returns the named tree.
func ReadTree(t *testing.T, path, name string) *tree.Tree {
	t.Helper()
	f, err := tree.Open(path)
	require.NoError(t, err)
	defer f.Close()
	tr, err := f.Tree(name)
	require.NoError(t, err)
	return tr
}

// ReadSettings opens path and returns its stored settings.
func ReadSettings(t *testing.T, path string) *settings.Settings {
	t.Helper()
	f, err := tree.Open(path)
	require.NoError(t, err)
	defer f.Close()
	s, err := f.ReadSettings()
	require.NoError(t, err)
	return s
}

// Column returns every value of a scalar or string column of tr.
func Column(tr *tree.Tree, name string) []interface{} {
	out := make([]interface{}, tr.Entries())
	for i := range out {
		out[i] = tr.At(name, int64(i), 0)
	}
	return out
}
