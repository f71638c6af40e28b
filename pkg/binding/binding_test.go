package binding_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/roast/pkg/binding"
	"github.com/ajitpratap0/roast/pkg/errors"
	"github.com/ajitpratap0/roast/pkg/testutil"
	"github.com/ajitpratap0/roast/pkg/tree"
)

func newReader(t *testing.T) *tree.Reader {
	t.Helper()
	events := testutil.BuildTree(t, "events",
		[]tree.ColumnDesc{testutil.F64("pt"), testutil.F64("pt_v2"), testutil.I32("n"), testutil.Str("tag"), testutil.SeqF64("hits")},
		[]interface{}{1.5, 2.5, 3, "a", []float64{1, 2}},
		[]interface{}{4.5, 5.5, 6, "b", []float64{}},
	)
	c := tree.NewChain("events")
	require.NoError(t, c.Add("run.roast", events))
	return tree.NewReader(c)
}

func TestMostRecentCandidateWins(t *testing.T) {
	r := newReader(t)
	pt := binding.NewScalar[float64]("pt")
	pt.AddName("pt_v2").AddName("pt_v3")

	require.NoError(t, pt.BindRead(r, "", false))
	assert.True(t, pt.Available())

	ok, err := r.Load(0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2.5, pt.Get())
	assert.Equal(t, []string{"pt_v2"}, r.Cached())
	assert.Equal(t, "pt", pt.PrimaryName())
}

func TestExplicitNameFirst(t *testing.T) {
	r := newReader(t)
	pt := binding.NewScalar[float64]("pt_v2")
	require.NoError(t, pt.BindRead(r, "pt", false))

	_, err := r.Load(1)
	require.NoError(t, err)
	assert.Equal(t, 4.5, pt.Get())
}

func TestRequiredAndOptional(t *testing.T) {
	r := newReader(t)

	missing := binding.NewScalar[float64]("eta")
	err := missing.BindRead(r, "", false)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeBinding))
	assert.Contains(t, err.Error(), "could not load column eta")

	opt := binding.NewScalar[float64]("eta")
	require.NoError(t, opt.BindRead(r, "", true))
	assert.False(t, opt.Available())
}

func TestInputSetStopsAtFirstFailure(t *testing.T) {
	r := newReader(t)
	set := binding.NewInputSet()
	n := binding.NewScalar[int32]("n")
	set.Add(n.Column, false)
	set.Add(binding.NewScalar[float64]("eta").Column, false)
	late := binding.NewSequence[float64]("hits")
	set.Add(late.Column, false)

	require.Error(t, set.BindRead(r))
	assert.True(t, n.Available())
	assert.False(t, late.Available())
	assert.Equal(t, 3, set.Len())
}

func TestSequenceAndText(t *testing.T) {
	r := newReader(t)
	set := binding.NewInputSet()
	hits := binding.NewSequence[float64]("hits")
	tag := binding.NewText("tag")
	set.Add(hits.Column, false)
	set.Add(tag.Column, false)
	require.NoError(t, set.BindRead(r))

	_, err := r.Load(0)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, hits.Values())
	assert.Equal(t, "a", tag.Get())

	_, err = r.Load(1)
	require.NoError(t, err)
	assert.Equal(t, 0, hits.Len())
	assert.Equal(t, "b", tag.Get())
}

func TestOutputLevels(t *testing.T) {
	w := tree.NewWriter("out")
	set := binding.NewOutputSet()
	a := binding.NewScalar[float64]("a")
	b := binding.NewScalar[int64]("b")
	c := binding.NewSequence[float32]("c")
	set.Add(a.Column, 0)
	set.Add(b.Column, 1)
	set.AddNamed(c.Column, "renamed", 0)

	n, err := set.BindWrite(w, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	a.Set(1.25)
	c.Append(1, 2)
	w.Fill()

	out := w.Tree()
	assert.True(t, out.HasColumn("a"))
	assert.False(t, out.HasColumn("b"))
	assert.True(t, out.HasColumn("renamed"))
	assert.Equal(t, int64(1), out.Entries())
	assert.Equal(t, 1.25, out.At("a", 0, 0))
	assert.Equal(t, 2, out.RowLen("renamed", 0))
}

func TestDoubleWritePanics(t *testing.T) {
	w := tree.NewWriter("out")
	a := binding.NewScalar[float64]("a")
	require.NoError(t, a.BindWrite(w, ""))
	assert.Panics(t, func() { _ = a.BindWrite(tree.NewWriter("other"), "") })
}

func TestClear(t *testing.T) {
	a := binding.NewScalar[int32]("a")
	s := binding.NewSequence[float64]("s")
	txt := binding.NewText("t")
	a.Set(7)
	s.Append(1, 2, 3)
	txt.Set("kept")

	set := binding.NewOutputSet()
	set.Add(a.Column, 0)
	set.Add(s.Column, 0)
	set.Add(txt.Column, 0)
	set.Clear()

	assert.Equal(t, int32(0), a.Get())
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, "kept", txt.Get())
}

func TestNewColumnFromDesc(t *testing.T) {
	r := newReader(t)
	c := binding.NewColumn(testutil.SeqF64("hits"))
	require.NoError(t, c.BindRead(r, "", false))
	_, err := r.Load(0)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, *c.Ptr().(*[]float64))
	assert.Equal(t, "hits", c.Desc().Name)
}
