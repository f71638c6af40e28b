package tree_test

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/roast/pkg/compression"
	"github.com/ajitpratap0/roast/pkg/errors"
	"github.com/ajitpratap0/roast/pkg/settings"
	"github.com/ajitpratap0/roast/pkg/testutil"
	"github.com/ajitpratap0/roast/pkg/tree"
)

func eventsTree(t *testing.T, name string, offset float64) *tree.Tree {
	return testutil.BuildTree(t, name,
		[]tree.ColumnDesc{testutil.F64("x"), testutil.I32("n"), testutil.Str("tag"), testutil.SeqF64("hits")},
		[]interface{}{offset + 1, 1, "a", []float64{1}},
		[]interface{}{offset + 2, 2, "b", []float64{1, 2}},
		[]interface{}{offset + 3, 3, "c", []float64{}},
	)
}

func TestWriterReaderRoundTrip(t *testing.T) {
	tr := eventsTree(t, "events", 0)
	require.EqualValues(t, 3, tr.Entries())

	c := tree.NewChain("events")
	require.NoError(t, c.Add("mem", tr))
	r := tree.NewReader(c)

	var x float64
	var n int32
	var tag string
	var hits []float64
	require.NoError(t, r.BindRead("x", &x))
	require.NoError(t, r.BindRead("n", &n))
	require.NoError(t, r.BindRead("tag", &tag))
	require.NoError(t, r.BindRead("hits", &hits))

	ok, err := r.Load(1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2.0, x)
	assert.Equal(t, int32(2), n)
	assert.Equal(t, "b", tag)
	assert.Equal(t, []float64{1, 2}, hits)

	ok, err = r.Load(2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, hits)

	ok, err = r.Load(3)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBindReadErrors(t *testing.T) {
	c := tree.NewChain("events")
	require.NoError(t, c.Add("mem", eventsTree(t, "events", 0)))
	r := tree.NewReader(c)

	var wrong int64
	err := r.BindRead("x", &wrong)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeBinding))

	var x float64
	err = r.BindRead("missing", &x)
	assert.True(t, errors.IsType(err, errors.ErrorTypeBinding))

	err = r.BindRead("x", x)
	assert.True(t, errors.IsType(err, errors.ErrorTypeBinding))
}

func TestWriterRejectsDuplicateColumn(t *testing.T) {
	w := tree.NewWriter("out")
	var a, b float64
	require.NoError(t, w.BindWrite("a", &a))
	err := w.BindWrite("a", &b)
	assert.True(t, errors.IsType(err, errors.ErrorTypeBinding))
}

func TestAtKeepsLargeUnsignedPositive(t *testing.T) {
	w := tree.NewWriter("counters")
	var u uint64
	require.NoError(t, w.BindWrite("u", &u))
	for _, v := range []uint64{7, math.MaxInt64, math.MaxUint64} {
		u = v
		w.Fill()
	}
	tr := w.Tree()

	assert.Equal(t, int64(7), tr.At("u", 0, 0))
	assert.Equal(t, int64(math.MaxInt64), tr.At("u", 1, 0))
	big, ok := tr.At("u", 2, 0).(float64)
	require.True(t, ok)
	assert.Equal(t, float64(math.MaxUint64), big)
	assert.Positive(t, big)
}

func TestContainerRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := settings.New()
	s.Set("selector.log.every", 5, settings.LevelChanged)
	tr := eventsTree(t, "events", 0)
	tr.SetTitle("calibrated events")
	path := testutil.WriteContainer(t, dir, "run.roast", s, tr)

	f, err := tree.Open(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []tree.Key{{Name: "events", Kind: tree.KindTree}, {Name: "settings", Kind: tree.KindSettings}}, f.Keys())

	got, err := f.Tree("events")
	require.NoError(t, err)
	assert.Equal(t, tr.Columns(), got.Columns())
	assert.Equal(t, "calibrated events", got.Title())
	assert.Equal(t, []interface{}{1.0, 2.0, 3.0}, testutil.Column(got, "x"))
	assert.Equal(t, []interface{}{int64(1), int64(2), int64(3)}, testutil.Column(got, "n"))
	assert.Equal(t, []interface{}{"a", "b", "c"}, testutil.Column(got, "tag"))
	assert.Equal(t, 2, got.RowLen("hits", 1))
	assert.Equal(t, 2.0, got.At("hits", 1, 1))
	assert.Equal(t, 0, got.RowLen("hits", 2))

	stored, err := f.ReadSettings()
	require.NoError(t, err)
	assert.Equal(t, 5, stored.Int("selector.log.every", 0))

	_, err = f.Tree("settings")
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnsupportedObject))
	_, err = f.Tree("nope")
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestContainerCodecs(t *testing.T) {
	dir := t.TempDir()
	for _, codec := range []string{tree.CodecNone, tree.CodecSnappy, tree.CodecGzip, tree.CodecZstd, tree.CodecBrotli, tree.CodecLz4} {
		path := filepath.Join(dir, codec+".roast")
		f, err := tree.Create(path, tree.WithCompression(codec), tree.WithCompressionLevel(3))
		require.NoError(t, err, codec)
		require.NoError(t, f.PutTree(eventsTree(t, "events", 10)), codec)
		require.NoError(t, f.Close(), codec)

		got := testutil.ReadTree(t, path, "events")
		assert.Equal(t, []interface{}{11.0, 12.0, 13.0}, testutil.Column(got, "x"), codec)
	}

	_, err := tree.Create(filepath.Join(dir, "bad.roast"), tree.WithCompression("rar"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestOpenMissingFile(t *testing.T) {
	_, err := tree.Open(filepath.Join(t.TempDir(), "missing.roast"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestOpenRejectsNonContainer(t *testing.T) {
	dir := t.TempDir()
	for name, data := range map[string]string{"empty.roast": "", "text.roast": "x\ty\n1\t2\n"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
		_, err := tree.Open(path)
		assert.True(t, errors.IsType(err, errors.ErrorTypeIO), name)
	}
}

func TestChainAcrossFilesNotifiesFileChanges(t *testing.T) {
	dir := t.TempDir()
	p1 := testutil.WriteContainer(t, dir, "a.roast", nil, eventsTree(t, "events", 0))
	p2 := testutil.WriteContainer(t, dir, "b.roast", nil, eventsTree(t, "events", 10))

	c, err := tree.ChainOf("events", filepath.Join(dir, "*.roast"))
	require.NoError(t, err)
	assert.EqualValues(t, 6, c.Entries())
	assert.Equal(t, []string{p1, p2}, c.Files())

	r := tree.NewReader(c)
	var x float64
	require.NoError(t, r.BindRead("x", &x))

	var changes []string
	r.OnFileChange(func(file string, n int) error {
		changes = append(changes, file)
		return nil
	})

	var xs []float64
	for e := int64(0); ; e++ {
		ok, err := r.Load(e)
		require.NoError(t, err)
		if !ok {
			break
		}
		xs = append(xs, x)
		if e == 3 {
			assert.Equal(t, p2, r.CurrentFile())
			assert.Equal(t, 1, r.TreeNumber())
		}
	}
	assert.Equal(t, []float64{1, 2, 3, 11, 12, 13}, xs)
	assert.Equal(t, []string{p1, p2}, changes)
}

func TestChainRejectsSchemaMismatch(t *testing.T) {
	c := tree.NewChain("events")
	require.NoError(t, c.Add("a", eventsTree(t, "events", 0)))
	other := testutil.BuildTree(t, "events", []tree.ColumnDesc{testutil.F64("y")}, []interface{}{1.0})
	assert.Error(t, c.Add("b", other))
}

func TestActivationAndCopy(t *testing.T) {
	c := tree.NewChain("events")
	require.NoError(t, c.Add("a", eventsTree(t, "events", 0)))
	require.NoError(t, c.Add("b", eventsTree(t, "events", 10)))

	assert.Equal(t, 4, c.SetActive("*", false))
	assert.Equal(t, 1, c.SetActive("x", true))
	assert.Equal(t, 1, c.SetActive("h*", true))
	assert.False(t, c.IsActive("tag"))

	out, err := c.CopyEntries("skim", []int64{0, 4})
	require.NoError(t, err)
	assert.Equal(t, "skim", out.Name())
	assert.Equal(t, []string{"x", "hits"}, names(out.Columns()))
	assert.Equal(t, []interface{}{1.0, 12.0}, testutil.Column(out, "x"))
	assert.Equal(t, 2, out.RowLen("hits", 1))

	c.ResetActivation()
	assert.True(t, c.AllActive())

	clone, err := c.Clone("all")
	require.NoError(t, err)
	assert.EqualValues(t, 6, clone.Entries())
	assert.Len(t, clone.Columns(), 4)
}

func TestFriends(t *testing.T) {
	c := tree.NewChain("events")
	require.NoError(t, c.Add("a", eventsTree(t, "events", 0)))

	aux := tree.NewChain("aux")
	require.NoError(t, aux.Add("a", testutil.BuildTree(t, "aux",
		[]tree.ColumnDesc{testutil.F64("energy")},
		[]interface{}{10.0}, []interface{}{20.0}, []interface{}{30.0})))

	added, err := c.AddFriend("aux", aux)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = c.AddFriend("aux", aux)
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, []string{"aux"}, c.Friends())

	r := tree.NewReader(c)
	assert.True(t, r.HasColumn("aux.energy"))
	assert.False(t, r.HasColumn("aux.missing"))
	v, err := r.BindValue("aux.energy")
	require.NoError(t, err)
	_, err = r.Load(2)
	require.NoError(t, err)
	assert.Equal(t, 30.0, v.At(0))

	short := tree.NewChain("short")
	require.NoError(t, short.Add("a", testutil.BuildTree(t, "short",
		[]tree.ColumnDesc{testutil.F64("e")}, []interface{}{1.0})))
	_, err = c.AddFriend("short", short)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFriendResolution))

	c.ClearFriends()
	assert.Empty(t, c.Friends())
}

func TestEntryList(t *testing.T) {
	l := tree.NewEntryList("sel", "events")
	for _, e := range []int64{5, 1, 3, 3, 9} {
		l.Add(e)
	}
	assert.Equal(t, []int64{1, 3, 5, 9}, l.Entries)
	assert.True(t, l.Contains(5))
	assert.False(t, l.Contains(4))
	assert.Equal(t, []int64{3, 5}, l.Range(2, 2))
	assert.Equal(t, []int64{5, 9}, l.Range(4, -1))

	var sb strings.Builder
	require.NoError(t, l.WriteASCII(&sb))
	back, err := tree.ReadEntryListASCII(strings.NewReader("# selected\n"+sb.String()), "sel")
	require.NoError(t, err)
	assert.Equal(t, l.Entries, back.Entries)

	_, err = tree.ReadEntryListASCII(strings.NewReader("1 x\n"), "bad")
	assert.Error(t, err)
}

func TestLoadEntryList(t *testing.T) {
	dir := t.TempDir()

	l := tree.NewEntryList("sel", "events")
	l.Add(2)
	l.Add(7)
	path := filepath.Join(dir, "lists.roast")
	f, err := tree.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.PutEntryList(l))
	require.NoError(t, f.Close())

	got, err := tree.LoadEntryList(path + "/sel")
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 7}, got.Entries)
	assert.Equal(t, "events", got.Tree)

	gz := filepath.Join(dir, "sel.txt.gz")
	out, err := os.Create(gz)
	require.NoError(t, err)
	w, err := compression.NewWriter(out, compression.Gzip, compression.Default)
	require.NoError(t, err)
	_, err = w.Write([]byte("4\n8 6\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, out.Close())

	got, err = tree.LoadEntryList(gz)
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 6, 8}, got.Entries)
}

func TestLoadSettingsFromContainer(t *testing.T) {
	dir := t.TempDir()
	s := settings.New()
	s.Set("cut.energy", 2.5, settings.LevelChanged)
	path := testutil.WriteContainer(t, dir, "run.roast", s, eventsTree(t, "events", 0))

	got := settings.New()
	require.NoError(t, tree.LoadSettings(got, path, settings.LevelUser))
	assert.Equal(t, 2.5, got.Float("cut.energy", 0))

	got = settings.New()
	require.NoError(t, tree.LoadSettings(got, path+"/settings", settings.LevelUser))
	assert.Equal(t, 2.5, got.Float("cut.energy", 0))
}

func TestSplitObjectPath(t *testing.T) {
	file, obj := tree.SplitObjectPath("data/run1.roast/events")
	assert.Equal(t, "data/run1.roast", file)
	assert.Equal(t, "events", obj)
	assert.True(t, tree.IsContainer("data/run1.roast/events"))
	assert.False(t, tree.IsContainer("cfg/run.json"))
}

func names(cols []tree.ColumnDesc) []string {
	out := make([]string, len(cols))
	for i, d := range cols {
		out[i] = d.Name
	}
	return out
}
