package mapper_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ajitpratap0/roast/pkg/binding"
	"github.com/ajitpratap0/roast/pkg/errors"
	"github.com/ajitpratap0/roast/pkg/logger"
	"github.com/ajitpratap0/roast/pkg/mapper"
	"github.com/ajitpratap0/roast/pkg/settings"
	"github.com/ajitpratap0/roast/pkg/testutil"
	"github.com/ajitpratap0/roast/pkg/tree"
)

func TestParse(t *testing.T) {
	specs, err := mapper.Parse(" copy(events, pt:^raw >> skim, pow(pt, 2) > 4, 10, 2) ; draw(events, pt >> h(10,0,5)); treemap++(events) ;")
	require.NoError(t, err)
	require.Len(t, specs, 3)

	cp := specs[0]
	assert.Equal(t, mapper.OpCopy, cp.Op)
	assert.Equal(t, "events", cp.Target())
	assert.Equal(t, int64(10), cp.Max)
	assert.Equal(t, int64(2), cp.Start)
	args := cp.Copy()
	assert.Equal(t, "pt:^raw", args.Filter)
	assert.Equal(t, "skim", args.OutName)
	assert.Equal(t, "pow(pt, 2) > 4", args.Selection)

	dr := specs[1].Draw()
	assert.Equal(t, "pt", dr.Expression)
	assert.Equal(t, "h", dr.HistName)
	assert.True(t, dr.Binned)
	assert.Equal(t, 10, dr.Bins)
	assert.Equal(t, 5.0, dr.High)
	assert.Equal(t, int64(-1), specs[1].Max)

	sel := specs[2]
	assert.Equal(t, mapper.OpSelector, sel.Op)
	assert.Equal(t, "treemap", sel.Name)
	assert.True(t, sel.Recompile)
	assert.Equal(t, "treemap(events)", sel.String())
}

func TestParseDefaults(t *testing.T) {
	specs, err := mapper.Parse("copy(events)")
	require.NoError(t, err)
	args := specs[0].Copy()
	assert.Equal(t, "", args.Filter)
	assert.Equal(t, "events", args.OutName)

	dr, err := mapper.Parse("draw(events, pt*2 >> hpt)")
	require.NoError(t, err)
	d := dr[0].Draw()
	assert.Equal(t, "pt*2", d.Expression)
	assert.Equal(t, "hpt", d.HistName)
	assert.False(t, d.Binned)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		substr string
	}{
		{"no parens", "copy events", "invalid mapper specification"},
		{"empty", " ; ", "no mapper operations"},
		{"no target", "copy()", "expecting at least one"},
		{"too many copy", "copy(a,b,c,1,2,3)", "expecting 1 to 5"},
		{"too many draw", "draw(a,x,,,1,2,3)", "expecting 1 to 6"},
		{"too many selector", "sel(a,o,1,2,3)", "expecting 1 to 4"},
		{"bad max", "copy(a,,,ten)", "must be an integer"},
		{"bad start", "sel(a,o,1,x)", "must be an integer"},
		{"bad rename", "copy(a, x >> 1-2)", "invalid output tree name"},
		{"bad binning", "draw(a, x >> h(1,2))", "binning"},
		{"draw needs expression", "draw(a)", "needs an expression"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mapper.Parse(tt.input)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeSpecSyntax))
			assert.Contains(t, err.Error(), tt.substr)
		})
	}
}

func TestRange(t *testing.T) {
	s := mapper.Spec{Max: -1, Start: 2}
	first, last := s.Range(10)
	assert.Equal(t, int64(2), first)
	assert.Equal(t, int64(10), last)

	s = mapper.Spec{Max: 3, Start: 8}
	first, last = s.Range(10)
	assert.Equal(t, int64(8), first)
	assert.Equal(t, int64(10), last)

	s = mapper.Spec{Max: 3, Start: 20}
	first, last = s.Range(10)
	assert.Equal(t, first, last)

	s = mapper.Spec{Max: math.MaxInt64, Start: 1}
	first, last = s.Range(10)
	assert.Equal(t, int64(1), first)
	assert.Equal(t, int64(10), last)
}

func newChain(t *testing.T) *tree.Chain {
	t.Helper()
	tr := testutil.BuildTree(t, "events",
		[]tree.ColumnDesc{testutil.F64("a"), testutil.F64("b"), testutil.F64("c1"), testutil.F64("c2")},
		[]interface{}{1, 2, 3, 4})
	c := tree.NewChain("events")
	require.NoError(t, c.Add("in.roast", tr))
	return c
}

func activeNames(c *tree.Chain) []string {
	var out []string
	for _, d := range c.ActiveColumns() {
		out = append(out, d.Name)
	}
	return out
}

func TestApplyBranchFilter(t *testing.T) {
	tests := []struct {
		filter string
		want   []string
	}{
		{"", []string{"a", "b", "c1", "c2"}},
		{"^a:b", []string{"b", "c1", "c2"}},
		{"a:^b", []string{"a"}},
		{"c*", []string{"c1", "c2"}},
		{"^c*:c2", []string{"a", "b", "c2"}},
		{"a : b", []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			c := newChain(t)
			mapper.ApplyBranchFilter(c, tt.filter, zap.NewNop())
			assert.Equal(t, tt.want, activeNames(c))
		})
	}
}

func TestFriendCandidates(t *testing.T) {
	assert.Equal(t, []string{"aux", "cal"}, mapper.FriendCandidates("aux.e > 1.5 && (cal.gain*aux.e) < 3"))
	assert.Empty(t, mapper.FriendCandidates("x > 1.5"))
	assert.Empty(t, mapper.FriendCandidates(""))
}

func writeInputs(t *testing.T) (string, *mapper.Files) {
	t.Helper()
	dir := t.TempDir()
	events := testutil.BuildTree(t, "events", []tree.ColumnDesc{testutil.F64("x")},
		[]interface{}{1}, []interface{}{2})
	aux := testutil.BuildTree(t, "aux", []tree.ColumnDesc{testutil.F64("e")},
		[]interface{}{10}, []interface{}{20})
	short := testutil.BuildTree(t, "short", []tree.ColumnDesc{testutil.F64("e")},
		[]interface{}{10})
	path := testutil.WriteContainer(t, dir, "in.roast", nil, events, aux, short)
	f, err := tree.Create(filepath.Join(dir, "obj.roast"))
	require.NoError(t, err)
	require.NoError(t, f.PutTree(events))
	require.NoError(t, f.PutObject("aux", tree.KindHist, map[string]int{"bins": 1}))
	require.NoError(t, f.Close())

	files := mapper.NewFiles()
	t.Cleanup(func() { _ = files.Close() })
	return path, files
}

func TestFriendAttacher(t *testing.T) {
	path, files := writeInputs(t)
	c, err := files.Chain("events", []string{path})
	require.NoError(t, err)

	a := mapper.NewFriendAttacher(files, zap.NewNop())
	attached, err := a.Attach(c, "aux.e > 15 && events.x > 0")
	require.NoError(t, err)
	assert.Equal(t, []string{"aux"}, attached)
	assert.Equal(t, []string{"aux"}, c.Friends())

	// idempotent
	attached, err = a.Attach(c, "aux.e > 15")
	require.NoError(t, err)
	assert.Empty(t, attached)
	assert.Len(t, c.Friends(), 1)

	r := tree.NewReader(c)
	assert.True(t, r.HasColumn("aux.e"))

	mapper.Detach(c)
	assert.Empty(t, c.Friends())
}

func TestFriendAttacherErrors(t *testing.T) {
	path, files := writeInputs(t)
	objPath := filepath.Join(filepath.Dir(path), "obj.roast")

	for _, tt := range []struct {
		name      string
		file      string
		selection string
		substr    string
	}{
		{"missing", path, "nothere.e > 1", "nothere"},
		{"too short", path, "short.e > 1", "short"},
		{"not a tree", objPath, "aux.e > 1", "not a tree"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			c, err := files.Chain("events", []string{tt.file})
			require.NoError(t, err)
			_, err = mapper.NewFriendAttacher(files, nil).Attach(c, tt.selection)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeFriendResolution))
			assert.Contains(t, err.Error(), tt.substr)
		})
	}
}

func TestRegistry(t *testing.T) {
	r := mapper.NewRegistry()
	require.NoError(t, r.Register("mine", mapper.NewTreeMapSelector))
	assert.Error(t, r.Register("mine", mapper.NewTreeMapSelector))
	assert.Error(t, r.Register("copy", mapper.NewTreeMapSelector))
	assert.True(t, r.Has("mine"))
	assert.Equal(t, []string{"mine"}, r.List())

	_, err := r.Create("other")
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))

	assert.True(t, mapper.GetRegistry().Has(mapper.TreeMapName))
}

func TestRegistryLogsToCurrentGlobalLogger(t *testing.T) {
	r := mapper.NewRegistry()

	out := filepath.Join(t.TempDir(), "registry.log")
	require.NoError(t, logger.Init(logger.Config{Level: "debug", Encoding: "json", OutputPaths: []string{out}}))
	t.Cleanup(func() {
		_ = logger.Init(logger.Config{Level: "info"})
	})

	require.NoError(t, r.Register("late", mapper.NewTreeMapSelector))
	_ = logger.Sync()
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"selector registered"`)
	assert.Contains(t, string(data), `"name":"late"`)

	own := mapper.NewRegistry()
	own.SetLogger(zap.NewNop())
	require.NoError(t, own.Register("quiet", mapper.NewTreeMapSelector))
	_ = logger.Sync()
	data, err = os.ReadFile(out)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "quiet")
}

func TestTreeMapSelector(t *testing.T) {
	ctx := testutil.TestContext(t)
	tr := testutil.BuildTree(t, "events",
		[]tree.ColumnDesc{testutil.F64("x"), testutil.I32("n"), testutil.SeqF64("hits")},
		[]interface{}{1, 1, []float64{1}},
		[]interface{}{2, 2, []float64{}},
		[]interface{}{3, 3, []float64{1, 2, 3}})
	c := tree.NewChain("events")
	require.NoError(t, c.Add("a.roast", tr))

	s := settings.New()
	s.Set(mapper.KeyOutputName, "mapped", settings.LevelUser)
	sel, err := mapper.GetRegistry().Create(mapper.TreeMapName)
	require.NoError(t, err)

	env := &mapper.Env{Settings: s, Logger: testutil.TestLogger(t)}
	n, err := mapper.Run(ctx, sel, env, c, "^n", 1, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	out := sel.(interface{ Output() *tree.Tree }).Output()
	assert.Equal(t, "mapped", out.Name())
	assert.Equal(t, int64(2), out.Entries())
	assert.False(t, out.HasColumn("n"))
	assert.Equal(t, []interface{}{2.0, 3.0}, testutil.Column(out, "x"))
	assert.Equal(t, 0, out.RowLen("hits", 0))
	assert.Equal(t, 3, out.RowLen("hits", 1))

	// default saved at local level
	lvl, ok := s.LevelOf(mapper.KeyOutputLevel)
	require.True(t, ok)
	assert.Equal(t, settings.LevelLocal, lvl)
}

func TestTreeMapperOutputLevelAndFiles(t *testing.T) {
	ctx := testutil.TestContext(t)
	a := testutil.BuildTree(t, "events", []tree.ColumnDesc{testutil.F64("x")}, []interface{}{1}, []interface{}{2})
	b := testutil.BuildTree(t, "events", []tree.ColumnDesc{testutil.F64("x")}, []interface{}{3})
	c := tree.NewChain("events")
	require.NoError(t, c.Add("a.roast", a))
	require.NoError(t, c.Add("b.roast", b))

	var x *binding.Scalar[float64]
	var doubled, debug *binding.Scalar[float64]
	tm := mapper.NewTreeMapper(func(tm *mapper.TreeMapper, r *tree.Reader) error {
		x = binding.NewScalar[float64]("x")
		doubled = binding.NewScalar[float64]("x2")
		debug = binding.NewScalar[float64]("dbg")
		tm.Inputs.Add(x.Column, false)
		tm.Outputs.Add(doubled.Column, 0)
		tm.Outputs.Add(debug.Column, 1)
		return nil
	}, func(tm *mapper.TreeMapper, entry int64) (bool, error) {
		doubled.Set(2 * x.Get())
		return x.Get() != 2, nil
	})

	var files []string
	env := &mapper.Env{Settings: settings.New(), Logger: zap.NewNop()}
	_, err := mapper.Run(ctx, tm, env, c, "", 0, c.Entries(), func(file string, treeNumber int) error {
		files = append(files, file)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.roast", "b.roast"}, files)

	out := tm.Output()
	assert.Equal(t, "events", out.Name())
	assert.False(t, out.HasColumn("dbg"))
	assert.Equal(t, []interface{}{2.0, 6.0}, testutil.Column(out, "x2"))
}

func TestTreeMapperMissingInput(t *testing.T) {
	c := newChain(t)
	tm := mapper.NewTreeMapper(func(tm *mapper.TreeMapper, r *tree.Reader) error {
		tm.Inputs.Add(binding.NewScalar[float64]("missing").Column, false)
		return nil
	}, nil)
	env := &mapper.Env{Settings: settings.New()}
	_, err := mapper.Run(testutil.TestContext(t), tm, env, c, "", 0, 1, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeBinding))
}
