package settings

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/roast/pkg/errors"
)

func TestTypedGettersSaveDefaults(t *testing.T) {
	s := New()

	assert.Equal(t, 10000, s.Int("selector.log.every", 10000))
	assert.True(t, s.Defined("selector.log.every"))
	lvl, ok := s.LevelOf("selector.log.every")
	require.True(t, ok)
	assert.Equal(t, LevelLocal, lvl)

	assert.Equal(t, 1.5, s.Float("cut.energy", 1.5))
	v, _ := s.Lookup("cut.energy")
	assert.Equal(t, "1.5", v)

	assert.Equal(t, 2.0, s.Float("cut.width", 2))
	v, _ = s.Lookup("cut.width")
	assert.Equal(t, "2.0", v)

	assert.False(t, s.Bool("debug", false))
	v, _ = s.Lookup("debug")
	assert.Equal(t, "false", v)

	assert.Equal(t, "events", s.String("treemap.output.name", "events"))
}

func TestTypedGettersParse(t *testing.T) {
	s := New()
	s.Set("a", "true", LevelChanged)
	s.Set("b", "3", LevelChanged)
	s.Set("c", "0", LevelChanged)
	s.Set("d", "on", LevelChanged)
	s.Set("e", "garbage", LevelChanged)
	s.Set("n", "2.9", LevelChanged)

	assert.True(t, s.Bool("a", false))
	assert.True(t, s.Bool("b", false))
	assert.False(t, s.Bool("c", true))
	assert.True(t, s.Bool("d", false))
	assert.Equal(t, 7, s.Int("e", 7))
	assert.Equal(t, 2, s.Int("n", 0))
	assert.Equal(t, int64(3), s.Int64("b", 0))
	assert.Equal(t, 2.9, s.Float("n", 0))
}

func TestInstances(t *testing.T) {
	s := New()
	s.Set("det.a.gain", 1.0, LevelChanged)
	s.Set("det.b.gain", 2.0, LevelChanged)
	s.Set("det.a.offset", 0, LevelChanged)
	s.Set("det.x.y.gain", 3, LevelChanged)
	s.Set("det.a.gain.extra", 3, LevelChanged)

	assert.Equal(t, []string{"a", "b"}, s.Instances("det.*.gain"))
	assert.Nil(t, s.Instances("det.a.gain"))
}

func TestExportImportRoundTrip(t *testing.T) {
	s := New()
	s.Set("selector.log.every", 500, LevelChanged)
	s.Set("selector.name", "treemap", LevelChanged)
	s.Set("cut.energy", 1.25, LevelChanged)
	s.Set("cut.enabled", true, LevelChanged)
	s.Set("cut.note", "", LevelChanged)
	s.Set("scale", 3.0, LevelChanged)

	nested, err := s.ExportNested(LevelGlobal)
	require.NoError(t, err)

	sel := nested["selector"].(map[string]interface{})
	assert.Equal(t, int64(500), sel["log"].(map[string]interface{})["every"])
	assert.Equal(t, "treemap", sel["name"])
	cut := nested["cut"].(map[string]interface{})
	assert.Equal(t, 1.25, cut["energy"])
	assert.Equal(t, true, cut["enabled"])
	assert.Nil(t, cut["note"])
	assert.Equal(t, 3.0, nested["scale"])

	back := New()
	back.ImportNested(nested, LevelChanged, "")
	assert.Equal(t, s.Flat(LevelGlobal), back.Flat(LevelGlobal))
}

func TestExportNestedConflict(t *testing.T) {
	s := New()
	s.Set("a", 1, LevelChanged)
	s.Set("a.b", 2, LevelChanged)

	_, err := s.ExportNested(LevelGlobal)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestExportHonoursMinLevel(t *testing.T) {
	s := New()
	s.Set("sys.path", "/usr", LevelGlobal)
	s.Set("run.id", 7, LevelChanged)

	nested, err := s.ExportNested(LevelLocal)
	require.NoError(t, err)
	assert.NotContains(t, nested, "sys")
	assert.Contains(t, nested, "run")
}

func TestSnapshotRestore(t *testing.T) {
	s := New()
	s.Set("a", 1, LevelChanged)
	snap := s.Snapshot()

	s.Set("a", 2, LevelChanged)
	s.Set("b", 3, LevelLocal)
	s.Restore(snap)

	v, _ := s.Lookup("a")
	assert.Equal(t, "1", v)
	assert.False(t, s.Defined("b"))

	// the snapshot is independent of later restores
	s.Set("a", 5, LevelChanged)
	v, _ = snap.Lookup("a")
	assert.Equal(t, "1", v)
}

func TestMergeMissingKeepsDefinedKeys(t *testing.T) {
	s := New()
	s.Set("a", "mine", LevelChanged)

	other := New()
	other.Set("a", "theirs", LevelLocal)
	other.Set("b", "new", LevelLocal)

	assert.Equal(t, 1, s.MergeMissing(other))
	v, _ := s.Lookup("a")
	assert.Equal(t, "mine", v)
	v, _ = s.Lookup("b")
	assert.Equal(t, "new", v)
}

func TestTextRoundTrip(t *testing.T) {
	s := New()
	s.Set("b.key", "two words", LevelChanged)
	s.Set("a.key", 1, LevelChanged)

	var buf bytes.Buffer
	require.NoError(t, s.WriteText(&buf, LevelGlobal))
	assert.Equal(t, "a.key: 1\nb.key: two words\n", buf.String())

	back := New()
	require.NoError(t, back.ReadText(strings.NewReader("# comment\n\n"+buf.String()), LevelChanged))
	assert.Equal(t, s.Flat(LevelGlobal), back.Flat(LevelGlobal))
}

func TestReadTextRejectsMalformedLine(t *testing.T) {
	err := New().ReadText(strings.NewReader("no colon here\n"), LevelChanged)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestJSONAndYAMLRoundTrip(t *testing.T) {
	s := New()
	s.Set("selector.log.every", 100, LevelChanged)
	s.Set("cut.energy", 0.5, LevelChanged)
	s.Set("title", "run one", LevelChanged)

	var js bytes.Buffer
	require.NoError(t, s.WriteJSON(&js, LevelGlobal))
	fromJSON := New()
	require.NoError(t, fromJSON.ReadJSON(&js, LevelChanged))
	assert.Equal(t, s.Flat(LevelGlobal), fromJSON.Flat(LevelGlobal))

	var ys bytes.Buffer
	require.NoError(t, s.WriteYAML(&ys, LevelGlobal))
	fromYAML := New()
	require.NoError(t, fromYAML.ReadYAML(&ys, LevelChanged))
	assert.Equal(t, s.Flat(LevelGlobal), fromYAML.Flat(LevelGlobal))
}

func TestReadAuto(t *testing.T) {
	dir := t.TempDir()

	rc := filepath.Join(dir, "run.rootrc")
	require.NoError(t, os.WriteFile(rc, []byte("selector.log.every: 20\n"), 0o644))
	js := filepath.Join(dir, "run.json")
	require.NoError(t, os.WriteFile(js, []byte(`{"cut":{"energy":2.5}}`), 0o644))
	toml := filepath.Join(dir, "run.toml")
	require.NoError(t, os.WriteFile(toml, []byte("[treemap]\noutput = \"hits\"\n"), 0o644))

	s := New()
	require.NoError(t, s.ReadAuto(rc, LevelUser))
	require.NoError(t, s.ReadAuto(js, LevelUser))
	require.NoError(t, s.ReadAuto(toml, LevelUser))

	assert.Equal(t, 20, s.Int("selector.log.every", 0))
	assert.Equal(t, 2.5, s.Float("cut.energy", 0))
	assert.Equal(t, "hits", s.String("treemap.output", ""))

	err := s.ReadAuto(filepath.Join(dir, "missing.json"), LevelUser)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}
