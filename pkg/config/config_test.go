package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/roast/pkg/errors"
	"github.com/ajitpratap0/roast/pkg/settings"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestFromSettingsSavesDefaults(t *testing.T) {
	s := settings.New()
	s.Set(KeyFileCompression, "zstd", settings.LevelUser)
	s.Set(KeyTreemapOutputLevel, 2, settings.LevelChanged)

	cfg := FromSettings(s)
	assert.Equal(t, "zstd", cfg.Storage.Compression)
	assert.Equal(t, 2, cfg.Treemap.OutputLevel)
	assert.Equal(t, "events", cfg.Treemap.OutputName)

	for _, k := range Keys() {
		assert.True(t, s.Defined(k), k)
	}
	level, _ := s.LevelOf(KeyAvroCompression)
	assert.Equal(t, settings.LevelLocal, level)

	// every key of the view exports without conflicts
	_, err := s.ExportNested(settings.LevelGlobal)
	require.NoError(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"encoding", func(c *Config) { c.Logging.Encoding = "xml" }},
		{"codec", func(c *Config) { c.Storage.Compression = "rar" }},
		{"output level", func(c *Config) { c.Storage.OutputLevel = "max" }},
		{"log every", func(c *Config) { c.Selector.LogEvery = 0 }},
		{"increased level", func(c *Config) { c.Selector.IncreasedLevel = "nope" }},
		{"treemap name", func(c *Config) { c.Treemap.OutputName = "" }},
		{"avro codec", func(c *Config) { c.Tabulate.AvroCompression = "zip" }},
		{"sampling", func(c *Config) { c.Tracing.SamplingRate = 2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
		})
	}
}

func TestDerivedConfigs(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "debug"
	cfg.Tracing.Enabled = true

	assert.Len(t, cfg.FileOptions(), 2)
	assert.Equal(t, "debug", cfg.Logger().Level)
	tc := cfg.TracingFor("1.2.3")
	assert.True(t, tc.Enabled)
	assert.Equal(t, "1.2.3", tc.ServiceVersion)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("ROAST_SELECTOR_LOG_EVERY", "250")
	t.Setenv("ROAST_DET_GAIN", "1.5")

	s := settings.New()
	s.Set("det.gain", 1.0, settings.LevelUser)
	s.Set("det.offset", 3, settings.LevelUser)

	assert.Equal(t, 2, ApplyEnv(s))
	assert.Equal(t, int64(250), s.Int64(KeySelectorLogEvery, 1))
	assert.Equal(t, 1.5, s.Float("det.gain", 0))
	level, _ := s.LevelOf("det.gain")
	assert.Equal(t, settings.LevelChanged, level)
	assert.Equal(t, 3, s.Int("det.offset", 0))
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("ROAST_TEST_DOTENV=from-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("ROAST_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "from-file", os.Getenv("ROAST_TEST_DOTENV"))
	assert.NoError(t, LoadDotEnv())
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ROAST_TEST_OUT", "/tmp/metrics")

	yamlPath := filepath.Join(dir, "roast.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("metrics:\n  textfile: ${ROAST_TEST_OUT}/roast.prom\nselector:\n  log:\n    every: 7\n"), 0o600))
	textPath := filepath.Join(dir, "roast.rc")
	require.NoError(t, os.WriteFile(textPath, []byte("# comment\ntreemap.output.name: ${ROAST_TEST_NAME}mapped\n"), 0o600))
	jsonPath := filepath.Join(dir, "roast.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"tabulate":{"avro":{"compression":"snappy"}}}`), 0o600))

	s := settings.New()
	require.NoError(t, LoadFile(s, yamlPath, settings.LevelUser))
	require.NoError(t, LoadFile(s, textPath, settings.LevelUser))
	require.NoError(t, LoadFile(s, jsonPath, settings.LevelUser))

	cfg := FromSettings(s)
	assert.Equal(t, "/tmp/metrics/roast.prom", cfg.Metrics.Textfile)
	assert.Equal(t, int64(7), cfg.Selector.LogEvery)
	assert.Equal(t, "mapped", cfg.Treemap.OutputName)
	assert.Equal(t, "snappy", cfg.Tabulate.AvroCompression)

	err := LoadFile(s, filepath.Join(dir, "missing.yaml"), settings.LevelUser)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}
