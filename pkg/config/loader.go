package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ajitpratap0/roast/pkg/errors"
	"github.com/ajitpratap0/roast/pkg/settings"
	"github.com/ajitpratap0/roast/pkg/tree"
)

// EnvPrefix prefixes environment overrides: ROAST_SELECTOR_LOG_EVERY sets
// selector.log.every.
const EnvPrefix = "ROAST"

// Keys lists every key of the typed view.
func Keys() []string {
	return []string{
		KeyLoggingLevel, KeyLoggingEncoding, KeyLoggingDevelopment,
		KeyFileCompression, KeyFileCompressionLevel, KeyOutputCompression,
		KeySelectorLogEvery, KeySelectorNormalLevel, KeySelectorIncreasedLevel, KeySelectorIncreasedEvery,
		KeyTreemapOutputName, KeyTreemapOutputLevel,
		KeyAvroCompression,
		KeyMetricsTextfile, KeyTracingEnabled, KeyTracingPretty, KeyTracingSampling,
	}
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables already set. Missing files are
// skipped.
func LoadDotEnv(paths ...string) error {
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeConfig, "failed to load %s", strings.Join(existing, ", "))
	}
	return nil
}

// ApplyEnv stores the ROAST_ environment overrides of the known keys and
// of every key already defined in s at LevelChanged, and returns how many
// were applied.
func ApplyEnv(s *settings.Settings) int {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	seen := make(map[string]bool)
	applied := 0
	for _, k := range append(Keys(), s.Keys()...) {
		if seen[k] {
			continue
		}
		seen[k] = true
		_ = v.BindEnv(k)
		if v.IsSet(k) {
			s.Set(k, v.GetString(k), settings.LevelChanged)
			applied++
		}
	}
	return applied
}

// LoadFile reads settings from path into s at level. ${VAR} references in
// text, JSON and YAML files are replaced with environment values first.
// Containers and viper formats are read as they are.
func LoadFile(s *settings.Settings, path string, level settings.Level) error {
	if path == "-" || tree.IsContainer(path) {
		return tree.LoadSettings(s, path, level)
	}
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".toml", ".ini", ".properties", ".props", ".hcl":
		return s.ReadViper(path, level)
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the command line
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Wrapf(err, errors.ErrorTypeNotFound, "settings file %s not found", path)
		}
		return errors.Wrapf(err, errors.ErrorTypeIO, "failed to read settings file %s", path)
	}
	r := bytes.NewReader([]byte(substituteEnvVars(string(data))))
	switch ext {
	case ".json":
		return s.ReadJSON(r, level)
	case ".yaml", ".yml":
		return s.ReadYAML(r, level)
	default:
		return s.ReadText(r, level)
	}
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		varName := content[start+2 : end]
		content = content[:start] + os.Getenv(varName) + content[end+1:]
	}
	return content
}
