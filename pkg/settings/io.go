package settings

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/roast/pkg/errors"
	"github.com/ajitpratap0/roast/pkg/json"
)

// WriteText writes "key: value" lines, sorted by key.
func (s *Settings) WriteText(w io.Writer, minLevel Level) error {
	flat := s.Flat(minLevel)
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	bw := bufio.NewWriter(w)
	for _, k := range keys {
		if _, err := bw.WriteString(k + ": " + flat[k] + "\n"); err != nil {
			return errors.Wrap(err, errors.ErrorTypeIO, "failed to write settings")
		}
	}
	if err := bw.Flush(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to write settings")
	}
	return nil
}

// ReadText reads "key: value" lines. Blank lines and lines starting with
// '#' are ignored.
func (s *Settings) ReadText(r io.Reader, level Level) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		colon := strings.Index(line, ":")
		if colon <= 0 {
			return errors.Newf(errors.ErrorTypeConfig, "invalid settings line %d: %q", lineNo, line).
				WithDetail("line", lineNo)
		}
		s.Set(strings.TrimSpace(line[:colon]), strings.TrimSpace(line[colon+1:]), level)
	}
	if err := sc.Err(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to read settings")
	}
	return nil
}

// MarshalJSON encodes every key of level LevelLocal or above as nested JSON.
func (s *Settings) MarshalJSON() ([]byte, error) {
	nested, err := s.ExportNested(LevelLocal)
	if err != nil {
		return nil, err
	}
	return json.Marshal(nested)
}

// WriteJSON writes keys with level >= minLevel as an indented nested object.
func (s *Settings) WriteJSON(w io.Writer, minLevel Level) error {
	nested, err := s.ExportNested(minLevel)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(nested, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to encode settings")
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to write settings")
	}
	return nil
}

// ReadJSON reads a nested JSON object.
func (s *Settings) ReadJSON(r io.Reader, level Level) error {
	var nested map[string]interface{}
	if err := json.DecodeNumbers(r, &nested); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to decode JSON settings")
	}
	s.ImportNested(nested, level, "")
	return nil
}

// WriteYAML writes keys with level >= minLevel as a nested YAML document.
func (s *Settings) WriteYAML(w io.Writer, minLevel Level) error {
	nested, err := s.ExportNested(minLevel)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(nested); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to encode settings")
	}
	return enc.Close()
}

// ReadYAML reads a nested YAML document.
func (s *Settings) ReadYAML(r io.Reader, level Level) error {
	var nested map[string]interface{}
	if err := yaml.NewDecoder(r).Decode(&nested); err != nil && err != io.EOF {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to decode YAML settings")
	}
	s.ImportNested(nested, level, "")
	return nil
}

// ReadViper reads any format viper understands (toml, ini, properties, hcl).
// Viper folds keys to lower case.
func (s *Settings) ReadViper(path string, level Level) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeConfig, "failed to read settings from %s", path)
	}
	for _, k := range v.AllKeys() {
		s.importValue(k, v.Get(k), level)
	}
	return nil
}

// ReadAuto reads settings from path, choosing the format by extension.
// "-" reads the text format from stdin.
func (s *Settings) ReadAuto(path string, level Level) error {
	if path == "-" {
		return s.ReadText(os.Stdin, level)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".toml", ".ini", ".properties", ".props", ".hcl":
		return s.ReadViper(path, level)
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Wrapf(err, errors.ErrorTypeNotFound, "settings file %s not found", path)
		}
		return errors.Wrapf(err, errors.ErrorTypeIO, "failed to open settings file %s", path)
	}
	defer f.Close()

	switch ext {
	case ".json":
		return s.ReadJSON(f, level)
	case ".yaml", ".yml":
		return s.ReadYAML(f, level)
	default:
		return s.ReadText(f, level)
	}
}
