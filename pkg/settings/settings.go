// Package settings implements the hierarchical key/value configuration store
// shared by mappers, selectors and the tabulation engine.
//
// Keys are dotted paths ("selector.log.every"). Every value is stored as a
// string together with the level it was set at; typed getters parse on read
// and record the supplied default when a key is missing, so the effective
// configuration of a run can be written next to its output.
package settings

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/ajitpratap0/roast/pkg/errors"
	"github.com/ajitpratap0/roast/pkg/json"
)

// Level orders the origin of a value. Exports take a minimum level.
type Level int

const (
	// LevelGlobal marks values inherited from system wide configuration.
	LevelGlobal Level = iota
	// LevelUser marks values from user configuration files.
	LevelUser
	// LevelLocal marks values read from inputs or saved as defaults.
	LevelLocal
	// LevelChanged marks values set explicitly for this run.
	LevelChanged
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case LevelGlobal:
		return "global"
	case LevelUser:
		return "user"
	case LevelLocal:
		return "local"
	case LevelChanged:
		return "changed"
	default:
		return "level(" + strconv.Itoa(int(l)) + ")"
	}
}

type record struct {
	value string
	level Level
}

// Settings is an ordered key/value store. The zero value is not usable; call New.
type Settings struct {
	mu      sync.RWMutex
	keys    []string
	records map[string]*record
}

var global = New()

// Global returns the process wide store used by the command line.
func Global() *Settings {
	return global
}

// New creates an empty store.
func New() *Settings {
	return &Settings{records: make(map[string]*record)}
}

// Len returns the number of keys.
func (s *Settings) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// Keys returns all keys in insertion order.
func (s *Settings) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.keys...)
}

// Defined reports whether key has a value.
func (s *Settings) Defined(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[key]
	return ok
}

// Lookup returns the raw string value of key.
func (s *Settings) Lookup(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[key]
	if !ok {
		return "", false
	}
	return r.value, true
}

// LevelOf returns the level key was set at.
func (s *Settings) LevelOf(key string) (Level, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[key]
	if !ok {
		return 0, false
	}
	return r.level, true
}

// Set stores value under key, replacing any previous value and level.
func (s *Settings) Set(key string, value interface{}, level Level) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(key, Stringify(value), level)
}

func (s *Settings) setLocked(key, value string, level Level) {
	if r, ok := s.records[key]; ok {
		r.value = value
		r.level = level
		return
	}
	s.keys = append(s.keys, key)
	s.records[key] = &record{value: value, level: level}
}

// Delete removes key.
func (s *Settings) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[key]; !ok {
		return
	}
	delete(s.records, key)
	for i, k := range s.keys {
		if k == key {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			break
		}
	}
}

// Clear removes every key.
func (s *Settings) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = nil
	s.records = make(map[string]*record)
}

// lookupOrSave returns the value of key, storing dflt at LevelLocal when missing.
func (s *Settings) lookupOrSave(key string, dflt interface{}) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[key]; ok {
		return r.value, true
	}
	s.setLocked(key, Stringify(dflt), LevelLocal)
	return "", false
}

// Bool returns key as a boolean. "true"/"false", "yes"/"no", "on"/"off"
// and numbers (positive is true) are accepted.
func (s *Settings) Bool(key string, dflt bool) bool {
	v, ok := s.lookupOrSave(key, dflt)
	if !ok {
		return dflt
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "on":
		return true
	case "no", "off":
		return false
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
		return f > 0
	}
	return dflt
}

// Int returns key as an integer.
func (s *Settings) Int(key string, dflt int) int {
	v, ok := s.lookupOrSave(key, dflt)
	if !ok {
		return dflt
	}
	v = strings.TrimSpace(v)
	if i, err := strconv.Atoi(v); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return int(f)
	}
	return dflt
}

// Int64 returns key as a 64 bit integer.
func (s *Settings) Int64(key string, dflt int64) int64 {
	v, ok := s.lookupOrSave(key, dflt)
	if !ok {
		return dflt
	}
	v = strings.TrimSpace(v)
	if i, err := strconv.ParseInt(v, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return int64(f)
	}
	return dflt
}

// Float returns key as a float.
func (s *Settings) Float(key string, dflt float64) float64 {
	v, ok := s.lookupOrSave(key, dflt)
	if !ok {
		return dflt
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
		return f
	}
	return dflt
}

// String returns key as a string.
func (s *Settings) String(key string, dflt string) string {
	v, ok := s.lookupOrSave(key, dflt)
	if !ok {
		return dflt
	}
	return v
}

// Instances returns the distinct values matched by the single '*' in
// pattern, in key order. "det.*.gain" matches "det.a.gain" and yields "a".
// A match never spans a '.'.
func (s *Settings) Instances(pattern string) []string {
	star := strings.Index(pattern, "*")
	if star < 0 {
		return nil
	}
	prefix, suffix := pattern[:star], pattern[star+1:]

	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for _, k := range s.keys {
		if len(k) <= len(prefix)+len(suffix) || !strings.HasPrefix(k, prefix) || !strings.HasSuffix(k, suffix) {
			continue
		}
		mid := k[len(prefix) : len(k)-len(suffix)]
		if strings.Contains(mid, ".") || seen[mid] {
			continue
		}
		seen[mid] = true
		out = append(out, mid)
	}
	return out
}

// Snapshot returns a deep copy of the store.
func (s *Settings) Snapshot() *Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := New()
	for _, k := range s.keys {
		r := s.records[k]
		c.keys = append(c.keys, k)
		c.records[k] = &record{value: r.value, level: r.level}
	}
	return c
}

// Restore replaces the contents of s with those of snap.
func (s *Settings) Restore(snap *Settings) {
	if snap == s {
		return
	}
	c := snap.Snapshot()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = c.keys
	s.records = c.records
}

// MergeMissing copies every key of other that s does not define, keeping
// its level. It returns the number of keys added.
func (s *Settings) MergeMissing(other *Settings) int {
	if other == nil || other == s {
		return 0
	}
	o := other.Snapshot()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, k := range o.keys {
		if _, ok := s.records[k]; ok {
			continue
		}
		r := o.records[k]
		s.setLocked(k, r.value, r.level)
		n++
	}
	return n
}

// Flat returns every key with level >= minLevel and its raw value.
func (s *Settings) Flat(minLevel Level) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.keys))
	for _, k := range s.keys {
		if r := s.records[k]; r.level >= minLevel {
			out[k] = r.value
		}
	}
	return out
}

// ExportNested converts keys with level >= minLevel into nested maps split
// on '.'. Values are typed: empty becomes nil, "true"/"false" booleans,
// integer literals int64, other numbers float64, everything else strings.
func (s *Settings) ExportNested(minLevel Level) (map[string]interface{}, error) {
	flat := s.Flat(minLevel)
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	root := make(map[string]interface{})
	for _, k := range keys {
		parts := strings.Split(k, ".")
		node := root
		for i, p := range parts[:len(parts)-1] {
			child, ok := node[p]
			if !ok {
				m := make(map[string]interface{})
				node[p] = m
				node = m
				continue
			}
			m, ok := child.(map[string]interface{})
			if !ok {
				return nil, errors.Newf(errors.ErrorTypeConfig, "setting %s conflicts with %s",
					k, strings.Join(parts[:i+1], "."))
			}
			node = m
		}
		leaf := parts[len(parts)-1]
		if _, ok := node[leaf]; ok {
			return nil, errors.Newf(errors.ErrorTypeConfig, "setting %s conflicts with a nested group", k)
		}
		node[leaf] = ParseValue(flat[k])
	}
	return root, nil
}

// ImportNested flattens nested into dotted keys below prefix and stores them at level.
func (s *Settings) ImportNested(nested map[string]interface{}, level Level, prefix string) {
	for k, v := range nested {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		s.importValue(key, v, level)
	}
}

func (s *Settings) importValue(key string, v interface{}, level Level) {
	switch x := v.(type) {
	case map[string]interface{}:
		s.ImportNested(x, level, key)
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(x))
		for mk, mv := range x {
			m[fmt.Sprint(mk)] = mv
		}
		s.ImportNested(m, level, key)
	case []interface{}:
		for i, e := range x {
			s.importValue(key+"."+strconv.Itoa(i), e, level)
		}
	default:
		s.Set(key, x, level)
	}
}

// ParseValue infers the typed value of a stored string.
func ParseValue(v string) interface{} {
	if v == "" {
		return nil
	}
	switch v {
	case "true":
		return true
	case "false":
		return false
	}
	if !strings.ContainsAny(v, ".eE") {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	return v
}

// Stringify converts a typed value into its stored form. Floats always keep
// a decimal point so they are read back as floats.
func Stringify(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(x)
	case float32:
		return formatFloat(float64(x))
	case float64:
		return formatFloat(x)
	case json.Number:
		return x.String()
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}
