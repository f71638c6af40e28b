package tree

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/ajitpratap0/roast/pkg/errors"
	"github.com/ajitpratap0/roast/pkg/json"
	"github.com/ajitpratap0/roast/pkg/mmap"
	"github.com/ajitpratap0/roast/pkg/settings"
)

// Extension is the file extension of roast container files.
const Extension = ".roast"

// Object kinds stored in a container.
const (
	KindTree      = "tree"
	KindSettings  = "settings"
	KindHist      = "hist"
	KindEntryList = "entrylist"
)

// SettingsObject is the name settings snapshots are stored under.
const SettingsObject = "settings"

// Key describes one object stored in a container.
type Key struct {
	Name string
	Kind string
}

type object struct {
	key  Key
	tree *Tree
	raw  []byte
	zf   *zip.File
}

// File is a container holding named objects: trees stored as Parquet and
// everything else as JSON. Files opened for writing keep their objects in
// memory and are written on Close.
type File struct {
	path     string
	writable bool
	order    []string
	objects  map[string]*object
	zr       *zip.Reader
	mm       *mmap.Reader
	codec    string
	level    int
	closed   bool
}

// FileOption configures a container created for writing.
type FileOption func(*File)

// WithCompression sets the Parquet codec used for trees.
func WithCompression(codec string) FileOption {
	return func(f *File) { f.codec = codec }
}

// WithCompressionLevel sets the codec level for codecs that support one.
func WithCompressionLevel(level int) FileOption {
	return func(f *File) { f.level = level }
}

// Open opens a container for reading.
func Open(path string) (*File, error) {
	mm, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(mm, int64(mm.Len()))
	if err != nil {
		mm.Close()
		return nil, errors.Wrapf(err, errors.ErrorTypeIO, "%s is not a roast container", path).WithDetail("file", path)
	}
	f := &File{path: path, objects: make(map[string]*object), zr: zr, mm: mm}
	for _, zf := range zr.File {
		key, ok := parseMember(zf.Name)
		if !ok {
			continue
		}
		f.order = append(f.order, key.Name)
		f.objects[key.Name] = &object{key: key, zf: zf}
	}
	return f, nil
}

// Create creates an empty container that is written to path on Close.
func Create(path string, opts ...FileOption) (*File, error) {
	if dir := filepath.Dir(path); dir != "" {
		if st, err := os.Stat(dir); err != nil || !st.IsDir() {
			return nil, errors.Newf(errors.ErrorTypeIO, "output directory %s does not exist", dir).WithDetail("file", path)
		}
	}
	f := &File{path: path, writable: true, objects: make(map[string]*object), codec: CodecSnappy, level: 1}
	for _, opt := range opts {
		opt(f)
	}
	if _, err := parquetCodec(f.codec); err != nil {
		return nil, err
	}
	return f, nil
}

func memberName(key Key) string {
	if key.Kind == KindTree {
		return key.Name + ".parquet"
	}
	return key.Name + "." + key.Kind + ".json"
}

func parseMember(name string) (Key, bool) {
	if strings.HasSuffix(name, ".parquet") {
		return Key{Name: strings.TrimSuffix(name, ".parquet"), Kind: KindTree}, true
	}
	if !strings.HasSuffix(name, ".json") {
		return Key{}, false
	}
	base := strings.TrimSuffix(name, ".json")
	dot := strings.LastIndexByte(base, '.')
	if dot <= 0 {
		return Key{}, false
	}
	return Key{Name: base[:dot], Kind: base[dot+1:]}, true
}

// Path returns the file path.
func (f *File) Path() string { return f.path }

// Keys returns the stored objects in storage order.
func (f *File) Keys() []Key {
	out := make([]Key, 0, len(f.order))
	for _, n := range f.order {
		out = append(out, f.objects[n].key)
	}
	return out
}

// Kind returns the kind of the named object.
func (f *File) Kind(name string) (string, bool) {
	o, ok := f.objects[name]
	if !ok {
		return "", false
	}
	return o.key.Kind, true
}

func (f *File) notFound(name string) error {
	return errors.Newf(errors.ErrorTypeNotFound, "object %s not found in %s", name, f.path).
		WithDetail("file", f.path).
		WithDetail("object", name)
}

func (f *File) readMember(o *object) ([]byte, error) {
	if o.raw != nil || o.zf == nil {
		return o.raw, nil
	}
	rc, err := o.zf.Open()
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeIO, "failed to open %s in %s", o.key.Name, f.path)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeIO, "failed to read %s in %s", o.key.Name, f.path)
	}
	return data, nil
}

// Tree returns the named tree. Objects of other kinds yield an
// unsupported_object error.
func (f *File) Tree(name string) (*Tree, error) {
	o, ok := f.objects[name]
	if !ok {
		return nil, f.notFound(name)
	}
	if o.key.Kind != KindTree {
		return nil, errors.Newf(errors.ErrorTypeUnsupportedObject, "objects of type %s are not supported (%s in %s)",
			o.key.Kind, name, f.path).WithDetail("object", name)
	}
	if o.tree != nil {
		return o.tree, nil
	}
	data, err := f.readMember(o)
	if err != nil {
		return nil, err
	}
	t, err := readParquet(name, data)
	if err != nil {
		return nil, err
	}
	o.tree = t
	return t, nil
}

// Object decodes the named JSON object into v and returns its kind.
func (f *File) Object(name string, v interface{}) (string, error) {
	o, ok := f.objects[name]
	if !ok {
		return "", f.notFound(name)
	}
	if o.key.Kind == KindTree {
		return "", errors.Newf(errors.ErrorTypeUnsupportedObject, "object %s in %s is a tree", name, f.path)
	}
	data, err := f.readMember(o)
	if err != nil {
		return "", err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return "", errors.Wrapf(err, errors.ErrorTypeData, "failed to decode %s in %s", name, f.path)
	}
	return o.key.Kind, nil
}

func (f *File) put(o *object) error {
	if !f.writable {
		return errors.Newf(errors.ErrorTypeIO, "file %s is not open for writing", f.path)
	}
	if _, ok := f.objects[o.key.Name]; !ok {
		f.order = append(f.order, o.key.Name)
	}
	f.objects[o.key.Name] = o
	return nil
}

// PutTree stores t under its name, replacing any object of that name.
func (f *File) PutTree(t *Tree) error {
	return f.put(&object{key: Key{Name: t.Name(), Kind: KindTree}, tree: t})
}

// PutObject stores v as JSON under name, replacing any object of that name.
func (f *File) PutObject(name, kind string, v interface{}) error {
	if kind == KindTree || kind == "" || strings.Contains(kind, ".") {
		return errors.Newf(errors.ErrorTypeInternal, "invalid object kind %q", kind)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, errors.ErrorTypeData, "failed to encode %s", name)
	}
	return f.put(&object{key: Key{Name: name, Kind: kind}, raw: data})
}

// WriteSettings stores a snapshot of s with level >= minLevel.
func (f *File) WriteSettings(s *settings.Settings, minLevel settings.Level) error {
	nested, err := s.ExportNested(minLevel)
	if err != nil {
		return err
	}
	return f.PutObject(SettingsObject, KindSettings, nested)
}

// ReadSettings returns the settings stored in the file, or an empty store
// when the file has none.
func (f *File) ReadSettings() (*settings.Settings, error) {
	s := settings.New()
	if _, ok := f.objects[SettingsObject]; !ok {
		return s, nil
	}
	nested, err := f.settingsObject(SettingsObject)
	if err != nil {
		return nil, err
	}
	s.ImportNested(nested, settings.LevelLocal, "")
	return s, nil
}

// settingsObject decodes a settings object keeping numbers exact.
func (f *File) settingsObject(name string) (map[string]interface{}, error) {
	o, ok := f.objects[name]
	if !ok {
		return nil, f.notFound(name)
	}
	if o.key.Kind != KindSettings {
		return nil, errors.Newf(errors.ErrorTypeUnsupportedObject, "object %s in %s is a %s, not settings", name, f.path, o.key.Kind)
	}
	data, err := f.readMember(o)
	if err != nil {
		return nil, err
	}
	var nested map[string]interface{}
	if err := json.DecodeNumbers(bytes.NewReader(data), &nested); err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeData, "failed to decode %s in %s", name, f.path)
	}
	return nested, nil
}

// Close writes a container created for writing and releases a container
// opened for reading.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	if !f.writable {
		if f.mm != nil {
			return f.mm.Close()
		}
		return nil
	}
	return f.flush()
}

// Discard releases a writable container without writing it.
func (f *File) Discard() {
	f.closed = true
	f.objects = nil
	f.order = nil
}

func (f *File) flush() error {
	tmp := f.path + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return errors.Wrapf(err, errors.ErrorTypeIO, "failed to create %s", f.path).WithDetail("file", f.path)
	}
	zw := zip.NewWriter(out)
	werr := f.writeMembers(zw)
	if err := zw.Close(); err != nil && werr == nil {
		werr = errors.Wrapf(err, errors.ErrorTypeIO, "failed to finish %s", f.path)
	}
	if err := out.Close(); err != nil && werr == nil {
		werr = errors.Wrapf(err, errors.ErrorTypeIO, "failed to close %s", f.path)
	}
	if werr != nil {
		os.Remove(tmp)
		return werr
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeIO, "failed to move %s into place", f.path)
	}
	return nil
}

func (f *File) writeMembers(zw *zip.Writer) error {
	for _, name := range f.order {
		o := f.objects[name]
		var data []byte
		method := zip.Deflate
		if o.key.Kind == KindTree {
			var buf bytes.Buffer
			if err := writeParquet(&buf, o.tree, f.codec, f.level); err != nil {
				return err
			}
			data = buf.Bytes()
			method = zip.Store
		} else {
			data = o.raw
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: memberName(o.key), Method: method})
		if err != nil {
			return errors.Wrapf(err, errors.ErrorTypeIO, "failed to add %s to %s", name, f.path)
		}
		if _, err := w.Write(data); err != nil {
			return errors.Wrapf(err, errors.ErrorTypeIO, "failed to write %s to %s", name, f.path)
		}
	}
	return nil
}

// IsContainer reports whether path names a container file, optionally
// followed by "/object".
func IsContainer(path string) bool {
	if strings.HasSuffix(path, Extension) {
		return true
	}
	file, _ := SplitObjectPath(path)
	return strings.HasSuffix(file, Extension)
}

// SplitObjectPath splits "dir/file.roast/object" at its last '/' into file
// and object. Without a '/' the whole path is the file.
func SplitObjectPath(spec string) (string, string) {
	i := strings.LastIndexByte(spec, '/')
	if i < 0 {
		return spec, ""
	}
	return spec[:i], spec[i+1:]
}

// ExpandInputs expands glob patterns into a sorted, duplicate free file list.
// Patterns without magic characters are kept even if the file is missing so
// the open reports it.
func ExpandInputs(patterns ...string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for _, p := range patterns {
		matches := []string{p}
		if strings.ContainsAny(p, "*?[") {
			m, err := filepath.Glob(p)
			if err != nil {
				return nil, errors.Wrapf(err, errors.ErrorTypeConfig, "invalid input pattern %q", p)
			}
			if len(m) == 0 {
				return nil, errors.Newf(errors.ErrorTypeNotFound, "no input files match %q", p)
			}
			sort.Strings(m)
			matches = m
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out, nil
}

// LoadSettings reads settings from spec into s at level. spec is a
// container ("run.roast" or "run.roast/object"), "-" for stdin or a
// settings file in any format settings.ReadAuto supports.
func LoadSettings(s *settings.Settings, spec string, level settings.Level) error {
	if !IsContainer(spec) {
		return s.ReadAuto(spec, level)
	}
	path, name := spec, SettingsObject
	if !strings.HasSuffix(spec, Extension) {
		path, name = SplitObjectPath(spec)
	}
	f, err := Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	nested, err := f.settingsObject(name)
	if err != nil {
		return err
	}
	s.ImportNested(nested, level, "")
	return nil
}
