package tree

import (
	"bufio"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/ajitpratap0/roast/pkg/compression"
	"github.com/ajitpratap0/roast/pkg/errors"
)

// EntryList is a sorted set of global entry numbers of a tree.
type EntryList struct {
	Name    string  `json:"name"`
	Tree    string  `json:"tree,omitempty"`
	Entries []int64 `json:"entries"`
}

// NewEntryList creates an empty list for the tree called tree.
func NewEntryList(name, tree string) *EntryList {
	return &EntryList{Name: name, Tree: tree}
}

// Add inserts entry, keeping the list sorted and unique.
func (l *EntryList) Add(entry int64) {
	n := len(l.Entries)
	if n == 0 || l.Entries[n-1] < entry {
		l.Entries = append(l.Entries, entry)
		return
	}
	i := sort.Search(n, func(i int) bool { return l.Entries[i] >= entry })
	if l.Entries[i] == entry {
		return
	}
	l.Entries = append(l.Entries, 0)
	copy(l.Entries[i+1:], l.Entries[i:])
	l.Entries[i] = entry
}

// Contains reports whether entry is in the list.
func (l *EntryList) Contains(entry int64) bool {
	i := sort.Search(len(l.Entries), func(i int) bool { return l.Entries[i] >= entry })
	return i < len(l.Entries) && l.Entries[i] == entry
}

// Len returns the number of entries.
func (l *EntryList) Len() int { return len(l.Entries) }

// Range returns the listed entries >= start, at most max of them (all when max < 0).
func (l *EntryList) Range(start, max int64) []int64 {
	i := sort.Search(len(l.Entries), func(i int) bool { return l.Entries[i] >= start })
	out := l.Entries[i:]
	if max >= 0 && int64(len(out)) > max {
		out = out[:max]
	}
	return append([]int64(nil), out...)
}

// WriteASCII writes one entry per line.
func (l *EntryList) WriteASCII(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, e := range l.Entries {
		bw.WriteString(strconv.FormatInt(e, 10))
		bw.WriteByte('\n')
	}
	if err := bw.Flush(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to write entry list")
	}
	return nil
}

// ReadEntryListASCII reads whitespace separated entry numbers. Text after
// '#' on a line is ignored.
func ReadEntryListASCII(r io.Reader, name string) (*EntryList, error) {
	l := NewEntryList(name, "")
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		for _, field := range strings.Fields(line) {
			e, err := strconv.ParseInt(field, 10, 64)
			if err != nil || e < 0 {
				return nil, errors.Newf(errors.ErrorTypeData, "invalid entry %q on line %d of %s", field, lineNo, name)
			}
			l.Add(e)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeIO, "failed to read entry list %s", name)
	}
	return l, nil
}

// PutEntryList stores l under its name.
func (f *File) PutEntryList(l *EntryList) error {
	return f.PutObject(l.Name, KindEntryList, l)
}

// EntryList returns the named entry list.
func (f *File) EntryList(name string) (*EntryList, error) {
	var l EntryList
	kind, err := f.Object(name, &l)
	if err != nil {
		return nil, err
	}
	if kind != KindEntryList {
		return nil, errors.Newf(errors.ErrorTypeUnsupportedObject, "object %s in %s is a %s, not an entry list", name, f.path, kind)
	}
	if l.Name == "" {
		l.Name = name
	}
	return &l, nil
}

// LoadEntryList reads an entry list from "file.roast/name" or from an ASCII
// file, which may be compressed.
func LoadEntryList(spec string) (*EntryList, error) {
	if IsContainer(spec) && !strings.HasSuffix(spec, Extension) {
		path, name := SplitObjectPath(spec)
		f, err := Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return f.EntryList(name)
	}

	in, err := os.Open(spec)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(err, errors.ErrorTypeNotFound, "entry list %s not found", spec)
		}
		return nil, errors.Wrapf(err, errors.ErrorTypeIO, "failed to open entry list %s", spec)
	}
	defer in.Close()
	r, err := compression.NewReader(in, compression.FromPath(spec))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return ReadEntryListASCII(r, spec)
}
