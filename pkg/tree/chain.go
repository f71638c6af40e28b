package tree

import (
	"path"
	"sort"

	"github.com/ajitpratap0/roast/pkg/errors"
)

type chainElem struct {
	file   string
	tree   *Tree
	offset int64
}

type friend struct {
	alias string
	chain *Chain
}

// Chain is a logical concatenation of same-schema trees stored in several
// files. It also owns the column activation state and the attached friend
// chains used while reading.
type Chain struct {
	name     string
	elems    []chainElem
	entries  int64
	schema   []ColumnDesc
	inactive map[string]bool
	friends  []friend
}

// NewChain creates an empty chain for trees called name.
func NewChain(name string) *Chain {
	return &Chain{name: name, inactive: make(map[string]bool)}
}

// ChainOf builds a chain over the tree called name in every file matched by patterns.
func ChainOf(name string, patterns ...string) (*Chain, error) {
	files, err := ExpandInputs(patterns...)
	if err != nil {
		return nil, err
	}
	c := NewChain(name)
	for _, f := range files {
		if err := c.AddFile(f); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Add appends t, read from file, to the chain.
func (c *Chain) Add(file string, t *Tree) error {
	cols := t.Columns()
	if len(c.elems) == 0 {
		c.schema = cols
	} else if !compatible(c.schema, cols) {
		return errors.Newf(errors.ErrorTypeData, "tree %s in %s does not match the schema of chain %s", t.Name(), file, c.name).
			WithDetail("file", file)
	}
	c.elems = append(c.elems, chainElem{file: file, tree: t, offset: c.entries})
	c.entries += t.Entries()
	return nil
}

// AddFile opens a container file and appends its tree called like the chain.
func (c *Chain) AddFile(file string) error {
	f, err := Open(file)
	if err != nil {
		return err
	}
	defer f.Close()
	t, err := f.Tree(c.name)
	if err != nil {
		return err
	}
	return c.Add(file, t)
}

func (c *Chain) Name() string   { return c.name }
func (c *Chain) Entries() int64 { return c.entries }
func (c *Chain) NumTrees() int  { return len(c.elems) }

// Files returns the backing file of every tree in chain order.
func (c *Chain) Files() []string {
	out := make([]string, len(c.elems))
	for i, e := range c.elems {
		out[i] = e.file
	}
	return out
}

// File returns the backing file of tree i.
func (c *Chain) File(i int) string {
	if i < 0 || i >= len(c.elems) {
		return ""
	}
	return c.elems[i].file
}

// Tree returns tree i.
func (c *Chain) Tree(i int) *Tree {
	if i < 0 || i >= len(c.elems) {
		return nil
	}
	return c.elems[i].tree
}

// Columns returns the chain schema.
func (c *Chain) Columns() []ColumnDesc {
	return append([]ColumnDesc(nil), c.schema...)
}

// Column returns the descriptor of a column of the chain itself.
func (c *Chain) Column(name string) (ColumnDesc, bool) {
	for _, d := range c.schema {
		if d.Name == name {
			return d, true
		}
	}
	return ColumnDesc{}, false
}

// HasColumn reports whether the chain itself has a column called name.
func (c *Chain) HasColumn(name string) bool {
	_, ok := c.Column(name)
	return ok
}

// SetActive enables or disables every column matching pattern, which may
// contain '*' wildcards. It returns the number of columns matched.
func (c *Chain) SetActive(pattern string, on bool) int {
	n := 0
	for _, d := range c.schema {
		if !matchColumn(pattern, d.Name) {
			continue
		}
		n++
		if on {
			delete(c.inactive, d.Name)
		} else {
			c.inactive[d.Name] = true
		}
	}
	return n
}

// IsActive reports whether column name is enabled for reading and copying.
func (c *Chain) IsActive(name string) bool {
	return !c.inactive[name]
}

// AllActive reports whether no column is disabled.
func (c *Chain) AllActive() bool {
	return len(c.inactive) == 0
}

// ActiveColumns returns the enabled columns in schema order.
func (c *Chain) ActiveColumns() []ColumnDesc {
	var out []ColumnDesc
	for _, d := range c.schema {
		if c.IsActive(d.Name) {
			out = append(out, d)
		}
	}
	return out
}

// ResetActivation enables every column.
func (c *Chain) ResetActivation() {
	c.inactive = make(map[string]bool)
}

// AddFriend attaches f under alias so its columns resolve as "alias.column".
// Attaching an alias twice is a no-op reported by a false result.
func (c *Chain) AddFriend(alias string, f *Chain) (bool, error) {
	if c.Friend(alias) != nil {
		return false, nil
	}
	if f.Entries() < c.Entries() {
		return false, errors.Newf(errors.ErrorTypeFriendResolution,
			"friend tree %s has %d entries, %s needs %d", alias, f.Entries(), c.name, c.Entries())
	}
	c.friends = append(c.friends, friend{alias: alias, chain: f})
	return true, nil
}

// Friend returns the chain attached under alias, or nil.
func (c *Chain) Friend(alias string) *Chain {
	for _, fr := range c.friends {
		if fr.alias == alias {
			return fr.chain
		}
	}
	return nil
}

// Friends returns the attached aliases in attach order.
func (c *Chain) Friends() []string {
	out := make([]string, len(c.friends))
	for i, fr := range c.friends {
		out[i] = fr.alias
	}
	return out
}

// ClearFriends detaches every friend.
func (c *Chain) ClearFriends() {
	c.friends = nil
}

// TreeOf returns the number of the tree holding the global entry.
func (c *Chain) TreeOf(entry int64) (int, bool) {
	i, _, ok := c.locate(entry)
	return i, ok
}

// locate maps a global entry to a tree number and local row.
func (c *Chain) locate(entry int64) (int, int, bool) {
	if entry < 0 || entry >= c.entries {
		return 0, 0, false
	}
	i := sort.Search(len(c.elems), func(i int) bool {
		return c.elems[i].offset+c.elems[i].tree.Entries() > entry
	})
	if i == len(c.elems) {
		return 0, 0, false
	}
	return i, int(entry - c.elems[i].offset), true
}

// Clone copies every column and row of the chain into a single tree.
func (c *Chain) Clone(name string) (*Tree, error) {
	if len(c.elems) == 1 {
		return c.elems[0].tree.Clone(name), nil
	}
	return c.copyRows(name, c.schema, allEntries(c.entries))
}

// CopyEntries copies the active columns of the listed global entries into a
// new tree. Friend columns are never copied.
func (c *Chain) CopyEntries(name string, entries []int64) (*Tree, error) {
	return c.copyRows(name, c.ActiveColumns(), entries)
}

func (c *Chain) copyRows(name string, cols []ColumnDesc, entries []int64) (*Tree, error) {
	out, err := NewTree(name, cols...)
	if err != nil {
		return nil, err
	}
	if len(c.elems) > 0 {
		out.title = c.elems[0].tree.title
	}
	slots := make([]interface{}, len(cols))
	for i, d := range cols {
		slots[i] = NewSlot(d)
	}
	for _, e := range entries {
		ti, row, ok := c.locate(e)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeData, "entry %d out of range for chain %s", e, c.name)
		}
		src := c.elems[ti].tree
		for i, d := range cols {
			src.column(d.Name).load(row, slots[i])
			out.cols[i].store(slots[i])
		}
		out.entries++
	}
	return out, nil
}

func allEntries(n int64) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(i)
	}
	return out
}

func matchColumn(pattern, name string) bool {
	if pattern == name {
		return true
	}
	ok, err := path.Match(pattern, name)
	return err == nil && ok
}

func compatible(a, b []ColumnDesc) bool {
	if sameSchema(a, b) {
		return true
	}
	if len(a) != len(b) {
		return false
	}
	byName := make(map[string]ColumnDesc, len(a))
	for _, d := range a {
		byName[d.Name] = d
	}
	for _, d := range b {
		if byName[d.Name] != d {
			return false
		}
	}
	return true
}
