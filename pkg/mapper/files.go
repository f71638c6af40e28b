package mapper

import (
	"github.com/ajitpratap0/roast/pkg/tree"
)

// Files keeps container files open for the duration of one operation and
// serves their trees. Files added with Add are borrowed and not closed.
type Files struct {
	open  map[string]*tree.File
	owned []*tree.File
}

// NewFiles creates an empty file set.
func NewFiles() *Files {
	return &Files{open: make(map[string]*tree.File)}
}

// Add registers an already open file under path.
func (fs *Files) Add(path string, f *tree.File) {
	fs.open[path] = f
}

// Open returns the file at path, opening it on first use.
func (fs *Files) Open(path string) (*tree.File, error) {
	if f, ok := fs.open[path]; ok {
		return f, nil
	}
	f, err := tree.Open(path)
	if err != nil {
		return nil, err
	}
	fs.open[path] = f
	fs.owned = append(fs.owned, f)
	return f, nil
}

// Tree implements TreeSource.
func (fs *Files) Tree(file, name string) (*tree.Tree, error) {
	f, err := fs.Open(file)
	if err != nil {
		return nil, err
	}
	return f.Tree(name)
}

// Chain builds a chain over the tree called name in every file of paths.
func (fs *Files) Chain(name string, paths []string) (*tree.Chain, error) {
	c := tree.NewChain(name)
	for _, p := range paths {
		t, err := fs.Tree(p, name)
		if err != nil {
			return nil, err
		}
		if err := c.Add(p, t); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Close closes the files opened by Open.
func (fs *Files) Close() error {
	var first error
	for _, f := range fs.owned {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	fs.owned = nil
	fs.open = make(map[string]*tree.File)
	return first
}
