package mapper

import (
	"github.com/ajitpratap0/roast/pkg/binding"
	"github.com/ajitpratap0/roast/pkg/tree"
)

// TreeMapName is the name the projection selector is registered under.
const TreeMapName = "treemap"

func init() {
	_ = Register(TreeMapName, NewTreeMapSelector)
}

// NewTreeMapSelector creates the projection selector. Its option is a
// branch filter; every active column is read and written unchanged.
func NewTreeMapSelector() Selector {
	var filter string
	tm := NewTreeMapper(func(tm *TreeMapper, r *tree.Reader) error {
		ApplyBranchFilter(r.Chain(), filter, tm.Logger())
		for _, d := range r.Chain().ActiveColumns() {
			c := binding.NewColumn(d)
			tm.Inputs.Add(c, false)
			tm.Outputs.Add(c, 0)
		}
		return nil
	}, nil)
	return &treeMap{TreeMapper: tm, filter: &filter}
}

type treeMap struct {
	*TreeMapper
	filter *string
}

func (t *treeMap) Begin(env *Env, r *tree.Reader, option string) error {
	*t.filter = option
	return t.TreeMapper.Begin(env, r, option)
}
