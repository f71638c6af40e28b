package mapper

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/roast/pkg/errors"
	"github.com/ajitpratap0/roast/pkg/tree"
)

var friendPattern = regexp.MustCompile(`^(?:.*\W)?([A-Za-z_][A-Za-z0-9_]*)$`)

// TreeSource opens the tree called name stored in file.
type TreeSource interface {
	Tree(file, name string) (*tree.Tree, error)
}

// FriendCandidates returns the identifiers of selection that are followed
// by a '.', in order of first appearance.
func FriendCandidates(selection string) []string {
	parts := strings.Split(selection, ".")
	var out []string
	seen := make(map[string]bool)
	for _, p := range parts[:len(parts)-1] {
		m := friendPattern.FindStringSubmatch(strings.TrimSpace(p))
		if m == nil || seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		out = append(out, m[1])
	}
	return out
}

// FriendAttacher attaches the auxiliary trees a selection refers to.
type FriendAttacher struct {
	source TreeSource
	logger *zap.Logger
}

// NewFriendAttacher creates an attacher reading friend trees from source.
func NewFriendAttacher(source TreeSource, log *zap.Logger) *FriendAttacher {
	if log == nil {
		log = zap.NewNop()
	}
	return &FriendAttacher{source: source, logger: log}
}

// Attach opens every friend candidate of selection from each input file of
// c under the same name and attaches it to c. The chain itself and friends
// already attached are skipped. It returns the newly attached aliases.
func (a *FriendAttacher) Attach(c *tree.Chain, selection string) ([]string, error) {
	var attached []string
	for _, name := range FriendCandidates(selection) {
		if name == c.Name() || c.Friend(name) != nil {
			continue
		}
		fc, err := a.open(c, name)
		if err != nil {
			return attached, err
		}
		if _, err := c.AddFriend(name, fc); err != nil {
			return attached, errors.Wrapf(err, errors.ErrorTypeFriendResolution, "cannot attach friend tree %s", name).
				WithDetail("friend", name)
		}
		attached = append(attached, name)
		a.logger.Info("added friend tree", zap.String("friend", name), zap.String("tree", c.Name()))
	}
	return attached, nil
}

func (a *FriendAttacher) open(c *tree.Chain, name string) (*tree.Chain, error) {
	fc := tree.NewChain(name)
	for _, file := range c.Files() {
		t, err := a.source.Tree(file, name)
		if err != nil {
			switch {
			case errors.IsType(err, errors.ErrorTypeUnsupportedObject):
				return nil, errors.Wrapf(err, errors.ErrorTypeFriendResolution, "object %s is not a tree", name).
					WithDetail("friend", name)
			default:
				return nil, errors.Wrapf(err, errors.ErrorTypeFriendResolution, "friend tree %s not found", name).
					WithDetail("friend", name)
			}
		}
		if err := fc.Add(file, t); err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeFriendResolution, "friend tree %s is inconsistent", name).
				WithDetail("friend", name)
		}
	}
	if fc.Entries() == 0 && c.Entries() > 0 {
		return nil, errors.Newf(errors.ErrorTypeFriendResolution, "friend tree %s is empty", name).WithDetail("friend", name)
	}
	fc.SetActive("*", true)
	return fc, nil
}

// Detach removes every friend of c.
func Detach(c *tree.Chain) {
	c.ClearFriends()
}
