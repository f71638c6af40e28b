package mapper

import (
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/roast/pkg/tree"
)

// ApplyBranchFilter sets the column activation of c from a colon separated
// filter. A bare token enables matching columns and "^token" disables them;
// tokens may hold '*' wildcards. The first token sets the baseline: a
// disabling token starts from everything enabled, an enabling one from
// everything disabled. An empty filter changes nothing.
func ApplyBranchFilter(c *tree.Chain, filter string, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	first := true
	for _, tok := range strings.Split(filter, ":") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		disable := strings.HasPrefix(tok, "^")
		pattern := strings.TrimSpace(strings.TrimPrefix(tok, "^"))
		if first {
			first = false
			if disable {
				log.Debug("enabling all branches")
				c.SetActive("*", true)
			} else {
				log.Debug("disabling all branches")
				c.SetActive("*", false)
			}
		}
		n := c.SetActive(pattern, !disable)
		if disable {
			log.Debug("disabling branch", zap.String("pattern", pattern), zap.Int("matched", n))
		} else {
			log.Debug("enabling branch", zap.String("pattern", pattern), zap.Int("matched", n))
		}
		if n == 0 {
			log.Warn("branch pattern matches no column", zap.String("pattern", pattern), zap.String("tree", c.Name()))
		}
	}
}
