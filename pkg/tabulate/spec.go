package tabulate

import (
	"regexp"
	"strings"

	"github.com/ajitpratap0/roast/pkg/errors"
)

// Format is a tabulation output format.
type Format string

const (
	FormatTSV  Format = "tsv"
	FormatJSON Format = "json"
	FormatAvro Format = "avro"
)

var specPattern = regexp.MustCompile(`^(([^>]|>[^>])*)\s*(>>\s*(\w+)\s*(\((.*)\))?)?$`)

// Spec is a parsed expression specification:
//
//	expr0:expr1:... [>> FORMAT[(label0:label1:...)]]
type Spec struct {
	Expressions []string
	Format      Format
	// Labels has one entry per expression when HasLabels is set. Missing
	// labels are filled with the expression text.
	Labels    []string
	HasLabels bool
}

// ParseSpec parses an expression specification.
func ParseSpec(s string) (Spec, error) {
	m := specPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Spec{}, errors.Newf(errors.ErrorTypeSpecSyntax, "invalid tabulation expression %q", s)
	}
	var spec Spec
	for _, e := range strings.Split(m[1], ":") {
		if e = strings.TrimSpace(e); e != "" {
			spec.Expressions = append(spec.Expressions, e)
		}
	}
	if len(spec.Expressions) == 0 {
		return Spec{}, errors.Newf(errors.ErrorTypeSpecSyntax, "no expressions in %q", s)
	}

	spec.Format = FormatTSV
	if m[4] != "" {
		spec.Format = Format(strings.ToLower(m[4]))
	}
	switch spec.Format {
	case FormatTSV, FormatJSON, FormatAvro:
	default:
		return Spec{}, errors.Newf(errors.ErrorTypeSpecSyntax, "unknown tabulation format %q", m[4])
	}

	if m[5] != "" {
		spec.HasLabels = true
		if strings.TrimSpace(m[6]) != "" {
			for _, l := range strings.Split(m[6], ":") {
				spec.Labels = append(spec.Labels, strings.TrimSpace(l))
			}
		}
		if len(spec.Labels) > len(spec.Expressions) {
			return Spec{}, errors.Newf(errors.ErrorTypeSpecSyntax, "%d labels for %d expressions in %q",
				len(spec.Labels), len(spec.Expressions), s)
		}
		for i := len(spec.Labels); i < len(spec.Expressions); i++ {
			label := spec.Expressions[i]
			if spec.Format == FormatJSON {
				label = strings.ReplaceAll(label, ".", "$")
			}
			spec.Labels = append(spec.Labels, label)
		}
	}
	return spec, nil
}
