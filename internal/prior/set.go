package prior

import (
	"fmt"
	"sort"
	"strings"
)

// lowerBounded lists the classes whose parameters are positive.
var lowerBounded = map[string]bool{
	"sdgp":   true,
	"lscale": true,
	"sigma":  true,
}

// LowerBounded reports whether parameters of class are constrained to be
// positive.
func LowerBounded(class string) bool { return lowerBounded[class] }

// Set assigns one prior per parameter class.
type Set map[string]Prior

// ParseSet parses a class -> distribution map, e.g.
// {"Intercept": "normal(0, 1)", "lscale": "inv_gamma(2, 0.5)"}.
func ParseSet(specs map[string]string) (Set, error) {
	s := make(Set, len(specs))
	for class, expr := range specs {
		p, err := Parse(expr)
		if err != nil {
			return nil, fmt.Errorf("class %s: %w", class, err)
		}
		s[class] = p
	}
	return s, nil
}

// Check fails with ErrMissingPrior when any of classes has no prior.
func (s Set) Check(classes []string) error {
	var missing []string
	for _, c := range classes {
		if _, ok := s[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingPrior, strings.Join(missing, ", "))
	}
	return nil
}

// Strings renders the set as class -> distribution text.
func (s Set) Strings() map[string]string {
	out := make(map[string]string, len(s))
	for c, p := range s {
		out[c] = p.String()
	}
	return out
}

func (s Set) Classes() []string {
	out := make([]string, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
