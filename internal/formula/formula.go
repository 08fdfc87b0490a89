// Package formula parses regression formulas of the form
//
//	f0 ~ context + sex + gp(time, by = context)
//	cog ~ sibilant + gp(lon, lat, by = sibilant, scale = FALSE)
//	f0 ~ 0 + gp(time, by = sex:location)
//
// Plain terms are fixed effects (treatment-coded when categorical, a slope
// when numeric). gp() terms are squared-exponential Gaussian process smooths
// over one or two continuous predictors, optionally one independent process
// per level of a factor or of a composite key of two factors.
package formula

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrSyntax indicates a malformed formula.
var ErrSyntax = errors.New("formula: syntax error")

// Parameter classes referenced by formulas.
const (
	ClassIntercept = "Intercept"
	ClassB         = "b"
	ClassSDGP      = "sdgp"
	ClassLScale    = "lscale"
	ClassSigma     = "sigma"
)

type Formula struct {
	Response  string
	Intercept bool
	Fixed     []string
	GPs       []GPTerm
}

type GPTerm struct {
	Vars []string
	// By holds zero, one or two factor names. Two names form a composite
	// cluster key.
	By []string
	// Scale divides inputs by the maximum training distance.
	Scale bool
}

// Label names the term the way parameter names refer to it, e.g. "gptime".
func (g GPTerm) Label() string {
	return "gp" + strings.Join(g.Vars, "")
}

// ByName is the grouping column name, "" when the term is not partitioned.
func (g GPTerm) ByName() string {
	return strings.Join(g.By, ":")
}

func (g GPTerm) String() string {
	args := strings.Join(g.Vars, ", ")
	if len(g.By) > 0 {
		args += ", by = " + g.ByName()
	}
	if !g.Scale {
		args += ", scale = FALSE"
	}
	return "gp(" + args + ")"
}

// Parse parses s.
func Parse(s string) (*Formula, error) {
	lhs, rhs, ok := strings.Cut(s, "~")
	if !ok {
		return nil, fmt.Errorf("%w: missing '~' in %q", ErrSyntax, s)
	}
	f := &Formula{Response: strings.TrimSpace(lhs), Intercept: true}
	if !isIdent(f.Response) {
		return nil, fmt.Errorf("%w: invalid response %q", ErrSyntax, f.Response)
	}

	terms, err := splitTerms(rhs)
	if err != nil {
		return nil, err
	}
	if len(terms) == 0 {
		return nil, fmt.Errorf("%w: empty right-hand side", ErrSyntax)
	}

	seen := make(map[string]bool)
	for _, t := range terms {
		switch {
		case t.text == "1" && !t.negated:
			f.Intercept = true
		case t.text == "0" && !t.negated, t.text == "1" && t.negated:
			f.Intercept = false
		case t.negated:
			return nil, fmt.Errorf("%w: only '- 1' may be subtracted, got '- %s'", ErrSyntax, t.text)
		case strings.HasPrefix(t.text, "gp("):
			g, err := parseGP(t.text)
			if err != nil {
				return nil, err
			}
			f.GPs = append(f.GPs, g)
		case isIdent(t.text):
			if seen[t.text] {
				continue
			}
			seen[t.text] = true
			f.Fixed = append(f.Fixed, t.text)
		default:
			return nil, fmt.Errorf("%w: unsupported term %q", ErrSyntax, t.text)
		}
	}
	return f, nil
}

// Classes lists the parameter classes the formula needs priors for.
func (f *Formula) Classes() []string {
	var out []string
	if f.Intercept {
		out = append(out, ClassIntercept)
	}
	if len(f.Fixed) > 0 {
		out = append(out, ClassB)
	}
	if len(f.GPs) > 0 {
		out = append(out, ClassSDGP, ClassLScale)
	}
	return append(out, ClassSigma)
}

// Columns lists every data column the formula reads, response first.
func (f *Formula) Columns() []string {
	seen := map[string]bool{}
	var out []string
	add := func(c string) {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	add(f.Response)
	for _, c := range f.Fixed {
		add(c)
	}
	for _, g := range f.GPs {
		for _, v := range g.Vars {
			add(v)
		}
		for _, b := range g.By {
			add(b)
		}
	}
	return out
}

func (f *Formula) String() string {
	var parts []string
	if !f.Intercept {
		parts = append(parts, "0")
	}
	parts = append(parts, f.Fixed...)
	for _, g := range f.GPs {
		parts = append(parts, g.String())
	}
	if len(parts) == 0 {
		parts = []string{"1"}
	}
	return f.Response + " ~ " + strings.Join(parts, " + ")
}

type term struct {
	text    string
	negated bool
}

// splitTerms splits on top-level '+' and '-'.
func splitTerms(rhs string) ([]term, error) {
	var out []term
	depth, start := 0, 0
	negated := false
	emit := func(end int) error {
		text := strings.TrimSpace(rhs[start:end])
		if text == "" {
			return fmt.Errorf("%w: empty term in %q", ErrSyntax, rhs)
		}
		out = append(out, term{text: text, negated: negated})
		return nil
	}
	for i, r := range rhs {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("%w: unbalanced ')' in %q", ErrSyntax, rhs)
			}
		case '+', '-':
			if depth > 0 {
				continue
			}
			// a sign before the first term, as in "~ -1 + x"
			if len(out) == 0 && strings.TrimSpace(rhs[start:i]) == "" {
				negated = r == '-'
				start = i + 1
				continue
			}
			if err := emit(i); err != nil {
				return nil, err
			}
			negated = r == '-'
			start = i + 1
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("%w: unbalanced '(' in %q", ErrSyntax, rhs)
	}
	if strings.TrimSpace(rhs) == "" {
		return nil, nil
	}
	if err := emit(len(rhs)); err != nil {
		return nil, err
	}
	return out, nil
}

func parseGP(text string) (GPTerm, error) {
	g := GPTerm{Scale: true}
	if !strings.HasSuffix(text, ")") {
		return g, fmt.Errorf("%w: malformed gp term %q", ErrSyntax, text)
	}
	inner := text[len("gp(") : len(text)-1]
	for _, raw := range strings.Split(inner, ",") {
		arg := strings.TrimSpace(raw)
		if arg == "" {
			return g, fmt.Errorf("%w: empty argument in %q", ErrSyntax, text)
		}
		key, val, isOpt := strings.Cut(arg, "=")
		if !isOpt {
			if !isIdent(arg) {
				return g, fmt.Errorf("%w: invalid gp variable %q", ErrSyntax, arg)
			}
			if len(g.By) > 0 {
				return g, fmt.Errorf("%w: gp variables must precede options in %q", ErrSyntax, text)
			}
			g.Vars = append(g.Vars, arg)
			continue
		}
		key, val = strings.TrimSpace(key), strings.TrimSpace(val)
		switch key {
		case "by":
			parts := strings.Split(val, ":")
			if len(parts) > 2 {
				return g, fmt.Errorf("%w: by accepts at most two factors, got %q", ErrSyntax, val)
			}
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if !isIdent(p) {
					return g, fmt.Errorf("%w: invalid by factor %q", ErrSyntax, p)
				}
				g.By = append(g.By, p)
			}
		case "scale":
			switch strings.ToUpper(val) {
			case "TRUE", "T":
				g.Scale = true
			case "FALSE", "F":
				g.Scale = false
			default:
				return g, fmt.Errorf("%w: scale must be TRUE or FALSE, got %q", ErrSyntax, val)
			}
		default:
			return g, fmt.Errorf("%w: unknown gp option %q", ErrSyntax, key)
		}
	}
	if len(g.Vars) == 0 || len(g.Vars) > 2 {
		return g, fmt.Errorf("%w: gp needs one or two variables, got %d", ErrSyntax, len(g.Vars))
	}
	return g, nil
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || r == '.' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}
