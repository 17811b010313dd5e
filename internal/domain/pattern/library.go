package pattern

import (
	"sort"
	"strings"

	"github.com/turtacn/ProtocolIQ/pkg/errors"
)

// Library is the immutable catalogue. Accessors return copies of slices so
// callers cannot mutate shared state.
type Library struct {
	contexts    map[string]ContextDefinition
	names       []string
	rules       []Rule
	redFlags    []Rule
	feasibility []Rule
	lexicons    []Lexicon
}

func newLibrary(contexts []ContextDefinition, rules, redFlags, feasibility []Rule, lexicons []Lexicon) (*Library, error) {
	lib := &Library{
		contexts:    make(map[string]ContextDefinition, len(contexts)),
		rules:       normalizeRules(rules),
		redFlags:    normalizeRules(redFlags),
		feasibility: normalizeRules(feasibility),
		lexicons:    lexicons,
	}
	for _, c := range contexts {
		c.Name = strings.ToLower(strings.TrimSpace(c.Name))
		if _, dup := lib.contexts[c.Name]; dup {
			return nil, errors.Newf(errors.CodePatternLibraryInvalid, "duplicate context %q", c.Name)
		}
		lib.contexts[c.Name] = c
		lib.names = append(lib.names, c.Name)
	}
	sort.Strings(lib.names)
	if err := lib.Validate(); err != nil {
		return nil, err
	}
	return lib, nil
}

func normalizeRules(in []Rule) []Rule {
	out := make([]Rule, len(in))
	for i, r := range in {
		r.Phrase = NormalizePhrase(r.Phrase)
		out[i] = r
	}
	return out
}

// NormalizePhrase lowercases and collapses whitespace.
func NormalizePhrase(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Validate checks structural integrity. A library that fails validation must
// not be served.
func (l *Library) Validate() error {
	if len(l.contexts) == 0 {
		return errors.New(errors.CodePatternLibraryInvalid, "library defines no contexts")
	}
	known := make(map[string]bool, len(l.contexts))
	for name, c := range l.contexts {
		if name == "" {
			return errors.New(errors.CodePatternLibraryInvalid, "context with empty name")
		}
		for _, s := range c.Seeds {
			if strings.TrimSpace(s.Phrase) == "" {
				return errors.Newf(errors.CodePatternLibraryInvalid, "context %q has an empty seed phrase", name)
			}
			if s.Weight < 0 || s.Weight > 1 {
				return errors.Newf(errors.CodePatternLibraryInvalid, "context %q seed %q weight outside [0,1]", name, s.Phrase)
			}
		}
		known[name] = true
	}
	for _, set := range [][]Rule{l.rules, l.redFlags, l.feasibility} {
		for _, r := range set {
			if err := r.validate(known); err != nil {
				return err
			}
		}
	}
	for _, lx := range l.lexicons {
		for _, c := range lx.Contexts {
			if !known[c] {
				return errors.Newf(errors.CodePatternLibraryInvalid, "lexicon %q references unknown context %q", lx.Name, c)
			}
		}
	}
	return nil
}

// ContextNames returns context names sorted lexicographically.
func (l *Library) ContextNames() []string {
	return append([]string(nil), l.names...)
}

// Context returns the definition for name.
func (l *Library) Context(name string) (ContextDefinition, bool) {
	c, ok := l.contexts[name]
	return c, ok
}

// RulesFor returns the rules applicable to context, in declaration order.
func (l *Library) RulesFor(context string) []Rule {
	var out []Rule
	for _, r := range l.rules {
		if r.AppliesTo(context) {
			out = append(out, r)
		}
	}
	return out
}

// RedFlags returns the context-independent regulatory red-flag rules.
func (l *Library) RedFlags() []Rule {
	return append([]Rule(nil), l.redFlags...)
}

// FeasibilityFlags returns feasibility rules applicable to context.
func (l *Library) FeasibilityFlags(context string) []Rule {
	var out []Rule
	for _, r := range l.feasibility {
		if r.AppliesTo(context) {
			out = append(out, r)
		}
	}
	return out
}

// Lexicons returns the domain lexicons.
func (l *Library) Lexicons() []Lexicon {
	return append([]Lexicon(nil), l.lexicons...)
}

// Stats summarizes catalogue size, for startup logging.
func (l *Library) Stats() map[string]int {
	seeds := 0
	for _, c := range l.contexts {
		seeds += len(c.Seeds)
	}
	return map[string]int{
		"contexts":    len(l.contexts),
		"seeds":       seeds,
		"rules":       len(l.rules),
		"red_flags":   len(l.redFlags),
		"feasibility": len(l.feasibility),
		"lexicons":    len(l.lexicons),
	}
}
