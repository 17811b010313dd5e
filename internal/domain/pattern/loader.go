package pattern

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/turtacn/ProtocolIQ/pkg/errors"
)

// fileSpec is the on-disk layout of a pattern override file.
type fileSpec struct {
	// Replace discards the built-in catalogue instead of merging over it.
	Replace     bool                `yaml:"replace"`
	Contexts    []ContextDefinition `yaml:"contexts"`
	Rules       []Rule              `yaml:"rules"`
	RedFlags    []Rule              `yaml:"red_flags"`
	Feasibility []Rule              `yaml:"feasibility"`
	Lexicons    []Lexicon           `yaml:"lexicons"`
}

// LoadFile reads a YAML override file and merges it over Default. Contexts and
// lexicons replace built-ins of the same name; rules replace built-ins with the
// same phrase and category; everything else is appended. Any read, decode or
// validation failure is returned and must abort startup.
func LoadFile(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodePatternFileUnreadable, "failed to read pattern file").WithDetail(path)
	}
	return Parse(data)
}

// Parse decodes YAML bytes and merges them over Default.
func Parse(data []byte) (*Library, error) {
	var spec fileSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, errors.Wrap(err, errors.CodePatternLibraryInvalid, "failed to decode pattern file")
	}

	if spec.Replace {
		return newLibrary(spec.Contexts, spec.Rules, spec.RedFlags, spec.Feasibility, spec.Lexicons)
	}
	return newLibrary(
		mergeContexts(defaultContexts(), spec.Contexts),
		mergeRules(defaultRules(), spec.Rules),
		mergeRules(defaultRedFlags(), spec.RedFlags),
		mergeRules(defaultFeasibility(), spec.Feasibility),
		mergeLexicons(defaultLexicons(), spec.Lexicons),
	)
}

func mergeContexts(base, override []ContextDefinition) []ContextDefinition {
	idx := make(map[string]int, len(base))
	for i, c := range base {
		idx[c.Name] = i
	}
	for _, c := range override {
		if i, ok := idx[c.Name]; ok {
			base[i] = c
			continue
		}
		idx[c.Name] = len(base)
		base = append(base, c)
	}
	return base
}

func mergeRules(base, override []Rule) []Rule {
	key := func(r Rule) string { return NormalizePhrase(r.Phrase) + "|" + string(r.Category) }
	idx := make(map[string]int, len(base))
	for i, r := range base {
		idx[key(r)] = i
	}
	for _, r := range override {
		if i, ok := idx[key(r)]; ok {
			base[i] = r
			continue
		}
		idx[key(r)] = len(base)
		base = append(base, r)
	}
	return base
}

func mergeLexicons(base, override []Lexicon) []Lexicon {
	idx := make(map[string]int, len(base))
	for i, l := range base {
		idx[l.Name] = i
	}
	for _, l := range override {
		if i, ok := idx[l.Name]; ok {
			base[i] = l
			continue
		}
		idx[l.Name] = len(base)
		base = append(base, l)
	}
	return base
}
