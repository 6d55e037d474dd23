package postprocess

import (
	"fmt"
	"path"
	"regexp"

	"github.com/malonaz/protobuild/go/protobuild/types"
)

// Pass transforms the text of a generated file.
type Pass interface {
	Name() string
	Applies(file *types.GeneratedFile) bool
	Apply(text string) string
}

// Rule is a compiled regex substitution.
type Rule struct {
	name        string
	re          *regexp.Regexp
	replacement string
	files       string
}

// CompileRule validates and compiles a rule.
func CompileRule(rule types.Rule) (*Rule, error) {
	if rule.Pattern == "" {
		return nil, fmt.Errorf("rule %q: pattern is required", rule.Name)
	}
	re, err := regexp.Compile(rule.Pattern)
	if err != nil {
		return nil, fmt.Errorf("rule %q: %w", rule.Name, err)
	}
	if rule.Files != "" {
		if _, err := path.Match(rule.Files, ""); err != nil {
			return nil, fmt.Errorf("rule %q: invalid files glob: %w", rule.Name, err)
		}
	}
	name := rule.Name
	if name == "" {
		name = rule.Pattern
	}
	return &Rule{
		name:        name,
		re:          re,
		replacement: rule.Replacement,
		files:       rule.Files,
	}, nil
}

// Name implements Pass.
func (r *Rule) Name() string { return r.name }

// Applies implements Pass. Rules only touch Rust sources, optionally filtered by glob on the base name.
func (r *Rule) Applies(file *types.GeneratedFile) bool {
	if !file.IsRust() {
		return false
	}
	if r.files == "" {
		return true
	}
	matched, _ := path.Match(r.files, path.Base(file.Name))
	return matched
}

// Apply implements Pass.
func (r *Rule) Apply(text string) string {
	return r.re.ReplaceAllString(text, r.replacement)
}
