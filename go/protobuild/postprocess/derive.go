package postprocess

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/malonaz/protobuild/go/protobuild/types"
)

// A derive attribute, followed by any other attributes, followed by the item it is attached to.
var deriveRegexp = regexp.MustCompile(
	`(?m)^([ \t]*)#\[derive\(([^)]*)\)\]([ \t]*\n(?:[ \t]*#\[[^\n]*\][ \t]*\n)*[ \t]*pub (struct|enum) ([A-Za-z_][A-Za-z0-9_]*))`,
)

// Derive adds derive macros to generated items.
type Derive struct {
	derives []string
	target  types.DeriveTarget
	match   *regexp.Regexp
}

// CompileDerive validates and compiles a derive.
func CompileDerive(derive types.Derive) (*Derive, error) {
	if len(derive.Derives) == 0 {
		return nil, fmt.Errorf("derive: at least one derive is required")
	}
	for _, d := range derive.Derives {
		if strings.TrimSpace(d) == "" || strings.ContainsAny(d, "(),") {
			return nil, fmt.Errorf("derive: invalid derive %q", d)
		}
	}
	target := derive.Target
	switch target {
	case "":
		target = types.DeriveTargetAll
	case types.DeriveTargetAll, types.DeriveTargetMessages, types.DeriveTargetEnums:
	default:
		return nil, fmt.Errorf("derive: unknown target %q", target)
	}
	d := &Derive{target: target}
	for _, name := range derive.Derives {
		d.derives = append(d.derives, strings.TrimSpace(name))
	}
	if derive.Match != "" {
		re, err := regexp.Compile(derive.Match)
		if err != nil {
			return nil, fmt.Errorf("derive: %w", err)
		}
		d.match = re
	}
	return d, nil
}

// Name implements Pass.
func (d *Derive) Name() string {
	return "derive(" + strings.Join(d.derives, ", ") + ")"
}

// Applies implements Pass.
func (d *Derive) Applies(file *types.GeneratedFile) bool {
	return file.IsRust()
}

// Apply implements Pass.
func (d *Derive) Apply(text string) string {
	return deriveRegexp.ReplaceAllStringFunc(text, func(match string) string {
		submatches := deriveRegexp.FindStringSubmatch(match)
		indent, list, rest, kind, name := submatches[1], submatches[2], submatches[3], submatches[4], submatches[5]
		if !d.targets(kind, name) {
			return match
		}

		existing := map[string]struct{}{}
		var entries []string
		for _, entry := range strings.Split(list, ",") {
			entry = strings.TrimSpace(entry)
			if entry == "" {
				continue
			}
			existing[entry] = struct{}{}
			entries = append(entries, entry)
		}
		added := false
		for _, derive := range d.derives {
			if _, ok := existing[derive]; ok {
				continue
			}
			existing[derive] = struct{}{}
			entries = append(entries, derive)
			added = true
		}
		if !added {
			return match
		}
		return indent + "#[derive(" + strings.Join(entries, ", ") + ")]" + rest
	})
}

func (d *Derive) targets(kind, name string) bool {
	switch d.target {
	case types.DeriveTargetMessages:
		if kind != "struct" {
			return false
		}
	case types.DeriveTargetEnums:
		if kind != "enum" {
			return false
		}
	}
	return d.match == nil || d.match.MatchString(name)
}
