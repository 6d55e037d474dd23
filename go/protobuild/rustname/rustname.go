// Package rustname reproduces the naming conventions of the Rust protobuf generators.
package rustname

import (
	"path"
	"strings"
	"unicode"

	"github.com/huandu/xstrings"
)

var keywords = map[string]struct{}{
	"as": {}, "break": {}, "const": {}, "continue": {}, "else": {}, "enum": {},
	"false": {}, "fn": {}, "for": {}, "if": {}, "impl": {}, "in": {}, "let": {}, "loop": {},
	"match": {}, "mod": {}, "move": {}, "mut": {}, "pub": {}, "ref": {}, "return": {}, "static": {},
	"struct": {}, "trait": {}, "true": {}, "type": {}, "unsafe": {}, "use": {}, "where": {},
	"while": {}, "async": {}, "await": {}, "dyn": {}, "abstract": {}, "become": {}, "box": {},
	"do": {}, "final": {}, "macro": {}, "override": {}, "priv": {}, "typeof": {}, "unsized": {},
	"virtual": {}, "yield": {}, "try": {}, "gen": {},
}

// Identifiers that cannot be raw identifiers, suffixed with `_` instead.
var reserved = map[string]struct{}{
	"_": {}, "self": {}, "Self": {}, "super": {}, "crate": {}, "extern": {},
}

// Snake converts a proto name to snake_case.
func Snake(name string) string {
	return xstrings.ToSnakeCase(name)
}

// UpperCamel converts a proto name to UpperCamelCase, lowering acronyms (HTTPRequest => HttpRequest).
func UpperCamel(name string) string {
	return xstrings.ToPascalCase(xstrings.ToSnakeCase(name))
}

// ScreamingSnake converts a proto name to SCREAMING_SNAKE_CASE.
func ScreamingSnake(name string) string {
	return strings.ToUpper(xstrings.ToSnakeCase(name))
}

// Escape escapes an identifier that collides with a keyword.
func Escape(ident string) string {
	if _, ok := reserved[ident]; ok {
		return ident + "_"
	}
	if _, ok := keywords[ident]; ok {
		return "r#" + ident
	}
	return ident
}

// FieldIdent returns the struct field identifier prost generates for a proto field.
func FieldIdent(name string) string {
	return Escape(Snake(name))
}

// Unescape returns the accessor-friendly name of an identifier: `r#type` becomes `field_type`.
func Unescape(ident string) string {
	if rest, ok := strings.CutPrefix(ident, "r#"); ok {
		return "field_" + rest
	}
	return ident
}

// EnumVariant returns the variant name of an enum value, stripping the enum name prefix as prost does.
func EnumVariant(enumName, valueName string) string {
	prefix := ScreamingSnake(enumName) + "_"
	if stripped, ok := strings.CutPrefix(valueName, prefix); ok && stripped != "" && !unicode.IsDigit(rune(stripped[0])) {
		valueName = stripped
	}
	return UpperCamel(strings.ToLower(valueName))
}

// ModuleFromFile returns the module name of the file generated for a proto file by the native codec.
func ModuleFromFile(protoFile string) string {
	stem := strings.TrimSuffix(path.Base(protoFile), ".proto")
	return sanitize(stem)
}

// PackageFile returns the name of the file prost generates for a proto package.
func PackageFile(pkg string) string {
	if pkg == "" {
		return "_.rs"
	}
	return pkg + ".rs"
}

// Module converts a generated file stem into a module name.
func Module(stem string) string {
	return strings.ReplaceAll(stem, "-", "_")
}

func sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r == '_' || r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

// TypePath returns the path of the Rust type generated for the proto type fullName (without leading dot),
// as seen from the module of package fromPkg.
func TypePath(fromPkg, fullName, typePkg string) string {
	var segments []string
	if fromPkg != "" {
		for range strings.Split(fromPkg, ".") {
			segments = append(segments, "super")
		}
	}
	if typePkg != "" {
		for _, segment := range strings.Split(typePkg, ".") {
			segments = append(segments, Escape(Snake(segment)))
		}
	}

	local := strings.TrimPrefix(fullName, typePkg)
	local = strings.TrimPrefix(local, ".")
	names := strings.Split(local, ".")
	for i, name := range names {
		if i == len(names)-1 {
			segments = append(segments, UpperCamel(name))
		} else {
			segments = append(segments, Escape(Snake(name)))
		}
	}

	// Strip the common prefix: `super::a::b::X` from package `a.b` is `X`.
	if fromPkg != "" {
		from := strings.Split(fromPkg, ".")
		to := []string{}
		if typePkg != "" {
			to = strings.Split(typePkg, ".")
		}
		common := 0
		for common < len(from) && common < len(to) && from[common] == to[common] {
			common++
		}
		segments = append(segments[:len(from)-common], segments[len(from)+common:]...)
	}
	return strings.Join(segments, "::")
}
