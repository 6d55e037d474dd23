package postprocess

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/malonaz/protobuild/go/protobuild/types"
)

func genIdent() gopter.Gen {
	return gen.Identifier().Map(func(s string) string { return strings.ToUpper(s[:1]) + s[1:] })
}

func genSource() gopter.Gen {
	return gen.SliceOfN(5, gen.Struct(reflect.TypeOf(item{}), map[string]gopter.Gen{
		"Name":    genIdent(),
		"Enum":    gen.Bool(),
		"Derives": gen.SliceOfN(3, genIdent()),
	})).Map(func(items []item) string {
		var b strings.Builder
		for _, it := range items {
			kind := "struct"
			if it.Enum {
				kind = "enum"
			}
			fmt.Fprintf(&b, "#[derive(%s)]\n#[allow(dead_code)]\npub %s %s {\n}\n", strings.Join(it.Derives, ", "), kind, it.Name)
		}
		return b.String()
	})
}

type item struct {
	Name    string
	Enum    bool
	Derives []string
}

// Applying a derive twice must yield the same output as applying it once.
func TestDeriveIdempotenceProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	targets := []types.DeriveTarget{types.DeriveTargetAll, types.DeriveTargetMessages, types.DeriveTargetEnums}
	properties.Property("derive injection is idempotent", prop.ForAll(
		func(source string, derives []string, targetIndex int) bool {
			derive, err := CompileDerive(types.Derive{Derives: derives, Target: targets[targetIndex]})
			if err != nil {
				return false
			}
			once := derive.Apply(source)
			return derive.Apply(once) == once
		},
		genSource(),
		gen.SliceOfN(2, genIdent()),
		gen.IntRange(0, len(targets)-1),
	))

	properties.Property("every targeted item carries the derive", prop.ForAll(
		func(source string, derive string) bool {
			compiled, err := CompileDerive(types.Derive{Derives: []string{derive}})
			if err != nil {
				return false
			}
			out := compiled.Apply(source)
			for _, line := range strings.Split(out, "\n") {
				if strings.HasPrefix(line, "#[derive(") && !strings.Contains(line, derive) {
					return false
				}
			}
			return true
		},
		genSource(),
		genIdent(),
	))

	properties.TestingRun(t)
}

// The builtin native rule rewrites every enum read and never matches its own output.
func TestBuiltinRuleIdempotenceProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	rule, err := CompileRule(readUnknownEnumFieldsRule)
	if err != nil {
		t.Fatal(err)
	}
	properties.Property("enum read rewrite is idempotent", prop.ForAll(
		func(fields []string) bool {
			var b strings.Builder
			for i, field := range fields {
				fmt.Fprintf(&b, "%d => {\n::protobuf::rt::read_proto3_enum_with_unknown_fields_into(wire_type, is, &mut self.%s, %d, &mut self.unknown_fields)?\n},\n", i+1, field, i+1)
			}
			once := rule.Apply(b.String())
			return rule.Apply(once) == once &&
				!strings.Contains(once, "read_proto3_enum_with_unknown_fields_into") &&
				strings.Count(once, "read_enum()?") == len(fields)
		},
		gen.SliceOf(gen.Identifier()),
	))

	properties.TestingRun(t)
}
