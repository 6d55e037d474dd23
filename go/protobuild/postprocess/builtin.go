package postprocess

import (
	"slices"

	"github.com/malonaz/protobuild/go/protobuild/types"
)

// Reads proto3 enums the old way, so unknown values are rejected instead of stored.
var readUnknownEnumFieldsRule = types.Rule{
	Name:    "replace-read-unknown-fields",
	Pattern: `::protobuf::rt::read_proto3_enum_with_unknown_fields_into\(([^,]+), ([^,]+), &mut ([^,]+), [^\)]+\)\?`,
	Replacement: "if ${1} == ::protobuf::wire_format::WireTypeVarint {" +
		"${3} = ${2}.read_enum()?;" +
		"} else {" +
		"return ::std::result::Result::Err(::protobuf::rt::unexpected_wire_type(wire_type));" +
		"}",
}

var backendToBuiltinRules = map[types.Backend][]types.Rule{
	types.BackendNative: {readUnknownEnumFieldsRule},
}

// BuiltinRules returns the rules always applied to a backend's output.
func BuiltinRules(backend types.Backend) []types.Rule {
	return slices.Clone(backendToBuiltinRules[backend])
}
