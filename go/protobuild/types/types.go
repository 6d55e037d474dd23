package types

import (
	"path/filepath"
	"slices"
	"strings"
)

// Backend identifies the code generator producing message code.
type Backend string

const (
	BackendUnspecified Backend = ""
	// BackendNative uses the rust-protobuf generator (`protobuf-codec` feature).
	BackendNative Backend = "protobuf"
	// BackendProst uses the prost generator (`prost-codec` feature).
	BackendProst Backend = "prost"
)

// Compiler identifies how descriptors are resolved from proto sources.
type Compiler string

const (
	CompilerBuiltin Compiler = "builtin"
	CompilerProtoc  Compiler = "protoc"
)

// Kind classifies a generated file.
type Kind int

const (
	KindCodec Kind = iota
	KindGRPC
	KindWrapper
	KindModule
	KindBuild
	KindDescriptorSet
)

func (k Kind) String() string {
	switch k {
	case KindCodec:
		return "codec"
	case KindGRPC:
		return "grpc"
	case KindWrapper:
		return "wrapper"
	case KindModule:
		return "module"
	case KindBuild:
		return "build"
	case KindDescriptorSet:
		return "descriptor_set"
	default:
		return "unknown"
	}
}

// GeneratedFile is a unit of generated output.
type GeneratedFile struct {
	// Relative to the output directory, slash separated.
	Name string
	// The content to output.
	Content []byte
	Kind    Kind
	// The proto files (include relative) this file was generated from.
	Sources []string
}

// IsRust returns true if this file holds Rust source.
func (f *GeneratedFile) IsRust() bool {
	return strings.HasSuffix(f.Name, ".rs")
}

// Stem returns the file name without directory and extension.
func (f *GeneratedFile) Stem() string {
	base := filepath.Base(filepath.FromSlash(f.Name))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// SortFiles sorts files by name, in place.
func SortFiles(files []*GeneratedFile) {
	slices.SortFunc(files, func(a, b *GeneratedFile) int { return strings.Compare(a.Name, b.Name) })
}

// Plugin configures an external protoc plugin.
type Plugin struct {
	// Path or name (looked up in PATH) of the plugin binary.
	Path string `yaml:"path" json:"path"`
	// Parameter passed to the plugin through CodeGeneratorRequest.parameter.
	Parameter string `yaml:"parameter" json:"parameter"`
}

// Rule is a regex substitution applied to generated Rust sources.
type Rule struct {
	Name        string `yaml:"name" json:"name"`
	Pattern     string `yaml:"pattern" json:"pattern"`
	Replacement string `yaml:"replacement" json:"replacement"`
	// Optional glob, matched against generated file names.
	Files string `yaml:"files" json:"files"`
}

// DeriveTarget selects which items a derive applies to.
type DeriveTarget string

const (
	DeriveTargetAll      DeriveTarget = "all"
	DeriveTargetMessages DeriveTarget = "messages"
	DeriveTargetEnums    DeriveTarget = "enums"
)

// Derive injects derive macros onto generated items.
type Derive struct {
	Derives []string     `yaml:"derives" json:"derives"`
	Target  DeriveTarget `yaml:"target" json:"target"`
	// Optional regex matched against the Rust type name.
	Match string `yaml:"match" json:"match"`
}

// Request describes a single generation run. It is not modified once built.
type Request struct {
	Files    []string
	Includes []string
	Backend  Backend
	GRPC     bool
	OutDir   string
	Compiler Compiler
	Protoc   string
	// Directory holding bundled protoc binaries, see protoc.BundledName.
	ProtocBundleDir string

	CodecPlugin Plugin
	GRPCPlugin  Plugin

	Rules   []Rule
	Derives []Derive

	// Accessor wrappers, prost only.
	Wrapper        bool
	WrapperOptions []string

	// Optional outputs.
	DescriptorSetOut string
	BuildFile        string
	BuildRuleName    string
}
