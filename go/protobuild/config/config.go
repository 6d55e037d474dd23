// Package config builds generation requests from configuration files and command line options.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/malonaz/protobuild/go/jsonnet"
	"github.com/malonaz/protobuild/go/protobuild"
	"github.com/malonaz/protobuild/go/protobuild/types"
)

const (
	// EnvOutDir is the build script output directory set by cargo.
	EnvOutDir = "OUT_DIR"
	// DefaultOutSubdir is appended to $OUT_DIR when no output directory is configured.
	DefaultOutSubdir = "protos"
)

const (
	FeatureProtobufCodec     = "protobuf-codec"
	FeatureProstCodec        = "prost-codec"
	FeatureGRPCProtobufCodec = "grpcio-protobuf-codec"
	FeatureGRPCProstCodec    = "grpcio-prost-codec"
)

type feature struct {
	backend types.Backend
	grpc    bool
}

var nameToFeature = map[string]feature{
	FeatureProtobufCodec:     {backend: types.BackendNative},
	FeatureProstCodec:        {backend: types.BackendProst},
	FeatureGRPCProtobufCodec: {backend: types.BackendNative, grpc: true},
	FeatureGRPCProstCodec:    {backend: types.BackendProst, grpc: true},
}

// Opts holds the generation options of the command line. Set options override the configuration file.
type Opts struct {
	Config           string   `long:"config" env:"PROTOBUILD_CONFIG" description:"YAML, JSON or Jsonnet configuration file"`
	ConfigSnippet    string   `long:"config-snippet" description:"Inline Jsonnet configuration, instead of --config"`
	Files            []string `long:"file" description:"Proto file to generate code for, can be repeated"`
	Includes         []string `short:"I" long:"include" description:"Directory imports are resolved from, can be repeated"`
	Backend          string   `long:"backend" choice:"protobuf" choice:"prost" description:"Code generator"`
	Features         []string `long:"feature" description:"Cargo feature selecting the backend: protobuf-codec, prost-codec, grpcio-protobuf-codec, grpcio-prost-codec"`
	ProtobufCodec    bool     `long:"protobuf-codec" description:"Same as --feature=protobuf-codec"`
	ProstCodec       bool     `long:"prost-codec" description:"Same as --feature=prost-codec"`
	GRPC             bool     `long:"grpc" description:"Also generate gRPC service stubs"`
	OutDir           string   `long:"out-dir" env:"PROTOBUILD_OUT_DIR" description:"Output directory, defaults to $OUT_DIR/protos"`
	Compiler         string   `long:"compiler" choice:"builtin" choice:"protoc" description:"How proto sources are compiled (default: builtin)"`
	Protoc           string   `long:"protoc" description:"protoc binary, defaults to $PROTOC, a bundled binary, then protoc from PATH"`
	ProtocBundleDir  string   `long:"protoc-bundle-dir" description:"Directory holding bundled protoc binaries"`
	CodecPlugin      string   `long:"codec-plugin" description:"Path of the message code plugin"`
	GRPCPlugin       string   `long:"grpc-plugin" description:"Path of the service stub plugin"`
	NoWrapper        bool     `long:"no-wrapper" description:"Do not generate accessor wrappers for prost messages"`
	WrapperOptions   []string `long:"wrapper-option" description:"Accessors to generate: new, message, has, clear, trivial_get, trivial_set, mut, take, all, none"`
	DescriptorSetOut string   `long:"descriptor-set-out" description:"Also write the descriptor set to this file of the output directory"`
	BuildFile        string   `long:"build-file" description:"Also write a BUILD file with this name exposing the generated sources"`
	BuildRuleName    string   `long:"build-rule-name" description:"Name of the filegroup of the BUILD file (default: protos)"`
}

// File is the schema of configuration files.
type File struct {
	Files            []string       `yaml:"files"`
	Includes         []string       `yaml:"includes"`
	Backend          types.Backend  `yaml:"backend"`
	Features         []string       `yaml:"features"`
	GRPC             bool           `yaml:"grpc"`
	OutDir           string         `yaml:"out_dir"`
	Compiler         types.Compiler `yaml:"compiler"`
	Protoc           string         `yaml:"protoc"`
	ProtocBundleDir  string         `yaml:"protoc_bundle_dir"`
	CodecPlugin      types.Plugin   `yaml:"codec_plugin"`
	GRPCPlugin       types.Plugin   `yaml:"grpc_plugin"`
	Rules            []types.Rule   `yaml:"rules"`
	Derives          []types.Derive `yaml:"derives"`
	Wrapper          *bool          `yaml:"wrapper"`
	WrapperOptions   []string       `yaml:"wrapper_options"`
	DescriptorSetOut string         `yaml:"descriptor_set_out"`
	BuildFile        string         `yaml:"build_file"`
	BuildRuleName    string         `yaml:"build_rule_name"`
}

// LoadFile parses the configuration file at path. Jsonnet files see $OUT_DIR as the `OUT_DIR` external
// variable. Relative paths are resolved from the directory of the file.
func LoadFile(path string) (*File, error) {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonnet", ".libsonnet":
		data, err = jsonnet.EvaluateFile(path, map[string]string{EnvOutDir: os.Getenv(EnvOutDir)})
	case ".yaml", ".yml", ".json":
		data, err = os.ReadFile(path)
	default:
		return nil, fmt.Errorf("unsupported configuration file %s: expected .yaml, .yml, .json or .jsonnet", path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading configuration file: %w", err)
	}

	file, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("decoding configuration file %s: %w", path, err)
	}
	file.resolvePaths(filepath.Dir(path))
	return file, nil
}

// LoadSnippet parses an inline Jsonnet configuration. Relative paths are kept relative to the working directory.
func LoadSnippet(snippet string) (*File, error) {
	data, err := jsonnet.EvaluateSnippet(snippet, map[string]string{EnvOutDir: os.Getenv(EnvOutDir)})
	if err != nil {
		return nil, fmt.Errorf("evaluating configuration snippet: %w", err)
	}
	file, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("decoding configuration snippet: %w", err)
	}
	return file, nil
}

// JSON is valid YAML, so every format decodes through the same schema.
func decode(data []byte) (*File, error) {
	file := &File{}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(file); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return file, nil
}

func (f *File) resolvePaths(dir string) {
	resolve := func(path string) string {
		if path == "" || filepath.IsAbs(path) {
			return path
		}
		return filepath.Join(dir, path)
	}
	// Binaries without a directory are looked up in PATH.
	resolveBinary := func(path string) string {
		if !strings.ContainsRune(path, filepath.Separator) && !strings.ContainsRune(path, '/') {
			return path
		}
		return resolve(path)
	}
	for i, file := range f.Files {
		f.Files[i] = resolve(file)
	}
	for i, include := range f.Includes {
		f.Includes[i] = resolve(include)
	}
	f.OutDir = resolve(f.OutDir)
	f.ProtocBundleDir = resolve(f.ProtocBundleDir)
	f.Protoc = resolveBinary(f.Protoc)
	f.CodecPlugin.Path = resolveBinary(f.CodecPlugin.Path)
	f.GRPCPlugin.Path = resolveBinary(f.GRPCPlugin.Path)
}

// Load builds the request described by the configuration file of opts, overridden by the options set in opts.
func Load(opts *Opts) (*types.Request, error) {
	file := &File{}
	var err error
	switch {
	case opts.Config != "" && opts.ConfigSnippet != "":
		return nil, fmt.Errorf("%w: --config and --config-snippet are mutually exclusive", protobuild.ErrConfig)
	case opts.Config != "":
		if file, err = LoadFile(opts.Config); err != nil {
			return nil, fmt.Errorf("%w: %w", protobuild.ErrConfig, err)
		}
	case opts.ConfigSnippet != "":
		if file, err = LoadSnippet(opts.ConfigSnippet); err != nil {
			return nil, fmt.Errorf("%w: %w", protobuild.ErrConfig, err)
		}
	}

	request := &types.Request{
		Files:            append(slices.Clone(file.Files), opts.Files...),
		Includes:         append(slices.Clone(file.Includes), opts.Includes...),
		OutDir:           firstNonEmpty(opts.OutDir, file.OutDir),
		Compiler:         types.Compiler(firstNonEmpty(opts.Compiler, string(file.Compiler), string(types.CompilerBuiltin))),
		Protoc:           firstNonEmpty(opts.Protoc, file.Protoc),
		ProtocBundleDir:  firstNonEmpty(opts.ProtocBundleDir, file.ProtocBundleDir),
		CodecPlugin:      types.Plugin{Path: firstNonEmpty(opts.CodecPlugin, file.CodecPlugin.Path), Parameter: file.CodecPlugin.Parameter},
		GRPCPlugin:       types.Plugin{Path: firstNonEmpty(opts.GRPCPlugin, file.GRPCPlugin.Path), Parameter: file.GRPCPlugin.Parameter},
		Rules:            slices.Clone(file.Rules),
		Derives:          slices.Clone(file.Derives),
		Wrapper:          !opts.NoWrapper && (file.Wrapper == nil || *file.Wrapper),
		WrapperOptions:   append(slices.Clone(file.WrapperOptions), opts.WrapperOptions...),
		DescriptorSetOut: firstNonEmpty(opts.DescriptorSetOut, file.DescriptorSetOut),
		BuildFile:        firstNonEmpty(opts.BuildFile, file.BuildFile),
		BuildRuleName:    firstNonEmpty(opts.BuildRuleName, file.BuildRuleName),
	}
	if request.OutDir == "" {
		if outDir := os.Getenv(EnvOutDir); outDir != "" {
			request.OutDir = filepath.Join(outDir, DefaultOutSubdir)
		}
	}

	request.Backend, request.GRPC, err = selectBackend(file, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", protobuild.ErrConfig, err)
	}
	return request, nil
}

// selectBackend combines the backend and features of file and opts.
// Features select a single backend, which an explicit backend must agree with.
func selectBackend(file *File, opts *Opts) (types.Backend, bool, error) {
	features := append(slices.Clone(file.Features), opts.Features...)
	if opts.ProtobufCodec {
		features = append(features, FeatureProtobufCodec)
	}
	if opts.ProstCodec {
		features = append(features, FeatureProstCodec)
	}

	var errs *multierror.Error
	grpc := file.GRPC || opts.GRPC
	var featureBackends []types.Backend
	for _, name := range features {
		feature, ok := nameToFeature[name]
		if !ok {
			errs = multierror.Append(errs, fmt.Errorf("unknown feature %q", name))
			continue
		}
		grpc = grpc || feature.grpc
		if !slices.Contains(featureBackends, feature.backend) {
			featureBackends = append(featureBackends, feature.backend)
		}
	}
	if len(featureBackends) > 1 {
		errs = multierror.Append(errs, fmt.Errorf("features %s and %s are mutually exclusive", FeatureProtobufCodec, FeatureProstCodec))
	}

	backend := types.Backend(firstNonEmpty(opts.Backend, string(file.Backend)))
	if len(featureBackends) == 1 {
		if backend != types.BackendUnspecified && backend != featureBackends[0] {
			errs = multierror.Append(errs, fmt.Errorf("backend %q conflicts with the selected features %v", backend, features))
		}
		backend = featureBackends[0]
	}
	if backend == types.BackendUnspecified {
		backend = types.BackendNative
	}
	if err := errs.ErrorOrNil(); err != nil {
		return "", false, err
	}
	return backend, grpc, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
