// Package backend runs the protoc plugins of a code generation backend.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/malonaz/protobuild/go/protobuild/descriptor"
	"github.com/malonaz/protobuild/go/protobuild/plugin"
	"github.com/malonaz/protobuild/go/protobuild/rustname"
	"github.com/malonaz/protobuild/go/protobuild/types"
)

// ErrMissingOutput is returned when a plugin did not generate the output of a proto file.
var ErrMissingOutput = errors.New("missing output")

var backendToCodecPlugin = map[types.Backend]string{
	types.BackendNative: "protoc-gen-rust",
	types.BackendProst:  "protoc-gen-prost",
}

var backendToGRPCPlugin = map[types.Backend]string{
	types.BackendNative: "grpc_rust_plugin",
	types.BackendProst:  "protoc-gen-tonic",
}

// Backend runs a single plugin over a descriptor set.
type Backend struct {
	log       *slog.Logger
	name      string
	kind      types.Kind
	parameter string
	handler   plugin.Handler
	// Returns the output a proto file ends up in, false if the plugin generates nothing for it.
	output func(file *descriptorpb.FileDescriptorProto) (string, bool)
}

// NewCodec returns the backend generating message code.
func NewCodec(backend types.Backend, config types.Plugin, inProcess map[string]plugin.Handler) (*Backend, error) {
	b := &Backend{log: slog.Default(), kind: types.KindCodec, parameter: config.Parameter}
	switch backend {
	case types.BackendNative:
		b.output = func(file *descriptorpb.FileDescriptorProto) (string, bool) {
			return rustname.ModuleFromFile(file.GetName()) + ".rs", true
		}
	case types.BackendProst:
		b.output = func(file *descriptorpb.FileDescriptorProto) (string, bool) {
			return rustname.PackageFile(file.GetPackage()), true
		}
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
	b.name = pluginPath(config, backendToCodecPlugin[backend])
	b.handler = plugin.Resolve(b.name, inProcess)
	return b, nil
}

// NewGRPC returns the backend generating service stubs.
func NewGRPC(backend types.Backend, config types.Plugin, inProcess map[string]plugin.Handler) (*Backend, error) {
	b := &Backend{log: slog.Default(), kind: types.KindGRPC, parameter: config.Parameter}
	switch backend {
	case types.BackendNative:
		b.output = func(file *descriptorpb.FileDescriptorProto) (string, bool) {
			return rustname.ModuleFromFile(file.GetName()) + "_grpc.rs", len(file.GetService()) > 0
		}
	case types.BackendProst:
		b.output = func(file *descriptorpb.FileDescriptorProto) (string, bool) {
			return TonicFile(file.GetPackage()), len(file.GetService()) > 0
		}
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
	b.name = pluginPath(config, backendToGRPCPlugin[backend])
	b.handler = plugin.Resolve(b.name, inProcess)
	return b, nil
}

// TonicFile returns the name of the file tonic generates for a proto package.
func TonicFile(pkg string) string {
	if pkg == "" {
		return "_.tonic.rs"
	}
	return pkg + ".tonic.rs"
}

func pluginPath(config types.Plugin, fallback string) string {
	if config.Path != "" {
		return config.Path
	}
	return fallback
}

// WithLogger sets this backend's logger.
func (b *Backend) WithLogger(logger *slog.Logger) *Backend {
	b.log = logger
	return b
}

// Name returns the plugin this backend runs.
func (b *Backend) Name() string {
	return b.name
}

// Generate runs the plugin and attributes every output to the proto files it covers.
// Every proto file the plugin is responsible for must be covered by an output.
func (b *Backend) Generate(ctx context.Context, set *descriptor.Set) ([]*types.GeneratedFile, error) {
	generated, err := set.Generated()
	if err != nil {
		return nil, err
	}
	outputToSources := map[string][]string{}
	for _, file := range generated {
		output, ok := b.output(file)
		if !ok {
			continue
		}
		outputToSources[output] = append(outputToSources[output], file.GetName())
	}

	b.log.Debug("running plugin", "plugin", b.name, "kind", b.kind, "files", len(set.ToGenerate))
	files, err := plugin.Run(ctx, b.name, b.handler, plugin.NewRequest(set, b.parameter), b.kind)
	if err != nil {
		return nil, err
	}

	nameToFile := make(map[string]*types.GeneratedFile, len(files))
	for _, file := range files {
		nameToFile[file.Name] = file
	}
	var missing []string
	for output, sources := range outputToSources {
		file, ok := nameToFile[output]
		if !ok {
			missing = append(missing, fmt.Sprintf("%s (from %s)", output, strings.Join(sources, ", ")))
			continue
		}
		slices.Sort(sources)
		file.Sources = sources
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, fmt.Errorf("plugin %s: %w: %s", b.name, ErrMissingOutput, strings.Join(missing, "; "))
	}
	for _, file := range files {
		if len(file.Sources) == 0 {
			b.log.Warn("plugin generated a file no proto file maps to", "plugin", b.name, "file", file.Name)
		}
	}
	types.SortFiles(files)
	return files, nil
}
