// Package protobuild generates Rust code from protobuf sources with the rust-protobuf or prost
// generators, then patches the output for use in a single crate.
package protobuild

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"google.golang.org/protobuf/proto"

	"github.com/malonaz/protobuild/go/protobuild/backend"
	"github.com/malonaz/protobuild/go/protobuild/buildfile"
	"github.com/malonaz/protobuild/go/protobuild/descriptor"
	"github.com/malonaz/protobuild/go/protobuild/modfile"
	"github.com/malonaz/protobuild/go/protobuild/plugin"
	"github.com/malonaz/protobuild/go/protobuild/postprocess"
	"github.com/malonaz/protobuild/go/protobuild/protoc"
	"github.com/malonaz/protobuild/go/protobuild/template"
	"github.com/malonaz/protobuild/go/protobuild/types"
	"github.com/malonaz/protobuild/go/protobuild/wrapper"
	"github.com/malonaz/protobuild/go/protobuild/write"
)

// Generator runs generation requests.
type Generator struct {
	log            *slog.Logger
	templateEngine *template.Engine
	writer         *write.Writer
	resolver       descriptor.Resolver
	nameToPlugin   map[string]plugin.Handler
}

// Result describes a successful generation.
type Result struct {
	OutDir string
	// Sorted by name.
	Files []*types.GeneratedFile
}

// New returns a new Generator.
func New() (*Generator, error) {
	templateEngine, err := template.NewEngine()
	if err != nil {
		return nil, fmt.Errorf("instantiating template engine: %w", err)
	}
	return &Generator{
		log:            slog.Default(),
		templateEngine: templateEngine,
		writer:         write.New(),
		nameToPlugin:   map[string]plugin.Handler{},
	}, nil
}

// WithLogger sets this generator's logger.
func (g *Generator) WithLogger(logger *slog.Logger) *Generator {
	g.log = logger
	g.writer.WithLogger(logger)
	return g
}

// WithPlugin serves the plugin named name in-process instead of executing it.
func (g *Generator) WithPlugin(name string, handler plugin.Handler) *Generator {
	g.nameToPlugin[name] = handler
	return g
}

// WithResolver overrides the descriptor resolver selected by requests.
func (g *Generator) WithResolver(resolver descriptor.Resolver) *Generator {
	g.resolver = resolver
	return g
}

// Generate validates request, generates every file and replaces the output directory with them.
func (g *Generator) Generate(ctx context.Context, request *types.Request) (*Result, error) {
	files, err := g.Render(ctx, request)
	if err != nil {
		return nil, err
	}
	if err := g.writer.WriteFiles(request.OutDir, files); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWrite, err)
	}
	g.log.Info("generated files", "backend", request.Backend, "out_dir", request.OutDir, "count", len(files))
	return &Result{OutDir: request.OutDir, Files: files}, nil
}

// Render validates request and generates every file in memory.
func (g *Generator) Render(ctx context.Context, request *types.Request) ([]*types.GeneratedFile, error) {
	if err := Validate(request); err != nil {
		return nil, err
	}

	// Parse.
	set, err := g.resolve(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInput, err)
	}

	// Generate.
	files, err := g.runBackends(ctx, request, set)
	if err != nil {
		return nil, err
	}

	// Post-process.
	pipeline, err := postprocess.New(request.Backend, request.Rules, request.Derives)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if err := pipeline.WithLogger(g.log).Process(ctx, files); err != nil {
		var notIdempotentErr *postprocess.NotIdempotentError
		if errors.As(err, &notIdempotentErr) {
			return nil, fmt.Errorf("%w: %w", ErrConfig, err)
		}
		return nil, fmt.Errorf("post-processing: %w", err)
	}

	if request.Backend == types.BackendProst && request.Wrapper {
		options, err := wrapper.ParseOptions(request.WrapperOptions)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfig, err)
		}
		wrappers, err := wrapper.New(g.templateEngine, options).WithLogger(g.log).Generate(set)
		if err != nil {
			return nil, fmt.Errorf("%w: generating wrappers: %w", ErrInput, err)
		}
		files = append(files, wrappers...)
	}

	modFile, err := modfile.New(g.templateEngine).Generate(request.Backend, files)
	if err != nil {
		return nil, fmt.Errorf("generating %s: %w", modfile.Name, err)
	}
	files = append(files, modFile)

	if request.DescriptorSetOut != "" {
		content, err := proto.MarshalOptions{Deterministic: true}.Marshal(set.FileDescriptorSet())
		if err != nil {
			return nil, fmt.Errorf("marshaling descriptor set: %w", err)
		}
		files = append(files, &types.GeneratedFile{
			Name:    filepath.ToSlash(filepath.Clean(request.DescriptorSetOut)),
			Content: content,
			Kind:    types.KindDescriptorSet,
			Sources: set.ToGenerate,
		})
	}

	if request.BuildFile != "" {
		buildFile, err := buildfile.New(g.templateEngine).Generate(filepath.ToSlash(filepath.Clean(request.BuildFile)), request.BuildRuleName, files)
		if err != nil {
			return nil, fmt.Errorf("generating %s: %w", request.BuildFile, err)
		}
		files = append(files, buildFile)
	}

	types.SortFiles(files)
	if err := checkUniqueNames(files); err != nil {
		return nil, err
	}
	return files, nil
}

// checkUniqueNames returns an error if two of the sorted files share a name.
func checkUniqueNames(files []*types.GeneratedFile) error {
	var errs *multierror.Error
	for i := 1; i < len(files); i++ {
		if files[i].Name == files[i-1].Name {
			errs = multierror.Append(errs, fmt.Errorf("%s is generated as both %s and %s", files[i].Name, files[i-1].Kind, files[i].Kind))
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	return nil
}

// Describe resolves the descriptors of request's files without running any generator.
func (g *Generator) Describe(ctx context.Context, request *types.Request) (*descriptor.Set, error) {
	if len(request.Files) == 0 {
		return nil, fmt.Errorf("%w: no proto files", ErrConfig)
	}
	if len(request.Includes) == 0 {
		return nil, fmt.Errorf("%w: no include directories", ErrConfig)
	}
	set, err := g.resolve(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInput, err)
	}
	return set, nil
}

func (g *Generator) resolve(ctx context.Context, request *types.Request) (*descriptor.Set, error) {
	resolver := g.resolver
	if resolver == nil {
		switch request.Compiler {
		case types.CompilerProtoc:
			path := protoc.Locate(request.Protoc, request.ProtocBundleDir)
			resolver = descriptor.NewProtocResolver(path).WithLogger(g.log)
		default:
			resolver = descriptor.NewBuiltinResolver()
		}
	}
	set, err := resolver.Resolve(ctx, request.Files, request.Includes)
	if err != nil {
		return nil, err
	}
	g.log.Debug("resolved descriptors", "files", len(set.Files), "to_generate", len(set.ToGenerate))
	return set, nil
}

// runBackends runs the codec backend, then the gRPC backend if requested.
func (g *Generator) runBackends(ctx context.Context, request *types.Request, set *descriptor.Set) ([]*types.GeneratedFile, error) {
	plugins := maps.Clone(g.nameToPlugin)
	codec, err := backend.NewCodec(request.Backend, request.CodecPlugin, plugins)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	files, err := codec.WithLogger(g.log).Generate(ctx, set)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInput, err)
	}
	if !request.GRPC {
		return files, nil
	}

	grpc, err := backend.NewGRPC(request.Backend, request.GRPCPlugin, plugins)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	services, err := grpc.WithLogger(g.log).Generate(ctx, set)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInput, err)
	}
	nameToFile := make(map[string]*types.GeneratedFile, len(files))
	for _, file := range files {
		nameToFile[file.Name] = file
	}
	for _, service := range services {
		if _, ok := nameToFile[service.Name]; ok {
			return nil, fmt.Errorf("%w: %s generated by both %s and %s", ErrInput, service.Name, codec.Name(), grpc.Name())
		}
	}
	return append(files, services...), nil
}
