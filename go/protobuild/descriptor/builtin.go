package descriptor

import (
	"context"
	"fmt"

	"github.com/bufbuild/protocompile"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

// BuiltinResolver compiles proto sources in-process.
type BuiltinResolver struct{}

// NewBuiltinResolver returns a new BuiltinResolver.
func NewBuiltinResolver() *BuiltinResolver {
	return &BuiltinResolver{}
}

// Resolve implements Resolver.
func (r *BuiltinResolver) Resolve(ctx context.Context, files, includes []string) (*Set, error) {
	toGenerate, err := RelativeToIncludes(files, includes)
	if err != nil {
		return nil, err
	}

	compiler := protocompile.Compiler{
		Resolver: protocompile.WithStandardImports(&protocompile.SourceResolver{
			ImportPaths: includes,
		}),
		SourceInfoMode: protocompile.SourceInfoStandard,
	}
	compiled, err := compiler.Compile(ctx, toGenerate...)
	if err != nil {
		return nil, fmt.Errorf("compiling protos: %w", err)
	}

	// Dependencies first, each file once.
	seen := map[string]struct{}{}
	var ordered []*descriptorpb.FileDescriptorProto
	var visit func(fd protoreflect.FileDescriptor)
	visit = func(fd protoreflect.FileDescriptor) {
		if _, ok := seen[fd.Path()]; ok {
			return
		}
		seen[fd.Path()] = struct{}{}
		imports := fd.Imports()
		for i := 0; i < imports.Len(); i++ {
			visit(imports.Get(i).FileDescriptor)
		}
		ordered = append(ordered, protodesc.ToFileDescriptorProto(fd))
	}
	for _, file := range compiled {
		visit(file)
	}

	return &Set{Files: ordered, ToGenerate: toGenerate}, nil
}
