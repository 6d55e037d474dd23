package descriptor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/malonaz/protobuild/go/protobuild/protoc"
)

// ProtocResolver shells out to protoc to produce a descriptor set.
type ProtocResolver struct {
	log    *slog.Logger
	protoc string
}

// NewProtocResolver returns a resolver using the protoc binary at path.
func NewProtocResolver(path string) *ProtocResolver {
	return &ProtocResolver{
		log:    slog.Default(),
		protoc: path,
	}
}

// WithLogger sets this resolver's logger.
func (r *ProtocResolver) WithLogger(logger *slog.Logger) *ProtocResolver {
	r.log = logger
	return r
}

// Resolve implements Resolver.
func (r *ProtocResolver) Resolve(ctx context.Context, files, includes []string) (*Set, error) {
	toGenerate, err := RelativeToIncludes(files, includes)
	if err != nil {
		return nil, err
	}
	version, err := protoc.Version(ctx, r.protoc)
	if err != nil {
		return nil, err
	}
	if err := protoc.Supported(version); err != nil {
		return nil, err
	}

	tmpDir, err := os.MkdirTemp("", "protobuild-desc")
	if err != nil {
		return nil, fmt.Errorf("creating temporary directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)
	descriptorPath := filepath.Join(tmpDir, "mod.desc")

	args := make([]string, 0, len(includes)+len(files)+4)
	for _, include := range includes {
		args = append(args, "-I"+include)
	}
	args = append(args, "--include_imports", "--include_source_info", "-o", descriptorPath)
	args = append(args, files...)

	r.log.Debug("executing protoc", "path", r.protoc, "args", strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, r.protoc, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("failed to generate descriptor set files: %w\n%s", err, output)
	}

	bytes, err := os.ReadFile(descriptorPath)
	if err != nil {
		return nil, fmt.Errorf("reading descriptor set: %w", err)
	}
	fileDescriptorSet := &descriptorpb.FileDescriptorSet{}
	if err := proto.Unmarshal(bytes, fileDescriptorSet); err != nil {
		return nil, fmt.Errorf("unmarshaling descriptor set: %w", err)
	}
	return &Set{Files: fileDescriptorSet.GetFile(), ToGenerate: toGenerate, CompilerVersion: version}, nil
}
