package plugin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path"
	"strconv"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/pluginpb"

	"github.com/malonaz/protobuild/go/protobuild/descriptor"
	"github.com/malonaz/protobuild/go/protobuild/types"
)

// Handler answers a code generator request.
type Handler interface {
	Generate(ctx context.Context, request *pluginpb.CodeGeneratorRequest) (*pluginpb.CodeGeneratorResponse, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, request *pluginpb.CodeGeneratorRequest) (*pluginpb.CodeGeneratorResponse, error)

// Generate implements Handler.
func (f HandlerFunc) Generate(ctx context.Context, request *pluginpb.CodeGeneratorRequest) (*pluginpb.CodeGeneratorResponse, error) {
	return f(ctx, request)
}

// Exec runs a plugin binary, speaking the protoc plugin protocol over stdin/stdout.
type Exec struct {
	Path string
}

// Generate implements Handler.
func (e *Exec) Generate(ctx context.Context, request *pluginpb.CodeGeneratorRequest) (*pluginpb.CodeGeneratorResponse, error) {
	binary, err := exec.LookPath(e.Path)
	if err != nil {
		return nil, fmt.Errorf("plugin %s not found: %w", e.Path, err)
	}
	input, err := proto.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary)
	cmd.Stdin = bytes.NewReader(input)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("plugin %s failed: %w\n%s", e.Path, err, stderr.String())
		}
		return nil, fmt.Errorf("running plugin %s: %w", e.Path, err)
	}

	response := &pluginpb.CodeGeneratorResponse{}
	if err := proto.Unmarshal(stdout.Bytes(), response); err != nil {
		return nil, fmt.Errorf("unmarshaling response of plugin %s: %w", e.Path, err)
	}
	return response, nil
}

// Resolve returns the in-process handler registered for path, falling back to executing path.
func Resolve(path string, inProcess map[string]Handler) Handler {
	if handler, ok := inProcess[path]; ok {
		return handler
	}
	return &Exec{Path: path}
}

// NewRequest builds the code generator request for a descriptor set.
func NewRequest(set *descriptor.Set, parameter string) *pluginpb.CodeGeneratorRequest {
	request := &pluginpb.CodeGeneratorRequest{
		FileToGenerate: append([]string(nil), set.ToGenerate...),
		ProtoFile:      set.Files,
	}
	if parameter != "" {
		request.Parameter = proto.String(parameter)
	}
	request.CompilerVersion = compilerVersion(set.CompilerVersion)
	return request
}

// compilerVersion converts a `vMAJOR.MINOR.PATCH` version, returning nil if it does not parse.
func compilerVersion(version string) *pluginpb.Version {
	parts := strings.Split(strings.TrimPrefix(version, "v"), ".")
	if len(parts) != 3 {
		return nil
	}
	numbers := make([]int32, 0, len(parts))
	for _, part := range parts {
		number, err := strconv.ParseInt(part, 10, 32)
		if err != nil {
			return nil
		}
		numbers = append(numbers, int32(number))
	}
	return &pluginpb.Version{
		Major: proto.Int32(numbers[0]),
		Minor: proto.Int32(numbers[1]),
		Patch: proto.Int32(numbers[2]),
	}
}

// Run sends request to handler and converts the response files into generated files of the given kind.
func Run(ctx context.Context, name string, handler Handler, request *pluginpb.CodeGeneratorRequest, kind types.Kind) ([]*types.GeneratedFile, error) {
	response, err := handler.Generate(ctx, request)
	if err != nil {
		return nil, err
	}
	if response.Error != nil {
		return nil, fmt.Errorf("plugin %s: %s", name, response.GetError())
	}

	files := make([]*types.GeneratedFile, 0, len(response.GetFile()))
	seen := map[string]struct{}{}
	for _, file := range response.GetFile() {
		if file.GetInsertionPoint() != "" {
			return nil, fmt.Errorf("plugin %s: insertion point %q in %s is not supported", name, file.GetInsertionPoint(), file.GetName())
		}
		cleaned := path.Clean(file.GetName())
		if cleaned == "." || path.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
			return nil, fmt.Errorf("plugin %s: invalid output name %q", name, file.GetName())
		}
		if _, ok := seen[cleaned]; ok {
			return nil, fmt.Errorf("plugin %s: output %s generated twice", name, cleaned)
		}
		seen[cleaned] = struct{}{}
		files = append(files, &types.GeneratedFile{
			Name:    cleaned,
			Content: []byte(file.GetContent()),
			Kind:    kind,
		})
	}
	return files, nil
}
