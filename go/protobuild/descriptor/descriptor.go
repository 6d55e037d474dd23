package descriptor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

// Resolver turns proto sources into a linked descriptor set.
type Resolver interface {
	Resolve(ctx context.Context, files, includes []string) (*Set, error)
}

// Set holds every file descriptor needed to generate code, dependencies first.
type Set struct {
	Files []*descriptorpb.FileDescriptorProto
	// Include relative, slash separated paths of the files to generate code for.
	ToGenerate []string
	// Version of the protoc that produced the set, as returned by protoc.Version. Empty when compiled in-process.
	CompilerVersion string
}

// FileDescriptorSet returns the set in its wire form.
func (s *Set) FileDescriptorSet() *descriptorpb.FileDescriptorSet {
	return &descriptorpb.FileDescriptorSet{File: s.Files}
}

// Generated returns the descriptors of the files to generate, in ToGenerate order.
func (s *Set) Generated() ([]*descriptorpb.FileDescriptorProto, error) {
	nameToFile := make(map[string]*descriptorpb.FileDescriptorProto, len(s.Files))
	for _, file := range s.Files {
		nameToFile[file.GetName()] = file
	}
	generated := make([]*descriptorpb.FileDescriptorProto, 0, len(s.ToGenerate))
	for _, name := range s.ToGenerate {
		file, ok := nameToFile[name]
		if !ok {
			return nil, fmt.Errorf("descriptor for %s is missing from the descriptor set", name)
		}
		generated = append(generated, file)
	}
	return generated, nil
}

// Registry links the set into a registry.
func (s *Set) Registry() (*protoregistry.Files, error) {
	files, err := protodesc.NewFiles(s.FileDescriptorSet())
	if err != nil {
		return nil, fmt.Errorf("linking descriptors: %w", err)
	}
	return files, nil
}

// RelativeToIncludes maps each file to its path relative to the first include directory containing it.
func RelativeToIncludes(files, includes []string) ([]string, error) {
	absIncludes := make([]string, 0, len(includes))
	for _, include := range includes {
		abs, err := filepath.Abs(include)
		if err != nil {
			return nil, fmt.Errorf("resolving include %s: %w", include, err)
		}
		absIncludes = append(absIncludes, abs)
	}

	relativeFiles := make([]string, 0, len(files))
outer:
	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			return nil, fmt.Errorf("resolving file %s: %w", file, err)
		}
		for _, include := range absIncludes {
			rel, err := filepath.Rel(include, abs)
			if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
				continue
			}
			relativeFiles = append(relativeFiles, filepath.ToSlash(rel))
			continue outer
		}
		return nil, fmt.Errorf("file %s is not found in includes %v", file, includes)
	}
	return relativeFiles, nil
}
