package descriptor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeProto(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRelativeToIncludes(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	first := filepath.Join(dir, "first")
	second := filepath.Join(dir, "second")

	t.Run("first matching include wins", func(t *testing.T) {
		t.Parallel()
		files := []string{
			filepath.Join(first, "metapb.proto"),
			filepath.Join(second, "raft", "raft_serverpb.proto"),
		}
		relative, err := RelativeToIncludes(files, []string{first, second})
		require.NoError(t, err)
		require.Equal(t, []string{"metapb.proto", "raft/raft_serverpb.proto"}, relative)
	})

	t.Run("nested include", func(t *testing.T) {
		t.Parallel()
		files := []string{filepath.Join(first, "sub", "a.proto")}
		relative, err := RelativeToIncludes(files, []string{filepath.Join(first, "sub"), first})
		require.NoError(t, err)
		require.Equal(t, []string{"a.proto"}, relative)
	})

	t.Run("outside includes", func(t *testing.T) {
		t.Parallel()
		_, err := RelativeToIncludes([]string{filepath.Join(dir, "other", "a.proto")}, []string{first})
		require.ErrorContains(t, err, "is not found in includes")
	})

	t.Run("include itself is not a file", func(t *testing.T) {
		t.Parallel()
		_, err := RelativeToIncludes([]string{first}, []string{first})
		require.Error(t, err)
	})
}

func TestBuiltinResolver(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	metapb := writeProto(t, dir, "metapb.proto", `syntax = "proto3";
package metapb;
message Store { uint64 id = 1; }
`)
	kvrpcpb := writeProto(t, dir, "kvrpcpb.proto", `syntax = "proto3";
package kvrpcpb;
import "metapb.proto";
import "google/protobuf/empty.proto";
message Context { metapb.Store store = 1; google.protobuf.Empty empty = 2; }
`)

	set, err := NewBuiltinResolver().Resolve(context.Background(), []string{kvrpcpb, metapb}, []string{dir})
	require.NoError(t, err)
	require.Equal(t, []string{"kvrpcpb.proto", "metapb.proto"}, set.ToGenerate)

	// Dependencies come before their dependents, each once.
	var names []string
	for _, file := range set.Files {
		names = append(names, file.GetName())
	}
	require.Equal(t, []string{"metapb.proto", "google/protobuf/empty.proto", "kvrpcpb.proto"}, names)

	generated, err := set.Generated()
	require.NoError(t, err)
	require.Len(t, generated, 2)
	require.Equal(t, "kvrpcpb", generated[0].GetPackage())
	require.Equal(t, "metapb", generated[1].GetPackage())
	require.NotNil(t, generated[0].GetSourceCodeInfo())

	registry, err := set.Registry()
	require.NoError(t, err)
	_, err = registry.FindDescriptorByName("kvrpcpb.Context")
	require.NoError(t, err)
}

func TestBuiltinResolverErrors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	malformed := writeProto(t, dir, "malformed.proto", "syntax = \"proto3\";\nmessage {\n")
	missingImport := writeProto(t, dir, "missing_import.proto", "syntax = \"proto3\";\nimport \"nope.proto\";\n")

	_, err := NewBuiltinResolver().Resolve(context.Background(), []string{malformed}, []string{dir})
	require.ErrorContains(t, err, "compiling protos")

	_, err = NewBuiltinResolver().Resolve(context.Background(), []string{missingImport}, []string{dir})
	require.ErrorContains(t, err, "nope.proto")
}

func TestGeneratedMissingDescriptor(t *testing.T) {
	t.Parallel()
	set := &Set{ToGenerate: []string{"a.proto"}}
	_, err := set.Generated()
	require.ErrorContains(t, err, "a.proto")
}
