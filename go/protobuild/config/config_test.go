package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/malonaz/protobuild/go/protobuild"
	"github.com/malonaz/protobuild/go/protobuild/types"
)

const yamlConfig = `files:
  - proto/metapb.proto
  - /abs/kvrpcpb.proto
includes:
  - proto
  - include
backend: prost
grpc: true
out_dir: gen
codec_plugin:
  path: bin/protoc-gen-prost
  parameter: compile_well_known_types
grpc_plugin:
  path: protoc-gen-tonic
rules:
  - name: crate-imports
    pattern: 'super::super::(\w+)'
    replacement: 'crate::$1'
    files: '*.rs'
derives:
  - derives: ["serde::Serialize", "serde::Deserialize"]
    target: messages
    match: '^Peer$'
wrapper: false
wrapper_options: [has, clear]
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	t.Run("yaml", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, "protobuild.yaml", yamlConfig)
		dir := filepath.Dir(path)
		file, err := LoadFile(path)
		require.NoError(t, err)
		require.Equal(t, []string{filepath.Join(dir, "proto/metapb.proto"), "/abs/kvrpcpb.proto"}, file.Files)
		require.Equal(t, []string{filepath.Join(dir, "proto"), filepath.Join(dir, "include")}, file.Includes)
		require.Equal(t, types.BackendProst, file.Backend)
		require.True(t, file.GRPC)
		require.Equal(t, filepath.Join(dir, "gen"), file.OutDir)
		require.Equal(t, types.Plugin{Path: filepath.Join(dir, "bin/protoc-gen-prost"), Parameter: "compile_well_known_types"}, file.CodecPlugin)
		require.Equal(t, "protoc-gen-tonic", file.GRPCPlugin.Path)
		require.Equal(t, []types.Rule{{Name: "crate-imports", Pattern: `super::super::(\w+)`, Replacement: "crate::$1", Files: "*.rs"}}, file.Rules)
		require.Equal(t, []types.Derive{{Derives: []string{"serde::Serialize", "serde::Deserialize"}, Target: types.DeriveTargetMessages, Match: "^Peer$"}}, file.Derives)
		require.NotNil(t, file.Wrapper)
		require.False(t, *file.Wrapper)
		require.Equal(t, []string{"has", "clear"}, file.WrapperOptions)
	})

	t.Run("json", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, "protobuild.json", `{"files": ["a.proto"], "features": ["grpcio-prost-codec"]}`)
		file, err := LoadFile(path)
		require.NoError(t, err)
		require.Equal(t, []string{filepath.Join(filepath.Dir(path), "a.proto")}, file.Files)
		require.Equal(t, []string{FeatureGRPCProstCodec}, file.Features)
	})

	t.Run("unknown fields", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, "protobuild.yml", "backend: prost\ncodegen: fast\n")
		_, err := LoadFile(path)
		require.ErrorContains(t, err, "codegen")
	})

	t.Run("unsupported extension", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, "protobuild.toml", "")
		_, err := LoadFile(path)
		require.ErrorContains(t, err, "unsupported configuration file")
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
	})
}

func TestLoadJsonnet(t *testing.T) {
	t.Setenv(EnvOutDir, "/cargo/out")
	path := writeConfig(t, "protobuild.jsonnet", `
local proto(name) = 'proto/' + name + '.proto';
{
  files: [proto('metapb'), proto('kvrpcpb')],
  includes: ['proto'],
  out_dir: std.extVar('OUT_DIR') + '/generated',
  backend: 'protobuf',
}
`)
	file, err := LoadFile(path)
	require.NoError(t, err)
	dir := filepath.Dir(path)
	require.Equal(t, []string{filepath.Join(dir, "proto/metapb.proto"), filepath.Join(dir, "proto/kvrpcpb.proto")}, file.Files)
	require.Equal(t, "/cargo/out/generated", file.OutDir)
	require.Equal(t, types.BackendNative, file.Backend)
}

func TestLoad(t *testing.T) {
	t.Run("command line overrides the file", func(t *testing.T) {
		path := writeConfig(t, "protobuild.yaml", yamlConfig)
		request, err := Load(&Opts{
			Config:    path,
			Files:     []string{"extra.proto"},
			OutDir:    "/tmp/out",
			Backend:   "prost",
			Compiler:  "protoc",
			NoWrapper: true,
		})
		require.NoError(t, err)
		require.Len(t, request.Files, 3)
		require.Equal(t, "extra.proto", request.Files[2])
		require.Equal(t, "/tmp/out", request.OutDir)
		require.Equal(t, types.BackendProst, request.Backend)
		require.True(t, request.GRPC)
		require.Equal(t, types.CompilerProtoc, request.Compiler)
		require.False(t, request.Wrapper)
		require.Equal(t, "compile_well_known_types", request.CodecPlugin.Parameter)
		require.Len(t, request.Rules, 1)
	})

	t.Run("defaults", func(t *testing.T) {
		t.Setenv(EnvOutDir, "/cargo/out")
		request, err := Load(&Opts{Files: []string{"a.proto"}, Includes: []string{"."}})
		require.NoError(t, err)
		require.Equal(t, filepath.Join("/cargo/out", DefaultOutSubdir), request.OutDir)
		require.Equal(t, types.BackendNative, request.Backend)
		require.Equal(t, types.CompilerBuiltin, request.Compiler)
		require.False(t, request.GRPC)
		require.True(t, request.Wrapper)
		require.NoError(t, protobuild.Validate(request))
	})

	t.Run("features select the backend", func(t *testing.T) {
		request, err := Load(&Opts{Features: []string{FeatureGRPCProstCodec}})
		require.NoError(t, err)
		require.Equal(t, types.BackendProst, request.Backend)
		require.True(t, request.GRPC)

		request, err = Load(&Opts{ProtobufCodec: true})
		require.NoError(t, err)
		require.Equal(t, types.BackendNative, request.Backend)
		require.False(t, request.GRPC)
	})

	t.Run("both codecs", func(t *testing.T) {
		_, err := Load(&Opts{ProtobufCodec: true, ProstCodec: true})
		require.ErrorIs(t, err, protobuild.ErrConfig)
		require.ErrorContains(t, err, "mutually exclusive")
	})

	t.Run("feature conflicts with backend", func(t *testing.T) {
		_, err := Load(&Opts{Backend: "protobuf", Features: []string{FeatureProstCodec}})
		require.ErrorIs(t, err, protobuild.ErrConfig)
		require.ErrorContains(t, err, "conflicts")
	})

	t.Run("inline snippet", func(t *testing.T) {
		t.Setenv(EnvOutDir, "/cargo/out")
		request, err := Load(&Opts{
			ConfigSnippet: `{ files: ["proto/metapb.proto"], includes: ["proto"], features: ["prost-codec"], out_dir: std.extVar("OUT_DIR") + "/generated" }`,
		})
		require.NoError(t, err)
		require.Equal(t, []string{"proto/metapb.proto"}, request.Files)
		require.Equal(t, []string{"proto"}, request.Includes)
		require.Equal(t, "/cargo/out/generated", request.OutDir)
		require.Equal(t, types.BackendProst, request.Backend)
	})

	t.Run("invalid snippet", func(t *testing.T) {
		_, err := Load(&Opts{ConfigSnippet: `{ unknown_field: true }`})
		require.ErrorIs(t, err, protobuild.ErrConfig)
		require.ErrorContains(t, err, "configuration snippet")
	})

	t.Run("snippet and file", func(t *testing.T) {
		path := writeConfig(t, "protobuild.yaml", yamlConfig)
		_, err := Load(&Opts{Config: path, ConfigSnippet: "{}"})
		require.ErrorIs(t, err, protobuild.ErrConfig)
		require.ErrorContains(t, err, "mutually exclusive")
	})

	t.Run("unknown feature", func(t *testing.T) {
		_, err := Load(&Opts{Features: []string{"capnp-codec"}})
		require.ErrorIs(t, err, protobuild.ErrConfig)
		require.ErrorContains(t, err, `unknown feature "capnp-codec"`)
	})

	t.Run("invalid file", func(t *testing.T) {
		_, err := Load(&Opts{Config: writeConfig(t, "protobuild.yaml", "files: {")})
		require.ErrorIs(t, err, protobuild.ErrConfig)
	})
}
