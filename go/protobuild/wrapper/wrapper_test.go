package wrapper

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/malonaz/protobuild/go/protobuild/descriptor"
	"github.com/malonaz/protobuild/go/protobuild/template"
	"github.com/malonaz/protobuild/go/protobuild/types"
)

const metapbProto = `syntax = "proto3";
package metapb;

import "google/protobuf/wrappers.proto";

enum PeerRole {
  Voter = 0;
  Learner = 1;
}

message Peer {
  uint64 id = 1;
  PeerRole role = 2;
  string type = 3;
  bytes data = 4;
  repeated uint64 store_ids = 5;
  map<string, uint64> labels = 6;
  Region region = 7;
  optional bool witness = 8;
  oneof kind {
    string a = 9;
    uint64 b = 10;
  }
  google.protobuf.StringValue note = 11;
}

message Region {
  message Epoch {
    uint64 version = 1;
  }
  Epoch epoch = 1;
}
`

const kvrpcpbProto = `syntax = "proto3";
package kvrpcpb;

import "metapb.proto";

enum Op {
  option allow_alias = true;
  Put = 0;
  Del = 1;
  Delete = 1;
}

message Context {
  metapb.Peer peer = 1;
  optional Op op = 2;
}
`

const dateProto = `syntax = "proto3";
package google.type;

message Date {
  int32 year = 1;
}
`

const calendarProto = `syntax = "proto3";
package calendar;

import "google/type/date.proto";

message Event {
  google.type.Date day = 1;
}
`

const rootProto = `syntax = "proto3";

message Root {
  int32 value = 1;
}
`

func resolve(t *testing.T, nameToContent map[string]string, files ...string) *descriptor.Set {
	t.Helper()
	dir := t.TempDir()
	var paths []string
	for name, content := range nameToContent {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	for _, file := range files {
		paths = append(paths, filepath.Join(dir, file))
	}
	set, err := descriptor.NewBuiltinResolver().Resolve(context.Background(), paths, []string{dir})
	require.NoError(t, err)
	return set
}

func generate(t *testing.T, set *descriptor.Set, options Options) []*types.GeneratedFile {
	t.Helper()
	engine, err := template.NewEngine()
	require.NoError(t, err)
	files, err := New(engine, options).Generate(set)
	require.NoError(t, err)
	return files
}

func TestGenerate(t *testing.T) {
	t.Parallel()
	set := resolve(t, map[string]string{"metapb.proto": metapbProto, "kvrpcpb.proto": kvrpcpbProto}, "metapb.proto", "kvrpcpb.proto")
	files := generate(t, set, OptAll)
	require.Len(t, files, 2)
	require.Equal(t, "wrapper_kvrpcpb.rs", files[0].Name)
	require.Equal(t, "wrapper_metapb.rs", files[1].Name)
	require.Equal(t, []string{"metapb.proto"}, files[1].Sources)
	require.Equal(t, types.KindWrapper, files[1].Kind)

	metapb := string(files[1].Content)
	kvrpcpb := string(files[0].Content)

	t.Run("header and items", func(t *testing.T) {
		t.Parallel()
		require.Regexp(t, `^// Generated file, please don't edit manually.\n\nimpl Peer \{\n`, metapb)
		require.Contains(t, metapb, "impl region::Epoch {\n")
		require.Contains(t, metapb, "impl ::protobuf::Message for Peer {")
		require.Contains(t, metapb, "impl ::protobuf::Clear for region::Epoch {")
		require.Contains(t, metapb, "pub fn new_() -> Peer { ::std::default::Default::default() }")
		require.Contains(t, metapb, "#[inline] pub fn default_ref() -> &'static Self { ::protobuf::Message::default_instance() }")
	})

	t.Run("scalars", func(t *testing.T) {
		t.Parallel()
		require.Contains(t, metapb, "#[inline] pub fn clear_id(&mut self) { self.id = 0 }\n")
		require.Contains(t, metapb, "#[inline] pub fn set_id(&mut self, v: u64) { self.id = v; }\n")
		require.Contains(t, metapb, "#[inline] pub fn get_id(&self) -> u64 { self.id }\n")
		require.NotContains(t, metapb, "pub fn has_id(")
		require.NotContains(t, metapb, "pub fn take_id(")
	})

	t.Run("enums", func(t *testing.T) {
		t.Parallel()
		require.NotContains(t, metapb, "pub fn set_role(")
		require.Contains(t, metapb, "#[inline] pub fn get_role(&self) -> PeerRole { match PeerRole::from_i32(self.role) {")
		require.Contains(t, metapb, "#[inline] pub fn clear_role(&mut self) { self.role = 0 }")
		require.Contains(t, metapb, "impl PeerRole {\npub fn values() -> &'static [Self] {\nstatic VALUES: &'static [PeerRole] = &[\nPeerRole::Voter,\nPeerRole::Learner,\n];\nVALUES\n}\n}\n")
	})

	t.Run("keyword fields", func(t *testing.T) {
		t.Parallel()
		require.Contains(t, metapb, "#[inline] pub fn get_field_type(&self) -> &str { &self.r#type }")
		require.Contains(t, metapb, "#[inline] pub fn set_field_type(&mut self, v: ::std::string::String) { self.r#type = v; }")
		require.Contains(t, metapb, "#[inline] pub fn mut_field_type(&mut self) -> &mut ::std::string::String { &mut self.r#type }")
		require.Contains(t, metapb, "#[inline] pub fn take_field_type(&mut self) -> ::std::string::String { ::std::mem::replace(&mut self.r#type, ::std::string::String::new()) }")
	})

	t.Run("bytes, repeated and maps", func(t *testing.T) {
		t.Parallel()
		require.Contains(t, metapb, "#[inline] pub fn get_data(&self) -> &[u8] { &self.data }")
		require.Contains(t, metapb, "#[inline] pub fn clear_data(&mut self) { self.data.clear(); }")
		require.Contains(t, metapb, "#[inline] pub fn get_store_ids(&self) -> &::std::vec::Vec<u64> { &self.store_ids }")
		require.Contains(t, metapb, "#[inline] pub fn take_store_ids(&mut self) -> ::std::vec::Vec<u64> { ::std::mem::replace(&mut self.store_ids, ::std::vec::Vec::new()) }")
		require.Contains(t, metapb, "#[inline] pub fn mut_labels(&mut self) -> &mut ::std::collections::HashMap<::std::string::String, u64> { &mut self.labels }")
		require.NotContains(t, metapb, "LabelsEntry")
	})

	t.Run("optional fields", func(t *testing.T) {
		t.Parallel()
		require.Contains(t, metapb, "#[inline] pub fn has_region(&self) -> bool { self.region.is_some() }")
		require.Contains(t, metapb, "#[inline] pub fn clear_region(&mut self) { self.region = ::std::option::Option::None }")
		require.Contains(t, metapb, "#[inline] pub fn set_region(&mut self, v: Region) { self.region = ::std::option::Option::Some(v); }")
		require.Contains(t, metapb, "#[inline] pub fn get_region(&self) -> &Region { match self.region.as_ref() {\n        Some(v) => v,\n        None => Region::default_ref(),\n    } }")
		require.Contains(t, metapb, "#[inline] pub fn mut_region(&mut self) -> &mut Region { if self.region.is_none() {")
		require.Contains(t, metapb, "#[inline] pub fn take_region(&mut self) -> Region { self.region.take().unwrap_or_else(Region::default) }")
		require.Contains(t, metapb, "#[inline] pub fn get_epoch(&self) -> &region::Epoch {")
		require.Contains(t, metapb, "#[inline] pub fn get_witness(&self) -> bool { match self.witness {\n        Some(v) => v,\n        None => false,\n    } }")
		require.NotContains(t, metapb, "pub fn mut_witness(")
		require.Contains(t, metapb, "#[inline] pub fn take_note(&mut self) -> ::std::string::String { self.note.take().unwrap_or_else(::std::string::String::new) }")
	})

	t.Run("oneofs are skipped", func(t *testing.T) {
		t.Parallel()
		require.NotContains(t, metapb, "_a(")
		require.NotContains(t, metapb, "_b(")
		require.NotContains(t, metapb, "_kind(")
	})

	t.Run("cross package references", func(t *testing.T) {
		t.Parallel()
		require.Contains(t, kvrpcpb, "#[inline] pub fn get_peer(&self) -> &super::metapb::Peer { match self.peer.as_ref() {\n        Some(v) => v,\n        None => super::metapb::Peer::default_ref(),\n    } }")
		require.Contains(t, kvrpcpb, "#[inline] pub fn has_op(&self) -> bool { self.op.is_some() }")
		require.NotContains(t, kvrpcpb, "pub fn set_op(")
		require.Contains(t, kvrpcpb, "None => Op::default(),")
		require.Contains(t, kvrpcpb, "&[\nOp::Put,\nOp::Del,\n];")
	})
}

func TestGenerateKeywordPackageReference(t *testing.T) {
	t.Parallel()
	set := resolve(t, map[string]string{"google/type/date.proto": dateProto, "calendar.proto": calendarProto}, "calendar.proto", "google/type/date.proto")
	files := generate(t, set, OptAll)
	require.Len(t, files, 2)
	require.Equal(t, "wrapper_calendar.rs", files[0].Name)
	require.Equal(t, "wrapper_google.type.rs", files[1].Name)

	calendar := string(files[0].Content)
	require.Contains(t, calendar, "#[inline] pub fn get_day(&self) -> &super::google::r#type::Date { match self.day.as_ref() {")
	require.Contains(t, calendar, "None => super::google::r#type::Date::default_ref(),")
	require.NotContains(t, calendar, "super::google::type::")
}

func TestGenerateOptions(t *testing.T) {
	t.Parallel()
	set := resolve(t, map[string]string{"root.proto": rootProto}, "root.proto")

	t.Run("none", func(t *testing.T) {
		t.Parallel()
		files := generate(t, set, OptNone)
		require.Len(t, files, 1)
		require.Equal(t, "wrapper__.rs", files[0].Name)
		content := string(files[0].Content)
		require.Contains(t, content, "static ref INSTANCE: Root = Root::default();")
		require.NotContains(t, content, "new_()")
		require.NotContains(t, content, "::protobuf::Message for")
		require.NotContains(t, content, "get_value")
	})

	t.Run("getters only", func(t *testing.T) {
		t.Parallel()
		options, err := ParseOptions([]string{"trivial_get"})
		require.NoError(t, err)
		content := string(generate(t, set, options)[0].Content)
		require.Contains(t, content, "#[inline] pub fn get_value(&self) -> i32 { self.value }")
		require.NotContains(t, content, "set_value")
	})
}

func TestGenerateIsDeterministic(t *testing.T) {
	t.Parallel()
	set := resolve(t, map[string]string{"metapb.proto": metapbProto, "kvrpcpb.proto": kvrpcpbProto}, "kvrpcpb.proto", "metapb.proto")
	first := generate(t, set, OptAll)
	second := generate(t, set, OptAll)
	require.Equal(t, first, second)
}

func TestParseOptions(t *testing.T) {
	t.Parallel()
	options, err := ParseOptions(nil)
	require.NoError(t, err)
	require.Equal(t, OptAll, options)

	options, err = ParseOptions([]string{"has", "Clear"})
	require.NoError(t, err)
	require.True(t, options.Has(OptHas|OptClear))
	require.False(t, options.Has(OptTake))

	options, err = ParseOptions([]string{"none"})
	require.NoError(t, err)
	require.Equal(t, OptNone, options)

	_, err = ParseOptions([]string{"getters"})
	require.Error(t, err)
}
