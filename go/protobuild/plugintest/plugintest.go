// Package plugintest provides in-process stand-ins for the Rust protoc plugins.
// Their output mimics the file layout and item shapes of the real generators.
package plugintest

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/pluginpb"

	"github.com/malonaz/protobuild/go/protobuild/plugin"
	"github.com/malonaz/protobuild/go/protobuild/rustname"
)

// Handlers returns every fake plugin, keyed by the name of the real plugin binary.
func Handlers() map[string]plugin.Handler {
	return map[string]plugin.Handler{
		"protoc-gen-rust":  plugin.HandlerFunc(Native),
		"protoc-gen-prost": plugin.HandlerFunc(Prost),
		"grpc_rust_plugin": plugin.HandlerFunc(NativeGRPC),
		"protoc-gen-tonic": plugin.HandlerFunc(Tonic),
	}
}

// Failing returns a handler reporting message as a plugin error.
func Failing(message string) plugin.Handler {
	return plugin.HandlerFunc(func(context.Context, *pluginpb.CodeGeneratorRequest) (*pluginpb.CodeGeneratorResponse, error) {
		return &pluginpb.CodeGeneratorResponse{Error: proto.String(message)}, nil
	})
}

func filesToGenerate(request *pluginpb.CodeGeneratorRequest) []*descriptorpb.FileDescriptorProto {
	var files []*descriptorpb.FileDescriptorProto
	for _, file := range request.GetProtoFile() {
		if slices.Contains(request.GetFileToGenerate(), file.GetName()) {
			files = append(files, file)
		}
	}
	return files
}

// Native generates one `<stem>.rs` per proto file.
func Native(_ context.Context, request *pluginpb.CodeGeneratorRequest) (*pluginpb.CodeGeneratorResponse, error) {
	response := &pluginpb.CodeGeneratorResponse{}
	for _, file := range filesToGenerate(request) {
		var b strings.Builder
		fmt.Fprintf(&b, "// This file is generated. Do not edit\n// @generated from %s\n", file.GetName())
		for _, message := range file.GetMessageType() {
			fmt.Fprintf(&b, "\n#[derive(PartialEq,Clone,Default)]\npub struct %s {\n", message.GetName())
			for _, field := range message.GetField() {
				fmt.Fprintf(&b, "    pub %s: %s,\n", rustname.FieldIdent(field.GetName()), nativeType(field))
			}
			b.WriteString("}\n")
			fmt.Fprintf(&b, "\nimpl ::protobuf::Message for %s {\n    fn merge_from(&mut self, is: &mut ::protobuf::CodedInputStream<'_>) -> ::protobuf::ProtobufResult<()> {\n        while !is.eof()? {\n            let (field_number, wire_type) = is.read_tag_unpack()?;\n            match field_number {\n", message.GetName())
			for _, field := range message.GetField() {
				if field.GetType() == descriptorpb.FieldDescriptorProto_TYPE_ENUM {
					fmt.Fprintf(&b, "                %d => {\n                    ::protobuf::rt::read_proto3_enum_with_unknown_fields_into(wire_type, is, &mut self.%s, %d, &mut self.unknown_fields)?\n                },\n", field.GetNumber(), rustname.FieldIdent(field.GetName()), field.GetNumber())
				}
			}
			b.WriteString("                _ => {}\n            };\n        }\n        ::std::result::Result::Ok(())\n    }\n}\n")
		}
		for _, enum := range file.GetEnumType() {
			fmt.Fprintf(&b, "\n#[derive(Clone,PartialEq,Eq,Debug,Hash)]\npub enum %s {\n", enum.GetName())
			for _, value := range enum.GetValue() {
				fmt.Fprintf(&b, "    %s = %d,\n", value.GetName(), value.GetNumber())
			}
			b.WriteString("}\n")
		}
		response.File = append(response.File, &pluginpb.CodeGeneratorResponse_File{
			Name:    proto.String(rustname.ModuleFromFile(file.GetName()) + ".rs"),
			Content: proto.String(b.String()),
		})
	}
	return response, nil
}

func nativeType(field *descriptorpb.FieldDescriptorProto) string {
	switch field.GetType() {
	case descriptorpb.FieldDescriptorProto_TYPE_STRING:
		return "::std::string::String"
	case descriptorpb.FieldDescriptorProto_TYPE_ENUM, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE:
		parts := strings.Split(field.GetTypeName(), ".")
		return parts[len(parts)-1]
	default:
		return "u64"
	}
}

// NativeGRPC generates `<stem>_grpc.rs` for proto files declaring services.
func NativeGRPC(_ context.Context, request *pluginpb.CodeGeneratorRequest) (*pluginpb.CodeGeneratorResponse, error) {
	response := &pluginpb.CodeGeneratorResponse{}
	for _, file := range filesToGenerate(request) {
		if len(file.GetService()) == 0 {
			continue
		}
		var b strings.Builder
		b.WriteString("// This file is generated. Do not edit\n")
		for _, service := range file.GetService() {
			fmt.Fprintf(&b, "\n#[derive(Clone)]\npub struct %sClient {\n    client: ::grpcio::Client,\n}\n", service.GetName())
		}
		response.File = append(response.File, &pluginpb.CodeGeneratorResponse_File{
			Name:    proto.String(rustname.ModuleFromFile(file.GetName()) + "_grpc.rs"),
			Content: proto.String(b.String()),
		})
	}
	return response, nil
}

func groupByPackage(request *pluginpb.CodeGeneratorRequest) ([]string, map[string][]*descriptorpb.FileDescriptorProto) {
	var packages []string
	packageToFiles := map[string][]*descriptorpb.FileDescriptorProto{}
	for _, file := range filesToGenerate(request) {
		if _, ok := packageToFiles[file.GetPackage()]; !ok {
			packages = append(packages, file.GetPackage())
		}
		packageToFiles[file.GetPackage()] = append(packageToFiles[file.GetPackage()], file)
	}
	slices.Sort(packages)
	return packages, packageToFiles
}

// Prost generates one `<package>.rs` per proto package.
func Prost(_ context.Context, request *pluginpb.CodeGeneratorRequest) (*pluginpb.CodeGeneratorResponse, error) {
	response := &pluginpb.CodeGeneratorResponse{}
	packages, packageToFiles := groupByPackage(request)
	for _, pkg := range packages {
		var b strings.Builder
		b.WriteString("// @generated\n")
		for _, file := range packageToFiles[pkg] {
			for _, message := range file.GetMessageType() {
				fmt.Fprintf(&b, "#[allow(clippy::derive_partial_eq_without_eq)]\n#[derive(Clone, PartialEq, ::prost::Message)]\npub struct %s {\n", rustname.UpperCamel(message.GetName()))
				for _, field := range message.GetField() {
					fmt.Fprintf(&b, "    #[prost(%s, tag=\"%d\")]\n    pub %s: %s,\n", strings.ToLower(strings.TrimPrefix(field.GetType().String(), "TYPE_")), field.GetNumber(), rustname.FieldIdent(field.GetName()), nativeType(field))
				}
				b.WriteString("}\n")
			}
			for _, enum := range file.GetEnumType() {
				fmt.Fprintf(&b, "#[derive(Clone, Copy, Debug, PartialEq, Eq, Hash, PartialOrd, Ord, ::prost::Enumeration)]\n#[repr(i32)]\npub enum %s {\n", rustname.UpperCamel(enum.GetName()))
				for _, value := range enum.GetValue() {
					fmt.Fprintf(&b, "    %s = %d,\n", rustname.EnumVariant(enum.GetName(), value.GetName()), value.GetNumber())
				}
				b.WriteString("}\n")
			}
		}
		response.File = append(response.File, &pluginpb.CodeGeneratorResponse_File{
			Name:    proto.String(rustname.PackageFile(pkg)),
			Content: proto.String(b.String()),
		})
	}
	return response, nil
}

// Tonic generates `<package>.tonic.rs` for packages declaring services.
func Tonic(_ context.Context, request *pluginpb.CodeGeneratorRequest) (*pluginpb.CodeGeneratorResponse, error) {
	response := &pluginpb.CodeGeneratorResponse{}
	packages, packageToFiles := groupByPackage(request)
	for _, pkg := range packages {
		var b strings.Builder
		for _, file := range packageToFiles[pkg] {
			for _, service := range file.GetService() {
				fmt.Fprintf(&b, "/// Generated client implementations.\npub mod %s_client {\n    #[derive(Debug, Clone)]\n    pub struct %sClient<T> {\n        inner: tonic::client::Grpc<T>,\n    }\n}\n", rustname.Snake(service.GetName()), service.GetName())
			}
		}
		if b.Len() == 0 {
			continue
		}
		name := pkg + ".tonic.rs"
		if pkg == "" {
			name = "_.tonic.rs"
		}
		response.File = append(response.File, &pluginpb.CodeGeneratorResponse_File{
			Name:    proto.String(name),
			Content: proto.String("// @generated\n" + b.String()),
		})
	}
	return response, nil
}
