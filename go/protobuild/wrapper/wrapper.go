// Package wrapper generates rust-protobuf style accessors for prost messages.
package wrapper

import (
	"fmt"
	"log/slog"
	"slices"

	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/malonaz/protobuild/go/protobuild/descriptor"
	"github.com/malonaz/protobuild/go/protobuild/rustname"
	"github.com/malonaz/protobuild/go/protobuild/template"
	"github.com/malonaz/protobuild/go/protobuild/types"
)

const wrapperPrefix = "wrapper_"

// FileName returns the name of the wrapper file of a proto package.
func FileName(pkg string) string {
	return wrapperPrefix + rustname.PackageFile(pkg)
}

// Generator renders wrapper files.
type Generator struct {
	log            *slog.Logger
	templateEngine *template.Engine
	options        Options
}

// New returns a new Generator.
func New(templateEngine *template.Engine, options Options) *Generator {
	return &Generator{
		log:            slog.Default(),
		templateEngine: templateEngine,
		options:        options,
	}
}

// WithLogger sets this generator's logger.
func (g *Generator) WithLogger(logger *slog.Logger) *Generator {
	g.log = logger
	return g
}

type messageData struct {
	Path    string
	Methods []string
}

type enumData struct {
	Path     string
	Variants []string
}

type fileData struct {
	Messages     []*messageData
	Enums        []*enumData
	MessageTrait bool
}

// Generate returns one wrapper file per package of the files to generate.
func (g *Generator) Generate(set *descriptor.Set) ([]*types.GeneratedFile, error) {
	registry, err := set.Registry()
	if err != nil {
		return nil, err
	}

	var packages []string
	packageToFiles := map[string][]protoreflect.FileDescriptor{}
	sources := slices.Clone(set.ToGenerate)
	slices.Sort(sources)
	for _, source := range sources {
		file, err := registry.FindFileByPath(source)
		if err != nil {
			return nil, fmt.Errorf("finding %s: %w", source, err)
		}
		pkg := string(file.Package())
		if _, ok := packageToFiles[pkg]; !ok {
			packages = append(packages, pkg)
		}
		packageToFiles[pkg] = append(packageToFiles[pkg], file)
	}
	slices.Sort(packages)

	generatedFiles := make([]*types.GeneratedFile, 0, len(packages))
	for _, pkg := range packages {
		data := &fileData{MessageTrait: g.options.Has(OptMessage)}
		var fileSources []string
		for _, file := range packageToFiles[pkg] {
			g.collectMessages(data, typeResolver{pkg: pkg}, file.Messages())
			g.collectEnums(data, typeResolver{pkg: pkg}, file.Enums(), file.Messages())
			fileSources = append(fileSources, file.Path())
		}
		content, err := g.templateEngine.EvaluateTemplate("wrapper", data)
		if err != nil {
			return nil, fmt.Errorf("generating wrapper of package %q: %w", pkg, err)
		}
		g.log.Debug("generated wrapper", "package", pkg, "messages", len(data.Messages), "enums", len(data.Enums))
		generatedFiles = append(generatedFiles, &types.GeneratedFile{
			Name:    FileName(pkg),
			Content: []byte(content),
			Kind:    types.KindWrapper,
			Sources: fileSources,
		})
	}
	return generatedFiles, nil
}

func (g *Generator) collectMessages(data *fileData, resolver typeResolver, messages protoreflect.MessageDescriptors) {
	for i := 0; i < messages.Len(); i++ {
		message := messages.Get(i)
		// Prost represents map entries as HashMaps.
		if message.IsMapEntry() {
			continue
		}
		data.Messages = append(data.Messages, g.messageData(resolver, message))
		g.collectMessages(data, resolver, message.Messages())
	}
}

func (g *Generator) collectEnums(data *fileData, resolver typeResolver, enums protoreflect.EnumDescriptors, messages protoreflect.MessageDescriptors) {
	for i := 0; i < enums.Len(); i++ {
		enum := enums.Get(i)
		path := resolver.path(enum)
		item := &enumData{Path: path}
		// Prost drops aliases.
		seen := map[protoreflect.EnumNumber]struct{}{}
		values := enum.Values()
		for j := 0; j < values.Len(); j++ {
			value := values.Get(j)
			if _, ok := seen[value.Number()]; ok {
				continue
			}
			seen[value.Number()] = struct{}{}
			item.Variants = append(item.Variants, rustname.EnumVariant(string(enum.Name()), string(value.Name())))
		}
		data.Enums = append(data.Enums, item)
	}
	for i := 0; i < messages.Len(); i++ {
		message := messages.Get(i)
		g.collectEnums(data, resolver, message.Enums(), message.Messages())
	}
}

func (g *Generator) messageData(resolver typeResolver, message protoreflect.MessageDescriptor) *messageData {
	path := resolver.path(message)
	item := &messageData{Path: path}
	if g.options.Has(OptNew) {
		item.Methods = append(item.Methods, fmt.Sprintf("pub fn new_() -> %s { ::std::default::Default::default() }", path))
	}
	if g.options.Has(OptMessage) {
		item.Methods = append(item.Methods, "#[inline] pub fn default_ref() -> &'static Self { ::protobuf::Message::default_instance() }")
	} else {
		item.Methods = append(item.Methods, fmt.Sprintf("#[inline] pub fn default_ref() -> &'static Self {\n"+
			"    ::lazy_static::lazy_static! {\n"+
			"        static ref INSTANCE: %s = %[1]s::default();\n"+
			"    }\n"+
			"    &*INSTANCE\n"+
			"}", path))
	}
	fields := message.Fields()
	for i := 0; i < fields.Len(); i++ {
		methods, ok := resolver.newFieldMethods(fields.Get(i))
		if !ok {
			continue
		}
		item.Methods = append(item.Methods, methods.methods(g.options)...)
	}
	return item
}
