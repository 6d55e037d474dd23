// Package modfile generates the `mod.rs` index of the output directory.
package modfile

import (
	"fmt"
	"slices"
	"strings"

	"github.com/malonaz/protobuild/go/protobuild/rustname"
	"github.com/malonaz/protobuild/go/protobuild/template"
	"github.com/malonaz/protobuild/go/protobuild/types"
)

// Name of the generated index.
const Name = "mod.rs"

// Generator renders module indexes.
type Generator struct {
	templateEngine *template.Engine
}

// New returns a new Generator.
func New(templateEngine *template.Engine) *Generator {
	return &Generator{templateEngine: templateEngine}
}

// Generate returns the index of files for backend.
func (g *Generator) Generate(backend types.Backend, files []*types.GeneratedFile) (*types.GeneratedFile, error) {
	var (
		content string
		err     error
	)
	switch backend {
	case types.BackendNative:
		content, err = g.flat(files)
	case types.BackendProst:
		content, err = g.nested(files)
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
	if err != nil {
		return nil, err
	}
	return &types.GeneratedFile{Name: Name, Content: []byte(content), Kind: types.KindModule}, nil
}

// Every Rust source gets its own module.
func (g *Generator) flat(files []*types.GeneratedFile) (string, error) {
	var modules []string
	for _, file := range files {
		if !file.IsRust() || file.Name == Name {
			continue
		}
		modules = append(modules, file.Stem())
	}
	slices.Sort(modules)
	return g.templateEngine.EvaluateTemplate("mod.flat", map[string]any{"Modules": modules})
}

type node struct {
	Name     string
	Depth    int
	Includes []string
	Children []*node

	nameToChild map[string]*node
}

func (n *node) child(name string) *node {
	if child, ok := n.nameToChild[name]; ok {
		return child
	}
	child := &node{Name: name, Depth: n.Depth + 1, nameToChild: map[string]*node{}}
	n.nameToChild[name] = child
	n.Children = append(n.Children, child)
	return child
}

func (n *node) sort() {
	slices.SortFunc(n.Children, func(a, b *node) int { return strings.Compare(a.Name, b.Name) })
	for _, child := range n.Children {
		child.sort()
	}
}

// Packages become nested modules including the message, wrapper and service files of the package.
func (g *Generator) nested(files []*types.GeneratedFile) (string, error) {
	nameToFile := map[string]*types.GeneratedFile{}
	var packageFiles []string
	for _, file := range files {
		nameToFile[file.Name] = file
		if file.Kind == types.KindCodec && file.IsRust() {
			packageFiles = append(packageFiles, file.Name)
		}
	}
	slices.Sort(packageFiles)

	root := &node{nameToChild: map[string]*node{}}
	for _, packageFile := range packageFiles {
		pkg := strings.TrimSuffix(packageFile, ".rs")
		current := root
		if pkg != "_" {
			for _, segment := range strings.Split(pkg, ".") {
				current = current.child(rustname.Escape(rustname.Snake(segment)))
			}
		}
		current.Includes = append(current.Includes, packageFile)
		for _, companion := range []string{"wrapper_" + packageFile, pkg + ".tonic.rs"} {
			if _, ok := nameToFile[companion]; ok {
				current.Includes = append(current.Includes, companion)
			}
		}
	}
	root.sort()
	return g.templateEngine.EvaluateTemplate("mod.nested", root)
}
