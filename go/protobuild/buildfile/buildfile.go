// Package buildfile generates a BUILD file exposing the generated sources.
package buildfile

import (
	"fmt"
	"slices"

	"github.com/bazelbuild/buildtools/build"

	"github.com/malonaz/protobuild/go/protobuild/template"
	"github.com/malonaz/protobuild/go/protobuild/types"
)

// DefaultRuleName names the filegroup when none is configured.
const DefaultRuleName = "protos"

// Generator renders BUILD files.
type Generator struct {
	templateEngine *template.Engine
}

// New returns a new Generator.
func New(templateEngine *template.Engine) *Generator {
	return &Generator{templateEngine: templateEngine}
}

// Generate returns a BUILD file named name, holding a filegroup of every file.
func (g *Generator) Generate(name, ruleName string, files []*types.GeneratedFile) (*types.GeneratedFile, error) {
	if ruleName == "" {
		ruleName = DefaultRuleName
	}
	srcs := make([]string, 0, len(files))
	for _, file := range files {
		if file.Name == name {
			continue
		}
		srcs = append(srcs, file.Name)
	}
	slices.Sort(srcs)

	content, err := g.templateEngine.EvaluateTemplate("build", map[string]any{"Name": ruleName, "Srcs": srcs})
	if err != nil {
		return nil, err
	}
	parsed, err := build.ParseBuild(name, []byte(content))
	if err != nil {
		return nil, fmt.Errorf("parsing generated %s: %w", name, err)
	}
	return &types.GeneratedFile{Name: name, Content: build.Format(parsed), Kind: types.KindBuild}, nil
}
