package jsonnet

import (
	"fmt"
	"path/filepath"

	"github.com/google/go-jsonnet"
)

// EvaluateFile evaluates the jsonnet file at path and returns the resulting JSON.
// Imports are resolved relative to the file's directory first, then to jpaths.
// extVars are exposed to the program through std.extVar.
func EvaluateFile(path string, extVars map[string]string, jpaths ...string) ([]byte, error) {
	vm := newVM(extVars, append([]string{filepath.Dir(path)}, jpaths...))
	str, err := vm.EvaluateFile(path)
	if err != nil {
		return nil, fmt.Errorf("evaluating %s: %w", path, err)
	}
	return []byte(str), nil
}

// EvaluateSnippet evaluates an anonymous jsonnet snippet.
func EvaluateSnippet(snippet string, extVars map[string]string) ([]byte, error) {
	vm := newVM(extVars, nil)
	str, err := vm.EvaluateAnonymousSnippet("anonymous.snippet", snippet)
	if err != nil {
		return nil, err
	}
	return []byte(str), nil
}

func newVM(extVars map[string]string, jpaths []string) *jsonnet.VM {
	vm := jsonnet.MakeVM()
	vm.Importer(&jsonnet.FileImporter{JPaths: jpaths})
	for key, value := range extVars {
		vm.ExtVar(key, value)
	}
	return vm
}
