package protobuild

import (
	"fmt"
	"path/filepath"

	"github.com/hashicorp/go-multierror"

	"github.com/malonaz/protobuild/go/protobuild/modfile"
	"github.com/malonaz/protobuild/go/protobuild/postprocess"
	"github.com/malonaz/protobuild/go/protobuild/types"
	"github.com/malonaz/protobuild/go/protobuild/wrapper"
)

// Validate reports every problem of request at once. It does not modify request.
func Validate(request *types.Request) error {
	var errs *multierror.Error
	if len(request.Files) == 0 {
		errs = multierror.Append(errs, fmt.Errorf("no proto files"))
	}
	seen := map[string]struct{}{}
	for _, file := range request.Files {
		if _, ok := seen[file]; ok {
			errs = multierror.Append(errs, fmt.Errorf("proto file %s given twice", file))
		}
		seen[file] = struct{}{}
	}
	if len(request.Includes) == 0 {
		errs = multierror.Append(errs, fmt.Errorf("no include directories"))
	}
	if request.OutDir == "" {
		errs = multierror.Append(errs, fmt.Errorf("no output directory"))
	}

	switch request.Backend {
	case types.BackendNative, types.BackendProst:
	case types.BackendUnspecified:
		errs = multierror.Append(errs, fmt.Errorf("no backend"))
	default:
		errs = multierror.Append(errs, fmt.Errorf("unknown backend %q", request.Backend))
	}
	switch request.Compiler {
	case "", types.CompilerBuiltin, types.CompilerProtoc:
	default:
		errs = multierror.Append(errs, fmt.Errorf("unknown compiler %q", request.Compiler))
	}

	if _, err := postprocess.New(request.Backend, request.Rules, request.Derives); err != nil {
		errs = multierror.Append(errs, err)
	}
	if _, err := wrapper.ParseOptions(request.WrapperOptions); err != nil {
		errs = multierror.Append(errs, err)
	}

	outputs := map[string]string{modfile.Name: "module index"}
	for _, output := range []struct{ what, name string }{
		{"descriptor set output", request.DescriptorSetOut},
		{"build file", request.BuildFile},
	} {
		if output.name == "" {
			continue
		}
		if !filepath.IsLocal(output.name) {
			errs = multierror.Append(errs, fmt.Errorf("%s %q must be relative to the output directory", output.what, output.name))
			continue
		}
		if other, ok := outputs[filepath.ToSlash(filepath.Clean(output.name))]; ok {
			errs = multierror.Append(errs, fmt.Errorf("%s %q collides with the %s", output.what, output.name, other))
		}
		outputs[filepath.ToSlash(filepath.Clean(output.name))] = output.what
	}

	if err := errs.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	return nil
}
