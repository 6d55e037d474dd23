package postprocess

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/malonaz/protobuild/go/protobuild/types"
)

// NotIdempotentError is returned when applying a pass twice yields a different result than applying it once.
type NotIdempotentError struct {
	Pass string
	File string
}

// Error implements the error interface.
func (e *NotIdempotentError) Error() string {
	return fmt.Sprintf("pass %q is not idempotent on %s", e.Pass, e.File)
}

// Pipeline applies passes, in order, to generated files.
type Pipeline struct {
	log    *slog.Logger
	passes []Pass
}

// New compiles the builtin rules of backend, followed by the given rules and derives.
func New(backend types.Backend, rules []types.Rule, derives []types.Derive) (*Pipeline, error) {
	p := &Pipeline{log: slog.Default()}
	for _, rule := range append(BuiltinRules(backend), rules...) {
		compiled, err := CompileRule(rule)
		if err != nil {
			return nil, err
		}
		p.passes = append(p.passes, compiled)
	}
	for _, derive := range derives {
		compiled, err := CompileDerive(derive)
		if err != nil {
			return nil, err
		}
		p.passes = append(p.passes, compiled)
	}
	return p, nil
}

// WithLogger sets this pipeline's logger.
func (p *Pipeline) WithLogger(logger *slog.Logger) *Pipeline {
	p.log = logger
	return p
}

// Passes returns the compiled passes.
func (p *Pipeline) Passes() []Pass {
	return p.passes
}

// Process rewrites the content of every file in place.
// Files are independent, so they are processed concurrently.
func (p *Pipeline) Process(ctx context.Context, files []*types.GeneratedFile) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for _, file := range files {
		file := file
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return p.processFile(file)
		})
	}
	return eg.Wait()
}

func (p *Pipeline) processFile(file *types.GeneratedFile) error {
	text := string(file.Content)
	for _, pass := range p.passes {
		if !pass.Applies(file) {
			continue
		}
		processed := pass.Apply(text)
		if pass.Apply(processed) != processed {
			return &NotIdempotentError{Pass: pass.Name(), File: file.Name}
		}
		if processed != text {
			p.log.Debug("post-processed file", "file", file.Name, "pass", pass.Name())
		}
		text = processed
	}
	file.Content = []byte(text)
	return nil
}
