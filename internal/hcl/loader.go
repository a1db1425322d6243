package hcl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/kernforge/internal/config"
	"github.com/vk/kernforge/internal/ctxlog"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct {
	environ []string
}

// NewLoader creates a loader whose `env` object is built from environ
// (os.Environ() format).
func NewLoader(environ []string) *Loader {
	return &Loader{environ: environ}
}

// Load parses the project file at path and translates it into a model
// layered over config.Default.
func (l *Loader) Load(ctx context.Context, path string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path", path)

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve project file: %w", err)
	}
	src, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &config.Error{Path: path, Problems: []string{"project file not found"}}
		}
		return nil, fmt.Errorf("read project file: %w", err)
	}

	model, err := l.Parse(ctx, src, abs)
	if err != nil {
		return nil, err
	}
	logger.Debug("HCL loading complete.", "name", model.Name, "sections", len(model.Link.Sections))
	return model, nil
}

// Parse decodes project source as if it were read from filename.
func (l *Loader) Parse(ctx context.Context, src []byte, filename string) (*config.Model, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, diagError(filename, diags)
	}

	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, l.evalContext(), &root); diags.HasErrors() {
		return nil, diagError(filename, diags)
	}

	model := config.Default()
	model.File = filename
	model.Root = filepath.Dir(filename)
	if err := l.translate(ctx, &root, model); err != nil {
		var cerr *config.Error
		if errors.As(err, &cerr) && cerr.Path == "" {
			cerr.Path = filename
		}
		return nil, err
	}
	return model, nil
}

// evalContext exposes the injected environment as the `env` object.
func (l *Loader) evalContext() *hcl.EvalContext {
	vars := make(map[string]cty.Value)
	for _, kv := range l.environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !hclsyntax.ValidIdentifier(k) {
			continue
		}
		vars[k] = cty.StringVal(v)
	}
	env := cty.EmptyObjectVal
	if len(vars) > 0 {
		env = cty.ObjectVal(vars)
	}
	return &hcl.EvalContext{Variables: map[string]cty.Value{"env": env}}
}

// diagError converts HCL diagnostics into a configuration error.
func diagError(filename string, diags hcl.Diagnostics) error {
	cerr := &config.Error{Path: filename}
	for _, d := range diags.Errs() {
		cerr.Problems = append(cerr.Problems, d.Error())
	}
	return cerr
}
