package compiler

import (
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/chazu/lslc/pkg/image"
	"github.com/chazu/lslc/pkg/ir"
	"github.com/chazu/lslc/pkg/library"
)

// Backend turns a compiled program into an output artifact.
type Backend interface {
	Name() string
	Emit(prog *ir.Program) ([]byte, error)
}

// Options configures a compile.
type Options struct {
	Library     *library.Table // nil selects library.Default()
	Privileged  bool
	Diagnostics io.Writer // receives one line per diagnostic; may be nil
	Memory      int       // image size for the default backend; 0 selects image.DefaultMemory
	Backend     Backend   // nil selects the bytecode image backend
}

// Result is the outcome of a successful compile.
type Result struct {
	ID          uuid.UUID
	Program     *ir.Program
	Output      []byte
	Backend     string
	Diagnostics []Diagnostic
	Warnings    int
}

// Analyze runs the scope, type, prune and resource passes.
func Analyze(ctx *CompilationContext, script *Script) {
	DeclareNames(ctx, script)
	ResolveNames(ctx, script)
	CheckTypes(ctx, script)
	Prune(ctx, script)
	AllocateResources(ctx, script)
}

// Compile runs every pass over script and hands the program to the backend.
// When any error is reported the returned error is a *FailedError.
func Compile(script *Script, opts Options) (*Result, error) {
	if script == nil {
		return nil, errors.New("compile: nil script")
	}
	lib := opts.Library
	if lib == nil {
		lib = library.Default()
	}
	backend := opts.Backend
	if backend == nil {
		backend = image.Backend{Memory: opts.Memory}
	}

	ctx := NewContext(lib, opts.Privileged, opts.Diagnostics)
	log.Debugf("%s: compiling %d globals, %d states", ctx.ID, len(script.Globals), len(script.States))

	Analyze(ctx, script)
	prog := Emit(ctx, script)

	var out []byte
	if !ctx.Failed() {
		var err error
		out, err = backend.Emit(prog)
		switch {
		case errors.Is(err, image.ErrOutOfMemory):
			ctx.errorAt(script, OutOfMemory, "%v", err)
		case err != nil:
			return nil, fmt.Errorf("%s backend: %w", backend.Name(), err)
		}
	}

	log.Debugf("%s: %d errors, %d warnings", ctx.ID, ctx.ErrorCount(), ctx.WarningCount())
	if ctx.Failed() {
		return nil, &FailedError{Errors: ctx.ErrorCount(), Diagnostics: ctx.Diagnostics()}
	}
	return &Result{
		ID:          ctx.ID,
		Program:     prog,
		Output:      out,
		Backend:     backend.Name(),
		Diagnostics: ctx.Diagnostics(),
		Warnings:    ctx.WarningCount(),
	}, nil
}
