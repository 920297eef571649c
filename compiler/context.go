package compiler

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/chazu/lslc/pkg/ir"
	"github.com/chazu/lslc/pkg/library"
)

var log = commonlog.GetLogger("lslc.compiler")

// CompilationContext carries the mutable state of one compile: diagnostics and
// their counters, the label counter and the string intern table. A context must
// not be shared between concurrent compiles.
type CompilationContext struct {
	ID         uuid.UUID
	Privileged bool
	Library    *library.Table

	sink        io.Writer
	diagnostics []Diagnostic
	errors      int
	warnings    int
	nextLabel   ir.Label
	strings     map[string]string
}

// NewContext creates a context. lib may be nil for an empty library; sink may be
// nil to only retain diagnostics.
func NewContext(lib *library.Table, privileged bool, sink io.Writer) *CompilationContext {
	if lib == nil {
		lib = library.NewTable()
	}
	c := &CompilationContext{
		Privileged: privileged,
		Library:    lib,
		sink:       sink,
	}
	c.Reset()
	return c
}

// Reset clears all per-compile state and assigns a fresh ID.
func (c *CompilationContext) Reset() {
	c.ID = uuid.New()
	c.diagnostics = nil
	c.errors = 0
	c.warnings = 0
	c.nextLabel = ir.NoLabel
	c.strings = make(map[string]string)
}

// ErrorCount returns the number of errors reported so far.
func (c *CompilationContext) ErrorCount() int { return c.errors }

// WarningCount returns the number of warnings reported so far.
func (c *CompilationContext) WarningCount() int { return c.warnings }

// Diagnostics returns everything reported so far, in order.
func (c *CompilationContext) Diagnostics() []Diagnostic { return c.diagnostics }

// Failed reports whether any error has been reported.
func (c *CompilationContext) Failed() bool { return c.errors > 0 }

// NewLabel allocates a branch label unique within this compile.
func (c *CompilationContext) NewLabel() ir.Label {
	c.nextLabel++
	return c.nextLabel
}

// Intern returns the canonical copy of s.
func (c *CompilationContext) Intern(s string) string {
	if v, ok := c.strings[s]; ok {
		return v
	}
	c.strings[s] = s
	return s
}

// errorAt records an error at node.
func (c *CompilationContext) errorAt(node Node, kind ErrorKind, format string, args ...interface{}) {
	c.report(node, kind, SeverityError, fmt.Sprintf(format, args...))
}

// warnAt records a warning at node.
func (c *CompilationContext) warnAt(node Node, kind ErrorKind, format string, args ...interface{}) {
	c.report(node, kind, SeverityWarning, fmt.Sprintf(format, args...))
}

func (c *CompilationContext) report(node Node, kind ErrorKind, sev Severity, msg string) {
	var pos Position
	if node != nil {
		pos = node.Span().Start
	}
	d := Diagnostic{
		Line:     pos.Line,
		Column:   pos.Column,
		Kind:     kind,
		Severity: sev,
		Message:  msg,
	}
	c.diagnostics = append(c.diagnostics, d)
	if sev == SeverityWarning {
		c.warnings++
	} else {
		c.errors++
	}
	if c.sink != nil {
		fmt.Fprintln(c.sink, d)
	}
	log.Debugf("%s: %s", c.ID, d)
}
