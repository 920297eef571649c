package compiler

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/exp/maps"

	"github.com/chazu/lslc/pkg/ir"
	"github.com/chazu/lslc/pkg/lsl"
)

// ErrDuplicateName is returned by Scope.Declare when the innermost scope already
// holds the name.
var ErrDuplicateName = errors.New("duplicate name")

// SymbolKind classifies a scope entry.
type SymbolKind int

const (
	SymGlobal SymbolKind = iota
	SymLocal
	SymFunction
	SymLabel
	SymState
	SymEvent
	SymLibrary
)

var symbolKindNames = [...]string{
	SymGlobal:   "global",
	SymLocal:    "local",
	SymFunction: "function",
	SymLabel:    "label",
	SymState:    "state",
	SymEvent:    "event",
	SymLibrary:  "library",
}

func (k SymbolKind) String() string {
	if int(k) < len(symbolKindNames) {
		return symbolKindNames[k]
	}
	return fmt.Sprintf("SymbolKind(%d)", int(k))
}

// matches treats functions and library functions as one kind for call
// resolution, and globals and locals as one kind for variable resolution.
func (k SymbolKind) matches(want SymbolKind) bool {
	switch want {
	case SymFunction, SymLibrary:
		return k == SymFunction || k == SymLibrary
	case SymGlobal, SymLocal:
		return k == SymGlobal || k == SymLocal
	}
	return k == want
}

// Symbol is a scope entry. Offset and Size are set by the resource pass.
type Symbol struct {
	Name string
	Kind SymbolKind
	Type lsl.Type // variable type or function return type

	Offset int // data offset from GVR (globals) or BP (locals, params)
	Size   int

	Params []lsl.Type // functions, library functions, events
	Locals []lsl.Type // functions, events; declaration order

	Index    int // function, state or library index
	Label    ir.Label
	Const    *ir.Value // folded initializer of a global
	Declared Position
}

// IsVariable reports whether the entry names storage.
func (s *Symbol) IsVariable() bool {
	return s.Kind == SymGlobal || s.Kind == SymLocal
}

// Scope is one frame of the symbol table.
type Scope struct {
	parent  *Scope
	symbols map[string]*Symbol
}

// NewScope creates a scope nested in parent (nil for the global scope).
func NewScope(parent *Scope) *Scope {
	return &Scope{parent: parent, symbols: make(map[string]*Symbol)}
}

// Parent returns the enclosing scope.
func (s *Scope) Parent() *Scope { return s.parent }

// Declare adds a name to this scope. Only this scope is checked for
// duplicates, so inner declarations shadow outer ones.
func (s *Scope) Declare(name string, kind SymbolKind, t lsl.Type) (*Symbol, error) {
	if _, exists := s.symbols[name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateName, name)
	}
	sym := &Symbol{Name: name, Kind: kind, Type: t, Size: t.Size()}
	s.symbols[name] = sym
	return sym, nil
}

// Lookup walks outward and returns the first entry with the name.
func (s *Scope) Lookup(name string) (*Symbol, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if sym, ok := sc.symbols[name]; ok {
			return sym, true
		}
	}
	return nil, false
}

// LookupKind walks outward and returns the first entry with the name whose kind
// is compatible with kind.
func (s *Scope) LookupKind(name string, kind SymbolKind) (*Symbol, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if sym, ok := sc.symbols[name]; ok && sym.Kind.matches(kind) {
			return sym, true
		}
	}
	return nil, false
}

// Local returns the entry declared directly in this scope.
func (s *Scope) Local(name string) (*Symbol, bool) {
	sym, ok := s.symbols[name]
	return sym, ok
}

// Len returns the number of names declared directly in this scope.
func (s *Scope) Len() int { return len(s.symbols) }

// Dump lists this scope's entries sorted by name.
func (s *Scope) Dump() string {
	var sb strings.Builder
	s.dump(&sb, "", false)
	return sb.String()
}

func (s *Scope) dump(sb *strings.Builder, indent string, skipLibrary bool) {
	names := maps.Keys(s.symbols)
	sort.Strings(names)

	for _, name := range names {
		sym := s.symbols[name]
		if skipLibrary && sym.Kind == SymLibrary {
			continue
		}
		sb.WriteString(indent)
		fmt.Fprintf(sb, "%-8s %-24s %-8s", sym.Kind, name, sym.Type)
		if sym.IsVariable() {
			fmt.Fprintf(sb, " @%d+%d", sym.Offset, sym.Size)
		}
		if sym.Params != nil {
			fmt.Fprintf(sb, " (%s)", lsl.FormatTypes(sym.Params))
		}
		sb.WriteByte('\n')
	}
}

// Symbols lists every scope of an analyzed script: the user globals, then each
// function and event with its nested block scopes indented below it. Library
// entries are left out.
func Symbols(script *Script) string {
	var sb strings.Builder
	if script.Scope == nil {
		return ""
	}
	sb.WriteString("; globals\n")
	script.Scope.dump(&sb, "", true)
	for _, f := range script.Functions() {
		fmt.Fprintf(&sb, "; function %s\n", f.Name)
		blockScopes(&sb, f.Body, "")
	}
	for _, st := range script.States {
		for _, e := range st.Events {
			fmt.Fprintf(&sb, "; %s.%s\n", st.Name, e.Name)
			blockScopes(&sb, e.Body, "")
		}
	}
	return sb.String()
}

func blockScopes(sb *strings.Builder, s Stmt, indent string) {
	switch s := s.(type) {
	case *Block:
		if s.Scope != nil {
			s.Scope.dump(sb, indent, false)
			indent += "    "
		}
		for _, st := range s.Stmts {
			blockScopes(sb, st, indent)
		}
	case *IfStmt:
		blockScopes(sb, s.Then, indent)
		blockScopes(sb, s.Else, indent)
	case *WhileStmt:
		blockScopes(sb, s.Body, indent)
	case *DoWhileStmt:
		blockScopes(sb, s.Body, indent)
	case *ForStmt:
		blockScopes(sb, s.Body, indent)
	}
}
