// Package library describes the built-in functions a script may call. The
// compiler registers every visible entry in the global scope before looking at
// user code and emits CALLLIB with the entry's index.
package library

import (
	"fmt"
	"sort"

	"github.com/chazu/lslc/pkg/lsl"
)

// Function is one library entry.
type Function struct {
	Name       string
	Return     lsl.Type
	Params     []lsl.Type
	Privileged bool
	Index      int
}

// Signature renders the entry as "return name(params)".
func (f Function) Signature() string {
	return fmt.Sprintf("%s %s(%s)", f.Return, f.Name, lsl.FormatTypes(f.Params))
}

// Table is a set of library functions keyed by name.
type Table struct {
	byName  map[string]*Function
	byIndex map[int]*Function
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		byName:  make(map[string]*Function),
		byIndex: make(map[int]*Function),
	}
}

// Add inserts f. Names and indices must be unique.
func (t *Table) Add(f Function) error {
	if _, dup := t.byName[f.Name]; dup {
		return fmt.Errorf("duplicate library function %q", f.Name)
	}
	if prev, dup := t.byIndex[f.Index]; dup {
		return fmt.Errorf("library index %d used by both %q and %q", f.Index, prev.Name, f.Name)
	}
	if f.Index < 0 || f.Index > 0xFFFF {
		return fmt.Errorf("library function %q: index %d out of range", f.Name, f.Index)
	}
	entry := f
	t.byName[f.Name] = &entry
	t.byIndex[f.Index] = &entry
	return nil
}

// Lookup finds a function by name.
func (t *Table) Lookup(name string) (Function, bool) {
	f, ok := t.byName[name]
	if !ok {
		return Function{}, false
	}
	return *f, true
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.byName)
}

// All returns every entry ordered by index.
func (t *Table) All() []Function {
	out := make([]Function, 0, len(t.byName))
	for _, f := range t.byName {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Visible returns the entries a compile may see. Privileged entries are only
// included for privileged compiles.
func (t *Table) Visible(privileged bool) []Function {
	all := t.All()
	out := all[:0]
	for _, f := range all {
		if f.Privileged && !privileged {
			continue
		}
		out = append(out, f)
	}
	return out
}
