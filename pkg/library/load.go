package library

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/chazu/lslc/pkg/lsl"
)

//go:embed builtins.toml
var builtins []byte

// File is the on-disk shape of a library table.
type File struct {
	Function []Entry `toml:"function" json:"function"`
}

// Entry is one [[function]] table.
type Entry struct {
	Name       string `toml:"name" json:"name"`
	Return     string `toml:"return" json:"return"`
	Params     string `toml:"params" json:"params"`
	Privileged bool   `toml:"privileged" json:"privileged"`
	Index      int    `toml:"index" json:"index"`
}

// Parse decodes, validates and indexes a TOML library table.
func Parse(data []byte) (*Table, error) {
	var f File
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	if f.Function == nil {
		f.Function = []Entry{}
	}
	if err := Validate(&f); err != nil {
		return nil, err
	}

	t := NewTable()
	for _, e := range f.Function {
		ret, ok := lsl.TypeByName(e.Return)
		if !ok && e.Return != "void" {
			return nil, fmt.Errorf("function %s: unknown return type %q", e.Name, e.Return)
		}
		params, err := lsl.ParseTypes(e.Params)
		if err != nil {
			return nil, fmt.Errorf("function %s: %w", e.Name, err)
		}
		if err := t.Add(Function{
			Name:       e.Name,
			Return:     ret,
			Params:     params,
			Privileged: e.Privileged,
			Index:      e.Index,
		}); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// LoadFile reads a library table from path.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Default returns the built-in library table.
func Default() *Table {
	t, err := Parse(builtins)
	if err != nil {
		panic(fmt.Sprintf("built-in library table: %v", err))
	}
	return t
}
