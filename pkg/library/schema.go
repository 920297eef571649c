package library

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// schemaSource constrains decoded table files before they are turned into
// Functions.
const schemaSource = `
#Function: {
	name:       =~"^[A-Za-z_][A-Za-z0-9_]*$"
	return:     "void" | "integer" | "float" | "string" | "key" | "vector" | "rotation" | "quaternion" | "list"
	params:     =~"^[ifskvql]*$"
	privileged: bool
	index:      int & >=0 & <=65535
}

#Library: {
	function: [...#Function]
}
`

// Validate checks a decoded table file against the schema.
func Validate(file *File) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compiling library schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Library"))

	v := ctx.Encode(file)
	if err := v.Err(); err != nil {
		return fmt.Errorf("encoding library table: %w", err)
	}
	if err := def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("library table does not match schema: %w", err)
	}
	return nil
}
