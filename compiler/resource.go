package compiler

import (
	"github.com/chazu/lslc/pkg/image"
	"github.com/chazu/lslc/pkg/lsl"
)

// ---------------------------------------------------------------------------
// Resource pass: frame offsets, global offsets and indices
// ---------------------------------------------------------------------------

// frame accumulates the slots of one function or event.
type frame struct {
	size   int
	params []lsl.Type
	locals []lsl.Type
}

func (f *frame) place(sym *Symbol) {
	sym.Offset = f.size
	sym.Size = sym.Type.Size()
	f.size += sym.Size
}

// AllocateResources runs the resource pass over script. Parameters take the
// first frame slots in declaration order, then locals in depth-first order.
// Globals are placed where the image writer will lay out their data.
func AllocateResources(ctx *CompilationContext, script *Script) {
	if ctx.Failed() {
		return
	}

	gvr := 0
	fnIndex := 0
	for _, g := range script.Globals {
		switch g := g.(type) {
		case *GlobalVar:
			gvr += image.GlobalHeaderSize(g.Name)
			g.Entry.Offset = gvr
			g.Entry.Size = g.Type.Size()
			gvr += g.Entry.Size
		case *Function:
			g.Entry.Index = fnIndex
			fnIndex++
			allocateBody(g.Entry, g.Params, g.Body)
		}
	}

	for i, st := range script.States {
		st.Entry.Index = i
		for _, e := range st.Events {
			allocateBody(e.Entry, e.Params, e.Body)
		}
	}
	log.Debugf("%s: %d bytes of globals, %d functions, %d states", ctx.ID, gvr, fnIndex, len(script.States))
}

func allocateBody(entry *Symbol, params []*Param, body *Block) {
	f := &frame{}
	for _, p := range params {
		f.place(p.Entry)
		f.params = append(f.params, p.Type)
	}
	f.block(body)
	entry.Params = f.params
	entry.Locals = f.locals
	if entry.Locals == nil {
		entry.Locals = []lsl.Type{}
	}
}

func (f *frame) block(b *Block) {
	for _, s := range b.Stmts {
		f.stmt(s)
	}
}

func (f *frame) stmt(s Stmt) {
	switch s := s.(type) {
	case *Block:
		f.block(s)
	case *DeclStmt:
		f.place(s.Entry)
		f.locals = append(f.locals, s.Type)
	case *IfStmt:
		f.stmt(s.Then)
		if s.Else != nil {
			f.stmt(s.Else)
		}
	case *WhileStmt:
		f.stmt(s.Body)
	case *DoWhileStmt:
		f.stmt(s.Body)
	case *ForStmt:
		f.stmt(s.Body)
	}
}
