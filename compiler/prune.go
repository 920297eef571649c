package compiler

import "github.com/chazu/lslc/pkg/lsl"

// ---------------------------------------------------------------------------
// Prune pass: return paths, dead code and state changes
// ---------------------------------------------------------------------------

// PruneContext is the kind of code a statement sits in.
type PruneContext int

const (
	PruneGlobalVoidFn PruneContext = iota
	PruneGlobalNonVoidFn
	PruneEventHandler
	PruneDeadCode
)

type pruner struct {
	ctx    *CompilationContext
	owner  PruneContext // kind of the enclosing body, never PruneDeadCode
	warned bool         // dead code already reported in this body
}

// Prune runs the control-flow pass over script.
func Prune(ctx *CompilationContext, script *Script) {
	if ctx.Failed() {
		return
	}
	for _, f := range script.Functions() {
		if ctx.Failed() {
			return
		}
		owner := PruneGlobalVoidFn
		if f.Return != lsl.Void {
			owner = PruneGlobalNonVoidFn
		}
		p := &pruner{ctx: ctx, owner: owner}
		if !p.stmts(f.Body.Stmts, owner) && owner == PruneGlobalNonVoidFn && !ctx.Failed() {
			ctx.errorAt(f, NoReturn, "%s", f.Name)
		}
	}
	for _, st := range script.States {
		for _, e := range st.Events {
			if ctx.Failed() {
				return
			}
			p := &pruner{ctx: ctx, owner: PruneEventHandler}
			p.stmts(e.Body.Stmts, PruneEventHandler)
		}
	}
}

// stmts reports whether every path through the sequence ends in a return or
// state change. Everything after the first terminating statement is dead until
// the next label.
func (p *pruner) stmts(list []Stmt, pc PruneContext) bool {
	terminated := false
	for _, s := range list {
		if p.ctx.Failed() {
			return terminated
		}
		if _, ok := s.(*LabelStmt); ok {
			terminated = false
			continue
		}
		cur := pc
		if terminated {
			if !p.warned && pc != PruneDeadCode {
				p.ctx.warnAt(s, DeadCode, "")
				p.warned = true
			}
			cur = PruneDeadCode
		}
		if p.stmt(s, cur) {
			terminated = true
		}
	}
	return terminated
}

func (p *pruner) stmt(s Stmt, pc PruneContext) bool {
	switch s := s.(type) {
	case *Block:
		return p.stmts(s.Stmts, pc)
	case *ReturnStmt:
		p.checkReturn(s, pc)
		return true
	case *StateStmt:
		if p.owner != PruneEventHandler {
			p.ctx.errorAt(s, StateChangeInGlobalFunction, "state %s", s.State)
			return false
		}
		return true
	case *IfStmt:
		then := p.stmt(s.Then, pc)
		if s.Else == nil {
			return false
		}
		els := p.stmt(s.Else, pc)
		return then && els
	case *WhileStmt:
		p.stmt(s.Body, pc)
		return false
	case *ForStmt:
		p.stmt(s.Body, pc)
		return false
	case *DoWhileStmt:
		return p.stmt(s.Body, pc)
	}
	return false
}

func (p *pruner) checkReturn(s *ReturnStmt, pc PruneContext) {
	switch pc {
	case PruneGlobalNonVoidFn:
		if s.Value == nil {
			p.ctx.errorAt(s, InvalidVoidReturn, "")
		}
	case PruneGlobalVoidFn, PruneEventHandler:
		if s.Value != nil {
			p.ctx.errorAt(s, InvalidValueReturn, "")
		}
	}
}
