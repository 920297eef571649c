package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/lslc/pkg/image"
	"github.com/chazu/lslc/pkg/lsl"
)

func TestFrameLayout(t *testing.T) {
	a := param(lsl.Integer, "a")
	v := param(lsl.Vector, "v")
	r := decl(lsl.Quaternion, "r", nil)
	inner := decl(lsl.Float, "inner", nil)
	after := decl(lsl.String, "after", nil)
	f := fn(lsl.Void, "f", []*Param{a, v},
		r,
		&IfStmt{Cond: ival(1), Then: block(inner)},
		after,
	)
	ctx := analyze(t, script([]Global{f}))
	require.Empty(t, ctx.Diagnostics())

	assert.Equal(t, 0, a.Entry.Offset)
	assert.Equal(t, 4, v.Entry.Offset)
	assert.Equal(t, 16, r.Entry.Offset)
	assert.Equal(t, 32, inner.Entry.Offset)
	assert.Equal(t, 36, after.Entry.Offset)

	assert.Equal(t, []lsl.Type{lsl.Integer, lsl.Vector}, f.Entry.Params)
	assert.Equal(t, []lsl.Type{lsl.Quaternion, lsl.Float, lsl.String}, f.Entry.Locals)
}

func TestEmptyFrame(t *testing.T) {
	s := script(nil)
	ctx := analyze(t, s)
	require.Empty(t, ctx.Diagnostics())

	entry := s.States[0].Events[0].Entry
	assert.Empty(t, entry.Params)
	assert.NotNil(t, entry.Locals)
	assert.Empty(t, entry.Locals)
}

func TestGlobalOffsets(t *testing.T) {
	a := global(lsl.Integer, "a", nil)
	pos := global(lsl.Vector, "pos", nil)
	name := global(lsl.String, "name", nil)
	ctx := analyze(t, script([]Global{a, fn(lsl.Void, "f", nil), pos, name}))
	require.Empty(t, ctx.Diagnostics())

	off := image.GlobalHeaderSize("a")
	assert.Equal(t, off, a.Entry.Offset)
	off += 4 + image.GlobalHeaderSize("pos")
	assert.Equal(t, off, pos.Entry.Offset)
	off += 12 + image.GlobalHeaderSize("name")
	assert.Equal(t, off, name.Entry.Offset)
}

func TestIndices(t *testing.T) {
	f := fn(lsl.Void, "f", nil)
	g := fn(lsl.Void, "g", nil)
	s := script([]Global{f, global(lsl.Integer, "x", nil), g},
		state("default", stateEntry()),
		state("one", stateEntry()),
		state("two", stateEntry()),
	)
	ctx := analyze(t, s)
	require.Empty(t, ctx.Diagnostics())

	assert.Equal(t, 0, f.Entry.Index)
	assert.Equal(t, 1, g.Entry.Index)
	for i, st := range s.States {
		assert.Equal(t, i, st.Entry.Index, st.Name)
	}
}
