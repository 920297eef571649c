package lsl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeSizes(t *testing.T) {
	assert.Equal(t, 4, Integer.Size())
	assert.Equal(t, 4, Float.Size())
	assert.Equal(t, 4, String.Size())
	assert.Equal(t, 4, Key.Size())
	assert.Equal(t, 4, List.Size())
	assert.Equal(t, 12, Vector.Size())
	assert.Equal(t, 16, Quaternion.Size())
	assert.Equal(t, 0, Void.Size())
}

func TestTypeByte(t *testing.T) {
	b := TypeByte(Float, Integer)
	assert.Equal(t, byte(0x21), b)

	l, r := SplitTypeByte(b)
	assert.Equal(t, Float, l)
	assert.Equal(t, Integer, r)
}

func TestParseTypes(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		types, err := ParseTypes("ifskvql")
		require.NoError(t, err)
		assert.Equal(t, []Type{Integer, Float, String, Key, Vector, Quaternion, List}, types)
		assert.Equal(t, "ifskvql", FormatTypes(types))
	})

	t.Run("empty", func(t *testing.T) {
		types, err := ParseTypes("")
		require.NoError(t, err)
		assert.Empty(t, types)
	})

	t.Run("invalid character", func(t *testing.T) {
		_, err := ParseTypes("ix")
		assert.Error(t, err)
	})
}

func TestTypeByName(t *testing.T) {
	typ, ok := TypeByName("rotation")
	assert.True(t, ok)
	assert.Equal(t, Quaternion, typ)

	typ, ok = TypeByName("quaternion")
	assert.True(t, ok)
	assert.Equal(t, Quaternion, typ)

	_, ok = TypeByName("double")
	assert.False(t, ok)
}

func TestBinaryResult(t *testing.T) {
	cases := []struct {
		op     Operator
		l, r   Type
		result Type
		ok     bool
	}{
		{OpAdd, Integer, Integer, Integer, true},
		{OpAdd, Integer, Float, Float, true},
		{OpAdd, Float, Integer, Float, true},
		{OpAdd, String, String, String, true},
		{OpAdd, String, Integer, Void, false},
		{OpAdd, List, Integer, List, true},
		{OpAdd, Vector, Float, Void, false},
		{OpMul, Vector, Vector, Float, true},
		{OpMul, Vector, Quaternion, Vector, true},
		{OpMul, Quaternion, Vector, Void, false},
		{OpMod, Float, Float, Void, false},
		{OpMod, Vector, Vector, Vector, true},
		{OpEq, String, Key, Integer, true},
		{OpLess, String, String, Void, false},
		{OpShl, Integer, Integer, Integer, true},
		{OpBoolAnd, Float, Integer, Void, false},
	}
	for _, c := range cases {
		res, ok := BinaryResult(c.op, c.l, c.r)
		assert.Equal(t, c.ok, ok, "%s %s %s", c.l, c.op, c.r)
		if c.ok {
			assert.Equal(t, c.result, res, "%s %s %s", c.l, c.op, c.r)
		}
	}
}

func TestUnaryResult(t *testing.T) {
	res, ok := UnaryResult(OpNeg, Vector)
	assert.True(t, ok)
	assert.Equal(t, Vector, res)

	_, ok = UnaryResult(OpBoolNot, Float)
	assert.False(t, ok)

	_, ok = UnaryResult(OpNeg, String)
	assert.False(t, ok)
}

func TestPromote(t *testing.T) {
	l, r := Promote(OpAdd, Integer, Float)
	assert.Equal(t, Float, l)
	assert.Equal(t, Float, r)

	l, r = Promote(OpMul, Vector, Integer)
	assert.Equal(t, Vector, l)
	assert.Equal(t, Float, r)

	l, r = Promote(OpEq, String, Key)
	assert.Equal(t, String, l)
	assert.Equal(t, Key, r)

	l, r = Promote(OpAdd, List, Integer)
	assert.Equal(t, List, l)
	assert.Equal(t, Integer, r)
}

func TestAssignability(t *testing.T) {
	assert.True(t, Assignable(Float, Integer))
	assert.False(t, Assignable(Integer, Float))
	assert.True(t, Assignable(String, Key))
	assert.True(t, Assignable(Key, String))
	assert.True(t, Assignable(List, Vector))
	assert.False(t, Assignable(String, Integer))
	assert.False(t, Assignable(Integer, Void))

	assert.True(t, Coercible(String, Integer))
	assert.True(t, Coercible(String, Vector))
	assert.True(t, Coercible(String, List))
	assert.False(t, Coercible(String, Void))
	assert.False(t, Coercible(Integer, String))
}

func TestCastable(t *testing.T) {
	assert.True(t, Castable(String, Vector))
	assert.True(t, Castable(Float, Integer))
	assert.False(t, Castable(Vector, Integer))
	assert.False(t, Castable(Key, Integer))
}

func TestEvents(t *testing.T) {
	k, ok := EventByName("listen")
	require.True(t, ok)
	assert.Equal(t, EventListen, k)
	assert.Equal(t, []Type{Integer, String, Key, String}, k.Params())
	assert.Equal(t, uint64(1)<<12, k.Mask())

	_, ok = EventByName("on_click")
	assert.False(t, ok)

	for k := EventKind(0); k < NumEvents; k++ {
		assert.NotEmpty(t, k.String())
	}
	assert.Less(t, int(NumEvents), 64)
}
