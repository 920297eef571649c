package lsl

import "fmt"

// Operator identifies a unary or binary operator.
type Operator uint8

const (
	OpNone Operator = iota

	// Binary
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNeq
	OpLeq
	OpGeq
	OpLess
	OpGreater
	OpBitAnd
	OpBitOr
	OpBitXor
	OpBoolAnd
	OpBoolOr
	OpShl
	OpShr

	// Unary
	OpNeg
	OpBitNot
	OpBoolNot
)

var operatorSymbols = map[Operator]string{
	OpAdd:     "+",
	OpSub:     "-",
	OpMul:     "*",
	OpDiv:     "/",
	OpMod:     "%",
	OpEq:      "==",
	OpNeq:     "!=",
	OpLeq:     "<=",
	OpGeq:     ">=",
	OpLess:    "<",
	OpGreater: ">",
	OpBitAnd:  "&",
	OpBitOr:   "|",
	OpBitXor:  "^",
	OpBoolAnd: "&&",
	OpBoolOr:  "||",
	OpShl:     "<<",
	OpShr:     ">>",
	OpNeg:     "-",
	OpBitNot:  "~",
	OpBoolNot: "!",
}

// String returns the operator's source spelling.
func (o Operator) String() string {
	if s, ok := operatorSymbols[o]; ok {
		return s
	}
	return fmt.Sprintf("Operator(%d)", o)
}

// IsBinary reports whether o takes two operands.
func (o Operator) IsBinary() bool {
	return o >= OpAdd && o <= OpShr
}

// IsUnary reports whether o takes one operand.
func (o Operator) IsUnary() bool {
	return o >= OpNeg && o <= OpBoolNot
}

// BinaryOperatorBySymbol resolves "+", "<<", ... to a binary operator.
func BinaryOperatorBySymbol(sym string) (Operator, bool) {
	for op := OpAdd; op <= OpShr; op++ {
		if operatorSymbols[op] == sym {
			return op, true
		}
	}
	return OpNone, false
}

// UnaryOperatorBySymbol resolves "-", "~", "!" to a unary operator.
func UnaryOperatorBySymbol(sym string) (Operator, bool) {
	for op := OpNeg; op <= OpBoolNot; op++ {
		if operatorSymbols[op] == sym {
			return op, true
		}
	}
	return OpNone, false
}

// ---------------------------------------------------------------------------
// Legality tables
// ---------------------------------------------------------------------------

type binaryKey struct {
	op   Operator
	l, r Type
}

var binaryTable = map[binaryKey]Type{}

func legal(op Operator, l, r, result Type) {
	binaryTable[binaryKey{op, l, r}] = result
}

func init() {
	numeric := []Type{Integer, Float}
	for _, l := range numeric {
		for _, r := range numeric {
			res := Integer
			if l == Float || r == Float {
				res = Float
			}
			for _, op := range []Operator{OpAdd, OpSub, OpMul, OpDiv} {
				legal(op, l, r, res)
			}
			for _, op := range []Operator{OpEq, OpNeq, OpLeq, OpGeq, OpLess, OpGreater} {
				legal(op, l, r, Integer)
			}
		}
	}

	for _, op := range []Operator{OpMod, OpBitAnd, OpBitOr, OpBitXor, OpBoolAnd, OpBoolOr, OpShl, OpShr} {
		legal(op, Integer, Integer, Integer)
	}

	// Strings and keys
	legal(OpAdd, String, String, String)
	for _, l := range []Type{String, Key} {
		for _, r := range []Type{String, Key} {
			legal(OpEq, l, r, Integer)
			legal(OpNeq, l, r, Integer)
		}
	}

	// Vectors
	legal(OpAdd, Vector, Vector, Vector)
	legal(OpSub, Vector, Vector, Vector)
	legal(OpMul, Vector, Vector, Float) // dot product
	legal(OpMod, Vector, Vector, Vector) // cross product
	for _, n := range numeric {
		legal(OpMul, Vector, n, Vector)
		legal(OpMul, n, Vector, Vector)
		legal(OpDiv, Vector, n, Vector)
	}
	legal(OpMul, Vector, Quaternion, Vector)
	legal(OpDiv, Vector, Quaternion, Vector)
	legal(OpEq, Vector, Vector, Integer)
	legal(OpNeq, Vector, Vector, Integer)

	// Rotations
	legal(OpAdd, Quaternion, Quaternion, Quaternion)
	legal(OpSub, Quaternion, Quaternion, Quaternion)
	legal(OpMul, Quaternion, Quaternion, Quaternion)
	legal(OpDiv, Quaternion, Quaternion, Quaternion)
	legal(OpEq, Quaternion, Quaternion, Integer)
	legal(OpNeq, Quaternion, Quaternion, Integer)

	// Lists concatenate with anything and compare by length.
	for t := Integer; t <= List; t++ {
		legal(OpAdd, List, t, List)
		legal(OpAdd, t, List, List)
	}
	legal(OpEq, List, List, Integer)
	legal(OpNeq, List, List, Integer)
}

// BinaryResult looks up the result type of l op r. ok is false when the
// combination is not legal.
func BinaryResult(op Operator, l, r Type) (Type, bool) {
	t, ok := binaryTable[binaryKey{op, l, r}]
	return t, ok
}

// UnaryResult returns the result type of op applied to t.
func UnaryResult(op Operator, t Type) (Type, bool) {
	switch op {
	case OpNeg:
		switch t {
		case Integer, Float, Vector, Quaternion:
			return t, true
		}
	case OpBitNot, OpBoolNot:
		if t == Integer {
			return Integer, true
		}
	}
	return Void, false
}

// Promote returns the operand types a legal binary operation is evaluated with.
// An Integer meeting a Float, or an Integer scaling a Vector, is widened to Float;
// every other pairing is left alone.
func Promote(op Operator, l, r Type) (Type, Type) {
	if l == List || r == List {
		return l, r
	}
	switch {
	case l == Integer && r == Float:
		return Float, Float
	case l == Float && r == Integer:
		return Float, Float
	case l == Vector && r == Integer && (op == OpMul || op == OpDiv):
		return Vector, Float
	case l == Integer && r == Vector && op == OpMul:
		return Float, Vector
	}
	return l, r
}

// Assignable reports whether a value of type src may be stored into a variable of
// type dst by a plain assignment.
func Assignable(dst, src Type) bool {
	if dst == Void || src == Void {
		return false
	}
	if dst == src {
		return true
	}
	switch dst {
	case Float:
		return src == Integer
	case String:
		return src == Key
	case Key:
		return src == String
	case List:
		return true
	}
	return false
}

// Coercible is the looser rule used for call arguments and declaration
// initializers: anything Assignable, plus any value into a string.
func Coercible(dst, src Type) bool {
	if Assignable(dst, src) {
		return true
	}
	return dst == String && src != Void
}

var castTable = map[Type][]Type{
	Integer:    {Integer, Float, String, List},
	Float:      {Integer, Float, String, List},
	String:     {Integer, Float, String, Key, Vector, Quaternion, List},
	Key:        {String, Key, List},
	Vector:     {String, Vector, List},
	Quaternion: {String, Quaternion, List},
	List:       {String, List},
}

// Castable reports whether an explicit (to)expr cast is legal.
func Castable(from, to Type) bool {
	for _, t := range castTable[from] {
		if t == to {
			return true
		}
	}
	return false
}
