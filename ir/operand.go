package ir

import "fmt"

// OperandKind identifies the shape of an Operand, mirroring the
// tagged-tuple operand forms a compiler driver hands the verifier
// (see package doc).
type OperandKind uint8

const (
	// KindX is a register in the X (call-convention/scratch) file: {x, N}.
	KindX OperandKind = iota
	// KindY is a register in the Y (stack-slot) file: {y, N}.
	KindY
	// KindFR is a register in the F (unboxed float) file: {fr, N}.
	KindFR
	// KindLabel is a branch target: {f, Label} or a bare label number.
	KindLabel
	// KindAtom is a literal atom: {atom, A}.
	KindAtom
	// KindInt is a literal integer: {integer, I}.
	KindInt
	// KindFloat is a literal float: {float, F}.
	KindFloat
	// KindLiteral is an arbitrary literal term opaque to the verifier:
	// {literal, Term}.
	KindLiteral
	// KindNil is the empty-list literal.
	KindNil
	// KindList is a nested list of operands, used for jump tables
	// (select_val, select_tuple_arity) and similar variable-arity forms.
	KindList
)

// Operand is one argument to an Instruction. Only the field matching
// Kind is meaningful; the others are zero.
type Operand struct {
	Kind OperandKind

	Reg   int // KindX, KindY, KindFR: register index
	Label Label
	Atom  string
	Int   int64
	Float float64
	Lit   interface{}
	List  []Operand
}

func X(n int) Operand     { return Operand{Kind: KindX, Reg: n} }
func Y(n int) Operand     { return Operand{Kind: KindY, Reg: n} }
func FR(n int) Operand    { return Operand{Kind: KindFR, Reg: n} }
func F(l Label) Operand   { return Operand{Kind: KindLabel, Label: l} }
func Atom(a string) Operand { return Operand{Kind: KindAtom, Atom: a} }
func Int(i int64) Operand { return Operand{Kind: KindInt, Int: i} }
func Flt(f float64) Operand { return Operand{Kind: KindFloat, Float: f} }
func Lit(v interface{}) Operand { return Operand{Kind: KindLiteral, Lit: v} }
func Nil() Operand         { return Operand{Kind: KindNil} }
func List(ops ...Operand) Operand { return Operand{Kind: KindList, List: ops} }

func (o Operand) String() string {
	switch o.Kind {
	case KindX:
		return fmt.Sprintf("x%d", o.Reg)
	case KindY:
		return fmt.Sprintf("y%d", o.Reg)
	case KindFR:
		return fmt.Sprintf("fr%d", o.Reg)
	case KindLabel:
		return fmt.Sprintf("f(%d)", o.Label)
	case KindAtom:
		return o.Atom
	case KindInt:
		return fmt.Sprintf("%d", o.Int)
	case KindFloat:
		return fmt.Sprintf("%g", o.Float)
	case KindLiteral:
		return fmt.Sprintf("literal(%v)", o.Lit)
	case KindNil:
		return "nil"
	case KindList:
		return fmt.Sprintf("%v", o.List)
	default:
		return "?"
	}
}

// IsRegister reports whether o addresses a register slot (X, Y, or F).
func (o Operand) IsRegister() bool {
	return o.Kind == KindX || o.Kind == KindY || o.Kind == KindFR
}
