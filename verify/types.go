package verify

import (
	"fmt"

	"github.com/velalang/bvc/ir"
)

// Kind is one member of the abstract type lattice (data model §3.2).
type Kind uint8

const (
	// Non-term markers (Y-only).
	KUninitialized Kind = iota
	KInitialized
	KCatchtag
	KTrytag

	// Special.
	KMatchContext
	KTupleInProgress
	KException

	// Terms.
	KTerm
	KBool
	KCons
	KNil
	KTuple
	KAtom
	KInteger
	KFloat
	KNumber
	KMap
	KBinary
	KLiteral
)

// matchID is a globally unique identifier minted for every fresh
// match context; two contexts are equal only if their IDs match.
// A join of two states whose contexts carry different IDs mints a
// new one (see joinMatchContext in lattice.go).
type matchID uint64

// MatchContext describes an in-progress binary match: how many named
// save slots it has, and which of them currently hold a valid saved
// position.
type MatchContext struct {
	ID    matchID
	Slots int
	Valid bitset
}

func (m *MatchContext) clone() *MatchContext {
	if m == nil {
		return nil
	}
	return &MatchContext{ID: m.ID, Slots: m.Slots, Valid: m.Valid.clone()}
}

// Type is one abstract type occupying an X or Y slot.
type Type struct {
	Kind Kind

	// Fragility wrapper: any term type may be wrapped as fragile; it
	// must never be stored in a Y-register (data model §3.2).
	Fragile bool

	// KTuple
	TupleExact bool
	TupleN     int

	// KAtom / KInteger / KFloat: concrete value, if known.
	HasValue bool
	AtomVal  string
	IntVal   int64
	FloatVal float64

	// KLiteral
	Lit interface{}

	// KCatchtag / KTrytag: the set of failure labels this tag protects.
	Labels labelSet

	// KMatchContext
	MCtx *MatchContext
}

// labelSet is a small set of labels, used for catch/try tags (a tag
// protects a set of failure labels once joined across branches).
type labelSet map[ir.Label]bool

func newLabelSet(ls ...ir.Label) labelSet {
	s := make(labelSet, len(ls))
	for _, l := range ls {
		s[l] = true
	}
	return s
}

func (s labelSet) union(t labelSet) labelSet {
	out := make(labelSet, len(s)+len(t))
	for l := range s {
		out[l] = true
	}
	for l := range t {
		out[l] = true
	}
	return out
}

func (s labelSet) equal(t labelSet) bool {
	if len(s) != len(t) {
		return false
	}
	for l := range s {
		if !t[l] {
			return false
		}
	}
	return true
}

// Convenience constructors; these read naturally at call sites in the
// transfer functions (Term(), AtomVal("ok"), ExactTuple(3), ...).

func Uninitialized() Type { return Type{Kind: KUninitialized} }
func Initialized() Type   { return Type{Kind: KInitialized} }
func Term() Type           { return Type{Kind: KTerm} }
func Bool() Type            { return Type{Kind: KBool} }
func Cons() Type             { return Type{Kind: KCons} }
func NilT() Type               { return Type{Kind: KNil} }
func Map() Type                 { return Type{Kind: KMap} }
func Binary() Type                { return Type{Kind: KBinary} }
func Number() Type                 { return Type{Kind: KNumber} }
func AnyAtom() Type                  { return Type{Kind: KAtom} }
func AnyInteger() Type                { return Type{Kind: KInteger} }
func AnyFloat() Type                   { return Type{Kind: KFloat} }
func AtomVal(v string) Type             { return Type{Kind: KAtom, HasValue: true, AtomVal: v} }
func IntVal(v int64) Type                { return Type{Kind: KInteger, HasValue: true, IntVal: v} }
func FloatVal(v float64) Type             { return Type{Kind: KFloat, HasValue: true, FloatVal: v} }
func Literal(v interface{}) Type           { return Type{Kind: KLiteral, Lit: v} }
func ExactTuple(n int) Type                 { return Type{Kind: KTuple, TupleExact: true, TupleN: n} }
func AtLeastTuple(n int) Type                { return Type{Kind: KTuple, TupleExact: false, TupleN: n} }
func Catchtag(labels labelSet) Type           { return Type{Kind: KCatchtag, Labels: labels} }
func Trytag(labels labelSet) Type              { return Type{Kind: KTrytag, Labels: labels} }
func TupleInProgress() Type                     { return Type{Kind: KTupleInProgress} }
func Exception() Type                            { return Type{Kind: KException} }
func NewMatchContext(id matchID, slots int) Type {
	return Type{Kind: KMatchContext, MCtx: &MatchContext{ID: id, Slots: slots}}
}

func Fragile(t Type) Type {
	t.Fragile = true
	return t
}

func Unwrap(t Type) Type {
	t.Fragile = false
	return t
}

func (t Type) clone() Type {
	out := t
	if len(t.Labels) > 0 {
		out.Labels = make(labelSet, len(t.Labels))
		for l := range t.Labels {
			out.Labels[l] = true
		}
	}
	out.MCtx = t.MCtx.clone()
	return out
}

func (t Type) isTermKind() bool {
	switch t.Kind {
	case KTerm, KBool, KCons, KNil, KTuple, KAtom, KInteger, KFloat, KNumber, KMap, KBinary, KLiteral:
		return true
	}
	return false
}

func (t Type) String() string {
	switch t.Kind {
	case KUninitialized:
		return "uninitialized"
	case KInitialized:
		return "initialized"
	case KCatchtag:
		return fmt.Sprintf("catchtag%v", keys(t.Labels))
	case KTrytag:
		return fmt.Sprintf("trytag%v", keys(t.Labels))
	case KMatchContext:
		return fmt.Sprintf("match_context{id=%d,slots=%d}", t.MCtx.ID, t.MCtx.Slots)
	case KTupleInProgress:
		return "tuple_in_progress"
	case KException:
		return "exception"
	case KTerm:
		return frag(t, "term")
	case KBool:
		return frag(t, "bool")
	case KCons:
		return frag(t, "cons")
	case KNil:
		return frag(t, "nil")
	case KTuple:
		if t.TupleExact {
			return frag(t, fmt.Sprintf("tuple(exact %d)", t.TupleN))
		}
		return frag(t, fmt.Sprintf("tuple(at_least %d)", t.TupleN))
	case KAtom:
		if t.HasValue {
			return frag(t, fmt.Sprintf("atom(%s)", t.AtomVal))
		}
		return frag(t, "atom")
	case KInteger:
		if t.HasValue {
			return frag(t, fmt.Sprintf("integer(%d)", t.IntVal))
		}
		return frag(t, "integer")
	case KFloat:
		if t.HasValue {
			return frag(t, fmt.Sprintf("float(%g)", t.FloatVal))
		}
		return frag(t, "float")
	case KNumber:
		return frag(t, "number")
	case KMap:
		return frag(t, "map")
	case KBinary:
		return frag(t, "binary")
	case KLiteral:
		return frag(t, fmt.Sprintf("literal(%v)", t.Lit))
	default:
		return "?"
	}
}

func frag(t Type, s string) string {
	if t.Fragile {
		return "fragile(" + s + ")"
	}
	return s
}

func keys(s labelSet) []ir.Label {
	out := make([]ir.Label, 0, len(s))
	for l := range s {
		out = append(out, l)
	}
	return out
}
