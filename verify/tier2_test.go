package verify

import (
	"testing"

	"github.com/velalang/bvc/ir"
)

// A tier-2 BIF listed in the return-type table writes its narrowed
// result, not a bare term; length/1 is always a non-negative integer.
func TestApplyTier2WritesNarrowedResultFromBifTable(t *testing.T) {
	mod := &ir.Module{Name: "m", NumLabels: 2}
	gfn := &ir.Function{Name: "tier2_length_probe", Arity: 1, Entry: 1}
	v := newVerifier(mod, gfn, matchIndex{}, &Options{})
	v.current = newState()
	v.current.X.update(0, Term())

	inst := ir.Instruction{Op: ir.OpBifMayFail, Args: []ir.Operand{ir.Atom("length"), ir.X(0), ir.X(1)}}
	v.inst = inst
	if err := v.applyTier2(inst); err != nil {
		t.Fatalf("length bif: %v", err)
	}
	got, ok := v.current.X.lookup(1)
	if !ok || got.Kind != KInteger {
		t.Fatalf("length/1 result = %v, %v; want integer, true", got, ok)
	}
}

// A BIF absent from the return-type table still writes a plain term.
func TestApplyTier2DefaultsToTermForUnlistedBif(t *testing.T) {
	mod := &ir.Module{Name: "m", NumLabels: 2}
	fn := &ir.Function{Name: "tier2_unlisted", Arity: 1, Entry: 1}
	v := newVerifier(mod, fn, matchIndex{}, &Options{})
	v.current = newState()
	v.current.X.update(0, Term())

	inst := ir.Instruction{Op: ir.OpBifMayFail, Args: []ir.Operand{ir.Atom("node"), ir.X(0), ir.X(1)}}
	v.inst = inst
	if err := v.applyTier2(inst); err != nil {
		t.Fatalf("node bif: %v", err)
	}
	got, ok := v.current.X.lookup(1)
	if !ok || got.Kind != KTerm {
		t.Fatalf("unlisted bif result = %v, %v; want term, true", got, ok)
	}
}
