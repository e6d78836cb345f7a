package verify

import (
	"testing"

	"github.com/velalang/bvc/diag"
	"github.com/velalang/bvc/ir"
)

// select_val never falls through: it always branches to one of its
// arms or to the fail label, so the instruction immediately following
// it in the code stream is dead unless reached by a label.
func TestSelectValBranchesAndNeverFallsThrough(t *testing.T) {
	fn := wrapBody("sel_ok", 1, 1,
		ir.Instruction{Op: ir.OpSelectVal, Args: []ir.Operand{
			ir.X(0), ir.F(0),
			ir.List(ir.Atom("ok"), ir.F(2), ir.Atom("error"), ir.F(3)),
		}},
		ir.Instruction{Op: ir.OpLabel, Args: []ir.Operand{ir.F(2)}},
		ir.Instruction{Op: ir.OpReturn},
		ir.Instruction{Op: ir.OpLabel, Args: []ir.Operand{ir.F(3)}},
		ir.Instruction{Op: ir.OpReturn},
	)
	_, diags := runFunction(t, fn, 4)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
}

// select_val's arm list must alternate value and label, and every
// value must share the same operand kind.
func TestSelectValRejectsMixedArmKinds(t *testing.T) {
	fn := wrapBody("sel_mixed", 1, 1,
		ir.Instruction{Op: ir.OpSelectVal, Args: []ir.Operand{
			ir.X(0), ir.F(0),
			ir.List(ir.Atom("ok"), ir.F(2), ir.Int(1), ir.F(3)),
		}},
		ir.Instruction{Op: ir.OpLabel, Args: []ir.Operand{ir.F(2)}},
		ir.Instruction{Op: ir.OpReturn},
		ir.Instruction{Op: ir.OpLabel, Args: []ir.Operand{ir.F(3)}},
		ir.Instruction{Op: ir.OpReturn},
	)
	_, diags := runFunction(t, fn, 4)
	if firstKind(diags) != diag.KindBadSelectList {
		t.Fatalf("diags = %v, want bad_select_list", diags)
	}
}

// select_tuple_arity refines Src on each arm to an exact tuple of that
// arity; get_tuple_element against that refined type is then safe up
// to the declared arity.
func TestSelectTupleArityRefinesSource(t *testing.T) {
	fn := wrapBody("sel_arity_ok", 1, 1,
		ir.Instruction{Op: ir.OpSelectTupleArity, Args: []ir.Operand{
			ir.X(0), ir.F(0),
			ir.List(ir.Int(2), ir.F(2)),
		}},
		ir.Instruction{Op: ir.OpLabel, Args: []ir.Operand{ir.F(2)}},
		ir.Instruction{Op: ir.OpGetTupleElement, Args: []ir.Operand{ir.X(0), ir.Int(1), ir.X(1)}},
		ir.Instruction{Op: ir.OpReturn},
	)
	_, diags := runFunction(t, fn, 3)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
}

// §4.6 rule 2: once Src is traced back to an is_map(M) bif call,
// select_val's arm taken on Src = true refines M to map; the false
// arm sees M unrefined, since is_map(M) = false proves nothing about
// M's type.
func TestSelectValOnIsMapResultRefinesSource(t *testing.T) {
	mod := &ir.Module{Name: "m", NumLabels: 11}
	fn := &ir.Function{Name: "is_map_refine", Arity: 2, Entry: 1}
	v := newVerifier(mod, fn, matchIndex{}, &Options{})
	v.current = newState()
	v.current.X.update(0, Term())
	v.current.X.update(1, Term())

	isMap := ir.Instruction{Op: ir.OpBifMayFail, Args: []ir.Operand{ir.Atom("is_map"), ir.X(0), ir.X(1)}}
	v.inst = isMap
	if err := v.applyTier2(isMap); err != nil {
		t.Fatalf("is_map bif: %v", err)
	}

	sel := ir.Instruction{Op: ir.OpSelectVal, Args: []ir.Operand{
		ir.X(1), ir.F(0),
		ir.List(ir.Atom("true"), ir.F(2), ir.Atom("false"), ir.F(3)),
	}}
	v.inst = sel
	if err := v.applySelectVal(sel); err != nil {
		t.Fatalf("select_val: %v", err)
	}

	trueState := v.branched[2]
	if trueState == nil {
		t.Fatal("true arm never recorded a branched state")
	}
	if got, ok := trueState.X.lookup(0); !ok || got.Kind != KMap {
		t.Fatalf("true arm's M register = %v, %v; want map, true", got, ok)
	}

	falseState := v.branched[3]
	if falseState == nil {
		t.Fatal("false arm never recorded a branched state")
	}
	if got, ok := falseState.X.lookup(0); !ok || got.Kind != KTerm {
		t.Fatalf("false arm's M register = %v, %v; want unrefined term, true", got, ok)
	}
}
