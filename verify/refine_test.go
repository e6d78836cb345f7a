package verify

import (
	"testing"

	"github.com/velalang/bvc/ir"
)

// test_arity's refinement is only visible on the fall-through path;
// the failure label sees the pre-refinement type.
func TestTestArityNarrowsOnSuccessBranch(t *testing.T) {
	fn := wrapBody("test_arity_ok", 1, 1,
		ir.Instruction{Op: ir.OpTestArity, Args: []ir.Operand{ir.F(9), ir.X(0), ir.Int(2)}},
		ir.Instruction{Op: ir.OpGetTupleElement, Args: []ir.Operand{ir.X(0), ir.Int(1), ir.X(1)}},
		ir.Instruction{Op: ir.OpReturn},
		ir.Instruction{Op: ir.OpLabel, Args: []ir.Operand{ir.F(9)}},
		ir.Instruction{Op: ir.OpReturn},
	)
	_, diags := runFunction(t, fn, 10)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
}

// §4.6 rule 1: is_eq_exact(A, N) after tuple_size(T) -> A retroactively
// sharpens T to tuple(exact N) on the success path.
func TestIsEqExactRefinesSourceOfTupleSize(t *testing.T) {
	fn := wrapBody("is_eq_exact_ok", 1, 1,
		ir.Instruction{Op: ir.OpTupleSize, Args: []ir.Operand{ir.X(0), ir.X(1)}},
		ir.Instruction{Op: ir.OpIsEqExact, Args: []ir.Operand{ir.F(9), ir.X(1), ir.Int(3)}},
		ir.Instruction{Op: ir.OpGetTupleElement, Args: []ir.Operand{ir.X(0), ir.Int(2), ir.X(2)}},
		ir.Instruction{Op: ir.OpReturn},
		ir.Instruction{Op: ir.OpLabel, Args: []ir.Operand{ir.F(9)}},
		ir.Instruction{Op: ir.OpReturn},
	)
	_, diags := runFunction(t, fn, 10)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
}
