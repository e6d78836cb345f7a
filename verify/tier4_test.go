package verify

import (
	"testing"

	"github.com/velalang/bvc/diag"
	"github.com/velalang/bvc/ir"
)

// matchingCallee begins with a bs_start_match2 that re-enters on x0,
// the shape a tail call carrying a match context in x0 must satisfy.
func matchingCallee() *ir.Function {
	return wrapBody("callee_match", 1, 20,
		ir.Instruction{Op: ir.OpBsStartMatch2, Args: []ir.Operand{ir.F(21), ir.Int(1), ir.List(ir.X(0), ir.Int(2)), ir.X(0)}},
		ir.Instruction{Op: ir.OpReturn},
		ir.Instruction{Op: ir.OpLabel, Args: []ir.Operand{ir.F(21)}},
		ir.Instruction{Op: ir.OpReturn},
	)
}

// mismatchedCallee's bs_start_match2 expects its context in x1, not x0.
func mismatchedCallee() *ir.Function {
	return wrapBody("callee_mismatch", 2, 20,
		ir.Instruction{Op: ir.OpBsStartMatch2, Args: []ir.Operand{ir.F(21), ir.Int(2), ir.List(ir.X(1), ir.Int(2)), ir.X(1)}},
		ir.Instruction{Op: ir.OpReturn},
		ir.Instruction{Op: ir.OpLabel, Args: []ir.Operand{ir.F(21)}},
		ir.Instruction{Op: ir.OpReturn},
	)
}

// plainCallee has no bs_start_match2 at its entry at all.
func plainCallee() *ir.Function {
	return wrapBody("callee_plain", 1, 20,
		ir.Instruction{Op: ir.OpReturn},
	)
}

func verifyCaller(t *testing.T, callee, caller *ir.Function) []diag.Diagnostic {
	t.Helper()
	mod := &ir.Module{Name: "m", NumLabels: 22, Functions: []*ir.Function{callee, caller}}
	idx := buildMatchIndex(mod)
	_, diags := verifyFunction(mod, caller, idx, &Options{})
	return diags
}

// A tail call carrying a single match context in x0 into a callee
// whose pre-scanned bs_start_match2 re-enters on x0 is accepted.
func TestTailCallMatchContextAcceptsMatchingCallee(t *testing.T) {
	caller := wrapBody("caller_ok", 1, 1,
		ir.Instruction{Op: ir.OpBsStartMatch2, Args: []ir.Operand{ir.F(9), ir.Int(1), ir.List(ir.X(0), ir.Int(2)), ir.X(0)}},
		ir.Instruction{Op: ir.OpCallLast, Args: []ir.Operand{ir.Int(1), ir.F(20)}},
		ir.Instruction{Op: ir.OpLabel, Args: []ir.Operand{ir.F(9)}},
		ir.Instruction{Op: ir.OpReturn},
	)
	diags := verifyCaller(t, matchingCallee(), caller)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
}

// The pre-scan index has no entry for a callee that never begins with
// bs_start_match2: a tail call carrying a context into it is rejected.
func TestTailCallMatchContextRejectsNoBsStartMatch2(t *testing.T) {
	caller := wrapBody("caller_noctx", 1, 1,
		ir.Instruction{Op: ir.OpBsStartMatch2, Args: []ir.Operand{ir.F(9), ir.Int(1), ir.List(ir.X(0), ir.Int(2)), ir.X(0)}},
		ir.Instruction{Op: ir.OpCallLast, Args: []ir.Operand{ir.Int(1), ir.F(20)}},
		ir.Instruction{Op: ir.OpLabel, Args: []ir.Operand{ir.F(9)}},
		ir.Instruction{Op: ir.OpReturn},
	)
	diags := verifyCaller(t, plainCallee(), caller)
	if firstKind(diags) != diag.KindNoBsStartMatch2 {
		t.Fatalf("diags = %v, want no_bs_start_match2", diags)
	}
}

// The callee does begin with bs_start_match2, but expects its context
// in a different register than the one the tail call actually leaves
// it in.
func TestTailCallMatchContextRejectsUnsuitableCallee(t *testing.T) {
	caller := wrapBody("caller_badreg", 1, 1,
		ir.Instruction{Op: ir.OpBsStartMatch2, Args: []ir.Operand{ir.F(9), ir.Int(1), ir.List(ir.X(0), ir.Int(2)), ir.X(0)}},
		ir.Instruction{Op: ir.OpCallLast, Args: []ir.Operand{ir.Int(1), ir.F(20)}},
		ir.Instruction{Op: ir.OpLabel, Args: []ir.Operand{ir.F(9)}},
		ir.Instruction{Op: ir.OpReturn},
	)
	diags := verifyCaller(t, mismatchedCallee(), caller)
	if firstKind(diags) != diag.KindUnsuitableBsStartMatch2 {
		t.Fatalf("diags = %v, want unsuitable_bs_start_match2", diags)
	}
}

// Two live registers each holding a match context across the same
// tail call is rejected outright, independent of the callee.
func TestTailCallMatchContextRejectsMultipleHolders(t *testing.T) {
	caller := wrapBody("caller_multi", 2, 1,
		ir.Instruction{Op: ir.OpBsStartMatch2, Args: []ir.Operand{ir.F(9), ir.Int(2), ir.List(ir.X(0), ir.Int(2)), ir.X(0)}},
		ir.Instruction{Op: ir.OpBsStartMatch2, Args: []ir.Operand{ir.F(9), ir.Int(2), ir.List(ir.X(1), ir.Int(2)), ir.X(1)}},
		ir.Instruction{Op: ir.OpCallLast, Args: []ir.Operand{ir.Int(2), ir.F(20)}},
		ir.Instruction{Op: ir.OpLabel, Args: []ir.Operand{ir.F(9)}},
		ir.Instruction{Op: ir.OpReturn},
	)
	diags := verifyCaller(t, matchingCallee(), caller)
	if firstKind(diags) != diag.KindMultipleMatchContexts {
		t.Fatalf("diags = %v, want multiple_match_contexts", diags)
	}
}

// put_map_assoc/put_map_exact's field list must not be empty.
func TestPutMapRejectsEmptyFieldList(t *testing.T) {
	fn := wrapBody("putmap_empty", 1, 1,
		ir.Instruction{Op: ir.OpPutMapAssoc, Args: []ir.Operand{ir.F(9), ir.X(0), ir.List(), ir.X(1)}},
		ir.Instruction{Op: ir.OpReturn},
		ir.Instruction{Op: ir.OpLabel, Args: []ir.Operand{ir.F(9)}},
		ir.Instruction{Op: ir.OpReturn},
	)
	_, diags := runFunction(t, fn, 10)
	if firstKind(diags) != diag.KindEmptyFieldList {
		t.Fatalf("diags = %v, want empty_field_list", diags)
	}
}

// A field list carrying the same literal key twice is a compiler bug
// the verifier can catch statically.
func TestPutMapRejectsDuplicateLiteralKey(t *testing.T) {
	fn := wrapBody("putmap_dup", 1, 1,
		ir.Instruction{Op: ir.OpPutMapAssoc, Args: []ir.Operand{
			ir.F(9), ir.X(0),
			ir.List(ir.Atom("a"), ir.X(0), ir.Atom("a"), ir.X(0)),
			ir.X(1),
		}},
		ir.Instruction{Op: ir.OpReturn},
		ir.Instruction{Op: ir.OpLabel, Args: []ir.Operand{ir.F(9)}},
		ir.Instruction{Op: ir.OpReturn},
	)
	_, diags := runFunction(t, fn, 10)
	if firstKind(diags) != diag.KindKeysNotUnique {
		t.Fatalf("diags = %v, want keys_not_unique", diags)
	}
}

// A well-formed field list with distinct keys builds a map cleanly.
func TestPutMapAcceptsDistinctKeys(t *testing.T) {
	fn := wrapBody("putmap_ok", 1, 1,
		ir.Instruction{Op: ir.OpPutMapAssoc, Args: []ir.Operand{
			ir.F(9), ir.X(0),
			ir.List(ir.Atom("a"), ir.X(0), ir.Atom("b"), ir.X(0)),
			ir.X(1),
		}},
		ir.Instruction{Op: ir.OpReturn},
		ir.Instruction{Op: ir.OpLabel, Args: []ir.Operand{ir.F(9)}},
		ir.Instruction{Op: ir.OpReturn},
	)
	_, diags := runFunction(t, fn, 10)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
}
