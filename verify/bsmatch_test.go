package verify

import (
	"testing"

	"github.com/velalang/bvc/diag"
	"github.com/velalang/bvc/ir"
)

// bs_start_match2 on an ordinary term installs a fresh match context;
// a save/restore pair against a slot within its declared count is
// legal.
func TestBsStartMatchThenSaveRestore(t *testing.T) {
	fn := wrapBody("bsm_ok", 1, 1,
		ir.Instruction{Op: ir.OpBsStartMatch2, Args: []ir.Operand{
			ir.F(9), ir.Int(0), ir.List(ir.X(0), ir.Int(2)), ir.X(0),
		}},
		ir.Instruction{Op: ir.OpBsSave2, Args: []ir.Operand{ir.X(0), ir.Int(0)}},
		ir.Instruction{Op: ir.OpBsRestore2, Args: []ir.Operand{ir.X(0), ir.Int(0)}},
		ir.Instruction{Op: ir.OpReturn},
		ir.Instruction{Op: ir.OpLabel, Args: []ir.Operand{ir.F(9)}},
		ir.Instruction{Op: ir.OpReturn},
	)
	_, diags := runFunction(t, fn, 10)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
}

// bs_save2 rejects a slot at or beyond the context's declared count.
func TestBsSave2RejectsSlotBeyondDeclaredCount(t *testing.T) {
	fn := wrapBody("bsm_bad", 1, 1,
		ir.Instruction{Op: ir.OpBsStartMatch2, Args: []ir.Operand{
			ir.F(9), ir.Int(0), ir.List(ir.X(0), ir.Int(1)), ir.X(0),
		}},
		ir.Instruction{Op: ir.OpBsSave2, Args: []ir.Operand{ir.X(0), ir.Int(5)}},
		ir.Instruction{Op: ir.OpReturn},
		ir.Instruction{Op: ir.OpLabel, Args: []ir.Operand{ir.F(9)}},
		ir.Instruction{Op: ir.OpReturn},
	)
	_, diags := runFunction(t, fn, 10)
	if firstKind(diags) != diag.KindIllegalSave {
		t.Fatalf("diags = %v, want illegal_save", diags)
	}
}

// bs_restore2 rejects a slot that was never saved.
func TestBsRestore2RejectsUnsavedSlot(t *testing.T) {
	fn := wrapBody("bsm_unsaved", 1, 1,
		ir.Instruction{Op: ir.OpBsStartMatch2, Args: []ir.Operand{
			ir.F(9), ir.Int(0), ir.List(ir.X(0), ir.Int(2)), ir.X(0),
		}},
		ir.Instruction{Op: ir.OpBsRestore2, Args: []ir.Operand{ir.X(0), ir.Int(0)}},
		ir.Instruction{Op: ir.OpReturn},
		ir.Instruction{Op: ir.OpLabel, Args: []ir.Operand{ir.F(9)}},
		ir.Instruction{Op: ir.OpReturn},
	)
	_, diags := runFunction(t, fn, 10)
	if firstKind(diags) != diag.KindIllegalRestore {
		t.Fatalf("diags = %v, want illegal_restore", diags)
	}
}
