package verify

import (
	"github.com/velalang/bvc/diag"
	"github.com/velalang/bvc/ir"
)

// tierOf classifies an opcode into one of the four transfer-function
// tiers from §4.4. Extensions declare their own tier explicitly.
func (v *Verifier) tierOf(inst ir.Instruction) int {
	if inst.Op == ir.OpUnknown && inst.Ext != "" {
		if e, ok := v.ext[inst.Ext]; ok {
			return e.Tier()
		}
		return 0
	}
	switch inst.Op {
	case ir.OpLabel, ir.OpLine, ir.OpFuncInfo, ir.OpBadmatch, ir.OpCaseEnd, ir.OpTryCaseEnd, ir.OpIfEnd,
		ir.OpBsContextToBinary, ir.OpMove, ir.OpSwap, ir.OpGetHd, ir.OpGetTl, ir.OpGetList,
		ir.OpMoveFromFR, ir.OpMoveToFR, ir.OpAllocHeapZero, ir.OpAllocHeap, ir.OpGcBifMarker,
		ir.OpPutList, ir.OpPutTuple, ir.OpPut, ir.OpPutTuple2, ir.OpReceiveMarker, ir.OpTrim,
		ir.OpAllocate, ir.OpAllocateZero, ir.OpAllocateHeap, ir.OpAllocateHeapZero, ir.OpDeallocate,
		ir.OpCatch, ir.OpCatchEnd, ir.OpTry, ir.OpTryEnd, ir.OpGetTupleElement, ir.OpJump:
		return 1
	case ir.OpBifMayFail:
		return 2
	case ir.OpFAdd, ir.OpFSub, ir.OpFMul, ir.OpFDiv, ir.OpFNegate, ir.OpFClearerror, ir.OpFCheckerror, ir.OpFMove:
		return 3
	default:
		return 4
	}
}

// apply dispatches one instruction. It is called only while
// v.current != nil; dead-code instructions are skipped entirely by
// the caller (testable property 4).
func (v *Verifier) apply(inst ir.Instruction) error {
	if inst.Op == ir.OpUnknown && inst.Ext != "" {
		e, ok := v.ext[inst.Ext]
		if !ok {
			return diag.New(diag.KindUnknownInstruction, "unrecognized extension opcode %q", inst.Ext)
		}
		return e.Apply(v, inst)
	}

	// Invariant 6: setelem is true only immediately after
	// erlang:setelement/3; every other instruction clears it before
	// running, and set_tuple_element itself consumes it in
	// applySetTupleElement before this reset would erase it.
	if inst.Op != ir.OpSetTupleElement {
		v.current.Setelem = false
	}

	// Testable property 7: a put_tuple run must be closed out by its
	// declared number of put instructions before anything else runs,
	// regardless of which tier the next instruction belongs to.
	if v.current.Puts.Active && inst.Op != ir.OpPut && inst.Op != ir.OpLine {
		return diag.New(diag.KindNotBuildingATuple, "a put_tuple run must be completed by consecutive put instructions before %s", inst.Op)
	}

	tier := v.tierOf(inst)
	if tier == 3 {
		if err := v.guardFloatState(inst); err != nil {
			return err
		}
	} else if inst.Op != ir.OpFuncInfo {
		// Every non-float instruction requires fls to be quiescent
		// (§4.4 tier 3: "all other instructions require fls in
		// {undefined, checked}").
		if v.current.Fls == fpCleared {
			return diag.New(diag.KindBadFloatingPointState, "pending float result must be checked with fcheckerror before %s", inst.Op)
		}
	}

	switch tier {
	case 1:
		return v.applyTier1(inst)
	case 2:
		return v.applyTier2(inst)
	case 3:
		return v.applyTier3(inst)
	default:
		return v.applyTier4(inst)
	}
}

func (v *Verifier) guardFloatState(inst ir.Instruction) error {
	switch inst.Op {
	case ir.OpFAdd, ir.OpFSub, ir.OpFMul, ir.OpFDiv, ir.OpFNegate:
		if v.current.Fls != fpCleared {
			return diag.New(diag.KindBadFloatingPointState, "%s", v.current.Fls)
		}
	case ir.OpFClearerror:
		if v.current.Fls != fpUndefined && v.current.Fls != fpChecked {
			return diag.New(diag.KindBadFloatingPointState, "%s", v.current.Fls)
		}
	case ir.OpFCheckerror:
		if v.current.Fls != fpCleared {
			return diag.New(diag.KindBadFloatingPointState, "%s", v.current.Fls)
		}
	}
	return nil
}

// argLabel extracts operand i as a branch-target label, raising
// bad_source if it isn't one.
func (v *Verifier) argLabel(inst ir.Instruction, i int) (ir.Label, error) {
	if i >= len(inst.Args) || inst.Args[i].Kind != ir.KindLabel {
		return 0, diag.New(diag.KindBadSource, "%s: argument %d is not a label", inst.Op, i)
	}
	return inst.Args[i].Label, nil
}

func (v *Verifier) argReg(inst ir.Instruction, i int) (ir.Operand, error) {
	if i >= len(inst.Args) || !inst.Args[i].IsRegister() {
		return ir.Operand{}, diag.New(diag.KindBadSource, "%s: argument %d is not a register", inst.Op, i)
	}
	return inst.Args[i], nil
}

// writeOperand writes t to the register operand dst (X or Y).
func (v *Verifier) writeOperand(dst ir.Operand, t Type) error {
	switch dst.Kind {
	case ir.KindX:
		v.writeX(dst.Reg, t)
	case ir.KindY:
		v.writeY(dst.Reg, t)
	default:
		return diag.New(diag.KindInvalidStore, "cannot store into operand %v", dst)
	}
	return nil
}
