package verify

import (
	"github.com/velalang/bvc/diag"
	"github.com/velalang/bvc/ir"
)

// applyBsStartMatch2 implements §4.4.1's contract: if the source is
// already the destination's own match context, the failure branch
// must erase that context type so it is not observable there;
// otherwise the source must be an ordinary term, the caller's live
// registers are pruned, and a fresh context is installed at Dst on
// success.
func (v *Verifier) applyBsStartMatch2(inst ir.Instruction) error {
	fail, err := v.argLabel(inst, 0)
	if err != nil {
		return err
	}
	live, err := intArg(inst, 1)
	if err != nil {
		return err
	}
	if len(inst.Args) < 3 || inst.Args[2].Kind != ir.KindList || len(inst.Args[2].List) != 2 {
		return diag.New(diag.KindBadSource, "bs_start_match2 requires a [ctx, slots] argument")
	}
	ctxOp := inst.Args[2].List[0]
	slotsOp := inst.Args[2].List[1]
	if slotsOp.Kind != ir.KindInt {
		return diag.New(diag.KindBadSource, "bs_start_match2 slot count must be an integer literal")
	}
	dst, err := v.argReg(inst, 3)
	if err != nil {
		return err
	}

	srcT, err := v.readOperandAllowMatchContext(ctxOp)
	if err != nil {
		return err
	}

	ck, _ := v.key(ctxOp)
	dk, _ := v.key(dst)
	sameReg := ck == dk

	if sameReg && srcT.Kind == KMatchContext {
		failSnap := v.current.clone()
		failSnap.writeRefined(dk, Term())
		if err := v.branch(fail, failSnap); err != nil {
			return err
		}
		return nil
	}

	if !srcT.isTermKind() {
		return diag.New(diag.KindBadType, "bs_start_match2 source must be an ordinary term, got %s", srcT)
	}
	failSnap := v.current.clone()
	if err := v.branch(fail, failSnap); err != nil {
		return err
	}
	v.current.X.truncate(live)
	return v.writeOperand(dst, NewMatchContext(freshMatchID(), int(slotsOp.Int)))
}

// applyBsSave2 sets a match context's save bit (§4.4.1). The slot
// must be within the context's declared slot count.
func (v *Verifier) applyBsSave2(inst ir.Instruction) error {
	ctx, slot, err := v.matchContextAndSlot(inst)
	if err != nil {
		return err
	}
	if slot >= ctx.MCtx.Slots {
		return diag.New(diag.KindIllegalSave, "save slot %d exceeds context's %d declared slots", slot, ctx.MCtx.Slots)
	}
	ctx.MCtx.Valid.set(slot)
	return v.writeOperand(inst.Args[0], ctx)
}

// applyBsRestore2 requires the bit to already be set.
func (v *Verifier) applyBsRestore2(inst ir.Instruction) error {
	ctx, slot, err := v.matchContextAndSlot(inst)
	if err != nil {
		return err
	}
	if slot >= ctx.MCtx.Slots || !ctx.MCtx.Valid.get(slot) {
		return diag.New(diag.KindIllegalRestore, "restore slot %d has no saved position", slot)
	}
	return nil
}

func (v *Verifier) matchContextAndSlot(inst ir.Instruction) (Type, int, error) {
	t, err := v.readOperandAllowMatchContext(inst.Args[0])
	if err != nil {
		return Type{}, 0, err
	}
	if t.Kind != KMatchContext {
		return Type{}, 0, diag.New(diag.KindNoBSMContext, "register does not hold a match context")
	}
	slot, err := intArg(inst, 1)
	if err != nil {
		return Type{}, 0, err
	}
	// Operate on our own copy so mutating Valid doesn't alias the
	// original through a shared *MatchContext pointer.
	t.MCtx = t.MCtx.clone()
	return t, slot, nil
}
