package verify

import (
	"github.com/velalang/bvc/diag"
	"github.com/velalang/bvc/ir"
	"github.com/velalang/bvc/math/checked"
)

// applyTier1 handles the always-legal family (§4.4 tier 1): moves,
// heap reservation, tuple building, stack frame lifecycle, catch/try
// introduction and disposal, and the terminal/abnormal-exit opcodes.
func (v *Verifier) applyTier1(inst ir.Instruction) error {
	switch inst.Op {
	case ir.OpLine, ir.OpFuncInfo:
		return nil

	case ir.OpBadmatch, ir.OpCaseEnd, ir.OpTryCaseEnd, ir.OpIfEnd:
		v.killState()
		return nil

	case ir.OpBsContextToBinary:
		// Dead-code-tolerance pattern support only (§4.1): erases the
		// match-context type so the register reads as an opaque
		// binary term afterward.
		dst, err := v.argReg(inst, 0)
		if err != nil {
			return err
		}
		return v.writeOperand(dst, Binary())

	case ir.OpMove:
		// move relocates whatever the register holds, including an
		// in-progress match context: §4.1's reshuffling between
		// bs_start_match2 and its consuming ops depends on this.
		src, dst := inst.Args[0], inst.Args[1]
		t, err := v.readOperandAllowMatchContext(src)
		if err != nil {
			return err
		}
		if k, ok := v.key(src); ok {
			if dk, ok2 := v.key(dst); ok2 {
				v.setAliasIfTerm(t, k, dk)
			}
		}
		return v.writeOperand(dst, t)

	case ir.OpSwap:
		a, b := inst.Args[0], inst.Args[1]
		ta, err := v.readOperandAllowMatchContext(a)
		if err != nil {
			return err
		}
		tb, err := v.readOperandAllowMatchContext(b)
		if err != nil {
			return err
		}
		if err := v.writeOperand(a, tb); err != nil {
			return err
		}
		return v.writeOperand(b, ta)

	case ir.OpGetHd:
		if _, err := v.readOperand(inst.Args[0]); err != nil {
			return err
		}
		return v.writeOperand(inst.Args[1], Term())

	case ir.OpGetTl:
		if _, err := v.readOperand(inst.Args[0]); err != nil {
			return err
		}
		return v.writeOperand(inst.Args[1], Term())

	case ir.OpGetList:
		if _, err := v.readOperand(inst.Args[0]); err != nil {
			return err
		}
		if err := v.writeOperand(inst.Args[1], Term()); err != nil {
			return err
		}
		return v.writeOperand(inst.Args[2], Term())

	case ir.OpMoveFromFR:
		n := inst.Args[0].Reg
		if err := v.readFR(n); err != nil {
			return err
		}
		if v.current.HF <= 0 {
			return diag.New(diag.KindHeapOverflow, "no reserved float heap words for fr%d", n)
		}
		v.current.HF--
		return v.writeOperand(inst.Args[1], FloatVal(0).asAny())

	case ir.OpMoveToFR:
		t, err := v.readOperand(inst.Args[0])
		if err != nil {
			return err
		}
		if t.Kind != KFloat {
			return diag.New(diag.KindBadType, "fmove source must be a float, got %s", t)
		}
		v.writeFR(inst.Args[1].Reg)
		return nil

	case ir.OpAllocHeapZero, ir.OpAllocHeap:
		n, err := intArg(inst, 0)
		if err != nil {
			return err
		}
		sum, ok := checked.AddInt64(int64(v.current.H), int64(n))
		if !ok {
			return diag.New(diag.KindHeapOverflow, "alloc_heap %d overflows the reserved heap-word count", n)
		}
		v.current.H = int(sum)
		return nil

	case ir.OpGcBifMarker, ir.OpReceiveMarker:
		return nil

	case ir.OpPutList:
		if _, err := v.readOperand(inst.Args[0]); err != nil {
			return err
		}
		if _, err := v.readOperand(inst.Args[1]); err != nil {
			return err
		}
		if err := v.spendHeap(2); err != nil {
			return err
		}
		return v.writeOperand(inst.Args[2], Cons())

	case ir.OpPutTuple:
		return v.applyPutTuple(inst)
	case ir.OpPut:
		return v.applyPut(inst)
	case ir.OpPutTuple2:
		return v.applyPutTuple2(inst)

	case ir.OpTrim:
		n, err := intArg(inst, 0)
		if err != nil {
			return err
		}
		if v.current.Numy.Kind == frameUndecided {
			return diag.New(diag.KindUnknownSizeOfStackframe, "trim: incoming branches disagree on the stack frame size")
		}
		if v.current.Numy.Kind != frameSize {
			return diag.New(diag.KindTrim, "trim requires a known stack frame size")
		}
		v.current.Numy = knownFrame(v.current.Numy.N - n)
		return nil

	case ir.OpAllocate, ir.OpAllocateZero, ir.OpAllocateHeap, ir.OpAllocateHeapZero:
		return v.applyAllocate(inst)

	case ir.OpDeallocate:
		n, err := intArg(inst, 0)
		if err != nil {
			return err
		}
		if v.current.Numy.Kind == frameUndecided {
			return diag.New(diag.KindUnknownSizeOfStackframe, "deallocate %d: incoming branches disagree on the stack frame size", n)
		}
		if v.current.Numy.Kind != frameSize || v.current.Numy.N != n {
			return diag.New(diag.KindStackFrame, "%d", n)
		}
		v.current.Numy = noFrame()
		return nil

	case ir.OpCatch:
		return v.applyCatch(inst)
	case ir.OpCatchEnd:
		return v.applyCatchEnd(inst)
	case ir.OpTry:
		return v.applyTry(inst)
	case ir.OpTryEnd:
		return v.applyTryEnd(inst)

	case ir.OpGetTupleElement:
		t, err := v.readOperand(inst.Args[0])
		if err != nil {
			return err
		}
		idx, err := intArg(inst, 1)
		if err != nil {
			return err
		}
		if t.Kind != KTuple || idx < 0 || idx >= t.TupleN {
			return diag.New(diag.KindBadType, "get_tuple_element index %d out of range for %s", idx, t)
		}
		return v.writeOperand(inst.Args[2], Term())

	case ir.OpJump:
		l, err := v.argLabel(inst, 0)
		if err != nil {
			return err
		}
		if err := v.branch(l, v.current); err != nil {
			return err
		}
		v.killState()
		return nil

	default:
		return diag.New(diag.KindIllegalInstruction, "%s is not a tier-1 opcode", inst.Op)
	}
}

func (t Type) asAny() Type { t.HasValue = false; return t }

func intArg(inst ir.Instruction, i int) (int, error) {
	if i >= len(inst.Args) || inst.Args[i].Kind != ir.KindInt {
		return 0, diag.New(diag.KindBadSource, "%s: argument %d is not an integer literal", inst.Op, i)
	}
	return int(inst.Args[i].Int), nil
}

func (v *Verifier) spendHeap(n int) error {
	if v.current.H < n {
		return diag.New(diag.KindHeapOverflow, "need %d heap words, only %d reserved", n, v.current.H)
	}
	v.current.H -= n
	return nil
}

func (v *Verifier) setAliasIfTerm(t Type, src, dst regKey) {
	if t.isTermKind() {
		v.current.setAlias(src, dst)
	}
}

func (v *Verifier) applyAllocate(inst ir.Instruction) error {
	if v.current.Numy.Kind != frameNone {
		return diag.New(diag.KindExistingStackFrame, "allocate on top of an existing stack frame")
	}
	n, err := intArg(inst, 0)
	if err != nil {
		return err
	}
	v.current.Numy = knownFrame(n)
	if inst.Op == ir.OpAllocateHeap || inst.Op == ir.OpAllocateHeapZero {
		hn, err := intArg(inst, 1)
		if err != nil {
			return err
		}
		sum, ok := checked.AddInt64(int64(v.current.H), int64(hn))
		if !ok {
			return diag.New(diag.KindHeapOverflow, "allocate %d overflows the reserved heap-word count", hn)
		}
		v.current.H = int(sum)
	}
	if inst.Op == ir.OpAllocateZero || inst.Op == ir.OpAllocateHeapZero {
		for i := 0; i < n; i++ {
			v.current.Y.update(i, NilT())
		}
	}
	return nil
}

func (v *Verifier) applyCatch(inst ir.Instruction) error {
	dst, err := v.argReg(inst, 0)
	if err != nil {
		return err
	}
	if dst.Kind != ir.KindY {
		return diag.New(diag.KindBadSource, "catch destination must be a y-register")
	}
	fail, err := v.argLabel(inst, 1)
	if err != nil {
		return err
	}
	if err := v.checkCtNesting(dst.Reg); err != nil {
		return err
	}
	labels := newLabelSet(fail)
	v.current.Y.update(dst.Reg, Catchtag(labels))
	v.current.Ct = append(v.current.Ct, ctFrame{Labels: labels, YSlot: dst.Reg})

	snap := v.current.clone()
	snap.Ct = v.current.Ct[:len(v.current.Ct)-1]
	// The runtime guarantees a well-formed frame at a catch: every
	// uninitialized Y-slot is upgraded to term on the failure branch.
	for i := 0; i < snap.Y.max(); i++ {
		if t, ok := snap.Y.lookup(i); !ok || t.Kind == KUninitialized {
			snap.Y.update(i, Term())
		}
	}
	return v.branch(fail, snap)
}

func (v *Verifier) checkCtNesting(ySlot int) error {
	if len(v.current.Ct) == 0 {
		return nil
	}
	if ctUndecided(v.current.Ct) {
		return diag.New(diag.KindAmbiguousCatchTryState, "catch/try nesting is ambiguous on this path")
	}
	top := v.current.Ct[len(v.current.Ct)-1]
	if top.YSlot < 0 {
		// The stacks joined here agree on depth but disagree on which
		// y-register the innermost handler occupies: joinCt marks that
		// frame with -1 rather than collapsing the whole stack.
		return diag.New(diag.KindUnknownCatchTryState, "the enclosing handler's y-register slot is not known on this path")
	}
	if ySlot >= top.YSlot {
		return diag.New(diag.KindBadTryCatchNesting, "inner handler at y%d must be below enclosing handler at y%d", ySlot, top.YSlot)
	}
	return nil
}

func (v *Verifier) applyCatchEnd(inst ir.Instruction) error {
	if len(v.current.Ct) == 0 {
		return diag.New(diag.KindUnfinishedCatchTry, "catch_end with no open catch")
	}
	v.current.Ct = v.current.Ct[:len(v.current.Ct)-1]
	reg, err := v.argReg(inst, 0)
	if err != nil {
		return err
	}
	return v.writeOperand(reg, Term())
}

func (v *Verifier) applyTry(inst ir.Instruction) error {
	dst, err := v.argReg(inst, 0)
	if err != nil {
		return err
	}
	if dst.Kind != ir.KindY {
		return diag.New(diag.KindBadSource, "try destination must be a y-register")
	}
	fail, err := v.argLabel(inst, 1)
	if err != nil {
		return err
	}
	if err := v.checkCtNesting(dst.Reg); err != nil {
		return err
	}
	labels := newLabelSet(fail)
	v.current.Y.update(dst.Reg, Trytag(labels))
	v.current.Ct = append(v.current.Ct, ctFrame{Labels: labels, YSlot: dst.Reg})
	snap := v.current.clone()
	snap.Ct = v.current.Ct[:len(v.current.Ct)-1]
	return v.branch(fail, snap)
}

func (v *Verifier) applyTryEnd(inst ir.Instruction) error {
	if len(v.current.Ct) == 0 {
		return diag.New(diag.KindUnfinishedCatchTry, "try_end with no open try")
	}
	v.current.Ct = v.current.Ct[:len(v.current.Ct)-1]
	reg, err := v.argReg(inst, 0)
	if err != nil {
		return err
	}
	return v.writeOperand(reg, Term())
}
