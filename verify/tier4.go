package verify

import (
	"github.com/velalang/bvc/diag"
	"github.com/velalang/bvc/ir"
)

// applyTier4 handles everything else (§4.4 tier 4): calls, BIFs,
// return, message-queue opcodes, tuple/map/binary operations, and
// type tests. The illustrative contracts (select_val, gc_bif,
// bs_start_match2, bs_save2/bs_restore2) live in their own files;
// this file groups the remaining opcodes by family.
func (v *Verifier) applyTier4(inst ir.Instruction) error {
	switch inst.Op {
	case ir.OpCall, ir.OpCallExt, ir.OpCallFun:
		return v.applyCall(inst, false)
	case ir.OpCallLast, ir.OpCallOnly, ir.OpCallExtLast, ir.OpCallExtOnly:
		return v.applyCall(inst, true)

	case ir.OpReturn:
		if v.current.Numy.Kind != frameNone {
			return diag.New(diag.KindStackFrame, "return with a live stack frame")
		}
		if err := v.checkTailMatchContext(); err != nil {
			return err
		}
		v.killState()
		return nil

	case ir.OpLoopRec:
		return v.applyLoopRec(inst)
	case ir.OpRemoveMessage:
		return v.applyRemoveMessage(inst)
	case ir.OpLoopRecEnd, ir.OpWait:
		l, err := v.argLabel(inst, 0)
		if err != nil {
			return err
		}
		if err := v.branch(l, v.current); err != nil {
			return err
		}
		v.killState()
		return nil
	case ir.OpWaitTimeout, ir.OpTimeout:
		return nil
	case ir.OpSend:
		if _, err := v.readOperand(inst.Args[0]); err != nil {
			return err
		}
		if _, err := v.readOperand(inst.Args[1]); err != nil {
			return err
		}
		return nil

	case ir.OpSetTupleElement:
		return v.applySetTupleElement(inst)

	case ir.OpSelectVal:
		return v.applySelectVal(inst)
	case ir.OpSelectTupleArity:
		return v.applySelectTupleArity(inst)

	case ir.OpBsStartMatch2:
		return v.applyBsStartMatch2(inst)
	case ir.OpBsSave2:
		return v.applyBsSave2(inst)
	case ir.OpBsRestore2:
		return v.applyBsRestore2(inst)
	case ir.OpBsMatchString, ir.OpBsSkipBits, ir.OpBsSkipUtf8, ir.OpBsTestTail2, ir.OpBsTestUnit:
		return v.applyBsTest(inst)
	case ir.OpBsGetInteger2, ir.OpBsGetBinary2, ir.OpBsGetFloat2, ir.OpBsGetUtf8:
		return v.applyBsGet(inst)

	case ir.OpIsFloat, ir.OpIsTuple, ir.OpIsNonemptyList, ir.OpIsMap, ir.OpIsEqExact, ir.OpTest,
		ir.OpTestArity, ir.OpIsTaggedTuple, ir.OpHasMapFields:
		return v.applyTypeTest(inst)

	case ir.OpBsInit2, ir.OpBsInitBits, ir.OpBsAppend, ir.OpBsPrivateAppend:
		return v.applyBsInit(inst)
	case ir.OpBsPutInteger, ir.OpBsPutBinary, ir.OpBsPutFloat, ir.OpBsPutString:
		return v.applyBsPut(inst)
	case ir.OpBsAdd, ir.OpBsUtf8Size, ir.OpBsUtf16Size:
		return v.applyBsArith(inst)

	case ir.OpPutMapAssoc, ir.OpPutMapExact:
		return v.applyPutMap(inst)
	case ir.OpGetMapElements:
		return v.applyGetMapElements(inst)

	case ir.OpGcBif:
		return v.applyGcBif(inst)

	case ir.OpTupleSize:
		return v.applyTupleSize(inst)
	case ir.OpElement:
		return v.applyElement(inst)
	case ir.OpHd:
		if _, err := v.readOperand(inst.Args[0]); err != nil {
			return err
		}
		return v.writeOperand(inst.Args[1], Term())
	case ir.OpTl:
		if _, err := v.readOperand(inst.Args[0]); err != nil {
			return err
		}
		return v.writeOperand(inst.Args[1], Term())
	case ir.OpMapGet:
		if _, err := v.readOperand(inst.Args[0]); err != nil {
			return err
		}
		if _, err := v.readOperand(inst.Args[1]); err != nil {
			return err
		}
		return v.writeOperand(inst.Args[2], Term())
	case ir.OpIsMapKey:
		l, err := v.argLabel(inst, 0)
		if err != nil {
			return err
		}
		if _, err := v.readOperand(inst.Args[1]); err != nil {
			return err
		}
		if _, err := v.readOperand(inst.Args[2]); err != nil {
			return err
		}
		return v.branch(l, v.current)

	default:
		return diag.New(diag.KindUnknownInstruction, "%s is not in the tier-4 catalog", inst.Op)
	}
}

// applyCall handles both ordinary and tail calls. live is the number
// of X-registers the caller guarantees populated; tail calls require
// an empty ct stack and every live Y-register to be initialized or
// better (invariant 3), plus the match-context discipline of §4.5.
func (v *Verifier) applyCall(inst ir.Instruction, tail bool) error {
	live, err := intArg(inst, 0)
	if err != nil {
		return err
	}
	for i := 0; i < live; i++ {
		// Permissive: the call may be carrying a match context forward
		// in a live register (§4.5 governs what happens to it at a
		// tail call; an ordinary call simply passes it through).
		if _, err := v.readXCtx(i, true); err != nil {
			return diag.New(diag.KindBadNumberOfLiveRegs, "x%d not defined but declared live", i)
		}
	}
	if live > v.current.X.max() {
		return diag.New(diag.KindNotLive, "live count %d exceeds defined x-registers", live)
	}
	v.current.X.truncate(live)

	if tail {
		if err := v.checkTailCall(live); err != nil {
			return err
		}
		v.killState()
		return nil
	}
	v.current.Fls = fpUndefined
	if dst := lastRegisterArgIndex(inst); dst >= 0 {
		return v.writeOperand(inst.Args[dst], Term())
	}
	v.writeX(0, Term())
	return nil
}

// checkTailCall enforces §4.5: at most one X-register may hold a
// match context, the callee's entry must actually expect one if so,
// and the runtime requires ct to be empty and every Y-register ready.
func (v *Verifier) checkTailCall(live int) error {
	if len(v.current.Ct) > 0 {
		return diag.New(diag.KindBadTryCatchNesting, "tail call with open catch/try handlers")
	}
	for i := 0; i < v.current.Y.max(); i++ {
		t, ok := v.current.Y.lookup(i)
		// Strict: a match context surviving in a y-register across a
		// tail call is exactly the "context also appears in a
		// y-register" case §4.5 rejects, so this loop catches it the
		// same way it catches any other unreadable y-register.
		if err := checkReadable(t, ok, false, false); err != nil {
			return err
		}
	}
	return v.checkTailMatchContext()
}

// checkTailMatchContext implements §4.5's x-register half: more than
// one x-register holding a context is always rejected; exactly one is
// only legal across a tail call whose local target is known (from the
// pre-scan match index) to begin with a bs_start_match2 expecting its
// context in that same register. External calls, call_fun, and plain
// returns have no statically known local target, so a single holder
// there is accepted without a callee to check against.
func (v *Verifier) checkTailMatchContext() error {
	var holders []int
	v.current.X.iterate(func(n int, t Type) {
		if t.Kind == KMatchContext {
			holders = append(holders, n)
		}
	})
	if len(holders) == 0 {
		return nil
	}
	if len(holders) > 1 {
		return diag.New(diag.KindMultipleMatchContexts, "more than one register holds a match context across a tail call/return")
	}

	target, ok := tailCallTarget(v.inst)
	if !ok {
		return nil
	}
	entry, ok := v.idx[target]
	if !ok {
		return diag.New(diag.KindNoBsStartMatch2, "tail call into label %d with a match context in x%d, but the callee does not begin with bs_start_match2", target, holders[0])
	}
	ctx, ok := bsStartMatch2Ctx(entry)
	if !ok || ctx.Kind != ir.KindX || ctx.Reg != holders[0] {
		return diag.New(diag.KindUnsuitableBsStartMatch2, "tail call passes a match context in x%d, but the callee's bs_start_match2 does not accept it there", holders[0])
	}
	return nil
}

// tailCallTarget resolves the local entry label a tail call jumps to,
// by convention the label operand following the live-count operand.
// call_last/call_only are the only tail-call ops with a statically
// known local target; call_ext_last/call_ext_only name an external
// MFA and call_fun carries no label at all.
func tailCallTarget(inst ir.Instruction) (ir.Label, bool) {
	switch inst.Op {
	case ir.OpCallLast, ir.OpCallOnly:
		if len(inst.Args) > 1 && inst.Args[1].Kind == ir.KindLabel {
			return inst.Args[1].Label, true
		}
	}
	return 0, false
}

// bsStartMatch2Ctx extracts the [ctx, slots] list's ctx operand from a
// bs_start_match2 instruction found in the pre-scan index.
func bsStartMatch2Ctx(entry ir.Instruction) (ir.Operand, bool) {
	if len(entry.Args) < 3 || entry.Args[2].Kind != ir.KindList || len(entry.Args[2].List) != 2 {
		return ir.Operand{}, false
	}
	return entry.Args[2].List[0], true
}

func (v *Verifier) applyLoopRec(inst ir.Instruction) error {
	l, err := v.argLabel(inst, 0)
	if err != nil {
		return err
	}
	snap := v.current.clone()
	if err := v.branch(l, snap); err != nil {
		return err
	}
	return v.writeOperand(inst.Args[1], Fragile(Term()))
}

func (v *Verifier) applyRemoveMessage(inst ir.Instruction) error {
	// remove_message is the fragile value's removal event: any
	// lingering fragile type in X0 is safe to unwrap here.
	if t, ok := v.current.X.lookup(0); ok && t.Fragile {
		v.current.X.update(0, Unwrap(t))
	}
	return nil
}

func (v *Verifier) applySetTupleElement(inst ir.Instruction) error {
	if !v.current.Setelem {
		return diag.New(diag.KindIllegalContextForSetTupleElem, "set_tuple_element without a preceding setelement/3")
	}
	v.current.Setelem = false
	if _, err := v.readOperand(inst.Args[0]); err != nil {
		return err
	}
	tup, err := v.argReg(inst, 1)
	if err != nil {
		return err
	}
	if _, err := v.readOperand(tup); err != nil {
		return err
	}
	return nil
}

func (v *Verifier) applyTypeTest(inst ir.Instruction) error {
	l, err := v.argLabel(inst, 0)
	if err != nil {
		return err
	}
	for _, a := range inst.Args[1:] {
		if a.IsRegister() {
			if _, err := v.readOperand(a); err != nil {
				return err
			}
		}
	}
	// The failure branch carries the pre-refinement state: refinement
	// is only sound once the test has actually passed.
	failSnap := v.current.clone()
	v.refineTypeTest(inst)
	return v.branch(l, failSnap)
}

func (v *Verifier) applyBsTest(inst ir.Instruction) error {
	l, err := v.argLabel(inst, 0)
	if err != nil {
		return err
	}
	if _, err := v.readOperand(inst.Args[1]); err != nil {
		return err
	}
	return v.branch(l, v.current)
}

func (v *Verifier) applyBsGet(inst ir.Instruction) error {
	l, err := v.argLabel(inst, 0)
	if err != nil {
		return err
	}
	ctxOp := inst.Args[2]
	if _, err := v.readOperand(ctxOp); err != nil {
		return err
	}
	if err := v.branch(l, v.current); err != nil {
		return err
	}
	if dst := lastRegisterArgIndex(inst); dst >= 0 {
		return v.writeOperand(inst.Args[dst], Term())
	}
	return nil
}

func (v *Verifier) applyBsInit(inst ir.Instruction) error {
	l, err := v.argLabel(inst, 0)
	if err != nil {
		return err
	}
	if err := v.branch(l, v.current); err != nil {
		return err
	}
	if dst := lastRegisterArgIndex(inst); dst >= 0 {
		return v.writeOperand(inst.Args[dst], Binary())
	}
	return nil
}

func (v *Verifier) applyBsPut(inst ir.Instruction) error {
	l, err := v.argLabel(inst, 0)
	if err != nil {
		return err
	}
	for _, a := range inst.Args[1:] {
		if a.IsRegister() {
			if _, err := v.readOperand(a); err != nil {
				return err
			}
		}
	}
	return v.branch(l, v.current)
}

func (v *Verifier) applyBsArith(inst ir.Instruction) error {
	for _, a := range inst.Args {
		if a.IsRegister() {
			if _, err := v.readOperand(a); err != nil {
				return err
			}
		}
	}
	if dst := lastRegisterArgIndex(inst); dst >= 0 {
		return v.writeOperand(inst.Args[dst], AnyInteger())
	}
	return nil
}

func (v *Verifier) applyPutMap(inst ir.Instruction) error {
	l, err := v.argLabel(inst, 0)
	if err != nil {
		return err
	}
	if _, err := v.readOperand(inst.Args[1]); err != nil {
		return err
	}
	if len(inst.Args) < 3 || inst.Args[2].Kind != ir.KindList {
		return diag.New(diag.KindBadSource, "%s requires a key, value, ... field list", inst.Op)
	}
	list := inst.Args[2].List
	if err := checkMapFieldList(list); err != nil {
		return err
	}
	for _, a := range list {
		if a.IsRegister() {
			if _, err := v.readOperand(a); err != nil {
				return err
			}
		}
	}
	if err := v.branch(l, v.current); err != nil {
		return err
	}
	if dst := lastRegisterArgIndex(inst); dst >= 0 {
		return v.writeOperand(inst.Args[dst], Map())
	}
	return nil
}

// checkMapFieldList enforces the two put_map_assoc/put_map_exact
// structural requirements §7's taxonomy names: the list must not be
// empty, and any two keys whose identity is known at verification
// time (atoms, integers, floats, nil) must be pairwise distinct.
// Register-held keys aren't statically known and are not compared.
func checkMapFieldList(list []ir.Operand) error {
	if len(list) == 0 {
		return diag.New(diag.KindEmptyFieldList, "map instruction's field list must not be empty")
	}
	if len(list)%2 != 0 {
		return diag.New(diag.KindBadSource, "map instruction's field list must alternate key, value")
	}
	seen := map[interface{}]bool{}
	for i := 0; i+1 < len(list); i += 2 {
		id, ok := mapKeyIdentity(list[i])
		if !ok {
			continue
		}
		if seen[id] {
			return diag.New(diag.KindKeysNotUnique, "map instruction's field list contains a duplicate key")
		}
		seen[id] = true
	}
	return nil
}

func mapKeyIdentity(op ir.Operand) (interface{}, bool) {
	switch op.Kind {
	case ir.KindAtom:
		return [2]interface{}{ir.KindAtom, op.Atom}, true
	case ir.KindInt:
		return [2]interface{}{ir.KindInt, op.Int}, true
	case ir.KindFloat:
		return [2]interface{}{ir.KindFloat, op.Float}, true
	case ir.KindNil:
		return [2]interface{}{ir.KindNil, nil}, true
	default:
		return nil, false
	}
}

func (v *Verifier) applyGetMapElements(inst ir.Instruction) error {
	l, err := v.argLabel(inst, 0)
	if err != nil {
		return err
	}
	t, err := v.readOperand(inst.Args[1])
	if err != nil {
		return err
	}
	if t.Kind != KMap && t.Kind != KTerm {
		return diag.New(diag.KindBadType, "get_map_elements source must be a map, got %s", t)
	}
	return v.branch(l, v.current)
}

func (v *Verifier) applyTupleSize(inst ir.Instruction) error {
	t, err := v.readOperand(inst.Args[0])
	if err != nil {
		return err
	}
	if t.Kind != KTuple && t.Kind != KTerm {
		return diag.New(diag.KindBadType, "tuple_size source must be a tuple, got %s", t)
	}
	return v.writeOperand(inst.Args[1], AnyInteger())
}

func (v *Verifier) applyElement(inst ir.Instruction) error {
	l, err := v.argLabel(inst, 0)
	if err != nil {
		return err
	}
	if _, err := v.readOperand(inst.Args[1]); err != nil {
		return err
	}
	t, err := v.readOperand(inst.Args[2])
	if err != nil {
		return err
	}
	if t.Kind != KTuple && t.Kind != KTerm {
		return diag.New(diag.KindBadType, "element source must be a tuple, got %s", t)
	}
	if err := v.branch(l, v.current); err != nil {
		return err
	}
	return v.writeOperand(inst.Args[3], Term())
}
