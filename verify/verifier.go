package verify

import (
	"github.com/velalang/bvc/diag"
	"github.com/velalang/bvc/ir"
)

// Verifier is the per-function driver: it owns the verifier state
// from §3.4 (current state, the branched label table, the set of
// defined labels) plus everything a transfer function needs to do
// its job. It is never shared across functions — one is constructed
// per function and discarded after use.
type Verifier struct {
	mod *ir.Module
	fn  *ir.Function
	mfa ir.MFA
	idx matchIndex
	ext extensionRegistry
	opts *Options

	current *State
	// branched holds, for every label visited, the join of every
	// predecessor's state observed so far.
	branched map[ir.Label]*State
	defined  map[ir.Label]bool

	body   []ir.Instruction
	offset int // index into fn.Code of the instruction being applied
	inst   ir.Instruction
}

func newVerifier(mod *ir.Module, fn *ir.Function, idx matchIndex, opts *Options) *Verifier {
	return &Verifier{
		mod:      mod,
		fn:       fn,
		idx:      idx,
		ext:      opts.extensions(),
		opts:     opts,
		branched: map[ir.Label]*State{},
		defined:  map[ir.Label]bool{},
	}
}

// raise is a convenience wrapper transfer functions use to throw a
// diagnostic as a value (§7): panic is caught at verifyFunction's
// instruction boundary and converted back into a normal error return.
func raise(err error) { panic(verifyPanic{err}) }

type verifyPanic struct{ err error }

// --- register access ---

func (v *Verifier) readX(n int) (Type, error) {
	return v.readXCtx(n, false)
}

// readXCtx is readX with the match-context gate under the caller's
// control. The gate is opened for the live X-registers of calls and
// gc_bif, and (through readOperandAllowMatchContext) for move, swap,
// bs_start_match2 and the save/restore family; every other read
// rejects a register still holding a match context.
func (v *Verifier) readXCtx(n int, allowMatchContext bool) (Type, error) {
	if n >= 1023 {
		return Type{}, diag.Limit(diag.KindLimit, n)
	}
	t, ok := v.current.X.lookup(n)
	if err := checkReadable(t, ok, false, allowMatchContext); err != nil {
		return Type{}, err
	}
	return t, nil
}

func (v *Verifier) readY(n int, allowTag bool) (Type, error) {
	return v.readYCtx(n, allowTag, false)
}

func (v *Verifier) readYCtx(n int, allowTag bool, allowMatchContext bool) (Type, error) {
	if n >= 1024 {
		return Type{}, diag.Limit(diag.KindLimit, n)
	}
	t, ok := v.current.Y.lookup(n)
	if err := checkReadable(t, ok, allowTag, allowMatchContext); err != nil {
		return Type{}, err
	}
	return t, nil
}

func (v *Verifier) readFR(n int) error {
	if n >= 1024 {
		return diag.Limit(diag.KindLimit, n)
	}
	if !v.current.F.get(n) {
		return diag.New(diag.KindUninitializedReg, "float register fr%d has not been set", n)
	}
	return nil
}

func (v *Verifier) writeX(n int, t Type) {
	if n >= 1023 {
		raise(diag.Limit(diag.KindLimit, n))
	}
	v.current.X.update(n, t)
	v.current.setDef(xKey(n), v.inst)
}

func (v *Verifier) writeY(n int, t Type) {
	if n >= 1024 {
		raise(diag.Limit(diag.KindLimit, n))
	}
	if t.Fragile {
		raise(diag.New(diag.KindFragileMessageReference, "a fragile value cannot be stored in y%d", n))
	}
	v.current.Y.update(n, t)
	v.current.setDef(yKey(n), v.inst)
}

func (v *Verifier) writeFR(n int) {
	if n >= 1024 {
		raise(diag.Limit(diag.KindLimit, n))
	}
	v.current.F.set(n)
}

// readOperand resolves a source Operand to its abstract type without
// recording a definition (reads never define).
func (v *Verifier) readOperand(op ir.Operand) (Type, error) {
	return v.readOperandCtx(op, false)
}

// readOperandAllowMatchContext is readOperand for the few call sites
// that must accept a register still holding a match context: a
// generic move/swap relocating it, or bs_start_match2/bs_save2/
// bs_restore2 consuming it directly.
func (v *Verifier) readOperandAllowMatchContext(op ir.Operand) (Type, error) {
	return v.readOperandCtx(op, true)
}

func (v *Verifier) readOperandCtx(op ir.Operand, allowMatchContext bool) (Type, error) {
	switch op.Kind {
	case ir.KindX:
		return v.readXCtx(op.Reg, allowMatchContext)
	case ir.KindY:
		return v.readYCtx(op.Reg, false, allowMatchContext)
	case ir.KindAtom:
		return AtomVal(op.Atom), nil
	case ir.KindInt:
		return IntVal(op.Int), nil
	case ir.KindFloat:
		return FloatVal(op.Float), nil
	case ir.KindLiteral:
		return Literal(op.Lit), nil
	case ir.KindNil:
		return NilT(), nil
	default:
		return Type{}, diag.New(diag.KindBadSource, "operand %v cannot be read as a value", op)
	}
}

func (v *Verifier) key(op ir.Operand) (regKey, bool) {
	switch op.Kind {
	case ir.KindX:
		return xKey(op.Reg), true
	case ir.KindY:
		return yKey(op.Reg), true
	default:
		return regKey{}, false
	}
}

// --- control flow ---

// killState marks the current path as dead, per tier 1's handling of
// unconditional exits (testable property 4 relies on this: nothing
// further is asserted about a killed path).
func (v *Verifier) killState() { v.current = nil }

// branch joins a snapshot state into label l's branched table entry.
// label 0 means "fail": per §4.3 it is verified (Y-registers
// initialized) and left unchanged, never actually joined anywhere.
func (v *Verifier) branch(l ir.Label, snap *State) error {
	if l == 0 {
		return v.checkFailBranch(snap)
	}
	if int(l) >= int(v.mod.NumLabels) {
		return diag.UndefLabels([]ir.Label{l})
	}
	v.branched[l] = joinState(v.branched[l], snap)
	return nil
}

// checkFailBranch verifies the runtime's implicit "fail to label 0"
// contract: every Y-register up to the current frame size must be
// initialized, since the emulator's generic failure path inspects the
// frame without further checking.
func (v *Verifier) checkFailBranch(snap *State) error {
	if snap == nil || snap.Numy.Kind != frameSize {
		return nil
	}
	for i := 0; i < snap.Numy.N; i++ {
		t, ok := snap.Y.lookup(i)
		if err := checkReadable(t, ok, true, false); err != nil {
			return err
		}
	}
	return nil
}

// enterLabel processes a {label, L} instruction: join current into
// the table, then adopt the join as current for the instructions that
// follow (testable property 4: joining with nil, i.e. no recorded
// state and current nil, yields whatever side is non-nil).
func (v *Verifier) enterLabel(l ir.Label) {
	v.defined[l] = true
	v.branched[l] = joinState(v.branched[l], v.current)
	v.current = v.branched[l].clone()
}
