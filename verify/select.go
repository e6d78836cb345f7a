package verify

import (
	"github.com/velalang/bvc/diag"
	"github.com/velalang/bvc/ir"
)

// applySelectVal implements §4.4.1's select_val contract: all
// selectors must share one type, each arm gets a state in which Src
// is refined to the matched value, and the fall-through path is dead
// (the instruction itself never falls through; it always branches,
// either to an arm or to fail).
func (v *Verifier) applySelectVal(inst ir.Instruction) error {
	src := inst.Args[0]
	if _, err := v.readOperand(src); err != nil {
		return err
	}
	fail, err := v.argLabel(inst, 1)
	if err != nil {
		return err
	}
	if len(inst.Args) < 3 || inst.Args[2].Kind != ir.KindList {
		return diag.New(diag.KindBadSelectList, "select_val requires a (value, label) arm list")
	}
	arms := inst.Args[2].List
	if len(arms)%2 != 0 {
		return diag.New(diag.KindBadSelectList, "select_val arm list must alternate value, label")
	}

	var kind ir.OperandKind
	haveKind := false
	srcKey, hasKey := v.key(src)

	// §4.6 rule 2: if Src is the boolean result of an is_map(M) test,
	// the arm taken when Src = true proves M is a map.
	var mapKey regKey
	hasMapKey := false
	if hasKey {
		if def, ok := v.current.Defs[srcKey]; ok {
			if m, ok := isMapTestSource(def); ok {
				if k, ok := v.key(m); ok {
					mapKey, hasMapKey = k, true
				}
			}
		}
	}

	for i := 0; i+1 < len(arms); i += 2 {
		val, lbl := arms[i], arms[i+1]
		if lbl.Kind != ir.KindLabel {
			return diag.New(diag.KindBadSelectList, "select_val arm target must be a label")
		}
		if !haveKind {
			kind = val.Kind
			haveKind = true
		} else if val.Kind != kind {
			return diag.New(diag.KindBadSelectList, "select_val arms mix value types")
		}

		snap := v.current.clone()
		if hasKey {
			if refined, ok := refinedSelectValue(val); ok {
				snap.writeRefined(srcKey, refined)
			}
		}
		if hasMapKey && isTrueAtom(val) {
			snap.writeRefined(mapKey, Map())
		}
		if err := v.branch(lbl.Label, snap); err != nil {
			return err
		}
	}

	if err := v.branch(fail, v.current); err != nil {
		return err
	}
	v.killState()
	return nil
}

func refinedSelectValue(val ir.Operand) (Type, bool) {
	switch val.Kind {
	case ir.KindAtom:
		return AtomVal(val.Atom), true
	case ir.KindInt:
		return IntVal(val.Int), true
	case ir.KindFloat:
		return FloatVal(val.Float), true
	default:
		return Type{}, false
	}
}

// writeRefined installs t at k without going through the normal
// write path (no def/alias bookkeeping): this is a branch-local
// narrowing, not a new instruction's definition.
func (s *State) writeRefined(k regKey, t Type) {
	switch k.File {
	case 'x':
		s.X.update(k.N, t)
	case 'y':
		s.Y.update(k.N, t)
	}
}

// applySelectTupleArity dispatches on a tuple's arity; each arm
// refines Src to tuple(exact N).
func (v *Verifier) applySelectTupleArity(inst ir.Instruction) error {
	src := inst.Args[0]
	if _, err := v.readOperand(src); err != nil {
		return err
	}
	fail, err := v.argLabel(inst, 1)
	if err != nil {
		return err
	}
	if len(inst.Args) < 3 || inst.Args[2].Kind != ir.KindList {
		return diag.New(diag.KindBadTupleArityList, "select_tuple_arity requires an (arity, label) arm list")
	}
	arms := inst.Args[2].List
	if len(arms)%2 != 0 {
		return diag.New(diag.KindBadTupleArityList, "select_tuple_arity arm list must alternate arity, label")
	}
	srcKey, hasKey := v.key(src)
	for i := 0; i+1 < len(arms); i += 2 {
		n, lbl := arms[i], arms[i+1]
		if n.Kind != ir.KindInt || lbl.Kind != ir.KindLabel {
			return diag.New(diag.KindBadTupleArityList, "select_tuple_arity arm is malformed")
		}
		snap := v.current.clone()
		if hasKey {
			snap.writeRefined(srcKey, ExactTuple(int(n.Int)))
		}
		if err := v.branch(lbl.Label, snap); err != nil {
			return err
		}
	}
	if err := v.branch(fail, v.current); err != nil {
		return err
	}
	v.killState()
	return nil
}
