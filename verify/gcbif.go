package verify

import (
	"github.com/velalang/bvc/diag"
	"github.com/velalang/bvc/ir"
)

// bifReturnTypes is the BIF type table (glossary): a static map from
// built-in function name to the verifier's abstract return type. Only
// the entries that narrow a result beyond plain term are listed; an
// unlisted BIF returns term.
var bifReturnTypes = map[string]Type{
	"length":     AnyInteger(),
	"size":       AnyInteger(),
	"tuple_size": AnyInteger(),
	"map_size":   AnyInteger(),
	"is_map":     Bool(),
	"is_list":    Bool(),
	"is_atom":    Bool(),
	"'+'":        Number(),
	"'-'":        Number(),
	"'*'":        Number(),
}

// bifSourceRefinement narrows a BIF's first argument when the BIF's
// very existence proves something about it, e.g. map_size(Src) only
// succeeds for maps.
var bifSourceRefinement = map[string]Type{
	"map_size": Map(),
}

// applyGcBif implements §4.4.1's contract: Live X-registers must all
// be defined, every Y-register must be initialized-or-better (GC
// safety, since the call may collect), heap reservation is killed,
// the failure branch gets a snapshot, X-registers above Live are
// pruned on the fall-through path, the source is narrowed by the BIF
// identity, and Dst is written from the BIF type table.
func (v *Verifier) applyGcBif(inst ir.Instruction) error {
	name, err := bifName(inst, 0)
	if err != nil {
		return err
	}
	fail, err := v.argLabel(inst, 1)
	if err != nil {
		return err
	}
	live, err := intArg(inst, 2)
	if err != nil {
		return err
	}
	src, err := v.argReg(inst, 3)
	if err != nil {
		return err
	}
	dst, err := v.argReg(inst, 4)
	if err != nil {
		return err
	}

	for i := 0; i < live; i++ {
		// Permissive: a live x-register may be carrying a match context
		// through the call, same as an ordinary call's live registers.
		if _, err := v.readXCtx(i, true); err != nil {
			return diag.New(diag.KindBadNumberOfLiveRegs, "x%d not defined but declared live for %s", i, name)
		}
	}
	for i := 0; i < v.current.Y.max(); i++ {
		t, ok := v.current.Y.lookup(i)
		// Strict: a match context is not GC-safe, so it may not sit in
		// a y-register across a call that can collect.
		if err := checkReadable(t, ok, true, false); err != nil {
			return diag.New(diag.KindAllocated, "y%d not GC-safe at a call to %s", i, name)
		}
	}
	srcT, err := v.readOperand(src)
	if err != nil {
		return err
	}

	v.current.H = 0
	v.current.HF = 0

	failSnap := v.current.clone()
	if err := v.branch(fail, failSnap); err != nil {
		return err
	}

	v.current.X.truncate(live)

	if refined, ok := bifSourceRefinement[name]; ok {
		_ = srcT
		if k, ok2 := v.key(src); ok2 {
			v.current.writeRefined(k, refined)
		}
	}

	result := Term()
	if t, ok := bifReturnTypes[name]; ok {
		result = t
	}
	if name == "setelement" {
		v.current.Setelem = true
	}
	return v.writeOperand(dst, result)
}

func bifName(inst ir.Instruction, i int) (string, error) {
	if i >= len(inst.Args) || inst.Args[i].Kind != ir.KindAtom {
		return "", diag.New(diag.KindBadSource, "gc_bif: argument %d is not a bif name atom", i)
	}
	return inst.Args[i].Atom, nil
}
