package verify

import (
	"github.com/velalang/bvc/diag"
	"github.com/velalang/bvc/ir"
)

// FunctionResult is the read-only per-function output from §13's
// supplemented feature: the merged state observed at each of the
// function's fun-info branch labels, useful to a host doing
// whole-program analysis after a successful Validate call. It is
// never fed back into the verifier itself.
type FunctionResult struct {
	MFA             ir.MFA
	FunInfoBranches map[ir.Label]*State
}

// verifyFunction runs the full single-function pipeline (§2's
// components 2-7) and returns either a FunctionResult or the
// diagnostics that rejected the function.
func verifyFunction(mod *ir.Module, fn *ir.Function, idx matchIndex, opts *Options) (*FunctionResult, []diag.Diagnostic) {
	mfa := fn.MFA(mod.Name)

	if undef := checkLabels(mod, fn); len(undef) > 0 {
		return nil, []diag.Diagnostic{diag.Wrap(mfa, 0, ir.Instruction{}, diag.UndefLabels(undef))}
	}

	h, err := splitHeader(fn)
	if err != nil {
		return nil, []diag.Diagnostic{diag.Wrap(mfa, 0, ir.Instruction{}, err)}
	}

	v := newVerifier(mod, fn, idx, opts)
	v.mfa = mfa
	v.body = h.Body
	v.current = initialState(fn.Arity)

	var diags []diag.Diagnostic
	for off, inst := range h.Body {
		v.offset = h.BodyOffset + off
		v.inst = inst

		if inst.Op == ir.OpLabel {
			v.enterLabel(labelOf(inst))
			continue
		}
		if v.current == nil {
			// Dead code: testable property 4 — nothing further is
			// asserted until the next label revives the path.
			continue
		}
		if opts.Trace != nil {
			opts.Trace.Before(mfa, v.offset, inst, v.current)
		}
		if err := v.applyChecked(inst); err != nil {
			diags = append(diags, diag.Wrap(mfa, v.offset, inst, err))
			// The spec records one diagnostic per offending
			// instruction and continues verifying the rest of the
			// function so a single function can surface more than
			// one defect per run.
			v.current = nil
			continue
		}
		if opts.Trace != nil && v.current != nil {
			opts.Trace.After(mfa, v.offset, inst, v.current)
		}
	}

	if err := checkFunInfoBranches(h, fn.Arity, v.branched); err != nil {
		diags = append(diags, diag.Wrap(mfa, h.BodyOffset, ir.Instruction{}, err))
	}

	if len(diags) > 0 {
		return nil, diags
	}

	res := &FunctionResult{MFA: mfa, FunInfoBranches: map[ir.Label]*State{}}
	for _, l := range h.FunInfoBranches {
		if st, ok := v.branched[l]; ok {
			res.FunInfoBranches[l] = st
		}
	}
	return res, nil
}

// applyChecked calls v.apply, converting a raise()d panic back into
// a normal error return (§7: "errors are thrown as values ... caught
// at the per-instruction boundary").
func (v *Verifier) applyChecked(inst ir.Instruction) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if vp, ok := r.(verifyPanic); ok {
				err = vp.err
				return
			}
			panic(r)
		}
	}()
	return v.apply(inst)
}
