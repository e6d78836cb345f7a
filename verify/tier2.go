package verify

import (
	"github.com/velalang/bvc/diag"
	"github.com/velalang/bvc/ir"
)

// applyTier2 handles instructions that may themselves raise without
// declaring an explicit failure label (§4.4 tier 2): a pure BIF whose
// failure is caught by whatever catch/try is innermost, if any.
func (v *Verifier) applyTier2(inst ir.Instruction) error {
	if ctUndecided(v.current.Ct) {
		return diag.New(diag.KindAmbiguousCatchTryState, "catch/try state is ambiguous at a possibly-raising instruction")
	}
	if len(v.current.Ct) > 0 {
		snap := v.current.clone()
		top := v.current.Ct[len(v.current.Ct)-1]
		for l := range top.Labels {
			if err := v.branch(l, snap); err != nil {
				return err
			}
		}
	}

	dstIdx := lastRegisterArgIndex(inst)
	for i, a := range inst.Args {
		if a.IsRegister() && i != dstIdx {
			if _, err := v.readOperand(a); err != nil {
				return err
			}
		}
	}
	if dstIdx < 0 {
		return nil
	}
	result := Term()
	if name, err := bifName(inst, 0); err == nil {
		if t, ok := bifReturnTypes[name]; ok {
			result = t
		}
	}
	return v.writeOperand(inst.Args[dstIdx], result)
}

func lastRegisterArgIndex(inst ir.Instruction) int {
	for i := len(inst.Args) - 1; i >= 0; i-- {
		if inst.Args[i].IsRegister() {
			return i
		}
	}
	return -1
}
