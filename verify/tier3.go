package verify

import (
	"github.com/velalang/bvc/diag"
	"github.com/velalang/bvc/ir"
)

// applyTier3 handles the floating-point family (§4.4 tier 3). Legality
// of the fls transition itself was already checked in guardFloatState;
// this only performs the state update.
func (v *Verifier) applyTier3(inst ir.Instruction) error {
	switch inst.Op {
	case ir.OpFAdd, ir.OpFSub, ir.OpFMul, ir.OpFDiv:
		if err := v.readFR(inst.Args[0].Reg); err != nil {
			return err
		}
		if err := v.readFR(inst.Args[1].Reg); err != nil {
			return err
		}
		v.writeFR(inst.Args[2].Reg)
		v.current.Fls = fpCleared
		return nil

	case ir.OpFNegate:
		if err := v.readFR(inst.Args[0].Reg); err != nil {
			return err
		}
		v.writeFR(inst.Args[1].Reg)
		v.current.Fls = fpCleared
		return nil

	case ir.OpFClearerror:
		v.current.Fls = fpCleared
		return nil

	case ir.OpFCheckerror:
		v.current.Fls = fpChecked
		return nil

	case ir.OpFMove:
		if inst.Args[0].Kind == ir.KindFR {
			if err := v.readFR(inst.Args[0].Reg); err != nil {
				return err
			}
			return v.writeOperand(inst.Args[1], AnyFloat())
		}
		t, err := v.readOperand(inst.Args[0])
		if err != nil {
			return err
		}
		if t.Kind != KFloat {
			return diag.New(diag.KindBadType, "fmove source must be a float, got %s", t)
		}
		v.writeFR(inst.Args[1].Reg)
		return nil
	}
	return nil
}
