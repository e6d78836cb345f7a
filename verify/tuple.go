package verify

import (
	"github.com/velalang/bvc/diag"
	"github.com/velalang/bvc/ir"
)

// applyPutTuple opens a put_tuple/put run (§4.4.1): it allocates one
// heap word for the tuple header and marks Dst as tuple_in_progress
// until exactly Sz subsequent put instructions have completed it.
func (v *Verifier) applyPutTuple(inst ir.Instruction) error {
	sz, err := intArg(inst, 0)
	if err != nil {
		return err
	}
	dst, err := v.argReg(inst, 1)
	if err != nil {
		return err
	}
	if err := v.spendHeap(1); err != nil {
		return err
	}
	dk, _ := v.key(dst)
	if err := v.writeOperand(dst, TupleInProgress()); err != nil {
		return err
	}
	v.current.Puts = putsLeft{
		Active:    true,
		Remaining: sz,
		Target:    dk,
		TupleType: ExactTuple(sz),
	}
	if sz == 0 {
		v.finishTuple()
	}
	return nil
}

// applyPut consumes one element of the run opened by put_tuple.
func (v *Verifier) applyPut(inst ir.Instruction) error {
	if !v.current.Puts.Active {
		return diag.New(diag.KindNotBuildingATuple, "put with no open put_tuple run")
	}
	if _, err := v.readOperand(inst.Args[0]); err != nil {
		return err
	}
	v.current.Puts.Remaining--
	if v.current.Puts.Remaining < 0 {
		return diag.New(diag.KindNotBuildingATuple, "more put instructions than the put_tuple run declared")
	}
	if v.current.Puts.Remaining == 0 {
		v.finishTuple()
	}
	return nil
}

func (v *Verifier) finishTuple() {
	target := v.current.Puts.Target
	tt := v.current.Puts.TupleType
	switch target.File {
	case 'x':
		v.current.X.update(target.N, tt)
	case 'y':
		v.current.Y.update(target.N, tt)
	}
	v.current.Puts = putsLeft{}
}

// applyPutTuple2 builds a whole tuple atomically from its operand
// list (no intervening puts, no tuple_in_progress window).
func (v *Verifier) applyPutTuple2(inst ir.Instruction) error {
	dst, err := v.argReg(inst, 0)
	if err != nil {
		return err
	}
	if len(inst.Args) < 2 || inst.Args[1].Kind != ir.KindList {
		return diag.New(diag.KindBadSource, "put_tuple2 requires an element list")
	}
	elems := inst.Args[1].List
	for _, e := range elems {
		if _, err := v.readOperand(e); err != nil {
			return err
		}
	}
	if err := v.spendHeap(len(elems) + 1); err != nil {
		return err
	}
	return v.writeOperand(dst, ExactTuple(len(elems)))
}
