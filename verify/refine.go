package verify

import "github.com/velalang/bvc/ir"

// refineTypeTest implements the type-test-fallthrough half of §4.6:
// once a type test has passed (the instruction did not take its
// failure label), the tested source can be narrowed on the path that
// continues. It mutates v.current in place; the caller is responsible
// for having already snapshotted the pre-refinement state for the
// failure branch.
func (v *Verifier) refineTypeTest(inst ir.Instruction) {
	switch inst.Op {
	case ir.OpIsFloat:
		v.narrowSource(inst.Args[1], AnyFloat())
	case ir.OpIsTuple:
		v.narrowSource(inst.Args[1], AtLeastTuple(0))
	case ir.OpIsNonemptyList:
		v.narrowSource(inst.Args[1], Cons())
	case ir.OpIsMap:
		v.narrowSource(inst.Args[1], Map())
	case ir.OpTestArity:
		if len(inst.Args) > 2 && inst.Args[2].Kind == ir.KindInt {
			v.narrowSource(inst.Args[1], ExactTuple(int(inst.Args[2].Int)))
		}
	case ir.OpIsTaggedTuple:
		if len(inst.Args) > 2 && inst.Args[2].Kind == ir.KindInt {
			v.narrowSource(inst.Args[1], AtLeastTuple(int(inst.Args[2].Int)))
		}
	case ir.OpIsEqExact:
		v.refineIsEqExact(inst)
	}
}

// narrowSource writes t back into the source operand's register, if
// it names one. Literal/constant sources have nothing to narrow.
func (v *Verifier) narrowSource(src ir.Operand, t Type) {
	if k, ok := v.key(src); ok {
		v.current.writeRefined(k, t)
	}
}

// refineIsEqExact implements §4.6 rules 1 and 3: comparing a
// register against a literal can retroactively sharpen the type of
// whatever register *defined* that register's current value.
func (v *Verifier) refineIsEqExact(inst ir.Instruction) {
	if len(inst.Args) < 3 {
		return
	}
	a, b := inst.Args[1], inst.Args[2]

	// Rule 3: is_eq_exact(R, literal(Tuple)) => R: tuple(exact N).
	if b.Kind == ir.KindLiteral {
		if n, ok := tupleLiteralSize(b.Lit); ok {
			v.narrowSource(a, ExactTuple(n))
		}
		return
	}
	if b.Kind != ir.KindInt {
		return
	}

	// Rule 1: after tuple_size(T) -> A, is_eq_exact(A, N) => T: tuple(exact N).
	ak, ok := v.key(a)
	if !ok {
		return
	}
	def, ok := v.current.Defs[ak]
	if !ok || def.Op != ir.OpTupleSize {
		return
	}
	tk, ok := v.key(def.Args[0])
	if !ok {
		return
	}
	v.current.writeRefined(tk, ExactTuple(int(b.Int)))
}

// isMapTestSource implements §4.6 rule 2's premise: if def is an
// is_map(M) BIF call, it reports M. Both the gc_bif shape (name at 0,
// fixed source at 3) and the ordinary bif shape (name at 0, source
// the first register argument) are recognized.
func isMapTestSource(def ir.Instruction) (ir.Operand, bool) {
	name, err := bifName(def, 0)
	if err != nil || name != "is_map" {
		return ir.Operand{}, false
	}
	switch def.Op {
	case ir.OpGcBif:
		if len(def.Args) > 3 {
			return def.Args[3], true
		}
	case ir.OpBifMayFail:
		for _, a := range def.Args[1:] {
			if a.IsRegister() {
				return a, true
			}
		}
	}
	return ir.Operand{}, false
}

// isTrueAtom reports whether val is the literal atom true.
func isTrueAtom(val ir.Operand) bool {
	return val.Kind == ir.KindAtom && val.Atom == "true"
}

// tupleLiteralSize reports the arity of lit if it is a host tuple
// value; the concrete representation is opaque to this package
// (Operand.Lit is interface{}), so this only recognizes the shapes a
// driver is documented to produce: a []interface{} standing in for a
// tuple's elements.
func tupleLiteralSize(lit interface{}) (int, bool) {
	if elems, ok := lit.([]interface{}); ok {
		return len(elems), true
	}
	return 0, false
}
