package verify

import "github.com/velalang/bvc/ir"

// checkLabels verifies that every label referenced anywhere in fn's
// instruction stream is either 0 (fail) or one actually introduced by
// an {label, L} instruction within fn, and within NumLabels. This is
// the undef_labels diagnostic (§6.1): a referenced-but-undefined
// label is always a compiler bug, never a user error.
func checkLabels(mod *ir.Module, fn *ir.Function) []ir.Label {
	defined := map[ir.Label]bool{0: true}
	for _, inst := range fn.Code {
		if inst.Op == ir.OpLabel {
			defined[labelOf(inst)] = true
		}
	}

	seen := map[ir.Label]bool{}
	var undef []ir.Label
	for _, inst := range fn.Code {
		for _, l := range referencedLabels(inst) {
			if seen[l] {
				continue
			}
			seen[l] = true
			if !defined[l] || uint32(l) >= mod.NumLabels {
				undef = append(undef, l)
			}
		}
	}
	return undef
}

func referencedLabels(inst ir.Instruction) []ir.Label {
	var out []ir.Label
	for i, a := range inst.Args {
		if i == 1 && isLocalCallTarget(inst.Op) {
			// A local call's target label lives in the module's flat
			// label space shared across every function (that's what
			// lets a tail call jump straight into another function's
			// entry, per the match-context pre-scan index), not in
			// this function's own label set, so it is exempt from the
			// intra-function definedness check.
			continue
		}
		out = appendOperandLabels(out, a)
	}
	return out
}

func isLocalCallTarget(op ir.Op) bool {
	switch op {
	case ir.OpCall, ir.OpCallLast, ir.OpCallOnly:
		return true
	}
	return false
}

func appendOperandLabels(out []ir.Label, op ir.Operand) []ir.Label {
	switch op.Kind {
	case ir.KindLabel:
		if op.Label != 0 {
			out = append(out, op.Label)
		}
	case ir.KindList:
		for _, e := range op.List {
			out = appendOperandLabels(out, e)
		}
	}
	return out
}
