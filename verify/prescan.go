package verify

import "github.com/velalang/bvc/ir"

// matchIndex is the cross-function match-context table built once
// before any per-function verification begins (§4.1, §5: it must be
// finalized and immutable before the concurrent per-function pass
// starts). It maps a function's entry label to the bs_start_match2
// instruction a tail call into that function must satisfy.
type matchIndex map[ir.Label]ir.Instruction

// buildMatchIndex walks every function in mod, looking past leading
// {label, entry}/line noise for a bs_start_match2 at the head, or the
// one tolerated historical pattern:
//
//	test _, fail, ...
//	bs_context_to_binary _
//	...
//	{label, fail}
//	bs_start_match2 ...
//
// Anything else leaves the function's entry unindexed, which is not
// itself an error: it only matters if some other function later
// tail-calls in with a match context in hand (§4.5).
func buildMatchIndex(mod *ir.Module) matchIndex {
	idx := matchIndex{}
	for _, fn := range mod.Functions {
		if inst, ok := scanEntry(fn); ok {
			idx[fn.Entry] = inst
		}
	}
	return idx
}

func scanEntry(fn *ir.Function) (ir.Instruction, bool) {
	code := skipLabelsAndLines(fn.Code, 0)
	if code >= len(fn.Code) {
		return ir.Instruction{}, false
	}
	if fn.Code[code].Op == ir.OpBsStartMatch2 {
		return fn.Code[code], true
	}

	// Tolerated dead-code pattern (design note: open question — dead-
	// code tolerance). Flagged here for future removal; do not
	// generalize beyond this exact shape.
	if fn.Code[code].Op != ir.OpTest {
		return ir.Instruction{}, false
	}
	test := fn.Code[code]
	if len(test.Args) == 0 || test.Args[0].Kind != ir.KindLabel {
		return ir.Instruction{}, false
	}
	fail := test.Args[0].Label
	next := code + 1
	if next >= len(fn.Code) || fn.Code[next].Op != ir.OpBsContextToBinary {
		return ir.Instruction{}, false
	}
	for i := next + 1; i < len(fn.Code); i++ {
		if fn.Code[i].Op == ir.OpLabel && len(fn.Code[i].Args) > 0 &&
			fn.Code[i].Args[0].Kind == ir.KindLabel && fn.Code[i].Args[0].Label == fail {
			after := skipLabelsAndLines(fn.Code, i+1)
			if after < len(fn.Code) && fn.Code[after].Op == ir.OpBsStartMatch2 {
				return fn.Code[after], true
			}
			return ir.Instruction{}, false
		}
	}
	return ir.Instruction{}, false
}

func skipLabelsAndLines(code []ir.Instruction, from int) int {
	i := from
	for i < len(code) && (code[i].Op == ir.OpLabel || code[i].Op == ir.OpLine || code[i].Op == ir.OpFuncInfo) {
		i++
	}
	return i
}
