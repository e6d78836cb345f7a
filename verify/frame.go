package verify

import (
	"github.com/velalang/bvc/diag"
	"github.com/velalang/bvc/ir"
)

// funcHeader is the result of splitting a function's raw instruction
// stream into its leading labels, func_info, entry labels, and body,
// per §4.2.
type funcHeader struct {
	FunInfoBranches []ir.Label // Ls1: valid fun-info branch entries
	EntryLabels     []ir.Label // Ls2: labels leading up to the entry
	Body            []ir.Instruction
	BodyOffset      int
}

func splitHeader(fn *ir.Function) (funcHeader, error) {
	var h funcHeader
	i := 0
	for i < len(fn.Code) && fn.Code[i].Op == ir.OpLabel {
		h.FunInfoBranches = append(h.FunInfoBranches, labelOf(fn.Code[i]))
		i++
	}
	if i >= len(fn.Code) || fn.Code[i].Op != ir.OpFuncInfo {
		return h, diag.New(diag.KindNoEntryLabel, "function body does not begin with func_info")
	}
	i++
	for i < len(fn.Code) && fn.Code[i].Op == ir.OpLabel {
		h.EntryLabels = append(h.EntryLabels, labelOf(fn.Code[i]))
		i++
	}
	found := false
	for _, l := range h.EntryLabels {
		if l == fn.Entry {
			found = true
			break
		}
	}
	if !found {
		return h, diag.New(diag.KindNoEntryLabel, "declared entry label %d is not among the function's leading labels", fn.Entry)
	}
	h.Body = fn.Code[i:]
	h.BodyOffset = i
	return h, nil
}

func labelOf(inst ir.Instruction) ir.Label {
	if len(inst.Args) > 0 && inst.Args[0].Kind == ir.KindLabel {
		return inst.Args[0].Label
	}
	return 0
}

// initialState seeds the state a function's body begins execution in
// (§4.2): X(0..Arity-1) = term, everything else empty.
func initialState(arity int) *State {
	s := newState()
	for i := 0; i < arity; i++ {
		s.X.update(i, Term())
	}
	return s
}

// checkFunInfoBranches verifies invariant 8: every fun-info branch
// label's merged post-body state must have numy = none and every
// formal parameter readable. branched holds the states observed for
// every label visited while verifying the body.
func checkFunInfoBranches(h funcHeader, arity int, branched map[ir.Label]*State) error {
	for _, l := range h.FunInfoBranches {
		st, ok := branched[l]
		if !ok {
			// Never reached in this function's body: nothing to check.
			continue
		}
		if st.Numy.Kind != frameNone {
			return diag.New(diag.KindStackFrame, "fun-info branch %d observed with a live stack frame", l)
		}
		for i := 0; i < arity; i++ {
			t, present := st.X.lookup(i)
			if err := checkReadable(t, present, false, false); err != nil {
				return diag.New(diag.KindUninitializedReg, "fun-info branch %d: parameter x%d not readable", l, i)
			}
		}
	}
	return nil
}
