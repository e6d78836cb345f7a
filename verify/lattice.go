package verify

import (
	"sync/atomic"

	"github.com/velalang/bvc/diag"
)

// matchIDCounter backs freshMatchID, which mints globally unique
// match-context identifiers. It is
// only ever incremented, never reset, so identity survives across
// every clone and partial join in a single Validate run (design note:
// match-context identity). Validate fans functions out across an
// errgroup, and applyBsStartMatch2 calls freshMatchID from whichever
// goroutine is verifying that function, so the counter is atomic.
var matchIDCounter uint64

func freshMatchID() matchID {
	return matchID(atomic.AddUint64(&matchIDCounter, 1))
}

// joinState computes the join of two states observed at the same
// label, per §4.3. Either argument may be nil, meaning "no state
// recorded yet" (dead code / first visit); joining with nil returns a
// clone of the other side unchanged, which is testable property 4.
func joinState(a, b *State) *State {
	if a == nil {
		return b.clone()
	}
	if b == nil {
		return a.clone()
	}

	out := &State{}
	out.Numy = joinNumy(a.Numy, b.Numy)
	out.X = joinRegmap(a.X, b.X)
	out.Y = joinRegmap(a.Y, b.Y)
	out.H = min(a.H, b.H)
	out.HF = min(a.HF, b.HF)
	out.Fls = joinFls(a.Fls, b.Fls)
	out.Ct = joinCt(a.Ct, b.Ct)
	out.Setelem = a.Setelem && b.Setelem
	out.Aliases = joinAliases(a.Aliases, b.Aliases)
	// puts_left is not joined across branches: invariant 5 requires it
	// to be none outside a put run, and a put run never spans a label.
	out.Puts = putsLeft{}
	return out
}

func joinNumy(a, b numy) numy {
	if a.Kind == b.Kind && (a.Kind != frameSize || a.N == b.N) {
		return a
	}
	return undecidedFrame()
}

func joinFls(a, b fpState) fpState {
	if a == b {
		return a
	}
	// Disagreement is conservative: the weaker of the two wins so a
	// later float op still has to re-establish cleared/checked.
	if a == fpUndefined || b == fpUndefined {
		return fpUndefined
	}
	return fpUndefined
}

func joinRegmap(a, b regmap) regmap {
	out := newRegmap()
	n := a.max()
	if b.max() < n {
		n = b.max()
	}
	for i := 0; i < n; i++ {
		ta, oka := a.lookup(i)
		tb, okb := b.lookup(i)
		if oka && okb {
			out.update(i, joinType(ta, tb))
		}
	}
	return out
}

func joinCt(a, b []ctFrame) []ctFrame {
	n := len(a)
	if len(b) != n {
		// Different depths: the verifier can no longer say which
		// handlers are live, so mark the whole stack undecided by
		// collapsing to a single sentinel frame recognized by callers
		// that need a concrete depth (see ctUndecided's callers in
		// tier1.go and tier2.go).
		return []ctFrame{{Labels: nil, YSlot: -1}}
	}
	out := make([]ctFrame, n)
	for i := range a {
		out[i] = ctFrame{
			Labels: a[i].Labels.union(b[i].Labels),
			YSlot:  a[i].YSlot,
		}
		if a[i].YSlot != b[i].YSlot {
			out[i].YSlot = -1
		}
	}
	return out
}

// ctUndecided reports whether a ct stack is the "undecided" sentinel
// produced by joining stacks of different depths.
func ctUndecided(ct []ctFrame) bool {
	return len(ct) == 1 && ct[0].YSlot == -1 && ct[0].Labels == nil
}

func joinAliases(a, b map[regKey]regKey) map[regKey]regKey {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	out := map[regKey]regKey{}
	for k, v := range a {
		if bv, ok := b[k]; ok && bv == v {
			out[k] = v
		}
	}
	return out
}

// joinType implements the type-lattice join in §4.3.
func joinType(a, b Type) Type {
	fragile := a.Fragile || b.Fragile
	t := joinKind(a, b)
	t.Fragile = fragile
	return t
}

func joinKind(a, b Type) Type {
	if a.Kind == b.Kind {
		switch a.Kind {
		case KAtom, KInteger, KFloat:
			if a.HasValue && b.HasValue && valuesEqual(a, b) {
				return a
			}
			return Type{Kind: a.Kind}
		case KTuple:
			n := a.TupleN
			if b.TupleN < n {
				n = b.TupleN
			}
			return AtLeastTuple(n)
		case KCatchtag:
			return Catchtag(a.Labels.union(b.Labels))
		case KTrytag:
			return Trytag(a.Labels.union(b.Labels))
		case KMatchContext:
			return joinMatchContext(a, b)
		case KLiteral:
			if litEqual(a.Lit, b.Lit) {
				return a
			}
			return Term()
		default:
			return a
		}
	}

	// Mismatched kinds.
	if isNumberKind(a.Kind) && isNumberKind(b.Kind) {
		return Number()
	}
	return Term()
}

func isNumberKind(k Kind) bool {
	return k == KInteger || k == KFloat || k == KNumber
}

func valuesEqual(a, b Type) bool {
	switch a.Kind {
	case KAtom:
		return a.AtomVal == b.AtomVal
	case KInteger:
		return a.IntVal == b.IntVal
	case KFloat:
		return a.FloatVal == b.FloatVal
	}
	return false
}

func litEqual(a, b interface{}) bool {
	return a == b
}

func joinMatchContext(a, b Type) Type {
	ac, bc := a.MCtx, b.MCtx
	id := ac.ID
	if ac.ID != bc.ID {
		id = freshMatchID()
	}
	slots := ac.Slots
	if bc.Slots < slots {
		slots = bc.Slots
	}
	return Type{
		Kind: KMatchContext,
		MCtx: &MatchContext{ID: id, Slots: slots, Valid: ac.Valid.and(bc.Valid)},
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// checkReadable raises the standard "register read" diagnostics for
// invariant 1: uninitialized is always illegal, a tuple under
// construction is always illegal (put_tuple's run hides the register
// from every other opcode already, but a direct read must reject it
// too), a Y-slot holding a catch/try tag is illegal except for the
// handler-disposal opcodes that pass allowTag=true, and a match
// context is illegal except for the handful of match-context-aware
// opcodes that pass allowMatchContext=true.
func checkReadable(t Type, present bool, allowTag bool, allowMatchContext bool) error {
	if !present || t.Kind == KUninitialized {
		return diag.New(diag.KindUninitializedReg, "register has not been set on this path")
	}
	if !allowTag && (t.Kind == KCatchtag || t.Kind == KTrytag) {
		if t.Kind == KTrytag {
			return diag.New(diag.KindTrytag, "a trytag cannot be read as an ordinary term")
		}
		return diag.New(diag.KindCatchtag, "a catchtag cannot be read as an ordinary term")
	}
	if t.Kind == KTupleInProgress {
		return diag.New(diag.KindTupleInProgress, "a tuple under construction cannot be read")
	}
	if !allowMatchContext && t.Kind == KMatchContext {
		return diag.New(diag.KindMatchContext, "a match context cannot be read as an ordinary term")
	}
	return nil
}
