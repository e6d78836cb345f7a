package verify

import (
	"testing"

	"github.com/velalang/bvc/testutil"
)

func TestJoinTypeSameConcreteValue(t *testing.T) {
	got := joinType(IntVal(1), IntVal(1))
	if got.Kind != KInteger || !got.HasValue || got.IntVal != 1 {
		t.Fatalf("join of equal concrete integers = %v, want integer(1)", got)
	}
}

func TestJoinTypeDifferentConcreteValue(t *testing.T) {
	got := joinType(IntVal(1), IntVal(2))
	if got.Kind != KInteger || got.HasValue {
		t.Fatalf("join of different concrete integers = %v, want bare integer", got)
	}
}

func TestJoinTypeNumberMismatch(t *testing.T) {
	got := joinType(AnyInteger(), AnyFloat())
	if got.Kind != KNumber {
		t.Fatalf("join(integer, float) = %v, want number", got)
	}
}

func TestJoinTypeUnrelatedKinds(t *testing.T) {
	got := joinType(AnyAtom(), Cons())
	if got.Kind != KTerm {
		t.Fatalf("join(atom, cons) = %v, want term", got)
	}
}

func TestJoinTypeFragilitySticks(t *testing.T) {
	got := joinType(Fragile(Term()), Term())
	if !got.Fragile {
		t.Fatal("join of a fragile type with a non-fragile one lost fragility")
	}
}

func TestJoinTypeTupleTakesMin(t *testing.T) {
	got := joinType(ExactTuple(3), ExactTuple(5))
	if got.Kind != KTuple || got.TupleExact || got.TupleN != 3 {
		t.Fatalf("join(tuple(exact 3), tuple(exact 5)) = %v, want tuple(at_least 3)", got)
	}
}

func TestJoinMatchContextSameID(t *testing.T) {
	id := freshMatchID()
	a := NewMatchContext(id, 4)
	a.MCtx.Valid.set(0)
	b := NewMatchContext(id, 4)
	b.MCtx.Valid.set(1)
	got := joinMatchContext(a, b)
	if got.MCtx.ID != id {
		t.Fatalf("join of two contexts sharing an ID minted a new one: %d != %d", got.MCtx.ID, id)
	}
	if got.MCtx.Valid.get(0) || got.MCtx.Valid.get(1) {
		t.Fatal("join kept a save slot valid on only one side")
	}
}

func TestJoinMatchContextDifferentIDMintsFresh(t *testing.T) {
	a := NewMatchContext(freshMatchID(), 4)
	b := NewMatchContext(freshMatchID(), 4)
	got := joinMatchContext(a, b)
	if got.MCtx.ID == a.MCtx.ID || got.MCtx.ID == b.MCtx.ID {
		t.Fatal("join of two contexts with different IDs should mint a fresh one")
	}
}

func TestJoinNumyAgreeing(t *testing.T) {
	got := joinNumy(knownFrame(2), knownFrame(2))
	if got.Kind != frameSize || got.N != 2 {
		t.Fatalf("join of two equal frame sizes = %v, want frame(2)", got)
	}
}

func TestJoinNumyDisagreeing(t *testing.T) {
	got := joinNumy(knownFrame(2), knownFrame(3))
	if got.Kind != frameUndecided {
		t.Fatalf("join of two different frame sizes = %v, want undecided", got)
	}
}

func TestJoinCtSameDepth(t *testing.T) {
	a := []ctFrame{{Labels: newLabelSet(9), YSlot: 0}}
	b := []ctFrame{{Labels: newLabelSet(10), YSlot: 0}}
	got := joinCt(a, b)
	if len(got) != 1 || got[0].YSlot != 0 {
		t.Fatalf("joinCt at equal depth = %v", got)
	}
	if !got[0].Labels[9] || !got[0].Labels[10] {
		t.Fatal("joinCt should union the protected labels")
	}
}

func TestJoinCtDifferentDepthIsUndecided(t *testing.T) {
	a := []ctFrame{{Labels: newLabelSet(9), YSlot: 0}}
	var b []ctFrame
	got := joinCt(a, b)
	if !ctUndecided(got) {
		t.Fatal("joinCt of stacks with different depths should be the undecided sentinel")
	}
}

func TestCheckReadableUninitialized(t *testing.T) {
	if err := checkReadable(Type{}, false, false, false); err == nil {
		t.Fatal("checkReadable accepted an absent register")
	}
	if err := checkReadable(Uninitialized(), true, false, false); err == nil {
		t.Fatal("checkReadable accepted a register holding the uninitialized marker")
	}
}

func TestCheckReadableCatchtagRejectedByDefault(t *testing.T) {
	tag := Catchtag(newLabelSet(1))
	if err := checkReadable(tag, true, false, false); err == nil {
		t.Fatal("checkReadable accepted reading a catchtag as an ordinary term")
	}
	if err := checkReadable(tag, true, true, false); err != nil {
		t.Fatalf("checkReadable with allowTag rejected a catchtag: %v", err)
	}
}

func TestCheckReadableTupleInProgressAlwaysRejected(t *testing.T) {
	if err := checkReadable(TupleInProgress(), true, true, true); err == nil {
		t.Fatal("checkReadable accepted reading a tuple under construction")
	}
}

func TestCheckReadableMatchContextGatedByAllowMatchContext(t *testing.T) {
	ctx := NewMatchContext(freshMatchID(), 2)
	if err := checkReadable(ctx, true, false, false); err == nil {
		t.Fatal("checkReadable accepted a match context without allowMatchContext")
	}
	if err := checkReadable(ctx, true, false, true); err != nil {
		t.Fatalf("checkReadable with allowMatchContext rejected a match context: %v", err)
	}
}

func TestJoinStateWithNilIsIdentity(t *testing.T) {
	s := newState()
	s.X.update(0, Term())
	got := joinState(nil, s)
	if got == s {
		t.Fatal("joinState(nil, s) should return a clone, not the same pointer")
	}
	tp, ok := got.X.lookup(0)
	if !ok || tp.Kind != KTerm {
		t.Fatal("joinState(nil, s) lost s's register contents")
	}
}

// A fresh state's register maps start as nil-backed slices; clone()
// always allocates, so a literal reflect.DeepEqual would call the two
// unequal even though nothing observable differs.
func TestStateCloneOfFreshStateIsDeepEqual(t *testing.T) {
	s := newState()
	c := s.clone()
	if !testutil.DeepEqual(s, c) {
		t.Fatal("clone of a fresh state is not deep-equal to the original")
	}
}

func TestTypeCloneCopiesLabels(t *testing.T) {
	orig := Catchtag(newLabelSet(1, 2))
	cloned := orig.clone()
	cloned.Labels[3] = true
	if orig.Labels[3] {
		t.Fatal("mutating a cloned type's Labels affected the original")
	}
	if !cloned.Labels[1] || !cloned.Labels[2] {
		t.Fatal("clone lost labels present on the original")
	}
}
