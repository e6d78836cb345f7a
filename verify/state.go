package verify

import "github.com/velalang/bvc/ir"

// fpState is the floating-point error-state automaton (§4.4 tier 3):
// undefined -> cleared -> checked -> cleared ...
type fpState uint8

const (
	fpUndefined fpState = iota
	fpCleared
	fpChecked
)

func (f fpState) String() string {
	switch f {
	case fpCleared:
		return "cleared"
	case fpChecked:
		return "checked"
	default:
		return "undefined"
	}
}

// frameKind distinguishes the three numy states a join may produce.
type frameKind uint8

const (
	frameNone frameKind = iota // no stack frame allocated
	frameSize                  // a known frame size
	frameUndecided             // merge of disagreeing sizes
)

type numy struct {
	Kind frameKind
	N    int
}

func noFrame() numy           { return numy{Kind: frameNone} }
func knownFrame(n int) numy   { return numy{Kind: frameSize, N: n} }
func undecidedFrame() numy    { return numy{Kind: frameUndecided} }

// regKey names one register slot across all three files, used as the
// key for defs/aliases, which must talk about X, Y and F registers
// uniformly.
type regKey struct {
	File byte // 'x', 'y', or 'f'
	N    int
}

func xKey(n int) regKey { return regKey{File: 'x', N: n} }
func yKey(n int) regKey { return regKey{File: 'y', N: n} }

// putsLeft tracks an in-progress put_tuple/put run (§4.4.1).
type putsLeft struct {
	Active    bool
	Remaining int
	Target    regKey
	TupleType Type
}

// ctFrame is one entry on the catch/try handler stack: the failure
// labels it protects, and the Y-slot its tag was installed at (used
// to enforce the strictly-decreasing-innermost-first discipline,
// invariant 4 and testable property 6).
type ctFrame struct {
	Labels labelSet
	YSlot  int
}

// State is one per-branch abstract machine state (data model §3.3).
// It is always copied by value at a branch/clone point; no field is
// mutated in place across a join (design note: mutable record
// updates, ported as value semantics rather than in-place mutation).
type State struct {
	X regmap
	Y regmap
	F bitset

	Numy numy

	H  int // reserved heap words
	HF int // reserved float heap words

	Fls fpState

	Ct []ctFrame

	Setelem bool

	Puts putsLeft

	Defs    map[regKey]ir.Instruction
	Aliases map[regKey]regKey
}

func newState() *State {
	return &State{
		X:    newRegmap(),
		Y:    newRegmap(),
		F:    newBitset(),
		Numy: noFrame(),
		Fls:  fpUndefined,
	}
}

// clone returns a deep-enough copy: every field that a transfer
// function might mutate is duplicated, so the original continues to
// describe the fall-through path unaffected by a branch's changes.
func (s *State) clone() *State {
	if s == nil {
		return nil
	}
	out := &State{
		X:       s.X.clone(),
		Y:       s.Y.clone(),
		F:       s.F.clone(),
		Numy:    s.Numy,
		H:       s.H,
		HF:      s.HF,
		Fls:     s.Fls,
		Setelem: s.Setelem,
		Puts:    s.Puts,
	}
	out.Puts.TupleType = s.Puts.TupleType.clone()
	if len(s.Ct) > 0 {
		out.Ct = make([]ctFrame, len(s.Ct))
		for i, c := range s.Ct {
			cc := ctFrame{YSlot: c.YSlot}
			if c.Labels != nil {
				cc.Labels = c.Labels.union(nil)
			}
			out.Ct[i] = cc
		}
	}
	if len(s.Defs) > 0 {
		out.Defs = make(map[regKey]ir.Instruction, len(s.Defs))
		for k, v := range s.Defs {
			out.Defs[k] = v
		}
	}
	if len(s.Aliases) > 0 {
		out.Aliases = make(map[regKey]regKey, len(s.Aliases))
		for k, v := range s.Aliases {
			out.Aliases[k] = v
		}
	}
	return out
}

// setAlias installs the symmetric a<->b alias, replacing whatever
// either side previously aliased to (an aliased register can only
// track one partner at a time, which is sufficient for the
// defining-instruction refinement in §4.6).
func (s *State) setAlias(a, b regKey) {
	if s.Aliases == nil {
		s.Aliases = map[regKey]regKey{}
	}
	s.clearAlias(a)
	s.clearAlias(b)
	s.Aliases[a] = b
	s.Aliases[b] = a
}

func (s *State) clearAlias(a regKey) {
	if s.Aliases == nil {
		return
	}
	if b, ok := s.Aliases[a]; ok {
		delete(s.Aliases, a)
		delete(s.Aliases, b)
	}
}

func (s *State) setDef(k regKey, inst ir.Instruction) {
	if s.Defs == nil {
		s.Defs = map[regKey]ir.Instruction{}
	}
	s.Defs[k] = inst
	// A fresh definition invalidates any alias the register previously
	// took part in.
	s.clearAlias(k)
}