package verify

import (
	"fmt"
	"io"

	"github.com/davecgh/go-spew/spew"
	"github.com/velalang/bvc/ir"
)

// Trace is an optional debugging sink, analogous to the teacher's
// vm.TraceOut: when set on Options, the dispatcher dumps the full
// abstract state before and after every instruction, which is the
// fastest way to see exactly where a rejected function's state
// diverged from what its author expected.
type Trace interface {
	Before(mfa ir.MFA, offset int, inst ir.Instruction, s *State)
	After(mfa ir.MFA, offset int, inst ir.Instruction, s *State)
}

// WriterTrace writes a spew.Sdump of the state to w around every
// instruction. It is safe to share across the concurrent per-function
// fan-out in Validate only if w's Write is itself safe for concurrent
// use; callers that need ordered output should wrap w or pass
// MaxConcurrency: 1.
type WriterTrace struct {
	W io.Writer
}

func (t WriterTrace) Before(mfa ir.MFA, offset int, inst ir.Instruction, s *State) {
	fmt.Fprintf(t.W, "%s @%d before %s\n%s", mfa, offset, inst, spew.Sdump(s))
}

func (t WriterTrace) After(mfa ir.MFA, offset int, inst ir.Instruction, s *State) {
	fmt.Fprintf(t.W, "%s @%d after %s\n%s", mfa, offset, inst, spew.Sdump(s))
}
