package verify

import "github.com/velalang/bvc/ir"

// Extension lets a host register a transfer function for an opcode
// outside the fixed catalog in package ir (§1: "the verifier must
// accept new opcodes through an extension interface"). Tier reports
// which of the four dispatch tiers in §4.4 the opcode belongs to, and
// tierOf returns it. The dispatcher hands an extension opcode straight
// to Apply: it does not reset setelem, apply the put_tuple run guard,
// check fls legality, or branch to catch/try handlers for it, whatever
// Tier returns.
type Extension interface {
	// Name is the instruction mnemonic this extension claims, matched
	// against ir.Instruction.Ext.
	Name() string
	Tier() int
	Apply(v *Verifier, inst ir.Instruction) error
}

// extensionRegistry looks extensions up by mnemonic.
type extensionRegistry map[string]Extension

func newExtensionRegistry(exts []Extension) extensionRegistry {
	r := make(extensionRegistry, len(exts))
	for _, e := range exts {
		r[e.Name()] = e
	}
	return r
}
