// Package diag defines the verifier's structured diagnostics: the
// error-kind taxonomy from the verifier's error handling design, and
// the conversion from an internal error value to a (mfa, reason,
// offset) diagnostic a caller can act on or print.
package diag

import (
	"fmt"

	"github.com/velalang/bvc/errors"
	"github.com/velalang/bvc/ir"
)

// Kind names one of the verifier's error taxonomy members. Every kind
// named here must be producible by some transfer function.
type Kind string

const (
	KindUninitializedReg              Kind = "uninitialized_reg"
	KindBadSource                     Kind = "bad_source"
	KindBadType                       Kind = "bad_type"
	KindInvalidStore                  Kind = "invalid_store"
	KindCatchtag                      Kind = "catchtag"
	KindTrytag                        Kind = "trytag"
	KindTupleInProgress               Kind = "tuple_in_progress"
	KindMatchContext                  Kind = "match_context"
	KindNoBSMContext                  Kind = "no_bsm_context"
	KindIllegalSave                   Kind = "illegal_save"
	KindIllegalRestore                Kind = "illegal_restore"
	KindNoBsStartMatch2               Kind = "no_bs_start_match2"
	KindUnsuitableBsStartMatch2       Kind = "unsuitable_bs_start_match2"
	KindMultipleMatchContexts         Kind = "multiple_match_contexts"
	KindExistingStackFrame            Kind = "existing_stack_frame"
	KindAllocated                     Kind = "allocated"
	KindStackFrame                    Kind = "stack_frame"
	KindTrim                          Kind = "trim"
	KindHeapOverflow                  Kind = "heap_overflow"
	KindBadFloatingPointState         Kind = "bad_floating_point_state"
	KindUnsafeInstruction             Kind = "unsafe_instruction"
	KindIllegalContextForSetTupleElem Kind = "illegal_context_for_set_tuple_element"
	KindUnknownCatchTryState          Kind = "unknown_catch_try_state"
	KindAmbiguousCatchTryState        Kind = "ambiguous_catch_try_state"
	KindUnknownSizeOfStackframe       Kind = "unknown_size_of_stackframe"
	KindUnfinishedCatchTry            Kind = "unfinished_catch_try"
	KindBadTryCatchNesting            Kind = "bad_try_catch_nesting"
	KindBadNumberOfLiveRegs           Kind = "bad_number_of_live_regs"
	KindNotLive                       Kind = "not_live"
	KindNoEntryLabel                  Kind = "no_entry_label"
	KindIllegalInstruction            Kind = "illegal_instruction"
	KindUnknownInstruction            Kind = "unknown_instruction"
	KindNotBuildingATuple             Kind = "not_building_a_tuple"
	KindBadSelectList                 Kind = "bad_select_list"
	KindBadTupleArityList             Kind = "bad_tuple_arity_list"
	KindKeysNotUnique                 Kind = "keys_not_unique"
	KindEmptyFieldList                Kind = "empty_field_list"
	KindFragileMessageReference       Kind = "fragile_message_reference"
	KindLimit                         Kind = "limit"
	KindUndefLabels                   Kind = "undef_labels"
)

// VerifyError is thrown as a value by a transfer function and caught
// at the per-instruction boundary (see verify.function). It carries
// just the taxonomy kind and enough structured detail to render one of
// the three diagnostic shapes in Diagnostic.
type VerifyError struct {
	Kind   Kind
	Detail string
	// Limit-kind diagnostics report what was exceeded.
	Limit interface{}
	// Labels carries the undef_labels payload.
	Labels []ir.Label
}

func (e *VerifyError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
	return string(e.Kind)
}

func New(kind Kind, detail string, args ...interface{}) error {
	return &VerifyError{Kind: kind, Detail: fmt.Sprintf(detail, args...)}
}

func Limit(kind Kind, limit interface{}) error {
	return &VerifyError{Kind: kind, Limit: limit}
}

func UndefLabels(labels []ir.Label) error {
	return &VerifyError{Kind: KindUndefLabels, Labels: labels}
}

// Diagnostic is one verifier finding, always scoped to a single
// function (mfa) and, except for undef_labels, a single instruction
// offset within that function.
type Diagnostic struct {
	MFA        ir.MFA
	Offset     int
	Inst       ir.Instruction
	Kind       Kind
	Reason     string
	Limit      interface{}
	UndefLabel []ir.Label
}

// Wrap decorates err, raised by a transfer function, with the (mfa,
// instruction, offset) context the error-handling design requires,
// and converts it into a Diagnostic. Any error that is not a
// *VerifyError is wrapped as unsafe_instruction so a caller always
// gets a well-formed Diagnostic back.
func Wrap(mfa ir.MFA, offset int, inst ir.Instruction, err error) Diagnostic {
	ve, ok := err.(*VerifyError)
	if !ok {
		return Diagnostic{
			MFA: mfa, Offset: offset, Inst: inst,
			Kind:   KindUnsafeInstruction,
			Reason: errors.Wrap(err, "internal verifier error").Error(),
		}
	}
	return Diagnostic{
		MFA: mfa, Offset: offset, Inst: inst,
		Kind: ve.Kind, Reason: ve.Detail, Limit: ve.Limit, UndefLabel: ve.Labels,
	}
}

// Format renders d as the three-line explanation plus the offending
// instruction, per the verifier's error-handling design: a limit
// diagnostic hints at refactoring, and undef_labels reads as a
// compiler-bug message rather than a user-facing one.
func Format(d Diagnostic) string {
	switch d.Kind {
	case KindUndefLabels:
		return fmt.Sprintf(
			"%s: internal compiler error: function refers to undefined label(s) %v.\n"+
				"This indicates a bug in the compiler, not in your program.\n"+
				"Please report it.",
			d.MFA, d.UndefLabel)
	case KindLimit:
		return fmt.Sprintf(
			"%s, offset %d: implementation limit exceeded: %v.\n"+
				"%s\n"+
				"Consider refactoring this function into smaller pieces.",
			d.MFA, d.Offset, d.Limit, d.Inst)
	default:
		return fmt.Sprintf(
			"%s, offset %d: %s.\n"+
				"%s\n"+
				"%s",
			d.MFA, d.Offset, d.Kind, d.Inst, d.Reason)
	}
}
