package verify

import (
	"reflect"
	"testing"

	"github.com/velalang/bvc/diag"
	"github.com/velalang/bvc/ir"
)

func trivialOKFunction(name string, entry ir.Label) *ir.Function {
	return wrapBody(name, 0, entry, ir.Instruction{Op: ir.OpReturn})
}

func trivialBadFunction(name string, entry ir.Label) *ir.Function {
	return wrapBody(name, 0, entry,
		ir.Instruction{Op: ir.OpAllocate, Args: []ir.Operand{ir.Int(1), ir.Int(0)}},
		ir.Instruction{Op: ir.OpReturn},
	)
}

// Testable property 1 (determinism) and 2 (independence): verifying a
// module with one good and one bad function reports exactly the bad
// function's diagnostic, and running Validate twice on the same
// module produces the same outcome.
func TestValidateReportsOnlyTheFailingFunction(t *testing.T) {
	mod := &ir.Module{
		Name:      "m",
		NumLabels: 3,
		Functions: []*ir.Function{trivialOKFunction("ok", 1), trivialBadFunction("bad", 2)},
	}

	res1, diags1 := Validate(mod, nil)
	if res1 != nil {
		t.Fatalf("expected Validate to fail given bad's unmatched stack frame, got a Result")
	}
	if len(diags1) != 1 || diags1[0].Kind != diag.KindStackFrame {
		t.Fatalf("diags = %v, want exactly one stack_frame diagnostic", diags1)
	}
	if diags1[0].MFA.Name != "bad" {
		t.Fatalf("diagnostic blamed %q, want \"bad\"", diags1[0].MFA.Name)
	}

	_, diags2 := Validate(mod, nil)
	if !reflect.DeepEqual(diags1, diags2) {
		t.Fatalf("Validate is not deterministic: %v != %v", diags1, diags2)
	}
}

func TestValidateAcceptsAllGoodFunctions(t *testing.T) {
	mod := &ir.Module{
		Name:      "m",
		NumLabels: 3,
		Functions: []*ir.Function{trivialOKFunction("a", 1), trivialOKFunction("b", 2)},
	}
	res, diags := Validate(mod, nil)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if res == nil || len(res.Functions) != 2 {
		t.Fatalf("expected two verified functions, got %v", res)
	}
}

// min_verifier_version gating (§12): a module declaring a minimum
// version the running verifier cannot satisfy is rejected with a
// single diagnostic, although its only function is valid.
func TestValidateVersionGate(t *testing.T) {
	mod := &ir.Module{
		Name:       "m",
		NumLabels:  2,
		Functions:  []*ir.Function{trivialOKFunction("a", 1)},
		Attributes: []ir.Attribute{{Name: "min_verifier_version", Value: "999.0.0"}},
	}
	_, diags := Validate(mod, nil)
	if len(diags) != 1 {
		t.Fatalf("expected exactly one diagnostic for an unsatisfiable version gate, got %v", diags)
	}
}

func TestValidateCacheSkipsUnchangedFunctions(t *testing.T) {
	mod := &ir.Module{
		Name:      "m",
		NumLabels: 2,
		Functions: []*ir.Function{trivialOKFunction("a", 1)},
	}
	cache := NewCache()
	res1, diags1 := Validate(mod, &Options{Cache: cache})
	if len(diags1) != 0 || res1 == nil {
		t.Fatalf("unexpected first-run result: %v, %v", res1, diags1)
	}
	res2, diags2 := Validate(mod, &Options{Cache: cache})
	if len(diags2) != 0 || res2 == nil {
		t.Fatalf("unexpected cached-run result: %v, %v", res2, diags2)
	}
	if _, _, ok := cache.lookup(mod.Functions[0]); !ok {
		t.Fatal("second Validate run should have hit the cache")
	}
}
