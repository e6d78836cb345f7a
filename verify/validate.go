package verify

import (
	"sync"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/sync/errgroup"

	"github.com/velalang/bvc/diag"
	"github.com/velalang/bvc/ir"
)

// Result is the successful outcome of Validate: the input module,
// returned unchanged (§2), plus the read-only per-function metadata
// from §13.
type Result struct {
	Module    *ir.Module
	Functions map[ir.MFA]*FunctionResult
}

// Validate runs the verifier's full pipeline over every function in
// mod (§6.1): validate(module, options) -> ok(module) | error(module-
// name, [diagnostic]).
//
// Multiple functions are verified independently in parallel (§5); the
// match-context pre-scan index is built once and frozen before the
// fan-out starts, matching §5's immutability requirement.
func Validate(mod *ir.Module, opts *Options) (*Result, []diag.Diagnostic) {
	if opts == nil {
		opts = &Options{}
	}

	if err := checkVersionGate(mod, opts); err != nil {
		return nil, []diag.Diagnostic{diag.Wrap(ir.MFA{Module: mod.Name}, 0, ir.Instruction{}, err)}
	}

	idx := buildMatchIndex(mod)

	var (
		mu        sync.Mutex
		diags     []diag.Diagnostic
		functions = map[ir.MFA]*FunctionResult{}
	)

	g := new(errgroup.Group)
	if opts.MaxConcurrency > 0 {
		g.SetLimit(opts.MaxConcurrency)
	}

	// Each function's diagnostics go into its own slot so the combined
	// list follows module order, not goroutine completion order.
	perFn := make([][]diag.Diagnostic, len(mod.Functions))
	for i, fn := range mod.Functions {
		i, fn := i, fn
		g.Go(func() error {
			res, fdiags, err := verifyFunctionCached(mod, fn, idx, opts)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if len(fdiags) > 0 {
				perFn[i] = fdiags
			} else {
				functions[res.MFA] = res
			}
			return nil
		})
	}
	// Wait returns the first non-nil error from the closures above,
	// and they always return nil, so there is nothing to inspect.
	_ = g.Wait()
	for _, fd := range perFn {
		diags = append(diags, fd...)
	}

	if len(diags) > 0 {
		return nil, diags
	}
	return &Result{Module: mod, Functions: functions}, nil
}

func verifyFunctionCached(mod *ir.Module, fn *ir.Function, idx matchIndex, opts *Options) (*FunctionResult, []diag.Diagnostic, error) {
	if opts.Cache != nil {
		key, entry, ok := opts.Cache.lookup(fn)
		if ok {
			return entry.result, entry.diags, nil
		}
		res, diags := verifyFunction(mod, fn, idx, opts)
		opts.Cache.store(key, res, diags)
		if res == nil {
			res = &FunctionResult{MFA: fn.MFA(mod.Name)}
		}
		return res, diags, nil
	}
	res, diags := verifyFunction(mod, fn, idx, opts)
	if res == nil {
		res = &FunctionResult{MFA: fn.MFA(mod.Name)}
	}
	return res, diags, nil
}

// checkVersionGate implements the min_verifier_version module
// attribute (§12): if present, it must be a satisfiable semver
// constraint against this package's own Version.
func checkVersionGate(mod *ir.Module, opts *Options) error {
	for _, a := range mod.Attributes {
		if a.Name != "min_verifier_version" {
			continue
		}
		raw, ok := a.Value.(string)
		if !ok {
			return diag.New(diag.KindBadSource, "min_verifier_version attribute must be a string")
		}
		constraint, err := semver.NewConstraint(">=" + raw)
		if err != nil {
			return diag.New(diag.KindBadSource, "min_verifier_version %q is not a valid semver constraint: %v", raw, err)
		}
		running := opts.VerifierVersion
		if running == "" {
			running = Version
		}
		v, err := semver.NewVersion(running)
		if err != nil {
			return diag.New(diag.KindBadSource, "running verifier version %q is not valid semver: %v", running, err)
		}
		if !constraint.Check(v) {
			return diag.New(diag.KindBadSource, "module requires verifier >= %s, running %s", raw, running)
		}
	}
	return nil
}
