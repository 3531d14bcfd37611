package passes

import "vmc/internal/ir"

// Optimize runs the four-pass normalization pipeline over every function
// in module, in place: ToANF, InlinePrimitives, LambdaLift,
// InlinePrimitives again (lambda lifting can re-expose primitive lets
// nested inside a lifted closure body, and lifted functions themselves
// need the pass applied to their own bodies once they exist).
func Optimize(module *ir.Module) error {
	return OptimizeWithProgress(module, nil)
}

// OptimizeWithProgress runs the same pipeline as Optimize, invoking
// onFunc (when non-nil) with each global function's name as its first
// normalization pass begins, so a caller can surface per-function
// compile progress without duplicating the pass sequence.
func OptimizeWithProgress(module *ir.Module, onFunc func(name string)) error {
	for _, gv := range append([]*ir.GlobalVar(nil), module.Order...) {
		if onFunc != nil {
			onFunc(gv.Name)
		}
		fn := module.Funcs[gv]
		anfFn, err := ToANF(module.Interner, fn)
		if err != nil {
			return err
		}
		inlined, err := InlinePrimitives(anfFn)
		if err != nil {
			return err
		}
		module.Funcs[gv] = inlined
	}

	if err := LambdaLift(module); err != nil {
		return err
	}

	// LambdaLift may have introduced new global functions (and none of the
	// existing ones need re-running through ANF, since it only rewrote
	// Let-bound closure literals into MakeClosure, which is already
	// atomic-argument-only). Run InlinePrimitives once more over every
	// function, including freshly lifted ones, to flatten any primitive
	// wrapper lets that were nested inside a lifted closure body.
	for _, gv := range append([]*ir.GlobalVar(nil), module.Order...) {
		fn := module.Funcs[gv]
		inlined, err := InlinePrimitives(fn)
		if err != nil {
			return err
		}
		module.Funcs[gv] = inlined
	}
	return nil
}
