package lower

import (
	"fmt"

	"vmc/internal/buildpipeline"
	"vmc/internal/bytecode"
	"vmc/internal/codegen/native"
	"vmc/internal/engine"
	"vmc/internal/ir"
	"vmc/internal/passes"
	"vmc/internal/types"
)

// Options configures a Compile invocation. Target is the default backend
// primitive calls are lowered against; the source implementation left
// this as an open TODO, resolved here as an explicit, required parameter.
// Sink, when non-nil, receives per-function progress events as
// normalization and lowering proceed.
type Options struct {
	Target engine.Target
	Engine engine.CompileEngine
	Sink   buildpipeline.ProgressSink
}

// Result is everything Compile produces from a Module: the VMProgram
// callers execute, plus the native artifact packaging the real kernels
// the compile engine lowered while compiling it. Native is nil when the
// module invoked no primitive operators at all.
type Result struct {
	Program *bytecode.VMProgram
	Native  *native.Module
}

// Compile normalizes module through the four-pass pipeline (ToANF,
// InlinePrimitives, LambdaLift, InlinePrimitives), builds its constant
// pool ahead of any function compilation, lowers the result into a
// VMProgram, and hands the ordered kernels the compile engine produced
// off to the native codegen module, resolving the program's packed-
// function table against the resulting artifact.
func Compile(module *ir.Module, ti *types.Interner, opts Options) (*Result, error) {
	report := func(name string, stage buildpipeline.Stage, status buildpipeline.Status) {
		if opts.Sink != nil {
			opts.Sink.OnEvent(buildpipeline.Event{Module: name, Stage: stage, Status: status})
		}
	}

	if err := passes.OptimizeWithProgress(module, func(name string) {
		report(name, buildpipeline.StageNormalize, buildpipeline.StatusWorking)
	}); err != nil {
		return nil, err
	}

	globals := buildGlobalMap(module)

	pool, err := BuildConstPool(module, ti)
	if err != nil {
		return nil, err
	}

	ml := &moduleLowerer{
		constants:   pool,
		globals:     globals,
		packedIndex: make(map[string]uint32),
		engine:      opts.Engine,
		target:      opts.Target,
	}

	functions := make([]bytecode.VMFunction, len(module.Order))
	globalMap := make(map[string]uint32, len(module.Order))
	for _, gv := range module.Order {
		report(gv.Name, buildpipeline.StageLower, buildpipeline.StatusWorking)
		fn := module.Funcs[gv]
		idx := ml.globals[gv]

		fl := newFuncLowerer(gv.Name, ml, ti)
		vmFn, err := fl.compileFunction(fn)
		if err != nil {
			report(gv.Name, buildpipeline.StageLower, buildpipeline.StatusError)
			return nil, err
		}
		functions[idx] = vmFn
		globalMap[gv.Name] = idx
		report(gv.Name, buildpipeline.StageLower, buildpipeline.StatusDone)
	}

	prog := &bytecode.VMProgram{
		Functions:   functions,
		Constants:   ml.constants.Entries(),
		PackedFuncs: ml.packed,
		GlobalMap:   globalMap,
	}
	if err := bytecode.Validate(prog); err != nil {
		return nil, err
	}

	var artifact *native.Module
	if len(ml.kernels) > 0 {
		artifact, err = native.BuildKernels(ml.kernels, opts.Target)
		if err != nil {
			return nil, fmt.Errorf("lower: packaging %d kernel(s): %w", len(ml.kernels), err)
		}
		for _, pf := range prog.PackedFuncs {
			if _, err := artifact.GetFunction(pf.Name); err != nil {
				return nil, fmt.Errorf("lower: packed function %q not found in the built native artifact: %w", pf.Name, err)
			}
		}
	}

	return &Result{Program: prog, Native: artifact}, nil
}
