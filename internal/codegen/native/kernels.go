package native

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"

	"vmc/internal/engine"
)

// BuildKernels packages the real kernels a compile engine produced during
// lowering into a single Module, synthesizing one trivial LLVM IR
// function per kernel name — a stand-in for the machine code a real
// per-operator code generator would have emitted for it, since that
// generator is an external collaborator this package never invokes
// itself (see CompileEngine). Kernels sharing a name (the deduplicated
// case) collapse onto the one function already emitted for it. When no
// kernel is itself named "main", an extra "main" function with an empty
// body is added; Build then picks it as the entry, so tvm_module_main
// resolves to that empty function, not to the first kernel.
func BuildKernels(kernels []engine.Kernel, target engine.Target) (*Module, error) {
	if len(kernels) == 0 {
		return nil, fmt.Errorf("native: no kernels to package for target %q", target.Raw)
	}
	m := ir.NewModule()
	funcs := make([]*ir.Func, 0, len(kernels)+1)
	seen := make(map[string]bool, len(kernels))
	for _, k := range kernels {
		if seen[k.Name] {
			continue
		}
		seen[k.Name] = true
		fn := m.NewFunc(k.Name, types.Void)
		fn.NewBlock("entry").NewRet(nil)
		funcs = append(funcs, fn)
	}
	if !seen["main"] {
		main := m.NewFunc("main", types.Void)
		main.NewBlock("entry").NewRet(nil)
		funcs = append(funcs, main)
	}
	return Build(funcs, target)
}
