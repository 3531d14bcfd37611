// Package native packages the kernels a compile engine lowers into a
// single loadable, JIT-able artifact: a Module built from LLVM IR
// functions, saved to object/assembly/IR-text formats, or JIT-executed
// in-process. It models the same responsibilities as the source
// compiler's LLVMModuleNode, expressed with an in-process LLVM IR builder
// (github.com/llir/llvm) plus the system toolchain (clang/llc via
// os/exec) for anything that requires a real code generator, since pure
// Go cannot emit machine code for arbitrary targets on its own.
package native

import (
	"fmt"
	"sync"

	"github.com/llir/llvm/ir"

	"vmc/internal/engine"
)

// entrySymbol is the well-known name callers look a module's main kernel
// up by, matching the source compiler's tvm_module_main convention.
const entrySymbol = "tvm_module_main"

// moduleCtxSymbol names the module-context global slot. Nothing in this
// package writes or reads it: JIT initialization does not store a pointer
// back to the owning Module in the loaded object.
const moduleCtxSymbol = "tvm_module_ctx"

// Module is a built, not-yet-JIT-compiled (or already JIT-compiled)
// artifact containing one LLVM IR function per kernel the compile engine
// lowered.
type Module struct {
	llvm   *ir.Module
	target engine.Target

	mu       sync.Mutex
	jit      *jitState
	entry    string // resolved entrySymbol alias, set by Build
	isSystem bool
}

// Build assembles funcs into a Module targeting target. The first
// function named "main" (or, absent one, the first function at all)
// becomes the module's entry point and is aliased to entrySymbol,
// mirroring the source compiler's entry-alias behavior.
func Build(funcs []*ir.Func, target engine.Target) (*Module, error) {
	if len(funcs) == 0 {
		return nil, fmt.Errorf("native: cannot build a module with zero functions")
	}
	m := ir.NewModule()
	m.TargetTriple = target.Backend
	m.DataLayout = dataLayoutFor(target)
	for _, f := range funcs {
		m.Funcs = append(m.Funcs, f)
	}

	entry := funcs[0].Name()
	for _, f := range funcs {
		if f.Name() == "main" {
			entry = f.Name()
			break
		}
	}

	return &Module{
		llvm:     m,
		target:   target,
		entry:    entry,
		isSystem: target.SystemLib,
	}, nil
}

// Handle refers to one callable symbol inside a Module. get_function's
// special names ("is_system_module", the module's own entry point) are
// resolved into a Handle here rather than at every call site.
type Handle struct {
	module *Module
	name   string
}

// GetFunction resolves name to a callable Handle. "is_system_module" is a
// synthetic boolean-returning handle, matching the source's
// __tvm_is_system_module wrapping; the module's real entry symbol is
// substituted for the well-known alias tvm_module_main.
func (m *Module) GetFunction(name string) (Handle, error) {
	if name == "is_system_module" {
		return Handle{module: m, name: name}, nil
	}
	resolved := name
	if name == entrySymbol {
		resolved = m.entry
	}
	for _, f := range m.llvm.Funcs {
		if f.Name() == resolved {
			return Handle{module: m, name: resolved}, nil
		}
	}
	return Handle{}, fmt.Errorf("native: function %q not found in module", name)
}

// Bool returns the system-lib flag for the "is_system_module" handle. On
// any other handle it returns an error, since only that special name is
// a boolean rather than a callable kernel.
func (h Handle) Bool() (bool, error) {
	if h.name != "is_system_module" {
		return false, fmt.Errorf("native: Bool() called on a non-is_system_module handle %q", h.name)
	}
	return h.module.isSystem, nil
}

// Call invokes the compiled kernel through the module's JIT engine,
// lazily initializing it on first use under mu, matching the source's
// LazyInitJIT.
func (h Handle) Call(args ...uintptr) (uintptr, error) {
	if h.name == "is_system_module" {
		return 0, fmt.Errorf("native: is_system_module is not callable, use Bool()")
	}
	h.module.mu.Lock()
	defer h.module.mu.Unlock()
	if h.module.jit == nil {
		j, err := newJIT(h.module.llvm, h.module.target)
		if err != nil {
			return 0, err
		}
		h.module.jit = j
	}
	return h.module.jit.call(h.name, args...)
}
