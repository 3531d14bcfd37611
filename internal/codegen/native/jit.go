package native

import (
	"fmt"
	"plugin"
	"runtime"

	"github.com/llir/llvm/ir"

	"vmc/internal/engine"
)

// jitState is the lazily-initialized JIT execution context for one
// Module, built at most once per Module regardless of how many Handles
// call into it — mirroring the source compiler's LazyInitJIT plus its
// mutex-guarded engine_ field.
type jitState struct {
	lib     *plugin.Plugin
	symbols map[string]uintptr
}

// newJIT compiles m's IR to a native shared object via the system
// toolchain and loads it with Go's plugin package — the closest
// in-process, dlopen-style mechanism the standard library offers, given
// no pure-Go LLVM execution engine exists. It performs the same
// data-layout and architecture sanity checks LazyInitJIT performs before
// trusting the loaded code.
func newJIT(m *ir.Module, target engine.Target) (*jitState, error) {
	if err := checkArchMatch(target); err != nil {
		return nil, err
	}
	if err := checkDataLayoutMatch(m); err != nil {
		return nil, err
	}

	irText := m.String()
	soPath, err := compileToSharedLib(irText, target)
	if err != nil {
		return nil, err
	}

	lib, err := plugin.Open(soPath)
	if err != nil {
		return nil, fmt.Errorf("native: plugin.Open: %w", err)
	}

	symbols, err := computeSymbolSizes(soPath)
	if err != nil {
		return nil, err
	}
	if err := writePerfMap(symbols); err != nil {
		return nil, fmt.Errorf("native: perf map: %w", err)
	}

	return &jitState{lib: lib, symbols: addressesFrom(symbols)}, nil
}

// archAliases maps target backend spellings the codebase accepts onto the
// runtime.GOARCH value they correspond to, so "x86_64" and "amd64" (both
// seen across the toolchain) are recognized as the same host architecture.
var archAliases = map[string]string{
	"x86_64":  "amd64",
	"amd64":   "amd64",
	"aarch64": "arm64",
	"arm64":   "arm64",
}

// checkArchMatch fatally rejects a target whose backend architecture is
// known and does not match the host, the same guard LazyInitJIT applies
// before handing control to JIT-compiled code: running mismatched machine
// code is not a recoverable error, it is undefined behavior. A backend
// name with no recognized architecture (e.g. the generic "llvm") carries
// no arch commitment and is let through.
func checkArchMatch(target engine.Target) error {
	want, known := archAliases[target.Backend]
	if !known {
		return nil
	}
	if want != runtime.GOARCH {
		return fmt.Errorf("%w: target=%s host=%s", ErrArchMismatch, target.Backend, runtime.GOARCH)
	}
	return nil
}

// dataLayouts gives the canonical LLVM data layout string for each host
// architecture this JIT knows how to dlopen into, keyed by the same
// normalized runtime.GOARCH values archAliases maps target backends onto.
// A target whose backend has no recognized architecture is exempt (see
// checkArchMatch), and dataLayoutFor leaves its module's DataLayout empty
// accordingly — a genuine "no commitment" rather than a mismatch.
var dataLayouts = map[string]string{
	"amd64": "e-m:e-p270:32:32-p271:32:32-p272:64:64-i64:64-i128:128-f80:128-n8:16:32:64-S128",
	"arm64": "e-m:e-i8:8:32-i16:16:32-i64:64-i128:128-n32:64-S128",
}

// dataLayoutFor returns the data layout Build should stamp onto a module
// compiled for target, or "" if target's backend carries no recognized
// architecture (matching checkArchMatch's passthrough for e.g. "llvm").
func dataLayoutFor(target engine.Target) string {
	arch, known := archAliases[target.Backend]
	if !known {
		return ""
	}
	return dataLayouts[arch]
}

// checkDataLayoutMatch fatally rejects a module whose declared data
// layout does not match the host's — the same guard LazyInitJIT applies
// before handing control to JIT-compiled code, since running code built
// for a different memory layout silently corrupts state rather than
// erroring cleanly. A module with no declared layout (an unrecognized
// target architecture) carries nothing to check against.
func checkDataLayoutMatch(m *ir.Module) error {
	if m.DataLayout == "" {
		return nil
	}
	want, known := dataLayouts[runtime.GOARCH]
	if !known || m.DataLayout == want {
		return nil
	}
	return fmt.Errorf("%w: module=%q host=%q", ErrDataLayoutMismatch, m.DataLayout, want)
}

func (j *jitState) call(symbol string, args ...uintptr) (uintptr, error) {
	sym, err := j.lib.Lookup(symbol)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrMissingSymbol, symbol)
	}
	fn, ok := sym.(func(...uintptr) uintptr)
	if !ok {
		return 0, fmt.Errorf("native: symbol %q has an unexpected signature", symbol)
	}
	return fn(args...), nil
}
