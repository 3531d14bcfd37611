package engine

import (
	"fmt"

	"vmc/internal/ir"
	"vmc/internal/types"
)

// Kernel is the already-lowered representation of one primitive operator,
// identified by the name the InvokePacked instruction references it by.
// The lowering pass never inspects Kernel's contents — only the compile
// engine and the native codegen module do.
type Kernel struct {
	Name    string
	Target  Target
	ArgTypes []types.TypeID
	RetType  types.TypeID
}

// CompileEngine lowers one primitive function into a Kernel, deduplicating
// by kernel identity (operator name + target) the way the source compiler's
// LoweredFuncsMap does — that dedup lives in internal/lower, this
// interface only needs to produce a Kernel given the request.
type CompileEngine interface {
	Lower(fn *ir.Function, target Target) (Kernel, error)
}

// StubEngine is a reference CompileEngine used by tests and by `vmc dump`
// when no real backend is configured: it "lowers" a primitive function by
// naming the kernel after its operator, without producing any actual
// machine code. internal/codegen/native treats a StubEngine-produced
// Kernel as a request to synthesize a trivial LLVM IR stand-in.
type StubEngine struct{}

func (StubEngine) Lower(fn *ir.Function, target Target) (Kernel, error) {
	if !fn.IsPrimitive {
		return Kernel{}, fmt.Errorf("engine: Lower called on a non-primitive function")
	}
	argTypes := make([]types.TypeID, len(fn.Params))
	for i, p := range fn.Params {
		argTypes[i] = p.Type
	}
	return Kernel{
		Name:     fn.PrimitiveOp,
		Target:   target,
		ArgTypes: argTypes,
		RetType:  fn.Ret,
	}, nil
}
