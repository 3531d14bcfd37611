package lower

import (
	"fmt"

	"fortio.org/safecast"

	"vmc/internal/bytecode"
	"vmc/internal/diag"
	"vmc/internal/engine"
	"vmc/internal/ir"
	"vmc/internal/types"
)

// funcLowerer compiles one ir.Function's body into a bytecode.VMFunction.
// It owns the register allocator and variable environment for that single
// function; nothing here is shared across functions except the constant
// pool, global map and compile engine threaded in from moduleLowerer.
type funcLowerer struct {
	name     string
	module   *moduleLowerer
	types    *types.Interner
	instrs   []bytecode.Instruction
	numRegs  uint32
	varRegs  map[ir.NodeID]bytecode.Reg
}

func newFuncLowerer(name string, module *moduleLowerer, ti *types.Interner) *funcLowerer {
	return &funcLowerer{
		name:    name,
		module:  module,
		types:   ti,
		varRegs: make(map[ir.NodeID]bytecode.Reg),
	}
}

func (f *funcLowerer) newRegister() bytecode.Reg {
	n, err := safecast.Conv[uint32](f.numRegs)
	if err != nil {
		panic(fmt.Errorf("lower: register count overflow: %w", err))
	}
	f.numRegs++
	return bytecode.Reg(n)
}

func (f *funcLowerer) emit(in bytecode.Instruction) int {
	f.instrs = append(f.instrs, in)
	return len(f.instrs) - 1
}

func (f *funcLowerer) at(idx int) *bytecode.Instruction {
	return &f.instrs[idx]
}

func (f *funcLowerer) here() int {
	return len(f.instrs)
}

// compileFunction lowers fn (already normalized by the four-pass
// pipeline) into a VMFunction. Both plain functions and lifted closures
// bind fn.Params to the leading registers in declaration order; for a
// lifted closure that order is the inner function's own runtime
// parameters first (registers 0..m-1), then its captured free variables
// (registers m..m+k-1) — the order liftClosure assembles Params in, and
// the order a caller must supply InvokeClosure's Args plus the closure's
// captured registers in.
func (f *funcLowerer) compileFunction(fn *ir.Function) (bytecode.VMFunction, error) {
	for _, p := range fn.Params {
		f.varRegs[p.ID()] = f.newRegister()
	}
	result, err := f.visit(fn.Body)
	if err != nil {
		return bytecode.VMFunction{}, err
	}
	f.emit(bytecode.Instruction{Op: bytecode.OpRet, Result: result})

	paramCount, err := safecast.Conv[uint32](len(fn.Params))
	if err != nil {
		return bytecode.VMFunction{}, fmt.Errorf("lower: %s: too many parameters: %w", f.name, err)
	}
	return bytecode.VMFunction{
		Name:       f.name,
		ParamCount: paramCount,
		NumRegs:    f.numRegs,
		Instrs:     f.instrs,
	}, nil
}

// visit compiles e, appending whatever instructions are needed, and
// returns the register holding its value.
func (f *funcLowerer) visit(e ir.Expr) (bytecode.Reg, error) {
	switch e := e.(type) {
	case ir.VarExpr:
		reg, ok := f.varRegs[e.Var.ID()]
		if !ok {
			return 0, newError(diag.LowerMissingBinding, f.name, e.Var.String(), "reference to an unbound variable")
		}
		return reg, nil

	case *ir.Constant:
		idx, ok := f.module.constants.Lookup(e)
		if !ok {
			return 0, newError(diag.LowerMissingBinding, f.name, "constant", "constant node absent from the pre-built constant pool")
		}
		dst := f.newRegister()
		f.emit(bytecode.Instruction{Op: bytecode.OpLoadConst, Dst: dst, ConstIndex: idx})
		return dst, nil

	case *ir.Let:
		valReg, err := f.visit(e.Value)
		if err != nil {
			return 0, err
		}
		f.varRegs[e.Var.ID()] = valReg
		return f.visit(e.Body)

	case *ir.Tuple:
		regs := make([]bytecode.Reg, len(e.Fields))
		for i, field := range e.Fields {
			r, err := f.visit(field)
			if err != nil {
				return 0, err
			}
			regs[i] = r
		}
		dst := f.newRegister()
		f.emit(bytecode.Instruction{Op: bytecode.OpAllocDatatype, Dst: dst, Tag: 0, Fields: regs})
		return dst, nil

	case *ir.TupleGetItem:
		tupReg, err := f.visit(e.Tuple)
		if err != nil {
			return 0, err
		}
		idx, err := safecast.Conv[uint32](e.Index)
		if err != nil {
			return 0, fmt.Errorf("lower: %s: tuple index overflow: %w", f.name, err)
		}
		dst := f.newRegister()
		f.emit(bytecode.Instruction{Op: bytecode.OpGetField, Dst: dst, Object: tupReg, Index: idx})
		return dst, nil

	case *ir.If:
		return f.visitIf(e)

	case *ir.MakeClosure:
		captures := make([]bytecode.Reg, len(e.Captures))
		for i, c := range e.Captures {
			r, err := f.visit(c)
			if err != nil {
				return 0, err
			}
			captures[i] = r
		}
		gi, ok := f.module.globals[e.Func]
		if !ok {
			return 0, newError(diag.LowerUnboundGlobal, f.name, e.Func.String(), "closure over an undefined global function")
		}
		dst := f.newRegister()
		f.emit(bytecode.Instruction{Op: bytecode.OpAllocClosure, Dst: dst, GlobalIndex: gi, FreeVars: captures})
		return dst, nil

	case *ir.Call:
		return f.visitCall(e)

	case *ir.Constructor:
		regs := make([]bytecode.Reg, len(e.Fields))
		for i, field := range e.Fields {
			r, err := f.visit(field)
			if err != nil {
				return 0, err
			}
			regs[i] = r
		}
		tag, err := safecast.Conv[uint32](e.Tag)
		if err != nil {
			return 0, fmt.Errorf("lower: %s: constructor tag overflow: %w", f.name, err)
		}
		dst := f.newRegister()
		f.emit(bytecode.Instruction{Op: bytecode.OpAllocDatatype, Dst: dst, Tag: tag, Fields: regs})
		return dst, nil

	case ir.GlobalVarExpr:
		return 0, newError(diag.LowerUnsupportedCallee, f.name, e.GlobalVar.String(), "a global function cannot be used as a value outside of a call")

	case *ir.Match:
		return 0, newError(diag.NormUnsupportedNode, f.name, "match", "match expressions are not supported by this pipeline")

	case *ir.Function:
		return 0, newError(diag.NormUnsupportedNode, f.name, "function", "a bare non-primitive function literal survived normalization; lambda lifting should have replaced it with a closure")

	default:
		return 0, fmt.Errorf("lower: %s: unhandled expression kind %T", f.name, e)
	}
}

func (f *funcLowerer) visitIf(e *ir.If) (bytecode.Reg, error) {
	condReg, err := f.visit(e.Cond)
	if err != nil {
		return 0, err
	}
	merge := f.newRegister()

	ifIdx := f.emit(bytecode.Instruction{Op: bytecode.OpIf, CondReg: condReg})

	trueTarget := f.here()
	thenReg, err := f.visit(e.Then)
	if err != nil {
		return 0, err
	}
	f.emit(bytecode.Instruction{Op: bytecode.OpMove, Dst: merge, Src: thenReg})
	gotoIdx := f.emit(bytecode.Instruction{Op: bytecode.OpGoto})

	falseTarget := f.here()
	elseReg, err := f.visit(e.Else)
	if err != nil {
		return 0, err
	}
	f.emit(bytecode.Instruction{Op: bytecode.OpMove, Dst: merge, Src: elseReg})
	endTarget := f.here()

	f.at(ifIdx).TrueOffset = int32(trueTarget - ifIdx)
	f.at(ifIdx).FalseOffset = int32(falseTarget - ifIdx)
	f.at(gotoIdx).Offset = int32(endTarget - gotoIdx)

	return merge, nil
}

func (f *funcLowerer) visitCall(e *ir.Call) (bytecode.Reg, error) {
	switch e.Kind {
	case ir.CalleeGlobal:
		args, err := f.visitArgs(e.Args)
		if err != nil {
			return 0, err
		}
		gi, ok := f.module.globals[e.Global]
		if !ok {
			return 0, newError(diag.LowerUnboundGlobal, f.name, e.Global.String(), "call to an undefined global function")
		}
		dst := f.newRegister()
		f.emit(bytecode.Instruction{Op: bytecode.OpInvoke, Dst: dst, GlobalIndex: gi, Args: args})
		return dst, nil

	case ir.CalleeVar:
		closureReg, ok := f.varRegs[e.Var.ID()]
		if !ok {
			return 0, newError(diag.LowerMissingBinding, f.name, e.Var.String(), "closure call through an unbound variable")
		}
		args, err := f.visitArgs(e.Args)
		if err != nil {
			return 0, err
		}
		dst := f.newRegister()
		f.emit(bytecode.Instruction{Op: bytecode.OpInvokeClosure, Dst: dst, ClosureReg: closureReg, Args: args})
		return dst, nil

	case ir.CalleePrimitive:
		return f.emitInvokePrimitive(e)

	default:
		return 0, newError(diag.LowerUnsupportedCallee, f.name, "call", "call with no resolvable callee kind")
	}
}

func (f *funcLowerer) visitArgs(args []ir.Expr) ([]bytecode.Reg, error) {
	regs := make([]bytecode.Reg, len(args))
	for i, a := range args {
		r, err := f.visit(a)
		if err != nil {
			return nil, err
		}
		regs[i] = r
	}
	return regs, nil
}

// moduleLowerer is the driver's per-Compile state shared across every
// function it lowers: the pre-built constant pool, the global index
// table, the deduplicated packed-function table, the ordered list of real
// kernels the compile engine produced (handed to the native codegen
// module once every function has compiled), and the compile engine itself.
type moduleLowerer struct {
	constants   *ConstPool
	globals     map[*ir.GlobalVar]uint32
	packedIndex map[string]uint32
	packed      []bytecode.PackedFunc
	kernels     []engine.Kernel
	engine      engine.CompileEngine
	target      engine.Target
}
