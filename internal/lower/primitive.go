package lower

import (
	"fortio.org/safecast"

	"vmc/internal/bytecode"
	"vmc/internal/diag"
	"vmc/internal/ir"
	"vmc/internal/types"
)

// emitInvokePrimitive lowers a call to an external, kernel-backed operator:
// tuple-typed arguments are flattened into their leaf tensor registers,
// output tensors are allocated ahead of the call from the call's checked
// return type, the compile engine is invoked once per distinct kernel
// identity (deduplicated across the whole program), and a tuple-typed
// result is repackaged with AllocDatatype after the call returns.
func (f *funcLowerer) emitInvokePrimitive(call *ir.Call) (bytecode.Reg, error) {
	var inputs []bytecode.Reg
	for _, arg := range call.Args {
		regs, err := f.flattenArg(arg)
		if err != nil {
			return 0, err
		}
		inputs = append(inputs, regs...)
	}

	outputs, resultTy, err := f.allocOutputs(call.Type)
	if err != nil {
		return 0, err
	}

	kernelIdx, err := f.module.dedupKernel(call, f.types)
	if err != nil {
		return 0, err
	}

	packedArgs := append(append([]bytecode.Reg(nil), inputs...), outputs...)
	arity, err := safecast.Conv[uint32](len(packedArgs))
	if err != nil {
		return 0, err
	}
	returnCount, err := safecast.Conv[uint32](len(outputs))
	if err != nil {
		return 0, err
	}

	f.emit(bytecode.Instruction{
		Op:          bytecode.OpInvokePacked,
		PackedIndex: kernelIdx,
		Arity:       arity,
		ReturnCount: returnCount,
		PackedArgs:  packedArgs,
	})

	if resultTy.Kind == types.KindTuple {
		dst := f.newRegister()
		f.emit(bytecode.Instruction{Op: bytecode.OpAllocDatatype, Dst: dst, Tag: 0, Fields: outputs})
		return dst, nil
	}
	if len(outputs) != 1 {
		return 0, newError(diag.LowerBadArity, f.name, call.Op, "primitive call did not resolve to exactly one output register")
	}
	return outputs[0], nil
}

// flattenArg resolves arg to its leaf tensor registers: a tuple-typed
// argument is unpacked field by field via GetField so a packed kernel
// only ever sees flat tensor handles, matching the source compiler's
// argument-flattening rule for primitive calls. Any parameter type other
// than a tensor or a flat tuple of tensors is a fatal error; a tuple
// nested inside a tuple field is rejected the same way, since this
// flattening pass only ever unpacks one level.
func (f *funcLowerer) flattenArg(arg ir.Expr) ([]bytecode.Reg, error) {
	ty, ok := f.types.Lookup(arg.CheckedType())
	if !ok {
		return nil, newError(diag.LowerMissingBinding, f.name, "primitive argument", "primitive call argument has no checked type")
	}

	if ty.Kind == types.KindTensor {
		r, err := f.visit(arg)
		if err != nil {
			return nil, err
		}
		return []bytecode.Reg{r}, nil
	}

	if ty.Kind != types.KindTuple {
		return nil, newError(diag.LowerUnsupportedCallee, f.name, "primitive argument", "primitive call argument is neither a tensor nor a tuple of tensors")
	}

	tupReg, err := f.visit(arg)
	if err != nil {
		return nil, err
	}
	var out []bytecode.Reg
	for i, fieldID := range ty.Fields {
		fieldTy, ok := f.types.Lookup(fieldID)
		if !ok || fieldTy.Kind != types.KindTensor {
			if ok && fieldTy.Kind == types.KindTuple {
				return nil, newError(diag.LowerUnsupportedCallee, f.name, "primitive argument", "nested tuples are not supported")
			}
			return nil, newError(diag.LowerUnsupportedCallee, f.name, "primitive argument", "tuple argument field is not a tensor")
		}
		idx, err := safecast.Conv[uint32](i)
		if err != nil {
			return nil, err
		}
		dst := f.newRegister()
		f.emit(bytecode.Instruction{Op: bytecode.OpGetField, Dst: dst, Object: tupReg, Index: idx})
		out = append(out, dst)
	}
	return out, nil
}

// allocOutputs allocates one AllocTensor per leaf tensor of resultTypeID
// (more than one when the primitive returns a tuple), returning the
// registers in declaration order plus the resolved result type.
func (f *funcLowerer) allocOutputs(resultTypeID types.TypeID) ([]bytecode.Reg, types.Type, error) {
	resultTy, ok := f.types.Lookup(resultTypeID)
	if !ok {
		return nil, types.Type{}, newError(diag.LowerMissingBinding, f.name, "primitive result", "primitive call result has no checked type")
	}

	if resultTy.Kind == types.KindTuple {
		var out []bytecode.Reg
		for _, fieldID := range resultTy.Fields {
			fieldTy, ok := f.types.Lookup(fieldID)
			if !ok || fieldTy.Kind != types.KindTensor {
				return nil, types.Type{}, newError(diag.LowerUnsupportedCallee, f.name, "primitive result", "tuple result field is not a tensor")
			}
			reg, err := f.allocTensor(fieldID)
			if err != nil {
				return nil, types.Type{}, err
			}
			out = append(out, reg)
		}
		return out, resultTy, nil
	}

	if resultTy.Kind != types.KindTensor {
		return nil, types.Type{}, newError(diag.LowerUnsupportedCallee, f.name, "primitive result", "primitive call result is neither a tensor nor a tuple of tensors")
	}
	reg, err := f.allocTensor(resultTypeID)
	if err != nil {
		return nil, types.Type{}, err
	}
	return []bytecode.Reg{reg}, resultTy, nil
}

// allocTensor emits the AllocTensor sequence for a primitive output of
// tensor type id, resolving its shape tensor by a pure lookup into the
// pre-built ShapeMap — a miss means the constant-pool pre-pass never saw
// this call, which is a lowering bug rather than a dynamic-shape case.
func (f *funcLowerer) allocTensor(id types.TypeID) (bytecode.Reg, error) {
	shapeIdx, ok := f.module.constants.LookupShape(id)
	if !ok {
		return 0, newError(diag.LowerMissingBinding, f.name, "shape", "primitive output type absent from the pre-built shape map")
	}
	dst := f.newRegister()
	f.emit(bytecode.Instruction{Op: bytecode.OpAllocTensor, Dst: dst, ShapeIndex: shapeIdx})
	return dst, nil
}

// dedupKernel returns the packed-function table index for call's operator
// under the program's target, invoking the compile engine only the first
// time this exact kernel identity is seen across the whole program's
// lowering — every later call to the same operator with the same target
// reuses the earlier entry, matching the source compiler's
// LoweredFuncsMap deduplication.
func (m *moduleLowerer) dedupKernel(call *ir.Call, ti *types.Interner) (uint32, error) {
	key := call.Op + "@" + m.target.String()
	if idx, ok := m.packedIndex[key]; ok {
		return idx, nil
	}

	params := make([]*ir.Var, len(call.Args))
	for i, arg := range call.Args {
		params[i] = &ir.Var{} // identity unused; only Type matters to Lower
		_ = arg
	}
	synthetic := &ir.Function{Params: params, Ret: call.Type, IsPrimitive: true, PrimitiveOp: call.Op}
	for i, arg := range call.Args {
		synthetic.Params[i].Type = arg.CheckedType()
	}
	kernel, err := m.engine.Lower(synthetic, m.target)
	if err != nil {
		return 0, newError(diag.LowerKernelLowerFailed, "", call.Op, err.Error())
	}

	idx := uint32(len(m.packed))
	m.packed = append(m.packed, bytecode.PackedFunc{Name: call.Op, Target: m.target.String()})
	m.kernels = append(m.kernels, kernel)
	m.packedIndex[key] = idx
	return idx, nil
}
