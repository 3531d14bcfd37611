package lower

import (
	"testing"

	"vmc/internal/diag"
	"vmc/internal/ir"
	"vmc/internal/types"
)

// TestFlattenArgRejectsMissingCheckedType pins the "no checked type" fatal
// path: an argument whose CheckedType id was never interned reports
// LowerMissingBinding rather than silently treating it as a tensor.
func TestFlattenArgRejectsMissingCheckedType(t *testing.T) {
	irIn := ir.NewInterner()
	ti := types.NewInterner()

	unregistered := types.TypeID(9999)
	arg := ir.VarExpr{Var: irIn.NewVar("x", unregistered)}

	ml := &moduleLowerer{constants: newConstPool(), globals: map[*ir.GlobalVar]uint32{}, packedIndex: map[string]uint32{}}
	fl := newFuncLowerer("main", ml, ti)

	_, err := fl.flattenArg(arg)
	if err == nil {
		t.Fatal("expected an error for an argument with no checked type")
	}
	lerr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected a *lower.Error, got %T", err)
	}
	if lerr.Code != diag.LowerMissingBinding {
		t.Fatalf("expected diag.LowerMissingBinding, got %v", lerr.Code)
	}
}

// TestFlattenArgRejectsNonTensorNonTuple pins the fatal-error path for a
// primitive argument whose type is neither a tensor nor a tuple of
// tensors (here, a function type).
func TestFlattenArgRejectsNonTensorNonTuple(t *testing.T) {
	irIn := ir.NewInterner()
	ti := types.NewInterner()
	f32 := ti.Intern(types.MakeTensor(types.DTypeFloat32, 4))
	funcTy := ti.Intern(types.MakeFunc(f32, false, f32))

	arg := ir.VarExpr{Var: irIn.NewVar("g", funcTy)}

	ml := &moduleLowerer{constants: newConstPool(), globals: map[*ir.GlobalVar]uint32{}, packedIndex: map[string]uint32{}}
	fl := newFuncLowerer("main", ml, ti)

	_, err := fl.flattenArg(arg)
	if err == nil {
		t.Fatal("expected an error for a primitive argument that is neither a tensor nor a tuple")
	}
	lerr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected a *lower.Error, got %T", err)
	}
	if lerr.Code != diag.LowerUnsupportedCallee {
		t.Fatalf("expected diag.LowerUnsupportedCallee, got %v", lerr.Code)
	}
}

// TestFlattenArgRejectsNestedTuple pins the rejection of a tuple argument
// with a field that is itself a tuple: this flattening pass only ever
// unpacks one level, matching the "nested tuples are not supported" rule.
func TestFlattenArgRejectsNestedTuple(t *testing.T) {
	irIn := ir.NewInterner()
	ti := types.NewInterner()
	f32 := ti.Intern(types.MakeTensor(types.DTypeFloat32, 4))
	inner := ti.Intern(types.MakeTuple(f32, f32))
	outer := ti.Intern(types.MakeTuple(f32, inner))

	v := irIn.NewVar("t", outer)
	arg := ir.VarExpr{Var: v}

	ml := &moduleLowerer{constants: newConstPool(), globals: map[*ir.GlobalVar]uint32{}, packedIndex: map[string]uint32{}}
	fl := newFuncLowerer("main", ml, ti)
	fl.varRegs[v.ID()] = fl.newRegister()

	_, err := fl.flattenArg(arg)
	if err == nil {
		t.Fatal("expected an error for a tuple argument nested inside another tuple field")
	}
	lerr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected a *lower.Error, got %T", err)
	}
	if lerr.Code != diag.LowerUnsupportedCallee {
		t.Fatalf("expected diag.LowerUnsupportedCallee, got %v", lerr.Code)
	}
}

// TestFlattenArgFlattensFlatTupleOfTensors is the positive case: a tuple
// whose fields are all tensors flattens into one register per field, in
// field order.
func TestFlattenArgFlattensFlatTupleOfTensors(t *testing.T) {
	irIn := ir.NewInterner()
	ti := types.NewInterner()
	a := ti.Intern(types.MakeTensor(types.DTypeFloat32, 2))
	b := ti.Intern(types.MakeTensor(types.DTypeFloat32, 3))
	tup := ti.Intern(types.MakeTuple(a, b))

	v := irIn.NewVar("t", tup)
	arg := ir.VarExpr{Var: v}

	ml := &moduleLowerer{constants: newConstPool(), globals: map[*ir.GlobalVar]uint32{}, packedIndex: map[string]uint32{}}
	fl := newFuncLowerer("main", ml, ti)
	fl.varRegs[v.ID()] = fl.newRegister()

	regs, err := fl.flattenArg(arg)
	if err != nil {
		t.Fatalf("flattenArg: %v", err)
	}
	if len(regs) != 2 {
		t.Fatalf("expected 2 leaf registers for a 2-field flat tuple, got %d", len(regs))
	}
}
