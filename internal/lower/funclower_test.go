package lower

import (
	"testing"

	"vmc/internal/bytecode"
	"vmc/internal/engine"
	"vmc/internal/ir"
	"vmc/internal/types"
)

// TestVisitIfEmitsIfGotoMoveSequence pins the Move-based control-flow
// lowering visitIf takes in place of a trailing Select: both branches
// converge into one merge register via Move rather than a Select
// instruction reading both branch registers after the fact.
func TestVisitIfEmitsIfGotoMoveSequence(t *testing.T) {
	irIn := ir.NewInterner()
	ti := types.NewInterner()
	boolTy := ti.Builtins().ScalarBool
	f32 := ti.Builtins().ScalarF32

	cond := irIn.NewVar("cond", boolTy)
	a := irIn.NewVar("a", f32)
	b := irIn.NewVar("b", f32)
	body := &ir.If{Cond: ir.VarExpr{Var: cond}, Then: ir.VarExpr{Var: a}, Else: ir.VarExpr{Var: b}}
	fn := &ir.Function{Params: []*ir.Var{cond, a, b}, Body: body, Ret: f32}

	module := ir.NewModule(irIn)
	module.Define(irIn.GlobalVarNamed("main"), fn)

	target, _ := engine.ParseTarget("llvm")
	result, err := Compile(module, ti, Options{Target: target, Engine: engine.StubEngine{}})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	mainFn := result.Program.Functions[result.Program.GlobalMap["main"]]
	instrs := mainFn.Instrs
	if len(instrs) != 5 {
		t.Fatalf("expected exactly 5 instructions (If, Move, Goto, Move, Ret), got %d: %+v", len(instrs), instrs)
	}

	merge := bytecode.Reg(3) // registers 0..2 are cond/a/b, merge is allocated next

	ifIn := instrs[0]
	if ifIn.Op != bytecode.OpIf || ifIn.CondReg != 0 {
		t.Fatalf("expected If(cond=0) first, got %+v", ifIn)
	}
	if ifIn.TrueOffset != 1 || ifIn.FalseOffset != 3 {
		t.Fatalf("expected TrueOffset=1 FalseOffset=3, got true=%d false=%d", ifIn.TrueOffset, ifIn.FalseOffset)
	}

	thenMove := instrs[1]
	if thenMove.Op != bytecode.OpMove || thenMove.Dst != merge || thenMove.Src != 1 {
		t.Fatalf("expected Move(merge, a) for the then-branch, got %+v", thenMove)
	}

	gotoIn := instrs[2]
	if gotoIn.Op != bytecode.OpGoto || gotoIn.Offset != 2 {
		t.Fatalf("expected Goto(+2) skipping the else-branch, got %+v", gotoIn)
	}

	elseMove := instrs[3]
	if elseMove.Op != bytecode.OpMove || elseMove.Dst != merge || elseMove.Src != 2 {
		t.Fatalf("expected Move(merge, b) for the else-branch, got %+v", elseMove)
	}

	ret := instrs[4]
	if ret.Op != bytecode.OpRet || ret.Result != merge {
		t.Fatalf("expected Ret(merge), got %+v", ret)
	}

	if len(result.Program.PackedFuncs) != 0 || result.Native != nil {
		t.Fatalf("expected no kernels or native artifact for a kernel-free if-expression")
	}
}
