package irfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"vmc/internal/ir"
	"vmc/internal/types"
)

func buildSampleModule(t *testing.T) (*ir.Module, *types.Interner) {
	t.Helper()
	ti := types.NewInterner()
	f32 := ti.Builtins().ScalarF32

	irIn := ir.NewInterner()
	module := ir.NewModule(irIn)

	x := irIn.NewVar("x", f32)
	y := irIn.NewVar("y", f32)
	addCall := &ir.Call{
		Kind:   ir.CalleePrimitive,
		Global: irIn.GlobalVarNamed("add"),
		Op:     "add",
		Args:   []ir.Expr{ir.VarExpr{Var: x}, ir.VarExpr{Var: y}},
		Type:   f32,
	}
	sum := irIn.NewVar("sum", f32)
	body := &ir.Let{Var: sum, Value: addCall, Body: ir.VarExpr{Var: sum}}

	mainFn := &ir.Function{
		Params: []*ir.Var{x, y},
		Body:   body,
		Ret:    f32,
		Type:   ti.Intern(types.MakeFunc(f32, false, f32, f32)),
	}
	module.Define(irIn.GlobalVarNamed("main"), mainFn)
	return module, ti
}

func TestSaveLoadRoundTrips(t *testing.T) {
	module, ti := buildSampleModule(t)
	path := filepath.Join(t.TempDir(), "module.vmir")

	if err := Save(path, module, ti); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, loadedTi, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(loaded.Order) != 1 || loaded.Order[0].Name != "main" {
		t.Fatalf("Order = %v, want [main]", loaded.Order)
	}
	fn := loaded.Funcs[loaded.Order[0]]
	if len(fn.Params) != 2 || fn.Params[0].Name != "x" || fn.Params[1].Name != "y" {
		t.Fatalf("Params mismatch: %+v", fn.Params)
	}
	let, ok := fn.Body.(*ir.Let)
	if !ok {
		t.Fatalf("Body = %T, want *ir.Let", fn.Body)
	}
	call, ok := let.Value.(*ir.Call)
	if !ok || call.Op != "add" || call.Kind != ir.CalleePrimitive {
		t.Fatalf("Let.Value = %+v, want a primitive add call", let.Value)
	}
	if len(call.Args) != 2 {
		t.Fatalf("call.Args = %v, want 2 args", call.Args)
	}
	argVar, ok := call.Args[0].(ir.VarExpr)
	if !ok || argVar.Var != fn.Params[0] {
		t.Fatalf("call.Args[0] does not resolve to the same *ir.Var as fn.Params[0]")
	}

	restoredType, ok := loadedTi.Lookup(fn.Params[0].Type)
	if !ok || restoredType.Kind != types.KindTensor || restoredType.DType != types.DTypeFloat32 {
		t.Fatalf("restored param type mismatch: %+v ok=%v", restoredType, ok)
	}
}

func TestLoadRejectsUnknownNodeKind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.vmir")
	f := File{
		Funcs: []FuncDTO{{Name: "main", Body: NodeDTO{Kind: "not-a-real-kind"}}},
	}
	data, err := msgpack.Marshal(&f)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := Load(path); err == nil {
		t.Fatal("expected Load to reject an unknown node kind")
	}
}
