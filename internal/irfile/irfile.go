// Package irfile serializes and deserializes ir.Module values to a single
// msgpack-encoded file, the on-disk form vmc build/dump/jit read as input:
// this compiler never parses source itself (see the doc comment on
// diag.Loc), it consumes IR handed in by an upstream frontend, so a stable
// wire format for that IR is as ordinary a piece of ambient tooling as
// the disk cache's payload format.
package irfile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"vmc/internal/ir"
	"vmc/internal/types"
)

// File is the top-level serialized unit: a type arena snapshot plus one
// FuncDTO per module-level function, in definition order.
type File struct {
	Types []types.Type
	Funcs []FuncDTO
}

// FuncDTO mirrors ir.Function for one named global.
type FuncDTO struct {
	Name        string
	Params      []ParamDTO
	Ret         uint32
	Type        uint32
	IsPrimitive bool
	PrimitiveOp string
	Body        NodeDTO
}

// ParamDTO mirrors an ir.Var used as a function parameter.
type ParamDTO struct {
	Name string
	Type uint32
}

// NodeDTO is a tagged union over the ir.Expr variants this format
// encodes: every variant except Match and a nested, not-yet-lifted
// Function, on which encodeExpr panics. Only the fields
// relevant to Kind are populated; msgpack encodes the zero value of the
// rest compactly enough that this isn't worth a smaller hand-rolled
// encoding.
type NodeDTO struct {
	Kind string

	// const
	ConstType uint32
	DType     uint8
	Shape     []int64
	Bytes     []byte

	// var / globalvar
	Name string
	Type uint32

	// tuple / constructor.fields / call.args / closure.captures
	Children []NodeDTO

	// tuplegetitem
	Tuple *NodeDTO
	Index int

	// let
	BindName string
	BindType uint32
	Value    *NodeDTO
	Body     *NodeDTO

	// if
	Cond *NodeDTO
	Then *NodeDTO
	Else *NodeDTO

	// call
	CalleeKind uint8
	Callee     string // global or var name, per CalleeKind
	Op         string

	// constructor
	Tag int
}

const (
	kindConst        = "const"
	kindVar          = "var"
	kindGlobal       = "global"
	kindTuple        = "tuple"
	kindTupleGetItem = "getitem"
	kindLet          = "let"
	kindIf           = "if"
	kindCall         = "call"
	kindConstructor  = "ctor"
	kindMakeClosure  = "closure"
)

// Save encodes module (using ti for the type arena snapshot) and writes
// it to path via a temp-file-plus-rename, the same atomic-write idiom
// this codebase uses for every other build artifact.
func Save(path string, module *ir.Module, ti *types.Interner) error {
	f := File{Types: ti.Snapshot()}
	for _, gv := range module.Order {
		fn := module.Funcs[gv]
		f.Funcs = append(f.Funcs, encodeFunc(gv.Name, fn))
	}
	data, err := msgpack.Marshal(&f)
	if err != nil {
		return fmt.Errorf("irfile: encode: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".irfile-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// Load reads and decodes an irfile back into a fresh ir.Module and
// types.Interner, reassigning the same TypeIDs the file was saved with.
func Load(path string) (*ir.Module, *types.Interner, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	var f File
	if err := msgpack.Unmarshal(data, &f); err != nil {
		return nil, nil, fmt.Errorf("irfile: decode: %w", err)
	}
	ti := types.RestoreInterner(f.Types)

	irIn := ir.NewInterner()
	module := ir.NewModule(irIn)
	for _, fd := range f.Funcs {
		gv := irIn.GlobalVarNamed(fd.Name)
		fn, err := decodeFunc(fd, irIn)
		if err != nil {
			return nil, nil, fmt.Errorf("irfile: function %q: %w", fd.Name, err)
		}
		module.Define(gv, fn)
	}
	return module, ti, nil
}

func encodeFunc(name string, fn *ir.Function) FuncDTO {
	params := make([]ParamDTO, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = ParamDTO{Name: p.Name, Type: uint32(p.Type)}
	}
	return FuncDTO{
		Name:        name,
		Params:      params,
		Ret:         uint32(fn.Ret),
		Type:        uint32(fn.Type),
		IsPrimitive: fn.IsPrimitive,
		PrimitiveOp: fn.PrimitiveOp,
		Body:        encodeExpr(fn.Body),
	}
}

func encodeExpr(e ir.Expr) NodeDTO {
	switch v := e.(type) {
	case *ir.Constant:
		shape := make([]int64, len(v.Value.Shape))
		for i, d := range v.Value.Shape {
			shape[i] = int64(d)
		}
		return NodeDTO{Kind: kindConst, ConstType: uint32(v.Type), DType: uint8(v.Value.DType), Shape: shape, Bytes: v.Value.Bytes}
	case ir.VarExpr:
		return NodeDTO{Kind: kindVar, Name: v.Var.Name, Type: uint32(v.Var.Type)}
	case ir.GlobalVarExpr:
		return NodeDTO{Kind: kindGlobal, Name: v.GlobalVar.Name, Type: uint32(v.Type)}
	case *ir.Tuple:
		return NodeDTO{Kind: kindTuple, Children: encodeExprList(v.Fields), Type: uint32(v.Type)}
	case *ir.TupleGetItem:
		tup := encodeExpr(v.Tuple)
		return NodeDTO{Kind: kindTupleGetItem, Tuple: &tup, Index: v.Index, Type: uint32(v.Type)}
	case *ir.Let:
		val := encodeExpr(v.Value)
		body := encodeExpr(v.Body)
		return NodeDTO{Kind: kindLet, BindName: v.Var.Name, BindType: uint32(v.Var.Type), Value: &val, Body: &body}
	case *ir.If:
		cond := encodeExpr(v.Cond)
		then := encodeExpr(v.Then)
		els := encodeExpr(v.Else)
		return NodeDTO{Kind: kindIf, Cond: &cond, Then: &then, Else: &els}
	case *ir.Call:
		dto := NodeDTO{Kind: kindCall, CalleeKind: uint8(v.Kind), Op: v.Op, Children: encodeExprList(v.Args), Type: uint32(v.Type)}
		if v.Global != nil {
			dto.Callee = v.Global.Name
		} else if v.Var != nil {
			dto.Callee = v.Var.Name
		}
		return dto
	case *ir.Constructor:
		return NodeDTO{Kind: kindConstructor, Tag: v.Tag, Children: encodeExprList(v.Fields), Type: uint32(v.Type)}
	case *ir.MakeClosure:
		return NodeDTO{Kind: kindMakeClosure, Callee: v.Func.Name, Children: encodeExprList(v.Captures), Type: uint32(v.Type)}
	default:
		panic(fmt.Sprintf("irfile: cannot encode expression of type %T", e))
	}
}

func encodeExprList(es []ir.Expr) []NodeDTO {
	out := make([]NodeDTO, len(es))
	for i, e := range es {
		out[i] = encodeExpr(e)
	}
	return out
}

// funcScope tracks the *ir.Var each variable name resolves to while
// decoding one function body, since ir.Var identity (not name) is what
// later passes and lowering compare against.
type funcScope struct {
	vars map[string]*ir.Var
}

func decodeFunc(fd FuncDTO, irIn *ir.Interner) (*ir.Function, error) {
	scope := &funcScope{vars: make(map[string]*ir.Var, len(fd.Params))}
	params := make([]*ir.Var, len(fd.Params))
	for i, p := range fd.Params {
		v := irIn.NewVar(p.Name, types.TypeID(p.Type))
		params[i] = v
		scope.vars[p.Name] = v
	}
	body, err := decodeExpr(fd.Body, irIn, scope)
	if err != nil {
		return nil, err
	}
	return &ir.Function{
		Params:      params,
		Body:        body,
		Ret:         types.TypeID(fd.Ret),
		Type:        types.TypeID(fd.Type),
		IsPrimitive: fd.IsPrimitive,
		PrimitiveOp: fd.PrimitiveOp,
	}, nil
}

func decodeExpr(n NodeDTO, irIn *ir.Interner, scope *funcScope) (ir.Expr, error) {
	switch n.Kind {
	case kindConst:
		shape := make([]types.Dim, len(n.Shape))
		for i, d := range n.Shape {
			shape[i] = types.Dim(d)
		}
		return &ir.Constant{
			Type:  types.TypeID(n.ConstType),
			Value: ir.NDArray{DType: types.DType(n.DType), Shape: shape, Bytes: n.Bytes},
		}, nil
	case kindVar:
		v, ok := scope.vars[n.Name]
		if !ok {
			return nil, fmt.Errorf("reference to undeclared variable %q", n.Name)
		}
		return ir.VarExpr{Var: v}, nil
	case kindGlobal:
		return ir.GlobalVarExpr{GlobalVar: irIn.GlobalVarNamed(n.Name), Type: types.TypeID(n.Type)}, nil
	case kindTuple:
		fields, err := decodeExprList(n.Children, irIn, scope)
		if err != nil {
			return nil, err
		}
		return &ir.Tuple{Fields: fields, Type: types.TypeID(n.Type)}, nil
	case kindTupleGetItem:
		tup, err := decodeExpr(*n.Tuple, irIn, scope)
		if err != nil {
			return nil, err
		}
		return &ir.TupleGetItem{Tuple: tup, Index: n.Index, Type: types.TypeID(n.Type)}, nil
	case kindLet:
		val, err := decodeExpr(*n.Value, irIn, scope)
		if err != nil {
			return nil, err
		}
		v := irIn.NewVar(n.BindName, types.TypeID(n.BindType))
		scope.vars[n.BindName] = v
		body, err := decodeExpr(*n.Body, irIn, scope)
		if err != nil {
			return nil, err
		}
		return &ir.Let{Var: v, Value: val, Body: body}, nil
	case kindIf:
		cond, err := decodeExpr(*n.Cond, irIn, scope)
		if err != nil {
			return nil, err
		}
		then, err := decodeExpr(*n.Then, irIn, scope)
		if err != nil {
			return nil, err
		}
		els, err := decodeExpr(*n.Else, irIn, scope)
		if err != nil {
			return nil, err
		}
		return &ir.If{Cond: cond, Then: then, Else: els}, nil
	case kindCall:
		args, err := decodeExprList(n.Children, irIn, scope)
		if err != nil {
			return nil, err
		}
		call := &ir.Call{Kind: ir.CalleeKind(n.CalleeKind), Op: n.Op, Args: args, Type: types.TypeID(n.Type)}
		switch call.Kind {
		case ir.CalleeGlobal, ir.CalleePrimitive:
			call.Global = irIn.GlobalVarNamed(n.Callee)
		case ir.CalleeVar:
			v, ok := scope.vars[n.Callee]
			if !ok {
				return nil, fmt.Errorf("call through undeclared variable %q", n.Callee)
			}
			call.Var = v
		}
		return call, nil
	case kindConstructor:
		fields, err := decodeExprList(n.Children, irIn, scope)
		if err != nil {
			return nil, err
		}
		return &ir.Constructor{Tag: n.Tag, Fields: fields, Type: types.TypeID(n.Type)}, nil
	case kindMakeClosure:
		captures, err := decodeExprList(n.Children, irIn, scope)
		if err != nil {
			return nil, err
		}
		return &ir.MakeClosure{Func: irIn.GlobalVarNamed(n.Callee), Captures: captures, Type: types.TypeID(n.Type)}, nil
	default:
		return nil, fmt.Errorf("unknown node kind %q", n.Kind)
	}
}

func decodeExprList(ns []NodeDTO, irIn *ir.Interner, scope *funcScope) ([]ir.Expr, error) {
	out := make([]ir.Expr, len(ns))
	for i, n := range ns {
		e, err := decodeExpr(n, irIn, scope)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}
