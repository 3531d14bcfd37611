package passes

import (
	"fmt"

	"vmc/internal/ir"
)

// ToANF rewrites fn's body into A-normal form: every non-atomic
// subexpression (a Call, If, Tuple, TupleGetItem, MakeClosure or
// Constructor appearing anywhere but the outermost position of a Let's
// value or the function's tail) is named by a fresh Let binding. Running
// ToANF a second time on its own output is a no-op — the pipeline relies
// on this to make InlinePrimitives -> LambdaLift -> InlinePrimitives
// idempotent on the parts it doesn't touch.
func ToANF(in *ir.Interner, fn *ir.Function) (*ir.Function, error) {
	body, err := normalizeTail(fn.Body, in, func(v ir.Expr) (ir.Expr, error) { return v, nil })
	if err != nil {
		return nil, err
	}
	out := *fn
	out.Body = body
	return &out, nil
}

func isSyntacticAtom(e ir.Expr) bool {
	switch e.(type) {
	case ir.VarExpr, *ir.Constant, ir.GlobalVarExpr:
		return true
	default:
		return false
	}
}

// atomize ensures e is bound to a Var (or is already a Var/Constant) before
// invoking k with the resulting atom, threading through a fresh Let when
// needed.
func atomize(e ir.Expr, in *ir.Interner, k func(ir.Expr) (ir.Expr, error)) (ir.Expr, error) {
	if isSyntacticAtom(e) {
		return k(e)
	}
	return normalizeTail(e, in, func(value ir.Expr) (ir.Expr, error) {
		v := in.NewVar("t", e.CheckedType())
		rest, err := k(ir.VarExpr{Var: v})
		if err != nil {
			return nil, err
		}
		return &ir.Let{Var: v, Value: value, Body: rest}, nil
	})
}

func atomizeList(list []ir.Expr, in *ir.Interner, k func([]ir.Expr) (ir.Expr, error)) (ir.Expr, error) {
	var rec func(i int, acc []ir.Expr) (ir.Expr, error)
	rec = func(i int, acc []ir.Expr) (ir.Expr, error) {
		if i == len(list) {
			return k(acc)
		}
		return atomize(list[i], in, func(v ir.Expr) (ir.Expr, error) {
			next := make([]ir.Expr, len(acc), len(list))
			copy(next, acc)
			return rec(i+1, append(next, v))
		})
	}
	return rec(0, make([]ir.Expr, 0, len(list)))
}

// normalizeTail normalizes e in tail position: it may still return a chain
// of Lets, but the value ultimately produced is handed to k rather than
// bound to a fresh name, avoiding a pointless `let t = x in t`.
func normalizeTail(e ir.Expr, in *ir.Interner, k func(ir.Expr) (ir.Expr, error)) (ir.Expr, error) {
	switch e := e.(type) {
	case *ir.Let:
		if lit, ok := e.Value.(*ir.Function); ok {
			// A closure literal this Let already names stays bound to it;
			// the *ir.Function case below would add a second binding.
			body, err := normalizeTail(e.Body, in, k)
			if err != nil {
				return nil, err
			}
			return &ir.Let{Var: e.Var, Value: lit, Body: body}, nil
		}
		return normalizeTail(e.Value, in, func(v ir.Expr) (ir.Expr, error) {
			body, err := normalizeTail(e.Body, in, k)
			if err != nil {
				return nil, err
			}
			return &ir.Let{Var: e.Var, Value: v, Body: body}, nil
		})
	case *ir.If:
		return atomize(e.Cond, in, func(cond ir.Expr) (ir.Expr, error) {
			thenB, err := normalizeTail(e.Then, in, identity)
			if err != nil {
				return nil, err
			}
			elseB, err := normalizeTail(e.Else, in, identity)
			if err != nil {
				return nil, err
			}
			return k(&ir.If{Cond: cond, Then: thenB, Else: elseB})
		})
	case *ir.Call:
		return atomizeList(e.Args, in, func(args []ir.Expr) (ir.Expr, error) {
			return k(&ir.Call{Kind: e.Kind, Global: e.Global, Var: e.Var, Op: e.Op, Args: args, Type: e.Type})
		})
	case *ir.Tuple:
		return atomizeList(e.Fields, in, func(fields []ir.Expr) (ir.Expr, error) {
			return k(&ir.Tuple{Fields: fields, Type: e.Type})
		})
	case *ir.TupleGetItem:
		return atomize(e.Tuple, in, func(tup ir.Expr) (ir.Expr, error) {
			return k(&ir.TupleGetItem{Tuple: tup, Index: e.Index, Type: e.Type})
		})
	case *ir.MakeClosure:
		return atomizeList(e.Captures, in, func(caps []ir.Expr) (ir.Expr, error) {
			return k(&ir.MakeClosure{Func: e.Func, Captures: caps, Type: e.Type})
		})
	case *ir.Constructor:
		return atomizeList(e.Fields, in, func(fields []ir.Expr) (ir.Expr, error) {
			return k(&ir.Constructor{Tag: e.Tag, Fields: fields, Type: e.Type})
		})
	case *ir.Match:
		return nil, newError("anf", "match", "match expressions are not supported by this pipeline")
	case *ir.Function:
		// A closure literal in tail position (an if-branch, or a
		// function whose whole body is itself `fn(...) {...}`) is not
		// otherwise named by any Let, so LambdaLift's Let{Value:
		// *ir.Function} case would never see it. Bind it explicitly so
		// it does.
		v := in.NewVar("closure", e.CheckedType())
		body, err := k(ir.VarExpr{Var: v})
		if err != nil {
			return nil, err
		}
		return &ir.Let{Var: v, Value: e, Body: body}, nil
	case ir.VarExpr, *ir.Constant, ir.GlobalVarExpr:
		return k(e)
	default:
		return nil, newError("anf", fmt.Sprintf("%T", e), "unhandled expression kind")
	}
}

func identity(e ir.Expr) (ir.Expr, error) { return e, nil }
