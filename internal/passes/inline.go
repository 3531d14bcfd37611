package passes

import "vmc/internal/ir"

// InlinePrimitives rewrites `let %f = <primitive fn>; ... %f(args) ...`
// into a direct primitive Call at every use of %f, and drops the
// now-unreferenced Let. It runs once before lambda lifting (to keep
// primitive wrapper functions from being mistaken for closures) and once
// after (lambda lifting can re-expose primitive lets nested inside a
// lifted body).
func InlinePrimitives(fn *ir.Function) (*ir.Function, error) {
	body, err := inlinePrim(fn.Body, map[ir.NodeID]*ir.Function{})
	if err != nil {
		return nil, err
	}
	out := *fn
	out.Body = body
	return &out, nil
}

func inlinePrim(e ir.Expr, env map[ir.NodeID]*ir.Function) (ir.Expr, error) {
	switch e := e.(type) {
	case *ir.Let:
		if pf, ok := e.Value.(*ir.Function); ok && pf.IsPrimitive {
			next := extendPrimEnv(env, e.Var.ID(), pf)
			return inlinePrim(e.Body, next)
		}
		val, err := inlinePrim(e.Value, env)
		if err != nil {
			return nil, err
		}
		body, err := inlinePrim(e.Body, env)
		if err != nil {
			return nil, err
		}
		return &ir.Let{Var: e.Var, Value: val, Body: body}, nil
	case *ir.If:
		cond, err := inlinePrim(e.Cond, env)
		if err != nil {
			return nil, err
		}
		thenB, err := inlinePrim(e.Then, env)
		if err != nil {
			return nil, err
		}
		elseB, err := inlinePrim(e.Else, env)
		if err != nil {
			return nil, err
		}
		return &ir.If{Cond: cond, Then: thenB, Else: elseB}, nil
	case *ir.Call:
		args, err := inlinePrimList(e.Args, env)
		if err != nil {
			return nil, err
		}
		if e.Kind == ir.CalleeVar {
			if pf, ok := env[e.Var.ID()]; ok {
				return &ir.Call{Kind: ir.CalleePrimitive, Op: pf.PrimitiveOp, Args: args, Type: e.Type}, nil
			}
		}
		return &ir.Call{Kind: e.Kind, Global: e.Global, Var: e.Var, Op: e.Op, Args: args, Type: e.Type}, nil
	case *ir.Tuple:
		fields, err := inlinePrimList(e.Fields, env)
		if err != nil {
			return nil, err
		}
		return &ir.Tuple{Fields: fields, Type: e.Type}, nil
	case *ir.TupleGetItem:
		tup, err := inlinePrim(e.Tuple, env)
		if err != nil {
			return nil, err
		}
		return &ir.TupleGetItem{Tuple: tup, Index: e.Index, Type: e.Type}, nil
	case *ir.MakeClosure:
		caps, err := inlinePrimList(e.Captures, env)
		if err != nil {
			return nil, err
		}
		return &ir.MakeClosure{Func: e.Func, Captures: caps, Type: e.Type}, nil
	case *ir.Constructor:
		fields, err := inlinePrimList(e.Fields, env)
		if err != nil {
			return nil, err
		}
		return &ir.Constructor{Tag: e.Tag, Fields: fields, Type: e.Type}, nil
	case *ir.Match:
		return nil, newError("inline-primitives", "match", "match expressions are not supported by this pipeline")
	default:
		// VarExpr, *Constant, GlobalVarExpr, *Function: atomic, unchanged.
		return e, nil
	}
}

func inlinePrimList(list []ir.Expr, env map[ir.NodeID]*ir.Function) ([]ir.Expr, error) {
	out := make([]ir.Expr, len(list))
	for i, e := range list {
		v, err := inlinePrim(e, env)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func extendPrimEnv(env map[ir.NodeID]*ir.Function, id ir.NodeID, fn *ir.Function) map[ir.NodeID]*ir.Function {
	next := make(map[ir.NodeID]*ir.Function, len(env)+1)
	for k, v := range env {
		next[k] = v
	}
	next[id] = fn
	return next
}
