package passes

import (
	"fmt"

	"vmc/internal/ir"
)

// LambdaLift replaces every nested `let %f = fn(params) { body }; rest`
// closure literal in module's functions with a fresh top-level Function
// (named "<enclosing>$lift<n>") taking the closure's own parameters
// followed by its captured free variables as trailing parameters, and rewrites the binding site to a
// MakeClosure over that new global. Call sites of %f (CalleeVar) are left
// untouched — they lower to InvokeClosure regardless of where the callee
// came from.
func LambdaLift(module *ir.Module) error {
	// Copy Order since Define appends to it while we iterate.
	roots := append([]*ir.GlobalVar(nil), module.Order...)
	for _, gv := range roots {
		fn := module.Funcs[gv]
		lifted, err := liftFunction(module, gv.Name, fn)
		if err != nil {
			return err
		}
		module.Funcs[gv] = lifted
	}
	return nil
}

func liftFunction(module *ir.Module, namePrefix string, fn *ir.Function) (*ir.Function, error) {
	counter := 0
	body, err := liftExpr(module, namePrefix, &counter, fn.Body, paramSet(fn.Params))
	if err != nil {
		return nil, err
	}
	out := *fn
	out.Body = body
	return &out, nil
}

func paramSet(params []*ir.Var) map[ir.NodeID]*ir.Var {
	m := make(map[ir.NodeID]*ir.Var, len(params))
	for _, p := range params {
		m[p.ID()] = p
	}
	return m
}

// liftExpr walks e looking for Let-bound closure literals, lifting each
// one it finds. bound tracks variables in scope at this point (function
// params plus enclosing Lets), used to compute free variables.
func liftExpr(module *ir.Module, namePrefix string, counter *int, e ir.Expr, bound map[ir.NodeID]*ir.Var) (ir.Expr, error) {
	switch e := e.(type) {
	case *ir.Let:
		if closureFn, ok := e.Value.(*ir.Function); ok {
			liftedGV, err := liftClosure(module, namePrefix, counter, e.Var, closureFn, bound)
			if err != nil {
				return nil, err
			}
			body, err := liftExpr(module, namePrefix, counter, e.Body, extend(bound, e.Var))
			if err != nil {
				return nil, err
			}
			captures := freeVarList(closureFn, bound)
			captureExprs := make([]ir.Expr, len(captures))
			for i, v := range captures {
				captureExprs[i] = ir.VarExpr{Var: v}
			}
			return &ir.Let{
				Var:   e.Var,
				Value: &ir.MakeClosure{Func: liftedGV, Captures: captureExprs, Type: closureFn.Type},
				Body:  body,
			}, nil
		}
		val, err := liftExpr(module, namePrefix, counter, e.Value, bound)
		if err != nil {
			return nil, err
		}
		body, err := liftExpr(module, namePrefix, counter, e.Body, extend(bound, e.Var))
		if err != nil {
			return nil, err
		}
		return &ir.Let{Var: e.Var, Value: val, Body: body}, nil
	case *ir.If:
		cond, err := liftExpr(module, namePrefix, counter, e.Cond, bound)
		if err != nil {
			return nil, err
		}
		thenB, err := liftExpr(module, namePrefix, counter, e.Then, bound)
		if err != nil {
			return nil, err
		}
		elseB, err := liftExpr(module, namePrefix, counter, e.Else, bound)
		if err != nil {
			return nil, err
		}
		return &ir.If{Cond: cond, Then: thenB, Else: elseB}, nil
	case *ir.Call, *ir.Tuple, *ir.TupleGetItem, *ir.MakeClosure, *ir.Constructor:
		// These node kinds never directly own a nested Function literal in
		// ANF (it would already have been named by a Let), so no lifting
		// work happens inside them; they pass through unchanged.
		return e, nil
	case *ir.Match:
		return nil, newError("lambda-lift", "match", "match expressions are not supported by this pipeline")
	default:
		return e, nil
	}
}

// liftClosure recursively lifts closureFn's own body (it may itself
// capture further nested closures), then registers it as a new global
// function taking its free variables as parameters after its own.
func liftClosure(module *ir.Module, namePrefix string, counter *int, bindingVar *ir.Var, closureFn *ir.Function, outerBound map[ir.NodeID]*ir.Var) (*ir.GlobalVar, error) {
	innerBound := paramSet(closureFn.Params)
	liftedBody, err := liftExpr(module, namePrefix, counter, closureFn.Body, innerBound)
	if err != nil {
		return nil, err
	}
	captures := freeVarList(&ir.Function{Params: closureFn.Params, Body: liftedBody}, outerBound)

	name := fmt.Sprintf("%s$lift%d", namePrefix, *counter)
	*counter++
	gv := module.Interner.GlobalVarNamed(name)

	liftedFn := &ir.Function{
		Params:      append(append([]*ir.Var(nil), closureFn.Params...), captures...),
		Body:        liftedBody,
		Ret:         closureFn.Ret,
		Type:        closureFn.Type,
		IsPrimitive: closureFn.IsPrimitive,
		PrimitiveOp: closureFn.PrimitiveOp,
	}
	module.Define(gv, liftedFn)
	_ = bindingVar // kept for signature symmetry/readability at call sites
	return gv, nil
}

func extend(bound map[ir.NodeID]*ir.Var, v *ir.Var) map[ir.NodeID]*ir.Var {
	next := make(map[ir.NodeID]*ir.Var, len(bound)+1)
	for k, val := range bound {
		next[k] = val
	}
	next[v.ID()] = v
	return next
}

// freeVarList returns fn's free variables (referenced but not bound by
// its own params or internal Lets) that are visible in outerScope, in a
// stable order (first use, depth-first) so lifted parameter lists are
// deterministic across compiler runs.
func freeVarList(fn *ir.Function, outerScope map[ir.NodeID]*ir.Var) []*ir.Var {
	own := paramSet(fn.Params)
	seen := map[ir.NodeID]bool{}
	var order []*ir.Var
	var walk func(e ir.Expr, bound map[ir.NodeID]*ir.Var)
	walk = func(e ir.Expr, bound map[ir.NodeID]*ir.Var) {
		switch e := e.(type) {
		case ir.VarExpr:
			if bound[e.Var.ID()] != nil {
				return
			}
			if v, ok := outerScope[e.Var.ID()]; ok && !seen[v.ID()] {
				seen[v.ID()] = true
				order = append(order, v)
			}
		case *ir.Let:
			walk(e.Value, bound)
			walk(e.Body, extend(bound, e.Var))
		case *ir.If:
			walk(e.Cond, bound)
			walk(e.Then, bound)
			walk(e.Else, bound)
		case *ir.Call:
			if e.Kind == ir.CalleeVar && e.Var != nil {
				walk(ir.VarExpr{Var: e.Var}, bound)
			}
			for _, a := range e.Args {
				walk(a, bound)
			}
		case *ir.Tuple:
			for _, f := range e.Fields {
				walk(f, bound)
			}
		case *ir.TupleGetItem:
			walk(e.Tuple, bound)
		case *ir.MakeClosure:
			for _, c := range e.Captures {
				walk(c, bound)
			}
		case *ir.Constructor:
			for _, f := range e.Fields {
				walk(f, bound)
			}
		case *ir.Function:
			walk(e.Body, mergeBound(bound, paramSet(e.Params)))
		}
	}
	walk(fn.Body, own)
	return order
}

func mergeBound(a, b map[ir.NodeID]*ir.Var) map[ir.NodeID]*ir.Var {
	next := make(map[ir.NodeID]*ir.Var, len(a)+len(b))
	for k, v := range a {
		next[k] = v
	}
	for k, v := range b {
		next[k] = v
	}
	return next
}
