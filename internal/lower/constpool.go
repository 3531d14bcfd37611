package lower

import (
	"encoding/binary"
	"fmt"

	"vmc/internal/bytecode"
	"vmc/internal/diag"
	"vmc/internal/ir"
	"vmc/internal/types"
)

// ConstPool is the (ConstMap, ShapeMap) pair BuildConstPool assembles in a
// single pre-order traversal of the module, before any function is
// compiled. Both maps populate the same dense, shared index space, since
// data constants and synthesized shape tensors are both slots of the
// eventual constant array; ConstMap is keyed by hash-consed constant node
// identity (not byte content — two distinct constants with equal bytes
// get distinct indices), ShapeMap by the TypeID of the tensor type an
// output shape was synthesized from.
type ConstPool struct {
	entries []bytecode.Constant
	byNode  map[*ir.Constant]uint32
	byShape map[types.TypeID]uint32
}

func newConstPool() *ConstPool {
	return &ConstPool{
		byNode:  make(map[*ir.Constant]uint32),
		byShape: make(map[types.TypeID]uint32),
	}
}

func (p *ConstPool) Entries() []bytecode.Constant { return p.entries }

// Lookup returns the pool index BuildConstPool assigned to c's node
// identity, or false if c was never visited by the pre-pass.
func (p *ConstPool) Lookup(c *ir.Constant) (uint32, bool) {
	idx, ok := p.byNode[c]
	return idx, ok
}

// LookupShape returns the pool index of the shape tensor BuildConstPool
// synthesized for the tensor type id, or false if none was registered —
// the condition the primitive lowering path reports as LowerMissingBinding.
func (p *ConstPool) LookupShape(id types.TypeID) (uint32, bool) {
	idx, ok := p.byShape[id]
	return idx, ok
}

func (p *ConstPool) internConstant(c *ir.Constant) {
	if _, ok := p.byNode[c]; ok {
		return
	}
	p.byNode[c] = uint32(len(p.entries))
	p.entries = append(p.entries, bytecode.Constant{Kind: bytecode.ConstData, Bytes: append([]byte(nil), c.Value.Bytes...)})
}

// internShape synthesizes and registers a shape tensor for the tensor
// type id, unless one is already registered under it. Returns
// ErrDynamicShape if the type carries a non-static axis, which cannot be
// materialized into a constant tensor.
func (p *ConstPool) internShape(id types.TypeID, ty types.Type) error {
	if _, ok := p.byShape[id]; ok {
		return nil
	}
	dims := make([]int64, len(ty.Shape))
	for i, d := range ty.Shape {
		if d == types.DimAny {
			return ErrDynamicShape
		}
		dims[i] = int64(d)
	}
	p.byShape[id] = uint32(len(p.entries))
	p.entries = append(p.entries, bytecode.Constant{Kind: bytecode.ConstShape, Shape: dims, Bytes: shapeBytes(dims)})
	return nil
}

func shapeBytes(dims []int64) []byte {
	buf := make([]byte, len(dims)*8)
	for i, d := range dims {
		binary.LittleEndian.PutUint64(buf[i*8:], uint64(d))
	}
	return buf
}

// constPoolBuilder drives the pre-order module traversal BuildConstPool
// performs.
type constPoolBuilder struct {
	pool *ConstPool
	ti   *types.Interner
}

// BuildConstPool runs the standalone pre-pass this compiler dedicates to
// constant-pool construction: one pre-order traversal starting from every
// GlobalVar in module, in module iteration order, populating
// (ConstMap, ShapeMap) before any function is compiled. A function body
// is visited exactly once, on its own turn in module.Order; a reference
// to another global (a call callee or a closure's Func) is a leaf here,
// never followed inline, since module.Order already enumerates every
// global a traversal could reach, including lambda-lifted ones.
func BuildConstPool(module *ir.Module, ti *types.Interner) (*ConstPool, error) {
	b := &constPoolBuilder{pool: newConstPool(), ti: ti}
	for _, gv := range module.Order {
		fn := module.Funcs[gv]
		if fn.IsPrimitive || fn.Body == nil {
			continue
		}
		if err := b.visit(fn.Body); err != nil {
			return nil, err
		}
	}
	return b.pool, nil
}

func (b *constPoolBuilder) visit(e ir.Expr) error {
	switch e := e.(type) {
	case ir.VarExpr, ir.GlobalVarExpr:
		return nil

	case *ir.Constant:
		b.pool.internConstant(e)
		return nil

	case *ir.Let:
		if err := b.visit(e.Value); err != nil {
			return err
		}
		return b.visit(e.Body)

	case *ir.Tuple:
		for _, field := range e.Fields {
			if err := b.visit(field); err != nil {
				return err
			}
		}
		return nil

	case *ir.TupleGetItem:
		return b.visit(e.Tuple)

	case *ir.If:
		if err := b.visit(e.Cond); err != nil {
			return err
		}
		if err := b.visit(e.Then); err != nil {
			return err
		}
		return b.visit(e.Else)

	case *ir.Call:
		for _, arg := range e.Args {
			if err := b.visit(arg); err != nil {
				return err
			}
		}
		if e.Kind == ir.CalleePrimitive {
			return b.registerCallShapes(e.Type)
		}
		return nil

	case *ir.Constructor:
		for _, field := range e.Fields {
			if err := b.visit(field); err != nil {
				return err
			}
		}
		return nil

	case *ir.MakeClosure:
		for _, c := range e.Captures {
			if err := b.visit(c); err != nil {
				return err
			}
		}
		return nil

	case *ir.Match:
		return newError(diag.NormUnsupportedNode, "", "match", "match expressions are not supported by this pipeline")

	case *ir.Function:
		return newError(diag.NormUnsupportedNode, "", "function", "a bare non-primitive function literal survived normalization; lambda lifting should have replaced it with a closure")

	default:
		return fmt.Errorf("lower: constant pool builder: unhandled expression kind %T", e)
	}
}

// registerCallShapes synthesizes and registers the shape tensor(s) a
// primitive call's output allocation will need: one for a tensor result,
// one per field for a tuple-of-tensors result.
func (b *constPoolBuilder) registerCallShapes(resultTypeID types.TypeID) error {
	resultTy, ok := b.ti.Lookup(resultTypeID)
	if !ok {
		return newError(diag.LowerMissingBinding, "", "primitive result", "primitive call result has no checked type")
	}
	if resultTy.Kind == types.KindTuple {
		for _, fieldID := range resultTy.Fields {
			fieldTy, ok := b.ti.Lookup(fieldID)
			if !ok || fieldTy.Kind != types.KindTensor {
				return newError(diag.LowerUnsupportedCallee, "", "primitive result", "tuple result field is not a tensor")
			}
			// ErrDynamicShape is returned as-is, not wrapped into a
			// LoweringError: it is a distinct failure mode from a
			// ShapeMap lookup miss, which is what LowerMissingBinding
			// reports elsewhere.
			if err := b.pool.internShape(fieldID, fieldTy); err != nil {
				return err
			}
		}
		return nil
	}
	if resultTy.Kind != types.KindTensor {
		return newError(diag.LowerUnsupportedCallee, "", "primitive result", "primitive call result is neither a tensor nor a tuple of tensors")
	}
	if err := b.pool.internShape(resultTypeID, resultTy); err != nil {
		return err
	}
	return nil
}
