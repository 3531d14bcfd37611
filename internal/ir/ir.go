// Package ir defines the functional tensor intermediate representation this
// compiler lowers to VM bytecode. The IR is handed in fully typed and
// fully formed by an upstream frontend — this package only models it, it
// never parses or infers it.
package ir

import (
	"fmt"

	"fortio.org/safecast"

	"vmc/internal/types"
)

// NodeID gives every Var and GlobalVar a stable identity within its
// Interner (each Interner numbers from 1), the
// same arena idiom used for TypeID: identity by allocation order, not by
// structural equality (two variables named "x" in different scopes are
// different variables).
type NodeID uint32

const NoNodeID NodeID = 0

// Var is a local binding introduced by a Function parameter or a Let.
type Var struct {
	id   NodeID
	Name string // for diagnostics only; not significant to lowering
	Type types.TypeID
}

func (v *Var) ID() NodeID { return v.id }

func (v *Var) String() string {
	if v.Name != "" {
		return v.Name
	}
	return fmt.Sprintf("%%v%d", v.id)
}

// GlobalVar names a function stored in a Module's global table. Two
// GlobalVars with the same Name in the same Interner are the same node.
type GlobalVar struct {
	id   NodeID
	Name string
}

func (g *GlobalVar) ID() NodeID { return g.id }
func (g *GlobalVar) String() string {
	return "@" + g.Name
}

// Interner hands out NodeIDs for Vars and GlobalVars and hash-conses
// GlobalVars by name, matching the source compiler's GlobalVar identity
// (the same global name always resolves to the same node across a module).
type Interner struct {
	nextID  uint32
	globals map[string]*GlobalVar
}

func NewInterner() *Interner {
	return &Interner{nextID: 1, globals: make(map[string]*GlobalVar)}
}

func (in *Interner) alloc() NodeID {
	id, err := safecast.Conv[uint32](in.nextID)
	if err != nil {
		panic(fmt.Errorf("ir: node id overflow: %w", err))
	}
	in.nextID++
	return NodeID(id)
}

// NewVar allocates a fresh, uniquely-identified local variable.
func (in *Interner) NewVar(name string, ty types.TypeID) *Var {
	return &Var{id: in.alloc(), Name: name, Type: ty}
}

// GlobalVarNamed returns the canonical GlobalVar for name, creating it on
// first reference so forward references within a Module resolve correctly.
func (in *Interner) GlobalVarNamed(name string) *GlobalVar {
	if g, ok := in.globals[name]; ok {
		return g
	}
	g := &GlobalVar{id: in.alloc(), Name: name}
	in.globals[name] = g
	return g
}

// Expr is any IR expression node.
type Expr interface {
	exprNode()
	// CheckedType returns the type an upstream checker attached to this
	// node, or types.NoTypeID if this node kind carries none.
	CheckedType() types.TypeID
}

// Constant is a literal value owned by the module, eventually placed in
// the compiled program's constant pool.
type Constant struct {
	Type  types.TypeID
	Value NDArray
}

func (*Constant) exprNode() {}
func (c *Constant) CheckedType() types.TypeID { return c.Type }

// NDArray is the runtime tensor value backing a Constant. Only shape,
// dtype and a flat byte payload are modeled — this compiler treats
// constant contents opaquely, copying them into the constant pool without
// interpreting them.
type NDArray struct {
	DType types.DType
	Shape []types.Dim
	Bytes []byte
}

// VarExpr wraps a Var reference as an expression.
type VarExpr struct {
	*Var
}

func (VarExpr) exprNode() {}
func (v VarExpr) CheckedType() types.TypeID { return v.Var.Type }

// GlobalVarExpr wraps a GlobalVar reference as an expression (a call
// callee, never a first-class value in this restricted IR).
type GlobalVarExpr struct {
	*GlobalVar
	Type types.TypeID // the function's type, for call-site checking
}

func (GlobalVarExpr) exprNode() {}
func (g GlobalVarExpr) CheckedType() types.TypeID { return g.Type }

// Tuple groups a fixed list of expressions.
type Tuple struct {
	Fields []Expr
	Type   types.TypeID
}

func (*Tuple) exprNode() {}
func (t *Tuple) CheckedType() types.TypeID { return t.Type }

// TupleGetItem projects one field out of a tuple-typed expression.
type TupleGetItem struct {
	Tuple Expr
	Index int
	Type  types.TypeID
}

func (*TupleGetItem) exprNode() {}
func (t *TupleGetItem) CheckedType() types.TypeID { return t.Type }

// Let binds Var to Value for the scope of Body. Sequences of Lets in
// A-normal form are the shape the lowering pass expects by the time it runs.
type Let struct {
	Var   *Var
	Value Expr
	Body  Expr
}

func (*Let) exprNode() {}
func (l *Let) CheckedType() types.TypeID { return l.Body.CheckedType() }

// If is a two-armed conditional; Cond must check to a scalar boolean tensor.
type If struct {
	Cond Expr
	Then Expr
	Else Expr
}

func (*If) exprNode() {}
func (i *If) CheckedType() types.TypeID { return i.Then.CheckedType() }

// CalleeKind discriminates what Call.Callee actually refers to, since the
// lowering rules differ per kind (§4.3/§4.5 of the design this implements).
type CalleeKind uint8

const (
	CalleeInvalid CalleeKind = iota
	CalleeGlobal             // a call to a Module-level Function by GlobalVar
	CalleeVar                // a call through a local variable holding a closure
	CalleePrimitive          // a call to an external, kernel-backed operator
)

// Call invokes Callee with Args. Op carries the primitive name when
// Kind == CalleePrimitive (the compile-engine's lowering key).
type Call struct {
	Kind   CalleeKind
	Global *GlobalVar // set when Kind == CalleeGlobal or CalleePrimitive
	Var    *Var       // set when Kind == CalleeVar
	Op     string     // primitive operator name, e.g. "add", "conv2d"
	Args   []Expr
	Type   types.TypeID // cached checked_type of the call result
}

func (*Call) exprNode() {}
func (c *Call) CheckedType() types.TypeID { return c.Type }

// Constructor builds an algebraic data type value tagged Tag from Fields.
// This restricted IR only ever produces Tag == 0 (plain tuples); the field
// exists so a Match arm's pattern tag has something concrete to check
// against, matching the source's unresolved-ADT-tag TODO.
type Constructor struct {
	Tag    int
	Fields []Expr
	Type   types.TypeID
}

func (*Constructor) exprNode() {}
func (c *Constructor) CheckedType() types.TypeID { return c.Type }

// Match is accepted by the IR model for completeness with the source
// language but is not supported by any pass in this pipeline: the
// normalization passes reject it with a *passes.Error, and lowering
// reports it as diag.NormUnsupportedNode.
type Match struct {
	Scrutinee Expr
	Type      types.TypeID
}

func (*Match) exprNode() {}
func (m *Match) CheckedType() types.TypeID { return m.Type }

// MakeClosure allocates a closure over Func (always a lambda-lifted
// GlobalVar) with Captures as its captured free-variable values, in
// declaration order. It is introduced by the lambda-lifting pass and
// lowers directly to an AllocClosure instruction.
type MakeClosure struct {
	Func     *GlobalVar
	Captures []Expr
	Type     types.TypeID
}

func (*MakeClosure) exprNode() {}
func (c *MakeClosure) CheckedType() types.TypeID { return c.Type }

// Function is a top-level or lifted lambda. IsPrimitive marks a function
// that stands for one compile-engine kernel, named by PrimitiveOp, rather
// than general IR; InlinePrimitives rewrites calls through a Let-bound
// primitive function into direct CalleePrimitive calls. Before lambda lifting a Function may also occur
// nested inside another Function's body, bound by a Let — that is how
// this IR represents a not-yet-lifted closure; Type is its function type
// for that occurrence (Ret is the return type alone).
type Function struct {
	Params      []*Var
	Body        Expr
	Ret         types.TypeID
	Type        types.TypeID // function type, meaningful when used as an Expr
	IsPrimitive bool
	PrimitiveOp string // valid when IsPrimitive
}

// exprNode lets a not-yet-lifted Function occur as a Let-bound value.
func (*Function) exprNode() {}
func (f *Function) CheckedType() types.TypeID { return f.Type }

// Module maps GlobalVars to their Functions, the unit lowering compiles.
type Module struct {
	Interner *Interner
	Funcs    map[*GlobalVar]*Function
	// Order preserves insertion order for deterministic iteration; Go map
	// iteration order is randomized and this compiler's output (global
	// indices, constant pool layout) must be reproducible across runs.
	Order []*GlobalVar
}

func NewModule(in *Interner) *Module {
	return &Module{Interner: in, Funcs: make(map[*GlobalVar]*Function)}
}

// Define registers fn under gv, appending gv to Order on first definition.
func (m *Module) Define(gv *GlobalVar, fn *Function) {
	if _, exists := m.Funcs[gv]; !exists {
		m.Order = append(m.Order, gv)
	}
	m.Funcs[gv] = fn
}

func (m *Module) Lookup(gv *GlobalVar) (*Function, bool) {
	fn, ok := m.Funcs[gv]
	return fn, ok
}
