// Package types models the checked types attached to IR expressions: tensor
// types, tuple types and function types. It is deliberately narrow — this
// compiler consumes types produced by an upstream type checker, it never
// infers them, so there is no need for the generics/unions/nominal-type
// machinery a source-language front end would carry.
package types

import "strings"

// TypeID is a stable handle into an Interner's arena. The zero value,
// NoTypeID, is reserved and never returned for a successfully interned type.
type TypeID uint32

const NoTypeID TypeID = 0

// DType is a scalar element type, following the small fixed vocabulary a
// tensor compiler's shape/dtype pairs use (no user-defined scalar kinds).
type DType uint8

const (
	DTypeInvalid DType = iota
	DTypeFloat32
	DTypeFloat64
	DTypeInt32
	DTypeInt64
	DTypeBool
	DTypeUint8
)

func (d DType) String() string {
	switch d {
	case DTypeFloat32:
		return "float32"
	case DTypeFloat64:
		return "float64"
	case DTypeInt32:
		return "int32"
	case DTypeInt64:
		return "int64"
	case DTypeBool:
		return "bool"
	case DTypeUint8:
		return "uint8"
	default:
		return "invalid"
	}
}

// Kind discriminates the three type shapes this compiler needs.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindTensor
	KindTuple
	KindFunc
)

// Dim is a single axis of a tensor's shape. Negative values are reserved
// for symbolic/dynamic axes (unresolved at compile time); DimAny marks one.
type Dim int64

const DimAny Dim = -1

// Type is the structural descriptor stored in the Interner's arena. Only
// the fields relevant to Kind are meaningful; the others are zero.
type Type struct {
	Kind Kind

	// KindTensor
	DType DType
	Shape []Dim

	// KindTuple
	Fields []TypeID

	// KindFunc
	Params  []TypeID
	Ret     TypeID
	IsPrim  bool // matches ir.Function.IsPrimitive; lowering does not read it
}

func (t Type) String() string {
	switch t.Kind {
	case KindTensor:
		dims := make([]string, len(t.Shape))
		for i, d := range t.Shape {
			if d == DimAny {
				dims[i] = "?"
			} else {
				dims[i] = itoa(int64(d))
			}
		}
		return "Tensor[(" + strings.Join(dims, ", ") + "), " + t.DType.String() + "]"
	case KindTuple:
		parts := make([]string, len(t.Fields))
		for i := range t.Fields {
			parts[i] = "#" + itoa(int64(t.Fields[i]))
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case KindFunc:
		parts := make([]string, len(t.Params))
		for i := range t.Params {
			parts[i] = "#" + itoa(int64(t.Params[i]))
		}
		return "fn(" + strings.Join(parts, ", ") + ") -> #" + itoa(int64(t.Ret))
	default:
		return "<invalid>"
	}
}

func itoa(v int64) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// MakeTensor is a constructor convenience for the common case.
func MakeTensor(dtype DType, shape ...Dim) Type {
	return Type{Kind: KindTensor, DType: dtype, Shape: shape}
}

// MakeTuple is a constructor convenience for tuple types.
func MakeTuple(fields ...TypeID) Type {
	return Type{Kind: KindTuple, Fields: fields}
}

// MakeFunc is a constructor convenience for function types.
func MakeFunc(ret TypeID, isPrim bool, params ...TypeID) Type {
	return Type{Kind: KindFunc, Params: params, Ret: ret, IsPrim: isPrim}
}
