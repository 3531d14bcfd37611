package types

import (
	"fmt"
	"strconv"

	"fortio.org/safecast"
)

// Builtins holds TypeIDs for the handful of scalar tensor types nearly
// every module references, so callers don't re-intern them by hand.
type Builtins struct {
	Invalid    TypeID
	ScalarF32  TypeID
	ScalarF64  TypeID
	ScalarI32  TypeID
	ScalarI64  TypeID
	ScalarBool TypeID
}

// Interner assigns stable TypeIDs to structurally-equal Type descriptors.
// It is the same arena+hash-cons idiom used elsewhere in this codebase for
// interning small immutable value objects: append-only storage plus an
// index keyed by a comparable projection of the value.
type Interner struct {
	arena    []Type
	index    map[string]TypeID
	builtins Builtins
}

func NewInterner() *Interner {
	in := &Interner{
		arena: make([]Type, 1, 64), // index 0 reserved for NoTypeID
		index: make(map[string]TypeID, 64),
	}
	in.builtins.Invalid = NoTypeID
	in.builtins.ScalarF32 = in.Intern(MakeTensor(DTypeFloat32))
	in.builtins.ScalarF64 = in.Intern(MakeTensor(DTypeFloat64))
	in.builtins.ScalarI32 = in.Intern(MakeTensor(DTypeInt32))
	in.builtins.ScalarI64 = in.Intern(MakeTensor(DTypeInt64))
	in.builtins.ScalarBool = in.Intern(MakeTensor(DTypeBool))
	return in
}

func (in *Interner) Builtins() Builtins {
	return in.builtins
}

// Intern ensures t has a stable TypeID, allocating one on first sight.
func (in *Interner) Intern(t Type) TypeID {
	if t.Kind == KindInvalid {
		return NoTypeID
	}
	key := typeKey(t)
	if id, ok := in.index[key]; ok {
		return id
	}
	n, err := safecast.Conv[uint32](len(in.arena))
	if err != nil {
		panic(fmt.Errorf("types: arena overflow: %w", err))
	}
	id := TypeID(n)
	in.arena = append(in.arena, t)
	in.index[key] = id
	return id
}

// Lookup returns the descriptor for id, or false if id is out of range.
func (in *Interner) Lookup(id TypeID) (Type, bool) {
	if id == NoTypeID || int(id) >= len(in.arena) {
		return Type{}, false
	}
	return in.arena[id], true
}

// MustLookup panics on an invalid TypeID; used where the caller has already
// validated the id came from this Interner.
func (in *Interner) MustLookup(id TypeID) Type {
	t, ok := in.Lookup(id)
	if !ok {
		panic("types: invalid TypeID")
	}
	return t
}

// Snapshot returns a copy of the arena in TypeID order (index 0 is the
// reserved invalid slot), letting a caller persist the interner's state
// and reconstruct an equivalent one later with RestoreInterner.
func (in *Interner) Snapshot() []Type {
	out := make([]Type, len(in.arena))
	copy(out, in.arena)
	return out
}

// RestoreInterner rebuilds an Interner from a Snapshot, reassigning the
// same TypeIDs (position in arena) the snapshot was taken with.
func RestoreInterner(arena []Type) *Interner {
	in := &Interner{
		arena: make([]Type, 1, len(arena)+1),
		index: make(map[string]TypeID, len(arena)),
	}
	for i := 1; i < len(arena); i++ {
		t := arena[i]
		in.arena = append(in.arena, t)
		in.index[typeKey(t)] = TypeID(i)
	}
	in.builtins.Invalid = NoTypeID
	in.builtins.ScalarF32 = in.Intern(MakeTensor(DTypeFloat32))
	in.builtins.ScalarF64 = in.Intern(MakeTensor(DTypeFloat64))
	in.builtins.ScalarI32 = in.Intern(MakeTensor(DTypeInt32))
	in.builtins.ScalarI64 = in.Intern(MakeTensor(DTypeInt64))
	in.builtins.ScalarBool = in.Intern(MakeTensor(DTypeBool))
	return in
}

// typeKey renders a Type into a string suitable as a map key. Types are
// small and this runs once per distinct type during lowering, so string
// construction is not a hot path worth a bespoke struct key.
func typeKey(t Type) string {
	switch t.Kind {
	case KindTensor:
		s := "T" + strconv.Itoa(int(t.DType))
		for _, d := range t.Shape {
			s += "," + strconv.FormatInt(int64(d), 10)
		}
		return s
	case KindTuple:
		s := "U"
		for _, f := range t.Fields {
			s += "," + strconv.FormatUint(uint64(f), 10)
		}
		return s
	case KindFunc:
		s := "F"
		if t.IsPrim {
			s += "!"
		}
		for _, p := range t.Params {
			s += "," + strconv.FormatUint(uint64(p), 10)
		}
		s += ";" + strconv.FormatUint(uint64(t.Ret), 10)
		return s
	default:
		return "?"
	}
}
