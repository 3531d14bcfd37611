package types

import "testing"

func TestInternerDedup(t *testing.T) {
	in := NewInterner()
	a := in.Intern(MakeTensor(DTypeFloat32, 1, 3, 224, 224))
	b := in.Intern(MakeTensor(DTypeFloat32, 1, 3, 224, 224))
	if a != b {
		t.Fatalf("expected identical shapes to intern to the same id, got %d and %d", a, b)
	}
	c := in.Intern(MakeTensor(DTypeFloat32, 1, 3, 224, 225))
	if c == a {
		t.Fatalf("expected different shapes to intern to different ids")
	}
}

func TestInternerBuiltinsStable(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	if b.ScalarF32 == NoTypeID {
		t.Fatalf("expected ScalarF32 builtin to be interned")
	}
	got, ok := in.Lookup(b.ScalarF32)
	if !ok || got.DType != DTypeFloat32 {
		t.Fatalf("lookup mismatch for ScalarF32: %+v ok=%v", got, ok)
	}
}

func TestInternerInvalidLookup(t *testing.T) {
	in := NewInterner()
	if _, ok := in.Lookup(NoTypeID); ok {
		t.Fatalf("expected NoTypeID to be invalid")
	}
	if _, ok := in.Lookup(TypeID(9999)); ok {
		t.Fatalf("expected out-of-range id to be invalid")
	}
}

func TestSnapshotRestoreRoundTrips(t *testing.T) {
	in := NewInterner()
	f32 := in.Builtins().ScalarF32
	tup := in.Intern(MakeTuple(f32, f32))
	shaped := in.Intern(MakeTensor(DTypeFloat32, 1, 3, 224, 224))

	restored := RestoreInterner(in.Snapshot())

	got, ok := restored.Lookup(tup)
	if !ok || got.Kind != KindTuple || len(got.Fields) != 2 {
		t.Fatalf("restored tuple mismatch: %+v ok=%v", got, ok)
	}
	gotShaped, ok := restored.Lookup(shaped)
	if !ok || gotShaped.DType != DTypeFloat32 || len(gotShaped.Shape) != 4 {
		t.Fatalf("restored tensor mismatch: %+v ok=%v", gotShaped, ok)
	}
	if restored.Builtins().ScalarF32 != in.Builtins().ScalarF32 {
		t.Fatalf("restored builtins do not match original ids")
	}
}

func TestInternerFuncAndTuple(t *testing.T) {
	in := NewInterner()
	f32 := in.Builtins().ScalarF32
	tup := in.Intern(MakeTuple(f32, f32))
	fn := in.Intern(MakeFunc(tup, true, f32, f32))
	got := in.MustLookup(fn)
	if got.Kind != KindFunc || !got.IsPrim || got.Ret != tup {
		t.Fatalf("unexpected function type: %+v", got)
	}
}
