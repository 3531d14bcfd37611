package diskcache

import (
	"path/filepath"
	"testing"

	"vmc/internal/bytecode"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	return &Cache{dir: filepath.Join(t.TempDir(), "cache")}
}

func samplePayload() *Payload {
	return &Payload{
		Target: "llvm -mcpu=x86-64",
		Program: &bytecode.VMProgram{
			Functions: []bytecode.VMFunction{
				{Name: "main", ParamCount: 0, NumRegs: 1, Instrs: []bytecode.Instruction{{Op: bytecode.OpRet, Result: 0}}},
			},
			GlobalMap: map[string]uint32{"main": 0},
		},
	}
}

func TestPutGetRoundTrips(t *testing.T) {
	c := newTestCache(t)
	key := Sum([]byte("module-a"))

	if err := c.Put(key, samplePayload()); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := c.Get(key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected a cache hit after Put")
	}
	if got.Target != "llvm -mcpu=x86-64" {
		t.Fatalf("Target = %q, want %q", got.Target, "llvm -mcpu=x86-64")
	}
	if len(got.Program.Functions) != 1 || got.Program.Functions[0].Name != "main" {
		t.Fatalf("Program round-tripped incorrectly: %+v", got.Program)
	}
}

func TestGetMissReturnsFalse(t *testing.T) {
	c := newTestCache(t)
	_, ok, err := c.Get(Sum([]byte("never-put")))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected a cache miss")
	}
}

func TestNilCacheIsANoOp(t *testing.T) {
	var c *Cache
	if err := c.Put(Sum([]byte("x")), samplePayload()); err != nil {
		t.Fatalf("Put on nil cache: %v", err)
	}
	_, ok, err := c.Get(Sum([]byte("x")))
	if err != nil || ok {
		t.Fatalf("Get on nil cache = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestDropAllRemovesEntries(t *testing.T) {
	c := newTestCache(t)
	key := Sum([]byte("module-b"))
	if err := c.Put(key, samplePayload()); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := c.DropAll(); err != nil {
		t.Fatalf("DropAll: %v", err)
	}
	_, ok, err := c.Get(key)
	if err != nil {
		t.Fatalf("Get after DropAll: %v", err)
	}
	if ok {
		t.Fatal("expected a cache miss after DropAll")
	}
}
