package native

import (
	"errors"
	"runtime"
	"testing"

	"github.com/llir/llvm/ir"

	"vmc/internal/engine"
)

func TestCheckArchMatchAcceptsHostArch(t *testing.T) {
	target := engine.Target{Backend: runtime.GOARCH}
	if err := checkArchMatch(target); err != nil {
		t.Fatalf("checkArchMatch(host arch) = %v, want nil", err)
	}
}

func TestCheckArchMatchAcceptsUnknownBackend(t *testing.T) {
	target := engine.Target{Backend: "llvm"}
	if err := checkArchMatch(target); err != nil {
		t.Fatalf("checkArchMatch(generic backend) = %v, want nil", err)
	}
}

func TestCheckArchMatchRejectsMismatch(t *testing.T) {
	other := "arm64"
	if runtime.GOARCH == "arm64" {
		other = "amd64"
	}
	target := engine.Target{Backend: other}
	err := checkArchMatch(target)
	if err == nil {
		t.Fatal("expected an arch mismatch error")
	}
	if !errors.Is(err, ErrArchMismatch) {
		t.Fatalf("error %v does not wrap ErrArchMismatch", err)
	}
}

func TestCheckDataLayoutMatchAcceptsUndeclaredLayout(t *testing.T) {
	m := ir.NewModule()
	if err := checkDataLayoutMatch(m); err != nil {
		t.Fatalf("checkDataLayoutMatch(no declared layout) = %v, want nil", err)
	}
}

func TestCheckDataLayoutMatchAcceptsHostLayout(t *testing.T) {
	want, known := dataLayouts[runtime.GOARCH]
	if !known {
		t.Skipf("no known data layout for host arch %s", runtime.GOARCH)
	}
	m := ir.NewModule()
	m.DataLayout = want
	if err := checkDataLayoutMatch(m); err != nil {
		t.Fatalf("checkDataLayoutMatch(host layout) = %v, want nil", err)
	}
}

func TestCheckDataLayoutMatchRejectsMismatch(t *testing.T) {
	if _, known := dataLayouts[runtime.GOARCH]; !known {
		t.Skipf("no known data layout for host arch %s", runtime.GOARCH)
	}
	m := ir.NewModule()
	m.DataLayout = "not-a-real-layout"
	err := checkDataLayoutMatch(m)
	if err == nil {
		t.Fatal("expected a data layout mismatch error")
	}
	if !errors.Is(err, ErrDataLayoutMismatch) {
		t.Fatalf("error %v does not wrap ErrDataLayoutMismatch", err)
	}
}

func TestDataLayoutForMatchesTargetArch(t *testing.T) {
	got := dataLayoutFor(engine.Target{Backend: "x86_64"})
	if got != dataLayouts["amd64"] {
		t.Fatalf("dataLayoutFor(x86_64) = %q, want the amd64 layout", got)
	}
	if dataLayoutFor(engine.Target{Backend: "llvm"}) != "" {
		t.Fatalf("expected an unrecognized backend to carry no layout commitment")
	}
}

func TestComputeSymbolSizesFillsGaps(t *testing.T) {
	syms := []symbolInfo{
		{Name: "a", Addr: 0x1000, Size: 0},
		{Name: "b", Addr: 0x1020, Size: 0},
		{Name: "c", Addr: 0x1040, Size: 8},
	}
	fillGapSizes(syms)
	if syms[0].Size != 0x20 {
		t.Fatalf("a.Size = %#x, want 0x20", syms[0].Size)
	}
	if syms[1].Size != 0x20 {
		t.Fatalf("b.Size = %#x, want 0x20", syms[1].Size)
	}
	if syms[2].Size != 8 {
		t.Fatalf("c.Size = %d, want 8 (explicit size kept)", syms[2].Size)
	}
}
