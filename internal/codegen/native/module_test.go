package native

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"

	"vmc/internal/engine"
)

func buildTestFuncs(t *testing.T) []*ir.Func {
	t.Helper()
	m := ir.NewModule()
	mainFn := m.NewFunc("main", types.Void)
	mainFn.NewBlock("entry").NewRet(nil)
	helperFn := m.NewFunc("helper", types.Void)
	helperFn.NewBlock("entry").NewRet(nil)
	return []*ir.Func{helperFn, mainFn}
}

func testTarget(t *testing.T) engine.Target {
	t.Helper()
	target, err := engine.ParseTarget("llvm -mcpu=x86-64")
	if err != nil {
		t.Fatalf("ParseTarget: %v", err)
	}
	return target
}

func TestBuildRejectsEmptyFuncs(t *testing.T) {
	if _, err := Build(nil, testTarget(t)); err == nil {
		t.Fatal("expected an error building a module with zero functions")
	}
}

func TestBuildPicksMainAsEntry(t *testing.T) {
	m, err := Build(buildTestFuncs(t), testTarget(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if m.entry != "main" {
		t.Fatalf("entry = %q, want %q", m.entry, "main")
	}
}

func TestGetFunctionResolvesEntryAlias(t *testing.T) {
	m, err := Build(buildTestFuncs(t), testTarget(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	h, err := m.GetFunction(entrySymbol)
	if err != nil {
		t.Fatalf("GetFunction(entrySymbol): %v", err)
	}
	if h.name != "main" {
		t.Fatalf("resolved handle name = %q, want %q", h.name, "main")
	}
}

func TestGetFunctionResolvesByName(t *testing.T) {
	m, err := Build(buildTestFuncs(t), testTarget(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := m.GetFunction("helper"); err != nil {
		t.Fatalf("GetFunction(helper): %v", err)
	}
	if _, err := m.GetFunction("does_not_exist"); err == nil {
		t.Fatal("expected an error resolving an unknown function")
	}
}

func TestIsSystemModuleHandle(t *testing.T) {
	target, err := engine.ParseTarget("llvm -system-lib")
	if err != nil {
		t.Fatalf("ParseTarget: %v", err)
	}
	m, err := Build(buildTestFuncs(t), target)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	h, err := m.GetFunction("is_system_module")
	if err != nil {
		t.Fatalf("GetFunction(is_system_module): %v", err)
	}
	ok, err := h.Bool()
	if err != nil {
		t.Fatalf("Bool: %v", err)
	}
	if !ok {
		t.Fatal("expected is_system_module to report true for a -system-lib target")
	}
	if _, err := h.Call(); err == nil {
		t.Fatal("expected Call on is_system_module to fail")
	}
}

func TestHandleBoolRejectsNonSystemHandle(t *testing.T) {
	m, err := Build(buildTestFuncs(t), testTarget(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	h, err := m.GetFunction("helper")
	if err != nil {
		t.Fatalf("GetFunction: %v", err)
	}
	if _, err := h.Bool(); err == nil {
		t.Fatal("expected Bool() on a non-is_system_module handle to fail")
	}
}

func TestGetSourceEmbedsTargetFlag(t *testing.T) {
	m, err := Build(buildTestFuncs(t), testTarget(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	src, err := m.GetSource("ll")
	if err != nil {
		t.Fatalf("GetSource: %v", err)
	}
	if !strings.HasPrefix(src, tvmTargetFlagPrefix) {
		n := len(src)
		if n > 40 {
			n = 40
		}
		t.Fatalf("GetSource output does not start with the target flag comment: %q", src[:n])
	}
	if !strings.Contains(src, "define") {
		t.Fatalf("GetSource output does not contain any function definitions: %s", src)
	}
}

func TestGetSourceRejectsUnknownFormat(t *testing.T) {
	m, err := Build(buildTestFuncs(t), testTarget(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := m.GetSource("weird"); err == nil {
		t.Fatal("expected an error for an unrecognized format")
	}
}

func TestSaveToFileInfersFormatFromExtension(t *testing.T) {
	m, err := Build(buildTestFuncs(t), testTarget(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "out.ll")
	if err := m.SaveToFile(path, ""); err != nil {
		t.Fatalf("SaveToFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.HasPrefix(string(data), tvmTargetFlagPrefix) {
		t.Fatal("saved .ll file does not carry the target flag comment")
	}
}

func TestLoadIRRoundTripsEmbeddedTarget(t *testing.T) {
	m, err := Build(buildTestFuncs(t), testTarget(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "out.ll")
	if err := m.SaveToFile(path, "ll"); err != nil {
		t.Fatalf("SaveToFile: %v", err)
	}

	loaded, err := LoadIR(path)
	if err != nil {
		t.Fatalf("LoadIR: %v", err)
	}
	if loaded.target.Raw != m.target.Raw {
		t.Fatalf("loaded target = %q, want %q", loaded.target.Raw, m.target.Raw)
	}
}

