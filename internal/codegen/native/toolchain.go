package native

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"vmc/internal/engine"
)

// toolchainEmit shells out to llc to translate the module's textual IR
// into format ("s" for assembly, "bc" is handled by llvm-as instead) and
// returns the result as a string. github.com/llir/llvm only builds and
// prints IR in pure Go — it has no code generator — so anything past
// textual IR goes through the system LLVM toolchain, the same tradeoff
// ComedicChimera's LLVM-backed generator documents when it gave up on
// cgo bindings.
func (m *Module) toolchainEmit(format string) (string, error) {
	ir, err := m.GetSource("ll")
	if err != nil {
		return "", err
	}
	out, err := runToolchain(ir, "llc", llcArgs(m.target, format)...)
	if err != nil {
		return "", fmt.Errorf("native: llc: %w", err)
	}
	return string(out), nil
}

// toolchainEmitToFile is toolchainEmit's file-writing counterpart for
// binary formats (object files, bitcode) that don't round-trip cleanly
// through a Go string.
func (m *Module) toolchainEmitToFile(path, format string) error {
	ir, err := m.GetSource("ll")
	if err != nil {
		return err
	}

	tool := "llc"
	args := llcArgs(m.target, format)
	if format == "bc" {
		tool = "llvm-as"
		args = nil
	}

	out, err := runToolchain(ir, tool, args...)
	if err != nil {
		return fmt.Errorf("native: %s: %w", tool, err)
	}
	return atomicWriteFile(path, out)
}

func llcArgs(target engine.Target, format string) []string {
	args := []string{"-filetype=" + llcFiletype(format), "-o", "-"}
	if target.CPU != "" {
		args = append(args, "-mcpu="+target.CPU)
	}
	return args
}

func llcFiletype(format string) string {
	switch format {
	case "s", "asm":
		return "asm"
	case "o", "obj":
		return "obj"
	default:
		return "asm"
	}
}

// runToolchain pipes ir into name's stdin (LLVM tools read textual IR
// from stdin with "-") and returns its stdout, invoked via os/exec since
// this module never links against LLVM's C++ libraries directly.
func runToolchain(ir string, name string, args ...string) ([]byte, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return nil, fmt.Errorf("%s not found on PATH: %w", name, err)
	}
	cmd := exec.Command(path, append([]string{"-"}, args...)...)
	cmd.Stdin = bytes.NewReader([]byte(ir))
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%v: %s", err, stderr.String())
	}
	return stdout.Bytes(), nil
}

// compileToSharedLib builds a dlopen-able shared object from the
// module's IR via clang, the artifact JIT init loads with Go's plugin
// package.
func compileToSharedLib(irText string, target engine.Target) (string, error) {
	dir, err := os.MkdirTemp("", "vmc-jit-*")
	if err != nil {
		return "", err
	}
	soPath := filepath.Join(dir, "kernel.so")

	path, err := exec.LookPath("clang")
	if err != nil {
		return "", fmt.Errorf("clang not found on PATH: %w", err)
	}
	args := []string{"-shared", "-fPIC", "-x", "ir", "-", "-o", soPath}
	if target.CPU != "" {
		args = append(args, "-mcpu="+target.CPU)
	}
	cmd := exec.Command(path, args...)
	cmd.Stdin = bytes.NewReader([]byte(irText))
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("clang: %v: %s", err, stderr.String())
	}
	return soPath, nil
}
