package native

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/llir/llvm/asm"

	"vmc/internal/engine"
)

// tvmTargetFlagPrefix marks the comment line GetSource("ll") and
// SaveToFile(..., "ll") embed at the top of the textual IR, letting LoadIR
// recover the module's target without needing it supplied out of band —
// this is the pure-Go stand-in for the module flag the source compiler
// attaches via LLVM's own metadata mechanism.
const tvmTargetFlagPrefix = "; tvm_target: "

// GetSource renders the module in format ("ll" by default): "ll" for
// textual LLVM IR, "asm"/"s" for target assembly via the system
// toolchain. Binary formats are rejected here — use SaveToFile for those.
func (m *Module) GetSource(format string) (string, error) {
	if format == "" {
		format = "ll"
	}
	switch format {
	case "ll":
		var b strings.Builder
		fmt.Fprintf(&b, "%s%s\n", tvmTargetFlagPrefix, m.target.Raw)
		b.WriteString(m.llvm.String())
		return b.String(), nil
	case "asm", "s":
		return m.toolchainEmit("s")
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// SaveToFile writes the module to path in format, inferring it from
// path's extension when format is empty — the same o/obj/s/asm/ll/bc
// dispatch the source compiler's SaveToFile performs.
func (m *Module) SaveToFile(path, format string) error {
	if format == "" {
		format = strings.TrimPrefix(filepath.Ext(path), ".")
	}
	switch format {
	case "ll":
		src, err := m.GetSource("ll")
		if err != nil {
			return err
		}
		return atomicWriteFile(path, []byte(src))
	case "bc":
		return m.toolchainEmitToFile(path, "bc")
	case "s", "asm":
		return m.toolchainEmitToFile(path, "s")
	case "o", "obj":
		return m.toolchainEmitToFile(path, "obj")
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// atomicWriteFile writes data to path via a temp file in the same
// directory followed by a rename, so a reader never observes a partially
// written artifact — the same pattern this codebase uses for its
// on-disk build cache and its perf map.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	w := bufio.NewWriter(tmp)
	if _, err := w.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// LoadIR parses a previously saved textual IR file, recovering its
// target from the embedded tvm_target comment (falling back to the
// module's LLVM target triple when the comment is absent) and its
// functions by re-parsing the IR text with the same assembler LLVM IR
// construction uses, so a loaded module supports GetFunction/Call just
// like one just returned by Build.
func LoadIR(path string) (*Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text := string(data)

	targetStr := ""
	body := text
	if line, ok := firstLine(text); ok && strings.HasPrefix(line, tvmTargetFlagPrefix) {
		targetStr = strings.TrimPrefix(line, tvmTargetFlagPrefix)
		if i := strings.IndexByte(text, '\n'); i >= 0 {
			body = text[i+1:]
		}
	}
	if targetStr == "" {
		if triple, ok := findTargetTriple(text); ok {
			targetStr = triple
		} else {
			return nil, fmt.Errorf("native: %s has no tvm_target flag and no target triple to fall back to", path)
		}
	}

	target, err := engine.ParseTarget(targetStr)
	if err != nil {
		return nil, err
	}

	llvmModule, err := asm.ParseString(path, body)
	if err != nil {
		return nil, fmt.Errorf("native: parsing %s: %w", path, err)
	}

	entry := entrySymbol
	if len(llvmModule.Funcs) > 0 {
		entry = llvmModule.Funcs[0].Name()
		for _, f := range llvmModule.Funcs {
			if f.Name() == "main" {
				entry = f.Name()
				break
			}
		}
	}

	return &Module{llvm: llvmModule, target: target, entry: entry, isSystem: target.SystemLib}, nil
}

func firstLine(s string) (string, bool) {
	i := strings.IndexByte(s, '\n')
	if i < 0 {
		return strings.TrimSpace(s), s != ""
	}
	return strings.TrimSpace(s[:i]), true
}

func findTargetTriple(text string) (string, bool) {
	const marker = "target triple = \""
	i := strings.Index(text, marker)
	if i < 0 {
		return "", false
	}
	rest := text[i+len(marker):]
	j := strings.IndexByte(rest, '"')
	if j < 0 {
		return "", false
	}
	return rest[:j], true
}
