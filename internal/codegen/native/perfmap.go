package native

import (
	"bufio"
	"fmt"
	"os"

	"vmc/internal/diag"
)

// writePerfMap emits a /tmp/perf-<pid>.map file listing each JIT-compiled
// symbol's address and size, in the format Linux perf(1) reads directly —
// the same mechanism the source compiler's HandrolledPerfJITEventListener
// installs so a JIT-compiled module shows up with real symbol names in a
// profiler instead of as anonymous mapped memory. Written via the same
// temp-file-plus-rename pattern as SaveToFile so a profiler sampling mid
// write never sees a half-written map.
func writePerfMap(syms []symbolInfo) error {
	if len(syms) == 0 {
		return nil
	}
	path := fmt.Sprintf("/tmp/perf-%d.map", os.Getpid())

	tmp, err := os.CreateTemp("/tmp", ".perf-map-*")
	if err != nil {
		return fmt.Errorf("%s: %v", diag.CodegenPerfMapWriteFailed, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	w := bufio.NewWriter(tmp)
	for _, s := range syms {
		if s.Size == 0 {
			continue
		}
		fmt.Fprintf(w, "%x %x %s\n", s.Addr, s.Size, s.Name)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("%s: %v", diag.CodegenPerfMapWriteFailed, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%s: %v", diag.CodegenPerfMapWriteFailed, err)
	}
	return os.Rename(tmpPath, path)
}
