package native

import (
	"debug/elf"
	"fmt"
	"sort"
)

// symbolInfo is one entry of a shared object's resolved symbol table:
// name, address, and a size computed even when the object format doesn't
// record one directly.
type symbolInfo struct {
	Name string
	Addr uint64
	Size uint64
}

// computeSymbolSizes reads soPath's ELF symbol table and, for each
// function symbol whose table entry carries no size, derives one from the
// gap to the next function symbol's address — a reduced form of the
// source compiler's computeSymbolSizes: section ends are not used as
// boundaries, so a symbol's gap may run across a section change. The
// final symbol in address order keeps a zero size when the table itself
// didn't record one, since there is no next symbol to measure the gap
// against.
func computeSymbolSizes(soPath string) ([]symbolInfo, error) {
	f, err := elf.Open(soPath)
	if err != nil {
		return nil, fmt.Errorf("native: elf.Open: %w", err)
	}
	defer f.Close()

	syms, err := f.Symbols()
	if err != nil {
		return nil, fmt.Errorf("native: reading symbol table: %w", err)
	}

	var funcs []symbolInfo
	for _, s := range syms {
		if elf.ST_TYPE(s.Info) != elf.STT_FUNC || s.Value == 0 || s.Name == "" {
			continue
		}
		funcs = append(funcs, symbolInfo{Name: s.Name, Addr: s.Value, Size: s.Size})
	}
	sort.Slice(funcs, func(i, j int) bool { return funcs[i].Addr < funcs[j].Addr })

	fillGapSizes(funcs)
	return funcs, nil
}

// fillGapSizes gives each zero-size entry of funcs (sorted by address) the
// gap to the next entry's address; explicit sizes and a zero-size final
// entry are left as they are.
func fillGapSizes(funcs []symbolInfo) {
	for i := range funcs {
		if funcs[i].Size != 0 {
			continue
		}
		if i+1 < len(funcs) {
			funcs[i].Size = funcs[i+1].Addr - funcs[i].Addr
		}
	}
}

func addressesFrom(syms []symbolInfo) map[string]uintptr {
	m := make(map[string]uintptr, len(syms))
	for _, s := range syms {
		m[s.Name] = uintptr(s.Addr)
	}
	return m
}
