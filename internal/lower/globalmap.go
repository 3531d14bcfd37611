package lower

import "vmc/internal/ir"

// buildGlobalMap assigns every function in module a dense global index in
// definition order, the table Invoke/AllocClosure instructions address by.
func buildGlobalMap(module *ir.Module) map[*ir.GlobalVar]uint32 {
	m := make(map[*ir.GlobalVar]uint32, len(module.Order))
	for i, gv := range module.Order {
		m[gv] = uint32(i)
	}
	return m
}
