package native

import "testing"

func TestAddressesFromMapsNamesToAddr(t *testing.T) {
	syms := []symbolInfo{
		{Name: "a", Addr: 0x1000, Size: 0x20},
		{Name: "b", Addr: 0x1020, Size: 0x10},
	}
	addrs := addressesFrom(syms)
	if addrs["a"] != 0x1000 || addrs["b"] != 0x1020 {
		t.Fatalf("addressesFrom = %#v", addrs)
	}
}
