package util

import (
	"fmt"
	"net/netip"
)

// ValidateMTU checks if MTU is within valid range
func ValidateMTU(mtu int) error {
	if mtu < 68 || mtu > 9216 {
		return fmt.Errorf("MTU must be between 68 and 9216, got %d", mtu)
	}
	return nil
}

// ParseInterfaceAddresses parses address/prefix-length strings such as
// "10.0.0.1/24". The host bits are kept, and the same address may not
// appear twice.
func ParseInterfaceAddresses(addrs []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(addrs))
	seen := make(map[netip.Addr]bool, len(addrs))
	for _, a := range addrs {
		p, err := netip.ParsePrefix(a)
		if err != nil {
			return nil, err
		}
		if seen[p.Addr()] {
			return nil, NewDuplicateEntryError("address", p.Addr().String())
		}
		seen[p.Addr()] = true
		out = append(out, p)
	}
	return out, nil
}
