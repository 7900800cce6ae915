package scan

import (
	"fmt"
	"net/netip"
	"strings"
)

// ValidateAddress parses a single IPv4 host address as typed by a user.
func ValidateAddress(raw string) (netip.Addr, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return netip.Addr{}, fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	if !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("%w: %s is not IPv4", ErrInvalidAddress, s)
	}
	if addr.IsUnspecified() || addr.IsMulticast() || addr == netip.AddrFrom4([4]byte{255, 255, 255, 255}) {
		return netip.Addr{}, fmt.Errorf("%w: %s is not a host address", ErrInvalidAddress, s)
	}
	return addr, nil
}

// InSubnet reports whether addr belongs to the CIDR subnet.
func InSubnet(addr netip.Addr, subnet string) bool {
	p, err := netip.ParsePrefix(subnet)
	if err != nil {
		return false
	}
	return p.Masked().Contains(addr)
}
