package envdetect

import (
	"net"
	"net/netip"
)

// Network is one IPv4 address configured on a local interface.
type Network struct {
	Interface string `json:"interface"`
	CIDR      string `json:"cidr"`
	SrcIP     string `json:"src_ip"`
}

func DetectLocalNetworks() ([]Network, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var nets []Network
	for _, ifc := range ifaces {
		if ifc.Flags&net.FlagUp == 0 || ifc.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := ifc.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			prefix, err := netip.ParsePrefix(a.String())
			if err != nil || !prefix.Addr().Is4() {
				continue
			}
			nets = append(nets, Network{
				Interface: ifc.Name,
				CIDR:      prefix.Masked().String(),
				SrcIP:     prefix.Addr().String(),
			})
		}
	}
	return nets, nil
}

// InterfaceFor returns the name of the interface carrying ip, or "".
func InterfaceFor(nets []Network, ip netip.Addr) string {
	for _, n := range nets {
		if n.SrcIP == ip.String() {
			return n.Interface
		}
	}
	return ""
}
