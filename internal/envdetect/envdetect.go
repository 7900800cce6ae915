package envdetect

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/L1nMay/homeports/internal/logger"
	"github.com/L1nMay/homeports/internal/model"
)

// Pin holds operator-supplied values that replace detection.
type Pin struct {
	LocalIP   string
	Gateway   string
	Subnet    string
	Interface string
}

// SubnetFor returns the /24 containing ip.
func SubnetFor(ip netip.Addr) (netip.Prefix, error) {
	if !ip.Is4() {
		return netip.Prefix{}, fmt.Errorf("%s is not an IPv4 address", ip)
	}
	return ip.Prefix(24)
}

// FallbackGateway is the .1 host of the subnet.
func FallbackGateway(subnet netip.Prefix) string {
	b := subnet.Masked().Addr().As4()
	b[3] = 1
	return netip.AddrFrom4(b).String()
}

// DetectNetworkProfile derives the profile once at startup. Detection
// failures degrade to loopback and the subnet's .1 gateway.
func DetectNetworkProfile(ctx context.Context, pin Pin) (model.NetworkProfile, error) {
	local, err := resolveLocal(pin.LocalIP)
	if err != nil {
		return model.NetworkProfile{}, err
	}

	var subnet netip.Prefix
	if pin.Subnet != "" {
		p, err := netip.ParsePrefix(pin.Subnet)
		if err != nil {
			return model.NetworkProfile{}, fmt.Errorf("subnet %q: %w", pin.Subnet, err)
		}
		if !p.Addr().Is4() || p.Bits() != 24 {
			return model.NetworkProfile{}, fmt.Errorf("subnet %q: only IPv4 /24 is supported", pin.Subnet)
		}
		subnet = p.Masked()
	} else if subnet, err = SubnetFor(local); err != nil {
		return model.NetworkProfile{}, err
	}

	route, rerr := DetectDefaultRoute(ctx)
	if rerr != nil {
		logger.Debugf("default route detection failed: %v", rerr)
	}

	gw := pin.Gateway
	if gw == "" {
		gw = route.Gateway
	}
	if _, err := netip.ParseAddr(gw); err != nil {
		gw = FallbackGateway(subnet)
	}

	iface := pin.Interface
	if iface == "" {
		if nets, err := DetectLocalNetworks(); err == nil {
			iface = InterfaceFor(nets, local)
		}
	}
	if iface == "" {
		iface = route.Interface
	}

	return model.NetworkProfile{
		LocalIP:   local.String(),
		Gateway:   gw,
		Subnet:    subnet.String(),
		Interface: iface,
	}, nil
}

func resolveLocal(pinned string) (netip.Addr, error) {
	if pinned != "" {
		a, err := netip.ParseAddr(pinned)
		if err != nil {
			return netip.Addr{}, fmt.Errorf("local_ip %q: %w", pinned, err)
		}
		if !a.Is4() {
			return netip.Addr{}, fmt.Errorf("local_ip %q: not IPv4", pinned)
		}
		return a, nil
	}
	a, err := DetectLocalIP()
	if err != nil {
		logger.Warnf("local ip detection failed, using loopback: %v", err)
		return netip.MustParseAddr("127.0.0.1"), nil
	}
	return a, nil
}
