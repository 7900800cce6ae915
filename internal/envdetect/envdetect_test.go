package envdetect

import (
	"context"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaultRoute(t *testing.T) {
	r, err := parseDefaultRoute("default via 172.20.10.1 dev wlp0s20f3 proto dhcp metric 600\ndefault via 10.0.0.1 dev eth1\n")
	require.NoError(t, err)
	assert.Equal(t, Route{Gateway: "172.20.10.1", Interface: "wlp0s20f3"}, r)

	_, err = parseDefaultRoute("")
	assert.Error(t, err)
}

func TestParseBSDRoute(t *testing.T) {
	out := `   route to: default
destination: default
       mask: default
    gateway: 192.168.0.1
  interface: en0
      flags: <UP,GATEWAY,DONE,STATIC,PRCLONING>`

	r, err := parseBSDRoute(out)
	require.NoError(t, err)
	assert.Equal(t, "192.168.0.1", r.Gateway)
	assert.Equal(t, "en0", r.Interface)

	_, err = parseBSDRoute("route: writing to routing socket: not in table")
	assert.Error(t, err)
}

func TestSubnetFor(t *testing.T) {
	p, err := SubnetFor(netip.MustParseAddr("192.168.1.50"))
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.0/24", p.Masked().String())

	_, err = SubnetFor(netip.MustParseAddr("fe80::1"))
	assert.Error(t, err)
}

func TestFallbackGateway(t *testing.T) {
	assert.Equal(t, "10.0.7.1", FallbackGateway(netip.MustParsePrefix("10.0.7.0/24")))
}

func TestDetectNetworkProfilePinned(t *testing.T) {
	p, err := DetectNetworkProfile(context.Background(), Pin{
		LocalIP:   "192.168.1.50",
		Gateway:   "192.168.1.254",
		Interface: "eth9",
	})
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.50", p.LocalIP)
	assert.Equal(t, "192.168.1.254", p.Gateway)
	assert.Equal(t, "192.168.1.0/24", p.Subnet)
	assert.Equal(t, "eth9", p.Interface)
}

func TestDetectNetworkProfileRejectsBadPins(t *testing.T) {
	_, err := DetectNetworkProfile(context.Background(), Pin{LocalIP: "nope"})
	assert.Error(t, err)

	_, err = DetectNetworkProfile(context.Background(), Pin{LocalIP: "10.0.0.2", Subnet: "10.0.0.0/16"})
	assert.Error(t, err)
}

func TestInterfaceFor(t *testing.T) {
	nets := []Network{{Interface: "eth0", CIDR: "10.0.0.0/24", SrcIP: "10.0.0.5"}}
	assert.Equal(t, "eth0", InterfaceFor(nets, netip.MustParseAddr("10.0.0.5")))
	assert.Empty(t, InterfaceFor(nets, netip.MustParseAddr("10.0.0.6")))
}
