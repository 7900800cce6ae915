package scan

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAddress(t *testing.T) {
	addr, err := ValidateAddress(" 192.168.1.20 ")
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.20", addr.String())

	for _, bad := range []string{"", "host.lan", "fe80::1", "0.0.0.0", "224.0.0.1", "255.255.255.255", "10.0.0.0/24"} {
		_, err := ValidateAddress(bad)
		assert.ErrorIs(t, err, ErrInvalidAddress, bad)
	}
}

func TestInSubnet(t *testing.T) {
	a := netip.MustParseAddr("192.168.1.20")
	assert.True(t, InSubnet(a, "192.168.1.0/24"))
	assert.False(t, InSubnet(a, "10.0.0.0/24"))
	assert.False(t, InSubnet(a, "nonsense"))
}
