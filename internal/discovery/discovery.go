// Package discovery finds live hosts on the local /24 and resolves their
// hardware addresses.
package discovery

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"time"

	"github.com/L1nMay/homeports/internal/model"
)

// DefaultTimeout bounds a single reachability probe.
const DefaultTimeout = 500 * time.Millisecond

// Reply is the outcome of a reachability probe. Every failure is NoReply.
type Reply int

const (
	NoReply Reply = iota
	Alive
)

func (r Reply) String() string {
	if r == Alive {
		return "alive"
	}
	return "no-reply"
}

type Pinger interface {
	Ping(ctx context.Context, addr netip.Addr, timeout time.Duration) Reply
}

type Resolver interface {
	Resolve(ctx context.Context, addr netip.Addr) (net.HardwareAddr, error)
}

var ErrNoMAC = errors.New("hardware address not found")

// Host is a responding neighbour.
type Host struct {
	Addr netip.Addr
	MAC  string
	Name string
}

// Prober checks one address. It keeps no state between calls.
type Prober struct {
	Pinger   Pinger
	Resolver Resolver // nil disables MAC lookup
	Local    netip.Addr
	Timeout  time.Duration
}

// Probe reports whether addr answered. The local address never does.
func (p *Prober) Probe(ctx context.Context, addr netip.Addr) (Host, bool) {
	if addr == p.Local {
		return Host{}, false
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if p.Pinger.Ping(ctx, addr, timeout) != Alive {
		return Host{}, false
	}

	mac := model.ZeroMAC
	if p.Resolver != nil {
		if hw, err := p.Resolver.Resolve(ctx, addr); err == nil && len(hw) > 0 {
			mac = hw.String()
		}
	}
	return Host{Addr: addr, MAC: mac}, true
}
