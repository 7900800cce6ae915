package discovery

import (
	"net/netip"
	"time"

	"github.com/L1nMay/homeports/internal/logger"
)

// Options selects the reachability and address-resolution primitives.
type Options struct {
	Method      string // auto | icmp | exec
	ARP         string // auto | cache | active | off
	Interface   string
	Local       netip.Addr
	Timeout     time.Duration
	PingCeiling time.Duration
}

// NewPinger picks a pinger. "auto" uses ICMP sockets when the process may
// open them and the ping utility otherwise.
func NewPinger(method string, ceiling time.Duration) Pinger {
	switch method {
	case "icmp":
		return NewICMPPinger()
	case "exec":
		return NewExecPinger(ceiling)
	}
	if ICMPAvailable() {
		return NewICMPPinger()
	}
	logger.Infof("ICMP sockets unavailable, falling back to the ping utility")
	return NewExecPinger(ceiling)
}

// NewResolver builds the MAC lookup chain. nil means lookups are disabled.
func NewResolver(mode, iface string, timeout time.Duration) Resolver {
	cache := NewCacheResolver()
	active := &ActiveResolver{Interface: iface, Timeout: timeout}

	switch mode {
	case "off":
		return nil
	case "cache":
		return cache
	case "active":
		if iface == "" {
			logger.Warnf("active ARP needs an interface, using the neighbour cache")
			return cache
		}
		return active
	}
	if iface == "" {
		return cache
	}
	return ChainResolver{cache, active}
}

func NewProber(opts Options) *Prober {
	return &Prober{
		Pinger:   NewPinger(opts.Method, opts.PingCeiling),
		Resolver: NewResolver(opts.ARP, opts.Interface, opts.Timeout),
		Local:    opts.Local,
		Timeout:  opts.Timeout,
	}
}
