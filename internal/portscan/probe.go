// Package portscan probes TCP ports with bounded concurrency.
package portscan

import (
	"context"
	"net"
	"net/netip"
	"strconv"
	"time"
)

// State is the outcome of one connect attempt. Closed also covers filtered
// and unreachable.
type State int

const (
	Closed State = iota
	Open
)

func (s State) String() string {
	if s == Open {
		return "open"
	}
	return "closed"
}

type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// NetDialer dials real TCP connections.
type NetDialer struct{}

func (NetDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, network, address)
}

// ProbeOne attempts a TCP connect bounded by timeout.
func ProbeOne(ctx context.Context, d Dialer, addr netip.Addr, port int, timeout time.Duration) State {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(addr.String(), strconv.Itoa(port)))
	if err != nil {
		return Closed
	}
	_ = conn.Close()
	return Open
}
