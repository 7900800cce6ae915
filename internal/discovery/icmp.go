package discovery

import (
	"context"
	"net"
	"net/netip"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

const protocolICMP = 1

var echoPayload = []byte("homeports-echo")

// ICMPPinger sends one echo request per probe on its own socket. It prefers
// the unprivileged datagram socket and falls back to a raw socket.
type ICMPPinger struct {
	id  int
	seq atomic.Uint32
}

func NewICMPPinger() *ICMPPinger {
	return &ICMPPinger{id: os.Getpid() & 0xffff}
}

// ICMPAvailable reports whether this process may open an ICMP socket.
func ICMPAvailable() bool {
	conn, _, err := listenICMP()
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

func listenICMP() (*icmp.PacketConn, string, error) {
	conn, err := icmp.ListenPacket("udp4", "0.0.0.0")
	if err == nil {
		return conn, "udp4", nil
	}
	conn, err = icmp.ListenPacket("ip4:icmp", "0.0.0.0")
	if err != nil {
		return nil, "", err
	}
	return conn, "ip4:icmp", nil
}

func (p *ICMPPinger) Ping(ctx context.Context, addr netip.Addr, timeout time.Duration) Reply {
	if !addr.Is4() {
		return NoReply
	}

	conn, network, err := listenICMP()
	if err != nil {
		return NoReply
	}
	defer conn.Close()

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return NoReply
	}

	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{
			ID:   p.id,
			Seq:  int(p.seq.Add(1) & 0xffff),
			Data: echoPayload,
		},
	}
	wb, err := msg.Marshal(nil)
	if err != nil {
		return NoReply
	}

	ip := net.IP(addr.AsSlice())
	var dst net.Addr = &net.IPAddr{IP: ip}
	if network == "udp4" {
		dst = &net.UDPAddr{IP: ip}
	}
	if _, err := conn.WriteTo(wb, dst); err != nil {
		return NoReply
	}

	rb := make([]byte, 1500)
	for ctx.Err() == nil {
		n, peer, err := conn.ReadFrom(rb)
		if err != nil {
			return NoReply
		}
		if !samePeer(peer, addr) {
			continue
		}
		rm, err := icmp.ParseMessage(protocolICMP, rb[:n])
		if err != nil {
			continue
		}
		if rm.Type == ipv4.ICMPTypeEchoReply {
			return Alive
		}
	}
	return NoReply
}

func samePeer(peer net.Addr, want netip.Addr) bool {
	var ip net.IP
	switch a := peer.(type) {
	case *net.UDPAddr:
		ip = a.IP
	case *net.IPAddr:
		ip = a.IP
	default:
		return false
	}
	got, ok := netip.AddrFromSlice(ip.To4())
	return ok && got == want
}
