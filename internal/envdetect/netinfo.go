package envdetect

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/netip"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

const routeTimeout = 2 * time.Second

// Route is the default IPv4 route of the host.
type Route struct {
	Gateway   string `json:"gateway"`
	Interface string `json:"interface"`
}

// parseDefaultRoute reads the first line of `ip route show default`, e.g.
// "default via 172.20.10.1 dev wlp0s20f3 proto dhcp metric 600".
func parseDefaultRoute(out string) (Route, error) {
	line := strings.TrimSpace(out)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}

	var r Route
	parts := strings.Fields(line)
	for i := 0; i < len(parts)-1; i++ {
		switch parts[i] {
		case "via":
			r.Gateway = parts[i+1]
		case "dev":
			r.Interface = parts[i+1]
		}
	}
	if r.Gateway == "" && r.Interface == "" {
		return Route{}, fmt.Errorf("cannot parse default route from: %q", line)
	}
	return r, nil
}

// parseBSDRoute reads `route -n get default` output.
func parseBSDRoute(out string) (Route, error) {
	var r Route
	for _, line := range strings.Split(out, "\n") {
		k, v, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok {
			continue
		}
		switch strings.TrimSpace(k) {
		case "gateway":
			r.Gateway = strings.TrimSpace(v)
		case "interface":
			r.Interface = strings.TrimSpace(v)
		}
	}
	if r.Gateway == "" {
		return Route{}, fmt.Errorf("no gateway in route output")
	}
	return r, nil
}

func runRoute(ctx context.Context, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, routeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s error: %w (%s)", name, err, strings.TrimSpace(out.String()))
	}
	return out.String(), nil
}

// DetectDefaultRoute asks the OS routing table for the default IPv4 route.
func DetectDefaultRoute(ctx context.Context) (Route, error) {
	switch runtime.GOOS {
	case "linux":
		out, err := runRoute(ctx, "ip", "-4", "route", "show", "default")
		if err != nil {
			return Route{}, err
		}
		return parseDefaultRoute(out)
	case "darwin", "freebsd", "openbsd", "netbsd":
		out, err := runRoute(ctx, "route", "-n", "get", "default")
		if err != nil {
			return Route{}, err
		}
		return parseBSDRoute(out)
	default:
		return Route{}, fmt.Errorf("default route detection not supported on %s", runtime.GOOS)
	}
}

// DetectGateway returns the default gateway address.
func DetectGateway(ctx context.Context) (string, error) {
	r, err := DetectDefaultRoute(ctx)
	if err != nil {
		return "", err
	}
	if _, err := netip.ParseAddr(r.Gateway); err != nil {
		return "", fmt.Errorf("gateway %q: %w", r.Gateway, err)
	}
	return r.Gateway, nil
}

// DetectLocalIP returns the source address the kernel picks for outbound
// traffic. Dialing UDP sends no packets.
func DetectLocalIP() (netip.Addr, error) {
	conn, err := net.Dial("udp4", "8.8.8.8:80")
	if err != nil {
		return netip.Addr{}, err
	}
	defer conn.Close()

	ua, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return netip.Addr{}, fmt.Errorf("unexpected local addr %T", conn.LocalAddr())
	}
	addr, ok := netip.AddrFromSlice(ua.IP.To4())
	if !ok {
		return netip.Addr{}, fmt.Errorf("local addr %s is not IPv4", ua.IP)
	}
	return addr, nil
}
