package discovery

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"os"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/mdlayher/arp"
)

const (
	procARPPath   = "/proc/net/arp"
	arpCmdTimeout = 2 * time.Second
)

var macPattern = regexp.MustCompile(`([0-9a-fA-F]{2}[-:]){5}[0-9a-fA-F]{2}`)

// CacheResolver looks the address up in the kernel neighbour table. It
// needs no privileges and only knows hosts the kernel already talked to.
type CacheResolver struct {
	Path string
	goos string
	run  runFunc
}

func NewCacheResolver() *CacheResolver {
	return &CacheResolver{Path: procARPPath, goos: runtime.GOOS, run: runCombined}
}

func (r *CacheResolver) Resolve(ctx context.Context, addr netip.Addr) (net.HardwareAddr, error) {
	if r.goos == "linux" {
		f, err := os.Open(r.Path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return parseProcARP(f, addr)
	}

	ctx, cancel := context.WithTimeout(ctx, arpCmdTimeout)
	defer cancel()
	out, err := r.run(ctx, "arp", "-a", addr.String())
	if err != nil {
		return nil, err
	}
	return firstMAC(string(out))
}

// parseProcARP scans /proc/net/arp:
//
//	IP address       HW type     Flags       HW address            Mask     Device
//	192.168.1.1      0x1         0x2         aa:bb:cc:dd:ee:ff     *        eth0
func parseProcARP(rd io.Reader, addr netip.Addr) (net.HardwareAddr, error) {
	sc := bufio.NewScanner(rd)
	want := addr.String()
	for sc.Scan() {
		f := strings.Fields(sc.Text())
		if len(f) < 4 || f[0] != want {
			continue
		}
		// 0x0 marks an incomplete entry.
		if f[2] == "0x0" {
			continue
		}
		hw, err := net.ParseMAC(f[3])
		if err != nil || isZero(hw) {
			continue
		}
		return hw, nil
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return nil, ErrNoMAC
}

func firstMAC(out string) (net.HardwareAddr, error) {
	for _, m := range macPattern.FindAllString(out, -1) {
		hw, err := net.ParseMAC(m)
		if err == nil && !isZero(hw) {
			return hw, nil
		}
	}
	return nil, ErrNoMAC
}

func isZero(hw net.HardwareAddr) bool {
	for _, b := range hw {
		if b != 0 {
			return false
		}
	}
	return true
}

// ActiveResolver sends an ARP request on Interface. Needs CAP_NET_RAW.
type ActiveResolver struct {
	Interface string
	Timeout   time.Duration
}

func (r *ActiveResolver) Resolve(ctx context.Context, addr netip.Addr) (net.HardwareAddr, error) {
	ifi, err := net.InterfaceByName(r.Interface)
	if err != nil {
		return nil, fmt.Errorf("interface %q: %w", r.Interface, err)
	}

	client, err := arp.Dial(ifi)
	if err != nil {
		return nil, fmt.Errorf("arp dial: %w", err)
	}
	defer client.Close()

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := client.SetDeadline(deadline); err != nil {
		return nil, err
	}

	hw, err := client.Resolve(addr)
	if err != nil {
		return nil, fmt.Errorf("arp resolve %s: %w", addr, err)
	}
	return hw, nil
}

// ChainResolver returns the first successful lookup.
type ChainResolver []Resolver

func (c ChainResolver) Resolve(ctx context.Context, addr netip.Addr) (net.HardwareAddr, error) {
	var errs []error
	for _, r := range c {
		hw, err := r.Resolve(ctx, addr)
		if err == nil && len(hw) > 0 {
			return hw, nil
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil, ErrNoMAC
	}
	return nil, errors.Join(errs...)
}
