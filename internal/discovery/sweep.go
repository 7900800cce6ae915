package discovery

import (
	"context"
	"fmt"
	"net/netip"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/L1nMay/homeports/internal/gate"
	"github.com/L1nMay/homeports/internal/logger"
)

// HostsPerSweep is the number of suffixes (.1 to .254) probed per sweep.
const HostsPerSweep = 254

type HostProber interface {
	Probe(ctx context.Context, addr netip.Addr) (Host, bool)
}

type SweepOptions struct {
	Subnet  netip.Prefix
	Workers int
	Gate    gate.Waiter
	// OnProbe is called after every finished probe, never concurrently.
	OnProbe func(done, total int)
}

type Sweeper struct {
	Prober HostProber
}

func NewSweeper(p HostProber) *Sweeper {
	return &Sweeper{Prober: p}
}

// Candidates lists .1 through .254 of the /24 that contains subnet's address.
func Candidates(subnet netip.Prefix) ([]netip.Addr, error) {
	if !subnet.Addr().Is4() {
		return nil, fmt.Errorf("subnet %s is not IPv4", subnet)
	}
	base := subnet.Addr().As4()
	out := make([]netip.Addr, 0, HostsPerSweep)
	for i := 1; i <= HostsPerSweep; i++ {
		base[3] = byte(i)
		out = append(out, netip.AddrFrom4(base))
	}
	return out, nil
}

// Sweep probes every candidate with at most Workers probes in flight and
// returns the responders in completion order. Workers wait on the gate
// before probing. On cancellation the hosts found so far are returned with
// the context error.
func (s *Sweeper) Sweep(ctx context.Context, opts SweepOptions) ([]Host, error) {
	addrs, err := Candidates(opts.Subnet)
	if err != nil {
		return nil, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}

	logger.Infof("Sweeping %s (%d workers)", opts.Subnet.Masked(), workers)

	var (
		mu    sync.Mutex
		found []Host
		done  int
	)

	g := new(errgroup.Group)
	g.SetLimit(workers)

	for _, addr := range addrs {
		if ctx.Err() != nil {
			break
		}
		addr := addr
		g.Go(func() error {
			if err := gate.Wait(ctx, opts.Gate); err != nil {
				return err
			}

			host, ok := s.Prober.Probe(ctx, addr)

			mu.Lock()
			defer mu.Unlock()
			if ok {
				found = append(found, host)
				logger.Debugf("Host up: %s (%s)", host.Addr, host.MAC)
			}
			done++
			if opts.OnProbe != nil {
				opts.OnProbe(done, len(addrs))
			}
			return nil
		})
	}

	err = g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	mu.Lock()
	defer mu.Unlock()
	logger.Infof("Sweep finished: %d hosts up", len(found))
	return found, err
}
