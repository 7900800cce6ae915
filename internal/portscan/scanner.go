package portscan

import (
	"context"
	"net/netip"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/L1nMay/homeports/internal/gate"
	"github.com/L1nMay/homeports/internal/logger"
	"github.com/L1nMay/homeports/internal/model"
	"github.com/L1nMay/homeports/internal/service"
)

// DefaultProgressEvery is the number of finished probes between progress
// callbacks.
const DefaultProgressEvery = 50

type Request struct {
	Address     netip.Addr
	Ports       []int
	Concurrency int
	Timeout     time.Duration
	Gate        gate.Waiter

	// OnProgress gets (scanned, total) every ProgressEvery probes and once
	// more with (total, total) when the scan ends.
	OnProgress func(scanned, total int)
	// OnFound gets each open port in discovery order.
	OnFound func(model.PortRecord)
}

// Scanner runs port scans. Callbacks of one scan never run concurrently.
type Scanner struct {
	Dialer        Dialer
	ProgressEvery int
}

func NewScanner(progressEvery int) *Scanner {
	return &Scanner{Dialer: NetDialer{}, ProgressEvery: progressEvery}
}

// Scan probes every port in req.Ports and returns the open ones sorted by
// port. Probes already dialing finish even when ctx is cancelled; ports not
// yet started are skipped.
func (s *Scanner) Scan(ctx context.Context, req Request) []model.PortRecord {
	total := len(req.Ports)
	every := s.ProgressEvery
	if every <= 0 {
		every = DefaultProgressEvery
	}
	workers := req.Concurrency
	if workers <= 0 {
		workers = 1
	}
	dialer := s.Dialer
	if dialer == nil {
		dialer = NetDialer{}
	}

	logger.Debugf("Scanning %d ports on %s (%d workers, timeout %s)", total, req.Address, workers, req.Timeout)

	var (
		mu      sync.Mutex
		open    []model.PortRecord
		scanned int
		wg      sync.WaitGroup
	)
	sem := semaphore.NewWeighted(int64(workers))

	for _, port := range req.Ports {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		port := port
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			if gate.Wait(ctx, req.Gate) != nil {
				return
			}
			state := ProbeOne(ctx, dialer, req.Address, port, req.Timeout)

			mu.Lock()
			defer mu.Unlock()
			if state == Open {
				rec := service.Lookup(port)
				open = append(open, rec)
				if req.OnFound != nil {
					req.OnFound(rec)
				}
			}
			scanned++
			if req.OnProgress != nil && scanned%every == 0 && scanned < total {
				req.OnProgress(scanned, total)
			}
		}()
	}
	wg.Wait()

	if req.OnProgress != nil {
		req.OnProgress(total, total)
	}

	sort.Slice(open, func(i, j int) bool { return open[i].Port < open[j].Port })
	logger.Debugf("Port scan of %s finished: %d open", req.Address, len(open))
	return open
}
