package scan

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/L1nMay/homeports/internal/discovery"
	"github.com/L1nMay/homeports/internal/gate"
	"github.com/L1nMay/homeports/internal/model"
	"github.com/L1nMay/homeports/internal/portscan"
	"github.com/L1nMay/homeports/internal/service"
)

type fakeSweeper struct {
	hosts    []discovery.Host
	block    chan struct{}
	steps    chan struct{}
	nSteps   int
	panicMsg string
	calls    atomic.Int32

	mu       sync.Mutex
	lastOpts discovery.SweepOptions
}

func (f *fakeSweeper) Sweep(ctx context.Context, opts discovery.SweepOptions) ([]discovery.Host, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.lastOpts = opts
	f.mu.Unlock()

	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	for i := 1; i <= f.nSteps; i++ {
		select {
		case <-f.steps:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if err := gate.Wait(ctx, opts.Gate); err != nil {
			return nil, err
		}
		if opts.OnProbe != nil {
			opts.OnProbe(i, f.nSteps)
		}
	}
	return f.hosts, nil
}

type fakePorts struct {
	open  map[string][]int
	block chan struct{}

	mu   sync.Mutex
	reqs []portscan.Request
}

func (f *fakePorts) Scan(ctx context.Context, req portscan.Request) []model.PortRecord {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
		}
	}

	out := []model.PortRecord{}
	for _, p := range f.open[req.Address.String()] {
		rec := service.Lookup(p)
		out = append(out, rec)
		if req.OnFound != nil {
			req.OnFound(rec)
		}
	}
	if req.OnProgress != nil {
		req.OnProgress(len(req.Ports), len(req.Ports))
	}
	return out
}

func (f *fakePorts) requests() []portscan.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]portscan.Request(nil), f.reqs...)
}

type memStore struct {
	mu    sync.Mutex
	saved [][]model.DeviceRecord
	err   error
}

func (m *memStore) SaveDevices(devices []model.DeviceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, devices)
	return m.err
}

func (m *memStore) last() []model.DeviceRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.saved) == 0 {
		return nil
	}
	return m.saved[len(m.saved)-1]
}

type memRecorder struct {
	mu   sync.Mutex
	runs []*model.ScanRun
}

func (m *memRecorder) AddScanRun(_ context.Context, run *model.ScanRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

func (m *memRecorder) last() *model.ScanRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.runs) == 0 {
		return nil
	}
	return m.runs[len(m.runs)-1]
}

type alivePinger map[netip.Addr]bool

func (p alivePinger) Ping(_ context.Context, addr netip.Addr, _ time.Duration) discovery.Reply {
	if p[addr] {
		return discovery.Alive
	}
	return discovery.NoReply
}

type openDialer map[string]bool

func (d openDialer) DialContext(_ context.Context, _, address string) (net.Conn, error) {
	if !d[address] {
		return nil, errors.New("refused")
	}
	c1, c2 := net.Pipe()
	_ = c2.Close()
	return c1, nil
}

func host(ip string) discovery.Host {
	return discovery.Host{Addr: netip.MustParseAddr(ip), MAC: model.ZeroMAC}
}
