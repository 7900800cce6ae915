// Package scan drives device discovery and port scans. A Runner allows one
// scan at a time and owns all shared scan state.
package scan

import (
	"context"
	"fmt"
	"net/netip"
	"sort"
	"sync"
	"time"

	"github.com/L1nMay/homeports/internal/config"
	"github.com/L1nMay/homeports/internal/discovery"
	"github.com/L1nMay/homeports/internal/envdetect"
	"github.com/L1nMay/homeports/internal/gate"
	"github.com/L1nMay/homeports/internal/logger"
	"github.com/L1nMay/homeports/internal/metrics"
	"github.com/L1nMay/homeports/internal/model"
	"github.com/L1nMay/homeports/internal/portscan"
)

type HostSweeper interface {
	Sweep(ctx context.Context, opts discovery.SweepOptions) ([]discovery.Host, error)
}

type PortScanner interface {
	Scan(ctx context.Context, req portscan.Request) []model.PortRecord
}

// DeviceStore receives the complete device set after every scan.
type DeviceStore interface {
	SaveDevices(devices []model.DeviceRecord) error
}

type RunRecorder interface {
	AddScanRun(ctx context.Context, run *model.ScanRun) error
}

type Runner struct {
	cfg     *config.Config
	sweeper HostSweeper
	ports   PortScanner
	store   DeviceStore

	recorders []RunRecorder
	metrics   *metrics.Metrics
	hub       *Hub
	gate      *gate.Gate
	now       func() time.Time

	mu      sync.Mutex
	state   model.ScanState
	live    model.LiveStream
	devices map[string]model.DeviceRecord
	profile config.SpeedProfile
	network model.NetworkProfile

	muCancel cancelState
	wg       sync.WaitGroup
}

// NewRunner builds a runner. store may be nil.
func NewRunner(cfg *config.Config, network model.NetworkProfile, sweeper HostSweeper, ports PortScanner, store DeviceStore) *Runner {
	profile, ok := cfg.Profile(cfg.SpeedProfile)
	if !ok {
		profile = config.DefaultProfiles()[config.ProfileFast]
	}

	r := &Runner{
		cfg:     cfg,
		sweeper: sweeper,
		ports:   ports,
		store:   store,
		hub:     NewHub(),
		gate:    gate.New(),
		now:     time.Now,
		devices: make(map[string]model.DeviceRecord),
		profile: profile,
		network: network,
	}
	r.state.SpeedProfile = profile.Name
	r.live = emptyLive()
	return r
}

func emptyLive() model.LiveStream {
	return model.LiveStream{
		FoundPorts:       []model.PortRecord{},
		CompletedDevices: []model.DeviceRecord{},
	}
}

func (r *Runner) SetMetrics(m *metrics.Metrics) {
	r.metrics = m
}

// AddRecorder registers a run-history sink. Call before the first scan.
func (r *Runner) AddRecorder(rec RunRecorder) {
	if rec != nil {
		r.recorders = append(r.recorders, rec)
	}
}

// LoadDevices seeds the device set, usually from storage at startup.
func (r *Runner) LoadDevices(devices []model.DeviceRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range devices {
		if d.IP == "" {
			continue
		}
		d = d.Clone()
		d.CustomName = ""
		sortPorts(d.Ports)
		r.devices[d.IP] = d
	}
}

// State returns a snapshot of the scan state.
func (r *Runner) State() model.ScanState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Live returns a deep copy of the live stream.
func (r *Runner) Live() model.LiveStream {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := model.LiveStream{
		CurrentTarget:    r.live.CurrentTarget,
		FoundPorts:       append([]model.PortRecord{}, r.live.FoundPorts...),
		CompletedDevices: make([]model.DeviceRecord, 0, len(r.live.CompletedDevices)),
	}
	for _, d := range r.live.CompletedDevices {
		out.CompletedDevices = append(out.CompletedDevices, d.Clone())
	}
	return out
}

// Devices returns the device set ordered by address, with display-name
// overrides from names applied as CustomName.
func (r *Runner) Devices(names map[string]string) []model.DeviceRecord {
	r.mu.Lock()
	out := r.snapshotLocked()
	r.mu.Unlock()

	for i := range out {
		out[i].CustomName = names[out[i].IP]
	}
	return out
}

func (r *Runner) snapshotLocked() []model.DeviceRecord {
	out := make([]model.DeviceRecord, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d.Clone())
	}
	sortDevices(out)
	return out
}

func (r *Runner) Network() model.NetworkProfile {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.network
}

// RefreshGateway re-reads the default gateway. The rest of the network
// profile is fixed for the life of the process.
func (r *Runner) RefreshGateway(ctx context.Context) model.NetworkProfile {
	gw, err := envdetect.DetectGateway(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		logger.Debugf("gateway refresh failed: %v", err)
		return r.network
	}
	if gw != r.network.Gateway {
		logger.Infof("Gateway changed: %s -> %s", r.network.Gateway, gw)
		r.network.Gateway = gw
	}
	return r.network
}

// SetPaused pauses or resumes the running scan and returns the paused flag.
// Without a running scan it is a no-op that returns false.
func (r *Runner) SetPaused(paused bool) bool {
	r.mu.Lock()
	if !r.state.Scanning {
		r.mu.Unlock()
		return false
	}
	r.state.Paused = r.gate.Set(paused)
	st := r.state
	r.mu.Unlock()

	logger.Infof("Scan paused=%t", st.Paused)
	r.hub.Publish(Event{Type: EventState, State: &st})
	return st.Paused
}

// SetSpeedProfile selects the profile the next scan will use.
func (r *Runner) SetSpeedProfile(name string) error {
	p, ok := r.cfg.Profile(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}

	r.mu.Lock()
	r.profile = p
	r.state.SpeedProfile = p.Name
	st := r.state
	r.mu.Unlock()

	logger.Infof("Speed profile set to %s (hosts=%d ports=%d timeout=%s)",
		p.Name, p.HostConcurrency, p.PortConcurrency, p.ProbeTimeout())
	r.hub.Publish(Event{Type: EventState, State: &st})
	return nil
}

// ClearDevices forgets every device. Refused while a scan runs.
func (r *Runner) ClearDevices() error {
	r.mu.Lock()
	if r.state.Scanning {
		r.mu.Unlock()
		return ErrBusy
	}
	r.devices = make(map[string]model.DeviceRecord)
	r.live = emptyLive()
	r.mu.Unlock()

	r.persistDevices(nil)
	return nil
}

// StartDeviceDiscovery sweeps the subnet and adds new hosts to the device
// set. Known devices keep their ports.
func (r *Runner) StartDeviceDiscovery() error {
	j, ctx, err := r.begin(model.KindDevices, "", "", nil)
	if err != nil {
		return err
	}
	r.launch(ctx, j, r.runDevices)
	return nil
}

// StartPortScan scans one known device and replaces its ports.
func (r *Runner) StartPortScan(ip, mode string) error {
	addr, aerr := netip.ParseAddr(ip)
	j, ctx, err := r.begin(model.KindPorts, ip, mode, func() error {
		if aerr != nil {
			return fmt.Errorf("%w: %s", ErrNotFound, ip)
		}
		if _, ok := r.devices[addr.String()]; !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, ip)
		}
		return nil
	})
	if err != nil {
		return err
	}
	j.target = addr
	r.launch(ctx, j, r.runPorts)
	return nil
}

// StartFullDiscovery sweeps the subnet, then port-scans every host found.
func (r *Runner) StartFullDiscovery(mode string) error {
	j, ctx, err := r.begin(model.KindFull, "", mode, nil)
	if err != nil {
		return err
	}
	r.launch(ctx, j, r.runFull)
	return nil
}

type job struct {
	kind    string
	mode    portscan.Mode
	profile config.SpeedProfile
	subnet  netip.Prefix
	target  netip.Addr
	started time.Time

	devices   int
	openPorts int
}

// begin claims the runner for a new scan. Busy is checked before anything
// else so a rejected start never touches the state.
func (r *Runner) begin(kind, target, mode string, check func() error) (*job, context.Context, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.Scanning {
		return nil, nil, ErrBusy
	}

	j := &job{kind: kind, profile: r.profile, started: r.now()}
	if kind != model.KindDevices {
		m, err := portscan.ParseMode(mode)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %q", ErrUnknownPortMode, mode)
		}
		j.mode = m
	}
	if check != nil {
		if err := check(); err != nil {
			return nil, nil, err
		}
	}
	if kind != model.KindPorts {
		subnet, err := netip.ParsePrefix(r.network.Subnet)
		if err != nil {
			return nil, nil, fmt.Errorf("subnet %q: %w", r.network.Subnet, err)
		}
		j.subnet = subnet
	}

	r.gate.Set(false)
	r.state = model.ScanState{
		Scanning:      true,
		SpeedProfile:  j.profile.Name,
		CurrentTarget: target,
		Kind:          kind,
	}
	r.live = emptyLive()
	r.live.CurrentTarget = target

	ctx, cancel := context.WithCancel(context.Background())
	r.setCancel(cancel)
	r.wg.Add(1)

	logger.Infof("Scan started: kind=%s profile=%s mode=%s target=%s", kind, j.profile.Name, j.mode, target)
	r.metrics.ScanStarted()
	return j, ctx, nil
}

func sortPorts(ports []model.PortRecord) {
	sort.Slice(ports, func(i, j int) bool { return ports[i].Port < ports[j].Port })
}

func sortDevices(devs []model.DeviceRecord) {
	sort.Slice(devs, func(i, j int) bool {
		a, errA := netip.ParseAddr(devs[i].IP)
		b, errB := netip.ParseAddr(devs[j].IP)
		if errA != nil || errB != nil {
			return devs[i].IP < devs[j].IP
		}
		return a.Less(b)
	})
}
