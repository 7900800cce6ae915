package scan

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/L1nMay/homeports/internal/discovery"
	"github.com/L1nMay/homeports/internal/logger"
	"github.com/L1nMay/homeports/internal/model"
	"github.com/L1nMay/homeports/internal/portscan"
)

const recordTimeout = 5 * time.Second

// launch runs body in the background. Whatever happens inside, including a
// panic, the runner returns to idle.
func (r *Runner) launch(ctx context.Context, j *job, body func(context.Context, *job) error) {
	st := r.State()
	r.hub.Publish(Event{Type: EventState, State: &st})

	go func() {
		var err error
		defer r.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				logger.Errorf("scan %s panicked: %v\n%s", j.kind, p, debug.Stack())
				err = fmt.Errorf("panic: %v", p)
			}
			r.finish(j, err)
		}()
		err = body(ctx, j)
	}()
}

func (r *Runner) runDevices(ctx context.Context, j *job) error {
	hosts, err := r.sweeper.Sweep(ctx, discovery.SweepOptions{
		Subnet:  j.subnet,
		Workers: j.profile.HostConcurrency,
		Gate:    r.gate,
		OnProbe: func(done, total int) {
			r.setProgress(done * 100 / total)
		},
	})
	r.mergeHosts(hosts)
	j.devices = len(hosts)
	r.metrics.HostsDiscovered(len(hosts))
	return err
}

func (r *Runner) runPorts(ctx context.Context, j *job) error {
	open := r.scanHost(ctx, j, j.target, true)
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mergePorts(j.target.String(), open)
	j.devices = 1
	j.openPorts = len(open)
	return nil
}

func (r *Runner) runFull(ctx context.Context, j *job) error {
	hosts, err := r.sweeper.Sweep(ctx, discovery.SweepOptions{
		Subnet:  j.subnet,
		Workers: j.profile.HostConcurrency,
		Gate:    r.gate,
	})
	if err != nil {
		return err
	}
	r.replaceHosts(hosts)
	j.devices = len(hosts)
	r.metrics.HostsDiscovered(len(hosts))

	total := len(hosts)
	for idx, h := range hosts {
		if err := ctx.Err(); err != nil {
			return err
		}
		ip := h.Addr.String()
		r.enterDevice(ip, idx*100/total)

		open := r.scanHost(ctx, j, h.Addr, false)
		if err := ctx.Err(); err != nil {
			return err
		}
		dev := r.mergePorts(ip, open)
		j.openPorts += len(open)

		r.mu.Lock()
		r.live.CompletedDevices = append(r.live.CompletedDevices, dev.Clone())
		r.mu.Unlock()
		r.hub.Publish(Event{Type: EventDevice, Device: &dev})
	}
	return nil
}

// scanHost runs one port scan with the job's captured profile. Progress is
// only driven by port counts for single-device scans.
func (r *Runner) scanHost(ctx context.Context, j *job, addr netip.Addr, trackProgress bool) []model.PortRecord {
	req := portscan.Request{
		Address:     addr,
		Ports:       j.mode.Ports(),
		Concurrency: j.profile.PortConcurrency,
		Timeout:     j.profile.ProbeTimeout(),
		Gate:        r.gate,
		OnFound:     r.foundPort,
	}
	if trackProgress {
		req.OnProgress = func(scanned, total int) {
			if total > 0 {
				r.setProgress(scanned * 100 / total)
			}
		}
	}
	return r.ports.Scan(ctx, req)
}

func (r *Runner) foundPort(p model.PortRecord) {
	r.mu.Lock()
	r.live.FoundPorts = append(r.live.FoundPorts, p)
	target := r.live.CurrentTarget
	r.mu.Unlock()

	r.metrics.PortOpen(string(p.Risk))
	r.hub.Publish(Event{Type: EventPort, Target: target, Port: &p})
}

// setProgress only ever moves progress forward.
func (r *Runner) setProgress(p int) {
	if p > 100 {
		p = 100
	}
	r.mu.Lock()
	if p <= r.state.Progress {
		r.mu.Unlock()
		return
	}
	r.state.Progress = p
	st := r.state
	r.mu.Unlock()

	r.metrics.Progress(p)
	r.hub.Publish(Event{Type: EventState, State: &st})
}

func (r *Runner) enterDevice(ip string, progress int) {
	r.mu.Lock()
	r.state.CurrentTarget = ip
	if progress > r.state.Progress {
		r.state.Progress = progress
	}
	r.live.CurrentTarget = ip
	r.live.FoundPorts = []model.PortRecord{}
	st := r.state
	r.mu.Unlock()

	r.metrics.Progress(st.Progress)
	r.hub.Publish(Event{Type: EventState, State: &st})
}

// mergeHosts adds unseen hosts. Known devices get a fresh LastSeen and, when
// resolved, a new MAC; their ports are left alone.
func (r *Runner) mergeHosts(hosts []discovery.Host) {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, h := range hosts {
		ip := h.Addr.String()
		if d, ok := r.devices[ip]; ok {
			d.LastSeen = now
			if h.MAC != "" && h.MAC != model.ZeroMAC {
				d.MAC = h.MAC
			}
			r.devices[ip] = d
			continue
		}
		r.devices[ip] = newDevice(h, now)
	}
}

// replaceHosts makes the device set exactly the hosts found. Devices seen
// before keep their ports until their own scan replaces them.
func (r *Runner) replaceHosts(hosts []discovery.Host) {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[string]model.DeviceRecord, len(hosts))
	for _, h := range hosts {
		ip := h.Addr.String()
		d, ok := r.devices[ip]
		if !ok {
			next[ip] = newDevice(h, now)
			continue
		}
		d.LastSeen = now
		if h.MAC != "" && h.MAC != model.ZeroMAC {
			d.MAC = h.MAC
		}
		next[ip] = d
	}
	r.devices = next
}

// mergePorts replaces a device's ports wholesale.
func (r *Runner) mergePorts(ip string, ports []model.PortRecord) model.DeviceRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	d := r.devices[ip]
	d.IP = ip
	d.Ports = append([]model.PortRecord{}, ports...)
	sortPorts(d.Ports)
	d.LastSeen = r.now()
	r.devices[ip] = d
	return d.Clone()
}

func newDevice(h discovery.Host, now time.Time) model.DeviceRecord {
	mac := h.MAC
	if mac == "" {
		mac = model.ZeroMAC
	}
	return model.DeviceRecord{
		IP:       h.Addr.String(),
		MAC:      mac,
		Name:     h.Name,
		Ports:    []model.PortRecord{},
		LastSeen: now,
	}
}

// finish returns the runner to idle, then persists outside the lock.
func (r *Runner) finish(j *job, err error) {
	status := model.StatusFinished
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		status = model.StatusCancelled
	default:
		status = model.StatusFailed
	}

	r.clearCancel()

	r.mu.Lock()
	if err == nil {
		r.state.Progress = 100
	}
	r.state.Scanning = false
	r.state.Paused = false
	r.state.CurrentTarget = ""
	r.live.CurrentTarget = ""
	r.gate.Set(false)
	st := r.state
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	finished := r.now()
	run := &model.ScanRun{
		ID:           uuid.NewString(),
		Kind:         j.kind,
		PortMode:     string(j.mode),
		SpeedProfile: j.profile.Name,
		StartedAt:    j.started.UTC(),
		FinishedAt:   finished.UTC(),
		Devices:      j.devices,
		OpenPorts:    j.openPorts,
		Status:       status,
	}
	if err != nil {
		run.Error = err.Error()
		logger.Errorf("Scan %s ended: %v", j.kind, err)
	} else {
		logger.Infof("Scan finished: %s", run)
	}

	r.metrics.ScanFinished(j.kind, status, finished.Sub(j.started))
	r.metrics.Progress(st.Progress)

	if status != model.StatusFailed {
		r.persistDevices(snapshot)
	}
	r.recordRun(run)

	r.hub.Publish(Event{Type: EventState, State: &st})
	r.hub.Publish(Event{Type: EventDone, Run: run})
}

// persistDevices hands the device set to the store. Failures are logged and
// never undo the in-memory result.
func (r *Runner) persistDevices(devices []model.DeviceRecord) {
	if r.store == nil {
		return
	}
	if err := r.store.SaveDevices(devices); err != nil {
		logger.Errorf("save devices: %v", err)
	}
}

func (r *Runner) recordRun(run *model.ScanRun) {
	for _, rec := range r.recorders {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		if err := rec.AddScanRun(ctx, run); err != nil {
			logger.Errorf("record scan run %s: %v", run.ID, err)
		}
		cancel()
	}
}
