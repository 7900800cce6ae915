// Package notifier alerts when a scan finds ports that were not open before.
package notifier

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/L1nMay/homeports/internal/logger"
	"github.com/L1nMay/homeports/internal/model"
)

const notifyTimeout = 10 * time.Second

// Finding is one newly opened port.
type Finding struct {
	IP   string
	Name string
	Port model.PortRecord
}

type Notifier interface {
	NotifyNewOpenPorts(ctx context.Context, findings []Finding) error
}

var riskRank = map[model.RiskLevel]int{
	model.RiskLow:    0,
	model.RiskMedium: 1,
	model.RiskHigh:   2,
}

// AtLeast reports whether risk is at or above min.
func AtLeast(risk, min model.RiskLevel) bool {
	return riskRank[risk] >= riskRank[min]
}

// Diff returns the ports open in after that were not open on the same
// device in before, ordered by address and port.
func Diff(before, after []model.DeviceRecord) []Finding {
	known := make(map[string]map[int]bool, len(before))
	for _, d := range before {
		ports := make(map[int]bool, len(d.Ports))
		for _, p := range d.Ports {
			ports[p.Port] = true
		}
		known[d.IP] = ports
	}

	var out []Finding
	for _, d := range after {
		for _, p := range d.Ports {
			if known[d.IP][p.Port] {
				continue
			}
			out = append(out, Finding{IP: d.IP, Name: d.Name, Port: p})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IP != out[j].IP {
			return out[i].IP < out[j].IP
		}
		return out[i].Port.Port < out[j].Port.Port
	})
	return out
}

// Watcher remembers the last saved device set and notifies about ports
// that appear in the next one. It is used as a device saver next to the
// real stores.
type Watcher struct {
	notifier Notifier
	minRisk  model.RiskLevel

	mu   sync.Mutex
	last []model.DeviceRecord
}

func NewWatcher(n Notifier, minRisk model.RiskLevel) *Watcher {
	return &Watcher{notifier: n, minRisk: minRisk}
}

// Prime sets the baseline without notifying.
func (w *Watcher) Prime(devices []model.DeviceRecord) {
	w.mu.Lock()
	w.last = devices
	w.mu.Unlock()
}

// SaveDevices diffs against the previous set and sends one notification
// for the new ports at or above the minimum risk. Delivery failures are
// logged, not returned.
func (w *Watcher) SaveDevices(devices []model.DeviceRecord) error {
	w.mu.Lock()
	found := Diff(w.last, devices)
	w.last = devices
	w.mu.Unlock()

	alerts := found[:0]
	for _, f := range found {
		if AtLeast(f.Port.Risk, w.minRisk) {
			alerts = append(alerts, f)
		}
	}
	if len(alerts) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := w.notifier.NotifyNewOpenPorts(ctx, alerts); err != nil {
		logger.Errorf("notify %d new open ports: %v", len(alerts), err)
		return nil
	}
	logger.Infof("Notified about %d new open ports", len(alerts))
	return nil
}
