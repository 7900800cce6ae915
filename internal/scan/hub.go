package scan

import (
	"encoding/json"
	"sync"

	"github.com/L1nMay/homeports/internal/model"
)

// Event types published on the hub.
const (
	EventState  = "state"
	EventPort   = "port"
	EventDevice = "device"
	EventDone   = "done"
)

type Event struct {
	Type   string              `json:"type"`
	State  *model.ScanState    `json:"state,omitempty"`
	Target string              `json:"target,omitempty"`
	Port   *model.PortRecord   `json:"port,omitempty"`
	Device *model.DeviceRecord `json:"device,omitempty"`
	Run    *model.ScanRun      `json:"run,omitempty"`
}

// Hub fans JSON-encoded events out to subscribers. Slow subscribers miss
// events instead of blocking the scan.
type Hub struct {
	mu   sync.Mutex
	subs map[chan []byte]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan []byte]struct{})}
}

func (h *Hub) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; !ok {
		return
	}
	delete(h.subs, ch)
	close(ch)
}

func (h *Hub) Publish(e Event) {
	b, err := json.Marshal(e)
	if err != nil {
		return
	}
	h.mu.Lock()
	for ch := range h.subs {
		select {
		case ch <- b:
		default:
		}
	}
	h.mu.Unlock()
}
