package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/L1nMay/homeports/internal/model"
	"github.com/L1nMay/homeports/internal/service"
)

func device(ip string, ports ...int) model.DeviceRecord {
	d := model.DeviceRecord{IP: ip, MAC: model.ZeroMAC}
	for _, p := range ports {
		d.Ports = append(d.Ports, service.Lookup(p))
	}
	return d
}

type recorder struct {
	mu    sync.Mutex
	calls [][]Finding
	err   error
}

func (r *recorder) NotifyNewOpenPorts(_ context.Context, f []Finding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, append([]Finding(nil), f...))
	return r.err
}

func TestDiff(t *testing.T) {
	before := []model.DeviceRecord{device("192.168.1.1", 80, 443)}
	after := []model.DeviceRecord{
		device("192.168.1.20", 3389),
		device("192.168.1.1", 22, 80, 443),
	}

	found := Diff(before, after)
	require.Len(t, found, 2)
	assert.Equal(t, "192.168.1.1", found[0].IP)
	assert.Equal(t, 22, found[0].Port.Port)
	assert.Equal(t, "192.168.1.20", found[1].IP)
	assert.Equal(t, 3389, found[1].Port.Port)

	assert.Empty(t, Diff(after, after))
}

func TestAtLeast(t *testing.T) {
	assert.True(t, AtLeast(model.RiskHigh, model.RiskMedium))
	assert.True(t, AtLeast(model.RiskMedium, model.RiskMedium))
	assert.False(t, AtLeast(model.RiskLow, model.RiskMedium))
}

func TestWatcherFiltersByRisk(t *testing.T) {
	rec := &recorder{}
	w := NewWatcher(rec, model.RiskHigh)
	w.Prime([]model.DeviceRecord{device("192.168.1.1", 80)})

	// 443 is low risk, 3389 is high.
	require.NoError(t, w.SaveDevices([]model.DeviceRecord{
		device("192.168.1.1", 80, 443),
		device("192.168.1.30", 3389),
	}))
	require.Len(t, rec.calls, 1)
	require.Len(t, rec.calls[0], 1)
	assert.Equal(t, 3389, rec.calls[0][0].Port.Port)

	// Same set again: nothing new.
	require.NoError(t, w.SaveDevices([]model.DeviceRecord{
		device("192.168.1.1", 80, 443),
		device("192.168.1.30", 3389),
	}))
	assert.Len(t, rec.calls, 1)
}

func TestWatcherSwallowsDeliveryErrors(t *testing.T) {
	rec := &recorder{err: errors.New("offline")}
	w := NewWatcher(rec, model.RiskLow)

	assert.NoError(t, w.SaveDevices([]model.DeviceRecord{device("192.168.1.1", 80)}))
	assert.Len(t, rec.calls, 1)
}

func TestTelegramNotifier(t *testing.T) {
	var got telegramMessage
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)

	n := NewTelegramNotifier("T0KEN", "42")
	n.BaseURL = srv.URL

	err := n.NotifyNewOpenPorts(context.Background(), []Finding{
		{IP: "192.168.1.30", Name: "desktop", Port: service.Lookup(3389)},
	})
	require.NoError(t, err)
	assert.Equal(t, "/botT0KEN/sendMessage", path)
	assert.Equal(t, "42", got.ChatID)
	assert.Contains(t, got.Text, "192.168.1.30 (desktop):3389")
}

func TestTelegramNotifierHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "chat not found", http.StatusBadRequest)
	}))
	t.Cleanup(srv.Close)

	n := NewTelegramNotifier("x", "y")
	n.BaseURL = srv.URL

	err := n.NotifyNewOpenPorts(context.Background(), []Finding{{IP: "192.168.1.1", Port: service.Lookup(80)}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "chat not found")
}
