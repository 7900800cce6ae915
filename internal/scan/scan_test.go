package scan

import (
	"encoding/json"
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/L1nMay/homeports/internal/config"
	"github.com/L1nMay/homeports/internal/discovery"
	"github.com/L1nMay/homeports/internal/model"
	"github.com/L1nMay/homeports/internal/portscan"
)

var homeNet = model.NetworkProfile{
	LocalIP: "192.168.1.50",
	Gateway: "192.168.1.1",
	Subnet:  "192.168.1.0/24",
}

type harness struct {
	runner  *Runner
	sweeper *fakeSweeper
	ports   *fakePorts
	store   *memStore
	runs    *memRecorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		sweeper: &fakeSweeper{},
		ports:   &fakePorts{open: map[string][]int{}},
		store:   &memStore{},
		runs:    &memRecorder{},
	}
	h.runner = NewRunner(config.Default(), homeNet, h.sweeper, h.ports, h.store)
	h.runner.AddRecorder(h.runs)
	t.Cleanup(h.runner.Close)
	return h
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

func TestHomeSubnetScenario(t *testing.T) {
	local := netip.MustParseAddr("192.168.1.50")
	prober := &discovery.Prober{
		Pinger: alivePinger{
			netip.MustParseAddr("192.168.1.1"):  true,
			netip.MustParseAddr("192.168.1.20"): true,
			local:                               true,
		},
		Local: local,
	}
	ports := &portscan.Scanner{Dialer: openDialer{
		"192.168.1.1:443": true,
		"192.168.1.1:80":  true,
	}}
	store := &memStore{}
	r := NewRunner(config.Default(), homeNet, discovery.NewSweeper(prober), ports, store)
	t.Cleanup(r.Close)

	require.NoError(t, r.StartDeviceDiscovery())
	r.Wait()

	devs := r.Devices(nil)
	require.Len(t, devs, 2)
	assert.Equal(t, "192.168.1.1", devs[0].IP)
	assert.Equal(t, "192.168.1.20", devs[1].IP)
	for _, d := range devs {
		assert.Equal(t, model.ZeroMAC, d.MAC)
		assert.Empty(t, d.Name)
		assert.Empty(t, d.Ports)
	}

	require.NoError(t, r.StartPortScan("192.168.1.1", "common"))
	r.Wait()

	devs = r.Devices(nil)
	require.Len(t, devs[0].Ports, 2)
	assert.Equal(t, 80, devs[0].Ports[0].Port)
	assert.Equal(t, "HTTP", devs[0].Ports[0].Service)
	assert.Equal(t, model.RiskMedium, devs[0].Ports[0].Risk)
	assert.Equal(t, 443, devs[0].Ports[1].Port)
	assert.Equal(t, "HTTPS", devs[0].Ports[1].Service)
	assert.Equal(t, model.RiskLow, devs[0].Ports[1].Risk)

	st := r.State()
	assert.False(t, st.Scanning)
	assert.Equal(t, 100, st.Progress)
	assert.Len(t, store.last(), 2)
}

func TestDeviceDiscoveryKeepsKnownPorts(t *testing.T) {
	h := newHarness(t)
	h.runner.LoadDevices([]model.DeviceRecord{{
		IP:    "192.168.1.1",
		MAC:   "aa:aa:aa:aa:aa:aa",
		Ports: []model.PortRecord{{Port: 22, Service: "SSH", Risk: model.RiskMedium}},
	}})
	h.sweeper.hosts = []discovery.Host{
		{Addr: netip.MustParseAddr("192.168.1.1"), MAC: "bb:bb:bb:bb:bb:bb"},
		host("192.168.1.20"),
	}

	require.NoError(t, h.runner.StartDeviceDiscovery())
	h.runner.Wait()

	devs := h.runner.Devices(nil)
	require.Len(t, devs, 2)
	assert.Equal(t, "bb:bb:bb:bb:bb:bb", devs[0].MAC)
	require.Len(t, devs[0].Ports, 1)
	assert.Equal(t, 22, devs[0].Ports[0].Port)
	assert.NotNil(t, devs[1].Ports)

	st := h.runner.State()
	assert.False(t, st.Scanning)
	assert.Equal(t, 100, st.Progress)

	run := h.runs.last()
	require.NotNil(t, run)
	assert.Equal(t, model.KindDevices, run.Kind)
	assert.Equal(t, model.StatusFinished, run.Status)
	assert.Equal(t, 2, run.Devices)
	assert.NotEmpty(t, run.ID)
	assert.Len(t, h.store.last(), 2)

	opts := h.sweeper.lastOpts
	assert.Equal(t, "192.168.1.0/24", opts.Subnet.String())
	assert.Equal(t, 254, opts.Workers)
}

func TestFullDiscoveryReplacesDeviceSet(t *testing.T) {
	h := newHarness(t)
	h.runner.LoadDevices([]model.DeviceRecord{{IP: "192.168.1.99", MAC: model.ZeroMAC}})
	h.sweeper.hosts = []discovery.Host{host("192.168.1.20"), host("192.168.1.1")}
	h.ports.open["192.168.1.1"] = []int{443, 80}
	h.ports.open["192.168.1.20"] = []int{23}

	require.NoError(t, h.runner.StartFullDiscovery("common"))
	h.runner.Wait()

	devs := h.runner.Devices(nil)
	require.Len(t, devs, 2)
	assert.Equal(t, "192.168.1.1", devs[0].IP)
	assert.Equal(t, []int{80, 443}, portNumbers(devs[0].Ports))
	assert.Equal(t, []int{23}, portNumbers(devs[1].Ports))

	live := h.runner.Live()
	assert.Len(t, live.CompletedDevices, 2)
	assert.Empty(t, live.CurrentTarget)

	st := h.runner.State()
	assert.Equal(t, 100, st.Progress)
	assert.False(t, st.Scanning)
	assert.Empty(t, st.CurrentTarget)

	run := h.runs.last()
	require.NotNil(t, run)
	assert.Equal(t, model.KindFull, run.Kind)
	assert.Equal(t, "common", run.PortMode)
	assert.Equal(t, 3, run.OpenPorts)
	assert.Len(t, h.store.last(), 2)

	for _, req := range h.ports.requests() {
		assert.Nil(t, req.OnProgress, "per-device progress is not reported in a full scan")
	}
}

func TestStartPortScanNotFound(t *testing.T) {
	h := newHarness(t)

	err := h.runner.StartPortScan("10.0.0.99", "common")
	assert.ErrorIs(t, err, ErrNotFound)
	err = h.runner.StartPortScan("garbage", "common")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.False(t, h.runner.State().Scanning)
	assert.Empty(t, h.ports.requests())
}

func TestUnknownPortMode(t *testing.T) {
	h := newHarness(t)
	h.runner.LoadDevices([]model.DeviceRecord{{IP: "192.168.1.1"}})

	assert.ErrorIs(t, h.runner.StartPortScan("192.168.1.1", "everything"), ErrUnknownPortMode)
	assert.ErrorIs(t, h.runner.StartFullDiscovery("everything"), ErrUnknownPortMode)
	assert.False(t, h.runner.State().Scanning)
}

func TestBusyLeavesStateUntouched(t *testing.T) {
	h := newHarness(t)
	h.sweeper.block = make(chan struct{})
	h.sweeper.hosts = []discovery.Host{host("192.168.1.1")}
	h.runner.LoadDevices([]model.DeviceRecord{{IP: "192.168.1.7"}})

	require.NoError(t, h.runner.StartFullDiscovery("common"))
	before := h.runner.State()
	require.True(t, before.Scanning)

	assert.ErrorIs(t, h.runner.StartFullDiscovery("common"), ErrBusy)
	assert.ErrorIs(t, h.runner.StartDeviceDiscovery(), ErrBusy)
	assert.ErrorIs(t, h.runner.StartPortScan("192.168.1.7", "full"), ErrBusy)
	assert.ErrorIs(t, h.runner.StartPortScan("10.9.9.9", "bogus"), ErrBusy)
	assert.ErrorIs(t, h.runner.ClearDevices(), ErrBusy)

	after := h.runner.State()
	assert.Equal(t, before.Progress, after.Progress)
	assert.Equal(t, before.CurrentTarget, after.CurrentTarget)
	assert.Equal(t, int32(1), h.sweeper.calls.Load())

	close(h.sweeper.block)
	h.runner.Wait()
	assert.Equal(t, 100, h.runner.State().Progress)
}

func TestSpeedProfileAppliesToNextScan(t *testing.T) {
	h := newHarness(t)
	h.runner.LoadDevices([]model.DeviceRecord{{IP: "192.168.1.1"}})
	h.ports.block = make(chan struct{})

	assert.ErrorIs(t, h.runner.SetSpeedProfile("warp"), ErrUnknownProfile)

	require.NoError(t, h.runner.StartPortScan("192.168.1.1", "common"))
	eventually(t, func() bool { return len(h.ports.requests()) == 1 })

	require.NoError(t, h.runner.SetSpeedProfile("standard"))
	assert.Equal(t, "standard", h.runner.State().SpeedProfile)

	close(h.ports.block)
	h.runner.Wait()

	require.NoError(t, h.runner.StartPortScan("192.168.1.1", "common"))
	h.runner.Wait()

	reqs := h.ports.requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, 500, reqs[0].Concurrency)
	assert.Equal(t, 100*time.Millisecond, reqs[0].Timeout)
	assert.Equal(t, 50, reqs[1].Concurrency)
	assert.Equal(t, 500*time.Millisecond, reqs[1].Timeout)

	runs := h.runs.runs
	assert.Equal(t, "fast", runs[0].SpeedProfile)
	assert.Equal(t, "standard", runs[1].SpeedProfile)
}

func TestPauseHaltsAndResumes(t *testing.T) {
	h := newHarness(t)
	h.sweeper.nSteps = 10
	h.sweeper.steps = make(chan struct{}, 10)

	assert.False(t, h.runner.SetPaused(true), "pause is ignored while idle")

	require.NoError(t, h.runner.StartDeviceDiscovery())
	h.sweeper.steps <- struct{}{}
	eventually(t, func() bool { return h.runner.State().Progress == 10 })

	assert.True(t, h.runner.SetPaused(true))
	assert.True(t, h.runner.State().Paused)

	h.sweeper.steps <- struct{}{}
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 10, h.runner.State().Progress)

	assert.False(t, h.runner.SetPaused(false))
	eventually(t, func() bool { return h.runner.State().Progress == 20 })

	for i := 0; i < 8; i++ {
		h.sweeper.steps <- struct{}{}
	}
	h.runner.Wait()

	st := h.runner.State()
	assert.Equal(t, 100, st.Progress)
	assert.False(t, st.Paused)
	assert.False(t, st.Scanning)
}

func TestPanicResetsScanning(t *testing.T) {
	h := newHarness(t)
	h.sweeper.panicMsg = "boom"

	require.NoError(t, h.runner.StartDeviceDiscovery())
	h.runner.Wait()

	assert.False(t, h.runner.State().Scanning)
	run := h.runs.last()
	require.NotNil(t, run)
	assert.Equal(t, model.StatusFailed, run.Status)
	assert.Contains(t, run.Error, "boom")

	h.sweeper.panicMsg = ""
	require.NoError(t, h.runner.StartDeviceDiscovery())
	h.runner.Wait()
	assert.Equal(t, model.StatusFinished, h.runs.last().Status)
}

func TestPortScanIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.runner.LoadDevices([]model.DeviceRecord{{IP: "192.168.1.5"}})
	h.ports.open["192.168.1.5"] = []int{8080, 22, 443, 80}

	var first []model.PortRecord
	for i := 0; i < 2; i++ {
		require.NoError(t, h.runner.StartPortScan("192.168.1.5", "full"))
		h.runner.Wait()
		ports := h.runner.Devices(nil)[0].Ports
		assert.Equal(t, []int{22, 80, 443, 8080}, portNumbers(ports))
		if i == 0 {
			first = ports
		} else {
			assert.Equal(t, first, ports)
		}
	}
	assert.Len(t, h.ports.requests()[0].Ports, portscan.MaxPort)
	assert.Equal(t, 100, h.runner.State().Progress)
}

func TestPersistenceFailureDoesNotFailScan(t *testing.T) {
	h := newHarness(t)
	h.store.err = errors.New("disk full")
	h.sweeper.hosts = []discovery.Host{host("192.168.1.3")}

	require.NoError(t, h.runner.StartDeviceDiscovery())
	h.runner.Wait()

	assert.Len(t, h.runner.Devices(nil), 1)
	assert.Equal(t, model.StatusFinished, h.runs.last().Status)
}

func TestCloseCancelsRunningScan(t *testing.T) {
	h := newHarness(t)
	h.sweeper.block = make(chan struct{})

	require.NoError(t, h.runner.StartDeviceDiscovery())
	h.runner.Close()

	assert.False(t, h.runner.State().Scanning)
	assert.Equal(t, model.StatusCancelled, h.runs.last().Status)
	assert.False(t, h.runner.CancelRunning())
}

func TestDevicesOrderAndNames(t *testing.T) {
	h := newHarness(t)
	h.runner.LoadDevices([]model.DeviceRecord{
		{IP: "192.168.1.10"},
		{IP: "192.168.1.2"},
		{IP: "192.168.1.100", Ports: []model.PortRecord{{Port: 443}, {Port: 80}}},
	})

	devs := h.runner.Devices(map[string]string{"192.168.1.2": "printer"})
	require.Len(t, devs, 3)
	assert.Equal(t, []string{"192.168.1.2", "192.168.1.10", "192.168.1.100"},
		[]string{devs[0].IP, devs[1].IP, devs[2].IP})
	assert.Equal(t, "printer", devs[0].CustomName)
	assert.Empty(t, devs[1].CustomName)
	assert.Equal(t, []int{80, 443}, portNumbers(devs[2].Ports))

	devs[2].Ports[0].Port = 1
	assert.Equal(t, 80, h.runner.Devices(nil)[2].Ports[0].Port)
}

func TestLiveIsACopy(t *testing.T) {
	h := newHarness(t)
	h.runner.LoadDevices([]model.DeviceRecord{{IP: "192.168.1.1"}})
	h.ports.open["192.168.1.1"] = []int{22}

	require.NoError(t, h.runner.StartPortScan("192.168.1.1", "common"))
	h.runner.Wait()

	live := h.runner.Live()
	require.Len(t, live.FoundPorts, 1)
	live.FoundPorts[0].Port = 9999
	assert.Equal(t, 22, h.runner.Live().FoundPorts[0].Port)
}

func TestClearDevices(t *testing.T) {
	h := newHarness(t)
	h.runner.LoadDevices([]model.DeviceRecord{{IP: "192.168.1.1"}})

	require.NoError(t, h.runner.ClearDevices())
	assert.Empty(t, h.runner.Devices(nil))
	assert.Empty(t, h.store.last())
}

func TestHubPublishesDone(t *testing.T) {
	h := newHarness(t)
	ch := h.runner.Subscribe()
	defer h.runner.Unsubscribe(ch)

	require.NoError(t, h.runner.StartDeviceDiscovery())
	h.runner.Wait()

	var kinds []string
	for {
		select {
		case b := <-ch:
			var ev Event
			require.NoError(t, json.Unmarshal(b, &ev))
			kinds = append(kinds, ev.Type)
			if ev.Type == EventDone {
				require.NotNil(t, ev.Run)
				assert.Equal(t, model.KindDevices, ev.Run.Kind)
				assert.Contains(t, kinds, EventState)
				return
			}
		case <-time.After(time.Second):
			t.Fatalf("no done event, got %v", kinds)
		}
	}
}

func TestNetwork(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, homeNet, h.runner.Network())
}

func portNumbers(ports []model.PortRecord) []int {
	out := make([]int, 0, len(ports))
	for _, p := range ports {
		out = append(out, p.Port)
	}
	return out
}
