package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/L1nMay/homeports/internal/model"
)

func TestFormatPorts(t *testing.T) {
	assert.Equal(t, "-", formatPorts(nil))
	assert.Equal(t, "80/HTTP 445/SMB!", formatPorts([]model.PortRecord{
		{Port: 80, Service: "HTTP", Risk: model.RiskMedium},
		{Port: 445, Service: "SMB", Risk: model.RiskHigh},
	}))
}

func TestPrintDevices(t *testing.T) {
	var buf bytes.Buffer
	printDevices(&buf, nil)
	assert.Equal(t, "No devices.\n", buf.String())

	buf.Reset()
	printDevices(&buf, []model.DeviceRecord{{
		IP:         "192.168.1.1",
		MAC:        "aa:bb:cc:dd:ee:ff",
		CustomName: "router",
		Ports:      []model.PortRecord{{Port: 443, Service: "HTTPS", Risk: model.RiskLow}},
		LastSeen:   time.Now(),
	}})
	out := buf.String()
	assert.Contains(t, out, "192.168.1.1")
	assert.Contains(t, out, "router")
	assert.Contains(t, out, "443/HTTPS")
}

func TestPrintRuns(t *testing.T) {
	var buf bytes.Buffer
	start := time.Now()
	printRuns(&buf, []model.ScanRun{{
		Kind:         model.KindFull,
		PortMode:     "common",
		SpeedProfile: "fast",
		StartedAt:    start,
		FinishedAt:   start.Add(3 * time.Second),
		Devices:      4,
		OpenPorts:    9,
		Status:       model.StatusFinished,
	}})
	out := buf.String()
	assert.Contains(t, out, "full")
	assert.Contains(t, out, "finished")
	assert.Contains(t, out, "3s")
}
