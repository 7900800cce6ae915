package model

import (
	"fmt"
	"time"
)

// ZeroMAC is reported when a live host's hardware address cannot be resolved.
const ZeroMAC = "00:00:00:00:00:00"

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

type NetworkProfile struct {
	LocalIP   string `json:"local_ip"`
	Gateway   string `json:"gateway"`
	Subnet    string `json:"subnet"`
	Interface string `json:"interface,omitempty"`
}

type PortRecord struct {
	Port     int       `json:"port"`
	Service  string    `json:"service"`
	Risk     RiskLevel `json:"risk"`
	RiskDesc string    `json:"risk_desc"`
}

type DeviceRecord struct {
	IP         string       `json:"ip"`
	MAC        string       `json:"mac"`
	Name       string       `json:"name"`
	CustomName string       `json:"custom_name,omitempty"`
	Ports      []PortRecord `json:"ports"`
	LastSeen   time.Time    `json:"last_seen"`
}

func (d *DeviceRecord) Key() string {
	return d.IP
}

// Clone returns a copy that shares no slices with d.
func (d DeviceRecord) Clone() DeviceRecord {
	out := d
	out.Ports = append([]PortRecord(nil), d.Ports...)
	if out.Ports == nil {
		out.Ports = []PortRecord{}
	}
	return out
}

// Scan kinds.
const (
	KindDevices = "devices"
	KindPorts   = "ports"
	KindFull    = "full"
)

// Final run statuses.
const (
	StatusFinished  = "finished"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

type ScanState struct {
	Scanning      bool   `json:"scanning"`
	Paused        bool   `json:"paused"`
	Progress      int    `json:"progress"`
	SpeedProfile  string `json:"speed_mode"`
	CurrentTarget string `json:"current_device"`
	Kind          string `json:"kind,omitempty"`
}

type LiveStream struct {
	CurrentTarget    string         `json:"current_ip"`
	FoundPorts       []PortRecord   `json:"found_ports"`
	CompletedDevices []DeviceRecord `json:"completed_devices"`
}

type ScanRun struct {
	ID           string    `json:"id"`
	Kind         string    `json:"kind"`
	PortMode     string    `json:"port_mode,omitempty"`
	SpeedProfile string    `json:"speed_profile"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`

	Devices   int `json:"devices"`
	OpenPorts int `json:"open_ports"`

	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (r *ScanRun) String() string {
	return fmt.Sprintf("%s %s devices=%d open_ports=%d status=%s", r.ID, r.Kind, r.Devices, r.OpenPorts, r.Status)
}
