package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/L1nMay/homeports/internal/model"
)

const timeLayout = "2006-01-02 15:04"

func formatPorts(ports []model.PortRecord) string {
	if len(ports) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(ports))
	for _, p := range ports {
		s := fmt.Sprintf("%d/%s", p.Port, p.Service)
		if p.Risk == model.RiskHigh {
			s += "!"
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " ")
}

// printDevices renders one row per device. High-risk ports are marked with !.
func printDevices(w io.Writer, devices []model.DeviceRecord) {
	if len(devices) == 0 {
		fmt.Fprintln(w, "No devices.")
		return
	}

	table := tablewriter.NewWriter(w)
	table.Header("IP", "Name", "MAC", "Open ports", "Last seen")
	for i := range devices {
		d := &devices[i]
		name := d.CustomName
		if name == "" {
			name = d.Name
		}
		_ = table.Append([]string{
			d.IP,
			name,
			d.MAC,
			formatPorts(d.Ports),
			d.LastSeen.Local().Format(timeLayout),
		})
	}
	_ = table.Render()
}

func printRuns(w io.Writer, runs []model.ScanRun) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No scans recorded.")
		return
	}

	table := tablewriter.NewWriter(w)
	table.Header("Started", "Kind", "Mode", "Speed", "Devices", "Open ports", "Status", "Took")
	for i := range runs {
		r := &runs[i]
		mode := r.PortMode
		if mode == "" {
			mode = "-"
		}
		_ = table.Append([]string{
			r.StartedAt.Local().Format(timeLayout),
			r.Kind,
			mode,
			r.SpeedProfile,
			strconv.Itoa(r.Devices),
			strconv.Itoa(r.OpenPorts),
			r.Status,
			r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String(),
		})
	}
	_ = table.Render()
}
