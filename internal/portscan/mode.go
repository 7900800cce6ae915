package portscan

import (
	"errors"
	"fmt"
	"strings"

	"github.com/L1nMay/homeports/internal/service"
)

const MaxPort = 65535

type Mode string

const (
	ModeCommon Mode = "common"
	ModeFull   Mode = "full"
)

var ErrUnknownMode = errors.New("unknown port mode")

// ParseMode accepts "common" and "full". An empty string means common.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeCommon:
		return ModeCommon, nil
	case ModeFull:
		return ModeFull, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Ports returns the port set the mode scans.
func (m Mode) Ports() []int {
	if m == ModeFull {
		ports := make([]int, MaxPort)
		for i := range ports {
			ports[i] = i + 1
		}
		return ports
	}
	return service.CommonPorts()
}
