package scan

import "errors"

var (
	// ErrBusy is returned when a scan is already running.
	ErrBusy = errors.New("a scan is already running")
	// ErrNotFound is returned for a port scan of an address that is not a known device.
	ErrNotFound        = errors.New("device not found")
	ErrUnknownProfile  = errors.New("unknown speed profile")
	ErrUnknownPortMode = errors.New("unknown port mode")
	ErrInvalidAddress  = errors.New("invalid address")
)
