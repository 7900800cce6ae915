package scan

import (
	"context"
	"sync"
)

type cancelState struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

func (r *Runner) setCancel(fn context.CancelFunc) {
	r.muCancel.mu.Lock()
	defer r.muCancel.mu.Unlock()
	r.muCancel.cancel = fn
}

func (r *Runner) clearCancel() {
	r.muCancel.mu.Lock()
	defer r.muCancel.mu.Unlock()
	if r.muCancel.cancel != nil {
		r.muCancel.cancel()
	}
	r.muCancel.cancel = nil
}

// CancelRunning aborts the running scan. Probes already in flight finish on
// their own timeout. Reports whether a scan was running.
func (r *Runner) CancelRunning() bool {
	r.muCancel.mu.Lock()
	defer r.muCancel.mu.Unlock()

	if r.muCancel.cancel == nil {
		return false
	}
	r.muCancel.cancel()
	r.muCancel.cancel = nil
	return true
}

// Wait blocks until the running scan, if any, has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Close cancels the running scan and waits for it. Used at shutdown.
func (r *Runner) Close() {
	r.CancelRunning()
	r.wg.Wait()
}
