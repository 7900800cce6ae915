package scan

// Subscribe registers a listener for live scan events.
func (r *Runner) Subscribe() chan []byte {
	return r.hub.Subscribe()
}

func (r *Runner) Unsubscribe(ch chan []byte) {
	if ch == nil {
		return
	}
	r.hub.Unsubscribe(ch)
}
