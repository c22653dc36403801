package dashboard

import "github.com/jonboulle/clockwork"

// clock stamps health responses and ages cached pages. Tests freeze it via SetClock.
var clock = clockwork.NewRealClock()

// SetClock swaps the dashboard time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}
