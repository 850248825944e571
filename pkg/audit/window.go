package audit

import "time"

// Window is the metadata of one time window in the audit log. A
// window is open while new events are still being appended to it and
// sealed once it rolls over, at which point RootHash, ChainHash, and
// End become final.
type Window struct {
	ID           string    `json:"id"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Sealed       bool      `json:"sealed"`
	EventCount   int       `json:"event_count"`
	RootHash     Hash      `json:"root_hash"`
	PrevRootHash Hash      `json:"prev_root_hash"`
	ChainHash    Hash      `json:"chain_hash"`
}

// RolloverTrigger reports which condition, if any, closed a window.
type RolloverTrigger int

const (
	RolloverNone RolloverTrigger = iota
	RolloverDuration
	RolloverEventCount
)

// Config tunes window rollover. Both triggers are evaluated on every
// append; whichever fires first seals the window.
type Config struct {
	WindowDuration     time.Duration
	MaxEventsPerWindow int
}

func (c Config) trigger(w *Window, now time.Time) RolloverTrigger {
	if c.WindowDuration > 0 && now.Sub(w.Start) >= c.WindowDuration {
		return RolloverDuration
	}
	if c.MaxEventsPerWindow > 0 && w.EventCount >= c.MaxEventsPerWindow {
		return RolloverEventCount
	}
	return RolloverNone
}
