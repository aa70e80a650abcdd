package focus

import "time"

// Interval is a closed span of time during which the smoothed state did
// not change.
type Interval struct {
	Start    time.Time     `json:"start"`
	End      time.Time     `json:"end"`
	Duration time.Duration `json:"duration"`
	Kind     State         `json:"kind"`
}

// Accumulator is the authoritative time-accounting state for one session.
//
// Before the first observation no interval is open. From then on exactly
// one interval is open, and focused + unfocused + open duration always
// equals the time elapsed since the first observation.
//
// Accumulator is not safe for concurrent use; callers serialize access.
type Accumulator struct {
	state     State
	started   bool
	first     time.Time
	openStart time.Time

	focused   time.Duration
	unfocused time.Duration

	closed         []Interval
	focusCount     int
	unfocusedCount int
}

// NewAccumulator returns an accumulator in the initial Unfocused state.
func NewAccumulator() *Accumulator {
	return &Accumulator{state: Unfocused}
}

// Apply feeds a smoothed state observed at now into the state machine.
//
// The first call only opens an interval of the observed state. Later calls
// with a different state close the open interval and open a new one; the
// closed interval is returned with ok set. Zero-length intervals are kept.
func (a *Accumulator) Apply(next State, now time.Time) (closed Interval, ok bool) {
	if !a.started {
		a.started = true
		a.first = now
		a.openStart = now
		a.state = next
		return Interval{}, false
	}
	if next == a.state {
		return Interval{}, false
	}

	// A clock step backwards must not produce negative time.
	if now.Before(a.openStart) {
		now = a.openStart
	}

	closed = Interval{
		Start:    a.openStart,
		End:      now,
		Duration: now.Sub(a.openStart),
		Kind:     a.state,
	}
	a.closed = append(a.closed, closed)
	if a.state == Focused {
		a.focused += closed.Duration
		a.focusCount++
	} else {
		a.unfocused += closed.Duration
		a.unfocusedCount++
	}

	a.openStart = now
	a.state = next
	return closed, true
}

// State returns the current smoothed state.
func (a *Accumulator) State() State {
	return a.state
}

// Started reports whether the first observation has arrived.
func (a *Accumulator) Started() bool {
	return a.started
}

// FirstObservation returns the time of the first observation, or the zero
// time if none has arrived.
func (a *Accumulator) FirstObservation() time.Time {
	return a.first
}

// OpenSince returns the start of the open interval.
func (a *Accumulator) OpenSince() (time.Time, bool) {
	return a.openStart, a.started
}

// Intervals returns a copy of the closed intervals in order.
func (a *Accumulator) Intervals() []Interval {
	out := make([]Interval, len(a.closed))
	copy(out, a.closed)
	return out
}

// Snapshot projects the accumulator into a point-in-time report. The still
// open interval contributes its elapsed part up to now. Snapshot never
// mutates the accumulator.
func (a *Accumulator) Snapshot(now time.Time) Metrics {
	m := Metrics{
		Focused:          a.focused,
		Unfocused:        a.unfocused,
		FocusIntervals:   a.focusCount,
		UnfocusIntervals: a.unfocusedCount,
		State:            a.state,
	}
	if a.started {
		open := now.Sub(a.openStart)
		if open < 0 {
			open = 0
		}
		if a.state == Focused {
			m.Focused += open
		} else {
			m.Unfocused += open
		}
	}
	m.Total = m.Focused + m.Unfocused
	m.FocusPercentage = percentage(m.Focused, m.Total)
	return m
}
