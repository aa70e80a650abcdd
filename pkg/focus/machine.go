package focus

import "time"

// Observation is the outcome of feeding one raw classification.
type Observation struct {
	Smoothed   bool
	State      State
	Transition *Interval // Closed interval, if the state flipped
}

// Machine couples a Smoother with an Accumulator: raw per-frame booleans
// go in, smoothed state and time accounting come out.
type Machine struct {
	smoother *Smoother
	acc      *Accumulator
}

// NewMachine creates a state machine with the given smoothing parameters.
func NewMachine(cfg Config) *Machine {
	return &Machine{
		smoother: NewSmoother(cfg.WindowSize, cfg.Threshold),
		acc:      NewAccumulator(),
	}
}

// Observe applies one raw classification taken at now.
func (m *Machine) Observe(raw bool, now time.Time) Observation {
	smoothed := m.smoother.Observe(raw)
	obs := Observation{Smoothed: smoothed, State: StateOf(smoothed)}
	if closed, ok := m.acc.Apply(obs.State, now); ok {
		obs.Transition = &closed
	}
	return obs
}

// Snapshot returns the metrics at now.
func (m *Machine) Snapshot(now time.Time) Metrics {
	return m.acc.Snapshot(now)
}

// Accumulator exposes the underlying accumulator for read-only inspection.
func (m *Machine) Accumulator() *Accumulator {
	return m.acc
}

// Smoother exposes the underlying smoother for read-only inspection.
func (m *Machine) Smoother() *Smoother {
	return m.smoother
}
