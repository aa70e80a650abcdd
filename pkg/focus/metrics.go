package focus

import (
	"encoding/json"
	"math"
	"time"
)

// Metrics is an immutable point-in-time view of a session's attention.
type Metrics struct {
	Focused          time.Duration
	Unfocused        time.Duration
	Total            time.Duration
	FocusPercentage  float64
	FocusIntervals   int
	UnfocusIntervals int
	State            State
}

// FocusedSeconds returns the focused time rounded to one decimal.
func (m Metrics) FocusedSeconds() float64 { return round1(m.Focused.Seconds()) }

// UnfocusedSeconds returns the unfocused time rounded to one decimal.
func (m Metrics) UnfocusedSeconds() float64 { return round1(m.Unfocused.Seconds()) }

// TotalSeconds returns the total tracked time rounded to one decimal.
func (m Metrics) TotalSeconds() float64 { return round1(m.Total.Seconds()) }

type metricsJSON struct {
	FocusedTime     float64 `json:"focused_time"`
	UnfocusedTime   float64 `json:"unfocused_time"`
	TotalTime       float64 `json:"total_time"`
	FocusPercentage float64 `json:"focus_percentage"`
	FocusSessions   int     `json:"focus_sessions"`
	UnfocusSessions int     `json:"unfocus_sessions"`
	CurrentState    State   `json:"current_state"`
}

// MarshalJSON encodes the metrics in seconds, as clients expect.
func (m Metrics) MarshalJSON() ([]byte, error) {
	return json.Marshal(metricsJSON{
		FocusedTime:     m.FocusedSeconds(),
		UnfocusedTime:   m.UnfocusedSeconds(),
		TotalTime:       m.TotalSeconds(),
		FocusPercentage: m.FocusPercentage,
		FocusSessions:   m.FocusIntervals,
		UnfocusSessions: m.UnfocusIntervals,
		CurrentState:    m.State,
	})
}

// UnmarshalJSON decodes metrics produced by MarshalJSON.
func (m *Metrics) UnmarshalJSON(data []byte) error {
	var w metricsJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*m = Metrics{
		Focused:          seconds(w.FocusedTime),
		Unfocused:        seconds(w.UnfocusedTime),
		Total:            seconds(w.TotalTime),
		FocusPercentage:  w.FocusPercentage,
		FocusIntervals:   w.FocusSessions,
		UnfocusIntervals: w.UnfocusSessions,
		State:            w.CurrentState,
	}
	return nil
}

func percentage(part, total time.Duration) float64 {
	if total <= 0 {
		return 0
	}
	return round1(100 * float64(part) / float64(total))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
