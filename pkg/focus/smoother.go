package focus

// Smoother debounces raw per-frame focus booleans with a fixed-size
// FIFO window. A single blink or head turn cannot flip the result.
type Smoother struct {
	window    []bool
	size      int
	threshold float64
	trues     int
}

// NewSmoother creates a smoother holding the last size observations.
// Sizes below 1 are treated as 1.
func NewSmoother(size int, threshold float64) *Smoother {
	if size < 1 {
		size = 1
	}
	return &Smoother{
		window:    make([]bool, 0, size),
		size:      size,
		threshold: threshold,
	}
}

// Observe appends raw to the window, evicting the oldest entry once the
// window is full, and returns the smoothed state.
func (s *Smoother) Observe(raw bool) bool {
	if len(s.window) == s.size {
		if s.window[0] {
			s.trues--
		}
		copy(s.window, s.window[1:])
		s.window = s.window[:s.size-1]
	}
	s.window = append(s.window, raw)
	if raw {
		s.trues++
	}
	return s.Ratio() > s.threshold
}

// Ratio returns the fraction of focused observations in the window.
func (s *Smoother) Ratio() float64 {
	if len(s.window) == 0 {
		return 0
	}
	return float64(s.trues) / float64(len(s.window))
}

// Len returns the number of observations currently in the window.
func (s *Smoother) Len() int {
	return len(s.window)
}

// Reset empties the window.
func (s *Smoother) Reset() {
	s.window = s.window[:0]
	s.trues = 0
}
