package focus

import "fmt"

// Config holds the smoothing parameters.
type Config struct {
	WindowSize int     // Number of recent frames considered
	Threshold  float64 // Focused if the ratio of focused frames exceeds this
}

// DefaultConfig returns the production smoothing parameters.
func DefaultConfig() Config {
	return Config{
		WindowSize: 10,
		Threshold:  0.6,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.WindowSize < 1 {
		return fmt.Errorf("focus: window size must be at least 1, got %d", c.WindowSize)
	}
	if c.Threshold < 0 || c.Threshold >= 1 {
		return fmt.Errorf("focus: threshold must be in [0, 1), got %.2f", c.Threshold)
	}
	return nil
}
