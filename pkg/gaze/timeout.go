package gaze

import (
	"context"
	"fmt"
	"time"
)

// WithTimeout bounds every Classify call on c by d. A call that outlives
// its deadline returns an Error result and a wrapped context error; the
// underlying call is left to finish in the background.
func WithTimeout(c Classifier, d time.Duration) Classifier {
	if d <= 0 {
		return c
	}
	return ClassifierFunc(func(ctx context.Context, frame []byte) (Result, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		type outcome struct {
			res Result
			err error
		}
		done := make(chan outcome, 1)
		go func() {
			res, err := c.Classify(ctx, frame)
			done <- outcome{res, err}
		}()

		select {
		case out := <-done:
			return out.res, out.err
		case <-ctx.Done():
			return Unfocused(Error), fmt.Errorf("gaze: classify: %w", ctx.Err())
		}
	})
}
