// Package gaze classifies single video frames into a focus boolean and a
// gaze direction label. Classifiers are stateless; smoothing over time is
// the job of package focus.
package gaze

import (
	"context"
	"errors"
)

// Direction labels where the viewer appears to be looking.
type Direction string

const (
	Centered     Direction = "centered"
	LookingLeft  Direction = "looking_left"
	LookingRight Direction = "looking_right"
	LookingUp    Direction = "looking_up"
	LookingDown  Direction = "looking_down"
	FaceTurned   Direction = "face_turned"
	Distracted   Direction = "distracted"
	NoFace       Direction = "no_face"
	EyesClosed   Direction = "eyes_closed"
	Error        Direction = "error"
)

// Valid reports whether d is one of the known labels.
func (d Direction) Valid() bool {
	switch d {
	case Centered, LookingLeft, LookingRight, LookingUp, LookingDown,
		FaceTurned, Distracted, NoFace, EyesClosed, Error:
		return true
	}
	return false
}

// Sentinel errors.
var (
	// ErrMalformedFrame means the input could not be decoded. The frame
	// must be dropped rather than counted as an unfocused observation.
	ErrMalformedFrame = errors.New("gaze: malformed frame")

	// ErrNoFace is returned by Locate when a frame contains no face.
	ErrNoFace = errors.New("gaze: no face detected")

	// ErrNoDetector is returned when a classifier has no detector configured.
	ErrNoDetector = errors.New("gaze: detector required")
)

// Result is the classification of one frame.
type Result struct {
	Focused   bool      `json:"is_focused"`
	Direction Direction `json:"gaze_direction"`
}

// Unfocused returns a non-focused result with the given direction.
func Unfocused(d Direction) Result {
	return Result{Focused: false, Direction: d}
}

// Classifier turns a raw frame into a Result.
type Classifier interface {
	Classify(ctx context.Context, frame []byte) (Result, error)
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(ctx context.Context, frame []byte) (Result, error)

// Classify calls f.
func (f ClassifierFunc) Classify(ctx context.Context, frame []byte) (Result, error) {
	return f(ctx, frame)
}
