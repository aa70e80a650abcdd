package gaze

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/teslashibe/go-focus/pkg/gaze/detection"
)

// LandmarkConfig holds the geometry thresholds used to label a face.
// All distances are in normalized image coordinates.
type LandmarkConfig struct {
	MinEyeDistance       float64 // Face too far away below this
	MaxEyeDistance       float64 // Face too close above this
	TurnThreshold        float64 // Nose offset / eye distance for face_turned
	LookThreshold        float64 // Nose offset / eye distance for looking_left/right
	UpThreshold          float64 // Nose height between eyes (0) and mouth (1)
	DownThreshold        float64
	EyesClosedConfidence float64 // Detections below this confidence count as eyes closed
}

// DefaultLandmarkConfig returns the production thresholds.
func DefaultLandmarkConfig() LandmarkConfig {
	return LandmarkConfig{
		MinEyeDistance:       0.1,
		MaxEyeDistance:       0.4,
		TurnThreshold:        0.35,
		LookThreshold:        0.15,
		UpThreshold:          0.25,
		DownThreshold:        0.75,
		EyesClosedConfidence: 0.6,
	}
}

// LandmarkClassifier labels frames from the five facial landmarks of the
// best detected face.
type LandmarkClassifier struct {
	detector detection.Detector
	config   LandmarkConfig
}

// NewLandmarkClassifier creates a classifier backed by detector.
func NewLandmarkClassifier(detector detection.Detector, cfg LandmarkConfig) (*LandmarkClassifier, error) {
	if detector == nil {
		return nil, ErrNoDetector
	}
	return &LandmarkClassifier{detector: detector, config: cfg}, nil
}

// Classify implements Classifier.
func (c *LandmarkClassifier) Classify(ctx context.Context, frame []byte) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Unfocused(Error), err
	}

	face, err := c.Locate(frame)
	switch {
	case errors.Is(err, ErrNoFace):
		return Unfocused(NoFace), nil
	case errors.Is(err, ErrMalformedFrame):
		return Result{}, err
	case err != nil:
		return Unfocused(Error), err
	}

	dir := ClassifyLandmarks(face, c.config)
	return Result{Focused: dir == Centered, Direction: dir}, nil
}

// Locate returns the most prominent face in frame, or ErrNoFace.
func (c *LandmarkClassifier) Locate(frame []byte) (detection.Detection, error) {
	if len(frame) == 0 {
		return detection.Detection{}, fmt.Errorf("%w: empty frame", ErrMalformedFrame)
	}

	dets, err := c.detector.Detect(frame)
	if err != nil {
		if errors.Is(err, detection.ErrDecode) {
			return detection.Detection{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		return detection.Detection{}, fmt.Errorf("gaze: detect: %w", err)
	}

	best := detection.SelectBest(dets)
	if best == nil {
		return detection.Detection{}, ErrNoFace
	}
	return *best, nil
}

// Close releases the detector.
func (c *LandmarkClassifier) Close() error {
	return c.detector.Close()
}

// ClassifyLandmarks labels a single face. Horizontal labels are in image
// coordinates: looking_right means the nose sits right of the eye midpoint
// in the frame.
func ClassifyLandmarks(d detection.Detection, cfg LandmarkConfig) Direction {
	if d.Confidence < cfg.EyesClosedConfidence {
		return EyesClosed
	}

	re := d.Landmarks[detection.RightEye]
	le := d.Landmarks[detection.LeftEye]
	nose := d.Landmarks[detection.NoseTip]
	rm := d.Landmarks[detection.RightMouth]
	lm := d.Landmarks[detection.LeftMouth]

	eyeDist := math.Abs(le.X - re.X)
	if eyeDist <= cfg.MinEyeDistance || eyeDist >= cfg.MaxEyeDistance {
		return Distracted
	}

	midX := (re.X + le.X) / 2
	hOffset := (nose.X - midX) / eyeDist
	switch {
	case math.Abs(hOffset) > cfg.TurnThreshold:
		return FaceTurned
	case hOffset > cfg.LookThreshold:
		return LookingRight
	case hOffset < -cfg.LookThreshold:
		return LookingLeft
	}

	eyeY := (re.Y + le.Y) / 2
	mouthY := (rm.Y + lm.Y) / 2
	if mouthY <= eyeY {
		return FaceTurned
	}
	v := (nose.Y - eyeY) / (mouthY - eyeY)
	switch {
	case v < cfg.UpThreshold:
		return LookingUp
	case v > cfg.DownThreshold:
		return LookingDown
	}
	return Centered
}
