// Package flow implements sparse optical flow over grayscale frame pairs:
// Shi-Tomasi corner detection on the previous frame, then pyramidal
// Lucas-Kanade tracking into the current frame. The per-pair velocity is the
// mean Euclidean displacement of the successfully tracked points.
package flow

import (
	"image"
	"math"
)

// Config controls corner detection and tracking.
type Config struct {
	// Corner detection.
	MaxCorners   int     // cap on detected feature points
	QualityLevel float64 // minimum eigenvalue as a fraction of the strongest corner
	MinDistance  float64 // minimum pixel spacing between accepted corners
	BlockSize    int     // neighborhood size for the corner response

	// Lucas-Kanade tracking.
	WindowSize    int     // side of the square tracking window, odd
	MaxLevel      int     // pyramid levels above the base image
	MaxIterations int     // iteration cap per pyramid level
	Epsilon       float64 // convergence threshold on the per-iteration step
}

// DefaultConfig mirrors common defaults for dense-enough street footage.
func DefaultConfig() Config {
	return Config{
		MaxCorners:    200,
		QualityLevel:  0.01,
		MinDistance:   7,
		BlockSize:     7,
		WindowSize:    15,
		MaxLevel:      2,
		MaxIterations: 30,
		Epsilon:       0.01,
	}
}

// Estimator computes frame-pair velocities. Safe for sequential reuse; not
// safe for concurrent use.
type Estimator struct {
	cfg Config
}

// NewEstimator creates an Estimator with the given configuration.
func NewEstimator(cfg Config) *Estimator {
	return &Estimator{cfg: cfg}
}

// Estimate detects corners in prev and tracks them into curr. Returns the
// mean displacement magnitude and true, or 0 and false when no corners were
// found or no point tracked successfully.
func (e *Estimator) Estimate(prev, curr *image.Gray) (float64, bool) {
	corners := detectCorners(prev, e.cfg)
	if len(corners) == 0 {
		return 0, false
	}

	prevPyr := buildPyramid(prev, e.cfg.MaxLevel)
	currPyr := buildPyramid(curr, e.cfg.MaxLevel)

	var (
		sum     float64
		tracked int
	)
	for _, pt := range corners {
		moved, ok := trackPoint(prevPyr, currPyr, pt, e.cfg)
		if !ok {
			continue
		}
		dx := moved.x - pt.x
		dy := moved.y - pt.y
		sum += math.Hypot(dx, dy)
		tracked++
	}

	if tracked == 0 {
		return 0, false
	}
	return sum / float64(tracked), true
}
