package domain

import (
	"fmt"
	"strings"
)

// RiskLevel is the three-valued verdict of a completed analysis.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskModerate RiskLevel = "MODERATE"
	RiskHigh     RiskLevel = "HIGH"
)

// MetricLabel returns the lowercase form used as a Prometheus label value.
func (r RiskLevel) MetricLabel() string {
	return strings.ToLower(string(r))
}

// Decision thresholds. Fixed policy, not configuration: changing them changes
// what the service reports for identical footage.
const (
	// FloodProbabilityThreshold separates frames (and clips) that look like
	// flood water from ones that don't. Per frame it gates motion
	// estimation; per clip it is the LOW/MODERATE boundary.
	FloodProbabilityThreshold = 0.5

	// NonWaterSceneFloor is the aggregate probability below which a clip is
	// rejected as not water-related at all.
	NonWaterSceneFloor = 0.2

	// HighRiskVelocity is the mean displacement, in pixels per frame pair,
	// at which water motion is considered fast enough for a HIGH verdict.
	HighRiskVelocity = 2.0
)

// AnalysisResult is the terminal output of one analysis run. Immutable once
// produced; the field names are the wire contract.
type AnalysisResult struct {
	FloodProbability float64   `json:"flood_probability"`
	AverageVelocity  float64   `json:"average_velocity"`
	RiskLevel        RiskLevel `json:"risk_level"`
}

// Mean returns the arithmetic mean of xs, or 0 when xs is empty.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// ClassifyRisk maps the two aggregates to a verdict. Ordered rule, first
// match wins: a clip that doesn't look like flood water is LOW no matter how
// fast it moves.
func ClassifyRisk(avgProb, avgVelocity float64) RiskLevel {
	switch {
	case avgProb < FloodProbabilityThreshold:
		return RiskLow
	case avgVelocity < HighRiskVelocity:
		return RiskModerate
	default:
		return RiskHigh
	}
}

// Reduce collapses a non-empty per-frame score series and the motion samples
// into a final result. Returns ErrSceneRejected when the aggregate
// probability is below NonWaterSceneFloor; no verdict is produced for such
// clips. Callers report ErrEmptyStream before reducing, so an empty score
// series never reaches here.
func Reduce(scores, velocities []float64) (AnalysisResult, error) {
	avgProb := Mean(scores)
	avgVelocity := Mean(velocities)

	if avgProb < NonWaterSceneFloor {
		return AnalysisResult{}, fmt.Errorf("%w: aggregate probability %.3f", ErrSceneRejected, avgProb)
	}

	return AnalysisResult{
		FloodProbability: avgProb,
		AverageVelocity:  avgVelocity,
		RiskLevel:        ClassifyRisk(avgProb, avgVelocity),
	}, nil
}
