// Package domain models flood risk assessment of short video clips.
//
// # Signals
//
// Two signals are extracted from a clip, frame by frame:
//
//	Flood probability: per-frame confidence in [0,1] from the image
//	classifier that the frame shows flood water.
//	Velocity: mean pixel displacement of tracked feature points between
//	two consecutive grayscale frames, measured only for frame pairs whose
//	current frame already looks like flood water (probability > 0.5).
//	Motion estimation is the expensive step, so it is gated behind the
//	cheap classification signal.
//
// # Decision policy
//
// Both signal series are reduced to their arithmetic means and classified
// with fixed thresholds (see [ClassifyRisk]):
//
//	avgProb < 0.5                       → LOW
//	avgProb >= 0.5, avgVelocity < 2.0   → MODERATE
//	avgProb >= 0.5, avgVelocity >= 2.0  → HIGH
//
// Before classification, clips whose aggregate probability falls below 0.2
// are rejected outright as non-water scenes ([ErrSceneRejected]). The guard
// looks only at the classification series, never at velocity: it prevents a
// leftover velocity reading on a largely dry clip from producing a false
// HIGH verdict.
//
// The thresholds are policy constants, not tunables. A velocity series with
// no samples reduces to exactly 0.0.
//
// # Report IDs
//
// Report IDs are deterministic SHA-256 hashes of source and aggregates, so
// re-analyzing the same clip produces the same ID and downstream alerting
// consumers can deduplicate. See [NewReport].
package domain
