package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// AnalysisReport is the envelope published to the alerting topic for a
// completed analysis. The result fields keep their wire names; Source is the
// caller-supplied clip name, never a filesystem path.
type AnalysisReport struct {
	ID               string    `json:"id"`
	Source           string    `json:"source"`
	FloodProbability float64   `json:"flood_probability"`
	AverageVelocity  float64   `json:"average_velocity"`
	RiskLevel        RiskLevel `json:"risk_level"`
	AnalyzedAt       time.Time `json:"analyzed_at"`
}

// NewReport builds the report for a finished run. The ID is a deterministic
// hash of the source name and the three aggregates, so re-analyzing the same
// clip yields the same ID and downstream consumers can deduplicate.
func NewReport(source string, result AnalysisResult) AnalysisReport {
	return AnalysisReport{
		ID:               reportID(source, result),
		Source:           source,
		FloodProbability: result.FloodProbability,
		AverageVelocity:  result.AverageVelocity,
		RiskLevel:        result.RiskLevel,
		AnalyzedAt:       clock.Now().UTC(),
	}
}

func reportID(source string, result AnalysisResult) string {
	input := fmt.Sprintf("%s|%.6f|%.6f|%s",
		source, result.FloodProbability, result.AverageVelocity, result.RiskLevel)
	hash := sha256.Sum256([]byte(input))
	return "flood-" + hex.EncodeToString(hash[:8])
}
