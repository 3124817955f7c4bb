package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/flood-risk-service/internal/domain"
)

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	report := domain.AnalysisReport{
		ID:               "flood-1a2b3c4d",
		Source:           "street.mp4",
		FloodProbability: 0.82,
		AverageVelocity:  3.4,
		RiskLevel:        domain.RiskHigh,
		AnalyzedAt:       now,
	}

	msg, err := serializeToMessage(report)
	require.NoError(t, err)

	assert.Equal(t, []byte("flood-1a2b3c4d"), msg.Key)
	assert.Contains(t, string(msg.Value), `"risk_level":"HIGH"`)
	assert.Contains(t, string(msg.Value), `"source":"street.mp4"`)
	assert.Len(t, msg.Headers, 2)
	assert.Equal(t, "risk_level", msg.Headers[0].Key)
	assert.Equal(t, []byte("HIGH"), msg.Headers[0].Value)
	assert.Equal(t, "analyzed_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[1].Value)
}
