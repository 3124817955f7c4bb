package pipeline

import (
	"context"
	"errors"
	"image"
	"io"
	"io/fs"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/flood-risk-service/internal/domain"
	"github.com/couchcryptid/flood-risk-service/internal/observability"
)

// --- fakes ---

type fakeSource struct {
	frames    int
	nextErr   error // returned after frames are exhausted, instead of io.EOF
	served    int
	closed    bool
	closeErr  error
	frameGray uint8
}

func (s *fakeSource) Next() (domain.Frame, error) {
	if s.served >= s.frames {
		if s.nextErr != nil {
			return domain.Frame{}, s.nextErr
		}
		return domain.Frame{}, io.EOF
	}
	s.served++
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = s.frameGray
	}
	return domain.Frame{Index: s.served - 1, Image: img}, nil
}

func (s *fakeSource) Close() error {
	s.closed = true
	return s.closeErr
}

type fakeOpener struct {
	source  *fakeSource
	openErr error
}

func (o *fakeOpener) Open(_ context.Context, _ string) (FrameSource, error) {
	if o.openErr != nil {
		return nil, o.openErr
	}
	return o.source, nil
}

// scriptClassifier returns its scores in order, then repeats the last one.
type scriptClassifier struct {
	scores []float64
	err    error
	errAt  int // frame index at which err fires; only used when err != nil
	calls  int
}

func (c *scriptClassifier) Classify(_ context.Context, _ domain.Frame) (float64, error) {
	idx := c.calls
	c.calls++
	if c.err != nil && idx == c.errAt {
		return 0, c.err
	}
	if idx >= len(c.scores) {
		return c.scores[len(c.scores)-1], nil
	}
	return c.scores[idx], nil
}

type scriptMotion struct {
	velocities []float64
	ok         bool
	calls      int
}

func (m *scriptMotion) Estimate(_, _ *image.Gray) (float64, bool) {
	idx := m.calls
	m.calls++
	if !m.ok {
		return 0, false
	}
	if idx >= len(m.velocities) {
		return m.velocities[len(m.velocities)-1], true
	}
	return m.velocities[idx], true
}

func testAnalyzer(o SourceOpener, c Classifier, m MotionEstimator) *Analyzer {
	return New(o, c, m,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		observability.NewMetricsForTesting(),
	)
}

// --- tests ---

func TestAnalyze_LowRisk(t *testing.T) {
	src := &fakeSource{frames: 4}
	a := testAnalyzer(
		&fakeOpener{source: src},
		&scriptClassifier{scores: []float64{0.3, 0.4, 0.3, 0.2}},
		&scriptMotion{ok: true, velocities: []float64{9.0}},
	)

	result, err := a.Analyze(context.Background(), "clip.mp4")
	require.NoError(t, err)

	want := domain.AnalysisResult{
		FloodProbability: 0.3,
		AverageVelocity:  0.0,
		RiskLevel:        domain.RiskLow,
	}
	if diff := cmp.Diff(want, result); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, src.closed)
}

func TestAnalyze_ModerateRisk(t *testing.T) {
	src := &fakeSource{frames: 3}
	motion := &scriptMotion{ok: true, velocities: []float64{1.0, 1.5}}
	a := testAnalyzer(
		&fakeOpener{source: src},
		&scriptClassifier{scores: []float64{0.8, 0.7, 0.9}},
		motion,
	)

	result, err := a.Analyze(context.Background(), "clip.mp4")
	require.NoError(t, err)

	assert.Equal(t, domain.RiskModerate, result.RiskLevel)
	assert.InDelta(t, 0.8, result.FloodProbability, 1e-9)
	assert.InDelta(t, 1.25, result.AverageVelocity, 1e-9)
	assert.True(t, src.closed)
}

func TestAnalyze_HighRisk(t *testing.T) {
	src := &fakeSource{frames: 3}
	a := testAnalyzer(
		&fakeOpener{source: src},
		&scriptClassifier{scores: []float64{0.9, 0.9, 0.9}},
		&scriptMotion{ok: true, velocities: []float64{3.0, 4.0}},
	)

	result, err := a.Analyze(context.Background(), "clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, domain.RiskHigh, result.RiskLevel)
}

// The first frame has no predecessor, so even a high-probability first frame
// must not produce a motion sample.
func TestAnalyze_FirstFrameNeverTracked(t *testing.T) {
	motion := &scriptMotion{ok: true, velocities: []float64{1.0}}
	a := testAnalyzer(
		&fakeOpener{source: &fakeSource{frames: 1}},
		&scriptClassifier{scores: []float64{0.99}},
		motion,
	)

	_, err := a.Analyze(context.Background(), "clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, 0, motion.calls)
}

// Motion runs only for frames strictly above the flood threshold.
func TestAnalyze_MotionGatedByProbability(t *testing.T) {
	motion := &scriptMotion{ok: true, velocities: []float64{1.0}}
	a := testAnalyzer(
		&fakeOpener{source: &fakeSource{frames: 5}},
		// Frames 1 and 3 are above the threshold; frame 2 sits exactly on
		// it and must not trigger tracking.
		&scriptClassifier{scores: []float64{0.1, 0.9, 0.5, 0.8, 0.1}},
		motion,
	)

	_, err := a.Analyze(context.Background(), "clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, 2, motion.calls)
}

func TestAnalyze_NoTrackableMotionMeansZeroVelocity(t *testing.T) {
	a := testAnalyzer(
		&fakeOpener{source: &fakeSource{frames: 3}},
		&scriptClassifier{scores: []float64{0.9, 0.9, 0.9}},
		&scriptMotion{ok: false},
	)

	result, err := a.Analyze(context.Background(), "clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.AverageVelocity)
	assert.Equal(t, domain.RiskModerate, result.RiskLevel)
}

func TestAnalyze_SceneRejected(t *testing.T) {
	src := &fakeSource{frames: 3}
	a := testAnalyzer(
		&fakeOpener{source: src},
		&scriptClassifier{scores: []float64{0.1, 0.1, 0.1}},
		&scriptMotion{ok: true, velocities: []float64{1.0}},
	)

	_, err := a.Analyze(context.Background(), "clip.mp4")
	require.ErrorIs(t, err, domain.ErrSceneRejected)
	assert.True(t, src.closed)
}

func TestAnalyze_EmptyStream(t *testing.T) {
	src := &fakeSource{frames: 0}
	a := testAnalyzer(
		&fakeOpener{source: src},
		&scriptClassifier{scores: []float64{0.5}},
		&scriptMotion{},
	)

	_, err := a.Analyze(context.Background(), "clip.mp4")
	require.ErrorIs(t, err, domain.ErrEmptyStream)
	assert.True(t, src.closed)
}

func TestAnalyze_OpenFailure(t *testing.T) {
	a := testAnalyzer(
		&fakeOpener{openErr: fs.ErrNotExist},
		&scriptClassifier{scores: []float64{0.5}},
		&scriptMotion{},
	)

	_, err := a.Analyze(context.Background(), "missing.mp4")
	require.ErrorIs(t, err, domain.ErrSourceUnavailable)
}

func TestAnalyze_OpenFailureKeepsSentinel(t *testing.T) {
	wrapped := &domain.AdapterError{Adapter: "video", Err: domain.ErrSourceUnavailable}
	a := testAnalyzer(
		&fakeOpener{openErr: wrapped},
		&scriptClassifier{scores: []float64{0.5}},
		&scriptMotion{},
	)

	_, err := a.Analyze(context.Background(), "missing.mp4")
	require.ErrorIs(t, err, domain.ErrSourceUnavailable)
}

func TestAnalyze_ClassifierFailureClosesSource(t *testing.T) {
	src := &fakeSource{frames: 5}
	boom := &domain.AdapterError{Adapter: "classifier", Err: errors.New("connection refused")}
	a := testAnalyzer(
		&fakeOpener{source: src},
		&scriptClassifier{scores: []float64{0.5}, err: boom, errAt: 2},
		&scriptMotion{},
	)

	_, err := a.Analyze(context.Background(), "clip.mp4")
	var adapterErr *domain.AdapterError
	require.ErrorAs(t, err, &adapterErr)
	assert.Equal(t, "classifier", adapterErr.Adapter)
	assert.True(t, src.closed)
}

func TestAnalyze_OutOfRangeProbability(t *testing.T) {
	src := &fakeSource{frames: 2}
	a := testAnalyzer(
		&fakeOpener{source: src},
		&scriptClassifier{scores: []float64{1.5}},
		&scriptMotion{},
	)

	_, err := a.Analyze(context.Background(), "clip.mp4")
	var adapterErr *domain.AdapterError
	require.ErrorAs(t, err, &adapterErr)
	assert.Equal(t, "classifier", adapterErr.Adapter)
	assert.True(t, src.closed)
}

func TestAnalyze_MidStreamReadFailure(t *testing.T) {
	src := &fakeSource{frames: 2, nextErr: &domain.AdapterError{Adapter: "video", Err: errors.New("decode failed")}}
	a := testAnalyzer(
		&fakeOpener{source: src},
		&scriptClassifier{scores: []float64{0.5}},
		&scriptMotion{},
	)

	_, err := a.Analyze(context.Background(), "clip.mp4")
	var adapterErr *domain.AdapterError
	require.ErrorAs(t, err, &adapterErr)
	assert.True(t, src.closed)
}

func TestAnalyze_ContextCancelled(t *testing.T) {
	src := &fakeSource{frames: 100}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := testAnalyzer(
		&fakeOpener{source: src},
		&scriptClassifier{scores: []float64{0.5}},
		&scriptMotion{},
	)

	_, err := a.Analyze(ctx, "clip.mp4")
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, src.closed)
}

// Two runs over identical inputs yield identical results.
func TestAnalyze_Deterministic(t *testing.T) {
	run := func() domain.AnalysisResult {
		a := testAnalyzer(
			&fakeOpener{source: &fakeSource{frames: 4}},
			&scriptClassifier{scores: []float64{0.6, 0.7, 0.8, 0.9}},
			&scriptMotion{ok: true, velocities: []float64{1.0, 2.0, 3.0}},
		)
		result, err := a.Analyze(context.Background(), "clip.mp4")
		require.NoError(t, err)
		return result
	}

	first := run()
	second := run()
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("results differ between runs (-first +second):\n%s", diff)
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"source unavailable", domain.ErrSourceUnavailable, "source_unavailable"},
		{"empty stream", domain.ErrEmptyStream, "empty_stream"},
		{"scene rejected", domain.ErrSceneRejected, "scene_rejected"},
		{"adapter failure", &domain.AdapterError{Adapter: "classifier", Err: errors.New("x")}, "adapter_failure"},
		{"other", errors.New("unexpected"), "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorKind(tt.err))
		})
	}
}
