package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"time"

	"github.com/couchcryptid/flood-risk-service/internal/domain"
	"github.com/couchcryptid/flood-risk-service/internal/observability"
)

// FrameSource yields decoded frames from an open video stream. Next returns
// io.EOF when the stream is exhausted.
type FrameSource interface {
	Next() (domain.Frame, error)
	Close() error
}

// SourceOpener opens a video file for frame iteration.
type SourceOpener interface {
	Open(ctx context.Context, path string) (FrameSource, error)
}

// Classifier scores a single frame with the flood probability in [0, 1].
type Classifier interface {
	Classify(ctx context.Context, frame domain.Frame) (float64, error)
}

// MotionEstimator measures apparent motion between two consecutive grayscale
// frames. ok is false when no trackable signal was found.
type MotionEstimator interface {
	Estimate(prev, curr *image.Gray) (velocity float64, ok bool)
}

// Analyzer orchestrates the classify-then-track loop over a video clip.
type Analyzer struct {
	opener     SourceOpener
	classifier Classifier
	motion     MotionEstimator
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// New creates an Analyzer with the given stages and observability.
func New(o SourceOpener, c Classifier, m MotionEstimator, logger *slog.Logger, metrics *observability.Metrics) *Analyzer {
	return &Analyzer{
		opener:     o,
		classifier: c,
		motion:     m,
		logger:     logger,
		metrics:    metrics,
	}
}

// Analyze runs the full pipeline over the video at path: decode frames, score
// each with the classifier, track motion on frames above the flood threshold,
// then reduce both series into a risk verdict. The frame source is closed on
// every return path.
func (a *Analyzer) Analyze(ctx context.Context, path string) (domain.AnalysisResult, error) {
	start := time.Now()

	result, frames, err := a.analyze(ctx, path)
	if err != nil {
		a.metrics.AnalysisErrors.WithLabelValues(errorKind(err)).Inc()
		a.logger.Error("analysis failed", "path", path, "frames", frames, "error", err)
		return domain.AnalysisResult{}, err
	}

	elapsed := time.Since(start)
	a.metrics.AnalysesCompleted.WithLabelValues(result.RiskLevel.MetricLabel()).Inc()
	a.metrics.AnalysisDuration.Observe(elapsed.Seconds())
	a.metrics.ClipFrames.Observe(float64(frames))
	a.logger.Info("analysis complete",
		"path", path,
		"frames", frames,
		"flood_probability", result.FloodProbability,
		"average_velocity", result.AverageVelocity,
		"risk_level", result.RiskLevel,
		"duration", elapsed,
	)
	return result, nil
}

func (a *Analyzer) analyze(ctx context.Context, path string) (domain.AnalysisResult, int, error) {
	source, err := a.opener.Open(ctx, path)
	if err != nil {
		if errors.Is(err, domain.ErrSourceUnavailable) {
			return domain.AnalysisResult{}, 0, err
		}
		return domain.AnalysisResult{}, 0, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}
	defer source.Close()

	var (
		scores     []float64
		velocities []float64
		prevGray   *image.Gray
	)

	for {
		if err := ctx.Err(); err != nil {
			return domain.AnalysisResult{}, len(scores), err
		}

		frame, err := source.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.AnalysisResult{}, len(scores), err
		}

		p, err := a.classifier.Classify(ctx, frame)
		if err != nil {
			return domain.AnalysisResult{}, len(scores), err
		}
		if p < 0 || p > 1 {
			return domain.AnalysisResult{}, len(scores), &domain.AdapterError{
				Adapter: "classifier",
				Err:     fmt.Errorf("probability %v out of range", p),
			}
		}
		scores = append(scores, p)
		a.metrics.FramesClassified.Inc()

		gray := domain.ToGray(frame.Image)
		if p > domain.FloodProbabilityThreshold && prevGray != nil {
			if v, ok := a.motion.Estimate(prevGray, gray); ok {
				velocities = append(velocities, v)
				a.metrics.MotionSamples.Inc()
			}
		}
		prevGray = gray
	}

	if len(scores) == 0 {
		return domain.AnalysisResult{}, 0, domain.ErrEmptyStream
	}

	result, err := domain.Reduce(scores, velocities)
	if err != nil {
		return domain.AnalysisResult{}, len(scores), err
	}
	return result, len(scores), nil
}

// errorKind maps an analysis error onto a stable metric label.
func errorKind(err error) string {
	var adapterErr *domain.AdapterError
	switch {
	case errors.Is(err, domain.ErrSourceUnavailable):
		return "source_unavailable"
	case errors.Is(err, domain.ErrEmptyStream):
		return "empty_stream"
	case errors.Is(err, domain.ErrSceneRejected):
		return "scene_rejected"
	case errors.As(err, &adapterErr):
		return "adapter_failure"
	default:
		return "other"
	}
}
