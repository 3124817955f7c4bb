package domain

import (
	"errors"
	"fmt"
)

// Analysis failures are fatal to the run and never retried. The three
// sentinels are input-driven: the clip itself is unusable or unsuitable.
var (
	// ErrSourceUnavailable means the video resource could not be opened for
	// decoding.
	ErrSourceUnavailable = errors.New("could not read video stream")

	// ErrEmptyStream means the source opened but yielded zero decodable
	// frames.
	ErrEmptyStream = errors.New("no frames decoded from video")

	// ErrSceneRejected means the aggregate flood probability fell below the
	// water-content floor.
	ErrSceneRejected = errors.New("scene appears non-water")
)

// AdapterError wraps a fault inside the classifier, motion, or video
// adapters: an unready model, a malformed result, a broken decoder. Distinct
// from the input-driven sentinels so callers can map it to an internal fault
// rather than a bad request.
type AdapterError struct {
	Adapter string // "classifier", "motion", or "video"
	Err     error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s adapter: %v", e.Adapter, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }
