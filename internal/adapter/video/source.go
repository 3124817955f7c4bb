// Package video decodes video files into frames by piping them through
// ffmpeg as an MJPEG stream.
package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/couchcryptid/flood-risk-service/internal/domain"
	"github.com/couchcryptid/flood-risk-service/internal/pipeline"
)

// Opener starts one ffmpeg process per video file and exposes its output as
// a frame source.
type Opener struct {
	ffmpegPath string
	logger     *slog.Logger
}

// NewOpener creates an Opener that invokes ffmpegPath.
func NewOpener(ffmpegPath string, logger *slog.Logger) *Opener {
	return &Opener{ffmpegPath: ffmpegPath, logger: logger}
}

// Open verifies path exists and starts decoding it. The returned source owns
// the ffmpeg process; Close must be called on every path.
func (o *Opener) Open(ctx context.Context, path string) (pipeline.FrameSource, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}

	cmd := exec.CommandContext(ctx, o.ffmpegPath,
		"-hide_banner",
		"-loglevel", "error",
		"-i", path,
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "5",
		"-",
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &domain.AdapterError{Adapter: "video", Err: err}
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: starting %s: %v", domain.ErrSourceUnavailable, o.ffmpegPath, err)
	}

	o.logger.Debug("decoder started", "path", path, "pid", cmd.Process.Pid)

	return &fileSource{
		cmd:     cmd,
		scanner: newMJPEGScanner(stdout),
		stderr:  &stderr,
	}, nil
}

// fileSource reads frames from a running ffmpeg process.
type fileSource struct {
	cmd     *exec.Cmd
	scanner *mjpegScanner
	stderr  *bytes.Buffer
	index   int

	waitOnce sync.Once
	waitErr  error
}

// Next decodes the next frame. A torn trailing image is treated as end of
// stream, matching decoder behavior on truncated files.
func (s *fileSource) Next() (domain.Frame, error) {
	data, err := s.scanner.next()
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return domain.Frame{}, s.finish()
	}
	if err != nil {
		return domain.Frame{}, &domain.AdapterError{Adapter: "video", Err: err}
	}

	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return domain.Frame{}, &domain.AdapterError{Adapter: "video", Err: fmt.Errorf("frame %d: %w", s.index, err)}
	}

	frame := domain.Frame{Index: s.index, JPEG: data, Image: img}
	s.index++
	return frame, nil
}

// finish reaps ffmpeg and translates its exit status. A nonzero exit with no
// frames decoded means the input was not a readable video.
func (s *fileSource) finish() error {
	s.reap()
	if s.waitErr != nil && s.index == 0 {
		msg := strings.TrimSpace(s.stderr.String())
		if msg == "" {
			msg = s.waitErr.Error()
		}
		return fmt.Errorf("%w: %s", domain.ErrSourceUnavailable, msg)
	}
	return io.EOF
}

func (s *fileSource) reap() {
	s.waitOnce.Do(func() {
		s.waitErr = s.cmd.Wait()
	})
}

// Close kills ffmpeg if it is still running and reaps it.
func (s *fileSource) Close() error {
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	s.reap()
	return nil
}
