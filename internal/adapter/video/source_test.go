package video

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/flood-risk-service/internal/domain"
)

func encodeFrame(t *testing.T, shade uint8) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 16, 16))
	for i := range img.Pix {
		img.Pix[i] = shade
	}
	// Some structure so the encoding is not degenerate.
	img.SetGray(4, 4, color.Gray{Y: 255 - shade})

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func TestScanner_SplitsConcatenatedImages(t *testing.T) {
	a := encodeFrame(t, 10)
	b := encodeFrame(t, 200)
	stream := append(append([]byte{}, a...), b...)

	s := newMJPEGScanner(bytes.NewReader(stream))

	first, err := s.next()
	require.NoError(t, err)
	assert.Equal(t, a, first)

	second, err := s.next()
	require.NoError(t, err)
	assert.Equal(t, b, second)

	_, err = s.next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestScanner_SkipsGarbagePrefix(t *testing.T) {
	frame := encodeFrame(t, 50)
	stream := append([]byte{0x00, 0x01, 0xFF, 0x00, 0xAB}, frame...)

	s := newMJPEGScanner(bytes.NewReader(stream))
	got, err := s.next()
	require.NoError(t, err)
	assert.Equal(t, frame, got)
}

func TestScanner_TornTrailingImage(t *testing.T) {
	a := encodeFrame(t, 10)
	b := encodeFrame(t, 200)
	stream := append(append([]byte{}, a...), b[:len(b)/2]...)

	s := newMJPEGScanner(bytes.NewReader(stream))

	_, err := s.next()
	require.NoError(t, err)

	_, err = s.next()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestScanner_EmptyStream(t *testing.T) {
	s := newMJPEGScanner(bytes.NewReader(nil))
	_, err := s.next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestScanner_OutputDecodes(t *testing.T) {
	frame := encodeFrame(t, 128)
	s := newMJPEGScanner(bytes.NewReader(frame))

	data, err := s.next()
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 16, img.Bounds().Dx())
}

func TestOpener_MissingFile(t *testing.T) {
	o := NewOpener("ffmpeg", slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := o.Open(context.Background(), "/nonexistent/clip.mp4")
	require.ErrorIs(t, err, domain.ErrSourceUnavailable)
}
