package video

import (
	"bufio"
	"bytes"
	"io"
)

// JPEG stream markers.
const (
	markerPrefix = 0xFF
	markerSOI    = 0xD8
	markerEOI    = 0xD9
)

// mjpegScanner splits a concatenated JPEG stream (ffmpeg's image2pipe
// output) into individual images by scanning for SOI/EOI marker pairs.
type mjpegScanner struct {
	r *bufio.Reader
}

func newMJPEGScanner(r io.Reader) *mjpegScanner {
	return &mjpegScanner{r: bufio.NewReaderSize(r, 64<<10)}
}

// next returns the bytes of the next complete JPEG, SOI through EOI
// inclusive. io.EOF means a clean end between images; io.ErrUnexpectedEOF
// means the stream ended inside an image.
func (s *mjpegScanner) next() ([]byte, error) {
	if err := s.seekSOI(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteByte(markerPrefix)
	buf.WriteByte(markerSOI)

	prev := byte(0)
	for {
		b, err := s.r.ReadByte()
		if err != nil {
			if err == io.EOF {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		buf.WriteByte(b)
		if prev == markerPrefix && b == markerEOI {
			return buf.Bytes(), nil
		}
		prev = b
	}
}

// seekSOI discards bytes until an FFD8 marker. io.EOF if the stream ends
// first.
func (s *mjpegScanner) seekSOI() error {
	prev := byte(0)
	for {
		b, err := s.r.ReadByte()
		if err != nil {
			return err
		}
		if prev == markerPrefix && b == markerSOI {
			return nil
		}
		prev = b
	}
}
