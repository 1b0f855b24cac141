package frames

import (
	"context"
	"time"

	"go.uber.org/atomic"
)

// SyntheticSource generates deterministic gradient frames with a bright
// square that moves one step per frame. It needs no camera or files.
type SyntheticSource struct {
	width  int
	height int
	limit  int
	id     atomic.Int64
	closed atomic.Bool
}

// NewSyntheticSource creates a width x height source producing limit frames,
// or an endless stream when limit is zero.
func NewSyntheticSource(width, height, limit int) *SyntheticSource {
	return &SyntheticSource{width: width, height: height, limit: limit}
}

// Next renders the next frame.
func (s *SyntheticSource) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if s.closed.Load() {
		return Frame{}, ErrEndOfStream
	}
	id := int(s.id.Inc())
	if s.limit > 0 && id > s.limit {
		return Frame{}, ErrEndOfStream
	}
	return Frame{
		ID:        id,
		Width:     s.width,
		Height:    s.height,
		Pix:       s.render(id),
		Timestamp: time.Now(),
	}, nil
}

func (s *SyntheticSource) render(id int) []byte {
	pix := make([]byte, s.width*s.height*Channels)

	side := s.height / 4
	if s.width/4 < side {
		side = s.width / 4
	}
	sx := (id * 4) % max(1, s.width-side)
	sy := s.height/2 - side/2

	for y := 0; y < s.height; y++ {
		for x := 0; x < s.width; x++ {
			i := (y*s.width + x) * Channels
			if x >= sx && x < sx+side && y >= sy && y < sy+side {
				pix[i], pix[i+1], pix[i+2] = 0xff, 0xff, 0xff
				continue
			}
			pix[i] = byte(x * 255 / max(1, s.width-1))
			pix[i+1] = byte(y * 255 / max(1, s.height-1))
			pix[i+2] = 0x40
		}
	}
	return pix
}

// Size is the configured resolution.
func (s *SyntheticSource) Size() (int, int) {
	return s.width, s.height
}

// Close ends the stream.
func (s *SyntheticSource) Close() error {
	s.closed.Store(true)
	return nil
}
