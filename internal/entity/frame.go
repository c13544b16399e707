package entity

import "time"

const FrameChannels = 3

// Frame holds packed RGB pixels, row-major, Width*Height*FrameChannels bytes.
type Frame struct {
	Width      int
	Height     int
	Pixels     []byte
	Sequence   uint64
	CapturedAt time.Time
}

func (f *Frame) Empty() bool {
	return f == nil || f.Width <= 0 || f.Height <= 0 || len(f.Pixels) < f.Width*f.Height*FrameChannels
}
