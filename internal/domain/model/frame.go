package model

import (
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"time"
)

// Direction is the playback direction over the frame index space.
type Direction int

const (
	Forward  Direction = 1
	Backward Direction = -1
)

func (d Direction) Valid() bool {
	return d == Forward || d == Backward
}

func (d Direction) Reverse() Direction {
	return -d
}

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	default:
		return "invalid"
	}
}

func (d Direction) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, ErrInvalidDirection
	}
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(text []byte) error {
	parsed, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDirection converts "forward"/"backward" (or "1"/"-1") to a Direction.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "forward", "1", "+1":
		return Forward, nil
	case "backward", "-1":
		return Backward, nil
	default:
		return 0, ErrInvalidDirection
	}
}

// NormalizeIndex maps any integer onto [0, count) with wrap-around at both ends.
func NormalizeIndex(index, count int) int {
	if count <= 0 {
		return 0
	}
	return ((index % count) + count) % count
}

var (
	ErrInvalidDirection = errors.New("direction must be forward or backward")
	ErrFrameReleased    = errors.New("frame already released")
	ErrInvalidFrameSize = errors.New("frame dimensions must be positive")
)

// BytesPerPixel is the size of one RGBA pixel.
const BytesPerPixel = 4

// Frame is one decoded RGBA picture. Its pixel buffer is pooled and
// reference counted: the buffer goes back to the pool when the last
// holder calls Release.
type Frame struct {
	Index     int
	Timestamp time.Duration
	Width     int
	Height    int
	Pix       []byte

	refs atomic.Int32
}

var pixPools sync.Map // map[int]*sync.Pool

func pixPool(size int) *sync.Pool {
	if p, ok := pixPools.Load(size); ok {
		return p.(*sync.Pool)
	}
	p, _ := pixPools.LoadOrStore(size, &sync.Pool{
		New: func() any {
			buf := make([]byte, size)
			return &buf
		},
	})
	return p.(*sync.Pool)
}

// NewFrame allocates a frame with a pooled pixel buffer. The caller holds
// the only reference.
func NewFrame(index int, ts time.Duration, width, height int) (*Frame, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidFrameSize
	}
	size := width * height * BytesPerPixel
	buf := pixPool(size).Get().(*[]byte)
	f := &Frame{
		Index:     index,
		Timestamp: ts,
		Width:     width,
		Height:    height,
		Pix:       (*buf)[:size],
	}
	f.refs.Store(1)
	return f, nil
}

// Retain adds a reference.
func (f *Frame) Retain() {
	f.refs.Add(1)
}

// Release drops a reference and recycles the pixel buffer when none remain.
func (f *Frame) Release() error {
	n := f.refs.Add(-1)
	switch {
	case n < 0:
		f.refs.Add(1)
		return ErrFrameReleased
	case n == 0:
		pix := f.Pix
		f.Pix = nil
		if pix != nil {
			pixPool(cap(pix)).Put(&pix)
		}
	}
	return nil
}

// Refs reports the current reference count.
func (f *Frame) Refs() int {
	return int(f.refs.Load())
}

// Released reports whether the pixel buffer has been recycled.
func (f *Frame) Released() bool {
	return f.refs.Load() <= 0
}

// Image exposes the pixels as an *image.RGBA without copying.
func (f *Frame) Image() *image.RGBA {
	return &image.RGBA{
		Pix:    f.Pix,
		Stride: f.Width * BytesPerPixel,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
}
