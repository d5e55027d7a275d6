package decoder

import (
	"context"
	"time"
)

// ProbeResult describes the video stream of a media file.
type ProbeResult struct {
	// FrameCount is the number of decodable frames.
	FrameCount int
	// FPS is the average frame rate.
	FPS float64
	// Width and Height are the native picture size in pixels.
	Width  int
	Height int
	// Duration is the stream duration.
	Duration time.Duration
}

// RawFrame is one decoded picture in RGBA layout.
type RawFrame struct {
	Index     int
	Timestamp time.Duration
	Width     int
	Height    int
	Data      []byte
}

// DecodeOptions controls the decoded picture size.
type DecodeOptions struct {
	// Width and Height scale the output. Zero keeps the native size.
	Width  int
	Height int
	// Probe carries stream properties already read by Probe. When nil the
	// decoder probes the file itself.
	Probe *ProbeResult
}

// Decoder turns a media file into raw frames.
// Implementations should handle demuxing and decoding of the first video stream.
type Decoder interface {
	// Probe reads the stream properties of the media at path without decoding it.
	Probe(ctx context.Context, path string) (*ProbeResult, error)

	// Decode decodes every frame of the media at path in presentation order
	// and calls fn for each one. fn owns the frame's Data. Returning an error
	// from fn stops decoding and is returned from Decode.
	Decode(ctx context.Context, path string, opts DecodeOptions, fn func(RawFrame) error) error
}
