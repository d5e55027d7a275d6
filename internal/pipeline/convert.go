package pipeline

import (
	"fmt"

	"github.com/hszk-dev/framestream/internal/decoder"
	"github.com/hszk-dev/framestream/internal/domain/model"
)

// FrameConverter copies a raw picture into a pooled model.Frame.
func FrameConverter(raw decoder.RawFrame) (*model.Frame, error) {
	f, err := model.NewFrame(raw.Index, raw.Timestamp, raw.Width, raw.Height)
	if err != nil {
		return nil, err
	}
	if len(raw.Data) != len(f.Pix) {
		_ = f.Release()
		return nil, fmt.Errorf("frame %d: got %d bytes, want %d", raw.Index, len(raw.Data), len(f.Pix))
	}
	copy(f.Pix, raw.Data)
	return f, nil
}
