package framestore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/hszk-dev/framestream/internal/domain/model"
	"github.com/pierrec/lz4/v4"
)

// Encoded frame layout (big-endian):
//
//	version  uint8
//	flags    uint8   bit 0: payload is an lz4 block
//	index    int64
//	ts       int64   nanoseconds
//	width    uint32
//	height   uint32
//	payload  []byte  RGBA pixels, raw or compressed
const (
	codecVersion   = 1
	headerSize     = 1 + 1 + 8 + 8 + 4 + 4
	flagCompressed = 1 << 0
)

var ErrCorruptFrame = errors.New("corrupt encoded frame")

// EncodeFrame serializes f, compressing the pixels when that saves space.
func EncodeFrame(f *model.Frame) ([]byte, error) {
	if f.Pix == nil {
		return nil, model.ErrFrameReleased
	}

	buf := make([]byte, headerSize+lz4.CompressBlockBound(len(f.Pix)))
	n, err := lz4.CompressBlock(f.Pix, buf[headerSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("compress frame %d: %w", f.Index, err)
	}

	var flags byte
	if n > 0 && n < len(f.Pix) {
		flags |= flagCompressed
		buf = buf[:headerSize+n]
	} else {
		buf = append(buf[:headerSize], f.Pix...)
	}

	buf[0] = codecVersion
	buf[1] = flags
	binary.BigEndian.PutUint64(buf[2:10], uint64(f.Index))
	binary.BigEndian.PutUint64(buf[10:18], uint64(f.Timestamp))
	binary.BigEndian.PutUint32(buf[18:22], uint32(f.Width))
	binary.BigEndian.PutUint32(buf[22:26], uint32(f.Height))
	return buf, nil
}

// DecodeFrame rebuilds a frame from EncodeFrame output. The returned frame
// holds a single reference owned by the caller.
func DecodeFrame(data []byte) (*model.Frame, error) {
	if len(data) < headerSize || data[0] != codecVersion {
		return nil, ErrCorruptFrame
	}

	flags := data[1]
	index := int(int64(binary.BigEndian.Uint64(data[2:10])))
	ts := time.Duration(int64(binary.BigEndian.Uint64(data[10:18])))
	width := int(binary.BigEndian.Uint32(data[18:22]))
	height := int(binary.BigEndian.Uint32(data[22:26]))

	f, err := model.NewFrame(index, ts, width, height)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptFrame, err)
	}

	payload := data[headerSize:]
	if flags&flagCompressed != 0 {
		n, err := lz4.UncompressBlock(payload, f.Pix)
		if err != nil || n != len(f.Pix) {
			_ = f.Release()
			return nil, fmt.Errorf("%w: decompress frame %d", ErrCorruptFrame, index)
		}
		return f, nil
	}

	if len(payload) != len(f.Pix) {
		_ = f.Release()
		return nil, fmt.Errorf("%w: frame %d payload size %d", ErrCorruptFrame, index, len(payload))
	}
	copy(f.Pix, payload)
	return f, nil
}
