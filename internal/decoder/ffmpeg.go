package decoder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// FFmpegConfig holds configuration for the FFmpeg decoder.
type FFmpegConfig struct {
	// FFmpegPath is the path to the ffmpeg binary.
	// If empty, "ffmpeg" will be used (assumes it's in PATH).
	FFmpegPath string

	// FFprobePath is the path to the ffprobe binary.
	// If empty, "ffprobe" will be used.
	FFprobePath string

	// Threads limits ffmpeg decoder threads. 0 lets ffmpeg decide.
	Threads int
}

// DefaultFFmpegConfig returns an FFmpegConfig with defaults.
func DefaultFFmpegConfig() FFmpegConfig {
	return FFmpegConfig{
		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",
	}
}

var (
	ErrNoVideoStream = errors.New("no video stream found")
	ErrInvalidProbe  = errors.New("unusable probe output")
)

// maxStderr bounds the ffmpeg diagnostics kept for error messages.
const maxStderr = 4096

// FFmpegDecoder implements Decoder using the ffmpeg and ffprobe CLIs.
type FFmpegDecoder struct {
	config FFmpegConfig
}

// Compile-time verification that FFmpegDecoder implements Decoder.
var _ Decoder = (*FFmpegDecoder)(nil)

// NewFFmpegDecoder creates a new FFmpeg-based decoder.
func NewFFmpegDecoder(cfg FFmpegConfig) *FFmpegDecoder {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	return &FFmpegDecoder{
		config: cfg,
	}
}

// ffprobeOutput mirrors the subset of `ffprobe -of json` used here.
type ffprobeOutput struct {
	Streams []struct {
		Width         int    `json:"width"`
		Height        int    `json:"height"`
		AvgFrameRate  string `json:"avg_frame_rate"`
		RFrameRate    string `json:"r_frame_rate"`
		NbFrames      string `json:"nb_frames"`
		NbReadPackets string `json:"nb_read_packets"`
		Duration      string `json:"duration"`
	} `json:"streams"`
}

// Probe runs ffprobe on the first video stream.
func (d *FFmpegDecoder) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	if err := validateInput(path); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, d.config.FFprobePath, buildProbeArgs(path)...)
	var stderr bytes.Buffer
	cmd.Stderr = &limitedWriter{buf: &stderr, max: maxStderr}

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("probe cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("ffprobe execution failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return parseProbe(out)
}

func buildProbeArgs(path string) []string {
	return []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-count_packets",
		"-show_entries", "stream=width,height,avg_frame_rate,r_frame_rate,nb_frames,nb_read_packets,duration",
		"-of", "json",
		path,
	}
}

func parseProbe(data []byte) (*ProbeResult, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProbe, err)
	}
	if len(out.Streams) == 0 {
		return nil, ErrNoVideoStream
	}
	s := out.Streams[0]

	fps := parseRate(s.AvgFrameRate)
	if fps <= 0 {
		fps = parseRate(s.RFrameRate)
	}

	var duration time.Duration
	if secs, err := strconv.ParseFloat(s.Duration, 64); err == nil && secs > 0 {
		duration = time.Duration(secs * float64(time.Second))
	}

	count := parseCount(s.NbFrames)
	if count <= 0 {
		count = parseCount(s.NbReadPackets)
	}
	if count <= 0 && fps > 0 && duration > 0 {
		count = int(math.Round(duration.Seconds() * fps))
	}

	if count <= 0 || fps <= 0 || s.Width <= 0 || s.Height <= 0 {
		return nil, fmt.Errorf("%w: frames=%d fps=%v size=%dx%d", ErrInvalidProbe, count, fps, s.Width, s.Height)
	}

	return &ProbeResult{
		FrameCount: count,
		FPS:        fps,
		Width:      s.Width,
		Height:     s.Height,
		Duration:   duration,
	}, nil
}

// parseRate parses ffprobe rationals such as "30000/1001".
func parseRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !ok {
		return n
	}
	dv, err := strconv.ParseFloat(den, 64)
	if err != nil || dv == 0 {
		return 0
	}
	return n / dv
}

func parseCount(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// Decode streams RGBA frames from ffmpeg's stdout. The picture size is
// taken from opts, or from the stream properties when opts leaves it unset.
func (d *FFmpegDecoder) Decode(ctx context.Context, path string, opts DecodeOptions, fn func(RawFrame) error) error {
	info, err := d.streamInfo(ctx, path, opts)
	if err != nil {
		return err
	}
	width, height := info.Width, info.Height
	if opts.Width > 0 && opts.Height > 0 {
		width, height = opts.Width, opts.Height
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, d.config.FFmpegPath, d.buildDecodeArgs(path, opts)...)
	var stderr bytes.Buffer
	cmd.Stderr = &limitedWriter{buf: &stderr, max: maxStderr}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	_, readErr := readFrames(stdout, width, height, info.FPS, fn)
	if readErr != nil {
		// Stop ffmpeg before waiting so a blocked write cannot hang Wait.
		cancel()
	}
	waitErr := cmd.Wait()

	switch {
	case readErr != nil:
		return readErr
	case waitErr != nil:
		if ctx.Err() != nil {
			return fmt.Errorf("decoding cancelled: %w", ctx.Err())
		}
		return fmt.Errorf("ffmpeg execution failed: %w: %s", waitErr, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// streamInfo returns opts.Probe, running ffprobe only when it is unset.
func (d *FFmpegDecoder) streamInfo(ctx context.Context, path string, opts DecodeOptions) (*ProbeResult, error) {
	if opts.Probe != nil {
		return opts.Probe, nil
	}
	return d.Probe(ctx, path)
}

func (d *FFmpegDecoder) buildDecodeArgs(path string, opts DecodeOptions) []string {
	args := []string{"-v", "error"}
	if d.config.Threads > 0 {
		args = append(args, "-threads", strconv.Itoa(d.config.Threads))
	}
	args = append(args, "-i", path, "-map", "0:v:0")
	if opts.Width > 0 && opts.Height > 0 {
		args = append(args, "-vf", fmt.Sprintf("scale=%d:%d", opts.Width, opts.Height))
	}
	return append(args,
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-fps_mode", "passthrough",
		"pipe:1",
	)
}

// readFrames splits r into fixed-size RGBA frames. A trailing partial frame
// is an error.
func readFrames(r io.Reader, width, height int, fps float64, fn func(RawFrame) error) (int, error) {
	size := width * height * 4
	if size <= 0 {
		return 0, fmt.Errorf("invalid frame size %dx%d", width, height)
	}

	n := 0
	for {
		buf := make([]byte, size)
		if _, err := io.ReadFull(r, buf); err != nil {
			if errors.Is(err, io.EOF) {
				return n, nil
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return n, fmt.Errorf("truncated frame %d", n)
			}
			return n, fmt.Errorf("read frame %d: %w", n, err)
		}

		var ts time.Duration
		if fps > 0 {
			ts = time.Duration(float64(n) * float64(time.Second) / fps)
		}
		if err := fn(RawFrame{Index: n, Timestamp: ts, Width: width, Height: height, Data: buf}); err != nil {
			return n, err
		}
		n++
	}
}

// validateInput checks if the input file exists and is readable.
func validateInput(inputPath string) error {
	info, err := os.Stat(inputPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("input file does not exist: %s", inputPath)
		}
		return fmt.Errorf("failed to access input file: %w", err)
	}

	if info.IsDir() {
		return fmt.Errorf("input path is a directory, expected a file: %s", inputPath)
	}

	return nil
}

// limitedWriter keeps the first max bytes written to it.
type limitedWriter struct {
	buf *bytes.Buffer
	max int
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	if room := w.max - w.buf.Len(); room > 0 {
		if len(p) > room {
			w.buf.Write(p[:room])
		} else {
			w.buf.Write(p)
		}
	}
	return len(p), nil
}
