package detection

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"iter"
	"os/exec"
	"strings"
	"sync/atomic"

	"github.com/mesler1/dadcam/internal/media/ffprobe"
)

// Frame is one decoded video frame. Index counts every decoded frame from 0,
// not only sampled ones.
type Frame struct {
	Index int
	Image image.Image
}

// FrameSource yields every Nth decoded frame of a video, frame 0 included.
//
// The returned sequence is lazy, finite, and single-use: a second iteration
// yields ErrSequenceConsumed. Decoder resources are released when iteration
// ends, whether the stream was exhausted, the consumer stopped early, or an
// error was yielded.
type FrameSource interface {
	Sample(ctx context.Context, path string, every int) iter.Seq2[Frame, error]
}

// FFmpegSource decodes frames by piping raw RGB24 video out of ffmpeg.
type FFmpegSource struct {
	FFmpeg  string
	FFprobe string
}

// NewFFmpegSource constructs a frame source using the given binaries.
func NewFFmpegSource(ffmpegBinary, ffprobeBinary string) *FFmpegSource {
	return &FFmpegSource{FFmpeg: ffmpegBinary, FFprobe: ffprobeBinary}
}

// Sample implements FrameSource.
func (s *FFmpegSource) Sample(ctx context.Context, path string, every int) iter.Seq2[Frame, error] {
	if every <= 0 {
		every = 1
	}
	var consumed atomic.Bool
	return func(yield func(Frame, error) bool) {
		if !consumed.CompareAndSwap(false, true) {
			yield(Frame{}, ErrSequenceConsumed)
			return
		}

		probe, err := ffprobe.Inspect(ctx, s.FFprobe, path)
		if err != nil {
			yield(Frame{}, fmt.Errorf("video_open_error: %w", err))
			return
		}
		stream, err := probe.VideoStream()
		if err != nil {
			yield(Frame{}, fmt.Errorf("video_open_error: %w", err))
			return
		}

		decodeCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		binary := strings.TrimSpace(s.FFmpeg)
		if binary == "" {
			binary = "ffmpeg"
		}
		cmd := exec.CommandContext(decodeCtx, binary,
			"-v", "error", "-nostdin", "-noautorotate",
			"-i", path,
			"-map", "0:v:0",
			"-f", "rawvideo", "-pix_fmt", "rgb24", "-",
		)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			yield(Frame{}, fmt.Errorf("video_open_error: %w", err))
			return
		}
		if err := cmd.Start(); err != nil {
			yield(Frame{}, fmt.Errorf("video_open_error: %w", err))
			return
		}
		waited := false
		defer func() {
			if !waited {
				cancel()
				_ = cmd.Wait()
			}
		}()

		width, height := stream.Width, stream.Height
		buf := make([]byte, width*height*3)
		for index := 0; ; index++ {
			_, err := io.ReadFull(stdout, buf)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				yield(Frame{}, fmt.Errorf("frame_decode_error: frame %d: %w", index, err))
				return
			}
			if index%every != 0 {
				continue
			}
			if !yield(Frame{Index: index, Image: rgbToImage(buf, width, height)}, nil) {
				return
			}
		}

		waited = true
		if err := cmd.Wait(); err != nil {
			msg := strings.TrimSpace(stderr.String())
			yield(Frame{}, fmt.Errorf("frame_decode_error: ffmpeg: %w: %s", err, msg))
		}
	}
}

func rgbToImage(rgb []byte, width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for src, dst := 0, 0; src+2 < len(rgb); src, dst = src+3, dst+4 {
		img.Pix[dst] = rgb[src]
		img.Pix[dst+1] = rgb[src+1]
		img.Pix[dst+2] = rgb[src+2]
		img.Pix[dst+3] = 0xff
	}
	return img
}
