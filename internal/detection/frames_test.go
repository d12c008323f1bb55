package detection

import (
	"context"
	"errors"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"github.com/mesler1/dadcam/internal/testsupport"
)

// stubDecoder returns an FFmpegSource whose ffprobe reports a 2x1 video and
// whose ffmpeg emits the given number of raw bytes.
func stubDecoder(t *testing.T, rawBytes int) *FFmpegSource {
	t.Helper()
	dir := t.TempDir()
	probe := testsupport.WriteExecutable(t, dir, "ffprobe", `cat <<'JSON'
{"streams":[{"index":0,"codec_type":"video","codec_name":"h264","width":2,"height":1}],"format":{"duration":"1.0"}}
JSON
`)
	ffmpeg := testsupport.WriteExecutable(t, dir, "ffmpeg", "head -c "+strconv.Itoa(rawBytes)+" /dev/zero\n")
	return NewFFmpegSource(ffmpeg, probe)
}

func TestFFmpegSourceSamplesEveryNthFrame(t *testing.T) {
	src := stubDecoder(t, 5*6)
	var indices []int
	for frame, err := range src.Sample(context.Background(), "/card/clip.mp4", 2) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if b := frame.Image.Bounds(); b.Dx() != 2 || b.Dy() != 1 {
			t.Fatalf("unexpected frame bounds %v", b)
		}
		indices = append(indices, frame.Index)
	}
	if !reflect.DeepEqual(indices, []int{0, 2, 4}) {
		t.Fatalf("unexpected sampled indices %v", indices)
	}
}

func TestFFmpegSourceIsSingleUse(t *testing.T) {
	seq := stubDecoder(t, 6).Sample(context.Background(), "/card/clip.mp4", 1)
	for _, err := range seq {
		if err != nil {
			t.Fatalf("first pass: %v", err)
		}
	}
	var got error
	for _, err := range seq {
		got = err
	}
	if !errors.Is(got, ErrSequenceConsumed) {
		t.Fatalf("expected ErrSequenceConsumed, got %v", got)
	}
}

func TestFFmpegSourcePartialFrame(t *testing.T) {
	var got error
	count := 0
	for _, err := range stubDecoder(t, 6+3).Sample(context.Background(), "/card/clip.mp4", 1) {
		if err != nil {
			got = err
			break
		}
		count++
	}
	if count != 1 {
		t.Fatalf("expected one whole frame before the error, got %d", count)
	}
	if got == nil || !strings.HasPrefix(got.Error(), "frame_decode_error") {
		t.Fatalf("expected frame_decode_error, got %v", got)
	}
}

func TestFFmpegSourceEarlyStop(t *testing.T) {
	count := 0
	for _, err := range stubDecoder(t, 100*6).Sample(context.Background(), "/card/clip.mp4", 1) {
		if err != nil {
			t.Fatal(err)
		}
		count++
		if count == 2 {
			break
		}
	}
	if count != 2 {
		t.Fatalf("expected to stop after 2 frames, got %d", count)
	}
}

func TestFFmpegSourceProbeFailure(t *testing.T) {
	dir := t.TempDir()
	probe := testsupport.WriteExecutable(t, dir, "ffprobe", "echo 'moov atom not found' >&2\nexit 1\n")
	src := NewFFmpegSource("ffmpeg", probe)
	var got error
	for _, err := range src.Sample(context.Background(), "/card/broken.mp4", 1) {
		got = err
	}
	if got == nil || !strings.HasPrefix(got.Error(), "video_open_error") {
		t.Fatalf("expected video_open_error, got %v", got)
	}
}
