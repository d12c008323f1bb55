package detection

import (
	"context"
	"errors"
	"image"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrNoBackend indicates no detector variant could be started.
	ErrNoBackend = errors.New("no detection backend available")
	// ErrSequenceConsumed is yielded when a frame sequence is iterated twice.
	ErrSequenceConsumed = errors.New("frame sequence already consumed")
)

// Result is the outcome of classifying one media file.
//
// Labels are unique and ordered by first sighting; Confidences is parallel to
// Labels. Detected is true exactly when Labels is non-empty. When Error is
// set, Detected is false and Labels is empty.
type Result struct {
	Detected    bool
	Labels      []string
	Confidences []float64
	// Frames lists sampled frame indices with at least one hit (video only).
	Frames []int
	Error  string
}

// Failed builds an error result.
func Failed(cause string) Result {
	return Result{Error: cause}
}

// Summary renders the result for logs.
func (r Result) Summary() string {
	if r.Error != "" {
		return "ERROR: " + r.Error
	}
	if !r.Detected {
		return "no detection"
	}
	parts := make([]string, len(r.Labels))
	for i, label := range r.Labels {
		parts[i] = label + " (" + formatConfidence(r.Confidences[i]) + ")"
	}
	return strings.Join(parts, ", ")
}

// Hit is one raw detection reported by a backend.
type Hit struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Input is what a backend classifies: a file on disk, a decoded image, or both.
// Image files carry both; sampled video frames carry only Image.
type Input struct {
	Path  string
	Image image.Image
}

// Backend is a detector variant. Implementations are chosen once per run.
type Backend interface {
	Name() string
	Detect(ctx context.Context, in Input) ([]Hit, error)
	Close() error
}

func roundConfidence(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func formatConfidence(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
