package sorter

import (
	"github.com/mesler1/dadcam/internal/detection"
	"github.com/mesler1/dadcam/internal/media"
)

// Action is the outcome of sorting one file.
type Action string

const (
	// Moved means the file was copied, verified, and its source removed.
	Moved Action = "MOVED"
	// SkipDuplicate means an identical file already existed at the destination.
	SkipDuplicate Action = "SKIP_DUPLICATE"
	// CopyError means copying or verifying failed; the source was kept.
	CopyError Action = "COPY_ERROR"
	// DetectionError means classification failed; nothing was touched.
	DetectionError Action = "DETECTION_ERROR"
)

// Actions lists every action in report order.
var Actions = []Action{Moved, SkipDuplicate, DetectionError, CopyError}

// IsError reports whether the action marks a per-file failure.
func (a Action) IsError() bool {
	return a == CopyError || a == DetectionError
}

// Result records what happened to one file.
type Result struct {
	File      media.File
	Detection detection.Result
	Action    Action
	// DestPath is set for Moved and SkipDuplicate, and for CopyError once a
	// destination had been chosen.
	DestPath string
	// Error carries the diagnostic for CopyError and DetectionError.
	Error string
}

// Cause returns the diagnostic to show next to the action.
func (r Result) Cause() string {
	if r.Error != "" {
		return r.Error
	}
	return r.Detection.Error
}
