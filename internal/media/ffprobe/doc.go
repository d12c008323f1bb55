// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// The frame sampler uses it to learn a clip's frame geometry before decoding
// raw frames, and the doctor command uses it to confirm ffprobe runs.
package ffprobe
