// Package detection classifies one media file at a time against an external
// detector.
//
// Engine.Process is the only entry point the pipeline uses. It never returns
// an error and never panics: unreadable files, content that does not match
// its extension, decode failures, and detector failures all come back as a
// Result with Error set, so one bad file cannot stop a run.
//
// The detector itself sits behind the Backend interface. Open selects the
// variant once per run from configuration: the command backend drives a
// long-lived worker process over line-delimited JSON, trying the primary model
// first and the fallback model second; the none backend reports nothing.
//
// Videos are sampled through a FrameSource, a lazy single-use sequence of
// decoded frames whose decoder process is released however iteration ends.
package detection
