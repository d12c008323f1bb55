// Package config loads, normalizes, and validates dadcam configuration data.
//
// Settings are layered: repository defaults, then the system file
// (/etc/dadcam/dadcam.conf), then the per-user file
// (~/.config/dadcam/dadcam.conf), then an optional file named on the command
// line. Each layer only overrides the keys it sets. Paths are expanded
// (including tilde shortcuts) and environment fallbacks such as
// DADCAM_DESTINATION are honoured after the files are read.
//
// Always obtain settings through this package so the pipeline receives
// sanitized paths, a canonical class list, and clear validation errors.
package config
