// Package media defines the media items the ingestion pipeline moves around.
package media

import (
	"path/filepath"
	"strings"
)

// Type classifies a media file by its extension.
type Type string

const (
	Image Type = "image"
	Video Type = "video"
)

var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".tiff": {},
	".tif":  {},
	".bmp":  {},
}

var videoExtensions = map[string]struct{}{
	".mp4": {},
	".mov": {},
	".avi": {},
	".mts": {},
	".m4v": {},
	".mkv": {},
}

// TypeForPath reports the media type implied by the file extension,
// compared case-insensitively.
func TypeForPath(path string) (Type, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := imageExtensions[ext]; ok {
		return Image, true
	}
	if _, ok := videoExtensions[ext]; ok {
		return Video, true
	}
	return "", false
}

// File is one candidate media file found by the scanner. It is not modified
// after the scan.
type File struct {
	// Path is the absolute source path.
	Path string
	Type Type
	Size int64
	// RelPath is relative to the resolved scan root and is the only part of the
	// source layout carried into the destination tree.
	RelPath string
}

// Name returns the base file name.
func (f File) Name() string {
	return filepath.Base(f.Path)
}
