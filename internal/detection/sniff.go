package detection

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/h2non/filetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/mesler1/dadcam/internal/media"
)

// sniffLen covers the longest signature filetype inspects.
const sniffLen = 262

// checkContent compares the file header with the kind its extension claims.
// Unrecognised headers pass; a header recognised as a different kind of
// content (a PDF named .jpg, a still image named .mp4) is rejected.
func checkContent(head []byte, claimed media.Type) error {
	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		return nil
	}
	switch claimed {
	case media.Image:
		if filetype.IsImage(head) {
			return nil
		}
	case media.Video:
		if filetype.IsVideo(head) {
			return nil
		}
	}
	return fmt.Errorf("content_mismatch: %s", kind.MIME.Value)
}

func readHead(r io.Reader) ([]byte, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, err
	}
	return head[:n], nil
}

func decodeImage(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	return img, err
}
