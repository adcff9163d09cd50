package vsmeta

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"io/fs"

	"github.com/mediascout/mediascout/pkg/scanner"
)

// Synology writes .vsmeta sidecars in protobuf wire format with artwork held
// as base64 text fields. Field numbers differ between the movie and episode
// layouts, so extraction walks every length-delimited field and keeps those
// that decode to image data. Episode sidecars carry the episode image first,
// then the show poster, then the backdrop.

const maxDepth = 4

// minimum payload worth attempting to decode as an image
const minImagePayload = 128

// Extractor pulls embedded artwork out of .vsmeta sidecars.
type Extractor struct {
	fsys fs.FS
}

func NewExtractor(fsys fs.FS) *Extractor {
	return &Extractor{fsys: fsys}
}

func (e *Extractor) Extract(ctx context.Context, path string) (scanner.Artwork, error) {
	var art scanner.Artwork

	data, err := fs.ReadFile(e.fsys, path)
	if err != nil {
		return art, err
	}

	images := collectImages(data, 0)
	if len(images) > 0 {
		art.Thumb = images[0]
	}
	if len(images) > 1 {
		art.Poster = images[1]
	}
	if len(images) > 2 {
		art.Fanart = images[2]
	}
	return art, nil
}

// collectImages walks a protobuf wire message in order and returns every
// embedded image it can decode. Malformed input terminates the walk of the
// current message without failing; whatever was found so far stands.
func collectImages(b []byte, depth int) [][]byte {
	var images [][]byte

	for len(b) > 0 {
		key, n := binary.Uvarint(b)
		if n <= 0 {
			return images
		}
		b = b[n:]

		switch key & 7 {
		case 0: // varint
			_, n := binary.Uvarint(b)
			if n <= 0 {
				return images
			}
			b = b[n:]
		case 1: // fixed64
			if len(b) < 8 {
				return images
			}
			b = b[8:]
		case 5: // fixed32
			if len(b) < 4 {
				return images
			}
			b = b[4:]
		case 2: // length-delimited
			l, n := binary.Uvarint(b)
			if n <= 0 || uint64(len(b)-n) < l {
				return images
			}
			payload := b[n : n+int(l)]
			b = b[n+int(l):]

			if img, ok := decodeImage(payload); ok {
				images = append(images, img)
			} else if depth < maxDepth {
				images = append(images, collectImages(payload, depth+1)...)
			}
		default:
			return images
		}
	}

	return images
}

var (
	jpegMagic = []byte{0xff, 0xd8, 0xff}
	pngMagic  = []byte{0x89, 'P', 'N', 'G'}
)

// decodeImage reports whether the payload is a base64 encoded JPEG or PNG
// and returns the decoded bytes. Synology wraps the base64 text at 76
// columns, so embedded newlines are tolerated.
func decodeImage(payload []byte) ([]byte, bool) {
	if len(payload) < minImagePayload {
		return nil, false
	}

	compact := make([]byte, 0, len(payload))
	for _, c := range payload {
		if c == '\n' || c == '\r' {
			continue
		}
		compact = append(compact, c)
	}

	decoded := make([]byte, base64.StdEncoding.DecodedLen(len(compact)))
	n, err := base64.StdEncoding.Decode(decoded, compact)
	if err != nil {
		return nil, false
	}
	decoded = decoded[:n]

	if bytes.HasPrefix(decoded, jpegMagic) || bytes.HasPrefix(decoded, pngMagic) {
		return decoded, true
	}
	return nil, false
}
