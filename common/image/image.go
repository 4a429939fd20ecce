// Package image probes inline base64 images. The gateway never fetches
// remote content, so every helper operates on data URLs or raw base64
// payloads already present in the request body.
package image

import (
	"bytes"
	"encoding/base64"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"regexp"
	"strings"
	"sync"

	"github.com/Laisky/errors/v2"
	_ "golang.org/x/image/webp"
)

var dataURLPattern = regexp.MustCompile(`^data:([^;,]+);base64,(.*)$`)

// ParseDataURL splits a "data:<media-type>;base64,<payload>" URL into its
// media type and decoded payload.
func ParseDataURL(url string) (mediaType string, data []byte, err error) {
	matches := dataURLPattern.FindStringSubmatch(url)
	if len(matches) != 3 {
		return "", nil, errors.New("not a base64 data URL")
	}
	data, err = base64.StdEncoding.DecodeString(matches[2])
	if err != nil {
		return "", nil, errors.Wrap(err, "decode base64 payload")
	}
	return matches[1], data, nil
}

var readerPool = sync.Pool{
	New: func() any {
		return &bytes.Reader{}
	},
}

// SizeFromBytes reads image dimensions from the header without decoding
// pixel data. PNG, JPEG, GIF and WebP are recognized.
func SizeFromBytes(data []byte) (width int, height int, err error) {
	reader := readerPool.Get().(*bytes.Reader)
	defer readerPool.Put(reader)
	reader.Reset(data)

	cfg, _, err := image.DecodeConfig(reader)
	if err != nil {
		return 0, 0, errors.Wrap(err, "decode image config")
	}
	return cfg.Width, cfg.Height, nil
}

// SizeFromBase64 reads image dimensions from a base64 payload, tolerating an
// optional data URL prefix.
func SizeFromBase64(encoded string) (width int, height int, err error) {
	if strings.HasPrefix(encoded, "data:") {
		_, data, err := ParseDataURL(encoded)
		if err != nil {
			return 0, 0, err
		}
		return SizeFromBytes(data)
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return 0, 0, errors.Wrap(err, "decode base64 payload")
	}
	return SizeFromBytes(decoded)
}
