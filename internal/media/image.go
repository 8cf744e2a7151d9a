// Package media provides the image upload pipeline: decoding, bounded
// JPEG derivatives, paired original/thumbnail uploads and display URLs.
package media

import (
	"bytes"
	"encoding/base64"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"regexp"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"

	"github.com/youngukshin9402-code/cloud-sync-manager/internal/errors"
)

// Derivative describes one re-encoded copy of a source image.
type Derivative struct {
	MaxWidth  int
	MaxHeight int
	// Quality is the JPEG quality, 1-100.
	Quality int
}

var (
	// Original is the bounded, recompressed full-size copy.
	Original = Derivative{MaxWidth: 1920, MaxHeight: 1920, Quality: 85}
	// Thumbnail is the list-view copy.
	Thumbnail = Derivative{MaxWidth: 400, MaxHeight: 400, Quality: 70}
)

// JPEGContentType is the content type of every derivative.
const JPEGContentType = "image/jpeg"

// FitDimensions scales (w, h) down to fit within (maxW, maxH) preserving
// the aspect ratio via the limiting dimension. Images already within
// bounds are returned unchanged; nothing is ever scaled up.
func FitDimensions(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	ratio := math.Min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	nw := int(math.Round(float64(w) * ratio))
	nh := int(math.Round(float64(h) * ratio))
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	return nw, nh
}

// Decode sniffs and decodes src, applying EXIF orientation.
func Decode(src []byte) (image.Image, error) {
	if len(src) == 0 {
		return nil, errors.New(errors.ErrImageEmpty, "source image is empty")
	}
	mt := mimetype.Detect(src)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, errors.Newf(errors.ErrImageDecode, "unsupported content type %s", mt.String())
	}
	img, err := imaging.Decode(bytes.NewReader(src), imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrap(errors.ErrImageDecode, "decode "+mt.String(), err)
	}
	return img, nil
}

// Render produces the JPEG bytes of img for d.
func Render(img image.Image, d Derivative) ([]byte, error) {
	b := img.Bounds()
	w, h := FitDimensions(b.Dx(), b.Dy(), d.MaxWidth, d.MaxHeight)
	out := img
	if w != b.Dx() || h != b.Dy() {
		out = imaging.Resize(img, w, h, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.JPEG, imaging.JPEGQuality(d.Quality)); err != nil {
		return nil, errors.Wrap(errors.ErrImageEncode, "encode jpeg", err)
	}
	return buf.Bytes(), nil
}

var dataURIPattern = regexp.MustCompile(`^data:([^;,]+);base64,(.+)$`)

// IsInlineImage reports whether s is an embedded data-URI image rather
// than a storage path or URL.
func IsInlineImage(s string) bool {
	return strings.HasPrefix(s, "data:image/")
}

// ParseDataURI decodes a base64 data URI into its content type and bytes.
func ParseDataURI(s string) (string, []byte, error) {
	m := dataURIPattern.FindStringSubmatch(s)
	if m == nil {
		return "", nil, errors.New(errors.ErrImageDecode, "invalid base64 data URI")
	}
	data, err := base64.StdEncoding.DecodeString(m[2])
	if err != nil {
		return "", nil, errors.Wrap(errors.ErrImageDecode, "decode base64 payload", err)
	}
	return m[1], data, nil
}

// EncodeDataURI wraps src in a base64 data URI typed by its content.
func EncodeDataURI(src []byte) string {
	return "data:" + mimetype.Detect(src).String() + ";base64," + base64.StdEncoding.EncodeToString(src)
}
