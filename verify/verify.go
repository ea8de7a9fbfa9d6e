// Package verify checks a captured browser screenshot against the
// regions a stimulus was generated for: each recorded region is cropped
// out, trimmed down to its drawn content and hashed, and the sorted
// per-region hashes are folded into one combined digest. Two captures
// of the same stimulus match iff every region rendered identically.
package verify

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"sort"
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/kenaz/spatial"
	xdraw "golang.org/x/image/draw"
)

const (
	// ErrTypeInvalidImage is returned when an upload cannot be decoded.
	ErrTypeInvalidImage = "verify_invalid_image"

	// nearWhiteThreshold separates foreground from background when a
	// capture carries no alpha information. Anything darker counts as
	// content.
	nearWhiteThreshold = 245
)

// TrimMode selects how a cropped region is tightened before hashing.
type TrimMode int

const (
	// TrimAlpha trims fully transparent borders, the mode for captures
	// drawn on a transparent canvas.
	TrimAlpha TrimMode = iota

	// TrimNearWhite falls back to a near-white luminance mask when the
	// alpha channel carries no usable bounds, the mode for text rows
	// rendered on a light background.
	TrimNearWhite
)

// DecodeDataURL decodes a browser capture. Both raw base64 payloads
// and full data URLs ("data:image/png;base64,...") are accepted.
func DecodeDataURL(data []byte) (image.Image, error) {
	payload := string(data)
	if strings.HasPrefix(payload, "data:image") {
		i := strings.IndexByte(payload, ',')
		if i < 0 {
			return nil, errors.New("data url carries no payload").
				WithType(ErrTypeInvalidImage)
		}
		payload = payload[i+1:]
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, errors.New("decoding image payload failed").
			WithType(ErrTypeInvalidImage).
			Wrap(err)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.New("decoding image failed").
			WithType(ErrTypeInvalidImage).
			Wrap(err)
	}
	return img, nil
}

// toNRGBA normalizes any decoded image into premultiplication-free
// RGBA so pixel hashing is independent of the source encoding.
func toNRGBA(img image.Image) *image.NRGBA {
	if m, ok := img.(*image.NRGBA); ok && m.Bounds().Min == (image.Point{}) {
		return m
	}

	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Copy(dst, image.Point{}, img, b, xdraw.Src, nil)
	return dst
}

// crop clips the box against the image bounds and copies the region
// out.
func crop(m *image.NRGBA, box spatial.AABB) *image.NRGBA {
	r := image.Rect(
		int(math.Floor(box.X0)),
		int(math.Floor(box.Y0)),
		int(math.Ceil(box.X1)),
		int(math.Ceil(box.Y1)),
	).Intersect(m.Bounds())

	dst := image.NewNRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	xdraw.Copy(dst, image.Point{}, m, r, xdraw.Src, nil)
	return dst
}

// alphaBounds returns the bounding rectangle of all non-transparent
// pixels.
func alphaBounds(m *image.NRGBA) (image.Rectangle, bool) {
	return contentBounds(m, func(x, y int) bool {
		return m.Pix[m.PixOffset(x, y)+3] != 0
	})
}

// luminanceBounds returns the bounding rectangle of all pixels darker
// than the threshold.
func luminanceBounds(m *image.NRGBA, threshold uint8) (image.Rectangle, bool) {
	return contentBounds(m, func(x, y int) bool {
		o := m.PixOffset(x, y)
		r, g, b := int(m.Pix[o]), int(m.Pix[o+1]), int(m.Pix[o+2])
		// ITU-R 601 luma, the same weighting PIL uses for grayscale.
		luma := (r*299 + g*587 + b*114) / 1000
		return luma < int(threshold)
	})
}

func contentBounds(m *image.NRGBA, content func(x, y int) bool) (image.Rectangle, bool) {
	b := m.Bounds()
	found := false
	r := image.Rectangle{}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if !content(x, y) {
				continue
			}
			if !found {
				r = image.Rect(x, y, x+1, y+1)
				found = true
				continue
			}
			if x < r.Min.X {
				r.Min.X = x
			}
			if x+1 > r.Max.X {
				r.Max.X = x + 1
			}
			if y < r.Min.Y {
				r.Min.Y = y
			}
			r.Max.Y = y + 1
		}
	}
	return r, found
}

// tighten trims the region down to its drawn content. An empty region
// is returned unchanged.
func tighten(m *image.NRGBA, mode TrimMode) *image.NRGBA {
	r, ok := alphaBounds(m)
	switch mode {
	case TrimAlpha:
		if !ok {
			return m
		}
	case TrimNearWhite:
		if !ok || r == m.Bounds() {
			r, ok = luminanceBounds(m, nearWhiteThreshold)
			if !ok {
				return m
			}
		}
	}

	dst := image.NewNRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	xdraw.Copy(dst, image.Point{}, m, r, xdraw.Src, nil)
	return dst
}

// hashPixels digests the raw pixel rows of the region.
func hashPixels(m *image.NRGBA) string {
	h := sha256.New()
	b := m.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		o := m.PixOffset(b.Min.X, y)
		h.Write(m.Pix[o : o+b.Dx()*4])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// HashRegions crops, trims and hashes every recorded region of a
// capture, in region order.
func HashRegions(img image.Image, boxes []spatial.AABB, mode TrimMode) []string {
	m := toNRGBA(img)

	hashes := make([]string, 0, len(boxes))
	for _, box := range boxes {
		region := tighten(crop(m, box), mode)
		hashes = append(hashes, hashPixels(region))
	}
	return hashes
}

// CombinedHash folds per-region hashes into one digest. The hashes are
// sorted first, so the result does not depend on region order.
func CombinedHash(hashes []string) string {
	sorted := make([]string, len(hashes))
	copy(sorted, hashes)
	sort.Strings(sorted)

	sum := sha256.Sum256([]byte(strings.Join(sorted, "")))
	return hex.EncodeToString(sum[:])
}
