package transform

import (
	"bytes"
	"image"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
)

// OverrideTable remaps EXIF orientation codes per camera make, for brands
// known to write nonstandard values. Keys are lowercased substrings of the
// EXIF Make tag; values map stored code -> effective code. An empty table
// applies the standard interpretation everywhere.
type OverrideTable map[string]map[int]int

// remap returns the effective orientation code for a raw code and brand.
func (t OverrideTable) remap(brand string, code int) int {
	brand = strings.ToLower(strings.TrimSpace(brand))
	for key, codes := range t {
		if !strings.Contains(brand, key) {
			continue
		}
		if mapped, ok := codes[code]; ok {
			return mapped
		}
	}
	return code
}

// orient applies the EXIF orientation transform, if any, to img. Sources
// without EXIF, or with EXIF we cannot parse, pass through unchanged.
func (p *Pipeline) orient(img image.Image, source []byte) image.Image {
	meta, err := exif.Decode(bytes.NewReader(source))
	if err != nil {
		return img
	}

	tag, err := meta.Get(exif.Orientation)
	if err != nil {
		return img
	}
	code, err := tag.Int(0)
	if err != nil {
		return img
	}

	var brand string
	if makeTag, err := meta.Get(exif.Make); err == nil {
		brand, _ = makeTag.StringVal()
	}

	return applyOrientation(img, p.Overrides.remap(brand, code))
}

// applyOrientation maps the eight EXIF orientation cases onto rotate and
// flip primitives. Codes outside 2..8 are the identity.
func applyOrientation(img image.Image, code int) image.Image {
	switch code {
	case 2:
		return flipHorizontal(img)
	case 3:
		return rotate180(img)
	case 4:
		return flipVertical(img)
	case 5:
		return flipHorizontal(rotate90(img))
	case 6:
		return rotate90(img)
	case 7:
		return rotate90(flipHorizontal(img))
	case 8:
		return rotate270(img)
	}
	return img
}

func rotate90(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dy(), b.Dx()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(b.Max.Y-1-y, x-b.Min.X, img.At(x, y))
		}
	}
	return dst
}

func rotate180(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(b.Max.X-1-x, b.Max.Y-1-y, img.At(x, y))
		}
	}
	return dst
}

func rotate270(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dy(), b.Dx()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(y-b.Min.Y, b.Max.X-1-x, img.At(x, y))
		}
	}
	return dst
}

func flipHorizontal(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(b.Max.X-1-x, y-b.Min.Y, img.At(x, y))
		}
	}
	return dst
}

func flipVertical(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(x-b.Min.X, b.Max.Y-1-y, img.At(x, y))
		}
	}
	return dst
}
