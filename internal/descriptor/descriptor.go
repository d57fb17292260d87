// Package descriptor defines the canonical identity of a requested image
// variant and its two serialized forms: the query string used on the wire
// and the file path used as the on-disk cache key.
package descriptor

import (
	"errors"
	"strings"
)

// Kind selects which transform an Operation describes.
type Kind uint8

const (
	KindResize Kind = iota
	KindBlur
)

// Resize holds target pixel dimensions and the lossy encode quality (0-100).
type Resize struct {
	Width   int
	Height  int
	Quality int
}

// Blur holds the tiny raster dimensions embedded in the placeholder, the
// SVG viewport dimensions, and the Gaussian blur strength.
type Blur struct {
	Width     int
	Height    int
	SVGWidth  int
	SVGHeight int
	Sigma     int
}

// Operation is a tagged union: exactly one of Resize or Blur is meaningful,
// selected by Kind. Keeping it a plain struct makes Descriptor comparable,
// so it can key the in-flight and blur maps directly.
type Operation struct {
	Kind   Kind
	Resize Resize
	Blur   Blur
}

// Descriptor identifies one requested variant: source asset + operation.
// Two descriptors name the same cache entry iff they are equal.
type Descriptor struct {
	// Source is the path of the original asset, relative to the public root.
	Source string
	Op     Operation
}

// ErrNoMatch is returned when a query string or file path does not encode
// a descriptor. Callers treat it as "not ours", never as a failure.
var ErrNoMatch = errors.New("descriptor: no match")

func NewResize(source string, width, height, quality int) Descriptor {
	return Descriptor{
		Source: cleanSource(source),
		Op: Operation{
			Kind:   KindResize,
			Resize: Resize{Width: width, Height: height, Quality: quality},
		},
	}
}

func NewBlur(source string, width, height, svgWidth, svgHeight, sigma int) Descriptor {
	return Descriptor{
		Source: cleanSource(source),
		Op: Operation{
			Kind: KindBlur,
			Blur: Blur{Width: width, Height: height, SVGWidth: svgWidth, SVGHeight: svgHeight, Sigma: sigma},
		},
	}
}

// Default blur geometry: a 20x20 raster stretched over a 100x100 viewport
// with a strong blur reads as a soft color wash at any display size.
const (
	DefaultBlurWidth     = 20
	DefaultBlurHeight    = 20
	DefaultBlurSVGWidth  = 100
	DefaultBlurSVGHeight = 100
	DefaultBlurSigma     = 15
)

// DefaultBlur returns the standard placeholder descriptor for a source.
func DefaultBlur(source string) Descriptor {
	return NewBlur(source, DefaultBlurWidth, DefaultBlurHeight, DefaultBlurSVGWidth, DefaultBlurSVGHeight, DefaultBlurSigma)
}

// Ext returns the output file extension for the descriptor's operation.
func (d Descriptor) Ext() string {
	if d.Op.Kind == KindBlur {
		return "svg"
	}
	return "webp"
}

// ContentType returns the MIME type of the variant this descriptor produces.
func (d Descriptor) ContentType() string {
	if d.Op.Kind == KindBlur {
		return "image/svg+xml"
	}
	return "image/webp"
}

func cleanSource(s string) string {
	return strings.TrimLeft(strings.TrimSpace(s), "/")
}
