// Package transform implements the CPU-bound variant pipeline: decode the
// source, correct EXIF orientation, resize or blur-downscale, and encode
// the output bytes. It is pure with respect to the filesystem; callers
// hand it source bytes and persist whatever comes back.
package transform

import (
	"bytes"
	"fmt"
	"image"

	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
	"golang.org/x/image/draw"

	"imgopt/internal/descriptor"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// blurQuality is the fixed webp quality for the tiny placeholder raster.
// The raster is heavily blurred on display, so encode fidelity barely
// matters beyond this point.
const blurQuality = 80

// SourceError reports a source image that could not be read or decoded.
// The request that produced it is fatal; a later request may still succeed.
type SourceError struct {
	Source string
	cause  error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source unreadable: %s: %v", e.Source, e.cause)
}

func (e *SourceError) Unwrap() error { return e.cause }

// NewSourceError lets callers that read the source themselves (the
// optimizer's provider layer) report unreadable sources uniformly.
func NewSourceError(source string, cause error) *SourceError {
	return &SourceError{Source: source, cause: cause}
}

// EncodeError reports the output codec rejecting an image.
type EncodeError struct {
	cause error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode failed: %v", e.cause)
}

func (e *EncodeError) Unwrap() error { return e.cause }

// Pipeline applies transform operations. The zero value is usable; set
// Overrides to remap EXIF orientation codes for known quirky camera brands.
type Pipeline struct {
	Overrides OverrideTable
}

// Run transforms source bytes according to op and returns the encoded
// output: webp bytes for a resize, SVG markup bytes for a blur.
func (p *Pipeline) Run(op descriptor.Operation, name string, source []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(source))
	if err != nil {
		return nil, &SourceError{Source: name, cause: err}
	}

	// Missing or unparseable EXIF is not an error; the image passes
	// through upright-as-stored.
	img = p.orient(img, source)

	switch op.Kind {
	case descriptor.KindResize:
		return p.resize(img, op.Resize)
	case descriptor.KindBlur:
		return p.blur(img, op.Blur)
	}
	return nil, &EncodeError{cause: fmt.Errorf("unknown operation kind %d", op.Kind)}
}

func (p *Pipeline) resize(img image.Image, r descriptor.Resize) ([]byte, error) {
	scaled := scale(img, r.Width, r.Height, draw.CatmullRom)
	return encodeWebp(scaled, float32(r.Quality))
}

func (p *Pipeline) blur(img image.Image, b descriptor.Blur) ([]byte, error) {
	// Nearest neighbor is plenty for a raster this small; it all blurs
	// together anyway.
	small := scale(img, b.Width, b.Height, draw.NearestNeighbor)
	webpBytes, err := encodeWebp(small, blurQuality)
	if err != nil {
		return nil, err
	}
	return []byte(blurSVG(webpBytes, b)), nil
}

// scale draws img into a fresh RGBA canvas of exactly width x height.
// Aspect ratio is the caller's problem; the clamp policy upstream decides
// what dimensions are acceptable.
func scale(img image.Image, width, height int, scaler draw.Scaler) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	scaler.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

func encodeWebp(img image.Image, quality float32) ([]byte, error) {
	options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, quality)
	if err != nil {
		return nil, &EncodeError{cause: err}
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, options); err != nil {
		return nil, &EncodeError{cause: err}
	}
	return buf.Bytes(), nil
}
