package transform

import (
	"image"
	"image/color"
	"testing"
)

// corners builds a 2x1 image: red at (0,0), blue at (1,0). Tracking where
// each pixel lands pins down every rotate/flip case exactly.
var (
	red  = color.NRGBA{R: 255, A: 255}
	blue = color.NRGBA{B: 255, A: 255}
)

func twoPixel() image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, red)
	img.SetNRGBA(1, 0, blue)
	return img
}

func pixelAt(t *testing.T, img image.Image, x, y int) color.NRGBA {
	t.Helper()
	return color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
}

func TestApplyOrientation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		code    int
		wantW   int
		wantH   int
		wantRed image.Point
	}{
		{"1 identity", 1, 2, 1, image.Point{0, 0}},
		{"2 flip horizontal", 2, 2, 1, image.Point{1, 0}},
		{"3 rotate 180", 3, 2, 1, image.Point{1, 0}},
		{"4 flip vertical", 4, 2, 1, image.Point{0, 0}},
		{"5 transpose", 5, 1, 2, image.Point{0, 0}},
		{"6 rotate 90 cw", 6, 1, 2, image.Point{0, 0}},
		{"7 transverse", 7, 1, 2, image.Point{0, 1}},
		{"8 rotate 270 cw", 8, 1, 2, image.Point{0, 1}},
		{"0 out of range", 0, 2, 1, image.Point{0, 0}},
		{"9 out of range", 9, 2, 1, image.Point{0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := applyOrientation(twoPixel(), tt.code)
			b := got.Bounds()
			if b.Dx() != tt.wantW || b.Dy() != tt.wantH {
				t.Fatalf("dimensions: want %dx%d, got %dx%d", tt.wantW, tt.wantH, b.Dx(), b.Dy())
			}
			if c := pixelAt(t, got, tt.wantRed.X, tt.wantRed.Y); c != red {
				t.Errorf("red pixel not at %v after code %d (got %v there)", tt.wantRed, tt.code, c)
			}
		})
	}
}

func TestOverrideTableRemap(t *testing.T) {
	t.Parallel()
	table := OverrideTable{
		"canon": {6: 8, 8: 6},
	}

	tests := []struct {
		name  string
		brand string
		code  int
		want  int
	}{
		{"matching brand remaps", "Canon EOS 5D", 6, 8},
		{"matching brand reverse", "canon", 8, 6},
		{"matching brand unmapped code", "Canon", 3, 3},
		{"other brand untouched", "NIKON CORPORATION", 6, 6},
		{"empty brand untouched", "", 6, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := table.remap(tt.brand, tt.code); got != tt.want {
				t.Errorf("remap(%q, %d): want %d, got %d", tt.brand, tt.code, got, tt.want)
			}
		})
	}
}

func TestEmptyOverrideTable(t *testing.T) {
	t.Parallel()
	var table OverrideTable
	for code := range 10 {
		if got := table.remap("AnyBrand", code); got != code {
			t.Errorf("nil table remapped %d to %d", code, got)
		}
	}
}
