package handlers

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"imgopt/internal/descriptor"
	"imgopt/internal/optimizer"
	"imgopt/internal/storage"
	"imgopt/internal/telemetry"
)

func newTestHandler(t *testing.T, noUpscale bool) (*ImageHandler, string) {
	t.Helper()

	root := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics, err := telemetry.NewMetrics(noop.NewMeterProvider().Meter(""))
	if err != nil {
		t.Fatal(err)
	}

	opt := optimizer.New(optimizer.Config{
		HandlerPath: "/cache/image",
		Root:        root,
		Parallelism: 2,
		NoUpscale:   noUpscale,
	}, storage.NewLocalStore(root), logger, metrics)

	return &ImageHandler{
		Optimizer: opt,
		Tracer:    tracenoop.NewTracerProvider().Tracer(""),
		Logger:    logger,
	}, root
}

func writePNG(t *testing.T, root, rel string, width, height int) {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			img.Set(x, y, color.NRGBA{R: 30, G: 200, B: 90, A: 255})
		}
	}

	abs := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(abs)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestImageHandlerServesResizeVariant(t *testing.T) {
	t.Parallel()

	h, root := newTestHandler(t, false)
	writePNG(t, root, "photos/a.png", 120, 120)

	d := descriptor.NewResize("photos/a.png", 60, 40, 75)
	url := h.Optimizer.URLFor(d)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", url, nil))

	if rec.Code != 200 {
		t.Fatalf("status %d, body %q", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/webp" {
		t.Errorf("Content-Type = %q, want image/webp", ct)
	}
	if got := rec.Header().Get("X-Cache"); got != "MISS" {
		t.Errorf("first request X-Cache = %q, want MISS", got)
	}
	if cc := rec.Header().Get("Cache-Control"); !strings.Contains(cc, "immutable") {
		t.Errorf("Cache-Control = %q, want immutable", cc)
	}
	if rec.Body.Len() == 0 {
		t.Error("empty variant body")
	}

	// the second request is served straight from disk
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", url, nil))
	if got := rec.Header().Get("X-Cache"); got != "HIT" {
		t.Errorf("second request X-Cache = %q, want HIT", got)
	}
}

func TestImageHandlerServesBlurPlaceholder(t *testing.T) {
	t.Parallel()

	h, root := newTestHandler(t, false)
	writePNG(t, root, "a.png", 80, 80)

	url := h.Optimizer.URLFor(descriptor.DefaultBlur("a.png"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", url, nil))

	if rec.Code != 200 {
		t.Fatalf("status %d, body %q", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("Content-Type = %q, want image/svg+xml", ct)
	}
	if !strings.Contains(rec.Body.String(), "feGaussianBlur") {
		t.Error("body is not a blur placeholder")
	}
}

func TestImageHandlerRejectsMalformedQuery(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler(t, false)

	for _, target := range []string{
		"/cache/image",
		"/cache/image?src=a.png",
		"/cache/image?src=a.png&r%5Bw%5D=abc&r%5Bh%5D=1&r%5Bq%5D=1",
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", target, nil))
		if rec.Code != 404 {
			t.Errorf("%s: status %d, want 404", target, rec.Code)
		}
	}
}

func TestImageHandlerServesClampedResize(t *testing.T) {
	t.Parallel()

	h, root := newTestHandler(t, true)
	writePNG(t, root, "a.png", 100, 100)

	// 200x50 against a 100x100 source clamps to 100x50. The variant lands
	// under the clamped descriptor's directory, and the handler must serve
	// it from there, not from the requested descriptor's path.
	requested := descriptor.NewResize("a.png", 200, 50, 75)
	url := h.Optimizer.URLFor(requested)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", url, nil))

	if rec.Code != 200 {
		t.Fatalf("status %d, body %q", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/webp" {
		t.Errorf("Content-Type = %q, want image/webp", ct)
	}
	if rec.Body.Len() == 0 {
		t.Error("empty variant body")
	}

	clamped := descriptor.NewResize("a.png", 100, 50, 75)
	if _, err := os.Stat(h.Optimizer.FilePathFromRoot(clamped)); err != nil {
		t.Errorf("clamped variant missing on disk: %v", err)
	}
	if _, err := os.Stat(h.Optimizer.FilePathFromRoot(requested)); err == nil {
		t.Error("variant written under the unclamped path")
	}

	// repeat requests hit the clamped file on disk
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", url, nil))
	if rec.Code != 200 {
		t.Fatalf("second request: status %d, body %q", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("X-Cache"); got != "HIT" {
		t.Errorf("second request X-Cache = %q, want HIT", got)
	}
}

func TestImageHandlerMissingSource(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler(t, false)
	url := h.Optimizer.URLFor(descriptor.NewResize("ghost.png", 10, 10, 75))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", url, nil))
	if rec.Code != 404 {
		t.Errorf("status %d, want 404", rec.Code)
	}
}
