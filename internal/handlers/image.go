package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"imgopt/internal/descriptor"
	"imgopt/internal/optimizer"
	"imgopt/internal/transform"
)

// ImageHandler serves optimized variants from the cache route. A request
// names the variant it wants in the query string; the first request for a
// variant computes it, every later one is a plain file read.
type ImageHandler struct {
	Optimizer *optimizer.Optimizer
	Tracer    trace.Tracer
	Logger    *slog.Logger
}

const cacheForAYear = 31536000

func (h *ImageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.Tracer.Start(r.Context(), "ImageHandler.ServeHTTP")
	defer span.End()

	d, err := descriptor.DecodeQuery(r.URL.RawQuery)
	if err != nil {
		http.Error(w, "invalid image", http.StatusNotFound)
		return
	}
	span.SetAttributes(attribute.String("image.source", d.Source))

	// The no-upscale policy may rewrite the requested dimensions, which
	// moves the variant to the clamped descriptor's path. Everything from
	// here on, serving included, works on the effective descriptor.
	d = h.Optimizer.Effective(ctx, d)

	created, err := h.Optimizer.CreateImage(ctx, d)
	if err != nil {
		var srcErr *transform.SourceError
		if errors.As(err, &srcErr) {
			h.Logger.Warn("source image not found", "source", d.Source)
			http.NotFound(w, r)
			return
		}
		h.Logger.Error("variant creation failed", "source", d.Source, "err", err)
		http.Error(w, "image processing failed", http.StatusInternalServerError)
		return
	}

	// warm the placeholder cache on plain disk hits too
	h.Optimizer.CacheBlur(d)

	if created {
		w.Header().Set("X-Cache", "MISS")
	} else {
		w.Header().Set("X-Cache", "HIT")
	}
	w.Header().Set("Content-Type", d.ContentType())
	// variants are content addressed, so they never go stale
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d, immutable", cacheForAYear))

	data, err := os.ReadFile(h.Optimizer.FilePathFromRoot(d))
	if err != nil {
		h.Logger.Error("variant unreadable after creation", "source", d.Source, "err", err)
		http.Error(w, "image processing failed", http.StatusInternalServerError)
		return
	}
	if _, err := w.Write(data); err != nil {
		h.Logger.Warn("stream interrupted", "err", err)
	}
}
