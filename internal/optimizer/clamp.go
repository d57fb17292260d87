package optimizer

import (
	"context"
	"image"

	"imgopt/internal/descriptor"
)

// clamp applies the no-upscale policy to resize requests. Each dimension
// is clamped against the source independently, so a request exceeding the
// source on one axis keeps its other axis as asked, so the aspect ratio
// may change. Blur variants always downsample and pass through untouched.
//
// When the source cannot be probed (missing, unreadable, undecodable) the
// request proceeds unchanged and the pipeline fails naturally if the
// source truly does not exist.
func (o *Optimizer) clamp(ctx context.Context, d descriptor.Descriptor) descriptor.Descriptor {
	if !o.noUpscale || d.Op.Kind != descriptor.KindResize {
		return d
	}

	r, err := o.sources.Open(ctx, d.Source)
	if err != nil {
		return d
	}
	defer r.Close()

	cfg, _, err := image.DecodeConfig(r)
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 {
		return d
	}

	req := d.Op.Resize
	width := min(req.Width, cfg.Width)
	height := min(req.Height, cfg.Height)
	if width == req.Width && height == req.Height {
		return d
	}

	return descriptor.NewResize(d.Source, width, height, req.Quality)
}
