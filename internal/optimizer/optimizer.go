// Package optimizer composes the descriptor codec, transform pipeline and
// caches into the single entry point for producing image variants. It owns
// the two pieces of shared mutable state: the in-flight dedup map and the
// blur placeholder cache.
package optimizer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"imgopt/internal/cache"
	"imgopt/internal/descriptor"
	"imgopt/internal/storage"
	"imgopt/internal/telemetry"
	"imgopt/internal/transform"
)

// Config carries the engine's startup knobs.
type Config struct {
	// HandlerPath is the route the HTTP collaborator mounts, e.g. "/cache/image".
	HandlerPath string
	// Root is the public directory: sources are resolved relative to it
	// (for the local backend) and the variant cache lives beneath it.
	Root string
	// Parallelism bounds concurrent transform executions.
	Parallelism int
	// NoUpscale clamps resize requests to the source's true dimensions.
	NoUpscale bool
	// BlurTTL expires in-memory placeholders on read; 0 disables expiry.
	BlurTTL time.Duration
	// Overrides remaps EXIF orientation codes for quirky camera brands.
	Overrides transform.OverrideTable
}

// runner is what the scheduler needs from the pipeline.
type runner interface {
	Run(op descriptor.Operation, name string, source []byte) ([]byte, error)
}

// Optimizer is created once at startup and shared by reference for the
// process lifetime.
type Optimizer struct {
	handlerPath string
	noUpscale   bool

	sources  storage.Provider
	disk     *cache.Disk
	blur     *cache.Blur
	pipeline runner

	// inFlight maps descriptor -> *flight. Entries are born when a caller
	// becomes the producer and reaped when its computation finishes,
	// success or failure alike. All access is single-key atomic ops.
	inFlight sync.Map
	sem      *semaphore.Weighted

	logger  *slog.Logger
	metrics *telemetry.Metrics
	tracer  trace.Tracer
}

func New(cfg Config, sources storage.Provider, logger *slog.Logger, metrics *telemetry.Metrics) *Optimizer {
	return &Optimizer{
		handlerPath: cfg.HandlerPath,
		noUpscale:   cfg.NoUpscale,
		sources:     sources,
		disk:        cache.NewDisk(cfg.Root),
		blur:        cache.NewBlur(cfg.BlurTTL, logger),
		pipeline:    &transform.Pipeline{Overrides: cfg.Overrides},
		sem:         semaphore.NewWeighted(int64(cfg.Parallelism)),
		logger:      logger,
		metrics:     metrics,
		tracer:      otel.Tracer("imgopt/optimizer"),
	}
}

// NewWithPreload additionally warms the placeholder cache from any .svg
// variants already on disk, so blur lookups hit immediately after restart.
func NewWithPreload(ctx context.Context, cfg Config, sources storage.Provider, logger *slog.Logger, metrics *telemetry.Metrics) (*Optimizer, error) {
	o := New(cfg, sources, logger, metrics)
	if err := o.blur.Preload(o.disk); err != nil {
		return nil, fmt.Errorf("preloading blur cache: %w", err)
	}
	logger.InfoContext(ctx, "blur cache preloaded", "entries", o.blur.Len())
	return o, nil
}

// CreateImage ensures the variant for d exists on disk. It returns true
// when this call (or an in-flight computation it attached to) produced the
// file, false when the variant was already present. Concurrent calls for
// the same descriptor collapse onto one transform execution; total
// concurrent transforms never exceed the configured parallelism.
func (o *Optimizer) CreateImage(ctx context.Context, d descriptor.Descriptor) (bool, error) {
	ctx, span := o.tracer.Start(ctx, "Optimizer.CreateImage",
		trace.WithAttributes(attribute.String("image.source", d.Source)),
	)
	defer span.End()

	d = o.clamp(ctx, d)
	rel := d.FilePath()

	if o.disk.Exists(rel) {
		span.SetAttributes(attribute.String("cache.status", "hit"))
		o.metrics.CacheHitsTotal.Add(ctx, 1)
		return false, nil
	}

	span.SetAttributes(attribute.String("cache.status", "miss"))
	o.metrics.CacheMissesTotal.Add(ctx, 1)

	// Single atomic get-or-create. A load-then-store sequence here would
	// let two first-requesters both decide they are the producer.
	fl := &flight{done: make(chan struct{})}
	if cur, loaded := o.inFlight.LoadOrStore(d, fl); loaded {
		o.metrics.DedupJoinsTotal.Add(ctx, 1)
		return o.await(ctx, cur.(*flight))
	}

	// Sole producer. The computation runs detached: abandoning callers
	// stop waiting, the work still completes for everyone else.
	go o.produce(d, rel, fl)

	return o.await(ctx, fl)
}

// await blocks until the flight completes or the caller's context dies.
// Context death abandons only this wait; the producer is unaffected.
func (o *Optimizer) await(ctx context.Context, fl *flight) (bool, error) {
	select {
	case <-fl.done:
		return fl.created, fl.err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (o *Optimizer) produce(d descriptor.Descriptor, rel string, fl *flight) {
	start := time.Now()
	created, err := o.compute(d, rel)

	o.metrics.TransformsTotal.Add(context.Background(), 1)
	o.metrics.TransformDuration.Record(context.Background(), float64(time.Since(start).Milliseconds()))

	if err != nil {
		o.logger.Error("transform failed", "source", d.Source, "err", err)
	}

	// Reap the entry first so the next request for this descriptor starts
	// fresh (from disk on success, from scratch on failure), then release
	// every waiter. Failures are never cached.
	o.inFlight.Delete(d)
	fl.finish(created, err)
}

// compute runs the pipeline for d under the admission limiter and writes
// the output. A panicking worker surfaces as a WorkerError to all waiters.
func (o *Optimizer) compute(d descriptor.Descriptor, rel string) (created bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			created, err = false, &WorkerError{Reason: r}
		}
	}()

	// Background context: admission waits must survive caller abandonment.
	if acqErr := o.sem.Acquire(context.Background(), 1); acqErr != nil {
		return false, &AcquireError{cause: acqErr}
	}
	defer o.sem.Release(1)

	source, err := o.readSource(d.Source)
	if err != nil {
		return false, err
	}

	out, err := o.pipeline.Run(d.Op, d.Source, source)
	if err != nil {
		return false, err
	}

	if err := o.disk.Write(rel, out); err != nil {
		return false, err
	}

	if d.Op.Kind == descriptor.KindBlur {
		o.blur.Put(d, string(out))
	}
	return true, nil
}

func (o *Optimizer) readSource(path string) ([]byte, error) {
	r, err := o.sources.Open(context.Background(), path)
	if err != nil {
		return nil, transform.NewSourceError(path, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, transform.NewSourceError(path, err)
	}
	return data, nil
}

// flight is the shared completion slot all concurrent requesters of one
// descriptor wait on. Result fields are written once, before done closes.
type flight struct {
	done    chan struct{}
	created bool
	err     error
}

func (f *flight) finish(created bool, err error) {
	f.created = created
	f.err = err
	close(f.done)
}

// HandlerPath returns the route the engine expects to be mounted at.
func (o *Optimizer) HandlerPath() string { return o.handlerPath }

// Effective returns the descriptor CreateImage will actually produce for
// d once the no-upscale policy is applied. Callers that serve the variant
// file afterwards must resolve paths through this descriptor, not the
// requested one. Clamping is idempotent, so passing the result back into
// CreateImage is safe.
func (o *Optimizer) Effective(ctx context.Context, d descriptor.Descriptor) descriptor.Descriptor {
	return o.clamp(ctx, d)
}

// FilePath returns d's cache-relative output path.
func (o *Optimizer) FilePath(d descriptor.Descriptor) string { return d.FilePath() }

// FilePathFromRoot returns d's absolute output path under the public root.
func (o *Optimizer) FilePathFromRoot(d descriptor.Descriptor) string {
	return o.disk.Abs(d.FilePath())
}

// URLFor returns the request URL for d under the configured handler path.
func (o *Optimizer) URLFor(d descriptor.Descriptor) string { return d.URL(o.handlerPath) }

// GetBlur returns the in-memory placeholder SVG for d, if cached and
// unexpired. It never blocks and never triggers a computation: a miss
// means "request it through the handler route instead".
func (o *Optimizer) GetBlur(d descriptor.Descriptor) (string, bool) {
	return o.blur.Get(d)
}

// CacheBlur populates the placeholder cache from the on-disk variant,
// if present and not already resident. Called by the handler after
// serving a blur so the next render can inline it.
func (o *Optimizer) CacheBlur(d descriptor.Descriptor) {
	if d.Op.Kind != descriptor.KindBlur {
		return
	}
	if _, ok := o.blur.Get(d); ok {
		return
	}

	svg, err := o.disk.Read(d.FilePath())
	if err != nil {
		o.logger.Error("failed to read placeholder from disk", "source", d.Source, "err", err)
		return
	}
	o.blur.Put(d, string(svg))
}
