// Package framesim drives the framealloc allocators through a simulated
// real-time frame loop: a per-frame arena, a scratch buffer with overflow, a
// draw record pool with deferred release and a render queue stack.
package framesim

import (
	"context"
	"math/rand/v2"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pavanmanishd/framealloc"
	"github.com/pavanmanishd/framealloc/allocmetrics"
)

// ScratchBufferSize is the size of the fixed scratch buffer in front of the
// overflow arena.
const ScratchBufferSize = 4096

// Allocator names used in logs, metrics and the summary.
const (
	FrameArena  = "frame_arena"
	Scratch     = "scratch"
	DrawPool    = "draw_pool"
	RenderQueue = "render_queue"
)

// DrawRecord is the fixed-size per-draw payload kept in the pool.
type DrawRecord struct {
	Transform [16]float32
	Mesh      uint32
	Material  uint32
}

// DrawItem is a render queue entry referring to a pool slot by index.
type DrawItem struct {
	Record int32
	Depth  float32
}

// Summary reports what a run did.
type Summary struct {
	Frames           int
	Drawn            int
	MaterialSwitches int
	Retired          int
	Failures         map[string]int
	Stats            map[string]framealloc.Stats
}

// Loop owns every allocator of the simulation. It is not safe for
// concurrent use.
type Loop struct {
	cfg     Config
	logger  log.Logger
	metrics *allocmetrics.Metrics
	rng     *rand.Rand

	frame      *framealloc.GlobalStackAllocator
	scratchBuf [ScratchBufferSize]byte
	scratch    framealloc.StackAllocator
	overflow   *framealloc.GlobalStackAllocator
	scratchFA  *framealloc.FallbackAllocator[*framealloc.StackAllocator, *framealloc.GlobalStackAllocator]
	draws      *framealloc.PoolAllocator
	queue      *framealloc.Stack[DrawItem]
	releases   *releaseQueue

	summary Summary
}

// NewLoop builds the allocators described by cfg. Metrics are registered
// with reg; pass nil to skip registration.
func NewLoop(cfg Config, logger log.Logger, reg prometheus.Registerer) (*Loop, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	l := &Loop{
		cfg:      cfg,
		logger:   logger,
		metrics:  allocmetrics.NewMetrics(reg),
		rng:      rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		releases: newReleaseQueue(cfg.ReleaseLatency),
		summary: Summary{
			Failures: map[string]int{},
			Stats:    map[string]framealloc.Stats{},
		},
	}

	opts := []framealloc.Option{
		framealloc.WithAlignment(cfg.Alignment),
		framealloc.WithLogger(log.With(logger, "component", "framealloc")),
	}
	if cfg.Mmap {
		opts = append(opts, framealloc.WithRegion(framealloc.MmapRegion))
	}

	var err error
	if l.frame, err = framealloc.NewGlobalStackAllocator(int(cfg.FrameArenaSize.Bytes()), opts...); err != nil {
		return nil, errors.Wrap(err, "creating frame arena")
	}
	if l.overflow, err = framealloc.NewGlobalStackAllocator(int(cfg.OverflowArenaSize.Bytes()), opts...); err != nil {
		_ = l.Close()
		return nil, errors.Wrap(err, "creating overflow arena")
	}
	l.scratch.Init(l.scratchBuf[:], cfg.Alignment)
	l.scratchFA = framealloc.NewFallbackAllocator(&l.scratch, l.overflow)

	if l.draws, err = framealloc.PoolFor[DrawRecord](cfg.DrawRecords, opts...); err != nil {
		_ = l.Close()
		return nil, errors.Wrap(err, "creating draw pool")
	}
	if l.queue, err = framealloc.NewStack[DrawItem](cfg.RenderQueueCapacity, opts...); err != nil {
		_ = l.Close()
		return nil, errors.Wrap(err, "creating render queue")
	}
	return l, nil
}

// Run executes cfg.Frames frames, stopping early if ctx is cancelled
// between two frames. Every in-flight draw record is returned to the pool
// before Run returns.
func (l *Loop) Run(ctx context.Context) (Summary, error) {
	level.Info(l.logger).Log("msg", "starting frame loop", "frames", l.cfg.Frames, "mmap", l.cfg.Mmap)

	var err error
	for f := 0; f < l.cfg.Frames; f++ {
		if err = ctx.Err(); err != nil {
			break
		}
		if err = l.Step(f); err != nil {
			break
		}
		if l.cfg.LogInterval > 0 && (f+1)%l.cfg.LogInterval == 0 {
			level.Info(l.logger).Log("msg", "frame loop progress", "frame", f+1,
				"drawn", l.summary.Drawn, "in_flight", l.releases.len(),
				"draw_pool_free", l.draws.Free())
		}
	}

	l.summary.Retired += l.releases.flush(l.draws)
	l.observe()
	level.Info(l.logger).Log("msg", "frame loop finished", "frames", l.summary.Frames,
		"drawn", l.summary.Drawn, "retired", l.summary.Retired, "err", err)
	return l.Summary(), err
}

// Step runs a single frame numbered f.
func (l *Loop) Step(f int) error {
	// Frame boundary: everything from the previous frame is retired.
	l.frame.Reset()
	l.scratchFA.DeallocateAll()
	l.queue.Reset()
	l.summary.Retired += l.releases.drain(f, l.draws)

	l.fillVertices(f)
	l.useScratch()
	if err := l.submitDraws(f); err != nil {
		return err
	}
	l.render()

	l.summary.Frames++
	l.observe()
	return nil
}

// fillVertices takes the frame's vertex buffer from the frame arena.
func (l *Loop) fillVertices(f int) {
	if l.cfg.VerticesPerFrame == 0 {
		return
	}
	verts := framealloc.MakeSlice[float32](l.frame, l.cfg.VerticesPerFrame)
	if verts == nil {
		l.fail(FrameArena)
		return
	}
	for i := range verts {
		verts[i] = float32(f + i)
	}
}

// useScratch issues variable-size scratch requests against the fixed buffer
// and its overflow arena. The last request is handed back immediately, the
// way a nested helper pops its scratch on return.
func (l *Loop) useScratch() {
	var last framealloc.Block
	for i := 0; i < l.cfg.ScratchAllocsPerFrame; i++ {
		n := 1 + l.rng.IntN(int(l.cfg.MaxScratchAlloc.Bytes()))
		b := l.scratchFA.Allocate(n)
		if b.IsNull() {
			l.fail(Scratch)
			continue
		}
		clear(b.Bytes())
		last = b
	}
	if !last.IsNull() {
		l.scratchFA.Deallocate(last)
	}
}

// submitDraws takes draw records from the pool and queues them for
// rendering. Records are retired ReleaseLatency frames later.
func (l *Loop) submitDraws(f int) error {
	if err := l.queue.Reserve(l.cfg.DrawsPerFrame); err != nil {
		return errors.Wrap(err, "reserving render queue")
	}
	for i := 0; i < l.cfg.DrawsPerFrame; i++ {
		rec := framealloc.New[DrawRecord](l.draws)
		if rec == nil {
			l.fail(DrawPool)
			continue
		}
		rec.Mesh = uint32(i)
		rec.Material = uint32(l.rng.IntN(16))
		rec.Transform[0], rec.Transform[5], rec.Transform[10], rec.Transform[15] = 1, 1, 1, 1

		b := framealloc.BlockOf(rec)
		idx, _ := l.draws.Index(b)
		l.queue.Push(DrawItem{Record: int32(idx), Depth: l.rng.Float32()})
		l.releases.push(f, b)
	}
	return nil
}

// render drains the render queue back to front.
func (l *Loop) render() {
	material := uint32(1<<32 - 1)
	for l.queue.Len() > 0 {
		item := l.queue.Pop()
		rec := framealloc.PtrOf[DrawRecord](l.draws.Slot(int(item.Record)))
		if rec.Material != material {
			material = rec.Material
			l.summary.MaterialSwitches++
		}
		l.summary.Drawn++
	}
}

func (l *Loop) fail(name string) {
	l.summary.Failures[name]++
	l.metrics.Failed(name, 1)
}

func (l *Loop) observe() {
	stats := map[string]framealloc.Stats{
		FrameArena:  l.frame.Stats(),
		Scratch:     l.scratchFA.Stats(),
		DrawPool:    l.draws.Stats(),
		RenderQueue: l.queue.Stats(),
	}
	for name, s := range stats {
		l.metrics.Observe(name, s)
		l.summary.Stats[name] = s
	}
}

// Summary returns a copy of the run statistics so far.
func (l *Loop) Summary() Summary {
	s := l.summary
	s.Failures = make(map[string]int, len(l.summary.Failures))
	for k, v := range l.summary.Failures {
		s.Failures[k] = v
	}
	s.Stats = make(map[string]framealloc.Stats, len(l.summary.Stats))
	for k, v := range l.summary.Stats {
		s.Stats[k] = v
	}
	return s
}

// Close releases every owned region. The loop must not be used afterwards.
func (l *Loop) Close() error {
	var firstErr error
	release := func(name string, r framealloc.Releaser) {
		if err := r.Release(); err != nil {
			level.Warn(l.logger).Log("msg", "failed to release allocator", "allocator", name, "err", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if l.queue != nil {
		release(RenderQueue, l.queue)
	}
	if l.draws != nil {
		release(DrawPool, l.draws)
	}
	if l.overflow != nil {
		release(Scratch, l.overflow)
	}
	if l.frame != nil {
		release(FrameArena, l.frame)
	}
	return firstErr
}
