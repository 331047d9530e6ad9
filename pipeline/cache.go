// Package pipeline maps PICA fixed function state to host render pipelines.
//
// A Cache hashes the fixed function state of a draw together with the
// selected shader programs and builds one pipeline per distinct key,
// optionally on background workers. It also owns the descriptor heaps the
// draw binds and persists the set of built keys per title so later runs
// can build them ahead of time.
package pipeline

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"golang.org/x/sync/errgroup"

	"github.com/gogpu/pica/internal/cache"
	"github.com/gogpu/pica/regs"
	"github.com/gogpu/pica/rescache"
	"github.com/gogpu/pica/sched"
)

// Cache errors.
var (
	// ErrNilDevice is returned by NewCache without a device.
	ErrNilDevice = errors.New("pipeline: device is nil")

	// ErrNoShader is returned when a pipeline is built before a vertex and
	// fragment program were selected.
	ErrNoShader = errors.New("pipeline: shader stage not selected")
)

// Options configures a Cache.
type Options struct {
	// Async builds pipelines on background workers.
	Async bool
	// Workers bounds concurrent builds. Zero means 4.
	Workers int
	// Source provides generated programs. Nil uses the builtin source.
	Source ShaderSource
	// DiskCacheDir enables the disk cache when non-empty.
	DiskCacheDir string
	// BindGroupCapacity bounds the memoized bind groups. Zero means 1024.
	BindGroupCapacity int
	// ModuleCapacity bounds the shader modules kept alive. Zero means 512.
	ModuleCapacity int
}

// Stats reports cache activity.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Pipelines int
	Building  int
	Modules   int
	Failed    uint64
}

type entry struct {
	key      Key
	pipeline hal.RenderPipeline
	err      error
	done     chan struct{}
}

func (e *entry) ready() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

type boundState struct {
	valid    bool
	pipeline hal.RenderPipeline
	groups   [numHeaps]hal.BindGroup
	offsets  [numDynamicOffsets]uint32
	dynamic  DynamicState
}

// Cache builds, caches and binds render pipelines.
//
// Selection and binding run on the recording goroutine. Builds run there
// too or, in async mode, on a bounded worker group; their results are
// published under mu.
type Cache struct {
	device   hal.Device
	recorder sched.Recorder
	caps     Capabilities
	opts     Options

	source  ShaderSource
	builtin *BuiltinSource
	user    UserConfig
	keys    ShaderKeys
	current [numStages]module
	modules *cache.Cache[moduleKey, module]

	layout hal.PipelineLayout
	heaps  *heaps
	queue  *DescriptorUpdateQueue
	bound  boundState

	mu             sync.Mutex
	pipelines      map[uint64]*entry
	retiredModules []hal.ShaderModule
	workers        errgroup.Group
	building       atomic.Int32

	hits   atomic.Uint64
	misses atomic.Uint64
	failed atomic.Uint64

	programID uint64
}

// NewCache creates a pipeline cache. nulls provides the placeholders that
// fill unwritten image and sampler slots.
func NewCache(device hal.Device, recorder sched.Recorder, caps Capabilities,
	nulls *rescache.NullResources, opts Options,
) (*Cache, error) {
	if device == nil {
		return nil, ErrNilDevice
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.BindGroupCapacity <= 0 {
		opts.BindGroupCapacity = 1024
	}
	if opts.ModuleCapacity <= 0 {
		opts.ModuleCapacity = 512
	}
	c := &Cache{
		device:    device,
		recorder:  recorder,
		caps:      caps,
		opts:      opts,
		source:    opts.Source,
		builtin:   &BuiltinSource{},
		queue:     NewDescriptorUpdateQueue(),
		pipelines: make(map[uint64]*entry),
	}
	if c.source == nil {
		c.source = c.builtin
	}
	c.workers.SetLimit(opts.Workers)
	c.modules = cache.New[moduleKey, module](opts.ModuleCapacity, func(_ moduleKey, m module) {
		c.mu.Lock()
		c.retiredModules = append(c.retiredModules, m.handle)
		c.mu.Unlock()
	})

	h, err := newHeaps(device, nulls, opts.BindGroupCapacity)
	if err != nil {
		return nil, err
	}
	c.heaps = h

	layout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "pica_pipeline_layout",
		BindGroupLayouts: h.layouts[:],
	})
	if err != nil {
		h.destroy()
		return nil, fmt.Errorf("pipeline: create pipeline layout: %w", err)
	}
	c.layout = layout
	return c, nil
}

// Capabilities returns the device capabilities the cache was created with.
func (c *Cache) Capabilities() Capabilities { return c.caps }

// UpdateQueue returns the queue used to write descriptor sets.
func (c *Cache) UpdateQueue() *DescriptorUpdateQueue { return c.queue }

// Acquire returns the descriptor set of a heap. Writes to it take effect
// at the next BindPipeline after the update queue is flushed.
func (c *Cache) Acquire(heap HeapType) *DescriptorSet {
	return c.heaps.sets[heap]
}

// UpdateRange moves the start of a dynamic uniform binding of the buffer
// heap. offset must be a multiple of the uniform offset alignment.
func (c *Cache) UpdateRange(binding int, offset uint32) {
	if binding < 0 || binding >= numDynamicOffsets {
		return
	}
	c.heaps.sets[HeapBuffer].offsets[binding] = offset
}

// BindPipeline binds the pipeline for info and the current shader
// programs, then the descriptor sets and dynamic state. It returns false
// when the pipeline is still building in the background and wait is
// false, or when the pipeline could not be built; the draw must then be
// skipped.
func (c *Cache) BindPipeline(info *Info, wait bool) bool {
	key := KeyOf(info, c.keys)
	e := c.lookup(key, wait)
	if e == nil {
		return false
	}
	if !e.ready() {
		if !wait {
			return false
		}
		<-e.done
	}
	if e.err != nil {
		return false
	}

	c.queue.Flush()
	var groups [numHeaps]hal.BindGroup
	for heap := HeapType(0); heap < numHeaps; heap++ {
		g, err := c.heaps.group(c.heaps.sets[heap])
		if err != nil {
			slogger().Error("bind group unavailable", "heap", heap, "err", err)
			return false
		}
		groups[heap] = g
	}
	c.record(e.pipeline, groups, c.heaps.sets[HeapBuffer].offsets, info.Dynamic)
	return true
}

// lookup returns the entry of key, starting its build on a miss. It
// returns nil when an async build could not be scheduled.
func (c *Cache) lookup(key Key, wait bool) *entry {
	hash := key.Hash()

	c.mu.Lock()
	if e, ok := c.pipelines[hash]; ok && e.key == key {
		c.mu.Unlock()
		c.hits.Add(1)
		return e
	} else if ok {
		slogger().Warn("pipeline key hash collision", "hash", hash)
	}
	e := &entry{key: key, done: make(chan struct{})}
	c.pipelines[hash] = e
	c.mu.Unlock()
	c.misses.Add(1)

	st := stages{
		vertex:   c.current[StageVertex].handle,
		vsEntry:  c.current[StageVertex].entry,
		fragment: c.current[StageFragment].handle,
		fsEntry:  c.current[StageFragment].entry,
	}
	if wait || !c.opts.Async {
		c.build(e, st)
		return e
	}
	c.building.Add(1)
	if !c.workers.TryGo(func() error {
		defer c.building.Add(-1)
		c.build(e, st)
		return nil
	}) {
		c.building.Add(-1)
		c.mu.Lock()
		delete(c.pipelines, hash)
		c.mu.Unlock()
		return nil
	}
	return e
}

func (c *Cache) build(e *entry, st stages) {
	defer close(e.done)
	if st.vertex == nil || st.fragment == nil {
		e.err = ErrNoShader
		c.failed.Add(1)
		slogger().Error("pipeline build failed", "err", e.err)
		return
	}
	desc := renderPipelineDescriptor(&e.key, c.layout, st)
	p, err := c.device.CreateRenderPipeline(desc)
	if err != nil {
		e.err = fmt.Errorf("pipeline: create render pipeline: %w", err)
		c.failed.Add(1)
		slogger().Error("pipeline build failed", "err", err)
		return
	}
	e.pipeline = p
	slogger().Debug("pipeline built",
		"vs", e.key.Shaders[StageVertex],
		"fs", e.key.Shaders[StageFragment],
		"bindings", e.key.VertexLayout.BindingCount)
}

// record binds pipeline, groups and dynamic state, skipping whatever is
// already bound unless the recorder reports fresh state.
func (c *Cache) record(pipeline hal.RenderPipeline, groups [numHeaps]hal.BindGroup,
	offsets [numDynamicOffsets]uint32, dyn DynamicState,
) {
	if c.recorder.IsStateDirty() {
		c.bound = boundState{}
		c.recorder.MarkStateNonDirty()
	}
	prev := c.bound
	setPipeline := !prev.valid || prev.pipeline != pipeline
	var setGroup [numHeaps]bool
	for i := range groups {
		setGroup[i] = !prev.valid || prev.groups[i] != groups[i]
	}
	if prev.offsets != offsets {
		setGroup[HeapBuffer] = true
	}
	setViewport := !prev.valid || prev.dynamic.Viewport != dyn.Viewport
	setScissor := !prev.valid || prev.dynamic.Scissor != dyn.Scissor
	setBlend := !prev.valid || prev.dynamic.BlendColor != dyn.BlendColor
	setRef := !prev.valid || prev.dynamic.StencilReference != dyn.StencilReference

	c.bound = boundState{valid: true, pipeline: pipeline, groups: groups, offsets: offsets, dynamic: dyn}

	c.recorder.Record(func(pass hal.RenderPassEncoder) {
		if setPipeline {
			pass.SetPipeline(pipeline)
		}
		for i, g := range groups {
			if !setGroup[i] {
				continue
			}
			var dynOffsets []uint32
			if HeapType(i) == HeapBuffer {
				dynOffsets = offsets[:]
			}
			pass.SetBindGroup(uint32(i), g, dynOffsets)
		}
		if setViewport {
			v := dyn.Viewport
			pass.SetViewport(float32(v.X), float32(v.Y), float32(v.Width), float32(v.Height), 0, 1)
		}
		if setScissor {
			x, y, w, h := scissorRect(dyn.Scissor)
			pass.SetScissorRect(x, y, w, h)
		}
		if setBlend {
			pass.SetBlendConstant(blendColor(dyn.BlendColor))
		}
		if setRef {
			pass.SetStencilReference(uint32(dyn.StencilReference))
		}
	})
}

func scissorRect(r regs.Rect) (x, y, w, h uint32) {
	left, top := max(r.Left, 0), max(r.Top, 0)
	right, bottom := max(r.Right, left), max(r.Bottom, top)
	return uint32(left), uint32(top), uint32(right - left), uint32(bottom - top)
}

// blendColor unpacks an RGBA8 constant, red in the low byte.
func blendColor(c uint32) *gputypes.Color {
	return &gputypes.Color{
		R: float64(c&0xFF) / 255,
		G: float64(c>>8&0xFF) / 255,
		B: float64(c>>16&0xFF) / 255,
		A: float64(c>>24) / 255,
	}
}

// Stats returns cache statistics.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	n := len(c.pipelines)
	c.mu.Unlock()
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Pipelines: n,
		Building:  int(c.building.Load()),
		Modules:   c.modules.Len(),
		Failed:    c.failed.Load(),
	}
}

// WaitBuilds blocks until every background build finished.
func (c *Cache) WaitBuilds() {
	_ = c.workers.Wait()
}

// TickFrame retires bind groups and shader modules evicted long enough
// ago.
func (c *Cache) TickFrame() {
	c.heaps.tick()
	if c.building.Load() != 0 {
		return
	}
	c.mu.Lock()
	retired := c.retiredModules
	c.retiredModules = nil
	c.mu.Unlock()
	var kept []hal.ShaderModule
	for _, m := range retired {
		if c.isCurrent(m) {
			kept = append(kept, m)
			continue
		}
		c.device.DestroyShaderModule(m)
	}
	if len(kept) > 0 {
		c.mu.Lock()
		c.retiredModules = append(c.retiredModules, kept...)
		c.mu.Unlock()
	}
}

func (c *Cache) isCurrent(m hal.ShaderModule) bool {
	for _, cur := range c.current {
		if cur.handle == m {
			return true
		}
	}
	return false
}

// DestroyAll waits for pending builds and releases every GPU object the
// cache owns.
func (c *Cache) DestroyAll() {
	c.WaitBuilds()

	c.mu.Lock()
	for hash, e := range c.pipelines {
		if e.pipeline != nil {
			c.device.DestroyRenderPipeline(e.pipeline)
		}
		delete(c.pipelines, hash)
	}
	c.mu.Unlock()

	c.modules.Clear()
	c.mu.Lock()
	retired := c.retiredModules
	c.retiredModules = nil
	c.mu.Unlock()
	for _, m := range retired {
		c.device.DestroyShaderModule(m)
	}
	c.current = [numStages]module{}
	c.bound = boundState{}

	c.heaps.destroy()
	if c.layout != nil {
		c.device.DestroyPipelineLayout(c.layout)
		c.layout = nil
	}
}
