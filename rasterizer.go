package pica

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/pica/pipeline"
	"github.com/gogpu/pica/regs"
	"github.com/gogpu/pica/rescache"
	"github.com/gogpu/pica/sched"
	"github.com/gogpu/pica/staging"
	"github.com/gogpu/pica/texture"
	"github.com/gogpu/pica/uniform"
	"github.com/gogpu/pica/vertex"
)

var (
	// ErrNilDevice is returned when no device or queue is given.
	ErrNilDevice = errors.New("pica: nil device")

	// ErrNilCore is returned when no guest GPU state is given.
	ErrNilCore = errors.New("pica: nil core")

	// ErrNilCache is returned when no surface cache or memory is given.
	ErrNilCache = errors.New("pica: nil resource cache")

	// ErrNilProvider is returned when a nil DeviceProvider is passed.
	ErrNilProvider = errors.New("pica: nil DeviceProvider")

	// ErrNoHAL is returned when a provider does not expose HAL types.
	ErrNoHAL = errors.New("pica: provider does not expose HAL types")
)

// RasterizerInterface is what the emulator core drives. Every method
// returns a status the caller uses to choose a fallback; none fails hard.
type RasterizerInterface interface {
	AccelerateDrawBatch(indexed bool) bool
	AddTriangle(v0, v1, v2 *vertex.HardwareVertex)
	DrawTriangles()

	FlushAll()
	FlushRegion(addr, size uint32)
	InvalidateRegion(addr, size uint32)
	FlushAndInvalidateRegion(addr, size uint32)
	ClearAll(flush bool)

	AccelerateDisplayTransfer(cfg regs.DisplayTransferConfig) bool
	AccelerateTextureCopy(cfg regs.DisplayTransferConfig) bool
	AccelerateFill(cfg regs.MemoryFillConfig) bool
	AccelerateDisplay(cfg regs.FramebufferConfig, addr, pixelStride uint32) (ScreenInfo, bool)

	LoadDefaultDiskResources(ctx context.Context, programID uint64, stop *atomic.Bool, cb pipeline.LoadCallback) error
	SwitchDiskResources(ctx context.Context, titleID uint64) error
	TickFrame()
}

var _ RasterizerInterface = (*Rasterizer)(nil)

// Rasterizer draws PICA register state with a HAL device. It is driven
// from a single goroutine.
type Rasterizer struct {
	device hal.Device
	core   *regs.Core
	res    rescache.Cache
	opts   options
	caps   pipeline.Capabilities

	scheduler *sched.Scheduler
	renders   *sched.RenderManager
	nulls     *rescache.NullResources
	pipelines *pipeline.Cache

	stream   *staging.StreamBuffer
	uniforms *staging.StreamBuffer
	lutLF    *staging.StreamBuffer
	lutTex   *staging.StreamBuffer

	vertices *vertex.Translator
	uploader *uniform.Uploader
	binder   *texture.Binder

	info           pipeline.Info
	softwareLayout vertex.Layout
	vertexInfo     vertex.Info
	batch          []vertex.HardwareVertex
	user           pipeline.UserConfig

	state atomic.Uint32
}

// New creates a rasterizer drawing the state in core. Render targets and
// textures are resolved through res; guest vertex data is read from mem.
func New(device hal.Device, queue hal.Queue, core *regs.Core, res rescache.Cache,
	mem rescache.Memory, opts ...Option,
) (*Rasterizer, error) {
	switch {
	case device == nil || queue == nil:
		return nil, ErrNilDevice
	case core == nil:
		return nil, ErrNilCore
	case res == nil || mem == nil:
		return nil, ErrNilCache
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	caps := pipeline.CapabilitiesFromLimits(gputypes.DefaultLimits())
	if o.caps != nil {
		caps = *o.caps
	}

	r := &Rasterizer{
		device:         device,
		core:           core,
		res:            res,
		opts:           o,
		caps:           caps,
		softwareLayout: vertex.SoftwareLayout(),
		user: pipeline.UserConfig{
			AccurateMul:     o.accurateMul,
			UseCustomNormal: o.customNormal,
		},
	}
	r.info.VertexLayout = r.softwareLayout

	r.scheduler = sched.NewScheduler(device, queue)
	r.renders = sched.NewRenderManager(r.scheduler)
	r.scheduler.RegisterOnSubmit(r.renders.EndRendering)

	r.nulls = rescache.NewNullResources(device)
	if err := r.nulls.Acquire(); err != nil {
		return nil, fmt.Errorf("pica: null resources: %w", err)
	}

	if err := r.createBuffers(); err != nil {
		r.Close()
		return nil, err
	}

	pipelines, err := pipeline.NewCache(device, r.scheduler, caps, r.nulls, pipeline.Options{
		Async:        o.asyncShaders,
		Workers:      o.buildWorkers,
		Source:       o.source,
		DiskCacheDir: o.diskCacheDir,
	})
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("pica: %w", err)
	}
	r.pipelines = pipelines

	r.vertices = vertex.NewTranslator(r.stream, mem, res, caps.MinVertexStrideAlignment)
	r.uploader = uniform.NewUploader(uniform.Buffers{
		Uniform: r.uniforms,
		LF:      r.lutLF,
		Tex:     r.lutTex,
	}, pipelines, caps.UniformMinAlignment, o.resolutionScale)
	r.binder = texture.NewBinder(res, pipelines, pipelines.UpdateQueue())

	if err := r.prepareDescriptors(); err != nil {
		r.Close()
		return nil, err
	}
	Logger().Debug("rasterizer created",
		"async", o.asyncShaders,
		"stream", o.streamBufferSize,
		"uniform", o.uniformBufferSize,
		"texture", r.lutTex.Size(),
	)
	return r, nil
}

// NewFromProvider creates a rasterizer on the device of a gpucontext
// provider. The provider must expose its HAL device and queue through
// HalDevice() any and HalQueue() any.
func NewFromProvider(provider gpucontext.DeviceProvider, core *regs.Core, res rescache.Cache,
	mem rescache.Memory, opts ...Option,
) (*Rasterizer, error) {
	if provider == nil {
		return nil, ErrNilProvider
	}
	hp, ok := provider.(interface {
		HalDevice() any
		HalQueue() any
	})
	if !ok {
		return nil, ErrNoHAL
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNoHAL)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNoHAL)
	}
	return New(device, queue, core, res, mem, opts...)
}

// textureBufferSize clamps the LUT ring to the largest range the device
// can bind as two-float elements.
func textureBufferSize(want uint64, caps pipeline.Capabilities) uint64 {
	if caps.MaxTexelBufferElements == 0 {
		return want
	}
	return min(want, caps.MaxTexelBufferElements*8)
}

func (r *Rasterizer) createBuffers() error {
	var err error
	r.stream, err = staging.New(r.device, "pica_stream", r.opts.streamBufferSize,
		gputypes.BufferUsageVertex|gputypes.BufferUsageIndex, r.waitForGPU)
	if err != nil {
		return fmt.Errorf("pica: %w", err)
	}
	r.uniforms, err = staging.New(r.device, "pica_uniform", r.opts.uniformBufferSize,
		gputypes.BufferUsageUniform, r.waitForGPU)
	if err != nil {
		return fmt.Errorf("pica: %w", err)
	}
	size := textureBufferSize(r.opts.textureBufferSize, r.caps)
	r.lutLF, err = staging.New(r.device, "pica_lut_lf", size, gputypes.BufferUsageStorage, r.waitForGPU)
	if err != nil {
		return fmt.Errorf("pica: %w", err)
	}
	r.lutTex, err = staging.New(r.device, "pica_lut_tex", size, gputypes.BufferUsageStorage, r.waitForGPU)
	if err != nil {
		return fmt.Errorf("pica: %w", err)
	}
	return nil
}

// waitForGPU submits pending work and waits for it before a ring reuses
// memory the GPU may still read.
func (r *Rasterizer) waitForGPU() error {
	Logger().Debug("staging ring wrapped, waiting for GPU")
	return r.scheduler.Finish()
}

// prepareDescriptors writes the static buffer bindings and the null
// textures of the three units.
func (r *Rasterizer) prepareDescriptors() error {
	q := r.pipelines.UpdateQueue()
	buffers := r.pipelines.Acquire(pipeline.HeapBuffer)
	textures := r.pipelines.Acquire(pipeline.HeapTexture)

	uniforms := r.uniforms.Handle()
	errs := []error{
		q.AddBuffer(buffers, pipeline.BindingVSPicaUniforms, uniforms, 0, uniform.VSPicaDataSize),
		q.AddBuffer(buffers, pipeline.BindingVSUniforms, uniforms, 0, uniform.VSDataSize),
		q.AddBuffer(buffers, pipeline.BindingFSUniforms, uniforms, 0, uniform.FSDataSize),
		q.AddStorageBuffer(buffers, pipeline.BindingLutLF, r.lutLF.Handle(), 0, r.lutLF.Size()),
		q.AddStorageBuffer(buffers, pipeline.BindingLutRG, r.lutTex.Handle(), 0, r.lutTex.Size()),
		q.AddStorageBuffer(buffers, pipeline.BindingLutRGBA, r.lutTex.Handle(), 0, r.lutTex.Size()),
	}

	view := r.res.Surface(rescache.NullSurfaceID).ImageView()
	sampler := r.res.Sampler(rescache.NullSamplerID).Handle()
	for unit := pipeline.BindingTexture0; unit <= pipeline.BindingTexture2; unit++ {
		errs = append(errs, q.AddImageSampler(textures, unit, 0, view, sampler))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("pica: prepare descriptors: %w", err)
	}
	q.Flush()
	return nil
}

// State returns the stage of the draw in progress.
func (r *Rasterizer) State() State { return State(r.state.Load()) }

func (r *Rasterizer) setState(s State) { r.state.Store(uint32(s)) }

// Capabilities returns the device capabilities in use.
func (r *Rasterizer) Capabilities() pipeline.Capabilities { return r.caps }

// PipelineStats returns the pipeline cache counters.
func (r *Rasterizer) PipelineStats() pipeline.Stats { return r.pipelines.Stats() }

// Flush submits every recorded command.
func (r *Rasterizer) Flush() error { return r.scheduler.Flush() }

// FlushAll writes every cached surface back to guest memory.
func (r *Rasterizer) FlushAll() { r.res.FlushAll() }

// FlushRegion writes cached surfaces overlapping the range back to guest
// memory.
func (r *Rasterizer) FlushRegion(addr, size uint32) { r.res.FlushRegion(addr, size) }

// InvalidateRegion drops cached surfaces overlapping the range.
func (r *Rasterizer) InvalidateRegion(addr, size uint32) { r.res.InvalidateRegion(addr, size) }

// FlushAndInvalidateRegion flushes then invalidates the range.
func (r *Rasterizer) FlushAndInvalidateRegion(addr, size uint32) {
	r.res.FlushRegion(addr, size)
	r.res.InvalidateRegion(addr, size)
}

// ClearAll drops every cached surface, writing them back first if flush
// is set.
func (r *Rasterizer) ClearAll(flush bool) { r.res.ClearAll(flush) }

func (r *Rasterizer) AccelerateDisplayTransfer(cfg regs.DisplayTransferConfig) bool {
	return r.res.AccelerateDisplayTransfer(cfg)
}

func (r *Rasterizer) AccelerateTextureCopy(cfg regs.DisplayTransferConfig) bool {
	return r.res.AccelerateTextureCopy(cfg)
}

func (r *Rasterizer) AccelerateFill(cfg regs.MemoryFillConfig) bool {
	return r.res.AccelerateFill(cfg)
}

// TickFrame ages the caches by one frame.
func (r *Rasterizer) TickFrame() {
	r.pipelines.TickFrame()
	r.res.TickFrame()
}

// LoadDefaultDiskResources loads the pipeline cache of programID. A
// missing or unreadable cache is not an error. Setting stop cancels the
// load with pipeline.ErrLoadCancelled.
func (r *Rasterizer) LoadDefaultDiskResources(ctx context.Context, programID uint64,
	stop *atomic.Bool, cb pipeline.LoadCallback,
) error {
	r.pipelines.SetProgramID(programID)
	return r.pipelines.LoadDiskCache(ctx, stop, cb)
}

// SwitchDiskResources saves the pipeline cache of the running title and
// loads the one of titleID.
func (r *Rasterizer) SwitchDiskResources(ctx context.Context, titleID uint64) error {
	var stop atomic.Bool
	return r.pipelines.SwitchPipelineCache(ctx, titleID, &stop, r.opts.loadCallback)
}

// Close submits pending work, saves the pipeline cache and releases every
// GPU object the rasterizer owns.
func (r *Rasterizer) Close() error {
	var errs []error
	if r.scheduler != nil {
		errs = append(errs, r.scheduler.Finish())
	}
	if r.pipelines != nil {
		errs = append(errs, r.pipelines.SaveDiskCache())
		r.pipelines.DestroyAll()
		r.pipelines = nil
	}
	for _, b := range []*staging.StreamBuffer{r.stream, r.uniforms, r.lutLF, r.lutTex} {
		if b != nil {
			b.Destroy()
		}
	}
	r.stream, r.uniforms, r.lutLF, r.lutTex = nil, nil, nil, nil
	if r.nulls != nil {
		r.nulls.Release()
		r.nulls = nil
	}
	return errors.Join(errs...)
}
