package pica

import (
	"github.com/gogpu/pica/pipeline"
)

// Default staging ring sizes.
const (
	DefaultStreamBufferSize  = 64 << 20
	DefaultUniformBufferSize = 8 << 20
	DefaultTextureBufferSize = 2 << 20
)

// Option configures a Rasterizer during creation.
//
// Example:
//
//	r, err := pica.New(device, queue, core, surfaces, memory,
//	    pica.WithAsyncShaders(true),
//	    pica.WithBuildWorkers(2),
//	)
type Option func(*options)

type options struct {
	asyncShaders      bool
	diskCacheDir      string
	streamBufferSize  uint64
	uniformBufferSize uint64
	textureBufferSize uint64
	caps              *pipeline.Capabilities
	source            pipeline.ShaderSource
	accurateMul       bool
	customNormal      bool
	buildWorkers      int
	resolutionScale   int32
	loadCallback      pipeline.LoadCallback
}

func defaultOptions() options {
	return options{
		streamBufferSize:  DefaultStreamBufferSize,
		uniformBufferSize: DefaultUniformBufferSize,
		textureBufferSize: DefaultTextureBufferSize,
		buildWorkers:      4,
		resolutionScale:   1,
	}
}

// WithAsyncShaders builds pipelines on background workers. Draws whose
// pipeline is still building are skipped, except small ones which always
// wait.
func WithAsyncShaders(enabled bool) Option {
	return func(o *options) {
		o.asyncShaders = enabled
	}
}

// WithDiskCacheDir sets the directory pipeline caches are persisted to.
// An empty directory disables the disk cache.
func WithDiskCacheDir(dir string) Option {
	return func(o *options) {
		o.diskCacheDir = dir
	}
}

// WithStreamBufferSize sets the size of the vertex and index ring.
func WithStreamBufferSize(size uint64) Option {
	return func(o *options) {
		if size > 0 {
			o.streamBufferSize = size
		}
	}
}

// WithUniformBufferSize sets the size of the uniform ring.
func WithUniformBufferSize(size uint64) Option {
	return func(o *options) {
		if size > 0 {
			o.uniformBufferSize = size
		}
	}
}

// WithTextureBufferSize sets the size of each lookup table ring. The size
// is clamped to what the device can bind.
func WithTextureBufferSize(size uint64) Option {
	return func(o *options) {
		if size > 0 {
			o.textureBufferSize = size
		}
	}
}

// WithCapabilities overrides the capabilities derived from the device
// limits.
func WithCapabilities(caps pipeline.Capabilities) Option {
	return func(o *options) {
		o.caps = &caps
	}
}

// WithShaderSource sets the generator of shader programs. Without one
// only software processed vertices can be drawn.
func WithShaderSource(src pipeline.ShaderSource) Option {
	return func(o *options) {
		o.source = src
	}
}

// WithAccurateMul requests IEEE-correct multiplication in generated
// vertex programs.
func WithAccurateMul(enabled bool) Option {
	return func(o *options) {
		o.accurateMul = enabled
	}
}

// WithCustomNormal makes generated programs read normal maps.
func WithCustomNormal(enabled bool) Option {
	return func(o *options) {
		o.customNormal = enabled
	}
}

// WithBuildWorkers bounds the number of concurrent pipeline builds.
func WithBuildWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.buildWorkers = n
		}
	}
}

// WithResolutionScale sets the factor surfaces are upscaled by.
func WithResolutionScale(scale int32) Option {
	return func(o *options) {
		if scale > 0 {
			o.resolutionScale = scale
		}
	}
}

// WithLoadCallback sets the progress callback of pipeline cache loads
// started by SwitchDiskResources.
func WithLoadCallback(cb pipeline.LoadCallback) Option {
	return func(o *options) {
		o.loadCallback = cb
	}
}
