// Package rescache declares the contract between the rasterizer and the
// surface/texture cache that owns guest-backed GPU images.
//
// The cache itself (format conversion, tiling, scaling) lives outside this
// module; the rasterizer only resolves ids to views and forwards memory
// coherency events.
package rescache

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/pica/regs"
)

// SurfaceID identifies a cached surface.
type SurfaceID uint32

// SamplerID identifies a cached sampler.
type SamplerID uint32

// Reserved ids of the placeholder surface and sampler bound to unused slots.
const (
	NullSurfaceID SurfaceID = 0
	NullSamplerID SamplerID = 0
)

// SurfaceFlags mark how a surface is used by a draw.
type SurfaceFlags uint32

const (
	// FlagShadowMap marks a surface written or read as a shadow map.
	FlagShadowMap SurfaceFlags = 1 << iota
	// FlagRenderTarget marks a surface bound as a color or depth attachment.
	FlagRenderTarget
)

// SurfaceType selects an attachment of a framebuffer.
type SurfaceType uint8

const (
	SurfaceColor SurfaceType = iota
	SurfaceDepth
)

// Surface is a cached guest image.
type Surface interface {
	// ImageView is the view used for sampling.
	ImageView() hal.TextureView
	// CopyImageView returns a view of a copy of the surface, for draws
	// that sample the attachment they render into.
	CopyImageView() hal.TextureView
	// StorageView is the view used for image load/store.
	StorageView() hal.TextureView
	AddFlags(flags SurfaceFlags)
	ScaledWidth() uint32
	ScaledHeight() uint32
}

// Sampler is a cached sampler object.
type Sampler interface {
	Handle() hal.Sampler
}

// Framebuffer is the set of attachments of the current draw.
type Framebuffer interface {
	// Valid reports whether any attachment exists.
	Valid() bool
	Format(t SurfaceType) gputypes.TextureFormat
	ImageView(t SurfaceType) hal.TextureView
	Width() uint32
	Height() uint32
}

// Viewport is the host viewport in framebuffer pixels.
type Viewport struct {
	X, Y, Width, Height int32
}

// FramebufferHelper resolves the current framebuffer and its rectangles.
// The helper keeps the attachments alive until it is released.
type FramebufferHelper interface {
	Framebuffer() Framebuffer
	// Scissor returns the scissor rectangle in guest coordinates.
	Scissor() regs.Rect
	// DrawRect is the region touched by the draw in scaled pixels.
	DrawRect() regs.Rect
	Viewport() Viewport
	Release()
}

// TextureCubeConfig identifies a cube texture by its six face addresses.
type TextureCubeConfig struct {
	PX, NX, PY, NY, PZ, NZ uint32

	Width  uint32
	Levels uint32
	Format uint32
}

// TextureInfo describes a single 2D texture in guest memory.
type TextureInfo struct {
	PhysicalAddress uint32
	Width           uint32
	Height          uint32
	Format          uint32
}

// TextureInfoFromConfig builds the texture description of a unit config.
func TextureInfoFromConfig(cfg regs.TextureConfig) TextureInfo {
	return TextureInfo{
		PhysicalAddress: cfg.Address,
		Width:           cfg.Width,
		Height:          cfg.Height,
		Format:          cfg.Format,
	}
}

// SurfaceParams describes a region of guest memory to be looked up as a
// surface, for presentation.
type SurfaceParams struct {
	Address     uint32
	Width       uint32
	Height      uint32
	Stride      uint32
	Tiled       bool
	PixelFormat regs.ColorFormat
}

// Cache is the surface and texture cache used by the rasterizer.
type Cache interface {
	Surface(id SurfaceID) Surface
	Sampler(id SamplerID) Sampler
	SamplerFor(cfg regs.TextureConfig) Sampler

	TextureSurface(cfg regs.TextureConfig) SurfaceID
	TextureSurfaceFromInfo(info TextureInfo) SurfaceID
	TextureCube(cfg TextureCubeConfig) Surface

	// FramebufferSurfaces returns the helper for the current draw targets.
	FramebufferSurfaces(useColor, useDepth bool) FramebufferHelper
	// SurfaceSubRect looks up a surface containing params. The boolean is
	// false when no cached surface matches.
	SurfaceSubRect(params SurfaceParams) (SurfaceID, regs.Rect, bool)

	FlushAll()
	FlushRegion(addr, size uint32)
	InvalidateRegion(addr, size uint32)
	ClearAll(flush bool)
	TickFrame()

	AccelerateDisplayTransfer(cfg regs.DisplayTransferConfig) bool
	AccelerateTextureCopy(cfg regs.DisplayTransferConfig) bool
	AccelerateFill(cfg regs.MemoryFillConfig) bool
}

// Memory resolves guest physical addresses.
type Memory interface {
	// PhysicalRef returns the bytes from addr to the end of its region,
	// or nil when addr is unmapped.
	PhysicalRef(addr uint32) []byte
}
