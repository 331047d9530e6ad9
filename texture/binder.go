// Package texture binds the PICA texture units and utility images to the
// descriptor heaps of the pipeline cache.
package texture

import (
	"errors"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/pica/pipeline"
	"github.com/gogpu/pica/regs"
	"github.com/gogpu/pica/rescache"
)

// Heaps hands out the descriptor set of a heap.
type Heaps interface {
	Acquire(heap pipeline.HeapType) *pipeline.DescriptorSet
}

// Writer queues descriptor writes.
type Writer interface {
	AddImageSampler(set *pipeline.DescriptorSet, binding, arrayIndex int, view hal.TextureView, sampler hal.Sampler) error
	AddStorageImage(set *pipeline.DescriptorSet, binding int, view hal.TextureView) error
}

var cubeFaces = [pipeline.NumShadowFaces]regs.CubeFace{
	regs.CubePositiveX, regs.CubeNegativeX,
	regs.CubePositiveY, regs.CubeNegativeY,
	regs.CubePositiveZ, regs.CubeNegativeZ,
}

// Binder resolves texture unit state to cached surfaces.
type Binder struct {
	cache  rescache.Cache
	heaps  Heaps
	writer Writer
}

// NewBinder returns a binder writing through w into the sets of heaps.
func NewBinder(cache rescache.Cache, heaps Heaps, w Writer) *Binder {
	return &Binder{cache: cache, heaps: heaps, writer: w}
}

func (b *Binder) null() (hal.TextureView, hal.Sampler) {
	return b.cache.Surface(rescache.NullSurfaceID).ImageView(),
		b.cache.Sampler(rescache.NullSamplerID).Handle()
}

// SyncTextureUnits binds the three texture units. Unit 0 may instead
// feed the shadow or cube bindings, in which case its 2D slot gets the
// null texture. A shadow map is read as a storage image from the shadow
// slot, which replaces texture 0 and takes no sampler. A unit sampling
// the color target it renders into reads from a copy.
func (b *Binder) SyncTextureUnits(r *regs.Regs, fb rescache.Framebuffer) error {
	set := b.heaps.Acquire(pipeline.HeapTexture)
	units := r.Texturing().Units()
	var errs []error
	add := func(binding, index int, view hal.TextureView, sampler hal.Sampler) {
		if err := b.writer.AddImageSampler(set, binding, index, view, sampler); err != nil {
			errs = append(errs, err)
		}
	}

	for i, unit := range units {
		if !unit.Enabled {
			view, sampler := b.null()
			add(i, 0, view, sampler)
			continue
		}

		cfg := unit.Config
		if i == 0 && isSpecial(cfg.Type) {
			// The cube shares sampler 0, so only the view is reset.
			view, _ := b.null()
			add(pipeline.BindingTexture0, 0, view, nil)
			switch cfg.Type {
			case regs.TextureShadow2D:
				surface := b.cache.Surface(b.cache.TextureSurface(cfg))
				surface.AddFlags(rescache.FlagShadowMap)
				add(pipeline.BindingShadow, 0, surface.StorageView(), nil)
			case regs.TextureShadowCube:
				b.bindShadowCube(cfg, add)
			default:
				b.bindTextureCube(cfg, add)
			}
			continue
		}

		surface := b.cache.Surface(b.cache.TextureSurface(cfg))
		sampler := b.cache.SamplerFor(cfg)
		view := surface.ImageView()
		if fb != nil && view == fb.ImageView(rescache.SurfaceColor) {
			view = surface.CopyImageView()
		}
		add(i, 0, view, sampler.Handle())
	}
	return errors.Join(errs...)
}

func isSpecial(t regs.TextureType) bool {
	return t == regs.TextureShadow2D || t == regs.TextureShadowCube || t == regs.TextureCube
}

// bindShadowCube binds the six faces of a shadow cube. Each face is
// looked up on its own since the faces need not be contiguous.
func (b *Binder) bindShadowCube(cfg regs.TextureConfig, add func(int, int, hal.TextureView, hal.Sampler)) {
	info := rescache.TextureInfoFromConfig(cfg)
	for i, face := range cubeFaces {
		info.PhysicalAddress = cfg.CubePhysicalAddress(face)
		surface := b.cache.Surface(b.cache.TextureSurfaceFromInfo(info))
		surface.AddFlags(rescache.FlagShadowMap)
		add(pipeline.BindingShadow, i, surface.StorageView(), nil)
	}
}

func (b *Binder) bindTextureCube(cfg regs.TextureConfig, add func(int, int, hal.TextureView, hal.Sampler)) {
	cube := b.cache.TextureCube(rescache.TextureCubeConfig{
		PX:     cfg.CubePhysicalAddress(regs.CubePositiveX),
		NX:     cfg.CubePhysicalAddress(regs.CubeNegativeX),
		PY:     cfg.CubePhysicalAddress(regs.CubePositiveY),
		NY:     cfg.CubePhysicalAddress(regs.CubeNegativeY),
		PZ:     cfg.CubePhysicalAddress(regs.CubePositiveZ),
		NZ:     cfg.CubePhysicalAddress(regs.CubeNegativeZ),
		Width:  cfg.Width,
		Levels: cfg.MaxLevel + 1,
		Format: cfg.Format,
	})
	add(pipeline.BindingTextureCube, 0, cube.ImageView(), b.cache.SamplerFor(cfg).Handle())
}

// SyncUtilityTextures binds the color target as the shadow map storage
// image while shadow rendering.
func (b *Binder) SyncUtilityTextures(r *regs.Regs, fb rescache.Framebuffer) error {
	if !r.Framebuffer().IsShadowRendering() || fb == nil {
		return nil
	}
	set := b.heaps.Acquire(pipeline.HeapUtility)
	return b.writer.AddStorageImage(set, pipeline.BindingShadowBuffer, fb.ImageView(rescache.SurfaceColor))
}
