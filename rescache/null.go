package rescache

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// NullResources owns the 1x1 placeholder images and sampler that fill
// descriptor slots with nothing bound. Resources are created on first use
// and released when the last reference is dropped.
type NullResources struct {
	device hal.Device

	mu       sync.Mutex
	refs     int
	color    hal.Texture
	shadow   hal.Texture
	view     hal.TextureView
	cubeView hal.TextureView
	uintView hal.TextureView
	storage  hal.TextureView
	sampler  hal.Sampler
}

// NewNullResources returns an empty set bound to device.
func NewNullResources(device hal.Device) *NullResources {
	return &NullResources{device: device}
}

// Acquire takes a reference, creating the resources if needed.
func (n *NullResources) Acquire() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.refs == 0 {
		if err := n.create(); err != nil {
			return err
		}
	}
	n.refs++
	return nil
}

// Release drops a reference and destroys the resources with the last one.
func (n *NullResources) Release() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.refs == 0 {
		return
	}
	n.refs--
	if n.refs == 0 {
		n.destroy()
	}
}

// View returns the placeholder 2D color view.
func (n *NullResources) View() hal.TextureView {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.view
}

// CubeView returns the placeholder cube view.
func (n *NullResources) CubeView() hal.TextureView {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.cubeView
}

// ShadowView returns the placeholder unsigned integer view used for shadow
// map slots.
func (n *NullResources) ShadowView() hal.TextureView {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.uintView
}

// StorageView returns the placeholder storage image view.
func (n *NullResources) StorageView() hal.TextureView {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.storage
}

// Sampler returns the placeholder sampler.
func (n *NullResources) Sampler() hal.Sampler {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sampler
}

func (n *NullResources) create() error { //nolint:funlen // descriptor setup is verbose
	color, err := n.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "null_surface",
		Size:          hal.Extent3D{Width: 1, Height: 1, DepthOrArrayLayers: 6},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageTextureBinding,
	})
	if err != nil {
		return fmt.Errorf("create null texture: %w", err)
	}
	n.color = color

	shadow, err := n.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "null_shadow",
		Size:          hal.Extent3D{Width: 1, Height: 1, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatR32Uint,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageStorageBinding,
	})
	if err != nil {
		n.destroy()
		return fmt.Errorf("create null shadow texture: %w", err)
	}
	n.shadow = shadow

	views := []struct {
		dst   *hal.TextureView
		tex   hal.Texture
		label string
		dim   gputypes.TextureViewDimension
		count uint32
	}{
		{&n.view, color, "null_surface_view", gputypes.TextureViewDimension2D, 1},
		{&n.cubeView, color, "null_cube_view", gputypes.TextureViewDimensionCube, 6},
		{&n.uintView, shadow, "null_shadow_view", gputypes.TextureViewDimension2D, 1},
		{&n.storage, shadow, "null_storage_view", gputypes.TextureViewDimension2D, 1},
	}
	for _, v := range views {
		view, err := n.device.CreateTextureView(v.tex, &hal.TextureViewDescriptor{
			Label:           v.label,
			Dimension:       v.dim,
			MipLevelCount:   1,
			ArrayLayerCount: v.count,
		})
		if err != nil {
			n.destroy()
			return fmt.Errorf("create %s: %w", v.label, err)
		}
		*v.dst = view
	}

	n.sampler, err = n.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "null_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeNearest,
		MinFilter:    gputypes.FilterModeNearest,
		MipmapFilter: gputypes.FilterModeNearest,
		LodMaxClamp:  1,
	})
	if err != nil {
		n.destroy()
		return fmt.Errorf("create null sampler: %w", err)
	}
	return nil
}

func (n *NullResources) destroy() {
	if n.sampler != nil {
		n.device.DestroySampler(n.sampler)
		n.sampler = nil
	}
	for _, v := range []*hal.TextureView{&n.storage, &n.uintView, &n.cubeView, &n.view} {
		if *v != nil {
			n.device.DestroyTextureView(*v)
			*v = nil
		}
	}
	for _, t := range []*hal.Texture{&n.shadow, &n.color} {
		if *t != nil {
			n.device.DestroyTexture(*t)
			*t = nil
		}
	}
}
