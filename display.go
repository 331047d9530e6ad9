package pica

import (
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/pica/regs"
	"github.com/gogpu/pica/rescache"
)

// TexRect is a rectangle in normalized texture coordinates.
type TexRect struct {
	Left, Top, Right, Bottom float32
}

// ScreenInfo is what the presenter samples to show a screen.
type ScreenInfo struct {
	// TexCoords selects the screen within ImageView. Screens are stored
	// rotated, so the axes are swapped.
	TexCoords TexRect
	ImageView hal.TextureView
}

// AccelerateDisplay finds the cached surface holding the framebuffer at
// addr. It returns false when no surface holds it, in which case the
// presenter reads guest memory instead.
func (r *Rasterizer) AccelerateDisplay(cfg regs.FramebufferConfig, addr, pixelStride uint32) (ScreenInfo, bool) {
	if addr == 0 {
		return ScreenInfo{}, false
	}
	params := rescache.SurfaceParams{
		Address:     addr,
		Width:       min(cfg.Width, pixelStride),
		Height:      cfg.Height,
		Stride:      pixelStride,
		Tiled:       false,
		PixelFormat: cfg.Format,
	}
	id, rect, ok := r.res.SurfaceSubRect(params)
	if !ok {
		return ScreenInfo{}, false
	}

	surface := r.res.Surface(id)
	w, h := float32(surface.ScaledWidth()), float32(surface.ScaledHeight())
	if w == 0 || h == 0 {
		return ScreenInfo{}, false
	}
	return ScreenInfo{
		TexCoords: TexRect{
			Left:   float32(rect.Bottom) / h,
			Top:    float32(rect.Left) / w,
			Right:  float32(rect.Top) / h,
			Bottom: float32(rect.Right) / w,
		},
		ImageView: surface.ImageView(),
	}, true
}
