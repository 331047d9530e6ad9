package sched

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/pica/regs"
	"github.com/gogpu/pica/rescache"
)

// RenderManager tracks the active render pass and only restarts it when
// the target framebuffer or render area changes.
type RenderManager struct {
	scheduler *Scheduler

	active bool
	color  hal.TextureView
	depth  hal.TextureView
	area   regs.Rect
	passes uint64
}

// NewRenderManager creates a manager beginning passes on scheduler.
func NewRenderManager(scheduler *Scheduler) *RenderManager {
	return &RenderManager{scheduler: scheduler}
}

// BeginRendering makes fb the active target. Nothing is recorded when the
// same target and area are already active.
func (m *RenderManager) BeginRendering(fb rescache.Framebuffer, area regs.Rect) {
	color := fb.ImageView(rescache.SurfaceColor)
	depth := fb.ImageView(rescache.SurfaceDepth)
	if m.active && m.color == color && m.depth == depth && m.area == area {
		return
	}
	m.EndRendering()

	desc := &hal.RenderPassDescriptor{Label: "pica_pass"}
	if color != nil {
		desc.ColorAttachments = []hal.RenderPassColorAttachment{{
			View:    color,
			LoadOp:  gputypes.LoadOpLoad,
			StoreOp: gputypes.StoreOpStore,
		}}
	}
	if depth != nil {
		ds := &hal.RenderPassDepthStencilAttachment{
			View:         depth,
			DepthLoadOp:  gputypes.LoadOpLoad,
			DepthStoreOp: gputypes.StoreOpStore,
		}
		if fb.Format(rescache.SurfaceDepth) == gputypes.TextureFormatDepth24PlusStencil8 {
			ds.StencilLoadOp = gputypes.LoadOpLoad
			ds.StencilStoreOp = gputypes.StoreOpStore
		} else {
			ds.StencilReadOnly = true
		}
		desc.DepthStencilAttachment = ds
	}

	m.scheduler.BeginPass(desc)
	m.active = true
	m.color, m.depth, m.area = color, depth, area
	m.passes++
}

// EndRendering closes the active pass, if any.
func (m *RenderManager) EndRendering() {
	if !m.active {
		return
	}
	m.scheduler.EndPass()
	m.active = false
	m.color, m.depth = nil, nil
}

// Active reports whether a pass is open.
func (m *RenderManager) Active() bool { return m.active }

// Passes returns how many passes were started.
func (m *RenderManager) Passes() uint64 { return m.passes }
