package pica

import (
	"errors"
	"slices"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/pica/regs"
	"github.com/gogpu/pica/rescache"
	"github.com/gogpu/pica/vertex"
)

// smallDrawVertices is the vertex count up to which draws wait for their
// pipeline even in async mode.
const smallDrawVertices = 6

// AccelerateDrawBatch draws the current vertex arrays with the guest
// vertex shader on the GPU. It returns false when the configuration cannot
// be accelerated; the caller then processes vertices in software and
// submits them through AddTriangle and DrawTriangles. A draw without
// vertices records nothing and reports success.
func (r *Rasterizer) AccelerateDrawBatch(indexed bool) bool {
	rg := &r.core.Regs
	p := rg.Pipeline()
	if p.UseGS() != regs.UseGSNo {
		if p.GSMode() != regs.GSModePoint || p.TriangleTopology() != regs.TopologyShader {
			return false
		}
	}

	r.info.Rasterization.Topology = p.TriangleTopology()
	if p.TriangleTopology() == regs.TopologyFan && !r.caps.TriangleFan {
		Logger().Debug("skipping accelerated draw with unsupported triangle fan topology")
		return false
	}

	// Staging may flush the scheduler, so it runs before any state of
	// this draw is recorded.
	info, err := r.vertices.Analyze(rg, indexed)
	if errors.Is(err, vertex.ErrNoVertices) {
		return true
	}
	if err != nil {
		Logger().Warn("vertex arrays unavailable", "err", err)
		return false
	}
	r.vertexInfo = info
	if err := r.vertices.SetupVertexArray(r.core, info); err != nil {
		Logger().Warn("vertex staging failed", "err", err)
		return false
	}
	r.info.VertexLayout = r.vertices.Layout()

	if !r.pipelines.UseProgrammableVertexShader(rg, &r.core.VS, &r.info.VertexLayout) {
		return false
	}
	if !r.setupGeometryShader() {
		return false
	}
	return r.Draw(true, indexed)
}

func (r *Rasterizer) setupGeometryShader() bool {
	rg := &r.core.Regs
	if rg.Pipeline().UseGS() != regs.UseGSNo {
		Logger().Warn("accelerated draw does not support geometry shaders")
		return false
	}
	if !r.caps.NeedsQuaternionFixup(rg.Lighting().Disabled()) {
		r.pipelines.UseTrivialGeometryShader()
		return true
	}
	return r.pipelines.UseFixedGeometryShader(rg)
}

// AddTriangle appends a software processed triangle to the batch.
func (r *Rasterizer) AddTriangle(v0, v1, v2 *vertex.HardwareVertex) {
	r.batch = append(r.batch, *v0, *v1, *v2)
}

// DrawTriangles draws the software batch as a triangle list.
func (r *Rasterizer) DrawTriangles() {
	if len(r.batch) == 0 {
		return
	}
	r.info.Rasterization.Topology = regs.TopologyList
	r.info.VertexLayout = r.softwareLayout
	r.pipelines.UseTrivialVertexShader()
	r.pipelines.UseTrivialGeometryShader()
	r.Draw(false, false)
}

// Draw records a draw of the current register state: either the vertex
// arrays staged by AccelerateDrawBatch or the software batch. A draw
// without a render target is skipped and reported as done. The software
// batch is empty afterwards in every case.
func (r *Rasterizer) Draw(accelerate, indexed bool) bool {
	defer func() {
		r.batch = r.batch[:0]
		r.setState(StateIdle)
	}()
	r.setState(StateSyncingState)

	rg := &r.core.Regs
	r.uploader.SyncDrawUniforms(rg)
	SyncDrawState(rg, r.caps, &r.info)

	useColor, useDepth := attachmentsNeeded(rg, &r.info)
	helper := r.res.FramebufferSurfaces(useColor, useDepth)
	defer helper.Release()
	target := helper.Framebuffer()
	if target == nil || !target.Valid() {
		Logger().Debug("draw skipped without render target", "color", useColor, "depth", useDepth)
		return true
	}
	r.info.Attachments.Color = target.Format(rescache.SurfaceColor)
	r.info.Attachments.Depth = target.Format(rescache.SurfaceDepth)

	// Guest scissor rectangles have their origin at the bottom.
	sc := helper.Scissor()
	r.uploader.SetScissor(sc.Left, sc.Bottom, sc.Right, sc.Top)

	r.setState(StateBinding)
	if err := r.binder.SyncTextureUnits(rg, target); err != nil {
		Logger().Warn("texture binding failed", "err", err)
	}
	if err := r.binder.SyncUtilityTextures(rg, target); err != nil {
		Logger().Warn("utility texture binding failed", "err", err)
	}
	r.pipelines.UseFragmentShader(rg, r.user)

	if err := r.uploadUniforms(accelerate); err != nil {
		Logger().Error("uniform upload failed", "err", err)
		return false
	}

	drawRect := helper.DrawRect()
	r.renders.BeginRendering(target, drawRect)
	r.info.Dynamic.Viewport = helper.Viewport()
	r.info.Dynamic.Scissor = drawRect

	r.setState(StateRecording)
	if accelerate {
		return r.drawAccelerated(indexed, target, drawRect)
	}
	return r.drawBatch(target, drawRect)
}

// resumeRendering reopens the pass when staging wrapped a ring, which
// submits and ends the pass that was open.
func (r *Rasterizer) resumeRendering(target rescache.Framebuffer, area regs.Rect) {
	if !r.renders.Active() {
		r.renders.BeginRendering(target, area)
	}
}

func (r *Rasterizer) uploadUniforms(accelerate bool) error {
	if err := r.uploader.SyncAndUploadLUTs(r.core); err != nil {
		return err
	}
	if err := r.uploader.SyncAndUploadLUTsLF(r.core); err != nil {
		return err
	}
	return r.uploader.UploadUniforms(&r.core.VS, accelerate)
}

func (r *Rasterizer) drawAccelerated(indexed bool, target rescache.Framebuffer, area regs.Rect) bool {
	rg := &r.core.Regs
	var ib vertex.IndexBinding
	if indexed {
		var err error
		ib, err = r.vertices.SetupIndexArray(rg)
		if err != nil {
			Logger().Warn("index staging failed", "err", err)
			return false
		}
		r.resumeRendering(target, area)
	}

	count := rg.Pipeline().NumVertices()
	wait := !r.opts.asyncShaders || count <= smallDrawVertices
	if !r.pipelines.BindPipeline(&r.info, wait) {
		return true
	}

	buffer := r.stream.Handle()
	offsets := slices.Clone(r.vertices.BindingOffsets())
	baseVertex := -int32(r.vertexInfo.IndexMin)
	r.scheduler.Record(func(pass hal.RenderPassEncoder) {
		for i, off := range offsets {
			pass.SetVertexBuffer(uint32(i), buffer, off)
		}
		if indexed {
			pass.SetIndexBuffer(buffer, ib.Format, ib.Offset)
			pass.DrawIndexed(ib.Count, 1, 0, baseVertex, 0)
			return
		}
		pass.Draw(count, 1, 0, 0)
	})
	return true
}

func (r *Rasterizer) drawBatch(target rescache.Framebuffer, area regs.Rect) bool {
	if len(r.batch) == 0 {
		return true
	}
	offset, err := vertex.StageBatch(r.stream, r.batch)
	if err != nil {
		Logger().Error("software batch staging failed", "err", err)
		return false
	}
	r.resumeRendering(target, area)
	if !r.pipelines.BindPipeline(&r.info, true) {
		Logger().Debug("software batch dropped without pipeline", "vertices", len(r.batch))
		return true
	}
	buffer := r.stream.Handle()
	count := uint32(len(r.batch))
	r.scheduler.Record(func(pass hal.RenderPassEncoder) {
		pass.SetVertexBuffer(0, buffer, offset)
		pass.Draw(count, 1, 0, 0)
	})
	return true
}
