// Package pica translates the register state of the PICA200 GPU into
// commands for the gogpu/wgpu hardware abstraction layer.
//
// # Overview
//
// A [Rasterizer] owns the host side of emulated rendering: the staging
// rings vertex, index, uniform and lookup table data is written to, the
// pipeline cache, and the descriptor heaps. Every draw the guest issues
// runs through [Rasterizer.Draw], which syncs fixed function state from
// the registers, resolves the render targets through the surface cache,
// binds textures, uploads uniforms and records the draw on the scheduler.
//
// # Quick Start
//
//	core := regs.NewCore()
//	r, err := pica.New(device, queue, core, surfaces, memory,
//	    pica.WithAsyncShaders(true),
//	    pica.WithDiskCacheDir(cacheDir),
//	)
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//
//	// The emulator core writes registers, then:
//	if !r.AccelerateDrawBatch(indexed) {
//	    // run vertex shaders in software and submit through AddTriangle
//	    r.DrawTriangles()
//	}
//
// # Architecture
//
// The module is organized into:
//   - regs: the register file and lookup tables with bit exact accessors
//   - staging: persistently mapped ring buffers
//   - vertex: guest vertex array translation
//   - pipeline: pipeline cache, descriptor heaps and the disk cache
//   - uniform: uniform blocks and the lookup table uploader
//   - texture: texture unit binding
//   - rescache: the contract with the surface cache and guest memory
//   - sched: command recording and render pass management
//
// The surface cache and the shader generator live outside this module and
// are consumed through [rescache.Cache] and [pipeline.ShaderSource].
package pica
