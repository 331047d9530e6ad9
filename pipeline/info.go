package pipeline

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/pica/regs"
	"github.com/gogpu/pica/rescache"
	"github.com/gogpu/pica/vertex"
)

// Rasterization is the primitive assembly state.
type Rasterization struct {
	CullMode regs.CullMode
	Topology regs.TriangleTopology
	// FlipViewport is set when the target is stored bottom-up, which
	// swaps the facing of every triangle.
	FlipViewport bool
}

// Blending is the color output state.
type Blending struct {
	BlendEnable bool
	ColorOp     regs.BlendEquation
	AlphaOp     regs.BlendEquation
	SrcColor    regs.BlendFactor
	DstColor    regs.BlendFactor
	SrcAlpha    regs.BlendFactor
	DstAlpha    regs.BlendFactor
	// ColorWriteMask has bit 0 for red through bit 3 for alpha.
	ColorWriteMask uint8
	LogicOp        regs.LogicOp
}

// DepthStencil is the depth and stencil test state. The stencil masks are
// static pipeline state on the host.
type DepthStencil struct {
	DepthTestEnable  bool
	DepthWriteEnable bool
	DepthCompare     regs.CompareFunc

	StencilTestEnable  bool
	StencilCompare     regs.CompareFunc
	StencilFailOp      regs.StencilAction
	StencilPassOp      regs.StencilAction
	StencilDepthFailOp regs.StencilAction
	StencilCompareMask uint8
	StencilWriteMask   uint8
}

// Attachments are the render target formats. An undefined format means
// the attachment is unused.
type Attachments struct {
	Color gputypes.TextureFormat
	Depth gputypes.TextureFormat
}

// DynamicState is recorded per draw and never part of the pipeline key.
type DynamicState struct {
	BlendColor       uint32
	StencilReference uint8
	Viewport         rescache.Viewport
	Scissor          regs.Rect
}

// Info is the fixed function state of a draw. Two draws with equal Info
// and equal shader programs use the same pipeline.
type Info struct {
	Rasterization Rasterization
	Blending      Blending
	DepthStencil  DepthStencil
	VertexLayout  vertex.Layout
	Attachments   Attachments
	Dynamic       DynamicState
}

// ShaderKeys identify the programs of each stage. Zero means the stage is
// unused.
type ShaderKeys [numStages]uint64

// Key is the hashed identity of a pipeline.
type Key struct {
	Rasterization Rasterization
	Blending      Blending
	DepthStencil  DepthStencil
	VertexLayout  vertex.Layout
	Attachments   Attachments
	Shaders       ShaderKeys
}

// KeyOf combines info and the current shader programs.
func KeyOf(info *Info, shaders ShaderKeys) Key {
	return Key{
		Rasterization: info.Rasterization,
		Blending:      info.Blending,
		DepthStencil:  info.DepthStencil,
		VertexLayout:  info.VertexLayout,
		Attachments:   info.Attachments,
		Shaders:       shaders,
	}
}

// Info returns the static part of the key as an Info.
func (k Key) Info() Info {
	return Info{
		Rasterization: k.Rasterization,
		Blending:      k.Blending,
		DepthStencil:  k.DepthStencil,
		VertexLayout:  k.VertexLayout,
		Attachments:   k.Attachments,
	}
}

// Hash returns the content hash of the key.
func (k Key) Hash() uint64 {
	buf, err := binary.Append(make([]byte, 0, 512), binary.LittleEndian, &k)
	if err != nil {
		// Key only holds fixed size fields.
		panic(err)
	}
	return xxhash.Sum64(buf)
}

// IsDepthWriteEnabled reports whether the draw writes depth or stencil.
func (i *Info) IsDepthWriteEnabled() bool {
	ds := &i.DepthStencil
	stencilWrites := ds.StencilTestEnable && ds.StencilWriteMask != 0
	return ds.DepthTestEnable && ds.DepthWriteEnable || stencilWrites
}

// hashShader folds register words into a shader key.
func hashShader(stage Stage, words ...uint32) uint64 {
	d := xxhash.New()
	var b [4]byte
	b[0] = byte(stage)
	_, _ = d.Write(b[:1])
	for _, w := range words {
		binary.LittleEndian.PutUint32(b[:], w)
		_, _ = d.Write(b[:])
	}
	return d.Sum64()
}
