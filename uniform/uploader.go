package uniform

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"

	"github.com/gogpu/pica/internal/bitfield"
	"github.com/gogpu/pica/pipeline"
	"github.com/gogpu/pica/regs"
	"github.com/gogpu/pica/staging"
)

// Element sizes of the LUT buffers.
const (
	vec2Size = 8
	vec4Size = 16
)

// Worst case bytes of one upload per LUT family.
const (
	maxLFSize  = vec2Size*regs.LightingLutSize*regs.NumLightingSampler + vec2Size*regs.FogLutSize
	maxTexSize = vec2Size*regs.ProcTexLutSize*3 + vec4Size*regs.ProcTexColorSize*2
)

// RangeUpdater moves the start of a dynamic uniform binding.
type RangeUpdater interface {
	UpdateRange(binding int, offset uint32)
}

// Buffers are the staging rings the uploader writes to.
type Buffers struct {
	// Uniform receives the three uniform blocks.
	Uniform staging.Mapper
	// LF receives the lighting and fog tables.
	LF staging.Mapper
	// Tex receives the procedural texture tables.
	Tex staging.Mapper
}

// Uploader tracks the uniform blocks and uploads whatever changed.
type Uploader struct {
	bufs   Buffers
	ranges RangeUpdater

	align      uint64
	sizeVSPica uint64
	sizeVS     uint64
	sizeFS     uint64

	vs      VSData
	fs      FSData
	vsPica  VSPicaData
	vsDirty bool
	fsDirty bool

	scratch []byte
}

// NewUploader creates an uploader. alignment is the device minimum
// uniform buffer offset alignment and resScale the resolution multiplier
// the fragment stage scales framebuffer coordinates by.
func NewUploader(bufs Buffers, ranges RangeUpdater, alignment uint32, resScale int32) *Uploader {
	align := uint64(max(alignment, 1))
	u := &Uploader{
		bufs:       bufs,
		ranges:     ranges,
		align:      align,
		sizeVSPica: bitfield.AlignUp(uint64(VSPicaDataSize), align),
		sizeVS:     bitfield.AlignUp(uint64(VSDataSize), align),
		sizeFS:     bitfield.AlignUp(uint64(FSDataSize), align),
		vsDirty:    true,
		fsDirty:    true,
		scratch:    make([]byte, 0, VSPicaDataSize),
	}
	u.fs.FramebufferScale = max(resScale, 1)
	return u
}

// VS returns the vertex block.
func (u *Uploader) VS() VSData { return u.vs }

// FS returns the fragment block.
func (u *Uploader) FS() FSData { return u.fs }

// Dirty reports which blocks wait for upload.
func (u *Uploader) Dirty() (vs, fs bool) { return u.vsDirty, u.fsDirty }

// SyncDrawUniforms refreshes the register derived uniforms.
func (u *Uploader) SyncDrawUniforms(r *regs.Regs) {
	if syncVS(&u.vs, r) {
		u.vsDirty = true
	}
	if syncFS(&u.fs, r) {
		u.fsDirty = true
	}
}

// SetScissor stores the scissor rectangle in framebuffer pixels. It
// reports whether the rectangle changed.
func (u *Uploader) SetScissor(x1, y1, x2, y2 int32) bool {
	fs := &u.fs
	if fs.ScissorX1 == x1 && fs.ScissorY1 == y1 && fs.ScissorX2 == x2 && fs.ScissorY2 == y2 {
		return false
	}
	fs.ScissorX1, fs.ScissorY1, fs.ScissorX2, fs.ScissorY2 = x1, y1, x2, y2
	u.fsDirty = true
	return true
}

func putVec2(dst []byte, a, b float32) {
	binary.LittleEndian.PutUint32(dst, math.Float32bits(a))
	binary.LittleEndian.PutUint32(dst[4:], math.Float32bits(b))
}

func putVec4(dst []byte, v [4]float32) {
	for i, f := range v {
		binary.LittleEndian.PutUint32(dst[4*i:], math.Float32bits(f))
	}
}

// SyncAndUploadLUTsLF uploads the dirty lighting and fog tables, lowest
// lighting table first.
func (u *Uploader) SyncAndUploadLUTsLF(core *regs.Core) error {
	if core.Lighting.LutDirty == 0 && !core.Fog.LutDirty {
		return nil
	}
	region, err := u.bufs.LF.Map(maxLFSize, vec4Size)
	if err != nil {
		return fmt.Errorf("uniform: map lighting tables: %w", err)
	}
	if region.Invalidated {
		core.Lighting.LutDirty = regs.AllLightingLutsDirty
		core.Fog.LutDirty = true
	}

	used := uint64(0)
	for core.Lighting.LutDirty != 0 {
		index := bits.TrailingZeros32(core.Lighting.LutDirty)
		core.Lighting.LutDirty &^= 1 << index

		dst := region.Data[used:]
		for i, e := range core.Lighting.LUTs[index] {
			putVec2(dst[i*vec2Size:], e.ToFloat(), e.DiffToFloat())
		}
		u.fs.LightingLutOffset[index/4][index%4] = int32((region.Offset + used) / vec2Size)
		used += regs.LightingLutSize * vec2Size
	}

	if core.Fog.LutDirty {
		dst := region.Data[used:]
		for i, e := range core.Fog.LUT {
			putVec2(dst[i*vec2Size:], e.ToFloat(), e.DiffToFloat())
		}
		u.fs.FogLutOffset = int32((region.Offset + used) / vec2Size)
		used += regs.FogLutSize * vec2Size
		core.Fog.LutDirty = false
	}

	u.fsDirty = true
	slogger().Debug("lighting tables uploaded", "bytes", used, "offset", region.Offset)
	return u.bufs.LF.Commit(used)
}

// SyncAndUploadLUTs uploads the dirty procedural texture tables.
func (u *Uploader) SyncAndUploadLUTs(core *regs.Core) error {
	pt := &core.ProcTex
	if pt.TableDirty == 0 {
		return nil
	}
	region, err := u.bufs.Tex.Map(maxTexSize, vec4Size)
	if err != nil {
		return fmt.Errorf("uniform: map proctex tables: %w", err)
	}
	if region.Invalidated {
		pt.TableDirty = regs.ProcTexAllDirty
	}

	used := uint64(0)
	values := func(lut *[regs.ProcTexLutSize]regs.ProcTexValueEntry, offset *int32) {
		dst := region.Data[used:]
		for i, e := range lut {
			putVec2(dst[i*vec2Size:], e.ToFloat(), e.DiffToFloat())
		}
		*offset = int32((region.Offset + used) / vec2Size)
		used += regs.ProcTexLutSize * vec2Size
	}
	if pt.TableDirty&regs.ProcTexNoiseDirty != 0 {
		values(&pt.Noise, &u.fs.ProcTexNoiseLutOffset)
	}
	if pt.TableDirty&regs.ProcTexColorMapDirty != 0 {
		values(&pt.ColorMap, &u.fs.ProcTexColorMapOffset)
	}
	if pt.TableDirty&regs.ProcTexAlphaMapDirty != 0 {
		values(&pt.AlphaMap, &u.fs.ProcTexAlphaMapOffset)
	}
	if pt.TableDirty&regs.ProcTexLutDirty != 0 {
		dst := region.Data[used:]
		for i, e := range pt.Color {
			putVec4(dst[i*vec4Size:], e.ToVector())
		}
		u.fs.ProcTexLutOffset = int32((region.Offset + used) / vec4Size)
		used += regs.ProcTexColorSize * vec4Size
	}
	if pt.TableDirty&regs.ProcTexDiffDirty != 0 {
		dst := region.Data[used:]
		for i, e := range pt.ColorDiff {
			putVec4(dst[i*vec4Size:], e.ToVector())
		}
		u.fs.ProcTexDiffLutOffset = int32((region.Offset + used) / vec4Size)
		used += regs.ProcTexColorSize * vec4Size
	}
	pt.TableDirty = 0

	u.fsDirty = true
	return u.bufs.Tex.Commit(used)
}

// UploadUniforms writes the dirty blocks and points their bindings at the
// new data. The guest shader uniforms only matter to accelerated draws.
// After the ring wraps every block is written again.
func (u *Uploader) UploadUniforms(setup *regs.VSSetup, accelerate bool) error {
	syncVSPica := accelerate && setup.UniformsDirty
	if !syncVSPica && !u.vsDirty && !u.fsDirty {
		return nil
	}

	total := u.sizeVSPica + u.sizeVS + u.sizeFS
	region, err := u.bufs.Uniform.Map(total, u.align)
	if err != nil {
		return fmt.Errorf("uniform: map uniforms: %w", err)
	}
	inv := region.Invalidated

	used := uint64(0)
	if u.vsDirty || inv {
		u.write(region, used, u.vs.Append(u.scratch[:0]))
		u.ranges.UpdateRange(pipeline.BindingVSUniforms, uint32(region.Offset+used))
		u.vsDirty = false
		used += u.sizeVS
	}
	if u.fsDirty || inv {
		u.write(region, used, u.fs.Append(u.scratch[:0]))
		u.ranges.UpdateRange(pipeline.BindingFSUniforms, uint32(region.Offset+used))
		u.fsDirty = false
		used += u.sizeFS
	}
	if syncVSPica || inv {
		u.vsPica.SetFromSetup(setup)
		u.write(region, used, u.vsPica.Append(u.scratch[:0]))
		u.ranges.UpdateRange(pipeline.BindingVSPicaUniforms, uint32(region.Offset+used))
		setup.UniformsDirty = false
		used += u.sizeVSPica
	}
	return u.bufs.Uniform.Commit(used)
}

func (u *Uploader) write(region staging.Region, at uint64, block []byte) {
	copy(region.Data[at:], block)
	u.scratch = block[:0]
}
