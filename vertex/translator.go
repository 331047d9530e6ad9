package vertex

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/pica/internal/bitfield"
	"github.com/gogpu/pica/regs"
	"github.com/gogpu/pica/staging"
)

// fixedAttribBytes is the space reserved for the fixed binding: the
// default attribute plus one value per input register.
const fixedAttribBytes = (MaxAttributes + 1) * 16

var (
	// ErrNoIndexData is returned when the index array is outside guest memory.
	ErrNoIndexData = errors.New("vertex: index array not in guest memory")
	// ErrNoVertices is returned for a draw without vertices.
	ErrNoVertices = errors.New("vertex: draw has no vertices")
)

// Memory resolves guest physical addresses to host bytes. The returned
// slice runs from addr to the end of the backing region.
type Memory interface {
	PhysicalRef(addr uint32) []byte
}

// RegionFlusher writes back any cached GPU copy of a guest memory range.
type RegionFlusher interface {
	FlushRegion(addr, size uint32)
}

// Info is the result of analyzing a draw's vertex arrays.
type Info struct {
	IndexMin  uint32
	IndexMax  uint32
	InputSize uint32
}

// IndexBinding is a staged index buffer ready to be bound.
type IndexBinding struct {
	Offset uint64
	Format gputypes.IndexFormat
	Count  uint32
}

// Translator stages guest vertex arrays into a stream buffer and builds the
// matching vertex layout.
type Translator struct {
	stream      staging.Mapper
	mem         Memory
	flusher     RegionFlusher
	strideAlign uint32

	layout  Layout
	enabled [MaxAttributes]bool
	offsets [MaxBindings]uint64
}

// NewTranslator creates a translator writing into stream. strideAlign is
// the host minimum vertex stride alignment; 0 or 1 disables re-striding.
func NewTranslator(stream staging.Mapper, mem Memory, flusher RegionFlusher, strideAlign uint32) *Translator {
	return &Translator{
		stream:      stream,
		mem:         mem,
		flusher:     flusher,
		strideAlign: strideAlign,
	}
}

// Layout returns the layout built by the last SetupVertexArray.
func (t *Translator) Layout() Layout { return t.layout }

// BindingOffsets returns the stream buffer offset of each binding.
func (t *Translator) BindingOffsets() []uint64 {
	return t.offsets[:t.layout.BindingCount]
}

// Analyze computes the vertex index range and the staging size of a draw.
func (t *Translator) Analyze(r *regs.Regs, indexed bool) (Info, error) {
	p := r.Pipeline()
	var info Info
	if p.NumVertices() == 0 {
		return Info{}, ErrNoVertices
	}

	if indexed {
		ia := p.IndexArray()
		is16 := ia.Format != 0
		n := p.NumVertices()
		addr := p.BaseAddress() + ia.Offset
		size := n
		if is16 {
			size *= 2
		}
		t.flusher.FlushRegion(addr, size)
		data := t.mem.PhysicalRef(addr)
		if uint32(len(data)) < size {
			return Info{}, fmt.Errorf("%w: %#x+%d", ErrNoIndexData, addr, size)
		}
		lo, hi := uint32(0xFFFF), uint32(0)
		for i := uint32(0); i < n; i++ {
			var idx uint32
			if is16 {
				idx = uint32(binary.LittleEndian.Uint16(data[2*i:]))
			} else {
				idx = uint32(data[i])
			}
			lo = min(lo, idx)
			hi = max(hi, idx)
		}
		info.IndexMin, info.IndexMax = lo, hi
	} else {
		info.IndexMin = p.VertexOffset()
		info.IndexMax = p.VertexOffset() + p.NumVertices() - 1
	}

	num := info.IndexMax - info.IndexMin + 1
	for i := 0; i < regs.NumLoaders; i++ {
		l := p.Loader(i)
		if l.ComponentCount == 0 {
			continue
		}
		stride := bitfield.AlignUp(l.ByteCount, t.strideAlign)
		info.InputSize += bitfield.AlignUp(stride*num, 4)
	}
	return info, nil
}

// SetupVertexArray copies the vertex range in info from guest memory into
// the stream buffer, one binding per active loader, then appends the fixed
// attribute binding.
func (t *Translator) SetupVertexArray(core *regs.Core, info Info) error {
	r := &core.Regs
	p := r.Pipeline()
	vs := r.VS()

	region, err := t.stream.Map(uint64(info.InputSize), 16)
	if err != nil {
		return fmt.Errorf("vertex: map arrays: %w", err)
	}

	t.layout = Layout{AttributeCount: MaxAttributes}
	t.enabled = [MaxAttributes]bool{}

	base := p.BaseAddress()
	num := info.IndexMax - info.IndexMin + 1
	var bufferOffset uint32

	for i := 0; i < regs.NumLoaders; i++ {
		l := p.Loader(i)
		if l.ComponentCount == 0 || l.ByteCount == 0 {
			continue
		}

		var offset uint32
		for c := 0; c < int(l.ComponentCount) && c < regs.MaxLoaderComponents; c++ {
			idx := int(l.Components[c])
			if idx >= regs.MaxLoaderComponents {
				// Ids 12 to 15 are 4, 8, 12 and 16 byte paddings.
				offset = bitfield.AlignUp(offset, 4) + uint32(idx-11)*4
				continue
			}
			size := p.NumElements(idx)
			if size == 0 {
				continue
			}
			offset = bitfield.AlignUp(offset, p.Format(idx).ElementSize())
			reg := vs.RegisterForAttribute(idx)
			t.layout.Attributes[reg] = Attribute{
				Binding:  t.layout.BindingCount,
				Location: uint8(reg),
				Offset:   offset,
				Type:     p.Format(idx),
				Size:     uint8(size),
			}
			t.enabled[reg] = true
			offset += p.Stride(idx)
		}

		addr := base + l.DataOffset + info.IndexMin*l.ByteCount
		dataSize := l.ByteCount * num
		t.flusher.FlushRegion(addr, dataSize)

		src := t.mem.PhysicalRef(addr)
		if uint32(len(src)) < dataSize {
			slogger().Error("vertex buffer exceeds available guest memory",
				"size", dataSize, "available", len(src), "addr", fmt.Sprintf("%#08x", addr))
		}

		stride := bitfield.AlignUp(l.ByteCount, t.strideAlign)
		dst := region.Data[bufferOffset:]
		if stride == l.ByteCount {
			copy(dst[:dataSize], src)
		} else {
			for v := uint32(0); v < num; v++ {
				from := v * l.ByteCount
				if from >= uint32(len(src)) {
					break
				}
				copy(dst[v*stride:v*stride+l.ByteCount], src[from:])
			}
		}

		n := t.layout.BindingCount
		t.layout.Bindings[n] = Binding{Binding: n, Stride: uint16(stride)}
		t.offsets[n] = region.Offset + uint64(bufferOffset)
		t.layout.BindingCount++
		bufferOffset += bitfield.AlignUp(stride*num, 4)
	}

	if err := t.stream.Commit(uint64(bufferOffset)); err != nil {
		return fmt.Errorf("vertex: commit arrays: %w", err)
	}
	return t.SetupFixedAttribs(core)
}

// SetupFixedAttribs appends the binding that carries the default attribute
// and every fixed attribute value not already provided by a loader. Inputs
// left without a source read the default (0, 0, 0, 1).
func (t *Translator) SetupFixedAttribs(core *regs.Core) error {
	r := &core.Regs
	p := r.Pipeline()
	vs := r.VS()

	region, err := t.stream.Map(fixedAttribBytes, 0)
	if err != nil {
		return fmt.Errorf("vertex: map fixed attributes: %w", err)
	}
	fixed := t.layout.BindingCount
	t.offsets[fixed] = region.Offset

	putVec4(region.Data[0:], [4]float32{0, 0, 0, 1})
	offset := uint32(16)
	for i := 0; i < regs.NumAttributes; i++ {
		if !p.IsDefaultAttribute(i) {
			continue
		}
		reg := vs.RegisterForAttribute(i)
		if t.enabled[reg] {
			continue
		}
		var v [4]float32
		for j, f := range core.DefaultAttributes[i] {
			v[j] = f.Float32()
		}
		putVec4(region.Data[offset:], v)
		t.layout.Attributes[reg] = Attribute{
			Binding:  fixed,
			Location: uint8(reg),
			Offset:   offset,
			Type:     regs.AttribFloat,
			Size:     4,
		}
		offset += 16
		t.enabled[reg] = true
	}

	for i := range t.enabled {
		if t.enabled[i] {
			continue
		}
		t.layout.Attributes[i] = Attribute{
			Binding:  fixed,
			Location: uint8(i),
			Type:     regs.AttribFloat,
			Size:     4,
		}
	}

	t.layout.Bindings[fixed] = Binding{Binding: fixed, Fixed: true, Stride: uint16(offset)}
	t.layout.BindingCount++
	t.layout.AttributeCount = MaxAttributes

	if err := t.stream.Commit(uint64(offset)); err != nil {
		return fmt.Errorf("vertex: commit fixed attributes: %w", err)
	}
	return nil
}

// SetupIndexArray stages the index buffer of an indexed draw. 8-bit
// indices are widened to 16 bits.
func (t *Translator) SetupIndexArray(r *regs.Regs) (IndexBinding, error) {
	p := r.Pipeline()
	ia := p.IndexArray()
	n := p.NumVertices()
	u8 := ia.Format == 0
	size := n * 2

	src := t.mem.PhysicalRef(p.BaseAddress() + ia.Offset)
	srcSize := size
	if u8 {
		srcSize = n
	}
	if uint32(len(src)) < srcSize {
		return IndexBinding{}, fmt.Errorf("%w: %#x+%d", ErrNoIndexData, p.BaseAddress()+ia.Offset, srcSize)
	}

	region, err := t.stream.Map(uint64(size), 2)
	if err != nil {
		return IndexBinding{}, fmt.Errorf("vertex: map indices: %w", err)
	}
	if u8 {
		for i := uint32(0); i < n; i++ {
			binary.LittleEndian.PutUint16(region.Data[2*i:], uint16(src[i]))
		}
	} else {
		copy(region.Data, src[:size])
	}
	if err := t.stream.Commit(uint64(size)); err != nil {
		return IndexBinding{}, fmt.Errorf("vertex: commit indices: %w", err)
	}
	return IndexBinding{Offset: region.Offset, Format: gputypes.IndexFormatUint16, Count: n}, nil
}

// StageBatch copies a software vertex batch into the stream buffer and
// returns its offset.
func StageBatch(stream staging.Mapper, batch []HardwareVertex) (uint64, error) {
	size := uint64(len(batch)) * HardwareVertexSize
	region, err := stream.Map(size, HardwareVertexSize)
	if err != nil {
		return 0, fmt.Errorf("vertex: map batch: %w", err)
	}
	for i := range batch {
		batch[i].Put(region.Data[i*HardwareVertexSize:])
	}
	if err := stream.Commit(size); err != nil {
		return 0, fmt.Errorf("vertex: commit batch: %w", err)
	}
	return region.Offset, nil
}

func putVec4(dst []byte, v [4]float32) {
	for i, f := range v {
		binary.LittleEndian.PutUint32(dst[4*i:], math.Float32bits(f))
	}
}
