package vertex

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/pica/regs"
	"github.com/gogpu/pica/staging"
)

// fakeStream is an in-memory staging.Mapper.
type fakeStream struct {
	data    []byte
	cursor  uint64
	maps    int
	commits int
}

func newFakeStream(size int, fill byte) *fakeStream {
	return &fakeStream{data: bytes.Repeat([]byte{fill}, size)}
}

func (f *fakeStream) Map(size, align uint64) (staging.Region, error) {
	f.maps++
	off := f.cursor
	if align > 1 {
		off = (off + align - 1) / align * align
	}
	f.cursor = off
	return staging.Region{Data: f.data[off : off+size], Offset: off}, nil
}

func (f *fakeStream) Commit(size uint64) error {
	f.commits++
	f.cursor += size
	return nil
}

// fakeMemory maps a single guest region starting at base.
type fakeMemory struct {
	base    uint32
	data    []byte
	flushed [][2]uint32
}

func (m *fakeMemory) PhysicalRef(addr uint32) []byte {
	if addr < m.base || addr >= m.base+uint32(len(m.data)) {
		return nil
	}
	return m.data[addr-m.base:]
}

func (m *fakeMemory) FlushRegion(addr, size uint32) {
	m.flushed = append(m.flushed, [2]uint32{addr, size})
}

const guestBase = 0x2000_0000

func sequence(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i + 1)
	}
	return out
}

// setupLoader configures loader 0 with two FLOAT attributes (x1 each)
// mapped to input registers 0 and 1 and the given byte stride.
func setupLoader(core *regs.Core, byteCount uint32) {
	r := &core.Regs
	r[regs.RegVertexAttribBase] = (guestBase / 16) << 1
	r[regs.RegVertexAttribFormat] = uint32(regs.AttribFloat) | uint32(regs.AttribFloat)<<4
	r[regs.RegVertexLoaderBase] = 0
	r[regs.RegVertexLoaderBase+1] = 0 | 1<<4
	r[regs.RegVertexLoaderBase+2] = byteCount<<16 | 2<<28
	r[regs.RegVSInputMapLow] = 0 | 1<<4
	r[regs.RegNumVertices] = 3
}

func TestTranslatorEndToEnd(t *testing.T) {
	core := regs.NewCore()
	setupLoader(core, 8)
	mem := &fakeMemory{base: guestBase, data: sequence(64)}
	stream := newFakeStream(1024, 0)
	tr := NewTranslator(stream, mem, mem, 4)

	info, err := tr.Analyze(&core.Regs, false)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if info.IndexMin != 0 || info.IndexMax != 2 || info.InputSize != 24 {
		t.Fatalf("info = %+v", info)
	}
	if err := tr.SetupVertexArray(core, info); err != nil {
		t.Fatalf("SetupVertexArray failed: %v", err)
	}

	layout := tr.Layout()
	streamed := 0
	for _, b := range layout.Bindings[:layout.BindingCount] {
		if !b.Fixed {
			streamed++
			if b.Stride != 8 {
				t.Errorf("stride = %d, want 8", b.Stride)
			}
		}
	}
	if streamed != 1 {
		t.Errorf("streamed bindings = %d, want 1", streamed)
	}
	off := tr.BindingOffsets()[0]
	if !bytes.Equal(stream.data[off:off+24], mem.data[:24]) {
		t.Errorf("staged bytes = %v, want %v", stream.data[off:off+24], mem.data[:24])
	}
	if got := layout.Attributes[1]; got.Offset != 4 || got.Binding != 0 || got.Location != 1 {
		t.Errorf("attribute 1 = %+v", got)
	}
	if len(mem.flushed) != 1 || mem.flushed[0] != [2]uint32{guestBase, 24} {
		t.Errorf("flushed = %v", mem.flushed)
	}
}

func TestTranslatorRestride(t *testing.T) {
	core := regs.NewCore()
	setupLoader(core, 6)
	// Loader component list: attribute 0 only (x1 FLOAT) then 2 bytes of data.
	core.Regs[regs.RegVertexLoaderBase+1] = 0
	core.Regs[regs.RegVertexLoaderBase+2] = 6<<16 | 1<<28

	mem := &fakeMemory{base: guestBase, data: sequence(64)}
	stream := newFakeStream(1024, 0xEE)
	tr := NewTranslator(stream, mem, mem, 4)

	info, _ := tr.Analyze(&core.Regs, false)
	if info.InputSize != 24 {
		t.Fatalf("InputSize = %d, want 24", info.InputSize)
	}
	if err := tr.SetupVertexArray(core, info); err != nil {
		t.Fatal(err)
	}
	if got := tr.Layout().Bindings[0].Stride; got != 8 {
		t.Fatalf("aligned stride = %d, want 8", got)
	}
	off := tr.BindingOffsets()[0]
	for v := 0; v < 3; v++ {
		dst := stream.data[off+uint64(v*8):]
		if !bytes.Equal(dst[:6], mem.data[v*6:v*6+6]) {
			t.Errorf("vertex %d = %v, want %v", v, dst[:6], mem.data[v*6:v*6+6])
		}
		if dst[6] != 0xEE || dst[7] != 0xEE {
			t.Errorf("vertex %d padding overwritten: %v", v, dst[6:8])
		}
	}
}

func TestTranslatorPaddingComponents(t *testing.T) {
	core := regs.NewCore()
	setupLoader(core, 24)
	// attribute 0, 8-byte padding (13), attribute 1
	core.Regs[regs.RegVertexLoaderBase+1] = 0 | 13<<4 | 1<<8
	core.Regs[regs.RegVertexLoaderBase+2] = 24<<16 | 3<<28

	mem := &fakeMemory{base: guestBase, data: sequence(128)}
	tr := NewTranslator(newFakeStream(1024, 0), mem, mem, 1)
	info, _ := tr.Analyze(&core.Regs, false)
	if err := tr.SetupVertexArray(core, info); err != nil {
		t.Fatal(err)
	}
	if got := tr.Layout().Attributes[1].Offset; got != 4+8 {
		t.Errorf("attribute after padding offset = %d, want 12", got)
	}
}

func TestTranslatorFixedAttribs(t *testing.T) {
	core := regs.NewCore()
	setupLoader(core, 8)
	core.SetDefaultAttribute(12, [4]float32{1, 2, 3, 4})
	// Attribute 12 feeds input register 5.
	core.Regs[regs.RegVSInputMapHigh] = 5 << 16

	mem := &fakeMemory{base: guestBase, data: sequence(64)}
	stream := newFakeStream(2048, 0)
	tr := NewTranslator(stream, mem, mem, 4)
	info, _ := tr.Analyze(&core.Regs, false)
	if err := tr.SetupVertexArray(core, info); err != nil {
		t.Fatal(err)
	}

	layout := tr.Layout()
	fixed := layout.BindingCount - 1
	if !layout.Bindings[fixed].Fixed {
		t.Fatal("last binding is not fixed")
	}
	base := tr.BindingOffsets()[fixed]
	readVec := func(off uint32) [4]float32 {
		var v [4]float32
		for i := range v {
			v[i] = math.Float32frombits(binary.LittleEndian.Uint32(stream.data[base+uint64(off)+uint64(4*i):]))
		}
		return v
	}
	if got := readVec(0); got != [4]float32{0, 0, 0, 1} {
		t.Errorf("default attribute = %v", got)
	}
	a5 := layout.Attributes[5]
	if a5.Binding != fixed || readVec(a5.Offset) != [4]float32{1, 2, 3, 4} {
		t.Errorf("register 5 = %+v value %v", a5, readVec(a5.Offset))
	}
	// Register 9 has no source and reads the default.
	if a9 := layout.Attributes[9]; a9.Binding != fixed || a9.Offset != 0 || a9.Size != 4 {
		t.Errorf("register 9 = %+v", a9)
	}
	if layout.AttributeCount != MaxAttributes {
		t.Errorf("AttributeCount = %d", layout.AttributeCount)
	}
}

func TestTranslatorSkipsEmptyLoaders(t *testing.T) {
	core := regs.NewCore()
	setupLoader(core, 0)
	mem := &fakeMemory{base: guestBase, data: sequence(64)}
	tr := NewTranslator(newFakeStream(1024, 0), mem, mem, 4)
	info, _ := tr.Analyze(&core.Regs, false)
	if err := tr.SetupVertexArray(core, info); err != nil {
		t.Fatal(err)
	}
	if got := tr.Layout().BindingCount; got != 1 {
		t.Errorf("BindingCount = %d, want only the fixed binding", got)
	}
}

func TestTranslatorIndexed(t *testing.T) {
	tests := []struct {
		name    string
		format  uint32
		indices []byte
		wantMin uint32
		wantMax uint32
	}{
		{"u8", 0, []byte{5, 3, 9, 4}, 3, 9},
		{"u16", 1, []byte{0x10, 0x01, 0x05, 0x00, 0x00, 0x02, 0x07, 0x00}, 5, 0x200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core := regs.NewCore()
			r := &core.Regs
			r[regs.RegVertexAttribBase] = (guestBase / 16) << 1
			r[regs.RegIndexArray] = 0x100 | tt.format<<31
			r[regs.RegNumVertices] = 4

			data := make([]byte, 0x200)
			copy(data[0x100:], tt.indices)
			mem := &fakeMemory{base: guestBase, data: data}
			stream := newFakeStream(1024, 0)
			tr := NewTranslator(stream, mem, mem, 4)

			info, err := tr.Analyze(r, true)
			if err != nil {
				t.Fatal(err)
			}
			if info.IndexMin != tt.wantMin || info.IndexMax != tt.wantMax {
				t.Errorf("range = [%d, %d], want [%d, %d]", info.IndexMin, info.IndexMax, tt.wantMin, tt.wantMax)
			}

			ib, err := tr.SetupIndexArray(r)
			if err != nil {
				t.Fatal(err)
			}
			if ib.Format != gputypes.IndexFormatUint16 || ib.Count != 4 {
				t.Errorf("binding = %+v", ib)
			}
			if stream.cursor-ib.Offset != 8 {
				t.Errorf("staged size = %d, want 8", stream.cursor-ib.Offset)
			}
			for i := 0; i < 4; i++ {
				got := binary.LittleEndian.Uint16(stream.data[ib.Offset+uint64(2*i):])
				var want uint16
				if tt.format == 0 {
					want = uint16(tt.indices[i])
				} else {
					want = binary.LittleEndian.Uint16(tt.indices[2*i:])
				}
				if got != want {
					t.Errorf("index %d = %d, want %d", i, got, want)
				}
			}
		})
	}
}

func TestAnalyzeNoVertices(t *testing.T) {
	for _, indexed := range []bool{false, true} {
		core := regs.NewCore()
		setupLoader(core, 8)
		core.Regs[regs.RegNumVertices] = 0
		core.Regs[regs.RegIndexArray] = 0x100
		mem := &fakeMemory{base: guestBase, data: sequence(0x200)}
		stream := newFakeStream(1024, 0)
		tr := NewTranslator(stream, mem, mem, 4)

		info, err := tr.Analyze(&core.Regs, indexed)
		if !errors.Is(err, ErrNoVertices) {
			t.Errorf("indexed=%v: Analyze error = %v, want ErrNoVertices", indexed, err)
		}
		if info != (Info{}) {
			t.Errorf("indexed=%v: info = %+v, want zero", indexed, info)
		}
		if stream.maps != 0 {
			t.Errorf("indexed=%v: %d maps for an empty draw", indexed, stream.maps)
		}
	}
}

func TestSoftwareLayout(t *testing.T) {
	l := SoftwareLayout()
	if l.BindingCount != 1 || l.AttributeCount != 8 || l.Bindings[0].Stride != HardwareVertexSize {
		t.Fatalf("layout = %+v", l)
	}
	if last := l.Attributes[7]; last.Offset != 19*4 || last.Size != 3 {
		t.Errorf("view attribute = %+v", last)
	}
	bufs := l.Buffers()
	if len(bufs) != 1 || len(bufs[0].Attributes) != 8 {
		t.Fatalf("buffers = %+v", bufs)
	}
	if bufs[0].Attributes[5].Format != gputypes.VertexFormatFloat32 {
		t.Errorf("tex_coord0_w format = %v", bufs[0].Attributes[5].Format)
	}
}

func TestStageBatch(t *testing.T) {
	stream := newFakeStream(1024, 0)
	batch := []HardwareVertex{{Position: [4]float32{1, 2, 3, 4}}, {View: [3]float32{7, 8, 9}}}
	off, err := StageBatch(stream, batch)
	if err != nil {
		t.Fatal(err)
	}
	if stream.cursor-off != 2*HardwareVertexSize {
		t.Errorf("committed %d bytes", stream.cursor-off)
	}
	last := binary.LittleEndian.Uint32(stream.data[off+2*HardwareVertexSize-4:])
	if math.Float32frombits(last) != 9 {
		t.Errorf("last float = %v, want 9", math.Float32frombits(last))
	}
}

func TestAttributeFormat(t *testing.T) {
	tests := []struct {
		attr Attribute
		want gputypes.VertexFormat
	}{
		{Attribute{Type: regs.AttribByte, Size: 1}, gputypes.VertexFormatSint8x2},
		{Attribute{Type: regs.AttribUByte, Size: 3}, gputypes.VertexFormatUint8x4},
		{Attribute{Type: regs.AttribShort, Size: 2}, gputypes.VertexFormatSint16x2},
		{Attribute{Type: regs.AttribFloat, Size: 3}, gputypes.VertexFormatFloat32x3},
		{Attribute{Type: regs.AttribFloat, Size: 4}, gputypes.VertexFormatFloat32x4},
	}
	for _, tt := range tests {
		if got := tt.attr.Format(); got != tt.want {
			t.Errorf("%v x%d = %v, want %v", tt.attr.Type, tt.attr.Size, got, tt.want)
		}
	}
}
