package pipeline

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gogpu/pica/rescache"
)

// HeapType groups descriptor sets by purpose. Each heap is one bind group
// index of the pipeline layout.
type HeapType uint8

const (
	// HeapBuffer holds the uniform blocks and the LUT buffers.
	HeapBuffer HeapType = iota
	// HeapTexture holds the texture units.
	HeapTexture
	// HeapUtility holds the shadow rendering storage image.
	HeapUtility

	numHeaps
)

func (h HeapType) String() string {
	switch h {
	case HeapBuffer:
		return "buffer"
	case HeapTexture:
		return "texture"
	case HeapUtility:
		return "utility"
	}
	return fmt.Sprintf("HeapType(%d)", uint8(h))
}

// Buffer heap bindings.
const (
	BindingVSPicaUniforms = 0
	BindingVSUniforms     = 1
	BindingFSUniforms     = 2
	BindingLutLF          = 3
	BindingLutRG          = 4
	BindingLutRGBA        = 5
)

// Texture heap bindings. Shadow cube faces occupy six consecutive slots
// starting at BindingShadow, addressed through the array index.
const (
	BindingTexture0    = 0
	BindingTexture1    = 1
	BindingTexture2    = 2
	BindingTextureCube = 3
	BindingShadow      = 4
	BindingSampler0    = 10

	NumShadowFaces = 6
)

// Utility heap bindings.
const (
	BindingShadowBuffer = 0
	BindingUtilityImage = 1
	bindingUtilitySamp  = 2
)

const maxBindings = 13

var heapBindings = [numHeaps]int{
	HeapBuffer:  6,
	HeapTexture: 13,
	HeapUtility: 3,
}

// numDynamicOffsets is the number of dynamic uniform bindings of the
// buffer heap.
const numDynamicOffsets = 3

// Heap errors.
var (
	// ErrBadBinding is returned when a write targets a slot the heap does
	// not have or of the wrong kind.
	ErrBadBinding = errors.New("pipeline: binding out of range")

	// ErrIncompleteSet is returned when a bind group is needed for a set
	// with unwritten slots.
	ErrIncompleteSet = errors.New("pipeline: descriptor set has unwritten slots")
)

type slotKind uint8

const (
	slotUniform slotKind = iota
	slotStorageBuffer
	slotTexture
	slotCube
	slotShadow
	slotStorageImage
	slotSampler
)

func slotKindOf(heap HeapType, slot int) slotKind {
	switch heap {
	case HeapBuffer:
		if slot < numDynamicOffsets {
			return slotUniform
		}
		return slotStorageBuffer
	case HeapTexture:
		switch {
		case slot == BindingTextureCube:
			return slotCube
		case slot >= BindingShadow && slot < BindingSampler0:
			return slotShadow
		case slot >= BindingSampler0:
			return slotSampler
		}
		return slotTexture
	default:
		switch slot {
		case BindingShadowBuffer:
			return slotStorageImage
		case bindingUtilitySamp:
			return slotSampler
		}
		return slotTexture
	}
}

// samplerSlot returns the sampler paired with an image slot, or -1.
func samplerSlot(heap HeapType, slot int) int {
	switch heap {
	case HeapTexture:
		switch {
		case slot <= BindingTexture2:
			return BindingSampler0 + slot
		case slot == BindingTextureCube:
			return BindingSampler0
		}
	case HeapUtility:
		if slot == BindingUtilityImage {
			return bindingUtilitySamp
		}
	}
	return -1
}

type descriptor struct {
	buffer  hal.Buffer
	view    hal.TextureView
	sampler hal.Sampler
	offset  uint64
	size    uint64
}

func (d descriptor) empty() bool {
	return d.buffer == nil && d.view == nil && d.sampler == nil
}

// DescriptorSet is the contents of one heap's bind group. Sets are written
// through a DescriptorUpdateQueue and resolved to bind groups on bind.
type DescriptorSet struct {
	heap  HeapType
	slots [maxBindings]descriptor
	// offsets are the dynamic offsets of the uniform bindings.
	offsets [numDynamicOffsets]uint32
}

// Heap returns the heap the set belongs to.
func (s *DescriptorSet) Heap() HeapType { return s.heap }

func (s *DescriptorSet) key() groupKey {
	return groupKey{heap: s.heap, slots: s.slots}
}

type groupKey struct {
	heap  HeapType
	slots [maxBindings]descriptor
}

type write struct {
	set  *DescriptorSet
	slot int
	desc descriptor
}

// DescriptorUpdateQueue batches descriptor writes until Flush.
type DescriptorUpdateQueue struct {
	writes []write
}

// NewDescriptorUpdateQueue returns an empty queue.
func NewDescriptorUpdateQueue() *DescriptorUpdateQueue {
	return &DescriptorUpdateQueue{writes: make([]write, 0, 32)}
}

func (q *DescriptorUpdateQueue) add(set *DescriptorSet, slot int, want slotKind, d descriptor) error {
	if set == nil {
		return fmt.Errorf("%w: nil set", ErrBadBinding)
	}
	if slot < 0 || slot >= heapBindings[set.heap] || slotKindOf(set.heap, slot) != want {
		return fmt.Errorf("%w: heap %v slot %d", ErrBadBinding, set.heap, slot)
	}
	q.writes = append(q.writes, write{set: set, slot: slot, desc: d})
	return nil
}

// AddBuffer writes a uniform buffer range. The range start moves per draw
// through Cache.UpdateRange.
func (q *DescriptorUpdateQueue) AddBuffer(set *DescriptorSet, binding int, buf hal.Buffer, offset, size uint64) error {
	return q.add(set, binding, slotUniform, descriptor{buffer: buf, offset: offset, size: size})
}

// AddStorageBuffer writes a read-only storage buffer range. LUT tables are
// read from these as packed floats.
func (q *DescriptorUpdateQueue) AddStorageBuffer(set *DescriptorSet, binding int, buf hal.Buffer, offset, size uint64) error {
	return q.add(set, binding, slotStorageBuffer, descriptor{buffer: buf, offset: offset, size: size})
}

// AddImageSampler writes an image and, where the slot has one, its
// sampler. arrayIndex selects a shadow cube face.
func (q *DescriptorUpdateQueue) AddImageSampler(set *DescriptorSet, binding, arrayIndex int,
	view hal.TextureView, sampler hal.Sampler,
) error {
	if set == nil {
		return fmt.Errorf("%w: nil set", ErrBadBinding)
	}
	slot := binding + arrayIndex
	kind := slotKindOf(set.heap, slot)
	if kind != slotTexture && kind != slotCube && kind != slotShadow {
		return fmt.Errorf("%w: heap %v slot %d is not an image", ErrBadBinding, set.heap, slot)
	}
	if err := q.add(set, slot, kind, descriptor{view: view}); err != nil {
		return err
	}
	if s := samplerSlot(set.heap, slot); s >= 0 && sampler != nil {
		return q.add(set, s, slotSampler, descriptor{sampler: sampler})
	}
	return nil
}

// AddStorageImage writes a storage image.
func (q *DescriptorUpdateQueue) AddStorageImage(set *DescriptorSet, binding int, view hal.TextureView) error {
	return q.add(set, binding, slotStorageImage, descriptor{view: view})
}

// Pending returns the number of queued writes.
func (q *DescriptorUpdateQueue) Pending() int { return len(q.writes) }

// Flush applies every queued write to its set.
func (q *DescriptorUpdateQueue) Flush() {
	for _, w := range q.writes {
		w.set.slots[w.slot] = w.desc
	}
	q.writes = q.writes[:0]
}

type retiredGroup struct {
	group hal.BindGroup
	frame uint64
}

// retireFrames is how many frames an evicted bind group is kept alive,
// covering the submissions still in flight.
const retireFrames = 2

// heaps owns the bind group layouts and the memoized bind groups.
type heaps struct {
	device  hal.Device
	layouts [numHeaps]hal.BindGroupLayout
	sets    [numHeaps]*DescriptorSet

	groups  *lru.Cache[groupKey, hal.BindGroup]
	retired []retiredGroup
	frame   uint64
}

func newHeaps(device hal.Device, nulls *rescache.NullResources, capacity int) (*heaps, error) {
	h := &heaps{device: device}
	groups, err := lru.NewWithEvict[groupKey, hal.BindGroup](capacity, func(_ groupKey, g hal.BindGroup) {
		h.retired = append(h.retired, retiredGroup{group: g, frame: h.frame})
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: bind group cache: %w", err)
	}
	h.groups = groups

	for heap := HeapType(0); heap < numHeaps; heap++ {
		layout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
			Label:   "pica_" + heap.String() + "_layout",
			Entries: layoutEntries(heap),
		})
		if err != nil {
			h.destroy()
			return nil, fmt.Errorf("pipeline: create %v layout: %w", heap, err)
		}
		h.layouts[heap] = layout
		h.sets[heap] = &DescriptorSet{heap: heap}
	}
	h.fillDefaults(nulls)
	return h, nil
}

// fillDefaults points every image and sampler slot at the null resources
// so sets are complete before the rasterizer writes them.
func (h *heaps) fillDefaults(nulls *rescache.NullResources) {
	if nulls == nil {
		return
	}
	for heap := HeapType(0); heap < numHeaps; heap++ {
		set := h.sets[heap]
		for slot := 0; slot < heapBindings[heap]; slot++ {
			var d descriptor
			switch slotKindOf(heap, slot) {
			case slotTexture:
				d.view = nulls.View()
			case slotCube:
				d.view = nulls.CubeView()
			case slotShadow:
				d.view = nulls.ShadowView()
			case slotStorageImage:
				d.view = nulls.StorageView()
			case slotSampler:
				d.sampler = nulls.Sampler()
			default:
				continue
			}
			set.slots[slot] = d
		}
	}
}

func layoutEntries(heap HeapType) []gputypes.BindGroupLayoutEntry {
	stages := gputypes.ShaderStageVertex | gputypes.ShaderStageFragment
	entries := make([]gputypes.BindGroupLayoutEntry, heapBindings[heap])
	for slot := range entries {
		e := gputypes.BindGroupLayoutEntry{Binding: uint32(slot), Visibility: gputypes.ShaderStageFragment}
		switch slotKindOf(heap, slot) {
		case slotUniform:
			e.Visibility = stages
			e.Buffer = &gputypes.BufferBindingLayout{
				Type:             gputypes.BufferBindingTypeUniform,
				HasDynamicOffset: true,
			}
		case slotStorageBuffer:
			e.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}
		case slotTexture:
			e.Texture = &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeFloat,
				ViewDimension: gputypes.TextureViewDimension2D,
			}
		case slotCube:
			e.Texture = &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeFloat,
				ViewDimension: gputypes.TextureViewDimensionCube,
			}
		case slotShadow:
			e.Texture = &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeUint,
				ViewDimension: gputypes.TextureViewDimension2D,
			}
		case slotStorageImage:
			e.StorageTexture = &gputypes.StorageTextureBindingLayout{
				Access:        gputypes.StorageTextureAccessReadWrite,
				Format:        gputypes.TextureFormatR32Uint,
				ViewDimension: gputypes.TextureViewDimension2D,
			}
		case slotSampler:
			e.Sampler = &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering}
		}
		entries[slot] = e
	}
	return entries
}

// group returns the bind group for the current contents of set.
func (h *heaps) group(set *DescriptorSet) (hal.BindGroup, error) {
	key := set.key()
	if g, ok := h.groups.Get(key); ok {
		return g, nil
	}
	n := heapBindings[set.heap]
	entries := make([]gputypes.BindGroupEntry, n)
	for slot := 0; slot < n; slot++ {
		d := set.slots[slot]
		if d.empty() {
			return nil, fmt.Errorf("%w: heap %v slot %d", ErrIncompleteSet, set.heap, slot)
		}
		var res gputypes.BindingResource
		switch {
		case d.buffer != nil:
			res = gputypes.BufferBinding{Buffer: d.buffer.NativeHandle(), Offset: d.offset, Size: d.size}
		case d.view != nil:
			res = gputypes.TextureViewBinding{TextureView: d.view.NativeHandle()}
		default:
			res = gputypes.SamplerBinding{Sampler: d.sampler.NativeHandle()}
		}
		entries[slot] = gputypes.BindGroupEntry{Binding: uint32(slot), Resource: res}
	}
	g, err := h.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   "pica_" + set.heap.String() + "_group",
		Layout:  h.layouts[set.heap],
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: create %v bind group: %w", set.heap, err)
	}
	h.groups.Add(key, g)
	return g, nil
}

// tick advances the frame counter and destroys groups evicted long enough
// ago that no submission can still reference them.
func (h *heaps) tick() {
	h.frame++
	kept := h.retired[:0]
	for _, r := range h.retired {
		if h.frame-r.frame >= retireFrames {
			h.device.DestroyBindGroup(r.group)
			continue
		}
		kept = append(kept, r)
	}
	h.retired = kept
}

func (h *heaps) destroy() {
	if h.groups != nil {
		h.groups.Purge()
	}
	for _, r := range h.retired {
		h.device.DestroyBindGroup(r.group)
	}
	h.retired = nil
	for i, l := range h.layouts {
		if l != nil {
			h.device.DestroyBindGroupLayout(l)
			h.layouts[i] = nil
		}
	}
}
