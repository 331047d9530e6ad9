// Package staging implements persistently mapped ring buffers used to feed
// per-draw data (vertices, indices, uniforms, LUTs) to the GPU.
package staging

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/pica/internal/bitfield"
)

// Errors returned by StreamBuffer.
var (
	// ErrRegionTooLarge is returned when a mapping request exceeds the
	// buffer capacity.
	ErrRegionTooLarge = errors.New("staging: region larger than buffer")

	// ErrAlreadyMapped is returned by Map when the previous region was not
	// committed.
	ErrAlreadyMapped = errors.New("staging: region already mapped")

	// ErrNotMapped is returned by Commit without a preceding Map.
	ErrNotMapped = errors.New("staging: commit without map")

	// ErrCommitOverflow is returned when more bytes are committed than
	// were mapped.
	ErrCommitOverflow = errors.New("staging: commit exceeds mapped region")
)

// Region is a writable window into a stream buffer.
type Region struct {
	// Data is the mapped window. Its length is the requested size.
	Data []byte
	// Offset is the byte offset of Data within the GPU buffer.
	Offset uint64
	// Invalidated is true when the buffer wrapped around since the last
	// Map. Every range previously written is gone and must be re-uploaded.
	Invalidated bool
}

// Mapper is the write side of a stream buffer.
type Mapper interface {
	Map(size, align uint64) (Region, error)
	Commit(size uint64) error
}

// StreamBuffer is a ring of host-visible GPU memory. Callers Map a region,
// write into it, then Commit the bytes actually used. When a request does
// not fit in the remaining space the buffer waits for the GPU through the
// wrap hook and restarts at offset zero.
type StreamBuffer struct {
	device hal.Device
	buffer hal.Buffer
	label  string
	data   []byte
	size   uint64

	cursor     uint64
	mapped     bool
	mappedSize uint64
	onWrap     func() error
	wraps      uint64
}

// New creates a stream buffer of size bytes with the given usage. The
// buffer is mapped once at creation and stays mapped for its lifetime.
// onWrap is called before the buffer restarts at offset zero; it must not
// return until the GPU is done reading the previous contents.
func New(device hal.Device, label string, size uint64, usage gputypes.BufferUsage, onWrap func() error) (*StreamBuffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("staging: %s: zero size", label)
	}
	buf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label:            label,
		Size:             size,
		Usage:            usage | gputypes.BufferUsageMapWrite,
		MappedAtCreation: true,
	})
	if err != nil {
		return nil, fmt.Errorf("staging: create %s: %w", label, err)
	}
	mapping, err := device.MapBuffer(buf, 0, size)
	if err != nil {
		device.DestroyBuffer(buf)
		return nil, fmt.Errorf("staging: map %s: %w", label, err)
	}
	slogger().Debug("stream buffer created", "label", label, "size", size)
	return &StreamBuffer{
		device: device,
		buffer: buf,
		label:  label,
		data:   unsafe.Slice((*byte)(mapping.Ptr), size),
		size:   size,
		onWrap: onWrap,
	}, nil
}

// Map reserves size bytes aligned to align and returns the writable window.
func (s *StreamBuffer) Map(size, align uint64) (Region, error) {
	if s.mapped {
		return Region{}, ErrAlreadyMapped
	}
	if size > s.size {
		return Region{}, fmt.Errorf("%w: %s: %d > %d", ErrRegionTooLarge, s.label, size, s.size)
	}

	invalidated := false
	offset := bitfield.AlignUp(s.cursor, align)
	if offset+size > s.size {
		if s.onWrap != nil {
			if err := s.onWrap(); err != nil {
				return Region{}, fmt.Errorf("staging: %s: wait before wrap: %w", s.label, err)
			}
		}
		s.wraps++
		slogger().Debug("stream buffer wrapped", "label", s.label, "wraps", s.wraps)
		offset = 0
		invalidated = true
	}

	s.cursor = offset
	s.mapped = true
	s.mappedSize = size
	return Region{
		Data:        s.data[offset : offset+size : offset+size],
		Offset:      offset,
		Invalidated: invalidated,
	}, nil
}

// Commit publishes the first size bytes of the mapped region.
func (s *StreamBuffer) Commit(size uint64) error {
	if !s.mapped {
		return ErrNotMapped
	}
	if size > s.mappedSize {
		s.mapped = false
		return fmt.Errorf("%w: %d > %d", ErrCommitOverflow, size, s.mappedSize)
	}
	s.cursor += size
	s.mapped = false
	s.mappedSize = 0
	return nil
}

// Handle returns the underlying GPU buffer.
func (s *StreamBuffer) Handle() hal.Buffer { return s.buffer }

// Size returns the buffer capacity in bytes.
func (s *StreamBuffer) Size() uint64 { return s.size }

// Cursor returns the offset of the next free byte.
func (s *StreamBuffer) Cursor() uint64 { return s.cursor }

// Wraps returns how many times the buffer restarted at offset zero.
func (s *StreamBuffer) Wraps() uint64 { return s.wraps }

// Destroy unmaps and releases the GPU buffer.
func (s *StreamBuffer) Destroy() {
	if s.buffer == nil {
		return
	}
	if err := s.device.UnmapBuffer(s.buffer); err != nil {
		slogger().Warn("stream buffer unmap failed", "label", s.label, "err", err)
	}
	s.device.DestroyBuffer(s.buffer)
	s.buffer = nil
	s.data = nil
}
