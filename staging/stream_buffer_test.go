package staging

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

var _ Mapper = (*StreamBuffer)(nil)

func createNoopDevice(t *testing.T) (hal.Device, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	return openDev.Device, func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
}

func newTestBuffer(t *testing.T, size uint64, onWrap func() error) *StreamBuffer {
	t.Helper()
	device, cleanup := createNoopDevice(t)
	t.Cleanup(cleanup)
	s, err := New(device, "test", size, gputypes.BufferUsageVertex, onWrap)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(s.Destroy)
	return s
}

func TestStreamBufferMapCommit(t *testing.T) {
	s := newTestBuffer(t, 256, nil)

	r, err := s.Map(10, 4)
	if err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	if r.Offset != 0 || len(r.Data) != 10 || r.Invalidated {
		t.Fatalf("first region = off %d len %d inv %v", r.Offset, len(r.Data), r.Invalidated)
	}
	copy(r.Data, "abcdefghij")
	if err := s.Commit(10); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	r, err = s.Map(8, 16)
	if err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	if r.Offset != 16 {
		t.Errorf("aligned offset = %d, want 16", r.Offset)
	}
	if err := s.Commit(4); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if s.Cursor() != 20 {
		t.Errorf("Cursor() = %d, want 20", s.Cursor())
	}
}

func TestStreamBufferWrap(t *testing.T) {
	waits := 0
	s := newTestBuffer(t, 64, func() error { waits++; return nil })

	if _, err := s.Map(48, 0); err != nil {
		t.Fatal(err)
	}
	_ = s.Commit(48)

	r, err := s.Map(32, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !r.Invalidated || r.Offset != 0 {
		t.Errorf("wrapped region = off %d inv %v, want 0 true", r.Offset, r.Invalidated)
	}
	if waits != 1 || s.Wraps() != 1 {
		t.Errorf("waits = %d wraps = %d, want 1 1", waits, s.Wraps())
	}
	_ = s.Commit(32)

	r, _ = s.Map(8, 0)
	if r.Invalidated {
		t.Error("second map after wrap still invalidated")
	}
}

func TestStreamBufferWrapError(t *testing.T) {
	boom := errors.New("device lost")
	s := newTestBuffer(t, 16, func() error { return boom })
	_, _ = s.Map(16, 0)
	_ = s.Commit(16)
	if _, err := s.Map(1, 0); !errors.Is(err, boom) {
		t.Errorf("Map() error = %v, want %v", err, boom)
	}
}

func TestStreamBufferErrors(t *testing.T) {
	s := newTestBuffer(t, 32, nil)

	if _, err := s.Map(64, 0); !errors.Is(err, ErrRegionTooLarge) {
		t.Errorf("oversized Map() = %v", err)
	}
	if err := s.Commit(1); !errors.Is(err, ErrNotMapped) {
		t.Errorf("Commit() without Map = %v", err)
	}
	if _, err := s.Map(8, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Map(8, 0); !errors.Is(err, ErrAlreadyMapped) {
		t.Errorf("double Map() = %v", err)
	}
	if err := s.Commit(9); !errors.Is(err, ErrCommitOverflow) {
		t.Errorf("Commit() overflow = %v", err)
	}
}

func TestStreamBufferBackingMemory(t *testing.T) {
	s := newTestBuffer(t, 32, nil)
	r, _ := s.Map(4, 0)
	copy(r.Data, []byte{1, 2, 3, 4})
	_ = s.Commit(4)
	if s.data[2] != 3 {
		t.Errorf("backing byte = %d, want 3", s.data[2])
	}
}
