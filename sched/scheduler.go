// Package sched records render commands for deferred submission and
// manages the active render pass.
package sched

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/wgpu/hal"
)

// ErrNoPass is reported when a command is replayed outside a render pass.
var ErrNoPass = errors.New("sched: command recorded outside a render pass")

// Recorder accepts render commands for later submission.
type Recorder interface {
	// Record appends fn to the current render pass.
	Record(fn func(pass hal.RenderPassEncoder))
	// RegisterOnSubmit adds a callback run at the start of every Flush.
	RegisterOnSubmit(fn func())
	// Flush submits every recorded command.
	Flush() error
	// IsStateDirty reports whether dynamic state must be re-recorded,
	// which is the case after a new pass or submission begins.
	IsStateDirty() bool
	MarkStateNonDirty()
}

type opKind uint8

const (
	opCommand opKind = iota
	opBeginPass
	opEndPass
)

type op struct {
	kind opKind
	fn   func(hal.RenderPassEncoder)
	pass *hal.RenderPassDescriptor
}

// Scheduler buffers render pass commands and submits them on Flush.
type Scheduler struct {
	device hal.Device
	queue  hal.Queue

	mu         sync.Mutex
	ops        []op
	onSubmit   []func()
	stateDirty bool
	passOpen   bool
	submitted  uint64
}

// NewScheduler creates a scheduler submitting to queue.
func NewScheduler(device hal.Device, queue hal.Queue) *Scheduler {
	return &Scheduler{
		device:     device,
		queue:      queue,
		stateDirty: true,
	}
}

// Record implements Recorder.
func (s *Scheduler) Record(fn func(pass hal.RenderPassEncoder)) {
	s.mu.Lock()
	s.ops = append(s.ops, op{kind: opCommand, fn: fn})
	s.mu.Unlock()
}

// RegisterOnSubmit implements Recorder.
func (s *Scheduler) RegisterOnSubmit(fn func()) {
	s.mu.Lock()
	s.onSubmit = append(s.onSubmit, fn)
	s.mu.Unlock()
}

// BeginPass starts a render pass. The descriptor is copied.
func (s *Scheduler) BeginPass(desc *hal.RenderPassDescriptor) {
	d := *desc
	d.ColorAttachments = append([]hal.RenderPassColorAttachment(nil), desc.ColorAttachments...)
	if desc.DepthStencilAttachment != nil {
		ds := *desc.DepthStencilAttachment
		d.DepthStencilAttachment = &ds
	}
	s.mu.Lock()
	s.ops = append(s.ops, op{kind: opBeginPass, pass: &d})
	s.passOpen = true
	s.stateDirty = true
	s.mu.Unlock()
}

// EndPass closes the current render pass.
func (s *Scheduler) EndPass() {
	s.mu.Lock()
	if s.passOpen {
		s.ops = append(s.ops, op{kind: opEndPass})
		s.passOpen = false
	}
	s.mu.Unlock()
}

// IsStateDirty implements Recorder.
func (s *Scheduler) IsStateDirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateDirty
}

// MarkStateNonDirty implements Recorder.
func (s *Scheduler) MarkStateNonDirty() {
	s.mu.Lock()
	s.stateDirty = false
	s.mu.Unlock()
}

// Pending returns the number of recorded operations not yet submitted.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ops)
}

// Submitted returns the index of the last submission.
func (s *Scheduler) Submitted() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitted
}

// Flush runs the submit callbacks, encodes every recorded command into a
// command buffer and submits it.
func (s *Scheduler) Flush() error {
	s.mu.Lock()
	callbacks := append([]func(){}, s.onSubmit...)
	s.mu.Unlock()
	for _, fn := range callbacks {
		fn()
	}

	s.mu.Lock()
	ops := s.ops
	s.ops = nil
	s.passOpen = false
	s.stateDirty = true
	s.mu.Unlock()

	if len(ops) == 0 {
		return nil
	}

	encoder, err := s.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "pica_frame"})
	if err != nil {
		return fmt.Errorf("sched: create encoder: %w", err)
	}
	defer encoder.Destroy()

	if err := encoder.BeginEncoding("pica_frame"); err != nil {
		return fmt.Errorf("sched: begin encoding: %w", err)
	}
	dropped := replay(encoder, ops)
	if dropped > 0 {
		slogger().Warn("dropped commands recorded outside a render pass", "count", dropped, "err", ErrNoPass)
	}

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("sched: end encoding: %w", err)
	}
	defer s.device.FreeCommandBuffer(cmdBuf)

	index, err := s.queue.Submit([]hal.CommandBuffer{cmdBuf})
	if err != nil {
		return fmt.Errorf("sched: submit: %w", err)
	}
	s.mu.Lock()
	s.submitted = index
	s.mu.Unlock()
	slogger().Debug("submitted", "index", index, "ops", len(ops))
	return nil
}

// Finish flushes and waits for the GPU to go idle.
func (s *Scheduler) Finish() error {
	if err := s.Flush(); err != nil {
		return err
	}
	if err := s.device.WaitIdle(); err != nil {
		return fmt.Errorf("sched: wait idle: %w", err)
	}
	return nil
}

func replay(encoder hal.CommandEncoder, ops []op) (dropped int) {
	var pass hal.RenderPassEncoder
	for _, o := range ops {
		switch o.kind {
		case opBeginPass:
			if pass != nil {
				pass.End()
			}
			pass = encoder.BeginRenderPass(o.pass)
		case opEndPass:
			if pass != nil {
				pass.End()
				pass = nil
			}
		case opCommand:
			if pass == nil {
				dropped++
				continue
			}
			o.fn(pass)
		}
	}
	if pass != nil {
		pass.End()
	}
	return dropped
}
