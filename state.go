package pica

import "fmt"

// State is the stage of the draw in progress.
type State uint32

const (
	// StateIdle means no draw is in progress.
	StateIdle State = iota
	// StateSyncingState means fixed function state is read from the
	// registers and the render targets are resolved.
	StateSyncingState
	// StateBinding means textures, shaders and uniforms are bound.
	StateBinding
	// StateRecording means the draw is recorded on the scheduler.
	StateRecording
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateSyncingState:
		return "SyncingState"
	case StateBinding:
		return "Binding"
	case StateRecording:
		return "Recording"
	}
	return fmt.Sprintf("State(%d)", uint32(s))
}
