package session

import (
	"github.com/aretw0/introspection"
)

// ControllerState exposes internal state for observability.
type ControllerState struct {
	NoteID            int64  `json:"note_id"`
	Active            bool   `json:"active"`
	State             string `json:"state"`
	TimerPending      bool   `json:"timer_pending"`
	IsLoadingNote     bool   `json:"is_loading_note"`
	HasUnsavedChanges bool   `json:"has_unsaved_changes"`
	Epoch             uint64 `json:"epoch"`
	Listeners         int    `json:"listeners"`
	LastError         string `json:"last_error,omitempty"`
}

// State implements introspection.Introspectable.
func (c *Controller) State() any {
	c.mu.Lock()
	s := c.statusLocked()
	epoch := c.epoch
	c.mu.Unlock()

	c.listenersMu.Lock()
	listeners := len(c.listeners)
	c.listenersMu.Unlock()

	state := ControllerState{
		NoteID:            int64(s.NoteID),
		Active:            s.Active,
		State:             s.State.String(),
		TimerPending:      c.scheduler.Pending(),
		IsLoadingNote:     s.IsLoadingNote,
		HasUnsavedChanges: s.HasUnsavedChanges,
		Epoch:             epoch,
		Listeners:         listeners,
	}
	if s.LastError != nil {
		state.LastError = s.LastError.Error()
	}
	return state
}

// ComponentType implements introspection.Component.
func (c *Controller) ComponentType() string {
	return "session"
}

var _ introspection.Introspectable = (*Controller)(nil)
var _ introspection.Component = (*Controller)(nil)
