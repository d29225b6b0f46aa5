package session

import (
	"fmt"
	"time"

	"github.com/aretw0/scribe/pkg/core"
)

// State is the save state of the active note.
type State int

const (
	// StateIdle means every edit has been persisted.
	StateIdle State = iota
	// StateDirty means edits are waiting for the next save.
	StateDirty
	// StateSaving means a save is in flight.
	StateSaving
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDirty:
		return "dirty"
	case StateSaving:
		return "saving"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Status is the observable save session of the active note.
// It is purely informational; reading it never changes behavior.
type Status struct {
	NoteID            core.NoteID `json:"note_id"`
	Active            bool        `json:"active"`
	State             State       `json:"-"`
	IsSaving          bool        `json:"is_saving"`
	HasUnsavedChanges bool        `json:"has_unsaved_changes"`
	IsLoadingNote     bool        `json:"is_loading_note"`
	LastSavedAt       *time.Time  `json:"last_saved_at,omitempty"`
	LastError         error       `json:"-"`
}

// EventType identifies a session event.
type EventType string

const (
	EventOpened     EventType = "opened"
	EventDirty      EventType = "dirty"
	EventSaving     EventType = "saving"
	EventSaved      EventType = "saved"
	EventSaveFailed EventType = "save_failed"
	EventClosed     EventType = "closed"
)

// Trigger names what started a save.
type Trigger string

const (
	TriggerDebounce Trigger = "debounce"
	TriggerManual   Trigger = "manual"
	TriggerRename   Trigger = "rename"
)

// Event is published to subscribers after every state transition of the
// active note. Events of a note that is no longer active are never published.
type Event struct {
	Type    EventType
	NoteID  core.NoteID
	Trigger Trigger
	Status  Status
	Err     error
}

// String implements lifecycle.Event.
func (e Event) String() string {
	if e.Err != nil {
		return fmt.Sprintf("%s note=%d: %v", e.Type, e.NoteID, e.Err)
	}
	return fmt.Sprintf("%s note=%d", e.Type, e.NoteID)
}
