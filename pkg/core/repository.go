package core

import "context"

// Repository defines the contract of the remote note store.
// Every call may block on I/O and may fail; concurrent calls from the same
// client carry no ordering guarantee, so callers impose the ordering they need.
type Repository interface {
	// Create persists a new note and returns it with its assigned ID.
	Create(ctx context.Context, subjectID SubjectID, title, document string) (Note, error)
	// Get retrieves a note by its ID.
	Get(ctx context.Context, id NoteID) (Note, error)
	// Update applies a partial update and returns the stored note.
	Update(ctx context.Context, id NoteID, patch NotePatch) (Note, error)
	// Remove deletes a note by its ID.
	Remove(ctx context.Context, id NoteID) error
	// ListBySubject returns the notes of a subject ordered by ID.
	ListBySubject(ctx context.Context, subjectID SubjectID) (NoteList, error)
}

// Updater is the subset of Repository the autosave path needs.
type Updater interface {
	Update(ctx context.Context, id NoteID, patch NotePatch) (Note, error)
}

// Lister is the subset of Repository the list cache loads from.
type Lister interface {
	ListBySubject(ctx context.Context, subjectID SubjectID) (NoteList, error)
}
