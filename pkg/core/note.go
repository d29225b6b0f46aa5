// Package core holds the domain entities of scribe and the ports the engine
// depends on.
package core

import "fmt"

// NoteID identifies a note. It is assigned by the repository and never changes.
type NoteID int64

// SubjectID identifies the subject (folder) a note belongs to.
type SubjectID int64

func (id NoteID) String() string    { return fmt.Sprintf("%d", int64(id)) }
func (id SubjectID) String() string { return fmt.Sprintf("%d", int64(id)) }

// EmptyDocument is the serialized form stored when a note is created without content.
const EmptyDocument = "{}"

// Note is the central entity of the domain.
// Document holds the string-encoded rich-text tree; its schema belongs to the
// document engine and is opaque here.
type Note struct {
	ID        NoteID    `json:"id"`
	SubjectID SubjectID `json:"subject_id"`
	Title     string    `json:"title"`
	Document  string    `json:"content_json"`
}

// NotePatch is a partial update of a note. Nil fields are left untouched.
type NotePatch struct {
	Title    *string `json:"title,omitempty"`
	Document *string `json:"content_json,omitempty"`
}

// TitlePatch builds a patch that only sets the title.
func TitlePatch(title string) NotePatch {
	return NotePatch{Title: &title}
}

// DocumentPatch builds a patch that only sets the document.
func DocumentPatch(doc string) NotePatch {
	return NotePatch{Document: &doc}
}

// IsEmpty reports whether the patch carries no field.
func (p NotePatch) IsEmpty() bool {
	return p.Title == nil && p.Document == nil
}

// Apply returns a copy of n with the patch fields written over it.
func (p NotePatch) Apply(n Note) Note {
	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.Document != nil {
		n.Document = *p.Document
	}
	return n
}

// NoteList is the list-shaped projection of the notes of one subject.
type NoteList struct {
	Notes     []Note    `json:"notes"`
	Total     int       `json:"total"`
	SubjectID SubjectID `json:"subject_id"`
}

// Clone returns a deep copy of the list.
func (l NoteList) Clone() NoteList {
	out := l
	out.Notes = append([]Note(nil), l.Notes...)
	return out
}
