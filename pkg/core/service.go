package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// MaxTitleLength is the longest title a note may carry (in characters).
const MaxTitleLength = 255

// Service handles the business rules for notes and delegates storage to a Repository.
type Service struct {
	repo     Repository
	validate *validator.Validate
}

// NewService creates a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, validate: validator.New()}
}

type createInput struct {
	SubjectID SubjectID `validate:"gt=0"`
	Title     string    `validate:"required,min=1,max=255"`
	Document  string    `validate:"json"`
}

// CreateNote validates and creates a note. An empty document is stored as EmptyDocument.
func (s *Service) CreateNote(ctx context.Context, subjectID SubjectID, title, document string) (Note, error) {
	if document == "" {
		document = EmptyDocument
	}
	in := createInput{SubjectID: subjectID, Title: title, Document: document}
	if err := s.validate.Struct(in); err != nil {
		return Note{}, invalid(err)
	}
	return s.repo.Create(ctx, subjectID, title, document)
}

// GetNote retrieves a note.
func (s *Service) GetNote(ctx context.Context, id NoteID) (Note, error) {
	if id <= 0 {
		return Note{}, fmt.Errorf("%w: note id must be positive", ErrInvalidNote)
	}
	return s.repo.Get(ctx, id)
}

// UpdateNote validates the patch and applies it.
// An empty patch changes nothing and returns the stored note.
func (s *Service) UpdateNote(ctx context.Context, id NoteID, patch NotePatch) (Note, error) {
	if id <= 0 {
		return Note{}, fmt.Errorf("%w: note id must be positive", ErrInvalidNote)
	}
	if patch.IsEmpty() {
		return s.repo.Get(ctx, id)
	}
	if err := s.ValidatePatch(patch); err != nil {
		return Note{}, err
	}
	return s.repo.Update(ctx, id, patch)
}

// ValidatePatch checks the fields present in patch against the note rules.
func (s *Service) ValidatePatch(patch NotePatch) error {
	if patch.IsEmpty() {
		return ErrEmptyPatch
	}
	if patch.Title != nil {
		if err := s.validate.Var(*patch.Title, "required,min=1,max=255"); err != nil {
			return invalid(err)
		}
	}
	if patch.Document != nil {
		if err := s.validate.Var(*patch.Document, "json"); err != nil {
			return invalid(err)
		}
	}
	return nil
}

// DeleteNote removes a note.
func (s *Service) DeleteNote(ctx context.Context, id NoteID) error {
	if id <= 0 {
		return fmt.Errorf("%w: note id must be positive", ErrInvalidNote)
	}
	return s.repo.Remove(ctx, id)
}

// ListNotes returns the notes of a subject.
func (s *Service) ListNotes(ctx context.Context, subjectID SubjectID) (NoteList, error) {
	if subjectID <= 0 {
		return NoteList{}, fmt.Errorf("%w: subject id must be positive", ErrInvalidNote)
	}
	return s.repo.ListBySubject(ctx, subjectID)
}

// Repository exposes the underlying storage port.
func (s *Service) Repository() Repository {
	return s.repo
}

func invalid(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := fe.Field()
		if field == "" {
			field = "value"
		}
		return fmt.Errorf("%w: %s failed %q", ErrInvalidNote, field, fe.Tag())
	}
	return fmt.Errorf("%w: %v", ErrInvalidNote, err)
}
