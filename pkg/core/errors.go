package core

import "errors"

// Common errors.
var (
	ErrNotFound        = errors.New("note not found")
	ErrSubjectNotFound = errors.New("subject not found")
	ErrInvalidNote     = errors.New("invalid note")
	ErrSubjectMismatch = errors.New("subject id mismatch")
	ErrEmptyPatch      = errors.New("update has no fields")
)
