package main

import (
	"fmt"
	"strconv"

	"github.com/aretw0/scribe/pkg/core"
)

func parseNoteID(s string) (core.NoteID, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid note id %q", s)
	}
	return core.NoteID(id), nil
}

func parseSubjectID(s string) (core.SubjectID, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid subject id %q", s)
	}
	return core.SubjectID(id), nil
}
