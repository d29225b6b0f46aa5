package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aretw0/scribe/pkg/core"
)

func TestFilterNotes(t *testing.T) {
	notes := []core.Note{
		{ID: 1, Title: "Chapter 1"},
		{ID: 2, Title: "chapter 2"},
		{ID: 3, Title: "Appendix"},
	}

	assert.Len(t, filterNotes(notes, ""), 3)
	assert.Len(t, filterNotes(notes, "chapter *"), 2)
	assert.Len(t, filterNotes(notes, "app*"), 1)
	assert.Empty(t, filterNotes(notes, "index"))
	assert.NotNil(t, filterNotes(nil, "x"), "JSON output encodes an empty list, not null")
}

func TestParseIDs(t *testing.T) {
	id, err := parseNoteID("42")
	assert.NoError(t, err)
	assert.Equal(t, core.NoteID(42), id)

	for _, bad := range []string{"", "0", "-3", "abc"} {
		_, err := parseNoteID(bad)
		assert.Error(t, err, bad)
		_, err = parseSubjectID(bad)
		assert.Error(t, err, bad)
	}
}
