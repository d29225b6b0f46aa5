package cache

import (
	"github.com/aretw0/scribe/pkg/core"
)

type field int

const (
	fieldTitle field = iota
	fieldDocument
)

func (f field) String() string {
	if f == fieldTitle {
		return "title"
	}
	return "document"
}

// capture remembers the value a mutation overwrote for one field.
type capture struct {
	field field
	prev  string
	value string
	// superseded is set once a newer mutation of the same field was
	// confirmed; rolling back this capture would undo confirmed data.
	superseded bool
}

// Mutation is an optimistic edit that waits for Commit or Rollback.
type Mutation struct {
	NoteID    core.NoteID
	SubjectID core.SubjectID

	seq      uint64
	captures []capture
	applied  bool
}

// Applied reports whether the edit touched a cached entry.
// Mutations of notes that are not cached are no-ops.
func (m *Mutation) Applied() bool {
	return m != nil && m.applied
}

// Mutate applies patch to the cached note id, leaving every other entry
// untouched, and records the overwritten values so Rollback can restore them.
func (c *Cache) Mutate(id core.NoteID, patch core.NotePatch) *Mutation {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := &Mutation{NoteID: id}
	idx, e := c.findLocked(id)
	if idx < 0 || patch.IsEmpty() {
		c.logger.Debug("optimistic mutation skipped, note not cached", "note_id", id)
		return m
	}

	note := &e.list.Notes[idx]
	if patch.Title != nil {
		m.captures = append(m.captures, capture{field: fieldTitle, prev: note.Title, value: *patch.Title})
	}
	if patch.Document != nil {
		m.captures = append(m.captures, capture{field: fieldDocument, prev: note.Document, value: *patch.Document})
	}
	*note = patch.Apply(*note)

	c.seq++
	m.seq = c.seq
	m.SubjectID = e.list.SubjectID
	m.applied = true
	c.pending[id] = append(c.pending[id], m)
	return m
}

// Commit keeps a confirmed mutation in place and marks its subject for
// eventual refresh.
func (c *Cache) Commit(m *Mutation) {
	if !m.Applied() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	muts := c.pending[m.NoteID]
	i := indexOf(muts, m)
	if i < 0 {
		return
	}
	for _, older := range muts[:i] {
		for k := range older.captures {
			if m.touches(older.captures[k].field) {
				older.captures[k].superseded = true
			}
		}
	}
	c.dropLocked(m.NoteID, i)
	if e, ok := c.lists[m.SubjectID]; ok {
		e.stale = true
	}
}

// Rollback restores the values m overwrote. When newer mutations of the same
// field are still pending, the restored value is handed to them instead, so
// the cache ends up exactly as if m had never been applied.
// It reports whether anything was restored.
func (c *Cache) Rollback(m *Mutation) bool {
	if !m.Applied() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	muts := c.pending[m.NoteID]
	i := indexOf(muts, m)
	if i < 0 {
		return false
	}

	restored := false
	idx, e := c.findLocked(m.NoteID)
	for _, cp := range m.captures {
		if cp.superseded {
			continue
		}
		if next := nextCapture(muts[i+1:], cp.field); next != nil {
			next.prev = cp.prev
			restored = true
			continue
		}
		if idx >= 0 {
			setField(&e.list.Notes[idx], cp.field, cp.prev)
			restored = true
		}
	}
	c.dropLocked(m.NoteID, i)
	c.rollbacks++
	return restored
}

// Pending returns the number of unconfirmed mutations of a note.
func (c *Cache) Pending(id core.NoteID) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pending[id])
}

func (c *Cache) dropLocked(id core.NoteID, i int) {
	muts := c.pending[id]
	muts = append(muts[:i:i], muts[i+1:]...)
	if len(muts) == 0 {
		delete(c.pending, id)
		return
	}
	c.pending[id] = muts
}

func (m *Mutation) touches(f field) bool {
	for _, cp := range m.captures {
		if cp.field == f {
			return true
		}
	}
	return false
}

// replay rebuilds the optimistic view of n from an authoritative copy.
func replay(n core.Note, muts []*Mutation) core.Note {
	for _, f := range []field{fieldTitle, fieldDocument} {
		current := getField(n, f)
		for _, m := range muts {
			for k := range m.captures {
				cp := &m.captures[k]
				if cp.field != f || cp.superseded {
					continue
				}
				cp.prev = current
				current = cp.value
			}
		}
		setField(&n, f, current)
	}
	return n
}

func nextCapture(muts []*Mutation, f field) *capture {
	for _, m := range muts {
		for k := range m.captures {
			if m.captures[k].field == f && !m.captures[k].superseded {
				return &m.captures[k]
			}
		}
	}
	return nil
}

func indexOf(muts []*Mutation, m *Mutation) int {
	for i, candidate := range muts {
		if candidate == m {
			return i
		}
	}
	return -1
}

func getField(n core.Note, f field) string {
	if f == fieldTitle {
		return n.Title
	}
	return n.Document
}

func setField(n *core.Note, f field, v string) {
	if f == fieldTitle {
		n.Title = v
		return
	}
	n.Document = v
}
