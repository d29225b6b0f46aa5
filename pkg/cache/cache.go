// Package cache keeps the list-shaped projection of notes per subject and
// lets callers apply edits to it before the repository confirms them.
package cache

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/aretw0/scribe/pkg/core"
)

type entry struct {
	list     core.NoteList
	stale    bool
	loadedAt time.Time
}

// Cache is the optimistic note list cache.
// It is safe for concurrent use and holds no global state; create one per
// application (or per test) with New and discard it with Close.
type Cache struct {
	mu        sync.RWMutex
	lists     map[core.SubjectID]*entry
	owners    map[core.NoteID]core.SubjectID
	pending   map[core.NoteID][]*Mutation
	seq       uint64
	rollbacks int

	group  singleflight.Group
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger of the cache.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the time source (used for loadedAt bookkeeping).
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates an empty Cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		lists:   make(map[core.SubjectID]*entry),
		owners:  make(map[core.NoteID]core.SubjectID),
		pending: make(map[core.NoteID][]*Mutation),
		now:     time.Now,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Put stores the authoritative list of a subject.
// Edits that are still waiting for confirmation are replayed on top of it.
func (c *Cache) Put(list core.NoteList) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putLocked(list)
}

func (c *Cache) putLocked(list core.NoteList) {
	list = list.Clone()
	if list.Notes == nil {
		list.Notes = []core.Note{}
	}
	sort.Slice(list.Notes, func(i, j int) bool { return list.Notes[i].ID < list.Notes[j].ID })

	if old, ok := c.lists[list.SubjectID]; ok {
		for _, n := range old.list.Notes {
			delete(c.owners, n.ID)
		}
	}
	for i := range list.Notes {
		n := &list.Notes[i]
		c.owners[n.ID] = list.SubjectID
		if muts := c.pending[n.ID]; len(muts) > 0 {
			*n = replay(*n, muts)
		}
	}
	c.lists[list.SubjectID] = &entry{list: list, loadedAt: c.now()}
}

// List returns a copy of the cached list of a subject.
func (c *Cache) List(subjectID core.SubjectID) (core.NoteList, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.lists[subjectID]
	if !ok {
		return core.NoteList{}, false
	}
	return e.list.Clone(), true
}

// Note returns the cached copy of a note.
func (c *Cache) Note(id core.NoteID) (core.Note, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx, e := c.findLocked(id)
	if idx < 0 {
		return core.Note{}, false
	}
	return e.list.Notes[idx], true
}

// Fetch returns the cached list of a subject when it is present and fresh, and
// loads it from lister otherwise. Concurrent loads of one subject share a
// single repository call.
func (c *Cache) Fetch(ctx context.Context, lister core.Lister, subjectID core.SubjectID) (core.NoteList, error) {
	c.mu.RLock()
	e, ok := c.lists[subjectID]
	if ok && !e.stale {
		list := e.list.Clone()
		c.mu.RUnlock()
		return list, nil
	}
	c.mu.RUnlock()

	_, err, _ := c.group.Do(strconv.FormatInt(int64(subjectID), 10), func() (any, error) {
		list, err := lister.ListBySubject(ctx, subjectID)
		if err != nil {
			return nil, err
		}
		list.SubjectID = subjectID
		c.Put(list)
		c.logger.Debug("subject list loaded", "subject_id", subjectID, "total", list.Total)
		return nil, nil
	})
	if err != nil {
		return core.NoteList{}, err
	}

	list, _ := c.List(subjectID)
	return list, nil
}

// Refresh stores an authoritative copy of a cached note, replays the edits
// still waiting for confirmation over it and returns the resulting view.
// Notes that are not cached are returned as they are.
func (c *Cache) Refresh(n core.Note) core.Note {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx, e := c.findLocked(n.ID)
	if idx < 0 {
		return n
	}
	if muts := c.pending[n.ID]; len(muts) > 0 {
		n = replay(n, muts)
	}
	e.list.Notes[idx] = n
	return n
}

// Insert adds a note confirmed by the repository.
func (c *Cache) Insert(n core.Note) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lists[n.SubjectID]
	if !ok {
		return
	}
	for i, existing := range e.list.Notes {
		if existing.ID == n.ID {
			e.list.Notes[i] = n
			return
		}
	}
	idx := sort.Search(len(e.list.Notes), func(i int) bool { return e.list.Notes[i].ID > n.ID })
	e.list.Notes = append(e.list.Notes, core.Note{})
	copy(e.list.Notes[idx+1:], e.list.Notes[idx:])
	e.list.Notes[idx] = n
	e.list.Total++
	c.owners[n.ID] = n.SubjectID
}

// Remove drops a note whose deletion the repository confirmed.
func (c *Cache) Remove(id core.NoteID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx, e := c.findLocked(id)
	delete(c.owners, id)
	delete(c.pending, id)
	if idx < 0 {
		return
	}
	e.list.Notes = append(e.list.Notes[:idx], e.list.Notes[idx+1:]...)
	if e.list.Total > 0 {
		e.list.Total--
	}
}

// Invalidate marks the list of a subject for refresh on the next Fetch.
func (c *Cache) Invalidate(subjectID core.SubjectID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.lists[subjectID]; ok {
		e.stale = true
	}
}

// Stale reports whether the next Fetch of the subject will hit the lister.
func (c *Cache) Stale(subjectID core.SubjectID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.lists[subjectID]
	return !ok || e.stale
}

// Len returns the number of cached notes.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.owners)
}

// Close drops every cached list and pending mutation.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lists = make(map[core.SubjectID]*entry)
	c.owners = make(map[core.NoteID]core.SubjectID)
	c.pending = make(map[core.NoteID][]*Mutation)
	return nil
}

func (c *Cache) findLocked(id core.NoteID) (int, *entry) {
	subjectID, ok := c.owners[id]
	if !ok {
		return -1, nil
	}
	e, ok := c.lists[subjectID]
	if !ok {
		return -1, nil
	}
	for i, n := range e.list.Notes {
		if n.ID == id {
			return i, e
		}
	}
	return -1, nil
}
