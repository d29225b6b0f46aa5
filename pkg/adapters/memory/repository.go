// Package memory is an in-process implementation of core.Repository with
// configurable latency and injectable failures.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/scribe/pkg/core"
)

// Update records one call to Repository.Update.
type Update struct {
	ID    core.NoteID
	Patch core.NotePatch
}

// Repository keeps notes in a map. Ids are assigned from a counter.
type Repository struct {
	mu       sync.Mutex
	subjects map[core.SubjectID]string
	notes    map[core.NoteID]core.Note
	nextNote core.NoteID
	nextSubj core.SubjectID

	latency  time.Duration
	failures []error
	calls    map[string]int
	updates  []Update
}

// Option configures a Repository.
type Option func(*Repository)

// WithLatency delays every call by d.
func WithLatency(d time.Duration) Option {
	return func(r *Repository) {
		r.latency = d
	}
}

// New creates an empty Repository.
func New(opts ...Option) *Repository {
	r := &Repository{
		subjects: make(map[core.SubjectID]string),
		notes:    make(map[core.NoteID]core.Note),
		calls:    make(map[string]int),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateSubject registers a subject and returns its id.
func (r *Repository) CreateSubject(name string) core.SubjectID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextSubj++
	r.subjects[r.nextSubj] = name
	return r.nextSubj
}

// Seed stores notes as they are, registering their subjects.
func (r *Repository) Seed(notes ...core.Note) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range notes {
		if _, ok := r.subjects[n.SubjectID]; !ok {
			r.subjects[n.SubjectID] = n.SubjectID.String()
		}
		if n.SubjectID > r.nextSubj {
			r.nextSubj = n.SubjectID
		}
		if n.ID > r.nextNote {
			r.nextNote = n.ID
		}
		r.notes[n.ID] = n
	}
}

// SetLatency changes the delay of subsequent calls.
func (r *Repository) SetLatency(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latency = d
}

// FailNext makes the next call fail with err. Calls queue up in order.
func (r *Repository) FailNext(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, err)
}

// Calls returns how many times op ("create", "get", "update", "remove",
// "list") was invoked.
func (r *Repository) Calls(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[op]
}

// Updates returns the Update calls seen so far, in order.
func (r *Repository) Updates() []Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Update(nil), r.updates...)
}

func (r *Repository) Create(ctx context.Context, subjectID core.SubjectID, title, doc string) (core.Note, error) {
	if err := r.enter(ctx, "create"); err != nil {
		return core.Note{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.subjects[subjectID]; !ok {
		return core.Note{}, fmt.Errorf("subject %d: %w", subjectID, core.ErrSubjectNotFound)
	}
	if doc == "" {
		doc = core.EmptyDocument
	}
	r.nextNote++
	n := core.Note{ID: r.nextNote, SubjectID: subjectID, Title: title, Document: doc}
	r.notes[n.ID] = n
	return n, nil
}

func (r *Repository) Get(ctx context.Context, id core.NoteID) (core.Note, error) {
	if err := r.enter(ctx, "get"); err != nil {
		return core.Note{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.notes[id]
	if !ok {
		return core.Note{}, fmt.Errorf("note %d: %w", id, core.ErrNotFound)
	}
	return n, nil
}

func (r *Repository) Update(ctx context.Context, id core.NoteID, patch core.NotePatch) (core.Note, error) {
	r.mu.Lock()
	r.updates = append(r.updates, Update{ID: id, Patch: patch})
	r.mu.Unlock()

	if err := r.enter(ctx, "update"); err != nil {
		return core.Note{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.notes[id]
	if !ok {
		return core.Note{}, fmt.Errorf("note %d: %w", id, core.ErrNotFound)
	}
	n = patch.Apply(n)
	r.notes[id] = n
	return n, nil
}

func (r *Repository) Remove(ctx context.Context, id core.NoteID) error {
	if err := r.enter(ctx, "remove"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.notes[id]; !ok {
		return fmt.Errorf("note %d: %w", id, core.ErrNotFound)
	}
	delete(r.notes, id)
	return nil
}

func (r *Repository) ListBySubject(ctx context.Context, subjectID core.SubjectID) (core.NoteList, error) {
	if err := r.enter(ctx, "list"); err != nil {
		return core.NoteList{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.subjects[subjectID]; !ok {
		return core.NoteList{}, fmt.Errorf("subject %d: %w", subjectID, core.ErrSubjectNotFound)
	}
	list := core.NoteList{SubjectID: subjectID, Notes: []core.Note{}}
	for _, n := range r.notes {
		if n.SubjectID == subjectID {
			list.Notes = append(list.Notes, n)
		}
	}
	sort.Slice(list.Notes, func(i, j int) bool { return list.Notes[i].ID < list.Notes[j].ID })
	list.Total = len(list.Notes)
	return list, nil
}

// enter counts the call, waits out the latency and pops an injected failure.
func (r *Repository) enter(ctx context.Context, op string) error {
	r.mu.Lock()
	r.calls[op]++
	latency := r.latency
	var injected error
	if len(r.failures) > 0 {
		injected = r.failures[0]
		r.failures = r.failures[1:]
	}
	r.mu.Unlock()

	if latency > 0 {
		t := time.NewTimer(latency)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return injected
}

// ComponentType implements introspection.Component.
func (r *Repository) ComponentType() string {
	return "memory"
}

var _ core.Repository = (*Repository)(nil)
