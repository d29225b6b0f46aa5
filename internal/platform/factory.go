package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/scribe/pkg/cache"
	"github.com/aretw0/scribe/pkg/core"
	"github.com/aretw0/scribe/pkg/session"
)

// Engine wires the repository, the validating service, the optimistic cache
// and the session controller of one application.
type Engine struct {
	Service *core.Service
	Cache   *cache.Cache
	Session *session.Controller

	repo   core.Repository
	logger *slog.Logger
}

// New builds an Engine on the repository addressed by uri.
//
//	eng, err := scribe.New("http://localhost:8000", scribe.WithDebounce(time.Second))
func New(uri string, opts ...Option) (*Engine, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	repo, err := initRepository(uri, o)
	if err != nil {
		return nil, err
	}

	c := o.cache
	if c == nil {
		c = cache.New(cache.WithLogger(o.logger))
	}

	svc := core.NewService(repo)
	sessionOpts := []session.Option{
		session.WithLogger(o.logger),
		session.WithCache(c),
		session.WithDebounce(o.debounce),
		session.WithGuardDelay(o.guardDelay),
		session.WithClock(o.clock),
		session.WithMetrics(o.metrics),
		session.WithDocument(o.document),
	}
	for _, fn := range o.listeners {
		sessionOpts = append(sessionOpts, session.WithStatusListener(fn))
	}

	// Autosave goes through the service so saves obey the same rules as
	// direct updates.
	ctrl := session.New(serviceUpdater{svc}, sessionOpts...)

	return &Engine{
		Service: svc,
		Cache:   c,
		Session: ctrl,
		repo:    repo,
		logger:  o.logger,
	}, nil
}

// Repository returns the storage adapter of the engine.
func (e *Engine) Repository() core.Repository {
	return e.repo
}

// OpenNote loads a note and makes it the active note of the session.
// The list of its subject is loaded into the cache first so the optimistic
// path has an entry to update. The fetched copy wins over the cached one;
// only unconfirmed edits are replayed over it.
func (e *Engine) OpenNote(ctx context.Context, id core.NoteID) (core.Note, error) {
	note, err := e.Service.GetNote(ctx, id)
	if err != nil {
		return core.Note{}, err
	}
	if _, err := e.Cache.Fetch(ctx, serviceLister{e.Service}, note.SubjectID); err != nil {
		e.logger.Warn("subject list not cached", "subject_id", note.SubjectID, "error", err)
	}
	note = e.Cache.Refresh(note)
	if err := e.Session.Open(ctx, note); err != nil {
		return core.Note{}, err
	}
	return note, nil
}

// ListNotes returns the notes of a subject, from the cache when it is fresh.
func (e *Engine) ListNotes(ctx context.Context, subjectID core.SubjectID) (core.NoteList, error) {
	return e.Cache.Fetch(ctx, serviceLister{e.Service}, subjectID)
}

// CreateNote creates a note and adds it to the cache once confirmed.
func (e *Engine) CreateNote(ctx context.Context, subjectID core.SubjectID, title, document string) (core.Note, error) {
	note, err := e.Service.CreateNote(ctx, subjectID, title, document)
	if err != nil {
		return core.Note{}, err
	}
	e.Cache.Insert(note)
	return note, nil
}

// DeleteNote deletes a note and drops it from the cache once confirmed.
func (e *Engine) DeleteNote(ctx context.Context, id core.NoteID) error {
	if err := e.Service.DeleteNote(ctx, id); err != nil {
		return err
	}
	e.Cache.Remove(id)
	return nil
}

// Close stops the session, waiting for in-flight saves, and releases the
// repository.
func (e *Engine) Close(ctx context.Context) error {
	var errs []error
	if err := e.Session.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close session: %w", err))
	}
	if err := e.Cache.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close cache: %w", err))
	}
	if closer, ok := e.repo.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close repository: %w", err))
		}
	}
	return errors.Join(errs...)
}

type serviceUpdater struct{ svc *core.Service }

func (u serviceUpdater) Update(ctx context.Context, id core.NoteID, patch core.NotePatch) (core.Note, error) {
	return u.svc.UpdateNote(ctx, id, patch)
}

type serviceLister struct{ svc *core.Service }

func (l serviceLister) ListBySubject(ctx context.Context, subjectID core.SubjectID) (core.NoteList, error) {
	return l.svc.ListNotes(ctx, subjectID)
}
