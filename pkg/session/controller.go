// Package session owns the active note of an editor: it turns document
// changes into debounced saves, keeps the optimistic cache in step with the
// repository and keeps autosave state from leaking across note switches.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/scribe/pkg/autosave"
	"github.com/aretw0/scribe/pkg/cache"
	"github.com/aretw0/scribe/pkg/core"
	"github.com/aretw0/scribe/pkg/document"
)

// DefaultGuardDelay is how long content notifications are ignored after a
// note switch when the document cannot acknowledge its load.
const DefaultGuardDelay = 100 * time.Millisecond

// ErrClosed is returned by operations on a closed controller.
var ErrClosed = errors.New("session closed")

// ErrNoActiveNote is returned by Rename when no note is open.
var ErrNoActiveNote = errors.New("no active note")

// Controller is the note session controller.
//
// The active note, the pending timer and the dirty and guard flags are owned
// by the controller; collaborators only see them through Status and events.
type Controller struct {
	repo       core.Updater
	doc        Document
	cache      *cache.Cache
	debounce   time.Duration
	guardDelay time.Duration
	now        func() time.Time
	logger     *slog.Logger
	metrics    Metrics

	scheduler      *autosave.Scheduler
	unsubscribeDoc func()

	mu          sync.Mutex
	note        core.Note
	active      bool
	epoch       uint64
	latest      string
	dirty       bool
	editGen     uint64
	saving      bool
	loading     bool
	lastSavedAt *time.Time
	lastErr     error
	guardTimer  *time.Timer
	closed      bool

	locksMu sync.Mutex
	locks   map[core.NoteID]*noteLock

	listenersMu  sync.Mutex
	listeners    map[uint64]func(Event)
	nextListener uint64

	inflight sync.WaitGroup
}

type noteLock struct {
	mu   sync.Mutex
	refs int
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger of the controller.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDebounce sets the autosave quiet period.
func WithDebounce(d time.Duration) Option {
	return func(c *Controller) {
		c.debounce = d
	}
}

// WithGuardDelay sets how long the loading guard lasts after a note switch.
func WithGuardDelay(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.guardDelay = d
		}
	}
}

// WithClock overrides the time source used for LastSavedAt.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithMetrics reports save measurements to m.
func WithMetrics(m Metrics) Option {
	return func(c *Controller) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithCache shares an optimistic cache with the controller.
func WithCache(nc *cache.Cache) Option {
	return func(c *Controller) {
		if nc != nil {
			c.cache = nc
		}
	}
}

// WithDocument sets the document engine. Defaults to a new document.Store.
func WithDocument(doc Document) Option {
	return func(c *Controller) {
		if doc != nil {
			c.doc = doc
		}
	}
}

// WithStatusListener subscribes fn to every event from construction on.
func WithStatusListener(fn func(Event)) Option {
	return func(c *Controller) {
		if fn != nil {
			c.subscribe(fn)
		}
	}
}

// New creates a Controller persisting through repo.
func New(repo core.Updater, opts ...Option) *Controller {
	c := &Controller{
		repo:       repo,
		guardDelay: DefaultGuardDelay,
		now:        time.Now,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics:    nopMetrics{},
		locks:      make(map[core.NoteID]*noteLock),
		listeners:  make(map[uint64]func(Event)),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.doc == nil {
		c.doc = document.NewStore(document.WithLogger(c.logger))
	}
	if c.cache == nil {
		c.cache = cache.New(cache.WithLogger(c.logger))
	}
	c.scheduler = autosave.New(c.debounce)
	c.latest = c.doc.Serialize()
	c.unsubscribeDoc = c.doc.OnChange(c.ContentChanged)
	return c
}

// Document returns the document engine driven by the controller.
func (c *Controller) Document() Document {
	return c.doc
}

// Cache returns the optimistic cache updated by the controller.
func (c *Controller) Cache() *cache.Cache {
	return c.cache
}

// Open makes note the active note.
//
// The pending timer of the previous note is cancelled without firing and the
// save session starts over clean. Notifications caused by loading the new
// document are ignored. A save of the previous note that is already in flight
// completes in the background and only reconciles the cache.
//
// Opening the active note again reloads it when it is clean. With unsaved
// changes or a save in flight the session is kept as it is, so the edits are
// never replaced by the repository copy.
func (c *Controller) Open(ctx context.Context, note core.Note) error {
	canonical := document.Canonical(note.Document)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.active && c.note.ID == note.ID && (c.dirty || c.saving) {
		c.mu.Unlock()
		c.logger.Debug("note already open with unsaved changes, session kept", "note_id", note.ID)
		return nil
	}
	c.scheduler.Cancel()
	c.stopGuardLocked()
	c.epoch++
	epoch := c.epoch
	previous, wasActive := c.note.ID, c.active
	c.note = note
	c.active = true
	c.latest = canonical
	c.dirty = false
	c.saving = false
	c.loading = true
	c.lastSavedAt = nil
	c.lastErr = nil
	status := c.statusLocked()
	c.mu.Unlock()

	if wasActive && previous != note.ID {
		c.logger.Debug("switched note", "from", previous, "note_id", note.ID)
	}
	c.publish(Event{Type: EventOpened, NoteID: note.ID, Status: status})

	if c.doc.Serialize() == canonical {
		c.clearGuard(epoch)
		return nil
	}

	if ack, ok := c.doc.(LoadAcknowledger); ok {
		done := ack.LoadAck(note.Document)
		select {
		case <-done:
			c.clearGuard(epoch)
			return nil
		default:
		}
		c.armGuard(epoch)
		c.awaitAck(ctx, epoch, done)
		return nil
	}

	c.doc.Load(note.Document)
	c.armGuard(epoch)
	return nil
}

// ContentChanged is the change notification of the document engine.
// Outside the loading guard it marks the note dirty and re-arms the autosave
// timer, cancelling the previous one.
func (c *Controller) ContentChanged(serialized string) {
	c.mu.Lock()
	if c.closed || !c.active || c.loading {
		c.mu.Unlock()
		return
	}
	c.latest = serialized
	wasDirty := c.dirty
	c.dirty = true
	c.editGen++
	epoch := c.epoch
	c.scheduler.Schedule(func() { c.fire(epoch) })
	status := c.statusLocked()
	c.mu.Unlock()

	if !wasDirty {
		c.publish(Event{Type: EventDirty, NoteID: status.NoteID, Status: status})
	}
}

// ManualSave cancels the pending timer and persists the active note now,
// returning once the repository answered. It does nothing when there are no
// unsaved changes.
func (c *Controller) ManualSave(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !c.active || !c.dirty {
		c.mu.Unlock()
		return nil
	}
	c.scheduler.Cancel()
	epoch := c.epoch
	c.inflight.Add(1)
	c.mu.Unlock()
	defer c.inflight.Done()

	return c.persist(ctx, epoch, TriggerManual)
}

// Rename updates the title of the active note through the optimistic cache.
// It is reported like a save, with the rename trigger.
func (c *Controller) Rename(ctx context.Context, title string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !c.active {
		c.mu.Unlock()
		return ErrNoActiveNote
	}
	id, epoch := c.note.ID, c.epoch
	c.inflight.Add(1)
	c.mu.Unlock()
	defer c.inflight.Done()

	lock := c.lockNote(id)
	defer c.unlockNote(id, lock)

	c.mu.Lock()
	current := c.active && c.epoch == epoch
	var status Status
	if current {
		c.saving = true
		status = c.statusLocked()
	}
	c.mu.Unlock()
	if current {
		c.publish(Event{Type: EventSaving, NoteID: id, Trigger: TriggerRename, Status: status})
	}

	_, err := c.update(ctx, id, core.TitlePatch(title), TriggerRename)
	return c.report(epoch, id, TriggerRename, err, func() {
		c.note.Title = title
	})
}

// Note returns the active note as last opened or renamed.
func (c *Controller) Note() (core.Note, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.note, c.active
}

// Status returns a snapshot of the save session.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// Subscribe registers fn for every event. Listeners run on the goroutine that
// caused the transition, outside of the controller lock.
func (c *Controller) Subscribe(fn func(Event)) (unsubscribe func()) {
	id := c.subscribe(fn)
	var once sync.Once
	return func() {
		once.Do(func() {
			c.listenersMu.Lock()
			delete(c.listeners, id)
			c.listenersMu.Unlock()
		})
	}
}

// Close cancels the pending timer, detaches from the document and waits for
// in-flight saves to complete or ctx to end.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.scheduler.Stop()
	c.stopGuardLocked()
	id, wasActive := c.note.ID, c.active
	c.active = false
	c.epoch++
	c.dirty = false
	c.saving = false
	c.loading = false
	status := c.statusLocked()
	c.mu.Unlock()

	c.unsubscribeDoc()

	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("waiting for in-flight saves: %w", ctx.Err())
	}

	if wasActive {
		c.publish(Event{Type: EventClosed, NoteID: id, Status: status})
	}
	return nil
}

func (c *Controller) fire(epoch uint64) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.inflight.Add(1)
	c.mu.Unlock()
	defer c.inflight.Done()

	// Failures are already reported through status and events.
	_ = c.persist(context.Background(), epoch, TriggerDebounce)
}

// persist saves the latest content of the note that was active at epoch.
// Saves of one note never overlap: a second save waits for the first and then
// finds nothing left to do unless edits arrived meanwhile.
func (c *Controller) persist(ctx context.Context, epoch uint64, trigger Trigger) error {
	c.mu.Lock()
	if !c.active || c.epoch != epoch {
		c.mu.Unlock()
		return nil
	}
	id := c.note.ID
	c.mu.Unlock()

	lock := c.lockNote(id)
	defer c.unlockNote(id, lock)

	c.mu.Lock()
	switch {
	case !c.active || c.epoch != epoch:
		c.mu.Unlock()
		c.logger.Debug("save dropped, note no longer active", "note_id", id, "trigger", trigger)
		return nil
	case trigger == TriggerDebounce && c.loading:
		c.mu.Unlock()
		return nil
	case !c.dirty:
		c.mu.Unlock()
		return nil
	}
	content := c.latest
	gen := c.editGen
	c.saving = true
	status := c.statusLocked()
	c.mu.Unlock()

	c.publish(Event{Type: EventSaving, NoteID: id, Trigger: trigger, Status: status})

	_, err := c.update(ctx, id, core.DocumentPatch(content), trigger)
	return c.report(epoch, id, trigger, err, func() {
		if c.editGen == gen {
			c.dirty = false
		}
	})
}

// report records the outcome of an update of note id started at epoch and
// publishes it. onSaved runs under the controller lock after a successful
// update of a note that is still active. Outcomes of a note that is no
// longer active are only logged.
func (c *Controller) report(epoch uint64, id core.NoteID, trigger Trigger, err error, onSaved func()) error {
	c.mu.Lock()
	current := c.active && c.epoch == epoch
	var status Status
	if current {
		c.saving = false
		if err != nil {
			c.lastErr = err
		} else {
			c.lastErr = nil
			savedAt := c.now()
			c.lastSavedAt = &savedAt
			onSaved()
		}
		status = c.statusLocked()
	}
	c.mu.Unlock()

	if !current {
		c.logger.Debug("background save finished", "note_id", id, "trigger", trigger, "error", err)
		return err
	}
	if err != nil {
		c.publish(Event{Type: EventSaveFailed, NoteID: id, Trigger: trigger, Status: status, Err: err})
		return err
	}
	c.publish(Event{Type: EventSaved, NoteID: id, Trigger: trigger, Status: status})
	return nil
}

// update applies patch optimistically and reconciles the cache with the
// repository answer. The caller holds the note lock.
func (c *Controller) update(ctx context.Context, id core.NoteID, patch core.NotePatch, trigger Trigger) (core.Note, error) {
	m := c.cache.Mutate(id, patch)
	start := c.now()
	note, err := c.repo.Update(ctx, id, patch)
	elapsed := c.now().Sub(start)

	if err != nil {
		if c.cache.Rollback(m) {
			c.metrics.ObserveRollback()
		}
		c.metrics.ObserveSave(trigger, ResultFailure, elapsed)
		c.logger.Warn("save failed", "note_id", id, "trigger", trigger, "duration", elapsed, "error", err)
		return core.Note{}, fmt.Errorf("save note %d: %w", id, err)
	}

	c.cache.Commit(m)
	c.metrics.ObserveSave(trigger, ResultSuccess, elapsed)
	c.logger.Debug("note saved", "note_id", id, "trigger", trigger, "duration", elapsed)
	return note, nil
}

func (c *Controller) armGuard(epoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch || !c.loading {
		return
	}
	c.stopGuardLocked()
	c.guardTimer = time.AfterFunc(c.guardDelay, func() { c.clearGuard(epoch) })
}

// awaitAck clears the guard early when the document acknowledges the load
// after Open returned. The guard timer still bounds the wait.
func (c *Controller) awaitAck(ctx context.Context, epoch uint64, done <-chan struct{}) {
	lifecycle.Go(ctx, func(ctx context.Context) error {
		timeout := time.NewTimer(c.guardDelay)
		defer timeout.Stop()
		select {
		case <-done:
			c.clearGuard(epoch)
		case <-timeout.C:
		case <-ctx.Done():
		}
		return nil
	}, lifecycle.WithErrorHandler(func(err error) {
		c.logger.Error("load acknowledgement panic", "error", err)
	}))
}

// clearGuard ends the loading window of epoch. A stale clear never ends the
// window of a newer switch.
func (c *Controller) clearGuard(epoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return
	}
	c.loading = false
	c.stopGuardLocked()
}

func (c *Controller) stopGuardLocked() {
	if c.guardTimer != nil {
		c.guardTimer.Stop()
		c.guardTimer = nil
	}
}

func (c *Controller) statusLocked() Status {
	s := Status{
		NoteID:            c.note.ID,
		Active:            c.active,
		IsSaving:          c.saving,
		HasUnsavedChanges: c.dirty,
		IsLoadingNote:     c.loading,
		LastError:         c.lastErr,
	}
	if !c.active {
		s.NoteID = 0
	}
	if c.lastSavedAt != nil {
		t := *c.lastSavedAt
		s.LastSavedAt = &t
	}
	switch {
	case c.saving:
		s.State = StateSaving
	case c.dirty:
		s.State = StateDirty
	default:
		s.State = StateIdle
	}
	return s
}

func (c *Controller) lockNote(id core.NoteID) *noteLock {
	c.locksMu.Lock()
	l, ok := c.locks[id]
	if !ok {
		l = &noteLock{}
		c.locks[id] = l
	}
	l.refs++
	c.locksMu.Unlock()

	l.mu.Lock()
	return l
}

func (c *Controller) unlockNote(id core.NoteID, l *noteLock) {
	l.mu.Unlock()

	c.locksMu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(c.locks, id)
	}
	c.locksMu.Unlock()
}

func (c *Controller) subscribe(fn func(Event)) uint64 {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	return id
}

func (c *Controller) publish(e Event) {
	c.listenersMu.Lock()
	fns := make([]func(Event), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.listenersMu.Unlock()

	for _, fn := range fns {
		fn(e)
	}
}
