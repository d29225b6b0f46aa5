package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/scribe/pkg/adapters/memory"
	"github.com/aretw0/scribe/pkg/cache"
	"github.com/aretw0/scribe/pkg/core"
	"github.com/aretw0/scribe/pkg/document"
	"github.com/aretw0/scribe/pkg/session"
)

const debounce = 60 * time.Millisecond

var (
	noteA = core.Note{ID: 1, SubjectID: 1, Title: "A", Document: "{}"}
	noteB = core.Note{ID: 2, SubjectID: 1, Title: "B", Document: `{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"b"}]}]}`}
)

type recorder struct {
	mu     sync.Mutex
	events []session.Event
}

func (r *recorder) record(e session.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) of(t session.EventType) []session.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []session.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	repo  *memory.Repository
	store *document.Store
	cache *cache.Cache
	ctrl  *session.Controller
	rec   *recorder
}

func newFixture(t *testing.T, opts ...session.Option) *fixture {
	t.Helper()
	f := &fixture{
		repo:  memory.New(),
		store: document.NewStore(),
		cache: cache.New(),
		rec:   &recorder{},
	}
	f.repo.Seed(noteA, noteB)
	f.cache.Put(core.NoteList{SubjectID: 1, Total: 2, Notes: []core.Note{noteA, noteB}})

	opts = append([]session.Option{
		session.WithDocument(f.store),
		session.WithCache(f.cache),
		session.WithDebounce(debounce),
		session.WithStatusListener(f.rec.record),
	}, opts...)
	f.ctrl = session.New(f.repo, opts...)
	t.Cleanup(func() { _ = f.ctrl.Close(context.Background()) })
	return f
}

func (f *fixture) edit(text string) {
	f.store.Edit(func(root *document.Node) {
		root.Content = append(root.Content, document.Paragraph(text))
	})
}

func TestController_DebounceSavesLatestContentOnce(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ctrl.Open(context.Background(), noteA))

	for _, text := range []string{"h", "he", "hel", "hell", "hello"} {
		f.edit(text)
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, session.StateDirty, f.ctrl.Status().State)
	assert.Equal(t, 0, f.repo.Calls("update"), "nothing is saved inside the quiet period")

	assert.Eventually(t, func() bool { return f.repo.Calls("update") == 1 }, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return f.repo.Calls("update") > 1 }, 3*debounce, 10*time.Millisecond)

	updates := f.repo.Updates()
	require.Len(t, updates, 1)
	require.NotNil(t, updates[0].Patch.Document)
	assert.Equal(t, f.store.Serialize(), *updates[0].Patch.Document, "the content at fire time is saved")
	assert.Contains(t, *updates[0].Patch.Document, "hello")

	st := f.ctrl.Status()
	assert.Equal(t, session.StateIdle, st.State)
	assert.False(t, st.HasUnsavedChanges)
	assert.NotNil(t, st.LastSavedAt)
	assert.Len(t, f.rec.of(session.EventSaved), 1)
}

func TestController_ManualSaveTwiceCallsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ctrl.Open(ctx, noteA))

	f.edit("draft")
	require.NoError(t, f.ctrl.ManualSave(ctx))
	require.NoError(t, f.ctrl.ManualSave(ctx))

	assert.Equal(t, 1, f.repo.Calls("update"))
	assert.Never(t, func() bool { return f.repo.Calls("update") > 1 }, 2*debounce, 10*time.Millisecond,
		"manual save cancels the pending debounce timer")
	assert.Equal(t, session.TriggerManual, f.rec.of(session.EventSaved)[0].Trigger)
}

func TestController_SwitchCancelsPendingTimer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ctrl.Open(ctx, noteA))

	f.edit("typed into A")
	require.NoError(t, f.ctrl.Open(ctx, noteB))

	assert.Never(t, func() bool { return f.repo.Calls("update") > 0 }, 3*debounce, 10*time.Millisecond)
	n, _ := f.repo.Get(ctx, noteA.ID)
	assert.Equal(t, noteA.Document, n.Document)
}

func TestController_LoadWithinGuardDoesNotSave(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.ctrl.Open(ctx, core.Note{ID: 1, SubjectID: 1, Title: "A", Document: `{"type":"doc"}`}))
	require.NoError(t, f.ctrl.Open(ctx, noteB))

	assert.Never(t, func() bool { return f.repo.Calls("update") > 0 }, 3*debounce, 10*time.Millisecond)
	assert.False(t, f.ctrl.Status().HasUnsavedChanges)
	assert.Empty(t, f.rec.of(session.EventDirty))
}

// plainDocument hides the load acknowledgement of document.Store so the
// controller falls back to the timed guard.
type plainDocument struct {
	store *document.Store
}

func (d plainDocument) Load(serialized string)                 { d.store.Load(serialized) }
func (d plainDocument) Serialize() string                      { return d.store.Serialize() }
func (d plainDocument) OnChange(fn func(string)) (unsub func()) { return d.store.OnChange(fn) }

func TestController_TimedGuard(t *testing.T) {
	store := document.NewStore()
	repo := memory.New()
	repo.Seed(noteA, noteB)
	ctrl := session.New(repo,
		session.WithDocument(plainDocument{store: store}),
		session.WithDebounce(debounce),
		session.WithGuardDelay(80*time.Millisecond),
	)
	defer ctrl.Close(context.Background())

	require.NoError(t, ctrl.Open(context.Background(), noteB))
	assert.True(t, ctrl.Status().IsLoadingNote)

	// A late notification of the programmatic load is ignored.
	ctrl.ContentChanged(store.Serialize())
	assert.False(t, ctrl.Status().HasUnsavedChanges)

	assert.Eventually(t, func() bool { return !ctrl.Status().IsLoadingNote }, time.Second, 5*time.Millisecond)

	store.Edit(func(root *document.Node) { root.Content = append(root.Content, document.Paragraph("after guard")) })
	assert.True(t, ctrl.Status().HasUnsavedChanges)
	assert.Eventually(t, func() bool { return repo.Calls("update") == 1 }, time.Second, 5*time.Millisecond)
}

func TestController_StaleGuardClearDoesNotEndNewerGuard(t *testing.T) {
	store := document.NewStore()
	repo := memory.New()
	repo.Seed(noteA, noteB)
	ctrl := session.New(repo,
		session.WithDocument(plainDocument{store: store}),
		session.WithGuardDelay(100*time.Millisecond),
	)
	defer ctrl.Close(context.Background())

	ctx := context.Background()
	require.NoError(t, ctrl.Open(ctx, noteB))
	time.Sleep(70 * time.Millisecond)
	require.NoError(t, ctrl.Open(ctx, core.Note{ID: 3, SubjectID: 1, Document: `{"type":"doc","content":[]}`}))

	// The first guard would have expired here.
	time.Sleep(50 * time.Millisecond)
	assert.True(t, ctrl.Status().IsLoadingNote)
	assert.Eventually(t, func() bool { return !ctrl.Status().IsLoadingNote }, time.Second, 5*time.Millisecond)
}

func TestController_MalformedDocumentLoadsEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ctrl.Open(ctx, noteB))

	assert.NotPanics(t, func() {
		require.NoError(t, f.ctrl.Open(ctx, core.Note{ID: 1, SubjectID: 1, Title: "legacy", Document: `{"type": "doc", "content": [`}))
	})
	assert.Equal(t, `{"type":"doc"}`, f.store.Serialize())
	assert.Never(t, func() bool { return f.repo.Calls("update") > 0 }, 2*debounce, 10*time.Millisecond)
}

func TestController_SwitchResetsSaveSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ctrl.Open(ctx, noteA))

	f.edit("saved")
	require.NoError(t, f.ctrl.ManualSave(ctx))
	f.edit("unsaved")
	st := f.ctrl.Status()
	require.True(t, st.HasUnsavedChanges)
	require.NotNil(t, st.LastSavedAt)

	require.NoError(t, f.ctrl.Open(ctx, noteB))
	st = f.ctrl.Status()
	assert.Equal(t, noteB.ID, st.NoteID)
	assert.False(t, st.HasUnsavedChanges)
	assert.Nil(t, st.LastSavedAt)
	assert.Equal(t, session.StateIdle, st.State)
}

func TestController_FailureKeepsDirtyAndRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ctrl.Open(ctx, noteA))

	f.edit("keep me")
	edited := f.store.Serialize()

	boom := errors.New("server unavailable")
	f.repo.FailNext(boom)
	err := f.ctrl.ManualSave(ctx)
	require.ErrorIs(t, err, boom)

	st := f.ctrl.Status()
	assert.True(t, st.HasUnsavedChanges)
	assert.Equal(t, session.StateDirty, st.State)
	assert.ErrorIs(t, st.LastError, boom)
	assert.Nil(t, st.LastSavedAt)

	cached, ok := f.cache.Note(noteA.ID)
	require.True(t, ok)
	assert.Equal(t, noteA.Document, cached.Document, "cache is rolled back")
	assert.Equal(t, edited, f.store.Serialize(), "the document keeps the user's edits")
	require.Len(t, f.rec.of(session.EventSaveFailed), 1)

	require.NoError(t, f.ctrl.ManualSave(ctx))
	cached, _ = f.cache.Note(noteA.ID)
	assert.Equal(t, edited, cached.Document)
	assert.True(t, f.cache.Stale(1), "confirmed saves mark the list for refresh")
	assert.Nil(t, f.ctrl.Status().LastError)
	assert.Equal(t, 2, f.repo.Calls("update"))
}

func TestController_BackgroundSaveOfPreviousNote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.repo.SetLatency(150 * time.Millisecond)
	require.NoError(t, f.ctrl.Open(ctx, noteA))

	f.edit("in flight")
	content := f.store.Serialize()

	done := make(chan error, 1)
	go func() { done <- f.ctrl.ManualSave(ctx) }()
	require.Eventually(t, func() bool { return f.repo.Calls("update") == 1 }, time.Second, time.Millisecond)

	require.NoError(t, f.ctrl.Open(ctx, noteB))
	savedBefore := len(f.rec.of(session.EventSaved))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("background save did not finish")
	}

	st := f.ctrl.Status()
	assert.Equal(t, noteB.ID, st.NoteID)
	assert.False(t, st.IsSaving)
	assert.False(t, st.HasUnsavedChanges)
	assert.Nil(t, st.LastSavedAt, "the previous note's save never reaches the new note")
	assert.Len(t, f.rec.of(session.EventSaved), savedBefore)

	cached, _ := f.cache.Note(noteA.ID)
	assert.Equal(t, content, cached.Document, "the cache is reconciled by note id")
	stored, _ := f.repo.Get(ctx, noteA.ID)
	assert.Equal(t, content, stored.Document)
}

func TestController_EditsDuringSaveStayDirty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.repo.SetLatency(100 * time.Millisecond)
	require.NoError(t, f.ctrl.Open(ctx, noteA))

	f.edit("first")
	done := make(chan error, 1)
	go func() { done <- f.ctrl.ManualSave(ctx) }()
	require.Eventually(t, func() bool { return f.ctrl.Status().IsSaving }, time.Second, time.Millisecond)

	f.edit("second")
	require.NoError(t, <-done)
	assert.True(t, f.ctrl.Status().HasUnsavedChanges, "edits made during the save are still pending")

	assert.Eventually(t, func() bool { return f.repo.Calls("update") == 2 }, 2*time.Second, 5*time.Millisecond)
	updates := f.repo.Updates()
	assert.Contains(t, *updates[1].Patch.Document, "second")
	assert.Eventually(t, func() bool { return !f.ctrl.Status().HasUnsavedChanges }, 2*time.Second, 5*time.Millisecond)
}

func TestController_HandleKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ctrl.Open(ctx, noteA))
	f.edit("shortcut")

	handled, err := f.ctrl.HandleKey(ctx, "ctrl+x")
	require.NoError(t, err)
	assert.False(t, handled)
	assert.Equal(t, 0, f.repo.Calls("update"))

	handled, err = f.ctrl.HandleKey(ctx, "Ctrl+S")
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, 1, f.repo.Calls("update"))
}

func TestController_Rename(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ctrl.Open(ctx, noteA))

	require.NoError(t, f.ctrl.Rename(ctx, "Renamed"))
	cached, _ := f.cache.Note(noteA.ID)
	assert.Equal(t, "Renamed", cached.Title)
	n, _ := f.ctrl.Note()
	assert.Equal(t, "Renamed", n.Title)

	saved := f.rec.of(session.EventSaved)
	require.Len(t, saved, 1)
	assert.Equal(t, session.TriggerRename, saved[0].Trigger)
	assert.NotNil(t, f.ctrl.Status().LastSavedAt)
	assert.Len(t, f.rec.of(session.EventSaving), 1)

	f.repo.FailNext(errors.New("rejected"))
	require.Error(t, f.ctrl.Rename(ctx, "Nope"))
	cached, _ = f.cache.Note(noteA.ID)
	assert.Equal(t, "Renamed", cached.Title)
	n, _ = f.ctrl.Note()
	assert.Equal(t, "Renamed", n.Title)

	failed := f.rec.of(session.EventSaveFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, session.TriggerRename, failed[0].Trigger)
	status := f.ctrl.Status()
	assert.Error(t, status.LastError)
	assert.False(t, status.IsSaving)
	assert.False(t, status.HasUnsavedChanges, "a rename never marks the document dirty")

	require.NoError(t, f.ctrl.Rename(ctx, "Again"))
	assert.NoError(t, f.ctrl.Status().LastError)
}

func TestController_Close(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ctrl.Open(ctx, noteA))
	f.edit("pending")

	require.NoError(t, f.ctrl.Close(ctx))
	assert.Never(t, func() bool { return f.repo.Calls("update") > 0 }, 2*debounce, 10*time.Millisecond)

	assert.ErrorIs(t, f.ctrl.ManualSave(ctx), session.ErrClosed)
	assert.ErrorIs(t, f.ctrl.Open(ctx, noteB), session.ErrClosed)
	assert.False(t, f.ctrl.Status().Active)
	assert.Len(t, f.rec.of(session.EventClosed), 1)

	// Edits after close are not observed.
	f.edit("ignored")
	assert.False(t, f.ctrl.Status().HasUnsavedChanges)
}

func TestController_State(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ctrl.Open(context.Background(), noteA))
	f.edit("x")

	state, ok := f.ctrl.State().(session.ControllerState)
	require.True(t, ok)
	assert.Equal(t, int64(noteA.ID), state.NoteID)
	assert.Equal(t, "dirty", state.State)
	assert.True(t, state.TimerPending)
	assert.Equal(t, "session", f.ctrl.ComponentType())
}

func TestController_SaveKeepsUnknownDocumentMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rich := core.Note{ID: 3, SubjectID: 1, Title: "Rich", Document: `{"type":"doc","version":3,"content":[{"type":"paragraph","id":"p1"}]}`}
	f.repo.Seed(rich)

	require.NoError(t, f.ctrl.Open(ctx, rich))
	require.Eventually(t, func() bool { return !f.ctrl.Status().IsLoadingNote }, time.Second, 5*time.Millisecond)
	f.edit("hi")
	require.NoError(t, f.ctrl.ManualSave(ctx))

	stored, err := f.repo.Get(ctx, rich.ID)
	require.NoError(t, err)
	assert.Contains(t, stored.Document, `"version":3`)
	assert.Contains(t, stored.Document, `"id":"p1"`)
	assert.Contains(t, stored.Document, `"text":"hi"`)
}

func TestController_ReopenActiveNote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ctrl.Open(ctx, noteA))
	f.edit("keep")

	require.NoError(t, f.ctrl.Open(ctx, noteA))
	assert.True(t, f.ctrl.Status().HasUnsavedChanges)
	assert.Equal(t, "keep", f.store.Text())
	assert.Len(t, f.rec.of(session.EventOpened), 1)

	require.NoError(t, f.ctrl.ManualSave(ctx))
	stored, err := f.repo.Get(ctx, noteA.ID)
	require.NoError(t, err)
	assert.Equal(t, f.store.Serialize(), stored.Document)

	// A clean note is reloaded from the copy passed in.
	require.NoError(t, f.ctrl.Open(ctx, noteB))
	require.NoError(t, f.ctrl.Open(ctx, noteB))
	assert.Equal(t, "b", f.store.Text())
	assert.Len(t, f.rec.of(session.EventOpened), 3)
}
