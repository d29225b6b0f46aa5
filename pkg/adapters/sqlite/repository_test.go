package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/scribe/pkg/adapters/sqlite"
	"github.com/aretw0/scribe/pkg/core"
)

func openRepo(t *testing.T) *sqlite.Repository {
	t.Helper()
	repo, err := sqlite.Open(filepath.Join(t.TempDir(), "data", "scribe.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := openRepo(t)

	subject, err := repo.CreateSubject(ctx, "history")
	require.NoError(t, err)

	a, err := repo.Create(ctx, subject, "Rome", "")
	require.NoError(t, err)
	assert.Equal(t, core.EmptyDocument, a.Document)
	b, err := repo.Create(ctx, subject, "Greece", `{"type":"doc"}`)
	require.NoError(t, err)

	got, err := repo.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b, got)

	updated, err := repo.Update(ctx, a.ID, core.DocumentPatch(`{"type":"doc","content":[]}`))
	require.NoError(t, err)
	assert.Equal(t, "Rome", updated.Title)
	assert.Equal(t, `{"type":"doc","content":[]}`, updated.Document)

	list, err := repo.ListBySubject(ctx, subject)
	require.NoError(t, err)
	assert.Equal(t, 2, list.Total)
	assert.Equal(t, subject, list.SubjectID)
	assert.Equal(t, []core.NoteID{a.ID, b.ID}, []core.NoteID{list.Notes[0].ID, list.Notes[1].ID})

	require.NoError(t, repo.Remove(ctx, a.ID))
	_, err = repo.Get(ctx, a.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, repo.Remove(ctx, a.ID), core.ErrNotFound)
	_, err = repo.Update(ctx, a.ID, core.TitlePatch("x"))
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRepository_UnknownSubject(t *testing.T) {
	ctx := context.Background()
	repo := openRepo(t)

	_, err := repo.Create(ctx, 404, "orphan", "")
	assert.ErrorIs(t, err, core.ErrSubjectNotFound)
	_, err = repo.ListBySubject(ctx, 404)
	assert.ErrorIs(t, err, core.ErrSubjectNotFound)
}

func TestRepository_DeleteSubjectCascades(t *testing.T) {
	ctx := context.Background()
	repo := openRepo(t)

	subject, err := repo.CreateSubject(ctx, "tmp")
	require.NoError(t, err)
	n, err := repo.Create(ctx, subject, "child", "")
	require.NoError(t, err)

	require.NoError(t, repo.DeleteSubject(ctx, subject))
	_, err = repo.Get(ctx, n.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, repo.DeleteSubject(ctx, subject), core.ErrSubjectNotFound)
}

func TestRepository_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "scribe.db")

	repo, err := sqlite.Open(path)
	require.NoError(t, err)
	subject, err := repo.CreateSubject(ctx, "persist")
	require.NoError(t, err)
	n, err := repo.Create(ctx, subject, "kept", "")
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	repo, err = sqlite.Open(path)
	require.NoError(t, err)
	defer repo.Close()
	got, err := repo.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, "kept", got.Title)
}
