package remote_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/scribe/pkg/adapters/api"
	"github.com/aretw0/scribe/pkg/adapters/remote"
	"github.com/aretw0/scribe/pkg/adapters/sqlite"
	"github.com/aretw0/scribe/pkg/core"
)

func newClient(t *testing.T) *remote.Client {
	t.Helper()
	repo, err := sqlite.Open(filepath.Join(t.TempDir(), "scribe.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	ts := httptest.NewServer(api.NewServer(core.NewService(repo)))
	t.Cleanup(ts.Close)

	c, err := remote.New(ts.URL + "/")
	require.NoError(t, err)
	return c
}

func TestClient_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	subject, err := c.CreateSubject(ctx, "biology")
	require.NoError(t, err)

	n, err := c.Create(ctx, subject, "Cells", "")
	require.NoError(t, err)
	assert.Equal(t, core.EmptyDocument, n.Document)
	assert.Equal(t, subject, n.SubjectID)

	doc := `{"type":"doc","content":[{"type":"paragraph"}]}`
	updated, err := c.Update(ctx, n.ID, core.DocumentPatch(doc))
	require.NoError(t, err)
	assert.Equal(t, doc, updated.Document)
	assert.Equal(t, "Cells", updated.Title)

	got, err := c.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, got)

	list, err := c.ListBySubject(ctx, subject)
	require.NoError(t, err)
	assert.Equal(t, 1, list.Total)
	assert.Equal(t, subject, list.SubjectID)

	require.NoError(t, c.Remove(ctx, n.ID))
	_, err = c.Get(ctx, n.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	list, err = c.ListBySubject(ctx, subject)
	require.NoError(t, err)
	assert.NotNil(t, list.Notes)
	assert.Equal(t, 0, list.Total)
}

func TestClient_ErrorMapping(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	_, err := c.ListBySubject(ctx, 404)
	assert.ErrorIs(t, err, core.ErrSubjectNotFound)

	_, err = c.Create(ctx, 404, "orphan", "")
	assert.ErrorIs(t, err, core.ErrSubjectNotFound)

	subject, err := c.CreateSubject(ctx, "s")
	require.NoError(t, err)
	_, err = c.Create(ctx, subject, "", "")
	assert.ErrorIs(t, err, core.ErrInvalidNote)

	_, err = c.Update(ctx, 12345, core.TitlePatch("x"))
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestClient_TransportFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer ts.Close()

	c, err := remote.New(ts.URL)
	require.NoError(t, err)
	_, err = c.Get(context.Background(), 1)
	assert.ErrorIs(t, err, remote.ErrTransport)
	assert.Contains(t, err.Error(), "502")

	ts.Close()
	_, err = c.Get(context.Background(), 1)
	assert.ErrorIs(t, err, remote.ErrTransport)
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := remote.New("ftp://example.com")
	assert.Error(t, err)
	_, err = remote.New("://nope")
	assert.Error(t, err)
}
