package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/scribe/pkg/adapters/api"
	"github.com/aretw0/scribe/pkg/adapters/memory"
	"github.com/aretw0/scribe/pkg/core"
)

func newServer(t *testing.T) (*api.Server, *memory.Repository, core.SubjectID) {
	t.Helper()
	repo := memory.New()
	subject := repo.CreateSubject("physics")
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("# metrics")) })
	return api.NewServer(core.NewService(repo), api.WithMetricsHandler(metrics)), repo, subject
}

func call(t *testing.T, h http.Handler, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec.Code, out
}

func TestServer_NoteLifecycle(t *testing.T) {
	srv, _, subject := newServer(t)
	base := "/api/v1/subjects/" + subject.String() + "/notes"

	code, note := call(t, srv, http.MethodPost, base, `{"subject_id":`+subject.String()+`,"title":"Waves"}`)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "{}", note["content_json"])
	id := int64(note["id"].(float64))
	path := "/api/v1/notes/" + core.NoteID(id).String()

	code, note = call(t, srv, http.MethodPut, path, `{"content_json":"{\"type\":\"doc\"}"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, `{"type":"doc"}`, note["content_json"])
	assert.Equal(t, "Waves", note["title"])

	code, note = call(t, srv, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, `{"type":"doc"}`, note["content_json"])

	code, list := call(t, srv, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, list["total"])
	assert.EqualValues(t, subject, list["subject_id"])

	code, ack := call(t, srv, http.MethodDelete, path, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Note deleted successfully", ack["message"])
	assert.EqualValues(t, id, ack["note_id"])

	code, detail := call(t, srv, http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.NotEmpty(t, detail["detail"])
}

func TestServer_Errors(t *testing.T) {
	srv, repo, subject := newServer(t)
	repo.Seed(core.Note{ID: 10, SubjectID: subject, Title: "t", Document: "{}"})
	base := "/api/v1/subjects/" + subject.String() + "/notes"

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"subject mismatch", http.MethodPost, base, `{"subject_id":999,"title":"x"}`, http.StatusBadRequest},
		{"empty title", http.MethodPost, base, `{"title":""}`, http.StatusUnprocessableEntity},
		{"long title", http.MethodPost, base, `{"title":"` + strings.Repeat("a", 256) + `"}`, http.StatusUnprocessableEntity},
		{"invalid document", http.MethodPost, base, `{"title":"x","content_json":"{nope"}`, http.StatusUnprocessableEntity},
		{"malformed body", http.MethodPost, base, `{`, http.StatusUnprocessableEntity},
		{"unknown subject", http.MethodGet, "/api/v1/subjects/77/notes", "", http.StatusNotFound},
		{"bad id", http.MethodGet, "/api/v1/notes/abc", "", http.StatusUnprocessableEntity},
		{"update missing", http.MethodPut, "/api/v1/notes/11", `{"title":"y"}`, http.StatusNotFound},
		{"delete missing", http.MethodDelete, "/api/v1/notes/11", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := call(t, srv, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, code)
			assert.NotEmpty(t, body["detail"])
		})
	}
}

func TestServer_EmptyUpdateReturnsNote(t *testing.T) {
	srv, repo, subject := newServer(t)
	repo.Seed(core.Note{ID: 10, SubjectID: subject, Title: "t", Document: "{}"})

	code, body := call(t, srv, http.MethodPut, "/api/v1/notes/10", `{}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "t", body["title"])
	assert.Zero(t, repo.Calls("update"))

	code, _ = call(t, srv, http.MethodPut, "/api/v1/notes/11", `{}`)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestServer_HealthAndMetrics(t *testing.T) {
	srv, _, _ := newServer(t)

	code, body := call(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# metrics", rec.Body.String())
}

func TestServer_SubjectsRouteNeedsCreator(t *testing.T) {
	srv, _, _ := newServer(t)
	code, _ := call(t, srv, http.MethodPost, "/api/v1/subjects", `{"name":"x"}`)
	assert.Equal(t, http.StatusNotFound, code, "memory.Repository cannot create subjects over the API")
}
