// Package api exposes core.Service as the REST backend the remote adapter
// talks to.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/aretw0/scribe/pkg/core"
)

// Prefix is the path prefix of the versioned API.
const Prefix = "/api/v1"

// SubjectCreator is implemented by repositories that can create subjects.
// When the service repository implements it, POST /api/v1/subjects is served.
type SubjectCreator interface {
	CreateSubject(ctx context.Context, name string) (core.SubjectID, error)
}

// Server routes HTTP requests to a core.Service.
type Server struct {
	svc     *core.Service
	router  chi.Router
	logger  *slog.Logger
	metrics http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsHandler serves h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// NewServer builds the router of svc.
func NewServer(svc *core.Service, opts ...Option) *Server {
	s := &Server{
		svc:    svc,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", s.health)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route(Prefix, func(r chi.Router) {
		if _, ok := svc.Repository().(SubjectCreator); ok {
			r.Post("/subjects", s.createSubject)
		}
		r.Get("/subjects/{subjectID}/notes", s.listNotes)
		r.Post("/subjects/{subjectID}/notes", s.createNote)
		r.Get("/notes/{noteID}", s.getNote)
		r.Put("/notes/{noteID}", s.updateNote)
		r.Delete("/notes/{noteID}", s.deleteNote)
	})

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type createNoteRequest struct {
	SubjectID *core.SubjectID `json:"subject_id"`
	Title     string          `json:"title"`
	Document  string          `json:"content_json"`
}

type createSubjectRequest struct {
	Name string `json:"name"`
}

type subjectResponse struct {
	ID   core.SubjectID `json:"id"`
	Name string         `json:"name"`
}

type deleteResponse struct {
	Message string      `json:"message"`
	NoteID  core.NoteID `json:"note_id"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) createSubject(w http.ResponseWriter, r *http.Request) {
	var req createSubjectRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		s.fail(w, r, fmt.Errorf("%w: name is required", core.ErrInvalidNote))
		return
	}
	id, err := s.svc.Repository().(SubjectCreator).CreateSubject(r.Context(), req.Name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, subjectResponse{ID: id, Name: req.Name})
}

func (s *Server) listNotes(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := s.subjectParam(w, r)
	if !ok {
		return
	}
	list, err := s.svc.ListNotes(r.Context(), subjectID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) createNote(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := s.subjectParam(w, r)
	if !ok {
		return
	}
	var req createNoteRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.SubjectID != nil && *req.SubjectID != subjectID {
		s.fail(w, r, fmt.Errorf("%w: subject id in URL (%d) does not match subject id in body (%d)",
			core.ErrSubjectMismatch, subjectID, *req.SubjectID))
		return
	}
	note, err := s.svc.CreateNote(r.Context(), subjectID, req.Title, req.Document)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

func (s *Server) getNote(w http.ResponseWriter, r *http.Request) {
	id, ok := s.noteParam(w, r)
	if !ok {
		return
	}
	note, err := s.svc.GetNote(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (s *Server) updateNote(w http.ResponseWriter, r *http.Request) {
	id, ok := s.noteParam(w, r)
	if !ok {
		return
	}
	var patch core.NotePatch
	if !s.decode(w, r, &patch) {
		return
	}
	note, err := s.svc.UpdateNote(r.Context(), id, patch)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (s *Server) deleteNote(w http.ResponseWriter, r *http.Request) {
	id, ok := s.noteParam(w, r)
	if !ok {
		return
	}
	if err := s.svc.DeleteNote(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{Message: "Note deleted successfully", NoteID: id})
}

func (s *Server) subjectParam(w http.ResponseWriter, r *http.Request) (core.SubjectID, bool) {
	v, err := strconv.ParseInt(chi.URLParam(r, "subjectID"), 10, 64)
	if err != nil {
		s.fail(w, r, fmt.Errorf("%w: subject id must be an integer", core.ErrInvalidNote))
		return 0, false
	}
	return core.SubjectID(v), true
}

func (s *Server) noteParam(w http.ResponseWriter, r *http.Request) (core.NoteID, bool) {
	v, err := strconv.ParseInt(chi.URLParam(r, "noteID"), 10, 64)
	if err != nil {
		s.fail(w, r, fmt.Errorf("%w: note id must be an integer", core.ErrInvalidNote))
		return 0, false
	}
	return core.NoteID(v), true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, 8<<20))
	if err := dec.Decode(v); err != nil {
		s.fail(w, r, fmt.Errorf("%w: malformed body: %v", core.ErrInvalidNote, err))
		return false
	}
	return true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorResponse{Detail: err.Error()})
}

// StatusOf maps a core error to its HTTP status.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound), errors.Is(err, core.ErrSubjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrSubjectMismatch), errors.Is(err, core.ErrEmptyPatch):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrInvalidNote):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
