// Package remote implements core.Repository over the scribe REST API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aretw0/scribe/pkg/adapters/api"
	"github.com/aretw0/scribe/pkg/core"
)

// DefaultTimeout bounds every request unless WithHTTPClient supplies a client.
const DefaultTimeout = 10 * time.Second

// ErrTransport wraps failures that are not answers of the server.
var ErrTransport = errors.New("transport failure")

// Client is the HTTP adapter of core.Repository.
type Client struct {
	base   *url.URL
	http   *http.Client
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the logger of the client.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a Client for the server at baseURL (for example
// "http://localhost:8000").
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url %q: scheme must be http or https", baseURL)
	}
	c := &Client{
		base:   u,
		http:   &http.Client{Timeout: DefaultTimeout},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type createNoteRequest struct {
	SubjectID core.SubjectID `json:"subject_id"`
	Title     string         `json:"title"`
	Document  string         `json:"content_json"`
}

type subjectResponse struct {
	ID core.SubjectID `json:"id"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// CreateSubject creates a subject on servers backed by a repository that
// supports it.
func (c *Client) CreateSubject(ctx context.Context, name string) (core.SubjectID, error) {
	var out subjectResponse
	if err := c.do(ctx, http.MethodPost, "/subjects", map[string]string{"name": name}, &out, core.ErrNotFound); err != nil {
		return 0, err
	}
	return out.ID, nil
}

func (c *Client) Create(ctx context.Context, subjectID core.SubjectID, title, doc string) (core.Note, error) {
	if doc == "" {
		doc = core.EmptyDocument
	}
	var n core.Note
	in := createNoteRequest{SubjectID: subjectID, Title: title, Document: doc}
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/subjects/%d/notes", subjectID), in, &n, core.ErrSubjectNotFound)
	return n, err
}

func (c *Client) Get(ctx context.Context, id core.NoteID) (core.Note, error) {
	var n core.Note
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/notes/%d", id), nil, &n, core.ErrNotFound)
	return n, err
}

func (c *Client) Update(ctx context.Context, id core.NoteID, patch core.NotePatch) (core.Note, error) {
	var n core.Note
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/notes/%d", id), patch, &n, core.ErrNotFound)
	return n, err
}

func (c *Client) Remove(ctx context.Context, id core.NoteID) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/notes/%d", id), nil, nil, core.ErrNotFound)
}

func (c *Client) ListBySubject(ctx context.Context, subjectID core.SubjectID) (core.NoteList, error) {
	var list core.NoteList
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/subjects/%d/notes", subjectID), nil, &list, core.ErrSubjectNotFound)
	if list.Notes == nil {
		list.Notes = []core.Note{}
	}
	return list, err
}

// do sends one request under /api/v1 and decodes the answer into out.
// A 404 answer is reported as notFound.
func (c *Client) do(ctx context.Context, method, path string, in, out any, notFound error) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	endpoint := c.base.String() + api.Prefix + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()
	c.logger.Debug("request", "method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode >= 300 {
		return statusError(resp, notFound)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrTransport, err)
	}
	return nil
}

func statusError(resp *http.Response, notFound error) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	detail := strings.TrimSpace(string(raw))
	var er errorResponse
	if json.Unmarshal(raw, &er) == nil && er.Detail != "" {
		detail = er.Detail
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", notFound, detail)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", core.ErrInvalidNote, detail)
	default:
		return fmt.Errorf("%w: server answered %d: %s", ErrTransport, resp.StatusCode, detail)
	}
}

// ComponentType implements introspection.Component.
func (c *Client) ComponentType() string {
	return "remote"
}

var _ core.Repository = (*Client)(nil)
