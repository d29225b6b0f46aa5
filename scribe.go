package scribe

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/scribe/internal/platform"
	"github.com/aretw0/scribe/pkg/cache"
	"github.com/aretw0/scribe/pkg/core"
	"github.com/aretw0/scribe/pkg/session"
)

// --- Types ---

// Engine is a wired note session: repository, service, cache and controller.
type Engine = platform.Engine

// Config is the file configuration (scribe.yaml).
type Config = platform.Config

// --- Configuration ---

// Option defines a functional option for configuring Scribe.
type Option = platform.Option

// Adapter names accepted by WithAdapter.
const (
	AdapterSQLite = platform.AdapterSQLite
	AdapterRemote = platform.AdapterRemote
	AdapterMemory = platform.AdapterMemory
)

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithRepository allows injecting a custom storage adapter.
func WithRepository(repo core.Repository) Option {
	return platform.WithRepository(repo)
}

// WithAdapter allows specifying the storage adapter to use by name.
func WithAdapter(name string) Option {
	return platform.WithAdapter(name)
}

// WithHTTPClient sets the HTTP client of the remote adapter.
func WithHTTPClient(hc *http.Client) Option {
	return platform.WithHTTPClient(hc)
}

// WithDebounce sets the autosave quiet period.
func WithDebounce(d time.Duration) Option {
	return platform.WithDebounce(d)
}

// WithGuardDelay sets the duration of the loading guard after a note switch.
func WithGuardDelay(d time.Duration) Option {
	return platform.WithGuardDelay(d)
}

// WithClock overrides the time source of the session.
func WithClock(now func() time.Time) Option {
	return platform.WithClock(now)
}

// WithMetrics reports save measurements to m.
func WithMetrics(m session.Metrics) Option {
	return platform.WithMetrics(m)
}

// WithCache shares an existing optimistic cache.
func WithCache(c *cache.Cache) Option {
	return platform.WithCache(c)
}

// WithDocument sets the document engine driven by the session.
func WithDocument(doc session.Document) Option {
	return platform.WithDocument(doc)
}

// WithStatusListener subscribes fn to every session event.
func WithStatusListener(fn func(session.Event)) Option {
	return platform.WithStatusListener(fn)
}

// --- Factory ---

// New creates an Engine on the repository addressed by uri.
func New(uri string, opts ...Option) (*Engine, error) {
	return platform.New(uri, opts...)
}

// Init initializes a repository explicitly.
func Init(uri string, opts ...Option) (core.Repository, error) {
	return platform.Init(uri, opts...)
}

// --- Utils ---

// LoadConfig reads a scribe.yaml file over the defaults.
func LoadConfig(path string) (Config, error) {
	return platform.LoadConfig(path)
}

// FindConfig recursively looks upwards for a scribe.yaml file.
func FindConfig(startDir string) (string, error) {
	return platform.FindConfig(startDir)
}
