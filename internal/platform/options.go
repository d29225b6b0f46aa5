package platform

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/scribe/pkg/cache"
	"github.com/aretw0/scribe/pkg/core"
	"github.com/aretw0/scribe/pkg/session"
)

// Adapter names accepted by WithAdapter.
const (
	AdapterSQLite = "sqlite"
	AdapterRemote = "remote"
	AdapterMemory = "memory"
)

// options holds the internal configuration of an Engine.
type options struct {
	repository core.Repository
	logger     *slog.Logger
	adapter    string
	httpClient *http.Client

	debounce   time.Duration
	guardDelay time.Duration
	clock      func() time.Time
	metrics    session.Metrics
	cache      *cache.Cache
	document   session.Document
	listeners  []func(session.Event)
}

// Option defines a functional option for configuring scribe.
type Option func(*options)

func defaultOptions() *options {
	return &options{}
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRepository injects a storage adapter (a mock, say).
// When set, the adapter selection is skipped.
func WithRepository(repo core.Repository) Option {
	return func(o *options) {
		o.repository = repo
	}
}

// WithAdapter selects the storage adapter by name.
// Without it the adapter is derived from the URI: http(s) URLs select
// "remote", ":memory:" selects "memory", anything else is a SQLite path.
func WithAdapter(name string) Option {
	return func(o *options) {
		o.adapter = name
	}
}

// WithHTTPClient sets the client of the remote adapter.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}

// WithDebounce sets the autosave quiet period (default 2s).
func WithDebounce(d time.Duration) Option {
	return func(o *options) {
		o.debounce = d
	}
}

// WithGuardDelay sets how long the loading guard lasts after a note switch
// when the document cannot acknowledge its load (default 100ms).
func WithGuardDelay(d time.Duration) Option {
	return func(o *options) {
		o.guardDelay = d
	}
}

// WithClock overrides the time source of the session.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.clock = now
	}
}

// WithMetrics reports save measurements to m.
func WithMetrics(m session.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithCache shares an existing optimistic cache.
func WithCache(c *cache.Cache) Option {
	return func(o *options) {
		o.cache = c
	}
}

// WithDocument sets the document engine of the session.
func WithDocument(doc session.Document) Option {
	return func(o *options) {
		o.document = doc
	}
}

// WithStatusListener subscribes fn to every session event.
func WithStatusListener(fn func(session.Event)) Option {
	return func(o *options) {
		o.listeners = append(o.listeners, fn)
	}
}
