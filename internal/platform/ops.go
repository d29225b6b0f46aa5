package platform

import (
	"fmt"
	"strings"

	"github.com/aretw0/scribe/pkg/adapters/memory"
	"github.com/aretw0/scribe/pkg/adapters/remote"
	"github.com/aretw0/scribe/pkg/adapters/sqlite"
	"github.com/aretw0/scribe/pkg/core"
)

// Init opens the repository addressed by uri.
// The uri is adapter-specific: a server URL for "remote", a database path for
// "sqlite", ignored for "memory".
func Init(uri string, opts ...Option) (core.Repository, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return initRepository(uri, o)
}

func initRepository(uri string, o *options) (core.Repository, error) {
	if o.repository != nil {
		return o.repository, nil
	}

	adapter := o.adapter
	if adapter == "" {
		adapter = DetectAdapter(uri)
	}

	switch adapter {
	case AdapterRemote:
		return remote.New(uri, remote.WithHTTPClient(o.httpClient), remote.WithLogger(o.logger))
	case AdapterSQLite:
		if uri == "" {
			return nil, fmt.Errorf("sqlite adapter needs a database path")
		}
		return sqlite.Open(uri, sqlite.WithLogger(o.logger))
	case AdapterMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown adapter: %s", adapter)
	}
}

// DetectAdapter derives the adapter name from the shape of uri.
func DetectAdapter(uri string) string {
	switch {
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		return AdapterRemote
	case uri == ":memory:" || uri == "":
		return AdapterMemory
	default:
		return AdapterSQLite
	}
}
