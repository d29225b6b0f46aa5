package platform

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/scribe/pkg/autosave"
	"github.com/aretw0/scribe/pkg/session"
)

// ConfigFile is the name of the configuration file looked up by FindConfig.
const ConfigFile = "scribe.yaml"

// Config is the file configuration of the CLI.
type Config struct {
	Server struct {
		URL  string `yaml:"url"`
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Storage struct {
		Adapter string `yaml:"adapter"`
		Path    string `yaml:"path"`
	} `yaml:"storage"`
	Autosave struct {
		Debounce time.Duration `yaml:"debounce"`
		Guard    time.Duration `yaml:"guard"`
	} `yaml:"autosave"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// DefaultConfig returns the configuration used when no file is found.
func DefaultConfig() Config {
	var c Config
	c.Server.Addr = ":8000"
	c.Storage.Path = "scribe.db"
	c.Autosave.Debounce = autosave.DefaultDelay
	c.Autosave.Guard = session.DefaultGuardDelay
	c.Log.Level = "info"
	return c
}

// LoadConfig reads path over the defaults. Unknown keys are rejected.
func LoadConfig(path string) (Config, error) {
	c := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		return c, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return c, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Autosave.Debounce < 0 || c.Autosave.Guard < 0 {
		return fmt.Errorf("autosave durations must not be negative")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Storage.Adapter {
	case "", AdapterSQLite, AdapterRemote, AdapterMemory:
	default:
		return fmt.Errorf("unknown storage adapter %q", c.Storage.Adapter)
	}
	return nil
}

// URI returns the repository address selected by the configuration:
// the server URL when set, the storage path otherwise.
func (c Config) URI() string {
	if c.Storage.Adapter == AdapterRemote || (c.Storage.Adapter == "" && c.Server.URL != "") {
		return c.Server.URL
	}
	return c.Storage.Path
}

// Options converts the configuration into engine options.
func (c Config) Options() []Option {
	opts := []Option{
		WithDebounce(c.Autosave.Debounce),
		WithGuardDelay(c.Autosave.Guard),
	}
	if c.Storage.Adapter != "" {
		opts = append(opts, WithAdapter(c.Storage.Adapter))
	}
	return opts
}

// ParseLevel maps a level name to its slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

// FindConfig looks upwards from startDir for ConfigFile and returns its
// absolute path.
func FindConfig(startDir string) (string, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	dir := abs
	for {
		candidate := filepath.Join(dir, ConfigFile)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("%s not found above %s: %w", ConfigFile, abs, os.ErrNotExist)
}
