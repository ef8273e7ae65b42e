// Package config loads histdb settings from an optional TOML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/odvcencio/histdb/pkg/compress"
	"github.com/odvcencio/histdb/pkg/ingest"
	"github.com/odvcencio/histdb/pkg/store"
)

// Config is the full set of tunables.
type Config struct {
	RefGlob string `toml:"ref_glob"`
	Store   Store  `toml:"store"`
	Blobs   Blobs  `toml:"blobs"`
	Ingest  Ingest `toml:"ingest"`
	Log     Log    `toml:"log"`
}

// Store configures the SQLite connection.
type Store struct {
	JournalMode   string `toml:"journal_mode"`
	BusyTimeoutMS int    `toml:"busy_timeout_ms"`
}

// Blobs configures blob compression.
type Blobs struct {
	LZ4Level int `toml:"lz4_level"`
}

// Ingest bounds per-run work.
type Ingest struct {
	TreeCacheSize int `toml:"tree_cache_size"`
	MaxWalkSteps  int `toml:"max_walk_steps"`
}

// Log configures logging. File, when set, receives JSON lines and is
// rotated at MaxSizeMB.
type Log struct {
	Level      string `toml:"level"`
	JSON       bool   `toml:"json"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		RefGlob: ingest.DefaultRefGlob,
		Store: Store{
			JournalMode:   "WAL",
			BusyTimeoutMS: 5000,
		},
		Blobs: Blobs{LZ4Level: compress.DefaultLevel},
		Ingest: Ingest{
			TreeCacheSize: ingest.DefaultTreeCacheSize,
			MaxWalkSteps:  ingest.DefaultMaxWalkSteps,
		},
		Log: Log{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
		},
	}
}

// Load reads path over the defaults. An empty path or a missing file
// returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("read config %s: unknown key %q", path, undecoded[0].String())
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values no component would accept.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RefGlob) == "" {
		return errors.New("ref_glob is empty")
	}
	if c.Blobs.LZ4Level < 0 || c.Blobs.LZ4Level > compress.DefaultLevel {
		return fmt.Errorf("blobs.lz4_level %d out of range 0..%d", c.Blobs.LZ4Level, compress.DefaultLevel)
	}
	if c.Store.BusyTimeoutMS < 0 {
		return fmt.Errorf("store.busy_timeout_ms %d is negative", c.Store.BusyTimeoutMS)
	}
	if c.Ingest.TreeCacheSize < 0 {
		return fmt.Errorf("ingest.tree_cache_size %d is negative", c.Ingest.TreeCacheSize)
	}
	if c.Ingest.MaxWalkSteps < 0 {
		return fmt.Errorf("ingest.max_walk_steps %d is negative", c.Ingest.MaxWalkSteps)
	}
	return nil
}

// StoreOptions converts the store section for store.Open.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		JournalMode: c.Store.JournalMode,
		BusyTimeout: time.Duration(c.Store.BusyTimeoutMS) * time.Millisecond,
	}
}

// IngestOptions converts the engine settings for ingest.Run. Repository
// identity and the logger are left for the caller.
func (c *Config) IngestOptions() ingest.Options {
	return ingest.Options{
		RefGlob:       c.RefGlob,
		LZ4Level:      c.Blobs.LZ4Level,
		TreeCacheSize: c.Ingest.TreeCacheSize,
		MaxWalkSteps:  c.Ingest.MaxWalkSteps,
	}
}
