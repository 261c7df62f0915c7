// package cache implements a disk-backed memoizer with per-entry TTLs. It
// sits in front of every expensive call (pull request fetches, narrative
// analysis) so repeated runs with unchanged inputs do not hit external APIs.
//
// A cache failure is never fatal: storage errors degrade to a forced miss
// and are logged, so the caller's primary operation always proceeds.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/grcops/pr-compliance/internal/apperrors"
	"github.com/grcops/pr-compliance/pkg/logger/sl"
)

const (
	dirPerms  = 0o700
	filePerms = 0o600
)

// entry is the on-disk representation of one cached value. Entries are never
// mutated in place, only replaced or removed.
type entry struct {
	CachedAt time.Time       `json:"cached_at"`
	TTL      time.Duration   `json:"ttl"`
	Data     json.RawMessage `json:"data"`
}

// Cache stores JSON-encoded values under sha256-derived file names.
type Cache struct {
	dir string
	log *slog.Logger
	now func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source, used by tests to simulate expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New creates a cache rooted at dir, creating the directory if needed.
func New(dir string, log *slog.Logger, opts ...Option) (*Cache, error) {
	if err := os.MkdirAll(dir, dirPerms); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	c := &Cache{
		dir: dir,
		log: log,
		now: time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Key builds a stable cache key from the logical parameters of a request.
// Identical parts always produce the same key, so repeated runs with
// unchanged inputs are cache hits. The sha256 hex form is also safe as a
// file name.
func Key(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "/")))
	return hex.EncodeToString(hash[:])
}

// Get loads a live entry for key into v. It returns apperrors.ErrCacheMiss
// for absent, expired, or unreadable entries; expiry is evaluated lazily
// here, there is no background sweep.
func (c *Cache) Get(key string, v any) error {
	path := c.path(key)

	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.log.Debug("failed to read cache file", sl.Err(err), slog.String("path", path))
		}

		return apperrors.ErrCacheMiss
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		c.log.Warn("failed to decode cache file", sl.Err(err), slog.String("path", path))
		return apperrors.ErrCacheMiss
	}

	if c.now().Sub(e.CachedAt) >= e.TTL {
		c.log.Debug("cache entry expired",
			slog.String("key", key),
			slog.Time("cached_at", e.CachedAt),
			slog.Duration("ttl", e.TTL),
		)

		return apperrors.ErrCacheMiss
	}

	if err := json.Unmarshal(e.Data, v); err != nil {
		c.log.Warn("failed to unmarshal cached value", sl.Err(err), slog.String("key", key))
		return apperrors.ErrCacheMiss
	}

	return nil
}

// Set stores v under key with the given TTL, overwriting any previous entry.
// Storage failures are logged and swallowed: the next Get simply misses.
func (c *Cache) Set(key string, v any, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		c.log.Warn("failed to marshal value for cache", sl.Err(err), slog.String("key", key))
		return
	}

	e := entry{
		CachedAt: c.now(),
		TTL:      ttl,
		Data:     data,
	}

	if err := c.save(key, e); err != nil {
		c.log.Warn("failed to save cache entry", sl.Err(err), slog.String("key", key))
	}
}

// Invalidate removes any entry for key. Removing an absent key is a no-op.
func (c *Cache) Invalidate(key string) {
	if err := os.Remove(c.path(key)); err != nil && !os.IsNotExist(err) {
		c.log.Warn("failed to invalidate cache entry", sl.Err(err), slog.String("key", key))
	}
}

// Clear removes all entries.
func (c *Cache) Clear() {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		c.log.Warn("failed to read cache directory", sl.Err(err))
		return
	}

	for _, dirEntry := range entries {
		if dirEntry.IsDir() || !strings.HasSuffix(dirEntry.Name(), ".json") {
			continue
		}

		path := filepath.Join(c.dir, dirEntry.Name())
		if err := os.Remove(path); err != nil {
			c.log.Warn("failed to remove cache file", sl.Err(err), slog.String("path", path))
		}
	}
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, key+".json")
}

// save writes the entry atomically via a temp file so a crashed run never
// leaves a truncated entry behind.
func (c *Cache) save(key string, e entry) error {
	path := c.path(key)
	tmpPath := path + ".tmp"

	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePerms)
	if err != nil {
		return fmt.Errorf("creating cache file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(e); err != nil {
		if closeErr := file.Close(); closeErr != nil {
			c.log.Debug("failed to close temp file", sl.Err(closeErr))
		}
		if removeErr := os.Remove(tmpPath); removeErr != nil {
			c.log.Debug("failed to remove temp file", sl.Err(removeErr))
		}

		return fmt.Errorf("encoding cache entry: %w", err)
	}

	if err := file.Close(); err != nil {
		if removeErr := os.Remove(tmpPath); removeErr != nil {
			c.log.Debug("failed to remove temp file", sl.Err(removeErr))
		}

		return fmt.Errorf("closing cache file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		if removeErr := os.Remove(tmpPath); removeErr != nil {
			c.log.Debug("failed to remove temp file", sl.Err(removeErr))
		}

		return fmt.Errorf("renaming cache file: %w", err)
	}

	return nil
}

// IsMiss reports whether err is a cache miss.
func IsMiss(err error) bool {
	return errors.Is(err, apperrors.ErrCacheMiss)
}
