// Package diskcache persists compiled VMProgram artifacts to disk, keyed
// by the SHA-256 of the IR module they were lowered from, so an unchanged
// module skips normalization and lowering on the next build.
package diskcache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"vmc/internal/bytecode"
)

// schemaVersion guards against stale entries after the on-disk payload
// format changes; bump it whenever Payload's fields change shape.
const schemaVersion uint16 = 1

// Digest is a content hash over an IR module's serialized bytecode
// dependencies, computed by the caller (typically over the module's
// source bytes or a canonical encoding of its functions).
type Digest [sha256.Size]byte

// Sum computes a Digest over data.
func Sum(data []byte) Digest { return sha256.Sum256(data) }

// Cache stores compiled artifacts under a directory, one file per
// digest, written atomically via temp-file-plus-rename so a reader never
// observes a partial write. Safe for concurrent use.
type Cache struct {
	mu  sync.RWMutex
	dir string
}

// Payload is the cached, msgpack-encoded compilation result for one
// module: its lowered program plus the target it was compiled against,
// so a cache hit can be rejected if the requested target has changed.
type Payload struct {
	Schema  uint16
	Target  string
	Program *bytecode.VMProgram
}

// Open initializes a cache rooted at $XDG_CACHE_HOME/<app> (falling back
// to ~/.cache/<app>), creating the directory if needed.
func Open(app string) (*Cache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, app)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir}, nil
}

func (c *Cache) pathFor(key Digest) string {
	return filepath.Join(c.dir, "programs", hex.EncodeToString(key[:])+".mp")
}

// Put serializes and atomically writes payload under key. A nil receiver
// is a silent no-op, matching the source cache's tolerance for an
// unconfigured cache.
func (c *Cache) Put(key Digest, payload *Payload) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	payload.Schema = schemaVersion
	path := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.CreateTemp(filepath.Dir(path), "tmp-*")
	if err != nil {
		return err
	}
	tmpPath := f.Name()
	defer os.Remove(tmpPath)

	if err := msgpack.NewEncoder(f).Encode(payload); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// Get reads and deserializes the payload stored under key. It reports
// (false, nil) on a cache miss rather than an error, and rejects entries
// whose schema no longer matches.
func (c *Cache) Get(key Digest) (*Payload, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()

	var payload Payload
	if err := msgpack.NewDecoder(f).Decode(&payload); err != nil {
		return nil, false, err
	}
	if payload.Schema != schemaVersion {
		return nil, false, nil
	}
	return &payload, true, nil
}

// DropAll invalidates every cached entry by renaming the cache directory
// aside and removing it, so an in-flight Get from another goroutine
// still completes against a consistent (if stale) view.
func (c *Cache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	stale := c.dir + ".stale"
	if err := os.RemoveAll(stale); err != nil {
		return err
	}
	if err := os.Rename(c.dir, stale); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return os.RemoveAll(stale)
}
