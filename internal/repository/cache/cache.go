// Package cache implements the filesystem-addressed cache entry described
// in spec §3/§6: a TTL'd store for registry provider-index responses
// (the "repo/" cache subtree) keyed by a sanitized cache key. Metadata
// (mtime, TTL bookkeeping) lives in a BoltDB file alongside the cached
// bodies, the way golang-dep/internal/gps/source_cache_bolt.go caches
// source metadata in a bolt.DB under the cache root; bucket keys are
// built with jmank88/nuts so revision/URL keys sort and pack compactly.
package cache

import (
	"hash/fnv"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/boltdb/bolt"
	"github.com/jmank88/nuts"
	"github.com/pkg/errors"
	"github.com/theckman/go-flock"
)

var metaBucket = []byte("entries")

var sanitizeRE = regexp.MustCompile(`[^a-z0-9._]`)

// SanitizeKey lowercases and replaces every character outside [a-z0-9._]
// with '-', per spec §3's Cache entry invariant.
func SanitizeKey(key string) string {
	return sanitizeRE.ReplaceAllString(toLower(key), "-")
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// Cache is a filesystem-addressed, TTL'd blob store. Reads never mutate.
// A read-only Cache disables all writes, per spec §3.
type Cache struct {
	root     string
	db       *bolt.DB
	ttl      time.Duration
	readOnly bool
}

// Open opens (creating if necessary) the cache rooted at dir, with the
// given TTL for read freshness. When readOnly is true, Put is a no-op and
// Get never reports a write as having happened.
func Open(dir string, ttl time.Duration, readOnly bool) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating cache root %q", dir)
	}
	dbPath := filepath.Join(dir, "meta.db")
	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: 1 * time.Second, ReadOnly: readOnly})
	if err != nil {
		return nil, errors.Wrapf(err, "opening cache metadata db %q", dbPath)
	}
	if !readOnly {
		err = db.Update(func(tx *bolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(metaBucket)
			return err
		})
		if err != nil {
			db.Close()
			return nil, errors.Wrap(err, "initializing cache metadata bucket")
		}
	}
	return &Cache{root: dir, db: db, ttl: ttl, readOnly: readOnly}, nil
}

// Close releases the cache's metadata database handle.
func (c *Cache) Close() error {
	return errors.Wrap(c.db.Close(), "closing cache metadata db")
}

// bodyPath returns the on-disk path for a cache key's body blob.
func (c *Cache) bodyPath(key string) string {
	return filepath.Join(c.root, SanitizeKey(key)+".blob")
}

// metaKey packs a sanitized cache key into a compact BoltDB bucket key:
// the key is hashed to a uint64 and serialized with nuts.Key, the same
// fixed-width big-endian integer packing golang-dep's bolt cache uses for
// its bucket keys, rather than storing the (potentially long) string
// verbatim.
func metaKey(key string) []byte {
	h := fnv.New64a()
	h.Write([]byte(SanitizeKey(key)))
	sum := h.Sum64()
	k := make(nuts.Key, nuts.KeyLen(sum))
	k.Put(sum)
	return k
}

// Get returns the cached body for key if present and not expired (older
// than TTL counts as expired; exactly-TTL-old counts as expired too, per
// spec §8's boundary behavior). ok is false on a miss or expiry.
func (c *Cache) Get(key string) (body []byte, mtime time.Time, ok bool, err error) {
	var storedMTime int64
	err = c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(metaBucket)
		if b == nil {
			return nil
		}
		v := b.Get(metaKey(key))
		if v == nil {
			return nil
		}
		storedMTime = int64FromBytes(v)
		ok = true
		return nil
	})
	if err != nil {
		return nil, time.Time{}, false, errors.Wrap(err, "reading cache metadata")
	}
	if !ok {
		return nil, time.Time{}, false, nil
	}

	mtime = time.Unix(storedMTime, 0)
	if c.ttl > 0 && time.Since(mtime) >= c.ttl {
		return nil, mtime, false, nil
	}

	body, err = os.ReadFile(c.bodyPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			// Metadata says present but the blob is gone (partial write
			// or external eviction): treat as absent, per spec §3.
			return nil, mtime, false, nil
		}
		return nil, mtime, false, errors.Wrapf(err, "reading cache body %q", key)
	}
	return body, mtime, true, nil
}

// Put writes body under key, recording the current time as its mtime. A
// read-only cache silently drops the write. Writes go to a temp file and
// are renamed into place, and the metadata record is only committed after
// the rename succeeds, so a process crash mid-write leaves either nothing
// or a complete blob — never a partial one treated as present (spec §3).
//
// An advisory flock on a per-key lock file serializes writers across
// processes sharing the same cache root; within one process the planner's
// at-most-one-write-per-name invariant already prevents collisions (spec
// §5), so this only matters for independent `pkgsolve` invocations.
func (c *Cache) Put(key string, body []byte) error {
	if c.readOnly {
		return nil
	}

	lockPath := c.bodyPath(key) + ".lock"
	fl := flock.NewFlock(lockPath)
	if err := fl.Lock(); err != nil {
		return errors.Wrapf(err, "locking cache entry %q", key)
	}
	defer fl.Unlock()

	tmp := c.bodyPath(key) + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return errors.Wrapf(err, "writing cache body %q", key)
	}
	if err := os.Rename(tmp, c.bodyPath(key)); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "renaming cache body %q into place", key)
	}

	now := time.Now()
	err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(metaBucket)
		return b.Put(metaKey(key), int64ToBytes(now.Unix()))
	})
	return errors.Wrap(err, "writing cache metadata")
}

func int64ToBytes(v int64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

func int64FromBytes(b []byte) int64 {
	var v int64
	for i := 0; i < 8 && i < len(b); i++ {
		v |= int64(b[i]) << (8 * i)
	}
	return v
}
