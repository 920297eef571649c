// Package cache stores compiled outputs in SQLite keyed by the content hash of
// the compile inputs. Output blobs are zstd-compressed.
package cache

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/lslc/compiler"
)

var log = commonlog.GetLogger("lslc.cache")

// ErrNotFound indicates the requested key has no entry.
var ErrNotFound = errors.New("cache entry not found")

// Key is the SHA-256 content hash of a compile's inputs.
type Key [32]byte

// String returns the hex form used as the row key.
func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// Entry is one cached compile.
type Entry struct {
	Key         Key
	Backend     string
	CompileID   uuid.UUID
	Output      []byte
	Warnings    int
	Diagnostics []compiler.Diagnostic
	Created     time.Time
}

// Cache is a SQLite-backed compile cache.
type Cache struct {
	db   *sql.DB
	path string
	enc  *zstd.Encoder
	dec  *zstd.Decoder
	mu   sync.Mutex
}

// Open opens or creates the cache database at path.
func Open(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS compiles (
		key         TEXT PRIMARY KEY,
		backend     TEXT NOT NULL,
		compile_id  TEXT NOT NULL,
		output      BLOB NOT NULL,
		size        INTEGER NOT NULL,
		warnings    INTEGER NOT NULL,
		diagnostics BLOB NOT NULL,
		created     INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		db.Close()
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}

	return &Cache{db: db, path: path, enc: enc, dec: dec}, nil
}

// DefaultPath is the cache database under the user cache directory.
func DefaultPath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("getting cache dir: %w", err)
	}
	return filepath.Join(dir, "lslc", "compiles.db"), nil
}

// Path returns the database file path.
func (c *Cache) Path() string {
	return c.path
}

// Close closes the database connection.
func (c *Cache) Close() error {
	c.enc.Close()
	c.dec.Close()
	return c.db.Close()
}

// Put stores e, replacing any entry with the same key.
func (c *Cache) Put(e *Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	diags, err := cbor.Marshal(e.Diagnostics)
	if err != nil {
		return fmt.Errorf("encoding diagnostics: %w", err)
	}
	created := e.Created
	if created.IsZero() {
		created = time.Now()
	}
	blob := c.enc.EncodeAll(e.Output, nil)

	_, err = c.db.Exec(
		`INSERT OR REPLACE INTO compiles
			(key, backend, compile_id, output, size, warnings, diagnostics, created)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Key.String(), e.Backend, e.CompileID.String(), blob, len(e.Output),
		e.Warnings, diags, created.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("saving entry: %w", err)
	}
	log.Debugf("stored %s (%d bytes, %d compressed)", e.Key, len(e.Output), len(blob))
	return nil
}

// Get loads the entry for key, or ErrNotFound.
func (c *Cache) Get(key Key) (*Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		backend, id string
		blob, diags []byte
		size        int
		warnings    int
		created     int64
	)
	err := c.db.QueryRow(
		`SELECT backend, compile_id, output, size, warnings, diagnostics, created
			FROM compiles WHERE key = ?`, key.String(),
	).Scan(&backend, &id, &blob, &size, &warnings, &diags, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying entry: %w", err)
	}

	out, err := c.dec.DecodeAll(blob, make([]byte, 0, size))
	if err != nil {
		return nil, fmt.Errorf("decompressing %s: %w", key, err)
	}
	if len(out) != size {
		return nil, fmt.Errorf("entry %s: expected %d bytes, got %d", key, size, len(out))
	}
	compileID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", key, err)
	}
	e := &Entry{
		Key:       key,
		Backend:   backend,
		CompileID: compileID,
		Output:    out,
		Warnings:  warnings,
		Created:   time.Unix(0, created),
	}
	if err := cbor.Unmarshal(diags, &e.Diagnostics); err != nil {
		return nil, fmt.Errorf("entry %s: decoding diagnostics: %w", key, err)
	}
	return e, nil
}

// Delete removes the entry for key. Deleting a missing key is not an error.
func (c *Cache) Delete(key Key) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.Exec("DELETE FROM compiles WHERE key = ?", key.String()); err != nil {
		return fmt.Errorf("deleting entry: %w", err)
	}
	return nil
}

// Len returns the number of stored entries.
func (c *Cache) Len() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var n int
	if err := c.db.QueryRow("SELECT COUNT(*) FROM compiles").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting entries: %w", err)
	}
	return n, nil
}

// Prune removes entries created before cutoff and returns how many went.
func (c *Cache) Prune(cutoff time.Time) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, err := c.db.Exec("DELETE FROM compiles WHERE created < ?", cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("pruning entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning entries: %w", err)
	}
	log.Infof("pruned %d entries older than %s", n, cutoff.Format(time.RFC3339))
	return n, nil
}
