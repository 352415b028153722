package docstore

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	data       TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection);
`

// sqlitePollInterval is the catch-up cadence for changes made by other
// processes sharing the database file. In-process writes notify watchers
// directly, so this only bounds cross-process latency.
const sqlitePollInterval = 2 * time.Second

// SQLiteStore persists documents in a local SQLite file. Multiple processes
// may share the file; WAL mode keeps readers unblocked during writes.
type SQLiteStore struct {
	db *sql.DB

	mu          sync.Mutex
	collections map[string]*sqliteCollection
}

// OpenSQLite opens or creates the database at path and ensures the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %s: %w", path, err)
	}
	// a single writer connection sidesteps SQLITE_BUSY under concurrency
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &SQLiteStore{db: db, collections: make(map[string]*sqliteCollection)}, nil
}

// Collection returns the named collection.
func (s *SQLiteStore) Collection(name string) Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		c = &sqliteCollection{
			db:       s.db,
			name:     name,
			watchers: make(map[int]chan struct{}),
		}
		s.collections[name] = c
	}
	return c
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

type sqliteCollection struct {
	db   *sql.DB
	name string

	mu        sync.Mutex
	watchers  map[int]chan struct{}
	nextWatch int
}

func (c *sqliteCollection) Get(ctx context.Context, id string) (json.RawMessage, error) {
	var data []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`, c.name, id,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", c.name, id, err)
	}
	return data, nil
}

func (c *sqliteCollection) List(ctx context.Context) ([]Doc, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, data FROM documents WHERE collection = ? ORDER BY id`, c.name)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c.name, err)
	}
	defer rows.Close() //nolint:errcheck

	var docs []Doc
	for rows.Next() {
		var d Doc
		var data []byte
		if err := rows.Scan(&d.ID, &data); err != nil {
			return nil, fmt.Errorf("scan %s: %w", c.name, err)
		}
		d.Data = data
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (c *sqliteCollection) Set(ctx context.Context, id string, doc any) error {
	raw, err := encodeDoc(doc)
	if err != nil {
		return err
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		c.name, id, string(raw), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", c.name, id, err)
	}
	c.notify()
	return nil
}

func (c *sqliteCollection) Update(ctx context.Context, id string, fields map[string]any) error {
	existing, err := c.Get(ctx, id)
	if err != nil {
		return err
	}
	updated, err := applyUpdate(existing, fields)
	if err != nil {
		return err
	}
	res, err := c.db.ExecContext(ctx,
		`UPDATE documents SET data = ?, updated_at = ? WHERE collection = ? AND id = ?`,
		string(updated), time.Now().UTC().Format(time.RFC3339Nano), c.name, id)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", c.name, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	c.notify()
	return nil
}

func (c *sqliteCollection) Delete(ctx context.Context, id string) error {
	_, err := c.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`, c.name, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", c.name, id, err)
	}
	c.notify()
	return nil
}

// Watch delivers snapshots driven by in-process write notifications plus a
// slow poll that picks up writes from other processes. Identical consecutive
// snapshots are suppressed by content fingerprint.
func (c *sqliteCollection) Watch(ctx context.Context) (<-chan Snapshot, error) {
	wake := make(chan struct{}, 1)
	c.mu.Lock()
	id := c.nextWatch
	c.nextWatch++
	c.watchers[id] = wake
	c.mu.Unlock()

	out := make(chan Snapshot, 1)
	go func() {
		defer func() {
			c.mu.Lock()
			delete(c.watchers, id)
			c.mu.Unlock()
			close(out)
		}()

		poll := time.NewTicker(sqlitePollInterval)
		defer poll.Stop()

		var lastSum [sha256.Size]byte
		deliver := func(initial bool) bool {
			docs, err := c.List(ctx)
			if err != nil {
				return true // transient read error, retry on next wake
			}
			snap := Snapshot{Collection: c.name, Docs: docs}
			sum := fingerprint(docs)
			if !initial && sum == lastSum {
				return true
			}
			lastSum = sum
			select {
			case out <- snap:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !deliver(true) {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-wake:
			case <-poll.C:
			}
			if !deliver(false) {
				return
			}
		}
	}()
	return out, nil
}

func (c *sqliteCollection) notify() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, wake := range c.watchers {
		select {
		case wake <- struct{}{}:
		default:
		}
	}
}

func fingerprint(docs []Doc) [sha256.Size]byte {
	h := sha256.New()
	for _, d := range docs {
		h.Write([]byte(d.ID))
		h.Write([]byte{0})
		h.Write(d.Data)
		h.Write([]byte{0})
	}
	var sum [sha256.Size]byte
	copy(sum[:], h.Sum(nil))
	return sum
}
