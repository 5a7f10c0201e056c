// Package sqlite provides the embedded storage layer: the versioned store,
// transaction management, the replication outbox, and the idempotency ledger.
package sqlite

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the embedded SQLite database for one node.
type DB struct {
	*sql.DB
	path string
}

// Open opens (or creates) the node database and initializes the schema.
// WAL keeps readers unblocked by the single writer; _txlock=immediate makes
// every transaction take the write lock up front, matching the storage
// contract that mutating transactions serialize against each other.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?%s", filepath.ToSlash(path), url.Values{
		"_journal_mode": {"WAL"},
		"_foreign_keys": {"on"},
		"_busy_timeout": {"5000"},
		"_txlock":       {"immediate"},
		"_loc":          {"UTC"},
	}.Encode())

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single writer connection sidesteps SQLITE_BUSY between in-process
	// transactions; WAL readers do not go through this pool anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	wrapped := &DB{DB: db, path: path}
	if err := wrapped.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return wrapped, nil
}

// Path returns the on-disk database path.
func (d *DB) Path() string {
	return d.path
}

func (d *DB) initSchema() error {
	if _, err := d.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS clients (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	document   TEXT,
	email      TEXT,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS products (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT,
	price       TEXT NOT NULL DEFAULT '0',
	active      INTEGER NOT NULL DEFAULT 1,
	created_at  TIMESTAMP NOT NULL,
	updated_at  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	username      TEXT PRIMARY KEY,
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL,
	created_at    TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS stock_levels (
	product_id TEXT PRIMARY KEY REFERENCES products(id) ON DELETE CASCADE,
	quantity   INTEGER NOT NULL DEFAULT 0,
	origin     TEXT NOT NULL,
	reference  TEXT,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS orders (
	id         TEXT PRIMARY KEY,
	client_id  TEXT NOT NULL REFERENCES clients(id),
	status     TEXT NOT NULL,
	total      TEXT NOT NULL DEFAULT '0',
	origin     TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS order_items (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	order_id   TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
	product_id TEXT NOT NULL REFERENCES products(id),
	quantity   INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id);
CREATE INDEX IF NOT EXISTS idx_orders_client ON orders(client_id);

CREATE TABLE IF NOT EXISTS entity_versions (
	entity_type      TEXT NOT NULL,
	entity_id        TEXT NOT NULL,
	version          INTEGER NOT NULL,
	last_modified_by TEXT NOT NULL,
	updated_at       TIMESTAMP NOT NULL,
	PRIMARY KEY (entity_type, entity_id)
);

CREATE TABLE IF NOT EXISTS replication_events (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id    TEXT NOT NULL UNIQUE,
	event_type  TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id   TEXT NOT NULL,
	version     INTEGER NOT NULL,
	payload     BLOB NOT NULL,
	origin_node TEXT NOT NULL,
	created_at  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS replication_outbox (
	event_id TEXT NOT NULL REFERENCES replication_events(event_id),
	peer     TEXT NOT NULL,
	status   TEXT NOT NULL DEFAULT 'pending',
	acked_at TIMESTAMP,
	PRIMARY KEY (event_id, peer)
);

CREATE INDEX IF NOT EXISTS idx_outbox_pending ON replication_outbox(peer, status);

CREATE TABLE IF NOT EXISTS applied_events (
	event_id    TEXT PRIMARY KEY,
	entity_type TEXT NOT NULL,
	entity_id   TEXT NOT NULL,
	version     INTEGER NOT NULL,
	outcome     TEXT NOT NULL,
	applied_at  TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_applied_events_at ON applied_events(applied_at);

CREATE TABLE IF NOT EXISTS audit_log (
	id                 TEXT PRIMARY KEY,
	entity_type        TEXT NOT NULL,
	entity_id          TEXT NOT NULL,
	action             TEXT NOT NULL,
	username           TEXT,
	changes            BLOB,
	changes_compressed BLOB,
	compression_algo   TEXT NOT NULL DEFAULT 'none',
	created_at         TIMESTAMP NOT NULL
);
`
