// Package db is the durable, single-writer record of installed packages:
// which packages are installed, which files each one owns, and what each
// one declares as a dependency. Indexed for fast reverse-dependency
// lookup.
package db

import (
	"database/sql"

	_ "modernc.org/sqlite"

	"rookpkg/pkg/helper/errors"
)

// DB wraps the package database's single *sql.DB handle. SQLite itself
// enforces single-writer semantics; the transaction engine additionally
// holds the advisory root lock (pkg/txn) for the filesystem side of the
// same invariant.
type DB struct {
	conn *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS packages (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	name         TEXT NOT NULL UNIQUE,
	version      TEXT NOT NULL,
	release      INTEGER NOT NULL,
	install_date INTEGER NOT NULL,
	size         INTEGER NOT NULL,
	archive_hash TEXT NOT NULL,
	trust_level  TEXT NOT NULL DEFAULT 'unknown'
);

CREATE TABLE IF NOT EXISTS files (
	path         TEXT PRIMARY KEY,
	package_id   INTEGER NOT NULL REFERENCES packages(id) ON DELETE CASCADE,
	mode         INTEGER NOT NULL,
	owner        TEXT NOT NULL DEFAULT '',
	file_group   TEXT NOT NULL DEFAULT '',
	size         INTEGER NOT NULL,
	hash         TEXT NOT NULL,
	is_config    INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_files_package_fk ON files(package_id);

CREATE TABLE IF NOT EXISTS dependencies (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	package_id     INTEGER NOT NULL REFERENCES packages(id) ON DELETE CASCADE,
	depends_on     TEXT NOT NULL,
	dep_constraint TEXT NOT NULL DEFAULT '',
	dep_type       TEXT NOT NULL DEFAULT 'runtime'
);

CREATE INDEX IF NOT EXISTS idx_dependencies_depends_on ON dependencies(depends_on);
CREATE INDEX IF NOT EXISTS idx_dependencies_package_fk ON dependencies(package_id);
`

// Open opens (creating if necessary) the database file at path, enables
// foreign-key cascade enforcement, and runs the schema migration.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabaseIntegrity, "opening %s: %v", path, err)
	}
	conn.SetMaxOpenConns(1) // single-writer, enforced in-process too

	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		conn.Close()
		return nil, errors.Wrap(errors.ErrDatabaseIntegrity, "enabling foreign keys: %v", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, errors.Wrap(errors.ErrDatabaseIntegrity, "applying schema: %v", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// Tx is a single atomic unit of database work. The transaction engine uses
// one Tx per Install/Remove/Upgrade operation so the package row and its
// files/dependency rows commit or roll back together as one unit.
type Tx struct {
	tx *sql.Tx
}

// Begin starts a new database transaction.
func (d *DB) Begin() (*Tx, error) {
	tx, err := d.conn.Begin()
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabaseIntegrity, "beginning transaction: %v", err)
	}
	return &Tx{tx: tx}, nil
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrDatabaseIntegrity, "committing transaction: %v", err)
	}
	return nil
}

// Rollback aborts the transaction. Calling it after a successful Commit is
// a no-op (sql.Tx.Rollback returns sql.ErrTxDone, which is swallowed).
func (t *Tx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return errors.Wrap(errors.ErrDatabaseIntegrity, "rolling back transaction: %v", err)
	}
	return nil
}
