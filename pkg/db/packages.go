package db

import (
	"database/sql"
	"time"

	"rookpkg/pkg/helper/errors"
	"rookpkg/pkg/pkgid"
)

// PackageRecord is the persistent Installed Package Record: identity,
// install timestamp, installed size, archive hash at install time, and the
// trust level the signature resolved to (downgraded to "unknown" when
// allow_untrusted let an unverified package through).
type PackageRecord struct {
	ID          int64
	Name        string
	Version     string
	Release     int
	InstallDate time.Time
	Size        int64
	ArchiveHash string
	TrustLevel  string
}

// Identity returns the parsed package identity this record names.
func (r PackageRecord) Identity() (pkgid.Identity, error) {
	v, err := pkgid.ParseVersion(r.Version)
	if err != nil {
		return pkgid.Identity{}, err
	}
	return pkgid.Identity{Name: r.Name, Version: v, Release: r.Release}, nil
}

// FileRecord is one row of the files relation: an absolute path owned by a
// package, with its mode, ownership, size, content hash, and whether it is
// a config file the upgrade/remove path must preserve.
type FileRecord struct {
	Path      string
	PackageID int64
	Mode      uint32
	Owner     string
	Group     string
	Size      int64
	Hash      string
	IsConfig  bool
}

// DependencyRecord is one row of the dependencies relation: a declared
// (name, constraint) pair belonging to a package.
type DependencyRecord struct {
	ID         int64
	PackageID  int64
	DependsOn  string
	Constraint string
	DepType    string
}

// querier is satisfied by both *sql.DB and *sql.Tx, letting every
// operation below run either standalone or as part of a larger atomic
// unit.
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// AddPackage inserts a package row and returns its generated id.
func (d *DB) AddPackage(r PackageRecord) (int64, error) { return addPackage(d.conn, r) }

// AddPackage inserts a package row within this transaction.
func (t *Tx) AddPackage(r PackageRecord) (int64, error) { return addPackage(t.tx, r) }

func addPackage(q querier, r PackageRecord) (int64, error) {
	trustLevel := r.TrustLevel
	if trustLevel == "" {
		trustLevel = "unknown"
	}
	res, err := q.Exec(
		`INSERT INTO packages (name, version, release, install_date, size, archive_hash, trust_level)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.Name, r.Version, r.Release, r.InstallDate.Unix(), r.Size, r.ArchiveHash, trustLevel,
	)
	if err != nil {
		return 0, errors.Wrap(errors.ErrDatabaseIntegrity, "inserting package %s: %v", r.Name, err)
	}
	return res.LastInsertId()
}

// AddFile inserts a file row. Callers must have already confirmed the path
// is unowned via FileOwner; the PRIMARY KEY constraint on path is the
// backstop, surfaced as a generic database-integrity error rather than the
// structured FileConflict the pre-check path returns.
func (d *DB) AddFile(f FileRecord) error { return addFile(d.conn, f) }

// AddFile inserts a file row within this transaction.
func (t *Tx) AddFile(f FileRecord) error { return addFile(t.tx, f) }

func addFile(q querier, f FileRecord) error {
	_, err := q.Exec(
		`INSERT INTO files (path, package_id, mode, owner, file_group, size, hash, is_config)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.Path, f.PackageID, f.Mode, f.Owner, f.Group, f.Size, f.Hash, boolToInt(f.IsConfig),
	)
	if err != nil {
		return errors.Wrap(errors.ErrDatabaseIntegrity, "inserting file %s: %v", f.Path, err)
	}
	return nil
}

// AddDependency inserts a dependency row.
func (d *DB) AddDependency(dep DependencyRecord) error { return addDependency(d.conn, dep) }

// AddDependency inserts a dependency row within this transaction.
func (t *Tx) AddDependency(dep DependencyRecord) error { return addDependency(t.tx, dep) }

func addDependency(q querier, dep DependencyRecord) error {
	_, err := q.Exec(
		`INSERT INTO dependencies (package_id, depends_on, dep_constraint, dep_type)
		 VALUES (?, ?, ?, ?)`,
		dep.PackageID, dep.DependsOn, dep.Constraint, dep.DepType,
	)
	if err != nil {
		return errors.Wrap(errors.ErrDatabaseIntegrity, "inserting dependency %s->%s: %v", dep.PackageID, dep.DependsOn, err)
	}
	return nil
}

// RemovePackage deletes a package row by name, cascading to its files and
// dependencies. Reports whether a row was actually deleted.
func (d *DB) RemovePackage(name string) (bool, error) { return removePackage(d.conn, name) }

// RemovePackage deletes a package row by name within this transaction.
func (t *Tx) RemovePackage(name string) (bool, error) { return removePackage(t.tx, name) }

func removePackage(q querier, name string) (bool, error) {
	res, err := q.Exec(`DELETE FROM packages WHERE name = ?`, name)
	if err != nil {
		return false, errors.Wrap(errors.ErrDatabaseIntegrity, "removing package %s: %v", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(errors.ErrDatabaseIntegrity, "checking removal of %s: %v", name, err)
	}
	return n > 0, nil
}

// GetPackage looks up an installed package by name. Returns nil, nil if
// absent.
func (d *DB) GetPackage(name string) (*PackageRecord, error) { return getPackage(d.conn, name) }

func getPackage(q querier, name string) (*PackageRecord, error) {
	row := q.QueryRow(
		`SELECT id, name, version, release, install_date, size, archive_hash, trust_level
		 FROM packages WHERE name = ?`, name,
	)
	r, err := scanPackage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabaseIntegrity, "loading package %s: %v", name, err)
	}
	return r, nil
}

func scanPackage(row *sql.Row) (*PackageRecord, error) {
	var r PackageRecord
	var installDate int64
	if err := row.Scan(&r.ID, &r.Name, &r.Version, &r.Release, &installDate, &r.Size, &r.ArchiveHash, &r.TrustLevel); err != nil {
		return nil, err
	}
	r.InstallDate = time.Unix(installDate, 0).UTC()
	return &r, nil
}

// ListPackages returns every installed package ordered by name.
func (d *DB) ListPackages() ([]PackageRecord, error) {
	rows, err := d.conn.Query(
		`SELECT id, name, version, release, install_date, size, archive_hash, trust_level
		 FROM packages ORDER BY name`,
	)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabaseIntegrity, "listing packages: %v", err)
	}
	defer rows.Close()

	var out []PackageRecord
	for rows.Next() {
		var r PackageRecord
		var installDate int64
		if err := rows.Scan(&r.ID, &r.Name, &r.Version, &r.Release, &installDate, &r.Size, &r.ArchiveHash, &r.TrustLevel); err != nil {
			return nil, errors.Wrap(errors.ErrDatabaseIntegrity, "scanning package row: %v", err)
		}
		r.InstallDate = time.Unix(installDate, 0).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetFiles returns every file owned by the named package, ordered by path.
func (d *DB) GetFiles(name string) ([]FileRecord, error) {
	rows, err := d.conn.Query(
		`SELECT f.path, f.package_id, f.mode, f.owner, f.file_group, f.size, f.hash, f.is_config
		 FROM files f JOIN packages p ON f.package_id = p.id
		 WHERE p.name = ? ORDER BY f.path`, name,
	)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabaseIntegrity, "loading files for %s: %v", name, err)
	}
	defer rows.Close()

	var out []FileRecord
	for rows.Next() {
		var f FileRecord
		var isConfig int
		if err := rows.Scan(&f.Path, &f.PackageID, &f.Mode, &f.Owner, &f.Group, &f.Size, &f.Hash, &isConfig); err != nil {
			return nil, errors.Wrap(errors.ErrDatabaseIntegrity, "scanning file row: %v", err)
		}
		f.IsConfig = isConfig != 0
		out = append(out, f)
	}
	return out, rows.Err()
}

// FileOwner returns the name of the package owning path, or "", false if
// the path is unowned. Enforces the invariant that every absolute path is
// owned by at most one installed package: callers use this as the
// pre-insertion conflict check.
func (d *DB) FileOwner(path string) (string, bool, error) { return fileOwner(d.conn, path) }

// FileOwner within this transaction.
func (t *Tx) FileOwner(path string) (string, bool, error) { return fileOwner(t.tx, path) }

func fileOwner(q querier, path string) (string, bool, error) {
	var name string
	err := q.QueryRow(
		`SELECT p.name FROM files f JOIN packages p ON f.package_id = p.id WHERE f.path = ?`, path,
	).Scan(&name)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(errors.ErrDatabaseIntegrity, "looking up owner of %s: %v", path, err)
	}
	return name, true, nil
}

// GetDependencies returns every dependency the named package declares.
func (d *DB) GetDependencies(name string) ([]DependencyRecord, error) {
	rows, err := d.conn.Query(
		`SELECT dep.id, dep.package_id, dep.depends_on, dep.dep_constraint, dep.dep_type
		 FROM dependencies dep JOIN packages p ON dep.package_id = p.id
		 WHERE p.name = ?`, name,
	)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabaseIntegrity, "loading dependencies of %s: %v", name, err)
	}
	defer rows.Close()
	return scanDependencies(rows)
}

// ReverseDependencies returns every installed package that declares a
// dependency on name, the "what depends on this" query remove/upgrade
// planning uses to warn about breakage.
func (d *DB) ReverseDependencies(name string) ([]DependencyRecord, error) {
	rows, err := d.conn.Query(
		`SELECT id, package_id, depends_on, dep_constraint, dep_type
		 FROM dependencies WHERE depends_on = ?`, name,
	)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabaseIntegrity, "loading reverse dependencies of %s: %v", name, err)
	}
	defer rows.Close()
	return scanDependencies(rows)
}

func scanDependencies(rows *sql.Rows) ([]DependencyRecord, error) {
	var out []DependencyRecord
	for rows.Next() {
		var d DependencyRecord
		if err := rows.Scan(&d.ID, &d.PackageID, &d.DependsOn, &d.Constraint, &d.DepType); err != nil {
			return nil, errors.Wrap(errors.ErrDatabaseIntegrity, "scanning dependency row: %v", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
