package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *DB {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "db.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func TestAddAndGetPackage(t *testing.T) {
	d := openTest(t)

	id, err := d.AddPackage(PackageRecord{
		Name: "foo", Version: "1.0", Release: 1,
		InstallDate: time.Now(), Size: 1024, ArchiveHash: "sha256:abc", TrustLevel: "full",
	})
	require.NoError(t, err)
	assert.NotZero(t, id)

	rec, err := d.GetPackage("foo")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "foo", rec.Name)
	assert.Equal(t, "1.0", rec.Version)
	assert.Equal(t, 1, rec.Release)
	assert.Equal(t, "full", rec.TrustLevel)

	none, err := d.GetPackage("missing")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestListPackagesOrderedByName(t *testing.T) {
	d := openTest(t)
	for _, n := range []string{"zeta", "alpha", "mid"} {
		_, err := d.AddPackage(PackageRecord{Name: n, Version: "1.0", Release: 1, InstallDate: time.Now()})
		require.NoError(t, err)
	}
	list, err := d.ListPackages()
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, []string{list[0].Name, list[1].Name, list[2].Name})
}

func TestFileOwnershipInvariant(t *testing.T) {
	d := openTest(t)
	id, err := d.AddPackage(PackageRecord{Name: "foo", Version: "1.0", Release: 1, InstallDate: time.Now()})
	require.NoError(t, err)

	owner, owned, err := d.FileOwner("/usr/bin/x")
	require.NoError(t, err)
	assert.False(t, owned)
	assert.Empty(t, owner)

	require.NoError(t, d.AddFile(FileRecord{Path: "/usr/bin/x", PackageID: id, Mode: 0o755, Size: 10, Hash: "sha256:x"}))

	owner, owned, err = d.FileOwner("/usr/bin/x")
	require.NoError(t, err)
	assert.True(t, owned)
	assert.Equal(t, "foo", owner)

	// A second package cannot own the same path: the PRIMARY KEY backstop
	// fires if the caller didn't pre-check FileOwner.
	id2, err := d.AddPackage(PackageRecord{Name: "bar", Version: "1.0", Release: 1, InstallDate: time.Now()})
	require.NoError(t, err)
	err = d.AddFile(FileRecord{Path: "/usr/bin/x", PackageID: id2, Mode: 0o755, Size: 10, Hash: "sha256:x"})
	assert.Error(t, err)
}

func TestRemovePackageCascades(t *testing.T) {
	d := openTest(t)
	id, err := d.AddPackage(PackageRecord{Name: "foo", Version: "1.0", Release: 1, InstallDate: time.Now()})
	require.NoError(t, err)
	require.NoError(t, d.AddFile(FileRecord{Path: "/etc/foo.conf", PackageID: id, Mode: 0o644, Size: 5, Hash: "sha256:y", IsConfig: true}))
	require.NoError(t, d.AddDependency(DependencyRecord{PackageID: id, DependsOn: "libc", DepType: "runtime"}))

	removed, err := d.RemovePackage("foo")
	require.NoError(t, err)
	assert.True(t, removed)

	files, err := d.GetFiles("foo")
	require.NoError(t, err)
	assert.Empty(t, files)

	deps, err := d.GetDependencies("foo")
	require.NoError(t, err)
	assert.Empty(t, deps)

	_, owned, err := d.FileOwner("/etc/foo.conf")
	require.NoError(t, err)
	assert.False(t, owned)

	again, err := d.RemovePackage("foo")
	require.NoError(t, err)
	assert.False(t, again)
}

func TestReverseDependencies(t *testing.T) {
	d := openTest(t)
	appID, err := d.AddPackage(PackageRecord{Name: "app", Version: "1.0", Release: 1, InstallDate: time.Now()})
	require.NoError(t, err)
	_, err = d.AddPackage(PackageRecord{Name: "lib", Version: "2.1", Release: 1, InstallDate: time.Now()})
	require.NoError(t, err)
	require.NoError(t, d.AddDependency(DependencyRecord{PackageID: appID, DependsOn: "lib", Constraint: ">=2.0"}))

	rev, err := d.ReverseDependencies("lib")
	require.NoError(t, err)
	require.Len(t, rev, 1)
	assert.Equal(t, appID, rev[0].PackageID)
	assert.Equal(t, ">=2.0", rev[0].Constraint)

	fwd, err := d.GetDependencies("app")
	require.NoError(t, err)
	require.Len(t, fwd, 1)
	assert.Equal(t, "lib", fwd[0].DependsOn)
}

func TestTxAtomicUnit(t *testing.T) {
	d := openTest(t)

	tx, err := d.Begin()
	require.NoError(t, err)
	id, err := tx.AddPackage(PackageRecord{Name: "foo", Version: "1.0", Release: 1, InstallDate: time.Now()})
	require.NoError(t, err)
	require.NoError(t, tx.AddFile(FileRecord{Path: "/bin/foo", PackageID: id, Mode: 0o755, Size: 1, Hash: "sha256:z"}))
	require.NoError(t, tx.Rollback())

	// Neither the package nor its file survive a rolled-back transaction.
	rec, err := d.GetPackage("foo")
	require.NoError(t, err)
	assert.Nil(t, rec)
	_, owned, err := d.FileOwner("/bin/foo")
	require.NoError(t, err)
	assert.False(t, owned)
}
