package trust

import (
	"os"
	"path/filepath"
	"strings"

	"rookpkg/pkg/helper/errors"
)

// LoadStore populates a fresh Store by reading every "*.pub" key file under
// masterDir and packagerDir. Master keys are the root of trust and load at
// LevelUltimate; packager keys load at LevelFull (locally trusted) unless
// the caller later adds a certification that narrows or confirms their
// standing — ultimate/full locally, or certified by a master key.
// External tooling may edit these directories at any time; callers
// needing a fresh view call LoadStore again rather than mutating a
// cached Store.
func LoadStore(masterDir, packagerDir string) (*Store, error) {
	store := NewStore()

	masters, err := loadKeyDir(masterDir, LevelUltimate)
	if err != nil {
		return nil, err
	}
	for _, k := range masters {
		store.AddMaster(k)
	}

	packagers, err := loadKeyDir(packagerDir, LevelFull)
	if err != nil {
		return nil, err
	}
	for _, k := range packagers {
		store.AddPackager(k)
	}

	return store, nil
}

func loadKeyDir(dir string, level Level) ([]*TrustedKey, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrFilesystemIO, "reading key directory %s: %v", dir, err)
	}

	var keys []*TrustedKey
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".pub") {
			continue
		}
		kf, err := LoadPublicKeyFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, errors.Wrapf(err, "loading key file %s", e.Name())
		}
		tk, err := kf.AsTrustedKey(level)
		if err != nil {
			return nil, errors.Wrapf(err, "key file %s", e.Name())
		}
		keys = append(keys, tk)
	}
	return keys, nil
}
