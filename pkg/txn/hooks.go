package txn

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"rookpkg/pkg/archive"
	"rookpkg/pkg/helper/errors"
	"rookpkg/pkg/helper/log"
)

// scriptsDir returns <root>/var/lib/rookpkg/scripts/<name>, the persisted
// home for a package's lifecycle scripts across remove/upgrade.
func scriptsDir(root, name string) string {
	return filepath.Join(root, "var/lib/rookpkg/scripts", name)
}

// persistScripts writes every hook an archive carries into its persisted
// scripts directory, for later remove/upgrade invocations to find.
func persistScripts(root, name string, scripts map[archive.Hook][]byte) error {
	dir := scriptsDir(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(errors.ErrFilesystemIO, "creating scripts dir for %s: %v", name, err)
	}
	for hook, data := range scripts {
		path := filepath.Join(dir, string(hook))
		if err := os.WriteFile(path, data, 0o755); err != nil {
			return errors.Wrap(errors.ErrFilesystemIO, "persisting %s hook for %s: %v", hook, name, err)
		}
	}
	return nil
}

// removePersistedScripts deletes a package's persisted scripts directory.
func removePersistedScripts(root, name string) error {
	if err := os.RemoveAll(scriptsDir(root, name)); err != nil {
		return errors.Wrap(errors.ErrFilesystemIO, "removing persisted scripts for %s: %v", name, err)
	}
	return nil
}

// loadPersistedHook reads one previously-persisted hook script for name, if
// present. A missing hook is not an error; runHook treats nil bytes as a
// no-op.
func loadPersistedHook(root, name string, hook archive.Hook) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(scriptsDir(root, name), string(hook)))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrFilesystemIO, "reading persisted %s hook for %s: %v", hook, name, err)
	}
	return data, nil
}

// runHook executes one lifecycle hook script, if present, with working
// directory at root and its three standard environment variables set.
// A nil script is a silent no-op. Scripts run under `sh -e` to enforce
// set -e semantics regardless of the script's own shebang (or lack of
// one).
func runHook(root, pkgName string, hook archive.Hook, script []byte, logger log.Logger) error {
	if len(script) == 0 {
		return nil
	}

	tmp, err := os.CreateTemp("", "rookpkg-hook-*")
	if err != nil {
		return errors.Wrap(errors.ErrFilesystemIO, "staging %s hook: %v", hook, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(script); err != nil {
		tmp.Close()
		return errors.Wrap(errors.ErrFilesystemIO, "writing %s hook: %v", hook, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(errors.ErrFilesystemIO, "closing %s hook: %v", hook, err)
	}

	cmd := exec.Command("/bin/sh", "-e", tmp.Name())
	cmd.Dir = root
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("ROOKPKG_ROOT=%s", root),
		fmt.Sprintf("ROOKPKG_PACKAGE=%s", pkgName),
		fmt.Sprintf("ROOKPKG_SCRIPT=%s", hook),
	)
	out, err := cmd.CombinedOutput()
	if logger != nil {
		logger.WithFields(map[string]interface{}{
			"package": pkgName, "hook": hook, "output": string(out),
		}).Debug("lifecycle hook ran")
	}
	if err != nil {
		return errors.Wrap(errors.ErrFilesystemIO, "%s hook for %s exited nonzero: %v: %s", hook, pkgName, err, out)
	}
	return nil
}
