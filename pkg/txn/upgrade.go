package txn

import (
	"rookpkg/pkg/archive"
)

// upgradeCore runs the Upgrade execution algorithm: decomposed as
// remove-then-install in place, but with a distinct hook schedule — the
// old package's pre_upgrade runs before removal, the new package's
// post_upgrade runs after install, and neither half's own install/remove
// hooks fire.
func (e *Engine) upgradeCore(tx *Transaction, name string, newArc *archive.Archive, archivePath, trustLevel string) error {
	oldScript, err := loadPersistedHook(e.root, name, archive.HookPreUpgrade)
	if err != nil {
		return err
	}
	if err := runHook(e.root, name, archive.HookPreUpgrade, oldScript, e.logger); err != nil {
		return err
	}

	priorHashes, err := e.removeCore(tx, name, false)
	if err != nil {
		return err
	}

	if err := e.installCore(tx, newArc, archivePath, trustLevel, false, priorHashes); err != nil {
		return err
	}

	return runHook(e.root, newArc.Info.Name, archive.HookPostUpgrade, newArc.Scripts[archive.HookPostUpgrade], e.logger)
}
