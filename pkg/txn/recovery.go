package txn

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"rookpkg/pkg/helper/errors"
)

// RecoveryAction describes what Recover did with one leftover transaction
// directory found on disk.
type RecoveryAction string

const (
	// ActionRolledBack means an InProgress transaction was found and its
	// journal was walked in reverse to undo it.
	ActionRolledBack RecoveryAction = "rolled_back"
	// ActionCleaned means a Pending, Completed, or RolledBack transaction
	// directory was found and removed without further action — its state
	// already reflects a safe, resolved outcome.
	ActionCleaned RecoveryAction = "cleaned"
	// ActionLeftFailed means a Failed transaction was found; these survive
	// for operator inspection rather than being silently discarded.
	ActionLeftFailed RecoveryAction = "left_failed"
)

// RecoveryResult reports the outcome for one transaction directory found
// during Recover.
type RecoveryResult struct {
	ID     string
	State  State
	Action RecoveryAction
	Err    error
}

// Recover scans the transactions directory for leftovers from a prior
// process that crashed or was killed mid-run, and resolves each one:
// InProgress transactions are rolled back exactly as a live failure
// would be; Pending, Completed, and RolledBack directories
// are leftover bookkeeping and are removed; Failed transactions are left
// untouched for manual inspection since rollback itself did not complete
// cleanly the first time. This acquires the same exclusive root lock as
// Execute, so it cannot run concurrently with a live transaction.
func (e *Engine) Recover(ctx context.Context) ([]RecoveryResult, error) {
	if err := e.lock.Acquire(ctx, e.lockTimeout); err != nil {
		return nil, err
	}
	defer e.lock.Release()

	root := e.transactionsRoot()
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrFilesystemIO, "reading transactions directory: %v", err)
	}

	var results []RecoveryResult
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		res := e.recoverOne(entry.Name(), dir)
		results = append(results, res)
	}
	return results, nil
}

func (e *Engine) recoverOne(id, dir string) RecoveryResult {
	state, err := readTransactionState(dir)
	if err != nil {
		return RecoveryResult{ID: id, Action: ActionLeftFailed, Err: err}
	}

	switch state {
	case StateInProgress:
		tx, err := e.reconstructTransaction(id, dir)
		if err != nil {
			return RecoveryResult{ID: id, State: state, Action: ActionLeftFailed, Err: err}
		}
		rollbackErrs := e.rollback(tx)
		if len(rollbackErrs) > 0 {
			_ = tx.setState(StateFailed)
			return RecoveryResult{ID: id, State: StateFailed, Action: ActionLeftFailed, Err: errors.NewTransactionFailed(id, errors.InvalidInputf("recovered after crash"), rollbackErrs)}
		}
		_ = tx.setState(StateRolledBack)
		if err := os.RemoveAll(dir); err != nil {
			return RecoveryResult{ID: id, State: StateRolledBack, Action: ActionRolledBack, Err: err}
		}
		return RecoveryResult{ID: id, State: StateRolledBack, Action: ActionRolledBack}

	case StateFailed:
		return RecoveryResult{ID: id, State: state, Action: ActionLeftFailed}

	default:
		if err := os.RemoveAll(dir); err != nil {
			return RecoveryResult{ID: id, State: state, Action: ActionCleaned, Err: err}
		}
		return RecoveryResult{ID: id, State: state, Action: ActionCleaned}
	}
}

func readTransactionState(dir string) (State, error) {
	data, err := os.ReadFile(filepath.Join(dir, "state"))
	if err != nil {
		return "", errors.Wrap(errors.ErrFilesystemIO, "reading transaction state: %v", err)
	}
	return State(data), nil
}

// reconstructTransaction rebuilds a Transaction sufficient to drive
// rollback from its on-disk journal and recorded operations, without
// re-running begin() (which would allocate a fresh directory and ID).
func (e *Engine) reconstructTransaction(id, dir string) (*Transaction, error) {
	opsData, err := os.ReadFile(filepath.Join(dir, "operations.json"))
	if err != nil {
		return nil, errors.Wrap(errors.ErrFilesystemIO, "reading recorded operations: %v", err)
	}
	var ops []Operation
	if err := json.Unmarshal(opsData, &ops); err != nil {
		return nil, errors.Wrap(errors.ErrFilesystemIO, "parsing recorded operations: %v", err)
	}

	j, err := OpenJournal(filepath.Join(dir, "journal.json"))
	if err != nil {
		return nil, err
	}

	return &Transaction{ID: id, Dir: dir, Ops: ops, journal: j, engine: e, State: StateInProgress}, nil
}
