package txn

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"rookpkg/pkg/archive"
	"rookpkg/pkg/db"
	"rookpkg/pkg/helper/errors"
	"rookpkg/pkg/helper/log"
	"rookpkg/pkg/metrics"
)

// protectedDirs is the hard-coded set of directories Remove's empty-parent
// cleanup must never delete, resolved relative to the transaction root.
var protectedDirs = map[string]bool{
	"/": true, "/bin": true, "/etc": true, "/lib": true, "/lib64": true,
	"/opt": true, "/root": true, "/sbin": true, "/usr": true,
	"/usr/bin": true, "/usr/lib": true, "/usr/lib64": true, "/usr/sbin": true,
	"/usr/share": true, "/usr/include": true, "/var": true, "/var/lib": true,
	"/var/log": true,
}

// newTransactionID returns a monotone, timestamp-derived ID: a UTC
// timestamp with sub-second (nanosecond) precision, so transaction
// directories sort and recover in chronological order, with a short UUID
// suffix appended only to break ties between IDs minted in the same
// nanosecond tick.
func newTransactionID() string {
	return time.Now().UTC().Format("20060102150405.000000000") + "-" + uuid.New().String()[:8]
}

// Engine executes ordered Install/Remove/Upgrade sequences atomically
// against a (root filesystem, package database) pair, journaling every
// reversible step so a failed operation can be rolled back.
type Engine struct {
	root        string
	db          *db.DB
	logger      log.Logger
	lock        *Lock
	lockTimeout time.Duration
	metrics     *metrics.Collector
}

// SetMetrics attaches a Prometheus collector the engine reports
// transaction counts, durations, and rollback outcomes to. Safe to call
// with nil to detach (equivalent to never calling it).
func (e *Engine) SetMetrics(c *metrics.Collector) { e.metrics = c }

// New constructs an Engine over root and database, using lockTimeout as
// the default wait for the advisory transaction lock.
func New(root string, database *db.DB, logger log.Logger, lockTimeout time.Duration) *Engine {
	if logger == nil {
		logger = log.NewBasicLogger(log.InfoLevel)
	}
	if lockTimeout <= 0 {
		lockTimeout = 30 * time.Second
	}
	return &Engine{
		root:        root,
		db:          database,
		logger:      logger,
		lock:        NewLock(root),
		lockTimeout: lockTimeout,
	}
}

func (e *Engine) transactionsRoot() string {
	return filepath.Join(e.root, "var/lib/rookpkg/transactions")
}

// Transaction is one in-flight or completed unit of atomic work.
type Transaction struct {
	ID      string
	Dir     string
	State   State
	Ops     []Operation
	journal *Journal
	engine  *Engine
}

func (t *Transaction) stagingDir(pkg string) string { return filepath.Join(t.Dir, "staging", pkg) }
func (t *Transaction) backupDir(pkg string) string  { return filepath.Join(t.Dir, "backups", pkg) }
func (t *Transaction) statePath() string            { return filepath.Join(t.Dir, "state") }
func (t *Transaction) opsPath() string               { return filepath.Join(t.Dir, "operations.json") }

func (t *Transaction) setState(s State) error {
	t.State = s
	if err := os.WriteFile(t.statePath(), []byte(s), 0o644); err != nil {
		return errors.Wrap(errors.ErrFilesystemIO, "persisting transaction state: %v", err)
	}
	return nil
}

// Execute runs ops as a single atomic transaction: it acquires the
// exclusive root lock, stages a transaction directory, runs each operation
// in order, and either commits (all operations succeeded) or rolls back
// (journaling every reversed step) on the first failure.
func (e *Engine) Execute(ctx context.Context, ops []Operation) (*Transaction, error) {
	if err := e.lock.Acquire(ctx, e.lockTimeout); err != nil {
		return nil, err
	}
	defer e.lock.Release()

	start := time.Now()
	tx, err := e.begin(ops)
	if err != nil {
		return nil, err
	}

	if err := tx.setState(StateInProgress); err != nil {
		return tx, err
	}

	for _, op := range ops {
		if opErr := e.runOperation(tx, op); opErr != nil {
			err := e.fail(tx, opErr)
			e.observe(tx, start)
			return tx, err
		}
	}

	err = e.commit(tx)
	e.observe(tx, start)
	return tx, err
}

// observe records the transaction's final state and wall-clock duration,
// a no-op when no collector is attached.
func (e *Engine) observe(tx *Transaction, start time.Time) {
	if e.metrics == nil {
		return
	}
	state := string(tx.State)
	e.metrics.TransactionsTotal.WithLabelValues(state).Inc()
	e.metrics.TransactionDuration.WithLabelValues(state).Observe(time.Since(start).Seconds())
	switch tx.State {
	case StateRolledBack:
		e.metrics.RollbackTotal.WithLabelValues("rolled_back").Inc()
	case StateFailed:
		e.metrics.RollbackTotal.WithLabelValues("failed").Inc()
	}
}

func (e *Engine) begin(ops []Operation) (*Transaction, error) {
	id := newTransactionID()
	dir := filepath.Join(e.transactionsRoot(), id)
	for _, sub := range []string{"", "staging", "backups"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, errors.Wrap(errors.ErrFilesystemIO, "creating transaction directory: %v", err)
		}
	}

	tx := &Transaction{ID: id, Dir: dir, Ops: ops, engine: e}
	if err := tx.setState(StatePending); err != nil {
		return nil, err
	}

	opsData, err := json.MarshalIndent(ops, "", "  ")
	if err != nil {
		return nil, errors.Wrap(errors.ErrFilesystemIO, "serializing operations: %v", err)
	}
	if err := os.WriteFile(tx.opsPath(), opsData, 0o644); err != nil {
		return nil, errors.Wrap(errors.ErrFilesystemIO, "writing operations: %v", err)
	}

	j, err := OpenJournal(filepath.Join(dir, "journal.json"))
	if err != nil {
		return nil, err
	}
	tx.journal = j

	return tx, nil
}

func (e *Engine) runOperation(tx *Transaction, op Operation) error {
	switch op.Kind {
	case KindInstall:
		arc, f, err := openArchiveFile(op.ArchivePath)
		if err != nil {
			return err
		}
		defer f.Close()
		trustLevel := op.TrustLevel
		if trustLevel == "" {
			trustLevel = "unknown"
		}
		return e.installCore(tx, arc, op.ArchivePath, trustLevel, true, nil)
	case KindRemove:
		return e.removeOperation(tx, op.PackageName, true)
	case KindUpgrade:
		arc, f, err := openArchiveFile(op.ArchivePath)
		if err != nil {
			return err
		}
		defer f.Close()
		trustLevel := op.TrustLevel
		if trustLevel == "" {
			trustLevel = "unknown"
		}
		return e.upgradeCore(tx, op.PackageName, arc, op.ArchivePath, trustLevel)
	default:
		return errors.InvalidInputf("unknown operation kind %q", op.Kind)
	}
}

func openArchiveFile(path string) (*archive.Archive, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrFilesystemIO, "opening archive %s: %v", path, err)
	}
	arc, err := archive.Open(f)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return arc, f, nil
}

// commit marks the transaction Completed and removes its scratch
// directory. Removal failure is logged but does not change the outcome:
// the Completed state on disk (briefly, before deletion) and the database
// commit are the source of truth.
func (e *Engine) commit(tx *Transaction) error {
	if err := tx.setState(StateCompleted); err != nil {
		return err
	}
	if err := os.RemoveAll(tx.Dir); err != nil {
		e.logger.WithError(err).WithFields(map[string]interface{}{"transaction": tx.ID}).Warn("failed to remove completed transaction directory")
	}
	return nil
}

// fail runs rollback after an operation error and returns the error the
// caller should surface: TransactionRolledBack on a clean rollback,
// TransactionFailed (and state StateFailed) if rollback itself could not
// fully undo its steps.
func (e *Engine) fail(tx *Transaction, cause error) error {
	rollbackErrs := e.rollback(tx)
	if len(rollbackErrs) > 0 {
		_ = tx.setState(StateFailed)
		return errors.NewTransactionFailed(tx.ID, cause, rollbackErrs)
	}
	_ = tx.setState(StateRolledBack)
	if err := os.RemoveAll(tx.Dir); err != nil {
		e.logger.WithError(err).WithFields(map[string]interface{}{"transaction": tx.ID}).Warn("failed to remove rolled-back transaction directory")
	}
	return errors.NewTransactionRolledBack(tx.ID, cause)
}
