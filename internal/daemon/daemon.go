package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"nightscribe/internal/config"
	"nightscribe/internal/logging"
	"nightscribe/internal/preflight"
	"nightscribe/internal/queue"
	"nightscribe/internal/watchfolder"
	"nightscribe/internal/workflow"
)

// Daemon coordinates the background services and enforces single-instance
// execution over the shared state file.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	workflow *workflow.Manager
	scanner  *watchfolder.Scanner

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status carries daemon runtime information for the CLI.
type Status struct {
	Running       bool
	Queue         queue.Summary
	StateFilePath string
	LockFilePath  string
	WatchFolder   string
	SocketPath    string
}

// New constructs a daemon. The scanner may be nil when no watch folder is
// configured.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, wf *workflow.Manager, scanner *watchfolder.Scanner) (*Daemon, error) {
	if cfg == nil || store == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockFile()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		workflow: wf,
		scanner:  scanner,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock, reconciles jobs interrupted by the last
// shutdown, and launches the runner and scanner.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another nightscribe daemon instance is already running")
	}

	reconciled, err := d.store.ReconcileInterrupted(ctx)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("reconcile interrupted jobs: %w", err)
	}
	if reconciled > 0 {
		d.logger.Info("reconciled jobs interrupted by previous shutdown",
			logging.Int("count", reconciled),
			logging.String(logging.FieldEventType, "jobs_reconciled"))
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		d.cancel = nil
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	if d.scanner != nil {
		if err := d.scanner.Start(runCtx); err != nil {
			d.workflow.Stop()
			cancel()
			d.cancel = nil
			_ = d.lock.Unlock()
			return fmt.Errorf("start watch folder scanner: %w", err)
		}
	}

	d.running.Store(true)
	d.logger.Info("nightscribe daemon started",
		logging.String("lock", d.lockPath),
		logging.String("state_file", d.cfg.StateFile()))
	return nil
}

// Stop halts background processing, waiting for the in-flight attempt's
// goroutines to unwind, and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.scanner != nil {
		d.scanner.Stop()
	}
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("nightscribe daemon stopped")
}

// EnqueuePath validates a candidate and admits it into the queue. This is the
// single enqueue policy shared by the CLI add command and the scanner.
func (d *Daemon) EnqueuePath(ctx context.Context, path string) (*queue.Job, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, errors.New("source path is required")
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("resolve source path: %w", err)
	}

	snap := queue.SnapshotFromConfig(d.cfg)
	if err := preflight.ValidateCandidate(abs, snap); err != nil {
		return nil, err
	}

	job, err := d.store.NewJob(ctx, abs, snap)
	if err != nil {
		return nil, err
	}
	d.logger.Info("job enqueued",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("source", abs),
		logging.String(logging.FieldEventType, "job_enqueued"))
	d.workflow.Wake()
	return job, nil
}

// ListQueue returns jobs filtered by optional statuses, in creation order.
func (d *Daemon) ListQueue(ctx context.Context, statuses ...queue.Status) ([]*queue.Job, error) {
	return d.store.List(ctx, statuses...)
}

// GetJob returns a single job by ID.
func (d *Daemon) GetJob(ctx context.Context, id string) (*queue.Job, error) {
	return d.store.GetByID(ctx, id)
}

// RequestStopAfterCurrent sets the persisted stop flag. The in-flight job
// finishes normally; no further jobs are claimed until Resume.
func (d *Daemon) RequestStopAfterCurrent(ctx context.Context) error {
	if err := d.store.SetStopAfterCurrent(ctx, true); err != nil {
		return err
	}
	d.logger.Info("stop requested, finishing current job",
		logging.String(logging.FieldEventType, "stop_after_current"))
	return nil
}

// Resume clears the stop flag and wakes the runner.
func (d *Daemon) Resume(ctx context.Context) error {
	if err := d.store.SetStopAfterCurrent(ctx, false); err != nil {
		return err
	}
	d.workflow.Wake()
	d.logger.Info("queue processing resumed",
		logging.String(logging.FieldEventType, "queue_resumed"))
	return nil
}

// ClearPending removes all pending jobs, leaving the in-flight job and
// history untouched. Returns how many jobs were removed.
func (d *Daemon) ClearPending(ctx context.Context) (int, error) {
	removed, err := d.store.ClearPending(ctx)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		d.logger.Info("pending jobs cleared", logging.Int("count", removed))
	}
	return removed, nil
}

// ScanWatchFolder triggers one manual sweep, returning the number of files
// admitted.
func (d *Daemon) ScanWatchFolder(ctx context.Context) (int, error) {
	if d.scanner == nil {
		return 0, errors.New("no watch folder configured")
	}
	return d.scanner.Scan(ctx)
}

// Status reports the daemon's runtime state and queue counts.
func (d *Daemon) Status(ctx context.Context) (Status, error) {
	summary, err := d.store.Summary(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Running:       d.running.Load(),
		Queue:         summary,
		StateFilePath: d.cfg.StateFile(),
		LockFilePath:  d.lockPath,
		WatchFolder:   d.cfg.Paths.WatchFolder,
		SocketPath:    d.cfg.SocketPath(),
	}, nil
}
