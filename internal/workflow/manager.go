package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"nightscribe/internal/artifacts"
	"nightscribe/internal/config"
	"nightscribe/internal/logging"
	"nightscribe/internal/queue"
	"nightscribe/internal/services"
)

// Handler executes one attempt of a job and returns the artifact map on
// success. The job's output directory and settings snapshot are already
// populated when Process is called.
type Handler interface {
	Process(ctx context.Context, job *queue.Job) (map[string]string, error)
}

// Manager owns the runner goroutine and the retry policy around it.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	logger       *slog.Logger
	handler      Handler
	pollInterval time.Duration
	errorRetry   time.Duration

	wake chan struct{}

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager constructs a workflow manager around the given handler.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger, handler Handler) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logging.NewComponentLogger(logger, "workflow"),
		handler:      handler,
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		errorRetry:   time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		wake:         make(chan struct{}, 1),
	}
}

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("workflow already running")
	}
	if m.handler == nil {
		return errors.New("workflow handler not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	go m.runLoop(runCtx)
	return nil
}

// Stop terminates background processing and waits for the in-flight job's
// goroutine to unwind.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// Wake nudges the runner to check the queue immediately instead of waiting
// out the poll interval. Safe to call from any goroutine; a pending nudge is
// never stacked.
func (m *Manager) Wake() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Manager) runLoop(ctx context.Context) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if m.store.StopAfterCurrent() {
			m.waitForWork(ctx)
			continue
		}

		job, err := m.store.NextPending(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.logger.Error("failed to fetch next job",
				logging.Error(err),
				logging.String(logging.FieldEventType, "queue_fetch_failed"))
			m.sleep(ctx, m.errorRetry)
			continue
		}
		if job == nil {
			m.waitForWork(ctx)
			continue
		}

		if err := m.runJob(ctx, job); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			if errors.Is(err, services.ErrPersistence) {
				m.logger.Error("queue state unwritable, halting processing",
					logging.Error(err),
					logging.String(logging.FieldEventType, "queue_halted"),
					logging.String(logging.FieldErrorHint, "check disk space and data_dir permissions"))
				return
			}
			m.sleep(ctx, m.errorRetry)
		}
	}
}

// runJob executes one attempt. The read-modify-write against the store is the
// critical section; pipeline execution happens with no lock held.
func (m *Manager) runJob(ctx context.Context, job *queue.Job) error {
	jobCtx := services.WithJobID(ctx, job.ID)
	jobCtx = services.WithRequestID(jobCtx, uuid.NewString())
	logger := logging.WithContext(jobCtx, m.logger)

	job.MarkRunning(time.Now())
	if err := m.store.Update(jobCtx, job); err != nil {
		return err
	}
	logger.Info("job started",
		logging.String("source", job.SourcePath),
		logging.Int("attempt", job.Attempts),
		logging.String(logging.FieldEventType, "job_started"))

	artifactPaths, procErr := m.handler.Process(jobCtx, job)
	if procErr != nil {
		if ctx.Err() != nil {
			// Shutdown mid-run: leave the job marked running so restart
			// reconciliation decides its fate.
			return context.Canceled
		}
		return m.recordFailure(jobCtx, logger, job, procErr)
	}

	job.MarkDone(time.Now(), artifactPaths)
	m.writeMeta(logger, job)
	if err := m.store.Update(jobCtx, job); err != nil {
		return err
	}
	logger.Info("job completed",
		logging.Int("attempts", job.Attempts),
		logging.String("output_dir", job.OutputDir),
		logging.String(logging.FieldEventType, "job_completed"))
	return nil
}

func (m *Manager) recordFailure(ctx context.Context, logger *slog.Logger, job *queue.Job, procErr error) error {
	if job.RetryBudgetExhausted() {
		job.MarkFailed(time.Now(), procErr.Error())
		m.writeMeta(logger, job)
		if err := m.store.Update(ctx, job); err != nil {
			return err
		}
		logger.Error("job failed permanently",
			logging.Error(procErr),
			logging.Int("attempts", job.Attempts),
			logging.String(logging.FieldErrorKind, services.Kind(procErr)),
			logging.String(logging.FieldEventType, "job_failed"))
		return nil
	}

	job.MarkRetry(procErr.Error())
	if err := m.store.Update(ctx, job); err != nil {
		return err
	}
	logger.Warn("job attempt failed, retrying in place",
		logging.Error(procErr),
		logging.Int("attempt", job.Attempts),
		logging.String(logging.FieldErrorKind, services.Kind(procErr)),
		logging.String(logging.FieldEventType, "job_retrying"))
	return nil
}

// writeMeta records the run summary next to the artifacts. A meta write
// failure never changes the job's outcome.
func (m *Manager) writeMeta(logger *slog.Logger, job *queue.Job) {
	path, err := artifacts.WriteMeta(job)
	if err != nil {
		logger.Warn("meta write failed",
			logging.Error(err),
			logging.String("output_dir", job.OutputDir))
		return
	}
	if job.Artifacts == nil {
		job.Artifacts = map[string]string{}
	}
	job.Artifacts["meta"] = path
}

func (m *Manager) waitForWork(ctx context.Context) {
	timer := time.NewTimer(m.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	case <-m.wake:
	}
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
