package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"nightscribe/internal/config"
	"nightscribe/internal/logging"
	"nightscribe/internal/services"
)

// ErrDuplicatePath reports an enqueue attempt for a path that already has a
// pending or running job.
var ErrDuplicatePath = errors.New("a job for this path is already pending or running")

// ErrNotFound reports a lookup for an unknown job ID.
var ErrNotFound = errors.New("job not found")

// Store manages the ordered job list and its persisted JSON mirror.
type Store struct {
	mu         sync.Mutex
	path       string
	outputRoot string
	logger     *slog.Logger

	jobs             []*Job
	stopAfterCurrent bool
}

// snapshot is the on-disk shape. Unknown fields in persisted records are
// ignored on load so newer snapshots stay readable.
type snapshot struct {
	Jobs             []*Job    `json:"jobs"`
	StopAfterCurrent bool      `json:"stop_after_current"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Open loads the persisted queue state, degrading to an empty queue when the
// snapshot file is missing or unreadable.
func Open(cfg *config.Config, logger *slog.Logger) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	store := &Store{
		path:       cfg.StateFile(),
		outputRoot: cfg.Paths.OutputDir,
		logger:     logging.NewComponentLogger(logger, "queue-store"),
	}
	store.load()
	return store, nil
}

// Path returns the snapshot file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("queue state unreadable, starting empty", logging.Error(err))
		}
		return
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.logger.Warn("queue state corrupt, starting empty",
			logging.Error(err),
			logging.String(logging.FieldEventType, "queue_state_corrupt"),
			logging.String(logging.FieldErrorHint, "the snapshot will be rewritten on the next mutation"))
		return
	}
	jobs := make([]*Job, 0, len(snap.Jobs))
	for _, job := range snap.Jobs {
		if job == nil || job.ID == "" {
			continue
		}
		jobs = append(jobs, job)
	}
	sort.SliceStable(jobs, func(i, k int) bool {
		return jobs[i].CreatedAt.Before(jobs[k].CreatedAt)
	})
	s.jobs = jobs
	s.stopAfterCurrent = snap.StopAfterCurrent
}

// saveLocked writes the full snapshot atomically: marshal to a temp file in
// the same directory, then rename over the previous snapshot.
func (s *Store) saveLocked() error {
	snap := snapshot{
		Jobs:             s.jobs,
		StopAfterCurrent: s.stopAfterCurrent,
		UpdatedAt:        time.Now().UTC(),
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrPersistence, "queue-store", "save", "marshal snapshot", err)
	}
	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return services.Wrap(services.ErrPersistence, "queue-store", "save", "ensure state directory", err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return services.Wrap(services.ErrPersistence, "queue-store", "save", "write temp snapshot", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return services.Wrap(services.ErrPersistence, "queue-store", "save", "replace snapshot", err)
	}
	return nil
}

func newJobID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}

// NewJob validates nothing: callers run preflight first. It assigns the ID,
// captures the fingerprint, reserves the output directory, appends the job in
// creation order, and persists.
func (s *Store) NewJob(ctx context.Context, sourcePath string, snap ConfigSnapshot) (*Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("resolve source path: %w", err)
	}
	fingerprint, err := Fingerprint(abs)
	if err != nil {
		return nil, fmt.Errorf("fingerprint source: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.jobs {
		if existing.IsActive() && existing.SourcePath == abs {
			return nil, ErrDuplicatePath
		}
	}

	id := newJobID()
	outputDir, err := allocateOutputDir(s.outputRoot, abs, id)
	if err != nil {
		return nil, fmt.Errorf("allocate output dir: %w", err)
	}

	job := &Job{
		ID:           id,
		SourcePath:   abs,
		DisplayTitle: DeriveTitle(abs),
		Fingerprint:  fingerprint,
		Status:       StatusPending,
		CreatedAt:    time.Now().UTC(),
		OutputDir:    outputDir,
		LogPath:      filepath.Join(outputDir, "job.log"),
		Config:       snap,
	}

	s.jobs = append(s.jobs, job)
	if err := s.saveLocked(); err != nil {
		s.jobs = s.jobs[:len(s.jobs)-1]
		_ = os.Remove(outputDir)
		return nil, err
	}
	return job.Clone(), nil
}

// List returns copies of jobs in creation order, optionally filtered by status.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	filter := make(map[Status]struct{}, len(statuses))
	for _, status := range statuses {
		filter[status] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if len(filter) > 0 {
			if _, ok := filter[job.Status]; !ok {
				continue
			}
		}
		out = append(out, job.Clone())
	}
	return out, nil
}

// GetByID returns a copy of the job with the given ID.
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs {
		if job.ID == id {
			return job.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

// NextPending returns the oldest pending job by creation time, or nil when
// the queue has no pending work. Retried jobs keep their original creation
// time and therefore their original position.
func (s *Store) NextPending(ctx context.Context) (*Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var oldest *Job
	for _, job := range s.jobs {
		if job.Status != StatusPending {
			continue
		}
		if oldest == nil || job.CreatedAt.Before(oldest.CreatedAt) {
			oldest = job
		}
	}
	return oldest.Clone(), nil
}

// Update writes a mutated job back and persists the snapshot. The mutation is
// durable once Update returns.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if job == nil || job.ID == "" {
		return errors.New("job with ID required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.jobs {
		if existing.ID != job.ID {
			continue
		}
		previous := s.jobs[i]
		s.jobs[i] = job.Clone()
		if err := s.saveLocked(); err != nil {
			s.jobs[i] = previous
			return err
		}
		return nil
	}
	return ErrNotFound
}

// ClearPending removes all pending jobs and persists. Running and finished
// jobs are untouched.
func (s *Store) ClearPending(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]*Job, 0, len(s.jobs))
	removed := 0
	for _, job := range s.jobs {
		if job.Status == StatusPending {
			removed++
			continue
		}
		kept = append(kept, job)
	}
	if removed == 0 {
		return 0, nil
	}
	previous := s.jobs
	s.jobs = kept
	if err := s.saveLocked(); err != nil {
		s.jobs = previous
		return 0, err
	}
	return removed, nil
}

// HasFingerprint reports whether any job, regardless of status, was created
// from the same file content.
func (s *Store) HasFingerprint(ctx context.Context, fingerprint string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs {
		if job.Fingerprint == fingerprint {
			return true, nil
		}
	}
	return false, nil
}

// HasActivePath reports whether a pending or running job occupies the path.
func (s *Store) HasActivePath(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("resolve path: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs {
		if job.IsActive() && job.SourcePath == abs {
			return true, nil
		}
	}
	return false, nil
}

// Summary returns aggregate counts per status.
func (s *Store) Summary(ctx context.Context) (Summary, error) {
	if err := ctx.Err(); err != nil {
		return Summary{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	summary := Summary{Total: len(s.jobs), StopAfterCurrent: s.stopAfterCurrent}
	for _, job := range s.jobs {
		switch job.Status {
		case StatusPending:
			summary.Pending++
		case StatusRunning:
			summary.Running++
		case StatusDone:
			summary.Done++
		case StatusFailed:
			summary.Failed++
		case StatusSkipped:
			summary.Skipped++
		}
	}
	return summary, nil
}

// SetStopAfterCurrent persists the operator stop flag. The flag survives
// restarts as part of the snapshot.
func (s *Store) SetStopAfterCurrent(ctx context.Context, value bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopAfterCurrent == value {
		return nil
	}
	s.stopAfterCurrent = value
	if err := s.saveLocked(); err != nil {
		s.stopAfterCurrent = !value
		return err
	}
	return nil
}

// StopAfterCurrent reports the operator stop flag.
func (s *Store) StopAfterCurrent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopAfterCurrent
}

// ReconcileInterrupted handles jobs persisted as running by a previous
// process: when the retry budget allows another attempt the job returns to
// pending and will be retried; otherwise it is failed with an interrupted
// message. Returns the number of jobs touched.
func (s *Store) ReconcileInterrupted(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	touched := 0
	now := time.Now().UTC()
	for _, job := range s.jobs {
		if job.Status != StatusRunning {
			continue
		}
		if job.Attempts < MaxAttempts {
			job.MarkRetry(InterruptedMessage)
		} else {
			job.MarkFailed(now, InterruptedMessage)
		}
		touched++
	}
	if touched == 0 {
		return 0, nil
	}
	if err := s.saveLocked(); err != nil {
		return 0, err
	}
	return touched, nil
}
