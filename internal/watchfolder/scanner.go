package watchfolder

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"nightscribe/internal/config"
	"nightscribe/internal/logging"
	"nightscribe/internal/preflight"
	"nightscribe/internal/queue"
	"nightscribe/internal/services"
)

// Enqueuer admits one candidate file into the queue. The daemon implements
// this so enqueue policy (preflight, dedupe, persistence) lives in one place
// for both the CLI and the scanner.
type Enqueuer interface {
	EnqueuePath(ctx context.Context, path string) (*queue.Job, error)
}

// Scanner sweeps the watch folder and feeds admissible files to the Enqueuer.
type Scanner struct {
	cfg      *config.Config
	store    *queue.Store
	enqueuer Enqueuer
	logger   *slog.Logger
	interval time.Duration
	onAdmit  func()

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewScanner constructs a scanner. onAdmit, when non-nil, is invoked after a
// sweep that admitted at least one file (used to wake the runner).
func NewScanner(cfg *config.Config, store *queue.Store, enqueuer Enqueuer, logger *slog.Logger, onAdmit func()) *Scanner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scanner{
		cfg:      cfg,
		store:    store,
		enqueuer: enqueuer,
		logger:   logging.NewComponentLogger(logger, "watchfolder"),
		interval: time.Duration(cfg.Workflow.WatchInterval) * time.Second,
		onAdmit:  onAdmit,
	}
}

// Start begins periodic sweeps. It is a no-op when no watch folder is
// configured.
func (s *Scanner) Start(ctx context.Context) error {
	if s.cfg.Paths.WatchFolder == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("scanner already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.wg.Add(1)
	go s.runLoop(runCtx)
	return nil
}

// Stop terminates the sweep loop and waits for it to unwind.
func (s *Scanner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
}

func (s *Scanner) runLoop(ctx context.Context) {
	defer s.wg.Done()

	events := s.watchEvents(ctx)
	for {
		if _, err := s.Scan(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("watch folder sweep failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "watch_sweep_failed"))
		}

		timer := time.NewTimer(s.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		case <-events:
			timer.Stop()
			// Writers rarely finish in one syscall. A short grace period
			// lets the final rename or close land before the sweep stats
			// the file.
			s.sleep(ctx, 500*time.Millisecond)
		}
	}
}

// watchEvents subscribes to create/rename events on the watch folder. When
// fsnotify is unavailable (network mounts, exhausted inotify watches) the
// scanner silently degrades to pure polling.
func (s *Scanner) watchEvents(ctx context.Context) <-chan struct{} {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.logger.Warn("fsnotify unavailable, relying on polling", logging.Error(err))
		return nil
	}
	if err := watcher.Add(s.cfg.Paths.WatchFolder); err != nil {
		s.logger.Warn("cannot watch folder, relying on polling",
			logging.Error(err),
			logging.String("watch_folder", s.cfg.Paths.WatchFolder))
		watcher.Close()
		return nil
	}

	events := make(chan struct{}, 1)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Rename) {
					select {
					case events <- struct{}{}:
					default:
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("watcher error", logging.Error(err))
			}
		}
	}()
	return events
}

// Scan sweeps the watch folder once and returns how many files were admitted.
// Sweeps are idempotent: files already fingerprinted or occupying an active
// queue slot are skipped without touching the store.
func (s *Scanner) Scan(ctx context.Context) (int, error) {
	folder := s.cfg.Paths.WatchFolder
	if folder == "" {
		return 0, nil
	}
	entries, err := os.ReadDir(folder)
	if err != nil {
		return 0, err
	}
	sort.Slice(entries, func(i, k int) bool { return entries[i].Name() < entries[k].Name() })

	snap := queue.SnapshotFromConfig(s.cfg)
	admitted := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return admitted, err
		}
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(folder, entry.Name())
		if !preflight.SupportedExtension(path) {
			continue
		}

		ok, err := s.shouldAdmit(ctx, path, snap)
		if err != nil {
			return admitted, err
		}
		if !ok {
			continue
		}

		job, err := s.enqueuer.EnqueuePath(ctx, path)
		if err != nil {
			if errors.Is(err, services.ErrValidation) || errors.Is(err, queue.ErrDuplicatePath) {
				s.logger.Debug("watch folder candidate rejected",
					logging.String("path", path),
					logging.Error(err))
				continue
			}
			return admitted, err
		}
		admitted++
		s.logger.Info("watch folder admitted file",
			logging.String(logging.FieldJobID, job.ID),
			logging.String("path", path),
			logging.String(logging.FieldEventType, "watch_admitted"))
	}

	if admitted > 0 && s.onAdmit != nil {
		s.onAdmit()
	}
	return admitted, nil
}

// shouldAdmit applies the dedupe rules: skip paths with an active job, and
// skip fingerprints the queue has already seen in any state.
func (s *Scanner) shouldAdmit(ctx context.Context, path string, snap queue.ConfigSnapshot) (bool, error) {
	if err := preflight.ValidateCandidate(path, snap); err != nil {
		// Unreadable or zero-byte files are often still being written.
		// Leave them for a later sweep instead of rejecting loudly.
		return false, nil
	}

	active, err := s.store.HasActivePath(ctx, path)
	if err != nil {
		return false, err
	}
	if active {
		return false, nil
	}

	fingerprint, err := queue.Fingerprint(path)
	if err != nil {
		return false, nil
	}
	known, err := s.store.HasFingerprint(ctx, fingerprint)
	if err != nil {
		return false, err
	}
	return !known, nil
}

func (s *Scanner) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
