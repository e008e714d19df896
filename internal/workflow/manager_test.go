package workflow_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"nightscribe/internal/config"
	"nightscribe/internal/logging"
	"nightscribe/internal/queue"
	"nightscribe/internal/testsupport"
	"nightscribe/internal/workflow"
)

type stubHandler struct {
	mu       sync.Mutex
	failures int
	calls    []string
}

func (h *stubHandler) Process(_ context.Context, job *queue.Job) (map[string]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, job.ID)
	if h.failures > 0 {
		h.failures--
		return nil, errors.New("engine exploded")
	}
	return map[string]string{"srt": filepath.Join(job.OutputDir, "transcript.srt")}, nil
}

func (h *stubHandler) callCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

func (h *stubHandler) callOrder() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.calls...)
}

func enqueue(t *testing.T, store *queue.Store, cfg *config.Config, name string) *queue.Job {
	t.Helper()
	source := filepath.Join(testsupport.BaseDir(cfg), "in", name)
	testsupport.WriteFile(t, source, 64)
	job, err := store.NewJob(context.Background(), source, queue.SnapshotFromConfig(cfg))
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}
	return job
}

func waitForStatus(t *testing.T, store *queue.Store, id string, want queue.Status) *queue.Job {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		job, err := store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if job.Status == want {
			return job
		}
		select {
		case <-deadline:
			t.Fatalf("job %s stuck in %s, wanted %s", id, job.Status, want)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func startManager(t *testing.T, cfg *config.Config, store *queue.Store, handler workflow.Handler) *workflow.Manager {
	t.Helper()
	manager := workflow.NewManager(cfg, store, logging.NewNop(), handler)
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(manager.Stop)
	return manager
}

func TestManagerCompletesJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	handler := &stubHandler{}

	job := enqueue(t, store, cfg, "clip.mp3")
	startManager(t, cfg, store, handler)

	done := waitForStatus(t, store, job.ID, queue.StatusDone)
	if done.Attempts != 1 {
		t.Fatalf("expected one attempt, got %d", done.Attempts)
	}
	if done.Artifacts["srt"] == "" {
		t.Fatalf("expected artifact map, got %#v", done.Artifacts)
	}
	if done.FinishedAt == nil {
		t.Fatal("expected finished_at to be set")
	}
}

func TestManagerRetriesOnceThenSucceeds(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	handler := &stubHandler{failures: 1}

	job := enqueue(t, store, cfg, "flaky.mp3")
	startManager(t, cfg, store, handler)

	done := waitForStatus(t, store, job.ID, queue.StatusDone)
	if done.Attempts != 2 {
		t.Fatalf("expected two attempts, got %d", done.Attempts)
	}
	if done.ErrorMessage != "" {
		t.Fatalf("success must clear the stale error, got %q", done.ErrorMessage)
	}
	if handler.callCount() != 2 {
		t.Fatalf("expected handler called twice, got %d", handler.callCount())
	}
}

func TestManagerExhaustsRetryBudget(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	handler := &stubHandler{failures: 10}

	job := enqueue(t, store, cfg, "doomed.mp3")
	startManager(t, cfg, store, handler)

	failed := waitForStatus(t, store, job.ID, queue.StatusFailed)
	if failed.Attempts != queue.MaxAttempts {
		t.Fatalf("expected %d attempts, got %d", queue.MaxAttempts, failed.Attempts)
	}
	if failed.ErrorMessage == "" {
		t.Fatal("expected failure reason to be recorded")
	}
	if handler.callCount() != queue.MaxAttempts {
		t.Fatalf("expected handler called %d times, got %d", queue.MaxAttempts, handler.callCount())
	}
}

func TestManagerProcessesInOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	handler := &stubHandler{}

	first := enqueue(t, store, cfg, "first.mp3")
	second := enqueue(t, store, cfg, "second.mp3")
	startManager(t, cfg, store, handler)

	waitForStatus(t, store, second.ID, queue.StatusDone)
	order := handler.callOrder()
	if len(order) != 2 || order[0] != first.ID || order[1] != second.ID {
		t.Fatalf("expected FIFO order [%s %s], got %v", first.ID, second.ID, order)
	}
}

func TestManagerHonorsStopAfterCurrent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	handler := &stubHandler{}
	ctx := context.Background()

	if err := store.SetStopAfterCurrent(ctx, true); err != nil {
		t.Fatalf("SetStopAfterCurrent failed: %v", err)
	}
	job := enqueue(t, store, cfg, "held.mp3")
	manager := startManager(t, cfg, store, handler)

	time.Sleep(150 * time.Millisecond)
	held, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if held.Status != queue.StatusPending {
		t.Fatalf("expected job held in pending, got %s", held.Status)
	}
	if handler.callCount() != 0 {
		t.Fatal("handler must not run while stop flag is set")
	}

	if err := store.SetStopAfterCurrent(ctx, false); err != nil {
		t.Fatalf("clear stop flag: %v", err)
	}
	manager.Wake()
	waitForStatus(t, store, job.ID, queue.StatusDone)
}

type sabotageHandler struct {
	stub     stubHandler
	once     sync.Once
	sabotage func()
}

func (h *sabotageHandler) Process(ctx context.Context, job *queue.Job) (map[string]string, error) {
	out, err := h.stub.Process(ctx, job)
	h.once.Do(h.sabotage)
	return out, err
}

func TestManagerHaltsWhenQueueStateUnwritable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	first := enqueue(t, store, cfg, "one.mp3")
	second := enqueue(t, store, cfg, "two.mp3")

	// Replace the data dir with a regular file while the first job runs, so
	// persisting its completion fails.
	dataDir := cfg.Paths.DataDir
	handler := &sabotageHandler{sabotage: func() {
		if err := os.RemoveAll(dataDir); err != nil {
			t.Errorf("remove data dir: %v", err)
		}
		if err := os.WriteFile(dataDir, []byte("blocked"), 0o644); err != nil {
			t.Errorf("block data dir: %v", err)
		}
	}}
	manager := startManager(t, cfg, store, handler)

	// A loop that merely retried would pull the second job after the error
	// retry interval (1s in this config). Give it long enough to prove it
	// stopped instead.
	time.Sleep(2500 * time.Millisecond)
	manager.Wake()
	time.Sleep(100 * time.Millisecond)

	if got := handler.stub.callCount(); got != 1 {
		t.Fatalf("expected processing to halt after 1 job, handler ran %d times", got)
	}
	ctx := context.Background()
	held, err := store.GetByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if held.Status != queue.StatusRunning {
		t.Fatalf("unpersistable completion must roll back, got %s", held.Status)
	}
	pending, err := store.GetByID(ctx, second.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if pending.Status != queue.StatusPending {
		t.Fatalf("second job must stay pending, got %s", pending.Status)
	}
}

func TestManagerStartTwiceFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	manager := workflow.NewManager(cfg, store, logging.NewNop(), &stubHandler{})
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer manager.Stop()
	if err := manager.Start(context.Background()); err == nil {
		t.Fatal("expected second Start to fail")
	}
}
