package daemon_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"nightscribe/internal/config"
	"nightscribe/internal/daemon"
	"nightscribe/internal/logging"
	"nightscribe/internal/queue"
	"nightscribe/internal/services"
	"nightscribe/internal/testsupport"
	"nightscribe/internal/watchfolder"
	"nightscribe/internal/workflow"
)

type instantHandler struct{}

func (instantHandler) Process(_ context.Context, job *queue.Job) (map[string]string, error) {
	return map[string]string{"srt": filepath.Join(job.OutputDir, "transcript.srt")}, nil
}

func newDaemon(t *testing.T, cfg *config.Config, store *queue.Store) *daemon.Daemon {
	t.Helper()
	logger := logging.NewNop()
	manager := workflow.NewManager(cfg, store, logger, instantHandler{})
	var scanner *watchfolder.Scanner
	d, err := daemon.New(cfg, store, logger, manager, nil)
	if err != nil {
		t.Fatalf("daemon.New failed: %v", err)
	}
	if cfg.Paths.WatchFolder != "" {
		scanner = watchfolder.NewScanner(cfg, store, d, logger, manager.Wake)
		d, err = daemon.New(cfg, store, logger, manager, scanner)
		if err != nil {
			t.Fatalf("daemon.New failed: %v", err)
		}
	}
	return d
}

func startDaemon(t *testing.T, cfg *config.Config, store *queue.Store) *daemon.Daemon {
	t.Helper()
	d := newDaemon(t, cfg, store)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon start failed: %v", err)
	}
	t.Cleanup(d.Stop)
	return d
}

func waitFor(t *testing.T, check func() bool, message string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		if check() {
			return
		}
		select {
		case <-deadline:
			t.Fatal(message)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestDaemonProcessesEnqueuedJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d := startDaemon(t, cfg, store)
	ctx := context.Background()

	source := filepath.Join(testsupport.BaseDir(cfg), "in", "overleg.mp3")
	testsupport.WriteFile(t, source, 64)
	job, err := d.EnqueuePath(ctx, source)
	if err != nil {
		t.Fatalf("EnqueuePath failed: %v", err)
	}

	waitFor(t, func() bool {
		got, err := store.GetByID(ctx, job.ID)
		return err == nil && got.Status == queue.StatusDone
	}, "job never completed")
}

func TestDaemonRejectsInvalidCandidates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d := newDaemon(t, cfg, store)
	ctx := context.Background()

	notes := filepath.Join(testsupport.BaseDir(cfg), "in", "notes.txt")
	testsupport.WriteFile(t, notes, 16)
	if _, err := d.EnqueuePath(ctx, notes); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation rejection, got %v", err)
	}

	// Rejections never leave a job record behind.
	jobs, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected empty queue after rejection, got %#v", jobs)
	}

	if _, err := d.EnqueuePath(ctx, "   "); err == nil {
		t.Fatal("expected error for blank path")
	}
}

func TestDaemonSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	startDaemon(t, cfg, store)

	second := newDaemon(t, cfg, store)
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("expected second instance to be refused")
	}
}

func TestDaemonReconcilesInterruptedJobOnStart(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	// Simulate a crash: a running job is left behind and the stop flag keeps
	// the runner from picking it up the moment the daemon starts.
	if err := store.SetStopAfterCurrent(ctx, true); err != nil {
		t.Fatalf("SetStopAfterCurrent failed: %v", err)
	}
	source := filepath.Join(testsupport.BaseDir(cfg), "in", "crashed.mp3")
	testsupport.WriteFile(t, source, 64)
	job, err := store.NewJob(ctx, source, queue.SnapshotFromConfig(cfg))
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}
	job.MarkRunning(job.CreatedAt)
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	startDaemon(t, cfg, store)

	got, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != queue.StatusPending {
		t.Fatalf("expected interrupted job back in pending, got %s", got.Status)
	}
	if got.ErrorMessage != queue.InterruptedMessage {
		t.Fatalf("expected interruption note, got %q", got.ErrorMessage)
	}
}

func TestDaemonStopAfterCurrentAndResume(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d := startDaemon(t, cfg, store)
	ctx := context.Background()

	if err := d.RequestStopAfterCurrent(ctx); err != nil {
		t.Fatalf("RequestStopAfterCurrent failed: %v", err)
	}

	source := filepath.Join(testsupport.BaseDir(cfg), "in", "held.mp3")
	testsupport.WriteFile(t, source, 64)
	job, err := d.EnqueuePath(ctx, source)
	if err != nil {
		t.Fatalf("EnqueuePath failed: %v", err)
	}

	time.Sleep(150 * time.Millisecond)
	held, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if held.Status != queue.StatusPending {
		t.Fatalf("expected job held in pending, got %s", held.Status)
	}

	status, err := d.Status(ctx)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if !status.Queue.StopAfterCurrent {
		t.Fatal("expected stop flag in status")
	}

	if err := d.Resume(ctx); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	waitFor(t, func() bool {
		got, err := store.GetByID(ctx, job.ID)
		return err == nil && got.Status == queue.StatusDone
	}, "job never completed after resume")
}

func TestDaemonClearPending(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d := newDaemon(t, cfg, store)
	ctx := context.Background()

	for _, name := range []string{"a.mp3", "b.mp3", "c.mp3"} {
		source := filepath.Join(testsupport.BaseDir(cfg), "in", name)
		testsupport.WriteFile(t, source, 64)
		if _, err := d.EnqueuePath(ctx, source); err != nil {
			t.Fatalf("EnqueuePath(%s) failed: %v", name, err)
		}
	}

	removed, err := d.ClearPending(ctx)
	if err != nil {
		t.Fatalf("ClearPending failed: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 removed, got %d", removed)
	}
}

func TestDaemonScanWatchFolder(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWatchFolder())
	store := testsupport.MustOpenStore(t, cfg)
	d := newDaemon(t, cfg, store)
	ctx := context.Background()

	testsupport.WriteFile(t, filepath.Join(cfg.Paths.WatchFolder, "drop.mp3"), 64)

	admitted, err := d.ScanWatchFolder(ctx)
	if err != nil {
		t.Fatalf("ScanWatchFolder failed: %v", err)
	}
	if admitted != 1 {
		t.Fatalf("expected 1 admitted, got %d", admitted)
	}
}

func TestDaemonScanWithoutWatchFolder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d := newDaemon(t, cfg, store)

	if _, err := d.ScanWatchFolder(context.Background()); err == nil {
		t.Fatal("expected error when no watch folder is configured")
	}
}
