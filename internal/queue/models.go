package queue

import (
	"maps"
	"strings"
	"time"

	"nightscribe/internal/config"
)

// Status represents the lifecycle of a queued job.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// MaxAttempts is the retry budget: one retry, so two attempts total.
const MaxAttempts = 2

// InterruptedMessage is recorded on jobs found mid-run after a restart.
const InterruptedMessage = "daemon restarted while job was running"

var allStatuses = []Status{
	StatusPending,
	StatusRunning,
	StatusDone,
	StatusFailed,
	StatusSkipped,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// ConfigSnapshot freezes the transcription settings a job was enqueued with.
// Later global config changes never affect already-queued jobs.
type ConfigSnapshot struct {
	Model              string `json:"model"`
	Language           string `json:"language"`
	Device             string `json:"device"`
	ComputeType        string `json:"compute_type"`
	VADMethod          string `json:"vad_method"`
	DiarizeModel       string `json:"diarize_model"`
	AlignFallbackModel string `json:"align_fallback_model,omitempty"`
	MinSpeakers        int    `json:"min_speakers"`
	MaxSpeakers        int    `json:"max_speakers"`
	ChunkSize          int    `json:"chunk_size"`
	Threads            int    `json:"threads"`
}

// SnapshotFromConfig captures the current transcription settings.
func SnapshotFromConfig(cfg *config.Config) ConfigSnapshot {
	t := cfg.Transcription
	return ConfigSnapshot{
		Model:              t.Model,
		Language:           t.Language,
		Device:             t.Device,
		ComputeType:        t.ComputeType,
		VADMethod:          t.VADMethod,
		DiarizeModel:       t.DiarizeModel,
		AlignFallbackModel: t.AlignFallbackModel,
		MinSpeakers:        t.MinSpeakers,
		MaxSpeakers:        t.MaxSpeakers,
		ChunkSize:          t.ChunkSize,
		Threads:            t.Threads,
	}
}

// Job is the durable unit of work.
type Job struct {
	ID           string            `json:"id"`
	SourcePath   string            `json:"source_path"`
	DisplayTitle string            `json:"display_title,omitempty"`
	Fingerprint  string            `json:"fingerprint"`
	Status       Status            `json:"status"`
	Attempts     int               `json:"attempts"`
	CreatedAt    time.Time         `json:"created_at"`
	StartedAt    *time.Time        `json:"started_at,omitempty"`
	FinishedAt   *time.Time        `json:"finished_at,omitempty"`
	OutputDir    string            `json:"output_dir"`
	LogPath      string            `json:"log_path,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	Artifacts    map[string]string `json:"artifacts,omitempty"`
	Config       ConfigSnapshot    `json:"config_snapshot"`
}

// Clone returns an independent copy of the job.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	if j.StartedAt != nil {
		started := *j.StartedAt
		cp.StartedAt = &started
	}
	if j.FinishedAt != nil {
		finished := *j.FinishedAt
		cp.FinishedAt = &finished
	}
	if j.Artifacts != nil {
		cp.Artifacts = maps.Clone(j.Artifacts)
	}
	return &cp
}

// IsActive reports whether the job still occupies its source path for
// de-duplication purposes.
func (j *Job) IsActive() bool {
	return j.Status == StatusPending || j.Status == StatusRunning
}

// IsTerminal reports whether the job reached a final state.
func (j *Job) IsTerminal() bool {
	switch j.Status {
	case StatusDone, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// MarkRunning transitions the job into execution. StartedAt is set once, on
// the first attempt, and kept across retries.
func (j *Job) MarkRunning(now time.Time) {
	j.Status = StatusRunning
	j.Attempts++
	if j.StartedAt == nil {
		started := now.UTC()
		j.StartedAt = &started
	}
}

// MarkDone records a successful completion.
func (j *Job) MarkDone(now time.Time, artifacts map[string]string) {
	j.Status = StatusDone
	j.ErrorMessage = ""
	j.Artifacts = artifacts
	finished := now.UTC()
	j.FinishedAt = &finished
}

// MarkRetry requeues the job in place after a recoverable failure. The job
// keeps its identity, output directory, and creation order.
func (j *Job) MarkRetry(message string) {
	j.Status = StatusPending
	j.ErrorMessage = message
}

// MarkFailed records a permanent failure with its reason.
func (j *Job) MarkFailed(now time.Time, message string) {
	j.Status = StatusFailed
	j.ErrorMessage = message
	finished := now.UTC()
	j.FinishedAt = &finished
}

// RetryBudgetExhausted reports whether another attempt is permitted.
func (j *Job) RetryBudgetExhausted() bool {
	return j.Attempts >= MaxAttempts
}

// Summary aggregates queue counts per lifecycle state.
type Summary struct {
	Total            int
	Pending          int
	Running          int
	Done             int
	Failed           int
	Skipped          int
	StopAfterCurrent bool
}
