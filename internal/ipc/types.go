package ipc

import (
	"time"

	"nightscribe/internal/queue"
)

// Job is the wire representation of a queue job.
type Job struct {
	ID           string            `json:"id"`
	SourcePath   string            `json:"source_path"`
	DisplayTitle string            `json:"display_title,omitempty"`
	Status       string            `json:"status"`
	Attempts     int               `json:"attempts"`
	CreatedAt    time.Time         `json:"created_at"`
	StartedAt    *time.Time        `json:"started_at,omitempty"`
	FinishedAt   *time.Time        `json:"finished_at,omitempty"`
	OutputDir    string            `json:"output_dir"`
	LogPath      string            `json:"log_path,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	Artifacts    map[string]string `json:"artifacts,omitempty"`
}

// FromJob converts a queue job into its wire form.
func FromJob(job *queue.Job) Job {
	return Job{
		ID:           job.ID,
		SourcePath:   job.SourcePath,
		DisplayTitle: job.DisplayTitle,
		Status:       string(job.Status),
		Attempts:     job.Attempts,
		CreatedAt:    job.CreatedAt,
		StartedAt:    job.StartedAt,
		FinishedAt:   job.FinishedAt,
		OutputDir:    job.OutputDir,
		LogPath:      job.LogPath,
		ErrorMessage: job.ErrorMessage,
		Artifacts:    job.Artifacts,
	}
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse reports daemon runtime state and queue counts.
type StatusResponse struct {
	Running          bool           `json:"running"`
	StopAfterCurrent bool           `json:"stop_after_current"`
	QueueCounts      map[string]int `json:"queue_counts"`
	StateFilePath    string         `json:"state_file_path"`
	LockPath         string         `json:"lock_path"`
	WatchFolder      string         `json:"watch_folder,omitempty"`
	PID              int            `json:"pid"`
}

// AddRequest enqueues one file.
type AddRequest struct {
	Path string `json:"path"`
}

// AddResponse returns the admitted job.
type AddResponse struct {
	Job Job `json:"job"`
}

// QueueListRequest filters the listing by status names. Empty means all.
type QueueListRequest struct {
	Statuses []string `json:"statuses"`
}

// QueueListResponse contains jobs in creation order.
type QueueListResponse struct {
	Jobs []Job `json:"jobs"`
}

// QueueDescribeRequest fetches a single job by ID.
type QueueDescribeRequest struct {
	ID string `json:"id"`
}

// QueueDescribeResponse contains a single job.
type QueueDescribeResponse struct {
	Job Job `json:"job"`
}

// QueueClearRequest removes all pending jobs.
type QueueClearRequest struct{}

// QueueClearResponse reports the number of removed jobs.
type QueueClearResponse struct {
	Removed int `json:"removed"`
}

// StopAfterCurrentRequest sets the persisted stop flag.
type StopAfterCurrentRequest struct{}

// StopAfterCurrentResponse acknowledges the stop request.
type StopAfterCurrentResponse struct {
	Stopping bool `json:"stopping"`
}

// ResumeRequest clears the stop flag.
type ResumeRequest struct{}

// ResumeResponse acknowledges the resume.
type ResumeResponse struct {
	Resumed bool `json:"resumed"`
}

// ScanRequest triggers one watch folder sweep.
type ScanRequest struct{}

// ScanResponse reports the number of admitted files.
type ScanResponse struct {
	Admitted int `json:"admitted"`
}

// ShutdownRequest asks the daemon process to exit.
type ShutdownRequest struct{}

// ShutdownResponse acknowledges the shutdown.
type ShutdownResponse struct {
	Stopping bool `json:"stopping"`
}
