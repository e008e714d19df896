package artifacts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"nightscribe/internal/queue"
	"nightscribe/internal/services"
)

// Meta is the run summary persisted next to the transcripts. It duplicates
// the job record so a completed output directory stays self-describing even
// if the queue snapshot is later pruned.
type Meta struct {
	Job         *queue.Job           `json:"job"`
	Runtime     queue.ConfigSnapshot `json:"runtime"`
	OutputDir   string               `json:"output_dir"`
	GeneratedAt time.Time            `json:"generated_at"`
}

// WriteMeta serializes the run summary into the job's output directory and
// returns the file path.
func WriteMeta(job *queue.Job) (string, error) {
	if job == nil || job.OutputDir == "" {
		return "", services.Wrap(services.ErrPersistence, "artifacts", "meta", "job has no output dir", nil)
	}
	if err := os.MkdirAll(job.OutputDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrPersistence, "artifacts", "meta", "ensure output dir", err)
	}

	meta := Meta{
		Job:         job.Clone(),
		Runtime:     job.Config,
		OutputDir:   job.OutputDir,
		GeneratedAt: time.Now().UTC().Truncate(time.Second),
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", services.Wrap(services.ErrPersistence, "artifacts", "meta", "marshal", err)
	}
	path := filepath.Join(job.OutputDir, MetaName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", services.Wrap(services.ErrPersistence, "artifacts", "meta", "write", err)
	}
	return path, nil
}

// JobLogPath returns the per-job log location inside the output directory.
func JobLogPath(outputDir string) string {
	return filepath.Join(outputDir, JobLogName)
}

// AppendJobLog appends a timestamped line to the job's log file, creating it
// and its directory as needed. Log failures are reported but callers treat
// them as non-fatal: a missing log line never fails a job.
func AppendJobLog(path, message string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	handle, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer handle.Close()

	stamp := time.Now().UTC().Format(time.RFC3339)
	_, err = fmt.Fprintf(handle, "[%s] %s\n", stamp, message)
	return err
}
