package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"nightscribe/internal/artifacts"
	"nightscribe/internal/config"
	"nightscribe/internal/logging"
	"nightscribe/internal/queue"
	"nightscribe/internal/services/ffmpeg"
	"nightscribe/internal/services/whisperx"
)

// TranscriptionPipeline is the production Handler: normalize the source with
// ffmpeg, run the engine, render the transcripts.
type TranscriptionPipeline struct {
	cfg        *config.Config
	normalizer *ffmpeg.Normalizer
	engine     *whisperx.Service
	logger     *slog.Logger
}

// NewTranscriptionPipeline wires the production pipeline.
func NewTranscriptionPipeline(cfg *config.Config, logger *slog.Logger) *TranscriptionPipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &TranscriptionPipeline{
		cfg:        cfg,
		normalizer: ffmpeg.NewNormalizer(""),
		engine:     whisperx.NewService(""),
		logger:     logging.NewComponentLogger(logger, "pipeline"),
	}
}

// WithServices replaces the external command services (for testing).
func (p *TranscriptionPipeline) WithServices(normalizer *ffmpeg.Normalizer, engine *whisperx.Service) {
	if normalizer != nil {
		p.normalizer = normalizer
	}
	if engine != nil {
		p.engine = engine
	}
}

// Process executes one attempt end to end. Intermediate files live in a
// per-attempt scratch directory that is removed on the way out; only the
// rendered artifacts land in the job's output directory.
func (p *TranscriptionPipeline) Process(ctx context.Context, job *queue.Job) (map[string]string, error) {
	logger := logging.WithContext(ctx, p.logger)

	if err := os.MkdirAll(job.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure output dir: %w", err)
	}
	if job.LogPath == "" {
		job.LogPath = artifacts.JobLogPath(job.OutputDir)
	}
	p.jobLog(logger, job, fmt.Sprintf("Attempt %d started for %s", job.Attempts, job.SourcePath))

	workDir := filepath.Join(p.cfg.Paths.TempDir, fmt.Sprintf("%s-attempt-%d", job.ID, job.Attempts))
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	wavPath := filepath.Join(workDir, job.ID+".wav")
	if err := p.normalizer.Normalize(ctx, job.SourcePath, wavPath); err != nil {
		p.jobLog(logger, job, fmt.Sprintf("Normalization failed: %v", err))
		return nil, err
	}
	p.jobLog(logger, job, "Audio normalized to 16 kHz mono WAV")

	opts := engineOptions(job.Config, p.cfg.ResolveHFToken())
	engineDir := filepath.Join(workDir, "engine")
	p.jobLog(logger, job, "Running: "+whisperx.MaskedCommand(whisperx.Command, whisperx.BuildArgs(wavPath, engineDir, opts)))

	result, err := p.engine.Transcribe(ctx, wavPath, engineDir, opts)
	if err != nil {
		p.jobLog(logger, job, fmt.Sprintf("Engine failed: %v", err))
		return nil, err
	}

	segments, err := whisperx.LoadSegments(result.JSONPath)
	if err != nil {
		p.jobLog(logger, job, fmt.Sprintf("Engine output unreadable: %v", err))
		return nil, fmt.Errorf("load engine output: %w", err)
	}

	artifactPaths, err := artifacts.WriteTranscripts(job.OutputDir, result.JSONPath, segments)
	if err != nil {
		p.jobLog(logger, job, fmt.Sprintf("Artifact write failed: %v", err))
		return nil, err
	}
	artifactPaths["log"] = job.LogPath
	p.jobLog(logger, job, fmt.Sprintf("Transcription finished with %d segments", len(segments)))
	return artifactPaths, nil
}

// jobLog appends to the per-job log file. Log write failures never fail the
// job; they surface as daemon warnings instead.
func (p *TranscriptionPipeline) jobLog(logger *slog.Logger, job *queue.Job, message string) {
	if err := artifacts.AppendJobLog(job.LogPath, message); err != nil {
		logger.Warn("job log write failed",
			logging.Error(err),
			logging.String("log_path", job.LogPath))
	}
}

func engineOptions(snap queue.ConfigSnapshot, hfToken string) whisperx.Options {
	return whisperx.Options{
		Model:              snap.Model,
		Language:           snap.Language,
		Device:             snap.Device,
		ComputeType:        snap.ComputeType,
		VADMethod:          snap.VADMethod,
		DiarizeModel:       snap.DiarizeModel,
		AlignFallbackModel: snap.AlignFallbackModel,
		MinSpeakers:        snap.MinSpeakers,
		MaxSpeakers:        snap.MaxSpeakers,
		ChunkSize:          snap.ChunkSize,
		Threads:            snap.Threads,
		HFToken:            hfToken,
	}
}
