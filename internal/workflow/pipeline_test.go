package workflow_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nightscribe/internal/services/ffmpeg"
	"nightscribe/internal/services/whisperx"
	"nightscribe/internal/testsupport"
	"nightscribe/internal/workflow"
)

const enginePayload = `{
  "segments": [
    {"start": 0.0, "end": 2.0, "text": " Goedemorgen.", "speaker": "SPEAKER_00"},
    {"start": 2.0, "end": 4.0, "text": "Dank u.", "speaker": "SPEAKER_01"}
  ],
  "language": "nl"
}`

func argAfter(args []string, flag string) string {
	for i, arg := range args {
		if arg == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func TestTranscriptionPipelineProducesArtifacts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := enqueue(t, store, cfg, "overleg.mp3")
	job.MarkRunning(job.CreatedAt)

	normalizer := ffmpeg.NewNormalizer("")
	normalizer.WithCommandRunner(func(_ context.Context, _ string, args ...string) error {
		testsupport.WriteFile(t, args[len(args)-1], 32)
		return nil
	})
	engine := whisperx.NewService("")
	engine.WithCommandRunner(func(_ context.Context, _ string, args ...string) error {
		outputDir := argAfter(args, "--output_dir")
		source := args[0]
		base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(outputDir, base+".json"), []byte(enginePayload), 0o644)
	})

	pipeline := workflow.NewTranscriptionPipeline(cfg, nil)
	pipeline.WithServices(normalizer, engine)

	artifactPaths, err := pipeline.Process(context.Background(), job)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	for _, key := range []string{"srt", "txt", "json", "log"} {
		path := artifactPaths[key]
		if path == "" {
			t.Fatalf("artifact %s missing from %v", key, artifactPaths)
		}
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("artifact %s not on disk: %v", key, err)
		}
		if filepath.Dir(path) != job.OutputDir {
			t.Fatalf("artifact %s outside output dir: %s", key, path)
		}
	}

	srt, err := os.ReadFile(artifactPaths["srt"])
	if err != nil {
		t.Fatalf("read srt: %v", err)
	}
	if !strings.Contains(string(srt), "[SPEAKER_00] Goedemorgen.") {
		t.Fatalf("expected speaker-tagged cue, got:\n%s", srt)
	}

	logData, err := os.ReadFile(artifactPaths["log"])
	if err != nil {
		t.Fatalf("read job log: %v", err)
	}
	if !strings.Contains(string(logData), "Attempt 1 started") {
		t.Fatalf("expected attempt line in job log, got:\n%s", logData)
	}

	// Scratch space is cleaned up after the attempt.
	entries, err := os.ReadDir(cfg.Paths.TempDir)
	if err != nil {
		t.Fatalf("read temp dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty temp dir, found %d entries", len(entries))
	}
}

func TestTranscriptionPipelineMasksTokenInJobLog(t *testing.T) {
	t.Setenv("HF_TOKEN", "")
	cfg := testsupport.NewConfig(t)
	cfg.Transcription.HFToken = "hf_super_secret"
	store := testsupport.MustOpenStore(t, cfg)
	job := enqueue(t, store, cfg, "geheim.mp3")
	job.MarkRunning(job.CreatedAt)

	normalizer := ffmpeg.NewNormalizer("")
	normalizer.WithCommandRunner(func(_ context.Context, _ string, args ...string) error {
		testsupport.WriteFile(t, args[len(args)-1], 32)
		return nil
	})
	engine := whisperx.NewService("")
	engine.WithCommandRunner(func(_ context.Context, _ string, args ...string) error {
		outputDir := argAfter(args, "--output_dir")
		base := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(outputDir, base+".json"), []byte(enginePayload), 0o644)
	})

	pipeline := workflow.NewTranscriptionPipeline(cfg, nil)
	pipeline.WithServices(normalizer, engine)

	artifactPaths, err := pipeline.Process(context.Background(), job)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	logData, err := os.ReadFile(artifactPaths["log"])
	if err != nil {
		t.Fatalf("read job log: %v", err)
	}
	if strings.Contains(string(logData), "hf_super_secret") {
		t.Fatalf("token leaked into job log:\n%s", logData)
	}
	if !strings.Contains(string(logData), "--hf_token ***") {
		t.Fatalf("expected masked token in job log:\n%s", logData)
	}
}

func TestTranscriptionPipelineNormalizationFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := enqueue(t, store, cfg, "corrupt.mp3")
	job.MarkRunning(job.CreatedAt)

	normalizer := ffmpeg.NewNormalizer("")
	normalizer.WithCommandRunner(func(context.Context, string, ...string) error {
		return os.ErrInvalid
	})

	pipeline := workflow.NewTranscriptionPipeline(cfg, nil)
	pipeline.WithServices(normalizer, nil)

	if _, err := pipeline.Process(context.Background(), job); err == nil {
		t.Fatal("expected normalization failure to propagate")
	}
	logData, err := os.ReadFile(job.LogPath)
	if err != nil {
		t.Fatalf("read job log: %v", err)
	}
	if !strings.Contains(string(logData), "Normalization failed") {
		t.Fatalf("expected failure line in job log:\n%s", logData)
	}
}
