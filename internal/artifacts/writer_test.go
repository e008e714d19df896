package artifacts_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nightscribe/internal/artifacts"
	"nightscribe/internal/queue"
	"nightscribe/internal/services/whisperx"
	"nightscribe/internal/testsupport"
)

func sampleSegments() []whisperx.Segment {
	return []whisperx.Segment{
		{Start: 0, End: 2.5, Text: " Goedemorgen allemaal.", Speaker: "SPEAKER_00"},
		{Start: 2.5, End: 5.04, Text: "Dank u wel.", Speaker: "SPEAKER_01"},
		{Start: 5.04, End: 6.0, Text: "   "},
		{Start: 6.0, End: 7.25, Text: "Zonder spreker."},
	}
}

func TestRenderSRT(t *testing.T) {
	got := artifacts.RenderSRT(sampleSegments())
	want := "1\n" +
		"00:00:00,000 --> 00:00:02,500\n" +
		"[SPEAKER_00] Goedemorgen allemaal.\n" +
		"\n" +
		"2\n" +
		"00:00:02,500 --> 00:00:05,040\n" +
		"[SPEAKER_01] Dank u wel.\n" +
		"\n" +
		"3\n" +
		"00:00:06,000 --> 00:00:07,250\n" +
		"Zonder spreker.\n"
	if got != want {
		t.Fatalf("unexpected SRT:\n%s\nwant:\n%s", got, want)
	}
}

func TestRenderSRTLongTimestamps(t *testing.T) {
	segments := []whisperx.Segment{
		{Start: 3725.5, End: 3726.0, Text: "Een uur verder."},
	}
	got := artifacts.RenderSRT(segments)
	if !strings.Contains(got, "01:02:05,500 --> 01:02:06,000") {
		t.Fatalf("unexpected timestamps:\n%s", got)
	}
}

func TestRenderText(t *testing.T) {
	got := artifacts.RenderText(sampleSegments())
	want := "[SPEAKER_00] Goedemorgen allemaal.\n" +
		"[SPEAKER_01] Dank u wel.\n" +
		"Zonder spreker.\n"
	if got != want {
		t.Fatalf("unexpected text:\n%q\nwant:\n%q", got, want)
	}
}

func TestWriteTranscripts(t *testing.T) {
	dir := t.TempDir()
	enginePath := filepath.Join(dir, "audio.json")
	testsupport.WriteFile(t, enginePath, 64)
	outputDir := filepath.Join(dir, "out")

	paths, err := artifacts.WriteTranscripts(outputDir, enginePath, sampleSegments())
	if err != nil {
		t.Fatalf("WriteTranscripts failed: %v", err)
	}
	for _, key := range []string{"srt", "txt", "json"} {
		path, ok := paths[key]
		if !ok {
			t.Fatalf("artifact %s missing from map %v", key, paths)
		}
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("artifact %s not written: %v", key, err)
		}
	}
	if filepath.Base(paths["srt"]) != "transcript.srt" {
		t.Fatalf("unexpected srt name: %s", paths["srt"])
	}
}

func TestWriteMetaRoundTrips(t *testing.T) {
	outputDir := t.TempDir()
	job := &queue.Job{
		ID:        "abc123def4",
		Status:    queue.StatusDone,
		OutputDir: outputDir,
		Config:    queue.ConfigSnapshot{Model: "large-v3", Language: "nl"},
	}

	path, err := artifacts.WriteMeta(job)
	if err != nil {
		t.Fatalf("WriteMeta failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read meta: %v", err)
	}
	var meta artifacts.Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		t.Fatalf("parse meta: %v", err)
	}
	if meta.Job == nil || meta.Job.ID != job.ID {
		t.Fatalf("unexpected meta job: %#v", meta.Job)
	}
	if meta.Runtime.Model != "large-v3" {
		t.Fatalf("unexpected runtime snapshot: %#v", meta.Runtime)
	}
	if meta.GeneratedAt.IsZero() {
		t.Fatal("expected generated_at to be set")
	}
}

func TestAppendJobLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "job.log")

	if err := artifacts.AppendJobLog(path, "attempt 1 started"); err != nil {
		t.Fatalf("AppendJobLog failed: %v", err)
	}
	if err := artifacts.AppendJobLog(path, "attempt 1 failed"); err != nil {
		t.Fatalf("AppendJobLog failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read job log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", string(data))
	}
	if !strings.HasSuffix(lines[0], "attempt 1 started") || !strings.HasPrefix(lines[0], "[") {
		t.Fatalf("unexpected log line: %s", lines[0])
	}
}
