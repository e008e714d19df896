package artifacts

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"nightscribe/internal/services"
	"nightscribe/internal/services/whisperx"
)

// Artifact names inside a job's output directory.
const (
	TranscriptSRT  = "transcript.srt"
	TranscriptText = "transcript.txt"
	TranscriptJSON = "transcript.json"
	JobLogName     = "job.log"
	MetaName       = "meta.json"
)

// WriteTranscripts renders the SRT and plain-text transcripts from engine
// segments and copies the raw engine JSON alongside them. It returns the
// artifact map recorded on the job.
func WriteTranscripts(outputDir, engineJSONPath string, segments []whisperx.Segment) (map[string]string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "artifacts", "write", "ensure output dir", err)
	}

	srtPath := filepath.Join(outputDir, TranscriptSRT)
	txtPath := filepath.Join(outputDir, TranscriptText)
	jsonPath := filepath.Join(outputDir, TranscriptJSON)

	if err := os.WriteFile(srtPath, []byte(RenderSRT(segments)), 0o644); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "artifacts", "write", "transcript.srt", err)
	}
	if err := os.WriteFile(txtPath, []byte(RenderText(segments)), 0o644); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "artifacts", "write", "transcript.txt", err)
	}
	if err := copyFile(engineJSONPath, jsonPath); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "artifacts", "write", "transcript.json", err)
	}

	return map[string]string{
		"srt":  srtPath,
		"txt":  txtPath,
		"json": jsonPath,
	}, nil
}

// RenderText produces one line per utterance, speaker-tagged when the engine
// attributed one.
func RenderText(segments []whisperx.Segment) string {
	var lines []string
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		if speaker := strings.TrimSpace(seg.Speaker); speaker != "" {
			text = fmt.Sprintf("[%s] %s", speaker, text)
		}
		lines = append(lines, text)
	}
	return strings.TrimSpace(strings.Join(lines, "\n")) + "\n"
}

// RenderSRT produces a SubRip document with speaker tags folded into the cue
// text. Segments without text are dropped and cues renumber from 1.
func RenderSRT(segments []whisperx.Segment) string {
	var b strings.Builder
	index := 1
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		if speaker := strings.TrimSpace(seg.Speaker); speaker != "" {
			text = fmt.Sprintf("[%s] %s", speaker, text)
		}
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", index, srtTimestamp(seg.Start), srtTimestamp(seg.End), text)
		index++
	}
	return strings.TrimSpace(b.String()) + "\n"
}

// srtTimestamp renders seconds as HH:MM:SS,mmm with negative values clamped
// to zero.
func srtTimestamp(seconds float64) string {
	totalMS := int(math.Round(seconds * 1000))
	if totalMS < 0 {
		totalMS = 0
	}
	hours := totalMS / 3_600_000
	rem := totalMS % 3_600_000
	minutes := rem / 60_000
	rem %= 60_000
	secs := rem / 1000
	ms := rem % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, ms)
}

func copyFile(src, dest string) error {
	if src == dest {
		return nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0o644)
}
