package whisperx

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Word carries per-word timing and speaker attribution from the engine.
type Word struct {
	Word    string  `json:"word"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker,omitempty"`
}

// Segment is one diarized utterance from the engine's JSON output.
type Segment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Speaker string  `json:"speaker,omitempty"`
	Words   []Word  `json:"words,omitempty"`
}

type enginePayload struct {
	Segments []Segment `json:"segments"`
	Language string    `json:"language"`
}

// LoadSegments parses the engine's JSON output file.
func LoadSegments(jsonPath string) ([]Segment, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, err
	}
	var payload enginePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse engine json: %w", err)
	}
	return payload.Segments, nil
}

// TranscriptText concatenates segment texts into a single plain string.
func TranscriptText(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}
