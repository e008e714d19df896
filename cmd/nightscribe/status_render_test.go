package main

import (
	"strings"
	"testing"
	"time"

	"nightscribe/internal/ipc"
)

func TestRenderStatusLinePlain(t *testing.T) {
	line := renderStatusLine("State file", stateInfo, "/var/lib/nightscribe/queue_state.json", false)
	if !strings.HasPrefix(line, "  State file") {
		t.Fatalf("unexpected prefix: %q", line)
	}
	if !strings.Contains(line, "info  /var/lib/nightscribe/queue_state.json") {
		t.Fatalf("unexpected line: %q", line)
	}
	if strings.Contains(line, ansiReset) {
		t.Fatal("plain output must not contain ANSI codes")
	}
}

func TestRenderStatusLineColorized(t *testing.T) {
	line := renderStatusLine("Running", stateOK, "pid 42", true)
	if !strings.Contains(line, stateColors[stateOK]+"ok"+ansiReset) {
		t.Fatalf("expected colorized state word: %q", line)
	}
	if !strings.HasSuffix(line, "pid 42") {
		t.Fatalf("detail must stay uncolored at line end: %q", line)
	}
}

func TestSectionHeader(t *testing.T) {
	lines := strings.Split(sectionHeader("Queue", false), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected title and rule, got %d lines", len(lines))
	}
	if lines[0] != "Queue" {
		t.Fatalf("unexpected title: %q", lines[0])
	}
	if lines[1] != "-----" {
		t.Fatalf("rule must match title length: %q", lines[1])
	}
}

func TestBuildQueueStatusRowsSkipsZeroCounts(t *testing.T) {
	rows := buildQueueStatusRows(map[string]int{
		"pending": 2,
		"running": 0,
		"done":    5,
	})
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "done" || rows[1][0] != "pending" {
		t.Fatalf("expected sorted status names, got %v", rows)
	}
}

func TestBuildQueueListRows(t *testing.T) {
	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	rows := buildQueueListRows([]ipc.Job{{
		ID:           "ab12cd34ef",
		DisplayTitle: "Staff Meeting",
		Status:       "failed",
		Attempts:     2,
		CreatedAt:    created,
		ErrorMessage: "transcription run failed",
	}})
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	row := rows[0]
	if row[0] != "ab12cd34ef" || row[1] != "Staff Meeting" || row[2] != "failed" {
		t.Fatalf("unexpected row: %v", row)
	}
	if row[3] != "2" {
		t.Fatalf("attempts column = %q, want 2", row[3])
	}
	if row[5] != "transcription run failed" {
		t.Fatalf("error column = %q", row[5])
	}
}
