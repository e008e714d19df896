package preflight_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nightscribe/internal/preflight"
	"nightscribe/internal/queue"
	"nightscribe/internal/services"
	"nightscribe/internal/testsupport"
)

func validSnapshot() queue.ConfigSnapshot {
	return queue.ConfigSnapshot{
		Model:       "large-v3",
		Language:    "nl",
		Device:      "cpu",
		MinSpeakers: 2,
		MaxSpeakers: 4,
	}
}

func TestValidateCandidateAccepts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "interview.mp3")
	testsupport.WriteFile(t, path, 128)

	if err := preflight.ValidateCandidate(path, validSnapshot()); err != nil {
		t.Fatalf("expected acceptance, got %v", err)
	}
}

func TestValidateCandidateRejections(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.mp3")
	testsupport.WriteEmptyFile(t, empty)
	unsupported := filepath.Join(dir, "notes.txt")
	testsupport.WriteFile(t, unsupported, 16)
	sound := filepath.Join(dir, "sound.mp3")
	testsupport.WriteFile(t, sound, 16)

	badSpeakers := validSnapshot()
	badSpeakers.MinSpeakers = 5

	noModel := validSnapshot()
	noModel.Model = ""

	cases := []struct {
		name string
		path string
		snap queue.ConfigSnapshot
		want string
	}{
		{"missing file", filepath.Join(dir, "absent.mp3"), validSnapshot(), "does not exist"},
		{"directory", dir, validSnapshot(), "is a directory"},
		{"empty file", empty, validSnapshot(), "is empty"},
		{"unsupported extension", unsupported, validSnapshot(), "unsupported extension"},
		{"empty path", "  ", validSnapshot(), "empty source path"},
		{"speaker bounds", sound, badSpeakers, "exceeds max_speakers"},
		{"missing model", sound, noModel, "model is empty"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := preflight.ValidateCandidate(tc.path, tc.snap)
			if err == nil {
				t.Fatal("expected rejection")
			}
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation marker, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in error, got %v", tc.want, err)
			}
		})
	}
}

func TestSupportedExtensionIsCaseInsensitive(t *testing.T) {
	if !preflight.SupportedExtension("/in/RAAD.MP3") {
		t.Fatal("expected uppercase extension to be supported")
	}
	if preflight.SupportedExtension("/in/raad.pdf") {
		t.Fatal("expected pdf to be unsupported")
	}
}

func TestCheckDirectoryAccess(t *testing.T) {
	ok := preflight.CheckDirectoryAccess("test", t.TempDir())
	if !ok.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", ok.Detail)
	}

	missing := preflight.CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if missing.Passed {
		t.Fatal("expected failure for missing dir")
	}

	file := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	notDir := preflight.CheckDirectoryAccess("test", file)
	if notDir.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckBinary(t *testing.T) {
	found := preflight.CheckBinary("Shell", "sh", "", false)
	if !found.Passed {
		t.Fatalf("expected sh on PATH, got: %s", found.Detail)
	}

	missing := preflight.CheckBinary("Ghost", "definitely-not-a-binary-xyz", "Required for testing", false)
	if missing.Passed {
		t.Fatal("expected failure for unknown binary")
	}
	if !strings.Contains(missing.Detail, "not found") {
		t.Fatalf("expected not-found detail, got: %s", missing.Detail)
	}
}

func TestRunAllWithStubbedBinaries(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWatchFolder(), testsupport.WithStubbedBinaries())

	results := preflight.RunAll(cfg)
	if failures := preflight.RequiredFailures(results); len(failures) != 0 {
		t.Fatalf("expected no required failures, got %#v", failures)
	}
}

func TestRequiredFailuresIgnoresOptional(t *testing.T) {
	results := []preflight.Result{
		{Name: "required", Passed: false},
		{Name: "optional", Passed: false, Optional: true},
		{Name: "ok", Passed: true},
	}
	failures := preflight.RequiredFailures(results)
	if len(failures) != 1 || failures[0].Name != "required" {
		t.Fatalf("unexpected failures: %#v", failures)
	}
}
