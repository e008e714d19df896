package queue

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeName reduces a filename stem to filesystem-safe characters.
func SanitizeName(value string) string {
	cleaned := strings.Trim(unsafeNameChars.ReplaceAllString(value, "_"), "._")
	if cleaned == "" {
		return "audio"
	}
	return cleaned
}

// Fingerprint identifies a file's content cheaply: absolute path, size, and
// modification time. A re-exported file at the same path yields a new
// fingerprint and is treated as new work.
func Fingerprint(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("stat source: %w", err)
	}
	return fmt.Sprintf("%s::%d::%d", abs, info.Size(), info.ModTime().UnixNano()), nil
}

// buildOutputFolderName derives the per-job artifact directory name from the
// source file's modification time and sanitized stem.
func buildOutputFolderName(sourcePath string) (string, error) {
	info, err := os.Stat(sourcePath)
	if err != nil {
		return "", fmt.Errorf("stat source: %w", err)
	}
	stem := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	timestamp := info.ModTime().Format("2006-01-02_15-04-05")
	return fmt.Sprintf("%s__%s", timestamp, SanitizeName(stem)), nil
}

// allocateOutputDir reserves a stable artifact directory for a job. The
// directory is created at reservation time so two jobs whose sources share a
// stem and mtime second cannot claim the same path. The job ID disambiguates
// when the plain name is already taken, so retries always land in the same
// place.
func allocateOutputDir(outputRoot, sourcePath, jobID string) (string, error) {
	base, err := buildOutputFolderName(sourcePath)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(outputRoot, 0o755); err != nil {
		return "", fmt.Errorf("create output root: %w", err)
	}
	candidate := filepath.Join(outputRoot, base)
	err = os.Mkdir(candidate, 0o755)
	if err == nil {
		return candidate, nil
	}
	if !os.IsExist(err) {
		return "", fmt.Errorf("reserve output dir: %w", err)
	}
	candidate = filepath.Join(outputRoot, fmt.Sprintf("%s__%s", base, jobID))
	if err := os.Mkdir(candidate, 0o755); err != nil && !os.IsExist(err) {
		return "", fmt.Errorf("reserve output dir: %w", err)
	}
	return candidate, nil
}

// DeriveTitle produces a human-readable display title from a source path.
func DeriveTitle(sourcePath string) string {
	if sourcePath == "" {
		return "Untitled Recording"
	}
	base := filepath.Base(sourcePath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	cleaned := strings.Builder{}
	prevSpace := false
	for _, r := range base {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			cleaned.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '.':
			if !prevSpace {
				cleaned.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	title := strings.TrimSpace(cleaned.String())
	if title == "" {
		return "Untitled Recording"
	}
	return cases.Title(language.Und).String(title)
}
