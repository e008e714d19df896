package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"nightscribe/internal/queue"
	"nightscribe/internal/services"
)

// supportedExtensions lists the container formats ffmpeg reliably decodes to
// 16 kHz mono WAV. Video containers are included because recordings often
// arrive as screen captures with an audio track.
var supportedExtensions = map[string]struct{}{
	".wav":  {},
	".mp3":  {},
	".m4a":  {},
	".flac": {},
	".ogg":  {},
	".opus": {},
	".aac":  {},
	".wma":  {},
	".mp4":  {},
	".mkv":  {},
	".webm": {},
}

// SupportedExtension reports whether the file's extension is admissible.
func SupportedExtension(path string) bool {
	_, ok := supportedExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// SupportedExtensions returns the sorted list of admissible extensions for
// display in error messages and help text.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(supportedExtensions))
	for ext := range supportedExtensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// ValidateCandidate decides whether a file may become a job. Rejections are
// tagged with the validation marker so callers can distinguish "never
// admitted" from downstream processing failures. No job record is created
// for a rejected candidate.
func ValidateCandidate(path string, snap queue.ConfigSnapshot) error {
	reject := func(message string, err error) error {
		return services.Wrap(services.ErrValidation, "preflight", "validate", message, err)
	}

	if strings.TrimSpace(path) == "" {
		return reject("empty source path", nil)
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return reject(fmt.Sprintf("%s does not exist", path), nil)
		}
		return reject("stat source", err)
	}
	if info.IsDir() {
		return reject(fmt.Sprintf("%s is a directory", path), nil)
	}
	if !info.Mode().IsRegular() {
		return reject(fmt.Sprintf("%s is not a regular file", path), nil)
	}
	if info.Size() == 0 {
		return reject(fmt.Sprintf("%s is empty", path), nil)
	}
	if !SupportedExtension(path) {
		return reject(fmt.Sprintf("unsupported extension %q (supported: %s)",
			filepath.Ext(path), strings.Join(SupportedExtensions(), " ")), nil)
	}
	if err := validateSnapshot(snap); err != nil {
		return reject("settings snapshot", err)
	}
	return nil
}

func validateSnapshot(snap queue.ConfigSnapshot) error {
	if strings.TrimSpace(snap.Model) == "" {
		return fmt.Errorf("model is empty")
	}
	if strings.TrimSpace(snap.Language) == "" {
		return fmt.Errorf("language is empty")
	}
	if snap.MinSpeakers < 1 || snap.MaxSpeakers < 1 {
		return fmt.Errorf("speaker counts must be positive")
	}
	if snap.MinSpeakers > snap.MaxSpeakers {
		return fmt.Errorf("min_speakers %d exceeds max_speakers %d", snap.MinSpeakers, snap.MaxSpeakers)
	}
	return nil
}
