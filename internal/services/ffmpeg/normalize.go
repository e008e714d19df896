package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"nightscribe/internal/services"
)

// Command is the default ffmpeg binary resolved from PATH.
const Command = "ffmpeg"

// Normalizer converts source recordings into mono 16 kHz PCM WAV files.
type Normalizer struct {
	binary        string
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewNormalizer returns a Normalizer using the given ffmpeg binary, or the
// PATH default when empty.
func NewNormalizer(binary string) *Normalizer {
	if strings.TrimSpace(binary) == "" {
		binary = Command
	}
	return &Normalizer{binary: binary}
}

// WithCommandRunner sets a custom command runner (for testing).
func (n *Normalizer) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	n.commandRunner = runner
}

// Normalize decodes the source into a mono 16 kHz WAV at dest. Video streams
// are stripped, so screen recordings and phone videos normalize the same way
// plain audio does.
func (n *Normalizer) Normalize(ctx context.Context, source, dest string) error {
	if strings.TrimSpace(source) == "" {
		return services.Wrap(services.ErrNormalization, "ffmpeg", "normalize", "source path required", nil)
	}
	if strings.TrimSpace(dest) == "" {
		return services.Wrap(services.ErrNormalization, "ffmpeg", "normalize", "destination path required", nil)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return services.Wrap(services.ErrNormalization, "ffmpeg", "normalize", "ensure destination directory", err)
	}

	args := buildNormalizeArgs(source, dest)
	if err := n.run(ctx, args); err != nil {
		return services.Wrap(services.ErrNormalization, "ffmpeg", "normalize", filepath.Base(source), err)
	}

	info, err := os.Stat(dest)
	if err != nil {
		return services.Wrap(services.ErrNormalization, "ffmpeg", "normalize", "output missing after conversion", err)
	}
	if info.Size() == 0 {
		return services.Wrap(services.ErrNormalization, "ffmpeg", "normalize", "conversion produced an empty file", nil)
	}
	return nil
}

func (n *Normalizer) run(ctx context.Context, args []string) error {
	if n.commandRunner != nil {
		return n.commandRunner(ctx, n.binary, args...)
	}
	cmd := exec.CommandContext(ctx, n.binary, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", n.binary, err, strings.TrimSpace(string(output)))
	}
	return nil
}

func buildNormalizeArgs(source, dest string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		dest,
	}
}
