package whisperx

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"nightscribe/internal/services"
)

// Service invokes the WhisperX CLI for transcription with diarization.
type Service struct {
	binary        string
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewService returns a Service using the given engine binary, or the PATH
// default when empty.
func NewService(binary string) *Service {
	if strings.TrimSpace(binary) == "" {
		binary = Command
	}
	return &Service{binary: binary}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	s.commandRunner = runner
}

// Result locates the engine's JSON output for a completed run.
type Result struct {
	JSONPath string
}

// Transcribe runs the engine against a normalized WAV file and returns the
// location of the segment JSON it produced.
func (s *Service) Transcribe(ctx context.Context, source, outputDir string, opts Options) (Result, error) {
	var result Result

	if strings.TrimSpace(source) == "" {
		return result, services.Wrap(services.ErrEngine, "whisperx", "transcribe", "source path required", nil)
	}
	if strings.TrimSpace(outputDir) == "" {
		outputDir = filepath.Dir(source)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return result, services.Wrap(services.ErrEngine, "whisperx", "transcribe", "ensure output dir", err)
	}

	args := BuildArgs(source, outputDir, opts)
	if err := s.run(ctx, args); err != nil {
		return result, services.Wrap(services.ErrEngine, "whisperx", "transcribe", filepath.Base(source), err)
	}

	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	result.JSONPath = filepath.Join(outputDir, base+".json")
	if _, err := os.Stat(result.JSONPath); err != nil {
		return result, services.Wrap(services.ErrEngine, "whisperx", "transcribe", "engine produced no JSON output", err)
	}
	return result, nil
}

func (s *Service) run(ctx context.Context, args []string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, s.binary, args...)
	}
	cmd := exec.CommandContext(ctx, s.binary, args...) //nolint:gosec

	// Torch 2.6 changed torch.load default to weights_only=true, breaking
	// WhisperX/pyannote checkpoint loading. Force the legacy behavior.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}

	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", s.binary, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// BuildArgs constructs the engine command line for a run.
func BuildArgs(source, outputDir string, opts Options) []string {
	device := opts.Device
	if device == "" {
		device = CPUDevice
	}
	computeType := opts.ComputeType
	if computeType == "" && device == CPUDevice {
		computeType = CPUComputeType
	}
	vadMethod := strings.ToLower(strings.TrimSpace(opts.VADMethod))
	if vadMethod == "" {
		vadMethod = VADMethodPyannote
	}

	args := make([]string, 0, 32)
	args = append(args,
		source,
		"--model", NormalizeModel(opts.Model),
		"--device", device,
		"--vad_method", vadMethod,
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
	)
	if opts.Language != "" {
		args = append(args, "--language", opts.Language)
	}
	if computeType != "" {
		args = append(args, "--compute_type", computeType)
	}
	if opts.ChunkSize > 0 {
		args = append(args, "--chunk_size", strconv.Itoa(opts.ChunkSize))
	}
	if opts.Threads > 0 {
		args = append(args, "--threads", strconv.Itoa(opts.Threads))
	}
	if opts.AlignFallbackModel != "" {
		args = append(args, "--align_model", opts.AlignFallbackModel)
	}

	args = append(args, "--diarize")
	if opts.DiarizeModel != "" {
		args = append(args, "--diarize_model", opts.DiarizeModel)
	}
	if opts.MinSpeakers > 0 {
		args = append(args, "--min_speakers", strconv.Itoa(opts.MinSpeakers))
	}
	if opts.MaxSpeakers > 0 {
		args = append(args, "--max_speakers", strconv.Itoa(opts.MaxSpeakers))
	}
	if opts.HFToken != "" {
		args = append(args, "--hf_token", opts.HFToken)
	}
	return args
}

// MaskedCommand renders a command line for logging with credential values
// replaced.
func MaskedCommand(name string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, name)
	mask := false
	for _, arg := range args {
		if mask {
			parts = append(parts, "***")
			mask = false
			continue
		}
		if arg == "--hf_token" {
			mask = true
		}
		parts = append(parts, arg)
	}
	return strings.Join(parts, " ")
}
