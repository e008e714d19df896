package preflight

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"

	"nightscribe/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// RunAll executes the startup checks for the given config: directory access
// for every configured path, required binaries, and diarization credentials.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDirectoryAccess("Temp directory", cfg.Paths.TempDir),
	}
	if cfg.Paths.WatchFolder != "" {
		results = append(results, CheckDirectoryAccess("Watch folder", cfg.Paths.WatchFolder))
	}

	results = append(results,
		CheckBinary("FFmpeg", "ffmpeg", "Required for audio normalization", false),
		CheckBinary("WhisperX", "whisperx", "Required for transcription and diarization", false),
	)

	results = append(results, CheckHFToken(cfg))
	return results
}

// RequiredFailures filters a check run down to the failures that must block
// daemon startup. Optional checks never appear here.
func RequiredFailures(results []Result) []Result {
	var failed []Result
	for _, result := range results {
		if !result.Passed && !result.Optional {
			failed = append(failed, result)
		}
	}
	return failed
}

// CheckDirectoryAccess verifies that the directory exists and is readable,
// writable, and traversable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckBinary verifies that a command resolves on PATH.
func CheckBinary(name, command, description string, optional bool) Result {
	command = strings.TrimSpace(command)
	if command == "" {
		return Result{Name: name, Optional: optional, Detail: "command not configured"}
	}
	resolved, err := exec.LookPath(command)
	if err != nil {
		detail := fmt.Sprintf("binary %q not found", command)
		if description != "" {
			detail = fmt.Sprintf("%s (%s)", detail, strings.ToLower(description[:1])+description[1:])
		}
		return Result{Name: name, Optional: optional, Detail: detail}
	}
	return Result{Name: name, Passed: true, Optional: optional, Detail: resolved}
}

// CheckHFToken reports whether a Hugging Face token is available for gated
// diarization models. Missing credentials do not block startup: whisperx
// reports the real failure per job, and ungated setups run without one.
func CheckHFToken(cfg *config.Config) Result {
	const name = "Hugging Face token"
	if cfg.ResolveHFToken() == "" {
		return Result{Name: name, Optional: true, Detail: "not set (gated diarization models will fail)"}
	}
	return Result{Name: name, Passed: true, Optional: true, Detail: "configured"}
}
