package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	// DataDir holds durable daemon state: the queue snapshot, lock file,
	// and control socket.
	DataDir string `toml:"data_dir"`
	// OutputDir is the root under which each job gets its artifact directory.
	OutputDir string `toml:"output_dir"`
	// WatchFolder is scanned for new inputs. Empty disables the scanner.
	WatchFolder string `toml:"watch_folder"`
	LogDir      string `toml:"log_dir"`
	TempDir     string `toml:"temp_dir"`
}

// Transcription contains engine settings captured into each job at enqueue.
type Transcription struct {
	Model              string `toml:"model"`
	Language           string `toml:"language"`
	Device             string `toml:"device"`
	ComputeType        string `toml:"compute_type"`
	VADMethod          string `toml:"vad_method"`
	DiarizeModel       string `toml:"diarize_model"`
	AlignFallbackModel string `toml:"align_fallback_model"`
	MinSpeakers        int    `toml:"min_speakers"`
	MaxSpeakers        int    `toml:"max_speakers"`
	ChunkSize          int    `toml:"chunk_size"`
	Threads            int    `toml:"threads"`
	// HFToken authorizes gated diarization models. The HF_TOKEN environment
	// variable takes precedence over this value.
	HFToken string `toml:"hf_token"`
}

// Workflow contains daemon timing intervals, in seconds.
type Workflow struct {
	WatchInterval      int `toml:"watch_interval"`
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for nightscribe.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Transcription Transcription `toml:"transcription"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/nightscribe/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. A missing file is not
// an error: defaults apply.
func Load(path string) (*Config, string, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}

	return &cfg, resolvedPath, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		path = os.Getenv("NIGHTSCRIBE_CONFIG")
	}
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

// StateFile is the persisted queue snapshot location.
func (c *Config) StateFile() string {
	return filepath.Join(c.Paths.DataDir, "queue_state.json")
}

// LockFile guards against concurrent daemon instances.
func (c *Config) LockFile() string {
	return filepath.Join(c.Paths.DataDir, "nightscribed.lock")
}

// SocketPath is the daemon control socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.DataDir, "nightscribe.sock")
}

// LogFile is the daemon log destination.
func (c *Config) LogFile() string {
	return filepath.Join(c.Paths.LogDir, "nightscribe.log")
}

// ResolveHFToken returns the Hugging Face token, preferring the environment.
func (c *Config) ResolveHFToken() string {
	if token := os.Getenv("HF_TOKEN"); token != "" {
		return token
	}
	return c.Transcription.HFToken
}

// EnsureDirectories creates all configured directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.OutputDir, c.Paths.LogDir, c.Paths.TempDir}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// SampleConfig returns the embedded sample configuration file contents.
func SampleConfig() string {
	return sampleConfig
}

// WriteSample writes the sample configuration to the given path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(expanded, []byte(sampleConfig), 0o644)
}
