package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.OutputDir == "" {
		return errors.New("paths.output_dir must be set")
	}
	return nil
}

func (c *Config) validateTranscription() error {
	t := c.Transcription
	switch t.Device {
	case "cpu", "cuda":
	default:
		return fmt.Errorf("transcription.device must be cpu or cuda, got %q", t.Device)
	}
	if t.MinSpeakers < 1 {
		return errors.New("transcription.min_speakers must be a positive integer")
	}
	if t.MaxSpeakers < 1 {
		return errors.New("transcription.max_speakers must be a positive integer")
	}
	if t.MinSpeakers > t.MaxSpeakers {
		return fmt.Errorf("transcription.min_speakers (%d) must not exceed max_speakers (%d)", t.MinSpeakers, t.MaxSpeakers)
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.WatchInterval < 1 {
		return errors.New("workflow.watch_interval must be at least 1 second")
	}
	if c.Workflow.QueuePollInterval < 1 {
		return errors.New("workflow.queue_poll_interval must be at least 1 second")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
		return nil
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
}
