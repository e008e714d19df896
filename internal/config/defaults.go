package config

import "runtime"

const (
	defaultDataDir   = "~/.local/share/nightscribe"
	defaultOutputDir = "~/transcripts"
	defaultLogDir    = "~/.local/share/nightscribe/logs"
	defaultTempDir   = "~/.local/share/nightscribe/tmp"

	defaultModel              = "large-v3"
	defaultLanguage           = "nl"
	defaultDevice             = "cpu"
	defaultComputeType        = "float32"
	defaultVADMethod          = "pyannote"
	defaultDiarizeModel       = "pyannote/speaker-diarization-3.1"
	defaultAlignFallbackModel = "jonatasgrosman/wav2vec2-large-xlsr-53-dutch"
	defaultMinSpeakers        = 2
	defaultMaxSpeakers        = 4
	defaultChunkSize          = 15

	defaultWatchInterval      = 30
	defaultQueuePollInterval  = 5
	defaultErrorRetryInterval = 10

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

func defaultThreads() int {
	logical := runtime.NumCPU()
	if logical-2 > 4 {
		return logical - 2
	}
	return 4
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			TempDir:   defaultTempDir,
		},
		Transcription: Transcription{
			Model:              defaultModel,
			Language:           defaultLanguage,
			Device:             defaultDevice,
			ComputeType:        defaultComputeType,
			VADMethod:          defaultVADMethod,
			DiarizeModel:       defaultDiarizeModel,
			AlignFallbackModel: defaultAlignFallbackModel,
			MinSpeakers:        defaultMinSpeakers,
			MaxSpeakers:        defaultMaxSpeakers,
			ChunkSize:          defaultChunkSize,
			Threads:            defaultThreads(),
		},
		Workflow: Workflow{
			WatchInterval:      defaultWatchInterval,
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
