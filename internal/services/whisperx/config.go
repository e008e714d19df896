package whisperx

import "strings"

// Options captures the per-job engine settings. Jobs carry their own frozen
// copy, so two queued jobs may run with different models.
type Options struct {
	Model              string
	Language           string
	Device             string
	ComputeType        string
	VADMethod          string
	DiarizeModel       string
	AlignFallbackModel string
	MinSpeakers        int
	MaxSpeakers        int
	ChunkSize          int
	Threads            int
	// HFToken authorizes gated diarization models. It is passed on the
	// command line but always masked in logs.
	HFToken string
}

// Engine defaults and command names.
const (
	Command           = "whisperx"
	DefaultModel      = "large-v3"
	OutputFormat      = "json"
	CPUDevice         = "cpu"
	CUDADevice        = "cuda"
	CPUComputeType    = "float32"
	VADMethodPyannote = "pyannote"
	VADMethodSilero   = "silero"
)

// modelAliasPrefix maps Hugging Face hub identifiers onto the short names the
// engine CLI expects, so configs may use either form.
const modelAliasPrefix = "openai/whisper-"

// NormalizeModel resolves hub-style model identifiers to engine short names.
func NormalizeModel(model string) string {
	model = strings.TrimSpace(model)
	if model == "" {
		return DefaultModel
	}
	if short, ok := strings.CutPrefix(model, modelAliasPrefix); ok && short != "" {
		return short
	}
	return model
}
