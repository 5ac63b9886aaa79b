package whisperx

// Config selects the model and hardware for a WhisperX run.
type Config struct {
	Model       string
	CUDAEnabled bool
	// VADMethod is "silero" (default) or "pyannote". Pyannote needs HFToken.
	VADMethod string
	HFToken   string
	// Language is an ISO 639-1 hint; empty lets WhisperX detect it.
	Language string
}

const (
	DefaultModel      = "large-v3"
	VADMethodSilero   = "silero"
	VADMethodPyannote = "pyannote"

	CUDAIndexURL = "https://download.pytorch.org/whl/cu128"
	PypiIndexURL = "https://pypi.org/simple"

	// UVXCommand runs WhisperX from an ephemeral environment.
	UVXCommand = "uvx"
)

// decodeFlags are passed on every run.
var decodeFlags = [][2]string{
	{"--batch_size", "4"},
	{"--output_format", "json"},
	{"--segment_resolution", "sentence"},
	{"--chunk_size", "15"},
	{"--vad_onset", "0.08"},
	{"--vad_offset", "0.07"},
	{"--beam_size", "5"},
	{"--temperature", "0.0"},
}

func (c Config) model() string {
	if c.Model != "" {
		return c.Model
	}
	return DefaultModel
}

func (c Config) vadMethod() string {
	if c.VADMethod != "" {
		return c.VADMethod
	}
	return VADMethodSilero
}

func (c Config) indexArgs() []string {
	if c.CUDAEnabled {
		return []string{"--index-url", CUDAIndexURL, "--extra-index-url", PypiIndexURL}
	}
	return []string{"--index-url", PypiIndexURL}
}

func (c Config) deviceArgs() []string {
	if c.CUDAEnabled {
		return []string{"--device", "cuda"}
	}
	return []string{"--device", "cpu", "--compute_type", "float32"}
}
