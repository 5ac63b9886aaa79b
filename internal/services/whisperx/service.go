package whisperx

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Runner executes an external command.
type Runner func(ctx context.Context, name string, args ...string) error

// Service runs local WhisperX transcription through uvx.
type Service struct {
	cfg           Config
	commandRunner Runner
}

// NewService creates a WhisperX service with the given configuration.
func NewService(cfg Config) *Service {
	return &Service{cfg: cfg}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner Runner) *Service {
	s.commandRunner = runner
	return s
}

// Model returns the configured model name for logging.
func (s *Service) Model() string {
	return s.cfg.model()
}

func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec

	// Torch 2.6 changed torch.load default to weights_only=true, breaking WhisperX/pyannote.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}

	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// Transcribe runs WhisperX on audioPath and returns its segments. Output files
// are written next to the audio in a <name>.whisperx directory.
func (s *Service) Transcribe(ctx context.Context, audioPath string) ([]Segment, error) {
	if strings.TrimSpace(audioPath) == "" {
		return nil, fmt.Errorf("whisperx: source path required")
	}
	baseName := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	outputDir := filepath.Join(filepath.Dir(audioPath), baseName+".whisperx")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("whisperx: ensure output dir: %w", err)
	}

	if err := s.run(ctx, UVXCommand, s.buildArgs(audioPath, outputDir)...); err != nil {
		return nil, fmt.Errorf("whisperx: %w", err)
	}

	segments, err := LoadSegments(filepath.Join(outputDir, baseName+".json"))
	if err != nil {
		return nil, fmt.Errorf("whisperx: %w", err)
	}
	return segments, nil
}

// buildArgs constructs the uvx command arguments for WhisperX.
func (s *Service) buildArgs(source, outputDir string) []string {
	args := append(make([]string, 0, 36), s.cfg.indexArgs()...)
	args = append(args, "whisperx", source, "--model", s.cfg.model(), "--output_dir", outputDir)
	for _, flag := range decodeFlags {
		args = append(args, flag[0], flag[1])
	}

	vad := s.cfg.vadMethod()
	args = append(args, "--vad_method", vad)
	if vad == VADMethodPyannote && s.cfg.HFToken != "" {
		args = append(args, "--hf_token", s.cfg.HFToken)
	}
	if lang := strings.ToLower(strings.TrimSpace(s.cfg.Language)); len(lang) == 2 {
		args = append(args, "--language", lang)
	}
	return append(args, s.cfg.deviceArgs()...)
}

// Segment represents a transcribed segment from WhisperX JSON output.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type whisperXPayload struct {
	Segments []Segment `json:"segments"`
}

// LoadSegments loads segments from a WhisperX JSON file.
func LoadSegments(jsonPath string) ([]Segment, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, err
	}
	var payload whisperXPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse whisperx json: %w", err)
	}
	return payload.Segments, nil
}
