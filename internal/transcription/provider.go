package transcription

import (
	"context"

	"cubby/internal/services/whisper"
	"cubby/internal/services/whisperx"
)

// Utterance is one timed piece of recognized speech, relative to the start
// of the audio file it came from.
type Utterance struct {
	Start float64
	End   float64
	Text  string
}

// Provider turns an audio file into utterances.
type Provider interface {
	Transcribe(ctx context.Context, audioPath string) ([]Utterance, error)
}

// WhisperProvider adapts the hosted Whisper API client.
type WhisperProvider struct {
	Client *whisper.Client
}

func (p WhisperProvider) Transcribe(ctx context.Context, audioPath string) ([]Utterance, error) {
	result, err := p.Client.TranscribeFile(ctx, audioPath)
	if err != nil {
		return nil, err
	}
	out := make([]Utterance, 0, len(result.Segments))
	for _, seg := range result.Segments {
		out = append(out, Utterance{Start: seg.Start, End: seg.End, Text: seg.Text})
	}
	return out, nil
}

func (p WhisperProvider) HealthCheck(ctx context.Context) error {
	return p.Client.HealthCheck(ctx)
}

// WhisperXProvider adapts the local WhisperX CLI.
type WhisperXProvider struct {
	Service *whisperx.Service
}

func (p WhisperXProvider) Transcribe(ctx context.Context, audioPath string) ([]Utterance, error) {
	segments, err := p.Service.Transcribe(ctx, audioPath)
	if err != nil {
		return nil, err
	}
	out := make([]Utterance, 0, len(segments))
	for _, seg := range segments {
		out = append(out, Utterance{Start: seg.Start, End: seg.End, Text: seg.Text})
	}
	return out, nil
}
