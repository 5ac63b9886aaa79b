package daemonrun

import (
	"testing"

	"cubby/internal/config"
	"cubby/internal/logging"
	"cubby/internal/mediastore"
	"cubby/internal/queue"
	"cubby/internal/testsupport"
	"cubby/internal/transcription"
)

func TestBuildRegistryCoversEveryKind(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	media, err := mediastore.NewLocal(cfg.Storage.LocalRoot)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	registry, err := BuildRegistry(cfg, store, media, logging.NewNop())
	if err != nil {
		t.Fatalf("BuildRegistry: %v", err)
	}
	kinds := registry.Kinds()
	if len(kinds) != len(queue.JobKinds()) {
		t.Fatalf("registered %v, want %v", kinds, queue.JobKinds())
	}
	for _, kind := range queue.JobKinds() {
		if _, ok := registry.Lookup(kind); !ok {
			t.Fatalf("kind %s not registered", kind)
		}
	}
}

func TestBuildRegistryRequiresStore(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := BuildRegistry(cfg, nil, nil, logging.NewNop()); err == nil {
		t.Fatal("expected error without store")
	}
}

func TestNewTranscriptionProvider(t *testing.T) {
	p, err := NewTranscriptionProvider(config.Transcription{Provider: config.ProviderWhisper, APIKey: "k"})
	if err != nil {
		t.Fatalf("whisper provider: %v", err)
	}
	if _, ok := p.(transcription.WhisperProvider); !ok {
		t.Fatalf("expected WhisperProvider, got %T", p)
	}

	p, err = NewTranscriptionProvider(config.Transcription{Provider: config.ProviderWhisperX, WhisperXModel: "small"})
	if err != nil {
		t.Fatalf("whisperx provider: %v", err)
	}
	if _, ok := p.(transcription.WhisperXProvider); !ok {
		t.Fatalf("expected WhisperXProvider, got %T", p)
	}

	if _, err := NewTranscriptionProvider(config.Transcription{Provider: "deepgram"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
