package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"cubby/internal/services/retry"
)

func completionServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, req chatCompletionRequest)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		handler(w, r, req)
	}))
	t.Cleanup(server.Close)
	return server
}

func writeContent(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	payload := map[string]any{
		"choices": []any{
			map[string]any{"message": map[string]any{"content": content}},
		},
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func noSleep() retry.Policy {
	return retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Sleeper: func(time.Duration) {}}
}

func TestClientCompleteSendsPromptsWithoutResponseFormat(t *testing.T) {
	server := completionServer(t, func(w http.ResponseWriter, r *http.Request, req chatCompletionRequest) {
		if got := r.Header.Get("Authorization"); got != "Bearer test" {
			t.Errorf("unexpected auth header %q", got)
		}
		if r.Header.Get("X-Title") != "Cubby" {
			t.Errorf("expected X-Title header")
		}
		if req.ResponseFormat != nil {
			t.Errorf("Complete must not force a response format, got %v", req.ResponseFormat)
		}
		if req.MaxTokens != 4096 {
			t.Errorf("expected max_tokens 4096, got %d", req.MaxTokens)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "Transcript" {
			t.Errorf("unexpected messages %+v", req.Messages)
		}
		writeContent(t, w, `[{"name":"Intro"}]`)
	})

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo", Title: "Cubby", MaxTokens: 4096})
	content, err := client.Complete(context.Background(), "system", "Transcript")
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if content != `[{"name":"Intro"}]` {
		t.Fatalf("unexpected content %q", content)
	}
}

func TestClientCompleteRequiresAPIKey(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:0"})
	if _, err := client.Complete(context.Background(), "system", "user"); err == nil || !strings.Contains(err.Error(), "api key") {
		t.Fatalf("expected api key error, got %v", err)
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := completionServer(t, func(w http.ResponseWriter, r *http.Request, _ chatCompletionRequest) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("upstream"))
			return
		}
		writeContent(t, w, "[]")
	})

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL}, WithRetryPolicy(noSleep()))
	content, err := client.Complete(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if content != "[]" || calls.Load() != 2 {
		t.Fatalf("expected success on second call, got %q after %d calls", content, calls.Load())
	}
}

func TestClientRetriesEmptyContent(t *testing.T) {
	var calls atomic.Int32
	server := completionServer(t, func(w http.ResponseWriter, r *http.Request, _ chatCompletionRequest) {
		if calls.Add(1) < 3 {
			writeContent(t, w, "   ")
			return
		}
		writeContent(t, w, "[]")
	})

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL}, WithRetryPolicy(noSleep()))
	if _, err := client.Complete(context.Background(), "system", "user"); err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", calls.Load())
	}
}

func TestClientDoesNotRetryUnauthorized(t *testing.T) {
	var calls atomic.Int32
	server := completionServer(t, func(w http.ResponseWriter, r *http.Request, _ chatCompletionRequest) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
	})

	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL}, WithRetryPolicy(noSleep()))
	err := client.HealthCheck(context.Background())
	if err == nil {
		t.Fatal("expected health check to fail")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", calls.Load())
	}
}

func TestClientHealthCheckCodeFence(t *testing.T) {
	server := completionServer(t, func(w http.ResponseWriter, r *http.Request, req chatCompletionRequest) {
		if req.ResponseFormat["type"] != "json_object" {
			t.Errorf("health check should request json_object, got %v", req.ResponseFormat)
		}
		writeContent(t, w, "```json\n{\"ok\":true}\n```")
	})

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := map[string]string{
		"```json\n[1,2]\n```":     "[1,2]",
		"```\n[1]\n```":           "[1]",
		"```JSON [3]```":          "[3]",
		"[4]\n```":                "[4]",
		"  [5]  ":                 "[5]",
		"```javascript\n[6]\n```": "[6]",
		"```jsonc\n{\"a\":1}```":  "{\"a\":1}",
		"```\n42\n```":            "42",
	}
	for input, want := range tests {
		if got := StripCodeFence(input); got != want {
			t.Fatalf("StripCodeFence(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestDecodeLLMJSONExtractsObject(t *testing.T) {
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := DecodeLLMJSON("Sure! {\"ok\": true} hope that helps", &parsed); err != nil {
		t.Fatalf("DecodeLLMJSON returned error: %v", err)
	}
	if !parsed.OK {
		t.Fatal("expected ok=true")
	}
}

func TestSummarizeSnippet(t *testing.T) {
	if got := SummarizeSnippet("a\n\tb   c", 0); got != "a b c" {
		t.Fatalf("unexpected collapse %q", got)
	}
	if got := SummarizeSnippet(strings.Repeat("x", 20), 5); got != "xxxxx..." {
		t.Fatalf("unexpected truncation %q", got)
	}
	if got := SummarizeSnippet("  ", 5); got != "<empty>" {
		t.Fatalf("unexpected empty summary %q", got)
	}
}
