package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAICompatGeneratorComplete(t *testing.T) {
	var gotReq oaiChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("authorization header = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "Call me Ishmael."}},
			},
			"usage": map[string]int{
				"prompt_tokens":     12,
				"completion_tokens": 4,
				"total_tokens":      16,
			},
		})
	}))
	defer srv.Close()

	gen := NewOpenAICompatGenerator(srv.URL, "test-key", "llama-3.3-70b-versatile")
	out, err := gen.Complete(context.Background(), []Message{
		{Role: "system", Content: "You discuss books."},
		{Role: "user", Content: "How does Moby-Dick open?"},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out.Content != "Call me Ishmael." {
		t.Fatalf("content = %q", out.Content)
	}
	if out.Usage["total_tokens"] != 16 {
		t.Fatalf("usage = %v", out.Usage)
	}
	if gotReq.Model != "llama-3.3-70b-versatile" || len(gotReq.Messages) != 2 {
		t.Fatalf("request = %+v", gotReq)
	}
	if gotReq.MaxTokens != 2048 {
		t.Fatalf("max_tokens = %d", gotReq.MaxTokens)
	}
}

func TestOpenAICompatGeneratorAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "rate limit exceeded", "type": "rate_limit"},
		})
	}))
	defer srv.Close()

	gen := NewOpenAICompatGenerator(srv.URL, "", "m")
	_, err := gen.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err == nil {
		t.Fatalf("expected api error")
	}
}

func TestOpenAICompatGeneratorDefaults(t *testing.T) {
	gen := NewOpenAICompatGenerator("", "", "")
	if gen.baseURL != DefaultBaseURL {
		t.Fatalf("baseURL = %q", gen.baseURL)
	}
	if gen.model == "" {
		t.Fatalf("expected default model")
	}
	if _, err := gen.Complete(context.Background(), nil); err == nil {
		t.Fatalf("expected error for empty history")
	}
}
