package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	defaultOllamaBaseURL = "http://127.0.0.1:11434"
	defaultOllamaModel   = "llama3.1"
)

// OllamaGenerator produces replies through a local Ollama server's
// /api/chat endpoint. It is the offline alternative to the hosted
// OpenAI-compatible provider.
type OllamaGenerator struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOllamaGenerator builds an Ollama-backed Generator.
func NewOllamaGenerator(baseURL, model string) *OllamaGenerator {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = defaultOllamaModel
	}
	return &OllamaGenerator{
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// Complete implements Generator using Ollama /api/chat.
func (g *OllamaGenerator) Complete(ctx context.Context, history []Message) (Completion, error) {
	if len(history) == 0 {
		return Completion{}, errors.New("completion requires at least one message")
	}
	reqBody := ollamaChatRequest{
		Model:    g.model,
		Messages: history,
		Stream:   false,
	}
	var resp ollamaChatResponse
	if err := g.doJSON(ctx, "/api/chat", reqBody, &resp); err != nil {
		return Completion{}, fmt.Errorf("ollama generate: %w", err)
	}
	content := strings.TrimSpace(resp.Message.Content)
	if content == "" {
		return Completion{}, errors.New("empty response from ollama")
	}
	usage := map[string]int{}
	if resp.PromptEvalCount > 0 {
		usage["prompt_tokens"] = resp.PromptEvalCount
	}
	if resp.EvalCount > 0 {
		usage["completion_tokens"] = resp.EvalCount
	}
	if len(usage) == 0 {
		usage = nil
	}
	return Completion{Content: content, Usage: usage}, nil
}

func (g *OllamaGenerator) doJSON(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp ollamaErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error != "" {
			return fmt.Errorf("ollama api error: %s", errResp.Error)
		}
		return fmt.Errorf("ollama api error: %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type ollamaChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type ollamaChatResponse struct {
	Message         Message `json:"message"`
	PromptEvalCount int     `json:"prompt_eval_count"`
	EvalCount       int     `json:"eval_count"`
}

type ollamaErrorResponse struct {
	Error string `json:"error"`
}
