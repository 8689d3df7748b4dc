package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL points at Groq's OpenAI-compatible API.
const DefaultBaseURL = "https://api.groq.com/openai/v1"

const defaultModel = "llama-3.3-70b-versatile"

// OpenAICompatGenerator calls any OpenAI-compatible /chat/completions
// endpoint. Groq is the default provider but vLLM, OpenRouter, and
// self-hosted models work the same way.
type OpenAICompatGenerator struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewOpenAICompatGenerator builds a Generator. baseURL should include the
// API version prefix, e.g. "https://api.groq.com/openai/v1"; empty selects
// the Groq default. apiKey can be empty for local models that do not
// require authentication.
func NewOpenAICompatGenerator(baseURL, apiKey, model string) *OpenAICompatGenerator {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = defaultModel
	}
	return &OpenAICompatGenerator{
		baseURL: baseURL,
		apiKey:  strings.TrimSpace(apiKey),
		model:   model,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// Complete implements Generator using the OpenAI chat completions API.
func (g *OpenAICompatGenerator) Complete(ctx context.Context, history []Message) (Completion, error) {
	if len(history) == 0 {
		return Completion{}, fmt.Errorf("completion requires at least one message")
	}

	reqBody := oaiChatRequest{
		Model:       g.model,
		Messages:    history,
		Temperature: 0.7,
		MaxTokens:   2048,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return Completion{}, err
	}

	url := g.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Completion{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return Completion{}, fmt.Errorf("chat completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp oaiErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error.Message != "" {
			return Completion{}, fmt.Errorf("chat completion api error: %s", errResp.Error.Message)
		}
		return Completion{}, fmt.Errorf("chat completion api error: %s", resp.Status)
	}

	var chatResp oaiChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return Completion{}, fmt.Errorf("chat completion decode: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return Completion{}, fmt.Errorf("empty response from completion api")
	}
	text := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if text == "" {
		return Completion{}, fmt.Errorf("empty response from completion api")
	}

	usage := map[string]int{}
	if chatResp.Usage.TotalTokens > 0 {
		usage["prompt_tokens"] = chatResp.Usage.PromptTokens
		usage["completion_tokens"] = chatResp.Usage.CompletionTokens
		usage["total_tokens"] = chatResp.Usage.TotalTokens
	}
	return Completion{Content: text, Usage: usage}, nil
}

// OpenAI-compatible request/response types.

type oaiChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type oaiChatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type oaiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}
