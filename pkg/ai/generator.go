// Package ai talks to chat completion providers.
package ai

import "context"

// FallbackReply is returned to readers when the completion provider fails.
// The conversation still records the exchange so the reader can retry.
const FallbackReply = "Sorry, I could not respond at the moment."

// Message is one turn of a conversation sent to the provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completion is the provider's reply plus token accounting when available.
type Completion struct {
	Content string
	Usage   map[string]int
}

// Generator produces an assistant reply for a conversation history.
// The history must already be windowed and ordered oldest first.
type Generator interface {
	Complete(ctx context.Context, history []Message) (Completion, error)
}
