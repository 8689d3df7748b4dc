package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bookquest/internal/util"
	"bookquest/pkg/ai"
	"bookquest/pkg/domain"
)

const (
	defaultAssistantRole = "helpful assistant"
	titleMaxRunes        = 80
)

// SendResult is the outcome of one chat exchange.
type SendResult struct {
	Conversation domain.Conversation
	UserMessage  domain.ChatMessage
	Reply        domain.ChatMessage
}

// SendMessage relays a user message to the completion provider and persists
// the exchange. An empty conversation ID starts a new conversation.
func (a *App) SendMessage(ctx context.Context, userID, conversationID, message, role string) (SendResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return SendResult{}, Validation("Message is required.")
	}

	conv, err := a.ensureConversation(userID, conversationID, message, role)
	if err != nil {
		return SendResult{}, err
	}
	if !conv.IsActive {
		return SendResult{}, Validation("This conversation has ended.")
	}

	history, err := a.store.ListRecentMessages(conv.ID, a.chatWindow)
	if err != nil {
		return SendResult{}, Internal("could not load conversation history", err)
	}
	prompt := buildHistory(conv.Role, history, message)

	callCtx, cancel := context.WithTimeout(ctx, a.chatTimeout)
	defer cancel()
	completion, err := a.gen.Complete(callCtx, prompt)
	if err != nil {
		// The reader still gets an answer; the exchange records the apology
		// so they can retry in context.
		slog.Warn("chat completion failed", "conversation_id", conv.ID, "error", err)
		completion = ai.Completion{Content: ai.FallbackReply}
	}

	now := time.Now().UTC()
	userMsg := domain.ChatMessage{
		ID:             util.NewID(),
		ConversationID: conv.ID,
		Role:           "user",
		Content:        message,
		CreatedAt:      now,
	}
	reply := domain.ChatMessage{
		ID:             util.NewID(),
		ConversationID: conv.ID,
		Role:           "assistant",
		Content:        completion.Content,
		Usage:          completion.Usage,
		CreatedAt:      now.Add(time.Millisecond),
	}
	if err := a.store.AppendExchange(conv.ID, userMsg, reply); err != nil {
		return SendResult{}, Internal("could not persist exchange", err)
	}
	return SendResult{Conversation: conv, UserMessage: userMsg, Reply: reply}, nil
}

// ensureConversation loads and authorizes an existing conversation, or
// creates one titled after the opening message.
func (a *App) ensureConversation(userID, conversationID, message, role string) (domain.Conversation, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID != "" {
		conv, ok, err := a.store.GetConversation(conversationID)
		if err != nil {
			return domain.Conversation{}, Internal("could not look up conversation", err)
		}
		if !ok || conv.UserID != userID {
			return domain.Conversation{}, NotFound("Conversation not found.")
		}
		return conv, nil
	}

	role = strings.TrimSpace(role)
	if role == "" {
		role = defaultAssistantRole
	}
	now := time.Now().UTC()
	conv := domain.Conversation{
		ID:        util.NewID(),
		UserID:    userID,
		Title:     conversationTitle(message),
		Role:      role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.SaveConversation(conv); err != nil {
		return domain.Conversation{}, Internal("could not create conversation", err)
	}
	return conv, nil
}

func conversationTitle(message string) string {
	runes := []rune(strings.TrimSpace(message))
	if len(runes) > titleMaxRunes {
		return string(runes[:titleMaxRunes])
	}
	return string(runes)
}

// buildHistory assembles the prompt: a system turn from the conversation
// role, the recent window filtered to recognized roles with non-empty
// content, and the new user message last.
func buildHistory(role string, history []domain.ChatMessage, message string) []ai.Message {
	prompt := make([]ai.Message, 0, len(history)+2)
	prompt = append(prompt, ai.Message{
		Role:    "system",
		Content: fmt.Sprintf("You are a %s for a book reading platform. Answer questions about books, authors, and reading.", role),
	})
	for _, m := range history {
		if m.Role != "user" && m.Role != "assistant" {
			continue
		}
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		prompt = append(prompt, ai.Message{Role: m.Role, Content: m.Content})
	}
	prompt = append(prompt, ai.Message{Role: "user", Content: message})
	return prompt
}

// ListConversations returns the caller's conversations, most recently
// active first, capped at 50.
func (a *App) ListConversations(userID string) ([]domain.Conversation, error) {
	convs, err := a.store.ListConversationsByUser(userID)
	if err != nil {
		return nil, Internal("could not list conversations", err)
	}
	if len(convs) > a.convListCap {
		convs = convs[:a.convListCap]
	}
	return convs, nil
}

// ListConversationMessages returns the most recent limit messages of the
// caller's conversation in chronological order. limit <= 0 means all.
func (a *App) ListConversationMessages(userID, conversationID string, limit int) ([]domain.ChatMessage, error) {
	conv, ok, err := a.store.GetConversation(conversationID)
	if err != nil {
		return nil, Internal("could not look up conversation", err)
	}
	if !ok || conv.UserID != userID {
		return nil, NotFound("Conversation not found.")
	}
	if limit > 0 {
		msgs, err := a.store.ListRecentMessages(conversationID, limit)
		if err != nil {
			return nil, Internal("could not list messages", err)
		}
		return msgs, nil
	}
	msgs, err := a.store.ListMessages(conversationID)
	if err != nil {
		return nil, Internal("could not list messages", err)
	}
	return msgs, nil
}

// EndConversation closes the caller's conversation. Ending an already
// ended conversation is a no-op.
func (a *App) EndConversation(userID, conversationID string) (domain.Conversation, error) {
	conv, ok, err := a.store.GetConversation(conversationID)
	if err != nil {
		return domain.Conversation{}, Internal("could not look up conversation", err)
	}
	if !ok || conv.UserID != userID {
		return domain.Conversation{}, NotFound("Conversation not found.")
	}
	if !conv.IsActive {
		return conv, nil
	}
	conv.IsActive = false
	conv.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveConversation(conv); err != nil {
		return domain.Conversation{}, Internal("could not end conversation", err)
	}
	return conv, nil
}
