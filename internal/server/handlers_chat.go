package server

import (
	"net/http"
	"strconv"
	"strings"

	"bookquest/pkg/domain"
)

type chatSendRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
	Role           string `json:"role"`
}

type chatSendResponse struct {
	Conversation domain.Conversation `json:"conversation"`
	Message      domain.ChatMessage  `json:"message"`
	Reply        domain.ChatMessage  `json:"reply"`
}

func (s *Server) handleChatSend(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req chatSendRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	res, err := s.app.SendMessage(r.Context(), user.ID, req.ConversationID, req.Message, req.Role)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chatSendResponse{
		Conversation: res.Conversation,
		Message:      res.UserMessage,
		Reply:        res.Reply,
	})
}

func (s *Server) handleChatConversations(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	convs, err := s.app.ListConversations(user.ID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": convs, "count": len(convs)})
}

// handleChatConversationPath serves /chat/conversations/{id}/messages and
// /chat/conversations/{id}/end.
func (s *Server) handleChatConversationPath(w http.ResponseWriter, r *http.Request, user domain.User) {
	path := strings.TrimPrefix(r.URL.Path, "/chat/conversations/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	convID := parts[0]
	switch parts[1] {
	case "messages":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 0 {
				writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
				return
			}
			limit = parsed
		}
		msgs, err := s.app.ListConversationMessages(user.ID, convID, limit)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": msgs, "count": len(msgs)})
	case "end":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		conv, err := s.app.EndConversation(user.ID, convID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, conv)
	default:
		http.NotFound(w, r)
	}
}
