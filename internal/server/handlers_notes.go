package server

import (
	"net/http"

	"bookquest/internal/app"
	"bookquest/pkg/domain"
)

type createNoteRequest struct {
	SelectedText  string `json:"selected_text"`
	NoteContent   string `json:"note_content"`
	PageNumber    *int   `json:"page_number"`
	PositionStart int    `json:"position_start"`
	PositionEnd   int    `json:"position_end"`
	Color         string `json:"color"`
	IsPublic      bool   `json:"is_public"`
}

type updateNoteRequest struct {
	NoteContent *string `json:"note_content"`
	Color       *string `json:"color"`
	IsPublic    *bool   `json:"is_public"`
}

// handleNotePath dispatches /books/{id}/notes and below. rest holds the
// segments after "notes".
func (s *Server) handleNotePath(w http.ResponseWriter, r *http.Request, bookID string, rest []string) {
	if len(rest) == 0 {
		s.authenticated(func(w http.ResponseWriter, r *http.Request, user domain.User) {
			s.handleListNotes(w, r, user, bookID)
		}).ServeHTTP(w, r)
		return
	}
	if len(rest) != 1 || rest[0] == "" {
		http.NotFound(w, r)
		return
	}
	switch rest[0] {
	case "create":
		s.authenticated(func(w http.ResponseWriter, r *http.Request, user domain.User) {
			s.handleCreateNote(w, r, user, bookID)
		}).ServeHTTP(w, r)
	case "public":
		s.handleListPublicNotes(w, r, bookID)
	default:
		noteID := rest[0]
		s.authenticated(func(w http.ResponseWriter, r *http.Request, user domain.User) {
			s.handleNoteByID(w, r, user, bookID, noteID)
		}).ServeHTTP(w, r)
	}
}

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request, user domain.User, bookID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req createNoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	note, err := s.app.CreateNote(user.ID, bookID, app.CreateNoteInput{
		SelectedText:  req.SelectedText,
		NoteContent:   req.NoteContent,
		PageNumber:    req.PageNumber,
		PositionStart: req.PositionStart,
		PositionEnd:   req.PositionEnd,
		Color:         req.Color,
		IsPublic:      req.IsPublic,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request, user domain.User, bookID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	notes, err := s.app.ListNotes(user.ID, bookID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": notes, "count": len(notes)})
}

func (s *Server) handleListPublicNotes(w http.ResponseWriter, r *http.Request, bookID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	notes, err := s.app.ListPublicNotes(bookID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": notes, "count": len(notes)})
}

func (s *Server) handleNoteByID(w http.ResponseWriter, r *http.Request, user domain.User, bookID, noteID string) {
	switch r.Method {
	case http.MethodGet:
		note, err := s.app.GetNote(user.ID, bookID, noteID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, note)
	case http.MethodPut:
		var req updateNoteRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		note, err := s.app.UpdateNote(user.ID, bookID, noteID, app.UpdateNoteInput{
			NoteContent: req.NoteContent,
			Color:       req.Color,
			IsPublic:    req.IsPublic,
		})
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, note)
	case http.MethodDelete:
		if err := s.app.DeleteNote(user.ID, bookID, noteID); err != nil {
			writeAppError(w, err)
			return
		}
		writeMessage(w, http.StatusOK, "Note deleted successfully!")
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handlePersonalizedBook(w http.ResponseWriter, r *http.Request, user domain.User, bookID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	payload, err := s.app.GetPersonalizedBook(r.Context(), user.ID, bookID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleMyNotes(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	notes, err := s.app.ListMyNotes(user.ID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": notes, "count": len(notes)})
}

func (s *Server) handleMyNoteStats(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	stats, err := s.app.MyNoteStats(user.ID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
