package server

import (
	"fmt"
	"net/http"
	"strings"

	"bookquest/pkg/domain"
)

type adminCreateUserRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	IsAdmin   bool   `json:"is_admin"`
}

type adminUpdateUserRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	IsAdmin   *bool  `json:"is_admin"`
}

func (s *Server) handleAdminDashboard(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeMessage(w, http.StatusOK, fmt.Sprintf("Welcome to the admin dashboard, %s!", user.DisplayName()))
}

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	users, err := s.app.ListUsers()
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": users, "count": len(users)})
}

func (s *Server) handleAdminCreateUser(w http.ResponseWriter, r *http.Request, admin domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req adminCreateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, err := s.app.AdminCreateUser(req.Email, req.Password, req.FirstName, req.LastName, req.IsAdmin)
	if err != nil {
		s.audit(r, "admin.user.create", "fail", "admin_id", admin.ID, "reason", err.Error())
		writeAppError(w, err)
		return
	}
	s.audit(r, "admin.user.create", "success", "admin_id", admin.ID, "user_id", user.ID)
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleAdminUserByID(w http.ResponseWriter, r *http.Request, admin domain.User) {
	id := strings.TrimPrefix(r.URL.Path, "/admin/users/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodPut:
		var req adminUpdateUserRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		user, err := s.app.AdminUpdateUser(id, req.Email, req.FirstName, req.LastName, req.IsAdmin)
		if err != nil {
			s.audit(r, "admin.user.update", "fail", "admin_id", admin.ID, "reason", err.Error())
			writeAppError(w, err)
			return
		}
		s.audit(r, "admin.user.update", "success", "admin_id", admin.ID, "user_id", user.ID)
		writeJSON(w, http.StatusOK, user)
	case http.MethodDelete:
		if err := s.app.AdminDeleteUser(id); err != nil {
			s.audit(r, "admin.user.delete", "fail", "admin_id", admin.ID, "reason", err.Error())
			writeAppError(w, err)
			return
		}
		s.audit(r, "admin.user.delete", "success", "admin_id", admin.ID, "user_id", id)
		writeMessage(w, http.StatusOK, "User deleted successfully!")
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleAdminBooks(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	books, err := s.app.ListBooks()
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": books, "count": len(books)})
}

func (s *Server) handleRatingStatistics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	stats, err := s.app.RatingStatistics()
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleReportStatistics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	stats, err := s.app.ReportStatistics(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleUserRolesStatistics(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	stats, err := s.app.UserRolesStatistics()
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleTotalBooks(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	n, err := s.app.TotalBooks()
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"total_books": n})
}
