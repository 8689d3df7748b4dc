// Package server exposes the HTTP API. Routes follow the paths the web
// client already uses; handlers translate requests into app calls and
// app errors into status codes.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"bookquest/internal/app"
	"bookquest/internal/ratelimit"
	"bookquest/internal/util"
	"bookquest/pkg/domain"
	"bookquest/pkg/store"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App      *app.App
	Sessions store.SessionStore
	Store    store.Store

	RedisAddr     string
	RedisPassword string

	RegisterRateLimitPerMinute int
	LoginRateLimitPerMinute    int
	ResetRateLimitPerMinute    int
	MaxUploadBytes             int64
}

// Server exposes HTTP endpoints for the backend.
type Server struct {
	app      *app.App
	sessions store.SessionStore
	store    store.Store
	mux      *http.ServeMux

	maxUploadBytes  int64
	registerLimiter *ratelimit.FixedWindowLimiter
	loginLimiter    *ratelimit.FixedWindowLimiter
	resetLimiter    *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server requires an app")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("server requires a session store")
	}
	if cfg.Store == nil {
		return nil, errors.New("server requires a store")
	}
	registerLimit := cfg.RegisterRateLimitPerMinute
	if registerLimit <= 0 {
		registerLimit = 5
	}
	loginLimit := cfg.LoginRateLimitPerMinute
	if loginLimit <= 0 {
		loginLimit = 10
	}
	resetLimit := cfg.ResetRateLimitPerMinute
	if resetLimit <= 0 {
		resetLimit = 5
	}
	rateWindow := time.Minute
	newLimiter := func(name string, limit int) (*ratelimit.FixedWindowLimiter, error) {
		prefix := "bookquest:ratelimit:" + name
		limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, prefix, limit, rateWindow)
		if err != nil {
			return nil, fmt.Errorf("init %s limiter: %w", name, err)
		}
		return limiter, nil
	}
	registerLimiter, err := newLimiter("register", registerLimit)
	if err != nil {
		return nil, err
	}
	loginLimiter, err := newLimiter("login", loginLimit)
	if err != nil {
		return nil, err
	}
	resetLimiter, err := newLimiter("reset", resetLimit)
	if err != nil {
		return nil, err
	}
	s := &Server{
		app:             cfg.App,
		sessions:        cfg.Sessions,
		store:           cfg.Store,
		mux:             http.NewServeMux(),
		maxUploadBytes:  normalizeMaxBytes(cfg.MaxUploadBytes),
		registerLimiter: registerLimiter,
		loginLimiter:    loginLimiter,
		resetLimiter:    resetLimiter,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithSecurityHeaders(util.WithCORS(util.WithRequestLog(s.mux)))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// accounts
	s.mux.HandleFunc("/register", s.handleRegister)
	s.mux.HandleFunc("/login", s.handleLogin)
	s.mux.HandleFunc("/logout", s.handleLogout)
	s.mux.HandleFunc("/refresh", s.handleRefresh)
	s.mux.HandleFunc("/forgot-password", s.handleForgotPassword)
	s.mux.HandleFunc("/reset-password", s.handleResetPassword)
	s.mux.Handle("/change-password", s.authenticated(s.handleChangePassword))
	s.mux.Handle("/user/profile/", s.authenticated(s.handleProfile))

	// catalog
	s.mux.HandleFunc("/search-books", s.handleSearchBooks)
	s.mux.HandleFunc("/books", s.handleListBooks)
	s.mux.HandleFunc("/books/", s.handleBookPath)
	s.mux.Handle("/favorites", s.authenticated(s.handleListFavorites))
	s.mux.Handle("/favorites/add", s.authenticated(s.handleAddFavorite))
	s.mux.Handle("/favorites/remove", s.authenticated(s.handleRemoveFavorite))
	s.mux.Handle("/reading-history", s.authenticated(s.handleListReadingHistory))
	s.mux.Handle("/reading-history/add", s.authenticated(s.handleAddReadingHistory))

	// submissions & moderation
	s.mux.Handle("/create-user-book", s.authenticated(s.handleCreateUserBook))
	s.mux.Handle("/list-user-books", s.adminOnly(s.handleListUserBooks))
	s.mux.HandleFunc("/list-approved-books", s.handleListApprovedBooks)
	s.mux.Handle("/approve-user-book/", s.adminOnly(s.handleApproveUserBook))
	s.mux.Handle("/reject-delete-book/", s.adminOnly(s.handleRejectDeleteBook))

	// notes
	s.mux.Handle("/my-notes", s.authenticated(s.handleMyNotes))
	s.mux.Handle("/my-notes/stats", s.authenticated(s.handleMyNoteStats))

	// chat
	s.mux.Handle("/chat/send", s.authenticated(s.handleChatSend))
	s.mux.Handle("/chat/conversations", s.authenticated(s.handleChatConversations))
	s.mux.Handle("/chat/conversations/", s.authenticated(s.handleChatConversationPath))

	// admin & reporting
	s.mux.Handle("/admin_dashboard", s.adminOnly(s.handleAdminDashboard))
	s.mux.Handle("/admin/users", s.adminOnly(s.handleAdminUsers))
	s.mux.Handle("/admin/users/create", s.adminOnly(s.handleAdminCreateUser))
	s.mux.Handle("/admin/users/", s.adminOnly(s.handleAdminUserByID))
	s.mux.Handle("/admin/books", s.adminOnly(s.handleAdminBooks))
	s.mux.HandleFunc("/rating-statistics", s.handleRatingStatistics)
	s.mux.HandleFunc("/report-statistics", s.handleReportStatistics)
	s.mux.Handle("/user-roles-statistics", s.adminOnly(s.handleUserRolesStatistics))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authorize(r)
		if !ok {
			s.audit(r, "authorize", "fail")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) adminOnly(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authorize(r)
		if !ok {
			s.audit(r, "admin.authorize", "fail", "reason", "unauthenticated")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !user.IsAdmin {
			s.audit(r, "admin.authorize", "fail", "user_id", user.ID, "reason", "forbidden")
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) authorize(r *http.Request) (domain.User, bool) {
	token, ok := bearerToken(r)
	if !ok {
		s.audit(r, "token.verify", "fail", "reason", "missing_token")
		return domain.User{}, false
	}
	userID, ok, err := s.sessions.GetUserIDByToken(token)
	if err != nil || !ok {
		s.audit(r, "token.verify", "fail", "reason", "invalid_or_revoked")
		return domain.User{}, false
	}
	user, ok, err := s.store.GetUserByID(userID)
	if err != nil || !ok {
		s.audit(r, "token.verify", "fail", "reason", "unknown_user")
		return domain.User{}, false
	}
	return user, true
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// writeAppError maps the app error taxonomy onto HTTP status codes.
// Internal causes are logged, never returned to the client.
func writeAppError(w http.ResponseWriter, err error) {
	var appErr *app.Error
	if !errors.As(err, &appErr) {
		slog.Error("unclassified error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	switch appErr.Kind {
	case app.KindValidation:
		writeError(w, http.StatusBadRequest, appErr.Message)
	case app.KindAuth:
		writeError(w, http.StatusUnauthorized, appErr.Message)
	case app.KindForbidden:
		writeError(w, http.StatusForbidden, appErr.Message)
	case app.KindNotFound:
		writeError(w, http.StatusNotFound, appErr.Message)
	case app.KindUpstream:
		slog.Error("upstream failure", "error", appErr.Err, "message", appErr.Message)
		writeError(w, http.StatusBadGateway, appErr.Message)
	default:
		slog.Error("internal failure", "error", appErr.Err, "message", appErr.Message)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func normalizeMaxBytes(value int64) int64 {
	if value <= 0 {
		return 50 * 1024 * 1024
	}
	return value
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", util.ClientIP(r),
	}
	logAttrs = append(logAttrs, attrs...)
	if outcome == "success" {
		slog.Info("security_event", logAttrs...)
		return
	}
	slog.Warn("security_event", logAttrs...)
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	key := r.URL.Path + "|" + util.ClientIP(r)
	if limiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}
