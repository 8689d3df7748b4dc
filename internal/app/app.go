// Package app implements the platform's use cases on top of the store,
// object storage, mailer, and completion provider.
package app

import (
	"errors"
	"time"

	"bookquest/internal/mail"
	"bookquest/pkg/ai"
	"bookquest/pkg/storage"
	"bookquest/pkg/store"
)

const (
	defaultPresignTTL  = 15 * time.Minute
	defaultRefreshTTL  = 7 * 24 * time.Hour
	defaultChatWindow  = 12
	defaultChatTimeout = 60 * time.Second
	defaultConvListCap = 50
)

// ResetCodes issues and consumes emailed password reset codes.
type ResetCodes interface {
	IssueCode(email string) (string, error)
	ConsumeCode(email, code string) error
}

// Config wires the App's collaborators.
type Config struct {
	Store      store.Store
	Sessions   store.SessionStore
	Refresh    store.RefreshTokenStore
	ResetCodes ResetCodes
	Mailer     mail.Mailer
	Objects    storage.ObjectStore
	Generator  ai.Generator

	RefreshTTL          time.Duration
	PresignTTL          time.Duration
	ChatWindow          int
	ChatTimeout         time.Duration
	ConversationListCap int
}

// App holds the use-case implementations.
type App struct {
	store      store.Store
	sessions   store.SessionStore
	refresh    store.RefreshTokenStore
	resetCodes ResetCodes
	mailer     mail.Mailer
	objects    storage.ObjectStore
	gen        ai.Generator

	refreshTTL  time.Duration
	presignTTL  time.Duration
	chatWindow  int
	chatTimeout time.Duration
	convListCap int
}

// New validates the config and builds an App.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, errors.New("app requires a store")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("app requires a session store")
	}
	if cfg.Refresh == nil {
		return nil, errors.New("app requires a refresh token store")
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = defaultRefreshTTL
	}
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = defaultPresignTTL
	}
	if cfg.ChatWindow <= 0 {
		cfg.ChatWindow = defaultChatWindow
	}
	if cfg.ChatTimeout <= 0 {
		cfg.ChatTimeout = defaultChatTimeout
	}
	if cfg.ConversationListCap <= 0 {
		cfg.ConversationListCap = defaultConvListCap
	}
	return &App{
		store:       cfg.Store,
		sessions:    cfg.Sessions,
		refresh:     cfg.Refresh,
		resetCodes:  cfg.ResetCodes,
		mailer:      cfg.Mailer,
		objects:     cfg.Objects,
		gen:         cfg.Generator,
		refreshTTL:  cfg.RefreshTTL,
		presignTTL:  cfg.PresignTTL,
		chatWindow:  cfg.ChatWindow,
		chatTimeout: cfg.ChatTimeout,
		convListCap: cfg.ConversationListCap,
	}, nil
}
