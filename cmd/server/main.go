package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"bookquest/internal/app"
	"bookquest/internal/config"
	"bookquest/internal/mail"
	"bookquest/internal/server"
	"bookquest/internal/util"
	"bookquest/pkg/ai"
	"bookquest/pkg/storage"
	"bookquest/pkg/store"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	sessionTTL, err := config.ParseTTL(cfg.SessionTTL, time.Hour)
	if err != nil {
		log.Fatalf("failed to parse session TTL: %v", err)
	}
	refreshTTL, err := config.ParseTTL(cfg.RefreshTTL, 7*24*time.Hour)
	if err != nil {
		log.Fatalf("failed to parse refresh TTL: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	db, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}
	revoker := store.NewRedisTokenRevoker(cfg.RedisAddr, cfg.RedisPassword)
	sessions, err := store.NewJWTSessionStore(cfg.JWTSecret, sessionTTL, revoker)
	if err != nil {
		log.Fatalf("failed to init session store: %v", err)
	}
	refresh := store.NewRedisRefreshTokenStore(cfg.RedisAddr, cfg.RedisPassword)
	resetCodes, err := store.NewResetCodeStore(cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("failed to init reset code store: %v", err)
	}
	objects, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	if err != nil {
		log.Fatalf("failed to init object store: %v", err)
	}
	mailer, err := mail.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.MailFrom)
	if err != nil {
		log.Fatalf("failed to init mailer: %v", err)
	}
	var generator ai.Generator
	if cfg.CompletionProvider == "ollama" {
		generator = ai.NewOllamaGenerator(cfg.CompletionBaseURL, cfg.CompletionModel)
	} else {
		generator = ai.NewOpenAICompatGenerator(cfg.CompletionBaseURL, cfg.CompletionAPIKey, cfg.CompletionModel)
	}

	appCore, err := app.New(app.Config{
		Store:               db,
		Sessions:            sessions,
		Refresh:             refresh,
		ResetCodes:          resetCodes,
		Mailer:              mailer,
		Objects:             objects,
		Generator:           generator,
		RefreshTTL:          refreshTTL,
		ChatWindow:          cfg.ChatContextWindowMessages,
		ConversationListCap: cfg.ConversationListPageSize,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer, err := server.New(server.Config{
		App:                        appCore,
		Sessions:                   sessions,
		Store:                      db,
		RedisAddr:                  cfg.RedisAddr,
		RedisPassword:              cfg.RedisPassword,
		RegisterRateLimitPerMinute: cfg.RegisterRateLimitPerMin,
		LoginRateLimitPerMinute:    cfg.LoginRateLimitPerMin,
		ResetRateLimitPerMinute:    cfg.PasswordRateLimitPerMin,
		MaxUploadBytes:             cfg.MaxUploadBytes,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
