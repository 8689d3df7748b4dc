package store

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrResetCodeInvalid covers unknown, expired, and exhausted codes. One
	// error keeps the API from confirming which emails have pending resets.
	ErrResetCodeInvalid = errors.New("invalid or expired confirmation code")
	// ErrResetSendRateLimited means a code was requested again too soon.
	ErrResetSendRateLimited = errors.New("too many reset code requests")
)

// ResetCodeStore issues and verifies emailed password reset codes. Codes
// are stored bcrypt-hashed in Redis and expire after ten minutes.
type ResetCodeStore struct {
	client            *redis.Client
	keyPrefix         string
	codeTTL           time.Duration
	resendAfter       time.Duration
	maxVerifyAttempts int
}

type resetChallenge struct {
	Email     string    `json:"email"`
	CodeHash  string    `json:"codeHash"`
	ExpiresAt time.Time `json:"expiresAt"`
	Attempts  int       `json:"attempts"`
}

// NewResetCodeStore connects to Redis.
func NewResetCodeStore(addr, password string) (*ResetCodeStore, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("reset code redis addr is required")
	}
	return &ResetCodeStore{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		keyPrefix:         "bookquest:auth:reset",
		codeTTL:           10 * time.Minute,
		resendAfter:       time.Minute,
		maxVerifyAttempts: 5,
	}, nil
}

// IssueCode generates a fresh code for the email and returns it for
// delivery. Issuing again replaces any previous code.
func (s *ResetCodeStore) IssueCode(email string) (string, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resendKey := s.resendKey(email)
	allowed, err := s.client.SetNX(ctx, resendKey, "1", s.resendAfter).Result()
	if err != nil {
		return "", err
	}
	if !allowed {
		return "", ErrResetSendRateLimited
	}

	code, err := generateResetCode(6)
	if err != nil {
		_ = s.client.Del(ctx, resendKey).Err()
		return "", fmt.Errorf("generate reset code: %w", err)
	}
	codeHash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		_ = s.client.Del(ctx, resendKey).Err()
		return "", fmt.Errorf("hash reset code: %w", err)
	}
	challenge := resetChallenge{
		Email:     email,
		CodeHash:  string(codeHash),
		ExpiresAt: time.Now().UTC().Add(s.codeTTL),
	}
	raw, err := json.Marshal(challenge)
	if err != nil {
		_ = s.client.Del(ctx, resendKey).Err()
		return "", fmt.Errorf("marshal reset challenge: %w", err)
	}
	if err := s.client.Set(ctx, s.codeKey(email), raw, s.codeTTL).Err(); err != nil {
		_ = s.client.Del(ctx, resendKey).Err()
		return "", err
	}
	return code, nil
}

// ConsumeCode verifies the code for the email and deletes it on success.
// Wrong codes burn an attempt; too many wrong attempts burn the challenge.
func (s *ResetCodeStore) ConsumeCode(email, code string) error {
	email, err := NormalizeEmail(email)
	if err != nil {
		return err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return ErrResetCodeInvalid
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	key := s.codeKey(email)
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrResetCodeInvalid
	}
	if err != nil {
		return err
	}
	var challenge resetChallenge
	if err := json.Unmarshal(raw, &challenge); err != nil {
		return fmt.Errorf("unmarshal reset challenge: %w", err)
	}
	if challenge.Email != email || time.Now().UTC().After(challenge.ExpiresAt) {
		_ = s.client.Del(ctx, key).Err()
		return ErrResetCodeInvalid
	}
	if challenge.Attempts >= s.maxVerifyAttempts {
		_ = s.client.Del(ctx, key).Err()
		return ErrResetCodeInvalid
	}
	if bcrypt.CompareHashAndPassword([]byte(challenge.CodeHash), []byte(code)) != nil {
		challenge.Attempts++
		if challenge.Attempts >= s.maxVerifyAttempts {
			_ = s.client.Del(ctx, key).Err()
		} else if updated, marshalErr := json.Marshal(challenge); marshalErr == nil {
			if ttl, ttlErr := s.client.TTL(ctx, key).Result(); ttlErr == nil && ttl > 0 {
				_ = s.client.Set(ctx, key, updated, ttl).Err()
			}
		}
		return ErrResetCodeInvalid
	}
	return s.client.Del(ctx, key).Err()
}

func (s *ResetCodeStore) codeKey(email string) string {
	return fmt.Sprintf("%s:code:%s", s.keyPrefix, email)
}

func (s *ResetCodeStore) resendKey(email string) string {
	return fmt.Sprintf("%s:resend:%s", s.keyPrefix, email)
}

// NormalizeEmail lower-cases, trims, and validates an address.
func NormalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return "", errors.New("email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", errors.New("email format is invalid")
	}
	return email, nil
}

func generateResetCode(length int) (string, error) {
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	if length <= 0 {
		length = 6
	}
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			return "", err
		}
		b.WriteByte(alphabet[n.Int64()])
	}
	return b.String(), nil
}
