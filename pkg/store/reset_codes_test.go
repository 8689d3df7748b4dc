package store

import (
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func newResetStore(t *testing.T) (*ResetCodeStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewResetCodeStore(mr.Addr(), "")
	if err != nil {
		t.Fatalf("new reset code store: %v", err)
	}
	return s, mr
}

func TestResetCodeIssueAndConsume(t *testing.T) {
	s, _ := newResetStore(t)

	code, err := s.IssueCode("Reader@Example.com")
	if err != nil {
		t.Fatalf("issue code: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("code length = %d, want 6", len(code))
	}
	// Email comparison is case-insensitive.
	if err := s.ConsumeCode("reader@example.com", code); err != nil {
		t.Fatalf("consume code: %v", err)
	}
	// Codes are single use.
	if err := s.ConsumeCode("reader@example.com", code); !errors.Is(err, ErrResetCodeInvalid) {
		t.Fatalf("expected invalid on reuse, got: %v", err)
	}
}

func TestResetCodeRejectsWrongCode(t *testing.T) {
	s, _ := newResetStore(t)

	code, err := s.IssueCode("reader@example.com")
	if err != nil {
		t.Fatalf("issue code: %v", err)
	}
	if err := s.ConsumeCode("reader@example.com", "XXXXXX"); !errors.Is(err, ErrResetCodeInvalid) {
		t.Fatalf("expected invalid for wrong code, got: %v", err)
	}
	// The right code still works after one bad attempt.
	if err := s.ConsumeCode("reader@example.com", code); err != nil {
		t.Fatalf("consume after wrong attempt: %v", err)
	}
}

func TestResetCodeExhaustsAttempts(t *testing.T) {
	s, _ := newResetStore(t)

	code, err := s.IssueCode("reader@example.com")
	if err != nil {
		t.Fatalf("issue code: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := s.ConsumeCode("reader@example.com", "WRONG1"); !errors.Is(err, ErrResetCodeInvalid) {
			t.Fatalf("attempt %d: expected invalid, got: %v", i, err)
		}
	}
	if err := s.ConsumeCode("reader@example.com", code); !errors.Is(err, ErrResetCodeInvalid) {
		t.Fatalf("expected challenge burned after max attempts, got: %v", err)
	}
}

func TestResetCodeExpires(t *testing.T) {
	s, mr := newResetStore(t)

	code, err := s.IssueCode("reader@example.com")
	if err != nil {
		t.Fatalf("issue code: %v", err)
	}
	mr.FastForward(s.codeTTL + s.codeTTL)
	if err := s.ConsumeCode("reader@example.com", code); !errors.Is(err, ErrResetCodeInvalid) {
		t.Fatalf("expected expired code to fail, got: %v", err)
	}
}

func TestResetCodeResendCooldown(t *testing.T) {
	s, mr := newResetStore(t)

	if _, err := s.IssueCode("reader@example.com"); err != nil {
		t.Fatalf("first issue: %v", err)
	}
	if _, err := s.IssueCode("reader@example.com"); !errors.Is(err, ErrResetSendRateLimited) {
		t.Fatalf("expected cooldown, got: %v", err)
	}
	mr.FastForward(s.resendAfter)
	if _, err := s.IssueCode("reader@example.com"); err != nil {
		t.Fatalf("issue after cooldown: %v", err)
	}
}

func TestNormalizeEmail(t *testing.T) {
	got, err := NormalizeEmail("  Reader@Example.COM ")
	if err != nil || got != "reader@example.com" {
		t.Fatalf("normalize = %q, %v", got, err)
	}
	if _, err := NormalizeEmail("not-an-email"); err == nil {
		t.Fatalf("expected error for malformed email")
	}
	if _, err := NormalizeEmail("   "); err == nil {
		t.Fatalf("expected error for blank email")
	}
}
