package app

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"bookquest/internal/mail"
	"bookquest/internal/util"
	"bookquest/pkg/ai"
	"bookquest/pkg/storage"
	"bookquest/pkg/store"
)

const testPassword = "Sup3rSecret!"

var errSMTP = errors.New("smtp unavailable")

// fakeGenerator returns a canned reply and records the prompt it was given.
type fakeGenerator struct {
	reply   string
	usage   map[string]int
	err     error
	history []ai.Message
}

func (f *fakeGenerator) Complete(ctx context.Context, history []ai.Message) (ai.Completion, error) {
	f.history = history
	if f.err != nil {
		return ai.Completion{}, f.err
	}
	return ai.Completion{Content: f.reply, Usage: f.usage}, nil
}

// fakeResetCodes hands out a fixed single-use code per email.
type fakeResetCodes struct {
	code     string
	issueErr error
	used     map[string]bool
}

func newFakeResetCodes(code string) *fakeResetCodes {
	return &fakeResetCodes{code: code, used: make(map[string]bool)}
}

func (f *fakeResetCodes) IssueCode(email string) (string, error) {
	if f.issueErr != nil {
		return "", f.issueErr
	}
	f.used[email] = false
	return f.code, nil
}

func (f *fakeResetCodes) ConsumeCode(email, code string) error {
	used, ok := f.used[email]
	if !ok || used || code != f.code {
		return store.ErrResetCodeInvalid
	}
	f.used[email] = true
	return nil
}

type testEnv struct {
	app     *App
	store   *store.MemoryStore
	objects *storage.MemoryObjectStore
	mailer  *mail.FakeMailer
	gen     *fakeGenerator
	resets  *fakeResetCodes
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := store.NewMemoryStore()
	sessions, err := store.NewJWTSessionStore("unit-test-secret", time.Hour, store.NewMemoryTokenRevoker())
	if err != nil {
		t.Fatalf("NewJWTSessionStore: %v", err)
	}
	objects := storage.NewMemoryObjectStore()
	mailer := &mail.FakeMailer{}
	gen := &fakeGenerator{reply: "Try reading chapter three again."}
	resets := newFakeResetCodes("ABC234")
	a, err := New(Config{
		Store:      st,
		Sessions:   sessions,
		Refresh:    store.NewMemoryRefreshTokenStore(),
		ResetCodes: resets,
		Mailer:     mailer,
		Objects:    objects,
		Generator:  gen,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &testEnv{app: a, store: st, objects: objects, mailer: mailer, gen: gen, resets: resets}
}

// register creates an account and returns its user ID.
func (e *testEnv) register(t *testing.T, email string) string {
	t.Helper()
	if err := e.app.Register(email, testPassword, testPassword, "Test", "Reader"); err != nil {
		t.Fatalf("Register(%s): %v", email, err)
	}
	user, ok, err := e.store.GetUserByEmail(email)
	if err != nil || !ok {
		t.Fatalf("GetUserByEmail(%s): ok=%v err=%v", email, ok, err)
	}
	return user.ID
}

func (e *testEnv) addBook(t *testing.T, title, author string) string {
	t.Helper()
	book, err := e.app.ApproveUserBook(e.submitBook(t, title, author))
	if err != nil {
		t.Fatalf("ApproveUserBook: %v", err)
	}
	return book.ID
}

func (e *testEnv) submitBook(t *testing.T, title, author string) string {
	t.Helper()
	userID := e.register(t, "uploader-"+util.NewID()+"@example.com")
	ub, err := e.app.CreateUserBook(context.Background(), userID, CreateUserBookInput{
		Title:  title,
		Author: author,
		PDF:    pdfUpload(),
		Pages:  120,
	})
	if err != nil {
		t.Fatalf("CreateUserBook: %v", err)
	}
	return ub.ID
}

func pdfUpload() *Upload {
	data := []byte("%PDF-1.4 fake")
	return &Upload{Reader: bytes.NewReader(data), Size: int64(len(data)), ContentType: "application/pdf"}
}

func wantKind(t *testing.T, err error, kind Kind) *Error {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error of kind %v, got nil", kind)
	}
	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *app.Error, got %T: %v", err, err)
	}
	if appErr.Kind != kind {
		t.Fatalf("expected kind %v, got %v (%s)", kind, appErr.Kind, appErr.Message)
	}
	return appErr
}
