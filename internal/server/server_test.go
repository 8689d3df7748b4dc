package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"bookquest/internal/app"
	"bookquest/internal/mail"
	"bookquest/internal/util"
	"bookquest/pkg/ai"
	"bookquest/pkg/domain"
	"bookquest/pkg/storage"
	"bookquest/pkg/store"
)

const testPassword = "Sup3rSecret!"

type staticGenerator struct {
	reply string
}

func (g staticGenerator) Complete(context.Context, []ai.Message) (ai.Completion, error) {
	return ai.Completion{Content: g.reply}, nil
}

type staticResetCodes struct {
	code string
}

func (s staticResetCodes) IssueCode(string) (string, error) { return s.code, nil }

func (s staticResetCodes) ConsumeCode(_, code string) error {
	if code != s.code {
		return store.ErrResetCodeInvalid
	}
	return nil
}

type testServer struct {
	srv   *httptest.Server
	store *store.MemoryStore
}

func newTestServer(t *testing.T, overrides func(*Config)) *testServer {
	t.Helper()
	st := store.NewMemoryStore()
	sessions, err := store.NewJWTSessionStore("unit-test-secret", time.Hour, store.NewMemoryTokenRevoker())
	if err != nil {
		t.Fatalf("NewJWTSessionStore: %v", err)
	}
	a, err := app.New(app.Config{
		Store:      st,
		Sessions:   sessions,
		Refresh:    store.NewMemoryRefreshTokenStore(),
		ResetCodes: staticResetCodes{code: "ABC234"},
		Mailer:     &mail.FakeMailer{},
		Objects:    storage.NewMemoryObjectStore(),
		Generator:  staticGenerator{reply: "Read chapter three."},
	})
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	redis := miniredis.RunT(t)
	cfg := Config{
		App:       a,
		Sessions:  sessions,
		Store:     st,
		RedisAddr: redis.Addr(),
	}
	if overrides != nil {
		overrides(&cfg)
	}
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, store: st}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

// signup registers and logs in, returning the access token and user ID.
func (ts *testServer) signup(t *testing.T, email string) (token, userID string) {
	t.Helper()
	resp, body := ts.do(t, http.MethodPost, "/register", "", map[string]string{
		"email":            email,
		"password":         testPassword,
		"confirm_password": testPassword,
		"first_name":       "Test",
		"last_name":        "Reader",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: status %d body %s", resp.StatusCode, body)
	}
	return ts.login(t, email)
}

func (ts *testServer) login(t *testing.T, email string) (token, userID string) {
	t.Helper()
	resp, body := ts.do(t, http.MethodPost, "/login", "", map[string]string{
		"email":    email,
		"password": testPassword,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: status %d body %s", resp.StatusCode, body)
	}
	var res struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return res.Token, res.User.ID
}

// signupAdmin creates an account and flips its admin flag in the store.
func (ts *testServer) signupAdmin(t *testing.T, email string) (token, userID string) {
	t.Helper()
	_, userID = ts.signup(t, email)
	user, ok, err := ts.store.GetUserByID(userID)
	if err != nil || !ok {
		t.Fatalf("load user: ok=%v err=%v", ok, err)
	}
	user.IsAdmin = true
	if err := ts.store.SaveUser(user); err != nil {
		t.Fatalf("save admin: %v", err)
	}
	token, _ = ts.login(t, email)
	return token, userID
}

func (ts *testServer) seedBook(t *testing.T, title, author string) string {
	t.Helper()
	book := domain.Book{ID: util.NewID(), Title: title, Author: author}
	if err := ts.store.SaveBook(book); err != nil {
		t.Fatalf("seed book: %v", err)
	}
	return book.ID
}

func errorMessage(t *testing.T, body []byte) string {
	t.Helper()
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode error body %s: %v", body, err)
	}
	return payload.Error
}

func successMessage(t *testing.T, body []byte) string {
	t.Helper()
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode message body %s: %v", body, err)
	}
	return payload.Message
}

func TestRegisterLoginProfile(t *testing.T) {
	ts := newTestServer(t, nil)
	token, userID := ts.signup(t, "reader@example.com")

	resp, body := ts.do(t, http.MethodGet, "/user/profile/"+userID, token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("profile: status %d body %s", resp.StatusCode, body)
	}
	var profile domain.User
	if err := json.Unmarshal(body, &profile); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if profile.Email != "reader@example.com" {
		t.Fatalf("email = %q", profile.Email)
	}

	// Another user's profile is forbidden.
	otherToken, _ := ts.signup(t, "other@example.com")
	resp, _ = ts.do(t, http.MethodGet, "/user/profile/"+userID, otherToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign profile: status %d, want 403", resp.StatusCode)
	}
}

func TestRegisterDuplicateEmailHTTP(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.signup(t, "reader@example.com")
	resp, body := ts.do(t, http.MethodPost, "/register", "", map[string]string{
		"email":            "reader@example.com",
		"password":         testPassword,
		"confirm_password": testPassword,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", resp.StatusCode)
	}
	if msg := errorMessage(t, body); msg != "Email already exists!" {
		t.Fatalf("message %q", msg)
	}
}

func TestLoginBadCredentials(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.signup(t, "reader@example.com")

	resp, body := ts.do(t, http.MethodPost, "/login", "", map[string]string{
		"email":    "reader@example.com",
		"password": "Wr0ngPass!x",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", resp.StatusCode)
	}
	if msg := errorMessage(t, body); msg != "Invalid password!" {
		t.Fatalf("message %q", msg)
	}
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t, nil)
	for _, path := range []string{"/favorites", "/my-notes", "/chat/conversations", "/reading-history"} {
		resp, _ := ts.do(t, http.MethodGet, path, "", nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s: status %d, want 401", path, resp.StatusCode)
		}
	}
}

func TestAdminOnly(t *testing.T) {
	ts := newTestServer(t, nil)
	token, _ := ts.signup(t, "reader@example.com")

	for _, path := range []string{"/admin/users", "/admin_dashboard", "/list-user-books", "/books/total", "/user-roles-statistics"} {
		resp, _ := ts.do(t, http.MethodGet, path, token, nil)
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("%s: status %d, want 403", path, resp.StatusCode)
		}
	}

	adminToken, _ := ts.signupAdmin(t, "admin@example.com")
	resp, _ := ts.do(t, http.MethodGet, "/admin/users", adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin list users: status %d, want 200", resp.StatusCode)
	}
}

func TestLoginRateLimit(t *testing.T) {
	ts := newTestServer(t, func(cfg *Config) {
		cfg.LoginRateLimitPerMinute = 1
	})
	resp0, body0 := ts.do(t, http.MethodPost, "/register", "", map[string]string{
		"email":            "reader@example.com",
		"password":         testPassword,
		"confirm_password": testPassword,
	})
	if resp0.StatusCode != http.StatusCreated {
		t.Fatalf("register: status %d body %s", resp0.StatusCode, body0)
	}

	creds := map[string]string{"email": "reader@example.com", "password": testPassword}
	resp, _ := ts.do(t, http.MethodPost, "/login", "", creds)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first login: status %d", resp.StatusCode)
	}
	resp, _ = ts.do(t, http.MethodPost, "/login", "", creds)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second login: status %d, want 429", resp.StatusCode)
	}
}

func TestSearchBooksHTTP(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.seedBook(t, "Dune", "Frank Herbert")

	resp, _ := ts.do(t, http.MethodGet, "/search-books?q=dune", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d, want 200", resp.StatusCode)
	}
	resp, _ = ts.do(t, http.MethodGet, "/search-books?q=nothing", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d, want 404", resp.StatusCode)
	}
	resp, _ = ts.do(t, http.MethodGet, "/search-books", "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", resp.StatusCode)
	}
}

func TestFavoritesHTTP(t *testing.T) {
	ts := newTestServer(t, nil)
	bookID := ts.seedBook(t, "Dune", "Frank Herbert")
	token, _ := ts.signup(t, "reader@example.com")

	ref := map[string]string{"book_id": bookID}
	resp, _ := ts.do(t, http.MethodPost, "/favorites/add", token, ref)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add favorite: status %d", resp.StatusCode)
	}

	// Repeats are a friendly success, not an error.
	resp, body := ts.do(t, http.MethodPost, "/favorites/add", token, ref)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("repeat favorite: status %d, want 200", resp.StatusCode)
	}
	if msg := successMessage(t, body); msg != "Book already added to favorites!" {
		t.Fatalf("message %q", msg)
	}

	resp, _ = ts.do(t, http.MethodPost, "/favorites/remove", token, ref)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("remove favorite: status %d", resp.StatusCode)
	}
}

func TestChatHTTP(t *testing.T) {
	ts := newTestServer(t, nil)
	token, _ := ts.signup(t, "reader@example.com")

	resp, body := ts.do(t, http.MethodPost, "/chat/send", token, map[string]string{
		"message": "What should I read next?",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("chat send: status %d body %s", resp.StatusCode, body)
	}
	var res chatSendResponse
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatalf("decode chat response: %v", err)
	}
	if res.Reply.Content != "Read chapter three." {
		t.Fatalf("reply %q", res.Reply.Content)
	}
	convID := res.Conversation.ID

	resp, _ = ts.do(t, http.MethodPost, "/chat/conversations/"+convID+"/end", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("end conversation: status %d", resp.StatusCode)
	}

	resp, body = ts.do(t, http.MethodPost, "/chat/send", token, map[string]string{
		"conversation_id": convID,
		"message":         "still there?",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("send to ended: status %d, want 400", resp.StatusCode)
	}
	if msg := errorMessage(t, body); msg != "This conversation has ended." {
		t.Fatalf("message %q", msg)
	}

	// Another user cannot read the conversation.
	otherToken, _ := ts.signup(t, "other@example.com")
	resp, _ = ts.do(t, http.MethodGet, "/chat/conversations/"+convID+"/messages", otherToken, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("foreign conversation: status %d, want 404", resp.StatusCode)
	}
}

func TestUserBookModerationHTTP(t *testing.T) {
	ts := newTestServer(t, nil)
	token, _ := ts.signup(t, "uploader@example.com")
	adminToken, _ := ts.signupAdmin(t, "admin@example.com")

	// Multipart submission.
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("title", "My Manuscript"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	fw, err := mw.CreateFormFile("pdf", "manuscript.pdf")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte("%PDF-1.4 fake")); err != nil {
		t.Fatalf("write file: %v", err)
	}
	mw.Close()

	req, err := http.NewRequest(http.MethodPost, ts.srv.URL+"/create-user-book", &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("create user book: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create user book: status %d body %s", resp.StatusCode, body)
	}
	var ub domain.UserBook
	if err := json.Unmarshal(body, &ub); err != nil {
		t.Fatalf("decode submission: %v", err)
	}

	// Pending list is admin-only and contains the submission.
	resp2, body2 := ts.do(t, http.MethodGet, "/list-user-books", adminToken, nil)
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("list user books: status %d", resp2.StatusCode)
	}
	if !bytes.Contains(body2, []byte("My Manuscript")) {
		t.Fatalf("pending list %s missing submission", body2)
	}

	// Approve, then rejecting the approved submission fails.
	resp2, body2 = ts.do(t, http.MethodPut, "/approve-user-book/"+ub.ID, adminToken, nil)
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("approve: status %d body %s", resp2.StatusCode, body2)
	}
	resp2, body2 = ts.do(t, http.MethodDelete, "/reject-delete-book/"+ub.ID, adminToken, nil)
	if resp2.StatusCode != http.StatusBadRequest {
		t.Fatalf("reject approved: status %d, want 400", resp2.StatusCode)
	}
	if msg := errorMessage(t, body2); msg != "Only unapproved books can be rejected and deleted." {
		t.Fatalf("message %q", msg)
	}
}

func TestNotesHTTP(t *testing.T) {
	ts := newTestServer(t, nil)
	bookID := ts.seedBook(t, "Dune", "Frank Herbert")
	token, _ := ts.signup(t, "reader@example.com")

	resp, body := ts.do(t, http.MethodPost, "/books/"+bookID+"/notes/create", token, map[string]any{
		"selected_text":  "Fear is the mind-killer",
		"position_start": 100,
		"position_end":   123,
		"color":          "#ffcc00",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create note: status %d body %s", resp.StatusCode, body)
	}
	var note domain.BookNote
	if err := json.Unmarshal(body, &note); err != nil {
		t.Fatalf("decode note: %v", err)
	}
	if note.Color != "#FFCC00" {
		t.Fatalf("color %q, want #FFCC00", note.Color)
	}

	// Another user probing the note ID gets 404.
	otherToken, _ := ts.signup(t, "other@example.com")
	resp, _ = ts.do(t, http.MethodGet, "/books/"+bookID+"/notes/"+note.ID, otherToken, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("foreign note: status %d, want 404", resp.StatusCode)
	}

	resp, body = ts.do(t, http.MethodGet, "/my-notes/stats", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("note stats: status %d", resp.StatusCode)
	}
	var stats domain.NoteStats
	if err := json.Unmarshal(body, &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalNotes != 1 {
		t.Fatalf("total notes = %d, want 1", stats.TotalNotes)
	}
}

func TestForgotAndResetPasswordHTTP(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.signup(t, "reader@example.com")

	resp, _ := ts.do(t, http.MethodPost, "/forgot-password", "", map[string]string{"email": "reader@example.com"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("forgot password: status %d", resp.StatusCode)
	}
	resp, _ = ts.do(t, http.MethodPost, "/forgot-password", "", map[string]string{"email": "ghost@example.com"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown email: status %d, want 404", resp.StatusCode)
	}

	resp, body := ts.do(t, http.MethodPost, "/reset-password", "", map[string]string{
		"email":             "reader@example.com",
		"confirmation_code": "WRONG1",
		"new_password":      "N3wSecret!pw",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad code: status %d, want 400", resp.StatusCode)
	}
	if msg := errorMessage(t, body); msg != "Invalid or expired confirmation code!" {
		t.Fatalf("message %q", msg)
	}

	resp, _ = ts.do(t, http.MethodPost, "/reset-password", "", map[string]string{
		"email":             "reader@example.com",
		"confirmation_code": "ABC234",
		"new_password":      "N3wSecret!pw",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reset: status %d", resp.StatusCode)
	}
}

func TestReportEndpointsHTTP(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.seedBook(t, "Dune", "Frank Herbert")
	adminToken, _ := ts.signupAdmin(t, "admin@example.com")

	resp, _ := ts.do(t, http.MethodGet, "/rating-statistics", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rating statistics: status %d", resp.StatusCode)
	}
	resp, _ = ts.do(t, http.MethodGet, "/report-statistics", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("report statistics: status %d", resp.StatusCode)
	}
	resp, body := ts.do(t, http.MethodGet, "/books/total", adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("total books: status %d", resp.StatusCode)
	}
	var totals map[string]int64
	if err := json.Unmarshal(body, &totals); err != nil {
		t.Fatalf("decode totals: %v", err)
	}
	if totals["total_books"] != 1 {
		t.Fatalf("total_books = %d, want 1", totals["total_books"])
	}
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, _ := ts.do(t, http.MethodGet, "/register", "", nil)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status %d, want 405", resp.StatusCode)
	}
}
