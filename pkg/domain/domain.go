package domain

import "time"

// User is a registered account. The password hash never leaves the server.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DisplayName returns "First Last", falling back to the email local part.
func (u User) DisplayName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name != "" {
		return name
	}
	return u.Email
}

// Book is a published catalog entry. PDFKey and CoverKey are object-store
// keys resolved to absolute URLs at response time.
type Book struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	PDFKey    string    `json:"-"`
	CoverKey  string    `json:"-"`
	Pages     int       `json:"pages,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserBook is a user submission awaiting admin approval. Approval clones it
// into a Book; rejection deletes it. IsApproved never goes back to false.
type UserBook struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	OriginBookID string    `json:"original_book,omitempty"`
	Title        string    `json:"title"`
	Author       string    `json:"author"`
	Description  string    `json:"description,omitempty"`
	PDFKey       string    `json:"-"`
	CoverKey     string    `json:"-"`
	Pages        int       `json:"pages,omitempty"`
	IsApproved   bool      `json:"is_approved"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Review holds a rating (1..5, optional) and comment for a book. Repeat
// reviews from the same user accumulate.
type Review struct {
	ID        string    `json:"id"`
	BookID    string    `json:"book"`
	UserID    string    `json:"-"`
	UserName  string    `json:"user"`
	Rating    *int      `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// FavoriteBook links a user to a book, unique per (user, book).
type FavoriteBook struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	BookID string `json:"book_id"`
}

// ReadingHistory is an append-only read log entry.
type ReadingHistory struct {
	ID         string    `json:"id"`
	UserID     string    `json:"-"`
	BookID     string    `json:"book_id"`
	BookTitle  string    `json:"book_title"`
	BookAuthor string    `json:"book_author"`
	ReadAt     time.Time `json:"read_at"`
}

// Conversation is a chat thread. Role is an opaque label fed into the
// system prompt. IsActive flips true->false once and never back.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Title     string    `json:"title"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChatMessage is one immutable turn in a conversation.
type ChatMessage struct {
	ID             string         `json:"-"`
	ConversationID string         `json:"-"`
	Role           string         `json:"role"`
	Content        string         `json:"content"`
	Usage          map[string]int `json:"usage,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// BookNote anchors an annotation to a character-offset span of a book's
// extracted text. Color is "#RRGGBB", stored upper-case.
type BookNote struct {
	ID            string    `json:"id"`
	UserID        string    `json:"-"`
	UserName      string    `json:"user"`
	BookID        string    `json:"book"`
	BookTitle     string    `json:"book_title"`
	SelectedText  string    `json:"selected_text"`
	NoteContent   string    `json:"note_content"`
	PageNumber    *int      `json:"page_number"`
	PositionStart int       `json:"position_start"`
	PositionEnd   int       `json:"position_end"`
	Color         string    `json:"color"`
	IsPublic      bool      `json:"is_public"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NoteStats summarizes a user's annotations across all books.
type NoteStats struct {
	TotalNotes        int        `json:"total_notes"`
	BooksWithNotes    int        `json:"books_with_notes"`
	MostNotedBook     *BookCount `json:"most_noted_book"`
	PublicNotesCount  int        `json:"public_notes_count"`
	PrivateNotesCount int        `json:"private_notes_count"`
}

// BookCount pairs a book with an aggregate count.
type BookCount struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	Count  int    `json:"count"`
}

// RatingStats is a rating histogram plus its weighted average.
type RatingStats struct {
	Rates         map[int]int `json:"rates"`
	AverageRating float64     `json:"average_rating"`
}

// ReportStats aggregates platform-wide counters.
type ReportStats struct {
	TotalBooks    int64      `json:"total_books"`
	TotalReads    int64      `json:"total_reads"`
	MostReadBook  *BookCount `json:"most_read_book"`
	TotalUsers    int64      `json:"total_users"`
	TotalReviews  int64      `json:"total_reviews"`
	AverageRating float64    `json:"average_rating"`
}
