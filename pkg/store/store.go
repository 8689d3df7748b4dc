package store

import (
	"errors"
	"time"

	"bookquest/pkg/domain"
)

// ErrUserBookApproved is returned when a moderation action is attempted on
// a submission that has already been approved.
var ErrUserBookApproved = errors.New("user book already approved")

// Store defines persistence for the catalog, accounts, annotations, and
// chat threads.
type Store interface {
	// users
	SaveUser(domain.User) error
	HasUserEmail(email string) (bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)
	ListUsers() ([]domain.User, error)
	UserCount() (int64, error)
	// DeleteUser removes the account and everything it owns.
	DeleteUser(id string) error

	// books
	SaveBook(domain.Book) error
	ListBooks() ([]domain.Book, error)
	GetBook(id string) (domain.Book, bool, error)
	DeleteBook(id string) error
	BookCount() (int64, error)

	// user submissions
	SaveUserBook(domain.UserBook) error
	GetUserBook(id string) (domain.UserBook, bool, error)
	ListUserBooks(approved *bool) ([]domain.UserBook, error)
	ListUserBooksByUser(userID string) ([]domain.UserBook, error)
	// ApproveUserBook marks the submission approved and publishes it as a
	// catalog book in one transaction, returning the new book.
	ApproveUserBook(id string, book domain.Book) (domain.Book, error)
	DeleteUserBook(id string) error

	// reviews
	SaveReview(domain.Review) error
	ListReviewsByBook(bookID string) ([]domain.Review, error)
	ReviewCount() (int64, error)
	RatingStatsByBook(bookID string) (domain.RatingStats, error)
	RatingStats() (domain.RatingStats, error)
	AverageRating() (float64, error)

	// favorites
	AddFavorite(domain.FavoriteBook) error
	HasFavorite(userID, bookID string) (bool, error)
	RemoveFavorite(userID, bookID string) (bool, error)
	ListFavorites(userID string) ([]domain.FavoriteBook, error)

	// reading history
	AddReadingHistory(domain.ReadingHistory) error
	ListReadingHistory(userID string) ([]domain.ReadingHistory, error)
	ReadCount() (int64, error)
	MostReadBook() (*domain.BookCount, error)

	// conversations
	SaveConversation(domain.Conversation) error
	GetConversation(id string) (domain.Conversation, bool, error)
	ListConversationsByUser(userID string) ([]domain.Conversation, error)
	ListMessages(conversationID string) ([]domain.ChatMessage, error)
	// ListRecentMessages returns the newest limit messages in chronological
	// order, forming the context window sent to the model.
	ListRecentMessages(conversationID string, limit int) ([]domain.ChatMessage, error)
	// AppendExchange persists the user turn and the assistant turn and
	// touches the conversation timestamp in one transaction.
	AppendExchange(conversationID string, userMsg, assistantMsg domain.ChatMessage) error

	// notes
	SaveNote(domain.BookNote) error
	GetNote(id string) (domain.BookNote, bool, error)
	ListNotesByUserAndBook(userID, bookID string) ([]domain.BookNote, error)
	ListNotesByUser(userID string) ([]domain.BookNote, error)
	ListPublicNotesByBook(bookID string) ([]domain.BookNote, error)
	DeleteNote(id string) error
	NoteStatsByUser(userID string) (domain.NoteStats, error)
}

// SessionStore persists session tokens.
type SessionStore interface {
	NewSession(userID string) (string, error)
	GetUserIDByToken(token string) (string, bool, error)
	DeleteSession(token string) error
}

// UserSessionRevoker is an optional capability that revokes all sessions
// issued for a user since a cutoff time.
type UserSessionRevoker interface {
	RevokeUserSessions(userID string, since time.Time) error
}

// UserRefreshTokenRevoker is an optional capability that revokes all refresh
// tokens for a user.
type UserRefreshTokenRevoker interface {
	RevokeUserRefreshTokens(userID string) error
}
