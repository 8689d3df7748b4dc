package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence. Converters to and from the domain
// structs live in gorm_store.go.

type UserModel struct {
	ID           string `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	FirstName    string
	LastName     string
	IsAdmin      bool      `gorm:"not null;default:false"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

type BookModel struct {
	ID        string `gorm:"primaryKey"`
	Title     string `gorm:"not null;index"`
	Author    string `gorm:"not null"`
	PDFKey    string
	CoverKey  string
	Pages     int
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

type UserBookModel struct {
	ID           string `gorm:"primaryKey"`
	UserID       string `gorm:"not null;index"`
	OriginBookID string
	Title        string `gorm:"not null"`
	Author       string `gorm:"not null"`
	Description  string `gorm:"type:text"`
	PDFKey       string
	CoverKey     string
	Pages        int
	IsApproved   bool      `gorm:"not null;default:false;index"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

type ReviewModel struct {
	ID        string `gorm:"primaryKey"`
	BookID    string `gorm:"not null;index"`
	UserID    string `gorm:"not null;index"`
	Rating    *int
	Comment   string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"not null;index"`
}

type FavoriteBookModel struct {
	ID        string    `gorm:"primaryKey"`
	UserID    string    `gorm:"not null;uniqueIndex:idx_favorite_user_book"`
	BookID    string    `gorm:"not null;uniqueIndex:idx_favorite_user_book"`
	CreatedAt time.Time `gorm:"not null"`
}

type ReadingHistoryModel struct {
	ID     string    `gorm:"primaryKey"`
	UserID string    `gorm:"not null;index"`
	BookID string    `gorm:"not null;index"`
	ReadAt time.Time `gorm:"not null;index"`
}

type ConversationModel struct {
	ID        string `gorm:"primaryKey"`
	UserID    string `gorm:"not null;index"`
	Title     string `gorm:"not null"`
	Role      string
	IsActive  bool      `gorm:"not null;default:true"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null;index"`
}

type ChatMessageModel struct {
	ID             string         `gorm:"primaryKey"`
	ConversationID string         `gorm:"not null;index"`
	Role           string         `gorm:"not null"`
	Content        string         `gorm:"type:text;not null"`
	Usage          datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt      time.Time      `gorm:"not null;index"`
}

type BookNoteModel struct {
	ID            string `gorm:"primaryKey"`
	UserID        string `gorm:"not null;index:idx_note_user_book"`
	BookID        string `gorm:"not null;index:idx_note_user_book"`
	SelectedText  string `gorm:"type:text;not null"`
	NoteContent   string `gorm:"type:text"`
	PageNumber    *int
	PositionStart int       `gorm:"not null"`
	PositionEnd   int       `gorm:"not null"`
	Color         string    `gorm:"not null"`
	IsPublic      bool      `gorm:"not null;default:false;index"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}
