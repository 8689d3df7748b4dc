package app

import (
	"context"
	"regexp"
	"strings"
	"time"

	"bookquest/internal/util"
	"bookquest/pkg/domain"
)

var colorRe = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// CreateNoteInput carries a new annotation.
type CreateNoteInput struct {
	SelectedText  string
	NoteContent   string
	PageNumber    *int
	PositionStart int
	PositionEnd   int
	Color         string
	IsPublic      bool
}

// UpdateNoteInput carries the mutable annotation fields. Nil means keep.
type UpdateNoteInput struct {
	NoteContent *string
	Color       *string
	IsPublic    *bool
}

// PersonalizedBook bundles a book with the caller's annotations.
type PersonalizedBook struct {
	Book       BookDetail        `json:"book"`
	PDFURL     string            `json:"pdf_url,omitempty"`
	Notes      []domain.BookNote `json:"notes"`
	NotesCount int               `json:"notes_count"`
}

// CreateNote anchors an annotation to a span of the book's text.
func (a *App) CreateNote(userID, bookID string, in CreateNoteInput) (domain.BookNote, error) {
	if _, ok, err := a.store.GetBook(bookID); err != nil {
		return domain.BookNote{}, Internal("could not look up book", err)
	} else if !ok {
		return domain.BookNote{}, NotFound("Book not found.")
	}
	in.SelectedText = strings.TrimSpace(in.SelectedText)
	if in.SelectedText == "" {
		return domain.BookNote{}, Validation("Selected text is required.")
	}
	if in.PositionStart < 0 || in.PositionEnd < in.PositionStart {
		return domain.BookNote{}, Validation("Invalid text position.")
	}
	color := strings.TrimSpace(in.Color)
	if color == "" {
		color = "#FFFF00"
	}
	if !colorRe.MatchString(color) {
		return domain.BookNote{}, Validation("Color must be in #RRGGBB format.")
	}
	now := time.Now().UTC()
	note := domain.BookNote{
		ID:            util.NewID(),
		UserID:        userID,
		BookID:        bookID,
		SelectedText:  in.SelectedText,
		NoteContent:   strings.TrimSpace(in.NoteContent),
		PageNumber:    in.PageNumber,
		PositionStart: in.PositionStart,
		PositionEnd:   in.PositionEnd,
		Color:         strings.ToUpper(color),
		IsPublic:      in.IsPublic,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := a.store.SaveNote(note); err != nil {
		return domain.BookNote{}, Internal("could not save note", err)
	}
	return a.noteByID(note.ID)
}

func (a *App) noteByID(noteID string) (domain.BookNote, error) {
	note, ok, err := a.store.GetNote(noteID)
	if err != nil {
		return domain.BookNote{}, Internal("could not look up note", err)
	}
	if !ok {
		return domain.BookNote{}, NotFound("Note not found.")
	}
	return note, nil
}

// getOwnedNote folds foreign ownership and wrong book into not-found so
// note IDs cannot be probed across users.
func (a *App) getOwnedNote(userID, bookID, noteID string) (domain.BookNote, error) {
	note, ok, err := a.store.GetNote(noteID)
	if err != nil {
		return domain.BookNote{}, Internal("could not look up note", err)
	}
	if !ok || note.UserID != userID || note.BookID != bookID {
		return domain.BookNote{}, NotFound("Note not found.")
	}
	return note, nil
}

// ListNotes returns the caller's annotations on a book in reading order.
func (a *App) ListNotes(userID, bookID string) ([]domain.BookNote, error) {
	if _, ok, err := a.store.GetBook(bookID); err != nil {
		return nil, Internal("could not look up book", err)
	} else if !ok {
		return nil, NotFound("Book not found.")
	}
	notes, err := a.store.ListNotesByUserAndBook(userID, bookID)
	if err != nil {
		return nil, Internal("could not list notes", err)
	}
	return notes, nil
}

// GetNote returns one of the caller's annotations.
func (a *App) GetNote(userID, bookID, noteID string) (domain.BookNote, error) {
	return a.getOwnedNote(userID, bookID, noteID)
}

// UpdateNote changes an annotation's content, color, or visibility. The
// anchored span is immutable.
func (a *App) UpdateNote(userID, bookID, noteID string, in UpdateNoteInput) (domain.BookNote, error) {
	note, err := a.getOwnedNote(userID, bookID, noteID)
	if err != nil {
		return domain.BookNote{}, err
	}
	if in.NoteContent != nil {
		note.NoteContent = strings.TrimSpace(*in.NoteContent)
	}
	if in.Color != nil {
		color := strings.TrimSpace(*in.Color)
		if !colorRe.MatchString(color) {
			return domain.BookNote{}, Validation("Color must be in #RRGGBB format.")
		}
		note.Color = strings.ToUpper(color)
	}
	if in.IsPublic != nil {
		note.IsPublic = *in.IsPublic
	}
	note.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveNote(note); err != nil {
		return domain.BookNote{}, Internal("could not save note", err)
	}
	return a.noteByID(note.ID)
}

// DeleteNote removes one of the caller's annotations.
func (a *App) DeleteNote(userID, bookID, noteID string) error {
	if _, err := a.getOwnedNote(userID, bookID, noteID); err != nil {
		return err
	}
	if err := a.store.DeleteNote(noteID); err != nil {
		return Internal("could not delete note", err)
	}
	return nil
}

// ListPublicNotes returns shared annotations on a book from any reader.
func (a *App) ListPublicNotes(bookID string) ([]domain.BookNote, error) {
	if _, ok, err := a.store.GetBook(bookID); err != nil {
		return nil, Internal("could not look up book", err)
	} else if !ok {
		return nil, NotFound("Book not found.")
	}
	notes, err := a.store.ListPublicNotesByBook(bookID)
	if err != nil {
		return nil, Internal("could not list notes", err)
	}
	return notes, nil
}

// GetPersonalizedBook bundles the book, its PDF URL, and the caller's
// annotations into one payload.
func (a *App) GetPersonalizedBook(ctx context.Context, userID, bookID string) (PersonalizedBook, error) {
	detail, err := a.GetBookDetail(ctx, bookID)
	if err != nil {
		return PersonalizedBook{}, err
	}
	notes, err := a.store.ListNotesByUserAndBook(userID, bookID)
	if err != nil {
		return PersonalizedBook{}, Internal("could not list notes", err)
	}
	out := PersonalizedBook{Book: detail, Notes: notes, NotesCount: len(notes)}
	if detail.PDFKey != "" && a.objects != nil {
		if url, err := a.objects.PresignGet(ctx, detail.PDFKey, a.presignTTL); err == nil {
			out.PDFURL = url
		}
	}
	return out, nil
}

// ListMyNotes returns every annotation the caller has made, newest first.
func (a *App) ListMyNotes(userID string) ([]domain.BookNote, error) {
	notes, err := a.store.ListNotesByUser(userID)
	if err != nil {
		return nil, Internal("could not list notes", err)
	}
	return notes, nil
}

// MyNoteStats summarizes the caller's annotations.
func (a *App) MyNoteStats(userID string) (domain.NoteStats, error) {
	stats, err := a.store.NoteStatsByUser(userID)
	if err != nil {
		return domain.NoteStats{}, Internal("could not compute note stats", err)
	}
	return stats, nil
}
