package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"bookquest/internal/util"
	"bookquest/pkg/domain"
	"bookquest/pkg/store"
)

// Upload is a file received from a multipart form.
type Upload struct {
	Reader      io.Reader
	Size        int64
	ContentType string
}

// CreateUserBookInput carries a reader's book submission.
type CreateUserBookInput struct {
	Title        string
	Author       string
	Description  string
	OriginBookID string
	Pages        int
	PDF          *Upload
	Cover        *Upload
}

// CreateUserBook stores the uploaded files and records an unapproved
// submission. Author defaults to the submitter's display name.
func (a *App) CreateUserBook(ctx context.Context, userID string, in CreateUserBookInput) (domain.UserBook, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return domain.UserBook{}, Validation("Title is required.")
	}
	if in.PDF == nil {
		return domain.UserBook{}, Validation("A PDF file is required.")
	}
	user, ok, err := a.store.GetUserByID(userID)
	if err != nil {
		return domain.UserBook{}, Internal("could not look up user", err)
	}
	if !ok {
		return domain.UserBook{}, Auth("authentication required")
	}
	author := strings.TrimSpace(in.Author)
	if author == "" {
		author = user.DisplayName()
	}

	id := util.NewID()
	pdfKey := fmt.Sprintf("user-books/%s/book.pdf", id)
	if err := a.objects.Put(ctx, pdfKey, in.PDF.Reader, in.PDF.Size, contentTypeOr(in.PDF.ContentType, "application/pdf")); err != nil {
		return domain.UserBook{}, Internal("could not store pdf", err)
	}
	coverKey := ""
	if in.Cover != nil {
		coverKey = fmt.Sprintf("user-books/%s/cover", id)
		if err := a.objects.Put(ctx, coverKey, in.Cover.Reader, in.Cover.Size, contentTypeOr(in.Cover.ContentType, "image/jpeg")); err != nil {
			return domain.UserBook{}, Internal("could not store cover", err)
		}
	}

	now := time.Now().UTC()
	ub := domain.UserBook{
		ID:           id,
		UserID:       userID,
		OriginBookID: strings.TrimSpace(in.OriginBookID),
		Title:        in.Title,
		Author:       author,
		Description:  strings.TrimSpace(in.Description),
		PDFKey:       pdfKey,
		CoverKey:     coverKey,
		Pages:        in.Pages,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.SaveUserBook(ub); err != nil {
		return domain.UserBook{}, Internal("could not save submission", err)
	}
	return ub, nil
}

func contentTypeOr(ct, fallback string) string {
	if strings.TrimSpace(ct) == "" {
		return fallback
	}
	return ct
}

// ListPendingUserBooks returns submissions awaiting moderation.
func (a *App) ListPendingUserBooks() ([]domain.UserBook, error) {
	pending := false
	books, err := a.store.ListUserBooks(&pending)
	if err != nil {
		return nil, Internal("could not list submissions", err)
	}
	return books, nil
}

// ListApprovedUserBooks returns submissions that made it into the catalog.
func (a *App) ListApprovedUserBooks() ([]domain.UserBook, error) {
	approved := true
	books, err := a.store.ListUserBooks(&approved)
	if err != nil {
		return nil, Internal("could not list submissions", err)
	}
	return books, nil
}

// ApproveUserBook publishes a submission as a catalog book. The approval
// flag and the new book are written in one transaction.
func (a *App) ApproveUserBook(userBookID string) (domain.Book, error) {
	ub, ok, err := a.store.GetUserBook(userBookID)
	if err != nil {
		return domain.Book{}, Internal("could not look up submission", err)
	}
	if !ok {
		return domain.Book{}, NotFound("Book not found.")
	}
	now := time.Now().UTC()
	book := domain.Book{
		ID:        util.NewID(),
		Title:     ub.Title,
		Author:    ub.Author,
		PDFKey:    ub.PDFKey,
		CoverKey:  ub.CoverKey,
		Pages:     ub.Pages,
		CreatedAt: now,
		UpdatedAt: now,
	}
	published, err := a.store.ApproveUserBook(userBookID, book)
	if err != nil {
		if errors.Is(err, store.ErrUserBookApproved) {
			return domain.Book{}, Validation("Book has already been approved.")
		}
		return domain.Book{}, Internal("could not approve submission", err)
	}
	return published, nil
}

// RejectDeleteUserBook removes an unapproved submission along with its
// uploaded files. Approved submissions cannot be rejected.
func (a *App) RejectDeleteUserBook(ctx context.Context, userBookID string) (string, error) {
	ub, ok, err := a.store.GetUserBook(userBookID)
	if err != nil {
		return "", Internal("could not look up submission", err)
	}
	if !ok {
		return "", NotFound("Book not found.")
	}
	if ub.IsApproved {
		return "", Validation("Only unapproved books can be rejected and deleted.")
	}
	if err := a.store.DeleteUserBook(userBookID); err != nil {
		return "", Internal("could not delete submission", err)
	}
	// The row is gone; object cleanup failures only cost storage.
	if a.objects != nil {
		if ub.PDFKey != "" {
			_ = a.objects.Delete(ctx, ub.PDFKey)
		}
		if ub.CoverKey != "" {
			_ = a.objects.Delete(ctx, ub.CoverKey)
		}
	}
	return ub.Title, nil
}

// EditBook updates a catalog book's metadata.
func (a *App) EditBook(bookID, title, author string, pages int) (domain.Book, error) {
	book, ok, err := a.store.GetBook(bookID)
	if err != nil {
		return domain.Book{}, Internal("could not look up book", err)
	}
	if !ok {
		return domain.Book{}, NotFound("Book not found.")
	}
	if t := strings.TrimSpace(title); t != "" {
		book.Title = t
	}
	if au := strings.TrimSpace(author); au != "" {
		book.Author = au
	}
	if pages > 0 {
		book.Pages = pages
	}
	book.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveBook(book); err != nil {
		return domain.Book{}, Internal("could not save book", err)
	}
	return book, nil
}

// DeleteBook removes a catalog book. Database rows go first in one
// transaction; stored objects are deleted afterwards and a failure there
// surfaces so an operator can reclaim the space.
func (a *App) DeleteBook(ctx context.Context, bookID string) error {
	book, ok, err := a.store.GetBook(bookID)
	if err != nil {
		return Internal("could not look up book", err)
	}
	if !ok {
		return NotFound("Book not found.")
	}
	if err := a.store.DeleteBook(bookID); err != nil {
		return Internal("could not delete book", err)
	}
	if a.objects != nil {
		if book.PDFKey != "" {
			if err := a.objects.Delete(ctx, book.PDFKey); err != nil {
				return Internal("book deleted but pdf cleanup failed", err)
			}
		}
		if book.CoverKey != "" {
			if err := a.objects.Delete(ctx, book.CoverKey); err != nil {
				return Internal("book deleted but cover cleanup failed", err)
			}
		}
	}
	return nil
}
