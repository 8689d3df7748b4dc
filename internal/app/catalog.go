package app

import (
	"context"
	"math"
	"strings"
	"time"

	"bookquest/internal/util"
	"bookquest/pkg/domain"
)

// BookDetail is a catalog entry with its average rating.
type BookDetail struct {
	domain.Book
	AverageRating float64 `json:"average_rating"`
	CoverURL      string  `json:"cover_url,omitempty"`
}

// BookContent is what a reader needs to open a book.
type BookContent struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	PDFURL string `json:"pdf_url"`
}

// SearchBooks matches a case-insensitive substring over title and author.
func (a *App) SearchBooks(query string) ([]domain.Book, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, Validation("Search query is required.")
	}
	books, err := a.store.ListBooks()
	if err != nil {
		return nil, Internal("could not list books", err)
	}
	needle := strings.ToLower(query)
	matches := make([]domain.Book, 0)
	for _, b := range books {
		if strings.Contains(strings.ToLower(b.Title), needle) ||
			strings.Contains(strings.ToLower(b.Author), needle) {
			matches = append(matches, b)
		}
	}
	if len(matches) == 0 {
		return nil, NotFound("No books found matching your search.")
	}
	return matches, nil
}

// ListBooks returns the whole catalog.
func (a *App) ListBooks() ([]domain.Book, error) {
	books, err := a.store.ListBooks()
	if err != nil {
		return nil, Internal("could not list books", err)
	}
	return books, nil
}

// GetBookDetail returns a book with its average rating rounded to one
// decimal (0 when unrated) and a presigned cover URL when one exists.
func (a *App) GetBookDetail(ctx context.Context, bookID string) (BookDetail, error) {
	book, ok, err := a.store.GetBook(bookID)
	if err != nil {
		return BookDetail{}, Internal("could not look up book", err)
	}
	if !ok {
		return BookDetail{}, NotFound("Book not found.")
	}
	stats, err := a.store.RatingStatsByBook(bookID)
	if err != nil {
		return BookDetail{}, Internal("could not compute rating", err)
	}
	detail := BookDetail{
		Book:          book,
		AverageRating: math.Round(stats.AverageRating*10) / 10,
	}
	if book.CoverKey != "" && a.objects != nil {
		if url, err := a.objects.PresignGet(ctx, book.CoverKey, a.presignTTL); err == nil {
			detail.CoverURL = url
		}
	}
	return detail, nil
}

// BooksByAuthor filters the catalog by author name, case-insensitive.
func (a *App) BooksByAuthor(author string) ([]domain.Book, error) {
	author = strings.TrimSpace(author)
	if author == "" {
		return nil, Validation("Author name is required.")
	}
	books, err := a.store.ListBooks()
	if err != nil {
		return nil, Internal("could not list books", err)
	}
	needle := strings.ToLower(author)
	matches := make([]domain.Book, 0)
	for _, b := range books {
		if strings.Contains(strings.ToLower(b.Author), needle) {
			matches = append(matches, b)
		}
	}
	if len(matches) == 0 {
		return nil, NotFound("No books found for this author.")
	}
	return matches, nil
}

// GetBookContent resolves the book's PDF to a presigned URL.
func (a *App) GetBookContent(ctx context.Context, bookID string) (BookContent, error) {
	book, ok, err := a.store.GetBook(bookID)
	if err != nil {
		return BookContent{}, Internal("could not look up book", err)
	}
	if !ok {
		return BookContent{}, NotFound("Book not found.")
	}
	if book.PDFKey == "" {
		return BookContent{}, NotFound("No PDF available for this book.")
	}
	url, err := a.objects.PresignGet(ctx, book.PDFKey, a.presignTTL)
	if err != nil {
		return BookContent{}, Internal("could not presign pdf", err)
	}
	return BookContent{Title: book.Title, Author: book.Author, PDFURL: url}, nil
}

// AddReview records a review. Rating is optional but must be 1..5 when set.
// Repeat reviews from the same user accumulate.
func (a *App) AddReview(userID, bookID string, rating *int, comment string) (domain.Review, error) {
	if _, ok, err := a.store.GetBook(bookID); err != nil {
		return domain.Review{}, Internal("could not look up book", err)
	} else if !ok {
		return domain.Review{}, NotFound("Book not found.")
	}
	if rating != nil && (*rating < 1 || *rating > 5) {
		return domain.Review{}, Validation("Rating must be between 1 and 5.")
	}
	comment = strings.TrimSpace(comment)
	if rating == nil && comment == "" {
		return domain.Review{}, Validation("A rating or comment is required.")
	}
	review := domain.Review{
		ID:        util.NewID(),
		BookID:    bookID,
		UserID:    userID,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.store.SaveReview(review); err != nil {
		return domain.Review{}, Internal("could not save review", err)
	}
	if user, ok, err := a.store.GetUserByID(userID); err == nil && ok {
		review.UserName = user.DisplayName()
	}
	return review, nil
}

// ListReviews returns a book's reviews, newest first.
func (a *App) ListReviews(bookID string) ([]domain.Review, error) {
	if _, ok, err := a.store.GetBook(bookID); err != nil {
		return nil, Internal("could not look up book", err)
	} else if !ok {
		return nil, NotFound("Book not found.")
	}
	reviews, err := a.store.ListReviewsByBook(bookID)
	if err != nil {
		return nil, Internal("could not list reviews", err)
	}
	return reviews, nil
}

// AddFavorite links the book to the caller. Repeats succeed without a
// second link, reporting whether a new one was created.
func (a *App) AddFavorite(userID, bookID string) (bool, error) {
	if _, ok, err := a.store.GetBook(bookID); err != nil {
		return false, Internal("could not look up book", err)
	} else if !ok {
		return false, NotFound("Book not found.")
	}
	exists, err := a.store.HasFavorite(userID, bookID)
	if err != nil {
		return false, Internal("could not check favorites", err)
	}
	if exists {
		return false, nil
	}
	fav := domain.FavoriteBook{ID: util.NewID(), UserID: userID, BookID: bookID}
	if err := a.store.AddFavorite(fav); err != nil {
		return false, Internal("could not add favorite", err)
	}
	return true, nil
}

// RemoveFavorite unlinks the book, reporting whether it was linked at all.
func (a *App) RemoveFavorite(userID, bookID string) (bool, error) {
	removed, err := a.store.RemoveFavorite(userID, bookID)
	if err != nil {
		return false, Internal("could not remove favorite", err)
	}
	return removed, nil
}

// ListFavorites returns the caller's favorite books, resolved to catalog
// entries.
func (a *App) ListFavorites(userID string) ([]domain.Book, error) {
	favs, err := a.store.ListFavorites(userID)
	if err != nil {
		return nil, Internal("could not list favorites", err)
	}
	books := make([]domain.Book, 0, len(favs))
	for _, f := range favs {
		book, ok, err := a.store.GetBook(f.BookID)
		if err != nil {
			return nil, Internal("could not look up book", err)
		}
		if ok {
			books = append(books, book)
		}
	}
	return books, nil
}

// AddReadingHistory appends a read log entry.
func (a *App) AddReadingHistory(userID, bookID string) error {
	if _, ok, err := a.store.GetBook(bookID); err != nil {
		return Internal("could not look up book", err)
	} else if !ok {
		return NotFound("Book not found.")
	}
	entry := domain.ReadingHistory{
		ID:     util.NewID(),
		UserID: userID,
		BookID: bookID,
		ReadAt: time.Now().UTC(),
	}
	if err := a.store.AddReadingHistory(entry); err != nil {
		return Internal("could not record reading history", err)
	}
	return nil
}

// ListReadingHistory returns the caller's read log, newest first.
func (a *App) ListReadingHistory(userID string) ([]domain.ReadingHistory, error) {
	history, err := a.store.ListReadingHistory(userID)
	if err != nil {
		return nil, Internal("could not list reading history", err)
	}
	return history, nil
}
