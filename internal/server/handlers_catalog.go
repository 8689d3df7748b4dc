package server

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"bookquest/internal/app"
	"bookquest/pkg/domain"
)

type reviewRequest struct {
	Rating  *int   `json:"rating"`
	Comment string `json:"comment"`
}

type bookRef struct {
	BookID string `json:"book_id"`
}

type editBookRequest struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	Pages  int    `json:"pages"`
}

func (s *Server) handleSearchBooks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	books, err := s.app.SearchBooks(r.URL.Query().Get("q"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": books, "count": len(books)})
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	books, err := s.app.ListBooks()
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": books, "count": len(books)})
}

// handleBookPath dispatches everything under /books/. The first segment is
// either a book ID or one of the reserved words "author" and "total".
func (s *Server) handleBookPath(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/books/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}

	switch parts[0] {
	case "author":
		if len(parts) != 2 || parts[1] == "" {
			http.NotFound(w, r)
			return
		}
		s.handleBooksByAuthor(w, r, parts[1])
		return
	case "total":
		if len(parts) != 1 {
			http.NotFound(w, r)
			return
		}
		s.adminOnly(s.handleTotalBooks).ServeHTTP(w, r)
		return
	}

	bookID := parts[0]
	rest := parts[1:]
	if len(rest) == 0 {
		s.handleBookDetail(w, r, bookID)
		return
	}

	switch rest[0] {
	case "content":
		s.handleBookContent(w, r, bookID)
	case "add_review":
		s.authenticated(func(w http.ResponseWriter, r *http.Request, user domain.User) {
			s.handleAddReview(w, r, user, bookID)
		}).ServeHTTP(w, r)
	case "reviews":
		s.handleListReviews(w, r, bookID)
	case "edit":
		s.adminOnly(func(w http.ResponseWriter, r *http.Request, _ domain.User) {
			s.handleEditBook(w, r, bookID)
		}).ServeHTTP(w, r)
	case "delete":
		s.adminOnly(func(w http.ResponseWriter, r *http.Request, _ domain.User) {
			s.handleDeleteBook(w, r, bookID)
		}).ServeHTTP(w, r)
	case "personalized":
		s.authenticated(func(w http.ResponseWriter, r *http.Request, user domain.User) {
			s.handlePersonalizedBook(w, r, user, bookID)
		}).ServeHTTP(w, r)
	case "notes":
		s.handleNotePath(w, r, bookID, rest[1:])
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleBookDetail(w http.ResponseWriter, r *http.Request, bookID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	detail, err := s.app.GetBookDetail(r.Context(), bookID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleBooksByAuthor(w http.ResponseWriter, r *http.Request, author string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	books, err := s.app.BooksByAuthor(author)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": books, "count": len(books)})
}

func (s *Server) handleBookContent(w http.ResponseWriter, r *http.Request, bookID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	content, err := s.app.GetBookContent(r.Context(), bookID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, content)
}

func (s *Server) handleAddReview(w http.ResponseWriter, r *http.Request, user domain.User, bookID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	review, err := s.app.AddReview(user.ID, bookID, req.Rating, req.Comment)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request, bookID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	reviews, err := s.app.ListReviews(bookID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": reviews, "count": len(reviews)})
}

func (s *Server) handleEditBook(w http.ResponseWriter, r *http.Request, bookID string) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	var req editBookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	book, err := s.app.EditBook(bookID, req.Title, req.Author, req.Pages)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request, bookID string) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	if err := s.app.DeleteBook(r.Context(), bookID); err != nil {
		writeAppError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Book deleted successfully!")
}

func (s *Server) handleListFavorites(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	books, err := s.app.ListFavorites(user.ID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": books, "count": len(books)})
}

func (s *Server) handleAddFavorite(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req bookRef
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	added, err := s.app.AddFavorite(user.ID, req.BookID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if !added {
		writeMessage(w, http.StatusOK, "Book already added to favorites!")
		return
	}
	writeMessage(w, http.StatusCreated, "Book added to favorites!")
}

func (s *Server) handleRemoveFavorite(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req bookRef
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	removed, err := s.app.RemoveFavorite(user.ID, req.BookID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if !removed {
		writeMessage(w, http.StatusOK, "Book was not in favorites.")
		return
	}
	writeMessage(w, http.StatusOK, "Book removed from favorites!")
}

func (s *Server) handleListReadingHistory(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	history, err := s.app.ListReadingHistory(user.ID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": history, "count": len(history)})
}

func (s *Server) handleAddReadingHistory(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req bookRef
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.app.AddReadingHistory(user.ID, req.BookID); err != nil {
		writeAppError(w, err)
		return
	}
	writeMessage(w, http.StatusCreated, "Reading history recorded!")
}

// submissions & moderation

func (s *Server) handleCreateUserBook(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	pages, _ := strconv.Atoi(r.FormValue("pages"))
	in := app.CreateUserBookInput{
		Title:        r.FormValue("title"),
		Author:       r.FormValue("author"),
		Description:  r.FormValue("description"),
		OriginBookID: r.FormValue("original_book"),
		Pages:        pages,
	}
	pdfFile, pdfHeader, err := r.FormFile("pdf")
	if err == nil {
		defer pdfFile.Close()
		if !strings.EqualFold(filepath.Ext(pdfHeader.Filename), ".pdf") {
			writeError(w, http.StatusBadRequest, "unsupported file type")
			return
		}
		in.PDF = &app.Upload{
			Reader:      pdfFile,
			Size:        pdfHeader.Size,
			ContentType: pdfHeader.Header.Get("Content-Type"),
		}
	}
	coverFile, coverHeader, err := r.FormFile("cover")
	if err == nil {
		defer coverFile.Close()
		in.Cover = &app.Upload{
			Reader:      coverFile,
			Size:        coverHeader.Size,
			ContentType: coverHeader.Header.Get("Content-Type"),
		}
	}
	ub, err := s.app.CreateUserBook(r.Context(), user.ID, in)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ub)
}

func (s *Server) handleListUserBooks(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	books, err := s.app.ListPendingUserBooks()
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": books, "count": len(books)})
}

func (s *Server) handleListApprovedBooks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	books, err := s.app.ListApprovedUserBooks()
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": books, "count": len(books)})
}

func (s *Server) handleApproveUserBook(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/approve-user-book/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	book, err := s.app.ApproveUserBook(id)
	if err != nil {
		s.audit(r, "userbook.approve", "fail", "user_id", user.ID, "reason", err.Error())
		writeAppError(w, err)
		return
	}
	s.audit(r, "userbook.approve", "success", "user_id", user.ID, "book_id", book.ID)
	writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleRejectDeleteBook(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/reject-delete-book/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	title, err := s.app.RejectDeleteUserBook(r.Context(), id)
	if err != nil {
		s.audit(r, "userbook.reject", "fail", "user_id", user.ID, "reason", err.Error())
		writeAppError(w, err)
		return
	}
	s.audit(r, "userbook.reject", "success", "user_id", user.ID)
	writeMessage(w, http.StatusOK, fmt.Sprintf("Book '%s' has been rejected and deleted.", title))
}
