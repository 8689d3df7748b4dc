package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"bookquest/pkg/domain"
)

// MemoryStore is an in-memory Store used by tests.
type MemoryStore struct {
	mu            sync.RWMutex
	users         map[string]domain.User
	books         map[string]domain.Book
	userBooks     map[string]domain.UserBook
	reviews       map[string]domain.Review
	favorites     map[string]domain.FavoriteBook
	history       []domain.ReadingHistory
	conversations map[string]domain.Conversation
	messages      map[string][]domain.ChatMessage
	notes         map[string]domain.BookNote
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         map[string]domain.User{},
		books:         map[string]domain.Book{},
		userBooks:     map[string]domain.UserBook{},
		reviews:       map[string]domain.Review{},
		favorites:     map[string]domain.FavoriteBook{},
		conversations: map[string]domain.Conversation{},
		messages:      map[string][]domain.ChatMessage{},
		notes:         map[string]domain.BookNote{},
	}
}

func (s *MemoryStore) SaveUser(u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	return nil
}

func (s *MemoryStore) HasUserEmail(email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, true, nil
		}
	}
	return domain.User{}, false, nil
}

func (s *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	return u, ok, nil
}

func (s *MemoryStore) ListUsers() ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		res = append(res, u)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

func (s *MemoryStore) UserCount() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.users)), nil
}

func (s *MemoryStore) DeleteUser(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	for rid, r := range s.reviews {
		if r.UserID == id {
			delete(s.reviews, rid)
		}
	}
	for fid, f := range s.favorites {
		if f.UserID == id {
			delete(s.favorites, fid)
		}
	}
	kept := s.history[:0]
	for _, h := range s.history {
		if h.UserID != id {
			kept = append(kept, h)
		}
	}
	s.history = kept
	for nid, n := range s.notes {
		if n.UserID == id {
			delete(s.notes, nid)
		}
	}
	for ubid, ub := range s.userBooks {
		if ub.UserID == id {
			delete(s.userBooks, ubid)
		}
	}
	for cid, c := range s.conversations {
		if c.UserID == id {
			delete(s.conversations, cid)
			delete(s.messages, cid)
		}
	}
	return nil
}

func (s *MemoryStore) SaveBook(b domain.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.books[b.ID] = b
	return nil
}

func (s *MemoryStore) ListBooks() ([]domain.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]domain.Book, 0, len(s.books))
	for _, b := range s.books {
		res = append(res, b)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Title < res[j].Title })
	return res, nil
}

func (s *MemoryStore) GetBook(id string) (domain.Book, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.books[id]
	return b, ok, nil
}

func (s *MemoryStore) DeleteBook(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.books, id)
	for rid, r := range s.reviews {
		if r.BookID == id {
			delete(s.reviews, rid)
		}
	}
	for fid, f := range s.favorites {
		if f.BookID == id {
			delete(s.favorites, fid)
		}
	}
	kept := s.history[:0]
	for _, h := range s.history {
		if h.BookID != id {
			kept = append(kept, h)
		}
	}
	s.history = kept
	for nid, n := range s.notes {
		if n.BookID == id {
			delete(s.notes, nid)
		}
	}
	return nil
}

func (s *MemoryStore) BookCount() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.books)), nil
}

func (s *MemoryStore) SaveUserBook(ub domain.UserBook) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userBooks[ub.ID] = ub
	return nil
}

func (s *MemoryStore) GetUserBook(id string) (domain.UserBook, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ub, ok := s.userBooks[id]
	return ub, ok, nil
}

func (s *MemoryStore) ListUserBooks(approved *bool) ([]domain.UserBook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]domain.UserBook, 0, len(s.userBooks))
	for _, ub := range s.userBooks {
		if approved != nil && ub.IsApproved != *approved {
			continue
		}
		res = append(res, ub)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

func (s *MemoryStore) ListUserBooksByUser(userID string) ([]domain.UserBook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]domain.UserBook, 0)
	for _, ub := range s.userBooks {
		if ub.UserID == userID {
			res = append(res, ub)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

func (s *MemoryStore) ApproveUserBook(id string, book domain.Book) (domain.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ub, ok := s.userBooks[id]
	if !ok {
		return domain.Book{}, fmt.Errorf("user book %q not found", id)
	}
	if ub.IsApproved {
		return domain.Book{}, ErrUserBookApproved
	}
	ub.IsApproved = true
	ub.UpdatedAt = time.Now().UTC()
	s.userBooks[id] = ub
	s.books[book.ID] = book
	return book, nil
}

func (s *MemoryStore) DeleteUserBook(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.userBooks, id)
	return nil
}

func (s *MemoryStore) SaveReview(r domain.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviews[r.ID] = r
	return nil
}

func (s *MemoryStore) ListReviewsByBook(bookID string) ([]domain.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]domain.Review, 0)
	for _, r := range s.reviews {
		if r.BookID != bookID {
			continue
		}
		if u, ok := s.users[r.UserID]; ok {
			r.UserName = u.DisplayName()
		}
		res = append(res, r)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

func (s *MemoryStore) ReviewCount() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.reviews)), nil
}

func (s *MemoryStore) RatingStatsByBook(bookID string) (domain.RatingStats, error) {
	return s.ratingStats(&bookID)
}

func (s *MemoryStore) RatingStats() (domain.RatingStats, error) {
	return s.ratingStats(nil)
}

func (s *MemoryStore) ratingStats(bookID *string) (domain.RatingStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := domain.RatingStats{Rates: map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}}
	total, sum := 0, 0
	for _, r := range s.reviews {
		if r.Rating == nil {
			continue
		}
		if bookID != nil && r.BookID != *bookID {
			continue
		}
		if *r.Rating < 1 || *r.Rating > 5 {
			continue
		}
		stats.Rates[*r.Rating]++
		total++
		sum += *r.Rating
	}
	if total > 0 {
		stats.AverageRating = float64(sum) / float64(total)
	}
	return stats, nil
}

func (s *MemoryStore) AverageRating() (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total, sum := 0, 0
	for _, r := range s.reviews {
		if r.Rating == nil {
			continue
		}
		total++
		sum += *r.Rating
	}
	if total == 0 {
		return 0, nil
	}
	return float64(sum) / float64(total), nil
}

func (s *MemoryStore) AddFavorite(f domain.FavoriteBook) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.favorites {
		if existing.UserID == f.UserID && existing.BookID == f.BookID {
			return fmt.Errorf("favorite already exists")
		}
	}
	s.favorites[f.ID] = f
	return nil
}

func (s *MemoryStore) HasFavorite(userID, bookID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, f := range s.favorites {
		if f.UserID == userID && f.BookID == bookID {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) RemoveFavorite(userID, bookID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, f := range s.favorites {
		if f.UserID == userID && f.BookID == bookID {
			delete(s.favorites, id)
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) ListFavorites(userID string) ([]domain.FavoriteBook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]domain.FavoriteBook, 0)
	for _, f := range s.favorites {
		if f.UserID == userID {
			res = append(res, f)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (s *MemoryStore) AddReadingHistory(h domain.ReadingHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, h)
	return nil
}

func (s *MemoryStore) ListReadingHistory(userID string) ([]domain.ReadingHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]domain.ReadingHistory, 0)
	for _, h := range s.history {
		if h.UserID != userID {
			continue
		}
		if b, ok := s.books[h.BookID]; ok {
			h.BookTitle = b.Title
			h.BookAuthor = b.Author
		}
		res = append(res, h)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ReadAt.After(res[j].ReadAt) })
	return res, nil
}

func (s *MemoryStore) ReadCount() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.history)), nil
}

func (s *MemoryStore) MostReadBook() (*domain.BookCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := map[string]int{}
	for _, h := range s.history {
		counts[h.BookID]++
	}
	var best *domain.BookCount
	for bookID, count := range counts {
		if best != nil && count <= best.Count {
			continue
		}
		b, ok := s.books[bookID]
		if !ok {
			continue
		}
		best = &domain.BookCount{ID: bookID, Title: b.Title, Author: b.Author, Count: count}
	}
	return best, nil
}

func (s *MemoryStore) SaveConversation(c domain.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[c.ID] = c
	return nil
}

func (s *MemoryStore) GetConversation(id string) (domain.Conversation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[id]
	return c, ok, nil
}

func (s *MemoryStore) ListConversationsByUser(userID string) ([]domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]domain.Conversation, 0)
	for _, c := range s.conversations {
		if c.UserID == userID {
			res = append(res, c)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].UpdatedAt.After(res[j].UpdatedAt) })
	return res, nil
}

func (s *MemoryStore) ListMessages(conversationID string) ([]domain.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[conversationID]
	res := make([]domain.ChatMessage, len(msgs))
	copy(res, msgs)
	return res, nil
}

func (s *MemoryStore) ListRecentMessages(conversationID string, limit int) ([]domain.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[conversationID]
	if limit <= 0 {
		return []domain.ChatMessage{}, nil
	}
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	res := make([]domain.ChatMessage, len(msgs))
	copy(res, msgs)
	return res, nil
}

func (s *MemoryStore) AppendExchange(conversationID string, userMsg, assistantMsg domain.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[conversationID]
	if !ok {
		return fmt.Errorf("conversation %q not found", conversationID)
	}
	userMsg.ConversationID = conversationID
	assistantMsg.ConversationID = conversationID
	s.messages[conversationID] = append(s.messages[conversationID], userMsg, assistantMsg)
	c.UpdatedAt = time.Now().UTC()
	s.conversations[conversationID] = c
	return nil
}

func (s *MemoryStore) SaveNote(n domain.BookNote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes[n.ID] = n
	return nil
}

func (s *MemoryStore) GetNote(id string) (domain.BookNote, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notes[id]
	if !ok {
		return domain.BookNote{}, false, nil
	}
	return s.noteProjected(n), true, nil
}

func (s *MemoryStore) noteProjected(n domain.BookNote) domain.BookNote {
	if u, ok := s.users[n.UserID]; ok {
		n.UserName = u.DisplayName()
	}
	if b, ok := s.books[n.BookID]; ok {
		n.BookTitle = b.Title
	}
	return n
}

func sortNotesReadingOrder(res []domain.BookNote) {
	sort.Slice(res, func(i, j int) bool {
		pi, pj := 0, 0
		if res[i].PageNumber != nil {
			pi = *res[i].PageNumber
		}
		if res[j].PageNumber != nil {
			pj = *res[j].PageNumber
		}
		if pi != pj {
			return pi < pj
		}
		return res[i].PositionStart < res[j].PositionStart
	})
}

func (s *MemoryStore) ListNotesByUserAndBook(userID, bookID string) ([]domain.BookNote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]domain.BookNote, 0)
	for _, n := range s.notes {
		if n.UserID == userID && n.BookID == bookID {
			res = append(res, s.noteProjected(n))
		}
	}
	sortNotesReadingOrder(res)
	return res, nil
}

func (s *MemoryStore) ListNotesByUser(userID string) ([]domain.BookNote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]domain.BookNote, 0)
	for _, n := range s.notes {
		if n.UserID == userID {
			res = append(res, s.noteProjected(n))
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

func (s *MemoryStore) ListPublicNotesByBook(bookID string) ([]domain.BookNote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]domain.BookNote, 0)
	for _, n := range s.notes {
		if n.BookID == bookID && n.IsPublic {
			res = append(res, s.noteProjected(n))
		}
	}
	sortNotesReadingOrder(res)
	return res, nil
}

func (s *MemoryStore) DeleteNote(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.notes, id)
	return nil
}

func (s *MemoryStore) NoteStatsByUser(userID string) (domain.NoteStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := domain.NoteStats{}
	counts := map[string]int{}
	for _, n := range s.notes {
		if n.UserID != userID {
			continue
		}
		stats.TotalNotes++
		if n.IsPublic {
			stats.PublicNotesCount++
		} else {
			stats.PrivateNotesCount++
		}
		counts[n.BookID]++
	}
	stats.BooksWithNotes = len(counts)
	for bookID, count := range counts {
		if stats.MostNotedBook != nil && count <= stats.MostNotedBook.Count {
			continue
		}
		b, ok := s.books[bookID]
		if !ok {
			continue
		}
		stats.MostNotedBook = &domain.BookCount{ID: bookID, Title: b.Title, Author: b.Author, Count: count}
	}
	return stats, nil
}
