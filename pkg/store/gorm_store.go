package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"bookquest/pkg/domain"
)

const migrateLockID int64 = 82418241

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&UserModel{},
			&BookModel{},
			&UserBookModel{},
			&ReviewModel{},
			&FavoriteBookModel{},
			&ReadingHistoryModel{},
			&ConversationModel{},
			&ChatMessageModel{},
			&BookNoteModel{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		if err := tx.Exec(`
			DO $$
			BEGIN
				DELETE FROM review_models r
				WHERE NOT EXISTS (SELECT 1 FROM book_models b WHERE b.id = r.book_id);
				DELETE FROM favorite_book_models f
				WHERE NOT EXISTS (SELECT 1 FROM book_models b WHERE b.id = f.book_id);
				DELETE FROM reading_history_models h
				WHERE NOT EXISTS (SELECT 1 FROM book_models b WHERE b.id = h.book_id);
				DELETE FROM book_note_models n
				WHERE NOT EXISTS (SELECT 1 FROM book_models b WHERE b.id = n.book_id);
				DELETE FROM chat_message_models m
				WHERE NOT EXISTS (SELECT 1 FROM conversation_models c WHERE c.id = m.conversation_id);
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'review_models'
					AND constraint_name = 'review_models_book_id_fkey'
				) THEN
					ALTER TABLE review_models
					ADD CONSTRAINT review_models_book_id_fkey
					FOREIGN KEY (book_id) REFERENCES book_models(id) ON DELETE CASCADE;
				END IF;
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'favorite_book_models'
					AND constraint_name = 'favorite_book_models_book_id_fkey'
				) THEN
					ALTER TABLE favorite_book_models
					ADD CONSTRAINT favorite_book_models_book_id_fkey
					FOREIGN KEY (book_id) REFERENCES book_models(id) ON DELETE CASCADE;
				END IF;
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'reading_history_models'
					AND constraint_name = 'reading_history_models_book_id_fkey'
				) THEN
					ALTER TABLE reading_history_models
					ADD CONSTRAINT reading_history_models_book_id_fkey
					FOREIGN KEY (book_id) REFERENCES book_models(id) ON DELETE CASCADE;
				END IF;
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'book_note_models'
					AND constraint_name = 'book_note_models_book_id_fkey'
				) THEN
					ALTER TABLE book_note_models
					ADD CONSTRAINT book_note_models_book_id_fkey
					FOREIGN KEY (book_id) REFERENCES book_models(id) ON DELETE CASCADE;
				END IF;
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'chat_message_models'
					AND constraint_name = 'chat_message_models_conversation_id_fkey'
				) THEN
					ALTER TABLE chat_message_models
					ADD CONSTRAINT chat_message_models_conversation_id_fkey
					FOREIGN KEY (conversation_id) REFERENCES conversation_models(id) ON DELETE CASCADE;
				END IF;
			END $$;
		`).Error; err != nil {
			return fmt.Errorf("ensure foreign keys: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "password_hash", "first_name", "last_name", "is_admin", "updated_at"}),
	}).Create(&model).Error
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// ListUsers returns all users ordered by created_at.
func (s *GormStore) ListUsers() ([]domain.User, error) {
	var models []UserModel
	if err := s.db.Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		res = append(res, userFromModel(m))
	}
	return res, nil
}

// UserCount returns number of users.
func (s *GormStore) UserCount() (int64, error) {
	var count int64
	err := s.db.Model(&UserModel{}).Count(&count).Error
	return count, err
}

// DeleteUser removes the account and everything it owns.
func (s *GormStore) DeleteUser(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var convIDs []string
		if err := tx.Model(&ConversationModel{}).Where("user_id = ?", id).
			Pluck("id", &convIDs).Error; err != nil {
			return err
		}
		if len(convIDs) > 0 {
			if err := tx.Delete(&ChatMessageModel{}, "conversation_id IN ?", convIDs).Error; err != nil {
				return err
			}
			if err := tx.Delete(&ConversationModel{}, "id IN ?", convIDs).Error; err != nil {
				return err
			}
		}
		for _, model := range []any{
			&ReviewModel{}, &FavoriteBookModel{}, &ReadingHistoryModel{},
			&BookNoteModel{}, &UserBookModel{},
		} {
			if err := tx.Delete(model, "user_id = ?", id).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&UserModel{}, "id = ?", id).Error
	})
}

// SaveBook stores or updates a catalog book.
func (s *GormStore) SaveBook(b domain.Book) error {
	model := bookToModel(b)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "author", "pdf_key", "cover_key", "pages", "updated_at"}),
	}).Create(&model).Error
}

// ListBooks returns the catalog ordered by title.
func (s *GormStore) ListBooks() ([]domain.Book, error) {
	var models []BookModel
	if err := s.db.Order("title ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Book, 0, len(models))
	for _, m := range models {
		res = append(res, bookFromModel(m))
	}
	return res, nil
}

// GetBook retrieves a book.
func (s *GormStore) GetBook(id string) (domain.Book, bool, error) {
	var model BookModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, err
	}
	return bookFromModel(model), true, nil
}

// DeleteBook removes a book and everything hanging off it.
func (s *GormStore) DeleteBook(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&ReviewModel{}, "book_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&FavoriteBookModel{}, "book_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&ReadingHistoryModel{}, "book_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&BookNoteModel{}, "book_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&BookModel{}, "id = ?", id).Error
	})
}

// BookCount returns the catalog size.
func (s *GormStore) BookCount() (int64, error) {
	var count int64
	err := s.db.Model(&BookModel{}).Count(&count).Error
	return count, err
}

// SaveUserBook stores or updates a submission.
func (s *GormStore) SaveUserBook(ub domain.UserBook) error {
	model := userBookToModel(ub)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "author", "description", "pdf_key", "cover_key", "pages", "is_approved", "updated_at"}),
	}).Create(&model).Error
}

// GetUserBook retrieves a submission.
func (s *GormStore) GetUserBook(id string) (domain.UserBook, bool, error) {
	var model UserBookModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.UserBook{}, false, nil
		}
		return domain.UserBook{}, false, err
	}
	return userBookFromModel(model), true, nil
}

// ListUserBooks returns submissions, optionally filtered by approval state.
func (s *GormStore) ListUserBooks(approved *bool) ([]domain.UserBook, error) {
	tx := s.db.Order("created_at DESC")
	if approved != nil {
		tx = tx.Where("is_approved = ?", *approved)
	}
	var models []UserBookModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.UserBook, 0, len(models))
	for _, m := range models {
		res = append(res, userBookFromModel(m))
	}
	return res, nil
}

// ListUserBooksByUser returns one user's submissions, newest first.
func (s *GormStore) ListUserBooksByUser(userID string) ([]domain.UserBook, error) {
	var models []UserBookModel
	if err := s.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.UserBook, 0, len(models))
	for _, m := range models {
		res = append(res, userBookFromModel(m))
	}
	return res, nil
}

// ApproveUserBook flips the submission to approved and publishes the catalog
// book in the same transaction. Approving twice fails with
// ErrUserBookApproved.
func (s *GormStore) ApproveUserBook(id string, book domain.Book) (domain.Book, error) {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var model UserBookModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&model, "id = ?", id).Error; err != nil {
			return err
		}
		if model.IsApproved {
			return ErrUserBookApproved
		}
		now := time.Now().UTC()
		if err := tx.Model(&UserBookModel{}).Where("id = ?", id).
			Updates(map[string]any{"is_approved": true, "updated_at": now}).Error; err != nil {
			return err
		}
		bookModel := bookToModel(book)
		return tx.Create(&bookModel).Error
	})
	if err != nil {
		return domain.Book{}, err
	}
	return book, nil
}

// DeleteUserBook removes a submission.
func (s *GormStore) DeleteUserBook(id string) error {
	return s.db.Delete(&UserBookModel{}, "id = ?", id).Error
}

// SaveReview records a review.
func (s *GormStore) SaveReview(r domain.Review) error {
	model := reviewToModel(r)
	return s.db.Create(&model).Error
}

// ListReviewsByBook returns reviews for a book, newest first, with the
// reviewer's name resolved.
func (s *GormStore) ListReviewsByBook(bookID string) ([]domain.Review, error) {
	var models []ReviewModel
	if err := s.db.Where("book_id = ?", bookID).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Review, 0, len(models))
	for _, m := range models {
		review := reviewFromModel(m)
		if user, ok, err := s.GetUserByID(m.UserID); err != nil {
			return nil, err
		} else if ok {
			review.UserName = user.DisplayName()
		}
		res = append(res, review)
	}
	return res, nil
}

// ReviewCount returns the total number of reviews.
func (s *GormStore) ReviewCount() (int64, error) {
	var count int64
	err := s.db.Model(&ReviewModel{}).Count(&count).Error
	return count, err
}

// RatingStatsByBook builds a 1..5 histogram and weighted average for a book.
func (s *GormStore) RatingStatsByBook(bookID string) (domain.RatingStats, error) {
	return s.ratingStats(s.db.Where("book_id = ?", bookID))
}

// RatingStats builds the platform-wide histogram and weighted average.
func (s *GormStore) RatingStats() (domain.RatingStats, error) {
	return s.ratingStats(s.db)
}

func (s *GormStore) ratingStats(tx *gorm.DB) (domain.RatingStats, error) {
	var rows []struct {
		Rating int
		Count  int
	}
	if err := tx.Model(&ReviewModel{}).
		Select("rating, COUNT(*) AS count").
		Where("rating IS NOT NULL").
		Group("rating").
		Scan(&rows).Error; err != nil {
		return domain.RatingStats{}, err
	}
	stats := domain.RatingStats{Rates: map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}}
	total, sum := 0, 0
	for _, row := range rows {
		if row.Rating < 1 || row.Rating > 5 {
			continue
		}
		stats.Rates[row.Rating] = row.Count
		total += row.Count
		sum += row.Rating * row.Count
	}
	if total > 0 {
		stats.AverageRating = float64(sum) / float64(total)
	}
	return stats, nil
}

// AverageRating returns the platform-wide mean rating.
func (s *GormStore) AverageRating() (float64, error) {
	var avg sql.NullFloat64
	if err := s.db.Model(&ReviewModel{}).
		Select("AVG(rating)").
		Where("rating IS NOT NULL").
		Scan(&avg).Error; err != nil {
		return 0, err
	}
	return avg.Float64, nil
}

// AddFavorite links a user to a book. The unique index rejects duplicates.
func (s *GormStore) AddFavorite(f domain.FavoriteBook) error {
	model := FavoriteBookModel{
		ID:        f.ID,
		UserID:    f.UserID,
		BookID:    f.BookID,
		CreatedAt: time.Now().UTC(),
	}
	return s.db.Create(&model).Error
}

// HasFavorite reports whether the link already exists.
func (s *GormStore) HasFavorite(userID, bookID string) (bool, error) {
	var count int64
	if err := s.db.Model(&FavoriteBookModel{}).
		Where("user_id = ? AND book_id = ?", userID, bookID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// RemoveFavorite unlinks a book, reporting whether a row was removed.
func (s *GormStore) RemoveFavorite(userID, bookID string) (bool, error) {
	res := s.db.Delete(&FavoriteBookModel{}, "user_id = ? AND book_id = ?", userID, bookID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListFavorites returns a user's favorites, newest first.
func (s *GormStore) ListFavorites(userID string) ([]domain.FavoriteBook, error) {
	var models []FavoriteBookModel
	if err := s.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.FavoriteBook, 0, len(models))
	for _, m := range models {
		res = append(res, domain.FavoriteBook{ID: m.ID, UserID: m.UserID, BookID: m.BookID})
	}
	return res, nil
}

// AddReadingHistory appends a read log entry.
func (s *GormStore) AddReadingHistory(h domain.ReadingHistory) error {
	model := ReadingHistoryModel{
		ID:     h.ID,
		UserID: h.UserID,
		BookID: h.BookID,
		ReadAt: h.ReadAt,
	}
	return s.db.Create(&model).Error
}

// ListReadingHistory returns a user's read log, newest first, with book
// title and author projected in.
func (s *GormStore) ListReadingHistory(userID string) ([]domain.ReadingHistory, error) {
	var rows []struct {
		ReadingHistoryModel
		BookTitle  string
		BookAuthor string
	}
	if err := s.db.Model(&ReadingHistoryModel{}).
		Select("reading_history_models.*, book_models.title AS book_title, book_models.author AS book_author").
		Joins("JOIN book_models ON book_models.id = reading_history_models.book_id").
		Where("reading_history_models.user_id = ?", userID).
		Order("reading_history_models.read_at DESC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	res := make([]domain.ReadingHistory, 0, len(rows))
	for _, row := range rows {
		res = append(res, domain.ReadingHistory{
			ID:         row.ID,
			UserID:     row.UserID,
			BookID:     row.BookID,
			BookTitle:  row.BookTitle,
			BookAuthor: row.BookAuthor,
			ReadAt:     row.ReadAt,
		})
	}
	return res, nil
}

// ReadCount returns the total number of read log entries.
func (s *GormStore) ReadCount() (int64, error) {
	var count int64
	err := s.db.Model(&ReadingHistoryModel{}).Count(&count).Error
	return count, err
}

// MostReadBook returns the book with the most read log entries, or nil when
// nothing has been read yet.
func (s *GormStore) MostReadBook() (*domain.BookCount, error) {
	var row struct {
		BookID string
		Title  string
		Author string
		Count  int
	}
	err := s.db.Model(&ReadingHistoryModel{}).
		Select("reading_history_models.book_id, book_models.title, book_models.author, COUNT(*) AS count").
		Joins("JOIN book_models ON book_models.id = reading_history_models.book_id").
		Group("reading_history_models.book_id, book_models.title, book_models.author").
		Order("count DESC").
		Limit(1).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.BookID == "" {
		return nil, nil
	}
	return &domain.BookCount{ID: row.BookID, Title: row.Title, Author: row.Author, Count: row.Count}, nil
}

// SaveConversation creates or updates a conversation.
func (s *GormStore) SaveConversation(c domain.Conversation) error {
	model := conversationToModel(c)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "role", "is_active", "updated_at"}),
	}).Create(&model).Error
}

// GetConversation returns one conversation by ID.
func (s *GormStore) GetConversation(id string) (domain.Conversation, bool, error) {
	var model ConversationModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Conversation{}, false, nil
		}
		return domain.Conversation{}, false, err
	}
	return conversationFromModel(model), true, nil
}

// ListConversationsByUser returns a user's conversations, most recently
// active first.
func (s *GormStore) ListConversationsByUser(userID string) ([]domain.Conversation, error) {
	var models []ConversationModel
	if err := s.db.Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Conversation, 0, len(models))
	for _, m := range models {
		res = append(res, conversationFromModel(m))
	}
	return res, nil
}

// ListMessages returns every message of a conversation in chronological order.
func (s *GormStore) ListMessages(conversationID string) ([]domain.ChatMessage, error) {
	var models []ChatMessageModel
	if err := s.db.Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	msgs := make([]domain.ChatMessage, 0, len(models))
	for _, m := range models {
		msgs = append(msgs, messageFromModel(m))
	}
	return msgs, nil
}

// ListRecentMessages returns the newest limit messages in chronological
// order (fetched newest first, then reversed).
func (s *GormStore) ListRecentMessages(conversationID string, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		return []domain.ChatMessage{}, nil
	}
	var models []ChatMessageModel
	if err := s.db.Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	msgs := make([]domain.ChatMessage, 0, len(models))
	for i := len(models) - 1; i >= 0; i-- {
		msgs = append(msgs, messageFromModel(models[i]))
	}
	return msgs, nil
}

// AppendExchange persists the user and assistant turns and touches the
// conversation timestamp, all in one transaction.
func (s *GormStore) AppendExchange(conversationID string, userMsg, assistantMsg domain.ChatMessage) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		um := messageToModel(userMsg)
		um.ConversationID = conversationID
		if err := tx.Create(&um).Error; err != nil {
			return err
		}
		am := messageToModel(assistantMsg)
		am.ConversationID = conversationID
		if err := tx.Create(&am).Error; err != nil {
			return err
		}
		return tx.Model(&ConversationModel{}).Where("id = ?", conversationID).
			Update("updated_at", time.Now().UTC()).Error
	})
}

// SaveNote creates or updates an annotation.
func (s *GormStore) SaveNote(n domain.BookNote) error {
	model := noteToModel(n)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"note_content", "color", "is_public", "updated_at"}),
	}).Create(&model).Error
}

// GetNote retrieves an annotation.
func (s *GormStore) GetNote(id string) (domain.BookNote, bool, error) {
	var model BookNoteModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.BookNote{}, false, nil
		}
		return domain.BookNote{}, false, err
	}
	note, err := s.noteWithProjections(model)
	if err != nil {
		return domain.BookNote{}, false, err
	}
	return note, true, nil
}

// ListNotesByUserAndBook returns a user's annotations on one book in
// reading order (page, then start offset).
func (s *GormStore) ListNotesByUserAndBook(userID, bookID string) ([]domain.BookNote, error) {
	return s.listNotes("page_number ASC NULLS FIRST, position_start ASC",
		"user_id = ? AND book_id = ?", userID, bookID)
}

// ListNotesByUser returns all of a user's annotations, newest first.
func (s *GormStore) ListNotesByUser(userID string) ([]domain.BookNote, error) {
	return s.listNotes("created_at DESC", "user_id = ?", userID)
}

// ListPublicNotesByBook returns shared annotations on a book in reading order.
func (s *GormStore) ListPublicNotesByBook(bookID string) ([]domain.BookNote, error) {
	return s.listNotes("page_number ASC NULLS FIRST, position_start ASC",
		"book_id = ? AND is_public = TRUE", bookID)
}

func (s *GormStore) listNotes(order string, cond string, args ...any) ([]domain.BookNote, error) {
	var models []BookNoteModel
	if err := s.db.Where(cond, args...).Order(order).Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.BookNote, 0, len(models))
	for _, m := range models {
		note, err := s.noteWithProjections(m)
		if err != nil {
			return nil, err
		}
		res = append(res, note)
	}
	return res, nil
}

func (s *GormStore) noteWithProjections(m BookNoteModel) (domain.BookNote, error) {
	note := noteFromModel(m)
	if user, ok, err := s.GetUserByID(m.UserID); err != nil {
		return domain.BookNote{}, err
	} else if ok {
		note.UserName = user.DisplayName()
	}
	if book, ok, err := s.GetBook(m.BookID); err != nil {
		return domain.BookNote{}, err
	} else if ok {
		note.BookTitle = book.Title
	}
	return note, nil
}

// DeleteNote removes an annotation.
func (s *GormStore) DeleteNote(id string) error {
	return s.db.Delete(&BookNoteModel{}, "id = ?", id).Error
}

// NoteStatsByUser summarizes a user's annotations.
func (s *GormStore) NoteStatsByUser(userID string) (domain.NoteStats, error) {
	stats := domain.NoteStats{}
	var total, public int64
	if err := s.db.Model(&BookNoteModel{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return stats, err
	}
	if err := s.db.Model(&BookNoteModel{}).Where("user_id = ? AND is_public = TRUE", userID).Count(&public).Error; err != nil {
		return stats, err
	}
	stats.TotalNotes = int(total)
	stats.PublicNotesCount = int(public)
	stats.PrivateNotesCount = int(total - public)

	var rows []struct {
		BookID string
		Title  string
		Author string
		Count  int
	}
	if err := s.db.Model(&BookNoteModel{}).
		Select("book_note_models.book_id, book_models.title, book_models.author, COUNT(*) AS count").
		Joins("JOIN book_models ON book_models.id = book_note_models.book_id").
		Where("book_note_models.user_id = ?", userID).
		Group("book_note_models.book_id, book_models.title, book_models.author").
		Order("count DESC").
		Scan(&rows).Error; err != nil {
		return stats, err
	}
	stats.BooksWithNotes = len(rows)
	if len(rows) > 0 {
		stats.MostNotedBook = &domain.BookCount{
			ID:     rows[0].BookID,
			Title:  rows[0].Title,
			Author: rows[0].Author,
			Count:  rows[0].Count,
		}
	}
	return stats, nil
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		IsAdmin:      u.IsAdmin,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		FirstName:    m.FirstName,
		LastName:     m.LastName,
		IsAdmin:      m.IsAdmin,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func bookToModel(b domain.Book) BookModel {
	return BookModel{
		ID:        b.ID,
		Title:     b.Title,
		Author:    b.Author,
		PDFKey:    b.PDFKey,
		CoverKey:  b.CoverKey,
		Pages:     b.Pages,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

func bookFromModel(m BookModel) domain.Book {
	return domain.Book{
		ID:        m.ID,
		Title:     m.Title,
		Author:    m.Author,
		PDFKey:    m.PDFKey,
		CoverKey:  m.CoverKey,
		Pages:     m.Pages,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func userBookToModel(ub domain.UserBook) UserBookModel {
	return UserBookModel{
		ID:           ub.ID,
		UserID:       ub.UserID,
		OriginBookID: ub.OriginBookID,
		Title:        ub.Title,
		Author:       ub.Author,
		Description:  ub.Description,
		PDFKey:       ub.PDFKey,
		CoverKey:     ub.CoverKey,
		Pages:        ub.Pages,
		IsApproved:   ub.IsApproved,
		CreatedAt:    ub.CreatedAt,
		UpdatedAt:    ub.UpdatedAt,
	}
}

func userBookFromModel(m UserBookModel) domain.UserBook {
	return domain.UserBook{
		ID:           m.ID,
		UserID:       m.UserID,
		OriginBookID: m.OriginBookID,
		Title:        m.Title,
		Author:       m.Author,
		Description:  m.Description,
		PDFKey:       m.PDFKey,
		CoverKey:     m.CoverKey,
		Pages:        m.Pages,
		IsApproved:   m.IsApproved,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func reviewToModel(r domain.Review) ReviewModel {
	return ReviewModel{
		ID:        r.ID,
		BookID:    r.BookID,
		UserID:    r.UserID,
		Rating:    r.Rating,
		Comment:   r.Comment,
		CreatedAt: r.CreatedAt,
	}
}

func reviewFromModel(m ReviewModel) domain.Review {
	return domain.Review{
		ID:        m.ID,
		BookID:    m.BookID,
		UserID:    m.UserID,
		Rating:    m.Rating,
		Comment:   m.Comment,
		CreatedAt: m.CreatedAt,
	}
}

func conversationToModel(c domain.Conversation) ConversationModel {
	return ConversationModel{
		ID:        c.ID,
		UserID:    c.UserID,
		Title:     c.Title,
		Role:      c.Role,
		IsActive:  c.IsActive,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func conversationFromModel(m ConversationModel) domain.Conversation {
	return domain.Conversation{
		ID:        m.ID,
		UserID:    m.UserID,
		Title:     m.Title,
		Role:      m.Role,
		IsActive:  m.IsActive,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func messageToModel(msg domain.ChatMessage) ChatMessageModel {
	var usage []byte
	if len(msg.Usage) > 0 {
		usage, _ = json.Marshal(msg.Usage)
	}
	return ChatMessageModel{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Role:           msg.Role,
		Content:        msg.Content,
		Usage:          usage,
		CreatedAt:      msg.CreatedAt,
	}
}

func messageFromModel(m ChatMessageModel) domain.ChatMessage {
	var usage map[string]int
	if len(m.Usage) > 0 {
		_ = json.Unmarshal(m.Usage, &usage)
	}
	return domain.ChatMessage{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Role:           m.Role,
		Content:        m.Content,
		Usage:          usage,
		CreatedAt:      m.CreatedAt,
	}
}

func noteToModel(n domain.BookNote) BookNoteModel {
	return BookNoteModel{
		ID:            n.ID,
		UserID:        n.UserID,
		BookID:        n.BookID,
		SelectedText:  n.SelectedText,
		NoteContent:   n.NoteContent,
		PageNumber:    n.PageNumber,
		PositionStart: n.PositionStart,
		PositionEnd:   n.PositionEnd,
		Color:         n.Color,
		IsPublic:      n.IsPublic,
		CreatedAt:     n.CreatedAt,
		UpdatedAt:     n.UpdatedAt,
	}
}

func noteFromModel(m BookNoteModel) domain.BookNote {
	return domain.BookNote{
		ID:            m.ID,
		UserID:        m.UserID,
		BookID:        m.BookID,
		SelectedText:  m.SelectedText,
		NoteContent:   m.NoteContent,
		PageNumber:    m.PageNumber,
		PositionStart: m.PositionStart,
		PositionEnd:   m.PositionEnd,
		Color:         m.Color,
		IsPublic:      m.IsPublic,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}
