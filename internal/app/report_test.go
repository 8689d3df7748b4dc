package app

import (
	"context"
	"testing"
)

func TestReportStatistics(t *testing.T) {
	env := newTestEnv(t)
	dune := env.addBook(t, "Dune", "Frank Herbert")
	hyperion := env.addBook(t, "Hyperion", "Dan Simmons")
	userID := env.register(t, "reader@example.com")

	for i := 0; i < 3; i++ {
		if err := env.app.AddReadingHistory(userID, dune); err != nil {
			t.Fatalf("AddReadingHistory: %v", err)
		}
	}
	if err := env.app.AddReadingHistory(userID, hyperion); err != nil {
		t.Fatalf("AddReadingHistory: %v", err)
	}
	for _, rating := range []int{3, 4} {
		r := rating
		if _, err := env.app.AddReview(userID, dune, &r, ""); err != nil {
			t.Fatalf("AddReview: %v", err)
		}
	}

	stats, err := env.app.ReportStatistics(context.Background())
	if err != nil {
		t.Fatalf("ReportStatistics: %v", err)
	}
	if stats.TotalBooks != 2 || stats.TotalReads != 4 || stats.TotalReviews != 2 {
		t.Fatalf("unexpected counters %+v", stats)
	}
	// Two uploaders plus the reader.
	if stats.TotalUsers != 3 {
		t.Fatalf("total users = %d, want 3", stats.TotalUsers)
	}
	if stats.MostReadBook == nil || stats.MostReadBook.Title != "Dune" || stats.MostReadBook.Count != 3 {
		t.Fatalf("unexpected most read %+v", stats.MostReadBook)
	}
	if stats.AverageRating != 3.5 {
		t.Fatalf("average rating = %v, want 3.5", stats.AverageRating)
	}
}

func TestReportStatisticsEmpty(t *testing.T) {
	env := newTestEnv(t)
	stats, err := env.app.ReportStatistics(context.Background())
	if err != nil {
		t.Fatalf("ReportStatistics: %v", err)
	}
	if stats.TotalBooks != 0 || stats.MostReadBook != nil || stats.AverageRating != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestRatingStatistics(t *testing.T) {
	env := newTestEnv(t)
	dune := env.addBook(t, "Dune", "Frank Herbert")
	hyperion := env.addBook(t, "Hyperion", "Dan Simmons")
	userID := env.register(t, "reader@example.com")

	ratings := map[string][]int{dune: {5, 4}, hyperion: {2}}
	for bookID, rs := range ratings {
		for _, rating := range rs {
			r := rating
			if _, err := env.app.AddReview(userID, bookID, &r, ""); err != nil {
				t.Fatalf("AddReview: %v", err)
			}
		}
	}

	stats, err := env.app.RatingStatistics()
	if err != nil {
		t.Fatalf("RatingStatistics: %v", err)
	}
	if stats.Rates[5] != 1 || stats.Rates[4] != 1 || stats.Rates[2] != 1 {
		t.Fatalf("unexpected histogram %+v", stats.Rates)
	}
	// (5+4+2)/3 rounded to two decimals.
	if stats.AverageRating != 3.67 {
		t.Fatalf("average = %v, want 3.67", stats.AverageRating)
	}
}

func TestUserRolesStatistics(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "reader@example.com")
	if _, err := env.app.AdminCreateUser("admin@example.com", testPassword, "Root", "", true); err != nil {
		t.Fatalf("AdminCreateUser: %v", err)
	}

	stats, err := env.app.UserRolesStatistics()
	if err != nil {
		t.Fatalf("UserRolesStatistics: %v", err)
	}
	if stats.TotalUsers != 2 || stats.Admins != 1 || stats.Readers != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestAdminUserLifecycle(t *testing.T) {
	env := newTestEnv(t)
	user, err := env.app.AdminCreateUser("managed@example.com", testPassword, "Eve", "Moneypenny", false)
	if err != nil {
		t.Fatalf("AdminCreateUser: %v", err)
	}

	promote := true
	updated, err := env.app.AdminUpdateUser(user.ID, "", "Evelyn", "", &promote)
	if err != nil {
		t.Fatalf("AdminUpdateUser: %v", err)
	}
	if !updated.IsAdmin || updated.FirstName != "Evelyn" || updated.LastName != "Moneypenny" {
		t.Fatalf("unexpected user %+v", updated)
	}

	if err := env.app.AdminDeleteUser(user.ID); err != nil {
		t.Fatalf("AdminDeleteUser: %v", err)
	}
	if _, ok, _ := env.store.GetUserByID(user.ID); ok {
		t.Fatal("user still present after delete")
	}
	err = env.app.AdminDeleteUser(user.ID)
	wantKind(t, err, KindNotFound)
}

func TestAdminDeleteUserRemovesOwnedData(t *testing.T) {
	env := newTestEnv(t)
	bookID := env.addBook(t, "Dune", "Frank Herbert")
	userID := env.register(t, "reader@example.com")

	if _, err := env.app.AddFavorite(userID, bookID); err != nil {
		t.Fatalf("AddFavorite: %v", err)
	}
	if _, err := env.app.SendMessage(context.Background(), userID, "", "hello", ""); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if err := env.app.AdminDeleteUser(userID); err != nil {
		t.Fatalf("AdminDeleteUser: %v", err)
	}
	if favs, _ := env.store.ListFavorites(userID); len(favs) != 0 {
		t.Fatal("favorites survived user deletion")
	}
	if convs, _ := env.store.ListConversationsByUser(userID); len(convs) != 0 {
		t.Fatal("conversations survived user deletion")
	}
}

func TestTotalBooks(t *testing.T) {
	env := newTestEnv(t)
	env.addBook(t, "Dune", "Frank Herbert")
	n, err := env.app.TotalBooks()
	if err != nil {
		t.Fatalf("TotalBooks: %v", err)
	}
	if n != 1 {
		t.Fatalf("total = %d, want 1", n)
	}
}
