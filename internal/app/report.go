package app

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"

	"bookquest/pkg/domain"
)

// UserRoleStats counts admins and regular readers.
type UserRoleStats struct {
	TotalUsers int `json:"total_users"`
	Admins     int `json:"admins"`
	Readers    int `json:"readers"`
}

// RatingStatistics returns the platform-wide rating histogram and its
// weighted average rounded to two decimals.
func (a *App) RatingStatistics() (domain.RatingStats, error) {
	stats, err := a.store.RatingStats()
	if err != nil {
		return domain.RatingStats{}, Internal("could not compute rating statistics", err)
	}
	stats.AverageRating = math.Round(stats.AverageRating*100) / 100
	return stats, nil
}

// ReportStatistics aggregates the platform counters. The independent
// queries run concurrently.
func (a *App) ReportStatistics(ctx context.Context) (domain.ReportStats, error) {
	var stats domain.ReportStats
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := a.store.BookCount()
		stats.TotalBooks = n
		return err
	})
	g.Go(func() error {
		n, err := a.store.ReadCount()
		stats.TotalReads = n
		return err
	})
	g.Go(func() error {
		mostRead, err := a.store.MostReadBook()
		stats.MostReadBook = mostRead
		return err
	})
	g.Go(func() error {
		n, err := a.store.UserCount()
		stats.TotalUsers = n
		return err
	})
	g.Go(func() error {
		n, err := a.store.ReviewCount()
		stats.TotalReviews = n
		return err
	})
	g.Go(func() error {
		avg, err := a.store.AverageRating()
		stats.AverageRating = math.Round(avg*100) / 100
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.ReportStats{}, Internal("could not aggregate report statistics", err)
	}
	return stats, nil
}

// UserRolesStatistics splits the user base by role.
func (a *App) UserRolesStatistics() (UserRoleStats, error) {
	users, err := a.store.ListUsers()
	if err != nil {
		return UserRoleStats{}, Internal("could not list users", err)
	}
	stats := UserRoleStats{TotalUsers: len(users)}
	for _, u := range users {
		if u.IsAdmin {
			stats.Admins++
		} else {
			stats.Readers++
		}
	}
	return stats, nil
}

// TotalBooks returns the catalog size.
func (a *App) TotalBooks() (int64, error) {
	n, err := a.store.BookCount()
	if err != nil {
		return 0, Internal("could not count books", err)
	}
	return n, nil
}
