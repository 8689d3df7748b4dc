package app

import (
	"strings"
	"time"

	"bookquest/internal/util"
	"bookquest/pkg/auth"
	"bookquest/pkg/domain"
	"bookquest/pkg/store"
)

// ListUsers returns every account, for the admin console.
func (a *App) ListUsers() ([]domain.User, error) {
	users, err := a.store.ListUsers()
	if err != nil {
		return nil, Internal("could not list users", err)
	}
	return users, nil
}

// AdminCreateUser creates an account with an explicit admin flag.
func (a *App) AdminCreateUser(email, password, firstName, lastName string, isAdmin bool) (domain.User, error) {
	email, err := store.NormalizeEmail(email)
	if err != nil {
		return domain.User{}, Validation(err.Error())
	}
	if err := auth.ValidatePassword(password); err != nil {
		return domain.User{}, Validation(err.Error())
	}
	exists, err := a.store.HasUserEmail(email)
	if err != nil {
		return domain.User{}, Internal("could not check email", err)
	}
	if exists {
		return domain.User{}, Validation("Email already exists!")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, Internal("could not hash password", err)
	}
	now := time.Now().UTC()
	user := domain.User{
		ID:           util.NewID(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(firstName),
		LastName:     strings.TrimSpace(lastName),
		IsAdmin:      isAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, Internal("could not save user", err)
	}
	return user, nil
}

// AdminUpdateUser changes an account's name, email, or admin flag.
func (a *App) AdminUpdateUser(userID, email, firstName, lastName string, isAdmin *bool) (domain.User, error) {
	user, ok, err := a.store.GetUserByID(userID)
	if err != nil {
		return domain.User{}, Internal("could not look up user", err)
	}
	if !ok {
		return domain.User{}, NotFound("User not found.")
	}
	if email != "" {
		email, err = store.NormalizeEmail(email)
		if err != nil {
			return domain.User{}, Validation(err.Error())
		}
		if email != user.Email {
			exists, err := a.store.HasUserEmail(email)
			if err != nil {
				return domain.User{}, Internal("could not check email", err)
			}
			if exists {
				return domain.User{}, Validation("Email already exists!")
			}
			user.Email = email
		}
	}
	if firstName != "" {
		user.FirstName = strings.TrimSpace(firstName)
	}
	if lastName != "" {
		user.LastName = strings.TrimSpace(lastName)
	}
	if isAdmin != nil {
		user.IsAdmin = *isAdmin
	}
	user.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, Internal("could not save user", err)
	}
	return user, nil
}

// AdminDeleteUser removes an account and everything it owns, then kills
// its sessions and refresh tokens.
func (a *App) AdminDeleteUser(userID string) error {
	_, ok, err := a.store.GetUserByID(userID)
	if err != nil {
		return Internal("could not look up user", err)
	}
	if !ok {
		return NotFound("User not found.")
	}
	if err := a.store.DeleteUser(userID); err != nil {
		return Internal("could not delete user", err)
	}
	if revoker, ok := a.sessions.(store.UserSessionRevoker); ok {
		if err := revoker.RevokeUserSessions(userID, time.Now().UTC()); err != nil {
			return Internal("could not revoke sessions", err)
		}
	}
	if revoker, ok := a.refresh.(store.UserRefreshTokenRevoker); ok {
		if err := revoker.RevokeUserRefreshTokens(userID); err != nil {
			return Internal("could not revoke refresh tokens", err)
		}
	}
	return nil
}
