package app

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"bookquest/internal/util"
	"bookquest/pkg/auth"
	"bookquest/pkg/domain"
	"bookquest/pkg/store"
)

var refreshTokenRe = regexp.MustCompile(`^[0-9a-f]{64}$`)

// LoginResult is what a successful login hands back to the client.
type LoginResult struct {
	Token        string
	RefreshToken string
	User         domain.User
}

// Register creates a new account.
func (a *App) Register(email, password, confirmPassword, firstName, lastName string) error {
	email, err := store.NormalizeEmail(email)
	if err != nil {
		return Validation(err.Error())
	}
	if password != confirmPassword {
		return Validation("Passwords do not match!")
	}
	exists, err := a.store.HasUserEmail(email)
	if err != nil {
		return Internal("could not check email", err)
	}
	if exists {
		return Validation("Email already exists!")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return Internal("could not hash password", err)
	}
	now := time.Now().UTC()
	user := domain.User{
		ID:           util.NewID(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(firstName),
		LastName:     strings.TrimSpace(lastName),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.SaveUser(user); err != nil {
		return Internal("could not save user", err)
	}
	return nil
}

// Login verifies credentials and issues a token pair.
func (a *App) Login(email, password string) (LoginResult, error) {
	email, err := store.NormalizeEmail(email)
	if err != nil {
		return LoginResult{}, Validation(err.Error())
	}
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return LoginResult{}, Internal("could not look up user", err)
	}
	if !ok {
		return LoginResult{}, Auth("User with this email does not exist!")
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		return LoginResult{}, Auth("Invalid password!")
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return LoginResult{}, Internal("could not create session", err)
	}
	refreshToken, err := a.refresh.NewToken(user.ID, a.refreshTTL)
	if err != nil {
		return LoginResult{}, Internal("could not create refresh token", err)
	}
	return LoginResult{Token: token, RefreshToken: refreshToken, User: user}, nil
}

// Logout revokes the presented refresh token family and the access token.
func (a *App) Logout(accessToken, refreshToken string) error {
	refreshToken = strings.TrimSpace(refreshToken)
	if !refreshTokenRe.MatchString(refreshToken) {
		return Validation("Invalid refresh token.")
	}
	if err := a.refresh.DeleteToken(refreshToken); err != nil {
		if errors.Is(err, store.ErrInvalidRefreshToken) {
			return Validation("Invalid refresh token.")
		}
		return Internal("could not revoke refresh token", err)
	}
	if accessToken != "" {
		if err := a.sessions.DeleteSession(accessToken); err != nil {
			return Internal("could not revoke session", err)
		}
	}
	return nil
}

// RefreshSession rotates the refresh token and issues a new access token.
// Replayed tokens kill the whole family.
func (a *App) RefreshSession(refreshToken string) (LoginResult, error) {
	userID, newToken, err := a.refresh.RotateToken(strings.TrimSpace(refreshToken), a.refreshTTL)
	if err != nil {
		if errors.Is(err, store.ErrInvalidRefreshToken) || errors.Is(err, store.ErrRefreshTokenReplay) {
			return LoginResult{}, Auth("Invalid refresh token.")
		}
		return LoginResult{}, Internal("could not rotate refresh token", err)
	}
	user, ok, err := a.store.GetUserByID(userID)
	if err != nil {
		return LoginResult{}, Internal("could not look up user", err)
	}
	if !ok {
		return LoginResult{}, Auth("Invalid refresh token.")
	}
	token, err := a.sessions.NewSession(userID)
	if err != nil {
		return LoginResult{}, Internal("could not create session", err)
	}
	return LoginResult{Token: token, RefreshToken: newToken, User: user}, nil
}

// ForgotPassword generates a reset code and emails it to the account holder.
func (a *App) ForgotPassword(email string) error {
	email, err := store.NormalizeEmail(email)
	if err != nil {
		return Validation(err.Error())
	}
	_, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return Internal("could not look up user", err)
	}
	if !ok {
		return NotFound("User with this email does not exist!")
	}
	code, err := a.resetCodes.IssueCode(email)
	if err != nil {
		if errors.Is(err, store.ErrResetSendRateLimited) {
			return Validation("A reset code was already sent. Please wait before requesting another.")
		}
		return Internal("could not issue reset code", err)
	}
	body := fmt.Sprintf("Your password reset code is: %s\n\nThe code expires in 10 minutes.", code)
	if err := a.mailer.Send(email, "Password reset code", body); err != nil {
		return Upstream("Could not send the reset email. Please try again later.", err)
	}
	return nil
}

// ResetPassword consumes the emailed code and sets the new password. All
// existing sessions and refresh tokens die with the old password.
func (a *App) ResetPassword(email, confirmationCode, newPassword string) error {
	email, err := store.NormalizeEmail(email)
	if err != nil {
		return Validation(err.Error())
	}
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return Internal("could not look up user", err)
	}
	if !ok {
		return Validation("Invalid or expired confirmation code!")
	}
	if err := a.resetCodes.ConsumeCode(email, confirmationCode); err != nil {
		if errors.Is(err, store.ErrResetCodeInvalid) {
			return Validation("Invalid or expired confirmation code!")
		}
		return Internal("could not verify reset code", err)
	}
	if err := auth.ValidatePassword(newPassword); err != nil {
		return Validation(err.Error())
	}
	if err := a.setPassword(user, newPassword); err != nil {
		return err
	}
	return nil
}

// ChangePassword verifies the old password before setting the new one.
func (a *App) ChangePassword(userID, oldPassword, newPassword, confirmPassword string) error {
	user, ok, err := a.store.GetUserByID(userID)
	if err != nil {
		return Internal("could not look up user", err)
	}
	if !ok {
		return Auth("authentication required")
	}
	if !auth.CheckPassword(oldPassword, user.PasswordHash) {
		return Validation("Invalid old password!")
	}
	if newPassword != confirmPassword {
		return Validation("Passwords do not match!")
	}
	if err := auth.ValidatePassword(newPassword); err != nil {
		return Validation(err.Error())
	}
	return a.setPassword(user, newPassword)
}

func (a *App) setPassword(user domain.User, newPassword string) error {
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return Internal("could not hash password", err)
	}
	user.PasswordHash = hash
	user.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveUser(user); err != nil {
		return Internal("could not save user", err)
	}
	if revoker, ok := a.sessions.(store.UserSessionRevoker); ok {
		if err := revoker.RevokeUserSessions(user.ID, time.Now().UTC()); err != nil {
			return Internal("could not revoke sessions", err)
		}
	}
	if revoker, ok := a.refresh.(store.UserRefreshTokenRevoker); ok {
		if err := revoker.RevokeUserRefreshTokens(user.ID); err != nil {
			return Internal("could not revoke refresh tokens", err)
		}
	}
	return nil
}

// GetProfile returns the account for the given user.
func (a *App) GetProfile(userID string) (domain.User, error) {
	user, ok, err := a.store.GetUserByID(userID)
	if err != nil {
		return domain.User{}, Internal("could not look up user", err)
	}
	if !ok {
		return domain.User{}, NotFound("User not found.")
	}
	return user, nil
}

// UpdateProfile changes the account's name and email.
func (a *App) UpdateProfile(userID, email, firstName, lastName string) (domain.User, error) {
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
	user.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, Internal("could not save user", err)
	}
	return user, nil
}
