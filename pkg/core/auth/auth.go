// Package auth checks credentials and role permissions.
package auth

import (
	"context"
	"errors"
	"fmt"

	"balance_sheet_analyzer/pkg/models"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccessDenied       = errors.New("access denied")
)

// UserLookup is the part of the store Login needs.
type UserLookup interface {
	GetUser(ctx context.Context, username string) (*models.User, error)
}

// dummyHash keeps the timing of unknown-user logins close to real ones.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-password"), bcrypt.DefaultCost)

// Login verifies password against the stored bcrypt hash.
// Unknown users and wrong passwords both return ErrInvalidCredentials.
func Login(ctx context.Context, users UserLookup, username, password string) (*models.User, error) {
	u, err := users.GetUser(ctx, username)
	if err != nil {
		bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// RequireRole returns ErrAccessDenied unless u holds one of roles.
func RequireRole(u *models.User, roles ...models.Role) error {
	if u == nil {
		return fmt.Errorf("%w: not logged in", ErrAccessDenied)
	}
	for _, r := range roles {
		if u.Role == r {
			return nil
		}
	}
	return fmt.Errorf("%w: role %q", ErrAccessDenied, u.Role)
}

// CanView reports whether companyID is among the companies u may see.
func CanView(companies []models.Company, companyID int64) bool {
	for _, c := range companies {
		if c.ID == companyID {
			return true
		}
	}
	return false
}
