package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// AuthProvider records which sign-in path created an account. It is set
// once at creation and never changes afterwards.
type AuthProvider string

const (
	ProviderApple    AuthProvider = "apple"
	ProviderGoogle   AuthProvider = "google"
	ProviderPassword AuthProvider = "password"
)

// Uniqueness violations surfaced by AccountRepository.Create. The store's
// constraints are the final arbiter for concurrent provisioning, so callers
// need to tell which column collided.
var (
	ErrDuplicateUsername = errors.New("username already taken")
	ErrDuplicateEmail    = errors.New("email already registered")
	ErrDuplicateSubject  = errors.New("provider subject already registered")
)

type Account struct {
	ID              uuid.UUID    `json:"id"`
	Username        string       `json:"username"`
	Email           string       `json:"email"`
	PasswordHash    string       `json:"-"`
	AuthProvider    AuthProvider `json:"auth_provider"`
	AppleSubjectID  string       `json:"-"`
	GoogleSubjectID string       `json:"-"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// SubjectID returns the external subject identifier matching the account's
// provider, or "" for password accounts.
func (a *Account) SubjectID() string {
	switch a.AuthProvider {
	case ProviderApple:
		return a.AppleSubjectID
	case ProviderGoogle:
		return a.GoogleSubjectID
	}
	return ""
}

type AccountRepository interface {
	Create(account *Account) error
	GetByID(id uuid.UUID) (*Account, error)
	GetByEmail(email string) (*Account, error)
	GetByUsername(username string) (*Account, error)
	GetBySubject(provider AuthProvider, subjectID string) (*Account, error)
}
