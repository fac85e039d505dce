package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrCredentialSuperseded is returned by RotateFrom when the credential
// being rotated was already revoked, i.e. a concurrent refresh won the
// race. The losing request must not mint anything.
var ErrCredentialSuperseded = errors.New("refresh credential already revoked")

// RefreshCredential is the durable record of a long-lived session. The raw
// token is only ever held by the client; the store keeps its SHA-256 hash.
// IsRevoked moves from false to true exactly once and never back.
type RefreshCredential struct {
	ID        uuid.UUID `json:"id"`
	AccountID uuid.UUID `json:"account_id"`
	TokenHash string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	IsRevoked bool      `json:"is_revoked"`
	CreatedAt time.Time `json:"created_at"`
}

// RefreshCredentialRepository persists refresh credentials. Replace and
// RotateFrom both revoke every active credential for the account and insert
// the new one as a single atomic unit, which keeps at most one non-revoked
// credential per account at all times.
type RefreshCredentialRepository interface {
	GetByTokenHash(tokenHash string) (*RefreshCredential, error)

	// Replace revokes all active credentials for cred.AccountID and inserts
	// cred, atomically. Used on sign-in.
	Replace(cred *RefreshCredential) error

	// RotateFrom does the same but only if the credential identified by
	// currentID is still non-revoked; otherwise it returns
	// ErrCredentialSuperseded without inserting. Used on refresh, so that
	// two concurrent redemptions of the same token admit one winner.
	RotateFrom(currentID uuid.UUID, cred *RefreshCredential) error

	// RevokeByTokenHash marks a single credential revoked. Used on logout.
	RevokeByTokenHash(tokenHash string) error
}
