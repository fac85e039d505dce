package usecase

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stone-app/backend/internal/domain"
)

const refreshTokenBytes = 32

// RefreshManager issues, redeems and rotates long-lived opaque refresh
// credentials. Issuance always supersedes whatever active credential the
// account had, so one account never holds two live sessions.
type RefreshManager struct {
	credRepo      domain.RefreshCredentialRepository
	accountRepo   domain.AccountRepository
	refreshExpiry time.Duration
}

func NewRefreshManager(credRepo domain.RefreshCredentialRepository, accountRepo domain.AccountRepository, refreshExpiry time.Duration) *RefreshManager {
	if refreshExpiry <= 0 {
		refreshExpiry = 270 * 24 * time.Hour
	}
	return &RefreshManager{
		credRepo:      credRepo,
		accountRepo:   accountRepo,
		refreshExpiry: refreshExpiry,
	}
}

// Issue mints a fresh credential for the account, revoking any active one.
// Returns the raw token; only its hash is persisted.
func (m *RefreshManager) Issue(account *domain.Account) (string, error) {
	raw, cred, err := m.newCredential(account.ID)
	if err != nil {
		return "", err
	}
	if err := m.credRepo.Replace(cred); err != nil {
		return "", err
	}
	return raw, nil
}

// Rotate mints a replacement for the just-redeemed credential. The store
// revokes current atomically with the insert; a concurrent refresh that
// already rotated it surfaces as ErrCredentialRevoked.
func (m *RefreshManager) Rotate(current *domain.RefreshCredential) (string, error) {
	raw, cred, err := m.newCredential(current.AccountID)
	if err != nil {
		return "", err
	}
	err = m.credRepo.RotateFrom(current.ID, cred)
	if err == domain.ErrCredentialSuperseded {
		return "", ErrCredentialRevoked
	}
	if err != nil {
		return "", err
	}
	return raw, nil
}

// Redeem resolves a presented token to its owning account. Pure lookup and
// classification: rotation is the caller's explicit next step, so a failure
// downstream does not burn the credential.
func (m *RefreshManager) Redeem(rawToken string) (*domain.Account, *domain.RefreshCredential, error) {
	cred, err := m.credRepo.GetByTokenHash(hashToken(rawToken))
	if err != nil {
		return nil, nil, err
	}
	if cred == nil {
		return nil, nil, ErrCredentialNotFound
	}
	if cred.IsRevoked {
		return nil, nil, ErrCredentialRevoked
	}
	if !cred.ExpiresAt.After(time.Now()) {
		return nil, nil, ErrCredentialExpired
	}

	account, err := m.accountRepo.GetByID(cred.AccountID)
	if err != nil {
		return nil, nil, err
	}
	if account == nil {
		return nil, nil, ErrCredentialNotFound
	}
	return account, cred, nil
}

// Revoke invalidates a presented token. Unknown tokens are a no-op.
func (m *RefreshManager) Revoke(rawToken string) error {
	return m.credRepo.RevokeByTokenHash(hashToken(rawToken))
}

func (m *RefreshManager) newCredential(accountID uuid.UUID) (string, *domain.RefreshCredential, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", nil, fmt.Errorf("generate refresh token: %w", err)
	}
	raw := base64.RawURLEncoding.EncodeToString(buf)

	cred := &domain.RefreshCredential{
		ID:        uuid.New(),
		AccountID: accountID,
		TokenHash: hashToken(raw),
		ExpiresAt: time.Now().Add(m.refreshExpiry),
	}
	return raw, cred, nil
}

func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
