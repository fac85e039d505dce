package usecase

import (
	"sync"

	"github.com/google/uuid"

	"github.com/stone-app/backend/internal/domain"
	"github.com/stone-app/backend/pkg/oauthid"
)

// In-memory stand-ins for the postgres repositories. They enforce the same
// uniqueness and revocation semantics under a mutex so concurrency tests
// exercise the real contracts.

type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*domain.Account
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{accounts: map[uuid.UUID]*domain.Account{}}
}

func (r *fakeAccountRepo) Create(account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.accounts {
		if a.Username == account.Username {
			return domain.ErrDuplicateUsername
		}
		if account.Email != "" && a.Email == account.Email {
			return domain.ErrDuplicateEmail
		}
		if account.AppleSubjectID != "" && a.AppleSubjectID == account.AppleSubjectID {
			return domain.ErrDuplicateSubject
		}
		if account.GoogleSubjectID != "" && a.GoogleSubjectID == account.GoogleSubjectID {
			return domain.ErrDuplicateSubject
		}
	}

	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	stored := *account
	r.accounts[account.ID] = &stored
	return nil
}

func (r *fakeAccountRepo) GetByID(id uuid.UUID) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.accounts[id]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, nil
}

func (r *fakeAccountRepo) GetByEmail(email string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.Email == email {
			copied := *a
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeAccountRepo) GetByUsername(username string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.Username == username {
			copied := *a
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeAccountRepo) GetBySubject(provider domain.AuthProvider, subjectID string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		switch provider {
		case domain.ProviderApple:
			if a.AppleSubjectID == subjectID {
				copied := *a
				return &copied, nil
			}
		case domain.ProviderGoogle:
			if a.GoogleSubjectID == subjectID {
				copied := *a
				return &copied, nil
			}
		}
	}
	return nil, nil
}

func (r *fakeAccountRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.accounts)
}

type fakeCredentialRepo struct {
	mu    sync.Mutex
	creds map[uuid.UUID]*domain.RefreshCredential
}

func newFakeCredentialRepo() *fakeCredentialRepo {
	return &fakeCredentialRepo{creds: map[uuid.UUID]*domain.RefreshCredential{}}
}

func (r *fakeCredentialRepo) GetByTokenHash(tokenHash string) (*domain.RefreshCredential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.creds {
		if c.TokenHash == tokenHash {
			copied := *c
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeCredentialRepo) Replace(cred *domain.RefreshCredential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revokeActiveLocked(cred.AccountID)
	stored := *cred
	r.creds[cred.ID] = &stored
	return nil
}

func (r *fakeCredentialRepo) RotateFrom(currentID uuid.UUID, cred *domain.RefreshCredential) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.creds[currentID]
	if !ok || current.IsRevoked {
		return domain.ErrCredentialSuperseded
	}
	current.IsRevoked = true

	r.revokeActiveLocked(cred.AccountID)
	stored := *cred
	r.creds[cred.ID] = &stored
	return nil
}

func (r *fakeCredentialRepo) RevokeByTokenHash(tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.creds {
		if c.TokenHash == tokenHash {
			c.IsRevoked = true
		}
	}
	return nil
}

func (r *fakeCredentialRepo) revokeActiveLocked(accountID uuid.UUID) {
	for _, c := range r.creds {
		if c.AccountID == accountID && !c.IsRevoked {
			c.IsRevoked = true
		}
	}
}

func (r *fakeCredentialRepo) activeCount(accountID uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.creds {
		if c.AccountID == accountID && !c.IsRevoked {
			n++
		}
	}
	return n
}

type fakeModeration struct {
	mu      sync.Mutex
	flagged map[string]bool
	err     error
	checked []string
}

func (m *fakeModeration) CheckText(text string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checked = append(m.checked, text)
	if m.err != nil {
		return false, m.err
	}
	return m.flagged[text], nil
}

type staticVerifier struct {
	identity *oauthid.VerifiedIdentity
	err      error
}

func (v *staticVerifier) Verify(provider oauthid.Provider, rawToken, expectedNonce string) (*oauthid.VerifiedIdentity, error) {
	if v.err != nil {
		return nil, v.err
	}
	return v.identity, nil
}
