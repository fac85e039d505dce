package usecase

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/stone-app/backend/internal/domain"
	"github.com/stone-app/backend/pkg/oauthid"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailExists        = errors.New("email already exists")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidUsername    = errors.New("username must be 3-20 letters, digits or underscores")

	ErrInvalidAssertion = errors.New("invalid identity assertion")
	ErrNonceMismatch    = errors.New("identity assertion nonce mismatch")

	ErrCredentialNotFound = errors.New("refresh credential not found")
	ErrCredentialRevoked  = errors.New("refresh credential revoked")
	ErrCredentialExpired  = errors.New("refresh credential expired")

	ErrTokenInvalid = errors.New("invalid access token")
	ErrTokenExpired = errors.New("access token expired")
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)

// AssertionVerifier validates a third-party identity token and extracts
// the stable subject id. Satisfied by *oauthid.Verifier.
type AssertionVerifier interface {
	Verify(provider oauthid.Provider, rawToken, expectedNonce string) (*oauthid.VerifiedIdentity, error)
}

// AuthUsecase is the session facade: it composes assertion verification,
// account provisioning and token issuance into the sign-in and refresh
// entry points the HTTP layer calls.
type AuthUsecase struct {
	accountRepo domain.AccountRepository
	issuer      *TokenIssuer
	refresh     *RefreshManager
	provisioner *Provisioner
	verifier    AssertionVerifier
}

func NewAuthUsecase(accountRepo domain.AccountRepository, issuer *TokenIssuer, refresh *RefreshManager, provisioner *Provisioner, verifier AssertionVerifier) *AuthUsecase {
	return &AuthUsecase{
		accountRepo: accountRepo,
		issuer:      issuer,
		refresh:     refresh,
		provisioner: provisioner,
		verifier:    verifier,
	}
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}

// SignInWithProvider verifies a provider-issued identity token, resolves
// or provisions the local account, and mints a fresh token pair. An
// account committed before a token issuance failure is left in place: it
// is resolvable by subject id when the client retries.
func (u *AuthUsecase) SignInWithProvider(provider domain.AuthProvider, rawAssertion, nonce, fallbackEmail string) (*domain.Account, *TokenPair, error) {
	identity, err := u.verifier.Verify(oauthid.Provider(provider), rawAssertion, nonce)
	if err != nil {
		if errors.Is(err, oauthid.ErrNonceMismatch) {
			return nil, nil, ErrNonceMismatch
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidAssertion, err)
	}

	email := identity.Email
	if email == "" {
		email = fallbackEmail
	}

	account, err := u.provisioner.ResolveOrCreate(provider, identity.SubjectID, email)
	if err != nil {
		return nil, nil, err
	}

	tokens, err := u.generateTokenPair(account)
	if err != nil {
		return nil, nil, err
	}
	return account, tokens, nil
}

// Refresh redeems the presented credential and rotates it. The rotation
// revokes the redeemed credential atomically with the insert, so replaying
// the old token afterwards fails as revoked.
func (u *AuthUsecase) Refresh(rawToken string) (*TokenPair, error) {
	account, cred, err := u.refresh.Redeem(rawToken)
	if err != nil {
		return nil, err
	}

	accessToken, expiresAt, err := u.issuer.Issue(account)
	if err != nil {
		return nil, err
	}

	newRefresh, err := u.refresh.Rotate(cred)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: newRefresh,
		ExpiresAt:    expiresAt.Unix(),
	}, nil
}

func (u *AuthUsecase) Logout(rawToken string) error {
	return u.refresh.Revoke(rawToken)
}

func (u *AuthUsecase) ValidateAccessToken(tokenString string) (*Claims, error) {
	return u.issuer.Verify(tokenString)
}

func (u *AuthUsecase) GetAccountByID(id uuid.UUID) (*domain.Account, error) {
	return u.accountRepo.GetByID(id)
}

// Register creates a legacy password account. OAuth accounts never take
// this path; their provisioning happens in SignInWithProvider.
func (u *AuthUsecase) Register(username, email, password string) (*domain.Account, *TokenPair, error) {
	if !usernamePattern.MatchString(username) {
		return nil, nil, ErrInvalidUsername
	}

	existing, err := u.accountRepo.GetByEmail(email)
	if err != nil {
		return nil, nil, err
	}
	if existing != nil {
		return nil, nil, ErrEmailExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, err
	}

	account := &domain.Account{
		Username:     username,
		Email:        email,
		PasswordHash: string(hashedPassword),
		AuthProvider: domain.ProviderPassword,
	}

	err = u.accountRepo.Create(account)
	if err == domain.ErrDuplicateUsername {
		return nil, nil, ErrUsernameTaken
	}
	if err == domain.ErrDuplicateEmail {
		return nil, nil, ErrEmailExists
	}
	if err != nil {
		return nil, nil, err
	}

	tokens, err := u.generateTokenPair(account)
	if err != nil {
		return nil, nil, err
	}
	return account, tokens, nil
}

func (u *AuthUsecase) Login(email, password string) (*domain.Account, *TokenPair, error) {
	account, err := u.accountRepo.GetByEmail(email)
	if err != nil {
		return nil, nil, err
	}
	if account == nil || account.PasswordHash == "" {
		return nil, nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	tokens, err := u.generateTokenPair(account)
	if err != nil {
		return nil, nil, err
	}
	return account, tokens, nil
}

func (u *AuthUsecase) generateTokenPair(account *domain.Account) (*TokenPair, error) {
	accessToken, expiresAt, err := u.issuer.Issue(account)
	if err != nil {
		return nil, err
	}

	refreshToken, err := u.refresh.Issue(account)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt.Unix(),
	}, nil
}
