package usecase

import (
	"errors"
	"testing"
	"time"

	"github.com/stone-app/backend/internal/domain"
	"github.com/stone-app/backend/pkg/oauthid"
)

func newTestAuthUsecase(verifier AssertionVerifier) (*AuthUsecase, *fakeAccountRepo, *fakeCredentialRepo) {
	accountRepo := newFakeAccountRepo()
	credRepo := newFakeCredentialRepo()

	issuer := NewTokenIssuer("test-secret", time.Hour)
	refresh := NewRefreshManager(credRepo, accountRepo, 270*24*time.Hour)
	provisioner := NewProvisioner(accountRepo, &fakeModeration{})

	return NewAuthUsecase(accountRepo, issuer, refresh, provisioner, verifier), accountRepo, credRepo
}

func TestSignInWithProvider_ProvisionsAccount(t *testing.T) {
	t.Parallel()

	verifier := &staticVerifier{identity: &oauthid.VerifiedIdentity{
		SubjectID: "apple-subject-1",
		Email:     "max@privaterelay.appleid.com",
	}}
	auth, accountRepo, _ := newTestAuthUsecase(verifier)

	account, tokens, err := auth.SignInWithProvider(domain.ProviderApple, "raw-token", "nonce", "")
	if err != nil {
		t.Fatalf("SignInWithProvider error: %v", err)
	}
	if account.AppleSubjectID != "apple-subject-1" {
		t.Fatalf("subject not stored: %q", account.AppleSubjectID)
	}
	if account.AuthProvider != domain.ProviderApple {
		t.Fatalf("unexpected provider %q", account.AuthProvider)
	}

	// The minted access token must verify and carry the account.
	claims, err := auth.ValidateAccessToken(tokens.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccessToken error: %v", err)
	}
	if claims.AccountID != account.ID {
		t.Fatalf("claims account mismatch: %v vs %v", claims.AccountID, account.ID)
	}

	// The refresh token must be redeemable.
	if _, err := auth.Refresh(tokens.RefreshToken); err != nil {
		t.Fatalf("Refresh error: %v", err)
	}

	if accountRepo.count() != 1 {
		t.Fatalf("expected 1 account, got %d", accountRepo.count())
	}
}

func TestSignInWithProvider_SecondSignInReusesAccount(t *testing.T) {
	t.Parallel()

	verifier := &staticVerifier{identity: &oauthid.VerifiedIdentity{
		SubjectID: "apple-subject-1",
		Email:     "max@example.com",
	}}
	auth, accountRepo, _ := newTestAuthUsecase(verifier)

	first, _, err := auth.SignInWithProvider(domain.ProviderApple, "raw", "", "")
	if err != nil {
		t.Fatalf("first sign-in error: %v", err)
	}

	// Apple omits the email on subsequent sign-ins.
	verifier.identity = &oauthid.VerifiedIdentity{SubjectID: "apple-subject-1"}
	second, _, err := auth.SignInWithProvider(domain.ProviderApple, "raw", "", "")
	if err != nil {
		t.Fatalf("second sign-in error: %v", err)
	}

	if second.ID != first.ID {
		t.Fatalf("expected same account, got %v and %v", first.ID, second.ID)
	}
	if accountRepo.count() != 1 {
		t.Fatalf("expected 1 account, got %d", accountRepo.count())
	}
}

func TestSignInWithProvider_InvalidAssertion(t *testing.T) {
	t.Parallel()

	verifier := &staticVerifier{err: oauthid.ErrInvalidToken}
	auth, accountRepo, _ := newTestAuthUsecase(verifier)

	_, _, err := auth.SignInWithProvider(domain.ProviderApple, "garbage", "", "")
	if !errors.Is(err, ErrInvalidAssertion) {
		t.Fatalf("expected ErrInvalidAssertion, got %v", err)
	}
	if accountRepo.count() != 0 {
		t.Fatal("no account may be created for a rejected assertion")
	}
}

func TestSignInWithProvider_NonceMismatch(t *testing.T) {
	t.Parallel()

	verifier := &staticVerifier{err: oauthid.ErrNonceMismatch}
	auth, _, _ := newTestAuthUsecase(verifier)

	_, _, err := auth.SignInWithProvider(domain.ProviderApple, "replayed", "nonce", "")
	if !errors.Is(err, ErrNonceMismatch) {
		t.Fatalf("expected ErrNonceMismatch, got %v", err)
	}
}

func TestRefresh_RotatesCredential(t *testing.T) {
	t.Parallel()

	verifier := &staticVerifier{identity: &oauthid.VerifiedIdentity{
		SubjectID: "g-1",
		Email:     "max@gmail.com",
	}}
	auth, _, credRepo := newTestAuthUsecase(verifier)

	account, tokens, err := auth.SignInWithProvider(domain.ProviderGoogle, "raw", "", "")
	if err != nil {
		t.Fatalf("sign-in error: %v", err)
	}

	refreshed, err := auth.Refresh(tokens.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if refreshed.RefreshToken == tokens.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}

	// Replaying the consumed token fails as revoked.
	_, err = auth.Refresh(tokens.RefreshToken)
	if !errors.Is(err, ErrCredentialRevoked) {
		t.Fatalf("expected ErrCredentialRevoked on replay, got %v", err)
	}

	if n := credRepo.activeCount(account.ID); n != 1 {
		t.Fatalf("expected 1 active credential, got %d", n)
	}
}

func TestLogoutRevokesCredential(t *testing.T) {
	t.Parallel()

	verifier := &staticVerifier{identity: &oauthid.VerifiedIdentity{
		SubjectID: "g-2",
		Email:     "max@gmail.com",
	}}
	auth, _, _ := newTestAuthUsecase(verifier)

	_, tokens, err := auth.SignInWithProvider(domain.ProviderGoogle, "raw", "", "")
	if err != nil {
		t.Fatalf("sign-in error: %v", err)
	}

	if err := auth.Logout(tokens.RefreshToken); err != nil {
		t.Fatalf("Logout error: %v", err)
	}

	_, err = auth.Refresh(tokens.RefreshToken)
	if !errors.Is(err, ErrCredentialRevoked) {
		t.Fatalf("expected ErrCredentialRevoked after logout, got %v", err)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	t.Parallel()

	auth, _, _ := newTestAuthUsecase(&staticVerifier{})

	account, tokens, err := auth.Register("rockfan", "rockfan@example.com", "hunter22")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if account.AuthProvider != domain.ProviderPassword {
		t.Fatalf("unexpected provider %q", account.AuthProvider)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatal("expected token pair")
	}

	if _, _, err := auth.Login("rockfan@example.com", "hunter22"); err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if _, _, err := auth.Login("rockfan@example.com", "wrong"); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := auth.Login("nobody@example.com", "hunter22"); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestRegister_RejectsBadUsername(t *testing.T) {
	t.Parallel()

	auth, _, _ := newTestAuthUsecase(&staticVerifier{})

	for _, username := range []string{"ab", "way-too-long-for-a-username-here", "has space", "bad!chars"} {
		if _, _, err := auth.Register(username, "u@example.com", "pw"); err != ErrInvalidUsername {
			t.Fatalf("expected ErrInvalidUsername for %q, got %v", username, err)
		}
	}
}
