// Package oauthid verifies identity tokens issued by third-party sign-in
// providers (Apple, Google). Verification is always anchored on the
// provider's published signing keys; nothing in the raw assertion is
// trusted before the signature checks out.
package oauthid

import (
	"errors"
	"time"
)

type Provider string

const (
	Apple  Provider = "apple"
	Google Provider = "google"
)

var (
	ErrUnknownProvider  = errors.New("unknown identity provider")
	ErrInvalidToken     = errors.New("invalid identity token")
	ErrAudienceMismatch = errors.New("identity token audience mismatch")
	ErrExpired          = errors.New("identity token expired")
	ErrNonceMismatch    = errors.New("identity token nonce mismatch")
)

// VerifiedIdentity is what a successfully verified assertion reduces to.
// SubjectID is the provider's stable identifier and the only safe join
// key; Email may be absent or a private-relay address.
type VerifiedIdentity struct {
	SubjectID string
	Email     string
}

// ProviderConfig carries the verification parameters for one provider.
type ProviderConfig struct {
	// Issuers lists the accepted iss values. Google historically signs
	// with and without the https scheme.
	Issuers []string
	// Audience is this application's client identifier at the provider.
	Audience string
	// KeysURL serves the provider's current JWKS.
	KeysURL string
}

const (
	appleIssuer    = "https://appleid.apple.com"
	appleKeysURL   = "https://appleid.apple.com/auth/keys"
	googleKeysURL  = "https://www.googleapis.com/oauth2/v3/certs"
	expiryLeeway   = 2 * time.Minute
	keyFetchExpiry = 24 * time.Hour
)

func AppleConfig(clientID string) ProviderConfig {
	return ProviderConfig{
		Issuers:  []string{appleIssuer},
		Audience: clientID,
		KeysURL:  appleKeysURL,
	}
}

func GoogleConfig(clientID string) ProviderConfig {
	return ProviderConfig{
		Issuers:  []string{"https://accounts.google.com", "accounts.google.com"},
		Audience: clientID,
		KeysURL:  googleKeysURL,
	}
}
