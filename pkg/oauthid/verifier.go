package oauthid

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier validates raw identity tokens against the configured providers.
// Construct once and share; the embedded key caches are safe for
// concurrent use.
type Verifier struct {
	configs map[Provider]ProviderConfig
	keys    map[Provider]*keyCache
}

// NewVerifier builds a verifier for the given provider configurations.
// Providers not present in the map are rejected at verification time.
func NewVerifier(configs map[Provider]ProviderConfig) *Verifier {
	httpClient := &http.Client{Timeout: 10 * time.Second}

	keys := make(map[Provider]*keyCache, len(configs))
	for provider, cfg := range configs {
		keys[provider] = newKeyCache(cfg.KeysURL, httpClient)
	}
	return &Verifier{configs: configs, keys: keys}
}

type idTokenClaims struct {
	Email string `json:"email"`
	Nonce string `json:"nonce"`
	jwt.RegisteredClaims
}

// Verify checks signature, issuer, audience and expiry of a raw identity
// token, and the embedded nonce when the caller supplied one. On success
// it returns the provider's stable subject id and whatever email the token
// carried.
func (v *Verifier) Verify(provider Provider, rawToken, expectedNonce string) (*VerifiedIdentity, error) {
	cfg, ok := v.configs[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
	cache := v.keys[provider]

	claims := &idTokenClaims{}
	token, err := jwt.ParseWithClaims(rawToken, claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("%w: missing key id", ErrInvalidToken)
		}
		return cache.get(kid)
	},
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithAudience(cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(expiryLeeway),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpired
		case errors.Is(err, jwt.ErrTokenInvalidAudience):
			return nil, ErrAudienceMismatch
		case errors.Is(err, ErrInvalidToken):
			return nil, err
		default:
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if !issuerAllowed(cfg.Issuers, claims.Issuer) {
		return nil, fmt.Errorf("%w: issuer %q", ErrInvalidToken, claims.Issuer)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	if expectedNonce != "" && !nonceMatches(claims.Nonce, expectedNonce) {
		return nil, ErrNonceMismatch
	}

	return &VerifiedIdentity{
		SubjectID: claims.Subject,
		Email:     claims.Email,
	}, nil
}

func issuerAllowed(allowed []string, issuer string) bool {
	for _, a := range allowed {
		if issuer == a {
			return true
		}
	}
	return false
}

// nonceMatches accepts either the raw nonce or its SHA-256 hex digest,
// since Apple embeds whichever form the client passed to the sign-in
// ceremony.
func nonceMatches(claimed, expected string) bool {
	if claimed == "" {
		return false
	}
	if claimed == expected {
		return true
	}
	sum := sha256.Sum256([]byte(expected))
	return claimed == hex.EncodeToString(sum[:])
}
