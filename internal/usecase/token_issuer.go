package usecase

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/stone-app/backend/internal/domain"
)

type Claims struct {
	AccountID uuid.UUID `json:"account_id"`
	Username  string    `json:"username"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies short-lived access tokens. It is
// stateless: the only input besides the account is the symmetric key
// injected at construction.
type TokenIssuer struct {
	secret       []byte
	accessExpiry time.Duration
}

func NewTokenIssuer(secret string, accessExpiry time.Duration) *TokenIssuer {
	if accessExpiry <= 0 {
		accessExpiry = time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), accessExpiry: accessExpiry}
}

func (i *TokenIssuer) Issue(account *domain.Account) (string, time.Time, error) {
	expiresAt := time.Now().Add(i.accessExpiry)
	claims := &Claims{
		AccountID: account.ID,
		Username:  account.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   account.ID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify checks the signature and expiry. Expiry and signature failures
// both end as a 401 at the API boundary, but stay distinct here so logs can
// tell a stale client from a forged token.
func (i *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
