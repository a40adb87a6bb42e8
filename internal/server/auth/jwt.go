// Package auth issues and verifies the short-lived access tokens (HS256 JWT).
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmanankin/authvault/internal/common"
)

// Claims includes the registered claims plus the owning user id. Subject
// duplicates UserID, matching the {userId, sub} payload shape of the API.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
}

// Issuer signs access tokens with an immutable, explicitly constructed
// signing key. There is no process-wide key state; construct one Issuer at
// startup and pass it where needed.
type Issuer struct {
	secret   []byte
	validity time.Duration
}

// NewIssuer builds an Issuer for the given HMAC secret and token validity.
func NewIssuer(secret []byte, validity time.Duration) *Issuer {
	return &Issuer{secret: secret, validity: validity}
}

// Validity returns the configured access-token lifetime. The value reported
// to clients as expireIn is derived from this, so the claimed lifetime and
// the signed expiry can never disagree.
func (i *Issuer) Validity() time.Duration {
	return i.validity
}

// Issue signs a token for userID expiring validity from now.
func (i *Issuer) Issue(userID string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.validity)),
		},
		UserID: userID,
	})
	return token.SignedString(i.secret)
}

// ParseUserID verifies signature and expiry and returns the user id.
// Expired tokens yield common.ErrTokenExpired; anything else that fails
// verification yields common.ErrInvalidToken.
func (i *Issuer) ParseUserID(tokenString string) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, common.ErrInvalidToken
		}
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", common.ErrInvalidToken
	}

	if !token.Valid || claims.UserID == "" {
		return "", common.ErrInvalidToken
	}

	return claims.UserID, nil
}
