package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken covers every verification failure: bad signature,
// malformed structure, wrong algorithm, or expiry in the past.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the signed claim set carried by an access token. Subject holds
// the user id, SessionID the session the token was issued for.
type Claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Codec signs and verifies access tokens with a single symmetric secret and
// a fixed algorithm for the process lifetime.
type Codec struct {
	secret []byte
}

func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

// Issue signs a token for the given user and session. The TTL is coupled to
// the session's validity window, not a separate short-lived value.
func (c *Codec) Issue(userID, sessionID uuid.UUID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		SessionID: sessionID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Verify checks signature, structure and expiry, and returns the embedded
// claims. Callers still need to check the claims against live session state;
// a valid token alone is not sufficient for authentication.
func (c *Codec) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
