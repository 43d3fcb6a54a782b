package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"courier/internal/models"
	"courier/internal/token"
)

// ErrUnauthorized is the single failure value callers see. The distinct
// internal reason is logged but never surfaced to the client.
var ErrUnauthorized = errors.New("unauthorized")

// TokenVerifier checks a raw bearer token and returns its claims.
type TokenVerifier interface {
	Verify(raw string) (*token.Claims, error)
}

// UserStore resolves the user a token claims to belong to.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// SessionValidator checks the claimed session against live session state.
type SessionValidator interface {
	Validate(ctx context.Context, userID, sessionID uuid.UUID) (*models.Session, error)
}

// Gate is the one authentication decision shared by the HTTP middleware and
// the websocket handshake, so expiry and revocation semantics cannot drift
// between the two entry points.
type Gate struct {
	codec    TokenVerifier
	users    UserStore
	sessions SessionValidator
}

func NewGate(codec TokenVerifier, users UserStore, sessions SessionValidator) *Gate {
	return &Gate{codec: codec, users: users, sessions: sessions}
}

// Authenticate resolves a raw bearer token to the user and the exact session
// it was issued for. Both are returned: the session identifies the device a
// message is sent from, and logout must deactivate only the calling session.
func (g *Gate) Authenticate(ctx context.Context, raw string) (*models.User, *models.Session, error) {
	if raw == "" {
		return nil, nil, ErrUnauthorized
	}

	claims, err := g.codec.Verify(raw)
	if err != nil {
		log.Debug().Err(err).Msg("auth: token rejected")
		return nil, nil, ErrUnauthorized
	}

	if claims.Subject == "" || claims.SessionID == "" {
		log.Debug().Msg("auth: token missing sub or sid claim")
		return nil, nil, ErrUnauthorized
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		log.Debug().Err(err).Msg("auth: malformed sub claim")
		return nil, nil, ErrUnauthorized
	}
	sessionID, err := uuid.Parse(claims.SessionID)
	if err != nil {
		log.Debug().Err(err).Msg("auth: malformed sid claim")
		return nil, nil, ErrUnauthorized
	}

	user, err := g.users.GetByID(ctx, userID)
	if err != nil {
		log.Debug().Err(err).Str("user_id", userID.String()).Msg("auth: user lookup failed")
		return nil, nil, ErrUnauthorized
	}

	sess, err := g.sessions.Validate(ctx, userID, sessionID)
	if err != nil {
		log.Debug().Err(err).Str("session_id", sessionID.String()).Msg("auth: session rejected")
		return nil, nil, ErrUnauthorized
	}

	return user, sess, nil
}
