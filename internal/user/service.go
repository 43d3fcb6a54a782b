package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"courier/internal/auth"
	"courier/internal/models"
)

var (
	ErrUsernameTaken      = errors.New("username taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrWrongPassword      = errors.New("password incorrect")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrInvalidPassword    = errors.New("invalid password")
	ErrNoChanges          = errors.New("no changes requested")
)

const (
	minUsernameLen = 4
	maxUsernameLen = 50
	minPasswordLen = 8
	maxPasswordLen = 255
)

// Store is the user persistence contract.
type Store interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByNormalizedUsername(ctx context.Context, username string) (*models.User, error)
	Update(ctx context.Context, u *models.User) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// SessionManager is the slice of the session service sign-in and account
// lifecycle need.
type SessionManager interface {
	Create(ctx context.Context, userID uuid.UUID, ttlDays int, deviceInfo, ip string) (*models.Session, error)
	EnforceCap(ctx context.Context, userID uuid.UUID, max int) error
	Deactivate(ctx context.Context, sessionID uuid.UUID) error
	DeleteForUser(ctx context.Context, userID uuid.UUID) error
}

// SettingsProvider yields the caller's settings, lazily created on first use.
type SettingsProvider interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.UserSettings, error)
}

type TokenIssuer interface {
	Issue(userID, sessionID uuid.UUID, ttl time.Duration) (string, error)
}

type Service struct {
	store    Store
	sessions SessionManager
	settings SettingsProvider
	codec    TokenIssuer
	ttlDays  int
}

func NewService(store Store, sessions SessionManager, settings SettingsProvider, codec TokenIssuer, ttlDays int) *Service {
	return &Service{store: store, sessions: sessions, settings: settings, codec: codec, ttlDays: ttlDays}
}

// SignUp registers a new user. The display username is kept as given; the
// normalized form guards uniqueness.
func (s *Service) SignUp(ctx context.Context, displayUsername, password, repeatPassword string) (*models.User, error) {
	normalized := models.NormalizeUsername(displayUsername)
	if len(normalized) < minUsernameLen || len(normalized) > maxUsernameLen {
		return nil, ErrInvalidUsername
	}
	if len(password) < minPasswordLen || len(password) > maxPasswordLen {
		return nil, ErrInvalidPassword
	}
	if password != repeatPassword {
		return nil, ErrPasswordMismatch
	}

	if _, err := s.store.GetByNormalizedUsername(ctx, normalized); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &models.User{
		NormalizedUsername: normalized,
		DisplayUsername:    displayUsername,
		PasswordHash:       hash,
	}
	if err := s.store.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// SignIn verifies credentials and issues a bearer token bound to a fresh
// session. The session cap is enforced first, making room for the new login
// by deactivating the user's oldest active session when necessary.
func (s *Service) SignIn(ctx context.Context, username, password, deviceInfo, ip string) (string, error) {
	u, err := s.store.GetByNormalizedUsername(ctx, models.NormalizeUsername(username))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if !auth.VerifyPassword(u.PasswordHash, password) {
		return "", ErrInvalidCredentials
	}

	settings, err := s.settings.Get(ctx, u.ID)
	if err != nil {
		return "", fmt.Errorf("load settings: %w", err)
	}
	if err := s.sessions.EnforceCap(ctx, u.ID, settings.MaxSessions); err != nil {
		return "", fmt.Errorf("enforce session cap: %w", err)
	}

	sess, err := s.sessions.Create(ctx, u.ID, s.ttlDays, deviceInfo, ip)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	// Token lifetime is coupled 1:1 to the session lifetime.
	return s.codec.Issue(u.ID, sess.ID, time.Duration(s.ttlDays)*24*time.Hour)
}

// UpdateProfile applies a username and/or password change. Each part is
// validated independently; a password change requires re-verification of the
// current password.
type UpdateRequest struct {
	CurrentPassword   string
	NewUsername       string
	NewPassword       string
	RepeatNewPassword string
}

func (s *Service) UpdateProfile(ctx context.Context, current *models.User, req UpdateRequest) (*models.User, error) {
	if req.NewUsername == "" && req.NewPassword == "" {
		return nil, ErrNoChanges
	}

	u := *current

	if req.NewUsername != "" {
		normalized := models.NormalizeUsername(req.NewUsername)
		if len(normalized) < minUsernameLen || len(normalized) > maxUsernameLen {
			return nil, ErrInvalidUsername
		}
		if normalized != current.NormalizedUsername {
			if _, err := s.store.GetByNormalizedUsername(ctx, normalized); err == nil {
				return nil, ErrUsernameTaken
			} else if !errors.Is(err, ErrNotFound) {
				return nil, err
			}
			u.NormalizedUsername = normalized
		}
		u.DisplayUsername = req.NewUsername
	}

	if req.NewPassword != "" {
		if len(req.NewPassword) < minPasswordLen || len(req.NewPassword) > maxPasswordLen {
			return nil, ErrInvalidPassword
		}
		if req.NewPassword != req.RepeatNewPassword {
			return nil, ErrPasswordMismatch
		}
		if req.CurrentPassword == "" || !auth.VerifyPassword(current.PasswordHash, req.CurrentPassword) {
			return nil, ErrWrongPassword
		}
		hash, err := auth.HashPassword(req.NewPassword)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = hash
	}

	if err := s.store.Update(ctx, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Logout deactivates only the calling session, never the user's others.
func (s *Service) Logout(ctx context.Context, sessionID uuid.UUID) error {
	return s.sessions.Deactivate(ctx, sessionID)
}

// DeleteAccount removes the user after password re-verification, cascading
// session deletion first.
func (s *Service) DeleteAccount(ctx context.Context, current *models.User, password string) error {
	if !auth.VerifyPassword(current.PasswordHash, password) {
		return ErrWrongPassword
	}
	if err := s.sessions.DeleteForUser(ctx, current.ID); err != nil {
		return err
	}
	return s.store.Delete(ctx, current.ID)
}
