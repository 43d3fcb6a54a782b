package settings

import (
	"context"

	"github.com/google/uuid"

	"courier/internal/models"
)

// Store is the settings persistence contract.
type Store interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.UserSettings, error)
	Update(ctx context.Context, s *models.UserSettings) error
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Get returns the user's settings, created with defaults on first access.
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (*models.UserSettings, error) {
	return s.store.Get(ctx, userID)
}

// UpdateRequest carries optional changes; nil fields are left untouched.
type UpdateRequest struct {
	MaxSessions          *int
	NotificationsEnabled *bool
}

// Update applies the requested changes. max_sessions is clamped to its
// allowed range rather than rejected.
func (s *Service) Update(ctx context.Context, userID uuid.UUID, req UpdateRequest) (*models.UserSettings, error) {
	current, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.MaxSessions != nil {
		current.MaxSessions = models.ClampMaxSessions(*req.MaxSessions)
	}
	if req.NotificationsEnabled != nil {
		current.NotificationsEnabled = *req.NotificationsEnabled
	}

	if err := s.store.Update(ctx, current); err != nil {
		return nil, err
	}
	return current, nil
}
