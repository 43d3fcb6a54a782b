package settings

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"courier/internal/models"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Get returns the user's settings, inserting the defaults on first access.
func (r *Repository) Get(ctx context.Context, userID uuid.UUID) (*models.UserSettings, error) {
	s := &models.UserSettings{UserID: userID}
	query := `SELECT max_sessions, notifications_enabled FROM user_settings WHERE user_id = $1`

	err := r.db.QueryRowContext(ctx, query, userID).Scan(&s.MaxSessions, &s.NotificationsEnabled)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	s.MaxSessions = models.DefaultMaxSessions
	s.NotificationsEnabled = true
	insert := `INSERT INTO user_settings (user_id, max_sessions, notifications_enabled)
               VALUES ($1, $2, $3)
               ON CONFLICT (user_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, insert, userID, s.MaxSessions, s.NotificationsEnabled); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *Repository) Update(ctx context.Context, s *models.UserSettings) error {
	query := `UPDATE user_settings SET max_sessions = $2, notifications_enabled = $3 WHERE user_id = $1`
	_, err := r.db.ExecContext(ctx, query, s.UserID, s.MaxSessions, s.NotificationsEnabled)
	return err
}
