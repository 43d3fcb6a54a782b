package session

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"courier/internal/models"
)

var ErrNotFound = errors.New("session not found")

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, userID uuid.UUID, expiresAt time.Time, deviceInfo, ip string) (*models.Session, error) {
	s := &models.Session{
		UserID:     userID,
		ExpiresAt:  expiresAt,
		IsActive:   true,
		DeviceInfo: deviceInfo,
		IPAddress:  ip,
	}
	query := `INSERT INTO sessions (user_id, expires_at, device_info, ip_address)
              VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''))
              RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, userID, expiresAt, deviceInfo, ip).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	s := &models.Session{}
	var device, ip sql.NullString
	query := `SELECT id, user_id, created_at, expires_at, is_active, device_info, ip_address
              FROM sessions WHERE id = $1`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.UserID, &s.CreatedAt, &s.ExpiresAt, &s.IsActive, &device, &ip,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	s.DeviceInfo = device.String
	s.IPAddress = ip.String
	return s, nil
}

// Deactivate marks a session inactive. Idempotent; already-inactive rows are
// left as they are.
func (r *Repository) Deactivate(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `UPDATE sessions SET is_active = FALSE WHERE id = $1`, id)
	return err
}

// DeactivateOwned deactivates a session only if it belongs to the given user
// and is still active. Reports whether a row was actually updated.
func (r *Repository) DeactivateOwned(ctx context.Context, userID, id uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET is_active = FALSE WHERE id = $1 AND user_id = $2 AND is_active = TRUE`,
		id, userID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListActive returns the user's active, non-expired sessions ascending by
// creation time, so the oldest one is first.
func (r *Repository) ListActive(ctx context.Context, userID uuid.UUID, now time.Time) ([]*models.Session, error) {
	query := `SELECT id, user_id, created_at, expires_at, is_active, device_info, ip_address
              FROM sessions
              WHERE user_id = $1 AND is_active = TRUE AND expires_at > $2
              ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, userID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		s := &models.Session{}
		var device, ip sql.NullString
		if err := rows.Scan(&s.ID, &s.UserID, &s.CreatedAt, &s.ExpiresAt, &s.IsActive, &device, &ip); err != nil {
			return nil, err
		}
		s.DeviceInfo = device.String
		s.IPAddress = ip.String
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *Repository) DeleteForUser(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	return err
}
