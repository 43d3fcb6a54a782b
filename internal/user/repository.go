package user

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"courier/internal/models"
)

var ErrNotFound = errors.New("user not found")

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, u *models.User) error {
	query := `INSERT INTO users (normalized_username, display_username, password_hash)
              VALUES ($1, $2, $3)
              RETURNING user_id, created_at`

	err := r.db.QueryRowContext(ctx, query, u.NormalizedUsername, u.DisplayUsername, u.PasswordHash).
		Scan(&u.ID, &u.CreatedAt)
	if isUniqueViolation(err) {
		return ErrUsernameTaken
	}
	return err
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.get(ctx, `SELECT user_id, normalized_username, display_username, password_hash, created_at
                       FROM users WHERE user_id = $1`, id)
}

func (r *Repository) GetByNormalizedUsername(ctx context.Context, username string) (*models.User, error) {
	return r.get(ctx, `SELECT user_id, normalized_username, display_username, password_hash, created_at
                       FROM users WHERE normalized_username = $1`, username)
}

func (r *Repository) get(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	u := &models.User{}
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&u.ID, &u.NormalizedUsername, &u.DisplayUsername, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

func (r *Repository) Update(ctx context.Context, u *models.User) error {
	query := `UPDATE users
              SET normalized_username = $2, display_username = $3, password_hash = $4
              WHERE user_id = $1`

	_, err := r.db.ExecContext(ctx, query, u.ID, u.NormalizedUsername, u.DisplayUsername, u.PasswordHash)
	if isUniqueViolation(err) {
		return ErrUsernameTaken
	}
	return err
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE user_id = $1`, id)
	return err
}
