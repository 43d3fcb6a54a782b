package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"courier/internal/cache"
	"courier/internal/metrics"
	"courier/internal/models"
)

// ErrInvalidSession is returned whenever a claimed session cannot be used:
// absent, inactive, expired, or owned by a different user.
var ErrInvalidSession = errors.New("invalid session")

const cacheTTL = 30 * time.Second

// Store is the persistence contract the service runs on.
type Store interface {
	Create(ctx context.Context, userID uuid.UUID, expiresAt time.Time, deviceInfo, ip string) (*models.Session, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	DeactivateOwned(ctx context.Context, userID, id uuid.UUID) (bool, error)
	ListActive(ctx context.Context, userID uuid.UUID, now time.Time) ([]*models.Session, error)
	DeleteForUser(ctx context.Context, userID uuid.UUID) error
}

// Cache is an optional read cache in front of the store. Deactivation always
// deletes the key, so revocation stays immediate.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

type Service struct {
	store Store
	cache Cache // nil disables caching
}

func NewService(store Store, c Cache) *Service {
	return &Service{store: store, cache: c}
}

func cacheKey(id uuid.UUID) string {
	return "session:" + id.String()
}

// Create inserts a new active session valid for ttlDays.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, ttlDays int, deviceInfo, ip string) (*models.Session, error) {
	expiresAt := time.Now().UTC().Add(time.Duration(ttlDays) * 24 * time.Hour)
	return s.store.Create(ctx, userID, expiresAt, deviceInfo, ip)
}

// EnforceCap makes room for one new session: when the user already holds max
// or more active sessions, the single oldest one is deactivated. It runs
// synchronously inside sign-in, immediately before Create. The check and the
// subsequent insert are not covered by one transaction, so concurrent
// sign-ins can transiently exceed the cap by one session.
func (s *Service) EnforceCap(ctx context.Context, userID uuid.UUID, max int) error {
	active, err := s.store.ListActive(ctx, userID, time.Now().UTC())
	if err != nil {
		return err
	}
	if len(active) < max {
		return nil
	}
	oldest := active[0]
	if err := s.Deactivate(ctx, oldest.ID); err != nil {
		return err
	}
	metrics.SessionsEvictedTotal.Inc()
	log.Info().
		Str("user_id", userID.String()).
		Str("session_id", oldest.ID.String()).
		Int("max_sessions", max).
		Msg("evicted oldest session")
	return nil
}

// Validate fetches the session and checks it against the claimed user.
// Results come from the cache when possible; only usable sessions are cached.
func (s *Service) Validate(ctx context.Context, userID, sessionID uuid.UUID) (*models.Session, error) {
	sess, cached := s.cachedGet(ctx, sessionID)
	if sess == nil {
		var err error
		sess, err = s.store.GetByID(ctx, sessionID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("%w: not found", ErrInvalidSession)
			}
			return nil, err
		}
	}

	if !sess.Usable(time.Now()) {
		if !sess.IsActive {
			return nil, fmt.Errorf("%w: inactive", ErrInvalidSession)
		}
		return nil, fmt.Errorf("%w: expired", ErrInvalidSession)
	}
	if sess.UserID != userID {
		return nil, fmt.Errorf("%w: user mismatch", ErrInvalidSession)
	}

	if !cached {
		s.cachedSet(ctx, sess)
	}
	return sess, nil
}

// Deactivate marks the session inactive and evicts it from the cache.
func (s *Service) Deactivate(ctx context.Context, sessionID uuid.UUID) error {
	if err := s.store.Deactivate(ctx, sessionID); err != nil {
		return err
	}
	s.cacheDel(ctx, sessionID)
	return nil
}

// Terminate deactivates a specific session owned by the caller and returns
// the deactivated record.
func (s *Service) Terminate(ctx context.Context, userID, sessionID uuid.UUID) (*models.Session, error) {
	ok, err := s.store.DeactivateOwned(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	s.cacheDel(ctx, sessionID)
	return s.store.GetByID(ctx, sessionID)
}

// ListActive returns the caller's active, non-expired sessions, oldest first.
func (s *Service) ListActive(ctx context.Context, userID uuid.UUID) ([]*models.Session, error) {
	return s.store.ListActive(ctx, userID, time.Now().UTC())
}

// DeleteForUser removes every session of a user as part of account deletion.
// Cached entries may linger for up to cacheTTL, but the user row is gone so
// the Auth Gate rejects them anyway.
func (s *Service) DeleteForUser(ctx context.Context, userID uuid.UUID) error {
	active, err := s.store.ListActive(ctx, userID, time.Now().UTC())
	if err == nil {
		for _, sess := range active {
			s.cacheDel(ctx, sess.ID)
		}
	}
	return s.store.DeleteForUser(ctx, userID)
}

func (s *Service) cachedGet(ctx context.Context, sessionID uuid.UUID) (*models.Session, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, cacheKey(sessionID))
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			log.Warn().Err(err).Msg("session cache read failed")
		}
		return nil, false
	}
	sess := &models.Session{}
	if err := json.Unmarshal([]byte(raw), sess); err != nil {
		log.Warn().Err(err).Msg("session cache entry corrupt")
		return nil, false
	}
	return sess, true
}

func (s *Service) cachedSet(ctx context.Context, sess *models.Session) {
	if s.cache == nil {
		return
	}
	ttl := cacheTTL
	if until := time.Until(sess.ExpiresAt); until < ttl {
		ttl = until
	}
	if ttl <= 0 {
		return
	}
	raw, err := json.Marshal(sess)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(sess.ID), string(raw), ttl); err != nil {
		log.Warn().Err(err).Msg("session cache write failed")
	}
}

func (s *Service) cacheDel(ctx context.Context, sessionID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, cacheKey(sessionID)); err != nil {
		log.Warn().Err(err).Msg("session cache delete failed")
	}
}
