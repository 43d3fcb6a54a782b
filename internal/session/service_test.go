package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"courier/internal/cache"
	"courier/internal/models"
)

type fakeStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*models.Session
	clock    time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: make(map[uuid.UUID]*models.Session),
		clock:    time.Now().UTC().Add(-time.Hour),
	}
}

func (f *fakeStore) Create(_ context.Context, userID uuid.UUID, expiresAt time.Time, deviceInfo, ip string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clock = f.clock.Add(time.Second)
	s := &models.Session{
		ID:         uuid.New(),
		UserID:     userID,
		CreatedAt:  f.clock,
		ExpiresAt:  expiresAt,
		IsActive:   true,
		DeviceInfo: deviceInfo,
		IPAddress:  ip,
	}
	f.sessions[s.ID] = s
	return s, nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStore) Deactivate(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[id]; ok {
		s.IsActive = false
	}
	return nil
}

func (f *fakeStore) DeactivateOwned(_ context.Context, userID, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok || s.UserID != userID || !s.IsActive {
		return false, nil
	}
	s.IsActive = false
	return true, nil
}

func (f *fakeStore) ListActive(_ context.Context, userID uuid.UUID, now time.Time) ([]*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Session
	for _, s := range f.sessions {
		if s.UserID == userID && s.IsActive && s.ExpiresAt.After(now) {
			cp := *s
			out = append(out, &cp)
		}
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].CreatedAt.Before(out[i].CreatedAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteForUser(_ context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, s := range f.sessions {
		if s.UserID == userID {
			delete(f.sessions, id)
		}
	}
	return nil
}

type fakeCache struct {
	mu sync.Mutex
	m  map[string]string
}

func newFakeCache() *fakeCache { return &fakeCache{m: make(map[string]string)} }

func (f *fakeCache) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.m[key]
	if !ok {
		return "", cache.ErrMiss
	}
	return v, nil
}

func (f *fakeCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.m[key] = value
	return nil
}

func (f *fakeCache) Del(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.m, key)
	return nil
}

func TestValidate(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := NewService(store, nil)
	userID := uuid.New()

	sess, err := svc.Create(ctx, userID, 7, "Chrome 120, Linux", "10.0.0.1")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := svc.Validate(ctx, userID, sess.ID)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got.ID != sess.ID {
		t.Errorf("Validate() returned session %v, want %v", got.ID, sess.ID)
	}
}

func TestValidateRejections(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := NewService(store, nil)
	userID := uuid.New()

	t.Run("absent", func(t *testing.T) {
		if _, err := svc.Validate(ctx, userID, uuid.New()); !errors.Is(err, ErrInvalidSession) {
			t.Errorf("Validate() error = %v, want ErrInvalidSession", err)
		}
	})

	t.Run("inactive", func(t *testing.T) {
		sess, _ := svc.Create(ctx, userID, 7, "", "")
		if err := svc.Deactivate(ctx, sess.ID); err != nil {
			t.Fatalf("Deactivate() error = %v", err)
		}
		if _, err := svc.Validate(ctx, userID, sess.ID); !errors.Is(err, ErrInvalidSession) {
			t.Errorf("Validate() error = %v, want ErrInvalidSession", err)
		}
	})

	t.Run("expired", func(t *testing.T) {
		expired, _ := store.Create(ctx, userID, time.Now().UTC().Add(-time.Minute), "", "")
		if _, err := svc.Validate(ctx, userID, expired.ID); !errors.Is(err, ErrInvalidSession) {
			t.Errorf("Validate() error = %v, want ErrInvalidSession", err)
		}
	})

	t.Run("user mismatch", func(t *testing.T) {
		sess, _ := svc.Create(ctx, userID, 7, "", "")
		if _, err := svc.Validate(ctx, uuid.New(), sess.ID); !errors.Is(err, ErrInvalidSession) {
			t.Errorf("Validate() error = %v, want ErrInvalidSession", err)
		}
	})
}

func TestValidateCacheEvictedOnDeactivate(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	c := newFakeCache()
	svc := NewService(store, c)
	userID := uuid.New()

	sess, _ := svc.Create(ctx, userID, 7, "", "")

	if _, err := svc.Validate(ctx, userID, sess.ID); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if _, err := c.Get(ctx, cacheKey(sess.ID)); err != nil {
		t.Fatal("Validate() did not populate the cache")
	}

	if err := svc.Deactivate(ctx, sess.ID); err != nil {
		t.Fatalf("Deactivate() error = %v", err)
	}
	if _, err := c.Get(ctx, cacheKey(sess.ID)); !errors.Is(err, cache.ErrMiss) {
		t.Fatal("Deactivate() left a stale cache entry")
	}
	if _, err := svc.Validate(ctx, userID, sess.ID); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("Validate() after Deactivate error = %v, want ErrInvalidSession", err)
	}
}

func TestEnforceCapEvictsOldest(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := NewService(store, nil)
	userID := uuid.New()

	first, _ := svc.Create(ctx, userID, 7, "", "")
	second, _ := svc.Create(ctx, userID, 7, "", "")

	if err := svc.EnforceCap(ctx, userID, 2); err != nil {
		t.Fatalf("EnforceCap() error = %v", err)
	}

	got, _ := store.GetByID(ctx, first.ID)
	if got.IsActive {
		t.Error("oldest session still active after EnforceCap")
	}
	got, _ = store.GetByID(ctx, second.ID)
	if !got.IsActive {
		t.Error("newer session was deactivated by EnforceCap")
	}
}

func TestEnforceCapUnderCap(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := NewService(store, nil)
	userID := uuid.New()

	sess, _ := svc.Create(ctx, userID, 7, "", "")

	if err := svc.EnforceCap(ctx, userID, 2); err != nil {
		t.Fatalf("EnforceCap() error = %v", err)
	}
	got, _ := store.GetByID(ctx, sess.ID)
	if !got.IsActive {
		t.Error("session deactivated even though the cap was not reached")
	}
}

// N+1 sequential sign-ins with cap N leave exactly N active sessions and
// the oldest of the original N inactive.
func TestSequentialSignInsRespectCap(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := NewService(store, nil)
	userID := uuid.New()
	const maxSessions = 3

	var created []*models.Session
	for i := 0; i < maxSessions+1; i++ {
		if err := svc.EnforceCap(ctx, userID, maxSessions); err != nil {
			t.Fatalf("EnforceCap() error = %v", err)
		}
		sess, err := svc.Create(ctx, userID, 7, "", "")
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		created = append(created, sess)
	}

	active, err := svc.ListActive(ctx, userID)
	if err != nil {
		t.Fatalf("ListActive() error = %v", err)
	}
	if len(active) != maxSessions {
		t.Fatalf("active sessions = %d, want %d", len(active), maxSessions)
	}
	oldest, _ := store.GetByID(ctx, created[0].ID)
	if oldest.IsActive {
		t.Error("oldest session still active after cap was exceeded")
	}
}

func TestTerminate(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := NewService(store, nil)
	userID := uuid.New()

	sess, _ := svc.Create(ctx, userID, 7, "", "")

	terminated, err := svc.Terminate(ctx, userID, sess.ID)
	if err != nil {
		t.Fatalf("Terminate() error = %v", err)
	}
	// The caller gets the deactivated record back.
	if terminated.ID != sess.ID || terminated.IsActive {
		t.Errorf("terminated = %+v, want deactivated session %s", terminated, sess.ID)
	}
	if _, err := svc.Terminate(ctx, userID, sess.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Terminate() error = %v, want ErrNotFound", err)
	}
	if _, err := svc.Terminate(ctx, uuid.New(), sess.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Terminate() by non-owner error = %v, want ErrNotFound", err)
	}
}

func TestListActiveOrdersOldestFirst(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := NewService(store, nil)
	userID := uuid.New()

	first, _ := svc.Create(ctx, userID, 7, "", "")
	second, _ := svc.Create(ctx, userID, 7, "", "")

	active, err := svc.ListActive(ctx, userID)
	if err != nil {
		t.Fatalf("ListActive() error = %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("len(active) = %d, want 2", len(active))
	}
	if active[0].ID != first.ID || active[1].ID != second.ID {
		t.Error("ListActive() not ordered by creation time ascending")
	}
}
