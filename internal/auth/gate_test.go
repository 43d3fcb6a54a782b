package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"courier/internal/models"
	"courier/internal/token"
)

type fakeVerifier struct {
	claims *token.Claims
	err    error
}

func (f *fakeVerifier) Verify(string) (*token.Claims, error) {
	return f.claims, f.err
}

type fakeUsers struct {
	user *models.User
	err  error
}

func (f *fakeUsers) GetByID(context.Context, uuid.UUID) (*models.User, error) {
	return f.user, f.err
}

type fakeSessions struct {
	session *models.Session
	err     error
}

func (f *fakeSessions) Validate(context.Context, uuid.UUID, uuid.UUID) (*models.Session, error) {
	return f.session, f.err
}

func validClaims(userID, sessionID uuid.UUID) *token.Claims {
	return &token.Claims{
		SessionID: sessionID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: userID.String(),
		},
	}
}

func TestAuthenticate(t *testing.T) {
	userID := uuid.New()
	sessionID := uuid.New()
	wantUser := &models.User{ID: userID}
	wantSess := &models.Session{ID: sessionID, UserID: userID, IsActive: true}

	gate := NewGate(
		&fakeVerifier{claims: validClaims(userID, sessionID)},
		&fakeUsers{user: wantUser},
		&fakeSessions{session: wantSess},
	)

	u, sess, err := gate.Authenticate(context.Background(), "some-token")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if u != wantUser {
		t.Errorf("user = %+v, want %+v", u, wantUser)
	}
	if sess != wantSess {
		t.Errorf("session = %+v, want %+v", sess, wantSess)
	}
}

func TestAuthenticateRejections(t *testing.T) {
	userID := uuid.New()
	sessionID := uuid.New()
	okVerifier := &fakeVerifier{claims: validClaims(userID, sessionID)}
	okUsers := &fakeUsers{user: &models.User{ID: userID}}
	okSessions := &fakeSessions{session: &models.Session{ID: sessionID}}

	missingSID := validClaims(userID, sessionID)
	missingSID.SessionID = ""
	badSub := validClaims(userID, sessionID)
	badSub.Subject = "not-a-uuid"

	tests := []struct {
		name     string
		raw      string
		verifier TokenVerifier
		users    UserStore
		sessions SessionValidator
	}{
		{"empty token", "", okVerifier, okUsers, okSessions},
		{"verify fails", "t", &fakeVerifier{err: token.ErrInvalidToken}, okUsers, okSessions},
		{"missing sid claim", "t", &fakeVerifier{claims: missingSID}, okUsers, okSessions},
		{"malformed sub claim", "t", &fakeVerifier{claims: badSub}, okUsers, okSessions},
		{"user gone", "t", okVerifier, &fakeUsers{err: errors.New("user not found")}, okSessions},
		{"session rejected", "t", okVerifier, okUsers, &fakeSessions{err: errors.New("session expired")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := NewGate(tt.verifier, tt.users, tt.sessions)
			_, _, err := gate.Authenticate(context.Background(), tt.raw)
			if !errors.Is(err, ErrUnauthorized) {
				t.Errorf("Authenticate() error = %v, want ErrUnauthorized", err)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"plain", "Bearer abc.def.ghi", "abc.def.ghi"},
		{"case insensitive scheme", "bearer abc", "abc"},
		{"missing header", "", ""},
		{"wrong scheme", "Basic dXNlcjpwdw==", ""},
		{"scheme only", "Bearer", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if got := BearerToken(r); got != tt.want {
				t.Errorf("BearerToken() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	userID := uuid.New()
	sessionID := uuid.New()
	gate := NewGate(
		&fakeVerifier{claims: validClaims(userID, sessionID)},
		&fakeUsers{user: &models.User{ID: userID}},
		&fakeSessions{session: &models.Session{ID: sessionID, UserID: userID}},
	)

	var seen *Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	t.Run("authenticated", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/users/me", nil)
		r.Header.Set("Authorization", "Bearer token")
		w := httptest.NewRecorder()
		gate.Middleware(next).ServeHTTP(w, r)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		if seen == nil || seen.User.ID != userID || seen.Session.ID != sessionID {
			t.Errorf("identity in context = %+v", seen)
		}
	})

	t.Run("missing credentials", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/users/me", nil)
		w := httptest.NewRecorder()
		gate.Middleware(next).ServeHTTP(w, r)

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", w.Code)
		}
		if got := w.Header().Get("WWW-Authenticate"); got != "Bearer" {
			t.Errorf("WWW-Authenticate = %q, want %q", got, "Bearer")
		}
	})
}
