package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func TestIssueAndVerify(t *testing.T) {
	codec := NewCodec("test-secret")
	userID := uuid.New()
	sessionID := uuid.New()

	raw, err := codec.Issue(userID, sessionID, time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	claims, err := codec.Verify(raw)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.Subject != userID.String() {
		t.Errorf("Subject = %q, want %q", claims.Subject, userID.String())
	}
	if claims.SessionID != sessionID.String() {
		t.Errorf("SessionID = %q, want %q", claims.SessionID, sessionID.String())
	}
}

func TestVerifyExpired(t *testing.T) {
	codec := NewCodec("test-secret")

	raw, err := codec.Issue(uuid.New(), uuid.New(), -time.Minute)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if _, err := codec.Verify(raw); err == nil {
		t.Fatal("Verify() accepted an expired token")
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	issuer := NewCodec("secret-a")
	verifier := NewCodec("secret-b")

	raw, err := issuer.Issue(uuid.New(), uuid.New(), time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if _, err := verifier.Verify(raw); err == nil {
		t.Fatal("Verify() accepted a token signed with a different secret")
	}
}

func TestVerifyMalformed(t *testing.T) {
	codec := NewCodec("test-secret")

	for _, raw := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := codec.Verify(raw); err == nil {
			t.Errorf("Verify(%q) accepted a malformed token", raw)
		}
	}
}

func TestVerifyMissingExpiry(t *testing.T) {
	secret := "test-secret"
	claims := Claims{
		SessionID: uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: uuid.NewString(),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := NewCodec(secret).Verify(raw); err == nil {
		t.Fatal("Verify() accepted a token without an exp claim")
	}
}

func TestVerifyWrongAlgorithm(t *testing.T) {
	secret := "test-secret"
	claims := Claims{
		SessionID: uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := NewCodec(secret).Verify(raw); err == nil {
		t.Fatal("Verify() accepted a token signed with a different algorithm")
	}
}
