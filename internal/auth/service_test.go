package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTokenService(ttl time.Duration) *service {
	return &service{secret: []byte("test-secret"), ttl: ttl}
}

func TestTokenRoundTrip(t *testing.T) {
	svc := newTokenService(time.Hour)
	userID := uuid.New()

	tok, err := svc.issueToken(userID, false)
	if err != nil {
		t.Fatalf("issueToken: %v", err)
	}

	gotID, admin, err := svc.ValidateToken(context.Background(), tok)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if gotID != userID {
		t.Errorf("user id = %s, want %s", gotID, userID)
	}
	if admin {
		t.Error("admin = true for regular user")
	}
}

func TestTokenCarriesAdminFlag(t *testing.T) {
	svc := newTokenService(time.Hour)

	tok, err := svc.issueToken(uuid.New(), true)
	if err != nil {
		t.Fatalf("issueToken: %v", err)
	}
	_, admin, err := svc.ValidateToken(context.Background(), tok)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if !admin {
		t.Error("admin flag lost in round trip")
	}
}

func TestTokenWrongSecretRejected(t *testing.T) {
	tok, err := newTokenService(time.Hour).issueToken(uuid.New(), false)
	if err != nil {
		t.Fatalf("issueToken: %v", err)
	}

	other := &service{secret: []byte("different-secret"), ttl: time.Hour}
	if _, _, err := other.ValidateToken(context.Background(), tok); err == nil {
		t.Fatal("token signed with another secret was accepted")
	}
}

func TestTokenExpiryRejected(t *testing.T) {
	svc := newTokenService(-time.Minute)

	tok, err := svc.issueToken(uuid.New(), false)
	if err != nil {
		t.Fatalf("issueToken: %v", err)
	}
	if _, _, err := svc.ValidateToken(context.Background(), tok); err == nil {
		t.Fatal("expired token was accepted")
	}
}

func TestTokenGarbageRejected(t *testing.T) {
	svc := newTokenService(time.Hour)
	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, _, err := svc.ValidateToken(context.Background(), tok); err == nil {
			t.Errorf("token %q was accepted", tok)
		}
	}
}
