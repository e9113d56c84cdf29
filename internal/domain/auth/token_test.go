package auth

import (
	"context"
	"testing"
	"time"

	"voicenote-server-go/internal/domain/auth/store"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func TestTokenRoundTrip(t *testing.T) {
	token := NewAuthToken("unit-test-secret").WithTTL(time.Minute)

	signed, err := token.GenerateToken(42, "client-a")
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	userID, clientID, err := token.VerifyToken(signed)
	if err != nil {
		t.Fatalf("VerifyToken error: %v", err)
	}
	if userID != 42 || clientID != "client-a" {
		t.Fatalf("identity = (%d, %q), want (42, client-a)", userID, clientID)
	}
}

func TestTokenRejectsWrongSecret(t *testing.T) {
	issuer := NewAuthToken("secret-one")
	verifier := NewAuthToken("secret-two")

	signed, err := issuer.GenerateToken(1, "c")
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}
	if _, _, err := verifier.VerifyToken(signed); err == nil {
		t.Fatal("expected verification failure with different secret")
	}
}

func TestTokenRejectsGarbage(t *testing.T) {
	token := NewAuthToken("secret")
	if _, _, err := token.VerifyToken("not.a.jwt"); err == nil {
		t.Fatal("expected error for malformed token")
	}
}

func TestManagerRegisterAndVerify(t *testing.T) {
	ctx := context.Background()
	s, err := store.New(store.Config{TTL: time.Minute}, store.Dependencies{})
	if err != nil {
		t.Fatalf("store.New error: %v", err)
	}

	mgr, err := NewManager(Options{
		Store:  s,
		Logger: nopLogger{},
		Token:  NewAuthToken("mgr-secret").WithTTL(time.Minute),
	})
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}
	t.Cleanup(func() { _ = mgr.Close() })

	signed, err := mgr.RegisterClient(ctx, ClientInfo{
		ClientID: "browser-1",
		UserID:   9,
		Username: "journal",
		Password: "pw",
	})
	if err != nil {
		t.Fatalf("RegisterClient error: %v", err)
	}

	userID, clientID, err := mgr.VerifyToken(ctx, signed)
	if err != nil {
		t.Fatalf("VerifyToken error: %v", err)
	}
	if userID != 9 || clientID != "browser-1" {
		t.Fatalf("identity = (%d, %q)", userID, clientID)
	}

	if err := mgr.RevokeClient(ctx, "browser-1"); err != nil {
		t.Fatalf("RevokeClient error: %v", err)
	}
}

// The JWT stays cryptographically valid after revocation; the manager must
// reject it anyway because the session is gone from the store.
func TestManagerRejectsRevokedSession(t *testing.T) {
	ctx := context.Background()
	s, err := store.New(store.Config{TTL: time.Minute}, store.Dependencies{})
	if err != nil {
		t.Fatalf("store.New error: %v", err)
	}

	mgr, err := NewManager(Options{
		Store:  s,
		Logger: nopLogger{},
		Token:  NewAuthToken("mgr-secret").WithTTL(time.Minute),
	})
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}
	t.Cleanup(func() { _ = mgr.Close() })

	signed, err := mgr.RegisterClient(ctx, ClientInfo{
		ClientID: "browser-2",
		UserID:   4,
		Username: "journal",
	})
	if err != nil {
		t.Fatalf("RegisterClient error: %v", err)
	}
	if _, _, err := mgr.VerifyToken(ctx, signed); err != nil {
		t.Fatalf("VerifyToken before revoke: %v", err)
	}

	if err := mgr.RevokeClient(ctx, "browser-2"); err != nil {
		t.Fatalf("RevokeClient error: %v", err)
	}
	if _, _, err := mgr.VerifyToken(ctx, signed); err == nil {
		t.Fatal("expected verification failure after revocation")
	}
}
