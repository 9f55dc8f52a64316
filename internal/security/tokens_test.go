package security

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"
)

func TestTokenProvider_IssueAndVerifyAccess(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}

	token, exp, err := p.IssueAccess("s1", "u1")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if token == "" {
		t.Fatal("empty access token")
	}
	if !exp.After(time.Now()) {
		t.Fatal("expiry not in the future")
	}

	claims, err := p.VerifyAccess(token)
	if err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}
	if claims.SessionID != "s1" || claims.Subject != "u1" {
		t.Errorf("claims: got sid=%q sub=%q", claims.SessionID, claims.Subject)
	}
	if !claims.ExpiresAt.After(claims.IssuedAt.Time) {
		t.Error("expires_at not after issued_at")
	}
}

func TestTokenProvider_IssueAndVerifyRefresh(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}

	token, _, err := p.IssueRefresh("s1", "c1", 3)
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	claims, err := p.VerifyRefresh(token)
	if err != nil {
		t.Fatalf("VerifyRefresh: %v", err)
	}
	if claims.SessionID != "s1" || claims.ChainID != "c1" || claims.Sequence != 3 {
		t.Errorf("claims: got sid=%q chain=%q seq=%d", claims.SessionID, claims.ChainID, claims.Sequence)
	}
}

func TestTokenProvider_ExpiredToken(t *testing.T) {
	now := time.Now()
	p, err := NewTestTokenProviderWithClock(func() time.Time { return now })
	if err != nil {
		t.Fatalf("NewTestTokenProviderWithClock: %v", err)
	}

	token, _, err := p.IssueAccess("s1", "u1")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := p.VerifyAccess(token); err != nil {
		t.Fatalf("VerifyAccess before expiry: %v", err)
	}

	now = now.Add(16 * time.Minute)
	if _, err := p.VerifyAccess(token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("after expiry: want ErrTokenExpired, got %v", err)
	}
}

func TestTokenProvider_Malformed(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	for _, tok := range []string{"", "garbage", "a.b.c"} {
		if _, err := p.VerifyAccess(tok); !errors.Is(err, ErrTokenMalformed) {
			t.Errorf("VerifyAccess(%q): want ErrTokenMalformed, got %v", tok, err)
		}
	}
}

func TestTokenProvider_ForeignKeyRejected(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}

	foreign, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	foreignKeys, err := NewKeyset(SigningKey{ID: "test-key-1", Private: foreign, Public: &foreign.PublicKey}, nil)
	if err != nil {
		t.Fatalf("NewKeyset: %v", err)
	}
	fp, err := NewTokenProvider(foreignKeys, "test-issuer", "test-audience", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenProvider: %v", err)
	}
	token, _, err := fp.IssueAccess("s1", "u1")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	// Same kid, different key material: signature check must fail.
	if _, err := p.VerifyAccess(token); !errors.Is(err, ErrBadSignature) {
		t.Errorf("foreign signature: want ErrBadSignature, got %v", err)
	}
}

func TestTokenProvider_KeyRotationWindow(t *testing.T) {
	oldSigner, err := ParsePrivateKey(testPrivateKeyPEM)
	if err != nil {
		t.Fatalf("ParsePrivateKey: %v", err)
	}
	oldPub, err := ParsePublicKey(testPublicKeyPEM)
	if err != nil {
		t.Fatalf("ParsePublicKey: %v", err)
	}
	oldKeys, err := NewKeyset(SigningKey{ID: "k-old", Private: oldSigner, Public: oldPub}, nil)
	if err != nil {
		t.Fatalf("NewKeyset: %v", err)
	}
	oldProvider, err := NewTokenProvider(oldKeys, "test-issuer", "test-audience", time.Hour, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewTokenProvider: %v", err)
	}
	oldToken, _, err := oldProvider.IssueAccess("s1", "u1")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	// Rotate: fresh current key, old key demoted to verification-only.
	newKey, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	rotated, err := NewKeyset(
		SigningKey{ID: "k-new", Private: newKey, Public: &newKey.PublicKey},
		&SigningKey{ID: "k-old", Public: oldPub},
	)
	if err != nil {
		t.Fatalf("NewKeyset: %v", err)
	}
	p, err := NewTokenProvider(rotated, "test-issuer", "test-audience", time.Hour, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewTokenProvider: %v", err)
	}

	// Tokens signed with the previous key still verify.
	if _, err := p.VerifyAccess(oldToken); err != nil {
		t.Errorf("old-key token after rotation: %v", err)
	}

	// New issuance uses the current key only.
	newToken, _, err := p.IssueAccess("s2", "u1")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := p.VerifyAccess(newToken); err != nil {
		t.Errorf("new-key token: %v", err)
	}

	// A keyset that dropped the old key rejects its tokens.
	currentOnly, err := NewKeyset(SigningKey{ID: "k-new", Private: newKey, Public: &newKey.PublicKey}, nil)
	if err != nil {
		t.Fatalf("NewKeyset: %v", err)
	}
	p2, err := NewTokenProvider(currentOnly, "test-issuer", "test-audience", time.Hour, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewTokenProvider: %v", err)
	}
	if _, err := p2.VerifyAccess(oldToken); !errors.Is(err, ErrBadSignature) {
		t.Errorf("dropped key: want ErrBadSignature, got %v", err)
	}
}

func TestTokenProvider_WrongIssuerAudience(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	keys, err := NewTestKeyset()
	if err != nil {
		t.Fatalf("NewTestKeyset: %v", err)
	}
	other, err := NewTokenProvider(keys, "other-issuer", "other-audience", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenProvider: %v", err)
	}
	token, _, err := other.IssueAccess("s1", "u1")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := p.VerifyAccess(token); !errors.Is(err, ErrTokenMalformed) {
		t.Errorf("wrong issuer: want ErrTokenMalformed, got %v", err)
	}
}
