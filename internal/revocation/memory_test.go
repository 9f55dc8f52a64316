package revocation

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStore_RevokeAndLookup(t *testing.T) {
	now := time.Now()
	s := NewMemoryStore()
	s.nowF = func() time.Time { return now }
	ctx := context.Background()

	revoked, err := s.IsRevoked(ctx, "s1")
	if err != nil {
		t.Fatalf("IsRevoked: %v", err)
	}
	if revoked {
		t.Error("unknown id reported revoked")
	}

	if err := s.Revoke(ctx, "s1", now.Add(time.Hour)); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	revoked, err = s.IsRevoked(ctx, "s1")
	if err != nil {
		t.Fatalf("IsRevoked: %v", err)
	}
	if !revoked {
		t.Error("revoked id not reported revoked")
	}
}

func TestMemoryStore_EntryExpiresNaturally(t *testing.T) {
	now := time.Now()
	s := NewMemoryStore()
	s.nowF = func() time.Time { return now }
	ctx := context.Background()

	if err := s.Revoke(ctx, "s1", now.Add(time.Minute)); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	// Still revoked one second before the deadline.
	now = now.Add(59 * time.Second)
	if revoked, _ := s.IsRevoked(ctx, "s1"); !revoked {
		t.Error("entry expired early")
	}

	now = now.Add(2 * time.Second)
	if revoked, _ := s.IsRevoked(ctx, "s1"); revoked {
		t.Error("entry outlived its deadline")
	}
}

func TestMemoryStore_DoubleRevokeKeepsLaterDeadline(t *testing.T) {
	now := time.Now()
	s := NewMemoryStore()
	s.nowF = func() time.Time { return now }
	ctx := context.Background()

	later := now.Add(2 * time.Hour)
	if err := s.Revoke(ctx, "s1", later); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if err := s.Revoke(ctx, "s1", now.Add(time.Hour)); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	until, ok := s.Until("s1")
	if !ok {
		t.Fatal("entry missing")
	}
	if !until.Equal(later) {
		t.Errorf("deadline = %v, want %v (earlier revoke must not shorten)", until, later)
	}
}

func TestMemoryStore_Compact(t *testing.T) {
	now := time.Now()
	s := NewMemoryStore()
	s.nowF = func() time.Time { return now }
	ctx := context.Background()

	_ = s.Revoke(ctx, "dead", now.Add(time.Second))
	_ = s.Revoke(ctx, "live", now.Add(time.Hour))

	now = now.Add(2 * time.Second)
	s.Compact()

	if _, ok := s.Until("dead"); ok {
		t.Error("expired entry survived Compact")
	}
	if _, ok := s.Until("live"); !ok {
		t.Error("live entry dropped by Compact")
	}
}
