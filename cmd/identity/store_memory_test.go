package identity

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStore_CreateUser_DuplicateEmailCaseInsensitive(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "A@x.com", "hash-1")
	if err != nil {
		t.Fatalf("create user 1: %v", err)
	}
	if u.Email != "a@x.com" {
		t.Fatalf("expected normalized email, got %q", u.Email)
	}
	if u.Role != RoleUser {
		t.Fatalf("expected default role User, got %q", u.Role)
	}
	if u.RefreshTokenDigest != nil {
		t.Fatalf("expected empty refresh slot on creation")
	}

	_, err = s.CreateUser(ctx, "a@x.com", "hash-2")
	if err == nil {
		t.Fatalf("expected conflict, got nil")
	}
	if !IsConflict(err) {
		t.Fatalf("expected conflict error, got: %v", err)
	}
}

func TestMemoryStore_Lookups(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	created, err := s.CreateUser(ctx, "Someone@Example.COM", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	byEmail, err := s.GetUserByEmail(ctx, "sOMEONE@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if byEmail.ID != created.ID {
		t.Fatalf("email lookup returned wrong user")
	}

	byID, err := s.GetUserByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if byID.Email != "someone@example.com" {
		t.Fatalf("id lookup returned wrong user")
	}

	if _, err := s.GetUserByEmail(ctx, "absent@example.com"); !IsNotFound(err) {
		t.Fatalf("expected not found, got: %v", err)
	}
	if _, err := s.GetUserByID(ctx, "01AAAAAAAAAAAAAAAAAAAAAAAA"); !IsNotFound(err) {
		t.Fatalf("expected not found, got: %v", err)
	}
}

func TestMemoryStore_RefreshSlot_LastWriterWins(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	u, err := s.CreateUser(ctx, "u@e.com", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	if err := s.SaveRefreshToken(ctx, u.ID, "digest-1", now.Add(time.Hour)); err != nil {
		t.Fatalf("save slot 1: %v", err)
	}
	if err := s.SaveRefreshToken(ctx, u.ID, "digest-2", now.Add(2*time.Hour)); err != nil {
		t.Fatalf("save slot 2: %v", err)
	}

	got, err := s.GetUserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.RefreshTokenDigest == nil || *got.RefreshTokenDigest != "digest-2" {
		t.Fatalf("expected last write to win, got %v", got.RefreshTokenDigest)
	}
	if !got.HasRefreshSlot(now) {
		t.Fatalf("expected live refresh slot")
	}

	if err := s.SaveRefreshToken(ctx, "missing", "digest", now); !IsNotFound(err) {
		t.Fatalf("expected not found for missing user, got: %v", err)
	}
}

func TestMemoryStore_ClearRefreshToken_Idempotent(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "u@e.com", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := s.SaveRefreshToken(ctx, u.ID, "digest", time.Now().UTC().Add(time.Hour)); err != nil {
		t.Fatalf("save slot: %v", err)
	}

	if err := s.ClearRefreshToken(ctx, u.ID); err != nil {
		t.Fatalf("clear slot: %v", err)
	}
	// Clearing an already-empty slot is not an error.
	if err := s.ClearRefreshToken(ctx, u.ID); err != nil {
		t.Fatalf("clear empty slot: %v", err)
	}

	got, err := s.GetUserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.RefreshTokenDigest != nil || got.RefreshExpiresAt != nil {
		t.Fatalf("expected empty slot after clear")
	}

	if err := s.ClearRefreshToken(ctx, "missing"); !IsNotFound(err) {
		t.Fatalf("expected not found for missing user, got: %v", err)
	}
}

func TestHasRefreshSlot_Expiry(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	digest := "digest"
	past := now.Add(-time.Minute)

	u := User{RefreshTokenDigest: &digest, RefreshExpiresAt: &past}
	if u.HasRefreshSlot(now) {
		t.Fatalf("expired slot must not count as live")
	}
}
