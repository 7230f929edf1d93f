package password

import (
	"errors"
	"strings"
	"testing"
)

// testConfig keeps hashing cheap enough for unit tests.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	return cfg
}

func TestHashVerify_RoundTrip(t *testing.T) {
	t.Parallel()

	cfg := testConfig()

	enc, err := cfg.Hash("secret1")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(enc, "$argon2id$v=19$") {
		t.Fatalf("unexpected encoding: %q", enc)
	}

	ok, err := cfg.Verify(enc, "secret1")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatalf("expected match")
	}

	ok, err = cfg.Verify(enc, "secret2")
	if err != nil {
		t.Fatalf("verify mismatch: %v", err)
	}
	if ok {
		t.Fatalf("expected mismatch")
	}
}

func TestHash_PolicyBounds(t *testing.T) {
	t.Parallel()

	cfg := testConfig()

	if _, err := cfg.Hash("short"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected too-short, got: %v", err)
	}
	if _, err := cfg.Hash(strings.Repeat("x", cfg.Policy.MaxLength+1)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected too-long, got: %v", err)
	}
	// Exactly the minimum passes.
	if _, err := cfg.Hash("sixsix"); err != nil {
		t.Fatalf("six-char password should hash: %v", err)
	}
}

func TestVerify_MalformedHash(t *testing.T) {
	t.Parallel()

	cfg := testConfig()

	for _, enc := range []string{
		"",
		"not-a-hash",
		"$argon2id$v=19$m=8192,t=1,p=1$!!!$!!!",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$AAAA",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$AAAA",
	} {
		ok, err := cfg.Verify(enc, "whatever")
		if ok {
			t.Fatalf("malformed hash %q verified", enc)
		}
		if !errors.Is(err, ErrInvalidHash) {
			t.Fatalf("expected ErrInvalidHash for %q, got: %v", enc, err)
		}
	}
}

func TestVerify_RefusesPathologicalParams(t *testing.T) {
	t.Parallel()

	cfg := testConfig()

	// A hash claiming far more memory than configured must be refused, not run.
	enc := "$argon2id$v=19$m=1048576,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$" +
		strings.Repeat("A", 43)
	ok, err := cfg.Verify(enc, "whatever")
	if ok || !errors.Is(err, ErrInvalidHash) {
		t.Fatalf("expected refusal, got ok=%v err=%v", ok, err)
	}
}
