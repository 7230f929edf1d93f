package identity

import (
	"context"
	"sync"
	"time"

	"keel/cmd/identity/ids"
)

// MemoryStore is an in-process Store backed by mutex-guarded maps.
//
// It serves two purposes: the persistence layer when no database is
// configured (dev mode), and the test double for everything above the store
// boundary. A single mutex covers both maps so the email-uniqueness check
// plus insert is atomic, as is every slot overwrite.
type MemoryStore struct {
	mu        sync.Mutex
	users     map[string]User   // id -> user
	emailToID map[string]string // normalized email -> id
}

// NewMemoryStore creates an empty in-memory credential store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[string]User),
		emailToID: make(map[string]string),
	}
}

// CreateUser inserts a new user, enforcing case-insensitive email uniqueness.
func (s *MemoryStore) CreateUser(_ context.Context, email, passwordHash string) (User, error) {
	norm := NormalizeEmail(email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.emailToID[norm]; exists {
		return User{}, ConflictError{Op: "identity.CreateUser", Field: "email"}
	}

	now := time.Now().UTC()
	id, err := ids.NewULID(now)
	if err != nil {
		return User{}, OpError{Op: "identity.CreateUser", Kind: ErrInternal, Msg: "id generation failed"}
	}

	u := User{
		ID:           id,
		Email:        norm,
		PasswordHash: passwordHash,
		Role:         RoleUser,
		CreatedAt:    now,
	}

	s.emailToID[norm] = id
	s.users[id] = u
	return u, nil
}

// GetUserByEmail looks a user up by case-insensitive email.
func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.emailToID[NormalizeEmail(email)]
	if !ok {
		return User{}, NotFoundError{Op: "identity.GetUserByEmail", Resource: "user"}
	}
	return s.users[id], nil
}

// GetUserByID looks a user up by id.
func (s *MemoryStore) GetUserByID(_ context.Context, id string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return User{}, NotFoundError{Op: "identity.GetUserByID", Resource: "user"}
	}
	return u, nil
}

// SaveRefreshToken overwrites the refresh slot unconditionally.
func (s *MemoryStore) SaveRefreshToken(_ context.Context, id, tokenDigest string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return NotFoundError{Op: "identity.SaveRefreshToken", Resource: "user"}
	}

	u.RefreshTokenDigest = &tokenDigest
	u.RefreshExpiresAt = &expiresAt
	s.users[id] = u
	return nil
}

// ClearRefreshToken empties the refresh slot. Idempotent for the slot itself.
func (s *MemoryStore) ClearRefreshToken(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return NotFoundError{Op: "identity.ClearRefreshToken", Resource: "user"}
	}

	u.RefreshTokenDigest = nil
	u.RefreshExpiresAt = nil
	s.users[id] = u
	return nil
}
