package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// testConfig returns settings with short, predictable windows.
func testConfig() Settings {
	return Settings{
		SigningKey:                 "test-signing-key-for-unit-tests",
		Issuer:                     "auth-tests",
		Audience:                   []string{"api"},
		TokenExpiryMinutes:         30,
		ExtendedTokenExpiryMinutes: 120,
		RefreshTokenExpiryDays:     7,
		MaxLoginAttempts:           3,
		BlockDurationMinutes:       15,
	}
}

// memStore is an in-memory CredentialStore. Passwords are kept in plain
// text, unit tests exercise the orchestration, not bcrypt.
type memStore struct {
	mu        sync.Mutex
	users     map[string]*User // keyed by email
	passwords map[uuid.UUID]string
	versions  map[uuid.UUID]int64

	// failPersists injects this many concurrent-update rejections before
	// Persist starts succeeding again.
	failPersists int
	persistCalls int

	findErr error
}

func newMemStore() *memStore {
	return &memStore{
		users:     map[string]*User{},
		passwords: map[uuid.UUID]string{},
		versions:  map[uuid.UUID]int64{},
	}
}

func (m *memStore) seed(user *User, password string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.Email] = user
	m.passwords[user.ID] = password
	m.versions[user.ID] = user.Version
}

func (m *memStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.findErr != nil {
		return nil, m.findErr
	}

	user, ok := m.users[email]
	if !ok {
		return nil, ErrIdentityNotFound
	}
	clone := *user
	return &clone, nil
}

func (m *memStore) FindByUsername(ctx context.Context, username string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.findErr != nil {
		return nil, m.findErr
	}

	for _, user := range m.users {
		if user.Username == username {
			clone := *user
			return &clone, nil
		}
	}
	return nil, ErrIdentityNotFound
}

func (m *memStore) VerifyPassword(user *User, plaintext string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.passwords[user.ID] == plaintext
}

func (m *memStore) CreateAccount(ctx context.Context, user *User, plaintext string) error {
	if plaintext == "" {
		return ErrNoEmptyString
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *user
	m.users[user.Email] = &clone
	m.passwords[user.ID] = plaintext
	m.versions[user.ID] = 0
	return nil
}

func (m *memStore) AssignRole(ctx context.Context, user *User, role UserRole) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	assignment := &RoleAssignment{ID: uuid.New(), UserID: user.ID, Role: role}
	user.Roles = append(user.Roles, assignment)
	if stored, ok := m.users[user.Email]; ok {
		stored.Roles = append(stored.Roles, assignment)
	}
	return nil
}

func (m *memStore) Persist(ctx context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.persistCalls++
	if m.failPersists > 0 {
		m.failPersists--
		return NewConcurrentUpdateError(user.ID.String())
	}

	if m.versions[user.ID] != user.Version {
		return NewConcurrentUpdateError(user.ID.String())
	}

	user.Version++
	m.versions[user.ID] = user.Version

	clone := *user
	if stored, ok := m.users[user.Email]; ok {
		clone.Roles = stored.Roles
		clone.Claims = stored.Claims
	}
	m.users[user.Email] = &clone
	return nil
}

func (m *memStore) stored(email string) *User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[email]
}

// recordingSink captures emitted activity events for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []ActivityEvent
}

func (r *recordingSink) Record(ctx context.Context, event ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) types() []ActivityEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ActivityEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

func seedUser(store *memStore, email, username, password string, roles ...UserRole) *User {
	user := &User{
		ID:       uuid.New(),
		Email:    email,
		Username: username,
	}
	for _, role := range roles {
		user.Roles = append(user.Roles, &RoleAssignment{
			ID:     uuid.New(),
			UserID: user.ID,
			Role:   role,
		})
	}
	store.seed(user, password)
	return user
}

// fixedClock returns a clock pinned to base that tests can advance.
type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFixedClock(t time.Time) *fixedClock {
	return &fixedClock{t: t}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
