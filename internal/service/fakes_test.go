package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"smart-contact-manager/internal/model"
)

// memoryUsers enforces the same unique email constraint as the users table.
type memoryUsers struct {
	mu   sync.Mutex
	byID map[string]model.User
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{byID: map[string]model.User{}}
}

func (m *memoryUsers) FindByID(_ context.Context, id string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.byID[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return u, nil
}

func (m *memoryUsers) FindByEmail(_ context.Context, email string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	email = model.NormalizeEmail(email)
	for _, u := range m.byID {
		if model.NormalizeEmail(u.Email) == email {
			return u, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (m *memoryUsers) Create(_ context.Context, u model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.byID {
		if model.NormalizeEmail(existing.Email) == model.NormalizeEmail(u.Email) {
			return model.ErrUserAlreadyExists
		}
	}
	m.byID[u.ID] = u
	return nil
}

func (m *memoryUsers) Update(_ context.Context, u model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[u.ID]; !ok {
		return model.ErrUserNotFound
	}
	m.byID[u.ID] = u
	return nil
}

func (m *memoryUsers) List(_ context.Context) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.User, 0, len(m.byID))
	for _, u := range m.byID {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (m *memoryUsers) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

type memorySessions struct {
	mu       sync.Mutex
	sessions map[string]memorySession
	now      func() time.Time
}

type memorySession struct {
	userID    string
	expiresAt time.Time
}

func newMemorySessions() *memorySessions {
	return &memorySessions{sessions: map[string]memorySession{}, now: time.Now}
}

func (m *memorySessions) Store(_ context.Context, token string, userID string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[token] = memorySession{userID: userID, expiresAt: expiresAt}
	return nil
}

func (m *memorySessions) Lookup(_ context.Context, token string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[token]
	if !ok || !s.expiresAt.After(m.now()) {
		return "", model.ErrTokenNotFound
	}
	return s.userID, nil
}

func (m *memorySessions) Revoke(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}

func (m *memorySessions) CleanExpired(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for token, s := range m.sessions {
		if !s.expiresAt.After(m.now()) {
			delete(m.sessions, token)
			removed++
		}
	}
	return removed, nil
}

type memoryAudit struct {
	mu      sync.Mutex
	entries []model.AuditEntry
}

func (m *memoryAudit) Log(_ context.Context, entry model.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memoryAudit) Query(_ context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.AuditEntry, 0, len(m.entries))
	for _, e := range m.entries {
		if query.Action != "" && e.Action != query.Action {
			continue
		}
		if query.Status != "" && e.Status != query.Status {
			continue
		}
		out = append(out, e)
	}
	return out, model.Meta{Page: query.Page, Limit: query.Limit, Total: len(out), TotalPages: 1}, nil
}

func (m *memoryAudit) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Action+":"+e.Status)
	}
	return out
}

type testEnv struct {
	users      *memoryUsers
	sessions   *memorySessions
	auditLog   *memoryAudit
	identities *IdentityService
	tokens     *TokenCodec
	auth       *AuthService
}

func newTestEnv(t testing.TB) *testEnv {
	t.Helper()

	users := newMemoryUsers()
	identities, err := NewIdentityService(users, bcrypt.MinCost)
	require.NoError(t, err)
	tokens, err := NewTokenCodec(TokenConfig{Secret: []byte(testSecret), TTL: 24 * time.Hour, Issuer: "scm-test"})
	require.NoError(t, err)

	sessions := newMemorySessions()
	auditLog := &memoryAudit{}
	sessionService := NewSessionService(sessions, time.Hour)
	auditService := NewAuditService(auditLog)

	return &testEnv{
		users:      users,
		sessions:   sessions,
		auditLog:   auditLog,
		identities: identities,
		tokens:     tokens,
		auth:       NewAuthService(identities, tokens, sessionService, auditService),
	}
}

func (e *testEnv) seed(t testing.TB) {
	t.Helper()

	err := e.identities.SeedDefaults(context.Background(), SeedConfig{
		AdminEmail:    "admin@scm.local",
		AdminPassword: "admin",
		DemoEmail:     "user@gmail.com",
		DemoPassword:  "user",
	})
	require.NoError(t, err)
}
