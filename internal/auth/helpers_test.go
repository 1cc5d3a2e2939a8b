package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/redmonkez12/credentials-api/internal/account"
	"github.com/redmonkez12/credentials-api/internal/logging"
	"github.com/redmonkez12/credentials-api/internal/password"
)

// memAccounts is an in-memory AccountRepository with the same contract as
// the bun repository
type memAccounts struct {
	mu         sync.Mutex
	accounts   map[uuid.UUID]*account.Account
	attendants map[uuid.UUID]*account.Attendant
	err        error
}

func newMemAccounts() *memAccounts {
	return &memAccounts{
		accounts:   make(map[uuid.UUID]*account.Account),
		attendants: make(map[uuid.UUID]*account.Attendant),
	}
}

func (m *memAccounts) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *memAccounts) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.accounts)
}

func (m *memAccounts) Create(_ context.Context, acc *account.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, a := range m.accounts {
		if a.Email == acc.Email {
			return account.ErrDuplicateEmail
		}
	}
	acc.ID = uuid.New()
	acc.CreatedAt = time.Now().UTC()
	acc.UpdatedAt = acc.CreatedAt
	stored := *acc
	m.accounts[acc.ID] = &stored
	return nil
}

func (m *memAccounts) GetByEmail(_ context.Context, email string) (*account.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, a := range m.accounts {
		if a.Email == email {
			out := *a
			return &out, nil
		}
	}
	return nil, account.ErrNotFound
}

func (m *memAccounts) GetProfileByID(_ context.Context, id uuid.UUID) (*account.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	a, ok := m.accounts[id]
	if !ok {
		return nil, account.ErrNotFound
	}
	out := *a
	out.PasswordHash = ""
	return &out, nil
}

func (m *memAccounts) CreateAttendant(_ context.Context, att *account.Attendant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.accounts[att.AccountID]; !ok {
		return account.ErrNotFound
	}
	for _, a := range m.attendants {
		if a.Email == att.Email {
			return account.ErrDuplicateEmail
		}
	}
	att.ID = uuid.New()
	att.CreatedAt = time.Now().UTC()
	att.UpdatedAt = att.CreatedAt
	stored := *att
	m.attendants[att.ID] = &stored
	return nil
}

func (m *memAccounts) GetAttendantByEmail(_ context.Context, email string) (*account.Attendant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, a := range m.attendants {
		if a.Email == email {
			out := *a
			return &out, nil
		}
	}
	return nil, account.ErrNotFound
}

func (m *memAccounts) FindAttendantProfile(_ context.Context, accountID uuid.UUID, email string) (*account.Attendant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, a := range m.attendants {
		if a.AccountID == accountID && a.Email == email {
			out := *a
			out.PasswordHash = ""
			return &out, nil
		}
	}
	return nil, account.ErrNotFound
}

// mockNotifier is a testify mock for Notifier
type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SendWelcomeEmail(ctx context.Context, toEmail, name string) error {
	args := m.Called(ctx, toEmail, name)
	return args.Error(0)
}

// countingRecorder tallies outcomes by flow
type countingRecorder struct {
	mu     sync.Mutex
	events map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{events: make(map[string]int)}
}

func (r *countingRecorder) add(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[key]++
}

func (r *countingRecorder) get(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[key]
}

func (r *countingRecorder) Registration(outcome string) {
	r.add("registration:" + outcome)
}

func (r *countingRecorder) Login(role Role, outcome string) {
	r.add("login:" + string(role) + ":" + outcome)
}

func (r *countingRecorder) Resolution(role Role, outcome string) {
	r.add("resolution:" + string(role) + ":" + outcome)
}

func (r *countingRecorder) Notification(outcome string) {
	r.add("notification:" + outcome)
}

// memCache is an in-memory ProfileCache
type memCache struct {
	mu      sync.Mutex
	entries map[string]*Principal
	sets    int
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]*Principal)}
}

func (c *memCache) Get(_ context.Context, claims Claims) (*Principal, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.entries[getProfileKey(claims)]
	return p, ok, nil
}

func (c *memCache) Set(_ context.Context, claims Claims, p *Principal) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.entries[getProfileKey(claims)] = p
	return nil
}

func testHasher() *password.Hasher {
	cfg := password.DefaultConfig()
	cfg.Argon2.MemoryKiB = 1024
	cfg.Argon2.Iterations = 1
	cfg.Argon2.Parallelism = 1
	cfg.BcryptCost = bcrypt.MinCost
	return password.NewHasher(cfg)
}

type testEnv struct {
	svc      *Service
	accounts *memAccounts
	notifier *mockNotifier
	tokens   *PasetoService
	clock    *fakeClock
	recorder *countingRecorder
	cache    *memCache
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		accounts: newMemAccounts(),
		notifier: &mockNotifier{},
		clock:    &fakeClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
		recorder: newCountingRecorder(),
		cache:    newMemCache(),
	}
	env.tokens = newTestTokens(t, env.clock)
	env.svc = NewService(
		env.accounts,
		testHasher(),
		env.tokens,
		env.notifier,
		env.cache,
		env.recorder,
		logging.Discard(),
		Timeouts{Store: time.Second, Notify: time.Second},
	)
	return env
}

// drain waits for background notifications so mock expectations can be checked
func (e *testEnv) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.svc.WaitForNotifications(ctx))
}

// registerAmy creates the account used across the flow tests
func (e *testEnv) registerAmy(t *testing.T) string {
	t.Helper()
	e.notifier.On("SendWelcomeEmail", mock.Anything, "amy@x.com", "Amy").Return(nil).Once()

	token, err := e.svc.Register(context.Background(), RegisterInput{Name: "Amy", Email: "amy@x.com", Password: "secret1"})
	require.NoError(t, err)
	e.drain(t)
	return token.Token
}
