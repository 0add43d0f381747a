package shelfauth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/shelfauth/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1_700_000_000, 0).UTC()}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// memoryProvider is an in-memory UserProvider that counts lookups.
type memoryProvider struct {
	mu           sync.Mutex
	users        map[string]UserRecord
	byIdentifier map[string]string
	getByIDCalls int
	getErr       error
	updateErr    error
}

func newMemoryProvider() *memoryProvider {
	return &memoryProvider{
		users:        map[string]UserRecord{},
		byIdentifier: map[string]string{},
	}
}

func (p *memoryProvider) add(u UserRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users[u.UserID] = u
	if u.Phone != "" {
		p.byIdentifier[u.Phone] = u.UserID
	}
	if u.Email != "" {
		p.byIdentifier[u.Email] = u.UserID
	}
}

func (p *memoryProvider) GetUserByIdentifier(_ context.Context, identifier string) (UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.getErr != nil {
		return UserRecord{}, p.getErr
	}
	id, ok := p.byIdentifier[identifier]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return p.users[id], nil
}

func (p *memoryProvider) GetUserByID(_ context.Context, userID string) (UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.getByIDCalls++
	if p.getErr != nil {
		return UserRecord{}, p.getErr
	}
	u, ok := p.users[userID]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return u, nil
}

func (p *memoryProvider) CreateUser(_ context.Context, in CreateUserInput) (UserRecord, error) {
	p.mu.Lock()
	for _, key := range []string{in.Phone, in.Email} {
		if _, taken := p.byIdentifier[key]; key != "" && taken {
			p.mu.Unlock()
			return UserRecord{}, ErrProviderDuplicateIdentifier
		}
	}
	p.mu.Unlock()

	now := time.Now().UTC().Truncate(time.Millisecond)
	u := UserRecord{
		UserID:       in.UserID,
		Username:     in.Username,
		Phone:        in.Phone,
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		Status:       in.Status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	p.add(u)
	return u, nil
}

func (p *memoryProvider) UpdatePasswordHash(_ context.Context, userID, newHash string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.updateErr != nil {
		return p.updateErr
	}
	u, ok := p.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordHash = newHash
	p.users[userID] = u
	return nil
}

func (p *memoryProvider) idLookups() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.getByIDCalls
}

func fastArgon2Config() password.Argon2Config {
	return password.Argon2Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func testConfig() Config {
	cfg := defaultConfig()
	cfg.JWT.PrivateKey = []byte(testSecret)
	cfg.Password.Argon2 = fastArgon2Config()
	cfg.Password.BcryptCost = 4
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

type testEnv struct {
	engine   *Engine
	mr       *miniredis.Miniredis
	provider *memoryProvider
	clock    *testClock
}

func newTestEnv(t *testing.T, mutate func(*Config), sink AuditSink) *testEnv {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	mr, rdb := newTestRedis(t)
	provider := newMemoryProvider()
	clock := newTestClock()

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(provider).
		WithAuditSink(sink).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{engine: engine, mr: mr, provider: provider, clock: clock}
}

// seedUser registers a user through the engine and returns its identity.
func (env *testEnv) seedUser(t *testing.T, identifier, pass string) Identity {
	t.Helper()

	res, err := env.engine.Register(context.Background(), RegisterInput{
		PhoneOrEmail:    identifier,
		Password:        pass,
		ConfirmPassword: pass,
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return res.Identity
}

func (env *testEnv) login(t *testing.T, identifier, pass string) string {
	t.Helper()

	res, err := env.engine.Login(context.Background(), identifier, pass)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	return res.Token
}
