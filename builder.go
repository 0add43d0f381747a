package shelfauth

import (
	"errors"
	"log/slog"
	"time"

	internalaudit "github.com/MrEthical07/shelfauth/internal/audit"
	"github.com/MrEthical07/shelfauth/internal/flows"
	"github.com/MrEthical07/shelfauth/jwt"
	"github.com/MrEthical07/shelfauth/password"
	"github.com/MrEthical07/shelfauth/revocation"
	"github.com/MrEthical07/shelfauth/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an Engine. A Builder can be built once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	userProvider UserProvider
	auditSink    AuditSink
	hasher       password.Hasher
	logger       *slog.Logger
	now          func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client shared by the revocation store and the session
// cache. A cluster or ring client works as well as a single node.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithPasswordHasher replaces the hasher derived from Config.Password.
func (b *Builder) WithPasswordHasher(h password.Hasher) *Builder {
	b.hasher = h
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the token clock. Tests use it to step through the
// validity window.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.userProvider == nil {
		return nil, errors.New("user provider required")
	}

	jm, err := jwt.NewManager(jwt.Config{
		ValidityWindow:   cfg.JWT.ValidityWindow,
		RenewalThreshold: cfg.JWT.RenewalThreshold,
		SigningMethod:    jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:       cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:        cloneBytes(cfg.JWT.PublicKey),
		Issuer:           cfg.JWT.Issuer,
		Now:              b.now,
	})
	if err != nil {
		return nil, err
	}

	hasher := b.hasher
	if hasher == nil {
		hasher, err = newHasher(cfg.Password)
		if err != nil {
			return nil, err
		}
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	engine := &Engine{
		config:       cfg,
		redis:        b.redis,
		jwtManager:   jm,
		userProvider: b.userProvider,
		passwordHash: hasher,
		metrics:      NewMetrics(cfg.Metrics),
		logger:       logger.With("component", "shelfauth"),
	}
	engine.revocations = revocation.NewStore(b.redis, jm, cfg.Revocation.KeyPrefix)
	engine.cache = session.NewCache(b.redis, engine.loadUser, session.Options{
		KeyPrefix: cfg.Cache.KeyPrefix,
		TTL:       cfg.Cache.TTL,
		FailOpen:  cfg.Store.Policy == FailOpen,
		Logger:    engine.logger,
	})
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)
	engine.flows = flows.New(engine.buildFlowDeps())

	b.built = true
	return engine, nil
}

func newHasher(cfg PasswordConfig) (password.Hasher, error) {
	primary, err := password.NewArgon2(cfg.Argon2)
	if err != nil {
		return nil, err
	}
	if !cfg.AcceptBcrypt {
		return primary, nil
	}
	legacy, err := password.NewBcrypt(cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	return password.NewMigrating(primary, legacy), nil
}
