// Command shelfauth-loadtest drives concurrent authenticate and logout
// traffic through an engine and reports latency percentiles, leaked
// identities and the engine counters collected through OpenTelemetry.
package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	"io"
	"log/slog"
	mrand "math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/shelfauth"
	otelexport "github.com/MrEthical07/shelfauth/metrics/export/otel"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type seededUser struct {
	id    string
	token string
}

func main() {
	var (
		users       = flag.Int("users", 10000, "number of users to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase")
		logoutShare = flag.Int("logout-percent", 10, "percentage of users logged out before the revoked phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 || *logoutShare < 0 || *logoutShare > 100 {
		fmt.Fprintln(os.Stderr, "users, concurrency and ops must be > 0, logout-percent in [0,100]")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		fmt.Fprintf(os.Stderr, "secret: %v\n", err)
		os.Exit(1)
	}
	cfg := shelfauth.DefaultConfig()
	cfg.JWT.PrivateKey = secret
	cfg.Metrics.EnableLatencyHistograms = true

	provider := newMemoryProvider()
	engine, err := shelfauth.New().
		WithConfig(cfg).
		WithRedis(client).
		WithUserProvider(provider).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	reader := sdkmetric.NewManualReader()
	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	exporter, err := otelexport.NewExporter(meterProvider.Meter("shelfauth-loadtest"), engine)
	if err != nil {
		fmt.Fprintf(os.Stderr, "otel exporter: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = exporter.Close() }()

	fmt.Printf("seeding %d users...\n", *users)
	startSeed := time.Now()
	seeded := make([]seededUser, *users)
	for i := range seeded {
		id := uuid.NewString()
		provider.put(shelfauth.UserRecord{
			UserID:    id,
			Username:  "reader-" + id[:8],
			Phone:     fmt.Sprintf("1%010d", i),
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		})
		token, err := engine.IssueToken(id, "reader-"+id[:8])
		if err != nil {
			fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
			os.Exit(1)
		}
		seeded[i] = seededUser{id: id, token: token}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	authStats := runAuthenticatePhase(ctx, engine, seeded, *ops, *concurrency, nil)

	loggedOut := make(map[int]bool, len(seeded)*(*logoutShare)/100)
	logoutStats := runLogoutPhase(ctx, engine, seeded, *logoutShare, *concurrency, loggedOut)
	revokedStats := runAuthenticatePhase(ctx, engine, seeded, *ops, *concurrency, loggedOut)

	fmt.Println("---- results ----")
	printStats("authenticate", authStats)
	printStats("logout", logoutStats)
	printStats("authenticate-after-logout", revokedStats)

	fmt.Println("---- engine counters ----")
	printCounters(ctx, reader)

	if authStats.leaks > 0 || revokedStats.leaks > 0 {
		fmt.Fprintln(os.Stderr, "identity leakage detected")
		os.Exit(1)
	}
}

// runAuthenticatePhase picks random users and checks that each request sees
// exactly its own identity, or none when the user is in revoked.
func runAuthenticatePhase(ctx context.Context, engine *shelfauth.Engine, users []seededUser, ops, concurrency int, revoked map[int]bool) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		leaks     int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := mrand.New(mrand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				idx := r.Intn(len(users))
				expectRevoked := revoked[idx]

				t0 := time.Now()
				_ = engine.RunWithIdentity(ctx, users[idx].token, func(ctx context.Context, out shelfauth.AuthOutcome) error {
					id, bound := shelfauth.CurrentIdentity(ctx)
					switch {
					case expectRevoked && bound:
						atomic.AddInt64(&leaks, 1)
					case expectRevoked && out.Outcome != shelfauth.OutcomeRevoked:
						atomic.AddInt64(&failures, 1)
					case !expectRevoked && !out.Authenticated():
						atomic.AddInt64(&failures, 1)
					case !expectRevoked && id.UserID != users[idx].id:
						atomic.AddInt64(&leaks, 1)
					}
					return nil
				})
				d := time.Since(t0)

				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()

	stats := computeStats(time.Since(start), latencies, failures)
	stats.leaks = leaks
	return stats
}

func runLogoutPhase(ctx context.Context, engine *shelfauth.Engine, users []seededUser, percent, concurrency int, out map[int]bool) phaseStats {
	n := len(users) * percent / 100
	for i := 0; i < n; i++ {
		out[i] = true
	}

	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, n)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= n {
					return
				}
				t0 := time.Now()
				ok := engine.Logout(ctx, users[i].token)
				d := time.Since(t0)
				if !ok {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	leaks    int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d leaks=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.leaks,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

func printCounters(ctx context.Context, reader *sdkmetric.ManualReader) {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		fmt.Fprintf(os.Stderr, "collect metrics: %v\n", err)
		return
	}

	lines := make([]string, 0, 32)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			var v int64
			for _, dp := range sum.DataPoints {
				v += dp.Value
			}
			if v > 0 {
				lines = append(lines, fmt.Sprintf("%s %d", m.Name, v))
			}
		}
	}
	sort.Strings(lines)
	for _, line := range lines {
		fmt.Println(line)
	}
}

type memoryProvider struct {
	mu   sync.RWMutex
	byID map[string]shelfauth.UserRecord
}

func newMemoryProvider() *memoryProvider {
	return &memoryProvider{byID: make(map[string]shelfauth.UserRecord)}
}

func (p *memoryProvider) put(u shelfauth.UserRecord) {
	p.mu.Lock()
	p.byID[u.UserID] = u
	p.mu.Unlock()
}

func (p *memoryProvider) GetUserByIdentifier(context.Context, string) (shelfauth.UserRecord, error) {
	return shelfauth.UserRecord{}, shelfauth.ErrUserNotFound
}

func (p *memoryProvider) GetUserByID(_ context.Context, userID string) (shelfauth.UserRecord, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	u, ok := p.byID[userID]
	if !ok {
		return shelfauth.UserRecord{}, shelfauth.ErrUserNotFound
	}
	return u, nil
}

func (p *memoryProvider) CreateUser(context.Context, shelfauth.CreateUserInput) (shelfauth.UserRecord, error) {
	return shelfauth.UserRecord{}, shelfauth.ErrAccountCreationInvalid
}

func (p *memoryProvider) UpdatePasswordHash(context.Context, string, string) error {
	return nil
}
