package otel

import (
	"context"
	"sync"
	"testing"

	"github.com/MrEthical07/shelfauth"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot shelfauth.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() shelfauth.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := shelfauth.MetricsSnapshot{
		Counters:   make(map[shelfauth.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[shelfauth.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), buckets...)
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

type healthyFake struct {
	*fakeSource
}

func (healthyFake) Health(context.Context) shelfauth.HealthStatus {
	return shelfauth.HealthStatus{RedisAvailable: true}
}

func newMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] += dp.Value
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] = dp.Value
				}
			}
		}
	}
	return out
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader, provider := newMeter()

	src := &fakeSource{
		snapshot: shelfauth.MetricsSnapshot{
			Counters: map[shelfauth.MetricID]uint64{
				shelfauth.MetricLoginSuccess: 3,
			},
			Histograms: map[shelfauth.MetricID][]uint64{
				shelfauth.MetricAuthenticateLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
	}

	exp, err := NewExporterFromSource(provider.Meter("shelfauth-test"), src)
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	got := collect(t, reader)
	if got["shelfauth_login_success_total"] != 3 {
		t.Fatalf("expected login counter 3, got %d", got["shelfauth_login_success_total"])
	}
	if got["shelfauth_authenticate_latency_seconds_bucket_le_0_005"] != 3 {
		t.Fatalf("expected cumulative bucket 3, got %d", got["shelfauth_authenticate_latency_seconds_bucket_le_0_005"])
	}
	if got["shelfauth_authenticate_latency_seconds_count"] != 8 {
		t.Fatalf("expected count 8, got %d", got["shelfauth_authenticate_latency_seconds_count"])
	}
	if got["shelfauth_audit_dropped_total"] != 1 {
		t.Fatalf("expected dropped 1, got %d", got["shelfauth_audit_dropped_total"])
	}
	if _, ok := got["shelfauth_redis_up"]; ok {
		t.Fatal("redis gauge must be absent without a health source")
	}
}

func TestExporterReportsHealth(t *testing.T) {
	reader, provider := newMeter()
	src := healthyFake{&fakeSource{snapshot: shelfauth.MetricsSnapshot{
		Counters:   map[shelfauth.MetricID]uint64{},
		Histograms: map[shelfauth.MetricID][]uint64{},
	}}}

	exp, err := NewExporterFromSource(provider.Meter("shelfauth-test"), src)
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}
	defer exp.Close()

	if got := collect(t, reader); got["shelfauth_redis_up"] != 1 {
		t.Fatalf("expected redis up 1, got %v", got)
	}
}

func TestExporterRejectsNilInputs(t *testing.T) {
	_, provider := newMeter()
	meter := provider.Meter("shelfauth-test")

	if _, err := NewExporterFromSource(meter, nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewExporter(meter, nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource for nil engine, got %v", err)
	}
	if _, err := NewExporterFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newMeter()

	src := &fakeSource{
		snapshot: shelfauth.MetricsSnapshot{
			Counters: map[shelfauth.MetricID]uint64{
				shelfauth.MetricAuthenticated: 1,
			},
			Histograms: map[shelfauth.MetricID][]uint64{
				shelfauth.MetricAuthenticateLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := NewExporterFromSource(provider.Meter("shelfauth-test"), src)
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}
	defer exp.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[shelfauth.MetricAuthenticated] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
