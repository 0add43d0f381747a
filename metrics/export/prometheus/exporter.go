package prometheus

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/MrEthical07/shelfauth"
	"github.com/MrEthical07/shelfauth/metrics/export/internaldefs"
)

type metricsSource interface {
	MetricsSnapshot() shelfauth.MetricsSnapshot
	AuditDropped() uint64
}

type healthSource interface {
	Health(ctx context.Context) shelfauth.HealthStatus
}

// Exporter renders engine metrics for a Prometheus scrape.
type Exporter struct {
	source metricsSource
}

// NewExporter reads from engine.
func NewExporter(engine *shelfauth.Engine) *Exporter {
	return &Exporter{source: engine}
}

// NewExporterFromSource reads from any value exposing a metrics snapshot.
func NewExporterFromSource(source metricsSource) *Exporter {
	return &Exporter{source: source}
}

// Handler serves the exposition on every request.
func (p *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.RenderContext(r.Context())))
	})
}

func (p *Exporter) Render() string {
	return p.RenderContext(context.Background())
}

// RenderContext renders counters, histograms and, when available, Redis
// health. ctx bounds the health check.
func (p *Exporter) RenderContext(ctx context.Context) string {
	if p == nil || p.source == nil {
		return ""
	}

	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	health, hasHealth := p.source.(healthSource)
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 && !hasHealth {
		return ""
	}

	var b strings.Builder
	b.Grow(4096)

	if len(snapshot.Counters) > 0 {
		for _, def := range internaldefs.CounterDefs {
			writeCounter(&b, def.Name, def.Help, snapshot.Counters[def.ID])
		}
	}

	for _, def := range internaldefs.HistogramDefs {
		raw, ok := snapshot.Histograms[def.ID]
		if !ok {
			continue
		}
		writeHistogram(&b, def.Name, def.Help, internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw)))
	}

	writeCounter(&b, "shelfauth_audit_dropped_total", "Dropped audit events due to dispatcher backpressure.", dropped)

	if hasHealth {
		status := health.Health(ctx)
		up := "0"
		if status.RedisAvailable {
			up = "1"
		}
		writeGauge(&b, "shelfauth_redis_up", "Whether the last Redis ping succeeded.", up)
		writeGauge(&b, "shelfauth_redis_ping_seconds", "Round-trip time of the last Redis ping.",
			strconv.FormatFloat(status.RedisLatency.Seconds(), 'g', -1, 64))
	}

	return b.String()
}

func writeHeader(b *strings.Builder, name, help, kind string) {
	b.WriteString("# HELP ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(escapeHelp(help))
	b.WriteByte('\n')
	b.WriteString("# TYPE ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(kind)
	b.WriteByte('\n')
}

func writeCounter(b *strings.Builder, name, help string, value uint64) {
	writeHeader(b, name, help, "counter")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(value, 10))
	b.WriteByte('\n')
}

func writeGauge(b *strings.Builder, name, help, value string) {
	writeHeader(b, name, help, "gauge")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(value)
	b.WriteByte('\n')
}

func writeHistogram(b *strings.Builder, name, help string, cumulative [internaldefs.BucketCount]uint64) {
	writeHeader(b, name, help, "histogram")

	for i, le := range internaldefs.HistogramBounds {
		b.WriteString(name)
		b.WriteString("_bucket{le=\"")
		b.WriteString(le)
		b.WriteString("\"} ")
		b.WriteString(strconv.FormatUint(cumulative[i], 10))
		b.WriteByte('\n')
	}

	b.WriteString(name)
	b.WriteString("_count ")
	b.WriteString(strconv.FormatUint(cumulative[len(cumulative)-1], 10))
	b.WriteByte('\n')

	// The engine keeps bucket counts only.
	b.WriteString(name)
	b.WriteString("_sum 0\n")
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, "\\", "\\\\")
	help = strings.ReplaceAll(help, "\n", "\\n")
	return help
}
