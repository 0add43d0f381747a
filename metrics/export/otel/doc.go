// Package otel publishes shelfauth engine metrics through an OpenTelemetry
// meter.
//
// [NewExporter] registers one Int64ObservableCounter per engine counter and
// one Int64ObservableGauge per latency bucket, all fed by a single callback
// that reads the engine snapshot on each collection. A source that reports
// health also gets a shelfauth_redis_up gauge.
//
// # What this package must NOT do
//
//   - Own the MeterProvider; callers supply the Meter.
//   - Mutate engine state.
package otel
