// Package prometheus renders shelfauth engine metrics in Prometheus text
// exposition format.
//
// Counters are named shelfauth_*_total and the authenticate latency
// histogram is shelfauth_authenticate_latency_seconds. When the source can
// report health, shelfauth_redis_up and shelfauth_redis_ping_seconds gauges
// are added.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry; callers mount the Handler.
//   - Mutate engine state.
package prometheus
