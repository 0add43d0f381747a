package internaldefs

import (
	"github.com/MrEthical07/shelfauth"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   shelfauth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram for exporters.
type HistogramDef struct {
	ID   shelfauth.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: shelfauth.MetricAuthenticated, Name: "shelfauth_authenticated_total", Help: "Requests resolved to an identity."},
	{ID: shelfauth.MetricAnonymous, Name: "shelfauth_anonymous_total", Help: "Requests without a bearer token."},
	{ID: shelfauth.MetricRevokedTokenPresented, Name: "shelfauth_revoked_token_presented_total", Help: "Requests presenting a revoked token."},
	{ID: shelfauth.MetricInvalidToken, Name: "shelfauth_invalid_token_total", Help: "Requests presenting a malformed, forged or expired token."},
	{ID: shelfauth.MetricUserNotFound, Name: "shelfauth_user_not_found_total", Help: "Valid tokens whose user no longer exists."},
	{ID: shelfauth.MetricStoreUnavailable, Name: "shelfauth_store_unavailable_total", Help: "Requests that hit a Redis or user store outage."},
	{ID: shelfauth.MetricTokenRenewed, Name: "shelfauth_token_renewed_total", Help: "Tokens renewed inside the renewal window."},
	{ID: shelfauth.MetricRenewalFailed, Name: "shelfauth_renewal_failed_total", Help: "Renewals that failed to sign."},
	{ID: shelfauth.MetricCacheHit, Name: "shelfauth_cache_hit_total", Help: "User lookups served from the Redis cache."},
	{ID: shelfauth.MetricCacheMiss, Name: "shelfauth_cache_miss_total", Help: "User lookups that went to the user store."},
	{ID: shelfauth.MetricLoginSuccess, Name: "shelfauth_login_success_total", Help: "Successful logins."},
	{ID: shelfauth.MetricLoginFailure, Name: "shelfauth_login_failure_total", Help: "Failed logins."},
	{ID: shelfauth.MetricPasswordRehashed, Name: "shelfauth_password_rehashed_total", Help: "Legacy password hashes upgraded at login."},
	{ID: shelfauth.MetricRegisterSuccess, Name: "shelfauth_register_success_total", Help: "Accounts created."},
	{ID: shelfauth.MetricRegisterDuplicate, Name: "shelfauth_register_duplicate_total", Help: "Registrations rejected for a taken identifier."},
	{ID: shelfauth.MetricRegisterInvalid, Name: "shelfauth_register_invalid_total", Help: "Registrations rejected by validation."},
	{ID: shelfauth.MetricLogout, Name: "shelfauth_logout_total", Help: "Tokens revoked by logout."},
	{ID: shelfauth.MetricLogoutRejected, Name: "shelfauth_logout_rejected_total", Help: "Logouts that revoked nothing."},
}

var HistogramDefs = []HistogramDef{
	{ID: shelfauth.MetricAuthenticateLatency, Name: "shelfauth_authenticate_latency_seconds", Help: "Authenticate latency histogram."},
}

// HistogramBounds are the le labels matching shelfauth.HistogramBucketBounds
// plus the overflow bucket.
var HistogramBounds = []string{
	"0.001",
	"0.002",
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds made safe for instrument names.
var HistogramBoundSuffix = []string{
	"0_001",
	"0_002",
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"inf",
}

const BucketCount = 8

// NormalizeBuckets copies raw into a fixed array, zero-filling short input.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
