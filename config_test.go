package shelfauth

import (
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{name: "defaults with secret", mutate: func(*Config) {}, wantValid: true},
		{name: "no secret", mutate: func(c *Config) { c.JWT.PrivateKey = nil }},
		{name: "short secret", mutate: func(c *Config) { c.JWT.PrivateKey = []byte("short") }},
		{name: "zero window", mutate: func(c *Config) { c.JWT.ValidityWindow = 0 }},
		{name: "threshold equals window", mutate: func(c *Config) { c.JWT.RenewalThreshold = c.JWT.ValidityWindow }},
		{name: "zero threshold", mutate: func(c *Config) { c.JWT.RenewalThreshold = 0 }},
		{name: "unknown method", mutate: func(c *Config) { c.JWT.SigningMethod = "rs256" }},
		{name: "ed25519 without public key", mutate: func(c *Config) { c.JWT.SigningMethod = "ed25519" }},
		{name: "shared prefixes", mutate: func(c *Config) { c.Cache.KeyPrefix = c.Revocation.KeyPrefix }},
		{name: "empty cache prefix", mutate: func(c *Config) { c.Cache.KeyPrefix = "" }},
		{name: "zero cache ttl", mutate: func(c *Config) { c.Cache.TTL = 0 }},
		{name: "max below min", mutate: func(c *Config) { c.Password.MaxLength = 4 }},
		{name: "bcrypt length cap", mutate: func(c *Config) { c.Password.MaxLength = 100 }},
		{name: "no bcrypt allows longer", mutate: func(c *Config) {
			c.Password.AcceptBcrypt = false
			c.Password.MaxLength = 100
		}, wantValid: true},
		{name: "blank username prefix", mutate: func(c *Config) { c.Account.UsernamePrefix = " " }},
		{name: "bad policy", mutate: func(c *Config) { c.Store.Policy = StorePolicy(9) }},
		{name: "audit without buffer", mutate: func(c *Config) {
			c.Audit.Enabled = true
			c.Audit.BufferSize = 0
		}},
		{name: "latency without metrics", mutate: func(c *Config) {
			c.Metrics.Enabled = false
			c.Metrics.EnableLatencyHistograms = true
		}},
		{name: "short custom window", mutate: func(c *Config) {
			c.JWT.ValidityWindow = time.Hour
			c.JWT.RenewalThreshold = 10 * time.Minute
		}, wantValid: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestDefaultConfigMatchesDocumentedValues(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.JWT.ValidityWindow != 7*24*time.Hour || cfg.JWT.RenewalThreshold != 3*24*time.Hour {
		t.Fatalf("unexpected token windows %v/%v", cfg.JWT.ValidityWindow, cfg.JWT.RenewalThreshold)
	}
	if cfg.Cache.TTL != 30*time.Minute || cfg.Cache.KeyPrefix != "user:info:" {
		t.Fatalf("unexpected cache defaults %+v", cfg.Cache)
	}
	if cfg.Revocation.KeyPrefix != "token:blacklist:" {
		t.Fatalf("unexpected revocation prefix %q", cfg.Revocation.KeyPrefix)
	}
	if cfg.Store.Policy != FailClosed {
		t.Fatal("default policy must be fail closed")
	}
}

func TestCloneConfigCopiesKeys(t *testing.T) {
	cfg := testConfig()
	clone := cloneConfig(cfg)
	cfg.JWT.PrivateKey[0] = 'X'
	if clone.JWT.PrivateKey[0] == 'X' {
		t.Fatal("clone must not share key bytes")
	}
}

func TestParseStorePolicy(t *testing.T) {
	cases := map[string]StorePolicy{
		"":            FailClosed,
		"fail_closed": FailClosed,
		"FAIL_OPEN":   FailOpen,
		"open":        FailOpen,
	}
	for in, want := range cases {
		got, err := ParseStorePolicy(in)
		if err != nil || got != want {
			t.Fatalf("%q: got %v %v", in, got, err)
		}
	}
	if _, err := ParseStorePolicy("sometimes"); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}
