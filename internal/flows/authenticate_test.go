package flows

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/shelfauth/jwt"
	"github.com/MrEthical07/shelfauth/session"
)

var (
	errNotFound    = errors.New("not found")
	errUnavailable = errors.New("unavailable")
)

type authHarness struct {
	revoked      bool
	revokedErr   error
	decodeErr    error
	loadErr      error
	needsRenewal bool
	renewErr     error

	revokeCalls int
	decodeCalls int
	loadCalls   int
	metrics     map[int]int
	events      []string
}

const (
	mAuthenticated = iota + 1
	mAnonymous
	mRevoked
	mInvalid
	mNotFound
	mUnavailable
	mRenewed
	mRenewFailed
	mHit
	mMiss
)

func (h *authHarness) deps() AuthenticateDeps {
	h.metrics = map[int]int{}
	return AuthenticateDeps{
		IsRevoked: func(context.Context, string) (bool, error) {
			h.revokeCalls++
			return h.revoked, h.revokedErr
		},
		Decode: func(token string) (*jwt.Claims, error) {
			h.decodeCalls++
			if h.decodeErr != nil {
				return nil, h.decodeErr
			}
			c := &jwt.Claims{Username: "reader-1"}
			c.Subject = "u1"
			return c, nil
		},
		LoadUser: func(_ context.Context, userID string) (*session.Record, bool, error) {
			h.loadCalls++
			if h.loadErr != nil {
				return nil, false, h.loadErr
			}
			return &session.Record{UserID: userID, Username: "reader-1"}, false, nil
		},
		NeedsRenewal: func(string) bool { return h.needsRenewal },
		Renew: func(string) (string, error) {
			if h.renewErr != nil {
				return "", h.renewErr
			}
			return "fresh-token", nil
		},
		IsCacheUnavailable: func(err error) bool { return errors.Is(err, errUnavailable) },
		UserNotFound:       errNotFound,
		MetricInc:          func(id int) { h.metrics[id]++ },
		EmitAudit: func(_ context.Context, event string, _ bool, _ string, _ error, meta func() map[string]string) {
			if meta != nil {
				_ = meta()
			}
			h.events = append(h.events, event)
		},
		Metrics: AuthenticateMetrics{
			Authenticated:         mAuthenticated,
			Anonymous:             mAnonymous,
			RevokedTokenPresented: mRevoked,
			InvalidToken:          mInvalid,
			UserNotFound:          mNotFound,
			StoreUnavailable:      mUnavailable,
			TokenRenewed:          mRenewed,
			RenewalFailed:         mRenewFailed,
			CacheHit:              mHit,
			CacheMiss:             mMiss,
		},
		Events: AuthenticateEvents{
			RevokedTokenPresented: "revoked_token_presented",
			TokenRenewed:          "token_renewed",
			StoreUnavailable:      "store_unavailable",
		},
	}
}

func TestAuthenticateNoTokenIsAnonymous(t *testing.T) {
	h := &authHarness{}
	res := RunAuthenticate(context.Background(), "", h.deps())
	if res.Failure != AuthenticateFailureNoToken {
		t.Fatalf("expected no-token failure, got %v", res.Failure)
	}
	if h.revokeCalls != 0 || h.decodeCalls != 0 {
		t.Fatal("anonymous request must not touch stores")
	}
	if h.metrics[mAnonymous] != 1 {
		t.Fatalf("expected anonymous metric, got %v", h.metrics)
	}
}

func TestAuthenticateRevokedWinsBeforeDecodeTrust(t *testing.T) {
	h := &authHarness{revoked: true}
	res := RunAuthenticate(context.Background(), "tok", h.deps())
	if res.Failure != AuthenticateFailureRevoked {
		t.Fatalf("expected revoked, got %v", res.Failure)
	}
	if h.loadCalls != 0 {
		t.Fatal("revoked token must not resolve a user")
	}
	if len(h.events) != 1 || h.events[0] != "revoked_token_presented" {
		t.Fatalf("unexpected audit events %v", h.events)
	}
}

func TestAuthenticateRevocationOutage(t *testing.T) {
	t.Run("fail closed", func(t *testing.T) {
		h := &authHarness{revokedErr: errUnavailable}
		res := RunAuthenticate(context.Background(), "tok", h.deps())
		if res.Failure != AuthenticateFailureStoreUnavailable {
			t.Fatalf("expected store unavailable, got %v", res.Failure)
		}
		if h.decodeCalls != 0 {
			t.Fatal("fail closed must stop before decode")
		}
	})

	t.Run("fail open", func(t *testing.T) {
		h := &authHarness{revokedErr: errUnavailable}
		deps := h.deps()
		deps.FailOpen = true
		res := RunAuthenticate(context.Background(), "tok", deps)
		if res.Failure != AuthenticateFailureNone || res.User == nil {
			t.Fatalf("expected authenticated, got %v (%v)", res.Failure, res.Err)
		}
		if h.metrics[mUnavailable] != 1 {
			t.Fatalf("outage must still be counted, got %v", h.metrics)
		}
	})
}

func TestAuthenticateInvalidToken(t *testing.T) {
	h := &authHarness{decodeErr: jwt.ErrExpired}
	res := RunAuthenticate(context.Background(), "tok", h.deps())
	if res.Failure != AuthenticateFailureInvalidToken || !errors.Is(res.Err, jwt.ErrExpired) {
		t.Fatalf("expected invalid token wrapping ErrExpired, got %v %v", res.Failure, res.Err)
	}
	if h.loadCalls != 0 {
		t.Fatal("invalid token must not resolve a user")
	}
}

func TestAuthenticateUserLookupFailures(t *testing.T) {
	h := &authHarness{loadErr: errNotFound}
	if res := RunAuthenticate(context.Background(), "tok", h.deps()); res.Failure != AuthenticateFailureUserNotFound {
		t.Fatalf("expected user not found, got %v", res.Failure)
	}

	h = &authHarness{loadErr: errUnavailable}
	if res := RunAuthenticate(context.Background(), "tok", h.deps()); res.Failure != AuthenticateFailureStoreUnavailable {
		t.Fatalf("expected store unavailable, got %v", res.Failure)
	}
	if len(h.events) != 1 || h.events[0] != "store_unavailable" {
		t.Fatalf("unexpected audit events %v", h.events)
	}
}

func TestAuthenticateRenewal(t *testing.T) {
	h := &authHarness{needsRenewal: true}
	res := RunAuthenticate(context.Background(), "tok", h.deps())
	if res.Failure != AuthenticateFailureNone || res.RenewedToken != "fresh-token" {
		t.Fatalf("expected renewed token, got %+v", res)
	}
	if h.metrics[mRenewed] != 1 || h.metrics[mMiss] != 1 {
		t.Fatalf("unexpected metrics %v", h.metrics)
	}

	h = &authHarness{needsRenewal: true, renewErr: errors.New("sign failed")}
	res = RunAuthenticate(context.Background(), "tok", h.deps())
	if res.Failure != AuthenticateFailureNone || res.RenewedToken != "" || res.RenewErr == nil {
		t.Fatalf("renewal failure must keep the request authenticated, got %+v", res)
	}
}

func TestAuthenticateNoRenewalOutsideWindow(t *testing.T) {
	h := &authHarness{}
	res := RunAuthenticate(context.Background(), "tok", h.deps())
	if res.RenewedToken != "" {
		t.Fatal("unexpected renewal")
	}
	if h.metrics[mAuthenticated] != 1 {
		t.Fatalf("expected authenticated metric, got %v", h.metrics)
	}
}
