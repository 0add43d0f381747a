package flows

import "context"

// AuditFunc emits one audit event. meta is evaluated only when audit is on.
type AuditFunc func(ctx context.Context, eventType string, success bool, userID string, err error, meta func() map[string]string)

// Deps groups flow dependency sets. The engine builds this once and
// delegates request methods to the matching flow.
type Deps struct {
	Authenticate AuthenticateDeps
	Logout       LogoutDeps
	Login        LoginDeps
	Register     RegisterDeps
}

func noopMetric(int) {}

func noopAudit(context.Context, string, bool, string, error, func() map[string]string) {}

func noopLog(string, ...any) {}
