package shelfauth

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/shelfauth/jwt"
	"github.com/MrEthical07/shelfauth/password"
)

const (
	auditEventLoginSuccess          = "login_success"
	auditEventLoginFailure          = "login_failure"
	auditEventRegisterSuccess       = "register_success"
	auditEventRegisterFailure       = "register_failure"
	auditEventLogout                = "logout"
	auditEventLogoutRejected        = "logout_rejected"
	auditEventRevokedTokenPresented = "revoked_token_presented"
	auditEventTokenRenewed          = "token_renewed"
	auditEventStoreUnavailable      = "store_unavailable"
)

// AuditErrorCode is the stable error vocabulary written into audit events.
type AuditErrorCode string

const (
	auditErrUnauthorized       AuditErrorCode = "unauthorized"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrTokenExpired       AuditErrorCode = "token_expired"
	auditErrUserNotFound       AuditErrorCode = "user_not_found"
	auditErrAccountDisabled    AuditErrorCode = "account_disabled"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrPasswordMismatch   AuditErrorCode = "password_mismatch"
	auditErrInvalidInput       AuditErrorCode = "invalid_input"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		IP:        clientIPFromContext(ctx),
		RequestID: requestIDFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return auditErrUnauthorized
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, jwt.ErrExpired):
		return auditErrTokenExpired
	case errors.Is(err, jwt.ErrMalformed),
		errors.Is(err, jwt.ErrInvalidSignature),
		errors.Is(err, ErrTokenRevoked):
		return auditErrInvalidToken
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrAccountDisabled):
		return auditErrAccountDisabled
	case errors.Is(err, ErrPasswordPolicy),
		errors.Is(err, password.ErrEmptyPassword):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrPasswordMismatch):
		return auditErrPasswordMismatch
	case errors.Is(err, ErrAccountCreationInvalid):
		return auditErrInvalidInput
	case errors.Is(err, ErrAccountExists),
		errors.Is(err, ErrProviderDuplicateIdentifier):
		return auditErrDuplicate
	case isStoreUnavailable(err):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
