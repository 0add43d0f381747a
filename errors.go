package shelfauth

import (
	"errors"

	"github.com/MrEthical07/shelfauth/session"
)

var (
	// ErrUnauthorized is returned by RequireIdentity when no identity is bound.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials is returned by Login for an unknown identifier or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is shared with the session cache so user providers can
	// return either value.
	ErrUserNotFound = session.ErrUserNotFound
	// ErrStoreUnavailable marks Redis or user store outages.
	ErrStoreUnavailable = errors.New("auth store unavailable")
	// ErrTokenRevoked is the error carried by an OutcomeRevoked result.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrAccountExists is returned by Register for a taken phone number or email.
	ErrAccountExists = errors.New("account already exists")
	// ErrProviderDuplicateIdentifier is what a UserProvider returns from
	// CreateUser when the identifier is already taken.
	ErrProviderDuplicateIdentifier = errors.New("provider duplicate identifier")
	// ErrAccountCreationInvalid covers malformed registration input.
	ErrAccountCreationInvalid = errors.New("invalid account creation request")
	ErrPasswordPolicy         = errors.New("password policy violation")
	ErrPasswordMismatch       = errors.New("password confirmation does not match")
	ErrAccountDisabled        = errors.New("account disabled")
	// ErrIdentityAlreadyBound is returned by a second Bind on the same scope.
	ErrIdentityAlreadyBound = errors.New("identity already bound for this request")
	ErrEngineNotReady       = errors.New("engine not initialized")
)
