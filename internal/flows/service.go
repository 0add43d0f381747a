package flows

import "context"

// Service is the flow runner built once by the engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired.
func (s Service) Initialized() bool {
	return s.deps.Authenticate.Decode != nil
}

func (s Service) Authenticate(ctx context.Context, token string) AuthenticateResult {
	return RunAuthenticate(ctx, token, s.deps.Authenticate)
}

func (s Service) Logout(ctx context.Context, token string) LogoutResult {
	return RunLogout(ctx, token, s.deps.Logout)
}

func (s Service) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	return RunLogin(ctx, identifier, password, s.deps.Login)
}

func (s Service) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	return RunRegister(ctx, req, s.deps.Register)
}
