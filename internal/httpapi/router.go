package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/MrEthical07/shelfauth"
	"github.com/MrEthical07/shelfauth/internal/slogx"
	"github.com/MrEthical07/shelfauth/middleware"
)

// Deps are the collaborators the router needs. Metrics may be nil.
type Deps struct {
	Engine  *shelfauth.Engine
	Logger  *slog.Logger
	Metrics http.Handler
}

// NewRouter builds the full route table.
func NewRouter(deps Deps) http.Handler {
	h := &handlers{engine: deps.Engine}
	auth := middleware.Authenticate(deps.Engine)

	mux := http.NewServeMux()
	mux.Handle("POST /user/register", auth(http.HandlerFunc(h.register)))
	mux.Handle("POST /user/login", auth(http.HandlerFunc(h.login)))
	mux.Handle("POST /user/logout", auth(http.HandlerFunc(h.logout)))
	mux.Handle("GET /user/me", auth(middleware.RequireIdentity(http.HandlerFunc(h.me))))
	mux.Handle("GET /user/whoami", auth(http.HandlerFunc(h.whoami)))
	mux.HandleFunc("GET /healthz", h.healthz)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics)
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return slogx.HTTPMiddleware(logger)(mux)
}
