package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/MrEthical07/shelfauth"
	"github.com/MrEthical07/shelfauth/internal/slogx"
	"github.com/MrEthical07/shelfauth/middleware"
)

const maxBodyBytes = 1 << 16

type handlers struct {
	engine *shelfauth.Engine
}

type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type userView struct {
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	Bio       string    `json:"bio,omitempty"`
	Role      uint8     `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

type sessionView struct {
	Token string   `json:"token,omitempty"`
	User  userView `json:"user"`
}

type credentialsForm struct {
	PhoneOrEmail    string `json:"phoneOrEmail"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

func viewOf(id shelfauth.Identity) userView {
	return userView{
		UserID:    id.UserID,
		Username:  id.Username,
		Phone:     id.Phone,
		Email:     id.Email,
		AvatarURL: id.AvatarURL,
		Bio:       id.Bio,
		Role:      id.Role,
		CreatedAt: id.CreatedAt,
	}
}

func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	var form credentialsForm
	if !decode(w, r, &form) {
		return
	}

	res, err := h.engine.Register(r.Context(), shelfauth.RegisterInput{
		PhoneOrEmail:    form.PhoneOrEmail,
		Password:        form.Password,
		ConfirmPassword: form.ConfirmPassword,
	})
	if err != nil {
		status, msg := registerError(err)
		fail(w, r, status, msg, err)
		return
	}

	writeJSON(w, http.StatusCreated, envelope{
		Code:    http.StatusCreated,
		Message: "registered",
		Data:    sessionView{Token: res.Token, User: viewOf(res.Identity)},
	})
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var form credentialsForm
	if !decode(w, r, &form) {
		return
	}

	res, err := h.engine.Login(r.Context(), form.PhoneOrEmail, form.Password)
	if err != nil {
		status, msg := loginError(err)
		fail(w, r, status, msg, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		Code:    http.StatusOK,
		Message: "ok",
		Data:    sessionView{Token: res.Token, User: viewOf(res.Identity)},
	})
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r.Header.Get("Authorization"))
	if !ok || !h.engine.Logout(r.Context(), token) {
		writeJSON(w, http.StatusBadRequest, envelope{Code: http.StatusBadRequest, Message: "logout failed"})
		return
	}
	writeJSON(w, http.StatusOK, envelope{Code: http.StatusOK, Message: "ok", Data: true})
}

// me reads the profile through the user cache so it reflects the record
// the cache currently serves, not only the token's claims.
func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	id, err := shelfauth.RequireIdentity(r.Context())
	if err != nil {
		fail(w, r, http.StatusUnauthorized, "unauthorized", err)
		return
	}
	profile, err := h.engine.LookupUser(r.Context(), id.UserID)
	switch {
	case errors.Is(err, shelfauth.ErrUserNotFound):
		fail(w, r, http.StatusUnauthorized, "unauthorized", err)
		return
	case err != nil:
		fail(w, r, http.StatusServiceUnavailable, "service unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Code: http.StatusOK, Message: "ok", Data: viewOf(profile)})
}

// whoami degrades to an anonymous answer instead of rejecting.
func (h *handlers) whoami(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{"authenticated": false}
	if out, ok := middleware.OutcomeFromContext(r.Context()); ok {
		data["outcome"] = out.Outcome.String()
	}
	if id, ok := shelfauth.CurrentIdentity(r.Context()); ok {
		data["authenticated"] = true
		data["user"] = viewOf(id)
	}
	writeJSON(w, http.StatusOK, envelope{Code: http.StatusOK, Message: "ok", Data: data})
}

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	status := h.engine.Health(r.Context())
	code := http.StatusOK
	msg := "ok"
	if !status.RedisAvailable {
		code = http.StatusServiceUnavailable
		msg = "redis unavailable"
	}
	writeJSON(w, code, envelope{Code: code, Message: msg, Data: map[string]any{
		"redis":          status.RedisAvailable,
		"redisLatencyMs": float64(status.RedisLatency.Microseconds()) / 1000,
	}})
}

func registerError(err error) (int, string) {
	switch {
	case errors.Is(err, shelfauth.ErrAccountExists):
		return http.StatusConflict, "account already exists"
	case errors.Is(err, shelfauth.ErrPasswordMismatch):
		return http.StatusBadRequest, "passwords do not match"
	case errors.Is(err, shelfauth.ErrPasswordPolicy):
		return http.StatusBadRequest, "password does not meet policy"
	case errors.Is(err, shelfauth.ErrAccountCreationInvalid):
		return http.StatusBadRequest, "invalid phone number or email"
	case errors.Is(err, shelfauth.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "service unavailable"
	default:
		return http.StatusInternalServerError, "registration failed"
	}
}

func loginError(err error) (int, string) {
	switch {
	case errors.Is(err, shelfauth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid phone number, email or password"
	case errors.Is(err, shelfauth.ErrAccountDisabled):
		return http.StatusForbidden, "account disabled"
	case errors.Is(err, shelfauth.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "service unavailable"
	default:
		return http.StatusInternalServerError, "login failed"
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		fail(w, r, http.StatusBadRequest, "bad request", err)
		return false
	}
	return true
}

func fail(w http.ResponseWriter, r *http.Request, status int, msg string, err error) {
	if status >= http.StatusInternalServerError {
		slogx.FromContext(r.Context()).Error("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, envelope{Code: status, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
