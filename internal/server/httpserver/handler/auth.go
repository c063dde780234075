package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/yndnr/stockgate/internal/core/domain"
	"github.com/yndnr/stockgate/internal/core/service"
	"github.com/yndnr/stockgate/internal/telemetry/logger"
)

// LoginRequest is the body of POST /api/v1/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RefreshRequest is the body of POST /api/v1/auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse follows the OAuth2 token response shape.
type TokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token,omitempty"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int64  `json:"expires_in"`
	RefreshExpiresIn int64  `json:"refresh_expires_in,omitempty"`
}

const tokenTypeBearer = "bearer"

// OAuth2 grant types accepted by POST /api/v1/auth/token.
const (
	grantPassword     = "password"
	grantRefreshToken = "refresh_token"
)

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errs.Error(w, r, err)
		return
	}
	h.login(w, r, req.Username, req.Password)
}

// handleToken serves the OAuth2 form-encoded token endpoint.
func (h *Handler) handleToken(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		h.errs.Error(w, r, domain.ErrBadRequest.WithDetails("invalid form body"))
		return
	}

	switch grant := r.PostForm.Get("grant_type"); grant {
	case grantPassword, "":
		h.login(w, r, r.PostForm.Get("username"), r.PostForm.Get("password"))
	case grantRefreshToken:
		h.refresh(w, r, r.PostForm.Get("refresh_token"))
	default:
		h.errs.Error(w, r, domain.ErrBadRequest.WithDetails("unsupported grant_type "+grant))
	}
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errs.Error(w, r, err)
		return
	}
	h.refresh(w, r, req.RefreshToken)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	WriteJSON(w, r, http.StatusOK, p)
}

// handleLogout acknowledges a logout. Tokens are stateless and stay valid
// until they expire; clients discard them.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	logger.L(r.Context()).Info("logout", "user_id", p.Subject, "auth_method", p.Method)
	WriteJSON(w, r, http.StatusOK, map[string]string{"message": "logged out"})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request, username, password string) {
	pair, err := h.auth.Login(r.Context(), username, password,
		service.WithClientAddr(ClientAddrFromContext(r.Context())))
	if err != nil {
		h.errs.Error(w, r, err)
		return
	}
	logger.L(r.Context()).Info("login succeeded", "username", strings.TrimSpace(username))

	noStore(w)
	WriteJSON(w, r, http.StatusOK, TokenResponse{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		TokenType:        tokenTypeBearer,
		ExpiresIn:        seconds(h.tokens.AccessTTL()),
		RefreshExpiresIn: seconds(h.tokens.RefreshTTL()),
	})
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request, refreshToken string) {
	if refreshToken == "" {
		h.errs.Error(w, r, domain.ErrMissingArgument.WithDetails("refresh_token"))
		return
	}
	access, err := h.tokens.Refresh(refreshToken)
	if err != nil {
		h.errs.Error(w, r, err)
		return
	}

	noStore(w)
	WriteJSON(w, r, http.StatusOK, TokenResponse{
		AccessToken: access.Token,
		TokenType:   tokenTypeBearer,
		ExpiresIn:   seconds(h.tokens.AccessTTL()),
	})
}

func noStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}

func seconds(d time.Duration) int64 {
	return int64(d / time.Second)
}
