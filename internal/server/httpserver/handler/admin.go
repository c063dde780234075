package handler

import (
	"net/http"
	"slices"
	"strings"

	"github.com/yndnr/stockgate/internal/core/domain"
	"github.com/yndnr/stockgate/internal/core/service"
	"github.com/yndnr/stockgate/internal/telemetry/logger"
)

// RateLimitPolicyResponse describes the active rate limit policy.
type RateLimitPolicyResponse struct {
	Enabled       bool     `json:"enabled"`
	Limit         int64    `json:"limit"`
	WindowSeconds int64    `json:"window_seconds"`
	KeyStrategy   string   `json:"key_strategy"`
	FailMode      string   `json:"fail_mode"`
	Backend       string   `json:"backend"`
	ExcludePaths  []string `json:"exclude_paths"`
	WhitelistIPs  []string `json:"whitelist_ips"`
}

// CreateAPIKeyRequest is the body of POST /api/v1/admin/keys.
type CreateAPIKeyRequest struct {
	Name    string   `json:"name"`
	Subject string   `json:"subject,omitempty"`
	Roles   []string `json:"roles,omitempty"`
}

// CreateAPIKeyResponse carries the only copy of the plaintext credential.
type CreateAPIKeyResponse struct {
	KeyID  string   `json:"key_id"`
	APIKey string   `json:"api_key"`
	Name   string   `json:"name"`
	Roles  []string `json:"roles"`
}

// APIKeyResponse describes a key without its secret.
type APIKeyResponse struct {
	KeyID   string   `json:"key_id"`
	Name    string   `json:"name"`
	Subject string   `json:"subject,omitempty"`
	Roles   []string `json:"roles"`
	Enabled bool     `json:"enabled"`
}

// ListAPIKeysResponse is the body of GET /api/v1/admin/keys.
type ListAPIKeysResponse struct {
	Keys []APIKeyResponse `json:"keys"`
}

// UpdateAPIKeyStatusRequest is the body of POST /api/v1/admin/keys/{key_id}/status.
type UpdateAPIKeyStatusRequest struct {
	Enabled *bool `json:"enabled"`
}

var knownRoles = []string{domain.RoleAdmin, domain.RoleService, domain.RoleUser}

func (h *Handler) handleRateLimitPolicy(w http.ResponseWriter, r *http.Request) {
	failMode := "open"
	if h.policy.FailClosed {
		failMode = "closed"
	}
	WriteJSON(w, r, http.StatusOK, RateLimitPolicyResponse{
		Enabled:       h.policy.Enabled,
		Limit:         h.policy.Limit,
		WindowSeconds: seconds(h.policy.Window),
		KeyStrategy:   h.policy.KeyStrategy,
		FailMode:      failMode,
		Backend:       h.backend,
		ExcludePaths:  nonNil(h.policy.ExcludePaths),
		WhitelistIPs:  nonNil(h.policy.WhitelistIPs),
	})
}

func (h *Handler) handleListAPIKeys(w http.ResponseWriter, r *http.Request) {
	keys := h.keys.ListAPIKeys()
	resp := ListAPIKeysResponse{Keys: make([]APIKeyResponse, 0, len(keys))}
	for _, k := range keys {
		resp.Keys = append(resp.Keys, APIKeyResponse{
			KeyID:   k.KeyID,
			Name:    k.Name,
			Subject: k.Subject,
			Roles:   nonNil(k.Roles),
			Enabled: k.Enabled,
		})
	}
	WriteJSON(w, r, http.StatusOK, resp)
}

func (h *Handler) handleCreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req CreateAPIKeyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errs.Error(w, r, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		h.errs.Error(w, r, domain.ErrMissingArgument.WithDetails("name"))
		return
	}
	if len(req.Roles) == 0 {
		req.Roles = []string{domain.RoleService}
	}
	for _, role := range req.Roles {
		if !slices.Contains(knownRoles, role) {
			h.errs.Error(w, r, domain.ErrBadRequest.WithDetails(
				"role must be one of: "+strings.Join(knownRoles, ", ")))
			return
		}
	}

	raw, key, err := service.GenerateAPIKey(req.Name, req.Subject, req.Roles)
	if err != nil {
		h.errs.Error(w, r, err)
		return
	}
	if err := h.keys.PutAPIKey(*key); err != nil {
		h.errs.Error(w, r, err)
		return
	}

	logger.L(r.Context()).Info("api key created",
		"key_id", key.KeyID,
		"name", key.Name,
		"roles", key.Roles,
		"created_by", subjectOf(r),
	)
	noStore(w)
	WriteJSON(w, r, http.StatusCreated, CreateAPIKeyResponse{
		KeyID:  key.KeyID,
		APIKey: raw,
		Name:   key.Name,
		Roles:  key.Roles,
	})
}

func (h *Handler) handleAPIKeyStatus(w http.ResponseWriter, r *http.Request) {
	keyID := r.PathValue("key_id")

	var req UpdateAPIKeyStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errs.Error(w, r, err)
		return
	}
	if req.Enabled == nil {
		h.errs.Error(w, r, domain.ErrMissingArgument.WithDetails("enabled"))
		return
	}

	if err := h.keys.SetAPIKeyEnabled(keyID, *req.Enabled); err != nil {
		h.errs.Error(w, r, err)
		return
	}
	dropped := 0
	if !*req.Enabled {
		dropped = h.auth.InvalidateAPIKey(keyID)
	}

	logger.L(r.Context()).Info("api key status changed",
		"key_id", keyID,
		"enabled", *req.Enabled,
		"cache_entries_dropped", dropped,
		"changed_by", subjectOf(r),
	)
	WriteJSON(w, r, http.StatusOK, map[string]any{
		"key_id":  keyID,
		"enabled": *req.Enabled,
	})
}

func subjectOf(r *http.Request) string {
	if p := PrincipalFromContext(r.Context()); p != nil {
		return p.Subject
	}
	return ""
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
