package handler

import (
	"errors"
	"net/http"

	"github.com/yndnr/stockgate/internal/core/domain"
)

// VerifyTokenRequest is the body of POST /api/v1/tokens/verify.
type VerifyTokenRequest struct {
	Token string `json:"token"`

	// TokenType defaults to "access".
	TokenType string `json:"token_type,omitempty"`
}

// VerifyTokenResponse reports whether a token is valid. A rejected token is
// a successful introspection, not an error.
type VerifyTokenResponse struct {
	Valid     bool           `json:"valid"`
	Claims    *domain.Claims `json:"claims,omitempty"`
	ErrorCode string         `json:"error_code,omitempty"`
	Message   string         `json:"message,omitempty"`
}

func (h *Handler) handleVerifyToken(w http.ResponseWriter, r *http.Request) {
	var req VerifyTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errs.Error(w, r, err)
		return
	}
	if req.Token == "" {
		h.errs.Error(w, r, domain.ErrMissingArgument.WithDetails("token"))
		return
	}

	typ := domain.TokenTypeAccess
	if req.TokenType != "" {
		var ok bool
		if typ, ok = domain.ParseTokenType(req.TokenType); !ok {
			h.errs.Error(w, r, domain.ErrBadRequest.WithDetails("token_type must be access or refresh"))
			return
		}
	}

	claims, err := h.tokens.Verify(req.Token, typ)
	if err != nil {
		de := domain.ErrTokenInvalid
		errors.As(err, &de)
		WriteJSON(w, r, http.StatusOK, VerifyTokenResponse{ErrorCode: de.Code, Message: de.Message})
		return
	}
	WriteJSON(w, r, http.StatusOK, VerifyTokenResponse{Valid: true, Claims: claims})
}
