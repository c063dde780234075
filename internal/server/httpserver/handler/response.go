package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/yndnr/stockgate/internal/core/domain"
	"github.com/yndnr/stockgate/internal/infra/clock"
	"github.com/yndnr/stockgate/internal/telemetry/logger"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

// ErrorBody is the JSON body of every error response.
type ErrorBody struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	RequestID string `json:"request_id"`
	Path      string `json:"path,omitempty"`
	Details   string `json:"details,omitempty"`

	RetryAfterSeconds *int64 `json:"retry_after_seconds,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.L(r.Context()).Warn("failed to encode response", "error", err)
	}
}

// Responder writes structured error responses stamped with its clock. The
// zero value uses the system clock.
type Responder struct {
	clock clock.Clock
}

// NewResponder returns a Responder reading time from c.
func NewResponder(c clock.Clock) Responder {
	return Responder{clock: c}
}

// Error writes err as a structured error response. Errors that are not
// domain errors are reported as internal errors, and server-side details
// never reach the client.
func (rs Responder) Error(w http.ResponseWriter, r *http.Request, err error) {
	rs.write(w, r, err, nil)
}

// RateLimited writes a 429 response carrying Retry-After.
func (rs Responder) RateLimited(w http.ResponseWriter, r *http.Request, err error, retryAfter int64) {
	w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
	rs.write(w, r, err, &retryAfter)
}

// NotFound writes the structured 404 body.
func (rs Responder) NotFound(w http.ResponseWriter, r *http.Request) {
	rs.Error(w, r, domain.ErrNotFound.WithDetails(r.Method+" "+r.URL.Path))
}

func (rs Responder) write(w http.ResponseWriter, r *http.Request, err error, retryAfter *int64) {
	var de *domain.DomainError
	if !errors.As(err, &de) {
		de = domain.ErrInternalServer.WithCause(err)
	}
	status := domain.HTTPStatus(de.Code)

	body := ErrorBody{
		ErrorCode: de.Code,
		Message:   de.Message,
		Timestamp: clock.OrReal(rs.clock).Now().UTC().Format(time.RFC3339),
		RequestID: logger.RequestIDFromContext(r.Context()),
		Path:      r.URL.Path,
	}
	if status < http.StatusInternalServerError {
		body.Details = de.Details
	} else {
		logger.L(r.Context()).Error("request failed",
			"error_code", de.Code,
			"path", r.URL.Path,
			"error", err,
		)
	}
	if status == http.StatusTooManyRequests {
		body.RetryAfterSeconds = retryAfter
	}

	w.Header().Set("X-Error-Code", de.Code)
	WriteJSON(w, r, status, body)
}

// decodeJSON decodes a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.ErrBadRequest.WithDetails("invalid JSON body")
	}
	return nil
}
