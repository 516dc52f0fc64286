/*
Package resp writes the JSON bodies of the hub's plain HTTP endpoints.

Health and room status replies use the JSONResponse envelope (business code, message, data and
the request id that also appears in the request log). Room creation has a fixed wire shape and
calls RespondJSON directly with its own payload.
*/
package resp

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"relayhub/internal/pkg/errs"
)

// retryAfterSeconds is advertised on rate limited replies.
const retryAfterSeconds = 1

// JSONResponse is the envelope returned by the status and health endpoints.
type JSONResponse struct {
	// Code is 0 on success, otherwise one of the errs codes.
	Code int `json:"code"`

	Message string `json:"message"`

	Data any `json:"data,omitempty"`

	// RequestID echoes the id assigned by middleware.RequestID, if any.
	RequestID string `json:"request_id,omitempty"`
}

// RespondJSON marshals payload and writes it with httpStatus. Failures are logged through the
// request-scoped logger installed by logx.RequestLogger.
func RespondJSON(w http.ResponseWriter, r *http.Request, httpStatus int, payload any) {
	logger := zerolog.Ctx(r.Context())

	body, err := json.Marshal(payload)
	if err != nil {
		logger.Error().Err(err).Int("http_status", httpStatus).Msg("Error encoding JSON response")
		http.Error(w, "Error encoding JSON response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(httpStatus)

	if _, err := w.Write(body); err != nil {
		logger.Warn().Err(err).Int("http_status", httpStatus).Msg("Failed to write JSON response")
	}
}

// RespondSuccess wraps data in a success envelope with HTTP 200.
func RespondSuccess(w http.ResponseWriter, r *http.Request, data any) {
	RespondJSON(w, r, http.StatusOK, JSONResponse{
		Code:      0,
		Message:   "success",
		Data:      data,
		RequestID: middleware.GetReqID(r.Context()),
	})
}

// RespondError writes customErr with its mapped HTTP status. A nil error is reported as ErrUnknown.
func RespondError(w http.ResponseWriter, r *http.Request, customErr *errs.CustomError) {
	if customErr == nil {
		customErr = errs.NewError(errs.ErrUnknown)
	}

	if customErr.Status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}

	RespondJSON(w, r, customErr.Status, JSONResponse{
		Code:      customErr.Code,
		Message:   customErr.Message,
		RequestID: middleware.GetReqID(r.Context()),
	})
}
