package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/archon-research/emissions-api/internal/domain/entity"
)

// Error codes carried in the error envelope.
const (
	CodeBadRequest         = "BAD_REQUEST"
	CodeNotFound           = "NOT_FOUND"
	CodeMethodNotSupported = "METHOD_NOT_SUPPORTED"
	CodePayloadTooLarge    = "PAYLOAD_TOO_LARGE"
	CodeTooManyRequests    = "TOO_MANY_REQUESTS"
	CodeInternal           = "INTERNAL_SERVER_ERROR"
)

type resultEnvelope struct {
	Result any `json:"result"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Operation string `json:"operation,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func respondJSON(w http.ResponseWriter, logger *slog.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

func respondResult(w http.ResponseWriter, logger *slog.Logger, result any) {
	respondJSON(w, logger, http.StatusOK, resultEnvelope{Result: result})
}

func respondError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, status int, code, message, op string) {
	respondJSON(w, logger, status, errorEnvelope{Error: errorBody{
		Code:      code,
		Message:   message,
		Operation: op,
		RequestID: RequestIDFromContext(r.Context()),
	}})
}

// mapError converts a service error into a status, a code and a client-safe
// message. Store details never reach the client.
func mapError(err error) (status int, code, message string) {
	switch {
	case entity.IsValidation(err):
		return http.StatusBadRequest, CodeBadRequest, err.Error()
	case errors.Is(err, entity.ErrNotFound):
		return http.StatusNotFound, CodeNotFound, err.Error()
	case entity.IsStorage(err):
		return http.StatusInternalServerError, CodeInternal, "storage failure"
	default:
		return http.StatusInternalServerError, CodeInternal, "internal error"
	}
}

// respondServiceError writes the envelope for err and logs server-side
// failures with the operation and request id.
func respondServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, op string, err error) {
	status, code, message := mapError(err)

	var se *entity.StorageError
	if errors.As(err, &se) && se.Op != "" {
		op = se.Op
	}
	if status >= http.StatusInternalServerError {
		logger.Error("operation failed",
			"operation", op,
			"requestId", RequestIDFromContext(r.Context()),
			"error", err)
	}
	respondError(w, r, logger, status, code, message, op)
}
