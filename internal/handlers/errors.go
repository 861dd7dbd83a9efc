package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/devasign/task-escrow/internal/escrow"
	"github.com/devasign/task-escrow/internal/logging"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  uint32 `json:"code,omitempty"`
	Kind  string `json:"kind,omitempty"`
}

// statusFor maps an escrow error to an HTTP status.
func statusFor(e escrow.Error) int {
	switch e {
	case escrow.ErrTaskNotFound:
		return http.StatusNotFound
	case escrow.ErrUnauthorized:
		return http.StatusUnauthorized
	case escrow.ErrInsufficientBalance:
		return http.StatusPaymentRequired
	case escrow.ErrTokenTransferFailed:
		return http.StatusBadGateway
	}
	switch e.Kind() {
	case escrow.KindState, escrow.KindBusiness:
		return http.StatusConflict
	case escrow.KindAuthorization:
		return http.StatusForbidden
	case escrow.KindToken:
		return http.StatusUnprocessableEntity
	case escrow.KindValidation:
		return http.StatusBadRequest
	case escrow.KindOperational:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	if e, ok := escrow.AsError(err); ok {
		writeJSON(w, statusFor(e), errorResponse{Error: e.Error(), Code: e.Code(), Kind: e.Kind().String()})
		return
	}
	logging.FromContext(r.Context(), logger).Error("request failed", "path", r.URL.Path, "error", err)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
