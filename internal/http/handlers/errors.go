package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/hongminglow/points-ledger/internal/http/respond"
	"github.com/hongminglow/points-ledger/internal/ledger"
)

// writeError maps a ledger failure onto an HTTP status.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var rl *ledger.RateLimitError
	switch {
	case errors.As(err, &rl):
		respond.RateLimited(w, rl.RetryAfter, err.Error())
	case errors.Is(err, ledger.ErrValidation):
		respond.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrNotFound):
		respond.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrInsufficientBalance):
		respond.Error(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ledger.ErrConflict):
		respond.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrUnavailable):
		logger.Warn("ledger unavailable", "error", err)
		respond.Error(w, http.StatusServiceUnavailable, "service temporarily unavailable")
	default:
		logger.Error("unhandled ledger error", "error", err)
		respond.Error(w, http.StatusInternalServerError, "internal error")
	}
}

// decode reads a JSON body into dst. An empty body leaves dst untouched.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return false
	}
	return true
}
