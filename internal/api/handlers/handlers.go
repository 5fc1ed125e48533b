package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/sheikh-saqib/finance-ledger/internal/api/middleware"
	"github.com/sheikh-saqib/finance-ledger/internal/ledger"
	"github.com/sheikh-saqib/finance-ledger/internal/logger"
)

const maxBodyBytes = 1 << 20

// Handler exposes the ledger over HTTP.
type Handler struct {
	ledger *ledger.Ledger
	log    zerolog.Logger
}

func NewHandler(l *ledger.Ledger, log zerolog.Logger) *Handler {
	return &Handler{ledger: l, log: log}
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// parseDate accepts a calendar date (2006-01-02) or an RFC 3339 timestamp.
// An empty string yields the zero time, which the ledger rejects.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t, nil
}

// failed writes the response for a ledger error and reports whether the request
// is finished. A cache invalidation failure is not a request failure: the write
// was committed, so it is only logged.
func (h *Handler) failed(w http.ResponseWriter, r *http.Request, err error) bool {
	if err == nil {
		return false
	}
	log := logger.FromContext(r.Context(), h.log)
	if errors.Is(err, ledger.ErrCacheInvalidation) {
		log.Warn().Err(err).Msg("Write committed with stale cache")
		return false
	}

	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Ledger operation failed")
		middleware.WriteError(w, status, "Internal server error")
		return true
	}
	middleware.WriteError(w, status, err.Error())
	return true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrInvalidData),
		errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrBudgetLimitExceeded):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
