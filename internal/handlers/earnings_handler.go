package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/boosthive/backend/internal/middleware"
	"github.com/boosthive/backend/internal/services"
)

// EarningsReader is the subset of the earnings service needed by the handler.
type EarningsReader interface {
	Status(ctx context.Context, userID uuid.UUID) (*services.EarningsStatus, error)
}

// EarningsHandler serves GET /v1/earnings/status.
type EarningsHandler struct {
	Earnings EarningsReader
	Logger   *slog.Logger
}

func (h *EarningsHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromCtx(r.Context())
	if u == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	status, err := h.Earnings.Status(r.Context(), u.ID)
	if err != nil {
		h.Logger.Error("earnings status", "user_id", u.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
