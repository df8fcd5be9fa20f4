package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/boosthive/backend/internal/middleware"
	"github.com/boosthive/backend/internal/models"
	"github.com/boosthive/backend/internal/repository"
	"github.com/boosthive/backend/internal/services"
)

// WithdrawalReviewer is the admin decision surface of the withdrawal
// service.
type WithdrawalReviewer interface {
	Approve(ctx context.Context, withdrawalID, adminID uuid.UUID) (*models.WithdrawRequest, error)
	Reject(ctx context.Context, withdrawalID, adminID uuid.UUID, reason string) (*models.WithdrawRequest, error)
}

// TrustAdmin is the admin surface of the trust service.
type TrustAdmin interface {
	AdminIncreaseTrustScore(ctx context.Context, userID uuid.UUID, delta float64, adminID uuid.UUID, reason string) (*models.User, error)
	AdminDecreaseTrustScore(ctx context.Context, userID uuid.UUID, delta float64, adminID uuid.UUID, reason string) (*models.User, error)
	UnlockBannedAccount(ctx context.Context, userID uuid.UUID, paymentAmount int64) (*models.User, error)
}

// AdminHandler serves /v1/admin endpoints. All routes run behind the
// AdminOnly middleware.
type AdminHandler struct {
	Withdrawals WithdrawalReviewer
	Trust       TrustAdmin
	Logger      *slog.Logger
}

// ApproveWithdrawal handles POST /v1/admin/withdrawals/{id}/approve.
func (h *AdminHandler) ApproveWithdrawal(w http.ResponseWriter, r *http.Request) {
	admin := middleware.UserFromCtx(r.Context())
	if admin == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid withdrawal id"}`, http.StatusBadRequest)
		return
	}

	wr, err := h.Withdrawals.Approve(r.Context(), id, admin.ID)
	if err != nil {
		h.writeWithdrawalDecisionError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, wr)
}

type rejectWithdrawalRequest struct {
	Reason string `json:"reason"`
}

// RejectWithdrawal handles POST /v1/admin/withdrawals/{id}/reject.
func (h *AdminHandler) RejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	admin := middleware.UserFromCtx(r.Context())
	if admin == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid withdrawal id"}`, http.StatusBadRequest)
		return
	}

	var req rejectWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Reason == "" {
		http.Error(w, `{"error":"reason is required"}`, http.StatusBadRequest)
		return
	}

	wr, err := h.Withdrawals.Reject(r.Context(), id, admin.ID, req.Reason)
	if err != nil {
		h.writeWithdrawalDecisionError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, wr)
}

type adjustTrustScoreRequest struct {
	Delta  float64 `json:"delta"`
	Reason string  `json:"reason"`
}

// AdjustTrustScore handles POST /v1/admin/users/{id}/trust-score. The sign
// of delta picks the direction; negative deltas can trip the ban check.
func (h *AdminHandler) AdjustTrustScore(w http.ResponseWriter, r *http.Request) {
	admin := middleware.UserFromCtx(r.Context())
	if admin == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	userID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid user id"}`, http.StatusBadRequest)
		return
	}

	var req adjustTrustScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Delta == 0 {
		http.Error(w, `{"error":"delta must be non-zero"}`, http.StatusBadRequest)
		return
	}

	var u *models.User
	if req.Delta > 0 {
		u, err = h.Trust.AdminIncreaseTrustScore(r.Context(), userID, req.Delta, admin.ID, req.Reason)
	} else {
		u, err = h.Trust.AdminDecreaseTrustScore(r.Context(), userID, -req.Delta, admin.ID, req.Reason)
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, `{"error":"user not found"}`, http.StatusNotFound)
			return
		}
		h.Logger.Error("adjust trust score", "user_id", userID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type unlockAccountRequest struct {
	PaymentAmount int64 `json:"payment_amount"`
}

// UnlockAccount handles POST /v1/admin/users/{id}/unlock. The payment is
// collected out of band; this endpoint records it and lifts the ban.
func (h *AdminHandler) UnlockAccount(w http.ResponseWriter, r *http.Request) {
	admin := middleware.UserFromCtx(r.Context())
	if admin == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	userID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid user id"}`, http.StatusBadRequest)
		return
	}

	var req unlockAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}

	u, err := h.Trust.UnlockBannedAccount(r.Context(), userID, req.PaymentAmount)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			http.Error(w, `{"error":"user not found"}`, http.StatusNotFound)
		case errors.Is(err, services.ErrNotBanned):
			http.Error(w, `{"error":"account is not banned"}`, http.StatusConflict)
		case errors.Is(err, services.ErrInsufficientPayment):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		default:
			h.Logger.Error("unlock account", "user_id", userID, "error", err)
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *AdminHandler) writeWithdrawalDecisionError(w http.ResponseWriter, id uuid.UUID, err error) {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		http.Error(w, `{"error":"withdrawal not found"}`, http.StatusNotFound)
	case errors.Is(err, repository.ErrStatusConflict):
		http.Error(w, `{"error":"withdrawal is not pending"}`, http.StatusConflict)
	default:
		h.Logger.Error("withdrawal decision", "withdrawal_id", id, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
	}
}
