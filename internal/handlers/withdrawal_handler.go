package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/boosthive/backend/internal/middleware"
	"github.com/boosthive/backend/internal/models"
	"github.com/boosthive/backend/internal/repository"
	"github.com/boosthive/backend/internal/services"
)

// WithdrawalRequester is the subset of the withdrawal service used by the
// freelancer-facing endpoints.
type WithdrawalRequester interface {
	Request(ctx context.Context, userID uuid.UUID, amount int64, method string) (*models.WithdrawRequest, error)
	Cancel(ctx context.Context, withdrawalID, userID uuid.UUID) error
}

// WithdrawLister lists a user's own withdrawal requests.
type WithdrawLister interface {
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.WithdrawRequest, error)
}

// WithdrawalHandler serves /v1/withdrawals endpoints.
type WithdrawalHandler struct {
	Withdrawals WithdrawalRequester
	Store       WithdrawLister
	Validator   *services.Validator
	Logger      *slog.Logger
}

type withdrawRequestBody struct {
	Amount int64  `json:"amount"`
	Method string `json:"method"`
}

type withdrawResponse struct {
	Success    bool                    `json:"success"`
	Withdrawal *models.WithdrawRequest `json:"withdrawal"`
	Message    string                  `json:"message"`
}

// Create handles POST /v1/withdrawals.
// Validate payload -> policy checks inside the service -> 201 pending.
func (h *WithdrawalHandler) Create(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromCtx(r.Context())
	if u == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		http.Error(w, `{"error":"invalid body"}`, http.StatusBadRequest)
		return
	}
	if err := h.Validator.Validate(services.SchemaWithdrawRequest, body); err != nil {
		if errors.Is(err, services.ErrValidation) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
			return
		}
		h.Logger.Error("validate withdraw request", "error", err)
		http.Error(w, `{"error":"validation failed"}`, http.StatusBadRequest)
		return
	}

	var req withdrawRequestBody
	if err := unmarshalStrict(body, &req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}

	wr, err := h.Withdrawals.Request(r.Context(), u.ID, req.Amount, req.Method)
	if err != nil {
		var pe *services.PolicyError
		switch {
		case errors.As(err, &pe):
			writeJSON(w, http.StatusForbidden, pe)
		case errors.Is(err, services.ErrInvalidWithdrawAmount),
			errors.Is(err, services.ErrUnsupportedMethod):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		default:
			h.Logger.Error("create withdrawal", "user_id", u.ID, "error", err)
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusCreated, withdrawResponse{
		Success:    true,
		Withdrawal: wr,
		Message:    "withdrawal request created and pending review",
	})
}

// Cancel handles POST /v1/withdrawals/{id}/cancel. Owner-only; pending
// requests only.
func (h *WithdrawalHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromCtx(r.Context())
	if u == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid withdrawal id"}`, http.StatusBadRequest)
		return
	}

	if err := h.Withdrawals.Cancel(r.Context(), id, u.ID); err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			http.Error(w, `{"error":"withdrawal not found"}`, http.StatusNotFound)
		case errors.Is(err, services.ErrNotRequestOwner):
			http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
		case errors.Is(err, repository.ErrStatusConflict):
			http.Error(w, `{"error":"withdrawal is not pending"}`, http.StatusConflict)
		default:
			h.Logger.Error("cancel withdrawal", "withdrawal_id", id, "error", err)
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id.String(), "status": models.WithdrawStatusCancelled})
}

// List handles GET /v1/withdrawals and returns the caller's requests.
func (h *WithdrawalHandler) List(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromCtx(r.Context())
	if u == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	list, err := h.Store.ListByUserID(r.Context(), u.ID)
	if err != nil {
		h.Logger.Error("list withdrawals", "user_id", u.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
