// Package dashboard serves the freelancer account pages: profile with
// earnings summary, wallet ledger, trust history and notifications. These
// endpoints authenticate the bearer token directly so the dashboard SPA
// can talk to them without the /v1 middleware chain.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/boosthive/backend/internal/auth"
	"github.com/boosthive/backend/internal/models"
	"github.com/boosthive/backend/internal/repository"
	"github.com/boosthive/backend/internal/services"
)

// EarningsReader summarizes a user's earnings for the profile page.
type EarningsReader interface {
	Status(ctx context.Context, userID uuid.UUID) (*services.EarningsStatus, error)
}

type Handler struct {
	authSvc  auth.Service
	userR    *repository.UserRepo
	walletR  *repository.WalletRepo
	trustR   *repository.TrustLogRepo
	banR     *repository.BanRepo
	notifR   *repository.NotificationRepo
	earnings EarningsReader
	log      *slog.Logger
}

func NewHandler(
	authSvc auth.Service,
	userR *repository.UserRepo,
	walletR *repository.WalletRepo,
	trustR *repository.TrustLogRepo,
	banR *repository.BanRepo,
	notifR *repository.NotificationRepo,
	earnings EarningsReader,
	log *slog.Logger,
) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		authSvc:  authSvc,
		userR:    userR,
		walletR:  walletR,
		trustR:   trustR,
		banR:     banR,
		notifR:   notifR,
		earnings: earnings,
		log:      log,
	}
}

func (h *Handler) userIDFromRequest(r *http.Request) (uuid.UUID, error) {
	authz := r.Header.Get("Authorization")
	if authz == "" {
		return uuid.Nil, fmt.Errorf("missing authorization")
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(authz, prefix) {
		return uuid.Nil, fmt.Errorf("bad authorization format")
	}
	token := strings.TrimSpace(authz[len(prefix):])
	if token == "" {
		return uuid.Nil, fmt.Errorf("empty token")
	}
	id, _, err := h.authSvc.ValidateToken(r.Context(), token)
	return id, err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type meResponse struct {
	ID         string                   `json:"id"`
	Email      string                   `json:"email"`
	Name       string                   `json:"name"`
	TrustScore float64                  `json:"trust_score"`
	IsBanned   bool                     `json:"is_banned"`
	BanReason  *string                  `json:"ban_reason,omitempty"`
	UnlockCost *int64                   `json:"unlock_cost,omitempty"`
	Balance    int64                    `json:"balance"`
	Earnings   *services.EarningsStatus `json:"earnings"`
}

// GET /api/v1/account/me
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userIDFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	u, err := h.userR.GetByID(r.Context(), userID)
	if err != nil {
		h.log.Error("dashboard get user", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	balance, err := h.walletR.Balance(r.Context(), userID)
	if err != nil {
		h.log.Error("dashboard wallet balance", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	status, err := h.earnings.Status(r.Context(), userID)
	if err != nil {
		h.log.Error("dashboard earnings status", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		ID:         u.ID.String(),
		Email:      u.Email,
		Name:       u.Name,
		TrustScore: u.TrustScore,
		IsBanned:   u.IsBanned,
		BanReason:  u.BanReason,
		UnlockCost: u.BanUnlockCost,
		Balance:    balance,
		Earnings:   status,
	})
}

// GET /api/v1/wallet
func (h *Handler) ListWallet(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userIDFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	list, err := h.walletR.ListByUserID(r.Context(), userID)
	if err != nil {
		h.log.Error("dashboard list wallet", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*models.WalletTransaction{}
	}
	writeJSON(w, http.StatusOK, list)
}

// GET /api/v1/trust-log
func (h *Handler) ListTrustLog(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userIDFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	list, err := h.trustR.ListByUserID(r.Context(), userID)
	if err != nil {
		h.log.Error("dashboard list trust log", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*models.TrustScoreLog{}
	}
	writeJSON(w, http.StatusOK, list)
}

// GET /api/v1/bans
func (h *Handler) ListBans(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userIDFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	list, err := h.banR.ListByUserID(r.Context(), userID)
	if err != nil {
		h.log.Error("dashboard list bans", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*models.BanRecord{}
	}
	writeJSON(w, http.StatusOK, list)
}

// GET /api/v1/notifications
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userIDFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	list, err := h.notifR.ListByUserID(r.Context(), userID)
	if err != nil {
		h.log.Error("dashboard list notifications", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*models.Notification{}
	}
	writeJSON(w, http.StatusOK, list)
}
