package main

import (
	"log/slog"
	"net/http"

	"github.com/boosthive/backend/internal/auth"
	"github.com/boosthive/backend/internal/handlers"
	"github.com/boosthive/backend/internal/middleware"
	"github.com/boosthive/backend/internal/repository"
	"github.com/boosthive/backend/internal/services"
)

// v1Deps bundles everything the /v1 API needs.
type v1Deps struct {
	authSvc     auth.Service
	userRepo    *repository.UserRepo
	taskRepo    *repository.TaskRepo
	proofRepo   *repository.ProofRepo
	wdRepo      *repository.WithdrawRepo
	earnings    *services.EarningsService
	withdrawals *services.WithdrawalService
	trust       *services.TrustService
	limiter     *services.ProofRateLimiter
	validator   *services.Validator
	insertJob   handlers.InsertVerifyProofFunc
	tempDir     string
	logger      *slog.Logger
}

// RegisterV1Routes adds the /v1/ endpoints to the given mux.
// Middleware chain: JWTAuth -> (AdminOnly on /v1/admin) -> handler.
func RegisterV1Routes(mux *http.ServeMux, d v1Deps) {
	eh := &handlers.EarningsHandler{Earnings: d.earnings, Logger: d.logger}
	wh := &handlers.WithdrawalHandler{
		Withdrawals: d.withdrawals,
		Store:       d.wdRepo,
		Validator:   d.validator,
		Logger:      d.logger,
	}
	ph := &handlers.ProofHandler{
		Proofs:    d.proofRepo,
		Tasks:     d.taskRepo,
		Limiter:   d.limiter,
		Validator: d.validator,
		InsertJob: d.insertJob,
		TempDir:   d.tempDir,
		Logger:    d.logger,
	}
	th := &handlers.TaskHandler{Tasks: d.taskRepo, Trust: d.trust, Logger: d.logger}
	ah := &handlers.AdminHandler{Withdrawals: d.withdrawals, Trust: d.trust, Logger: d.logger}

	authn := middleware.JWTAuth(d.authSvc, d.userRepo)
	admin := func(h http.HandlerFunc) http.Handler {
		return authn(middleware.AdminOnly(h))
	}

	mux.Handle("GET /v1/earnings/status", authn(http.HandlerFunc(eh.GetStatus)))

	mux.Handle("POST /v1/withdrawals", authn(http.HandlerFunc(wh.Create)))
	mux.Handle("GET /v1/withdrawals", authn(http.HandlerFunc(wh.List)))
	mux.Handle("POST /v1/withdrawals/{id}/cancel", authn(http.HandlerFunc(wh.Cancel)))

	mux.Handle("POST /v1/proofs", authn(http.HandlerFunc(ph.Submit)))
	mux.Handle("GET /v1/proofs/{id}", authn(http.HandlerFunc(ph.Get)))

	mux.Handle("POST /v1/tasks", authn(http.HandlerFunc(th.Create)))
	mux.Handle("GET /v1/tasks", authn(http.HandlerFunc(th.List)))
	mux.Handle("POST /v1/tasks/{id}/start", authn(http.HandlerFunc(th.Start)))
	mux.Handle("POST /v1/tasks/{id}/abandon", authn(http.HandlerFunc(th.Abandon)))

	mux.Handle("POST /v1/admin/withdrawals/{id}/approve", admin(ah.ApproveWithdrawal))
	mux.Handle("POST /v1/admin/withdrawals/{id}/reject", admin(ah.RejectWithdrawal))
	mux.Handle("POST /v1/admin/users/{id}/trust-score", admin(ah.AdjustTrustScore))
	mux.Handle("POST /v1/admin/users/{id}/unlock", admin(ah.UnlockAccount))
}
