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
)

// TaskRepoForHandler is the task persistence subset used by the handler.
type TaskRepoForHandler interface {
	Create(ctx context.Context, t *models.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	MarkStarted(ctx context.Context, id uuid.UUID) (*models.Task, error)
	MarkAbandoned(ctx context.Context, id uuid.UUID) (*models.Task, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Task, error)
}

// PenaltyApplier applies the early-exit trust penalty after an abandon.
type PenaltyApplier interface {
	ApplyEarlyExitPenalty(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

// TaskHandler serves /v1/tasks endpoints.
type TaskHandler struct {
	Tasks  TaskRepoForHandler
	Trust  PenaltyApplier
	Logger *slog.Logger
}

type createTaskRequest struct {
	TargetPageName string `json:"target_page_name"`
	RewardAmount   int64  `json:"reward_amount"`
	CampaignID     string `json:"campaign_id,omitempty"`
}

// Create handles POST /v1/tasks: the caller claims a promotion task.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromCtx(r.Context())
	if u == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	if u.IsBanned {
		http.Error(w, `{"error":"account is banned"}`, http.StatusForbidden)
		return
	}

	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.TargetPageName == "" {
		http.Error(w, `{"error":"target_page_name is required"}`, http.StatusBadRequest)
		return
	}
	if req.RewardAmount <= 0 {
		http.Error(w, `{"error":"reward_amount must be > 0"}`, http.StatusBadRequest)
		return
	}

	task := &models.Task{
		ID:             uuid.New(),
		UserID:         u.ID,
		TargetPageName: req.TargetPageName,
		RewardAmount:   req.RewardAmount,
		Status:         models.TaskStatusAssigned,
	}
	if req.CampaignID != "" {
		cid, err := uuid.Parse(req.CampaignID)
		if err != nil {
			http.Error(w, `{"error":"invalid campaign_id"}`, http.StatusBadRequest)
			return
		}
		task.CampaignID = &cid
	}

	if err := h.Tasks.Create(r.Context(), task); err != nil {
		h.Logger.Error("create task", "user_id", u.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// Start handles POST /v1/tasks/{id}/start.
func (h *TaskHandler) Start(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromCtx(r.Context())
	if u == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	task, ok := h.ownedTask(w, r, u.ID)
	if !ok {
		return
	}

	started, err := h.Tasks.MarkStarted(r.Context(), task.ID)
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			http.Error(w, `{"error":"task is not assigned"}`, http.StatusConflict)
			return
		}
		h.Logger.Error("start task", "task_id", task.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, started)
}

// Abandon handles POST /v1/tasks/{id}/abandon. Walking away from a task
// before completion costs trust score.
func (h *TaskHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromCtx(r.Context())
	if u == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	task, ok := h.ownedTask(w, r, u.ID)
	if !ok {
		return
	}

	abandoned, err := h.Tasks.MarkAbandoned(r.Context(), task.ID)
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			http.Error(w, `{"error":"task cannot be abandoned"}`, http.StatusConflict)
			return
		}
		h.Logger.Error("abandon task", "task_id", task.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	updated, err := h.Trust.ApplyEarlyExitPenalty(r.Context(), u.ID)
	if err != nil {
		// The task is already abandoned; report the state change and log
		// the penalty failure for reconciliation.
		h.Logger.Error("early exit penalty", "task_id", task.ID, "user_id", u.ID, "error", err)
		writeJSON(w, http.StatusOK, abandoned)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"task":        abandoned,
		"trust_score": updated.TrustScore,
		"is_banned":   updated.IsBanned,
	})
}

// List handles GET /v1/tasks and returns the caller's tasks.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromCtx(r.Context())
	if u == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	tasks, err := h.Tasks.ListByUserID(r.Context(), u.ID)
	if err != nil {
		h.Logger.Error("list tasks", "user_id", u.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) ownedTask(w http.ResponseWriter, r *http.Request, userID uuid.UUID) (*models.Task, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid task id"}`, http.StatusBadRequest)
		return nil, false
	}
	task, err := h.Tasks.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, `{"error":"task not found"}`, http.StatusNotFound)
			return nil, false
		}
		h.Logger.Error("load task", "task_id", id, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return nil, false
	}
	if task.UserID != userID {
		http.Error(w, `{"error":"task belongs to another user"}`, http.StatusForbidden)
		return nil, false
	}
	return task, true
}
