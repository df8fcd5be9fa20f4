package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/boosthive/backend/internal/execution"
	"github.com/boosthive/backend/internal/middleware"
	"github.com/boosthive/backend/internal/models"
	"github.com/boosthive/backend/internal/services"
)

const maxProofImageBytes = 8 << 20

// ProofRepoForHandler is the proof persistence subset used by the handler.
type ProofRepoForHandler interface {
	Create(ctx context.Context, p *models.ProofSubmission) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ProofSubmission, error)
}

// TaskGetter resolves the task a proof is submitted against.
type TaskGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
}

// RateLimiter gates proof submissions per user.
type RateLimiter interface {
	Allow(ctx context.Context, userID uuid.UUID) (retryAfter int64, ok bool, err error)
}

// InsertVerifyProofFunc enqueues the background verification job.
type InsertVerifyProofFunc func(ctx context.Context, args execution.VerifyProofJobArgs) error

// ProofHandler serves /v1/proofs endpoints.
// Submission is asynchronous: the image is staged, a pending row is
// written, and verification runs off the request path.
type ProofHandler struct {
	Proofs    ProofRepoForHandler
	Tasks     TaskGetter
	Limiter   RateLimiter
	Validator *services.Validator
	InsertJob InsertVerifyProofFunc
	TempDir   string
	Logger    *slog.Logger
}

type proofPayload struct {
	TaskID          string `json:"task_id"`
	FollowersBefore int64  `json:"followers_before"`
	FollowersAfter  int64  `json:"followers_after"`
}

type submitProofResponse struct {
	ProofID string `json:"proof_id"`
	Status  string `json:"status"`
}

// Submit handles POST /v1/proofs (multipart/form-data: "payload" JSON part
// plus "image" file part). Returns 202 with the pending proof id.
func (h *ProofHandler) Submit(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromCtx(r.Context())
	if u == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	retryAfter, ok, err := h.Limiter.Allow(r.Context(), u.ID)
	if err != nil {
		h.Logger.Error("proof rate limit", "user_id", u.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
		http.Error(w, `{"error":"too many proof submissions"}`, http.StatusTooManyRequests)
		return
	}

	if err := r.ParseMultipartForm(maxProofImageBytes); err != nil {
		http.Error(w, `{"error":"invalid multipart form"}`, http.StatusBadRequest)
		return
	}

	payload := []byte(r.FormValue("payload"))
	if err := h.Validator.Validate(services.SchemaProofSubmission, payload); err != nil {
		if errors.Is(err, services.ErrValidation) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
			return
		}
		h.Logger.Error("validate proof payload", "error", err)
		http.Error(w, `{"error":"validation failed"}`, http.StatusBadRequest)
		return
	}
	var req proofPayload
	if err := unmarshalStrict(payload, &req); err != nil {
		http.Error(w, `{"error":"invalid JSON payload"}`, http.StatusBadRequest)
		return
	}
	taskID, err := uuid.Parse(req.TaskID)
	if err != nil {
		http.Error(w, `{"error":"invalid task_id"}`, http.StatusBadRequest)
		return
	}

	task, err := h.Tasks.GetByID(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, `{"error":"task not found"}`, http.StatusNotFound)
			return
		}
		h.Logger.Error("load task", "task_id", taskID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if task.UserID != u.ID {
		http.Error(w, `{"error":"task belongs to another user"}`, http.StatusForbidden)
		return
	}
	if task.Status != models.TaskStatusInProgress {
		http.Error(w, `{"error":"task is not in progress"}`, http.StatusConflict)
		return
	}

	imagePath, err := h.stageImage(r)
	if err != nil {
		http.Error(w, `{"error":"image upload required"}`, http.StatusBadRequest)
		return
	}

	startedAt := task.CreatedAt
	if task.StartedAt != nil {
		startedAt = *task.StartedAt
	}

	proof := &models.ProofSubmission{
		ID:              uuid.New(),
		UserID:          u.ID,
		TaskID:          task.ID,
		TargetPageName:  task.TargetPageName,
		FollowersBefore: req.FollowersBefore,
		FollowersAfter:  req.FollowersAfter,
		TaskStartedAt:   startedAt,
		SubmittedAt:     time.Now().UTC(),
		ImagePath:       imagePath,
		Status:          models.ProofStatusPending,
	}
	if err := h.Proofs.Create(r.Context(), proof); err != nil {
		os.Remove(imagePath)
		h.Logger.Error("create proof", "task_id", task.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	if err := h.InsertJob(r.Context(), execution.VerifyProofJobArgs{ProofID: proof.ID}); err != nil {
		h.Logger.Error("enqueue proof verification", "proof_id", proof.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, submitProofResponse{ProofID: proof.ID.String(), Status: proof.Status})
}

// Get handles GET /v1/proofs/{id}. Owner-only.
func (h *ProofHandler) Get(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromCtx(r.Context())
	if u == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid proof id"}`, http.StatusBadRequest)
		return
	}

	proof, err := h.Proofs.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, `{"error":"proof not found"}`, http.StatusNotFound)
			return
		}
		h.Logger.Error("load proof", "proof_id", id, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if proof.UserID != u.ID {
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
		return
	}
	writeJSON(w, http.StatusOK, proof)
}

// stageImage copies the uploaded screenshot to the staging dir. The
// verifier deletes the file once a verdict is recorded.
func (h *ProofHandler) stageImage(r *http.Request) (string, error) {
	file, header, err := r.FormFile("image")
	if err != nil {
		return "", err
	}
	defer file.Close()

	ext := filepath.Ext(header.Filename)
	if ext == "" {
		ext = ".png"
	}
	tmp, err := os.CreateTemp(h.TempDir, "proof-*"+ext)
	if err != nil {
		return "", err
	}
	defer tmp.Close()

	if _, err := io.Copy(tmp, io.LimitReader(file, maxProofImageBytes)); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("stage proof image: %w", err)
	}
	return tmp.Name(), nil
}
