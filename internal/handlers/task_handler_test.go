package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/boosthive/backend/internal/models"
	"github.com/boosthive/backend/internal/repository"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type mockTaskRepo struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*models.Task
}

func newMockTaskRepo() *mockTaskRepo {
	return &mockTaskRepo{tasks: make(map[uuid.UUID]*models.Task)}
}

func (m *mockTaskRepo) Create(_ context.Context, t *models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

func (m *mockTaskRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (m *mockTaskRepo) MarkStarted(_ context.Context, id uuid.UUID) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if t.Status != models.TaskStatusAssigned {
		return nil, repository.ErrStatusConflict
	}
	t.Status = models.TaskStatusInProgress
	cp := *t
	return &cp, nil
}

func (m *mockTaskRepo) MarkAbandoned(_ context.Context, id uuid.UUID) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if t.Status != models.TaskStatusAssigned && t.Status != models.TaskStatusInProgress {
		return nil, repository.ErrStatusConflict
	}
	t.Status = models.TaskStatusAbandoned
	cp := *t
	return &cp, nil
}

func (m *mockTaskRepo) ListByUserID(_ context.Context, userID uuid.UUID) ([]*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Task
	for _, t := range m.tasks {
		if t.UserID == userID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

type mockPenalty struct {
	calls int
	err   error
	user  *models.User
}

func (m *mockPenalty) ApplyEarlyExitPenalty(context.Context, uuid.UUID) (*models.User, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.user, nil
}

func seedTask(repo *mockTaskRepo, userID uuid.UUID, status string) *models.Task {
	t := &models.Task{
		ID:             uuid.New(),
		UserID:         userID,
		TargetPageName: "CoffeeHouse",
		RewardAmount:   200,
		Status:         status,
	}
	repo.tasks[t.ID] = t
	return t
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestCreateTask(t *testing.T) {
	repo := newMockTaskRepo()
	h := &TaskHandler{Tasks: repo, Trust: &mockPenalty{}, Logger: slog.Default()}
	user := &models.User{ID: uuid.New()}

	req := httptest.NewRequest(http.MethodPost, "/v1/tasks", strings.NewReader(`{"target_page_name":"CoffeeHouse","reward_amount":200}`))
	req = withUser(req, user)
	rec := httptest.NewRecorder()

	h.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var created models.Task
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Status != models.TaskStatusAssigned {
		t.Errorf("status = %q, want assigned", created.Status)
	}
	if _, ok := repo.tasks[created.ID]; !ok {
		t.Error("task not persisted")
	}
}

func TestCreateTask_Rejections(t *testing.T) {
	cases := []struct {
		name string
		user *models.User
		body string
		want int
	}{
		{"banned user", &models.User{ID: uuid.New(), IsBanned: true}, `{"target_page_name":"x","reward_amount":1}`, http.StatusForbidden},
		{"missing page name", &models.User{ID: uuid.New()}, `{"reward_amount":1}`, http.StatusBadRequest},
		{"zero reward", &models.User{ID: uuid.New()}, `{"target_page_name":"x","reward_amount":0}`, http.StatusBadRequest},
		{"bad campaign id", &models.User{ID: uuid.New()}, `{"target_page_name":"x","reward_amount":1,"campaign_id":"nope"}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := &TaskHandler{Tasks: newMockTaskRepo(), Trust: &mockPenalty{}, Logger: slog.Default()}
			req := withUser(httptest.NewRequest(http.MethodPost, "/v1/tasks", strings.NewReader(tc.body)), tc.user)
			rec := httptest.NewRecorder()

			h.Create(rec, req)

			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tc.want, rec.Body.String())
			}
		})
	}
}

func TestStartTask(t *testing.T) {
	repo := newMockTaskRepo()
	user := &models.User{ID: uuid.New()}
	task := seedTask(repo, user.ID, models.TaskStatusAssigned)
	h := &TaskHandler{Tasks: repo, Trust: &mockPenalty{}, Logger: slog.Default()}

	req := httptest.NewRequest(http.MethodPost, "/v1/tasks/"+task.ID.String()+"/start", nil)
	req.SetPathValue("id", task.ID.String())
	req = withUser(req, user)
	rec := httptest.NewRecorder()

	h.Start(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := repo.tasks[task.ID].Status; got != models.TaskStatusInProgress {
		t.Errorf("task status = %q, want in_progress", got)
	}

	// Starting again conflicts: the transition is assigned -> in_progress only.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/v1/tasks/"+task.ID.String()+"/start", nil)
	req.SetPathValue("id", task.ID.String())
	req = withUser(req, user)
	h.Start(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second start status = %d, want 409", rec.Code)
	}
}

func TestStartTask_OwnershipAndExistence(t *testing.T) {
	repo := newMockTaskRepo()
	owner := &models.User{ID: uuid.New()}
	other := &models.User{ID: uuid.New()}
	task := seedTask(repo, owner.ID, models.TaskStatusAssigned)
	h := &TaskHandler{Tasks: repo, Trust: &mockPenalty{}, Logger: slog.Default()}

	t.Run("other user is forbidden", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/tasks/"+task.ID.String()+"/start", nil)
		req.SetPathValue("id", task.ID.String())
		req = withUser(req, other)
		rec := httptest.NewRecorder()
		h.Start(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", rec.Code)
		}
	})

	t.Run("unknown task is 404", func(t *testing.T) {
		id := uuid.NewString()
		req := httptest.NewRequest(http.MethodPost, "/v1/tasks/"+id+"/start", nil)
		req.SetPathValue("id", id)
		req = withUser(req, owner)
		rec := httptest.NewRecorder()
		h.Start(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
	})
}

func TestAbandonTask_AppliesPenaltyOnce(t *testing.T) {
	repo := newMockTaskRepo()
	user := &models.User{ID: uuid.New(), TrustScore: 80}
	task := seedTask(repo, user.ID, models.TaskStatusInProgress)
	penalty := &mockPenalty{user: &models.User{ID: user.ID, TrustScore: 70}}
	h := &TaskHandler{Tasks: repo, Trust: penalty, Logger: slog.Default()}

	req := httptest.NewRequest(http.MethodPost, "/v1/tasks/"+task.ID.String()+"/abandon", nil)
	req.SetPathValue("id", task.ID.String())
	req = withUser(req, user)
	rec := httptest.NewRecorder()

	h.Abandon(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Task       models.Task `json:"task"`
		TrustScore float64     `json:"trust_score"`
		IsBanned   bool        `json:"is_banned"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Task.Status != models.TaskStatusAbandoned {
		t.Errorf("task status = %q", resp.Task.Status)
	}
	if resp.TrustScore != 70 {
		t.Errorf("trust_score = %v, want 70", resp.TrustScore)
	}
	if penalty.calls != 1 {
		t.Fatalf("penalty applied %d times, want 1", penalty.calls)
	}

	// A repeat abandon conflicts before the penalty path is reached.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/v1/tasks/"+task.ID.String()+"/abandon", nil)
	req.SetPathValue("id", task.ID.String())
	req = withUser(req, user)
	h.Abandon(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second abandon status = %d, want 409", rec.Code)
	}
	if penalty.calls != 1 {
		t.Fatalf("penalty applied %d times after repeat, want 1", penalty.calls)
	}
}

func TestAbandonTask_PenaltyFailureStillReportsAbandon(t *testing.T) {
	repo := newMockTaskRepo()
	user := &models.User{ID: uuid.New()}
	task := seedTask(repo, user.ID, models.TaskStatusInProgress)
	penalty := &mockPenalty{err: errors.New("db down")}
	h := &TaskHandler{Tasks: repo, Trust: penalty, Logger: slog.Default()}

	req := httptest.NewRequest(http.MethodPost, "/v1/tasks/"+task.ID.String()+"/abandon", nil)
	req.SetPathValue("id", task.ID.String())
	req = withUser(req, user)
	rec := httptest.NewRecorder()

	h.Abandon(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := repo.tasks[task.ID].Status; got != models.TaskStatusAbandoned {
		t.Errorf("task status = %q, want abandoned", got)
	}
}
