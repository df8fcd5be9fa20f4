package services

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/boosthive/backend/internal/models"
)

// NotificationStore persists notification rows.
type NotificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
}

// NotificationService records user-visible notifications. Delivery is
// best-effort: failures are logged and never propagate to the state
// transition that produced them.
type NotificationService struct {
	Store  NotificationStore
	Logger *slog.Logger
}

func NewNotificationService(store NotificationStore, logger *slog.Logger) *NotificationService {
	return &NotificationService{Store: store, Logger: logger}
}

var _ Notifier = (*NotificationService)(nil)

func (s *NotificationService) Notify(ctx context.Context, userID uuid.UUID, title, body string) {
	n := &models.Notification{ID: uuid.New(), UserID: userID, Title: title, Body: body}
	if err := s.Store.Create(ctx, n); err != nil {
		s.Logger.Warn("notification write failed", "user_id", userID, "title", title, "error", err)
	}
}
