package models

import (
	"time"

	"github.com/google/uuid"
)

// Task status enums. A freelancer starts an assigned task, then either
// submits proof (-> completed via verification) or abandons it early.
const (
	TaskStatusAssigned   = "assigned"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
	TaskStatusAbandoned  = "abandoned"
	TaskStatusRejected   = "rejected"
)

type Task struct {
	ID             uuid.UUID  `json:"id"`
	UserID         uuid.UUID  `json:"user_id"`
	CampaignID     *uuid.UUID `json:"campaign_id,omitempty"`
	TargetPageName string     `json:"target_page_name"`
	RewardAmount   int64      `json:"reward_amount"`
	Status         string     `json:"status"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Proof submission status.
const (
	ProofStatusPending  = "pending"
	ProofStatusVerified = "verified"
	ProofStatusRejected = "rejected"
	ProofStatusFailed   = "failed"
)

// ProofSubmission records one screenshot-based completion claim and the
// structured verdict produced by the verifier.
type ProofSubmission struct {
	ID              uuid.UUID `json:"id"`
	UserID          uuid.UUID `json:"user_id"`
	TaskID          uuid.UUID `json:"task_id"`
	TargetPageName  string    `json:"target_page_name"`
	FollowersBefore int64     `json:"followers_before"`
	FollowersAfter  int64     `json:"followers_after"`
	TaskStartedAt   time.Time `json:"task_started_at"`
	SubmittedAt     time.Time `json:"submitted_at"`
	ImagePath       string    `json:"-"`
	Status          string    `json:"status"`
	Verified        bool      `json:"verified"`
	OCRMatches      bool      `json:"ocr_matches"`
	CountIncreased  bool      `json:"count_increased"`
	TimePenalty     bool      `json:"time_penalty"`
	Details         string    `json:"details,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
