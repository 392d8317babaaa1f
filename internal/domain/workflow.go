package domain

import (
	"database/sql"
	"time"
)

const (
	WorkflowStatusPending   = "pending"
	WorkflowStatusCompleted = "completed"
	WorkflowStatusRejected  = "rejected"
)

const (
	StepStatusWaiting  = "waiting"
	StepStatusPending  = "pending"
	StepStatusApproved = "approved"
	StepStatusRejected = "rejected"
)

const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// Workflow is one approval process bound to a single document. Terminal
// statuses (completed, rejected) are final, the row is never deleted.
type Workflow struct {
	ID          int64         `json:"id"`
	DocumentID  string        `json:"documentId"`
	Category    string        `json:"category"`
	Status      string        `json:"status"`
	CurrentStep sql.NullInt32 `json:"currentStep"`
	CreatedBy   int64         `json:"createdBy"`
	Created     time.Time     `json:"created"`
	Modified    time.Time     `json:"modified"`
}

// Step is one role-gated decision point. Role and assignee are resolved once
// at creation and never re-resolved.
type Step struct {
	ID           int64        `json:"id"`
	WorkflowID   int64        `json:"workflowId"`
	StepNumber   int          `json:"stepNumber"`
	RoleRequired string       `json:"roleRequired"`
	ActionType   string       `json:"actionType"`
	AssignedTo   int64        `json:"assignedTo"`
	Status       string       `json:"status"`
	CompletedAt  sql.NullTime `json:"completedAt"`
}

// HistoryEntry is one decision in the append-only audit trail.
type HistoryEntry struct {
	ID         int64          `json:"id"`
	WorkflowID int64          `json:"workflowId"`
	StepID     int64          `json:"stepId"`
	UserID     int64          `json:"userId"`
	Action     string         `json:"action"`
	Comment    sql.NullString `json:"comment"`
	DateTime   time.Time      `json:"dateTime"`
}

// Decision carries everything the repository needs to apply one transition
// atomically. ExpectedStep is the current_step value read before deciding;
// the update is guarded by it.
type Decision struct {
	WorkflowID     int64
	StepID         int64
	ExpectedStep   int
	ActorID        int64
	Action         string
	Comment        sql.NullString
	NextStepNumber int  // 0 when there is no next step
	Finalize       bool // true when the workflow reaches a terminal status
	FinalStatus    string
}
