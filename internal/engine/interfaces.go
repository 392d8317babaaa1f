package engine

import (
	"context"
	"time"

	"github.com/docuflow/docuflow/internal/domain"
)

// WorkflowRepo defines the interface for workflow persistence, matching repository.WorkflowRepository.
type WorkflowRepo interface {
	CreateWithSteps(wf *domain.Workflow, steps []domain.Step) (int64, error)
	FindByID(id int64) (*domain.Workflow, error)
	FindActiveByDocumentID(documentID string) (*domain.Workflow, error)
	FindLatestByDocumentID(documentID string) (*domain.Workflow, error)
	ApplyDecision(d *domain.Decision) error
}

// StepRepo defines the interface for step reads.
type StepRepo interface {
	FindAllByWorkflowID(workflowID int64) (*[]domain.Step, error)
	FindByWorkflowAndNumber(workflowID int64, stepNumber int) (*domain.Step, error)
}

// HistoryRepo defines the interface for the decision ledger reads.
type HistoryRepo interface {
	FindAllByWorkflowID(workflowID int64) (*[]domain.HistoryEntry, error)
}

// UserRepo defines the interface for user persistence.
type UserRepo interface {
	FindBySessionID(sessionID string, now time.Time) (*domain.User, error)
	FindByApiKey(apiKey string) (*domain.User, error)
	FindAll() (*[]domain.User, error)
	Save(user *domain.User) (int64, error)
	FindById(id int64) (*domain.User, error)
	DeleteById(id int64) error
	FindByUsername(username string) (*domain.User, error)
	FindFirstEnabledByRole(role string) (*domain.User, error)
	UpdateSession(userID int64, sessionID string, expiry time.Time) error
	ClearSessionBySessionID(sessionID string) error
}

// RoleResolver maps a role name to the actor that should be assigned.
type RoleResolver interface {
	Resolve(roleName string) (int64, error)
}

// Notifier delivers a best-effort message to an actor. Failures are logged
// by the caller and never block or roll back a committed transition.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
