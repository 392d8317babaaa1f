package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/docuflow/docuflow/internal/core"
	"github.com/docuflow/docuflow/internal/domain"
	"github.com/docuflow/docuflow/internal/models"
)

// WorkflowManager owns the approval engine: it seeds workflows from the
// template registry (factory), applies decisions one at a time (state
// machine) and assembles the client-facing view.
type WorkflowManager struct {
	WorkflowRepo WorkflowRepo
	StepRepo     StepRepo
	HistoryRepo  HistoryRepo
	Registry     *TemplateRegistry
	Resolver     RoleResolver
	Notifier     Notifier
	clock        core.Clock
}

func NewWorkflowManager(workflowRepo WorkflowRepo, stepRepo StepRepo, historyRepo HistoryRepo,
	registry *TemplateRegistry, resolver RoleResolver, notifier Notifier, clock core.Clock) *WorkflowManager {
	return &WorkflowManager{
		WorkflowRepo: workflowRepo,
		StepRepo:     stepRepo,
		HistoryRepo:  historyRepo,
		Registry:     registry,
		Resolver:     resolver,
		Notifier:     notifier,
		clock:        clock,
	}
}

// StartWorkflow instantiates a workflow and its ordered steps for a document
// of the given category. Step numbers come from the template before any
// assignee resolution starts; assignees are resolved concurrently since the
// steps are independent. Creation is all-or-nothing: if any role cannot be
// resolved, nothing is persisted. The assignee of step 1 is notified only
// after the full step set is committed.
func (wm *WorkflowManager) StartWorkflow(ctx context.Context, documentID string, category string, creatorID int64) (*models.WorkflowView, error) {
	specs, err := wm.Registry.Lookup(category)
	if err != nil {
		return nil, err
	}

	existing, err := wm.WorkflowRepo.FindActiveByDocumentID(documentID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		slog.WarnContext(ctx, "Document already has an active workflow", "documentId", documentID, "workflowId", existing.ID)
		return nil, fmt.Errorf("%w: document %s", domain.ErrWorkflowExists, documentID)
	}

	assignees := make([]int64, len(specs))
	resolveErrs := make([]error, len(specs))
	var wg sync.WaitGroup
	for i := range specs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assignees[i], resolveErrs[i] = wm.Resolver.Resolve(specs[i].RoleRequired)
		}(i)
	}
	wg.Wait()
	for i, rerr := range resolveErrs {
		if rerr != nil {
			return nil, fmt.Errorf("%w: role %q: %w", domain.ErrAssigneeResolution, specs[i].RoleRequired, rerr)
		}
	}

	now := wm.clock.Now().UTC()
	wf := &domain.Workflow{
		DocumentID:  documentID,
		Category:    category,
		Status:      domain.WorkflowStatusPending,
		CurrentStep: sql.NullInt32{Int32: 1, Valid: true},
		CreatedBy:   creatorID,
		Created:     now,
		Modified:    now,
	}
	steps := make([]domain.Step, len(specs))
	for i, spec := range specs {
		status := domain.StepStatusWaiting
		if spec.StepNumber == 1 {
			status = domain.StepStatusPending
		}
		steps[i] = domain.Step{
			StepNumber:   spec.StepNumber,
			RoleRequired: spec.RoleRequired,
			ActionType:   spec.ActionType,
			AssignedTo:   assignees[i],
			Status:       status,
		}
	}

	id, err := wm.WorkflowRepo.CreateWithSteps(wf, steps)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Workflow created", "workflowId", id, "documentId", documentID, "category", category, "steps", len(steps))

	wm.notifyAssignee(steps[0])

	return wm.GetWorkflowView(id)
}

// ProcessDecision applies one approve/reject decision to the currently
// pending step of a workflow. The acting user must be the step assignee
// unless they are an admin. The transition itself (history append, step
// update, workflow update) is one atomic repository call guarded by the
// current_step value read here; a lost race surfaces as
// ErrConcurrentModification and leaves state untouched.
func (wm *WorkflowManager) ProcessDecision(ctx context.Context, workflowID int64, actor *domain.User, action string, comment string) (*models.WorkflowView, error) {
	if action != domain.ActionApprove && action != domain.ActionReject {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidAction, action)
	}

	wf, err := wm.WorkflowRepo.FindByID(workflowID)
	if err != nil {
		return nil, err
	}
	if wf == nil {
		return nil, fmt.Errorf("%w: %d", domain.ErrWorkflowNotFound, workflowID)
	}
	if wf.Status != domain.WorkflowStatusPending {
		return nil, fmt.Errorf("%w: workflow %d is %s", domain.ErrWorkflowAlreadyFinalized, workflowID, wf.Status)
	}
	if !wf.CurrentStep.Valid {
		return nil, fmt.Errorf("%w: workflow %d has no current step", domain.ErrStepNotFound, workflowID)
	}
	currentNumber := int(wf.CurrentStep.Int32)

	stepsPtr, err := wm.StepRepo.FindAllByWorkflowID(workflowID)
	if err != nil {
		return nil, err
	}
	steps := *stepsPtr
	var current *domain.Step
	for i := range steps {
		if steps[i].StepNumber == currentNumber {
			current = &steps[i]
			break
		}
	}
	if current == nil {
		return nil, fmt.Errorf("%w: workflow %d step %d", domain.ErrStepNotFound, workflowID, currentNumber)
	}
	if actor.ID != current.AssignedTo && !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: step %d is assigned to user %d", domain.ErrNotStepAssignee, current.StepNumber, current.AssignedTo)
	}

	// Next step is the smallest number greater than the current one. Steps
	// are ordered, so it is simply the successor in the slice.
	var next *domain.Step
	for i := range steps {
		if steps[i].StepNumber > currentNumber {
			next = &steps[i]
			break
		}
	}

	decision := &domain.Decision{
		WorkflowID:   workflowID,
		StepID:       current.ID,
		ExpectedStep: currentNumber,
		ActorID:      actor.ID,
		Action:       action,
	}
	if comment != "" {
		decision.Comment = sql.NullString{String: comment, Valid: true}
	}
	switch {
	case action == domain.ActionReject:
		decision.Finalize = true
		decision.FinalStatus = domain.WorkflowStatusRejected
	case next != nil:
		decision.NextStepNumber = next.StepNumber
	default:
		decision.Finalize = true
		decision.FinalStatus = domain.WorkflowStatusCompleted
	}

	if err := wm.WorkflowRepo.ApplyDecision(decision); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Decision applied", "workflowId", workflowID, "step", currentNumber, "action", action, "actor", actor.ID)

	if action == domain.ActionApprove && next != nil {
		wm.notifyAssignee(*next)
	}

	return wm.GetWorkflowView(workflowID)
}

// GetWorkflowView assembles workflow, steps, history and progress.
func (wm *WorkflowManager) GetWorkflowView(workflowID int64) (*models.WorkflowView, error) {
	wf, err := wm.WorkflowRepo.FindByID(workflowID)
	if err != nil {
		return nil, err
	}
	if wf == nil {
		return nil, fmt.Errorf("%w: %d", domain.ErrWorkflowNotFound, workflowID)
	}

	stepsPtr, err := wm.StepRepo.FindAllByWorkflowID(workflowID)
	if err != nil {
		return nil, err
	}
	entriesPtr, err := wm.HistoryRepo.FindAllByWorkflowID(workflowID)
	if err != nil {
		return nil, err
	}

	steps := *stepsPtr
	entries := *entriesPtr
	if steps == nil {
		steps = []domain.Step{}
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}

	return &models.WorkflowView{
		Workflow: *wf,
		Steps:    steps,
		History:  entries,
		Progress: Progress(wf.Status, reachedStep(wf, steps), len(steps)),
	}, nil
}

// GetLatestViewByDocumentID returns the view of the most recent workflow for
// a document.
func (wm *WorkflowManager) GetLatestViewByDocumentID(documentID string) (*models.WorkflowView, error) {
	wf, err := wm.WorkflowRepo.FindLatestByDocumentID(documentID)
	if err != nil {
		return nil, err
	}
	if wf == nil {
		return nil, fmt.Errorf("%w: document %s", domain.ErrWorkflowNotFound, documentID)
	}
	return wm.GetWorkflowView(wf.ID)
}

// Progress computes the completion percentage from the status, the highest
// step reached and the total step count. It never reads the nullable
// current_step pointer, so it stays defined for terminal workflows:
// completed is always 100, rejected reports the fraction of the step the
// workflow died on.
func Progress(status string, reached int, total int) int {
	if total == 0 {
		return 0
	}
	if status == domain.WorkflowStatusCompleted {
		return 100
	}
	if reached < 0 {
		reached = 0
	}
	if reached > total {
		reached = total
	}
	return reached * 100 / total
}

// reachedStep derives the highest step number the workflow has reached: the
// active step while pending, the last decided step once terminal.
func reachedStep(wf *domain.Workflow, steps []domain.Step) int {
	if wf.CurrentStep.Valid {
		return int(wf.CurrentStep.Int32)
	}
	reached := 0
	for _, s := range steps {
		if s.Status == domain.StepStatusApproved || s.Status == domain.StepStatusRejected {
			if s.StepNumber > reached {
				reached = s.StepNumber
			}
		}
	}
	return reached
}

// notifyAssignee dispatches the step-pending notification without blocking
// the caller. Delivery failures are logged and swallowed; the committed
// transition stands either way.
func (wm *WorkflowManager) notifyAssignee(step domain.Step) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		n := Notification{
			UserID:  step.AssignedTo,
			Kind:    NotificationKindStepPending,
			Message: fmt.Sprintf("Workflow %d awaits your %s (step %d)", step.WorkflowID, step.ActionType, step.StepNumber),
		}
		if err := wm.Notifier.Notify(ctx, n); err != nil {
			slog.Error("Failed to notify assignee", "error", err, "workflowId", step.WorkflowID, "userId", step.AssignedTo)
		}
	}()
}
