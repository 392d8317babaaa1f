package repository

import (
	"database/sql"

	"github.com/docuflow/docuflow/internal/core"
	"github.com/docuflow/docuflow/internal/domain"
)

// StepRepository reads step rows. Mutation happens only inside the workflow
// repository's transactions.
type StepRepository struct {
	db    *sql.DB
	clock core.Clock
}

const STEP_COLUMNS = ` id, workflow_id, step_number, role_required, action_type, assigned_to, status, completed_at `

func NewStepRepository(db *sql.DB, clock core.Clock) *StepRepository {
	return &StepRepository{db: db, clock: clock}
}

// FindAllByWorkflowID returns the steps of a workflow ordered by step_number
// ascending. The template ordering is the sole source of truth for
// sequencing, so callers rely on this order.
func (r *StepRepository) FindAllByWorkflowID(workflowID int64) (*[]domain.Step, error) {
	query := `
		SELECT ` + STEP_COLUMNS + `
		FROM steps
		WHERE workflow_id = ` + placeholder(1) + `
		ORDER BY step_number ASC
	`
	rows, err := r.db.Query(query, workflowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []domain.Step
	for rows.Next() {
		var s domain.Step
		if err := rows.Scan(
			&s.ID,
			&s.WorkflowID,
			&s.StepNumber,
			&s.RoleRequired,
			&s.ActionType,
			&s.AssignedTo,
			&s.Status,
			&s.CompletedAt,
		); err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	return &steps, nil
}

// FindByWorkflowAndNumber fetches one step by its position. Returns (nil, nil) if not found.
func (r *StepRepository) FindByWorkflowAndNumber(workflowID int64, stepNumber int) (*domain.Step, error) {
	query := `
		SELECT ` + STEP_COLUMNS + `
		FROM steps
		WHERE workflow_id = ` + placeholder(1) + ` AND step_number = ` + placeholder(2) + `
		LIMIT 1
	`
	var s domain.Step
	err := r.db.QueryRow(query, workflowID, stepNumber).Scan(
		&s.ID,
		&s.WorkflowID,
		&s.StepNumber,
		&s.RoleRequired,
		&s.ActionType,
		&s.AssignedTo,
		&s.Status,
		&s.CompletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
