package repository

import (
	"database/sql"
	"time"

	"github.com/docuflow/docuflow/internal/config"
	"github.com/docuflow/docuflow/internal/core"
	"github.com/docuflow/docuflow/internal/domain"

	"log/slog"
)

type WorkflowRepository struct {
	db    *sql.DB
	clock core.Clock
}

const WORKFLOW_COLUMNS = ` id, document_id, category, status, current_step, created_by, created, modified `

func NewWorkflowRepository(db *sql.DB, clock core.Clock) *WorkflowRepository {
	return &WorkflowRepository{db: db, clock: clock}
}

func (r *WorkflowRepository) FindByID(id int64) (*domain.Workflow, error) {
	query := `
		SELECT ` + WORKFLOW_COLUMNS + `
		FROM workflows WHERE id = ` + placeholder(1) + `
	`

	var wf domain.Workflow
	err := r.db.QueryRow(query, id).Scan(
		&wf.ID,
		&wf.DocumentID,
		&wf.Category,
		&wf.Status,
		&wf.CurrentStep,
		&wf.CreatedBy,
		&wf.Created,
		&wf.Modified,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &wf, nil
}

// FindActiveByDocumentID returns the pending workflow for a document, or nil
// when none is active.
func (r *WorkflowRepository) FindActiveByDocumentID(documentID string) (*domain.Workflow, error) {
	query := `
		SELECT ` + WORKFLOW_COLUMNS + `
		FROM workflows
		WHERE document_id = ` + placeholder(1) + ` AND status = 'pending'
		ORDER BY id DESC
		LIMIT 1
	`
	var wf domain.Workflow
	err := r.db.QueryRow(query, documentID).Scan(
		&wf.ID,
		&wf.DocumentID,
		&wf.Category,
		&wf.Status,
		&wf.CurrentStep,
		&wf.CreatedBy,
		&wf.Created,
		&wf.Modified,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &wf, nil
}

// FindLatestByDocumentID returns the most recent workflow for a document
// regardless of status, or nil when the document never had one.
func (r *WorkflowRepository) FindLatestByDocumentID(documentID string) (*domain.Workflow, error) {
	query := `
		SELECT ` + WORKFLOW_COLUMNS + `
		FROM workflows
		WHERE document_id = ` + placeholder(1) + `
		ORDER BY id DESC
		LIMIT 1
	`
	var wf domain.Workflow
	err := r.db.QueryRow(query, documentID).Scan(
		&wf.ID,
		&wf.DocumentID,
		&wf.Category,
		&wf.Status,
		&wf.CurrentStep,
		&wf.CreatedBy,
		&wf.Created,
		&wf.Modified,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &wf, nil
}

// CreateWithSteps inserts the workflow row and all of its step rows in one
// transaction so that a half-created workflow is never observable.
func (r *WorkflowRepository) CreateWithSteps(wf *domain.Workflow, steps []domain.Step) (int64, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, err
	}

	id, err := insertWorkflow(tx, wf)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	wf.ID = id

	for i := range steps {
		steps[i].WorkflowID = id
		stepID, err := insertStep(tx, &steps[i])
		if err != nil {
			tx.Rollback()
			return 0, err
		}
		steps[i].ID = stepID
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// ApplyDecision runs one state transition as a single atomic unit: the
// history append, the decided step update and the workflow row update. The
// workflow update is guarded by the status and current_step values the
// caller read, so a transition that lost a race affects zero rows and the
// whole unit rolls back with ErrConcurrentModification.
func (r *WorkflowRepository) ApplyDecision(d *domain.Decision) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}

	// Audit first: the ledger entry is part of the same unit, a failed
	// append fails the whole transition.
	entry := &domain.HistoryEntry{
		WorkflowID: d.WorkflowID,
		StepID:     d.StepID,
		UserID:     d.ActorID,
		Action:     d.Action,
		Comment:    d.Comment,
		DateTime:   r.clock.Now().UTC(),
	}
	if _, err := insertHistory(tx, entry); err != nil {
		tx.Rollback()
		return err
	}

	stepStatus := domain.StepStatusApproved
	if d.Action == domain.ActionReject {
		stepStatus = domain.StepStatusRejected
	}
	stepQuery := `
		UPDATE steps
		SET status = ` + placeholder(1) + `, completed_at = ` + placeholder(2) + `
		WHERE id = ` + placeholder(3) + ` AND status = 'pending'
	`
	res, err := tx.Exec(stepQuery, stepStatus, formatDateInDatabase(r.clock.Now().UTC()), d.StepID)
	if err != nil {
		tx.Rollback()
		return err
	}
	if n, _ := res.RowsAffected(); n != 1 {
		tx.Rollback()
		return domain.ErrConcurrentModification
	}

	if d.NextStepNumber > 0 {
		activateQuery := `
			UPDATE steps
			SET status = 'pending'
			WHERE workflow_id = ` + placeholder(1) + ` AND step_number = ` + placeholder(2) + ` AND status = 'waiting'
		`
		if _, err := tx.Exec(activateQuery, d.WorkflowID, d.NextStepNumber); err != nil {
			tx.Rollback()
			return err
		}
	}

	var wfQuery string
	var args []interface{}
	if d.Finalize {
		wfQuery = `
			UPDATE workflows
			SET status = ` + placeholder(1) + `, current_step = NULL, modified = ` + nowFunc(r.clock) + `
			WHERE id = ` + placeholder(2) + ` AND status = 'pending' AND current_step = ` + placeholder(3) + `
		`
		args = []interface{}{d.FinalStatus, d.WorkflowID, d.ExpectedStep}
	} else {
		wfQuery = `
			UPDATE workflows
			SET current_step = ` + placeholder(1) + `, modified = ` + nowFunc(r.clock) + `
			WHERE id = ` + placeholder(2) + ` AND status = 'pending' AND current_step = ` + placeholder(3) + `
		`
		args = []interface{}{d.NextStepNumber, d.WorkflowID, d.ExpectedStep}
	}
	res, err = tx.Exec(wfQuery, args...)
	if err != nil {
		tx.Rollback()
		return err
	}
	if n, _ := res.RowsAffected(); n != 1 {
		tx.Rollback()
		return domain.ErrConcurrentModification
	}

	if err := tx.Commit(); err != nil {
		slog.Error("Failed to commit decision", "error", err, "workflowId", d.WorkflowID)
		return err
	}
	return nil
}

func insertWorkflow(tx *sql.Tx, wf *domain.Workflow) (int64, error) {
	base := `INSERT INTO workflows (
		document_id, category, status, current_step, created_by, created, modified
	) VALUES (` + placeholder(1) + `, ` + placeholder(2) + `, ` + placeholder(3) + `, ` + placeholder(4) + `, ` + placeholder(5) + `, ` + placeholder(6) + `, ` + placeholder(7) + `)`

	vals := []interface{}{
		wf.DocumentID,
		wf.Category,
		wf.Status,
		wf.CurrentStep,
		wf.CreatedBy,
		formatDateInDatabase(wf.Created),
		formatDateInDatabase(wf.Modified),
	}
	var id int64
	if supportsReturning() {
		if err := tx.QueryRow(base+" RETURNING id", vals...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}
	res, err := tx.Exec(base, vals...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertStep(tx *sql.Tx, s *domain.Step) (int64, error) {
	base := `INSERT INTO steps (
		workflow_id, step_number, role_required, action_type, assigned_to, status, completed_at
	) VALUES (` + placeholder(1) + `, ` + placeholder(2) + `, ` + placeholder(3) + `, ` + placeholder(4) + `, ` + placeholder(5) + `, ` + placeholder(6) + `, ` + placeholder(7) + `)`

	vals := []interface{}{
		s.WorkflowID,
		s.StepNumber,
		s.RoleRequired,
		s.ActionType,
		s.AssignedTo,
		s.Status,
		formatDateInDatabaseNull(s.CompletedAt),
	}
	var id int64
	if supportsReturning() {
		if err := tx.QueryRow(base+" RETURNING id", vals...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}
	res, err := tx.Exec(base, vals...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertHistory(tx *sql.Tx, e *domain.HistoryEntry) (int64, error) {
	base := `INSERT INTO history (
		workflow_id, step_id, user_id, action, comment, date_time
	) VALUES (` + placeholder(1) + `, ` + placeholder(2) + `, ` + placeholder(3) + `, ` + placeholder(4) + `, ` + placeholder(5) + `, ` + placeholder(6) + `)`

	vals := []interface{}{
		e.WorkflowID,
		e.StepID,
		e.UserID,
		e.Action,
		e.Comment,
		formatDateInDatabase(e.DateTime),
	}
	var id int64
	if supportsReturning() {
		if err := tx.QueryRow(base+" RETURNING id", vals...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}
	res, err := tx.Exec(base, vals...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func formatDateInDatabase(created time.Time) string {
	if config.GetSystemSettingString(config.DATABASE_TYPE) == config.DATABASE_TYPE_SQLLITE {
		return created.UTC().Format("2006-01-02 15:04:05.000")
	}
	if config.GetSystemSettingString(config.DATABASE_TYPE) == config.DATABASE_TYPE_MYSQL {
		return created.UTC().Format("2006-01-02 15:04:05.000000")
	}
	// PostgreSQL supports RFC3339
	return created.UTC().Format(time.RFC3339Nano)
}

func formatDateInDatabaseNull(t sql.NullTime) interface{} {
	if !t.Valid {
		return nil
	}

	if config.GetSystemSettingString(config.DATABASE_TYPE) == config.DATABASE_TYPE_SQLLITE {
		// Format as string for SQLite
		return t.Time.UTC().Format("2006-01-02 15:04:05.000")
	}

	// MySQL also needs string format (without T and Z)
	if config.GetSystemSettingString(config.DATABASE_TYPE) == config.DATABASE_TYPE_MYSQL {
		return t.Time.UTC().Format("2006-01-02 15:04:05.000000")
	}

	// Return time.Time directly for PostgreSQL
	return t.Time
}
