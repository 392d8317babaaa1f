package repository

import (
	"database/sql"

	"github.com/docuflow/docuflow/internal/core"
	"github.com/docuflow/docuflow/internal/domain"
)

// HistoryRepository reads the append-only decision ledger. Entries are
// written exclusively inside the decision transaction and never updated or
// deleted afterwards.
type HistoryRepository struct {
	db    *sql.DB
	clock core.Clock
}

func NewHistoryRepository(db *sql.DB, clock core.Clock) *HistoryRepository {
	return &HistoryRepository{db: db, clock: clock}
}

// FindAllByWorkflowID returns all entries for a workflow in chronological
// order, id as tiebreak for entries sharing a timestamp.
func (r *HistoryRepository) FindAllByWorkflowID(workflowID int64) (*[]domain.HistoryEntry, error) {
	query := `
		SELECT id, workflow_id, step_id, user_id, action, comment, date_time
		FROM history
		WHERE workflow_id = ` + placeholder(1) + `
		ORDER BY date_time ASC, id ASC
	`
	rows, err := r.db.Query(query, workflowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		var e domain.HistoryEntry
		if err := rows.Scan(
			&e.ID,
			&e.WorkflowID,
			&e.StepID,
			&e.UserID,
			&e.Action,
			&e.Comment,
			&e.DateTime,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return &entries, nil
}
