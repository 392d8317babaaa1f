package models

import "github.com/docuflow/docuflow/internal/domain"

type CreateWorkflowRequest struct {
	DocumentID string `json:"documentId"`
	Type       string `json:"type"`
}

type DecisionRequest struct {
	Action  string `json:"action"`
	Comment string `json:"comment"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// WorkflowView is the client-facing assembly of a workflow, its ordered
// steps, its audit history and the computed progress percentage.
type WorkflowView struct {
	Workflow domain.Workflow       `json:"workflow"`
	Steps    []domain.Step         `json:"steps"`
	History  []domain.HistoryEntry `json:"history"`
	Progress int                   `json:"progress"`
}
