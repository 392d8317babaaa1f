package controllers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/docuflow/docuflow/internal/core"
	"github.com/docuflow/docuflow/internal/domain"
	"github.com/docuflow/docuflow/internal/engine"
	"github.com/docuflow/docuflow/internal/models"
	"github.com/docuflow/docuflow/internal/util"
)

// WorkflowsController holds dependencies for workflow HTTP endpoints.
type WorkflowsController struct {
	AuthController
	Manager *engine.WorkflowManager
}

func NewWorkflowsController(manager *engine.WorkflowManager, userRepo engine.UserRepo) *WorkflowsController {
	return &WorkflowsController{Manager: manager, AuthController: AuthController{
		UserRepo: userRepo,
	}}
}

func (c *WorkflowsController) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req models.CreateWorkflowRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	if req.DocumentID == "" || req.Type == "" {
		http.Error(w, "documentId and type are required", http.StatusBadRequest)
		return
	}

	actor := actingUser(r)
	if actor == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	slog.InfoContext(r.Context(), "Creating workflow", "documentId", req.DocumentID, "type", req.Type, "createdBy", actor.ID)
	view, err := c.Manager.StartWorkflow(r.Context(), req.DocumentID, req.Type, actor.ID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	util.WriteJSONResponse(w, http.StatusCreated, view)
}

func (c *WorkflowsController) handleGetWorkflowById(w http.ResponseWriter, r *http.Request) {
	id, ok := workflowIdFromPath(w, r)
	if !ok {
		return
	}
	view, err := c.Manager.GetWorkflowView(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, view)
}

func (c *WorkflowsController) handleGetWorkflowByDocumentId(w http.ResponseWriter, r *http.Request) {
	documentID := r.PathValue("documentId")
	if documentID == "" {
		http.Error(w, "documentId is required", http.StatusBadRequest)
		return
	}
	view, err := c.Manager.GetLatestViewByDocumentID(documentID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, view)
}

func (c *WorkflowsController) handleProcessDecision(w http.ResponseWriter, r *http.Request) {
	id, ok := workflowIdFromPath(w, r)
	if !ok {
		return
	}

	var req models.DecisionRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	actor := actingUser(r)
	if actor == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	view, err := c.Manager.ProcessDecision(r.Context(), id, actor, req.Action, req.Comment)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, view)
}

func (c *WorkflowsController) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := workflowIdFromPath(w, r)
	if !ok {
		return
	}
	view, err := c.Manager.GetWorkflowView(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, view.History)
}

func (c *WorkflowsController) handleGetTemplates(w http.ResponseWriter, r *http.Request) {
	util.WriteJSONResponse(w, http.StatusOK, c.Manager.Registry.All())
}

func workflowIdFromPath(w http.ResponseWriter, r *http.Request) (int64, bool) {
	idStr := r.PathValue("id")
	if idStr == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return 0, false
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		http.Error(w, "id is an integer", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func actingUser(r *http.Request) *domain.User {
	if u, ok := r.Context().Value(core.CtxKeyUser).(*domain.User); ok {
		return u
	}
	return nil
}

// writeEngineError maps the engine's error taxonomy onto HTTP status codes:
// caller mistakes are 400, missing entities 404, conflicts (finalized,
// concurrent, duplicate) 409 and retryable by the caller, resolver
// infrastructure failures 502.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUnknownTemplate), errors.Is(err, domain.ErrInvalidAction):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrNotStepAssignee):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, domain.ErrWorkflowNotFound), errors.Is(err, domain.ErrStepNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrWorkflowAlreadyFinalized),
		errors.Is(err, domain.ErrConcurrentModification),
		errors.Is(err, domain.ErrWorkflowExists):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrAssigneeResolution):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		slog.Error("Unhandled engine error", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
