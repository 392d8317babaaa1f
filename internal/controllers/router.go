package controllers

import "net/http"

// RegisterRoutes wires the HTTP routes for this controller.
func (c *WorkflowsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/workflows", c.RequireAuth(c.handleCreateWorkflow))
	mux.HandleFunc("GET /api/workflows/{id}", c.RequireAuth(c.handleGetWorkflowById))
	mux.HandleFunc("GET /api/workflows/{id}/history", c.RequireAuth(c.handleGetHistory))
	mux.HandleFunc("GET /api/workflows/byDocumentId/{documentId}", c.RequireAuth(c.handleGetWorkflowByDocumentId))
	mux.HandleFunc("POST /api/workflows/{id}/steps/decision", c.RequireAuth(c.handleProcessDecision))
	mux.HandleFunc("GET /api/templates", c.RequireAuth(c.handleGetTemplates))
}

func (c *UsersController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/users", c.RequireAuth(c.handleGetUsers))
	mux.HandleFunc("POST /api/users", c.RequireAuth(c.handleCreateUser))
	mux.HandleFunc("GET /api/users/{id}", c.RequireAuth(c.handleGetUserById))
	mux.HandleFunc("DELETE /api/users/{id}", c.RequireAuth(c.handleDeleteUser))
}
