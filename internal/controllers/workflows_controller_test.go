package controllers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/docuflow/docuflow/internal/core"
	"github.com/docuflow/docuflow/internal/domain"
	"github.com/docuflow/docuflow/internal/engine"
	"github.com/docuflow/docuflow/internal/models"
)

const testApiKey = "test-api-key"

type MockWorkflowRepo struct {
	CreateWithStepsFunc        func(wf *domain.Workflow, steps []domain.Step) (int64, error)
	FindByIDFunc               func(id int64) (*domain.Workflow, error)
	FindActiveByDocumentIDFunc func(documentID string) (*domain.Workflow, error)
	FindLatestByDocumentIDFunc func(documentID string) (*domain.Workflow, error)
	ApplyDecisionFunc          func(d *domain.Decision) error
}

func (m *MockWorkflowRepo) CreateWithSteps(wf *domain.Workflow, steps []domain.Step) (int64, error) {
	if m.CreateWithStepsFunc != nil {
		return m.CreateWithStepsFunc(wf, steps)
	}
	return 1, nil
}
func (m *MockWorkflowRepo) FindByID(id int64) (*domain.Workflow, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(id)
	}
	return nil, nil
}
func (m *MockWorkflowRepo) FindActiveByDocumentID(documentID string) (*domain.Workflow, error) {
	if m.FindActiveByDocumentIDFunc != nil {
		return m.FindActiveByDocumentIDFunc(documentID)
	}
	return nil, nil
}
func (m *MockWorkflowRepo) FindLatestByDocumentID(documentID string) (*domain.Workflow, error) {
	if m.FindLatestByDocumentIDFunc != nil {
		return m.FindLatestByDocumentIDFunc(documentID)
	}
	return nil, nil
}
func (m *MockWorkflowRepo) ApplyDecision(d *domain.Decision) error {
	if m.ApplyDecisionFunc != nil {
		return m.ApplyDecisionFunc(d)
	}
	return nil
}

type MockStepRepo struct {
	FindAllByWorkflowIDFunc     func(workflowID int64) (*[]domain.Step, error)
	FindByWorkflowAndNumberFunc func(workflowID int64, stepNumber int) (*domain.Step, error)
}

func (m *MockStepRepo) FindAllByWorkflowID(workflowID int64) (*[]domain.Step, error) {
	if m.FindAllByWorkflowIDFunc != nil {
		return m.FindAllByWorkflowIDFunc(workflowID)
	}
	steps := []domain.Step{}
	return &steps, nil
}
func (m *MockStepRepo) FindByWorkflowAndNumber(workflowID int64, stepNumber int) (*domain.Step, error) {
	if m.FindByWorkflowAndNumberFunc != nil {
		return m.FindByWorkflowAndNumberFunc(workflowID, stepNumber)
	}
	return nil, nil
}

type MockHistoryRepo struct {
	FindAllByWorkflowIDFunc func(workflowID int64) (*[]domain.HistoryEntry, error)
}

func (m *MockHistoryRepo) FindAllByWorkflowID(workflowID int64) (*[]domain.HistoryEntry, error) {
	if m.FindAllByWorkflowIDFunc != nil {
		return m.FindAllByWorkflowIDFunc(workflowID)
	}
	entries := []domain.HistoryEntry{}
	return &entries, nil
}

type MockUserRepo struct {
	FindBySessionIDFunc        func(sessionID string, now time.Time) (*domain.User, error)
	FindByApiKeyFunc           func(apiKey string) (*domain.User, error)
	FindAllFunc                func() (*[]domain.User, error)
	SaveFunc                   func(user *domain.User) (int64, error)
	FindByIdFunc               func(id int64) (*domain.User, error)
	DeleteByIdFunc             func(id int64) error
	FindByUsernameFunc         func(username string) (*domain.User, error)
	FindFirstEnabledByRoleFunc func(role string) (*domain.User, error)
	UpdateSessionFunc          func(userID int64, sessionID string, expiry time.Time) error
	ClearSessionFunc           func(sessionID string) error
}

func (m *MockUserRepo) FindBySessionID(sessionID string, now time.Time) (*domain.User, error) {
	if m.FindBySessionIDFunc != nil {
		return m.FindBySessionIDFunc(sessionID, now)
	}
	return nil, nil
}
func (m *MockUserRepo) FindByApiKey(apiKey string) (*domain.User, error) {
	if m.FindByApiKeyFunc != nil {
		return m.FindByApiKeyFunc(apiKey)
	}
	return nil, nil
}
func (m *MockUserRepo) FindAll() (*[]domain.User, error) {
	if m.FindAllFunc != nil {
		return m.FindAllFunc()
	}
	users := []domain.User{}
	return &users, nil
}
func (m *MockUserRepo) Save(user *domain.User) (int64, error) {
	if m.SaveFunc != nil {
		return m.SaveFunc(user)
	}
	return 1, nil
}
func (m *MockUserRepo) FindById(id int64) (*domain.User, error) {
	if m.FindByIdFunc != nil {
		return m.FindByIdFunc(id)
	}
	return nil, nil
}
func (m *MockUserRepo) DeleteById(id int64) error {
	if m.DeleteByIdFunc != nil {
		return m.DeleteByIdFunc(id)
	}
	return nil
}
func (m *MockUserRepo) FindByUsername(username string) (*domain.User, error) {
	if m.FindByUsernameFunc != nil {
		return m.FindByUsernameFunc(username)
	}
	return nil, nil
}
func (m *MockUserRepo) FindFirstEnabledByRole(role string) (*domain.User, error) {
	if m.FindFirstEnabledByRoleFunc != nil {
		return m.FindFirstEnabledByRoleFunc(role)
	}
	return nil, nil
}
func (m *MockUserRepo) UpdateSession(userID int64, sessionID string, expiry time.Time) error {
	if m.UpdateSessionFunc != nil {
		return m.UpdateSessionFunc(userID, sessionID, expiry)
	}
	return nil
}
func (m *MockUserRepo) ClearSessionBySessionID(sessionID string) error {
	if m.ClearSessionFunc != nil {
		return m.ClearSessionFunc(sessionID)
	}
	return nil
}

// apiKeyUserRepo authenticates the shared test key as the given user.
func apiKeyUserRepo(actor *domain.User) *MockUserRepo {
	return &MockUserRepo{
		FindByApiKeyFunc: func(apiKey string) (*domain.User, error) {
			if apiKey == testApiKey {
				return actor, nil
			}
			return nil, nil
		},
	}
}

type staticResolver map[string]int64

func (r staticResolver) Resolve(roleName string) (int64, error) {
	if id, ok := r[roleName]; ok {
		return id, nil
	}
	return 0, domain.ErrNoActorForRole
}

func fullResolver() staticResolver {
	return staticResolver{"manager": 10, "director": 11, "comptabilite": 12, "finance": 13, "direction": 14}
}

func newTestMux(wfRepo engine.WorkflowRepo, stepRepo engine.StepRepo, userRepo engine.UserRepo,
	resolver engine.RoleResolver) *http.ServeMux {
	manager := engine.NewWorkflowManager(wfRepo, stepRepo, &MockHistoryRepo{}, engine.NewTemplateRegistry(),
		resolver, engine.SlogNotifier{}, core.NewRealClock())
	mux := http.NewServeMux()
	NewWorkflowsController(manager, userRepo).RegisterRoutes(mux)
	return mux
}

func authedRequest(method, target, body string) *http.Request {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	r.Header.Set("X-API-Key", testApiKey)
	return r
}

func TestCreateWorkflow_Created(t *testing.T) {
	var createdSteps []domain.Step
	var createdWf *domain.Workflow
	wfRepo := &MockWorkflowRepo{
		CreateWithStepsFunc: func(wf *domain.Workflow, steps []domain.Step) (int64, error) {
			wf.ID = 5
			for i := range steps {
				steps[i].ID = int64(50 + i)
				steps[i].WorkflowID = 5
			}
			createdWf = wf
			createdSteps = steps
			return 5, nil
		},
		FindByIDFunc: func(id int64) (*domain.Workflow, error) { return createdWf, nil },
	}
	stepRepo := &MockStepRepo{
		FindAllByWorkflowIDFunc: func(workflowID int64) (*[]domain.Step, error) { return &createdSteps, nil },
	}
	actor := &domain.User{ID: 1, Username: "alice", Role: "employee"}
	mux := newTestMux(wfRepo, stepRepo, apiKeyUserRepo(actor), fullResolver())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest("POST", "/api/workflows", `{"documentId":"doc-42","type":"demande_conge"}`))

	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var view models.WorkflowView
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if view.Workflow.ID != 5 || view.Workflow.DocumentID != "doc-42" {
		t.Errorf("Unexpected workflow in view: %+v", view.Workflow)
	}
	if len(view.Steps) != 2 {
		t.Fatalf("Expected 2 steps in view, got %d", len(view.Steps))
	}
	if view.Progress != 50 {
		t.Errorf("Expected progress 50, got %d", view.Progress)
	}
	if createdWf.CreatedBy != actor.ID {
		t.Errorf("Expected createdBy %d, got %d", actor.ID, createdWf.CreatedBy)
	}
}

func TestCreateWorkflow_UnknownType(t *testing.T) {
	actor := &domain.User{ID: 1, Username: "alice"}
	mux := newTestMux(&MockWorkflowRepo{}, &MockStepRepo{}, apiKeyUserRepo(actor), fullResolver())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest("POST", "/api/workflows", `{"documentId":"doc-42","type":"nope"}`))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
}

func TestCreateWorkflow_MissingFields(t *testing.T) {
	actor := &domain.User{ID: 1, Username: "alice"}
	mux := newTestMux(&MockWorkflowRepo{}, &MockStepRepo{}, apiKeyUserRepo(actor), fullResolver())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest("POST", "/api/workflows", `{"documentId":"doc-42"}`))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
}

func TestCreateWorkflow_Unauthorized(t *testing.T) {
	mux := newTestMux(&MockWorkflowRepo{}, &MockStepRepo{}, &MockUserRepo{}, fullResolver())

	rec := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/api/workflows", strings.NewReader(`{"documentId":"d","type":"facture"}`))
	mux.ServeHTTP(rec, r)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d", rec.Code)
	}
}

func TestCreateWorkflow_ResolverFailure(t *testing.T) {
	actor := &domain.User{ID: 1, Username: "alice"}
	// No actor for any role
	mux := newTestMux(&MockWorkflowRepo{}, &MockStepRepo{}, apiKeyUserRepo(actor), staticResolver{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest("POST", "/api/workflows", `{"documentId":"doc-42","type":"facture"}`))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("Expected 502, got %d", rec.Code)
	}
}

func TestCreateWorkflow_DuplicateActive(t *testing.T) {
	actor := &domain.User{ID: 1, Username: "alice"}
	wfRepo := &MockWorkflowRepo{
		FindActiveByDocumentIDFunc: func(documentID string) (*domain.Workflow, error) {
			return &domain.Workflow{ID: 2, DocumentID: documentID, Status: domain.WorkflowStatusPending}, nil
		},
	}
	mux := newTestMux(wfRepo, &MockStepRepo{}, apiKeyUserRepo(actor), fullResolver())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest("POST", "/api/workflows", `{"documentId":"doc-42","type":"facture"}`))

	if rec.Code != http.StatusConflict {
		t.Fatalf("Expected 409, got %d", rec.Code)
	}
}

func activeWorkflowFixture() (*MockWorkflowRepo, *MockStepRepo) {
	wf := &domain.Workflow{
		ID:          7,
		DocumentID:  "doc-42",
		Category:    "demande_conge",
		Status:      domain.WorkflowStatusPending,
		CurrentStep: sql.NullInt32{Int32: 1, Valid: true},
	}
	steps := []domain.Step{
		{ID: 100, WorkflowID: 7, StepNumber: 1, RoleRequired: "manager", ActionType: "validation", AssignedTo: 10, Status: domain.StepStatusPending},
		{ID: 101, WorkflowID: 7, StepNumber: 2, RoleRequired: "director", ActionType: "final_approval", AssignedTo: 11, Status: domain.StepStatusWaiting},
	}
	wfRepo := &MockWorkflowRepo{
		FindByIDFunc: func(id int64) (*domain.Workflow, error) {
			if id == 7 {
				return wf, nil
			}
			return nil, nil
		},
		FindLatestByDocumentIDFunc: func(documentID string) (*domain.Workflow, error) {
			if documentID == "doc-42" {
				return wf, nil
			}
			return nil, nil
		},
	}
	stepRepo := &MockStepRepo{
		FindAllByWorkflowIDFunc: func(workflowID int64) (*[]domain.Step, error) { return &steps, nil },
	}
	return wfRepo, stepRepo
}

func TestGetWorkflowById_NotFound(t *testing.T) {
	actor := &domain.User{ID: 1, Username: "alice"}
	mux := newTestMux(&MockWorkflowRepo{}, &MockStepRepo{}, apiKeyUserRepo(actor), fullResolver())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest("GET", "/api/workflows/999", ""))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", rec.Code)
	}
}

func TestGetWorkflowByDocumentId_ReturnsLatest(t *testing.T) {
	wfRepo, stepRepo := activeWorkflowFixture()
	actor := &domain.User{ID: 1, Username: "alice"}
	mux := newTestMux(wfRepo, stepRepo, apiKeyUserRepo(actor), fullResolver())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest("GET", "/api/workflows/byDocumentId/doc-42", ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var view models.WorkflowView
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if view.Workflow.ID != 7 {
		t.Errorf("Expected workflow 7, got %d", view.Workflow.ID)
	}
}

func TestProcessDecision_NotAssignee(t *testing.T) {
	wfRepo, stepRepo := activeWorkflowFixture()
	intruder := &domain.User{ID: 99, Username: "mallory", Role: "finance"}
	mux := newTestMux(wfRepo, stepRepo, apiKeyUserRepo(intruder), fullResolver())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest("POST", "/api/workflows/7/steps/decision", `{"action":"approve"}`))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("Expected 403, got %d", rec.Code)
	}
}

func TestProcessDecision_InvalidAction(t *testing.T) {
	wfRepo, stepRepo := activeWorkflowFixture()
	assignee := &domain.User{ID: 10, Username: "bob", Role: "manager"}
	mux := newTestMux(wfRepo, stepRepo, apiKeyUserRepo(assignee), fullResolver())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest("POST", "/api/workflows/7/steps/decision", `{"action":"escalate"}`))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
}

func TestProcessDecision_FinalizedWorkflow(t *testing.T) {
	wfRepo := &MockWorkflowRepo{
		FindByIDFunc: func(id int64) (*domain.Workflow, error) {
			return &domain.Workflow{ID: 7, Status: domain.WorkflowStatusCompleted}, nil
		},
	}
	assignee := &domain.User{ID: 10, Username: "bob", Role: "manager"}
	mux := newTestMux(wfRepo, &MockStepRepo{}, apiKeyUserRepo(assignee), fullResolver())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest("POST", "/api/workflows/7/steps/decision", `{"action":"approve"}`))

	if rec.Code != http.StatusConflict {
		t.Fatalf("Expected 409, got %d", rec.Code)
	}
}

func TestProcessDecision_LostRace(t *testing.T) {
	wfRepo, stepRepo := activeWorkflowFixture()
	wfRepo.ApplyDecisionFunc = func(d *domain.Decision) error {
		return domain.ErrConcurrentModification
	}
	assignee := &domain.User{ID: 10, Username: "bob", Role: "manager"}
	mux := newTestMux(wfRepo, stepRepo, apiKeyUserRepo(assignee), fullResolver())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest("POST", "/api/workflows/7/steps/decision", `{"action":"approve","comment":"ok"}`))

	if rec.Code != http.StatusConflict {
		t.Fatalf("Expected 409, got %d", rec.Code)
	}
}

func TestGetTemplates(t *testing.T) {
	actor := &domain.User{ID: 1, Username: "alice"}
	mux := newTestMux(&MockWorkflowRepo{}, &MockStepRepo{}, apiKeyUserRepo(actor), fullResolver())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest("GET", "/api/templates", ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var templates map[string][]engine.StepSpec
	if err := json.NewDecoder(rec.Body).Decode(&templates); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(templates) != 3 {
		t.Errorf("Expected 3 built-in templates, got %d", len(templates))
	}
	if len(templates["achat"]) != 3 {
		t.Errorf("Expected 3 steps for achat, got %d", len(templates["achat"]))
	}
}
