package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/docuflow/docuflow/internal/config"
	"github.com/docuflow/docuflow/internal/domain"
)

// StepSpec is one position in a category template: which role decides and
// what kind of decision it is.
type StepSpec struct {
	StepNumber   int    `json:"stepNumber"`
	RoleRequired string `json:"roleRequired"`
	ActionType   string `json:"actionType"`
}

// TemplateRegistry maps a document category to its ordered step specs. It is
// loaded once at boot and immutable afterwards; new categories are data, not
// code changes.
type TemplateRegistry struct {
	templates map[string][]StepSpec
}

func builtinTemplates() map[string][]StepSpec {
	return map[string][]StepSpec{
		"demande_conge": {
			{StepNumber: 1, RoleRequired: "manager", ActionType: "validation"},
			{StepNumber: 2, RoleRequired: "director", ActionType: "final_approval"},
		},
		"facture": {
			{StepNumber: 1, RoleRequired: "comptabilite", ActionType: "verification"},
			{StepNumber: 2, RoleRequired: "finance", ActionType: "paiement"},
		},
		"achat": {
			{StepNumber: 1, RoleRequired: "manager", ActionType: "validation"},
			{StepNumber: 2, RoleRequired: "direction", ActionType: "approbation"},
			{StepNumber: 3, RoleRequired: "finance", ActionType: "paiement"},
		},
	}
}

// NewTemplateRegistry returns a registry holding the built-in templates.
func NewTemplateRegistry() *TemplateRegistry {
	return &TemplateRegistry{templates: builtinTemplates()}
}

// LoadTemplateRegistry builds the registry from DFLOW_TEMPLATES_FILE when
// set, otherwise from the built-ins. The file holds a JSON object of
// category to step spec list.
func LoadTemplateRegistry() (*TemplateRegistry, error) {
	path := config.GetSystemSettingString(config.TEMPLATES_FILE)
	if path == "" {
		return NewTemplateRegistry(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading templates file %s: %w", path, err)
	}
	var templates map[string][]StepSpec
	if err := json.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("parsing templates file %s: %w", path, err)
	}
	if err := validateTemplates(templates); err != nil {
		return nil, fmt.Errorf("invalid templates file %s: %w", path, err)
	}
	return &TemplateRegistry{templates: templates}, nil
}

// validateTemplates enforces the ordering contract: step numbers strictly
// increasing, contiguous, starting at 1.
func validateTemplates(templates map[string][]StepSpec) error {
	for category, specs := range templates {
		if len(specs) == 0 {
			return fmt.Errorf("category %q has no steps", category)
		}
		for i, spec := range specs {
			if spec.StepNumber != i+1 {
				return fmt.Errorf("category %q: step at position %d has number %d, want %d", category, i, spec.StepNumber, i+1)
			}
			if spec.RoleRequired == "" {
				return fmt.Errorf("category %q step %d: roleRequired is required", category, spec.StepNumber)
			}
			if spec.ActionType == "" {
				return fmt.Errorf("category %q step %d: actionType is required", category, spec.StepNumber)
			}
		}
	}
	return nil
}

// Lookup returns the ordered step specs for a category. The returned slice
// is a copy, callers may not mutate registry state.
func (r *TemplateRegistry) Lookup(category string) ([]StepSpec, error) {
	specs, ok := r.templates[category]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownTemplate, category)
	}
	out := make([]StepSpec, len(specs))
	copy(out, specs)
	return out, nil
}

// Categories lists the known categories sorted by name.
func (r *TemplateRegistry) Categories() []string {
	out := make([]string, 0, len(r.templates))
	for category := range r.templates {
		out = append(out, category)
	}
	sort.Strings(out)
	return out
}

// All returns a copy of every template, keyed by category.
func (r *TemplateRegistry) All() map[string][]StepSpec {
	out := make(map[string][]StepSpec, len(r.templates))
	for category, specs := range r.templates {
		cp := make([]StepSpec, len(specs))
		copy(cp, specs)
		out[category] = cp
	}
	return out
}
