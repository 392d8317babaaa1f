package domain

import "errors"

// Error taxonomy for the approval engine. Controllers map these onto HTTP
// status codes: validation errors are 400, missing entities 404, conflicts
// 409, resolver failures 502.
var (
	ErrUnknownTemplate          = errors.New("unknown document category")
	ErrNoActorForRole           = errors.New("no actor holds the required role")
	ErrAssigneeResolution       = errors.New("assignee resolution failed")
	ErrWorkflowNotFound         = errors.New("workflow not found")
	ErrStepNotFound             = errors.New("step not found")
	ErrWorkflowAlreadyFinalized = errors.New("workflow already finalized")
	ErrInvalidAction            = errors.New("action must be approve or reject")
	ErrConcurrentModification   = errors.New("workflow was modified concurrently")
	ErrWorkflowExists           = errors.New("document already has an active workflow")
	ErrNotStepAssignee          = errors.New("acting user is not the step assignee")
)
