package contract

import "errors"

// Capability errors. The owning agent folds these into a failure Result;
// they never cross the agent boundary as Go errors.
var (
	ErrCapabilityNotFound = errors.New("capability not found")
	ErrInvalidInput       = errors.New("capability input invalid")
	ErrExecutionFailed    = errors.New("capability execution failed")
)

// Orchestration errors are fatal to the run.
var (
	ErrPhaseFailed = errors.New("phase failed")
	ErrPlanInvalid = errors.New("plan validation failed")
)

// Registry errors.
var (
	ErrDuplicateArtifact = errors.New("artifact already registered by another phase")
	ErrArtifactNotFound  = errors.New("artifact not found")
)
