package contract

import "context"

// Agent is a bound role limited to a capability subset.
// Run is the only public operation: it drives the agent's internal
// capability loop until the task is satisfied, the iteration cap is hit,
// or the task is rejected.
type Agent interface {
	ID() string
	Run(ctx context.Context, task Task) (Result, error)
}

// Registry resolves pipeline agents by identifier.
type Registry interface {
	Lookup(id string) (Agent, error)
}

// Invoker executes a named capability with structured input.
type Invoker interface {
	Invoke(ctx context.Context, name string, args map[string]any) (CapabilityResult, error)
}
