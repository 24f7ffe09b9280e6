package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sorawit/datacrew/agent/artifact"
	contractx "github.com/sorawit/datacrew/agent/contract"
)

// maxAttempts bounds phase execution: the initial attempt plus one retry.
const maxAttempts = 2

// GraphInput starts one pipeline run.
type GraphInput struct {
	RunID string
}

// PhaseSummary is the recorded outcome of one completed phase.
type PhaseSummary struct {
	Ordinal  int                    `json:"ordinal"`
	Name     string                 `json:"name"`
	AgentID  string                 `json:"agent_id"`
	Status   contractx.ResultStatus `json:"status"`
	Attempts int                    `json:"attempts"`
	Summary  string                 `json:"summary"`
}

type runState struct {
	RunID  string
	Phases []PhaseSummary
}

// Orchestrator executes a validated plan strictly sequentially: one phase
// at a time, each phase complete (required artifacts registered under its
// ordinal) before the next starts. A phase gets one retry with the same
// task; a second miss fails the whole run.
type Orchestrator struct {
	plan     Plan
	agents   contractx.Registry
	registry *artifact.Registry

	runner compose.Runnable[GraphInput, *FinalSummary]
}

// New validates the plan, resolves every phase agent, and compiles the
// execution graph. Any plan defect blocks the run before it starts.
func New(plan Plan, agents contractx.Registry, registry *artifact.Registry) (*Orchestrator, error) {
	if agents == nil {
		return nil, errors.New("agent registry is required")
	}
	if registry == nil {
		return nil, errors.New("artifact registry is required")
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	for _, phase := range plan.Phases {
		if _, err := agents.Lookup(phase.AgentID); err != nil {
			return nil, fmt.Errorf("%w: phase %d: %v", contractx.ErrPlanInvalid, phase.Ordinal, err)
		}
	}

	o := &Orchestrator{plan: plan, agents: agents, registry: registry}
	runner, err := o.compileExecuteGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.runner = runner
	return o, nil
}

// Registry exposes the artifact registry for post-run inspection; already
// produced artifacts stay registered even when a run fails.
func (o *Orchestrator) Registry() *artifact.Registry { return o.registry }

// Execute runs every phase in ordinal order and aggregates the final
// summary. Any phase failing after its retry is fatal: later phases never
// run and the error names the failing phase.
func (o *Orchestrator) Execute(ctx context.Context) (*FinalSummary, error) {
	return o.runner.Invoke(ctx, GraphInput{RunID: uuid.NewString()})
}

func (o *Orchestrator) runPhase(ctx context.Context, phase Phase, st *runState) (*runState, error) {
	agent, err := o.agents.Lookup(phase.AgentID)
	if err != nil {
		return nil, fmt.Errorf("%w: phase %d: %v", contractx.ErrPhaseFailed, phase.Ordinal, err)
	}

	// The retry reuses the same materialized task.
	task, err := MaterializeTask(phase, o.registry)
	if err != nil {
		return nil, fmt.Errorf("%w: phase %d (%s): %v", contractx.ErrPhaseFailed, phase.Ordinal, phase.Name, err)
	}

	var res contractx.Result
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		res, err = agent.Run(ctx, task)
		if err != nil {
			res = contractx.Result{
				Status:  contractx.StatusFailure,
				Summary: err.Error(),
			}
		}
		if regErr := o.registerArtifacts(phase, res.Artifacts); regErr != nil {
			res = contractx.Result{
				Status:  contractx.StatusFailure,
				Summary: regErr.Error(),
			}
		}

		if res.Status != contractx.StatusFailure && o.phaseComplete(phase) {
			st.Phases = append(st.Phases, PhaseSummary{
				Ordinal:  phase.Ordinal,
				Name:     phase.Name,
				AgentID:  phase.AgentID,
				Status:   res.Status,
				Attempts: attempt,
				Summary:  res.Summary,
			})
			log.Info().
				Str("run_id", st.RunID).
				Int("phase", phase.Ordinal).
				Str("agent", phase.AgentID).
				Str("status", string(res.Status)).
				Int("attempts", attempt).
				Msg("phase complete")
			return st, nil
		}

		log.Warn().
			Str("run_id", st.RunID).
			Int("phase", phase.Ordinal).
			Str("agent", phase.AgentID).
			Int("attempt", attempt).
			Str("summary", res.Summary).
			Msg("phase incomplete")
	}

	return nil, fmt.Errorf("%w: phase %d (%s) incomplete after %d attempts: %s",
		contractx.ErrPhaseFailed, phase.Ordinal, phase.Name, maxAttempts, res.Summary)
}

// registerArtifacts stamps each artifact with the executing phase and
// records it. Registration happens here, on the phase's behalf, after the
// agent returns; agents never touch the registry.
func (o *Orchestrator) registerArtifacts(phase Phase, arts []contractx.Artifact) error {
	for _, a := range arts {
		a.Phase = phase.Ordinal
		if err := o.registry.Register(a); err != nil {
			return err
		}
	}
	return nil
}

// phaseComplete holds when every required kind is present in the registry
// with a producing phase equal to this phase's ordinal.
func (o *Orchestrator) phaseComplete(phase Phase) bool {
	for _, req := range phase.Requires {
		if o.registry.CountKind(phase.Ordinal, req.Kind) < req.Count {
			return false
		}
	}
	return true
}
