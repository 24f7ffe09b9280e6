package member

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/sorawit/datacrew/agent/contract"
	statex "github.com/sorawit/datacrew/agent/state"
)

// DefaultMaxIterations caps the capability loop of one run.
const DefaultMaxIterations = 20

// loopState tracks the per-invocation state machine:
// Idle -> Selecting -> Invoking -> Selecting -> ... -> Done|Exhausted.
type loopState int

const (
	stateIdle loopState = iota
	stateSelecting
	stateInvoking
	stateDone
	stateExhausted
)

// Step is one planned capability invocation. Args is computed lazily from
// the results of earlier steps so a later step can fold prior structured
// output into its input.
type Step struct {
	Capability string
	Args       func(prior []contractx.CapabilityResult) (map[string]any, error)
	Note       string
}

// Playbook derives the ordered capability steps for a task. It is the
// deterministic replacement for model-chosen invocation: same task, same
// frame contents, same steps.
type Playbook func(task contractx.Task) ([]Step, error)

// Member is a bound pipeline role. It may only invoke capabilities in its
// permitted set; anything else is rejected fast, never silently skipped.
type Member struct {
	id            string
	agentType     contractx.AgentType
	invoker       contractx.Invoker
	playbook      Playbook
	allowed       map[string]struct{}
	store         statex.Store
	sessionID     string
	maxIterations int
	now           func() time.Time
}

// Option customizes a Member.
type Option func(*Member)

func WithMaxIterations(n int) Option {
	return func(m *Member) {
		if n > 0 {
			m.maxIterations = n
		}
	}
}

func WithHistory(store statex.Store, sessionID string) Option {
	return func(m *Member) {
		m.store = store
		m.sessionID = strings.TrimSpace(sessionID)
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Member) {
		if now != nil {
			m.now = now
		}
	}
}

// New builds a member bound to a role, its permitted capability names, and
// a playbook.
func New(
	id string,
	agentType contractx.AgentType,
	invoker contractx.Invoker,
	playbook Playbook,
	permitted []string,
	opts ...Option,
) (*Member, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("member id is empty")
	}
	if invoker == nil {
		return nil, fmt.Errorf("capability invoker is required")
	}
	if playbook == nil {
		return nil, fmt.Errorf("playbook is required")
	}

	allowed := make(map[string]struct{}, len(permitted))
	for _, name := range permitted {
		name = strings.TrimSpace(name)
		if name != "" {
			allowed[name] = struct{}{}
		}
	}

	m := &Member{
		id:            id,
		agentType:     agentType,
		invoker:       invoker,
		playbook:      playbook,
		allowed:       allowed,
		maxIterations: DefaultMaxIterations,
		now:           time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m, nil
}

func (m *Member) ID() string { return m.id }

var _ contractx.Agent = (*Member)(nil)

// Run executes the playbook steps for the task, bounded by the iteration
// cap. Capability errors are folded into a failure Result with the error in
// the summary; they are never re-raised past the agent boundary. Exceeding
// the cap yields a partial Result with whatever artifacts were produced.
func (m *Member) Run(ctx context.Context, task contractx.Task) (contractx.Result, error) {
	steps, err := m.playbook(task)
	if err != nil {
		return m.finish(ctx, task, contractx.Result{
			Status:  contractx.StatusFailure,
			Summary: fmt.Sprintf("agent %s rejected task: %v", m.id, err),
		}), nil
	}

	var (
		state     = stateIdle
		artifacts []contractx.Artifact
		prior     []contractx.CapabilityResult
		notes     []string
		invoked   int
	)

	state = stateSelecting
	for _, step := range steps {
		if invoked >= m.maxIterations {
			state = stateExhausted
			break
		}

		if _, ok := m.allowed[step.Capability]; !ok {
			return m.finish(ctx, task, contractx.Result{
				Status:    contractx.StatusFailure,
				Artifacts: artifacts,
				Summary: fmt.Sprintf("%v: capability %s is outside the permitted set of agent %s",
					contractx.ErrInvalidInput, step.Capability, m.id),
			}), nil
		}

		args := map[string]any{}
		if step.Args != nil {
			args, err = step.Args(prior)
			if err != nil {
				return m.finish(ctx, task, contractx.Result{
					Status:    contractx.StatusFailure,
					Artifacts: artifacts,
					Summary:   fmt.Sprintf("agent %s could not prepare %s: %v", m.id, step.Capability, err),
				}), nil
			}
		}

		state = stateInvoking
		res, err := m.invoker.Invoke(ctx, step.Capability, args)
		invoked++
		if err != nil {
			return m.finish(ctx, task, contractx.Result{
				Status:    contractx.StatusFailure,
				Artifacts: artifacts,
				Summary:   fmt.Sprintf("agent %s: %v", m.id, err),
			}), nil
		}
		if res.Error != "" {
			return m.finish(ctx, task, contractx.Result{
				Status:    contractx.StatusFailure,
				Artifacts: artifacts,
				Summary:   fmt.Sprintf("agent %s: capability %s failed: %s", m.id, step.Capability, res.Error),
			}), nil
		}

		prior = append(prior, res)
		artifacts = append(artifacts, res.Artifacts...)
		if note := strings.TrimSpace(step.Note); note != "" {
			notes = append(notes, note)
		}
		state = stateSelecting
	}

	if state != stateExhausted {
		state = stateDone
	}

	result := contractx.Result{
		Status:    contractx.StatusSuccess,
		Artifacts: artifacts,
		Summary:   strings.Join(notes, "; "),
	}
	if state == stateExhausted {
		result.Status = contractx.StatusPartial
		result.Summary = strings.Join(append(notes,
			fmt.Sprintf("stopped after %d capability invocations", m.maxIterations)), "; ")
	}

	return m.finish(ctx, task, result), nil
}

// finish appends the run to the session history before returning the
// result. History write failures are logged, not surfaced: the record is
// an audit trail, not part of the run outcome.
func (m *Member) finish(ctx context.Context, task contractx.Task, res contractx.Result) contractx.Result {
	if m.store == nil || m.sessionID == "" {
		return res
	}
	rec := statex.RunRecord{
		AgentID:     m.id,
		SessionID:   m.sessionID,
		Instruction: task.Instruction,
		Status:      string(res.Status),
		Summary:     res.Summary,
		CreatedAt:   m.now().UTC(),
	}
	if err := m.store.Append(ctx, rec); err != nil {
		log.Warn().Err(err).Str("agent", m.id).Msg("session history append failed")
	}
	return res
}
