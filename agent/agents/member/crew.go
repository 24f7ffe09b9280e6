package member

import (
	"fmt"
	"strings"
	"time"

	capabilityx "github.com/sorawit/datacrew/agent/capability"
	contractx "github.com/sorawit/datacrew/agent/contract"
	statex "github.com/sorawit/datacrew/agent/state"
)

// Crew holds the five pipeline members keyed by agent id.
type Crew struct {
	members map[string]contractx.Agent
}

var _ contractx.Registry = (*Crew)(nil)

// CrewConfig carries the per-run wiring shared by all members.
type CrewConfig struct {
	SessionID     string
	MaxIterations int
	Store         statex.Store
	Now           func() time.Time
}

// Agent ids mirror the pipeline roles.
const (
	AgentDiscovery     = "data-discovery-agent"
	AgentAnalysis      = "data-analysis-agent"
	AgentStatistics    = "statistical-agent"
	AgentVisualization = "visualization-agent"
	AgentReport        = "report-agent"
)

// NewCrew builds the members with their role-bound capability sets and
// deterministic playbooks.
func NewCrew(catalog *capabilityx.Catalog, frames *capabilityx.Frames, cfg CrewConfig) (*Crew, error) {
	if catalog == nil {
		return nil, fmt.Errorf("capability catalog is required")
	}
	if frames == nil {
		return nil, fmt.Errorf("frame store is required")
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	opts := []Option{WithClock(now)}
	if cfg.MaxIterations > 0 {
		opts = append(opts, WithMaxIterations(cfg.MaxIterations))
	}
	if cfg.Store != nil && strings.TrimSpace(cfg.SessionID) != "" {
		opts = append(opts, WithHistory(cfg.Store, cfg.SessionID))
	}

	specs := []struct {
		id        string
		agentType contractx.AgentType
		playbook  Playbook
	}{
		{AgentDiscovery, contractx.AgentTypeDiscovery, DiscoveryPlaybook()},
		{AgentAnalysis, contractx.AgentTypeAnalysis, AnalysisPlaybook()},
		{AgentStatistics, contractx.AgentTypeStatistics, StatisticsPlaybook(frames)},
		{AgentVisualization, contractx.AgentTypeVisualization, VisualizationPlaybook(frames)},
		{AgentReport, contractx.AgentTypeReport, ReportPlaybook(now)},
	}

	crew := &Crew{members: make(map[string]contractx.Agent, len(specs))}
	for _, spec := range specs {
		m, err := New(spec.id, spec.agentType, catalog, spec.playbook,
			capabilityx.ForAgent(spec.agentType), opts...)
		if err != nil {
			return nil, fmt.Errorf("build agent %s: %w", spec.id, err)
		}
		crew.members[spec.id] = m
	}
	return crew, nil
}

// Lookup resolves a member by agent id.
func (c *Crew) Lookup(id string) (contractx.Agent, error) {
	m, ok := c.members[strings.TrimSpace(id)]
	if !ok {
		return nil, fmt.Errorf("unknown agent id %q", id)
	}
	return m, nil
}
