package pipeline

import (
	"fmt"
	"strings"

	contractx "github.com/sorawit/datacrew/agent/contract"
)

// FinalSummary aggregates every phase's free-text summary and lists each
// registered artifact's logical name and location.
type FinalSummary struct {
	RunID     string               `json:"run_id"`
	Phases    []PhaseSummary       `json:"phases"`
	Artifacts []contractx.Artifact `json:"artifacts"`
}

func (o *Orchestrator) buildSummary(st *runState) *FinalSummary {
	return &FinalSummary{
		RunID:     st.RunID,
		Phases:    st.Phases,
		Artifacts: o.registry.All(),
	}
}

// Render formats the summary for the log and the operator.
func (s *FinalSummary) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s complete.\n\n", s.RunID)
	for _, ph := range s.Phases {
		fmt.Fprintf(&b, "Phase %d (%s, %s): %s", ph.Ordinal, ph.Name, ph.AgentID, ph.Status)
		if ph.Attempts > 1 {
			fmt.Fprintf(&b, " after %d attempts", ph.Attempts)
		}
		if ph.Summary != "" {
			fmt.Fprintf(&b, " - %s", ph.Summary)
		}
		b.WriteString("\n")
	}
	if len(s.Artifacts) > 0 {
		b.WriteString("\nArtifacts:\n")
		for _, a := range s.Artifacts {
			fmt.Fprintf(&b, "- %s (%s, phase %d): %s\n", a.Name, a.Kind, a.Phase, a.Location)
		}
	}
	return b.String()
}
