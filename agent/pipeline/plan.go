package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	memberx "github.com/sorawit/datacrew/agent/agents/member"
	contractx "github.com/sorawit/datacrew/agent/contract"
)

// Requirement declares how many artifacts of a kind a phase must register
// to count as complete.
type Requirement struct {
	Kind  contractx.ArtifactKind `yaml:"kind"`
	Count int                    `yaml:"count"`
}

// Phase is one step of the pipeline: one agent, one task template, and the
// artifacts the phase must produce. Templates may reference artifacts of
// strictly earlier phases with {{artifact:NAME}} and {{artifacts:KIND}}.
type Phase struct {
	Ordinal      int               `yaml:"-"`
	Name         string            `yaml:"name"`
	AgentID      string            `yaml:"agent"`
	TaskTemplate string            `yaml:"task"`
	Params       map[string]string `yaml:"params"`
	Produces     []string          `yaml:"produces"`
	Requires     []Requirement     `yaml:"requires"`
}

// Plan is the static ordered phase table.
type Plan struct {
	Phases []Phase `yaml:"phases"`
}

var (
	artifactRef  = regexp.MustCompile(`\{\{artifact:([^}]+)\}\}`)
	artifactsRef = regexp.MustCompile(`\{\{artifacts:([^}]+)\}\}`)
)

var knownKinds = map[contractx.ArtifactKind]struct{}{
	contractx.KindDataframe: {},
	contractx.KindImage:     {},
	contractx.KindReport:    {},
	contractx.KindMetadata:  {},
}

// Validate checks the plan before any phase runs. Dangling artifact
// references and malformed requirements block execution entirely.
func (p Plan) Validate() error {
	if len(p.Phases) == 0 {
		return fmt.Errorf("%w: plan has no phases", contractx.ErrPlanInvalid)
	}

	producedNames := make(map[string]int, 16) // name -> producing ordinal
	earlierKinds := make(map[contractx.ArtifactKind]struct{}, 4)

	for i, phase := range p.Phases {
		if phase.Ordinal != i {
			return fmt.Errorf("%w: phase %q has ordinal %d, want %d",
				contractx.ErrPlanInvalid, phase.Name, phase.Ordinal, i)
		}
		if strings.TrimSpace(phase.AgentID) == "" {
			return fmt.Errorf("%w: phase %d has no agent", contractx.ErrPlanInvalid, i)
		}
		if strings.TrimSpace(phase.TaskTemplate) == "" {
			return fmt.Errorf("%w: phase %d has no task template", contractx.ErrPlanInvalid, i)
		}
		if len(phase.Requires) == 0 {
			return fmt.Errorf("%w: phase %d declares no required artifacts", contractx.ErrPlanInvalid, i)
		}
		for _, req := range phase.Requires {
			if _, ok := knownKinds[req.Kind]; !ok {
				return fmt.Errorf("%w: phase %d requires unknown kind %q", contractx.ErrPlanInvalid, i, req.Kind)
			}
			if req.Count < 1 {
				return fmt.Errorf("%w: phase %d requires kind %s with count %d",
					contractx.ErrPlanInvalid, i, req.Kind, req.Count)
			}
		}

		for _, text := range templateTexts(phase) {
			for _, m := range artifactRef.FindAllStringSubmatch(text, -1) {
				name := strings.TrimSpace(m[1])
				if _, ok := producedNames[name]; !ok {
					return fmt.Errorf("%w: phase %d references artifact %q not produced by any earlier phase",
						contractx.ErrPlanInvalid, i, name)
				}
			}
			for _, m := range artifactsRef.FindAllStringSubmatch(text, -1) {
				kind := contractx.ArtifactKind(strings.TrimSpace(m[1]))
				if _, ok := knownKinds[kind]; !ok {
					return fmt.Errorf("%w: phase %d references unknown kind %q", contractx.ErrPlanInvalid, i, kind)
				}
				if _, ok := earlierKinds[kind]; !ok {
					return fmt.Errorf("%w: phase %d references kind %q not required of any earlier phase",
						contractx.ErrPlanInvalid, i, kind)
				}
			}
		}

		for _, name := range phase.Produces {
			name = strings.TrimSpace(name)
			if name == "" {
				return fmt.Errorf("%w: phase %d declares an empty artifact name", contractx.ErrPlanInvalid, i)
			}
			if owner, ok := producedNames[name]; ok {
				return fmt.Errorf("%w: artifact %q declared by phases %d and %d",
					contractx.ErrPlanInvalid, name, owner, i)
			}
			producedNames[name] = i
		}
		for _, req := range phase.Requires {
			earlierKinds[req.Kind] = struct{}{}
		}
	}
	return nil
}

func templateTexts(phase Phase) []string {
	texts := []string{phase.TaskTemplate}
	for _, v := range phase.Params {
		texts = append(texts, v)
	}
	return texts
}

// DefaultPlan is the canonical five-phase pipeline: discovery, analysis,
// statistics, visualization (five charts), report.
func DefaultPlan() Plan {
	return Plan{Phases: []Phase{
		{
			Ordinal:      0,
			Name:         "discovery",
			AgentID:      memberx.AgentDiscovery,
			TaskTemplate: "Scan the data directory, list every CSV file with size and modification time, and select the primary dataset.",
			Params:       map[string]string{"select": "dataset"},
			Produces:     []string{"files", "dataset"},
			Requires:     []Requirement{{Kind: contractx.KindMetadata, Count: 2}},
		},
		{
			Ordinal:      1,
			Name:         "analysis",
			AgentID:      memberx.AgentAnalysis,
			TaskTemplate: "Load {{artifact:dataset}} into frame main_df and profile its shape, column types, and descriptive statistics.",
			Params: map[string]string{
				"csv":   "{{artifact:dataset}}",
				"frame": "main_df",
			},
			Produces: []string{"main_df"},
			Requires: []Requirement{{Kind: contractx.KindDataframe, Count: 1}},
		},
		{
			Ordinal:      2,
			Name:         "statistics",
			AgentID:      memberx.AgentStatistics,
			TaskTemplate: "Compute the correlation matrix and value counts for frame main_df and persist the digest.",
			Params: map[string]string{
				"frame":    "main_df",
				"artifact": "correlations",
			},
			Produces: []string{"correlations"},
			Requires: []Requirement{{Kind: contractx.KindMetadata, Count: 1}},
		},
		{
			Ordinal:      3,
			Name:         "visualization",
			AgentID:      memberx.AgentVisualization,
			TaskTemplate: "Create exactly five charts from frame main_df under the plots directory.",
			Params:       map[string]string{"frame": "main_df"},
			Requires:     []Requirement{{Kind: contractx.KindImage, Count: 5}},
		},
		{
			Ordinal:      4,
			Name:         "report",
			AgentID:      memberx.AgentReport,
			TaskTemplate: "Write the markdown analysis report for frame main_df, listing the generated charts.",
			Params: map[string]string{
				"frame":    "main_df",
				"charts":   "{{artifacts:image-file}}",
				"artifact": "report",
			},
			Produces: []string{"report"},
			Requires: []Requirement{{Kind: contractx.KindReport, Count: 1}},
		},
	}}
}
