package pipeline

import (
	"fmt"
	"strings"

	"github.com/sorawit/datacrew/agent/artifact"
	contractx "github.com/sorawit/datacrew/agent/contract"
)

// MaterializeTask renders a phase's task template against the current
// registry contents: {{artifact:NAME}} becomes the artifact's location,
// {{artifacts:KIND}} a comma-joined list of locations of that kind. Plan
// validation guarantees references resolve, so an unresolved reference
// here means an earlier phase broke its Produces declaration.
func MaterializeTask(phase Phase, reg *artifact.Registry) (contractx.Task, error) {
	instruction, err := renderTemplate(phase.TaskTemplate, reg)
	if err != nil {
		return contractx.Task{}, fmt.Errorf("phase %d: %w", phase.Ordinal, err)
	}

	params := make(map[string]string, len(phase.Params))
	for key, raw := range phase.Params {
		rendered, err := renderTemplate(raw, reg)
		if err != nil {
			return contractx.Task{}, fmt.Errorf("phase %d param %q: %w", phase.Ordinal, key, err)
		}
		params[key] = rendered
	}

	return contractx.Task{Instruction: instruction, Params: params}, nil
}

func renderTemplate(text string, reg *artifact.Registry) (string, error) {
	var firstErr error

	out := artifactRef.ReplaceAllStringFunc(text, func(match string) string {
		name := strings.TrimSpace(artifactRef.FindStringSubmatch(match)[1])
		a, err := reg.Lookup(name)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return match
		}
		return a.Location
	})
	if firstErr != nil {
		return "", firstErr
	}

	out = artifactsRef.ReplaceAllStringFunc(out, func(match string) string {
		kind := contractx.ArtifactKind(strings.TrimSpace(artifactsRef.FindStringSubmatch(match)[1]))
		arts := reg.ByKind(kind)
		locations := make([]string, 0, len(arts))
		for _, a := range arts {
			locations = append(locations, a.Location)
		}
		return strings.Join(locations, ", ")
	})
	return out, nil
}
