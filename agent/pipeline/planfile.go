package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	contractx "github.com/sorawit/datacrew/agent/contract"
)

// LoadPlan reads a plan document from a YAML file. Phase ordinals follow
// document order; the loaded plan is validated before it is returned.
func LoadPlan(path string) (Plan, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Plan{}, fmt.Errorf("read plan file: %w", err)
	}
	return ParsePlan(raw)
}

// ParsePlan decodes and validates a YAML plan document.
func ParsePlan(raw []byte) (Plan, error) {
	var plan Plan
	if err := yaml.Unmarshal(raw, &plan); err != nil {
		return Plan{}, fmt.Errorf("%w: decode plan: %v", contractx.ErrPlanInvalid, err)
	}
	for i := range plan.Phases {
		plan.Phases[i].Ordinal = i
	}
	if err := plan.Validate(); err != nil {
		return Plan{}, err
	}
	return plan, nil
}
