package capability

import (
	"context"
	"strings"

	contractx "github.com/sorawit/datacrew/agent/contract"
)

const CapReportNarrative = "report.narrative"

// Narrator turns a plain findings digest into report prose. The engine
// never inspects the returned text; a nil Narrator or any generation error
// falls back to the digest itself.
type Narrator interface {
	Narrate(ctx context.Context, findings string) (string, error)
}

func registerNarrative(c *Catalog, deps Deps) error {
	return c.add(Info{
		Name:       CapReportNarrative,
		Desc:       "Phrase a findings digest as report prose.",
		SideEffect: contractx.SideEffectPure,
		Params: map[string]Param{
			"findings": {Type: "string", Desc: "Plain-text findings digest", Required: true},
		},
	}, func(ctx context.Context, args map[string]any) (contractx.CapabilityResult, error) {
		findings := stringArg(args, "findings")
		text := findings
		if deps.Narrator != nil {
			generated, err := deps.Narrator.Narrate(ctx, findings)
			if err == nil && strings.TrimSpace(generated) != "" {
				text = strings.TrimSpace(generated)
			}
		}
		return contractx.CapabilityResult{
			Output: map[string]any{"text": text},
		}, nil
	})
}
