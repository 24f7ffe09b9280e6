package capability

import (
	"context"
	"fmt"
	"sort"
	"strings"

	contractx "github.com/sorawit/datacrew/agent/contract"
)

// Param describes one input field of a capability.
type Param struct {
	Type     string // "string" or "number"
	Desc     string
	Required bool
}

// Info is the registration record of one capability. Identity is the name;
// registered once and never mutated.
type Info struct {
	Name       string
	Desc       string
	SideEffect contractx.SideEffect
	Params     map[string]Param
}

type handler func(ctx context.Context, args map[string]any) (contractx.CapabilityResult, error)

type entry struct {
	info Info
	fn   handler
}

// Catalog holds every registered capability and validates structured input
// against the declared param schema before dispatch.
type Catalog struct {
	entries map[string]entry
}

// Deps are the external resources concrete capabilities close over.
// A pure capability receives no directory handle, so it cannot write.
type Deps struct {
	DataDir  string
	PlotsDir string
	BaseDir  string
	Frames   *Frames
	Narrator Narrator
}

// NewCatalog registers the full capability set for the pipeline.
func NewCatalog(deps Deps) (*Catalog, error) {
	if deps.Frames == nil {
		return nil, fmt.Errorf("frame store is required")
	}

	c := &Catalog{entries: make(map[string]entry, 16)}

	for _, reg := range []func(*Catalog, Deps) error{
		registerCSV,
		registerFrame,
		registerChart,
		registerFile,
		registerNarrative,
	} {
		if err := reg(c, deps); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) add(info Info, fn handler) error {
	name := strings.TrimSpace(info.Name)
	if name == "" {
		return fmt.Errorf("capability name is empty")
	}
	if _, ok := c.entries[name]; ok {
		return fmt.Errorf("capability %s registered twice", name)
	}
	c.entries[name] = entry{info: info, fn: fn}
	return nil
}

// Describe returns the registration record for a capability name.
func (c *Catalog) Describe(name string) (Info, bool) {
	e, ok := c.entries[name]
	return e.info, ok
}

// Names lists all registered capability names in sorted order.
func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.entries))
	for name := range c.entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Invoke executes a capability by name after validating args against its
// declared schema. Unknown name is ErrCapabilityNotFound, a schema mismatch
// is ErrInvalidInput, and an underlying failure or handler panic is
// ErrExecutionFailed.
func (c *Catalog) Invoke(ctx context.Context, name string, args map[string]any) (out contractx.CapabilityResult, err error) {
	e, ok := c.entries[strings.TrimSpace(name)]
	if !ok {
		return contractx.CapabilityResult{}, fmt.Errorf("%w: %s", contractx.ErrCapabilityNotFound, name)
	}
	if err := validateArgs(e.info, args); err != nil {
		return contractx.CapabilityResult{}, err
	}

	defer func() {
		if r := recover(); r != nil {
			out = contractx.CapabilityResult{}
			err = fmt.Errorf("%w: %s: panic: %v", contractx.ErrExecutionFailed, e.info.Name, r)
		}
	}()
	out, err = e.fn(ctx, args)
	if err != nil {
		return contractx.CapabilityResult{}, fmt.Errorf("%w: %s: %v", contractx.ErrExecutionFailed, e.info.Name, err)
	}
	out.Capability = e.info.Name
	return out, nil
}

var _ contractx.Invoker = (*Catalog)(nil)

func validateArgs(info Info, args map[string]any) error {
	for key, p := range info.Params {
		raw, ok := args[key]
		if !ok {
			if p.Required {
				return fmt.Errorf("%w: %s: missing required arg %q", contractx.ErrInvalidInput, info.Name, key)
			}
			continue
		}
		switch p.Type {
		case "string":
			if _, ok := raw.(string); !ok {
				return fmt.Errorf("%w: %s: arg %q must be a string", contractx.ErrInvalidInput, info.Name, key)
			}
		case "number":
			switch raw.(type) {
			case float64, float32, int, int64:
			default:
				return fmt.Errorf("%w: %s: arg %q must be a number", contractx.ErrInvalidInput, info.Name, key)
			}
		}
	}
	for key := range args {
		if _, ok := info.Params[key]; !ok {
			return fmt.Errorf("%w: %s: unknown arg %q", contractx.ErrInvalidInput, info.Name, key)
		}
	}
	return nil
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return strings.TrimSpace(v)
}

// ForAgent returns the capability names a role is permitted to invoke.
// The split mirrors the pipeline's hard role separation: the statistics
// role never sees a chart capability, and only the report role may call
// the narrative generator.
func ForAgent(agentType contractx.AgentType) []string {
	switch agentType {
	case contractx.AgentTypeDiscovery:
		return []string{CapCSVListFiles, CapFileWrite}
	case contractx.AgentTypeAnalysis:
		return []string{
			CapCSVListFiles,
			CapFrameFromCSV,
			CapFrameInfo,
			CapFrameColumnStatistics,
			CapFileWrite,
		}
	case contractx.AgentTypeStatistics:
		return []string{
			CapFrameInfo,
			CapFrameColumnStatistics,
			CapFrameCorrelationMatrix,
			CapFrameValueCounts,
			CapFileWrite,
		}
	case contractx.AgentTypeVisualization:
		return []string{
			CapFrameInfo,
			CapFrameValueCounts,
			CapChartHistogram,
			CapChartBar,
			CapChartScatter,
			CapChartBox,
			CapFileWrite,
		}
	case contractx.AgentTypeReport:
		return []string{
			CapFrameInfo,
			CapFrameColumnStatistics,
			CapFrameCorrelationMatrix,
			CapReportNarrative,
			CapFileWrite,
		}
	default:
		return nil
	}
}
