package capability

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	contractx "github.com/sorawit/datacrew/agent/contract"
)

func testCatalog(t *testing.T) (*Catalog, Deps) {
	t.Helper()

	base := t.TempDir()
	deps := Deps{
		DataDir:  filepath.Join(base, "data"),
		PlotsDir: filepath.Join(base, "plots"),
		BaseDir:  base,
		Frames:   NewFrames(),
	}
	if err := os.MkdirAll(deps.DataDir, 0o755); err != nil {
		t.Fatalf("mkdir data: %v", err)
	}

	c, err := NewCatalog(deps)
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}
	return c, deps
}

func TestInvokeUnknownCapability(t *testing.T) {
	t.Parallel()

	c, _ := testCatalog(t)
	_, err := c.Invoke(context.Background(), "chart.pie", nil)
	if !errors.Is(err, contractx.ErrCapabilityNotFound) {
		t.Fatalf("Invoke() error = %v, want ErrCapabilityNotFound", err)
	}
}

func TestInvokeMissingRequiredArg(t *testing.T) {
	t.Parallel()

	c, _ := testCatalog(t)
	_, err := c.Invoke(context.Background(), CapFrameInfo, map[string]any{})
	if !errors.Is(err, contractx.ErrInvalidInput) {
		t.Fatalf("Invoke() error = %v, want ErrInvalidInput", err)
	}
}

func TestInvokeWrongArgType(t *testing.T) {
	t.Parallel()

	c, _ := testCatalog(t)
	_, err := c.Invoke(context.Background(), CapFrameInfo, map[string]any{"frame": 42})
	if !errors.Is(err, contractx.ErrInvalidInput) {
		t.Fatalf("Invoke() error = %v, want ErrInvalidInput", err)
	}
}

func TestInvokeUnknownArgRejected(t *testing.T) {
	t.Parallel()

	c, _ := testCatalog(t)
	_, err := c.Invoke(context.Background(), CapFrameInfo, map[string]any{
		"frame":   "main_df",
		"mystery": "x",
	})
	if !errors.Is(err, contractx.ErrInvalidInput) {
		t.Fatalf("Invoke() error = %v, want ErrInvalidInput", err)
	}
}

func TestInvokeRecoversHandlerPanic(t *testing.T) {
	t.Parallel()

	c, _ := testCatalog(t)
	err := c.add(Info{Name: "test.panic"}, func(ctx context.Context, args map[string]any) (contractx.CapabilityResult, error) {
		panic("boom")
	})
	if err != nil {
		t.Fatalf("add() error = %v", err)
	}

	_, err = c.Invoke(context.Background(), "test.panic", nil)
	if !errors.Is(err, contractx.ErrExecutionFailed) {
		t.Fatalf("Invoke() error = %v, want ErrExecutionFailed", err)
	}
}

func TestForAgentKeepsRolesSeparate(t *testing.T) {
	t.Parallel()

	statistics := ForAgent(contractx.AgentTypeStatistics)
	for _, name := range statistics {
		if name == CapChartHistogram || name == CapChartBar {
			t.Fatalf("statistics role must not hold chart capability %s", name)
		}
	}

	discovery := ForAgent(contractx.AgentTypeDiscovery)
	for _, name := range discovery {
		if name == CapFrameFromCSV {
			t.Fatal("discovery role must not hold frame loading")
		}
	}

	if names := ForAgent(contractx.AgentType("unknown")); names != nil {
		t.Fatalf("ForAgent(unknown) = %v, want nil", names)
	}
}

func TestForAgentNamesAreRegistered(t *testing.T) {
	t.Parallel()

	c, _ := testCatalog(t)
	for _, agentType := range []contractx.AgentType{
		contractx.AgentTypeDiscovery,
		contractx.AgentTypeAnalysis,
		contractx.AgentTypeStatistics,
		contractx.AgentTypeVisualization,
		contractx.AgentTypeReport,
	} {
		for _, name := range ForAgent(agentType) {
			if _, ok := c.Describe(name); !ok {
				t.Fatalf("role %s lists unregistered capability %s", agentType, name)
			}
		}
	}
}

func TestPureCapabilitiesDeclaredPure(t *testing.T) {
	t.Parallel()

	c, _ := testCatalog(t)
	for name, want := range map[string]contractx.SideEffect{
		CapFrameInfo:      contractx.SideEffectPure,
		CapChartHistogram: contractx.SideEffectWrite,
		CapFileWrite:      contractx.SideEffectWrite,
	} {
		info, ok := c.Describe(name)
		if !ok {
			t.Fatalf("capability %s not registered", name)
		}
		if info.SideEffect != want {
			t.Fatalf("capability %s side effect = %s, want %s", name, info.SideEffect, want)
		}
	}
}
