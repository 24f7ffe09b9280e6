package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sorawit/datacrew/agent/artifact"
	contractx "github.com/sorawit/datacrew/agent/contract"
)

// scriptedAgent returns one canned result per attempt, last result
// repeating.
type scriptedAgent struct {
	id      string
	results []contractx.Result
	calls   int
}

func (a *scriptedAgent) ID() string { return a.id }

func (a *scriptedAgent) Run(ctx context.Context, task contractx.Task) (contractx.Result, error) {
	i := a.calls
	a.calls++
	if i >= len(a.results) {
		i = len(a.results) - 1
	}
	return a.results[i], nil
}

type fakeCrew map[string]contractx.Agent

func (c fakeCrew) Lookup(id string) (contractx.Agent, error) {
	a, ok := c[id]
	if !ok {
		return nil, fmt.Errorf("unknown agent id %q", id)
	}
	return a, nil
}

func metadataResult(names ...string) contractx.Result {
	arts := make([]contractx.Artifact, 0, len(names))
	for _, n := range names {
		arts = append(arts, contractx.Artifact{Name: n, Kind: contractx.KindMetadata, Location: "mem://" + n})
	}
	return contractx.Result{Status: contractx.StatusSuccess, Artifacts: arts, Summary: "done"}
}

func TestNewRejectsUnresolvableAgent(t *testing.T) {
	t.Parallel()

	_, err := New(twoPhasePlan(), fakeCrew{}, artifact.NewRegistry())
	if !errors.Is(err, contractx.ErrPlanInvalid) {
		t.Fatalf("New() error = %v, want ErrPlanInvalid", err)
	}
}

func TestExecuteRunsPhasesInOrder(t *testing.T) {
	t.Parallel()

	discovery := &scriptedAgent{id: "data-discovery-agent", results: []contractx.Result{
		metadataResult("dataset"),
	}}
	analysis := &scriptedAgent{id: "data-analysis-agent", results: []contractx.Result{
		{
			Status:    contractx.StatusSuccess,
			Artifacts: []contractx.Artifact{{Name: "main_df", Kind: contractx.KindDataframe, Location: "mem://main_df"}},
			Summary:   "profiled",
		},
	}}
	reg := artifact.NewRegistry()

	o, err := New(twoPhasePlan(), fakeCrew{discovery.id: discovery, analysis.id: analysis}, reg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	sum, err := o.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if sum.RunID == "" {
		t.Fatal("summary has no run id")
	}
	if len(sum.Phases) != 2 {
		t.Fatalf("summary has %d phases, want 2", len(sum.Phases))
	}
	for i, ph := range sum.Phases {
		if ph.Ordinal != i || ph.Attempts != 1 || ph.Status != contractx.StatusSuccess {
			t.Fatalf("phase %d summary = %+v", i, ph)
		}
	}

	a, err := reg.Lookup("dataset")
	if err != nil {
		t.Fatalf("Lookup(dataset) error = %v", err)
	}
	if a.Phase != 0 {
		t.Fatalf("dataset registered under phase %d, want 0", a.Phase)
	}
	mainDF, err := reg.Lookup("main_df")
	if err != nil {
		t.Fatalf("Lookup(main_df) error = %v", err)
	}
	if mainDF.Phase != 1 {
		t.Fatalf("main_df registered under phase %d, want 1", mainDF.Phase)
	}
}

func TestExecuteFailsFastAfterRetry(t *testing.T) {
	t.Parallel()

	failing := contractx.Result{Status: contractx.StatusFailure, Summary: "no csv files"}
	discovery := &scriptedAgent{id: "data-discovery-agent", results: []contractx.Result{failing}}
	analysis := &scriptedAgent{id: "data-analysis-agent", results: []contractx.Result{
		metadataResult("main_df"),
	}}
	reg := artifact.NewRegistry()

	o, err := New(twoPhasePlan(), fakeCrew{discovery.id: discovery, analysis.id: analysis}, reg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = o.Execute(context.Background())
	if !errors.Is(err, contractx.ErrPhaseFailed) {
		t.Fatalf("Execute() error = %v, want ErrPhaseFailed", err)
	}
	if discovery.calls != 2 {
		t.Fatalf("failing phase attempted %d times, want exactly 2", discovery.calls)
	}
	if analysis.calls != 0 {
		t.Fatal("later phase ran after a fatal failure")
	}
	if arts := reg.ByPhase(1); len(arts) != 0 {
		t.Fatalf("phase 1 registered %d artifacts despite never running", len(arts))
	}
}

func TestExecuteRetryCompletesPhase(t *testing.T) {
	t.Parallel()

	plan := Plan{Phases: []Phase{
		{
			Ordinal:      0,
			Name:         "visualization",
			AgentID:      "visualization-agent",
			TaskTemplate: "create exactly five charts",
			Requires:     []Requirement{{Kind: contractx.KindImage, Count: 5}},
		},
	}}

	image := func(names ...string) contractx.Result {
		arts := make([]contractx.Artifact, 0, len(names))
		for _, n := range names {
			arts = append(arts, contractx.Artifact{Name: n, Kind: contractx.KindImage, Location: "/plots/" + n + ".svg"})
		}
		return contractx.Result{Status: contractx.StatusSuccess, Artifacts: arts}
	}

	// Four charts on the first attempt: a success status that still
	// misses the requirement, so the phase is retried.
	viz := &scriptedAgent{id: "visualization-agent", results: []contractx.Result{
		image("chart1", "chart2", "chart3", "chart4"),
		image("chart5"),
	}}
	reg := artifact.NewRegistry()

	o, err := New(plan, fakeCrew{viz.id: viz}, reg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	sum, err := o.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if viz.calls != 2 {
		t.Fatalf("phase attempted %d times, want 2", viz.calls)
	}
	if sum.Phases[0].Attempts != 2 {
		t.Fatalf("summary attempts = %d, want 2", sum.Phases[0].Attempts)
	}
	if got := reg.CountKind(0, contractx.KindImage); got != 5 {
		t.Fatalf("registered %d distinct images, want 5", got)
	}
}

func TestExecuteDuplicateArtifactAcrossPhasesIsFatal(t *testing.T) {
	t.Parallel()

	discovery := &scriptedAgent{id: "data-discovery-agent", results: []contractx.Result{
		metadataResult("dataset"),
	}}
	// Phase 1 tries to re-register a name owned by phase 0.
	analysis := &scriptedAgent{id: "data-analysis-agent", results: []contractx.Result{
		{
			Status:    contractx.StatusSuccess,
			Artifacts: []contractx.Artifact{{Name: "dataset", Kind: contractx.KindDataframe, Location: "mem://dataset"}},
		},
	}}
	reg := artifact.NewRegistry()

	o, err := New(twoPhasePlan(), fakeCrew{discovery.id: discovery, analysis.id: analysis}, reg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = o.Execute(context.Background())
	if !errors.Is(err, contractx.ErrPhaseFailed) {
		t.Fatalf("Execute() error = %v, want ErrPhaseFailed", err)
	}
	// Artifacts already registered by phase 0 survive the failed run.
	if _, err := o.Registry().Lookup("dataset"); err != nil {
		t.Fatalf("phase 0 artifact lost after failure: %v", err)
	}
}

func TestExecutePartialStatusCountsWhenComplete(t *testing.T) {
	t.Parallel()

	plan := Plan{Phases: []Phase{
		{
			Ordinal:      0,
			Name:         "discovery",
			AgentID:      "data-discovery-agent",
			TaskTemplate: "scan",
			Requires:     []Requirement{{Kind: contractx.KindMetadata, Count: 1}},
		},
	}}

	partial := metadataResult("dataset")
	partial.Status = contractx.StatusPartial
	discovery := &scriptedAgent{id: "data-discovery-agent", results: []contractx.Result{partial}}

	o, err := New(plan, fakeCrew{discovery.id: discovery}, artifact.NewRegistry())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	sum, err := o.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if sum.Phases[0].Status != contractx.StatusPartial {
		t.Fatalf("phase status = %s, want partial", sum.Phases[0].Status)
	}
	if discovery.calls != 1 {
		t.Fatalf("complete partial phase attempted %d times, want 1", discovery.calls)
	}
}
