package pipeline

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
)

// compileExecuteGraph builds the execution graph from the plan: one node
// per phase chained in ordinal order, bracketed by a begin node and the
// summary node. Sequencing is structural, not advisory.
func (o *Orchestrator) compileExecuteGraph(
	ctx context.Context,
) (compose.Runnable[GraphInput, *FinalSummary], error) {
	graph := compose.NewGraph[GraphInput, *FinalSummary]()

	if err := graph.AddLambdaNode("begin_run",
		compose.InvokableLambda(func(ctx context.Context, in GraphInput) (*runState, error) {
			return &runState{RunID: in.RunID}, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node begin_run: %w", err)
	}

	names := []string{"begin_run"}
	for _, phase := range o.plan.Phases {
		phase := phase
		name := fmt.Sprintf("phase_%d", phase.Ordinal)
		if err := graph.AddLambdaNode(name,
			compose.InvokableLambda(func(ctx context.Context, st *runState) (*runState, error) {
				return o.runPhase(ctx, phase, st)
			}),
		); err != nil {
			return nil, fmt.Errorf("add node %s: %w", name, err)
		}
		names = append(names, name)
	}

	if err := graph.AddLambdaNode("final_summary",
		compose.InvokableLambda(func(ctx context.Context, st *runState) (*FinalSummary, error) {
			return o.buildSummary(st), nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node final_summary: %w", err)
	}
	names = append(names, "final_summary")

	if err := graph.AddEdge(compose.START, names[0]); err != nil {
		return nil, fmt.Errorf("add edge start: %w", err)
	}
	for i := 0; i+1 < len(names); i++ {
		if err := graph.AddEdge(names[i], names[i+1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", names[i], names[i+1], err)
		}
	}
	if err := graph.AddEdge(names[len(names)-1], compose.END); err != nil {
		return nil, fmt.Errorf("add edge end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("pipeline.execute"))
	if err != nil {
		return nil, fmt.Errorf("compile pipeline graph: %w", err)
	}
	return runner, nil
}
