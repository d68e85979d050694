// Package workflow provides typed, composable steps for building processing
// pipelines.
//
// Every building block implements [Step], so combinators nest freely:
//   - Then, Sequence: sequential execution, short-circuiting on the first error
//   - Tuple: two steps over the same input
//   - Map, Tap: transform or observe a step's output
//   - Branch: choose one of two steps with a predicate
//   - ForEach, Batch: sequential slice processing, whole or in fixed-size chunks
//   - ParallelMap: concurrent fan-out with positional results
//   - Reduce: aggregate a slice into one value
//   - Checkpoint: pause for human review
//   - Instrument: trace events, metrics and spans around any step
//
// All steps of a run share one [stepflow.ExecutionContext], which collects
// metrics and the trace log, including across ParallelMap goroutines.
//
// # Basic Usage
//
//	double := workflow.NewFunc("double", func(_ context.Context, x int) (int, error) {
//	    return x * 2, nil
//	})
//	addTen := workflow.NewFunc("add_ten", func(_ context.Context, x int) (int, error) {
//	    return x + 10, nil
//	})
//
//	wf := workflow.New(workflow.Then(double, addTen))
//	out, metrics, err := wf.Run(ctx, 5) // out == 20, metrics.StepsCompleted == 1
//
// # Checkpoints
//
// A checkpoint stops the pipeline with an error carrying a snapshot of the
// value under review:
//
//	review := workflow.NewConditionalCheckpoint("Review", func(s string) bool {
//	    return len(s) > 2000
//	})
//	_, _, err := workflow.New(workflow.Then(summarize, review)).Run(ctx, doc)
//	if cp, ok := stepflow.AsCheckpoint(err); ok {
//	    // inspect cp.Snapshot, then run the remaining steps yourself
//	}
//
// # Stateful Steps
//
// A [StateStep] threads explicit state through each call. [NewAdapter] keeps
// that state between runs and exposes the step as a plain [Step]:
//
//	counter := workflow.NewAdapter(workflow.NewStateFunc("count",
//	    func(_ context.Context, _ *stepflow.ExecutionContext, n int, _ string) (int, int, error) {
//	        return n, n + 1, nil
//	    }))
//
// # Dynamic Dispatch
//
// [Runner] and [Registry] erase types so workflows can be invoked by name
// with JSON input, as the MCP and HTTP front ends do.
package workflow
