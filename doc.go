// Package stepflow provides the shared pieces of typed, composable
// processing pipelines: the execution context that every step receives,
// the metrics it accumulates, and the error taxonomy pipelines report.
//
// Steps and their combinators live in the
// [github.com/spetersoncode/stepflow/workflow] package; the trace events
// recorded on the context are defined in
// [github.com/spetersoncode/stepflow/event].
//
// # Execution Context
//
// An [ExecutionContext] is created per run and passed by pointer to every
// step. Steps running concurrently share the same pointer:
//
//	ec := stepflow.NewExecutionContext(stepflow.WithLogger(logger))
//	out, err := pipeline.Run(ctx, ec, input)
//	metrics := ec.Snapshot()
//	traces := ec.Traces()
//
// # Errors
//
// Every pipeline failure is an [*Error] with a [ErrorKind]. A checkpoint is
// reported as an error of kind [KindCheckpoint] carrying the step name and a
// structured snapshot of the value that reached it:
//
//	if cp, ok := stepflow.AsCheckpoint(err); ok {
//	    fmt.Println(cp.StepName, cp.Snapshot)
//	}
package stepflow
