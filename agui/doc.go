// Package agui integrates stepflow workflows with the AG-UI protocol.
//
// AG-UI (Agent-User Interface) is an open, lightweight, event-based protocol that
// standardizes how AI agents connect to user-facing applications. This package
// maps stepflow trace entries to AG-UI events so that AG-UI-compatible
// frontends can follow a workflow as it runs.
//
// # Event Mapping
//
//   - StepStart → STEP_STARTED
//   - StepEnd → STEP_FINISHED
//   - Artifact, Error → no event
//
// A run is framed by RUN_STARTED and either RUN_FINISHED or RUN_ERROR. A run
// that stops at a checkpoint ends with RUN_FINISHED.
//
// # Usage
//
// Map a finished run:
//
//	res, err := runner.Run(ctx, input)
//	for _, ev := range agui.NewMapper(threadID, runID).MapRun(res, err) {
//	    writeEvent(ev)
//	}
//
// Or stream events while the workflow executes:
//
//	mapper := agui.NewMapper(threadID, runID)
//	res, err := mapper.Run(ctx, runner, input, writeEvent)
//
// The package does NOT provide HTTP handlers or transport implementations;
// see cmd/stepflow for an SSE server.
package agui
