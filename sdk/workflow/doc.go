// Package workflow provides the programming model for writing workflows.
//
// A workflow is a function that orchestrates activities running on other task
// queues, possibly in workers written in other languages. The workflow package
// provides the context and the primitives needed to dispatch them.
//
// # Writing Workflows
//
// Workflows are functions that take a workflow.Context and a string input:
//
//	func Greeting(ctx workflow.Context, name string) (string, error) {
//		return workflow.InvokeActivity(ctx, api.ActivityCallSpec{
//			ActivityName:        "go_activity",
//			Input:               []string{name},
//			TaskQueue:           "go-task-queue",
//			StartToCloseTimeout: 10 * time.Second,
//		})
//	}
//
// # Activity Execution
//
// Every activity call names its task queue and its start-to-close timeout. The
// call resolves exactly once: with the worker's result, with the worker's
// failure, or with a Timeout when no worker completed it within the window.
//
// ExecuteActivity returns a Future so several activities can be in flight at once.
//
// # Crash Recovery
//
// A run interrupted by a worker crash is executed again from the start by
// another worker. Steps that already completed are not dispatched again: their
// recorded results are returned. Workflow code must therefore issue its
// activities in the same order on every execution.
//
// # Error Handling
//
// A workflow that returns an error fails its run. The failure kind of an
// activity error is preserved, so a caller can match it with errors.Is:
//
//	_, err := run.Get(ctx)
//	if errors.Is(err, workflow.ErrTimeout) {
//		// ...
//	}
package workflow
