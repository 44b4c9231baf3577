// Package activity provides types and utilities for writing activities.
//
// Activities are the units of work a workflow dispatches to a task queue. They
// may do anything a regular function does: I/O, external calls, computation.
//
// # Writing Activities
//
// An activity receives the positional string arguments of the call:
//
//	func Process(ctx context.Context, args ...string) (string, error) {
//		return "processed " + args[0], nil
//	}
//
// Unary and Binary adapt functions with a fixed number of arguments:
//
//	w.RegisterActivity("go_activity", activity.Binary(processMessage))
//
// # Activity Context
//
// The context passed to an activity carries the start-to-close deadline of
// the call. An activity still running when the deadline passes is reported to
// the workflow as a Timeout, whatever it returns afterwards.
//
// # Error Handling
//
// An error returned by an activity reaches the workflow as an ActivityFailure
// carrying the error text. Returning an *api.Failure keeps its kind.
//
// # Best Practices
//
//   - Make activities idempotent when possible
//   - Respect context cancellation
//   - Keep the result small; it is stored and sent as a single message
package activity
