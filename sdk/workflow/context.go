package workflow

import (
	"context"

	"github.com/ngnhng/crossflow/api"
	"github.com/ngnhng/crossflow/sdk/internal"
)

// Context is the execution context of a workflow run.
//
// Context extends context.Context with workflow-specific operations. It is
// cancelled when the run is cancelled or its worker shuts down.
//
// Key methods:
//   - Invoke: dispatch an activity and wait for its result
//   - ExecuteActivity: dispatch an activity without waiting
//   - Info: identifiers of the run
//
// Activities are numbered in the order the workflow issues them. A run executed
// again after its worker crashed must issue them in the same order to find the
// results of the steps it already completed.
type Context = internal.Context

// Info holds the identifiers of the running workflow.
type Info = internal.WorkflowInfo

// Func is the signature of a workflow function.
type Func = internal.WorkflowFunc

// ExecuteActivity dispatches the activity described by spec without blocking.
func ExecuteActivity(ctx Context, spec api.ActivityCallSpec) Future {
	return ctx.ExecuteActivity(spec)
}

// InvokeActivity dispatches the activity described by spec and blocks until it
// completes, fails or times out.
func InvokeActivity(ctx Context, spec api.ActivityCallSpec) (string, error) {
	r := ctx.Invoke(ctx, spec)
	if r.Failure != nil {
		return "", r.Failure
	}
	return r.Payload, nil
}

// GetInfo returns the identifiers of the running workflow.
func GetInfo(ctx Context) Info {
	return ctx.Info()
}

// NewTestContext returns a Context whose activities are resolved by invoke, for
// unit tests of workflow functions.
func NewTestContext(ctx context.Context, info Info, invoke func(context.Context, api.ActivityCallSpec) api.ActivityResult) Context {
	return internal.NewTestContext(ctx, info, invoke)
}
