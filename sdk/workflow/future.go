package workflow

import (
	"github.com/ngnhng/crossflow/sdk/internal"
)

// Future represents the result of an activity issued with ExecuteActivity.
//
// Example:
//
//	// Start two activities in parallel
//	f1 := workflow.ExecuteActivity(ctx, spec1)
//	f2 := workflow.ExecuteActivity(ctx, spec2)
//
//	r1, err := f1.Get(ctx)
//	if err != nil {
//		return "", err
//	}
//	r2, err := f2.Get(ctx)
//
// Get returns the activity failure as an *api.Failure.
type Future = internal.Future
