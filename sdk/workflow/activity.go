package workflow

import (
	"github.com/ngnhng/crossflow/internal/dispatch"
)

// RetryPolicy defines how a failed activity attempt is dispatched again.
//
// Only Timeout and ActivityFailure are retried. Every attempt gets its own task
// and start-to-close window; the workflow only sees the last attempt. The zero
// value performs a single attempt.
//
// The policy is set per worker:
//
//	w, err := worker.NewWorker(c, &worker.Options{
//		TaskQueue:   "main-task-queue",
//		RetryPolicy: workflow.ExponentialRetryPolicy(3),
//	})
type RetryPolicy = dispatch.RetryPolicy

// ExponentialRetryPolicy retries up to attempts times with doubling delays.
func ExponentialRetryPolicy(attempts int) RetryPolicy {
	return dispatch.ExponentialRetryPolicy(attempts)
}
