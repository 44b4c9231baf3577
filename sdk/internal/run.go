// Copyright 2025 Nguyen Nhat Nguyen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package internal

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/ngnhng/crossflow/api"
	"github.com/ngnhng/crossflow/internal/history"
)

var _ WorkflowRun = (*workflowRun)(nil)

type workflowRun struct {
	client     *clientImpl
	workflowID string
	runID      string
}

func (r *workflowRun) ID() string    { return r.workflowID }
func (r *workflowRun) RunID() string { return r.runID }

func (r *workflowRun) Get(ctx context.Context) (string, error) {
	watcher, err := r.client.backend.Runs.Watch(ctx, r.workflowID)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", api.AsFailure(fmt.Errorf("watch workflow %s: %w", r.workflowID, err), api.KindConnection)
	}
	defer watcher.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()

		case entry, ok := <-watcher.Updates():
			if !ok {
				if ctx.Err() != nil {
					return "", ctx.Err()
				}
				return "", api.NewFailure(api.KindConnection, "workflow watcher closed")
			}
			if entry == nil {
				continue
			}
			if entry.Operation() != jetstream.KeyValuePut {
				return "", fmt.Errorf("%w: %s", ErrWorkflowNotFound, r.workflowID)
			}

			rec, err := r.client.decodeRecord(entry.Value())
			if err != nil {
				return "", err
			}
			if rec.RunID != r.runID {
				// closed and replaced before we looked
				return r.fromHistory(ctx)
			}
			if !rec.Status.Terminal() {
				continue
			}
			return r.outcome(rec.Status, rec.Result, rec.Failure)
		}
	}
}

func (r *workflowRun) outcome(status api.WorkflowStatus, result string, f *api.Failure) (string, error) {
	if status == api.StatusFailed {
		return "", &WorkflowExecutionError{WorkflowID: r.workflowID, RunID: r.runID, Failure: f}
	}
	return result, nil
}

func (r *workflowRun) fromHistory(ctx context.Context) (string, error) {
	events, err := history.Read(ctx, r.client.backend, r.workflowID, r.runID)
	if err != nil {
		return "", err
	}
	for i := len(events) - 1; i >= 0; i-- {
		switch ev := events[i].(type) {
		case *api.WorkflowCompleted:
			return r.outcome(api.StatusCompleted, ev.Result, nil)
		case *api.WorkflowFailed:
			return r.outcome(api.StatusFailed, "", ev.Failure)
		}
	}
	return "", fmt.Errorf("%w: %s run %s", ErrWorkflowNotFound, r.workflowID, r.runID)
}
