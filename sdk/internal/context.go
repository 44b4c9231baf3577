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
	"log/slog"
	"sync"

	"github.com/ngnhng/crossflow/api"
	"github.com/ngnhng/crossflow/internal/dispatch"
)

// Context is the execution context of one workflow run. It is a context.Context
// that is cancelled when the run is cancelled or its worker shuts down.
//
// Activities are numbered in the order they are issued. The number, not the
// wall clock, identifies a step, so a run executed again after a crash finds the
// outcomes of the steps it already completed.
type Context interface {
	context.Context

	Info() WorkflowInfo
	Logger() *slog.Logger

	// Invoke dispatches one activity and blocks until its single observed result.
	Invoke(ctx context.Context, spec api.ActivityCallSpec) api.ActivityResult

	// ExecuteActivity dispatches one activity without blocking.
	ExecuteActivity(spec api.ActivityCallSpec) Future
}

type WorkflowInfo struct {
	WorkflowID   string
	RunID        string
	WorkflowType string
	TaskQueue    string
	Attempt      int
}

type activityDispatcher interface {
	Dispatch(ctx context.Context, call dispatch.Call, spec api.ActivityCallSpec) api.ActivityResult
}

var _ Context = (*workflowContext)(nil)

type workflowContext struct {
	context.Context

	info       WorkflowInfo
	dispatcher activityDispatcher
	logger     *slog.Logger

	mu  sync.Mutex
	seq int
}

func newWorkflowContext(ctx context.Context, info WorkflowInfo, d activityDispatcher, logger *slog.Logger) *workflowContext {
	if logger == nil {
		logger = slog.Default()
	}
	return &workflowContext{
		Context:    ctx,
		info:       info,
		dispatcher: d,
		logger:     logger.With("workflow_id", info.WorkflowID, "run_id", info.RunID, "workflow_type", info.WorkflowType),
	}
}

func (c *workflowContext) Info() WorkflowInfo   { return c.info }
func (c *workflowContext) Logger() *slog.Logger { return c.logger }

func (c *workflowContext) nextCall() dispatch.Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return dispatch.Call{
		WorkflowID:   c.info.WorkflowID,
		RunID:        c.info.RunID,
		WorkflowType: c.info.WorkflowType,
		Seq:          c.seq,
	}
}

func (c *workflowContext) Invoke(ctx context.Context, spec api.ActivityCallSpec) api.ActivityResult {
	return c.dispatcher.Dispatch(ctx, c.nextCall(), spec)
}

func (c *workflowContext) ExecuteActivity(spec api.ActivityCallSpec) Future {
	call := c.nextCall()
	f := newFuture()
	go func() {
		f.resolve(c.dispatcher.Dispatch(c, call, spec))
	}()
	return f
}

// NewTestContext returns a Context whose activities are resolved by invoke, for
// exercising workflow functions without a backend. A nil invoke fails every
// activity with a configuration error.
func NewTestContext(ctx context.Context, info WorkflowInfo, invoke func(context.Context, api.ActivityCallSpec) api.ActivityResult) Context {
	return newWorkflowContext(ctx, info, dispatchFunc(invoke), nil)
}

type dispatchFunc func(context.Context, api.ActivityCallSpec) api.ActivityResult

func (f dispatchFunc) Dispatch(ctx context.Context, _ dispatch.Call, spec api.ActivityCallSpec) api.ActivityResult {
	if f == nil {
		return api.Failed(api.NewFailure(api.KindConfiguration, "no activity dispatcher"))
	}
	return f(ctx, spec)
}
