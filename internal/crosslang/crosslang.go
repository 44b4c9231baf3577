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

// Package crosslang is the cross-language workflow: one echo call to every
// language pool, in order, aggregated into a single answer.
package crosslang

import (
	"github.com/ngnhng/crossflow/api"
	"github.com/ngnhng/crossflow/internal/coordinator"
	"github.com/ngnhng/crossflow/internal/routing"
	"github.com/ngnhng/crossflow/sdk/worker"
	"github.com/ngnhng/crossflow/sdk/workflow"
)

// Workflow returns the CrossLanguageWorkflow function. Every activity of a run
// is dispatched through the run's context, so it carries the run's identity.
func Workflow(c *coordinator.Coordinator) workflow.Func {
	return func(ctx workflow.Context, message string) (string, error) {
		ctx.Logger().InfoContext(ctx, "cross-language workflow started", "languages", c.Languages())
		return c.Run(ctx, ctx, message)
	}
}

// NewCoordinator builds the coordinator over the default router, timeouts and plan.
func NewCoordinator(opts ...coordinator.Option) (*coordinator.Coordinator, error) {
	return coordinator.New(routing.Default(), routing.DefaultTimeoutPolicy(), coordinator.DefaultPlan(), opts...)
}

// Register binds CrossLanguageWorkflow to r. It is the only workflow of the
// main task queue.
func Register(r worker.WorkflowRegistry, c *coordinator.Coordinator) error {
	return r.RegisterWorkflow(api.CrossLanguageWorkflowType, Workflow(c))
}
