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

package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/ngnhng/crossflow/api"
	"github.com/ngnhng/crossflow/internal/crosslang"
	"github.com/ngnhng/crossflow/internal/coordinator"
	"github.com/ngnhng/crossflow/internal/pools"
	"github.com/ngnhng/crossflow/sdk/client"
	"github.com/ngnhng/crossflow/sdk/worker"
)

// Worker returns the body of a worker binary serving queue with what register binds.
func Worker(queue string, register func(worker.Registry) error) RunFunc {
	return func(ctx context.Context, p *Process) error {
		w, err := worker.NewWorker(p.Client, &worker.Options{
			TaskQueue:          queue,
			Logger:             slog.Default(),
			Identity:           p.Config.WorkerIdentity(),
			MaxConcurrentTasks: p.Config.WorkerConcurrency(),
			AckWait:            p.Config.WorkerAckWait(),
			RetryPolicy:        p.Config.RetryPolicy(),
		})
		if err != nil {
			return err
		}
		if err := register(w); err != nil {
			return api.AsFailure(err, api.KindConfiguration)
		}
		return w.Run(ctx)
	}
}

// PoolWorker is the body of a language pool's worker binary.
func PoolWorker(pool pools.Pool) RunFunc {
	return Worker(pool.TaskQueue, pool.Register)
}

// CoordinatorWorker is the body of the main queue's worker binary.
func CoordinatorWorker() RunFunc {
	return func(ctx context.Context, p *Process) error {
		coord, err := crosslang.NewCoordinator(coordinator.WithLogger(slog.Default()))
		if err != nil {
			return err
		}
		return Worker(api.MainTaskQueue, func(r worker.Registry) error {
			return crosslang.Register(r, coord)
		})(ctx, p)
	}
}

// Trigger starts the cross-language workflow, waits for it and writes the
// aggregated result to out.
func Trigger(out io.Writer) RunFunc {
	return func(ctx context.Context, p *Process) error {
		return trigger(ctx, p.Client, out)
	}
}

func trigger(ctx context.Context, c client.Client, out io.Writer) error {
	run, err := c.StartWorkflow(ctx, client.StartWorkflowOptions{
		ID:        api.CrossLanguageWorkflowID,
		TaskQueue: api.MainTaskQueue,
	}, api.CrossLanguageWorkflowType, api.DefaultTriggerMessage)
	if err != nil {
		return fmt.Errorf("start workflow: %w", err)
	}
	slog.Info("workflow started, waiting for result", "workflow_id", run.ID(), "run_id", run.RunID())

	result, err := run.Get(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "Workflow completed!")
	fmt.Fprintln(out, result)
	return nil
}
