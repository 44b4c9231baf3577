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

package worker

import (
	"context"

	"github.com/ngnhng/crossflow/api"
	"github.com/ngnhng/crossflow/sdk/client"
	"github.com/ngnhng/crossflow/sdk/internal"
)

// Worker consumes one task queue and executes the workflows and activities
// registered on it.
//
// Example:
//
//	w, err := worker.NewWorker(c, &worker.Options{TaskQueue: "python-task-queue"})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	w.RegisterActivity("process_python", activity.Binary(processMessage))
//
//	if err := w.Run(ctx); err != nil {
//		log.Fatal(err)
//	}
type Worker interface {
	Registry

	// Binding reports the worker's queue and the names registered so far.
	Binding() api.WorkerBinding

	// Run starts the worker and blocks until the context is canceled or an error occurs.
	// A worker with nothing registered fails with a configuration error.
	Run(ctx context.Context) error
}

// Registry combines workflow and activity registration.
type Registry interface {
	WorkflowRegistry
	ActivityRegistry
}

// WorkflowRegistry registers workflow functions under a workflow type name.
//
// Workflows must be registered before the worker starts.
type WorkflowRegistry interface {
	RegisterWorkflow(name string, fn internal.WorkflowFunc) error
}

// ActivityRegistry registers activity functions under an activity name.
//
// Activities must be registered before the worker starts.
type ActivityRegistry interface {
	RegisterActivity(name string, fn internal.ActivityFunc) error
}

// Options contains configuration for creating a new Worker.
type Options = internal.WorkerOptions

const (
	DefaultMaxConcurrentTasks = internal.DefaultMaxConcurrentTasks
	DefaultAckWait            = internal.DefaultAckWait
)

// NewWorker creates a Worker bound to options.TaskQueue.
//
// The worker uses the client's connection, namespace and serde.
func NewWorker(c client.Client, options *Options) (Worker, error) {
	w, err := internal.NewWorker(c, options)
	if err != nil {
		return nil, err
	}
	return w, nil
}
