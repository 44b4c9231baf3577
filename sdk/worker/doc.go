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

// Package worker runs workflows and activities bound to a task queue.
//
// # Creating a Worker
//
// A worker is created from a client and consumes exactly one task queue:
//
//	c, err := client.NewClient(ctx, &client.Options{
//		Namespace: "production",
//		Conn:      nc,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	w, err := worker.NewWorker(c, &worker.Options{
//		TaskQueue: "go-task-queue",
//		Logger:    slog.Default(),
//	})
//
// # Registering Workflows and Activities
//
// Before running the worker, register your workflows and activities by name:
//
//	err = w.RegisterWorkflow("CrossLanguageWorkflow", crossLanguage)
//	err = w.RegisterActivity("ProcessGo", activity.Binary(processMessage))
//
// A task naming an activity the worker does not know fails with an
// ActivityFailure that is reported back to the caller; it is never retried on
// the same worker forever.
//
// # Running the Worker
//
//	if err := w.Run(ctx); err != nil {
//		log.Fatal(err)
//	}
//
// Run returns nil once ctx is cancelled. Tasks in flight at that moment are
// handed back to the queue and picked up by the next worker of the queue.
//
// # Worker Scaling
//
// Any number of processes may run a worker on the same queue. They share one
// durable consumer, so each task is delivered to a single worker at a time.
// Live workers announce themselves in the presence bucket; see
// Client.DescribeTaskQueue.
package worker
