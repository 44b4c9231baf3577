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

// Package client starts workflows and waits for their results.
//
// # Creating a Client
//
// To create a client, you need an established NATS connection with JetStream:
//
//	nc, err := nats.Connect("nats://localhost:4222")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	c, err := client.NewClient(ctx, &client.Options{
//		Namespace: "production",
//		Conn:      nc,
//		Logger:    slog.Default(),
//	})
//
// Dial connects and builds the client in one step. The client then owns the
// connection and Close closes it:
//
//	c, err := client.Dial(ctx, "nats://localhost:4222", &client.Options{Namespace: "production"})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer c.Close()
//
// # Starting Workflows
//
// The workflow ID is the idempotency key of an invocation. Starting an ID whose
// run is still live returns a handle on that run; nothing is started twice.
// Once the run has closed, the same ID starts a fresh run.
//
//	run, err := c.StartWorkflow(ctx, client.StartWorkflowOptions{
//		ID:        "order-42",
//		TaskQueue: "main-task-queue",
//	}, "CrossLanguageWorkflow", "hello")
//
// # Workflow Results
//
// WorkflowRun.Get blocks until the run closes or ctx is done. A failed run
// returns a *WorkflowExecutionError carrying the failure kind:
//
//	result, err := run.Get(ctx)
//	if errors.Is(err, api.ErrTimeout) {
//		// one of the activities did not complete in time
//	}
//
// # Namespaces
//
// Namespaces isolate environments sharing one NATS account. Workflows, task
// queues, results and history are scoped to a namespace.
package client
