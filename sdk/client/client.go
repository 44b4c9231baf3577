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

package client

import (
	"context"

	"github.com/ngnhng/crossflow/sdk/internal"
)

// Client starts workflows and observes their runs.
//
// Example:
//
//	c, err := client.NewClient(ctx, &client.Options{
//		Namespace: "production",
//		Conn:      nc,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	run, err := c.StartWorkflow(ctx, client.StartWorkflowOptions{
//		ID:        "cross-language-workflow",
//		TaskQueue: "main-task-queue",
//	}, "CrossLanguageWorkflow", "Hello from the main workflow!")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := run.Get(ctx)
type Client = internal.Client

// Options contains configuration for creating a new Client.
type Options = internal.ClientOptions

type StartWorkflowOptions = internal.StartWorkflowOptions

// WorkflowRun is a handle on one run of a workflow ID.
type WorkflowRun = internal.WorkflowRun

// NewClient creates a Client over an established NATS connection.
//
// The namespace's streams and buckets are created when missing. Returns an error if:
//   - Options is nil
//   - Options.Conn is nil
//   - Options.Namespace is not a valid name
//   - JetStream is not enabled on the server
func NewClient(ctx context.Context, options *Options) (Client, error) {
	return internal.NewClient(ctx, options)
}

// Dial connects to the NATS server at url and creates a Client owning that
// connection. Close the client to release it.
func Dial(ctx context.Context, url string, options *Options) (Client, error) {
	return internal.Dial(ctx, url, options)
}
