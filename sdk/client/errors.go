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

import "github.com/ngnhng/crossflow/sdk/internal"

var (
	// ErrWorkflowNotFound is returned when no record exists for a workflow ID, or
	// when the requested run was replaced by a newer run of the same ID.
	ErrWorkflowNotFound = internal.ErrWorkflowNotFound
)

// WorkflowExecutionError is returned by WorkflowRun.Get for a run that ended
// Failed. errors.Is matches it against api.ErrTimeout, api.ErrCanceled and the
// other failure kinds.
type WorkflowExecutionError = internal.WorkflowExecutionError
