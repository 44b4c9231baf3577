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
	"errors"
	"fmt"

	"github.com/ngnhng/crossflow/api"
)

var (
	// ErrWorkflowNotFound is returned when no record exists for a workflow ID, or
	// when the requested run is not the current run of that ID.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrDuplicateRegistration is returned when a name is registered twice on a worker.
	ErrDuplicateRegistration = errors.New("already registered")

	// ErrWorkerStarted is returned when registering on a worker that is already running.
	ErrWorkerStarted = errors.New("worker already started")
)

// WorkflowExecutionError is returned by WorkflowRun.Get when the run ended Failed.
// It unwraps to the run's *api.Failure.
type WorkflowExecutionError struct {
	WorkflowID string
	RunID      string
	Failure    *api.Failure
}

func (e *WorkflowExecutionError) Error() string {
	return fmt.Sprintf("workflow %s (run %s) failed: %v", e.WorkflowID, e.RunID, e.Failure)
}

func (e *WorkflowExecutionError) Unwrap() error {
	return e.Failure
}

// RegistrationError reports a name the worker refused to register.
type RegistrationError struct {
	Name  string
	Cause error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("failed to register %s: %v", e.Name, e.Cause)
}

func (e *RegistrationError) Unwrap() error {
	return e.Cause
}

// TaskProcessingError represents an error that occurred while processing a task
type TaskProcessingError struct {
	TaskKind   string
	TaskID     string
	WorkflowID string
	Cause      error
}

func (e *TaskProcessingError) Error() string {
	return fmt.Sprintf("failed to process %s task %s (workflow=%s): %v",
		e.TaskKind, e.TaskID, e.WorkflowID, e.Cause)
}

func (e *TaskProcessingError) Unwrap() error {
	return e.Cause
}
