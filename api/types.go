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

package api

import (
	"fmt"
	"time"
)

// ActivityCallSpec describes one activity call. It is immutable once built by the
// coordinator from the task router and the timeout policy.
type ActivityCallSpec struct {
	ActivityName        string
	Input               []string
	TaskQueue           string
	Language            string
	StartToCloseTimeout time.Duration
}

// ActivityResult is either a success payload or a failure descriptor, never both.
type ActivityResult struct {
	Payload string
	Failure *Failure
}

func Succeeded(payload string) ActivityResult { return ActivityResult{Payload: payload} }

func Failed(f *Failure) ActivityResult { return ActivityResult{Failure: f} }

// Err returns the failure as an error, or nil on success.
func (r ActivityResult) Err() error {
	if r.Failure == nil {
		return nil
	}
	return r.Failure
}

type WorkflowStatus string

const (
	StatusStarted         WorkflowStatus = "Started"
	StatusRunning         WorkflowStatus = "Running"
	StatusCancelRequested WorkflowStatus = "CancelRequested"
	StatusCompleted       WorkflowStatus = "Completed"
	StatusFailed          WorkflowStatus = "Failed"
)

// Terminal reports whether the run reached Completed or Failed.
func (s WorkflowStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type (
	// WorkflowRecord is the durable state of the current run of a workflow ID.
	// It lives in the workflow runs bucket under the workflow ID.
	WorkflowRecord struct {
		WorkflowID   string         `json:"wf_id"             msgpack:"wf_id"`
		RunID        string         `json:"run_id"            msgpack:"run_id"`
		WorkflowType string         `json:"wf_type"           msgpack:"wf_type"`
		TaskQueue    string         `json:"task_queue"        msgpack:"task_queue"`
		Input        string         `json:"input"             msgpack:"input"`
		Status       WorkflowStatus `json:"status"            msgpack:"status"`
		Result       string         `json:"result,omitempty"  msgpack:"result,omitempty"`
		Failure      *Failure       `json:"failure,omitempty" msgpack:"failure,omitempty"`
		StartedAt    time.Time      `json:"started_at"        msgpack:"started_at"`
		ClosedAt     time.Time      `json:"closed_at"         msgpack:"closed_at"`
	}

	WorkflowTask struct {
		WorkflowID   string `json:"wf_id"   msgpack:"wf_id"`
		RunID        string `json:"run_id"  msgpack:"run_id"`
		WorkflowType string `json:"wf_type" msgpack:"wf_type"`
		Input        string `json:"input"   msgpack:"input"`
	}

	ActivityTask struct {
		TaskID       string    `json:"task_id"      msgpack:"task_id"`
		WorkflowID   string    `json:"wf_id"        msgpack:"wf_id"`
		RunID        string    `json:"run_id"       msgpack:"run_id"`
		WorkflowType string    `json:"wf_type"      msgpack:"wf_type"`
		ActivityName string    `json:"ac_name"      msgpack:"ac_name"`
		Input        []string  `json:"input"        msgpack:"input"`
		Attempt      int       `json:"attempt"      msgpack:"attempt"`
		ScheduledAt  time.Time `json:"scheduled_at" msgpack:"scheduled_at"`
		Deadline     time.Time `json:"deadline"     msgpack:"deadline"`
	}

	// ActivityOutcome is what a worker writes to the activity results bucket under the task ID.
	ActivityOutcome struct {
		TaskID      string    `json:"task_id"           msgpack:"task_id"`
		Result      string    `json:"result,omitempty"  msgpack:"result,omitempty"`
		Failure     *Failure  `json:"failure,omitempty" msgpack:"failure,omitempty"`
		Worker      string    `json:"worker"            msgpack:"worker"`
		CompletedAt time.Time `json:"completed_at"      msgpack:"completed_at"`
	}

	// WorkerBinding binds a set of workflow types and activity names to one task queue.
	WorkerBinding struct {
		TaskQueue  string    `json:"task_queue" msgpack:"task_queue"`
		Workflows  []string  `json:"workflows"  msgpack:"workflows"`
		Activities []string  `json:"activities" msgpack:"activities"`
		Identity   string    `json:"identity"   msgpack:"identity"`
		StartedAt  time.Time `json:"started_at" msgpack:"started_at"`
	}
)

func (o ActivityOutcome) ActivityResult() ActivityResult {
	if o.Failure != nil {
		return Failed(o.Failure)
	}
	return Succeeded(o.Result)
}

// Validate checks the binding a worker is about to serve: a single valid queue
// and at least one workflow or activity, none of them named twice.
func (b WorkerBinding) Validate() error {
	if !ValidToken(b.TaskQueue) {
		return NewFailure(KindConfiguration, fmt.Sprintf("invalid task queue %q", b.TaskQueue))
	}
	if len(b.Workflows) == 0 && len(b.Activities) == 0 {
		return NewFailure(KindConfiguration, fmt.Sprintf("worker on %s has no registered workflows or activities", b.TaskQueue))
	}
	for _, names := range [][]string{b.Workflows, b.Activities} {
		seen := make(map[string]bool, len(names))
		for _, n := range names {
			if n == "" || seen[n] {
				return NewFailure(KindConfiguration, fmt.Sprintf("invalid or duplicate name %q on %s", n, b.TaskQueue))
			}
			seen[n] = true
		}
	}
	return nil
}
