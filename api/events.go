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

import "fmt"

// HistoryEvent is one entry of a workflow's history stream. The event name travels
// in the Crossflow-Event-Name header so readers can decode without peeking at the body.
type HistoryEvent interface {
	EventName() string

	isHistoryEvent()
}

var _ HistoryEvent = (*WorkflowStarted)(nil)
var _ HistoryEvent = (*ActivityScheduled)(nil)
var _ HistoryEvent = (*ActivityCompleted)(nil)
var _ HistoryEvent = (*ActivityFailed)(nil)
var _ HistoryEvent = (*WorkflowFailed)(nil)
var _ HistoryEvent = (*WorkflowCompleted)(nil)

// -- Workflow Started Event --
type WorkflowStarted struct {
	WorkflowID   string `json:"wf_id"      msgpack:"wf_id"`
	RunID        string `json:"run_id"     msgpack:"run_id"`
	WorkflowType string `json:"wf_type"    msgpack:"wf_type"`
	TaskQueue    string `json:"task_queue" msgpack:"task_queue"`
	Input        string `json:"input"      msgpack:"input"`
}

func (*WorkflowStarted) EventName() string { return "workflow/started" }
func (*WorkflowStarted) isHistoryEvent()   {}

// -- Activity Scheduled Event --
type ActivityScheduled struct {
	WorkflowID   string   `json:"wf_id"      msgpack:"wf_id"`
	RunID        string   `json:"run_id"     msgpack:"run_id"`
	TaskID       string   `json:"task_id"    msgpack:"task_id"`
	ActivityName string   `json:"ac_name"    msgpack:"ac_name"`
	TaskQueue    string   `json:"task_queue" msgpack:"task_queue"`
	Input        []string `json:"input"      msgpack:"input"`
	Attempt      int      `json:"attempt"    msgpack:"attempt"`
}

func (*ActivityScheduled) EventName() string { return "activity/scheduled" }
func (*ActivityScheduled) isHistoryEvent()   {}

// -- Activity Completed Event --
type ActivityCompleted struct {
	WorkflowID   string `json:"wf_id"   msgpack:"wf_id"`
	RunID        string `json:"run_id"  msgpack:"run_id"`
	TaskID       string `json:"task_id" msgpack:"task_id"`
	ActivityName string `json:"ac_name" msgpack:"ac_name"`
	Result       string `json:"result"  msgpack:"result"`
}

func (*ActivityCompleted) EventName() string { return "activity/completed" }
func (*ActivityCompleted) isHistoryEvent()   {}

// -- Activity Failed Event --
type ActivityFailed struct {
	WorkflowID   string   `json:"wf_id"   msgpack:"wf_id"`
	RunID        string   `json:"run_id"  msgpack:"run_id"`
	TaskID       string   `json:"task_id" msgpack:"task_id"`
	ActivityName string   `json:"ac_name" msgpack:"ac_name"`
	Failure      *Failure `json:"failure" msgpack:"failure"`
}

func (*ActivityFailed) EventName() string { return "activity/failed" }
func (*ActivityFailed) isHistoryEvent()   {}

// -- Workflow Failed --
type WorkflowFailed struct {
	WorkflowID string   `json:"wf_id"   msgpack:"wf_id"`
	RunID      string   `json:"run_id"  msgpack:"run_id"`
	Failure    *Failure `json:"failure" msgpack:"failure"`
}

func (*WorkflowFailed) EventName() string { return "workflow/failed" }
func (*WorkflowFailed) isHistoryEvent()   {}

// -- Workflow Completed --
type WorkflowCompleted struct {
	WorkflowID string `json:"wf_id"  msgpack:"wf_id"`
	RunID      string `json:"run_id" msgpack:"run_id"`
	Result     string `json:"result" msgpack:"result"`
}

func (*WorkflowCompleted) EventName() string { return "workflow/completed" }
func (*WorkflowCompleted) isHistoryEvent()   {}

// NewHistoryEvent returns an empty event for the given name, ready to be decoded into.
func NewHistoryEvent(name string) (HistoryEvent, error) {
	switch name {
	case "workflow/started":
		return &WorkflowStarted{}, nil
	case "activity/scheduled":
		return &ActivityScheduled{}, nil
	case "activity/completed":
		return &ActivityCompleted{}, nil
	case "activity/failed":
		return &ActivityFailed{}, nil
	case "workflow/failed":
		return &WorkflowFailed{}, nil
	case "workflow/completed":
		return &WorkflowCompleted{}, nil
	default:
		return nil, fmt.Errorf("unknown history event %q", name)
	}
}
