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

import "time"

// NATS Stream Names, suffixed with the namespace at runtime.
const (
	TasksStream   = "TASKS"
	HistoryStream = "HISTORY"
)

// KeyValue Bucket Names, suffixed with the namespace at runtime.
const (
	WorkflowRunsBucket    = "workflow-runs"
	ActivityResultsBucket = "activity-results"
	WorkersBucket         = "workers"
)

// NATS Subject Tokens
const (
	TasksSubjectToken   = "tasks"
	HistorySubjectToken = "history"

	WorkflowTaskKind = "workflow"
	ActivityTaskKind = "activity"
)

// Consumer name prefixes
const (
	WorkerConsumerPrefix = "worker-"
)

// JetStream Headers
const (
	EventNameHeader = "Crossflow-Event-Name"
	TaskKindHeader  = "Crossflow-Task-Kind"
	RunIDHeader     = "Crossflow-Run-Id"
	SerdeHeader     = "Crossflow-Serde"
	WorkerHeader    = "Crossflow-Worker"
)

// Retention for transient buckets.
const (
	ActivityResultTTL = 24 * time.Hour
	WorkerPresenceTTL = 30 * time.Second
)

// Well-known workflow/queue names used by the cross-language demo.
const (
	CrossLanguageWorkflowType = "CrossLanguageWorkflow"
	MainTaskQueue             = "main-task-queue"
	CrossLanguageWorkflowID   = "cross-language-workflow"
	DefaultTriggerMessage     = "Hello from the main workflow!"
)
