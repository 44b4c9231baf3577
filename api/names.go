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
	"regexp"
)

var tokenPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidToken reports whether s can be used as a single NATS subject token,
// stream suffix and KV bucket suffix at the same time.
func ValidToken(s string) bool {
	return tokenPattern.MatchString(s)
}

// Names derives every stream, subject, bucket and consumer name from a namespace.
//
// Two namespaces on the same NATS account never share a stream, a bucket or a subject.
type Names struct {
	namespace string
}

func NewNames(namespace string) (Names, error) {
	if !ValidToken(namespace) {
		return Names{}, NewFailure(KindConfiguration, fmt.Sprintf("invalid namespace %q", namespace))
	}
	return Names{namespace: namespace}, nil
}

func (n Names) Namespace() string { return n.namespace }

func (n Names) TasksStream() string   { return TasksStream + "_" + n.namespace }
func (n Names) HistoryStream() string { return HistoryStream + "_" + n.namespace }

func (n Names) WorkflowRunsBucket() string    { return WorkflowRunsBucket + "-" + n.namespace }
func (n Names) ActivityResultsBucket() string { return ActivityResultsBucket + "-" + n.namespace }
func (n Names) WorkersBucket() string         { return WorkersBucket + "-" + n.namespace }

// TasksFilterSubject matches every task of every queue in the namespace.
func (n Names) TasksFilterSubject() string {
	return fmt.Sprintf("%s.%s.>", n.namespace, TasksSubjectToken)
}

// QueueFilterSubject matches workflow and activity tasks of a single queue.
func (n Names) QueueFilterSubject(queue string) string {
	return fmt.Sprintf("%s.%s.%s.>", n.namespace, TasksSubjectToken, queue)
}

func (n Names) WorkflowTaskSubject(queue string) string {
	return fmt.Sprintf("%s.%s.%s.%s", n.namespace, TasksSubjectToken, queue, WorkflowTaskKind)
}

func (n Names) ActivityTaskSubject(queue string) string {
	return fmt.Sprintf("%s.%s.%s.%s", n.namespace, TasksSubjectToken, queue, ActivityTaskKind)
}

func (n Names) HistoryFilterSubject() string {
	return fmt.Sprintf("%s.%s.>", n.namespace, HistorySubjectToken)
}

// HistorySubject is the subject holding the events of one workflow ID.
func (n Names) HistorySubject(workflowID string) string {
	return fmt.Sprintf("%s.%s.%s", n.namespace, HistorySubjectToken, workflowID)
}

// WorkerConsumer is the durable consumer shared by every worker of a queue,
// so a restarted worker resumes where the previous one stopped.
func (n Names) WorkerConsumer(queue string) string {
	return WorkerConsumerPrefix + queue
}

// ActivityTaskID identifies one dispatch attempt. It is derived from the run and the
// step sequence only, so re-executing a run after a crash produces the same IDs.
//
// A valid KV key can contain a-z, A-Z, 0-9, _, -, ., = and /.
func ActivityTaskID(runID string, seq, attempt int) string {
	return fmt.Sprintf("%s.%d.%d", runID, seq, attempt)
}

// WorkerKey is the presence key of one worker process bound to a queue.
func WorkerKey(queue, identity string) string {
	return fmt.Sprintf("%s.%s", queue, identity)
}
