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

package jetstreamx

import (
	"context"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/ngnhng/crossflow/api"
)

const (
	// DuplicateWindow bounds how long the tasks stream remembers a message ID.
	DuplicateWindow = 2 * time.Minute
	HistoryMaxAge   = 7 * 24 * time.Hour
)

// Backend bundles the JetStream resources of one namespace.
type Backend struct {
	Names api.Names
	Conn  *Connection

	Tasks   jetstream.Stream
	History jetstream.Stream

	Runs    jetstream.KeyValue
	Results jetstream.KeyValue
	Workers jetstream.KeyValue
}

// Provision makes sure every stream and bucket of the namespace exists. Any
// process may call it at startup; concurrent calls converge on the same resources.
func Provision(ctx context.Context, conn *Connection, names api.Names) (*Backend, error) {
	b := &Backend{Names: names, Conn: conn}

	var err error
	b.Tasks, err = conn.EnsureStream(ctx, jetstream.StreamConfig{
		Name:        names.TasksStream(),
		Description: "workflow and activity tasks of namespace " + names.Namespace(),
		Subjects:    []string{names.TasksFilterSubject()},
		Retention:   jetstream.WorkQueuePolicy,
		Storage:     jetstream.FileStorage,
		Duplicates:  DuplicateWindow,
	})
	if err != nil {
		return nil, err
	}

	b.History, err = conn.EnsureStream(ctx, jetstream.StreamConfig{
		Name:        names.HistoryStream(),
		Description: "workflow history of namespace " + names.Namespace(),
		Subjects:    []string{names.HistoryFilterSubject()},
		Retention:   jetstream.LimitsPolicy,
		Storage:     jetstream.FileStorage,
		MaxAge:      HistoryMaxAge,
		Duplicates:  DuplicateWindow,
	})
	if err != nil {
		return nil, err
	}

	b.Runs, err = conn.EnsureKV(ctx, jetstream.KeyValueConfig{
		Bucket:      names.WorkflowRunsBucket(),
		Description: "current run of each workflow ID",
		History:     1,
		Storage:     jetstream.FileStorage,
	})
	if err != nil {
		return nil, err
	}

	b.Results, err = conn.EnsureKV(ctx, jetstream.KeyValueConfig{
		Bucket:      names.ActivityResultsBucket(),
		Description: "activity outcomes keyed by task ID",
		History:     1,
		TTL:         api.ActivityResultTTL,
		Storage:     jetstream.FileStorage,
	})
	if err != nil {
		return nil, err
	}

	b.Workers, err = conn.EnsureKV(ctx, jetstream.KeyValueConfig{
		Bucket:      names.WorkersBucket(),
		Description: "live worker presence",
		History:     1,
		TTL:         api.WorkerPresenceTTL,
		Storage:     jetstream.MemoryStorage,
	})
	if err != nil {
		return nil, err
	}

	return b, nil
}

// QueueConsumer returns the durable consumer shared by every worker of a task queue.
// It only sees the tasks of that queue.
func (b *Backend) QueueConsumer(ctx context.Context, queue string, ackWait time.Duration) (jetstream.Consumer, error) {
	return b.Conn.EnsureConsumer(ctx, b.Tasks, jetstream.ConsumerConfig{
		Durable:       b.Names.WorkerConsumer(queue),
		Description:   "workers of task queue " + queue,
		FilterSubject: b.Names.QueueFilterSubject(queue),
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverAllPolicy,
		AckWait:       ackWait,
		MaxDeliver:    -1,
	})
}
