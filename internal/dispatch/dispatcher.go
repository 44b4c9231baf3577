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

// Package dispatch runs the activity invocation step against the backend: it
// enqueues one activity task on the target queue and suspends until a worker
// writes the outcome or the start-to-close window elapses.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/ngnhng/crossflow/api"
	"github.com/ngnhng/crossflow/api/serde"
	jetstreamx "github.com/ngnhng/crossflow/internal/infra/jetstream"
)

// Call identifies the step of a workflow run an activity is dispatched for.
// Seq is the step's position in the run; together with the run ID it makes
// task IDs stable across re-executions of the same run.
type Call struct {
	WorkflowID   string
	RunID        string
	WorkflowType string
	Seq          int
}

type Recorder interface {
	Record(ctx context.Context, workflowID, runID, dedupID string, ev api.HistoryEvent) error
}

type Dispatcher struct {
	backend *jetstreamx.Backend
	serde   serde.BinarySerde
	retry   RetryPolicy
	history Recorder
	log     *slog.Logger
	now     func() time.Time
}

type Option func(*Dispatcher)

func WithRetryPolicy(p RetryPolicy) Option {
	return func(d *Dispatcher) { d.retry = p }
}

func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) { d.history = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

func New(b *jetstreamx.Backend, s serde.BinarySerde, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		backend: b,
		serde:   s,
		retry:   DefaultRetryPolicy(),
		log:     slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.With("component", "dispatcher")
	return d
}

// Dispatch issues the call and blocks until it has a single observed result.
// Retries allowed by the retry policy happen underneath and are not visible to
// the caller. Cancelling ctx abandons the outstanding call with Canceled.
func (d *Dispatcher) Dispatch(ctx context.Context, call Call, spec api.ActivityCallSpec) api.ActivityResult {
	if f := validate(call, spec); f != nil {
		return api.Failed(f)
	}

	attempt := 0
	var result api.ActivityResult
	op := func() error {
		attempt++
		result = d.attempt(ctx, call, spec, attempt)
		if result.Failure == nil {
			return nil
		}
		if ctx.Err() != nil || !d.retry.retryable(result.Failure) {
			return backoff.Permanent(result.Failure)
		}
		return result.Failure
	}
	notify := func(err error, wait time.Duration) {
		d.log.WarnContext(ctx, "activity attempt failed, retrying",
			"activity", spec.ActivityName,
			"attempt", attempt,
			"backoff", wait,
			"error", err)
	}

	_ = backoff.RetryNotify(op, backoff.WithContext(d.retry.backOff(), ctx), notify)

	if result.Failure != nil && result.Failure.Kind != api.KindCanceled && ctx.Err() != nil {
		return api.Failed(canceled(spec))
	}
	return result
}

func validate(call Call, spec api.ActivityCallSpec) *api.Failure {
	switch {
	case call.RunID == "":
		return api.NewFailure(api.KindConfiguration, "dispatch without run ID")
	case spec.ActivityName == "":
		return api.NewFailure(api.KindConfiguration, "dispatch without activity name")
	case !api.ValidToken(spec.TaskQueue):
		return api.NewFailure(api.KindConfiguration, fmt.Sprintf("invalid task queue %q", spec.TaskQueue))
	case spec.StartToCloseTimeout <= 0:
		return api.NewFailure(api.KindConfiguration, fmt.Sprintf("%s has no start-to-close timeout", spec.ActivityName))
	}
	return nil
}

func (d *Dispatcher) attempt(parent context.Context, call Call, spec api.ActivityCallSpec, attempt int) api.ActivityResult {
	taskID := api.ActivityTaskID(call.RunID, call.Seq, attempt)
	log := d.log.With("task_id", taskID, "activity", spec.ActivityName, "queue", spec.TaskQueue)

	ctx, cancel := context.WithTimeout(parent, spec.StartToCloseTimeout)
	defer cancel()

	// Watching before publishing means a fast worker cannot write the outcome
	// before we look. The watcher first replays an outcome written by an earlier
	// execution of this run, in which case nothing is published.
	watcher, err := d.backend.Results.Watch(ctx, taskID)
	if err != nil {
		if ctx.Err() != nil {
			return api.Failed(expired(parent, spec))
		}
		return api.Failed(api.NewFailure(api.KindConnection, fmt.Sprintf("watch %s: %v", taskID, err)))
	}
	defer watcher.Stop()

	published := false
	for {
		select {
		case <-ctx.Done():
			log.DebugContext(parent, "activity window closed", "error", ctx.Err())
			return api.Failed(expired(parent, spec))

		case entry, ok := <-watcher.Updates():
			if !ok {
				if ctx.Err() != nil {
					return api.Failed(expired(parent, spec))
				}
				return api.Failed(api.NewFailure(api.KindConnection, "result watcher closed"))
			}
			if entry == nil {
				if published {
					continue
				}
				if f := d.publish(ctx, call, spec, taskID, attempt); f != nil {
					if ctx.Err() != nil {
						return api.Failed(expired(parent, spec))
					}
					return api.Failed(f)
				}
				published = true
				log.DebugContext(parent, "activity task published", "attempt", attempt)
				continue
			}
			if entry.Operation() != jetstream.KeyValuePut {
				continue
			}

			var outcome api.ActivityOutcome
			if err := d.serde.DeserializeBinary(entry.Value(), &outcome); err != nil {
				return api.Failed(api.NewFailure(api.KindActivityFailure, fmt.Sprintf("malformed outcome of %s: %v", taskID, err)))
			}
			result := outcome.ActivityResult()
			d.recordOutcome(parent, call, spec, taskID, result)
			log.DebugContext(parent, "activity outcome received", "worker", outcome.Worker, "failed", result.Failure != nil)
			return result
		}
	}
}

func (d *Dispatcher) publish(ctx context.Context, call Call, spec api.ActivityCallSpec, taskID string, attempt int) *api.Failure {
	now := d.now()
	task := api.ActivityTask{
		TaskID:       taskID,
		WorkflowID:   call.WorkflowID,
		RunID:        call.RunID,
		WorkflowType: call.WorkflowType,
		ActivityName: spec.ActivityName,
		Input:        spec.Input,
		Attempt:      attempt,
		ScheduledAt:  now,
		Deadline:     now.Add(spec.StartToCloseTimeout),
	}
	data, err := d.serde.SerializeBinary(&task)
	if err != nil {
		return api.NewFailure(api.KindConfiguration, fmt.Sprintf("encode task %s: %v", taskID, err))
	}

	d.record(ctx, call, taskID+".scheduled", &api.ActivityScheduled{
		WorkflowID:   call.WorkflowID,
		RunID:        call.RunID,
		TaskID:       taskID,
		ActivityName: spec.ActivityName,
		TaskQueue:    spec.TaskQueue,
		Input:        spec.Input,
		Attempt:      attempt,
	})

	msg := nats.NewMsg(d.backend.Names.ActivityTaskSubject(spec.TaskQueue))
	msg.Data = data
	msg.Header.Set(api.TaskKindHeader, api.ActivityTaskKind)
	msg.Header.Set(api.SerdeHeader, d.serde.Name())

	// the message ID makes a re-published task a no-op inside the duplicate window
	if _, err := d.backend.Conn.PublishJS(ctx, msg, jetstream.WithMsgID(taskID)); err != nil {
		return api.AsFailure(err, api.KindConnection)
	}
	return nil
}

func (d *Dispatcher) recordOutcome(ctx context.Context, call Call, spec api.ActivityCallSpec, taskID string, result api.ActivityResult) {
	if result.Failure != nil {
		d.record(ctx, call, taskID+".closed", &api.ActivityFailed{
			WorkflowID:   call.WorkflowID,
			RunID:        call.RunID,
			TaskID:       taskID,
			ActivityName: spec.ActivityName,
			Failure:      result.Failure,
		})
		return
	}
	d.record(ctx, call, taskID+".closed", &api.ActivityCompleted{
		WorkflowID:   call.WorkflowID,
		RunID:        call.RunID,
		TaskID:       taskID,
		ActivityName: spec.ActivityName,
		Result:       result.Payload,
	})
}

func (d *Dispatcher) record(ctx context.Context, call Call, dedupID string, ev api.HistoryEvent) {
	if d.history == nil {
		return
	}
	if err := d.history.Record(ctx, call.WorkflowID, call.RunID, dedupID, ev); err != nil && !errors.Is(err, context.Canceled) {
		d.log.WarnContext(ctx, "failed to record history", "event", ev.EventName(), "error", err)
	}
}

// expired tells a closed start-to-close window apart from a cancelled caller.
func expired(parent context.Context, spec api.ActivityCallSpec) *api.Failure {
	if parent.Err() != nil {
		return canceled(spec)
	}
	return api.NewFailure(api.KindTimeout, fmt.Sprintf("%s on %s did not complete within %s",
		spec.ActivityName, spec.TaskQueue, spec.StartToCloseTimeout))
}

func canceled(spec api.ActivityCallSpec) *api.Failure {
	return api.NewFailure(api.KindCanceled, fmt.Sprintf("%s on %s abandoned", spec.ActivityName, spec.TaskQueue))
}
