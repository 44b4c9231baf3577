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
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/ngnhng/crossflow/api"
)

var errCancelRequested = errors.New("workflow cancellation requested")

type claim int

const (
	claimSkip claim = iota
	claimRun
	claimCancel
)

func (w *workerImpl) handleWorkflow(ctx context.Context, msg jetstream.Msg, task *api.WorkflowTask) {
	log := w.logger.With("workflow_id", task.WorkflowID, "run_id", task.RunID, "workflow_type", task.WorkflowType)

	verdict, err := w.claim(ctx, msg, task)
	if err != nil {
		if ctx.Err() == nil {
			log.ErrorContext(ctx, "failed to claim workflow task, sending NAK", "error", &TaskProcessingError{
				TaskKind: api.WorkflowTaskKind, TaskID: task.RunID, WorkflowID: task.WorkflowID, Cause: err,
			})
		}
		_ = msg.NakWithDelay(time.Second)
		return
	}

	switch verdict {
	case claimSkip:
		log.DebugContext(ctx, "workflow task is stale or already claimed, sending ACK")
		_ = msg.Ack()
		return
	case claimCancel:
		w.closeRun(ctx, msg, task, "", api.NewFailure(api.KindCanceled, "workflow cancelled before it started"))
		return
	}

	fn, ok := w.registry.workflow(task.WorkflowType)
	if !ok {
		w.closeRun(ctx, msg, task, "", api.NewFailure(api.KindConfiguration,
			fmt.Sprintf("workflow type %q is not registered on %s", task.WorkflowType, w.queue)))
		return
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	stop := w.keepAlive(runCtx, msg)
	defer stop()
	go w.watchCancel(runCtx, task, cancel)

	meta, _ := msg.Metadata()
	attempt := 1
	if meta != nil {
		attempt = int(meta.NumDelivered)
	}
	info := WorkflowInfo{
		WorkflowID:   task.WorkflowID,
		RunID:        task.RunID,
		WorkflowType: task.WorkflowType,
		TaskQueue:    w.queue,
		Attempt:      attempt,
	}

	log.InfoContext(ctx, "workflow run started", "attempt", attempt)
	result, err := runWorkflowFunc(newWorkflowContext(runCtx, info, w.dispatcher, w.logger), fn, task.Input)

	switch {
	case errors.Is(context.Cause(runCtx), errCancelRequested):
		w.closeRun(ctx, msg, task, "", api.NewFailure(api.KindCanceled, "workflow cancelled"))
	case ctx.Err() != nil:
		log.Info("worker stopping, returning workflow task to the queue")
		_ = msg.Nak()
	case err != nil:
		w.closeRun(ctx, msg, task, "", api.AsFailure(err, api.KindActivityFailure))
	default:
		w.closeRun(ctx, msg, task, result, nil)
	}
}

// claim moves the run of task from Started to Running. A run that is already
// Running is resumed only on a redelivery, which means its previous worker
// stopped without closing it; a first delivery for a Running run is a duplicate.
func (w *workerImpl) claim(ctx context.Context, msg jetstream.Msg, task *api.WorkflowTask) (claim, error) {
	for {
		entry, err := w.backend.Runs.Get(ctx, task.WorkflowID)
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return claimSkip, nil
		}
		if err != nil {
			return claimSkip, err
		}

		var rec api.WorkflowRecord
		if err := w.serde.DeserializeBinary(entry.Value(), &rec); err != nil {
			return claimSkip, fmt.Errorf("decode workflow record: %w", err)
		}
		if rec.RunID != task.RunID || rec.Status.Terminal() {
			return claimSkip, nil
		}

		switch rec.Status {
		case api.StatusCancelRequested:
			return claimCancel, nil
		case api.StatusRunning:
			meta, err := msg.Metadata()
			if err == nil && meta.NumDelivered > 1 {
				return claimRun, nil
			}
			return claimSkip, nil
		}

		rec.Status = api.StatusRunning
		data, err := w.serde.SerializeBinary(&rec)
		if err != nil {
			return claimSkip, fmt.Errorf("encode workflow record: %w", err)
		}
		if _, err := w.backend.Runs.Update(ctx, task.WorkflowID, data, entry.Revision()); err != nil {
			if isRevisionConflict(err) {
				continue
			}
			return claimSkip, err
		}
		return claimRun, nil
	}
}

func (w *workerImpl) watchCancel(ctx context.Context, task *api.WorkflowTask, cancel context.CancelCauseFunc) {
	watcher, err := w.backend.Runs.Watch(ctx, task.WorkflowID)
	if err != nil {
		return
	}
	defer watcher.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case entry, ok := <-watcher.Updates():
			if !ok {
				return
			}
			if entry == nil || entry.Operation() != jetstream.KeyValuePut {
				continue
			}
			var rec api.WorkflowRecord
			if err := w.serde.DeserializeBinary(entry.Value(), &rec); err != nil {
				continue
			}
			if rec.RunID == task.RunID && rec.Status == api.StatusCancelRequested {
				cancel(errCancelRequested)
				return
			}
		}
	}
}

// closeRun writes the final state of the run, records it in history and
// acknowledges the task. Exactly one of result and failure is meaningful.
func (w *workerImpl) closeRun(ctx context.Context, msg jetstream.Msg, task *api.WorkflowTask, result string, failure *api.Failure) {
	log := w.logger.With("workflow_id", task.WorkflowID, "run_id", task.RunID)

	status := api.StatusCompleted
	if failure != nil {
		status = api.StatusFailed
	}

	op := func() error {
		entry, err := w.backend.Runs.Get(ctx, task.WorkflowID)
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		var rec api.WorkflowRecord
		if err := w.serde.DeserializeBinary(entry.Value(), &rec); err != nil {
			return backoff.Permanent(fmt.Errorf("decode workflow record: %w", err))
		}
		if rec.RunID != task.RunID || rec.Status.Terminal() {
			return nil
		}
		rec.Status = status
		rec.Result = result
		rec.Failure = failure
		rec.ClosedAt = w.now().UTC()
		data, err := w.serde.SerializeBinary(&rec)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("encode workflow record: %w", err))
		}
		_, err = w.backend.Runs.Update(ctx, task.WorkflowID, data, entry.Revision())
		return err
	}
	if err := backoff.Retry(op, backoff.WithContext(storeBackOff(), ctx)); err != nil {
		log.ErrorContext(ctx, "failed to close workflow run, sending NAK", "error", err)
		_ = msg.NakWithDelay(time.Second)
		return
	}

	var ev api.HistoryEvent = &api.WorkflowCompleted{WorkflowID: task.WorkflowID, RunID: task.RunID, Result: result}
	if failure != nil {
		ev = &api.WorkflowFailed{WorkflowID: task.WorkflowID, RunID: task.RunID, Failure: failure}
	}
	if err := w.recorder.Record(ctx, task.WorkflowID, task.RunID, task.RunID+".closed", ev); err != nil {
		log.WarnContext(ctx, "failed to record workflow close", "error", err)
	}

	if failure != nil {
		log.WarnContext(ctx, "workflow run failed", "failure", failure)
	} else {
		log.InfoContext(ctx, "workflow run completed")
	}
	_ = msg.Ack()
}

func (w *workerImpl) handleActivity(ctx context.Context, msg jetstream.Msg, task *api.ActivityTask) {
	log := w.logger.With("task_id", task.TaskID, "activity", task.ActivityName, "attempt", task.Attempt)

	if !task.Deadline.IsZero() && w.now().After(task.Deadline) {
		log.WarnContext(ctx, "activity task expired before it started, terminating")
		_ = msg.Term()
		return
	}
	if _, err := w.backend.Results.Get(ctx, task.TaskID); err == nil {
		log.DebugContext(ctx, "activity outcome already stored, sending ACK")
		_ = msg.Ack()
		return
	}

	outcome := api.ActivityOutcome{TaskID: task.TaskID, Worker: w.identity}

	fn, ok := w.registry.activity(task.ActivityName)
	if !ok {
		outcome.Failure = api.NewFailure(api.KindActivityFailure,
			fmt.Sprintf("activity %s is not registered on %s", task.ActivityName, w.queue))
	} else {
		var (
			runCtx context.Context
			cancel context.CancelFunc
		)
		if task.Deadline.IsZero() {
			runCtx, cancel = context.WithCancel(ctx)
		} else {
			runCtx, cancel = context.WithDeadline(ctx, task.Deadline)
		}
		stop := w.keepAlive(runCtx, msg)
		result, err := runActivityFunc(runCtx, fn, task.Input)
		stop()
		cancel()

		switch {
		case ctx.Err() != nil:
			log.Info("worker stopping, returning activity task to the queue")
			_ = msg.Nak()
			return
		case errors.Is(err, context.DeadlineExceeded):
			outcome.Failure = api.NewFailure(api.KindTimeout,
				fmt.Sprintf("%s exceeded its start-to-close timeout", task.ActivityName))
		case err != nil:
			outcome.Failure = api.AsFailure(err, api.KindActivityFailure)
		default:
			outcome.Result = result
		}
	}
	outcome.CompletedAt = w.now().UTC()

	data, err := w.serde.SerializeBinary(&outcome)
	if err != nil {
		log.ErrorContext(ctx, "failed to encode outcome, terminating", "error", err)
		_ = msg.Term()
		return
	}
	store := func() error {
		_, err := w.backend.Results.Create(ctx, task.TaskID, data)
		if errors.Is(err, jetstream.ErrKeyExists) {
			return nil
		}
		return err
	}
	if err := backoff.Retry(store, backoff.WithContext(storeBackOff(), ctx)); err != nil {
		log.ErrorContext(ctx, "failed to store activity outcome, sending NAK", "error", &TaskProcessingError{
			TaskKind: api.ActivityTaskKind, TaskID: task.TaskID, WorkflowID: task.WorkflowID, Cause: err,
		})
		_ = msg.NakWithDelay(time.Second)
		return
	}

	if outcome.Failure != nil {
		log.WarnContext(ctx, "activity failed", "failure", outcome.Failure)
	} else {
		log.DebugContext(ctx, "activity completed")
	}
	_ = msg.Ack()
}

// keepAlive reports progress on msg until stop is called, so a task running
// longer than the ack wait is not redelivered to another worker.
func (w *workerImpl) keepAlive(ctx context.Context, msg jetstream.Msg) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(w.ackWait / 3)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := msg.InProgress(); err != nil {
					w.logger.Debug("progress heartbeat failed", "subject", msg.Subject(), "error", err)
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func storeBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	return backoff.WithMaxRetries(b, 8)
}

func runWorkflowFunc(ctx Context, fn WorkflowFunc, input string) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("workflow panicked: %v", r)
		}
	}()
	return fn(ctx, input)
}

func runActivityFunc(ctx context.Context, fn ActivityFunc, args []string) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("activity panicked: %v", r)
		}
	}()
	return fn(ctx, args...)
}
