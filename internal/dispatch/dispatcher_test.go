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

package dispatch_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"

	"github.com/ngnhng/crossflow/api"
	"github.com/ngnhng/crossflow/api/serde"
	"github.com/ngnhng/crossflow/internal/dispatch"
	"github.com/ngnhng/crossflow/internal/history"
	jetstreamx "github.com/ngnhng/crossflow/internal/infra/jetstream"
	"github.com/ngnhng/crossflow/internal/infra/jetstream/jstest"
)

const queue = "go-task-queue"

func spec(timeout time.Duration) api.ActivityCallSpec {
	return api.ActivityCallSpec{
		ActivityName:        "ProcessGo",
		Input:               []string{"hi", "go"},
		TaskQueue:           queue,
		Language:            "go",
		StartToCloseTimeout: timeout,
	}
}

var call = dispatch.Call{WorkflowID: "wf", RunID: "run", WorkflowType: "CrossLanguageWorkflow", Seq: 1}

// fakeWorker serves queue and answers every task with respond.
type fakeWorker struct {
	mu    sync.Mutex
	tasks []api.ActivityTask
}

func startWorker(t *testing.T, b *jetstreamx.Backend, respond func(api.ActivityTask) api.ActivityOutcome) *fakeWorker {
	t.Helper()
	s := &serde.JsonSerde{}
	w := &fakeWorker{}

	cons, err := b.QueueConsumer(context.Background(), queue, time.Second)
	require.NoError(t, err)
	cc, err := cons.Consume(func(msg jetstream.Msg) {
		var task api.ActivityTask
		if err := s.DeserializeBinary(msg.Data(), &task); err != nil {
			_ = msg.Term()
			return
		}
		w.mu.Lock()
		w.tasks = append(w.tasks, task)
		w.mu.Unlock()

		out := respond(task)
		out.TaskID = task.TaskID
		data, _ := s.SerializeBinary(out)
		_, _ = b.Results.Create(context.Background(), task.TaskID, data)
		_ = msg.Ack()
	})
	require.NoError(t, err)
	t.Cleanup(cc.Stop)
	return w
}

func (w *fakeWorker) seen() []api.ActivityTask {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]api.ActivityTask(nil), w.tasks...)
}

func newDispatcher(b *jetstreamx.Backend, opts ...dispatch.Option) *dispatch.Dispatcher {
	s := &serde.JsonSerde{}
	opts = append([]dispatch.Option{dispatch.WithRecorder(history.NewRecorder(b, s))}, opts...)
	return dispatch.New(b, s, opts...)
}

func TestDispatch_Success(t *testing.T) {
	ns := jstest.RunServer(t)
	b := jstest.Backend(t, ns, "default")
	w := startWorker(t, b, func(task api.ActivityTask) api.ActivityOutcome {
		return api.ActivityOutcome{Result: "Go says: " + task.Input[0]}
	})

	res := newDispatcher(b).Dispatch(context.Background(), call, spec(5*time.Second))
	require.NoError(t, res.Err())
	require.Equal(t, "Go says: hi", res.Payload)

	tasks := w.seen()
	require.Len(t, tasks, 1)
	require.Equal(t, "run.1.1", tasks[0].TaskID)
	require.Equal(t, 1, tasks[0].Attempt)
	require.Equal(t, []string{"hi", "go"}, tasks[0].Input)
	require.WithinDuration(t, tasks[0].ScheduledAt.Add(5*time.Second), tasks[0].Deadline, time.Millisecond)

	events, err := history.Read(context.Background(), b, "wf", "run")
	require.NoError(t, err)
	require.Equal(t, []string{"activity/scheduled", "activity/completed"}, history.Names(events))
}

func TestDispatch_ActivityFailure(t *testing.T) {
	ns := jstest.RunServer(t)
	b := jstest.Backend(t, ns, "default")
	startWorker(t, b, func(api.ActivityTask) api.ActivityOutcome {
		return api.ActivityOutcome{Failure: api.NewFailure(api.KindActivityFailure, "boom")}
	})

	res := newDispatcher(b).Dispatch(context.Background(), call, spec(5*time.Second))
	require.ErrorIs(t, res.Err(), api.ErrActivityFailure)
	require.Contains(t, res.Err().Error(), "boom")

	events, err := history.Read(context.Background(), b, "wf", "run")
	require.NoError(t, err)
	require.Equal(t, []string{"activity/scheduled", "activity/failed"}, history.Names(events))
}

func TestDispatch_NoWorkerTimesOut(t *testing.T) {
	ns := jstest.RunServer(t)
	b := jstest.Backend(t, ns, "default")

	start := time.Now()
	res := newDispatcher(b).Dispatch(context.Background(), call, spec(300*time.Millisecond))
	require.ErrorIs(t, res.Err(), api.ErrTimeout)
	require.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)

	// the task stays queued for a worker that may still come
	info, err := b.Tasks.Info(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, info.State.Msgs)
}

func TestDispatch_CancelAbandonsCall(t *testing.T) {
	ns := jstest.RunServer(t)
	b := jstest.Backend(t, ns, "default")

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	res := newDispatcher(b).Dispatch(ctx, call, spec(10*time.Second))
	require.ErrorIs(t, res.Err(), api.ErrCanceled)
}

func TestDispatch_RetriesUnderneath(t *testing.T) {
	ns := jstest.RunServer(t)
	b := jstest.Backend(t, ns, "default")
	w := startWorker(t, b, func(task api.ActivityTask) api.ActivityOutcome {
		if task.Attempt < 3 {
			return api.ActivityOutcome{Failure: api.NewFailure(api.KindActivityFailure, "flaky")}
		}
		return api.ActivityOutcome{Result: "third time"}
	})

	d := newDispatcher(b, dispatch.WithRetryPolicy(dispatch.RetryPolicy{
		MaximumAttempts:    3,
		InitialInterval:    10 * time.Millisecond,
		BackoffCoefficient: 2,
		MaximumInterval:    50 * time.Millisecond,
	}))
	res := d.Dispatch(context.Background(), call, spec(5*time.Second))
	require.NoError(t, res.Err())
	require.Equal(t, "third time", res.Payload)

	var ids []string
	for _, task := range w.seen() {
		ids = append(ids, task.TaskID)
	}
	require.Equal(t, []string{"run.1.1", "run.1.2", "run.1.3"}, ids)
}

func TestDispatch_DefaultPolicyDoesNotRetry(t *testing.T) {
	ns := jstest.RunServer(t)
	b := jstest.Backend(t, ns, "default")
	w := startWorker(t, b, func(api.ActivityTask) api.ActivityOutcome {
		return api.ActivityOutcome{Failure: api.NewFailure(api.KindActivityFailure, "once")}
	})

	res := newDispatcher(b).Dispatch(context.Background(), call, spec(5*time.Second))
	require.ErrorIs(t, res.Err(), api.ErrActivityFailure)
	require.Len(t, w.seen(), 1)
}

func TestDispatch_ReplaysRecordedOutcome(t *testing.T) {
	ns := jstest.RunServer(t)
	b := jstest.Backend(t, ns, "default")
	s := &serde.JsonSerde{}

	data, err := s.SerializeBinary(api.ActivityOutcome{TaskID: "run.1.1", Result: "from before the crash"})
	require.NoError(t, err)
	_, err = b.Results.Create(context.Background(), "run.1.1", data)
	require.NoError(t, err)

	res := newDispatcher(b).Dispatch(context.Background(), call, spec(time.Second))
	require.NoError(t, res.Err())
	require.Equal(t, "from before the crash", res.Payload)

	info, err := b.Tasks.Info(context.Background())
	require.NoError(t, err)
	require.Zero(t, info.State.Msgs, "a recorded outcome must not be dispatched again")
}

func TestDispatch_RejectsIncompleteCall(t *testing.T) {
	ns := jstest.RunServer(t)
	b := jstest.Backend(t, ns, "default")
	d := newDispatcher(b)

	bad := spec(time.Second)
	bad.TaskQueue = "bad.queue"
	require.ErrorIs(t, d.Dispatch(context.Background(), call, bad).Err(), api.ErrConfiguration)
	require.ErrorIs(t, d.Dispatch(context.Background(), call, spec(0)).Err(), api.ErrConfiguration)
	require.ErrorIs(t, d.Dispatch(context.Background(), dispatch.Call{}, spec(time.Second)).Err(), api.ErrConfiguration)
}

func TestRetryPolicy_Validate(t *testing.T) {
	require.NoError(t, dispatch.DefaultRetryPolicy().Validate())
	require.NoError(t, dispatch.ExponentialRetryPolicy(5).Validate())
	require.NoError(t, dispatch.RetryPolicy{}.Validate())
	require.ErrorIs(t, dispatch.RetryPolicy{MaximumAttempts: -1}.Validate(), api.ErrConfiguration)
	require.ErrorIs(t, dispatch.RetryPolicy{BackoffCoefficient: 0.5}.Validate(), api.ErrConfiguration)
	require.ErrorIs(t, dispatch.RetryPolicy{InitialInterval: time.Minute, MaximumInterval: time.Second}.Validate(), api.ErrConfiguration)
}
