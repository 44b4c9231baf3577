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

package internal_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"

	"github.com/ngnhng/crossflow/api"
	"github.com/ngnhng/crossflow/api/serde"
	"github.com/ngnhng/crossflow/internal/infra/jetstream/jstest"
	"github.com/ngnhng/crossflow/sdk/internal"
)

const namespace = "sdk"

type env struct {
	t      *testing.T
	server *server.Server
	client internal.Client
}

func newEnv(t *testing.T) *env {
	ns := jstest.RunServer(t)
	return &env{t: t, server: ns, client: newClient(t, ns, &serde.JsonSerde{})}
}

func newClient(t *testing.T, ns *server.Server, s serde.BinarySerde) internal.Client {
	t.Helper()
	nc, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	c, err := internal.NewClient(context.Background(), &internal.ClientOptions{Namespace: namespace, Conn: nc, Serde: s})
	require.NoError(t, err)
	return c
}

type registration func(w internal.Worker) error

func workflowNamed(name string, fn internal.WorkflowFunc) registration {
	return func(w internal.Worker) error { return w.RegisterWorkflow(name, fn) }
}

func activityNamed(name string, fn internal.ActivityFunc) registration {
	return func(w internal.Worker) error { return w.RegisterActivity(name, fn) }
}

// start runs a worker on queue and returns a func stopping it. The worker is
// stopped when the test ends at the latest.
func (e *env) start(queue string, regs ...registration) (stop func()) {
	e.t.Helper()
	return e.startWith(internal.WorkerOptions{TaskQueue: queue}, regs...)
}

func (e *env) startWith(opts internal.WorkerOptions, regs ...registration) (stop func()) {
	e.t.Helper()
	if opts.Identity == "" {
		opts.Identity = "test-" + opts.TaskQueue
	}
	w, err := internal.NewWorker(e.client, &opts)
	require.NoError(e.t, err)
	for _, r := range regs {
		require.NoError(e.t, r(w))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	var once sync.Once
	stop = func() {
		once.Do(func() {
			cancel()
			require.NoError(e.t, <-done)
		})
	}
	e.t.Cleanup(stop)
	return stop
}

func call(activity, queue string, timeout time.Duration, input ...string) api.ActivityCallSpec {
	return api.ActivityCallSpec{ActivityName: activity, Input: input, TaskQueue: queue, StartToCloseTimeout: timeout}
}

func invoke(ctx internal.Context, spec api.ActivityCallSpec) (string, error) {
	r := ctx.Invoke(ctx, spec)
	return r.Payload, r.Err()
}

func upper(_ context.Context, args ...string) (string, error) {
	return strings.ToUpper(args[0]), nil
}

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestWorkflowRoundTrip(t *testing.T) {
	for _, s := range []serde.BinarySerde{&serde.JsonSerde{}, &serde.MsgpackSerde{}} {
		t.Run(s.Name(), func(t *testing.T) {
			ns := jstest.RunServer(t)
			e := &env{t: t, server: ns, client: newClient(t, ns, s)}
			e.start("q",
				workflowNamed("Shout", func(ctx internal.Context, input string) (string, error) {
					return invoke(ctx, call("upper", "q", 5*time.Second, input))
				}),
				activityNamed("upper", upper),
			)

			ctx := testCtx(t)
			run, err := e.client.StartWorkflow(ctx, internal.StartWorkflowOptions{ID: "shout", TaskQueue: "q"}, "Shout", "hello")
			require.NoError(t, err)
			require.Equal(t, "shout", run.ID())

			got, err := run.Get(ctx)
			require.NoError(t, err)
			require.Equal(t, "HELLO", got)
		})
	}
}

func TestStartWorkflow_ConcurrentStartsShareOneRun(t *testing.T) {
	e := newEnv(t)
	ctx := testCtx(t)

	const starters = 8
	runIDs := make([]string, starters)
	var wg sync.WaitGroup
	for i := range starters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run, err := e.client.StartWorkflow(ctx, internal.StartWorkflowOptions{ID: "once", TaskQueue: "q"}, "Count", "x")
			require.NoError(t, err)
			runIDs[i] = run.RunID()
		}()
	}
	wg.Wait()
	for _, id := range runIDs {
		require.Equal(t, runIDs[0], id)
	}

	b := jstest.Backend(t, e.server, namespace)
	info, err := b.Tasks.Info(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, info.State.Msgs, "exactly one workflow task queued")

	var executions atomic.Int32
	e.start("q", workflowNamed("Count", func(internal.Context, string) (string, error) {
		executions.Add(1)
		return "n", nil
	}))

	run, err := e.client.GetWorkflow(ctx, "once", runIDs[0])
	require.NoError(t, err)
	got, err := run.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "n", got)
	require.EqualValues(t, 1, executions.Load())
}

func TestStartWorkflow_ClosedIDStartsFreshRun(t *testing.T) {
	e := newEnv(t)
	var n atomic.Int32
	e.start("q", workflowNamed("Tick", func(internal.Context, string) (string, error) {
		if n.Add(1) == 1 {
			return "first", nil
		}
		return "second", nil
	}))
	ctx := testCtx(t)

	first, err := e.client.StartWorkflow(ctx, internal.StartWorkflowOptions{ID: "tick", TaskQueue: "q"}, "Tick", "")
	require.NoError(t, err)
	got, err := first.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "first", got)

	second, err := e.client.StartWorkflow(ctx, internal.StartWorkflowOptions{ID: "tick", TaskQueue: "q"}, "Tick", "")
	require.NoError(t, err)
	require.NotEqual(t, first.RunID(), second.RunID())
	got, err = second.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "second", got)

	// the replaced run still answers from history
	got, err = first.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "first", got)

	_, err = e.client.GetWorkflow(ctx, "tick", first.RunID())
	require.ErrorIs(t, err, internal.ErrWorkflowNotFound)
}

func TestStartWorkflow_RejectsInvalidOptions(t *testing.T) {
	e := newEnv(t)
	ctx := testCtx(t)

	_, err := e.client.StartWorkflow(ctx, internal.StartWorkflowOptions{ID: "a.b", TaskQueue: "q"}, "W", "")
	require.ErrorIs(t, err, api.ErrConfiguration)
	_, err = e.client.StartWorkflow(ctx, internal.StartWorkflowOptions{ID: "a", TaskQueue: "q.*"}, "W", "")
	require.ErrorIs(t, err, api.ErrConfiguration)
	_, err = e.client.StartWorkflow(ctx, internal.StartWorkflowOptions{ID: "a", TaskQueue: "q"}, "", "")
	require.ErrorIs(t, err, api.ErrConfiguration)
}

func TestWorkflow_UnregisteredActivityFails(t *testing.T) {
	e := newEnv(t)
	e.start("q",
		workflowNamed("Broken", func(ctx internal.Context, input string) (string, error) {
			return invoke(ctx, call("missing", "q", 5*time.Second, input))
		}),
		activityNamed("upper", upper),
	)
	ctx := testCtx(t)

	run, err := e.client.StartWorkflow(ctx, internal.StartWorkflowOptions{ID: "broken", TaskQueue: "q"}, "Broken", "x")
	require.NoError(t, err)
	_, err = run.Get(ctx)

	var execErr *internal.WorkflowExecutionError
	require.True(t, errors.As(err, &execErr))
	require.ErrorIs(t, err, api.ErrActivityFailure)
	require.Contains(t, execErr.Failure.Message, "not registered")
}

func TestWorkflow_UnregisteredTypeFails(t *testing.T) {
	e := newEnv(t)
	e.start("q", activityNamed("upper", upper))
	ctx := testCtx(t)

	run, err := e.client.StartWorkflow(ctx, internal.StartWorkflowOptions{ID: "ghost", TaskQueue: "q"}, "Ghost", "")
	require.NoError(t, err)
	_, err = run.Get(ctx)
	require.ErrorIs(t, err, api.ErrConfiguration)
}

func TestWorkflow_ActivityTimeout(t *testing.T) {
	e := newEnv(t)
	e.start("q",
		workflowNamed("Wait", func(ctx internal.Context, input string) (string, error) {
			return invoke(ctx, call("sleep", "q", 300*time.Millisecond))
		}),
		activityNamed("sleep", func(ctx context.Context, _ ...string) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		}),
	)
	ctx := testCtx(t)

	run, err := e.client.StartWorkflow(ctx, internal.StartWorkflowOptions{ID: "wait", TaskQueue: "q"}, "Wait", "")
	require.NoError(t, err)
	_, err = run.Get(ctx)
	require.ErrorIs(t, err, api.ErrTimeout)
}

func TestCancelWorkflow_RunningRun(t *testing.T) {
	e := newEnv(t)
	e.start("q", workflowNamed("Stuck", func(ctx internal.Context, input string) (string, error) {
		// nobody serves the queue
		return invoke(ctx, call("never", "empty-queue", time.Minute))
	}))
	ctx := testCtx(t)

	run, err := e.client.StartWorkflow(ctx, internal.StartWorkflowOptions{ID: "stuck", TaskQueue: "q"}, "Stuck", "")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		rec, err := e.client.DescribeWorkflow(ctx, "stuck")
		return err == nil && rec.Status == api.StatusRunning
	}, 10*time.Second, 20*time.Millisecond)

	require.NoError(t, e.client.CancelWorkflow(ctx, "stuck", run.RunID()))
	_, err = run.Get(ctx)
	require.ErrorIs(t, err, api.ErrCanceled)

	// cancelling a closed run does nothing
	require.NoError(t, e.client.CancelWorkflow(ctx, "stuck", ""))
	rec, err := e.client.DescribeWorkflow(ctx, "stuck")
	require.NoError(t, err)
	require.Equal(t, api.StatusFailed, rec.Status)
}

func TestCancelWorkflow_BeforeAnyWorker(t *testing.T) {
	e := newEnv(t)
	ctx := testCtx(t)

	run, err := e.client.StartWorkflow(ctx, internal.StartWorkflowOptions{ID: "early", TaskQueue: "q"}, "Never", "")
	require.NoError(t, err)
	require.NoError(t, e.client.CancelWorkflow(ctx, "early", ""))

	var ran atomic.Bool
	e.start("q", workflowNamed("Never", func(internal.Context, string) (string, error) {
		ran.Store(true)
		return "", nil
	}))

	_, err = run.Get(ctx)
	require.ErrorIs(t, err, api.ErrCanceled)
	require.False(t, ran.Load())

	require.ErrorIs(t, e.client.CancelWorkflow(ctx, "unknown", ""), internal.ErrWorkflowNotFound)
}

func TestWorker_QueuesAreIsolated(t *testing.T) {
	e := newEnv(t)
	who := func(name string) internal.WorkflowFunc {
		return func(internal.Context, string) (string, error) { return name, nil }
	}
	e.start("alpha", workflowNamed("Who", who("alpha")))
	e.start("beta", workflowNamed("Who", who("beta")))
	ctx := testCtx(t)

	for _, q := range []string{"alpha", "beta", "alpha"} {
		run, err := e.client.StartWorkflow(ctx, internal.StartWorkflowOptions{TaskQueue: q}, "Who", "")
		require.NoError(t, err)
		got, err := run.Get(ctx)
		require.NoError(t, err)
		require.Equal(t, q, got)
	}
}

func TestWorker_ResumesRunAfterRestart(t *testing.T) {
	e := newEnv(t)
	var upperCalls atomic.Int32
	countedUpper := func(ctx context.Context, args ...string) (string, error) {
		upperCalls.Add(1)
		return upper(ctx, args...)
	}
	twoSteps := func(ctx internal.Context, input string) (string, error) {
		a, err := invoke(ctx, call("upper", "acts", 10*time.Second, input))
		if err != nil {
			return "", err
		}
		b, err := invoke(ctx, call("suffix", "late", 10*time.Second, a))
		if err != nil {
			return "", err
		}
		return b, nil
	}

	e.start("acts", activityNamed("upper", countedUpper))
	// a short ack wait bounds the redelivery of a task pulled by the stopped worker
	mainOpts := internal.WorkerOptions{TaskQueue: "main", AckWait: 2 * time.Second}
	stopFirst := e.startWith(mainOpts, workflowNamed("TwoSteps", twoSteps))
	ctx := testCtx(t)

	run, err := e.client.StartWorkflow(ctx, internal.StartWorkflowOptions{ID: "resume", TaskQueue: "main"}, "TwoSteps", "abc")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return upperCalls.Load() == 1 }, 10*time.Second, 20*time.Millisecond)

	// first step done, second step waiting on a queue nobody serves yet
	stopFirst()
	rec, err := e.client.DescribeWorkflow(ctx, "resume")
	require.NoError(t, err)
	require.Equal(t, api.StatusRunning, rec.Status)

	e.startWith(mainOpts, workflowNamed("TwoSteps", twoSteps))
	e.start("late", activityNamed("suffix", func(_ context.Context, args ...string) (string, error) {
		return args[0] + "!", nil
	}))

	got, err := run.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "ABC!", got)
	require.EqualValues(t, 1, upperCalls.Load(), "completed step must not run again")
}

func TestWorker_Registration(t *testing.T) {
	e := newEnv(t)
	w, err := internal.NewWorker(e.client, &internal.WorkerOptions{TaskQueue: "q"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.ErrorIs(t, w.Run(ctx), api.ErrConfiguration, "nothing registered")

	w, err = internal.NewWorker(e.client, &internal.WorkerOptions{TaskQueue: "q"})
	require.NoError(t, err)
	require.NoError(t, w.RegisterActivity("upper", upper))
	require.ErrorIs(t, w.RegisterActivity("upper", upper), internal.ErrDuplicateRegistration)

	var regErr *internal.RegistrationError
	require.True(t, errors.As(w.RegisterWorkflow("", func(internal.Context, string) (string, error) { return "", nil }), &regErr))

	_, err = internal.NewWorker(e.client, &internal.WorkerOptions{TaskQueue: "bad queue"})
	require.ErrorIs(t, err, api.ErrConfiguration)
	_, err = internal.NewWorker(nil, &internal.WorkerOptions{TaskQueue: "q"})
	require.ErrorIs(t, err, api.ErrConfiguration)
}

func TestDescribeTaskQueue(t *testing.T) {
	e := newEnv(t)
	ctx := testCtx(t)

	bindings, err := e.client.DescribeTaskQueue(ctx, "q")
	require.NoError(t, err)
	require.Empty(t, bindings)

	e.start("q", activityNamed("upper", upper), workflowNamed("Shout", func(internal.Context, string) (string, error) { return "", nil }))
	e.start("other", activityNamed("upper", upper))

	require.Eventually(t, func() bool {
		bindings, err = e.client.DescribeTaskQueue(ctx, "q")
		return err == nil && len(bindings) == 1
	}, 5*time.Second, 20*time.Millisecond)
	require.Equal(t, "q", bindings[0].TaskQueue)
	require.Equal(t, "test-q", bindings[0].Identity)
	require.Equal(t, []string{"Shout"}, bindings[0].Workflows)
	require.Equal(t, []string{"upper"}, bindings[0].Activities)
}

func TestDial(t *testing.T) {
	ns := jstest.RunServer(t)

	c, err := internal.Dial(testCtx(t), ns.ClientURL(), &internal.ClientOptions{Namespace: namespace})
	require.NoError(t, err)

	_, err = c.DescribeWorkflow(testCtx(t), "missing")
	require.ErrorIs(t, err, internal.ErrWorkflowNotFound)

	c.Close()
	_, err = c.DescribeWorkflow(testCtx(t), "missing")
	require.ErrorIs(t, err, api.ErrConnection)

	_, err = internal.Dial(testCtx(t), "nats://127.0.0.1:1", nil)
	require.ErrorIs(t, err, api.ErrConnection)
}
