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
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/nats-io/nats.go/jetstream"
	"golang.org/x/sync/errgroup"

	"github.com/ngnhng/crossflow/api"
	"github.com/ngnhng/crossflow/api/serde"
	"github.com/ngnhng/crossflow/internal/dispatch"
	"github.com/ngnhng/crossflow/internal/history"
	jetstreamx "github.com/ngnhng/crossflow/internal/infra/jetstream"
)

const (
	DefaultMaxConcurrentTasks = 16
	DefaultAckWait            = 30 * time.Second
)

type (
	// WorkerOptions configures a worker. The namespace, connection and serde come
	// from the client the worker is created with.
	WorkerOptions struct {
		// TaskQueue is the single queue the worker consumes.
		TaskQueue string
		Logger    *slog.Logger

		// Identity names the worker process in presence entries and outcomes.
		// Defaults to the hostname followed by a random suffix.
		Identity string

		// MaxConcurrentTasks bounds the tasks processed at once.
		MaxConcurrentTasks int

		// AckWait is how long an unacknowledged task stays invisible to other
		// workers. Long-running tasks are kept alive with progress heartbeats.
		AckWait time.Duration

		// RetryPolicy applies to activities dispatched by workflows run on this
		// worker. A single attempt by default.
		RetryPolicy dispatch.RetryPolicy
	}

	Worker interface {
		RegisterWorkflow(name string, fn WorkflowFunc) error
		RegisterActivity(name string, fn ActivityFunc) error

		// Binding reports the queue and the names registered so far.
		Binding() api.WorkerBinding

		// Run processes tasks until ctx is done. In-flight tasks are handed back to
		// the queue on shutdown.
		Run(ctx context.Context) error
	}
)

var _ Worker = (*workerImpl)(nil)

type workerImpl struct {
	backend    *jetstreamx.Backend
	serde      serde.BinarySerde
	recorder   *history.Recorder
	dispatcher *dispatch.Dispatcher
	registry   *registry

	queue       string
	identity    string
	concurrency int
	ackWait     time.Duration
	startedAt   time.Time
	started     atomic.Bool

	logger *slog.Logger
	now    func() time.Time
}

func NewWorker(c Client, opts *WorkerOptions) (*workerImpl, error) {
	client, ok := c.(*clientImpl)
	if !ok || client == nil {
		return nil, api.NewFailure(api.KindConfiguration, "worker requires a client created by NewClient")
	}
	if opts == nil {
		return nil, api.NewFailure(api.KindConfiguration, "nil worker options")
	}
	if !api.ValidToken(opts.TaskQueue) {
		return nil, api.NewFailure(api.KindConfiguration, fmt.Sprintf("invalid task queue %q", opts.TaskQueue))
	}
	if err := opts.RetryPolicy.Validate(); err != nil {
		return nil, err
	}

	backend, s := client.backend, client.serde

	identity := opts.Identity
	if identity == "" {
		identity = defaultIdentity()
	}
	identity = sanitizeIdentity(identity)

	concurrency := opts.MaxConcurrentTasks
	if concurrency <= 0 {
		concurrency = DefaultMaxConcurrentTasks
	}
	ackWait := opts.AckWait
	if ackWait <= 0 {
		ackWait = DefaultAckWait
	}

	logger := opts.Logger
	if logger == nil {
		logger = client.baseLogger
	}
	logger = logger.With("component", "worker", "task_queue", opts.TaskQueue, "worker", identity)
	recorder := client.recorder

	return &workerImpl{
		backend:  backend,
		serde:    s,
		recorder: recorder,
		dispatcher: dispatch.New(backend, s,
			dispatch.WithRetryPolicy(opts.RetryPolicy),
			dispatch.WithRecorder(recorder),
			dispatch.WithLogger(logger),
		),
		registry:    newRegistry(),
		queue:       opts.TaskQueue,
		identity:    identity,
		concurrency: concurrency,
		ackWait:     ackWait,
		logger:      logger,
		now:         time.Now,
	}, nil
}

func (w *workerImpl) RegisterWorkflow(name string, fn WorkflowFunc) error {
	if w.started.Load() {
		return &RegistrationError{Name: name, Cause: ErrWorkerStarted}
	}
	return w.registry.addWorkflow(name, fn)
}

func (w *workerImpl) RegisterActivity(name string, fn ActivityFunc) error {
	if w.started.Load() {
		return &RegistrationError{Name: name, Cause: ErrWorkerStarted}
	}
	return w.registry.addActivity(name, fn)
}

func (w *workerImpl) Binding() api.WorkerBinding {
	workflows, activities := w.registry.names()
	return api.WorkerBinding{
		TaskQueue:  w.queue,
		Workflows:  workflows,
		Activities: activities,
		Identity:   w.identity,
		StartedAt:  w.startedAt,
	}
}

func (w *workerImpl) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrWorkerStarted
	}
	w.startedAt = w.now().UTC()

	binding := w.Binding()
	if err := binding.Validate(); err != nil {
		return err
	}

	cons, err := w.backend.QueueConsumer(ctx, w.queue, w.ackWait)
	if err != nil {
		return err
	}

	w.logger.InfoContext(ctx, "worker started",
		"workflows", binding.Workflows,
		"activities", binding.Activities,
		"max_concurrent_tasks", w.concurrency)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.announce(gCtx, binding)
	})
	g.Go(func() error {
		return w.consume(gCtx, cons)
	})

	err = g.Wait()
	if ctx.Err() != nil {
		w.logger.Info("worker stopped")
		return nil
	}
	return err
}

// consume pulls tasks from the queue consumer and handles each in its own
// goroutine, at most w.concurrency at a time.
func (w *workerImpl) consume(ctx context.Context, cons jetstream.Consumer) error {
	it, err := cons.Messages(jetstream.PullMaxMessages(w.concurrency))
	if err != nil {
		return fmt.Errorf("consume %s: %w", w.queue, err)
	}
	stop := context.AfterFunc(ctx, it.Stop)
	defer stop()

	var tasks errgroup.Group
	tasks.SetLimit(w.concurrency)
	for {
		msg, err := it.Next()
		if err != nil {
			if errors.Is(err, jetstream.ErrMsgIteratorClosed) || ctx.Err() != nil {
				break
			}
			w.logger.WarnContext(ctx, "task iterator error", "error", err)
			continue
		}
		tasks.Go(func() error {
			w.handle(ctx, msg)
			return nil
		})
	}
	return tasks.Wait()
}

func (w *workerImpl) handle(ctx context.Context, msg jetstream.Msg) {
	s, err := serde.New(msg.Headers().Get(api.SerdeHeader))
	if err != nil {
		w.logger.ErrorContext(ctx, "undecodable task, terminating", "subject", msg.Subject(), "error", err)
		_ = msg.Term()
		return
	}

	kind := msg.Headers().Get(api.TaskKindHeader)
	if kind == "" {
		kind = msg.Subject()[strings.LastIndexByte(msg.Subject(), '.')+1:]
	}

	switch kind {
	case api.WorkflowTaskKind:
		var task api.WorkflowTask
		if err := s.DeserializeBinary(msg.Data(), &task); err != nil {
			w.poison(ctx, msg, kind, err)
			return
		}
		w.handleWorkflow(ctx, msg, &task)
	case api.ActivityTaskKind:
		var task api.ActivityTask
		if err := s.DeserializeBinary(msg.Data(), &task); err != nil {
			w.poison(ctx, msg, kind, err)
			return
		}
		w.handleActivity(ctx, msg, &task)
	default:
		w.poison(ctx, msg, kind, fmt.Errorf("unknown task kind"))
	}
}

func (w *workerImpl) poison(ctx context.Context, msg jetstream.Msg, kind string, err error) {
	w.logger.ErrorContext(ctx, "received poison pill, terminating task",
		"kind", kind,
		"subject", msg.Subject(),
		"error", err)
	_ = msg.Term()
}

// announce keeps the worker's binding in the presence bucket until ctx is done.
func (w *workerImpl) announce(ctx context.Context, binding api.WorkerBinding) error {
	key := api.WorkerKey(w.queue, w.identity)
	data, err := w.serde.SerializeBinary(&binding)
	if err != nil {
		return fmt.Errorf("encode binding: %w", err)
	}

	ticker := time.NewTicker(api.WorkerPresenceTTL / 3)
	defer ticker.Stop()
	for {
		if _, err := w.backend.Workers.Put(ctx, key, data); err != nil && ctx.Err() == nil {
			w.logger.WarnContext(ctx, "failed to refresh presence", "error", err)
		}
		select {
		case <-ctx.Done():
			cleanup, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			_ = w.backend.Workers.Delete(cleanup, key)
			return nil
		case <-ticker.C:
		}
	}
}

func defaultIdentity() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return host + "-" + uuid.Must(uuid.NewV4()).String()[:8]
}

// sanitizeIdentity keeps the identity usable as a single KV key token.
func sanitizeIdentity(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, s)
}
