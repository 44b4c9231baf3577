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
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/ngnhng/crossflow/api"
	"github.com/ngnhng/crossflow/api/serde"
	"github.com/ngnhng/crossflow/internal/history"
	jetstreamx "github.com/ngnhng/crossflow/internal/infra/jetstream"
)

type Client interface {
	// StartWorkflow starts a run of workflowType on opts.TaskQueue under opts.ID.
	// Starting an ID whose current run is still live returns that run instead of
	// creating a second one. An ID whose run has closed gets a new run.
	StartWorkflow(ctx context.Context, opts StartWorkflowOptions, workflowType string, input string) (WorkflowRun, error)

	// GetWorkflow returns a handle on a run. An empty runID means the current run.
	GetWorkflow(ctx context.Context, workflowID, runID string) (WorkflowRun, error)

	DescribeWorkflow(ctx context.Context, workflowID string) (api.WorkflowRecord, error)

	// CancelWorkflow asks the worker executing the run to abandon it. The run ends
	// Failed with kind Canceled. Cancelling a closed run does nothing.
	CancelWorkflow(ctx context.Context, workflowID, runID string) error

	// History returns the events recorded for a workflow ID. An empty runID
	// returns the events of every run.
	History(ctx context.Context, workflowID, runID string) ([]api.HistoryEvent, error)

	// DescribeTaskQueue lists the live workers bound to a task queue.
	DescribeTaskQueue(ctx context.Context, queue string) ([]api.WorkerBinding, error)

	// Close releases the connection if the client opened it with Dial.
	Close()
}

type ClientOptions struct {
	// Namespace scopes every workflow, queue and bucket. Defaults to "default".
	Namespace string
	Conn      *nats.Conn
	Serde     serde.BinarySerde
	Logger    *slog.Logger
}

type StartWorkflowOptions struct {
	// ID is the idempotency key of the invocation. A random ID is used when empty.
	ID        string
	TaskQueue string
}

// WorkflowRun is a handle on one run of a workflow ID.
type WorkflowRun interface {
	ID() string
	RunID() string
	// Get blocks until the run closes. A failed run returns a *WorkflowExecutionError.
	Get(ctx context.Context) (string, error)
}

var _ Client = (*clientImpl)(nil)

type clientImpl struct {
	backend  *jetstreamx.Backend
	serde    serde.BinarySerde
	recorder *history.Recorder
	logger   *slog.Logger
	now      func() time.Time

	baseLogger *slog.Logger
	owned      *nats.Conn
}

func NewClient(ctx context.Context, opts *ClientOptions) (Client, error) {
	if opts == nil {
		return nil, api.NewFailure(api.KindConfiguration, "nil client options")
	}
	backend, s, err := provision(ctx, opts.Namespace, opts.Conn, opts.Serde)
	if err != nil {
		return nil, err
	}
	logger := defaultLogger(opts.Logger)
	return &clientImpl{
		backend:    backend,
		serde:      s,
		recorder:   history.NewRecorder(backend, s),
		logger:     logger.With("component", "client"),
		now:        time.Now,
		baseLogger: logger,
	}, nil
}

// Dial connects to url and returns a client owning the connection. opts.Conn
// is ignored.
func Dial(ctx context.Context, url string, opts *ClientOptions) (Client, error) {
	var o ClientOptions
	if opts != nil {
		o = *opts
	}
	nc, err := nats.Connect(url, nats.Name("crossflow-client"))
	if err != nil {
		return nil, api.NewFailure(api.KindConnection, fmt.Sprintf("connect %s: %v", url, err))
	}
	o.Conn = nc
	c, err := NewClient(ctx, &o)
	if err != nil {
		nc.Close()
		return nil, err
	}
	impl := c.(*clientImpl)
	impl.owned = nc
	return impl, nil
}

func (c *clientImpl) Close() {
	if c.owned != nil {
		c.owned.Close()
	}
}

func provision(ctx context.Context, namespace string, nc *nats.Conn, s serde.BinarySerde) (*jetstreamx.Backend, serde.BinarySerde, error) {
	if nc == nil {
		return nil, nil, api.NewFailure(api.KindConnection, "no backend connection")
	}
	if namespace == "" {
		namespace = "default"
	}
	names, err := api.NewNames(namespace)
	if err != nil {
		return nil, nil, err
	}
	if s == nil {
		s = &serde.JsonSerde{}
	}
	conn, err := jetstreamx.Wrap(nc)
	if err != nil {
		return nil, nil, err
	}
	backend, err := jetstreamx.Provision(ctx, conn, names)
	if err != nil {
		return nil, nil, err
	}
	return backend, s, nil
}

func defaultLogger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

func (c *clientImpl) StartWorkflow(ctx context.Context, opts StartWorkflowOptions, workflowType string, input string) (WorkflowRun, error) {
	if opts.ID == "" {
		opts.ID = uuid.Must(uuid.NewV4()).String()
	}
	switch {
	case !api.ValidToken(opts.ID):
		return nil, api.NewFailure(api.KindConfiguration, fmt.Sprintf("invalid workflow ID %q", opts.ID))
	case !api.ValidToken(opts.TaskQueue):
		return nil, api.NewFailure(api.KindConfiguration, fmt.Sprintf("invalid task queue %q", opts.TaskQueue))
	case workflowType == "":
		return nil, api.NewFailure(api.KindConfiguration, "empty workflow type")
	}

	for {
		runID, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("generate run ID: %w", err)
		}
		rec := api.WorkflowRecord{
			WorkflowID:   opts.ID,
			RunID:        runID.String(),
			WorkflowType: workflowType,
			TaskQueue:    opts.TaskQueue,
			Input:        input,
			Status:       api.StatusStarted,
			StartedAt:    c.now().UTC(),
		}
		data, err := c.serde.SerializeBinary(&rec)
		if err != nil {
			return nil, fmt.Errorf("encode workflow record: %w", err)
		}

		_, err = c.backend.Runs.Create(ctx, opts.ID, data)
		if err == nil {
			return c.launch(ctx, rec)
		}
		if !errors.Is(err, jetstream.ErrKeyExists) {
			return nil, api.AsFailure(fmt.Errorf("create workflow record: %w", err), api.KindConnection)
		}

		entry, err := c.backend.Runs.Get(ctx, opts.ID)
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, api.AsFailure(fmt.Errorf("get workflow record: %w", err), api.KindConnection)
		}
		existing, err := c.decodeRecord(entry.Value())
		if err != nil {
			return nil, err
		}

		if !existing.Status.Terminal() {
			c.logger.InfoContext(ctx, "workflow already running",
				"workflow_id", existing.WorkflowID,
				"run_id", existing.RunID,
				"status", existing.Status)
			if existing.Status == api.StatusStarted {
				// the first starter may have died between the record and the task
				if err := c.publishTask(ctx, existing); err != nil {
					return nil, err
				}
			}
			return c.handle(existing), nil
		}

		_, err = c.backend.Runs.Update(ctx, opts.ID, data, entry.Revision())
		if err == nil {
			return c.launch(ctx, rec)
		}
		if isRevisionConflict(err) {
			continue
		}
		return nil, api.AsFailure(fmt.Errorf("replace workflow record: %w", err), api.KindConnection)
	}
}

// launch records the start ahead of the task so the run's history opens with it.
func (c *clientImpl) launch(ctx context.Context, rec api.WorkflowRecord) (WorkflowRun, error) {
	if err := c.recorder.Record(ctx, rec.WorkflowID, rec.RunID, rec.RunID+".started", &api.WorkflowStarted{
		WorkflowID:   rec.WorkflowID,
		RunID:        rec.RunID,
		WorkflowType: rec.WorkflowType,
		TaskQueue:    rec.TaskQueue,
		Input:        rec.Input,
	}); err != nil {
		c.logger.WarnContext(ctx, "failed to record workflow start", "error", err)
	}
	if err := c.publishTask(ctx, rec); err != nil {
		return nil, err
	}
	c.logger.InfoContext(ctx, "workflow started",
		"workflow_id", rec.WorkflowID,
		"run_id", rec.RunID,
		"workflow_type", rec.WorkflowType,
		"task_queue", rec.TaskQueue)
	return c.handle(rec), nil
}

func (c *clientImpl) publishTask(ctx context.Context, rec api.WorkflowRecord) error {
	task := api.WorkflowTask{
		WorkflowID:   rec.WorkflowID,
		RunID:        rec.RunID,
		WorkflowType: rec.WorkflowType,
		Input:        rec.Input,
	}
	data, err := c.serde.SerializeBinary(&task)
	if err != nil {
		return fmt.Errorf("encode workflow task: %w", err)
	}
	msg := nats.NewMsg(c.backend.Names.WorkflowTaskSubject(rec.TaskQueue))
	msg.Data = data
	msg.Header.Set(api.TaskKindHeader, api.WorkflowTaskKind)
	msg.Header.Set(api.SerdeHeader, c.serde.Name())

	_, err = c.backend.Conn.PublishJS(ctx, msg, jetstream.WithMsgID(rec.RunID))
	return err
}

func (c *clientImpl) handle(rec api.WorkflowRecord) *workflowRun {
	return &workflowRun{client: c, workflowID: rec.WorkflowID, runID: rec.RunID}
}

func (c *clientImpl) decodeRecord(data []byte) (api.WorkflowRecord, error) {
	var rec api.WorkflowRecord
	if err := c.serde.DeserializeBinary(data, &rec); err != nil {
		return rec, fmt.Errorf("decode workflow record: %w", err)
	}
	return rec, nil
}

func (c *clientImpl) DescribeWorkflow(ctx context.Context, workflowID string) (api.WorkflowRecord, error) {
	entry, err := c.backend.Runs.Get(ctx, workflowID)
	if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrInvalidKey) {
		return api.WorkflowRecord{}, fmt.Errorf("%w: %s", ErrWorkflowNotFound, workflowID)
	}
	if err != nil {
		return api.WorkflowRecord{}, api.AsFailure(fmt.Errorf("get workflow record: %w", err), api.KindConnection)
	}
	return c.decodeRecord(entry.Value())
}

func (c *clientImpl) GetWorkflow(ctx context.Context, workflowID, runID string) (WorkflowRun, error) {
	rec, err := c.DescribeWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if runID != "" && rec.RunID != runID {
		return nil, fmt.Errorf("%w: %s run %s", ErrWorkflowNotFound, workflowID, runID)
	}
	return c.handle(rec), nil
}

func (c *clientImpl) CancelWorkflow(ctx context.Context, workflowID, runID string) error {
	for {
		entry, err := c.backend.Runs.Get(ctx, workflowID)
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrWorkflowNotFound, workflowID)
		}
		if err != nil {
			return api.AsFailure(fmt.Errorf("get workflow record: %w", err), api.KindConnection)
		}
		rec, err := c.decodeRecord(entry.Value())
		if err != nil {
			return err
		}
		if runID != "" && rec.RunID != runID {
			return fmt.Errorf("%w: %s run %s", ErrWorkflowNotFound, workflowID, runID)
		}
		if rec.Status.Terminal() || rec.Status == api.StatusCancelRequested {
			return nil
		}

		rec.Status = api.StatusCancelRequested
		data, err := c.serde.SerializeBinary(&rec)
		if err != nil {
			return fmt.Errorf("encode workflow record: %w", err)
		}
		_, err = c.backend.Runs.Update(ctx, workflowID, data, entry.Revision())
		if err == nil {
			c.logger.InfoContext(ctx, "workflow cancellation requested", "workflow_id", workflowID, "run_id", rec.RunID)
			return nil
		}
		if !isRevisionConflict(err) {
			return api.AsFailure(fmt.Errorf("request cancellation: %w", err), api.KindConnection)
		}
	}
}

func (c *clientImpl) History(ctx context.Context, workflowID, runID string) ([]api.HistoryEvent, error) {
	return history.Read(ctx, c.backend, workflowID, runID)
}

func (c *clientImpl) DescribeTaskQueue(ctx context.Context, queue string) ([]api.WorkerBinding, error) {
	lister, err := c.backend.Workers.ListKeys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, api.AsFailure(fmt.Errorf("list workers: %w", err), api.KindConnection)
	}
	defer lister.Stop()

	prefix := queue + "."
	var out []api.WorkerBinding
	for key := range lister.Keys() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		entry, err := c.backend.Workers.Get(ctx, key)
		if err != nil {
			// expired between listing and reading
			continue
		}
		var b api.WorkerBinding
		if err := c.serde.DeserializeBinary(entry.Value(), &b); err != nil {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func isRevisionConflict(err error) bool {
	var apiErr *jetstream.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence {
		return true
	}
	return errors.Is(err, jetstream.ErrKeyExists)
}
