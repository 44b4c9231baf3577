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

package history_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ngnhng/crossflow/api"
	"github.com/ngnhng/crossflow/api/serde"
	"github.com/ngnhng/crossflow/internal/history"
	"github.com/ngnhng/crossflow/internal/infra/jetstream/jstest"
)

func TestRecordAndRead(t *testing.T) {
	ns := jstest.RunServer(t)
	b := jstest.Backend(t, ns, "default")
	ctx := context.Background()

	json := history.NewRecorder(b, &serde.JsonSerde{})
	mp := history.NewRecorder(b, &serde.MsgpackSerde{})

	require.NoError(t, json.Record(ctx, "wf", "run-1", "run-1.started", &api.WorkflowStarted{WorkflowID: "wf", RunID: "run-1", WorkflowType: "GoWorkflow"}))
	// duplicate append is dropped by the stream
	require.NoError(t, json.Record(ctx, "wf", "run-1", "run-1.started", &api.WorkflowStarted{WorkflowID: "wf", RunID: "run-1", WorkflowType: "GoWorkflow"}))
	require.NoError(t, mp.Record(ctx, "wf", "run-1", "run-1.done", &api.WorkflowCompleted{WorkflowID: "wf", RunID: "run-1", Result: "ok"}))
	require.NoError(t, json.Record(ctx, "wf", "run-2", "", &api.WorkflowStarted{WorkflowID: "wf", RunID: "run-2"}))
	require.NoError(t, json.Record(ctx, "other", "run-3", "", &api.WorkflowStarted{WorkflowID: "other", RunID: "run-3"}))

	all, err := history.Read(ctx, b, "wf", "")
	require.NoError(t, err)
	require.Equal(t, []string{"workflow/started", "workflow/completed", "workflow/started"}, history.Names(all))

	run1, err := history.Read(ctx, b, "wf", "run-1")
	require.NoError(t, err)
	require.Len(t, run1, 2)
	require.Equal(t, &api.WorkflowCompleted{WorkflowID: "wf", RunID: "run-1", Result: "ok"}, run1[1])

	none, err := history.Read(ctx, b, "missing", "")
	require.NoError(t, err)
	require.Empty(t, none)
}
