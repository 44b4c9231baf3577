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

package pools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ngnhng/crossflow/api"
	"github.com/ngnhng/crossflow/internal/routing"
	"github.com/ngnhng/crossflow/sdk/activity"
	"github.com/ngnhng/crossflow/sdk/workflow"
)

func TestEchoContracts(t *testing.T) {
	const msg = "Hello from the main workflow!"
	tests := []struct {
		pool Pool
		want string
	}{
		{Python, "Hello from Python worker, python!"},
		{TypeScript, "TypeScript says: " + msg},
		{CSharp, "C# says: " + msg},
		{Go, "Go says: " + msg},
	}

	for _, tt := range tests {
		t.Run(tt.pool.Language, func(t *testing.T) {
			got, err := tt.pool.Process(context.Background(), msg, tt.pool.Language)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)

			again, _ := tt.pool.Process(context.Background(), msg, tt.pool.Language)
			require.Equal(t, got, again)
		})
	}
}

func TestGreetingWorkflows(t *testing.T) {
	want := map[string]string{
		"PythonWorkflow":     "Hello from Python worker, Ada!",
		"TypeScriptWorkflow": "Hello from TypeScript worker, Ada!",
		"CSharpWorkflow":     "Hello from C# worker, Ada!",
		"GoWorkflow":         "Hello from Go worker, Ada!",
	}
	for _, p := range All() {
		got, err := p.Greet(context.Background(), "Ada")
		require.NoError(t, err)
		require.Equal(t, want[p.Workflow], got)
	}
}

func TestPoolsMatchRouter(t *testing.T) {
	r := routing.Default()
	for _, p := range All() {
		rt, err := r.Resolve(p.Activity)
		require.NoError(t, err)
		require.Equal(t, p.TaskQueue, rt.TaskQueue)
		require.Equal(t, p.Language, rt.Language)

		got, ok := ByActivity(p.Activity)
		require.True(t, ok)
		require.Equal(t, p.Workflow, got.Workflow)
	}
	_, ok := ByActivity("process_rust")
	require.False(t, ok)
}

type mapRegistry struct {
	workflows  map[string]workflow.Func
	activities map[string]activity.Func
}

func (m *mapRegistry) RegisterWorkflow(name string, fn workflow.Func) error {
	m.workflows[name] = fn
	return nil
}

func (m *mapRegistry) RegisterActivity(name string, fn activity.Func) error {
	m.activities[name] = fn
	return nil
}

func TestRegister(t *testing.T) {
	reg := &mapRegistry{workflows: map[string]workflow.Func{}, activities: map[string]activity.Func{}}
	require.NoError(t, CSharp.Register(reg))

	fn, ok := reg.activities[routing.ActivityCSharp]
	require.True(t, ok)
	got, err := fn(context.Background(), "hi", routing.LanguageCSharp)
	require.NoError(t, err)
	require.Equal(t, "C# says: hi", got)

	_, err = fn(context.Background(), "hi")
	require.ErrorIs(t, err, api.ErrActivityFailure)

	wf, ok := reg.workflows["CSharpWorkflow"]
	require.True(t, ok)
	ctx := workflow.NewTestContext(context.Background(), workflow.Info{WorkflowID: "wf", RunID: "run"}, nil)
	greeting, err := wf(ctx, "Ada")
	require.NoError(t, err)
	require.Equal(t, "Hello from C# worker, Ada!", greeting)
}
