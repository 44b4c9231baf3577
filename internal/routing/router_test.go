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

package routing

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/ngnhng/crossflow/api"
)

func TestDefaultRoutes(t *testing.T) {
	r := Default()

	tests := []struct {
		activity string
		queue    string
		language string
	}{
		{ActivityPython, "python-task-queue", "python"},
		{ActivityTypeScript, "typescript-task-queue", "typescript"},
		{ActivityCSharp, "csharp-task-queue", "csharp"},
		{ActivityGo, "go-task-queue", "go"},
	}

	for _, tt := range tests {
		t.Run(tt.activity, func(t *testing.T) {
			rt, err := r.Resolve(tt.activity)
			require.NoError(t, err)
			require.Equal(t, tt.queue, rt.TaskQueue)
			require.Equal(t, tt.language, rt.Language)

			byLang, err := r.ByLanguage(tt.language)
			require.NoError(t, err)
			require.Equal(t, rt, byLang)
		})
	}

	require.NoError(t, r.Validate(ActivityPython, ActivityTypeScript, ActivityCSharp, ActivityGo))
}

func TestDefaultRoutesAreDistinct(t *testing.T) {
	queues := map[string]bool{}
	langs := map[string]bool{}
	for _, rt := range Default().Routes() {
		require.NotEmpty(t, rt.TaskQueue)
		require.NotEmpty(t, rt.Language)
		require.False(t, queues[rt.TaskQueue], "queue %s reused", rt.TaskQueue)
		require.False(t, langs[rt.Language], "language %s reused", rt.Language)
		queues[rt.TaskQueue] = true
		langs[rt.Language] = true
	}
	require.Len(t, queues, 4)
}

func TestResolveUnknownIsConfigurationError(t *testing.T) {
	r := Default()

	_, err := r.Resolve("process_rust")
	require.ErrorIs(t, err, api.ErrConfiguration)

	err = r.Validate(ActivityGo, "process_rust", "processKotlin")
	require.ErrorIs(t, err, api.ErrConfiguration)
	require.Contains(t, err.Error(), "process_rust, processKotlin")

	_, err = r.ByLanguage("rust")
	require.ErrorIs(t, err, api.ErrConfiguration)

	var zero Router
	_, err = zero.Resolve(ActivityGo)
	require.ErrorIs(t, err, api.ErrConfiguration)
}

func TestNewRouterRejectsBadTables(t *testing.T) {
	tests := []struct {
		name   string
		routes []Route
	}{
		{"empty activity", []Route{{Activity: " ", TaskQueue: "q", Language: "go"}}},
		{"no language", []Route{{Activity: "a", TaskQueue: "q"}}},
		{"bad queue", []Route{{Activity: "a", TaskQueue: "q.1", Language: "go"}}},
		{"duplicate activity", []Route{
			{Activity: "a", TaskQueue: "q1", Language: "go"},
			{Activity: "a", TaskQueue: "q2", Language: "go"},
		}},
		{"shared queue", []Route{
			{Activity: "a", TaskQueue: "q", Language: "go"},
			{Activity: "b", TaskQueue: "q", Language: "python"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRouter(tt.routes...)
			require.ErrorIs(t, err, api.ErrConfiguration)
		})
	}
}

// Any table with unique names and queues resolves every entry to itself and
// nothing else.
func TestRouterResolveProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(t, "n")
		names := rapid.SliceOfNDistinct(rapid.StringMatching(`[a-zA-Z_][a-zA-Z0-9_]{0,11}`), n, n, rapid.ID[string]).Draw(t, "names")

		routes := make([]Route, n)
		for i, name := range names {
			routes[i] = Route{Activity: name, TaskQueue: fmt.Sprintf("queue-%d", i), Language: fmt.Sprintf("lang%d", i)}
		}

		r, err := NewRouter(routes...)
		if err != nil {
			t.Fatalf("NewRouter: %v", err)
		}
		for _, want := range routes {
			got, err := r.Resolve(want.Activity)
			if err != nil || got != want {
				t.Fatalf("Resolve(%q) = %+v, %v", want.Activity, got, err)
			}
		}

		probe := rapid.StringMatching(`[a-z]{1,12}`).Draw(t, "probe")
		_, err = r.Resolve(probe)
		known := false
		for _, name := range names {
			known = known || name == probe
		}
		if known == (err != nil) {
			t.Fatalf("Resolve(%q) known=%v err=%v", probe, known, err)
		}
		if err != nil && !errors.Is(err, api.ErrConfiguration) {
			t.Fatalf("unexpected error kind: %v", err)
		}
	})
}

func TestTimeoutPolicy(t *testing.T) {
	p := DefaultTimeoutPolicy()
	for _, rt := range DefaultRoutes() {
		require.Equal(t, 10*time.Second, p.StartToClose(rt.Activity))
	}

	slow := p.WithOverride(ActivityCSharp, time.Minute)
	require.Equal(t, time.Minute, slow.StartToClose(ActivityCSharp))
	require.Equal(t, 10*time.Second, slow.StartToClose(ActivityGo))
	require.Empty(t, p.Overrides, "WithOverride must not mutate the receiver")

	require.Equal(t, DefaultStartToClose, TimeoutPolicy{}.StartToClose(ActivityGo))

	require.NoError(t, slow.Validate())
	require.ErrorIs(t, p.WithOverride(ActivityGo, 0).Validate(), api.ErrConfiguration)
	require.ErrorIs(t, TimeoutPolicy{Default: -time.Second}.Validate(), api.ErrConfiguration)
}

func TestCallSpec(t *testing.T) {
	input := []string{"Hello from the main workflow!", "typescript"}
	spec, err := CallSpec(Default(), DefaultTimeoutPolicy(), ActivityTypeScript, input...)
	require.NoError(t, err)
	require.Equal(t, api.ActivityCallSpec{
		ActivityName:        ActivityTypeScript,
		Input:               input,
		TaskQueue:           QueueTypeScript,
		Language:            LanguageTypeScript,
		StartToCloseTimeout: 10 * time.Second,
	}, spec)

	input[0] = "mutated"
	require.Equal(t, "Hello from the main workflow!", spec.Input[0])

	_, err = CallSpec(Default(), DefaultTimeoutPolicy(), "nope")
	require.ErrorIs(t, err, api.ErrConfiguration)
}
