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

// Package routing maps logical activity names to the task queue and language
// pool that execute them, and to their start-to-close timeout.
//
// Both tables are built once at process start and are read-only afterwards.
package routing

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ngnhng/crossflow/api"
)

const (
	ActivityPython     = "process_python"
	ActivityTypeScript = "processTypeScript"
	ActivityCSharp     = "ProcessCSharp"
	ActivityGo         = "ProcessGo"

	LanguagePython     = "python"
	LanguageTypeScript = "typescript"
	LanguageCSharp     = "csharp"
	LanguageGo         = "go"

	QueuePython     = "python-task-queue"
	QueueTypeScript = "typescript-task-queue"
	QueueCSharp     = "csharp-task-queue"
	QueueGo         = "go-task-queue"
)

// Route is one entry of the router table.
type Route struct {
	Activity  string
	TaskQueue string
	Language  string
}

// Router resolves activity names. The zero value resolves nothing.
type Router struct {
	routes map[string]Route
	order  []string
}

// DefaultRoutes is the table of the four language pools, in dispatch order.
func DefaultRoutes() []Route {
	return []Route{
		{Activity: ActivityPython, TaskQueue: QueuePython, Language: LanguagePython},
		{Activity: ActivityTypeScript, TaskQueue: QueueTypeScript, Language: LanguageTypeScript},
		{Activity: ActivityCSharp, TaskQueue: QueueCSharp, Language: LanguageCSharp},
		{Activity: ActivityGo, TaskQueue: QueueGo, Language: LanguageGo},
	}
}

// Default returns the router over DefaultRoutes.
func Default() *Router {
	r, err := NewRouter(DefaultRoutes()...)
	if err != nil {
		panic(err)
	}
	return r
}

// NewRouter validates the table and returns an immutable router. Activity names
// must be unique and every route must target its own queue, so a worker serving
// one queue never receives another pool's work.
func NewRouter(routes ...Route) (*Router, error) {
	r := &Router{
		routes: make(map[string]Route, len(routes)),
		order:  make([]string, 0, len(routes)),
	}
	queues := make(map[string]string, len(routes))

	for _, rt := range routes {
		switch {
		case strings.TrimSpace(rt.Activity) == "":
			return nil, configError("route with empty activity name")
		case rt.Language == "":
			return nil, configError("activity %q has no language tag", rt.Activity)
		case !api.ValidToken(rt.TaskQueue):
			return nil, configError("activity %q has invalid task queue %q", rt.Activity, rt.TaskQueue)
		}
		if _, dup := r.routes[rt.Activity]; dup {
			return nil, configError("activity %q routed twice", rt.Activity)
		}
		if other, dup := queues[rt.TaskQueue]; dup {
			return nil, configError("activities %q and %q share task queue %q", other, rt.Activity, rt.TaskQueue)
		}
		queues[rt.TaskQueue] = rt.Activity
		r.routes[rt.Activity] = rt
		r.order = append(r.order, rt.Activity)
	}
	return r, nil
}

// Resolve returns the route of an activity. Unknown names are a ConfigurationError.
func (r *Router) Resolve(activity string) (Route, error) {
	rt, ok := r.routes[activity]
	if !ok {
		return Route{}, configError("unknown activity %q", activity)
	}
	return rt, nil
}

// Validate checks that every name resolves. Call it at startup so a bad name
// never surfaces at dispatch time.
func (r *Router) Validate(activities ...string) error {
	var missing []string
	for _, a := range activities {
		if _, ok := r.routes[a]; !ok {
			missing = append(missing, a)
		}
	}
	if len(missing) > 0 {
		return configError("unknown activities %s", strings.Join(missing, ", "))
	}
	return nil
}

// Routes returns the table in declaration order.
func (r *Router) Routes() []Route {
	out := make([]Route, 0, len(r.order))
	for _, a := range r.order {
		out = append(out, r.routes[a])
	}
	return out
}

// ByLanguage returns the route serving a language tag.
func (r *Router) ByLanguage(language string) (Route, error) {
	i := slices.IndexFunc(r.order, func(a string) bool { return r.routes[a].Language == language })
	if i < 0 {
		return Route{}, configError("no route for language %q", language)
	}
	return r.routes[r.order[i]], nil
}

func configError(format string, args ...any) error {
	return api.NewFailure(api.KindConfiguration, fmt.Sprintf(format, args...))
}
