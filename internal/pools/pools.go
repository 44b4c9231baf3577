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

// Package pools holds the echo activities and greeting workflows served by each
// language pool, together with the queue each pool listens on.
package pools

import (
	"context"
	"fmt"

	"github.com/ngnhng/crossflow/internal/routing"
)

// ActivityFunc is the shape of every pool activity: the coordinator's message and
// the language tag of the pool it was routed to.
type ActivityFunc func(ctx context.Context, message, language string) (string, error)

// WorkflowFunc is the shape of the standalone greeting workflows.
type WorkflowFunc func(ctx context.Context, name string) (string, error)

type Pool struct {
	Language  string
	Display   string
	TaskQueue string
	Activity  string
	Workflow  string
	Process   ActivityFunc
}

// Greet is the pool's greeting workflow.
func (p Pool) Greet(_ context.Context, name string) (string, error) {
	return fmt.Sprintf("Hello from %s worker, %s!", p.Display, name), nil
}

func ProcessPython(_ context.Context, _ string, language string) (string, error) {
	return fmt.Sprintf("Hello from Python worker, %s!", language), nil
}

func ProcessTypeScript(_ context.Context, message, _ string) (string, error) {
	return "TypeScript says: " + message, nil
}

func ProcessCSharp(_ context.Context, message, _ string) (string, error) {
	return "C# says: " + message, nil
}

func ProcessGo(_ context.Context, message, _ string) (string, error) {
	return "Go says: " + message, nil
}

var (
	Python = Pool{
		Language:  routing.LanguagePython,
		Display:   "Python",
		TaskQueue: routing.QueuePython,
		Activity:  routing.ActivityPython,
		Workflow:  "PythonWorkflow",
		Process:   ProcessPython,
	}
	TypeScript = Pool{
		Language:  routing.LanguageTypeScript,
		Display:   "TypeScript",
		TaskQueue: routing.QueueTypeScript,
		Activity:  routing.ActivityTypeScript,
		Workflow:  "TypeScriptWorkflow",
		Process:   ProcessTypeScript,
	}
	CSharp = Pool{
		Language:  routing.LanguageCSharp,
		Display:   "C#",
		TaskQueue: routing.QueueCSharp,
		Activity:  routing.ActivityCSharp,
		Workflow:  "CSharpWorkflow",
		Process:   ProcessCSharp,
	}
	Go = Pool{
		Language:  routing.LanguageGo,
		Display:   "Go",
		TaskQueue: routing.QueueGo,
		Activity:  routing.ActivityGo,
		Workflow:  "GoWorkflow",
		Process:   ProcessGo,
	}
)

// All returns the pools in dispatch order.
func All() []Pool {
	return []Pool{Python, TypeScript, CSharp, Go}
}

func ByActivity(activity string) (Pool, bool) {
	for _, p := range All() {
		if p.Activity == activity {
			return p, true
		}
	}
	return Pool{}, false
}
