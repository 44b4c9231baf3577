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

// Package coordinator sequences one activity call per language pool and
// composes their payloads into the aggregated result.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ngnhng/crossflow/api"
	"github.com/ngnhng/crossflow/internal/routing"
)

// Invoker performs one activity invocation step and blocks until its result.
type Invoker interface {
	Invoke(ctx context.Context, spec api.ActivityCallSpec) api.ActivityResult
}

type InvokerFunc func(ctx context.Context, spec api.ActivityCallSpec) api.ActivityResult

func (f InvokerFunc) Invoke(ctx context.Context, spec api.ActivityCallSpec) api.ActivityResult {
	return f(ctx, spec)
}

// DefaultPlan is the dispatch order of the language pools.
func DefaultPlan() []string {
	return []string{
		routing.LanguagePython,
		routing.LanguageTypeScript,
		routing.LanguageCSharp,
		routing.LanguageGo,
	}
}

type Coordinator struct {
	router   *routing.Router
	steps    []routing.Route
	timeouts routing.TimeoutPolicy
	observe  func(Transition)
	log      *slog.Logger
}

type Option func(*Coordinator)

// WithObserver registers fn to be called on every state transition, in order.
func WithObserver(fn func(Transition)) Option {
	return func(c *Coordinator) { c.observe = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

// New resolves every language of plan through the router. A plan entry without
// a route, or a bad timeout policy, is a ConfigurationError here rather than at
// dispatch time.
func New(router *routing.Router, timeouts routing.TimeoutPolicy, plan []string, opts ...Option) (*Coordinator, error) {
	if len(plan) == 0 {
		return nil, api.NewFailure(api.KindConfiguration, "empty coordinator plan")
	}
	if err := timeouts.Validate(); err != nil {
		return nil, err
	}

	c := &Coordinator{
		router:   router,
		timeouts: timeouts,
		observe:  func(Transition) {},
		log:      slog.Default(),
	}
	seen := make(map[string]bool, len(plan))
	for _, lang := range plan {
		if seen[lang] {
			return nil, api.NewFailure(api.KindConfiguration, fmt.Sprintf("language %q planned twice", lang))
		}
		seen[lang] = true
		rt, err := router.ByLanguage(lang)
		if err != nil {
			return nil, err
		}
		c.steps = append(c.steps, rt)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Languages returns the dispatch order.
func (c *Coordinator) Languages() []string {
	out := make([]string, len(c.steps))
	for i, s := range c.steps {
		out[i] = s.Language
	}
	return out
}

// Run dispatches the plan strictly one step at a time. The first failed step
// ends the run: later languages are never dispatched and the returned error is a
// *StepError wrapping the step's failure. On success the aggregated text is returned.
func (c *Coordinator) Run(ctx context.Context, inv Invoker, message string) (string, error) {
	state := StateStart
	move := func(next State, lang string) {
		t := Transition{From: state, To: next, Language: lang}
		c.log.DebugContext(ctx, "coordinator transition", "from", t.From, "to", t.To, "language", lang)
		c.observe(t)
		state = next
	}

	payloads := make([]string, 0, len(c.steps))
	for _, step := range c.steps {
		move(StateDispatch, step.Language)

		spec, err := routing.CallSpec(c.router, c.timeouts, step.Activity, message, step.Language)
		if err != nil {
			move(StateFailed, step.Language)
			return "", c.stepError(step, api.AsFailure(err, api.KindConfiguration))
		}

		var result api.ActivityResult
		if ctx.Err() != nil {
			result = api.Failed(api.NewFailure(api.KindCanceled, ctx.Err().Error()))
		} else {
			result = inv.Invoke(ctx, spec)
		}
		if result.Failure != nil {
			move(StateFailed, step.Language)
			return "", c.stepError(step, result.Failure)
		}
		payloads = append(payloads, result.Payload)
	}

	move(StateAggregate, "")
	out := Aggregate(message, payloads...)
	move(StateDone, "")
	return out, nil
}

func (c *Coordinator) stepError(step routing.Route, f *api.Failure) error {
	c.log.Warn("coordinator step failed",
		"language", step.Language,
		"activity", step.Activity,
		"queue", step.TaskQueue,
		"kind", f.Kind,
		"error", f.Message)
	return &StepError{
		Language:  step.Language,
		Activity:  step.Activity,
		TaskQueue: step.TaskQueue,
		Failure:   f,
	}
}

// Aggregate renders the composite answer: the original message, a header, then
// one payload per line in plan order. Identical inputs give identical bytes.
func Aggregate(message string, payloads ...string) string {
	var sb strings.Builder
	sb.WriteString("Original message: ")
	sb.WriteString(message)
	sb.WriteString("\nResults from each language:\n")
	for _, p := range payloads {
		sb.WriteString(p)
		sb.WriteByte('\n')
	}
	return sb.String()
}
