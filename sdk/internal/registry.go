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
	"fmt"
	"sort"
	"sync"
)

// WorkflowFunc runs one workflow. It receives the run's input and returns its result.
type WorkflowFunc func(ctx Context, input string) (string, error)

// ActivityFunc runs one activity with the positional string arguments of the call.
type ActivityFunc func(ctx context.Context, args ...string) (string, error)

type registry struct {
	mu         sync.RWMutex
	workflows  map[string]WorkflowFunc
	activities map[string]ActivityFunc
}

func newRegistry() *registry {
	return &registry{
		workflows:  make(map[string]WorkflowFunc),
		activities: make(map[string]ActivityFunc),
	}
}

func (r *registry) addWorkflow(name string, fn WorkflowFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := checkEntry(name, fn == nil); err != nil {
		return err
	}
	if _, ok := r.workflows[name]; ok {
		return &RegistrationError{Name: name, Cause: ErrDuplicateRegistration}
	}
	r.workflows[name] = fn
	return nil
}

func (r *registry) addActivity(name string, fn ActivityFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := checkEntry(name, fn == nil); err != nil {
		return err
	}
	if _, ok := r.activities[name]; ok {
		return &RegistrationError{Name: name, Cause: ErrDuplicateRegistration}
	}
	r.activities[name] = fn
	return nil
}

func checkEntry(name string, nilFn bool) error {
	if name == "" {
		return &RegistrationError{Name: `""`, Cause: fmt.Errorf("empty name")}
	}
	if nilFn {
		return &RegistrationError{Name: name, Cause: fmt.Errorf("nil function")}
	}
	return nil
}

func (r *registry) workflow(name string) (WorkflowFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.workflows[name]
	return fn, ok
}

func (r *registry) activity(name string) (ActivityFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.activities[name]
	return fn, ok
}

// names returns the registered workflow types and activity names, sorted.
func (r *registry) names() (workflows, activities []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for n := range r.workflows {
		workflows = append(workflows, n)
	}
	for n := range r.activities {
		activities = append(activities, n)
	}
	sort.Strings(workflows)
	sort.Strings(activities)
	return workflows, activities
}
