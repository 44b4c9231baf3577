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
	"time"

	"github.com/ngnhng/crossflow/api"
)

// DefaultStartToClose applies to every activity without an override.
const DefaultStartToClose = 10 * time.Second

// TimeoutPolicy gives each activity its start-to-close window: the longest wall-clock
// time from dispatch to completion before the call fails with Timeout.
type TimeoutPolicy struct {
	Default   time.Duration
	Overrides map[string]time.Duration
}

func DefaultTimeoutPolicy() TimeoutPolicy {
	return TimeoutPolicy{Default: DefaultStartToClose}
}

// WithOverride returns a copy of p where activity uses d.
func (p TimeoutPolicy) WithOverride(activity string, d time.Duration) TimeoutPolicy {
	overrides := make(map[string]time.Duration, len(p.Overrides)+1)
	for k, v := range p.Overrides {
		overrides[k] = v
	}
	overrides[activity] = d
	return TimeoutPolicy{Default: p.Default, Overrides: overrides}
}

func (p TimeoutPolicy) StartToClose(activity string) time.Duration {
	if d, ok := p.Overrides[activity]; ok {
		return d
	}
	if p.Default > 0 {
		return p.Default
	}
	return DefaultStartToClose
}

func (p TimeoutPolicy) Validate() error {
	if p.Default < 0 {
		return configError("negative default start-to-close timeout %s", p.Default)
	}
	for a, d := range p.Overrides {
		if d <= 0 {
			return configError("activity %q has non-positive start-to-close timeout %s", a, d)
		}
	}
	return nil
}

// CallSpec builds the immutable call description of one activity invocation.
func CallSpec(r *Router, p TimeoutPolicy, activity string, input ...string) (api.ActivityCallSpec, error) {
	rt, err := r.Resolve(activity)
	if err != nil {
		return api.ActivityCallSpec{}, err
	}
	return api.ActivityCallSpec{
		ActivityName:        rt.Activity,
		Input:               append([]string(nil), input...),
		TaskQueue:           rt.TaskQueue,
		Language:            rt.Language,
		StartToCloseTimeout: p.StartToClose(activity),
	}, nil
}
