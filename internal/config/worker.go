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

package config

import (
	"errors"
	"time"

	"github.com/ngnhng/crossflow/internal/dispatch"
)

const (
	DefaultMaxConcurrentTasks = 16
	DefaultAckWait            = 30 * time.Second
	DefaultRetryAttempts      = 1
)

// WorkerConfig tunes the task loop of worker processes
type WorkerConfig struct {
	Identity           string        `json:"identity"             env:"IDENTITY"`
	MaxConcurrentTasks int           `json:"max_concurrent_tasks" env:"MAX_CONCURRENT_TASKS"`
	AckWait            time.Duration `json:"ack_wait"             env:"ACK_WAIT"`
	// RetryAttempts bounds the attempts of each activity dispatched by workflows
	// of this worker. 1 disables retries.
	RetryAttempts int `json:"retry_attempts" env:"RETRY_ATTEMPTS"`
}

func (w *WorkerConfig) validate() []error {
	var errs []error
	if w.MaxConcurrentTasks <= 0 {
		errs = append(errs, errors.New("worker max concurrent tasks must be positive"))
	}
	if w.AckWait < time.Second {
		errs = append(errs, errors.New("worker ack wait must be at least 1s"))
	}
	if w.RetryAttempts < 1 {
		errs = append(errs, errors.New("worker retry attempts must be >= 1"))
	}
	return errs
}

func (c *Config) WorkerIdentity() string       { return c.Worker.Identity }
func (c *Config) WorkerConcurrency() int       { return c.Worker.MaxConcurrentTasks }
func (c *Config) WorkerAckWait() time.Duration { return c.Worker.AckWait }

// RetryPolicy is the dispatch retry policy of the configured attempts.
func (c *Config) RetryPolicy() dispatch.RetryPolicy {
	if c.Worker.RetryAttempts <= 1 {
		return dispatch.DefaultRetryPolicy()
	}
	return dispatch.ExponentialRetryPolicy(c.Worker.RetryAttempts)
}
