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

package dispatch

import (
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ngnhng/crossflow/api"
)

// RetryPolicy decides whether a failed attempt is dispatched again. The zero
// value, like DefaultRetryPolicy, performs a single attempt.
//
// Only Timeout and ActivityFailure are retried. Every attempt gets its own task ID
// and its own start-to-close window; the caller observes the last attempt only.
type RetryPolicy struct {
	MaximumAttempts    int
	InitialInterval    time.Duration
	BackoffCoefficient float64
	MaximumInterval    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaximumAttempts: 1}
}

// ExponentialRetryPolicy retries up to attempts times with doubling delays from one
// second, capped at a minute.
func ExponentialRetryPolicy(attempts int) RetryPolicy {
	return RetryPolicy{
		MaximumAttempts:    attempts,
		InitialInterval:    time.Second,
		BackoffCoefficient: 2,
		MaximumInterval:    time.Minute,
	}
}

func (p RetryPolicy) attempts() int {
	if p.MaximumAttempts < 1 {
		return 1
	}
	return p.MaximumAttempts
}

func (p RetryPolicy) retryable(f *api.Failure) bool {
	return f.Kind == api.KindTimeout || f.Kind == api.KindActivityFailure
}

func (p RetryPolicy) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.BackoffCoefficient >= 1 {
		b.Multiplier = p.BackoffCoefficient
	}
	if p.MaximumInterval > 0 {
		b.MaxInterval = p.MaximumInterval
	}
	// bounded by attempts, not by elapsed time
	b.MaxElapsedTime = 0
	return backoff.WithMaxRetries(b, uint64(p.attempts()-1))
}

func (p RetryPolicy) Validate() error {
	if p.MaximumAttempts < 0 {
		return api.NewFailure(api.KindConfiguration, "negative maximum attempts")
	}
	if p.BackoffCoefficient != 0 && p.BackoffCoefficient < 1 {
		return api.NewFailure(api.KindConfiguration, "backoff coefficient must be >= 1")
	}
	if p.MaximumInterval > 0 && p.InitialInterval > p.MaximumInterval {
		return api.NewFailure(api.KindConfiguration, "initial interval exceeds maximum interval")
	}
	return nil
}
