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

	"github.com/ngnhng/crossflow/api"
)

// Future is the pending result of an activity issued with ExecuteActivity.
type Future interface {
	// Get blocks until the result is available or ctx is done.
	Get(ctx context.Context) (string, error)
	IsReady() bool
}

var _ Future = (*future)(nil)

type future struct {
	done   chan struct{}
	result api.ActivityResult
}

func newFuture() *future {
	return &future{done: make(chan struct{})}
}

func (f *future) resolve(r api.ActivityResult) {
	f.result = r
	close(f.done)
}

func (f *future) Get(ctx context.Context) (string, error) {
	select {
	case <-f.done:
		if f.result.Failure != nil {
			return "", f.result.Failure
		}
		return f.result.Payload, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (f *future) IsReady() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}
