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

package api

import (
	"errors"
	"fmt"
)

// Kind classifies a failure. It travels on the wire, so values are stable strings.
type Kind string

const (
	KindConfiguration   Kind = "ConfigurationError"
	KindConnection      Kind = "ConnectionError"
	KindTimeout         Kind = "Timeout"
	KindActivityFailure Kind = "ActivityFailure"
	KindCanceled        Kind = "Canceled"
)

var (
	// ErrConfiguration is returned for an unknown activity name or an invalid binding.
	// It is fatal at startup.
	ErrConfiguration = &Failure{Kind: KindConfiguration}

	// ErrConnection is returned when the backend cannot be reached.
	ErrConnection = &Failure{Kind: KindConnection}

	// ErrTimeout is returned when an activity did not complete within its start-to-close window.
	ErrTimeout = &Failure{Kind: KindTimeout}

	// ErrActivityFailure is returned when a worker reported an error for an activity.
	ErrActivityFailure = &Failure{Kind: KindActivityFailure}

	// ErrCanceled is returned when the workflow invocation was cancelled.
	ErrCanceled = &Failure{Kind: KindCanceled}
)

// Failure is the serializable failure descriptor shared by workers, the coordinator
// and callers waiting on a workflow result.
//
// errors.Is(err, ErrTimeout) matches any Failure of kind Timeout, whatever its message.
type Failure struct {
	Kind    Kind   `json:"kind" msgpack:"kind"`
	Message string `json:"message,omitempty" msgpack:"message,omitempty"`
}

func NewFailure(kind Kind, message string) *Failure {
	return &Failure{Kind: kind, Message: message}
}

func (f *Failure) Error() string {
	if f.Message == "" {
		return string(f.Kind)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Failure) Is(target error) bool {
	var t *Failure
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == f.Kind
}

// AsFailure converts any error into a Failure, keeping the kind of a wrapped Failure
// and defaulting to fallback otherwise.
func AsFailure(err error, fallback Kind) *Failure {
	if err == nil {
		return nil
	}
	if f, ok := err.(*Failure); ok {
		return &Failure{Kind: f.Kind, Message: f.Message}
	}
	var f *Failure
	if errors.As(err, &f) {
		return &Failure{Kind: f.Kind, Message: err.Error()}
	}
	return &Failure{Kind: fallback, Message: err.Error()}
}
