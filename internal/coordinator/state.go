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

package coordinator

import (
	"fmt"

	"github.com/ngnhng/crossflow/api"
)

type State string

const (
	StateStart     State = "Start"
	StateDispatch  State = "Dispatch"
	StateAggregate State = "Aggregate"
	StateDone      State = "Done"
	StateFailed    State = "Failed"
)

// Transition is one edge taken by a run. Language is set for Dispatch edges and
// for the edge into Failed.
type Transition struct {
	From     State
	To       State
	Language string
}

func (t Transition) String() string {
	to := string(t.To)
	if t.To == StateDispatch {
		to = fmt.Sprintf("%s(%s)", t.To, t.Language)
	}
	return fmt.Sprintf("%s -> %s", t.From, to)
}

// StepError reports the step that ended a run. It unwraps to the step's
// *api.Failure, so errors.Is(err, api.ErrTimeout) works on it.
type StepError struct {
	Language  string
	Activity  string
	TaskQueue string
	Failure   *api.Failure
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s step (%s on %s) failed: %v", e.Language, e.Activity, e.TaskQueue, e.Failure)
}

func (e *StepError) Unwrap() error { return e.Failure }
