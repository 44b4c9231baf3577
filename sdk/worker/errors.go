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

package worker

import "github.com/ngnhng/crossflow/sdk/internal"

var (
	// ErrDuplicateRegistration is returned when a name is registered twice.
	ErrDuplicateRegistration = internal.ErrDuplicateRegistration

	// ErrWorkerStarted is returned when registering on, or running, a worker that already runs.
	ErrWorkerStarted = internal.ErrWorkerStarted
)

// RegistrationError represents an error that occurred during registration
type RegistrationError = internal.RegistrationError

// TaskProcessingError represents an error that occurred while processing a task
type TaskProcessingError = internal.TaskProcessingError
