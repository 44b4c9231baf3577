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

package pools

import (
	"github.com/ngnhng/crossflow/sdk/activity"
	"github.com/ngnhng/crossflow/sdk/worker"
	"github.com/ngnhng/crossflow/sdk/workflow"
)

// Register binds the pool's echo activity and greeting workflow to r. The
// activity is called with the coordinator's message and the language tag.
func (p Pool) Register(r worker.Registry) error {
	if err := r.RegisterActivity(p.Activity, activity.Binary(p.Process)); err != nil {
		return err
	}
	return r.RegisterWorkflow(p.Workflow, func(ctx workflow.Context, name string) (string, error) {
		return p.Greet(ctx, name)
	})
}
