package workflow

import (
	"github.com/ngnhng/crossflow/api"
)

// Failure kinds an activity result or a workflow run can carry. Match them with errors.Is.
var (
	ErrConfiguration   = api.ErrConfiguration
	ErrConnection      = api.ErrConnection
	ErrTimeout         = api.ErrTimeout
	ErrActivityFailure = api.ErrActivityFailure
	ErrCanceled        = api.ErrCanceled
)

// NewFailure returns a failure of the given kind, for workflows that fail on their own terms.
func NewFailure(kind api.Kind, message string) *api.Failure {
	return api.NewFailure(kind, message)
}
