package activity

import (
	"context"
	"fmt"

	"github.com/ngnhng/crossflow/api"
	"github.com/ngnhng/crossflow/sdk/internal"
)

// Func is the signature of an activity function. It receives the positional
// string arguments of the call.
type Func = internal.ActivityFunc

// Unary adapts a one-argument function. A call with another number of
// arguments fails with an ActivityFailure.
func Unary(fn func(ctx context.Context, a string) (string, error)) Func {
	return func(ctx context.Context, args ...string) (string, error) {
		if err := arity(args, 1); err != nil {
			return "", err
		}
		return fn(ctx, args[0])
	}
}

// Binary adapts a two-argument function.
func Binary(fn func(ctx context.Context, a, b string) (string, error)) Func {
	return func(ctx context.Context, args ...string) (string, error) {
		if err := arity(args, 2); err != nil {
			return "", err
		}
		return fn(ctx, args[0], args[1])
	}
}

func arity(args []string, want int) error {
	if len(args) != want {
		return api.NewFailure(api.KindActivityFailure, fmt.Sprintf("expected %d arguments, got %d", want, len(args)))
	}
	return nil
}
