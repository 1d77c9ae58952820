package util //nolint:revive // package name util hosts small shared helpers

import (
	"context"
	"errors"
)

// TwoAttempt runs primary and, only when it fails, runs fallback once.
// The fallback result wins when taken; when both fail the errors are joined
// so callers can still classify the original failure.
func TwoAttempt[T any](
	ctx context.Context,
	primary func(context.Context) (T, error),
	fallback func(context.Context) (T, error),
) (T, error) {
	result, err := primary(ctx)
	if err == nil {
		return result, nil
	}
	if ctx.Err() != nil {
		return result, errors.Join(err, ctx.Err())
	}

	fbResult, fbErr := fallback(ctx)
	if fbErr == nil {
		return fbResult, nil
	}
	return fbResult, errors.Join(err, fbErr)
}
