package circuitbreaker

import "context"

// CallWithResultTyped is a type-safe generic wrapper around
// CircuitBreaker.CallWithResult, avoiding a type assertion at the call site.
func CallWithResultTyped[T any](cb CircuitBreaker, ctx context.Context, fn func() (T, error)) (T, error) {
	result, err := cb.CallWithResult(ctx, func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}
