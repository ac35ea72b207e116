package errors

import (
	"fmt"
	"runtime/debug"
)

// RecoverPanic converts a recovered value into an *Error carrying the stack.
// The result is retryable: a panic in processing must not acknowledge the message.
func RecoverPanic(r interface{}) error {
	if r == nil {
		return nil
	}

	var err error
	switch v := r.(type) {
	case error:
		err = v
	case string:
		err = fmt.Errorf("panic: %s", v)
	default:
		err = fmt.Errorf("panic: %v", v)
	}

	return ErrInternal.
		WithCause(err).
		WithDetail("panic", true).
		WithDetail("stack_trace", string(debug.Stack())).
		AsRetryable()
}
