package observability

import (
	"fmt"
	"runtime/debug"
)

// RecoverPanic recovers from a panic and logs it with the stack trace.
// Call it deferred; the panic is not re-raised.
func RecoverPanic(logger *Logger, where string) {
	if r := recover(); r != nil {
		logPanic(logger, where, r)
	}
}

// RecoverPanicWithCallback recovers from a panic, logs it, and runs callback
// only when a panic occurred
func RecoverPanicWithCallback(logger *Logger, where string, callback func()) {
	if r := recover(); r != nil {
		logPanic(logger, where, r)
		if callback != nil {
			callback()
		}
	}
}

// PanicError converts a recovered value into an error, nil when r is nil
func PanicError(r interface{}) error {
	if r == nil {
		return nil
	}
	if err, ok := r.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", r)
}

func logPanic(logger *Logger, where string, r interface{}) {
	if logger == nil {
		logger = NopLogger()
	}
	logger.WithFields(map[string]interface{}{
		"panic":   fmt.Sprint(r),
		"stack":   string(debug.Stack()),
		"context": where,
	}).Error("PANIC recovered")
}
