package wrap

import (
	"context"
	"errors"
)

// errorWithLogCtx carries the LogCtx captured at the failure site so
// callers further up the stack log with the original tags.
type errorWithLogCtx struct {
	err    error
	logCtx LogCtx
}

func (e *errorWithLogCtx) Error() string {
	return e.err.Error()
}

func (e *errorWithLogCtx) Unwrap() error {
	return e.err
}

// ErrorCtx restores the LogCtx attached to err, if any, onto ctx.
func ErrorCtx(ctx context.Context, err error) context.Context {
	if err == nil {
		return ctx
	}

	var e *errorWithLogCtx
	if errors.As(err, &e) && e != nil {
		return context.WithValue(ctx, LogCtxKey, e.logCtx)
	}
	return ctx
}
