package core

import (
	"context"
	"time"

	"github.com/jabolina/go-collective/pkg/collective/types"
)

// WaitContext derives the context an engine should pass to every Wait*
// call for the duration of one collective invocation: Block leaves parent
// untouched (an unbounded wait, cancellable only by the caller's own
// ctx), Test expires immediately (a pure poll), and any other value is a
// millisecond budget.
func WaitContext(parent context.Context, timeout types.Timeout) (context.Context, context.CancelFunc) {
	switch {
	case timeout == types.Block:
		return context.WithCancel(parent)
	case timeout == types.Test:
		return context.WithDeadline(parent, time.Now())
	default:
		return context.WithTimeout(parent, time.Duration(timeout)*time.Millisecond)
	}
}
