// Package broadcast implements the binomial-tree and flat broadcast
// engines (SPEC_FULL.md §4.4): strong variants move the full payload,
// weak variants move only a leading threshold-sized prefix.
package broadcast

import (
	"context"
	"time"

	"github.com/jabolina/go-collective/pkg/collective/core"
	"github.com/jabolina/go-collective/pkg/collective/types"
)

// Engine drives broadcast collectives for one rank against a Transport and
// a segment Registry.
type Engine struct {
	transport core.Transport
	registry  *types.Registry
	arbiter   *types.Arbiter
	config    types.Config
}

// NewEngine builds a broadcast Engine bound to transport and registry,
// using cfg for logging, metrics and defaults.
func NewEngine(transport core.Transport, registry *types.Registry, arbiter *types.Arbiter, cfg types.Config) *Engine {
	return &Engine{transport: transport, registry: registry, arbiter: arbiter, config: cfg}
}

// leaseCapacity bounds the notification-id space the binomial broadcast's
// formulas can produce: ready ids in [0,n), data ids in [0,n*n), and ack
// ids in [0,n*n) again (r*n+parent < n*n). n*n+n+1 is a safe, slightly
// generous upper bound.
func leaseCapacity(n int) uint32 {
	return uint32(n*n + n + 1)
}

// Broadcast is the strong binomial-tree broadcast: buf holds nElem
// elements of T on every rank; on return every rank's buf equals root's
// pre-call contents.
func Broadcast[T types.Element](ctx context.Context, e *Engine, buf types.SegmentBuffer, nElem int, root types.Root, queue types.QueueID, timeout types.Timeout) types.Status {
	return run[T](ctx, e, buf, nElem, nElem, root, queue, timeout, "strong")
}

// BroadcastWeak transfers only the leading ceil(threshold*nElem) elements;
// trailing elements of buf are left untouched by the engine on every rank.
func BroadcastWeak[T types.Element](ctx context.Context, e *Engine, buf types.SegmentBuffer, nElem int, threshold float64, root types.Root, queue types.QueueID, timeout types.Timeout) types.Status {
	k, err := types.Threshold(threshold, nElem)
	if err != nil {
		e.config.Logger.Errorf("broadcast: %v", err)
		return types.StatusError
	}
	return run[T](ctx, e, buf, nElem, k, root, queue, timeout, "weak")
}

func run[T types.Element](ctx context.Context, e *Engine, buf types.SegmentBuffer, nElem, k int, root types.Root, queue types.QueueID, timeout types.Timeout, variant string) types.Status {
	start := time.Now()
	defer func() {
		e.config.Metrics.ObserveCollective("broadcast", variant, time.Since(start).Seconds())
	}()

	n := e.transport.Size()
	if err := types.ElementCount(nElem); err != nil {
		e.config.Logger.Errorf("broadcast: %v", err)
		return types.StatusError
	}
	if err := types.ValidateRoot(root, n); err != nil {
		e.config.Logger.Errorf("broadcast: %v", err)
		return types.StatusError
	}

	if n == 1 {
		return types.StatusSuccess
	}

	waitCtx, cancel := core.WaitContext(ctx, timeout)
	defer cancel()

	lease := e.arbiter.Reserve(buf.Segment, leaseCapacity(n))
	defer e.arbiter.Release(lease)

	rank := e.transport.Rank()
	lr := (rank - int(root) + n) % n
	d := core.Depth(n)
	width := types.ByteWidth[T]()
	nBytes := k * width

	for i := 0; i < d; i++ {
		step := 1 << i
		if lr < step && lr+step < n {
			dstLogical := lr + step
			dstRank := (dstLogical + int(root)) % n

			status := e.transport.WaitOne(waitCtx, buf.Segment, lease.ID(uint32(dstLogical)), uint32(dstLogical))
			if status != types.StatusSuccess {
				return reportError(e, "broadcast", status)
			}

			status = core.SubmitWriteNotify(ctx, e.transport, buf.Segment, buf.Offset, dstRank, buf.Segment, buf.Offset, nBytes,
				lease.ID(uint32(lr*n+dstLogical)), uint32(lr+1), queue, timeout, e.config.Metrics, "broadcast")
			if status != types.StatusSuccess {
				return reportError(e, "broadcast", status)
			}
		}

		if lr >= step && lr < step<<1 {
			parentLogical := lr - step
			parentRank := (parentLogical + int(root)) % n

			status := core.SubmitNotify(ctx, e.transport, parentRank, buf.Segment, lease.ID(uint32(lr)), uint32(lr), queue, timeout, e.config.Metrics, "broadcast")
			if status != types.StatusSuccess {
				return reportError(e, "broadcast", status)
			}

			status = e.transport.WaitOne(waitCtx, buf.Segment, lease.ID(uint32(parentLogical*n+lr)), uint32(parentLogical+1))
			if status != types.StatusSuccess {
				return reportError(e, "broadcast", status)
			}

			if i == d-1 {
				status = core.SubmitNotify(ctx, e.transport, parentRank, buf.Segment, lease.ID(uint32(lr*n+parentLogical)), uint32(lr), queue, timeout, e.config.Metrics, "broadcast")
				if status != types.StatusSuccess {
					return reportError(e, "broadcast", status)
				}
			}
		}
	}

	// Final-level quiescence ack: if this rank has a child at distance
	// 2^(D-1), it must wait for that child's ack before returning so it
	// never tears down/reuses the segment while the child is still
	// reading it (SPEC_FULL.md §9).
	if d > 0 {
		lastStep := 1 << (d - 1)
		if lr&lastStep == 0 {
			childLogical := lr + lastStep
			if childLogical < n {
				status := e.transport.WaitOne(waitCtx, buf.Segment, lease.ID(uint32(childLogical*n+lr)), uint32(childLogical))
				if status != types.StatusSuccess {
					return reportError(e, "broadcast", status)
				}
			}
		}
	}

	return types.StatusSuccess
}

func reportError(e *Engine, collective string, status types.Status) types.Status {
	if status == types.StatusError {
		e.config.Metrics.IncTransportError(collective)
	}
	return status
}
