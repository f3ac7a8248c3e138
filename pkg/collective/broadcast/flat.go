package broadcast

import (
	"context"
	"time"

	"github.com/jabolina/go-collective/pkg/collective/core"
	"github.com/jabolina/go-collective/pkg/collective/types"
)

// flatLeaseCapacity bounds the id space the flat variant's formulas use:
// data ids in [0,n), ack ids in [n, 2n+1).
func flatLeaseCapacity(n int) uint32 {
	return uint32(2*n + 1)
}

// BroadcastFlat is the (n-1)-write broadcast: root writes directly to every
// non-root rank, one WriteNotify each, then waits for all acks.
func BroadcastFlat[T types.Element](ctx context.Context, e *Engine, buf types.SegmentBuffer, nElem int, root types.Root, queue types.QueueID, timeout types.Timeout) types.Status {
	return runFlat[T](ctx, e, buf, nElem, nElem, root, queue, timeout, "strong")
}

// BroadcastFlatWeak is BroadcastFlat's weak counterpart, moving only the
// leading ceil(threshold*nElem) elements.
func BroadcastFlatWeak[T types.Element](ctx context.Context, e *Engine, buf types.SegmentBuffer, nElem int, threshold float64, root types.Root, queue types.QueueID, timeout types.Timeout) types.Status {
	k, err := types.Threshold(threshold, nElem)
	if err != nil {
		e.config.Logger.Errorf("broadcast-flat: %v", err)
		return types.StatusError
	}
	return runFlat[T](ctx, e, buf, nElem, k, root, queue, timeout, "weak")
}

func runFlat[T types.Element](ctx context.Context, e *Engine, buf types.SegmentBuffer, nElem, k int, root types.Root, queue types.QueueID, timeout types.Timeout, variant string) types.Status {
	start := time.Now()
	defer func() {
		e.config.Metrics.ObserveCollective("broadcast-flat", variant, time.Since(start).Seconds())
	}()

	n := e.transport.Size()
	if err := types.ElementCount(nElem); err != nil {
		e.config.Logger.Errorf("broadcast-flat: %v", err)
		return types.StatusError
	}
	if err := types.ValidateRoot(root, n); err != nil {
		e.config.Logger.Errorf("broadcast-flat: %v", err)
		return types.StatusError
	}

	if n == 1 {
		return types.StatusSuccess
	}

	waitCtx, cancel := core.WaitContext(ctx, timeout)
	defer cancel()

	lease := e.arbiter.Reserve(buf.Segment, flatLeaseCapacity(n))
	defer e.arbiter.Release(lease)

	rank := e.transport.Rank()
	lr := (rank - int(root) + n) % n
	width := types.ByteWidth[T]()
	nBytes := k * width

	if lr == 0 {
		for dstLogical := 1; dstLogical < n; dstLogical++ {
			dstRank := (dstLogical + int(root)) % n
			status := core.SubmitWriteNotify(ctx, e.transport, buf.Segment, buf.Offset, dstRank, buf.Segment, buf.Offset, nBytes,
				lease.ID(uint32(dstLogical)), uint32(dstLogical+1), queue, timeout, e.config.Metrics, "broadcast-flat")
			if status != types.StatusSuccess {
				return reportError(e, "broadcast-flat", status)
			}
		}
		for dstLogical := 1; dstLogical < n; dstLogical++ {
			status := e.transport.WaitOne(waitCtx, buf.Segment, lease.ID(uint32(n+dstLogical+1)), uint32(dstLogical+1))
			if status != types.StatusSuccess {
				return reportError(e, "broadcast-flat", status)
			}
		}
		return types.StatusSuccess
	}

	status := e.transport.WaitOne(waitCtx, buf.Segment, lease.ID(uint32(lr)), uint32(lr+1))
	if status != types.StatusSuccess {
		return reportError(e, "broadcast-flat", status)
	}

	rootRank := int(root)
	status = core.SubmitNotify(ctx, e.transport, rootRank, buf.Segment, lease.ID(uint32(n+lr+1)), uint32(lr+1), queue, timeout, e.config.Metrics, "broadcast-flat")
	if status != types.StatusSuccess {
		return reportError(e, "broadcast-flat", status)
	}

	return types.StatusSuccess
}
