// Package reduce implements the binomial-tree up-sweep reduce engine
// (SPEC_FULL.md §4.5): every rank contributes, root ends up authoritative,
// non-root receive buffers are left unspecified.
package reduce

import (
	"context"
	"time"

	"github.com/jabolina/go-collective/pkg/collective/core"
	"github.com/jabolina/go-collective/pkg/collective/types"
)

// Engine drives reduce collectives for one rank against a Transport and a
// segment Registry.
type Engine struct {
	transport core.Transport
	registry  *types.Registry
	arbiter   *types.Arbiter
	config    types.Config
}

// NewEngine builds a reduce Engine bound to transport and registry, using
// cfg for logging, metrics and defaults.
func NewEngine(transport core.Transport, registry *types.Registry, arbiter *types.Arbiter, cfg types.Config) *Engine {
	return &Engine{transport: transport, registry: registry, arbiter: arbiter, config: cfg}
}

// leaseCapacity bounds the id space the up-sweep's formulas produce: ready
// ids in [0,n*n), data ids in [0,n), ack ids in [1,n]. n*n+n+2 is a safe
// upper bound.
func leaseCapacity(n int) uint32 {
	return uint32(n*n + n + 2)
}

// Reduce is the strong variant: every rank's send buffer contributes all
// nElem elements; on return root's receive buffer holds the reduction.
func Reduce[T types.Element](ctx context.Context, e *Engine, send, recv, tmp types.SegmentBuffer, nElem int, op types.Operation, root types.Root, queue types.QueueID, timeout types.Timeout) types.Status {
	return run[T](ctx, e, send, recv, tmp, nElem, nElem, op, root, queue, timeout, "strong")
}

// ReduceWeak transfers and reduces only the leading ceil(threshold*nElem)
// elements.
func ReduceWeak[T types.Element](ctx context.Context, e *Engine, send, recv, tmp types.SegmentBuffer, nElem int, threshold float64, op types.Operation, root types.Root, queue types.QueueID, timeout types.Timeout) types.Status {
	k, err := types.Threshold(threshold, nElem)
	if err != nil {
		e.config.Logger.Errorf("reduce: %v", err)
		return types.StatusError
	}
	return run[T](ctx, e, send, recv, tmp, nElem, k, op, root, queue, timeout, "weak")
}

func run[T types.Element](ctx context.Context, e *Engine, send, recv, tmp types.SegmentBuffer, nElem, k int, op types.Operation, root types.Root, queue types.QueueID, timeout types.Timeout, variant string) types.Status {
	start := time.Now()
	defer func() {
		e.config.Metrics.ObserveCollective("reduce", variant, time.Since(start).Seconds())
	}()

	n := e.transport.Size()
	if err := types.ElementCount(nElem); err != nil {
		e.config.Logger.Errorf("reduce: %v", err)
		return types.StatusError
	}
	if err := types.ValidateRoot(root, n); err != nil {
		e.config.Logger.Errorf("reduce: %v", err)
		return types.StatusError
	}
	if !op.Valid() {
		e.config.Logger.Errorf("reduce: %v", types.ErrUnknownOperation)
		return types.StatusError
	}

	sendView, err := types.View[T](e.registry, send.Segment, send.Offset, k)
	if err != nil {
		e.config.Logger.Errorf("reduce: %v", err)
		return types.StatusError
	}

	if n == 1 {
		recvView, err := types.View[T](e.registry, recv.Segment, recv.Offset, k)
		if err != nil {
			e.config.Logger.Errorf("reduce: %v", err)
			return types.StatusError
		}
		if err := core.Copy(k, sendView, recvView); err != nil {
			e.config.Logger.Errorf("reduce: %v", err)
			return types.StatusError
		}
		return types.StatusSuccess
	}

	waitCtx, cancel := core.WaitContext(ctx, timeout)
	defer cancel()

	lease := e.arbiter.Reserve(tmp.Segment, leaseCapacity(n))
	defer e.arbiter.Release(lease)

	rank := e.transport.Rank()
	topo := core.NewTopology(rank, int(root), n)
	lr := topo.Logical
	width := types.ByteWidth[T]()
	nBytes := k * width

	// payload is the outgoing buffer this rank sends upward: the caller's
	// send buffer directly for a leaf, or, for an internal node (root
	// included), this rank's own recv buffer, seeded with a copy of send and
	// used as the accumulator for children's contributions.
	payload := send
	if !topo.IsLeaf() {
		accView, err := types.View[T](e.registry, recv.Segment, recv.Offset, k)
		if err != nil {
			e.config.Logger.Errorf("reduce: %v", err)
			return types.StatusError
		}
		if err := core.Copy(k, sendView, accView); err != nil {
			e.config.Logger.Errorf("reduce: %v", err)
			return types.StatusError
		}

		tmpView, err := types.View[T](e.registry, tmp.Segment, tmp.Offset, k)
		if err != nil {
			e.config.Logger.Errorf("reduce: %v", err)
			return types.StatusError
		}

		for i := len(topo.LogicalChildren) - 1; i >= 0; i-- {
			childLogical := topo.LogicalChildren[i]
			childRank := topo.Children[i]

			status := core.SubmitNotify(ctx, e.transport, childRank, tmp.Segment, lease.ID(uint32(childLogical*n+lr)), uint32(childLogical*n+lr), queue, timeout, e.config.Metrics, "reduce")
			if status != types.StatusSuccess {
				return reportError(e, status)
			}

			_, _, status = e.transport.WaitAny(waitCtx, tmp.Segment, lease.ID(0), uint32(n))
			if status != types.StatusSuccess {
				return reportError(e, status)
			}

			if err := core.Reduce(op, k, tmpView, accView); err != nil {
				e.config.Logger.Errorf("reduce: %v", err)
				return types.StatusError
			}

			status = core.SubmitNotify(ctx, e.transport, childRank, tmp.Segment, lease.ID(uint32(lr+1)), uint32(lr+1), queue, timeout, e.config.Metrics, "reduce")
			if status != types.StatusSuccess {
				return reportError(e, status)
			}
		}

		payload = recv
	}

	if topo.HasParent {
		parentLogical := topo.LogicalParent
		parentRank := topo.Parent

		status := e.transport.WaitOne(waitCtx, tmp.Segment, lease.ID(uint32(lr*n+parentLogical)), uint32(lr*n+parentLogical))
		if status != types.StatusSuccess {
			return reportError(e, status)
		}

		status = core.SubmitWriteNotify(ctx, e.transport, payload.Segment, payload.Offset, parentRank, tmp.Segment, tmp.Offset, nBytes,
			lease.ID(uint32(lr)), uint32(parentLogical+1), queue, timeout, e.config.Metrics, "reduce")
		if status != types.StatusSuccess {
			return reportError(e, status)
		}

		status = e.transport.WaitOne(waitCtx, tmp.Segment, lease.ID(uint32(parentLogical+1)), uint32(parentLogical+1))
		if status != types.StatusSuccess {
			return reportError(e, status)
		}
	}

	return types.StatusSuccess
}

func reportError(e *Engine, status types.Status) types.Status {
	if status == types.StatusError {
		e.config.Metrics.IncTransportError("reduce")
	}
	return status
}
