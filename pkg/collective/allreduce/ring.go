// Package allreduce implements the pipelined ring all-reduce engine
// (SPEC_FULL.md §4.6): a scatter-reduce phase followed by an all-gather
// phase, each moving one chunk per step around a logical ring of all n
// ranks.
package allreduce

import (
	"context"
	"time"

	"github.com/jabolina/go-collective/pkg/collective/core"
	"github.com/jabolina/go-collective/pkg/collective/types"
)

// Engine drives ring all-reduce collectives for one rank against a
// Transport and a segment Registry.
type Engine struct {
	transport core.Transport
	registry  *types.Registry
	arbiter   *types.Arbiter
	config    types.Config
}

// NewEngine builds a ring all-reduce Engine. When cfg.DebugBarrier is set,
// the transport must additionally implement core.Barrier; this is a
// conformance/debugging aid only (SPEC_FULL.md §9's open question), off by
// default.
func NewEngine(transport core.Transport, registry *types.Registry, arbiter *types.Arbiter, cfg types.Config) *Engine {
	return &Engine{transport: transport, registry: registry, arbiter: arbiter, config: cfg}
}

// phaseCapacity bounds the id space a single phase's formulas produce:
// ready ids in [0,2n), data ids in [0, n*n+2n), ack ids in [0,2n+1). n*n+2n+2
// is a safe upper bound per phase; the engine reserves two such blocks, one
// per phase, so Phase A and Phase B never share a numeric id on the same
// segment while neighbouring ranks are at different phases.
func phaseCapacity(n int) uint32 {
	return uint32(n*n + 2*n + 2)
}

func leaseCapacity(n int) uint32 {
	return 2 * phaseCapacity(n)
}

// partition splits nElem elements into n contiguous chunks: the first
// nElem%n chunks get ceil(nElem/n) elements, the rest get floor(nElem/n).
// It returns each chunk's element count and its starting element offset.
func partition(nElem, n int) (sizes []int, starts []int) {
	floor := nElem / n
	rem := nElem % n
	sizes = make([]int, n)
	starts = make([]int, n)
	offset := 0
	for i := 0; i < n; i++ {
		size := floor
		if i < rem {
			size++
		}
		sizes[i] = size
		starts[i] = offset
		offset += size
	}
	return sizes, starts
}

// AllReduceRing reduces send across every rank with op and leaves the
// result in recv on every rank. tmp must hold at least
// 2*ceil(nElem/n)*sizeof(T) bytes, used as two alternating scratch bands.
func AllReduceRing[T types.Element](ctx context.Context, e *Engine, send, recv, tmp types.SegmentBuffer, nElem int, op types.Operation, queue types.QueueID, timeout types.Timeout) types.Status {
	start := time.Now()
	defer func() {
		e.config.Metrics.ObserveCollective("allreduce-ring", op.String(), time.Since(start).Seconds())
	}()

	n := e.transport.Size()
	if err := types.ElementCount(nElem); err != nil {
		e.config.Logger.Errorf("allreduce-ring: %v", err)
		return types.StatusError
	}
	if !op.Valid() {
		e.config.Logger.Errorf("allreduce-ring: %v", types.ErrUnknownOperation)
		return types.StatusError
	}

	if n == 1 {
		return types.StatusSuccess
	}

	recvView, err := types.View[T](e.registry, recv.Segment, recv.Offset, nElem)
	if err != nil {
		e.config.Logger.Errorf("allreduce-ring: %v", err)
		return types.StatusError
	}
	sendView, err := types.View[T](e.registry, send.Segment, send.Offset, nElem)
	if err != nil {
		e.config.Logger.Errorf("allreduce-ring: %v", err)
		return types.StatusError
	}
	if err := core.Copy(nElem, sendView, recvView); err != nil {
		e.config.Logger.Errorf("allreduce-ring: %v", err)
		return types.StatusError
	}

	waitCtx, cancel := core.WaitContext(ctx, timeout)
	defer cancel()

	lease := e.arbiter.Reserve(tmp.Segment, leaseCapacity(n))
	defer e.arbiter.Release(lease)

	sizes, starts := partition(nElem, n)
	maxChunk := 0
	for _, s := range sizes {
		if s > maxChunk {
			maxChunk = s
		}
	}
	width := types.ByteWidth[T]()
	bandBytes := maxChunk * width

	r := e.transport.Rank()
	sendTo := (r + 1) % n
	recvFrom := (r - 1 + n) % n

	phase := ringPhase[T]{
		engine:    e,
		recv:      recv,
		recvView:  recvView,
		queue:     queue,
		timeout:   timeout,
		lease:     lease,
		rank:      r,
		n:         n,
		sendTo:    sendTo,
		recvFrom:  recvFrom,
		sizes:     sizes,
		starts:    starts,
		tmp:       tmp,
		bandBytes: bandBytes,
		width:     width,
		op:        op,
	}

	if status := phase.run(ctx, waitCtx, 0, false); status != types.StatusSuccess {
		return status
	}

	if e.config.DebugBarrier {
		if b, ok := e.transport.(core.Barrier); ok {
			if status := b.Barrier(waitCtx); status != types.StatusSuccess {
				return reportError(e, status)
			}
		}
	}

	if status := phase.run(ctx, waitCtx, phaseCapacity(n), true); status != types.StatusSuccess {
		return status
	}

	return types.StatusSuccess
}

// ringPhase bundles the state one pass of scatter-reduce/all-gather needs,
// so the per-step formulas in run read the same whether this is Phase A or
// Phase B.
type ringPhase[T types.Element] struct {
	engine   *Engine
	recv     types.SegmentBuffer
	recvView []T
	queue    types.QueueID
	timeout  types.Timeout
	lease    types.Lease

	rank, n, sendTo, recvFrom int
	sizes, starts             []int
	tmp                       types.SegmentBuffer
	bandBytes, width          int
	op                        types.Operation
}

// run drives one full pass (Phase A when gather is false, Phase B when
// true) for every step i in [0, n-1), per SPEC_FULL.md §4.6. base offsets
// every notification id into this phase's reserved half of the lease.
func (p *ringPhase[T]) run(ctx, waitCtx context.Context, base uint32, gather bool) types.Status {
	e := p.engine
	name := "allreduce-ring-scatter"
	if gather {
		name = "allreduce-ring-gather"
	}

	r, n := p.rank, p.n
	for i := 0; i < n-1; i++ {
		var sendChunk, recvChunk int
		if !gather {
			sendChunk = mod(r-i, n)
			recvChunk = mod(r-i-1, n)
		} else {
			sendChunk = mod(r-i+1, n)
			recvChunk = mod(r-i, n)
		}

		band := i % 2
		bandOffset := p.tmp.Offset + band*p.bandBytes

		status := core.SubmitNotify(ctx, e.transport, p.recvFrom, p.tmp.Segment, p.lease.ID(base+uint32(r+i)), uint32(r+1), p.queue, p.timeout, e.config.Metrics, name)
		if status != types.StatusSuccess {
			return reportError(e, status)
		}
		status = e.transport.WaitOne(waitCtx, p.tmp.Segment, p.lease.ID(base+uint32(p.sendTo+i)), uint32(p.sendTo+1))
		if status != types.StatusSuccess {
			return reportError(e, status)
		}

		sendBytes := p.sizes[sendChunk] * p.width
		sendByteOffset := p.recv.Offset + p.starts[sendChunk]*p.width
		status = core.SubmitWriteNotify(ctx, e.transport, p.recv.Segment, sendByteOffset, p.sendTo, p.tmp.Segment, bandOffset, sendBytes,
			p.lease.ID(base+uint32(r*n+p.sendTo+i)), uint32(i+r+1), p.queue, p.timeout, e.config.Metrics, name)
		if status != types.StatusSuccess {
			return reportError(e, status)
		}

		status = e.transport.WaitOne(waitCtx, p.tmp.Segment, p.lease.ID(base+uint32(p.recvFrom*n+r+i)), uint32(i+p.recvFrom+1))
		if status != types.StatusSuccess {
			return reportError(e, status)
		}

		scratch, err := types.View[T](e.registry, p.tmp.Segment, bandOffset, p.sizes[recvChunk])
		if err != nil {
			e.config.Logger.Errorf("%s: %v", name, err)
			return types.StatusError
		}
		dst := p.recvView[p.starts[recvChunk] : p.starts[recvChunk]+p.sizes[recvChunk]]

		if !gather {
			if err := core.Reduce(p.op, p.sizes[recvChunk], scratch, dst); err != nil {
				e.config.Logger.Errorf("%s: %v", name, err)
				return types.StatusError
			}
		} else {
			if err := core.Copy(p.sizes[recvChunk], scratch, dst); err != nil {
				e.config.Logger.Errorf("%s: %v", name, err)
				return types.StatusError
			}
		}

		status = core.SubmitNotify(ctx, e.transport, p.recvFrom, p.tmp.Segment, p.lease.ID(base+uint32(i+p.recvFrom+1)), uint32(r+1), p.queue, p.timeout, e.config.Metrics, name)
		if status != types.StatusSuccess {
			return reportError(e, status)
		}
		status = e.transport.WaitOne(waitCtx, p.tmp.Segment, p.lease.ID(base+uint32(i+r+1)), uint32(p.sendTo+1))
		if status != types.StatusSuccess {
			return reportError(e, status)
		}
	}
	return types.StatusSuccess
}

func mod(a, n int) int {
	return ((a % n) + n) % n
}

func reportError(e *Engine, status types.Status) types.Status {
	if status == types.StatusError {
		e.config.Metrics.IncTransportError("allreduce-ring")
	}
	return status
}
