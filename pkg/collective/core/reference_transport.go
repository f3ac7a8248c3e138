package core

import (
	"context"
	"sync"

	"github.com/jabolina/go-collective/pkg/collective/types"
)

// ReferenceHub is the shared state behind an in-process Transport: one
// memory arena and notification table per rank, all living in the same OS
// process. It exists so the engines, the benchmark drivers, and the tests
// in this module have a real, runnable Transport to drive without
// depending on an actual RDMA fabric. Every rank gets its own bound
// Transport handle via Transport(rank); all of them share this Hub's
// locking and condition variable.
type ReferenceHub struct {
	mu            sync.Mutex
	cond          *sync.Cond
	size          int
	registries    []*types.Registry
	notifications []map[types.SegmentID]map[uint32]uint32

	barrierCount int
	barrierGen   uint64

	// Inject, when non-nil, is consulted before every WriteNotify/Notify
	// submission; returning true makes that single submission resolve to
	// QUEUE_FULL instead of being applied, exercising the backoff path.
	// It is called with the submitting rank and target queue.
	Inject func(rank int, queue types.QueueID) bool

	log types.Logger
}

// NewReferenceHub creates a hub for an n-rank in-process group. Each rank
// must Register its own segments (via the Registry returned by Registry)
// before any collective call touches them.
func NewReferenceHub(n int, log types.Logger) *ReferenceHub {
	if log == nil {
		log = types.NopLogger{}
	}
	h := &ReferenceHub{
		size:          n,
		registries:    make([]*types.Registry, n),
		notifications: make([]map[types.SegmentID]map[uint32]uint32, n),
		log:           log,
	}
	h.cond = sync.NewCond(&h.mu)
	for i := 0; i < n; i++ {
		h.registries[i] = types.NewRegistry()
		h.notifications[i] = make(map[types.SegmentID]map[uint32]uint32)
	}
	return h
}

// Registry returns the segment registry rank must register its memory
// into before participating in any collective.
func (h *ReferenceHub) Registry(rank int) *types.Registry {
	return h.registries[rank]
}

// Transport returns a Transport handle bound to rank, backed by this hub.
func (h *ReferenceHub) Transport(rank int) Transport {
	return &referenceTransport{hub: h, rank: rank}
}

// Barrier blocks the calling goroutine until Size() goroutines have called
// it with the same generation counter, matching the optional Barrier
// capability engines may use (see core.Barrier). It backs the ring
// all-reduce engine's debug-only WithDebugBarrier option.
func (h *ReferenceHub) Barrier(ctx context.Context) types.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	gen := h.barrierGen
	h.barrierCount++
	if h.barrierCount == h.size {
		h.barrierCount = 0
		h.barrierGen++
		h.cond.Broadcast()
		return types.StatusSuccess
	}
	for h.barrierGen == gen {
		if ctx.Err() != nil {
			return types.StatusTimeout
		}
		h.cond.Wait()
	}
	return types.StatusSuccess
}

func (h *ReferenceHub) notifSlot(rank int, seg types.SegmentID) map[uint32]uint32 {
	m, ok := h.notifications[rank][seg]
	if !ok {
		m = make(map[uint32]uint32)
		h.notifications[rank][seg] = m
	}
	return m
}

type referenceTransport struct {
	hub  *ReferenceHub
	rank int
}

func (r *referenceTransport) Rank() int { return r.rank }
func (r *referenceTransport) Size() int { return r.hub.size }

func (r *referenceTransport) WriteNotify(ctx context.Context, srcSeg types.SegmentID, srcOff int, dstRank int, dstSeg types.SegmentID, dstOff int, nbytes int, notifID, notifValue uint32, queue types.QueueID, timeout types.Timeout) types.Status {
	if r.hub.Inject != nil && r.hub.Inject(r.rank, queue) {
		return types.StatusQueueFull
	}

	srcBuf, err := r.hub.registries[r.rank].Bytes(srcSeg)
	if err != nil {
		r.hub.log.Errorf("write_notify: %v", err)
		return types.StatusError
	}
	if srcOff < 0 || srcOff+nbytes > len(srcBuf) {
		r.hub.log.Errorf("write_notify: source range out of bounds")
		return types.StatusError
	}
	dstBuf, err := r.hub.registries[dstRank].Bytes(dstSeg)
	if err != nil {
		r.hub.log.Errorf("write_notify: %v", err)
		return types.StatusError
	}
	if dstOff < 0 || dstOff+nbytes > len(dstBuf) {
		r.hub.log.Errorf("write_notify: destination range out of bounds")
		return types.StatusError
	}

	r.hub.mu.Lock()
	copy(dstBuf[dstOff:dstOff+nbytes], srcBuf[srcOff:srcOff+nbytes])
	r.hub.notifSlot(dstRank, dstSeg)[notifID] = notifValue
	r.hub.cond.Broadcast()
	r.hub.mu.Unlock()
	return types.StatusSuccess
}

func (r *referenceTransport) Notify(ctx context.Context, dstRank int, dstSeg types.SegmentID, notifID, notifValue uint32, queue types.QueueID, timeout types.Timeout) types.Status {
	if r.hub.Inject != nil && r.hub.Inject(r.rank, queue) {
		return types.StatusQueueFull
	}
	r.hub.mu.Lock()
	r.hub.notifSlot(dstRank, dstSeg)[notifID] = notifValue
	r.hub.cond.Broadcast()
	r.hub.mu.Unlock()
	return types.StatusSuccess
}

func (r *referenceTransport) Flush(ctx context.Context, queue types.QueueID) types.Status {
	return types.StatusSuccess
}

// Barrier satisfies the optional core.Barrier capability by forwarding to
// the shared hub, so every rank's handle rendezvous on the same counter.
func (r *referenceTransport) Barrier(ctx context.Context) types.Status {
	return r.hub.Barrier(ctx)
}

// WaitOne and WaitAny take no explicit types.Timeout (SPEC_FULL.md §4.1's
// signatures don't carry one for wait calls); cancellation is entirely
// ctx-driven, matching a caller that derives ctx from context.WithTimeout
// or context.WithDeadline for a bounded wait, or passes context.Background
// for an unbounded (GASPI_BLOCK-equivalent) one.

func (r *referenceTransport) WaitOne(ctx context.Context, seg types.SegmentID, notifID uint32, expected uint32) types.Status {
	r.hub.mu.Lock()
	defer r.hub.mu.Unlock()
	for {
		slot := r.hub.notifSlot(r.rank, seg)
		if v, ok := slot[notifID]; ok && v != 0 {
			delete(slot, notifID)
			if v != expected {
				r.hub.log.Errorf("wait_one: segment %d id %d expected %d got %d", seg, notifID, expected, v)
				return types.StatusError
			}
			return types.StatusSuccess
		}
		if ctx.Err() != nil {
			return types.StatusTimeout
		}
		if !condWait(r.hub.cond, ctx) {
			return types.StatusTimeout
		}
	}
}

func (r *referenceTransport) WaitAny(ctx context.Context, seg types.SegmentID, idStart uint32, idRange uint32) (uint32, uint32, types.Status) {
	r.hub.mu.Lock()
	defer r.hub.mu.Unlock()
	for {
		slot := r.hub.notifSlot(r.rank, seg)
		for id := idStart; id < idStart+idRange; id++ {
			if v, ok := slot[id]; ok && v != 0 {
				delete(slot, id)
				return id, v, types.StatusSuccess
			}
		}
		if ctx.Err() != nil {
			return 0, 0, types.StatusTimeout
		}
		if !condWait(r.hub.cond, ctx) {
			return 0, 0, types.StatusTimeout
		}
	}
}

// condWait blocks on cond.Wait() but returns early once ctx is done, by
// racing a watcher goroutine that broadcasts on cancellation. sync.Cond
// has no native context support, hence the indirection. Returns false if
// ctx was the reason it woke up.
func condWait(cond *sync.Cond, ctx context.Context) bool {
	woke := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			cond.L.Lock()
			cond.Broadcast()
			cond.L.Unlock()
		case <-woke:
		}
	}()
	cond.Wait()
	close(woke)
	return ctx.Err() == nil
}
