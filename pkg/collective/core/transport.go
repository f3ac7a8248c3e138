package core

import (
	"context"

	"github.com/jabolina/go-collective/pkg/collective/types"
)

// Transport is the one-sided, notification-capable communication contract
// every collective engine is built against (SPEC_FULL.md §4.1). Exactly
// five operations are required; everything an engine does is expressed in
// terms of them.
type Transport interface {
	// Rank returns the local participant's rank.
	Rank() int
	// Size returns the immutable group size n.
	Size() int

	// WriteNotify enqueues a one-sided remote write of nbytes from the
	// local segment (srcSeg, srcOff) into (dstSeg, dstOff) on dstRank.
	// Once the receiver observes the full payload, its notification slot
	// notifID in dstSeg is atomically set to notifValue.
	WriteNotify(ctx context.Context, srcSeg types.SegmentID, srcOff int, dstRank int, dstSeg types.SegmentID, dstOff int, nbytes int, notifID uint32, notifValue uint32, queue types.QueueID, timeout types.Timeout) types.Status

	// Notify enqueues a bare notification, no payload.
	Notify(ctx context.Context, dstRank int, dstSeg types.SegmentID, notifID uint32, notifValue uint32, queue types.QueueID, timeout types.Timeout) types.Status

	// WaitOne blocks until notifID in seg is non-zero, requires the
	// observed value equal expected, and atomically resets the slot to 0.
	WaitOne(ctx context.Context, seg types.SegmentID, notifID uint32, expected uint32) types.Status

	// WaitAny blocks until any slot in [idStart, idStart+idRange) becomes
	// non-zero, returns which id and its value, and atomically resets it.
	WaitAny(ctx context.Context, seg types.SegmentID, idStart uint32, idRange uint32) (id uint32, value uint32, status types.Status)

	// Flush drains queued submissions on queue.
	Flush(ctx context.Context, queue types.QueueID) types.Status
}

// Barrier is an optional capability a Transport may implement: a
// rendezvous across every rank in the group. Only the ring all-reduce
// engine's debug-barrier option (off by default, see SPEC_FULL.md §4.6 and
// §9's open question) ever calls it.
type Barrier interface {
	Barrier(ctx context.Context) types.Status
}
