package core

import (
	"context"

	"github.com/jabolina/go-collective/pkg/collective/types"
)

// SubmitWriteNotify retries a WriteNotify submission across QUEUE_FULL
// returns, flushing queue between attempts, until it resolves to anything
// other than QUEUE_FULL. This is the only place engines are allowed to
// retry at the transport level (SPEC_FULL.md §4.7): protocol-level retries
// are never attempted, and wait calls are never wrapped here.
func SubmitWriteNotify(ctx context.Context, t Transport, srcSeg types.SegmentID, srcOff int, dstRank int, dstSeg types.SegmentID, dstOff int, nbytes int, notifID, notifValue uint32, queue types.QueueID, timeout types.Timeout, metrics types.MetricsRecorder, collective string) types.Status {
	for {
		status := t.WriteNotify(ctx, srcSeg, srcOff, dstRank, dstSeg, dstOff, nbytes, notifID, notifValue, queue, timeout)
		if status != types.StatusQueueFull {
			return status
		}
		metrics.IncQueueFullRetry(collective)
		if flushed := t.Flush(ctx, queue); flushed == types.StatusError {
			return flushed
		}
	}
}

// SubmitNotify is SubmitWriteNotify's counterpart for bare notifications.
func SubmitNotify(ctx context.Context, t Transport, dstRank int, dstSeg types.SegmentID, notifID, notifValue uint32, queue types.QueueID, timeout types.Timeout, metrics types.MetricsRecorder, collective string) types.Status {
	for {
		status := t.Notify(ctx, dstRank, dstSeg, notifID, notifValue, queue, timeout)
		if status != types.StatusQueueFull {
			return status
		}
		metrics.IncQueueFullRetry(collective)
		if flushed := t.Flush(ctx, queue); flushed == types.StatusError {
			return flushed
		}
	}
}
