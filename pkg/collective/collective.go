// Package collective is the library's external surface: a Group wraps the
// transport, segment registry and notification arbiter a process needs,
// and the package exposes one generic function per collective × variant,
// taking a *Group, over the broadcast, reduce and allreduce engines
// underneath.
package collective

import (
	"context"

	"github.com/jabolina/go-collective/pkg/collective/allreduce"
	"github.com/jabolina/go-collective/pkg/collective/broadcast"
	"github.com/jabolina/go-collective/pkg/collective/core"
	"github.com/jabolina/go-collective/pkg/collective/reduce"
	"github.com/jabolina/go-collective/pkg/collective/types"
)

// Group is the local participant's handle into an n-process collective
// group. It holds no rank-global mutable state beyond the shared transport
// and the notification arbiter, so independent collective calls on
// disjoint segments may run on independent goroutines.
type Group struct {
	configuration types.Config
	trans         core.Transport
	registry      *types.Registry
	arbiter       *types.Arbiter

	broadcastEngine *broadcast.Engine
	reduceEngine    *reduce.Engine
	allreduceEngine *allreduce.Engine
}

// NewGroup builds a Group bound to transport and registry, using cfg for
// logging, metrics and the defaults every call falls back to when not
// overridden. One Arbiter is shared by every engine so concurrent
// collectives on the same segment are always handed disjoint notification
// ranges.
func NewGroup(transport core.Transport, registry *types.Registry, cfg types.Config) *Group {
	arbiter := types.NewArbiter()
	return &Group{
		configuration:   cfg,
		trans:           transport,
		registry:        registry,
		arbiter:         arbiter,
		broadcastEngine: broadcast.NewEngine(transport, registry, arbiter, cfg),
		reduceEngine:    reduce.NewEngine(transport, registry, arbiter, cfg),
		allreduceEngine: allreduce.NewEngine(transport, registry, arbiter, cfg),
	}
}

// Registry returns the segment registry this group's rank must Register
// its memory into before any of the calls below can address it.
func (g *Group) Registry() *types.Registry {
	return g.registry
}

// DefaultQueue is this group's configured fallback queue, for call sites
// that don't need a dedicated one.
func (g *Group) DefaultQueue() types.QueueID { return g.configuration.DefaultQueue }

// DefaultTimeout is this group's configured fallback timeout.
func (g *Group) DefaultTimeout() types.Timeout { return g.configuration.DefaultTime }

// Broadcast is the strong binomial-tree broadcast: buf holds nElem
// elements of T on every rank; on return every rank's buf equals root's
// pre-call contents.
func Broadcast[T types.Element](ctx context.Context, g *Group, buf types.SegmentBuffer, nElem int, root types.Root, queue types.QueueID, timeout types.Timeout) types.Status {
	return broadcast.Broadcast[T](ctx, g.broadcastEngine, buf, nElem, root, queue, timeout)
}

// BroadcastWeak transfers only the leading ceil(threshold*nElem) elements.
func BroadcastWeak[T types.Element](ctx context.Context, g *Group, buf types.SegmentBuffer, nElem int, threshold float64, root types.Root, queue types.QueueID, timeout types.Timeout) types.Status {
	return broadcast.BroadcastWeak[T](ctx, g.broadcastEngine, buf, nElem, threshold, root, queue, timeout)
}

// BroadcastFlat is the (n-1)-write broadcast variant.
func BroadcastFlat[T types.Element](ctx context.Context, g *Group, buf types.SegmentBuffer, nElem int, root types.Root, queue types.QueueID, timeout types.Timeout) types.Status {
	return broadcast.BroadcastFlat[T](ctx, g.broadcastEngine, buf, nElem, root, queue, timeout)
}

// BroadcastFlatWeak is BroadcastFlat's weak counterpart.
func BroadcastFlatWeak[T types.Element](ctx context.Context, g *Group, buf types.SegmentBuffer, nElem int, threshold float64, root types.Root, queue types.QueueID, timeout types.Timeout) types.Status {
	return broadcast.BroadcastFlatWeak[T](ctx, g.broadcastEngine, buf, nElem, threshold, root, queue, timeout)
}

// Reduce is the strong binomial-tree up-sweep reduce: on return root's
// recv buffer holds the reduction of every rank's send buffer.
func Reduce[T types.Element](ctx context.Context, g *Group, send, recv, tmp types.SegmentBuffer, nElem int, op types.Operation, root types.Root, queue types.QueueID, timeout types.Timeout) types.Status {
	return reduce.Reduce[T](ctx, g.reduceEngine, send, recv, tmp, nElem, op, root, queue, timeout)
}

// ReduceWeak transfers and reduces only the leading
// ceil(threshold*nElem) elements.
func ReduceWeak[T types.Element](ctx context.Context, g *Group, send, recv, tmp types.SegmentBuffer, nElem int, threshold float64, op types.Operation, root types.Root, queue types.QueueID, timeout types.Timeout) types.Status {
	return reduce.ReduceWeak[T](ctx, g.reduceEngine, send, recv, tmp, nElem, threshold, op, root, queue, timeout)
}

// AllReduceRing is the pipelined ring all-reduce: on return every rank's
// recv buffer holds the reduction of every rank's send buffer.
func AllReduceRing[T types.Element](ctx context.Context, g *Group, send, recv, tmp types.SegmentBuffer, nElem int, op types.Operation, queue types.QueueID, timeout types.Timeout) types.Status {
	return allreduce.AllReduceRing[T](ctx, g.allreduceEngine, send, recv, tmp, nElem, op, queue, timeout)
}
